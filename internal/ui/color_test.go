package ui

import (
	"bytes"
	"io"
	"os"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
)

// captureColorOutput collects everything fn prints. Both color.Output
// and os.Stdout redirect to the same pipe; Step and Detail write through
// plain fmt.
func captureColorOutput(fn func()) string {
	oldNoColor := color.NoColor
	oldOutput := color.Output
	oldStdout := os.Stdout

	r, w, _ := os.Pipe()
	color.NoColor = true
	color.Output = w
	os.Stdout = w

	fn()

	w.Close()
	color.Output = oldOutput
	color.NoColor = oldNoColor
	os.Stdout = oldStdout

	var buf bytes.Buffer
	io.Copy(&buf, r)
	r.Close()

	return buf.String()
}

func TestSuccess(t *testing.T) {
	output := captureColorOutput(func() {
		Success("refactoring complete")
	})
	assert.Contains(t, output, "refactoring complete")
	assert.Contains(t, output, "\n")
}

func TestSuccess_WithArgs(t *testing.T) {
	output := captureColorOutput(func() {
		Success("processed %d services", 11)
	})
	assert.Contains(t, output, "processed 11 services")
}

func TestError(t *testing.T) {
	output := captureColorOutput(func() {
		Error("something failed")
	})
	assert.Contains(t, output, "something failed")
	assert.Contains(t, output, "\n")
}

func TestError_WithArgs(t *testing.T) {
	output := captureColorOutput(func() {
		Error("failed to parse %s: %s", "adservice.yaml", "bad indent")
	})
	assert.Contains(t, output, "failed to parse adservice.yaml: bad indent")
}

func TestWarning(t *testing.T) {
	output := captureColorOutput(func() {
		Warning("values.yaml not found")
	})
	assert.Contains(t, output, "values.yaml not found")
	assert.Contains(t, output, "\n")
}

func TestWarning_WithArgs(t *testing.T) {
	output := captureColorOutput(func() {
		Warning("could not determine service name for %s", "ConfigMap")
	})
	assert.Contains(t, output, "could not determine service name for ConfigMap")
}

func TestInfo(t *testing.T) {
	output := captureColorOutput(func() {
		Info("informational message")
	})
	assert.Contains(t, output, "informational message")
	assert.Contains(t, output, "\n")
}

func TestInfo_WithArgs(t *testing.T) {
	output := captureColorOutput(func() {
		Info("chart: %s v%s", "helm", "0.1.0")
	})
	assert.Contains(t, output, "chart: helm v0.1.0")
}

func TestStep(t *testing.T) {
	output := captureColorOutput(func() {
		Step(1, "parsing input directory")
	})
	assert.Contains(t, output, "[1]")
	assert.Contains(t, output, "parsing input directory")
	assert.Contains(t, output, "\n")
}

func TestStep_WithArgs(t *testing.T) {
	output := captureColorOutput(func() {
		Step(3, "generating %s", "adservice.yaml")
	})
	assert.Contains(t, output, "[3]")
	assert.Contains(t, output, "generating adservice.yaml")
}

func TestHeader(t *testing.T) {
	output := captureColorOutput(func() {
		Header("Section Title")
	})
	assert.Contains(t, output, "Section Title")
	assert.Contains(t, output, "\n")
}

func TestHeader_WithArgs(t *testing.T) {
	output := captureColorOutput(func() {
		Header("Refactoring %s...", "chart")
	})
	assert.Contains(t, output, "Refactoring chart...")
}

func TestDetail(t *testing.T) {
	output := captureColorOutput(func() {
		Detail("reading: %s", "cartservice.yaml")
	})
	assert.Contains(t, output, "  reading: cartservice.yaml")
}

func TestColorVariables(t *testing.T) {
	assert.NotNil(t, Red)
	assert.NotNil(t, Green)
	assert.NotNil(t, Yellow)
	assert.NotNil(t, Blue)
	assert.NotNil(t, Cyan)
	assert.NotNil(t, Bold)
}

// Fatal itself calls os.Exit, so its formatting is covered through Error,
// which shares the prefix.
func TestError_FatalPrefix(t *testing.T) {
	output := captureColorOutput(func() {
		Error("fatal error message")
	})
	assert.Contains(t, output, "fatal error message")
}

func TestMultipleMessages(t *testing.T) {
	output := captureColorOutput(func() {
		Info("line 1")
		Info("line 2")
		Info("line 3")
	})
	assert.Contains(t, output, "line 1")
	assert.Contains(t, output, "line 2")
	assert.Contains(t, output, "line 3")
}

func TestEmptyMessage(t *testing.T) {
	output := captureColorOutput(func() {
		Info("")
	})
	// Should just have a newline
	assert.Equal(t, "\n", output)
}

func TestSpecialCharacters(t *testing.T) {
	output := captureColorOutput(func() {
		Info("path: ./refactored/templates/_helpers-microservice.yaml")
	})
	assert.Contains(t, output, "./refactored/templates/_helpers-microservice.yaml")
}
