package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/chartfold/chartfold/internal/snapshot"
)

// executeCmd executes the root command with the given args and returns the output.
func executeCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	buf := new(bytes.Buffer)
	rootCmd.SetArgs(args)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	err := rootCmd.Execute()
	return buf.String(), err
}

// resetFlags restores the flag variables a test run may have mutated, so
// cobra's package-level command state does not leak between tests.
func resetFlags(t *testing.T) {
	t.Helper()
	t.Cleanup(func() {
		refactorDryRun = false
		refactorValidate = false
		refactorNoTransform = false
		refactorForce = false
		refactorSkipSnapshot = false
		refactorVerbose = false
		inspectVerbose = false
		checkOnly = false
		snapshotsKeep = snapshot.DefaultRetention
	})
}

const webChartYAML = `apiVersion: v2
name: demo
version: 0.1.0
appVersion: "1.0.0"
`

const webManifest = `apiVersion: apps/v1
kind: Deployment
metadata:
  name: {{ include "demo.fullname" . }}-web
  labels:
    app: web
  {{- include "demo.labels" . | nindent 4 }}
spec:
  selector:
    matchLabels:
      app: web
    {{- include "demo.selectorLabels" . | nindent 6 }}
  template:
    metadata:
      labels:
        app: web
      {{- include "demo.selectorLabels" . | nindent 8 }}
    spec:
      containers:
      - name: web
        image: nginx:1.27
`

// webChart writes a one-service input chart and returns its directory.
func webChart(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "templates"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Chart.yaml"), []byte(webChartYAML), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "values.yaml"), []byte("web: {}\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "templates", "web.yaml"), []byte(webManifest), 0644))
	return dir
}
