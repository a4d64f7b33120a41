// Package ui prints chartfold's colored console output.
package ui

import (
	"fmt"
	"os"

	"github.com/fatih/color"
)

var (
	Red    = color.New(color.FgRed)
	Green  = color.New(color.FgGreen)
	Yellow = color.New(color.FgYellow)
	Blue   = color.New(color.FgBlue)
	Cyan   = color.New(color.FgCyan)
	Bold   = color.New(color.Bold)
)

// Success prints a green line marked with a check.
func Success(format string, args ...any) {
	line(Green, "✓ ", format, args)
}

// Error prints a red line marked with a cross.
func Error(format string, args ...any) {
	line(Red, "✗ ", format, args)
}

// Warning prints a yellow warning line.
func Warning(format string, args ...any) {
	line(Yellow, "⚠ ", format, args)
}

// Info prints a blue line.
func Info(format string, args ...any) {
	line(Blue, "", format, args)
}

// Header prints a bold section line.
func Header(format string, args ...any) {
	line(Bold, "", format, args)
}

// Step prints a cyan step number followed by the message.
func Step(n int, format string, args ...any) {
	Cyan.Printf("[%d] ", n)
	fmt.Printf(format+"\n", args...)
}

// Detail prints an indented detail line.
func Detail(format string, args ...any) {
	fmt.Printf("  "+format+"\n", args...)
}

// Fatal prints a red error to stderr and exits.
func Fatal(format string, args ...any) {
	Red.Fprintf(os.Stderr, "✗ "+format+"\n", args...)
	os.Exit(1)
}

func line(c *color.Color, prefix, format string, args []any) {
	c.Printf(prefix+format+"\n", args...)
}
