// Package cliutil provides shared helpers for the sheetcalc command-line tool.
package cliutil

import (
	"fmt"
	"io"
	"os"
	"strings"
)

// GetOutput opens the output file or returns w when outputFile is empty.
func GetOutput(w io.Writer, outputFile string) (io.Writer, func() error, error) {
	if outputFile == "" {
		return w, func() error { return nil }, nil
	}
	f, err := os.Create(outputFile)
	if err != nil {
		return nil, nil, err
	}
	return f, f.Close, nil
}

// PrintError writes a formatted error message to w.
func PrintError(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "error: "+format+"\n", args...)
}

// SplitAssignment splits a NAME=VALUE argument. The value may be empty and
// may itself contain '='.
func SplitAssignment(arg string) (name, value string, err error) {
	name, value, ok := strings.Cut(arg, "=")
	if !ok || strings.TrimSpace(name) == "" {
		return "", "", fmt.Errorf("expected NAME=VALUE, got %q", arg)
	}
	return strings.TrimSpace(name), value, nil
}
