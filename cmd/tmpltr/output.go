package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/byteowlz/tmpltr/pkg/core"
)

// emit writes v as indented JSON with --json, otherwise calls human with
// the command's output.
func emit(cmd *cobra.Command, v any, human func(w io.Writer)) error {
	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("encode output: %w", err)
		}
		return nil
	}
	human(cmd.OutOrStdout())
	return nil
}

// formatValue renders a content value for the terminal: scalars as their
// text, everything else as JSON.
func formatValue(v core.Value) string {
	if v.IsScalar() || v.IsAbsent() {
		return v.Text()
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return v.Text()
	}
	return string(data)
}

func printDiagnostics(w io.Writer, diags []core.Diagnostic) {
	for _, d := range diags {
		fmt.Fprintf(w, "%-7s %s\n", d.Severity, d.String())
	}
}

// readStdin reads all of standard input for "-" values and --batch.
func readStdin(cmd *cobra.Command) (string, error) {
	data, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return "", &core.IOError{Path: "<stdin>", Err: err}
	}
	return strings.TrimSuffix(string(data), "\n"), nil
}
