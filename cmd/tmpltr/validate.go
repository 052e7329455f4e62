package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/byteowlz/tmpltr/pkg/core"
)

var validateJSONSchema bool

// validateOutput is the JSON form of a validate run.
type validateOutput struct {
	File        string            `json:"file"`
	Valid       bool              `json:"valid"`
	Errors      int               `json:"errors"`
	Warnings    int               `json:"warnings"`
	Diagnostics []core.Diagnostic `json:"diagnostics"`
}

var validateCmd = &cobra.Command{
	Use:   "validate <content>",
	Short: "Check a content file against its template",
	Long: `Validate reports missing, unknown and mistyped fields. It exits with a
non-zero status when any error is found; warnings alone pass.`,
	Args: exactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := newService()
		if err != nil {
			return err
		}
		diags, err := svc.Validate(context.Background(), args[0], validateJSONSchema)
		if err != nil {
			return err
		}
		errs, warnings := core.CountBySeverity(diags)
		out := validateOutput{
			File:        args[0],
			Valid:       errs == 0,
			Errors:      errs,
			Warnings:    warnings,
			Diagnostics: diags,
		}
		if out.Diagnostics == nil {
			out.Diagnostics = []core.Diagnostic{}
		}
		if err := emit(cmd, out, func(w io.Writer) {
			printDiagnostics(w, diags)
			if out.Valid {
				fmt.Fprintf(w, "%s is valid (%d warnings)\n", args[0], warnings)
				return
			}
			fmt.Fprintf(w, "%s: %d errors, %d warnings\n", args[0], errs, warnings)
		}); err != nil {
			return err
		}
		if !out.Valid {
			return &core.ValidationError{Diagnostics: diags}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
	validateCmd.Flags().BoolVar(&validateJSONSchema, "json-schema", false, "Also check against the generated JSON Schema")
}
