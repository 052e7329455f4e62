package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/byteowlz/tmpltr/pkg/service"
)

var (
	compileOutput string
	compileFormat string
	compileCheck  bool
)

var compileCmd = &cobra.Command{
	Use:   "compile <content>",
	Short: "Render a content file with its template",
	Long: `Compile validates the content file, converts its markdown blocks to Typst
markup and runs typst on the template named in meta.template. Validation
errors stop the render. Use --check to compile without keeping the output.`,
	Args: exactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := newService()
		if err != nil {
			return err
		}
		res, err := svc.Compile(context.Background(), service.CompileRequest{
			File:   args[0],
			Output: compileOutput,
			Format: compileFormat,
			Check:  compileCheck,
		})
		if err != nil {
			if len(res.Diagnostics) > 0 && !jsonOutput {
				printDiagnostics(cmd.ErrOrStderr(), res.Diagnostics)
			}
			return err
		}
		return emit(cmd, res, func(w io.Writer) {
			for _, warn := range res.Warnings {
				slog.Warn(warn.Message, "path", warn.Path, "line", warn.Line)
			}
			fmt.Fprintln(w, describeCompile(res))
		})
	},
}

// describeCompile is the one-line summary of a render.
func describeCompile(res service.CompileResult) string {
	took := res.Duration.Round(time.Millisecond)
	if res.Output == "" {
		return fmt.Sprintf("Checked in %s", took)
	}
	return fmt.Sprintf("Compiled %s (%s) in %s", res.Output, humanize.Bytes(uint64(res.Size)), took)
}

func init() {
	rootCmd.AddCommand(compileCmd)
	compileCmd.Flags().StringVarP(&compileOutput, "output", "o", "", "Output file (default: <content>.<format>)")
	compileCmd.Flags().StringVar(&compileFormat, "format", "", "Output format: pdf, svg or png (default: from --output, else pdf)")
	compileCmd.Flags().BoolVar(&compileCheck, "check", false, "Compile without writing the output")
}
