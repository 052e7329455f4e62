package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/byteowlz/tmpltr/pkg/service"
)

var (
	initOutput      string
	initSchema      string
	initForce       bool
	initAnalyzeData bool
)

// initCmd represents the init command
var initCmd = &cobra.Command{
	Use:   "init <template>",
	Short: "Create or complete the content file of a template",
	Long: `Init scans a Typst template for editable markers and writes a content
file with every declared field. Existing values are kept; only missing
fields are added with their defaults. Use --force to start from scratch.

With --analyze-data, data the template reads in code (data.x, blocks.x and
get(data, "x", default: ...)) without declaring a marker is seeded too.`,
	Args: exactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := newService()
		if err != nil {
			return err
		}
		res, err := svc.Init(context.Background(), service.InitRequest{
			Template:     args[0],
			Output:       initOutput,
			SchemaOutput: initSchema,
			Force:        initForce,
			AnalyzeData:  initAnalyzeData,
		})
		if err != nil {
			return err
		}
		return emitInit(cmd, res)
	},
}

// emitInit prints an init result, or the content itself in dry-run mode.
func emitInit(cmd *cobra.Command, res service.InitResult) error {
	if dryRun && !jsonOutput {
		_, _ = cmd.OutOrStdout().Write(res.Content)
		return nil
	}
	return emit(cmd, res, func(w io.Writer) {
		verb := "Created"
		if res.Existing {
			verb = "Updated"
		}
		fmt.Fprintf(w, "%s %s (%d fields, %d blocks)\n", verb, res.Output, res.Fields, res.Blocks)
		if res.Schema != "" {
			fmt.Fprintf(w, "Wrote JSON Schema to %s\n", res.Schema)
		}
	})
}

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().StringVarP(&initOutput, "output", "o", "", "Content file to write (default: <template>.yaml)")
	initCmd.Flags().StringVar(&initSchema, "schema", "", "Also write the JSON Schema of the template to this file")
	initCmd.Flags().BoolVar(&initForce, "force", false, "Discard an existing content file")
	initCmd.Flags().BoolVar(&initAnalyzeData, "analyze-data", false, "Also seed data the template reads without a marker")
}
