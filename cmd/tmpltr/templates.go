package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/byteowlz/tmpltr/pkg/service"
)

var templatesCmd = &cobra.Command{
	Use:   "templates [dir...]",
	Short: "List the Typst templates in the template directories",
	Long: `Templates scans every .typ file under the given directories, or under
$TMPLTR_TEMPLATES, the nearest templates/ directory and the user template
directory, and lists the fields and blocks each declares.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := newService()
		if err != nil {
			return err
		}
		summaries, err := svc.Templates(context.Background(), args...)
		if err != nil {
			return err
		}
		if summaries == nil {
			summaries = []service.TemplateSummary{}
		}
		return emit(cmd, summaries, func(w io.Writer) {
			if len(summaries) == 0 {
				fmt.Fprintln(w, "No templates found.")
				return
			}
			tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "TEMPLATE\tID\tVERSION\tFIELDS\tBLOCKS\tDESCRIPTION")
			for _, s := range summaries {
				if s.Error != "" {
					fmt.Fprintf(tw, "%s\t%s\t\t\t\terror: %s\n", s.Path, s.ID, s.Error)
					continue
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%s\n", s.Path, s.ID, s.Version, s.Fields, s.Blocks, s.Description)
			}
			_ = tw.Flush()
		})
	},
}

func init() {
	rootCmd.AddCommand(templatesCmd)
}
