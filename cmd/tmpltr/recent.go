package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/byteowlz/tmpltr/pkg/core"
)

var recentLimit int

var recentCmd = &cobra.Command{
	Use:   "recent",
	Short: "List recently used content files",
	Args:  exactArgs(0),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := newService()
		if err != nil {
			return err
		}
		docs, err := svc.Recent(context.Background())
		if err != nil {
			return err
		}
		if recentLimit > 0 && len(docs) > recentLimit {
			docs = docs[:recentLimit]
		}
		if docs == nil {
			docs = []core.RecentDocument{}
		}
		return emit(cmd, docs, func(w io.Writer) {
			if len(docs) == 0 {
				fmt.Fprintln(w, "No recent documents.")
				return
			}
			tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
			for _, d := range docs {
				tmpl := d.TemplateID
				if d.TemplateVersion != "" {
					tmpl += " " + d.TemplateVersion
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", d.File, d.Title, tmpl, humanize.Time(d.LastUsedAt))
			}
			_ = tw.Flush()
		})
	},
}

func init() {
	rootCmd.AddCommand(recentCmd)
	recentCmd.Flags().IntVarP(&recentLimit, "limit", "n", 0, "Show at most this many documents")
}
