package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/byteowlz/tmpltr/pkg/core"
)

var blocksCmd = &cobra.Command{
	Use:   "blocks <content>",
	Short: "List the editable blocks of a content file's template",
	Args:  exactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := newService()
		if err != nil {
			return err
		}
		fields, err := svc.Blocks(context.Background(), args[0])
		if err != nil {
			return err
		}
		infos := make([]core.BlockInfo, 0, len(fields))
		for _, f := range fields {
			infos = append(infos, f.Info())
		}
		return emit(cmd, infos, func(w io.Writer) {
			if len(infos) == 0 {
				fmt.Fprintln(w, "No blocks.")
				return
			}
			tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "PATH\tTITLE\tKIND\tFORMAT")
			for _, b := range infos {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", b.Path, b.Title, b.Kind, b.Format)
			}
			_ = tw.Flush()
		})
	},
}

func init() {
	rootCmd.AddCommand(blocksCmd)
}
