package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/byteowlz/tmpltr/pkg/content"
	"github.com/byteowlz/tmpltr/pkg/reconcile"
)

var getDefault string

var getCmd = &cobra.Command{
	Use:   "get <content> <path|title>",
	Short: "Read a value from a content file",
	Long: `Get prints the value at a dotted path or of the block with the given
title. Missing values fall back to the template default, then to --default.`,
	Args: exactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := newService()
		if err != nil {
			return err
		}
		var opts []reconcile.GetOption
		if cmd.Flags().Changed("default") {
			opts = append(opts, reconcile.WithDefault(content.ParseScalar(getDefault)))
		}
		res, err := svc.Get(context.Background(), args[0], args[1], opts...)
		if err != nil {
			return err
		}
		return emit(cmd, res, func(w io.Writer) {
			fmt.Fprintln(w, formatValue(res.Value))
		})
	},
}

func init() {
	rootCmd.AddCommand(getCmd)
	getCmd.Flags().StringVar(&getDefault, "default", "", "Value to print when the path has no value")
}
