package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/byteowlz/tmpltr/pkg/content"
	"github.com/byteowlz/tmpltr/pkg/reconcile"
)

var setBatch bool

// setOutput is the JSON form of a set run.
type setOutput struct {
	File    string                `json:"file"`
	Results []reconcile.SetResult `json:"results"`
}

var setCmd = &cobra.Command{
	Use:   "set <content> <path|title> <value|->",
	Short: "Write a value into a content file",
	Long: `Set writes a value at a dotted path or into the block with the given
title, keeping the rest of the file (comments included) as it is. A value
of "-" is read from stdin.

  tmpltr set quote.yaml client.name "ACME Corp"
  tmpltr set quote.yaml Introduction - < intro.md
  tmpltr set Introduction from last "New text"
  echo '{"client.name": "ACME"}' | tmpltr set quote.yaml --batch`,
	Args: func(cmd *cobra.Command, args []string) error {
		switch {
		case setBatch:
			return exactArgs(1)(cmd, args)
		case isFromLast(args):
			return nil
		}
		return exactArgs(3)(cmd, args)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := newService()
		if err != nil {
			return err
		}
		ctx := context.Background()

		switch {
		case setBatch:
			text, err := readStdin(cmd)
			if err != nil {
				return err
			}
			results, err := svc.SetBatch(ctx, args[0], content.ParseValue(text))
			if err != nil {
				return err
			}
			return reportSet(cmd, args[0], results)

		case isFromLast(args):
			value, err := argValue(cmd, args[3])
			if err != nil {
				return err
			}
			file, res, err := svc.SetLast(ctx, args[0], value)
			if err != nil {
				return err
			}
			return reportSet(cmd, file, []reconcile.SetResult{res})
		}

		value, err := argValue(cmd, args[2])
		if err != nil {
			return err
		}
		res, err := svc.SetText(ctx, args[0], args[1], value)
		if err != nil {
			return err
		}
		return reportSet(cmd, args[0], []reconcile.SetResult{res})
	},
}

// isFromLast reports the "<title> from last <value>" form.
func isFromLast(args []string) bool {
	return len(args) == 4 && args[1] == "from" && args[2] == "last"
}

func argValue(cmd *cobra.Command, arg string) (string, error) {
	if arg == "-" {
		return readStdin(cmd)
	}
	return arg, nil
}

func reportSet(cmd *cobra.Command, file string, results []reconcile.SetResult) error {
	for _, res := range results {
		for _, w := range res.Warnings {
			slog.Warn(w.Message, "path", w.Path, "kind", w.Kind)
		}
	}
	return emit(cmd, setOutput{File: file, Results: results}, func(w io.Writer) {
		for _, res := range results {
			fmt.Fprintf(w, "Set %s in %s\n", res.Path, file)
		}
	})
}

func init() {
	rootCmd.AddCommand(setCmd)
	setCmd.Flags().BoolVar(&setBatch, "batch", false, "Read an object of path/value pairs (JSON or YAML) from stdin")
}
