package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/byteowlz/tmpltr/pkg/service"
)

var (
	newOutput string
	newForce  bool
)

var newCmd = &cobra.Command{
	Use:   "new <template-name>",
	Short: "Create a content file from a template found by name",
	Long: `New looks up <template-name>.typ in $TMPLTR_TEMPLATES, the nearest
templates/ directory and the user template directory, then runs init on it.
A path is used as given.`,
	Args: exactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := newService()
		if err != nil {
			return err
		}
		res, err := svc.New(context.Background(), args[0], service.InitRequest{
			Output: newOutput,
			Force:  newForce,
		})
		if err != nil {
			return err
		}
		return emitInit(cmd, res)
	},
}

func init() {
	rootCmd.AddCommand(newCmd)
	newCmd.Flags().StringVarP(&newOutput, "output", "o", "", "Content file to write (default: <template>.yaml)")
	newCmd.Flags().BoolVar(&newForce, "force", false, "Discard an existing content file")
}
