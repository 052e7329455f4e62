package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/byteowlz/tmpltr"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of tmpltr",
	Run: func(cmd *cobra.Command, args []string) {
		v := strings.TrimSpace(tmpltr.Version)
		_ = emit(cmd, map[string]string{"version": v}, func(w io.Writer) {
			fmt.Fprintf(w, "tmpltr version %s\n", v)
		})
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
