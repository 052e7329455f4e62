package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/byteowlz/tmpltr"
	"github.com/byteowlz/tmpltr/pkg/core"
)

var (
	jsonOutput  bool
	verbose     bool
	quiet       bool
	dryRun      bool
	lockTimeout time.Duration
	cacheDir    string
	typstBinary string
	fontPaths   []string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "tmpltr",
	Short: "Fill Typst templates from structured content files",
	Long: `tmpltr keeps a YAML content file in line with the editable fields and
blocks a Typst template declares, edits it by path or block title without
disturbing the rest of the file, and renders it with typst.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelWarn
		switch {
		case verbose:
			level = slog.LevelDebug
		case quiet:
			level = slog.LevelError
		}

		opts := &slog.HandlerOptions{
			Level: level,
		}
		logger := slog.New(slog.NewTextHandler(os.Stderr, opts))
		slog.SetDefault(logger)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		if strings.HasPrefix(err.Error(), "unknown command") {
			err = usageError(err)
		}
		reportError(err)
		os.Exit(core.ExitCode(err))
	}
}

func init() {
	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return usageError(err)
	})

	flags := rootCmd.PersistentFlags()
	flags.BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	flags.BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	flags.BoolVarP(&quiet, "quiet", "q", false, "Only log errors")
	flags.BoolVar(&dryRun, "dry-run", false, "Show what would change without writing files")
	flags.DurationVar(&lockTimeout, "lock-timeout", 5*time.Second, "How long to wait for a locked content file")
	flags.StringVar(&cacheDir, "cache-dir", "", "Directory of the recent documents cache")
	flags.StringVar(&typstBinary, "typst", "", "Path to the typst binary")
	flags.StringSliceVar(&fontPaths, "font-path", nil, "Additional font directory for typst (repeatable)")
}

// newService builds the service from the global flags.
func newService() (*tmpltr.Service, error) {
	opts := []tmpltr.Option{
		tmpltr.WithLogger(slog.Default()),
		tmpltr.WithLockTimeout(lockTimeout),
		tmpltr.WithDryRun(dryRun),
		tmpltr.WithFontPaths(fontPaths...),
	}
	if cacheDir != "" {
		opts = append(opts, tmpltr.WithCacheDir(cacheDir))
	}
	if typstBinary != "" {
		opts = append(opts, tmpltr.WithTypst(typstBinary))
	}
	return tmpltr.New(opts...)
}

// errorOutput is the JSON form of a failed command.
type errorOutput struct {
	Status  string `json:"status"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

func reportError(err error) {
	if jsonOutput {
		enc := json.NewEncoder(os.Stderr)
		enc.SetIndent("", "  ")
		_ = enc.Encode(errorOutput{
			Status:  "error",
			Kind:    core.Kind(err),
			Message: err.Error(),
			Code:    core.ExitCode(err),
		})
		return
	}
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
}

func usageError(err error) error {
	return fmt.Errorf("%w: %v", core.ErrUsage, err)
}

// exactArgs is cobra.ExactArgs reporting a usage error.
func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := cobra.ExactArgs(n)(cmd, args); err != nil {
			return usageError(err)
		}
		return nil
	}
}
