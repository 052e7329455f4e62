package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/aretw0/lifecycle/pkg/core/supervisor"
	"github.com/aretw0/lifecycle/pkg/core/worker"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	lifecycleadapter "github.com/byteowlz/tmpltr/pkg/adapters/lifecycle"
	"github.com/byteowlz/tmpltr/pkg/core"
	"github.com/byteowlz/tmpltr/pkg/service"
	"github.com/byteowlz/tmpltr/pkg/watch"
)

var (
	watchDebounce time.Duration
	watchPattern  string
	watchFormat   string
)

// watchEvent is the JSON line printed for every finished pass.
type watchEvent struct {
	File     string `json:"file"`
	Pass     string `json:"pass"`
	Status   string `json:"status"`
	Kind     string `json:"kind,omitempty"`
	Error    string `json:"error,omitempty"`
	Output   string `json:"output,omitempty"`
	Size     int64  `json:"size,omitempty"`
	Duration string `json:"duration"`
}

var watchCmd = &cobra.Command{
	Use:   "watch <content>...",
	Short: "Recompile content files whenever they or their templates change",
	Long: `Watch compiles each content file once, then again after every change to
the file or to its template. Changes during a compile queue exactly one
more compile. Stop with Ctrl+C.`,
	Args: func(cmd *cobra.Command, args []string) error {
		if err := cobra.MinimumNArgs(1)(cmd, args); err != nil {
			return usageError(err)
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := newService()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		targets := make(map[string][]string)
		for _, file := range args {
			l, err := svc.Load(ctx, file)
			if err != nil {
				return err
			}
			targets[file] = append(targets[file], file)
			targets[l.Template.Path] = append(targets[l.Template.Path], file)
		}

		var mu sync.Mutex
		outputs := make(map[string]core.RenderOutput)

		results := lifecycleadapter.NewSource()
		seq := watch.NewSequencer(watch.SequencerConfig{
			Debounce: watchDebounce,
			Pass: func(ctx context.Context, file string) error {
				res, err := svc.Compile(ctx, service.CompileRequest{File: file, Format: watchFormat})
				if err != nil {
					return err
				}
				mu.Lock()
				outputs[file] = res.RenderOutput
				mu.Unlock()
				return nil
			},
			OnResult: results.Publish,
			Logger:   slog.Default(),
		})
		if err := results.Start(ctx); err != nil {
			return err
		}

		spec := supervisor.Spec{
			Name: "watch",
			Type: string(worker.TypeGoroutine),
			Factory: func() (worker.Worker, error) {
				return watch.NewWorker(watch.WorkerConfig{
					Targets:   targets,
					Pattern:   watchPattern,
					Sequencer: seq,
					Logger:    slog.Default(),
				}), nil
			},
			Backoff: supervisor.Backoff{
				InitialInterval: 100 * time.Millisecond,
				MaxInterval:     5 * time.Second,
				Multiplier:      2,
				ResetDuration:   30 * time.Second,
				MaxRestarts:     5,
				MaxDuration:     time.Minute,
			},
			RestartPolicy: supervisor.RestartOnFailure,
		}
		sup := supervisor.New("tmpltr-watch", supervisor.StrategyOneForOne, spec)
		if err := sup.Start(ctx); err != nil {
			return fmt.Errorf("failed to start watcher: %w", err)
		}

		for _, file := range args {
			seq.Notify(ctx, file)
		}
		if !jsonOutput {
			fmt.Fprintf(cmd.ErrOrStderr(), "Watching %d content files. Press Ctrl+C to stop.\n", len(args))
		}

		for ev := range results.Events() {
			res, ok := ev.(watch.Result)
			if !ok {
				continue
			}
			mu.Lock()
			out := outputs[res.File]
			mu.Unlock()
			printPass(cmd, res, out)
		}

		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := sup.Stop(stopCtx); err != nil {
			slog.Warn("failed to stop watcher", "error", err)
		}
		return seq.Close(5 * time.Second)
	},
}

func printPass(cmd *cobra.Command, res watch.Result, out core.RenderOutput) {
	took := res.Duration.Round(time.Millisecond)
	if jsonOutput {
		ev := watchEvent{File: res.File, Pass: res.PassID, Status: "ok", Duration: took.String()}
		if res.Err != nil {
			ev.Status, ev.Kind, ev.Error = "error", core.Kind(res.Err), res.Err.Error()
		} else {
			ev.Output, ev.Size = out.Output, out.Size
		}
		_ = json.NewEncoder(cmd.OutOrStdout()).Encode(ev)
		return
	}

	stamp := time.Now().Format("15:04:05")
	if res.Err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "[%s] %s: %v\n", stamp, res.File, res.Err)
		var validationErr *core.ValidationError
		if errors.As(res.Err, &validationErr) {
			printDiagnostics(cmd.ErrOrStderr(), validationErr.Diagnostics)
		}
		return
	}
	fmt.Fprintf(cmd.OutOrStdout(), "[%s] compiled %s -> %s (%s) in %s\n",
		stamp, res.File, out.Output, humanize.Bytes(uint64(out.Size)), took)
}

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", watch.DefaultDebounce, "Quiet period before recompiling")
	watchCmd.Flags().StringVar(&watchPattern, "pattern", "", "Also compile other content files in the watched directories that match this glob (e.g. \"*.yaml\")")
	watchCmd.Flags().StringVar(&watchFormat, "format", "", "Output format: pdf, svg or png")
}
