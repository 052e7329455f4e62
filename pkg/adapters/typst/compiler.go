package typst

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/byteowlz/tmpltr/pkg/core"
)

// DefaultBinary is looked up in PATH when no binary is configured.
const DefaultBinary = "typst"

// Formats lists the output formats the compiler accepts.
var Formats = []string{"pdf", "svg", "png"}

// Compiler implements core.Renderer by running `typst compile`.
type Compiler struct {
	Binary    string
	FontPaths []string
	Logger    *slog.Logger
}

var _ core.Renderer = (*Compiler)(nil)

// NewCompiler creates a compiler for binary (DefaultBinary when empty).
func NewCompiler(binary string, fontPaths []string, logger *slog.Logger) *Compiler {
	if binary == "" {
		binary = DefaultBinary
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Compiler{Binary: binary, FontPaths: fontPaths, Logger: logger}
}

// FormatOf returns the output format for job: the explicit one, else the
// output extension, else pdf.
func FormatOf(format, output string) (string, error) {
	if format == "" {
		format = strings.TrimPrefix(strings.ToLower(filepath.Ext(output)), ".")
		if format == "" {
			format = "pdf"
		}
	}
	format = strings.ToLower(format)
	for _, f := range Formats {
		if f == format {
			return format, nil
		}
	}
	return "", fmt.Errorf("%w: unsupported output format %q (want one of %s)", core.ErrUsage, format, strings.Join(Formats, ", "))
}

// Args builds the typst command line for job.
func (c *Compiler) Args(job core.RenderJob, format, output string) ([]string, error) {
	data, err := json.Marshal(job.Data)
	if err != nil {
		return nil, fmt.Errorf("encode render data: %w", err)
	}
	args := []string{"compile", "--format", format, "--input", "data=" + string(data)}
	for _, p := range c.FontPaths {
		args = append(args, "--font-path", p)
	}
	return append(args, job.Template, output), nil
}

// Render compiles job.Template with job.Data. Compiler failures come back
// as *core.RenderError carrying typst's diagnostics.
func (c *Compiler) Render(ctx context.Context, job core.RenderJob) (core.RenderOutput, error) {
	format, err := FormatOf(job.Format, job.Output)
	if err != nil {
		return core.RenderOutput{}, err
	}

	output := job.Output
	if job.CheckOnly {
		tmp, err := os.MkdirTemp("", "tmpltr-check-")
		if err != nil {
			return core.RenderOutput{}, &core.IOError{Path: os.TempDir(), Err: err}
		}
		defer os.RemoveAll(tmp)
		output = filepath.Join(tmp, "out."+format)
	}
	if output == "" {
		output = strings.TrimSuffix(job.Template, filepath.Ext(job.Template)) + "." + format
	}

	args, err := c.Args(job, format, output)
	if err != nil {
		return core.RenderOutput{}, err
	}

	c.Logger.Debug("executing typst", "binary", c.Binary, "template", job.Template, "output", output)
	start := time.Now()

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, c.Binary, args...)
	cmd.Stderr = &stderr
	runErr := cmd.Run()
	elapsed := time.Since(start)

	if runErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(runErr, &exitErr) {
			return core.RenderOutput{}, &core.RenderError{
				Message: fmt.Sprintf("failed to execute %s: %v", c.Binary, runErr),
				Err:     runErr,
			}
		}
		if strings.TrimSpace(stderr.String()) == "" || !warningsOnly(stderr.String()) {
			return core.RenderOutput{}, &core.RenderError{
				Message: "typst compilation failed: " + firstLine(stderr.String()),
				Details: strings.TrimSpace(stderr.String()),
				Err:     runErr,
			}
		}
	}
	if msg := strings.TrimSpace(stderr.String()); msg != "" {
		c.Logger.Warn("typst reported warnings", "template", job.Template, "stderr", msg)
	}

	result := core.RenderOutput{Format: format, Duration: elapsed}
	if job.CheckOnly {
		result.Format = "check"
		return result, nil
	}
	result.Output = output
	if info, err := os.Stat(output); err == nil {
		result.Size = info.Size()
	}
	return result, nil
}

// warningsOnly reports whether every non-empty stderr line is a warning.
func warningsOnly(stderr string) bool {
	for _, line := range strings.Split(stderr, "\n") {
		line = strings.ToLower(strings.TrimSpace(line))
		if line != "" && !strings.HasPrefix(line, "warning") {
			return false
		}
	}
	return true
}

func firstLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return line
		}
	}
	return "no diagnostics"
}
