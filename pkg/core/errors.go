package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Common errors.
var (
	ErrNoRecentDocument = errors.New("no recent document found in cache")
	ErrNoTemplate       = errors.New("content file does not name a template (meta.template)")
	ErrTemplateNotFound = errors.New("template not found")
)

// ParseError reports template source that cannot be scanned.
type ParseError struct {
	Position Position
	Reason   string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error at %s: %s", e.Position, e.Reason)
}

// UnterminatedMarkerError reports a marker whose argument list or body is
// still open at end of input.
type UnterminatedMarkerError struct {
	Position Position
	Marker   string
}

func (e *UnterminatedMarkerError) Error() string {
	return fmt.Sprintf("unterminated %s marker starting at %s", e.Marker, e.Position)
}

// DuplicateFieldIDError reports an id declared by more than one marker.
type DuplicateFieldIDError struct {
	ID        string
	Positions []Position
}

func (e *DuplicateFieldIDError) Error() string {
	pos := make([]string, len(e.Positions))
	for i, p := range e.Positions {
		pos[i] = p.String()
	}
	return fmt.Sprintf("duplicate field id %q declared at %s", e.ID, strings.Join(pos, ", "))
}

// PathNotFoundError reports a path or title that resolves to nothing.
type PathNotFoundError struct {
	Path string
}

func (e *PathNotFoundError) Error() string {
	return fmt.Sprintf("path not found: %s", e.Path)
}

// AmbiguousTitleError reports a title shared by several blocks.
type AmbiguousTitleError struct {
	Title      string
	Candidates []string
}

func (e *AmbiguousTitleError) Error() string {
	return fmt.Sprintf("ambiguous title %q: matches %s", e.Title, strings.Join(e.Candidates, ", "))
}

// TypeMismatchError reports a value whose shape does not fit its field.
type TypeMismatchError struct {
	Path     string
	Expected string
	Found    string
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("type mismatch at %s: expected %s, found %s", e.Path, e.Expected, e.Found)
}

// ShapeError reports a structurally invalid table.
type ShapeError struct {
	Path   string
	Reason string
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("shape error at %s: %s", e.Path, e.Reason)
}

// LockTimeoutError reports a content file that stayed locked too long.
type LockTimeoutError struct {
	File string
	Wait time.Duration
}

func (e *LockTimeoutError) Error() string {
	return fmt.Sprintf("timed out after %s waiting for lock on %s", e.Wait, e.File)
}

// IOError wraps a filesystem failure with the offending path.
type IOError struct {
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// RenderError reports a failure of the external renderer.
type RenderError struct {
	Message string
	Details string
	Err     error
}

func (e *RenderError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("render failed: %s\n%s", e.Message, e.Details)
	}
	return fmt.Sprintf("render failed: %s", e.Message)
}

func (e *RenderError) Unwrap() error { return e.Err }

// ValidationError carries the diagnostics of a failed validation run.
type ValidationError struct {
	Diagnostics []Diagnostic
}

func (e *ValidationError) Error() string {
	errs, warnings := CountBySeverity(e.Diagnostics)
	return fmt.Sprintf("validation failed: %d errors, %d warnings", errs, warnings)
}

// Kind names the error class for machine-readable output.
func Kind(err error) string {
	var (
		parseErr      *ParseError
		unterminated  *UnterminatedMarkerError
		duplicate     *DuplicateFieldIDError
		notFound      *PathNotFoundError
		ambiguous     *AmbiguousTitleError
		mismatch      *TypeMismatchError
		shape         *ShapeError
		lockTimeout   *LockTimeoutError
		ioErr         *IOError
		renderErr     *RenderError
		validationErr *ValidationError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &parseErr):
		return "parse_error"
	case errors.As(err, &unterminated):
		return "unterminated_marker"
	case errors.As(err, &duplicate):
		return "duplicate_field_id"
	case errors.As(err, &notFound):
		return "path_not_found"
	case errors.As(err, &ambiguous):
		return "ambiguous_title"
	case errors.As(err, &mismatch):
		return "type_mismatch"
	case errors.As(err, &shape):
		return "shape_error"
	case errors.As(err, &lockTimeout):
		return "lock_timeout"
	case errors.As(err, &renderErr):
		return "render_error"
	case errors.As(err, &validationErr):
		return "validation_error"
	case errors.Is(err, ErrNoRecentDocument):
		return "no_recent_document"
	case errors.Is(err, ErrNoTemplate):
		return "content_error"
	case errors.Is(err, ErrTemplateNotFound):
		return "template_not_found"
	case errors.As(err, &ioErr):
		return "io_error"
	case errors.Is(err, ErrUsage):
		return "usage_error"
	}
	return "internal_error"
}

// ErrUsage marks invalid command input.
var ErrUsage = errors.New("invalid usage")

// ExitCode maps an error to the process exit status: 0 success, 1 user or
// validation error, 2 renderer error, 10 internal error.
func ExitCode(err error) int {
	switch Kind(err) {
	case "":
		return 0
	case "render_error":
		return 2
	case "internal_error":
		return 10
	}
	return 1
}
