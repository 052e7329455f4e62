package core

import (
	"context"
	"time"
)

// RenderJob is everything the external renderer needs to produce a
// document: the template, the prepared content data and the target.
type RenderJob struct {
	Template string
	Output   string
	// Format is the output format ("pdf", "svg", "png"); empty means infer
	// from Output.
	Format string
	// Data is the content tree with blocks already converted to markup.
	Data map[string]any
	// CheckOnly compiles without keeping the output.
	CheckOnly bool
}

// RenderOutput describes a finished render.
type RenderOutput struct {
	Output   string        `json:"output,omitempty"`
	Format   string        `json:"format"`
	Size     int64         `json:"size"`
	Duration time.Duration `json:"duration"`
}

// Renderer produces a document from a template and content data.
// Implementations wrap an external engine; failures are *RenderError.
type Renderer interface {
	Render(ctx context.Context, job RenderJob) (RenderOutput, error)
}

// RecentDocument is one entry of the recently used documents index.
type RecentDocument struct {
	File            string      `json:"file"`
	TemplateID      string      `json:"template_id,omitempty"`
	TemplateVersion string      `json:"template_version,omitempty"`
	Title           string      `json:"title,omitempty"`
	Blocks          []BlockInfo `json:"blocks,omitempty"`
	LastUsedAt      time.Time   `json:"last_used_at"`
}

// BlockInfo is the listing form of a Field.
type BlockInfo struct {
	Path   string     `json:"path"`
	Title  string     `json:"title,omitempty"`
	Kind   MarkerKind `json:"kind"`
	Format string     `json:"format,omitempty"`
	Shape  Shape      `json:"shape"`
}

// Info converts a Field to its listing form.
func (f Field) Info() BlockInfo {
	return BlockInfo{Path: f.ID, Title: f.Title, Kind: f.Kind, Format: f.Format, Shape: f.Shape}
}

// RecentIndex remembers which content files were used last.
type RecentIndex interface {
	Touch(ctx context.Context, doc RecentDocument) error
	Last(ctx context.Context) (RecentDocument, error)
	List(ctx context.Context) ([]RecentDocument, error)
}
