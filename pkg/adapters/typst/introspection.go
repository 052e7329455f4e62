package typst

import "github.com/aretw0/introspection"

// CompilerState exposes the compiler configuration for observability.
type CompilerState struct {
	Binary    string   `json:"binary"`
	FontPaths []string `json:"font_paths,omitempty"`
}

// State implements introspection.Introspectable.
func (c *Compiler) State() any {
	return CompilerState{Binary: c.Binary, FontPaths: c.FontPaths}
}

// ComponentType implements introspection.Component.
func (c *Compiler) ComponentType() string {
	return "typst-compiler"
}

var _ introspection.Introspectable = (*Compiler)(nil)
var _ introspection.Component = (*Compiler)(nil)
