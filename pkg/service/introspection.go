package service

import (
	"sort"

	"github.com/aretw0/introspection"
)

// ServiceState exposes internal state for observability.
type ServiceState struct {
	StoreType    string         `json:"store_type"`
	RendererType string         `json:"renderer_type"`
	TemplateDirs []string       `json:"template_dirs,omitempty"`
	Operations   map[string]int `json:"operations"`
	LastFile     string         `json:"last_file,omitempty"`
}

// State implements introspection.Introspectable.
func (s *Service) State() any {
	s.mu.Lock()
	defer s.mu.Unlock()

	ops := make(map[string]int, len(s.operations))
	for k, v := range s.operations {
		ops[k] = v
	}
	dirs := append([]string(nil), s.templateDirs...)
	sort.Strings(dirs)

	return ServiceState{
		StoreType:    componentType(s.store),
		RendererType: componentType(s.renderer),
		TemplateDirs: dirs,
		Operations:   ops,
		LastFile:     s.lastFile,
	}
}

// ComponentType implements introspection.Component.
func (s *Service) ComponentType() string {
	return "service"
}

func componentType(v any) string {
	if v == nil {
		return "none"
	}
	if comp, ok := v.(introspection.Component); ok {
		return comp.ComponentType()
	}
	return "custom"
}

var _ introspection.Introspectable = (*Service)(nil)
var _ introspection.Component = (*Service)(nil)
