package core

import "fmt"

// DiagnosticKind classifies a validation finding.
type DiagnosticKind string

const (
	MissingField   DiagnosticKind = "MissingField"
	UnknownField   DiagnosticKind = "UnknownField"
	TypeMismatch   DiagnosticKind = "TypeMismatch"
	ShapeMismatch  DiagnosticKind = "ShapeError"
	AmbiguousTitle DiagnosticKind = "AmbiguousTitle"
)

// Severity of a Diagnostic.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Diagnostic is one problem found while reconciling content with a schema.
type Diagnostic struct {
	Kind     DiagnosticKind `json:"kind"`
	Path     string         `json:"path"`
	Message  string         `json:"message"`
	Severity Severity       `json:"severity"`
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s: %s: %s (%s)", d.Severity, d.Path, d.Message, d.Kind)
}

// HasErrors reports whether any diagnostic has error severity.
func HasErrors(diags []Diagnostic) bool {
	for _, d := range diags {
		if d.Severity == SeverityError {
			return true
		}
	}
	return false
}

// CountBySeverity returns the number of errors and warnings.
func CountBySeverity(diags []Diagnostic) (errs, warnings int) {
	for _, d := range diags {
		if d.Severity == SeverityError {
			errs++
		} else {
			warnings++
		}
	}
	return errs, warnings
}
