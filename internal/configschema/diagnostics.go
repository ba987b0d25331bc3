package configschema

import (
	"strings"

	"github.com/eggybyte-technology/clientgen/internal/core/errors"
)

// Diagnostic represents a configuration issue.
type Diagnostic struct {
	Severity   DiagnosticSeverity `json:"severity"`
	Message    string             `json:"message"`
	Path       string             `json:"path,omitempty"`
	Suggestion string             `json:"suggestion,omitempty"`
}

// String renders the diagnostic on one line.
func (d Diagnostic) String() string {
	var b strings.Builder
	if d.Path != "" {
		b.WriteString(d.Path)
		b.WriteString(": ")
	}
	b.WriteString(d.Message)
	if d.Suggestion != "" {
		b.WriteString(" (")
		b.WriteString(d.Suggestion)
		b.WriteString(")")
	}
	return b.String()
}

// DiagnosticSeverity represents the severity of a diagnostic.
type DiagnosticSeverity string

const (
	SeverityError   DiagnosticSeverity = "error"
	SeverityWarning DiagnosticSeverity = "warning"
	SeverityInfo    DiagnosticSeverity = "info"
)

// Diagnostics collects configuration issues found while loading.
type Diagnostics struct {
	items []Diagnostic
}

// NewDiagnostics creates an empty collection.
func NewDiagnostics() *Diagnostics {
	return &Diagnostics{items: make([]Diagnostic, 0)}
}

// Add appends a diagnostic.
//
// Parameters:
//   - severity: Diagnostic severity level
//   - message: Human-readable message
//   - path: Optional configuration path (e.g. "extraction.policy")
//   - suggestion: Optional fix suggestion
func (d *Diagnostics) Add(severity DiagnosticSeverity, message, path, suggestion string) {
	d.items = append(d.items, Diagnostic{
		Severity:   severity,
		Message:    message,
		Path:       path,
		Suggestion: suggestion,
	})
}

// AddError appends an error diagnostic.
func (d *Diagnostics) AddError(message, path, suggestion string) {
	d.Add(SeverityError, message, path, suggestion)
}

// AddWarning appends a warning diagnostic.
func (d *Diagnostics) AddWarning(message, path, suggestion string) {
	d.Add(SeverityWarning, message, path, suggestion)
}

// AddInfo appends an info diagnostic.
func (d *Diagnostics) AddInfo(message, path, suggestion string) {
	d.Add(SeverityInfo, message, path, suggestion)
}

// HasErrors reports whether any error-level diagnostic was recorded.
func (d *Diagnostics) HasErrors() bool {
	for _, item := range d.items {
		if item.Severity == SeverityError {
			return true
		}
	}
	return false
}

// HasWarnings reports whether any warning-level diagnostic was recorded.
func (d *Diagnostics) HasWarnings() bool {
	for _, item := range d.items {
		if item.Severity == SeverityWarning {
			return true
		}
	}
	return false
}

// Items returns a copy of all diagnostics.
func (d *Diagnostics) Items() []Diagnostic {
	result := make([]Diagnostic, len(d.items))
	copy(result, d.items)
	return result
}

// Err returns an INVALID_ARGUMENT error listing every error-level diagnostic,
// or nil when there are none.
func (d *Diagnostics) Err() error {
	var msgs []string
	for _, item := range d.items {
		if item.Severity == SeverityError {
			msgs = append(msgs, item.String())
		}
	}
	if len(msgs) == 0 {
		return nil
	}
	return errors.Newf(errors.CodeInvalidArgument, "invalid configuration: %s", strings.Join(msgs, "; "))
}
