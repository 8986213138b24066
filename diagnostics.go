package pptxtemplate

import "strings"

// ErrorKind classifies a recoverable evaluation failure.
type ErrorKind string

const (
	// UndefinedError: an expression referenced a missing name, attribute
	// or index.
	UndefinedError ErrorKind = "UndefinedError"
	// TemplateSyntaxError: a placeholder could not be parsed.
	TemplateSyntaxError ErrorKind = "TemplateSyntaxError"
)

const rewriteHint = "you should re-write the whole {{}} tag"

// Diagnostic is an advisory message produced while rendering. It never
// stops the render pass.
type Diagnostic struct {
	Kind    ErrorKind
	Message string
	// Slide is the 1-based slide number the diagnostic was raised on, or 0.
	Slide int
}

// String formats the diagnostic as "<Kind>: <message>". Syntax errors also
// tell the operator to rewrite the placeholder.
func (d Diagnostic) String() string {
	s := string(d.Kind) + ": " + d.Message
	if d.Kind == TemplateSyntaxError {
		s += "\n" + rewriteHint
	}
	return s
}

// Diagnostics is the ordered list of diagnostics of one render pass.
type Diagnostics []Diagnostic

// String joins the diagnostics with newlines; empty when there are none.
func (ds Diagnostics) String() string {
	lines := make([]string, 0, len(ds))
	for _, d := range ds {
		lines = append(lines, d.String())
	}
	return strings.Join(lines, "\n")
}

// Count returns the number of diagnostics of the given kind.
func (ds Diagnostics) Count(kind ErrorKind) int {
	n := 0
	for _, d := range ds {
		if d.Kind == kind {
			n++
		}
	}
	return n
}
