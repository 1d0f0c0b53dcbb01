// Copyright (c) The Brane Authors
// SPDX-License-Identifier: MPL-2.0

// Package diagnostics collects the errors and warnings produced while
// compiling, planning, and executing a Brane workflow.
//
// Lex/parse/resolution/type errors are positional and fatal; planning
// errors are fatal for the whole workflow; execution errors carry the
// failing task's identity. See spec.md §7 for the full policy. Multiple
// diagnostics from a single pass are collected rather than aborting on
// the first one, the way a compiler front end typically does.
package diagnostics

import (
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"
)

// Severity classifies a Diagnostic.
type Severity int

const (
	Error Severity = iota
	Warning
)

func (s Severity) String() string {
	if s == Warning {
		return "warning"
	}
	return "error"
}

// Range identifies a span of source text, in 1-based line/column
// coordinates, matching the positions the lexer attaches to every token.
type Range struct {
	Filename   string
	StartLine  int
	StartCol   int
	EndLine    int
	EndCol     int
}

func (r Range) String() string {
	if r.Filename == "" && r.StartLine == 0 {
		return ""
	}
	if r.StartLine == r.EndLine && r.StartCol == r.EndCol {
		return fmt.Sprintf("%s:%d:%d", r.Filename, r.StartLine, r.StartCol)
	}
	return fmt.Sprintf("%s:%d:%d-%d:%d", r.Filename, r.StartLine, r.StartCol, r.EndLine, r.EndCol)
}

// Kind is a short, stable machine-readable identifier for a diagnostic,
// matching the error-kind names used throughout spec.md (e.g.
// "UndefinedSymbol", "AmbiguousLocation").
type Kind string

// Diagnostic is a single positional error or warning.
type Diagnostic struct {
	Severity Severity
	Kind     Kind
	Summary  string
	Detail   string
	Subject  Range
}

func (d Diagnostic) Error() string {
	var b strings.Builder
	b.WriteString(d.Severity.String())
	if d.Kind != "" {
		b.WriteByte('[')
		b.WriteString(string(d.Kind))
		b.WriteByte(']')
	}
	if loc := d.Subject.String(); loc != "" {
		b.WriteString(": ")
		b.WriteString(loc)
	}
	b.WriteString(": ")
	b.WriteString(d.Summary)
	if d.Detail != "" {
		b.WriteString(" (")
		b.WriteString(d.Detail)
		b.WriteByte(')')
	}
	return b.String()
}

// Diagnostics is an ordered collection of Diagnostic values. The zero
// value is an empty collection ready to use.
type Diagnostics []Diagnostic

// Append adds one or more diagnostics, flattening nested Diagnostics
// and tolerating plain errors (wrapped as an untyped Error diagnostic)
// so that it composes with ordinary Go error-returning code.
func (d Diagnostics) Append(items ...interface{}) Diagnostics {
	for _, item := range items {
		switch v := item.(type) {
		case nil:
			continue
		case Diagnostics:
			d = append(d, v...)
		case Diagnostic:
			d = append(d, v)
		case *multierror.Error:
			if v == nil {
				continue
			}
			for _, err := range v.Errors {
				d = append(d, Diagnostic{Severity: Error, Summary: err.Error()})
			}
		case error:
			d = append(d, Diagnostic{Severity: Error, Summary: v.Error()})
		default:
			d = append(d, Diagnostic{Severity: Error, Summary: fmt.Sprintf("%v", v)})
		}
	}
	return d
}

// HasErrors reports whether any collected diagnostic has Error severity.
func (d Diagnostics) HasErrors() bool {
	for _, diag := range d {
		if diag.Severity == Error {
			return true
		}
	}
	return false
}

// Err collapses the collection into a single error suitable for returning
// from a function that only wants a go-multierror-shaped failure, or nil
// if there are no error-severity diagnostics.
func (d Diagnostics) Err() error {
	if !d.HasErrors() {
		return nil
	}
	merr := &multierror.Error{}
	for _, diag := range d {
		if diag.Severity == Error {
			merr = multierror.Append(merr, diag)
		}
	}
	return merr
}

// ErrorsOnly returns only the Error-severity entries, in order.
func (d Diagnostics) ErrorsOnly() Diagnostics {
	out := make(Diagnostics, 0, len(d))
	for _, diag := range d {
		if diag.Severity == Error {
			out = append(out, diag)
		}
	}
	return out
}
