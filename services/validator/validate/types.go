// Copyright (C) 2026 Veloxar Systems (dev@veloxar.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package validate

import (
	"sort"
	"time"
)

// =============================================================================
// SEVERITY
// =============================================================================

// Severity represents the severity level of a finding.
type Severity int

const (
	// SeverityFixed marks a substitution the auto-fixer applied.
	SeverityFixed Severity = iota

	// SeverityWarning marks issues that should be noted but don't
	// invalidate the script.
	SeverityWarning

	// SeverityError marks issues that make the script invalid.
	SeverityError
)

// String returns the string representation of the severity.
func (s Severity) String() string {
	switch s {
	case SeverityFixed:
		return "fixed"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	default:
		return "unknown"
	}
}

// SeverityFromString parses a severity string.
// Unknown values default to SeverityWarning.
func SeverityFromString(s string) Severity {
	switch s {
	case "error", "err", "fatal":
		return SeverityError
	case "fixed", "fix":
		return SeverityFixed
	default:
		return SeverityWarning
	}
}

// =============================================================================
// CATEGORY
// =============================================================================

// Category classifies what a finding is about.
type Category string

const (
	// CategorySyntax is a parse diagnostic from the script itself.
	CategorySyntax Category = "syntax"

	// CategoryInvalidCall is a method the receiver's class does not
	// declare.
	CategoryInvalidCall Category = "invalid_call"

	// CategoryUnverifiable is a call whose receiver type could not be
	// inferred; the call may well be fine.
	CategoryUnverifiable Category = "unverifiable_call"

	// CategoryAntiPattern is a call shape known to be wrong for this
	// API regardless of whether the names resolve.
	CategoryAntiPattern Category = "anti_pattern"

	// CategoryArity is a declared method called with the wrong number
	// of arguments.
	CategoryArity Category = "arity"

	// CategoryFixed records a substitution applied by the auto-fixer.
	CategoryFixed Category = "fixed"
)

// =============================================================================
// FINDING
// =============================================================================

// Finding is a single validation result for one call site or line.
//
// Thread Safety: Immutable after creation.
type Finding struct {
	// Severity is the finding's severity level.
	Severity Severity `json:"severity"`

	// Category classifies the finding.
	Category Category `json:"category"`

	// Line is the 1-indexed source line, 0 when unknown.
	Line int `json:"line"`

	// Column is the 0-indexed source column when known.
	Column int `json:"column,omitempty"`

	// Message is the human-readable description.
	Message string `json:"message"`

	// Suggestion is a correction hint when one exists.
	Suggestion string `json:"suggestion,omitempty"`

	// Class is the resolved receiver class, when it resolved.
	Class string `json:"class,omitempty"`

	// Method is the invoked method name the finding is about.
	Method string `json:"method,omitempty"`

	// Span is the source text on Line the auto-fixer would replace.
	// Empty when the finding has no mechanical rewrite.
	Span string `json:"span,omitempty"`

	// Replacement is the text that substitutes Span. A finding with
	// both Span and Replacement set is auto-fixable.
	Replacement string `json:"replacement,omitempty"`
}

// CanAutoFix reports whether the finding carries a mechanical rewrite.
func (f *Finding) CanAutoFix() bool {
	return f.Span != "" && f.Replacement != ""
}

// =============================================================================
// RESULT
// =============================================================================

// Result is the outcome of one validation pass.
//
// Findings keep source order: sorted by line, stable within a line.
//
// Thread Safety: Immutable after the pass that built it returns.
type Result struct {
	// Valid is true when no Error-severity findings exist. Warnings
	// never affect validity.
	Valid bool `json:"valid"`

	// Findings are all findings of the pass in source order.
	Findings []Finding `json:"findings"`

	// ScriptName names the validated script.
	ScriptName string `json:"script_name,omitempty"`

	// ScriptHash is the sha256 of the validated source.
	ScriptHash string `json:"script_hash,omitempty"`

	// Duration is how long the pass took.
	Duration time.Duration `json:"duration"`
}

// HasErrors returns true if any finding is Error severity.
func (r *Result) HasErrors() bool {
	return r.ErrorCount() > 0
}

// ErrorCount returns the number of Error findings.
func (r *Result) ErrorCount() int {
	return r.countSeverity(SeverityError)
}

// WarningCount returns the number of Warning findings.
func (r *Result) WarningCount() int {
	return r.countSeverity(SeverityWarning)
}

// FixedCount returns the number of Fixed findings.
func (r *Result) FixedCount() int {
	return r.countSeverity(SeverityFixed)
}

// Errors returns the Error findings, in order.
func (r *Result) Errors() []Finding {
	return r.filterSeverity(SeverityError)
}

// Warnings returns the Warning findings, in order.
func (r *Result) Warnings() []Finding {
	return r.filterSeverity(SeverityWarning)
}

// Fixed returns the Fixed findings, in order.
func (r *Result) Fixed() []Finding {
	return r.filterSeverity(SeverityFixed)
}

func (r *Result) countSeverity(s Severity) int {
	n := 0
	for i := range r.Findings {
		if r.Findings[i].Severity == s {
			n++
		}
	}
	return n
}

func (r *Result) filterSeverity(s Severity) []Finding {
	out := make([]Finding, 0)
	for i := range r.Findings {
		if r.Findings[i].Severity == s {
			out = append(out, r.Findings[i])
		}
	}
	return out
}

// sortFindings orders findings by line, stable within a line so a
// pass's emission order is preserved there.
func sortFindings(findings []Finding) {
	sort.SliceStable(findings, func(i, j int) bool {
		return findings[i].Line < findings[j].Line
	})
}
