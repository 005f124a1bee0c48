// Copyright (C) 2026 Veloxar Systems (dev@veloxar.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package feedback renders validation results for their two consumers:
// the repair loop, which feeds correction text back to the model, and
// a human reading terminal output.
package feedback

import (
	"fmt"
	"strings"

	"github.com/veloxar/arxval/services/validator/validate"
)

// DefaultMaxWarnings caps the warnings included in a report so a noisy
// script does not drown the errors that matter.
const DefaultMaxWarnings = 5

// =============================================================================
// TYPES
// =============================================================================

// Report is structured feedback about one validation result.
//
// # Description
//
// Provides the repair loop with enough structure to decide whether to
// retry and what to say: a rejected flag, a one-line reason, the
// individual issues with their fixes, and a suggested action.
type Report struct {
	// Rejected is true when the script must not run as-is.
	Rejected bool `json:"rejected"`

	// Reason is a one-line summary of the outcome.
	Reason string `json:"reason"`

	// Issues are the individual problems, errors first.
	Issues []Issue `json:"issues"`

	// AutoFixable counts issues that carry a concrete rewrite.
	AutoFixable int `json:"auto_fixable"`

	// Action is the suggested next step.
	Action string `json:"action,omitempty"`
}

// Issue is a single problem in the report.
type Issue struct {
	Severity string `json:"severity"`
	Category string `json:"category"`
	Line     int    `json:"line"`
	Message  string `json:"message"`
	Fix      string `json:"fix,omitempty"`
}

// =============================================================================
// COMPOSER
// =============================================================================

// Composer builds reports and prompt text from validation results.
type Composer struct {
	maxWarnings int
}

// Option configures the Composer.
type Option func(*Composer)

// WithMaxWarnings sets how many warnings a report includes.
func WithMaxWarnings(n int) Option {
	return func(c *Composer) {
		if n >= 0 {
			c.maxWarnings = n
		}
	}
}

// NewComposer creates a composer.
func NewComposer(opts ...Option) *Composer {
	c := &Composer{maxWarnings: DefaultMaxWarnings}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compose builds the structured report for a validation result.
//
// # Description
//
// Errors are always included; warnings are capped so the loop's
// prompts stay focused. A finding's fix is its suggestion when one
// exists, otherwise its concrete replacement.
func (c *Composer) Compose(result *validate.Result) *Report {
	if result == nil {
		return &Report{Reason: "No validation result available"}
	}

	report := &Report{
		Rejected: !result.Valid,
		Issues:   make([]Issue, 0, len(result.Findings)),
	}

	errs := result.Errors()
	warns := result.Warnings()

	if result.Valid {
		report.Reason = "No blocking issues found"
		if len(warns) > 0 {
			report.Action = fmt.Sprintf("Consider addressing %d warning(s)", len(warns))
		}
	} else {
		report.Reason = fmt.Sprintf("Found %d blocking error(s)", len(errs))
		report.Action = "Regenerate the script addressing these issues"
	}

	for _, f := range errs {
		report.Issues = append(report.Issues, issueFrom(f))
		if f.CanAutoFix() {
			report.AutoFixable++
		}
	}
	for i, f := range warns {
		if i >= c.maxWarnings {
			break
		}
		report.Issues = append(report.Issues, issueFrom(f))
	}

	return report
}

// issueFrom converts one finding into a report issue.
func issueFrom(f validate.Finding) Issue {
	issue := Issue{
		Severity: f.Severity.String(),
		Category: string(f.Category),
		Line:     f.Line,
		Message:  f.Message,
	}
	switch {
	case f.Suggestion != "":
		issue.Fix = f.Suggestion
	case f.Replacement != "":
		issue.Fix = "Replace with: " + f.Replacement
	}
	return issue
}

// PromptText renders the correction text handed to the model.
//
// # Description
//
// Findings are grouped by severity with errors first, one line per
// finding carrying its line number and message, suggestions indented
// beneath. Fixes already applied are listed so the model keeps them.
// The text closes with the rewrite instruction. Empty when the result
// has no findings.
func (c *Composer) PromptText(result *validate.Result) string {
	if result == nil || len(result.Findings) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("VALIDATION ISSUES FOUND:\n")

	writeGroup(&sb, "ERRORS:", result.Errors(), -1)
	writeGroup(&sb, "WARNINGS:", result.Warnings(), c.maxWarnings)
	writeGroup(&sb, "ALREADY FIXED (keep these changes):", result.Fixed(), -1)

	sb.WriteString("\nFix every error above. Keep lines that are not flagged unchanged.\n")
	sb.WriteString("Return only the corrected Python script, no explanations.\n")

	return sb.String()
}

// writeGroup appends one severity section. A negative limit means no
// limit.
func writeGroup(sb *strings.Builder, heading string, findings []validate.Finding, limit int) {
	if len(findings) == 0 {
		return
	}

	sb.WriteString("\n" + heading + "\n")
	for i, f := range findings {
		if limit >= 0 && i >= limit {
			sb.WriteString(fmt.Sprintf("  ... and %d more\n", len(findings)-limit))
			break
		}
		sb.WriteString(fmt.Sprintf("  [%s]%s: %s\n",
			strings.ToUpper(f.Severity.String()), lineInfo(f.Line), f.Message))
		if f.Suggestion != "" {
			sb.WriteString("    -> Suggestion: " + f.Suggestion + "\n")
		}
	}
}

func lineInfo(line int) string {
	if line <= 0 {
		return ""
	}
	return fmt.Sprintf(" (line %d)", line)
}
