// Copyright (C) 2026 Veloxar Systems (dev@veloxar.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package autofix applies deterministic rewrites to scripts the
// validator flagged. Fixes come from two sources: replacements the
// validator attached to a finding (anti-pattern rewrites), and the
// rename table for misremembered method names. The fixer applies each
// fix once and revalidates once; anything still wrong after that is
// reported, not retried.
package autofix

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/veloxar/arxval/services/validator/analysis"
	"github.com/veloxar/arxval/services/validator/schema"
	"github.com/veloxar/arxval/services/validator/validate"
)

// =============================================================================
// TYPES
// =============================================================================

// Fix is one applied rewrite.
type Fix struct {
	// Line is the 1-based source line the rewrite touched.
	Line int `json:"line"`

	// Before is the text that was replaced.
	Before string `json:"before"`

	// After is the text it was replaced with.
	After string `json:"after"`

	// Message describes the rewrite.
	Message string `json:"message"`

	// Class is the receiver class of the finding that drove the fix,
	// when the finding carried one.
	Class string `json:"class,omitempty"`

	// Method is the flagged method name, when the finding carried one.
	Method string `json:"method,omitempty"`
}

// FixResult is the outcome of one fix pass.
type FixResult struct {
	// Changed reports whether any fix was applied.
	Changed bool `json:"changed"`

	// Source is the script after fixing. Unchanged input when no fix
	// applied.
	Source string `json:"source"`

	// Applied lists the rewrites that were made, in line order.
	Applied []Fix `json:"applied,omitempty"`

	// Skipped lists error findings no deterministic fix exists for.
	Skipped []validate.Finding `json:"skipped,omitempty"`

	// Result is the validation of the fixed source. When nothing was
	// applied it is the prior result unchanged.
	Result *validate.Result `json:"result"`

	// Diff is a unified diff from the original to the fixed source.
	// Empty when nothing changed.
	Diff string `json:"diff,omitempty"`

	// Hunks is the structured form of Diff, one record per change
	// region.
	Hunks []HunkRecord `json:"hunks,omitempty"`
}

// =============================================================================
// FIXER
// =============================================================================

// Fixer rewrites flagged scripts.
//
// Description:
//
//	Applies deterministic fixes against the Error findings of a
//	validation pass, then revalidates the rewritten source exactly
//	once. The fixer never loops: a fix whose replacement is itself
//	invalid surfaces in the revalidation result for the caller (or a
//	repair loop above) to deal with.
//
// Thread Safety: Safe for concurrent use. Each Fix call works on its
// own line buffer and runs its own validation pass.
type Fixer struct {
	schema      *schema.Schema
	parser      *analysis.Parser
	validator   *validate.Validator
	trackerOpts []analysis.TrackerOption
}

// Option configures the Fixer.
type Option func(*Fixer)

// WithValidator sets the validator used for revalidation.
func WithValidator(v *validate.Validator) Option {
	return func(f *Fixer) {
		f.validator = v
	}
}

// WithTrackerOptions sets options for the type tracker, for callers
// that seed variable bindings.
func WithTrackerOptions(opts ...analysis.TrackerOption) Option {
	return func(f *Fixer) {
		f.trackerOpts = opts
	}
}

// NewFixer creates a fixer over the given schema.
func NewFixer(s *schema.Schema, opts ...Option) *Fixer {
	f := &Fixer{
		schema: s,
		parser: analysis.NewParser(),
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.validator == nil {
		f.validator = validate.NewValidator(s)
	}
	return f
}

// Fix runs one fix pass over source.
//
// Description:
//
//	Applies a rewrite for every Error finding that has one: the
//	finding's own span replacement when the validator attached it,
//	otherwise the rename table keyed by the flagged method name. Each
//	rewrite replaces the first occurrence of its span on the
//	finding's line; findings whose span no longer matches the line
//	are skipped. When anything was applied the fixed source is
//	validated once more and each applied fix is recorded in that
//	result as a finding with severity fixed.
//
// Inputs:
//
//	ctx - Context for cancellation and tracing; nil falls back to
//	      Background
//	source - The script to fix
//	name - Script name for diagnostics and the diff header
//	prior - Validation of source. nil makes the fixer run the
//	        initial pass itself.
//
// Outputs:
//
//	*FixResult - The fix outcome. Never nil on success.
//	error - Non-nil when a validation pass could not run at all.
//
// Thread Safety: Safe for concurrent use.
func (f *Fixer) Fix(ctx context.Context, source []byte, name string, prior *validate.Result) (*FixResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	start := time.Now()

	ctx, span := startFixSpan(ctx, name)
	defer span.End()

	if prior == nil {
		var err error
		prior, err = f.runPass(ctx, source, name)
		if err != nil {
			span.RecordError(err)
			return nil, err
		}
	}

	orig := strings.Split(string(source), "\n")
	lines := make([]string, len(orig))
	copy(lines, orig)

	res := &FixResult{
		Source: string(source),
		Result: prior,
	}

	for _, finding := range prior.Errors() {
		before, after, ok := f.rewriteFor(finding)
		if !ok {
			res.Skipped = append(res.Skipped, finding)
			continue
		}
		idx := finding.Line - 1
		if idx < 0 || idx >= len(lines) || !strings.Contains(lines[idx], before) {
			// The source drifted from the findings; leave the line
			// alone rather than rewrite the wrong text.
			res.Skipped = append(res.Skipped, finding)
			continue
		}
		lines[idx] = strings.Replace(lines[idx], before, after, 1)
		res.Applied = append(res.Applied, Fix{
			Line:    finding.Line,
			Before:  before,
			After:   after,
			Message: fmt.Sprintf("Fixed '%s' -> '%s'", before, after),
			Class:   finding.Class,
			Method:  finding.Method,
		})
	}

	if len(res.Applied) == 0 {
		setFixSpanResult(span, 0, len(res.Skipped), prior.Valid)
		recordFixMetrics(ctx, time.Since(start), 0, len(res.Skipped))
		return res, nil
	}

	res.Changed = true
	res.Source = strings.Join(lines, "\n")

	reval, err := f.runPass(ctx, []byte(res.Source), name)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	for _, fx := range res.Applied {
		reval.Findings = append(reval.Findings, validate.Finding{
			Severity:    validate.SeverityFixed,
			Category:    validate.CategoryFixed,
			Line:        fx.Line,
			Message:     fx.Message,
			Class:       fx.Class,
			Method:      fx.Method,
			Span:        fx.Before,
			Replacement: fx.After,
		})
	}
	sort.SliceStable(reval.Findings, func(i, j int) bool {
		return reval.Findings[i].Line < reval.Findings[j].Line
	})
	res.Result = reval

	d, hunks, err := renderDiff(name, orig, lines)
	if err != nil {
		slog.Warn("rendering fix diff failed",
			slog.String("script", name),
			slog.Any("error", err))
	} else {
		res.Diff = d
		res.Hunks = hunks
	}

	setFixSpanResult(span, len(res.Applied), len(res.Skipped), reval.Valid)
	recordFixMetrics(ctx, time.Since(start), len(res.Applied), len(res.Skipped))

	return res, nil
}

// rewriteFor picks the rewrite for one finding. Findings carrying
// their own replacement win; invalid calls fall back to the rename
// table.
func (f *Fixer) rewriteFor(finding validate.Finding) (before, after string, ok bool) {
	if finding.CanAutoFix() {
		return finding.Span, finding.Replacement, true
	}
	if finding.Category != validate.CategoryInvalidCall || finding.Method == "" {
		return "", "", false
	}
	corrected, found := CorrectName(finding.Method)
	if !found {
		return "", "", false
	}
	return finding.Method, corrected, true
}

// runPass parses, tracks, and validates source.
func (f *Fixer) runPass(ctx context.Context, source []byte, name string) (*validate.Result, error) {
	script, err := f.parser.Parse(ctx, source, name)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", name, err)
	}
	tracked := analysis.NewTracker(f.schema, f.trackerOpts...).Track(ctx, script)
	return f.validator.Validate(ctx, script, tracked), nil
}
