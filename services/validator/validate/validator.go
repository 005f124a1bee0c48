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
	"context"
	"fmt"
	"time"

	"github.com/veloxar/arxval/services/validator/analysis"
	"github.com/veloxar/arxval/services/validator/schema"
	"github.com/veloxar/arxval/services/validator/suggest"
)

// =============================================================================
// VALIDATOR
// =============================================================================

// Validator checks tracked call sites against the knowledge base.
//
// Description:
//
//	Runs one validation pass over a parsed script and its tracked
//	call sites. Anti-pattern shapes are checked first and always
//	produce Errors with a fixed replacement; ordinary checks then
//	cover the remaining sites. Calls with an unresolved receiver type
//	produce Warnings, never Errors, no matter how suspicious the
//	name looks. Strictness applies to the new_ and set_ families;
//	getter-style and helper calls are left alone.
//
// Thread Safety: Safe for concurrent use. The validator holds only
// the immutable schema and the suggestion engine; every pass builds
// its own result.
type Validator struct {
	schema      *schema.Schema
	engine      *suggest.Engine
	moduleClass string
}

// Option configures the Validator.
type Option func(*Validator)

// WithSuggestionEngine sets a custom suggestion engine.
func WithSuggestionEngine(e *suggest.Engine) Option {
	return func(v *Validator) {
		v.engine = e
	}
}

// WithModuleClass overrides the class name modeling the API module
// namespace.
func WithModuleClass(name string) Option {
	return func(v *Validator) {
		if name != "" {
			v.moduleClass = name
		}
	}
}

// NewValidator creates a validator over the given schema.
func NewValidator(s *schema.Schema, opts ...Option) *Validator {
	v := &Validator{
		schema:      s,
		moduleClass: analysis.DefaultModuleClass,
	}
	for _, opt := range opts {
		opt(v)
	}
	if v.engine == nil {
		v.engine = suggest.NewEngine(s)
	}
	return v
}

// Validate runs one validation pass.
//
// Description:
//
//	Turns parse diagnostics into syntax findings, matches anti-pattern
//	shapes, then checks every remaining call site against the
//	knowledge base. A matched anti-pattern suppresses ordinary
//	findings on its statement's lines so one misuse yields one
//	finding.
//
// Inputs:
//
//	ctx - Context for tracing; nil falls back to Background
//	script - Parsed script, may be nil
//	tracked - Tracker output for the same script, may be nil
//
// Outputs:
//
//	*Result - Never nil. The pass always completes; findings never
//	abort it.
//
// Thread Safety: Safe for concurrent use.
func (v *Validator) Validate(ctx context.Context, script *analysis.Script, tracked *analysis.TrackResult) *Result {
	if ctx == nil {
		ctx = context.Background()
	}
	start := time.Now()

	callCount := 0
	if tracked != nil {
		callCount = len(tracked.Calls)
	}

	result := &Result{}
	if script != nil {
		result.ScriptName = script.Name
		result.ScriptHash = script.Hash
	}

	ctx, span := startValidateSpan(ctx, result.ScriptName, callCount)
	defer span.End()

	var findings []Finding
	suppressed := make(map[int]bool)

	if script != nil {
		for _, se := range script.SyntaxErrors {
			findings = append(findings, Finding{
				Severity: SeverityError,
				Category: CategorySyntax,
				Line:     se.Line,
				Message:  se.Message,
			})
		}

		for _, stmt := range script.Statements {
			for _, m := range v.matchStatementPatterns(stmt) {
				findings = append(findings, m.finding)
				for _, ln := range m.suppress {
					suppressed[ln] = true
				}
			}
		}
	}

	if tracked != nil {
		// Site-level anti-patterns before ordinary checks, so a
		// match suppresses the whole line's ordinary findings.
		for i := range tracked.Calls {
			site := &tracked.Calls[i]
			if suppressed[site.Line] {
				continue
			}
			m := v.matchEnumString(site)
			if m == nil {
				m = v.matchSaveWithArgs(site)
			}
			if m == nil {
				m = v.matchReadWithoutList(site)
			}
			if m == nil {
				continue
			}
			findings = append(findings, m.finding)
			for _, ln := range m.suppress {
				suppressed[ln] = true
			}
		}

		for i := range tracked.Calls {
			site := &tracked.Calls[i]
			if suppressed[site.Line] {
				continue
			}
			if f := v.checkSite(site); f != nil {
				findings = append(findings, *f)
			}
		}
	}

	sortFindings(findings)

	result.Findings = findings
	result.Duration = time.Since(start)
	result.Valid = result.ErrorCount() == 0

	setValidateSpanResult(span, result.ErrorCount(), result.WarningCount(), result.Valid)
	recordValidateMetrics(ctx, result.Duration, result.ErrorCount(), result.WarningCount(), result.Valid)

	return result
}

// =============================================================================
// PER-SITE CHECKS
// =============================================================================

// checkSite validates one call site, returning at most one finding.
func (v *Validator) checkSite(site *analysis.CallSite) *Finding {
	if site.ReceiverType.IsKnown() {
		return v.checkKnownReceiver(site)
	}
	return v.checkUnknownReceiver(site)
}

// checkKnownReceiver validates a call whose receiver class resolved.
func (v *Validator) checkKnownReceiver(site *analysis.CallSite) *Finding {
	class := site.ReceiverType.Class
	cs, ok := v.schema.Class(class)
	if !ok {
		// Tracker types only come from declared classes; nothing
		// sensible to report if that breaks.
		return nil
	}

	if spec, ok := cs.Factory(site.Method); ok {
		return v.checkArity(site, class, spec.Arity())
	}
	if _, ok := cs.Setter(site.Method); ok {
		return v.checkArity(site, class, 1)
	}

	var kind schema.MethodKind
	switch site.Category {
	case analysis.CategoryFactory:
		kind = schema.KindFactory
	case analysis.CategorySetter:
		kind = schema.KindSetter
	default:
		// Getters and arbitrary helpers the KB does not declare.
		return nil
	}

	f := &Finding{
		Severity: SeverityError,
		Category: CategoryInvalidCall,
		Line:     site.Line,
		Column:   site.Col,
		Message:  fmt.Sprintf("%s has no %s method '%s'", class, kind, site.Method),
		Class:    class,
		Method:   site.Method,
		Span:     site.Method,
	}
	if suggs := v.engine.SuggestMethod(class, site.Method, kind); len(suggs) > 0 {
		f.Suggestion = suggest.Format(class, suggs)
	}
	return f
}

// checkUnknownReceiver emits the unverifiable-call warning for strict
// method families. Never escalates.
func (v *Validator) checkUnknownReceiver(site *analysis.CallSite) *Finding {
	switch site.Category {
	case analysis.CategoryFactory, analysis.CategorySetter:
	default:
		return nil
	}

	return &Finding{
		Severity: SeverityWarning,
		Category: CategoryUnverifiable,
		Line:     site.Line,
		Column:   site.Col,
		Message: fmt.Sprintf("cannot infer type of '%s' to validate '%s': %s",
			site.ReceiverDisplay(), site.Method, site.ReceiverType.Reason),
		Method: site.Method,
	}
}

// checkArity warns when a declared method is called with the wrong
// argument count. Splat arguments make the count unverifiable, so no
// finding.
func (v *Validator) checkArity(site *analysis.CallSite, class string, want int) *Finding {
	if site.HasStarredArgs() {
		return nil
	}
	got := len(site.Args)
	if got == want {
		return nil
	}
	return &Finding{
		Severity: SeverityWarning,
		Category: CategoryArity,
		Line:     site.Line,
		Column:   site.Col,
		Message:  fmt.Sprintf("%s.%s expects %d argument(s), got %d", class, site.Method, want, got),
		Class:    class,
		Method:   site.Method,
	}
}
