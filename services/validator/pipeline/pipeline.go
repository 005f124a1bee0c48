// Copyright (C) 2026 Veloxar Systems (dev@veloxar.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package pipeline drives validation passes end to end.
//
// A pass walks the stage machine
//
//	pending -> tracked -> validated -> fixed -> revalidated -> done
//
// where the fix and revalidate stages only happen when the first
// validation produced errors and a deterministic rewrite applied. The
// package also carries the reflexion loop, which feeds invalid scripts
// back through an LLM a bounded number of times, and batch fan-out
// over many scripts.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/veloxar/arxval/services/validator/analysis"
	"github.com/veloxar/arxval/services/validator/autofix"
	"github.com/veloxar/arxval/services/validator/schema"
	"github.com/veloxar/arxval/services/validator/telemetry"
	"github.com/veloxar/arxval/services/validator/validate"
)

// =============================================================================
// STAGES
// =============================================================================

// Stage names one state of a validation pass.
type Stage string

const (
	StagePending     Stage = "pending"
	StageTracked     Stage = "tracked"
	StageValidated   Stage = "validated"
	StageFixed       Stage = "fixed"
	StageRevalidated Stage = "revalidated"
	StageDone        Stage = "done"
)

// Transition marks the moment a pass entered a stage.
type Transition struct {
	Stage Stage     `json:"stage"`
	At    time.Time `json:"at"`
}

// stageTrace accumulates the transitions of one pass.
type stageTrace struct {
	transitions []Transition
}

func newStageTrace(start time.Time) *stageTrace {
	return &stageTrace{
		transitions: []Transition{{Stage: StagePending, At: start}},
	}
}

func (t *stageTrace) mark(s Stage) {
	t.transitions = append(t.transitions, Transition{Stage: s, At: time.Now()})
}

// =============================================================================
// PASS RESULT
// =============================================================================

// PassResult is the outcome of one pass through the stage machine.
type PassResult struct {
	// PassID uniquely identifies the pass.
	PassID string `json:"pass_id"`

	// Result is the final validation. After a fix pass it is the
	// revalidation of the fixed source.
	Result *validate.Result `json:"result"`

	// FixedScript is the source after deterministic fixes. Empty when
	// no fix applied.
	FixedScript string `json:"fixed_script,omitempty"`

	// Applied lists the deterministic rewrites that were made.
	Applied []autofix.Fix `json:"applied,omitempty"`

	// Diff is a unified diff from the input to FixedScript.
	Diff string `json:"diff,omitempty"`

	// Hunks is the structured form of Diff.
	Hunks []autofix.HunkRecord `json:"hunks,omitempty"`

	// Trace records which stages the pass entered and when.
	Trace []Transition `json:"trace"`

	// Duration is the total pass time.
	Duration time.Duration `json:"duration"`
}

// =============================================================================
// PIPELINE
// =============================================================================

// Pipeline runs validation passes over one loaded knowledge base.
//
// Description:
//
//	Owns the parser, validator, and fixer for a schema and drives them
//	through the stage machine. The schema is immutable after load, so
//	one Pipeline is shared across goroutines; every pass works on its
//	own script and findings.
//
// Thread Safety: Safe for concurrent use.
type Pipeline struct {
	schema      *schema.Schema
	parser      *analysis.Parser
	validator   *validate.Validator
	fixer       *autofix.Fixer
	trackerOpts []analysis.TrackerOption
	autoFix     bool
	batchLimit  int
	telemetry   *telemetry.Recorder
	stageHook   func(Stage)
}

// Option configures the Pipeline.
type Option func(*Pipeline)

// WithoutAutoFix disables the fix and revalidate stages. Passes then
// end at the first validation no matter what it found.
func WithoutAutoFix() Option {
	return func(p *Pipeline) {
		p.autoFix = false
	}
}

// WithValidator substitutes a preconfigured validator.
func WithValidator(v *validate.Validator) Option {
	return func(p *Pipeline) {
		p.validator = v
	}
}

// WithTrackerOptions forwards options to the symbol tracker of every
// pass, the usual one being seed bindings for scripts whose variables
// are typed out of band.
func WithTrackerOptions(opts ...analysis.TrackerOption) Option {
	return func(p *Pipeline) {
		p.trackerOpts = opts
	}
}

// WithBatchConcurrency caps how many passes ValidateBatch runs at
// once. Values below one keep the default.
func WithBatchConcurrency(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.batchLimit = n
		}
	}
}

// WithTelemetry ships pass points to the given recorder. A nil
// recorder is the same as not attaching one.
func WithTelemetry(r *telemetry.Recorder) Option {
	return func(p *Pipeline) {
		p.telemetry = r
	}
}

// WithStageHook calls fn every time a pass enters a stage. The hook
// runs on the goroutine driving the pass, so hooks on a pipeline
// shared across goroutines must be safe for concurrent use and must
// return quickly.
func WithStageHook(fn func(Stage)) Option {
	return func(p *Pipeline) {
		p.stageHook = fn
	}
}

// NewPipeline creates a pipeline over the given schema.
func NewPipeline(s *schema.Schema, opts ...Option) *Pipeline {
	p := &Pipeline{
		schema:     s,
		parser:     analysis.NewParser(),
		autoFix:    true,
		batchLimit: DefaultBatchConcurrency,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.validator == nil {
		p.validator = validate.NewValidator(s)
	}
	if p.autoFix {
		p.fixer = autofix.NewFixer(s,
			autofix.WithValidator(p.validator),
			autofix.WithTrackerOptions(p.trackerOpts...))
	}
	return p
}

// enter records a stage transition and tells the hook, if any.
func (p *Pipeline) enter(rec *stageTrace, s Stage) {
	rec.mark(s)
	if p.stageHook != nil {
		p.stageHook(s)
	}
}

// Run drives one script through the stage machine.
//
// Description:
//
//	Parses and tracks the script, validates every call site, and, when
//	the validation produced errors, applies deterministic fixes and
//	revalidates the rewritten source exactly once. Findings never
//	abort a pass; the returned error is reserved for infrastructure
//	failures such as the parser itself breaking.
//
// Inputs:
//
//	ctx - Context for cancellation and tracing; nil falls back to
//	      Background
//	source - The Python script to validate
//	name - Script name for diagnostics
//
// Outputs:
//
//	*PassResult - The completed pass with its stage trace.
//	error - Non-nil only on infrastructure failure.
//
// Thread Safety: Safe for concurrent use.
func (p *Pipeline) Run(ctx context.Context, source []byte, name string) (*PassResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	start := time.Now()
	passID := uuid.NewString()

	ctx, span := startPassSpan(ctx, passID, name)
	defer span.End()

	pr := &PassResult{PassID: passID}
	rec := newStageTrace(start)

	trackCtx, trackSpan := startStageSpan(ctx, "Pipeline.Track")
	script, err := p.parser.Parse(trackCtx, source, name)
	if err != nil {
		trackSpan.RecordError(err)
		trackSpan.End()
		span.RecordError(err)
		return nil, fmt.Errorf("parsing %s: %w", name, err)
	}
	tracked := analysis.NewTracker(p.schema, p.trackerOpts...).Track(trackCtx, script)
	trackSpan.End()
	p.enter(rec, StageTracked)

	valCtx, valSpan := startStageSpan(ctx, "Pipeline.Validate")
	result := p.validator.Validate(valCtx, script, tracked)
	valSpan.End()
	p.enter(rec, StageValidated)

	if p.autoFix && result.HasErrors() {
		fixCtx, fixSpan := startStageSpan(ctx, "Pipeline.Fix")
		fixed, err := p.fixer.Fix(fixCtx, source, name, result)
		if err != nil {
			fixSpan.RecordError(err)
			fixSpan.End()
			span.RecordError(err)
			return nil, fmt.Errorf("fixing %s: %w", name, err)
		}
		fixSpan.End()

		if fixed.Changed {
			p.enter(rec, StageFixed)
			pr.FixedScript = fixed.Source
			pr.Applied = fixed.Applied
			pr.Diff = fixed.Diff
			pr.Hunks = fixed.Hunks
			// The fixer validated the rewritten source as part of the
			// fix pass; adopting its result is the revalidate stage.
			result = fixed.Result
			p.enter(rec, StageRevalidated)
		}
	}

	p.enter(rec, StageDone)
	pr.Result = result
	pr.Trace = rec.transitions
	pr.Duration = time.Since(start)

	setPassSpanResult(span, result, pr.FixedScript != "")
	recordPassMetrics(ctx, pr)
	p.telemetry.RecordPass(telemetry.PassPoint{
		PassID:       passID,
		ScriptName:   name,
		Valid:        result.Valid,
		ErrorCount:   result.ErrorCount(),
		WarningCount: result.WarningCount(),
		FixedCount:   result.FixedCount(),
		Duration:     pr.Duration,
	})

	return pr, nil
}
