// Copyright (C) 2026 Veloxar Systems (dev@veloxar.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/veloxar/arxval/services/llm"
	"github.com/veloxar/arxval/services/validator/feedback"
	"github.com/veloxar/arxval/services/validator/history"
	"github.com/veloxar/arxval/services/validator/memory"
	"github.com/veloxar/arxval/services/validator/validate"
)

// DefaultMaxAttempts is how many LLM rewrites a loop tries before
// giving up.
const DefaultMaxAttempts = 3

// Default LLM pacing: one request per second, no burst headroom.
const (
	defaultLLMRate  = rate.Limit(1)
	defaultLLMBurst = 1
)

// criticalRules pins the known hallucination traps into every rewrite
// prompt. The list mirrors the rename table of the auto-fixer.
const criticalRules = `CRITICAL RULES:
1. Use new_InternalBehavior() NOT new_SwcInternalBehavior()
2. Use new_Runnable() NOT new_RunnableEntity()
3. Use new_DataReadAcces() / new_DataWriteAcces() (ONE 's'!)
4. Use direct setters (set_frame, set_pdu) NOT new_*Ref().set_value()
5. Use autosarfactory.save() without arguments
6. Use ByteOrderEnum, not string literals
`

// =============================================================================
// LOOP
// =============================================================================

// ReflexionLoop repairs invalid scripts by alternating validation and
// LLM rewrites.
//
// Description:
//
//	Runs the pipeline on the script, and while the result has errors,
//	composes feedback, asks the model for a corrected script, and
//	validates the answer, up to a bounded number of attempts. Every
//	attempt leaves an immutable record; records persist to the history
//	store when one is attached. With a fix memory attached, prompts
//	are enriched with previously seen fixes for similar errors and
//	successful repairs are recorded back.
//
// Thread Safety: Safe for concurrent use.
type ReflexionLoop struct {
	pipeline    *Pipeline
	client      llm.LLMClient
	composer    *feedback.Composer
	limiter     *rate.Limiter
	history     *history.Store
	memory      *memory.Store
	maxAttempts int
	params      llm.GenerationParams
}

// LoopOption configures the ReflexionLoop.
type LoopOption func(*ReflexionLoop)

// WithMaxAttempts bounds the LLM rewrites per loop. Values below one
// keep the default.
func WithMaxAttempts(n int) LoopOption {
	return func(l *ReflexionLoop) {
		if n > 0 {
			l.maxAttempts = n
		}
	}
}

// WithRateLimit paces the LLM calls.
func WithRateLimit(r rate.Limit, burst int) LoopOption {
	return func(l *ReflexionLoop) {
		l.limiter = rate.NewLimiter(r, burst)
	}
}

// WithLimiter shares an existing limiter, so that short-lived loops
// built per request still pace their LLM calls against each other.
// A nil limiter keeps the default.
func WithLimiter(lim *rate.Limiter) LoopOption {
	return func(l *ReflexionLoop) {
		if lim != nil {
			l.limiter = lim
		}
	}
}

// WithHistory persists attempt records to the given store.
func WithHistory(h *history.Store) LoopOption {
	return func(l *ReflexionLoop) {
		l.history = h
	}
}

// WithMemory attaches the fix memory. A nil store is the same as not
// attaching one.
func WithMemory(m *memory.Store) LoopOption {
	return func(l *ReflexionLoop) {
		l.memory = m
	}
}

// WithGenerationParams forwards sampling parameters to the model.
func WithGenerationParams(p llm.GenerationParams) LoopOption {
	return func(l *ReflexionLoop) {
		l.params = p
	}
}

// WithComposer substitutes a preconfigured feedback composer.
func WithComposer(c *feedback.Composer) LoopOption {
	return func(l *ReflexionLoop) {
		l.composer = c
	}
}

// NewReflexionLoop creates a loop over the given pipeline and model.
func NewReflexionLoop(p *Pipeline, client llm.LLMClient, opts ...LoopOption) *ReflexionLoop {
	l := &ReflexionLoop{
		pipeline:    p,
		client:      client,
		composer:    feedback.NewComposer(),
		limiter:     rate.NewLimiter(defaultLLMRate, defaultLLMBurst),
		maxAttempts: DefaultMaxAttempts,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// LoopResult is the outcome of one reflexion loop.
type LoopResult struct {
	// PassID identifies the loop. Attempt records share it.
	PassID string `json:"pass_id"`

	// Script is the final source, whether the loop repaired it or ran
	// out of attempts.
	Script string `json:"script"`

	// Result is the validation of Script.
	Result *validate.Result `json:"result"`

	// Attempts snapshots every attempt in order. Attempt 0 is the
	// initial validation.
	Attempts []history.AttemptRecord `json:"attempts"`

	// Repaired reports that the final script is valid and differs
	// from the input.
	Repaired bool `json:"repaired"`
}

// Run repairs one script.
//
// Description:
//
//	Attempt 0 validates (and deterministically fixes) the input.
//	While the result still has errors, each further attempt sends the
//	current script and its feedback to the model, swaps in the
//	returned code, and validates again. The loop stops early when the
//	script turns valid, when attempts run out, or when the model call
//	fails; a model failure keeps the last validated script rather than
//	discarding the loop.
//
// Inputs:
//
//	ctx - Context for cancellation and tracing; nil falls back to
//	      Background
//	source - The script to repair
//	name - Script name for diagnostics
//
// Outputs:
//
//	*LoopResult - The final script, its validation, and per-attempt
//	records.
//	error - Non-nil on infrastructure failure.
//
// Thread Safety: Safe for concurrent use.
func (l *ReflexionLoop) Run(ctx context.Context, source []byte, name string) (*LoopResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	start := time.Now()
	passID := uuid.NewString()

	ctx, span := startLoopSpan(ctx, passID, name)
	defer span.End()

	current := string(source)
	lr := &LoopResult{PassID: passID}

	pass, err := l.pipeline.Run(ctx, []byte(current), name)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if pass.FixedScript != "" {
		current = pass.FixedScript
	}
	result := pass.Result

	fb := l.feedbackFor(result)
	l.record(ctx, lr, newAttempt(passID, 0, name, result, fb, 0))

	var llmCases []memory.FixCase
	prev := errorsByMessage(result)

	for attempt := 1; attempt <= l.maxAttempts && !result.Valid; attempt++ {
		prompt := l.buildPrompt(ctx, current, result, fb)

		if err := l.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("waiting on LLM rate limit: %w", err)
		}

		llmStart := time.Now()
		reply, err := l.client.Generate(ctx, prompt, l.params)
		latency := time.Since(llmStart)
		if err != nil {
			// The last validated script is still the best answer we
			// have; rerunning validation on it cannot change the
			// outcome, so stop retrying.
			slog.Warn("Reflexion rewrite failed, keeping last script",
				slog.String("pass_id", passID),
				slog.Int("attempt", attempt),
				slog.Any("error", err))
			span.RecordError(err)
			break
		}
		recordLLMLatency(ctx, latency)

		rewritten := extractCode(reply)
		if rewritten == "" {
			slog.Warn("Reflexion reply carried no code",
				slog.String("pass_id", passID),
				slog.Int("attempt", attempt))
			break
		}

		current = rewritten
		pass, err = l.pipeline.Run(ctx, []byte(current), name)
		if err != nil {
			span.RecordError(err)
			return nil, err
		}
		if pass.FixedScript != "" {
			current = pass.FixedScript
		}
		result = pass.Result

		fb = l.feedbackFor(result)
		l.record(ctx, lr, newAttempt(passID, attempt, name, result, fb, latency))

		llmCases = append(llmCases, resolvedCases(prev, result, passID)...)
		prev = errorsByMessage(result)
	}

	lr.Script = current
	lr.Result = result
	lr.Repaired = result.Valid && lr.Script != string(source)

	if result.Valid && l.memory.Enabled() {
		cases := append(autofixCases(result, passID), llmCases...)
		if len(cases) > 0 {
			if _, err := l.memory.RecordFixes(ctx, cases); err != nil {
				slog.Warn("Recording fix cases failed",
					slog.String("pass_id", passID),
					slog.Any("error", err))
			}
		}
	}

	setLoopSpanResult(span, len(lr.Attempts)-1, result.Valid)
	recordLoopMetrics(ctx, time.Since(start), len(lr.Attempts)-1, lr.Repaired)
	l.pipeline.telemetry.RecordReflexion(passID, len(lr.Attempts)-1, lr.Repaired, time.Since(start))

	return lr, nil
}

// feedbackFor composes the rewrite feedback for a result. Empty when
// the result is already valid.
func (l *ReflexionLoop) feedbackFor(result *validate.Result) string {
	if result.Valid {
		return ""
	}
	return l.composer.PromptText(result)
}

// buildPrompt assembles the rewrite prompt: the current code, the
// composed feedback, remembered fixes for similar errors, and the
// hallucination rules.
func (l *ReflexionLoop) buildPrompt(ctx context.Context, code string, result *validate.Result, fb string) string {
	var sb strings.Builder
	sb.WriteString("You are fixing Python code that uses the autosarfactory library.\n\n")
	sb.WriteString("ORIGINAL CODE:\n```python\n")
	sb.WriteString(code)
	sb.WriteString("\n```\n\n")
	sb.WriteString(fb)

	if hints := l.memoryHints(ctx, result); hints != "" {
		sb.WriteString("\n")
		sb.WriteString(hints)
	}

	sb.WriteString("\n")
	sb.WriteString(criticalRules)
	sb.WriteString("\nReturn ONLY the fixed Python code:\n")
	return sb.String()
}

// memoryHints retrieves previously seen fixes for the first error.
func (l *ReflexionLoop) memoryHints(ctx context.Context, result *validate.Result) string {
	if !l.memory.Enabled() || result == nil {
		return ""
	}
	errs := result.Errors()
	if len(errs) == 0 {
		return ""
	}

	matches, err := l.memory.SimilarFailures(ctx, errs[0].Message, memory.DefaultSimilarLimit)
	if err != nil {
		slog.Debug("Fix memory lookup failed", slog.Any("error", err))
		return ""
	}
	if len(matches) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("PREVIOUSLY SEEN FIXES FOR SIMILAR ERRORS:\n")
	for _, m := range matches {
		fmt.Fprintf(&sb, "  - %s\n", m.Case.FixDescription)
	}
	return sb.String()
}

// record appends an attempt to the result and persists it when a
// history store is attached. Persistence failures are logged, not
// fatal: the loop's job is the script, not the audit trail.
func (l *ReflexionLoop) record(ctx context.Context, lr *LoopResult, rec history.AttemptRecord) {
	lr.Attempts = append(lr.Attempts, rec)
	if l.history == nil {
		return
	}
	if err := l.history.RecordAttempt(ctx, rec); err != nil {
		slog.Warn("Persisting attempt record failed",
			slog.String("pass_id", rec.PassID),
			slog.Int("attempt", rec.Attempt),
			slog.Any("error", err))
	}
}

// newAttempt snapshots one attempt.
func newAttempt(passID string, n int, name string, result *validate.Result, fb string, latency time.Duration) history.AttemptRecord {
	return history.AttemptRecord{
		PassID:       passID,
		Attempt:      n,
		ScriptName:   name,
		ScriptHash:   result.ScriptHash,
		Valid:        result.Valid,
		ErrorCount:   result.ErrorCount(),
		WarningCount: result.WarningCount(),
		FixedCount:   result.FixedCount(),
		Feedback:     fb,
		LLMLatency:   latency,
		CreatedAt:    time.Now().UTC(),
	}
}

// extractCode pulls the script out of a model reply, unwrapping a
// markdown fence when present.
func extractCode(reply string) string {
	if i := strings.Index(reply, "```python"); i >= 0 {
		rest := reply[i+len("```python"):]
		if j := strings.Index(rest, "```"); j >= 0 {
			rest = rest[:j]
		}
		return strings.TrimSpace(rest)
	}
	if i := strings.Index(reply, "```"); i >= 0 {
		rest := reply[i+3:]
		if j := strings.Index(rest, "```"); j >= 0 {
			rest = rest[:j]
		}
		return strings.TrimSpace(rest)
	}
	return strings.TrimSpace(reply)
}

// errorsByMessage indexes a result's errors for resolution tracking.
func errorsByMessage(r *validate.Result) map[string]validate.Finding {
	out := make(map[string]validate.Finding)
	for _, f := range r.Errors() {
		out[f.Message] = f
	}
	return out
}

// resolvedCases builds fix cases for errors present before an LLM
// rewrite and gone after it.
func resolvedCases(prev map[string]validate.Finding, cur *validate.Result, passID string) []memory.FixCase {
	still := errorsByMessage(cur)

	var cases []memory.FixCase
	for msg, f := range prev {
		if _, ok := still[msg]; ok {
			continue
		}
		desc := f.Suggestion
		if desc == "" {
			desc = "resolved by model rewrite"
		}
		cases = append(cases, memory.FixCase{
			ErrorSignature: msg,
			ClassName:      f.Class,
			MethodName:     f.Method,
			Category:       string(f.Category),
			FixDescription: desc,
			ScriptHash:     cur.ScriptHash,
			PassID:         passID,
		})
	}
	return cases
}

// autofixCases builds fix cases for the deterministic substitutions
// recorded in the final result.
func autofixCases(r *validate.Result, passID string) []memory.FixCase {
	var cases []memory.FixCase
	for _, f := range r.Fixed() {
		sig := f.Message
		if f.Class != "" && f.Method != "" {
			sig = fmt.Sprintf("%s has no method '%s'", f.Class, f.Method)
		}
		cases = append(cases, memory.FixCase{
			ErrorSignature: sig,
			ClassName:      f.Class,
			MethodName:     f.Method,
			Category:       string(f.Category),
			FixDescription: f.Message,
			Replacement:    f.Replacement,
			ScriptHash:     r.ScriptHash,
			PassID:         passID,
		})
	}
	return cases
}
