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
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/veloxar/arxval/services/validator/validate"
)

// Package-level tracer and meter for pass orchestration.
var (
	tracer = otel.Tracer("arxval.pipeline")
	meter  = otel.Meter("arxval.pipeline")
)

// Metrics for passes, stages, and the reflexion loop.
var (
	passLatency  metric.Float64Histogram
	stageLatency metric.Float64Histogram
	passesTotal  metric.Int64Counter
	loopLatency  metric.Float64Histogram
	loopAttempts metric.Int64Histogram
	llmLatency   metric.Float64Histogram
	batchScripts metric.Int64Histogram

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		passLatency, err = meter.Float64Histogram(
			"arxval_pipeline_pass_duration_seconds",
			metric.WithDescription("Duration of full validation passes"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		stageLatency, err = meter.Float64Histogram(
			"arxval_pipeline_stage_duration_seconds",
			metric.WithDescription("Time spent entering each pass stage"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		passesTotal, err = meter.Int64Counter(
			"arxval_pipeline_passes_total",
			metric.WithDescription("Total number of validation passes"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		loopLatency, err = meter.Float64Histogram(
			"arxval_reflexion_duration_seconds",
			metric.WithDescription("Duration of reflexion loops"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		loopAttempts, err = meter.Int64Histogram(
			"arxval_reflexion_attempts",
			metric.WithDescription("LLM rewrite attempts per reflexion loop"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		llmLatency, err = meter.Float64Histogram(
			"arxval_reflexion_llm_seconds",
			metric.WithDescription("Latency of reflexion LLM calls"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		batchScripts, err = meter.Int64Histogram(
			"arxval_batch_scripts",
			metric.WithDescription("Scripts per batch validation"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

// startPassSpan creates the span for one pass.
func startPassSpan(ctx context.Context, passID, name string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "Pipeline.Run",
		trace.WithAttributes(
			attribute.String("pass.id", passID),
			attribute.String("pass.script", name),
		),
	)
}

// startStageSpan creates a child span for one stage.
func startStageSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return tracer.Start(ctx, name)
}

// setPassSpanResult sets the outcome attributes on a pass span.
func setPassSpanResult(span trace.Span, result *validate.Result, fixed bool) {
	span.SetAttributes(
		attribute.Bool("pass.valid", result.Valid),
		attribute.Bool("pass.fixed", fixed),
		attribute.Int("pass.error_count", result.ErrorCount()),
	)
}

// recordPassMetrics records one completed pass, including the time
// between consecutive stage transitions.
func recordPassMetrics(ctx context.Context, pr *PassResult) {
	if err := initMetrics(); err != nil {
		return
	}

	attrs := metric.WithAttributes(
		attribute.Bool("valid", pr.Result.Valid),
	)
	passLatency.Record(ctx, pr.Duration.Seconds(), attrs)
	passesTotal.Add(ctx, 1, attrs)

	for i := 1; i < len(pr.Trace); i++ {
		d := pr.Trace[i].At.Sub(pr.Trace[i-1].At)
		stageLatency.Record(ctx, d.Seconds(),
			metric.WithAttributes(attribute.String("stage", string(pr.Trace[i].Stage))))
	}
}

// startLoopSpan creates the span for one reflexion loop.
func startLoopSpan(ctx context.Context, passID, name string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "ReflexionLoop.Run",
		trace.WithAttributes(
			attribute.String("pass.id", passID),
			attribute.String("pass.script", name),
		),
	)
}

// setLoopSpanResult sets the outcome attributes on a loop span.
func setLoopSpanResult(span trace.Span, attempts int, valid bool) {
	span.SetAttributes(
		attribute.Int("reflexion.attempts", attempts),
		attribute.Bool("reflexion.valid", valid),
	)
}

// recordLoopMetrics records one completed reflexion loop.
func recordLoopMetrics(ctx context.Context, duration time.Duration, attempts int, repaired bool) {
	if err := initMetrics(); err != nil {
		return
	}
	attrs := metric.WithAttributes(attribute.Bool("repaired", repaired))
	loopLatency.Record(ctx, duration.Seconds(), attrs)
	loopAttempts.Record(ctx, int64(attempts))
}

// recordLLMLatency records one reflexion LLM call.
func recordLLMLatency(ctx context.Context, latency time.Duration) {
	if err := initMetrics(); err != nil {
		return
	}
	llmLatency.Record(ctx, latency.Seconds())
}

// recordBatchMetrics records one batch validation.
func recordBatchMetrics(ctx context.Context, scripts int) {
	if err := initMetrics(); err != nil {
		return
	}
	batchScripts.Record(ctx, int64(scripts))
}
