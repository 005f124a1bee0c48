// Copyright (C) 2026 Veloxar Systems (dev@veloxar.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package autofix

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Package-level tracer and meter for fix operations.
var (
	tracer = otel.Tracer("arxval.autofix")
	meter  = otel.Meter("arxval.autofix")
)

// Metrics for fix operations.
var (
	fixLatency   metric.Float64Histogram
	fixTotal     metric.Int64Counter
	fixesApplied metric.Int64Counter
	fixesSkipped metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		fixLatency, err = meter.Float64Histogram(
			"arxval_autofix_duration_seconds",
			metric.WithDescription("Duration of fix passes"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		fixTotal, err = meter.Int64Counter(
			"arxval_autofix_total",
			metric.WithDescription("Total number of fix passes"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		fixesApplied, err = meter.Int64Counter(
			"arxval_autofix_applied_total",
			metric.WithDescription("Total rewrites applied"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		fixesSkipped, err = meter.Int64Counter(
			"arxval_autofix_skipped_total",
			metric.WithDescription("Total error findings left without a deterministic fix"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

// startFixSpan creates a span for a fix pass.
func startFixSpan(ctx context.Context, scriptName string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "Fixer.Fix",
		trace.WithAttributes(
			attribute.String("autofix.script", scriptName),
		),
	)
}

// setFixSpanResult sets the result attributes on a fix span.
func setFixSpanResult(span trace.Span, applied, skipped int, valid bool) {
	span.SetAttributes(
		attribute.Int("autofix.applied", applied),
		attribute.Int("autofix.skipped", skipped),
		attribute.Bool("autofix.valid_after", valid),
	)
}

// recordFixMetrics records metrics for one fix pass.
func recordFixMetrics(ctx context.Context, duration time.Duration, applied, skipped int) {
	if err := initMetrics(); err != nil {
		return
	}

	fixLatency.Record(ctx, duration.Seconds())
	fixTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.Bool("changed", applied > 0),
	))
	fixesApplied.Add(ctx, int64(applied))
	fixesSkipped.Add(ctx, int64(skipped))
}
