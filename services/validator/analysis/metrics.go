// Copyright (C) 2026 Veloxar Systems (dev@veloxar.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package analysis

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Package-level tracer and meter for script analysis.
var (
	tracer = otel.Tracer("arxval.analysis")
	meter  = otel.Meter("arxval.analysis")
)

// Metrics for parse and track operations.
var (
	parseLatency   metric.Float64Histogram
	parseTotal     metric.Int64Counter
	callsExtracted metric.Int64Histogram
	parseErrors    metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		parseLatency, err = meter.Float64Histogram(
			"arxval_parse_duration_seconds",
			metric.WithDescription("Duration of script parse operations"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		parseTotal, err = meter.Int64Counter(
			"arxval_parse_total",
			metric.WithDescription("Total number of script parse operations"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		callsExtracted, err = meter.Int64Histogram(
			"arxval_calls_extracted",
			metric.WithDescription("Number of call sites extracted per script"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		parseErrors, err = meter.Int64Counter(
			"arxval_parse_errors_total",
			metric.WithDescription("Total number of script parse failures"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

// recordParseMetrics records metrics for one parse operation.
func recordParseMetrics(ctx context.Context, duration time.Duration, statementCount int, success bool) {
	if err := initMetrics(); err != nil {
		return // Silently skip if metrics init failed
	}

	attrs := metric.WithAttributes(
		attribute.Bool("success", success),
	)

	parseLatency.Record(ctx, duration.Seconds(), attrs)
	parseTotal.Add(ctx, 1, attrs)

	if !success {
		parseErrors.Add(ctx, 1)
	}
}

// recordTrackMetrics records the call-site count for one tracked
// script.
func recordTrackMetrics(ctx context.Context, callCount int) {
	if err := initMetrics(); err != nil {
		return
	}
	callsExtracted.Record(ctx, int64(callCount))
}

// startParseSpan creates a span for a parse operation.
func startParseSpan(ctx context.Context, scriptName string, contentSize int) (context.Context, trace.Span) {
	return tracer.Start(ctx, "analysis.Parse",
		trace.WithAttributes(
			attribute.String("script.name", scriptName),
			attribute.Int("script.content_size", contentSize),
		),
	)
}

// setParseSpanResult sets the result attributes on a parse span.
func setParseSpanResult(span trace.Span, statementCount, syntaxErrorCount int) {
	span.SetAttributes(
		attribute.Int("script.statement_count", statementCount),
		attribute.Int("script.syntax_error_count", syntaxErrorCount),
	)
}
