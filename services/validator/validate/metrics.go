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
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Package-level tracer and meter for validation operations.
var (
	tracer = otel.Tracer("arxval.validate")
	meter  = otel.Meter("arxval.validate")
)

// Metrics for validation operations.
var (
	validateLatency metric.Float64Histogram
	validateTotal   metric.Int64Counter
	findingsFound   metric.Int64Histogram
	errorsFound     metric.Int64Counter
	warningsFound   metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		validateLatency, err = meter.Float64Histogram(
			"arxval_validate_duration_seconds",
			metric.WithDescription("Duration of validation passes"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		validateTotal, err = meter.Int64Counter(
			"arxval_validate_total",
			metric.WithDescription("Total number of validation passes"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		findingsFound, err = meter.Int64Histogram(
			"arxval_validate_findings",
			metric.WithDescription("Number of findings per validation pass"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		errorsFound, err = meter.Int64Counter(
			"arxval_validate_errors_total",
			metric.WithDescription("Total number of error findings"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		warningsFound, err = meter.Int64Counter(
			"arxval_validate_warnings_total",
			metric.WithDescription("Total number of warning findings"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

// startValidateSpan creates a span for a validation pass.
func startValidateSpan(ctx context.Context, scriptName string, callCount int) (context.Context, trace.Span) {
	return tracer.Start(ctx, "Validator.Validate",
		trace.WithAttributes(
			attribute.String("validate.script", scriptName),
			attribute.Int("validate.call_count", callCount),
		),
	)
}

// setValidateSpanResult sets the result attributes on a validate span.
func setValidateSpanResult(span trace.Span, errorCount, warningCount int, valid bool) {
	span.SetAttributes(
		attribute.Int("validate.error_count", errorCount),
		attribute.Int("validate.warning_count", warningCount),
		attribute.Bool("validate.valid", valid),
	)
}

// recordValidateMetrics records metrics for one validation pass.
func recordValidateMetrics(ctx context.Context, duration time.Duration, errorCount, warningCount int, valid bool) {
	if err := initMetrics(); err != nil {
		return
	}

	attrs := metric.WithAttributes(
		attribute.Bool("valid", valid),
	)

	validateLatency.Record(ctx, duration.Seconds(), attrs)
	validateTotal.Add(ctx, 1, attrs)
	findingsFound.Record(ctx, int64(errorCount+warningCount))
	errorsFound.Add(ctx, int64(errorCount))
	warningsFound.Add(ctx, int64(warningCount))
}
