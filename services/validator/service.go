// Copyright (C) 2026 Veloxar Systems (dev@veloxar.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package validator exposes the validation engine as an HTTP service.
//
// The package wires the schema, pipeline, and feedback packages behind a
// gin API: synchronous validate/fix/feedback/reflexion endpoints,
// knowledge base introspection, attempt history lookup, and a websocket
// that streams per-stage progress. The engine itself lives in the
// subpackages; everything here is transport.
package validator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/veloxar/arxval/services/validator/analysis"
	"github.com/veloxar/arxval/services/validator/feedback"
	"github.com/veloxar/arxval/services/validator/pipeline"
	"github.com/veloxar/arxval/services/validator/schema"
	"github.com/veloxar/arxval/services/validator/telemetry"
)

// ServiceConfig configures the validator service.
type ServiceConfig struct {
	// KBPath is the knowledge base to load on Reload. Empty falls back
	// to the loader's default resolution order.
	KBPath string

	// MaxScriptBytes rejects script payloads larger than this before
	// they reach the parser.
	MaxScriptBytes int

	// DefaultPageSize is the class listing page size when the request
	// does not name one.
	DefaultPageSize int

	// MaxPageSize caps the page size a request may ask for.
	MaxPageSize int

	// LLMRate and LLMBurst pace reflexion LLM calls across requests.
	LLMRate  float64
	LLMBurst int

	// Telemetry is an optional recorder attached to every pipeline.
	Telemetry *telemetry.Recorder
}

// DefaultServiceConfig returns the default service configuration.
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		MaxScriptBytes:  analysis.DefaultMaxScriptSize,
		DefaultPageSize: 50,
		MaxPageSize:     500,
		LLMRate:         1,
		LLMBurst:        1,
	}
}

// Service runs validation passes over one loaded knowledge base.
//
// Description:
//
//	Holds the schema and the two pipelines the handlers run: a
//	validate-only pipeline for endpoints that must not rewrite the
//	script, and a fixing pipeline for the ones that may. Reload swaps
//	the schema and rebuilds both; passes in flight keep the pipeline
//	they started with.
//
// Thread Safety: Safe for concurrent use.
type Service struct {
	config ServiceConfig

	mu       sync.RWMutex
	schema   *schema.Schema
	checker  *pipeline.Pipeline
	fixing   *pipeline.Pipeline
	composer *feedback.Composer
}

// NewService creates a Service over a loaded schema.
//
// Zero-valued config fields fall back to DefaultServiceConfig.
func NewService(s *schema.Schema, config ServiceConfig) *Service {
	def := DefaultServiceConfig()
	if config.MaxScriptBytes <= 0 {
		config.MaxScriptBytes = def.MaxScriptBytes
	}
	if config.DefaultPageSize <= 0 {
		config.DefaultPageSize = def.DefaultPageSize
	}
	if config.MaxPageSize <= 0 {
		config.MaxPageSize = def.MaxPageSize
	}
	if config.LLMRate <= 0 {
		config.LLMRate = def.LLMRate
	}
	if config.LLMBurst <= 0 {
		config.LLMBurst = def.LLMBurst
	}

	svc := &Service{
		config:   config,
		schema:   s,
		composer: feedback.NewComposer(),
	}
	svc.buildPipelinesLocked()
	return svc
}

// buildPipelinesLocked rebuilds both pipelines from the current schema.
// Callers hold mu (or own the Service exclusively, as NewService does).
func (s *Service) buildPipelinesLocked() {
	s.checker = pipeline.NewPipeline(s.schema,
		pipeline.WithoutAutoFix(),
		pipeline.WithTelemetry(s.config.Telemetry))
	s.fixing = pipeline.NewPipeline(s.schema,
		pipeline.WithTelemetry(s.config.Telemetry))
}

// Config returns the effective configuration.
func (s *Service) Config() ServiceConfig {
	return s.config
}

// Schema returns the currently loaded knowledge base.
func (s *Service) Schema() *schema.Schema {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.schema
}

// FixPipeline returns the pipeline with deterministic fixes enabled.
// The reflexion loop runs on it.
func (s *Service) FixPipeline() *pipeline.Pipeline {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fixing
}

func (s *Service) checkPipeline() *pipeline.Pipeline {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.checker
}

// streamPipeline builds a fixing pipeline whose stage hook reports
// progress, for callers that watch a pass as it runs.
func (s *Service) streamPipeline(hook func(pipeline.Stage)) *pipeline.Pipeline {
	return pipeline.NewPipeline(s.Schema(),
		pipeline.WithTelemetry(s.config.Telemetry),
		pipeline.WithStageHook(hook))
}

// Validate runs one validate-only pass. The script is never rewritten.
func (s *Service) Validate(ctx context.Context, source []byte, name string) (*pipeline.PassResult, error) {
	return s.checkPipeline().Run(ctx, source, name)
}

// Fix runs one pass with deterministic fixes and revalidation enabled.
func (s *Service) Fix(ctx context.Context, source []byte, name string) (*pipeline.PassResult, error) {
	return s.FixPipeline().Run(ctx, source, name)
}

// Feedback validates the script and composes the structured report and
// the prompt text an LLM rewrite would receive.
func (s *Service) Feedback(ctx context.Context, source []byte, name string) (*pipeline.PassResult, *feedback.Report, string, error) {
	pr, err := s.Validate(ctx, source, name)
	if err != nil {
		return nil, nil, "", err
	}
	return pr, s.composer.Compose(pr.Result), s.composer.PromptText(pr.Result), nil
}

// Swap replaces the knowledge base and rebuilds both pipelines.
// Passes in flight finish on the schema they started with. A nil
// schema is ignored.
func (s *Service) Swap(ns *schema.Schema) {
	if ns == nil {
		return
	}
	s.mu.Lock()
	s.schema = ns
	s.buildPipelinesLocked()
	s.mu.Unlock()

	slog.Info("Knowledge base swapped",
		"version", ns.Version(),
		"classes", ns.ClassCount(),
		"methods", ns.Index().Size())
}

// Reload loads the knowledge base again and swaps it in.
func (s *Service) Reload(ctx context.Context) error {
	var (
		ns  *schema.Schema
		err error
	)
	if s.config.KBPath != "" {
		ns, err = schema.Load(ctx, s.config.KBPath)
	} else {
		ns, err = schema.LoadDefault(ctx)
	}
	if err != nil {
		return fmt.Errorf("reloading knowledge base: %w", err)
	}

	s.Swap(ns)
	return nil
}
