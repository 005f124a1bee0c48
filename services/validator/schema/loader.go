// Copyright (C) 2026 Veloxar Systems (dev@veloxar.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package schema

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/mod/semver"
	"gopkg.in/yaml.v3"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// MaxKBFileSize caps knowledge base sources at 8MB. The full
	// autosarfactory surface dumps to roughly 2MB of YAML.
	MaxKBFileSize = 8 * 1024 * 1024

	// MaxClasses caps the class count per KB.
	MaxClasses = 20000

	// MaxMethodsPerClass caps factories plus setters per class.
	MaxMethodsPerClass = 4000

	// SupportedKBMajor is the KB format major version this binary
	// understands. Minor and patch revisions are accepted.
	SupportedKBMajor = "v1"

	// EnvKBPath overrides the KB source path ("/etc/arxval/kb.yaml"
	// or "gs://bucket/kb.yaml").
	EnvKBPath = "ARXVAL_KB_PATH"
)

// =============================================================================
// Embedded Default Knowledge Base
// =============================================================================

//go:embed kb_default.yaml
var defaultKBYAML []byte

// =============================================================================
// Prometheus Metrics
// =============================================================================

var (
	kbLoadDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "arxval_kb_load_duration_seconds",
		Help:    "Duration of knowledge base loading",
		Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 2},
	})

	kbLoadErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "arxval_kb_load_errors_total",
		Help: "Total knowledge base load errors",
	})

	kbClassCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "arxval_kb_classes",
		Help: "Classes declared by the active knowledge base",
	})

	kbMethodCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "arxval_kb_methods",
		Help: "Distinct method names indexed by the active knowledge base",
	})
)

// =============================================================================
// OTel Tracer
// =============================================================================

var schemaTracer = otel.Tracer("arxval.schema")

// =============================================================================
// YAML Types
// =============================================================================

// kbYAML is the root structure for KB deserialization. Concrete
// types throughout; nested maps are validated during conversion.
type kbYAML struct {
	Version string               `yaml:"version"`
	Classes map[string]classYAML `yaml:"classes"`
}

// classYAML is one class entry in the KB file.
type classYAML struct {
	Factories map[string]methodYAML `yaml:"factories,omitempty"`
	Setters   map[string]string     `yaml:"setters,omitempty"`
}

// methodYAML is one factory entry in the KB file.
type methodYAML struct {
	Params  []string `yaml:"params"`
	Returns string   `yaml:"returns"`
}

// =============================================================================
// Loading
// =============================================================================

// Load reads, parses, and verifies a knowledge base.
//
// Description:
//
//	Dispatches on the path scheme: "gs://" sources are fetched from
//	Cloud Storage, anything else is a local file. The parsed KB is
//	version-gated and integrity-checked before a Schema is returned;
//	a KB that fails any check produces no Schema at all.
//
// Inputs:
//
//	ctx - Context for cancellation and tracing. Must not be nil.
//	path - Local path or gs:// URI of the KB YAML.
//
// Outputs:
//
//	*Schema - The immutable loaded schema. Never nil on success.
//	error - Non-nil on read, parse, version, or integrity failure.
//	        Integrity failures unwrap to ErrDanglingClassRef via
//	        BatchError.
//
// Thread Safety: Safe for concurrent use.
func Load(ctx context.Context, path string) (*Schema, error) {
	if ctx == nil {
		return nil, fmt.Errorf("schema.Load: ctx must not be nil")
	}

	ctx, span := schemaTracer.Start(ctx, "schema.Load",
		trace.WithAttributes(attribute.String("path", path)),
	)
	defer span.End()

	var (
		data []byte
		err  error
	)
	if strings.HasPrefix(path, "gs://") {
		data, err = fetchGCS(ctx, path)
	} else {
		data, err = readLocalKB(path)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "read failed")
		kbLoadErrors.Inc()
		return nil, err
	}

	return LoadBytes(ctx, data, path)
}

// LoadBytes parses and verifies KB YAML already held in memory.
//
// Inputs:
//
//	ctx - Context for tracing. Must not be nil.
//	data - Raw KB YAML.
//	source - Human-readable origin for logs ("embedded", a path, a URI).
//
// Outputs:
//
//	*Schema - The loaded schema.
//	error - Non-nil on parse, version, or integrity failure.
//
// Thread Safety: Safe for concurrent use.
func LoadBytes(ctx context.Context, data []byte, source string) (*Schema, error) {
	if ctx == nil {
		return nil, fmt.Errorf("schema.LoadBytes: ctx must not be nil")
	}

	_, span := schemaTracer.Start(ctx, "schema.Parse",
		trace.WithAttributes(
			attribute.String("source", source),
			attribute.Int("yaml_size", len(data)),
		),
	)
	defer span.End()

	startTime := time.Now()
	defer func() {
		kbLoadDuration.Observe(time.Since(startTime).Seconds())
	}()

	if len(data) > MaxKBFileSize {
		kbLoadErrors.Inc()
		return nil, fmt.Errorf("%d bytes (max %d): %w", len(data), MaxKBFileSize, ErrFileTooLarge)
	}

	var raw kbYAML
	if err := yaml.Unmarshal(data, &raw); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "parse failed")
		kbLoadErrors.Inc()
		return nil, fmt.Errorf("unmarshaling knowledge base YAML: %w", err)
	}

	if err := checkVersion(raw.Version); err != nil {
		kbLoadErrors.Inc()
		return nil, err
	}

	if len(raw.Classes) > MaxClasses {
		kbLoadErrors.Inc()
		return nil, fmt.Errorf("too many classes: %d (max %d)", len(raw.Classes), MaxClasses)
	}

	classes := make(map[string]*ClassSpec, len(raw.Classes))
	for name, entry := range raw.Classes {
		if name == "" {
			kbLoadErrors.Inc()
			return nil, fmt.Errorf("knowledge base declares a class with an empty name")
		}
		if len(entry.Factories)+len(entry.Setters) > MaxMethodsPerClass {
			kbLoadErrors.Inc()
			return nil, fmt.Errorf("class %s has too many methods: %d (max %d)",
				name, len(entry.Factories)+len(entry.Setters), MaxMethodsPerClass)
		}

		factories := make(map[string]MethodSpec, len(entry.Factories))
		for fname, m := range entry.Factories {
			params := m.Params
			if params == nil {
				params = []string{}
			}
			returns := m.Returns
			if returns == "" {
				returns = ReturnNone
			}
			factories[fname] = MethodSpec{Name: fname, Params: params, Returns: returns}
		}

		setters := make(map[string]string, len(entry.Setters))
		for sname, tag := range entry.Setters {
			setters[sname] = tag
		}

		classes[name] = newClassSpec(name, factories, setters)
	}

	schema, err := newSchema(raw.Version, classes)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "integrity check failed")
		kbLoadErrors.Inc()
		return nil, fmt.Errorf("verifying knowledge base: %w", err)
	}

	kbClassCount.Set(float64(schema.ClassCount()))
	kbMethodCount.Set(float64(schema.Index().Size()))

	span.SetAttributes(
		attribute.Int("class_count", schema.ClassCount()),
		attribute.Int("method_count", schema.Index().Size()),
		attribute.String("kb_version", schema.Version()),
	)

	slog.Info("knowledge base loaded",
		slog.String("source", source),
		slog.String("kb_version", schema.Version()),
		slog.Int("class_count", schema.ClassCount()),
		slog.Int("method_count", schema.Index().Size()))

	return schema, nil
}

// LoadDefault loads the embedded knowledge base.
func LoadDefault(ctx context.Context) (*Schema, error) {
	return LoadBytes(ctx, defaultKBYAML, "embedded")
}

// checkVersion gates the KB format version against SupportedKBMajor.
func checkVersion(version string) error {
	if version == "" {
		return fmt.Errorf("missing version header: %w", ErrVersionUnsupported)
	}
	v := "v" + version
	if !semver.IsValid(v) {
		return fmt.Errorf("%q is not a semantic version: %w", version, ErrVersionUnsupported)
	}
	if semver.Major(v) != SupportedKBMajor {
		return fmt.Errorf("version %s has major %s, supported %s: %w",
			version, semver.Major(v), SupportedKBMajor, ErrVersionUnsupported)
	}
	return nil
}

// readLocalKB reads a KB file with traversal and size checks.
func readLocalKB(path string) ([]byte, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving path: %w", err)
	}

	if strings.Contains(absPath, "..") {
		return nil, fmt.Errorf("readLocalKB: path traversal not allowed: %s", absPath)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("stat knowledge base: %w", err)
	}
	if info.Size() > MaxKBFileSize {
		return nil, fmt.Errorf("%d bytes (max %d): %w", info.Size(), MaxKBFileSize, ErrFileTooLarge)
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("reading knowledge base: %w", err)
	}
	return data, nil
}

// =============================================================================
// Singleton Accessor
// =============================================================================

var (
	schemaMu      sync.RWMutex
	schemaOnce    sync.Once
	cachedSchema  *Schema
	schemaLoadErr error
)

// Get returns the process-wide knowledge base, loading it on first
// call.
//
// Description:
//
//	Resolution order: the EnvKBPath environment variable, then
//	./arxval_kb.yaml and ./config/arxval_kb.yaml, then the embedded
//	default. A configured-but-broken external KB is a hard error,
//	not a silent fallback: validating against the wrong surface is
//	worse than not starting.
//
// Inputs:
//
//	ctx - Context for tracing. Must not be nil.
//
// Outputs:
//
//	*Schema - The cached schema. Never nil on success.
//	error - Non-nil if loading failed.
//
// Thread Safety: Safe for concurrent use via sync.Once.
func Get(ctx context.Context) (*Schema, error) {
	if ctx == nil {
		return nil, fmt.Errorf("schema.Get: ctx must not be nil")
	}

	schemaMu.RLock()
	if cachedSchema != nil || schemaLoadErr != nil {
		s, err := cachedSchema, schemaLoadErr
		schemaMu.RUnlock()
		return s, err
	}
	schemaMu.RUnlock()

	schemaMu.Lock()
	defer schemaMu.Unlock()

	if cachedSchema != nil || schemaLoadErr != nil {
		return cachedSchema, schemaLoadErr
	}

	schemaOnce.Do(func() {
		cachedSchema, schemaLoadErr = loadConfigured(ctx)
	})

	return cachedSchema, schemaLoadErr
}

// Reset clears the cached schema so the next Get reloads.
//
// WARNING: Intended for tests only. Resetting while passes hold the
// old pointer is safe (the Schema itself is immutable) but two
// generations will coexist until the old passes finish.
func Reset() {
	schemaMu.Lock()
	defer schemaMu.Unlock()
	schemaOnce = sync.Once{}
	cachedSchema = nil
	schemaLoadErr = nil
}

// ResolveSource returns the ambient knowledge base source: the
// EnvKBPath environment variable when set, otherwise the first
// conventional local file that exists. Empty means the embedded
// default applies.
func ResolveSource() string {
	if path := os.Getenv(EnvKBPath); path != "" {
		return path
	}
	for _, loc := range []string{"./arxval_kb.yaml", "./config/arxval_kb.yaml"} {
		if _, err := os.Stat(loc); err == nil {
			absPath, err := filepath.Abs(loc)
			if err != nil {
				return loc
			}
			return absPath
		}
	}
	return ""
}

// loadConfigured resolves the KB source and loads it.
func loadConfigured(ctx context.Context) (*Schema, error) {
	if path := ResolveSource(); path != "" {
		slog.Info("using configured knowledge base", slog.String("path", path))
		return Load(ctx, path)
	}
	slog.Debug("using embedded knowledge base")
	return LoadDefault(ctx)
}
