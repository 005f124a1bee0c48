// Copyright (C) 2026 Veloxar Systems (dev@veloxar.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"os"
	"path/filepath"
)

// CurrentConfigVersion marks the config file layout. Bump when a field
// changes meaning, not when one is added.
const CurrentConfigVersion = "1"

type ArxvalConfig struct {
	// Meta tracks the config file itself.
	Meta MetaConfig `yaml:"meta"`

	// KB points at the knowledge base the commands load.
	KB KBConfig `yaml:"kb"`

	// Serve configures the HTTP service.
	Serve ServeConfig `yaml:"serve"`

	// LLM selects the backend for the reflexion loop. Environment
	// variables win over these values.
	LLM LLMConfig `yaml:"llm"`

	// History configures attempt record storage.
	History HistoryConfig `yaml:"history"`

	// Memory configures the Weaviate-backed fix memory.
	Memory MemoryConfig `yaml:"memory"`

	// Telemetry selects trace and metric exporters for serve.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

type MetaConfig struct {
	Version string `yaml:"version"`
}

type KBConfig struct {
	// Path is a local file or gs:// URI. Empty uses the embedded
	// knowledge base.
	Path string `yaml:"path"`

	// Watch reloads the knowledge base when the file changes. Only
	// serve honors it, and only for local paths.
	Watch bool `yaml:"watch"`
}

type ServeConfig struct {
	Addr     string  `yaml:"addr"`      // e.g. :8089
	LLMRate  float64 `yaml:"llm_rate"`  // reflexion LLM calls per second
	LLMBurst int     `yaml:"llm_burst"` // reflexion LLM burst size
}

type LLMConfig struct {
	// Backend can be "ollama" or "openai". Empty leaves the choice to
	// ARXVAL_LLM_BACKEND.
	Backend string `yaml:"backend"`
	Model   string `yaml:"model,omitempty"`
	BaseURL string `yaml:"base_url,omitempty"`
}

type HistoryConfig struct {
	Enabled bool `yaml:"enabled"`

	// Path is the badger directory. Empty means ~/.arxval/history.
	Path string `yaml:"path,omitempty"`
}

type MemoryConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url,omitempty"` // e.g. http://localhost:8080
}

type TelemetryConfig struct {
	// Traces can be "otlp", "jaeger", "stdout", or "none".
	Traces string `yaml:"traces"`

	// Metrics can be "prometheus", "stdout", or "none".
	Metrics string `yaml:"metrics"`
}

// HistoryPath resolves the badger directory, defaulting under the
// user's home.
func (c HistoryConfig) HistoryPath() string {
	if c.Path != "" {
		return c.Path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "arxval-history")
	}
	return filepath.Join(home, ".arxval", "history")
}

func DefaultConfig() ArxvalConfig {
	return ArxvalConfig{
		Meta: MetaConfig{Version: CurrentConfigVersion},
		KB: KBConfig{
			Path:  "",
			Watch: true,
		},
		Serve: ServeConfig{
			Addr:     ":8089",
			LLMRate:  1,
			LLMBurst: 1,
		},
		LLM: LLMConfig{
			Backend: "",
		},
		History: HistoryConfig{
			Enabled: true,
		},
		Memory: MemoryConfig{
			Enabled: false,
		},
		Telemetry: TelemetryConfig{
			Traces:  "none",
			Metrics: "prometheus",
		},
	}
}
