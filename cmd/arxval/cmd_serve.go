// Copyright (C) 2026 Veloxar Systems (dev@veloxar.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/veloxar/arxval/cmd/arxval/config"
	"github.com/veloxar/arxval/pkg/logging"
	"github.com/veloxar/arxval/pkg/telemetry"
	"github.com/veloxar/arxval/services/llm"
	"github.com/veloxar/arxval/services/validator"
	"github.com/veloxar/arxval/services/validator/history"
	"github.com/veloxar/arxval/services/validator/memory"
	"github.com/veloxar/arxval/services/validator/schema"
	vtelemetry "github.com/veloxar/arxval/services/validator/telemetry"
)

func runServe(cmd *cobra.Command, args []string) {
	ctx := context.Background()

	lg := logging.New(logging.Config{
		Level:   logging.LevelInfo,
		Service: "validator",
		JSON:    true,
	})
	defer lg.Close()
	slog.SetDefault(lg.Slog())

	cfg := config.Global

	// The config file picks the exporters; OTEL_* env vars still win
	// inside DefaultConfig for endpoints.
	telCfg := telemetry.DefaultConfig()
	if cfg.Telemetry.Traces != "" {
		telCfg.TraceExporter = cfg.Telemetry.Traces
	}
	if cfg.Telemetry.Metrics != "" {
		telCfg.MetricExporter = cfg.Telemetry.Metrics
	}
	shutdown, err := telemetry.Init(ctx, telCfg)
	if err != nil {
		log.Fatalf("Failed to set up telemetry: %v", err)
	}
	defer shutdown(context.Background())

	kb := resolveKBPath()
	var s *schema.Schema
	if kb == "" {
		s, err = schema.LoadDefault(ctx)
	} else {
		s, err = schema.Load(ctx, kb)
	}
	if err != nil {
		log.Fatalf("FATAL: could not load the knowledge base: %v", err)
	}

	recorder, err := vtelemetry.NewRecorderFromEnv()
	if err != nil {
		slog.Warn("InfluxDB telemetry disabled", "error", err)
		recorder = nil
	}
	defer recorder.Close()

	svcCfg := validator.DefaultServiceConfig()
	svcCfg.KBPath = kb
	if cfg.Serve.LLMRate > 0 {
		svcCfg.LLMRate = cfg.Serve.LLMRate
	}
	if cfg.Serve.LLMBurst > 0 {
		svcCfg.LLMBurst = cfg.Serve.LLMBurst
	}
	svcCfg.Telemetry = recorder

	svc := validator.NewService(s, svcCfg)
	handlers := validator.NewHandlers(svc)

	bridgeLLMEnv(cfg.LLM)
	llmClient, err := llm.NewFromEnv()
	if err != nil {
		slog.Warn("LLM backend unavailable, reflexion disabled", "error", err)
	} else {
		handlers = handlers.WithLLM(llmClient)
		defer llm.PurgeSecrets()
	}

	if cfg.History.Enabled {
		hCfg := history.DefaultConfig()
		hCfg.Path = cfg.HistoryPath()
		hCfg.Logger = slog.Default()
		store, err := history.Open(hCfg)
		if err != nil {
			slog.Warn("Attempt history disabled", "error", err, "path", hCfg.Path)
		} else {
			defer store.Close()
			handlers = handlers.WithHistory(store)
		}
	}

	if cfg.Memory.Enabled && cfg.Memory.URL != "" {
		store, err := memory.NewStoreFromURL(cfg.Memory.URL, s.Version())
		if err != nil {
			slog.Warn("Fix memory disabled", "error", err, "url", cfg.Memory.URL)
		} else if err := store.EnsureSchema(ctx); err != nil {
			slog.Warn("Fix memory disabled", "error", err, "url", cfg.Memory.URL)
		} else {
			handlers = handlers.WithMemory(store)
		}
	} else if cfg.Memory.Enabled {
		slog.Info("memory.url not set. Running without fix memory.")
	}

	// Hot-reload local KB files so a regenerated KB does not need a
	// restart. gs:// sources have nothing to watch.
	if cfg.KB.Watch && kb != "" && !strings.HasPrefix(kb, "gs://") {
		watcher, werr := schema.NewWatcher(ctx, kb)
		if werr == nil {
			watcher.OnSwap(svc.Swap)
			werr = watcher.Start(ctx)
		}
		if werr != nil {
			slog.Warn("Knowledge base watch disabled", "error", werr, "path", kb)
		} else {
			defer watcher.Stop()
		}
	}

	router := gin.Default()
	if telCfg.TraceExporter != "none" {
		router.Use(otelgin.Middleware("arxval-validator"))
	}

	v1 := router.Group("/v1")
	validator.RegisterRoutes(v1, handlers)
	validator.RegisterOps(router, handlers)

	addr := cfg.Serve.Addr
	if serveAddr != "" {
		addr = serveAddr
	}
	if addr == "" {
		addr = ":8089"
	}

	slog.Info("Starting the validation service",
		"addr", addr,
		"kb_version", s.Version(),
		"classes", s.ClassCount())
	if err := router.Run(addr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// bridgeLLMEnv copies file-config LLM settings into the environment
// variables the llm package reads. Already-set variables are left
// alone so the environment wins over the file.
func bridgeLLMEnv(c config.LLMConfig) {
	setIfUnset := func(key, value string) {
		if value != "" && os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}

	setIfUnset(llm.EnvBackend, c.Backend)
	switch {
	case c.Backend == "openai" || os.Getenv(llm.EnvBackend) == "openai":
		setIfUnset("OPENAI_MODEL", c.Model)
		setIfUnset("OPENAI_BASE_URL", c.BaseURL)
	default:
		setIfUnset("OLLAMA_MODEL", c.Model)
		setIfUnset("OLLAMA_BASE_URL", c.BaseURL)
	}
}
