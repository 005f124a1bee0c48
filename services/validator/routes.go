// Copyright (C) 2026 Veloxar Systems (dev@veloxar.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package validator

import (
	"github.com/gin-gonic/gin"

	"github.com/veloxar/arxval/pkg/telemetry"
)

// RegisterRoutes registers every validator endpoint on the given
// router group.
//
// Description:
//
//	Wires the validation, knowledge base, history, and websocket
//	endpoints. Callers pass their versioned group, typically /v1.
//
// Endpoints:
//
//	POST /validate - Validate a script without rewriting it
//	POST /fix - Validate, apply deterministic fixes, revalidate
//	POST /feedback - Compose structured feedback and the LLM prompt
//	POST /reflexion - Run the LLM repair loop (requires a backend)
//	GET /schema/classes - List knowledge base classes (paged)
//	GET /schema/classes/:name - One class's factories and setters
//	GET /schema/methods/:name - Method index lookup
//	GET /history/:pass_id - Stored attempt records
//	GET /ws/validate - Websocket streaming per-stage pass progress
//
// Example:
//
//	router := gin.New()
//	svc := validator.NewService(sch, validator.DefaultServiceConfig())
//	handlers := validator.NewHandlers(svc)
//	v1 := router.Group("/v1")
//	validator.RegisterRoutes(v1, handlers)
func RegisterRoutes(rg *gin.RouterGroup, h *Handlers) {
	rg.POST("/validate", h.HandleValidate)
	rg.POST("/fix", h.HandleFix)
	rg.POST("/feedback", h.HandleFeedback)
	rg.POST("/reflexion", h.HandleReflexion)

	schemaGroup := rg.Group("/schema")
	{
		schemaGroup.GET("/classes", h.HandleListClasses)
		schemaGroup.GET("/classes/:name", h.HandleGetClass)
		schemaGroup.GET("/methods/:name", h.HandleLookupMethod)
	}

	historyGroup := rg.Group("/history")
	{
		historyGroup.GET("/:pass_id", h.HandleHistory)
	}

	wsGroup := rg.Group("/ws")
	{
		wsGroup.GET("/validate", h.HandleValidateWS)
	}
}

// RegisterOps registers the operational endpoints on the root router:
// GET /healthz always, and GET /metrics when the Prometheus exporter
// is initialized.
func RegisterOps(router *gin.Engine, h *Handlers) {
	router.GET("/healthz", h.HandleHealth)
	if mh := telemetry.MetricsHandler(); mh != nil {
		router.GET("/metrics", gin.WrapH(mh))
	}
}
