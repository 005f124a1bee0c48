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
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/veloxar/arxval/services/llm"
	"github.com/veloxar/arxval/services/validator/analysis"
	"github.com/veloxar/arxval/services/validator/history"
	"github.com/veloxar/arxval/services/validator/memory"
	"github.com/veloxar/arxval/services/validator/pipeline"
	"github.com/veloxar/arxval/services/validator/validate"
)

// ServiceVersion is the current version of the validator service.
const ServiceVersion = "0.1.0"

// Handlers holds the HTTP handlers and their dependencies.
//
// The service itself covers every synchronous validation endpoint.
// The LLM client, history store, and fix memory are optional; the
// endpoints that need them return 503 until they are attached.
type Handlers struct {
	svc          *Service
	llmClient    llm.LLMClient
	historyStore *history.Store
	memoryStore  *memory.Store
	llmLimiter   *rate.Limiter
}

// NewHandlers creates handlers over the given service.
func NewHandlers(svc *Service) *Handlers {
	cfg := svc.Config()
	return &Handlers{
		svc:        svc,
		llmLimiter: rate.NewLimiter(rate.Limit(cfg.LLMRate), cfg.LLMBurst),
	}
}

// WithLLM attaches the LLM backend the reflexion endpoint runs on.
func (h *Handlers) WithLLM(client llm.LLMClient) *Handlers {
	h.llmClient = client
	return h
}

// WithHistory attaches the attempt history store.
func (h *Handlers) WithHistory(store *history.Store) *Handlers {
	h.historyStore = store
	return h
}

// WithMemory attaches the fix memory used to enrich reflexion prompts.
func (h *Handlers) WithMemory(store *memory.Store) *Handlers {
	h.memoryStore = store
	return h
}

// getOrCreateRequestID gets or creates a request ID.
func getOrCreateRequestID(c *gin.Context) string {
	requestID := c.GetHeader("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Header("X-Request-ID", requestID)
	return requestID
}

// bindScriptRequest binds, validates, and defaults a ScriptRequest.
// On failure it has already written the error response.
func bindScriptRequest(c *gin.Context, logger *slog.Logger, req *ScriptRequest) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		logger.Warn("Invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "Invalid request body",
			Code:  "INVALID_REQUEST",
		})
		return false
	}
	if err := req.Validate(); err != nil {
		logger.Warn("Request validation failed", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: err.Error(),
			Code:  "INVALID_REQUEST",
		})
		return false
	}
	req.EnsureDefaults()
	return true
}

// passErrorStatus maps a pipeline error to its HTTP status and code.
func passErrorStatus(err error, fallback string) (int, string) {
	switch {
	case errors.Is(err, analysis.ErrScriptTooLarge):
		return http.StatusBadRequest, "SCRIPT_TOO_LARGE"
	case errors.Is(err, analysis.ErrInvalidContent):
		return http.StatusBadRequest, "INVALID_ENCODING"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "PASS_TIMEOUT"
	default:
		return http.StatusInternalServerError, fallback
	}
}

// HandleValidate handles POST /v1/validate.
//
// Description:
//
//	Runs one validate-only pass over the submitted script. The script
//	is never rewritten; findings report what an auto-fix would change.
//
// Request Body:
//
//	ScriptRequest
//
// Response:
//
//	200 OK: ValidateResponse
//	400 Bad Request: Validation error or unparseable payload
//	500 Internal Server Error: Processing error
func (h *Handlers) HandleValidate(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleValidate")

	var req ScriptRequest
	if !bindScriptRequest(c, logger, &req) {
		return
	}

	logger.Info("Validating script", "script", req.Name, "bytes", len(req.Script))

	pr, err := h.svc.Validate(c.Request.Context(), []byte(req.Script), req.Name)
	if err != nil {
		status, code := passErrorStatus(err, "VALIDATE_FAILED")
		logger.Error("Validation failed", "error", err)
		c.JSON(status, ErrorResponse{Error: err.Error(), Code: code})
		return
	}

	logger.Info("Validation complete",
		"pass_id", pr.PassID,
		"valid", pr.Result.Valid,
		"errors", pr.Result.ErrorCount(),
		"warnings", pr.Result.WarningCount())

	c.JSON(http.StatusOK, newValidateResponse(pr))
}

// HandleFix handles POST /v1/fix.
//
// Description:
//
//	Runs a pass with deterministic fixes enabled. When the script had
//	fixable errors the response carries the rewritten source, the
//	individual rewrites, and a unified diff.
//
// Request Body:
//
//	ScriptRequest
//
// Response:
//
//	200 OK: FixResponse
//	400 Bad Request: Validation error or unparseable payload
//	500 Internal Server Error: Processing error
func (h *Handlers) HandleFix(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleFix")

	var req ScriptRequest
	if !bindScriptRequest(c, logger, &req) {
		return
	}

	logger.Info("Fixing script", "script", req.Name, "bytes", len(req.Script))

	pr, err := h.svc.Fix(c.Request.Context(), []byte(req.Script), req.Name)
	if err != nil {
		status, code := passErrorStatus(err, "FIX_FAILED")
		logger.Error("Fix failed", "error", err)
		c.JSON(status, ErrorResponse{Error: err.Error(), Code: code})
		return
	}

	logger.Info("Fix complete",
		"pass_id", pr.PassID,
		"changed", pr.FixedScript != "",
		"applied", len(pr.Applied),
		"valid", pr.Result.Valid)

	c.JSON(http.StatusOK, FixResponse{
		ValidateResponse: newValidateResponse(pr),
		Changed:          pr.FixedScript != "",
		FixedScript:      pr.FixedScript,
		Applied:          pr.Applied,
		Diff:             pr.Diff,
		Hunks:            pr.Hunks,
	})
}

// HandleFeedback handles POST /v1/feedback.
//
// Description:
//
//	Validates the script and composes the structured report plus the
//	prompt text an LLM rewrite of it would receive.
//
// Request Body:
//
//	ScriptRequest
//
// Response:
//
//	200 OK: FeedbackResponse
//	400 Bad Request: Validation error or unparseable payload
//	500 Internal Server Error: Processing error
func (h *Handlers) HandleFeedback(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleFeedback")

	var req ScriptRequest
	if !bindScriptRequest(c, logger, &req) {
		return
	}

	pr, report, prompt, err := h.svc.Feedback(c.Request.Context(), []byte(req.Script), req.Name)
	if err != nil {
		status, code := passErrorStatus(err, "FEEDBACK_FAILED")
		logger.Error("Feedback failed", "error", err)
		c.JSON(status, ErrorResponse{Error: err.Error(), Code: code})
		return
	}

	logger.Info("Feedback composed",
		"pass_id", pr.PassID,
		"rejected", report.Rejected,
		"issues", len(report.Issues))

	c.JSON(http.StatusOK, FeedbackResponse{
		PassID: pr.PassID,
		Valid:  pr.Result.Valid,
		Report: report,
		Prompt: prompt,
	})
}

// HandleReflexion handles POST /v1/reflexion.
//
// Description:
//
//	Runs the full repair loop: validate, deterministic fixes, then
//	LLM rewrites with composed feedback until the script is valid or
//	attempts run out. LLM calls across concurrent requests share one
//	rate limiter.
//
// Request Body:
//
//	ReflexionRequest
//
// Response:
//
//	200 OK: ReflexionResponse
//	400 Bad Request: Validation error or unparseable payload
//	500 Internal Server Error: Processing error
//	503 Service Unavailable: No LLM backend configured
func (h *Handlers) HandleReflexion(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleReflexion")

	if h.llmClient == nil {
		logger.Warn("Reflexion requested but no LLM backend configured")
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{
			Error: "Reflexion requires an LLM backend configuration",
			Code:  "LLM_NOT_CONFIGURED",
		})
		return
	}

	var req ReflexionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "Invalid request body",
			Code:  "INVALID_REQUEST",
		})
		return
	}
	if err := req.Validate(); err != nil {
		logger.Warn("Request validation failed", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: err.Error(),
			Code:  "INVALID_REQUEST",
		})
		return
	}
	req.EnsureDefaults()

	logger.Info("Starting reflexion loop",
		"script", req.Name,
		"bytes", len(req.Script),
		"max_attempts", req.MaxAttempts)

	opts := []pipeline.LoopOption{pipeline.WithLimiter(h.llmLimiter)}
	if h.historyStore != nil {
		opts = append(opts, pipeline.WithHistory(h.historyStore))
	}
	if h.memoryStore != nil {
		opts = append(opts, pipeline.WithMemory(h.memoryStore))
	}
	if req.MaxAttempts > 0 {
		opts = append(opts, pipeline.WithMaxAttempts(req.MaxAttempts))
	}
	if req.Params != nil {
		opts = append(opts, pipeline.WithGenerationParams(*req.Params))
	}

	loop := pipeline.NewReflexionLoop(h.svc.FixPipeline(), h.llmClient, opts...)
	lr, err := loop.Run(c.Request.Context(), []byte(req.Script), req.Name)
	if err != nil {
		status, code := passErrorStatus(err, "REFLEXION_FAILED")
		logger.Error("Reflexion loop failed", "error", err)
		c.JSON(status, ErrorResponse{Error: err.Error(), Code: code})
		return
	}

	logger.Info("Reflexion loop complete",
		"pass_id", lr.PassID,
		"valid", lr.Result.Valid,
		"repaired", lr.Repaired,
		"attempts", len(lr.Attempts))

	findings := lr.Result.Findings
	if findings == nil {
		findings = []validate.Finding{}
	}
	c.JSON(http.StatusOK, ReflexionResponse{
		PassID:     lr.PassID,
		Valid:      lr.Result.Valid,
		Repaired:   lr.Repaired,
		Script:     lr.Script,
		ErrorCount: lr.Result.ErrorCount(),
		Findings:   findings,
		Attempts:   lr.Attempts,
	})
}

// HandleListClasses handles GET /v1/schema/classes.
//
// Description:
//
//	Lists the knowledge base classes, paged and sorted by name.
//
// Query Parameters:
//
//	offset: Number of classes to skip (optional)
//	limit: Page size (optional, default and cap from ServiceConfig)
//
// Response:
//
//	200 OK: ClassesResponse
//	400 Bad Request: Invalid query parameters
func (h *Handlers) HandleListClasses(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleListClasses")

	var req ClassesRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		logger.Warn("Invalid query parameters", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "Invalid query parameters",
			Code:  "INVALID_REQUEST",
		})
		return
	}

	cfg := h.svc.Config()
	limit := req.Limit
	if limit <= 0 {
		limit = cfg.DefaultPageSize
	}
	if limit > cfg.MaxPageSize {
		limit = cfg.MaxPageSize
	}

	sch := h.svc.Schema()
	names := sch.ClassNames()
	total := len(names)

	offset := req.Offset
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}

	page := make([]ClassSummary, 0, end-offset)
	for _, name := range names[offset:end] {
		cls, ok := sch.Class(name)
		if !ok {
			continue
		}
		page = append(page, ClassSummary{
			Name:      name,
			Factories: len(cls.FactoryNames()),
			Setters:   len(cls.SetterNames()),
		})
	}

	c.JSON(http.StatusOK, ClassesResponse{
		KBVersion: sch.Version(),
		Total:     total,
		Offset:    offset,
		Limit:     limit,
		Classes:   page,
	})
}

// HandleGetClass handles GET /v1/schema/classes/:name.
//
// Description:
//
//	Returns one class's declared factories and setters.
//
// Response:
//
//	200 OK: ClassResponse
//	404 Not Found: Class is not in the knowledge base
func (h *Handlers) HandleGetClass(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleGetClass")

	name := c.Param("name")
	cls, ok := h.svc.Schema().Class(name)
	if !ok {
		logger.Info("Class not found", "class", name)
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error: "class " + name + " is not in the knowledge base",
			Code:  "CLASS_NOT_FOUND",
		})
		return
	}

	factories := make(map[string]FactoryInfo, len(cls.FactoryNames()))
	for _, fn := range cls.FactoryNames() {
		spec, _ := cls.Factory(fn)
		factories[fn] = FactoryInfo{Params: spec.Params, Returns: spec.Returns}
	}
	setters := make(map[string]string, len(cls.SetterNames()))
	for _, sn := range cls.SetterNames() {
		typ, _ := cls.Setter(sn)
		setters[sn] = typ
	}

	c.JSON(http.StatusOK, ClassResponse{
		Name:      cls.Name(),
		Factories: factories,
		Setters:   setters,
	})
}

// HandleLookupMethod handles GET /v1/schema/methods/:name.
//
// Description:
//
//	Looks a method name up in the flat index and returns every class
//	declaring it.
//
// Response:
//
//	200 OK: MethodResponse
//	404 Not Found: No class declares the method
func (h *Handlers) HandleLookupMethod(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleLookupMethod")

	name := c.Param("name")
	refs := h.svc.Schema().Index().Lookup(name)
	if len(refs) == 0 {
		logger.Info("Method not found", "method", name)
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error: "no class declares method " + name,
			Code:  "METHOD_NOT_FOUND",
		})
		return
	}

	out := make([]MethodRefInfo, 0, len(refs))
	for _, ref := range refs {
		out = append(out, MethodRefInfo{Class: ref.Class, Kind: ref.Kind.String()})
	}

	c.JSON(http.StatusOK, MethodResponse{Method: name, Refs: out})
}

// HandleHistory handles GET /v1/history/:pass_id.
//
// Description:
//
//	Returns the stored attempt records of one pass, in attempt order.
//
// Response:
//
//	200 OK: HistoryResponse
//	404 Not Found: No records for the pass
//	503 Service Unavailable: History store not configured
func (h *Handlers) HandleHistory(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleHistory")

	if h.historyStore == nil {
		logger.Warn("History requested but no store configured")
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{
			Error: "History requires a history store configuration",
			Code:  "HISTORY_NOT_CONFIGURED",
		})
		return
	}

	passID := c.Param("pass_id")
	records, err := h.historyStore.Attempts(c.Request.Context(), passID)
	if err != nil {
		logger.Error("History lookup failed", "pass_id", passID, "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: err.Error(),
			Code:  "HISTORY_FAILED",
		})
		return
	}
	if len(records) == 0 {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error: "no attempts recorded for pass " + passID,
			Code:  "PASS_NOT_FOUND",
		})
		return
	}

	c.JSON(http.StatusOK, HistoryResponse{PassID: passID, Attempts: records})
}

// HandleHealth handles GET /healthz.
//
// Response:
//
//	200 OK: HealthResponse
func (h *Handlers) HandleHealth(c *gin.Context) {
	sch := h.svc.Schema()
	c.JSON(http.StatusOK, HealthResponse{
		Status:    "healthy",
		Version:   ServiceVersion,
		KBVersion: sch.Version(),
		Classes:   sch.ClassCount(),
		Methods:   sch.Index().Size(),
	})
}
