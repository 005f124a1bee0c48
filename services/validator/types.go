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
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/veloxar/arxval/services/llm"
	"github.com/veloxar/arxval/services/validator/analysis"
	"github.com/veloxar/arxval/services/validator/autofix"
	"github.com/veloxar/arxval/services/validator/feedback"
	"github.com/veloxar/arxval/services/validator/history"
	"github.com/veloxar/arxval/services/validator/pipeline"
	"github.com/veloxar/arxval/services/validator/validate"
)

// =============================================================================
// Request Validation
// =============================================================================

const (
	// DefaultScriptName names script payloads that arrive without one.
	DefaultScriptName = "script.py"

	// MaxScriptNameLen caps the script name used in diagnostics.
	MaxScriptNameLen = 255
)

// reqValidate is the validator instance for request DTOs.
// Initialized in init() with custom validators.
var reqValidate *validator.Validate

func init() {
	reqValidate = validator.New()

	_ = reqValidate.RegisterValidation("maxscript", validateMaxScript)
	_ = reqValidate.RegisterValidation("scriptname", validateScriptName)
}

// validateMaxScript rejects script payloads over the parser's hard cap.
// Checks byte length, not rune count; oversized payloads must fail
// before any of them is buffered further.
func validateMaxScript(fl validator.FieldLevel) bool {
	return len(fl.Field().String()) <= analysis.DefaultMaxScriptSize
}

// validateScriptName rejects names that would corrupt diagnostics or
// stored records. Names are labels, not paths.
func validateScriptName(fl validator.FieldLevel) bool {
	name := fl.Field().String()
	if len(name) > MaxScriptNameLen {
		return false
	}
	return !strings.ContainsAny(name, "\x00\n\r")
}

// =============================================================================
// Pass Request Types
// =============================================================================

// ScriptRequest is the request body shared by POST /v1/validate,
// /v1/fix, and /v1/feedback.
type ScriptRequest struct {
	// Script is the Python source to validate. Required, max 2MB.
	Script string `json:"script" binding:"required" validate:"required,maxscript"`

	// Name labels the script in findings and records. Default: "script.py".
	Name string `json:"name" validate:"scriptname"`
}

// Validate validates the request fields with the custom rules.
// Call after binding the JSON body.
func (r *ScriptRequest) Validate() error {
	return reqValidate.Struct(r)
}

// EnsureDefaults populates default values for optional fields.
func (r *ScriptRequest) EnsureDefaults() {
	if r.Name == "" {
		r.Name = DefaultScriptName
	}
}

// ReflexionRequest is the request body for POST /v1/reflexion.
type ReflexionRequest struct {
	// Script is the Python source to repair. Required, max 2MB.
	Script string `json:"script" binding:"required" validate:"required,maxscript"`

	// Name labels the script in findings and records. Default: "script.py".
	Name string `json:"name" validate:"scriptname"`

	// MaxAttempts bounds the LLM rewrites. 0 keeps the loop default.
	MaxAttempts int `json:"max_attempts" validate:"gte=0,lte=10"`

	// Params overrides the model sampling parameters for this request.
	Params *llm.GenerationParams `json:"params"`
}

// Validate validates the request fields with the custom rules.
func (r *ReflexionRequest) Validate() error {
	return reqValidate.Struct(r)
}

// EnsureDefaults populates default values for optional fields.
func (r *ReflexionRequest) EnsureDefaults() {
	if r.Name == "" {
		r.Name = DefaultScriptName
	}
}

// =============================================================================
// Pass Response Types
// =============================================================================

// ValidateResponse is the response for POST /v1/validate.
type ValidateResponse struct {
	// PassID uniquely identifies this pass.
	PassID string `json:"pass_id"`

	// Valid is true when the script produced no Error findings.
	Valid bool `json:"valid"`

	// ErrorCount, WarningCount, and FixedCount total the findings by
	// severity.
	ErrorCount   int `json:"error_count"`
	WarningCount int `json:"warning_count"`
	FixedCount   int `json:"fixed_count"`

	// Findings lists every finding, errors first.
	Findings []validate.Finding `json:"findings"`

	// ScriptName and ScriptHash identify the validated source.
	ScriptName string `json:"script_name"`
	ScriptHash string `json:"script_hash,omitempty"`

	// Trace records which stages the pass entered and when.
	Trace []pipeline.Transition `json:"trace"`

	// DurationMs is the total pass time in milliseconds.
	DurationMs int64 `json:"duration_ms"`
}

// newValidateResponse maps a completed pass onto the wire shape.
func newValidateResponse(pr *pipeline.PassResult) ValidateResponse {
	findings := pr.Result.Findings
	if findings == nil {
		findings = []validate.Finding{}
	}
	return ValidateResponse{
		PassID:       pr.PassID,
		Valid:        pr.Result.Valid,
		ErrorCount:   pr.Result.ErrorCount(),
		WarningCount: pr.Result.WarningCount(),
		FixedCount:   pr.Result.FixedCount(),
		Findings:     findings,
		ScriptName:   pr.Result.ScriptName,
		ScriptHash:   pr.Result.ScriptHash,
		Trace:        pr.Trace,
		DurationMs:   pr.Duration.Milliseconds(),
	}
}

// FixResponse is the response for POST /v1/fix.
type FixResponse struct {
	ValidateResponse

	// Changed is true when deterministic fixes rewrote the script.
	Changed bool `json:"changed"`

	// FixedScript is the rewritten source. Empty when nothing changed.
	FixedScript string `json:"fixed_script,omitempty"`

	// Applied lists the individual rewrites.
	Applied []autofix.Fix `json:"applied,omitempty"`

	// Diff is a unified diff from the input to FixedScript.
	Diff string `json:"diff,omitempty"`

	// Hunks is the structured form of Diff.
	Hunks []autofix.HunkRecord `json:"hunks,omitempty"`
}

// FeedbackResponse is the response for POST /v1/feedback.
type FeedbackResponse struct {
	// PassID identifies the validation pass behind the report.
	PassID string `json:"pass_id"`

	// Valid is true when the script produced no Error findings.
	Valid bool `json:"valid"`

	// Report is the structured feedback.
	Report *feedback.Report `json:"report"`

	// Prompt is the feedback text an LLM rewrite would receive. Empty
	// for valid scripts.
	Prompt string `json:"prompt,omitempty"`
}

// ReflexionResponse is the response for POST /v1/reflexion.
type ReflexionResponse struct {
	// PassID identifies the loop. Attempt records share it.
	PassID string `json:"pass_id"`

	// Valid is true when the final script passed validation.
	Valid bool `json:"valid"`

	// Repaired is true when the final script is valid and differs from
	// the input.
	Repaired bool `json:"repaired"`

	// Script is the final source, repaired or not.
	Script string `json:"script"`

	// ErrorCount totals the Error findings left in the final script.
	ErrorCount int `json:"error_count"`

	// Findings lists the findings of the final validation.
	Findings []validate.Finding `json:"findings"`

	// Attempts snapshots every attempt in order.
	Attempts []history.AttemptRecord `json:"attempts"`
}

// =============================================================================
// Knowledge Base Types
// =============================================================================

// ClassesRequest is the query params for GET /v1/schema/classes.
type ClassesRequest struct {
	// Offset is the number of classes to skip for pagination.
	Offset int `form:"offset" binding:"omitempty,gte=0"`

	// Limit is the page size. Default and cap come from ServiceConfig.
	Limit int `form:"limit" binding:"omitempty,gte=1"`
}

// ClassSummary is one row of the class listing.
type ClassSummary struct {
	// Name is the class name.
	Name string `json:"name"`

	// Factories and Setters count the declared methods.
	Factories int `json:"factories"`
	Setters   int `json:"setters"`
}

// ClassesResponse is the response for GET /v1/schema/classes.
type ClassesResponse struct {
	// KBVersion is the loaded knowledge base version.
	KBVersion string `json:"kb_version"`

	// Total is the number of classes in the knowledge base.
	Total int `json:"total"`

	// Offset and Limit echo the effective paging window.
	Offset int `json:"offset"`
	Limit  int `json:"limit"`

	// Classes is the page, sorted by name.
	Classes []ClassSummary `json:"classes"`
}

// FactoryInfo describes one factory method of a class.
type FactoryInfo struct {
	// Params holds one type tag per positional parameter.
	Params []string `json:"params"`

	// Returns is the constructed class name, or "None".
	Returns string `json:"returns"`
}

// ClassResponse is the response for GET /v1/schema/classes/:name.
type ClassResponse struct {
	// Name is the class name.
	Name string `json:"name"`

	// Factories maps factory method names to their signatures.
	Factories map[string]FactoryInfo `json:"factories"`

	// Setters maps setter names to the value type tag they accept.
	Setters map[string]string `json:"setters"`
}

// MethodRefInfo is one (class, kind) pair declaring a method.
type MethodRefInfo struct {
	Class string `json:"class"`
	Kind  string `json:"kind"`
}

// MethodResponse is the response for GET /v1/schema/methods/:name.
type MethodResponse struct {
	// Method is the method name that was looked up.
	Method string `json:"method"`

	// Refs lists every class declaring it, with the method kind.
	Refs []MethodRefInfo `json:"refs"`
}

// =============================================================================
// History, Health, and Error Types
// =============================================================================

// HistoryResponse is the response for GET /v1/history/:pass_id.
type HistoryResponse struct {
	// PassID is the pass whose attempts were looked up.
	PassID string `json:"pass_id"`

	// Attempts lists the stored records in attempt order.
	Attempts []history.AttemptRecord `json:"attempts"`
}

// HealthResponse is the response for GET /healthz.
type HealthResponse struct {
	// Status is "healthy" when the service can validate scripts.
	Status string `json:"status"`

	// Version is the service version.
	Version string `json:"version"`

	// KBVersion is the loaded knowledge base version.
	KBVersion string `json:"kb_version"`

	// Classes and Methods size the loaded knowledge base.
	Classes int `json:"classes"`
	Methods int `json:"methods"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	// Error is the error message.
	Error string `json:"error"`

	// Code is the error code (optional).
	Code string `json:"code,omitempty"`
}
