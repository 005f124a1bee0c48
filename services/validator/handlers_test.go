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
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/veloxar/arxval/services/llm"
	"github.com/veloxar/arxval/services/validator/history"
	"github.com/veloxar/arxval/services/validator/schema"
	"github.com/veloxar/arxval/services/validator/validate"
)

func init() {
	// Set Gin to test mode to reduce noise
	gin.SetMode(gin.TestMode)
}

const serviceKB = `
version: "1.0.0"
classes:
  autosarfactory:
    factories:
      new_file:
        params: [str]
        returns: AUTOSAR
  AUTOSAR:
    factories:
      new_ArPackage:
        params: [str]
        returns: ArPackage
  ArPackage:
    factories:
      new_ApplicationSwComponentType:
        params: [str]
        returns: ApplicationSwComponentType
  ApplicationSwComponentType:
    factories:
      new_InternalBehavior:
        params: [str]
        returns: SwcInternalBehavior
    setters:
      set_category: str
  SwcInternalBehavior:
    factories:
      new_Runnable:
        params: [str]
        returns: Runnable
  Runnable:
    setters:
      set_symbol: str
`

const validScript = `import autosarfactory

root = autosarfactory.new_file("demo.arxml")
pkg = root.new_ArPackage("Pkg")
swc = pkg.new_ApplicationSwComponentType("Swc")
swc.set_category("APPLICATION")
behavior = swc.new_InternalBehavior("Behavior")
run = behavior.new_Runnable("Step")
run.set_symbol("Step_Run")
`

// renameScript calls new_SwcInternalBehavior, which the fixer rewrites
// to new_InternalBehavior.
const renameScript = `import autosarfactory

root = autosarfactory.new_file("demo.arxml")
pkg = root.new_ArPackage("Pkg")
swc = pkg.new_ApplicationSwComponentType("Swc")
behavior = swc.new_SwcInternalBehavior("Behavior")
`

// bogusScript calls a method no rename entry covers, so no
// deterministic fix applies.
const bogusScript = `import autosarfactory

root = autosarfactory.new_file("demo.arxml")
pkg = root.new_ArPackage("Pkg")
swc = pkg.new_ApplicationSwComponentType("Swc")
swc.new_Bogus("x")
`

// arityScript drops a required argument. Argument-count mismatches
// surface as warnings, so the script still validates.
const arityScript = `import autosarfactory

root = autosarfactory.new_file()
`

func newTestService(t *testing.T) *Service {
	t.Helper()
	s, err := schema.LoadBytes(context.Background(), []byte(serviceKB), "service_test.yaml")
	if err != nil {
		t.Fatalf("loading test knowledge base: %v", err)
	}
	return NewService(s, DefaultServiceConfig())
}

func setupTestRouter(h *Handlers) *gin.Engine {
	router := gin.New()
	v1 := router.Group("/v1")
	RegisterRoutes(v1, h)
	RegisterOps(router, h)
	return router
}

func postJSON(router *gin.Engine, path string, payload any) *httptest.ResponseRecorder {
	raw, _ := json.Marshal(payload)
	req, _ := http.NewRequest("POST", path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func getPath(router *gin.Engine, path string) *httptest.ResponseRecorder {
	req, _ := http.NewRequest("GET", path, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("failed to unmarshal response: %v\nbody: %s", err, w.Body.String())
	}
	return out
}

// scriptedLLM replays canned replies in order.
type scriptedLLM struct {
	mu      sync.Mutex
	replies []string
	prompts []string
}

func (s *scriptedLLM) Generate(_ context.Context, prompt string, _ llm.GenerationParams) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prompts = append(s.prompts, prompt)
	if len(s.replies) == 0 {
		return "", errors.New("no scripted reply left")
	}
	reply := s.replies[0]
	s.replies = s.replies[1:]
	return reply, nil
}

func TestHandlers_HandleHealth(t *testing.T) {
	router := setupTestRouter(NewHandlers(newTestService(t)))

	w := getPath(router, "/healthz")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
	}

	resp := decodeBody[HealthResponse](t, w)
	if resp.Status != "healthy" {
		t.Errorf("expected status 'healthy', got %q", resp.Status)
	}
	if resp.Version != ServiceVersion {
		t.Errorf("expected version %q, got %q", ServiceVersion, resp.Version)
	}
	if resp.KBVersion != "1.0.0" {
		t.Errorf("expected KB version 1.0.0, got %q", resp.KBVersion)
	}
	if resp.Classes != 6 {
		t.Errorf("expected 6 classes, got %d", resp.Classes)
	}
	if resp.Methods != 7 {
		t.Errorf("expected 7 indexed methods, got %d", resp.Methods)
	}
}

func TestHandlers_HandleValidate(t *testing.T) {
	router := setupTestRouter(NewHandlers(newTestService(t)))

	w := postJSON(router, "/v1/validate", ScriptRequest{Script: validScript, Name: "demo.py"})
	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, w.Code, w.Body.String())
	}

	resp := decodeBody[ValidateResponse](t, w)
	if !resp.Valid {
		t.Errorf("expected valid result, findings: %+v", resp.Findings)
	}
	if resp.PassID == "" {
		t.Error("expected a pass ID")
	}
	if len(resp.Findings) != 0 {
		t.Errorf("expected no findings, got %d", len(resp.Findings))
	}
	if resp.ScriptName != "demo.py" {
		t.Errorf("expected script name demo.py, got %q", resp.ScriptName)
	}
	if len(resp.Trace) == 0 {
		t.Fatal("expected a stage trace")
	}
	last := resp.Trace[len(resp.Trace)-1]
	if last.Stage != "done" {
		t.Errorf("expected final stage 'done', got %q", last.Stage)
	}
}

func TestHandlers_HandleValidate_InvalidCall(t *testing.T) {
	router := setupTestRouter(NewHandlers(newTestService(t)))

	w := postJSON(router, "/v1/validate", ScriptRequest{Script: bogusScript})
	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
	}

	resp := decodeBody[ValidateResponse](t, w)
	if resp.Valid {
		t.Error("expected invalid result")
	}
	if resp.ErrorCount != 1 {
		t.Fatalf("expected 1 error, got %d", resp.ErrorCount)
	}

	f := resp.Findings[0]
	if f.Category != validate.CategoryInvalidCall {
		t.Errorf("expected category %q, got %q", validate.CategoryInvalidCall, f.Category)
	}
	if f.Class != "ApplicationSwComponentType" || f.Method != "new_Bogus" {
		t.Errorf("finding names wrong class or method: %+v", f)
	}
	if resp.ScriptName != DefaultScriptName {
		t.Errorf("expected default script name, got %q", resp.ScriptName)
	}
}

func TestHandlers_HandleValidate_ArityWarning(t *testing.T) {
	router := setupTestRouter(NewHandlers(newTestService(t)))

	w := postJSON(router, "/v1/validate", ScriptRequest{Script: arityScript})
	resp := decodeBody[ValidateResponse](t, w)

	if !resp.Valid {
		t.Errorf("warnings must not invalidate the script, findings: %+v", resp.Findings)
	}
	if resp.WarningCount != 1 {
		t.Fatalf("expected 1 warning, got %d", resp.WarningCount)
	}
	f := resp.Findings[0]
	if f.Category != validate.CategoryArity {
		t.Errorf("expected category %q, got %q", validate.CategoryArity, f.Category)
	}
	if f.Severity != validate.SeverityWarning {
		t.Errorf("expected a warning, got %v", f.Severity)
	}
}

// The validate endpoint must never rewrite: a fixable script still comes
// back invalid here, with the rename left for /v1/fix.
func TestHandlers_HandleValidate_DoesNotFix(t *testing.T) {
	router := setupTestRouter(NewHandlers(newTestService(t)))

	w := postJSON(router, "/v1/validate", ScriptRequest{Script: renameScript})
	resp := decodeBody[ValidateResponse](t, w)

	if resp.Valid {
		t.Error("expected invalid result on the validate-only path")
	}
	if resp.FixedCount != 0 {
		t.Errorf("expected no fixed findings, got %d", resp.FixedCount)
	}
	for _, tr := range resp.Trace {
		if tr.Stage == "fixed" {
			t.Error("validate-only pass entered the fix stage")
		}
	}
}

func TestHandlers_HandleValidate_InvalidRequest(t *testing.T) {
	router := setupTestRouter(NewHandlers(newTestService(t)))

	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantCode   string
	}{
		{
			name:       "empty body",
			body:       "{}",
			wantStatus: http.StatusBadRequest,
			wantCode:   "INVALID_REQUEST",
		},
		{
			name:       "malformed JSON",
			body:       "{",
			wantStatus: http.StatusBadRequest,
			wantCode:   "INVALID_REQUEST",
		},
		{
			name:       "control character in name",
			body:       `{"script": "x = 1", "name": "bad\nname.py"}`,
			wantStatus: http.StatusBadRequest,
			wantCode:   "INVALID_REQUEST",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, _ := http.NewRequest("POST", "/v1/validate", bytes.NewBufferString(tt.body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, w.Code)
			}
			resp := decodeBody[ErrorResponse](t, w)
			if resp.Code != tt.wantCode {
				t.Errorf("expected code %q, got %q", tt.wantCode, resp.Code)
			}
		})
	}
}

func TestHandlers_HandleFix(t *testing.T) {
	router := setupTestRouter(NewHandlers(newTestService(t)))

	w := postJSON(router, "/v1/fix", ScriptRequest{Script: renameScript, Name: "gen.py"})
	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, w.Code, w.Body.String())
	}

	resp := decodeBody[FixResponse](t, w)
	if !resp.Changed {
		t.Fatal("expected the fixer to change the script")
	}
	if !resp.Valid {
		t.Errorf("expected the fixed script to revalidate clean, findings: %+v", resp.Findings)
	}
	if !strings.Contains(resp.FixedScript, "new_InternalBehavior(") {
		t.Errorf("fixed script missing renamed call:\n%s", resp.FixedScript)
	}
	if strings.Contains(resp.FixedScript, "new_SwcInternalBehavior") {
		t.Errorf("fixed script still carries the bad name:\n%s", resp.FixedScript)
	}
	if len(resp.Applied) != 1 {
		t.Fatalf("expected 1 applied fix, got %d", len(resp.Applied))
	}
	if resp.Applied[0].Before != "new_SwcInternalBehavior" || resp.Applied[0].After != "new_InternalBehavior" {
		t.Errorf("unexpected fix: %+v", resp.Applied[0])
	}
	if resp.Diff == "" {
		t.Error("expected a unified diff")
	}
	if resp.FixedCount != 1 {
		t.Errorf("expected 1 fixed finding, got %d", resp.FixedCount)
	}
}

func TestHandlers_HandleFix_NoChanges(t *testing.T) {
	router := setupTestRouter(NewHandlers(newTestService(t)))

	w := postJSON(router, "/v1/fix", ScriptRequest{Script: validScript})
	resp := decodeBody[FixResponse](t, w)

	if resp.Changed {
		t.Error("expected no changes for a valid script")
	}
	if resp.FixedScript != "" {
		t.Errorf("expected empty fixed script, got %q", resp.FixedScript)
	}
	if !resp.Valid {
		t.Error("expected valid result")
	}
}

func TestHandlers_HandleFeedback(t *testing.T) {
	router := setupTestRouter(NewHandlers(newTestService(t)))

	w := postJSON(router, "/v1/feedback", ScriptRequest{Script: bogusScript})
	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
	}

	resp := decodeBody[FeedbackResponse](t, w)
	if resp.Valid {
		t.Error("expected invalid result")
	}
	if resp.Report == nil || !resp.Report.Rejected {
		t.Fatalf("expected a rejecting report, got %+v", resp.Report)
	}
	if len(resp.Report.Issues) == 0 {
		t.Error("expected report issues")
	}
	if !strings.Contains(resp.Prompt, "VALIDATION ISSUES FOUND") {
		t.Errorf("prompt missing issue header:\n%s", resp.Prompt)
	}
	if !strings.Contains(resp.Prompt, "new_Bogus") {
		t.Errorf("prompt missing offending method:\n%s", resp.Prompt)
	}
}

func TestHandlers_HandleFeedback_ValidScript(t *testing.T) {
	router := setupTestRouter(NewHandlers(newTestService(t)))

	w := postJSON(router, "/v1/feedback", ScriptRequest{Script: validScript})
	resp := decodeBody[FeedbackResponse](t, w)

	if !resp.Valid {
		t.Error("expected valid result")
	}
	if resp.Report == nil || resp.Report.Rejected {
		t.Errorf("expected an accepting report, got %+v", resp.Report)
	}
	if resp.Prompt != "" {
		t.Errorf("expected no prompt for a clean script, got:\n%s", resp.Prompt)
	}
}

func TestHandlers_HandleReflexion_NotConfigured(t *testing.T) {
	router := setupTestRouter(NewHandlers(newTestService(t)))

	w := postJSON(router, "/v1/reflexion", ReflexionRequest{Script: bogusScript})
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status %d, got %d", http.StatusServiceUnavailable, w.Code)
	}
	resp := decodeBody[ErrorResponse](t, w)
	if resp.Code != "LLM_NOT_CONFIGURED" {
		t.Errorf("expected code LLM_NOT_CONFIGURED, got %q", resp.Code)
	}
}

func TestHandlers_HandleReflexion(t *testing.T) {
	mock := &scriptedLLM{replies: []string{
		"import autosarfactory\n\nroot = autosarfactory.new_file(\"demo.arxml\")\n",
	}}
	h := NewHandlers(newTestService(t)).WithLLM(mock)
	router := setupTestRouter(h)

	w := postJSON(router, "/v1/reflexion", ReflexionRequest{Script: bogusScript, MaxAttempts: 2})
	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, w.Code, w.Body.String())
	}

	resp := decodeBody[ReflexionResponse](t, w)
	if !resp.Valid {
		t.Errorf("expected the loop to end valid, findings: %+v", resp.Findings)
	}
	if !resp.Repaired {
		t.Error("expected Repaired=true")
	}
	if !strings.Contains(resp.Script, `new_file("demo.arxml")`) {
		t.Errorf("final script missing the rewrite:\n%s", resp.Script)
	}
	if len(resp.Attempts) != 2 {
		t.Fatalf("expected 2 attempt records, got %d", len(resp.Attempts))
	}
	if resp.Attempts[0].Valid || !resp.Attempts[1].Valid {
		t.Errorf("attempt validity out of order: %+v", resp.Attempts)
	}

	mock.mu.Lock()
	defer mock.mu.Unlock()
	if len(mock.prompts) != 1 {
		t.Fatalf("expected 1 LLM call, got %d", len(mock.prompts))
	}
	if !strings.Contains(mock.prompts[0], "VALIDATION ISSUES FOUND") {
		t.Errorf("LLM prompt missing composed feedback:\n%s", mock.prompts[0])
	}
}

func TestHandlers_HandleReflexion_RecordsHistory(t *testing.T) {
	store, err := history.OpenInMemory()
	if err != nil {
		t.Fatalf("opening history store: %v", err)
	}
	defer store.Close()

	mock := &scriptedLLM{replies: []string{
		"import autosarfactory\n\nroot = autosarfactory.new_file(\"demo.arxml\")\n",
	}}
	h := NewHandlers(newTestService(t)).WithLLM(mock).WithHistory(store)
	router := setupTestRouter(h)

	w := postJSON(router, "/v1/reflexion", ReflexionRequest{Script: bogusScript})
	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, w.Code, w.Body.String())
	}
	resp := decodeBody[ReflexionResponse](t, w)

	hw := getPath(router, "/v1/history/"+resp.PassID)
	if hw.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, hw.Code, hw.Body.String())
	}
	hist := decodeBody[HistoryResponse](t, hw)
	if hist.PassID != resp.PassID {
		t.Errorf("expected pass %q, got %q", resp.PassID, hist.PassID)
	}
	if len(hist.Attempts) != 2 {
		t.Fatalf("expected 2 stored attempts, got %d", len(hist.Attempts))
	}
	if hist.Attempts[0].Attempt != 0 || hist.Attempts[1].Attempt != 1 {
		t.Errorf("attempts out of order: %+v", hist.Attempts)
	}
}

func TestHandlers_HandleHistory_NotConfigured(t *testing.T) {
	router := setupTestRouter(NewHandlers(newTestService(t)))

	w := getPath(router, "/v1/history/some-pass")
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status %d, got %d", http.StatusServiceUnavailable, w.Code)
	}
	resp := decodeBody[ErrorResponse](t, w)
	if resp.Code != "HISTORY_NOT_CONFIGURED" {
		t.Errorf("expected code HISTORY_NOT_CONFIGURED, got %q", resp.Code)
	}
}

func TestHandlers_HandleHistory_UnknownPass(t *testing.T) {
	store, err := history.OpenInMemory()
	if err != nil {
		t.Fatalf("opening history store: %v", err)
	}
	defer store.Close()

	router := setupTestRouter(NewHandlers(newTestService(t)).WithHistory(store))

	w := getPath(router, "/v1/history/no-such-pass")
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected status %d, got %d", http.StatusNotFound, w.Code)
	}
	resp := decodeBody[ErrorResponse](t, w)
	if resp.Code != "PASS_NOT_FOUND" {
		t.Errorf("expected code PASS_NOT_FOUND, got %q", resp.Code)
	}
}

func TestHandlers_HandleListClasses(t *testing.T) {
	router := setupTestRouter(NewHandlers(newTestService(t)))

	w := getPath(router, "/v1/schema/classes")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
	}

	resp := decodeBody[ClassesResponse](t, w)
	if resp.KBVersion != "1.0.0" {
		t.Errorf("expected KB version 1.0.0, got %q", resp.KBVersion)
	}
	if resp.Total != 6 || len(resp.Classes) != 6 {
		t.Fatalf("expected all 6 classes, got total=%d page=%d", resp.Total, len(resp.Classes))
	}
	if resp.Offset != 0 || resp.Limit != 50 {
		t.Errorf("expected default paging 0/50, got %d/%d", resp.Offset, resp.Limit)
	}
	if resp.Classes[0].Name != "AUTOSAR" {
		t.Errorf("expected AUTOSAR first in sort order, got %q", resp.Classes[0].Name)
	}
	if resp.Classes[5].Name != "autosarfactory" {
		t.Errorf("expected autosarfactory last in sort order, got %q", resp.Classes[5].Name)
	}

	for _, cls := range resp.Classes {
		if cls.Name != "Runnable" {
			continue
		}
		if cls.Factories != 0 || cls.Setters != 1 {
			t.Errorf("Runnable counts wrong: %+v", cls)
		}
	}
}

func TestHandlers_HandleListClasses_Paging(t *testing.T) {
	router := setupTestRouter(NewHandlers(newTestService(t)))

	w := getPath(router, "/v1/schema/classes?offset=1&limit=2")
	resp := decodeBody[ClassesResponse](t, w)

	if resp.Total != 6 {
		t.Errorf("expected total 6, got %d", resp.Total)
	}
	if resp.Offset != 1 || resp.Limit != 2 {
		t.Errorf("expected paging 1/2 echoed, got %d/%d", resp.Offset, resp.Limit)
	}
	if len(resp.Classes) != 2 {
		t.Fatalf("expected 2 classes, got %d", len(resp.Classes))
	}
	if resp.Classes[0].Name != "ApplicationSwComponentType" || resp.Classes[1].Name != "ArPackage" {
		t.Errorf("unexpected page: %q, %q", resp.Classes[0].Name, resp.Classes[1].Name)
	}

	// Past the end returns an empty page, not an error.
	w = getPath(router, "/v1/schema/classes?offset=100")
	resp = decodeBody[ClassesResponse](t, w)
	if len(resp.Classes) != 0 {
		t.Errorf("expected empty page past the end, got %d", len(resp.Classes))
	}

	// Oversized limits clamp to the configured cap.
	w = getPath(router, "/v1/schema/classes?limit=100000")
	resp = decodeBody[ClassesResponse](t, w)
	if resp.Limit != 500 {
		t.Errorf("expected limit clamped to 500, got %d", resp.Limit)
	}
}

func TestHandlers_HandleListClasses_InvalidQuery(t *testing.T) {
	router := setupTestRouter(NewHandlers(newTestService(t)))

	w := getPath(router, "/v1/schema/classes?offset=-1")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, w.Code)
	}
	resp := decodeBody[ErrorResponse](t, w)
	if resp.Code != "INVALID_REQUEST" {
		t.Errorf("expected code INVALID_REQUEST, got %q", resp.Code)
	}
}

func TestHandlers_HandleGetClass(t *testing.T) {
	router := setupTestRouter(NewHandlers(newTestService(t)))

	w := getPath(router, "/v1/schema/classes/ApplicationSwComponentType")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
	}

	resp := decodeBody[ClassResponse](t, w)
	if resp.Name != "ApplicationSwComponentType" {
		t.Errorf("expected class name echoed, got %q", resp.Name)
	}
	fi, ok := resp.Factories["new_InternalBehavior"]
	if !ok {
		t.Fatalf("expected factory new_InternalBehavior, got %+v", resp.Factories)
	}
	if fi.Returns != "SwcInternalBehavior" {
		t.Errorf("expected returns SwcInternalBehavior, got %q", fi.Returns)
	}
	if len(fi.Params) != 1 || fi.Params[0] != "str" {
		t.Errorf("expected params [str], got %v", fi.Params)
	}
	if resp.Setters["set_category"] != "str" {
		t.Errorf("expected setter set_category: str, got %+v", resp.Setters)
	}
}

func TestHandlers_HandleGetClass_NotFound(t *testing.T) {
	router := setupTestRouter(NewHandlers(newTestService(t)))

	w := getPath(router, "/v1/schema/classes/NoSuchClass")
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected status %d, got %d", http.StatusNotFound, w.Code)
	}
	resp := decodeBody[ErrorResponse](t, w)
	if resp.Code != "CLASS_NOT_FOUND" {
		t.Errorf("expected code CLASS_NOT_FOUND, got %q", resp.Code)
	}
}

func TestHandlers_HandleLookupMethod(t *testing.T) {
	router := setupTestRouter(NewHandlers(newTestService(t)))

	w := getPath(router, "/v1/schema/methods/new_Runnable")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
	}
	resp := decodeBody[MethodResponse](t, w)
	if resp.Method != "new_Runnable" {
		t.Errorf("expected method echoed, got %q", resp.Method)
	}
	if len(resp.Refs) != 1 {
		t.Fatalf("expected 1 ref, got %d", len(resp.Refs))
	}
	if resp.Refs[0].Class != "SwcInternalBehavior" || resp.Refs[0].Kind != "factory" {
		t.Errorf("unexpected ref: %+v", resp.Refs[0])
	}

	w = getPath(router, "/v1/schema/methods/set_symbol")
	resp = decodeBody[MethodResponse](t, w)
	if len(resp.Refs) != 1 || resp.Refs[0].Kind != "setter" {
		t.Errorf("expected one setter ref, got %+v", resp.Refs)
	}
}

func TestHandlers_HandleLookupMethod_NotFound(t *testing.T) {
	router := setupTestRouter(NewHandlers(newTestService(t)))

	w := getPath(router, "/v1/schema/methods/new_Nothing")
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected status %d, got %d", http.StatusNotFound, w.Code)
	}
	resp := decodeBody[ErrorResponse](t, w)
	if resp.Code != "METHOD_NOT_FOUND" {
		t.Errorf("expected code METHOD_NOT_FOUND, got %q", resp.Code)
	}
}

func TestHandlers_RequestIDEcho(t *testing.T) {
	router := setupTestRouter(NewHandlers(newTestService(t)))

	req, _ := http.NewRequest("GET", "/v1/schema/classes", nil)
	req.Header.Set("X-Request-ID", "req-123")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if got := w.Header().Get("X-Request-ID"); got != "req-123" {
		t.Errorf("expected request ID echoed, got %q", got)
	}

	req, _ = http.NewRequest("POST", "/v1/validate", bytes.NewBufferString("{}"))
	req.Header.Set("Content-Type", "application/json")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Header().Get("X-Request-ID") == "" {
		t.Error("expected a generated request ID")
	}
}
