// Copyright (C) 2026 Veloxar Systems (dev@veloxar.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package memory

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-openapi/strfmt"
	"github.com/google/uuid"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/filters"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"
)

// DefaultSimilarLimit is how many prior cases SimilarFailures returns
// when the caller does not say.
const DefaultSimilarLimit = 5

// FixCase is one observed hallucination and the fix that resolved it.
type FixCase struct {
	CaseID         string    `json:"case_id"`
	ErrorSignature string    `json:"error_signature"`
	ClassName      string    `json:"class_name,omitempty"`
	MethodName     string    `json:"method_name,omitempty"`
	Category       string    `json:"category,omitempty"`
	FixDescription string    `json:"fix_description"`
	Replacement    string    `json:"replacement,omitempty"`
	ScriptHash     string    `json:"script_hash,omitempty"`
	PassID         string    `json:"pass_id,omitempty"`
	KBVersion      string    `json:"kb_version,omitempty"`
	RecordedAt     time.Time `json:"recorded_at"`
}

// Match is a similar prior failure with its semantic certainty.
type Match struct {
	Case      FixCase `json:"case"`
	Certainty float64 `json:"certainty"`
}

// Store records and retrieves fix cases. Isolation between knowledge
// base versions happens through the kbVersion filter: fixes learned
// against one KB are not offered against another.
type Store struct {
	client    *weaviate.Client
	kbVersion string
}

// NewStore creates a fix memory over an existing Weaviate client. A nil
// client yields a disabled store whose methods are no-ops.
func NewStore(client *weaviate.Client, kbVersion string) *Store {
	return &Store{client: client, kbVersion: kbVersion}
}

// NewStoreFromURL connects to Weaviate at the given URL ("host:port",
// optionally with an http:// or https:// prefix).
func NewStoreFromURL(url, kbVersion string) (*Store, error) {
	cfg := weaviate.Config{
		Host:   url,
		Scheme: "http",
	}
	if strings.HasPrefix(url, "https://") {
		cfg.Scheme = "https"
		cfg.Host = url[len("https://"):]
	} else if strings.HasPrefix(url, "http://") {
		cfg.Host = url[len("http://"):]
	}

	client, err := weaviate.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("create weaviate client: %w", err)
	}
	return NewStore(client, kbVersion), nil
}

// Enabled reports whether the store is backed by a live client.
func (s *Store) Enabled() bool {
	return s != nil && s.client != nil
}

// EnsureSchema creates the FixCase class if needed. No-op when disabled.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if !s.Enabled() {
		return nil
	}
	return EnsureFixCaseSchema(ctx, s.client)
}

// normalize validates a case and fills derived fields.
func (s *Store) normalize(fc FixCase) (FixCase, error) {
	if fc.ErrorSignature == "" {
		return fc, fmt.Errorf("error signature must not be empty")
	}
	if fc.FixDescription == "" {
		return fc, fmt.Errorf("fix description must not be empty")
	}
	if fc.KBVersion == "" {
		fc.KBVersion = s.kbVersion
	}
	if fc.CaseID == "" {
		fc.CaseID = deterministicCaseID(fc.ErrorSignature, fc.FixDescription, fc.KBVersion)
	}
	if fc.RecordedAt.IsZero() {
		fc.RecordedAt = time.Now().UTC()
	}
	return fc, nil
}

// fixCaseObject converts a normalized case to its Weaviate object.
func fixCaseObject(fc FixCase) *models.Object {
	return &models.Object{
		Class: FixCaseClassName,
		ID:    strfmt.UUID(fc.CaseID),
		Properties: map[string]interface{}{
			"caseId":         fc.CaseID,
			"errorSignature": fc.ErrorSignature,
			"className":      fc.ClassName,
			"methodName":     fc.MethodName,
			"category":       fc.Category,
			"fixDescription": fc.FixDescription,
			"replacement":    fc.Replacement,
			"scriptHash":     fc.ScriptHash,
			"passId":         fc.PassID,
			"kbVersion":      fc.KBVersion,
			"recordedAt":     fc.RecordedAt.Format(time.RFC3339),
		},
	}
}

// RecordFix writes one fix case.
//
// Description:
//
//	Stores the case under a deterministic UUID derived from the error
//	signature, fix description, and KB version, so re-recording the
//	same fix is idempotent rather than duplicating. No-op when the
//	store is disabled.
//
// Inputs:
//
//	ctx - Context for cancellation
//	fc - The case. ErrorSignature and FixDescription must be set.
//
// Outputs:
//
//	error - Non-nil on validation or write failure.
//
// Thread Safety: Safe for concurrent use.
func (s *Store) RecordFix(ctx context.Context, fc FixCase) error {
	if !s.Enabled() {
		return nil
	}
	fc, err := s.normalize(fc)
	if err != nil {
		return err
	}

	obj := fixCaseObject(fc)
	_, err = s.client.Data().Creator().
		WithClassName(FixCaseClassName).
		WithID(obj.ID.String()).
		WithProperties(obj.Properties).
		Do(ctx)
	if err != nil {
		// The deterministic ID turns duplicates into a 422; that means
		// the case is already recorded.
		if strings.Contains(err.Error(), "already exists") {
			slog.Debug("Fix case already recorded", "case_id", fc.CaseID)
			return nil
		}
		return fmt.Errorf("storing fix case in Weaviate: %w", err)
	}

	slog.Info("Recorded fix case",
		"case_id", fc.CaseID,
		"method", fc.MethodName,
		"kb_version", fc.KBVersion)
	return nil
}

// RecordFixes writes a pass's fix cases in one batch.
//
// Description:
//
//	Converts each case to a Weaviate object and imports them with the
//	batch API. Items that fail individually (including duplicates of
//	already-recorded cases) are logged and skipped.
//
// Inputs:
//
//	ctx - Context for cancellation
//	cases - The cases to record.
//
// Outputs:
//
//	int - How many objects the batch created.
//	error - Non-nil if the batch itself fails.
//
// Thread Safety: Safe for concurrent use.
func (s *Store) RecordFixes(ctx context.Context, cases []FixCase) (int, error) {
	if !s.Enabled() || len(cases) == 0 {
		return 0, nil
	}

	objects := make([]*models.Object, 0, len(cases))
	for _, fc := range cases {
		normalized, err := s.normalize(fc)
		if err != nil {
			slog.Warn("Skipping invalid fix case", "error", err)
			continue
		}
		objects = append(objects, fixCaseObject(normalized))
	}
	if len(objects) == 0 {
		return 0, nil
	}

	batcher := s.client.Batch().ObjectsBatcher()
	batcher.WithObjects(objects...)

	resp, err := batcher.Do(ctx)
	if err != nil {
		slog.Error("Failed to batch import fix cases", "error", err)
		return 0, fmt.Errorf("batch storing fix cases: %w", err)
	}

	created := 0
	for _, item := range resp {
		if item.Result != nil && item.Result.Status != nil && *item.Result.Status == "SUCCESS" {
			created++
			continue
		}
		if item.Result != nil && item.Result.Errors != nil && len(item.Result.Errors.Error) > 0 {
			for _, errItem := range item.Result.Errors.Error {
				slog.Warn("Error in fix case batch item", "error", errItem.Message)
			}
		}
	}

	slog.Info("Recorded fix cases", "created", created, "submitted", len(objects))
	return created, nil
}

// SimilarFailures finds previously seen failures near an error message.
//
// Description:
//
//	Runs a nearText query over the error signature and fix description
//	vectors, filtered to the store's KB version. Returns matches with
//	their certainty, best first. No-op (nil, nil) when disabled.
//
// Inputs:
//
//	ctx - Context for cancellation
//	errorMessage - The new failure to look up
//	limit - Maximum matches; <= 0 means DefaultSimilarLimit.
//
// Outputs:
//
//	[]Match - Similar cases ordered by certainty.
//	error - Non-nil on query failure.
//
// Thread Safety: Safe for concurrent use.
func (s *Store) SimilarFailures(ctx context.Context, errorMessage string, limit int) ([]Match, error) {
	if !s.Enabled() {
		return nil, nil
	}
	if errorMessage == "" {
		return nil, fmt.Errorf("error message must not be empty")
	}
	if limit <= 0 {
		limit = DefaultSimilarLimit
	}

	nearText := s.client.GraphQL().NearTextArgBuilder().
		WithConcepts([]string{errorMessage})

	query := s.client.GraphQL().Get().
		WithClassName(FixCaseClassName).
		WithFields(fixCaseFields()...).
		WithNearText(nearText).
		WithLimit(limit)

	if s.kbVersion != "" {
		query = query.WithWhere(filters.Where().
			WithPath([]string{"kbVersion"}).
			WithOperator(filters.Equal).
			WithValueString(s.kbVersion))
	}

	result, err := query.Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("querying similar failures: %w", err)
	}
	if len(result.Errors) > 0 {
		return nil, fmt.Errorf("similar failures query error: %s", result.Errors[0].Message)
	}

	return parseMatches(result), nil
}

// deterministicCaseID derives a stable UUID from the case identity so
// the same fix recorded twice lands on the same object.
func deterministicCaseID(signature, fix, kbVersion string) string {
	hash := sha256.Sum256([]byte(signature + "\x00" + fix + "\x00" + kbVersion))
	id, err := uuid.FromBytes(hash[:16])
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// fixCaseFields returns the GraphQL fields to query.
func fixCaseFields() []graphql.Field {
	return []graphql.Field{
		{Name: "caseId"},
		{Name: "errorSignature"},
		{Name: "className"},
		{Name: "methodName"},
		{Name: "category"},
		{Name: "fixDescription"},
		{Name: "replacement"},
		{Name: "scriptHash"},
		{Name: "passId"},
		{Name: "kbVersion"},
		{Name: "recordedAt"},
		{Name: "_additional { certainty }"},
	}
}

// parseMatches converts a Weaviate response to matches.
func parseMatches(result *models.GraphQLResponse) []Match {
	data, ok := result.Data["Get"].(map[string]interface{})
	if !ok {
		return []Match{}
	}

	objects, ok := data[FixCaseClassName].([]interface{})
	if !ok {
		return []Match{}
	}

	matches := make([]Match, 0, len(objects))
	for _, obj := range objects {
		m, ok := obj.(map[string]interface{})
		if !ok {
			continue // skip malformed objects
		}
		fc := FixCase{
			CaseID:         getString(m, "caseId"),
			ErrorSignature: getString(m, "errorSignature"),
			ClassName:      getString(m, "className"),
			MethodName:     getString(m, "methodName"),
			Category:       getString(m, "category"),
			FixDescription: getString(m, "fixDescription"),
			Replacement:    getString(m, "replacement"),
			ScriptHash:     getString(m, "scriptHash"),
			PassID:         getString(m, "passId"),
			KBVersion:      getString(m, "kbVersion"),
		}
		if recordedStr := getString(m, "recordedAt"); recordedStr != "" {
			if t, err := time.Parse(time.RFC3339, recordedStr); err == nil {
				fc.RecordedAt = t
			}
		}

		match := Match{Case: fc}
		if add, ok := m["_additional"].(map[string]interface{}); ok {
			match.Certainty = getFloat64(add, "certainty")
		}
		matches = append(matches, match)
	}

	return matches
}

// getString safely extracts a string from a map.
func getString(m map[string]interface{}, key string) string {
	if v, ok := m[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// getFloat64 safely extracts a float64 from a map.
func getFloat64(m map[string]interface{}, key string) float64 {
	if v, ok := m[key]; ok {
		switch n := v.(type) {
		case float64:
			return n
		case float32:
			return float64(n)
		case int:
			return float64(n)
		}
	}
	return 0
}
