// Copyright (C) 2026 Veloxar Systems (dev@veloxar.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package memory remembers observed hallucination-to-fix pairs in
// Weaviate so later passes can enrich feedback with previously seen
// failures. The whole layer is optional: a nil store degrades to no-ops
// and the validator core never depends on it.
package memory

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate/entities/models"
)

// FixCaseClassName is the Weaviate class name for recorded fixes.
const FixCaseClassName = "FixCase"

// GetFixCaseSchema returns the Weaviate schema for the FixCase class.
//
// Description:
//
//	Defines the schema for storing hallucination fixes. The error
//	signature and fix description are vectorized for semantic lookup;
//	everything else is filter metadata.
//
// Outputs:
//
//	*models.Class - The Weaviate class definition
func GetFixCaseSchema() *models.Class {
	indexFilterable := new(bool)
	*indexFilterable = true

	indexSearchable := new(bool)
	*indexSearchable = true

	return &models.Class{
		Class:       FixCaseClassName,
		Description: "Observed invalid autosarfactory calls and the fixes that resolved them",
		Vectorizer:  "text2vec-transformers",
		ModuleConfig: map[string]interface{}{
			"text2vec-transformers": map[string]interface{}{
				"vectorizeClassName": false,
			},
		},
		InvertedIndexConfig: &models.InvertedIndexConfig{
			IndexTimestamps: true,
		},
		Properties: []*models.Property{
			{
				Name:            "caseId",
				DataType:        []string{"text"},
				Description:     "Deterministic identifier (UUID derived from signature and fix)",
				IndexFilterable: indexFilterable,
				Tokenization:    "field",
				ModuleConfig: map[string]interface{}{
					"text2vec-transformers": map[string]interface{}{
						"skip": true,
					},
				},
			},
			{
				Name:            "errorSignature",
				DataType:        []string{"text"},
				Description:     "The validation message of the failed call",
				IndexSearchable: indexSearchable,
				Tokenization:    "word",
				// Vectorized for semantic lookup
			},
			{
				Name:            "className",
				DataType:        []string{"text"},
				Description:     "Receiver class of the failed call",
				IndexFilterable: indexFilterable,
				Tokenization:    "field",
				ModuleConfig: map[string]interface{}{
					"text2vec-transformers": map[string]interface{}{
						"skip": true,
					},
				},
			},
			{
				Name:            "methodName",
				DataType:        []string{"text"},
				Description:     "The hallucinated method name",
				IndexFilterable: indexFilterable,
				Tokenization:    "field",
				ModuleConfig: map[string]interface{}{
					"text2vec-transformers": map[string]interface{}{
						"skip": true,
					},
				},
			},
			{
				Name:            "category",
				DataType:        []string{"text"},
				Description:     "Finding category the fix resolved",
				IndexFilterable: indexFilterable,
				Tokenization:    "field",
				ModuleConfig: map[string]interface{}{
					"text2vec-transformers": map[string]interface{}{
						"skip": true,
					},
				},
			},
			{
				Name:            "fixDescription",
				DataType:        []string{"text"},
				Description:     "Human-readable description of the applied fix",
				IndexSearchable: indexSearchable,
				Tokenization:    "word",
				// Vectorized for semantic lookup
			},
			{
				Name:        "replacement",
				DataType:    []string{"text"},
				Description: "The corrected call text",
				ModuleConfig: map[string]interface{}{
					"text2vec-transformers": map[string]interface{}{
						"skip": true,
					},
				},
			},
			{
				Name:        "scriptHash",
				DataType:    []string{"text"},
				Description: "Hash of the script the failure was seen in",
				ModuleConfig: map[string]interface{}{
					"text2vec-transformers": map[string]interface{}{
						"skip": true,
					},
				},
			},
			{
				Name:            "passId",
				DataType:        []string{"text"},
				Description:     "Validation pass that recorded the fix",
				IndexFilterable: indexFilterable,
				Tokenization:    "field",
				ModuleConfig: map[string]interface{}{
					"text2vec-transformers": map[string]interface{}{
						"skip": true,
					},
				},
			},
			{
				Name:            "kbVersion",
				DataType:        []string{"text"},
				Description:     "Knowledge base version the fix applies to",
				IndexFilterable: indexFilterable,
				Tokenization:    "field",
				ModuleConfig: map[string]interface{}{
					"text2vec-transformers": map[string]interface{}{
						"skip": true,
					},
				},
			},
			{
				Name:        "recordedAt",
				DataType:    []string{"text"},
				Description: "RFC3339 timestamp of the recording",
				ModuleConfig: map[string]interface{}{
					"text2vec-transformers": map[string]interface{}{
						"skip": true,
					},
				},
			},
		},
	}
}

// EnsureFixCaseSchema creates the FixCase class if it does not exist.
//
// Description:
//
//	Checks if the FixCase class exists in Weaviate and creates it if
//	not. This operation is idempotent.
//
// Inputs:
//
//	ctx - Context for cancellation
//	client - Weaviate client
//
// Outputs:
//
//	error - Non-nil if schema creation fails
func EnsureFixCaseSchema(ctx context.Context, client *weaviate.Client) error {
	schema := GetFixCaseSchema()

	_, err := client.Schema().ClassGetter().WithClassName(FixCaseClassName).Do(ctx)
	if err == nil {
		slog.Info("FixCase schema already exists")
		return nil
	}

	slog.Info("Creating FixCase schema")
	if err := client.Schema().ClassCreator().WithClass(schema).Do(ctx); err != nil {
		return fmt.Errorf("creating FixCase schema: %w", err)
	}

	slog.Info("FixCase schema created successfully")
	return nil
}

// DeleteFixCaseSchema removes the FixCase class and all recorded fixes.
// Use with caution - this is irreversible.
func DeleteFixCaseSchema(ctx context.Context, client *weaviate.Client) error {
	if err := client.Schema().ClassDeleter().WithClassName(FixCaseClassName).Do(ctx); err != nil {
		return fmt.Errorf("deleting FixCase schema: %w", err)
	}

	slog.Info("FixCase schema deleted")
	return nil
}
