// Copyright (C) 2026 Veloxar Systems (dev@veloxar.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("arxval.history")

// AttemptRecord is the immutable snapshot of one repair-loop attempt.
// Attempt 0 is the initial validation; attempts 1..n are LLM rewrites.
type AttemptRecord struct {
	// PassID groups the attempts of one reflexion pass.
	PassID string `json:"pass_id"`

	// Attempt is the 0-based attempt number within the pass.
	Attempt int `json:"attempt"`

	// ScriptName is the logical name the script was validated under.
	ScriptName string `json:"script_name,omitempty"`

	// ScriptHash identifies the exact script text of this attempt.
	ScriptHash string `json:"script_hash"`

	Valid        bool `json:"valid"`
	ErrorCount   int  `json:"error_count"`
	WarningCount int  `json:"warning_count"`
	FixedCount   int  `json:"fixed_count"`

	// Feedback is the prompt text sent to the model after this attempt.
	// Empty on the final attempt of a pass.
	Feedback string `json:"feedback,omitempty"`

	// LLMLatency is how long the model took to produce the rewrite that
	// followed this attempt. Zero when no rewrite was requested.
	LLMLatency time.Duration `json:"llm_latency,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// attemptPrefix returns the key prefix for one pass's attempts.
func attemptPrefix(passID string) []byte {
	return []byte("attempt/" + passID + "/")
}

// attemptKey generates a key for a specific attempt. The fixed-width
// number keeps lexicographic key order equal to attempt order.
func attemptKey(passID string, n int) []byte {
	return []byte(fmt.Sprintf("attempt/%s/%03d", passID, n))
}

// RecordAttempt writes one attempt record.
//
// Description:
//
//	JSON-encodes the record and writes it under attempt/<passID>/<n>
//	with the store's TTL. Re-recording the same attempt number
//	overwrites the previous snapshot.
//
// Inputs:
//
//	ctx - Context for cancellation.
//	rec - The record. PassID must be set and Attempt must be >= 0.
//
// Outputs:
//
//	error - Non-nil on validation or write failure.
//
// Thread Safety: Safe for concurrent use.
func (s *Store) RecordAttempt(ctx context.Context, rec AttemptRecord) error {
	ctx, span := tracer.Start(ctx, "Store.RecordAttempt")
	defer span.End()
	span.SetAttributes(
		attribute.String("history.pass_id", rec.PassID),
		attribute.Int("history.attempt", rec.Attempt),
	)

	if rec.PassID == "" {
		return errors.New("pass ID must not be empty")
	}
	if rec.Attempt < 0 {
		return fmt.Errorf("attempt number must not be negative, got %d", rec.Attempt)
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	data, err := json.Marshal(rec)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "encode failed")
		return fmt.Errorf("encode attempt record: %w", err)
	}

	key := attemptKey(rec.PassID, rec.Attempt)
	err = s.WithTxn(ctx, func(txn *badger.Txn) error {
		entry := badger.NewEntry(key, data)
		if s.ttl > 0 {
			entry = entry.WithTTL(s.ttl)
		}
		return txn.SetEntry(entry)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "write failed")
		return fmt.Errorf("write attempt record: %w", err)
	}

	span.SetAttributes(attribute.Int("history.record_bytes", len(data)))
	return nil
}

// Attempts returns all recorded attempts of a pass in attempt order.
//
// Description:
//
//	Iterates attempt/<passID>/ and decodes each record. An unknown
//	pass yields an empty slice, not an error. Records that fail to
//	decode are skipped.
//
// Inputs:
//
//	ctx - Context for cancellation (checked per iteration).
//	passID - The pass to read.
//
// Outputs:
//
//	[]AttemptRecord - Attempts ordered by attempt number.
//	error - Non-nil on read failure.
//
// Thread Safety: Safe for concurrent use.
func (s *Store) Attempts(ctx context.Context, passID string) ([]AttemptRecord, error) {
	ctx, span := tracer.Start(ctx, "Store.Attempts")
	defer span.End()
	span.SetAttributes(attribute.String("history.pass_id", passID))

	if passID == "" {
		return nil, errors.New("pass ID must not be empty")
	}

	var records []AttemptRecord
	prefix := attemptPrefix(passID)

	err := s.WithReadTxn(ctx, func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			err := it.Item().Value(func(val []byte) error {
				var rec AttemptRecord
				if err := json.Unmarshal(val, &rec); err != nil {
					if s.logger != nil {
						s.logger.Warn("skipping undecodable attempt record",
							"key", string(it.Item().Key()),
							"error", err.Error())
					}
					return nil
				}
				records = append(records, rec)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "read failed")
		return nil, fmt.Errorf("read attempts for pass %s: %w", passID, err)
	}

	span.SetAttributes(attribute.Int("history.attempts", len(records)))
	return records, nil
}
