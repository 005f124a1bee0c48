// Copyright (C) 2026 Veloxar Systems (dev@veloxar.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package pipeline

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// DefaultBatchConcurrency caps parallel passes per batch.
const DefaultBatchConcurrency = 4

// BatchScript is one script of a batch.
type BatchScript struct {
	Name   string `json:"name"`
	Source string `json:"source"`
}

// ValidateBatch runs a pass per script in parallel.
//
// Description:
//
//	Fans the scripts out over at most the configured number of
//	concurrent passes. Results land at the index of their script, so
//	output order is input order regardless of completion order.
//	Findings never fail a batch; an infrastructure failure in any
//	pass cancels the rest and fails the whole batch.
//
// Inputs:
//
//	ctx - Context for cancellation and tracing; nil falls back to
//	      Background
//	scripts - The scripts to validate
//
// Outputs:
//
//	[]*PassResult - One result per script, in input order.
//	error - Non-nil when any pass failed.
//
// Thread Safety: Safe for concurrent use.
func (p *Pipeline) ValidateBatch(ctx context.Context, scripts []BatchScript) ([]*PassResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if len(scripts) == 0 {
		return nil, nil
	}

	recordBatchMetrics(ctx, len(scripts))

	results := make([]*PassResult, len(scripts))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(p.batchLimit)

	for i, s := range scripts {
		i, s := i, s
		g.Go(func() error {
			pr, err := p.Run(gCtx, []byte(s.Source), s.Name)
			if err != nil {
				return fmt.Errorf("validating %s: %w", s.Name, err)
			}
			results[i] = pr
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
