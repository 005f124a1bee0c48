// Copyright (C) 2026 Veloxar Systems (dev@veloxar.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package autofix

import (
	"bytes"
	"fmt"

	"github.com/pmezard/go-difflib/difflib"
	"github.com/sourcegraph/go-diff/diff"
)

// diffContext is the number of unchanged lines shown around each
// change.
const diffContext = 3

// HunkRecord is one contiguous change region of a fix diff, with
// 1-based line positions in the original and fixed sources.
type HunkRecord struct {
	// OrigStart and OrigLines locate the region in the original.
	OrigStart int `json:"orig_start"`
	OrigLines int `json:"orig_lines"`

	// NewStart and NewLines locate the region in the fixed source.
	NewStart int `json:"new_start"`
	NewLines int `json:"new_lines"`

	// Body holds the hunk lines with their leading ' ', '-', '+'
	// markers.
	Body string `json:"body"`
}

// renderDiff renders a unified diff between two line slices and
// returns it together with its structured hunks. Fixes substitute
// text in place, so every hunk is a pure line-for-line substitution.
func renderDiff(name string, orig, fixed []string) (string, []HunkRecord, error) {
	hunks := buildHunks(orig, fixed)
	if len(hunks) == 0 {
		return "", nil, nil
	}

	fd := &diff.FileDiff{
		OrigName: "a/" + name,
		NewName:  "b/" + name,
		Hunks:    hunks,
	}
	out, err := diff.PrintFileDiff(fd)
	if err != nil {
		return "", nil, fmt.Errorf("printing diff for %s: %w", name, err)
	}

	records := make([]HunkRecord, len(hunks))
	for i, h := range hunks {
		records[i] = HunkRecord{
			OrigStart: int(h.OrigStartLine),
			OrigLines: int(h.OrigLines),
			NewStart:  int(h.NewStartLine),
			NewLines:  int(h.NewLines),
			Body:      string(h.Body),
		}
	}
	return string(out), records, nil
}

// buildHunks diffs the two line slices and groups the changes into
// hunks with diffContext lines of shared context. Changes whose
// context would overlap land in the same hunk.
func buildHunks(orig, fixed []string) []*diff.Hunk {
	matcher := difflib.NewMatcher(orig, fixed)

	var hunks []*diff.Hunk
	for _, group := range matcher.GetGroupedOpCodes(diffContext) {
		var body bytes.Buffer
		for _, op := range group {
			if op.Tag == 'e' {
				for _, line := range orig[op.I1:op.I2] {
					body.WriteString(" " + line + "\n")
				}
				continue
			}
			if op.Tag == 'r' || op.Tag == 'd' {
				for _, line := range orig[op.I1:op.I2] {
					body.WriteString("-" + line + "\n")
				}
			}
			if op.Tag == 'r' || op.Tag == 'i' {
				for _, line := range fixed[op.J1:op.J2] {
					body.WriteString("+" + line + "\n")
				}
			}
		}

		first, last := group[0], group[len(group)-1]
		hunks = append(hunks, &diff.Hunk{
			OrigStartLine: int32(first.I1 + 1),
			OrigLines:     int32(last.I2 - first.I1),
			NewStartLine:  int32(first.J1 + 1),
			NewLines:      int32(last.J2 - first.J1),
			Body:          body.Bytes(),
		})
	}
	return hunks
}
