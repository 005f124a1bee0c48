// Copyright (C) 2026 Veloxar Systems (dev@veloxar.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package suggest ranks near-miss method and class names for invalid
// calls. Scoring combines normalized edit distance with a prefix and
// substring bonus so that a truncated spelling of a real name beats an
// unrelated name at the same raw distance.
package suggest

import "strings"

const (
	// prefixBonus rewards candidates where one name is a prefix of
	// the other (truncations, missing suffixes).
	prefixBonus = 0.10

	// substringBonus rewards candidates containing the other name
	// somewhere inside (dropped qualifier prefixes).
	substringBonus = 0.05
)

// Similarity scores how close two method or class names are.
//
// # Description
//
// Computes 1 minus the normalized Levenshtein distance between the
// lowercased names, then adds a small bonus when one name is a prefix
// or substring of the other. Case differences alone score 1.0, which
// is what makes casing hallucinations (SomeIp vs Someip) rank their
// correction first.
//
// # Inputs
//
//   - a, b: Names to compare. Order does not matter.
//
// # Outputs
//
//   - float64: Score in [0, 1]. 1 means identical up to case.
func Similarity(a, b string) float64 {
	if a == b {
		return 1
	}

	la := strings.ToLower(a)
	lb := strings.ToLower(b)
	if la == lb {
		return 1
	}

	maxLen := len(la)
	if len(lb) > maxLen {
		maxLen = len(lb)
	}

	score := 1 - float64(levenshtein(la, lb))/float64(maxLen)

	switch {
	case strings.HasPrefix(la, lb) || strings.HasPrefix(lb, la):
		score += prefixBonus
	case strings.Contains(la, lb) || strings.Contains(lb, la):
		score += substringBonus
	}

	if score > 1 {
		score = 1
	}
	if score < 0 {
		score = 0
	}
	return score
}

// levenshtein computes the edit distance between two strings.
//
// # Description
//
// Minimum number of single-character insertions, deletions, and
// substitutions to turn one string into the other. Space-optimized
// dynamic programming with two rows instead of a full matrix.
//
// # Examples
//
//	levenshtein("new_Runable", "new_Runnable") // 1
//	levenshtein("", "abc")                     // 3
func levenshtein(a, b string) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	// Keep a as the shorter string so the rows stay small.
	if len(a) > len(b) {
		a, b = b, a
	}

	prev := make([]int, len(a)+1)
	curr := make([]int, len(a)+1)

	for i := range prev {
		prev[i] = i
	}

	for j := 1; j <= len(b); j++ {
		curr[0] = j
		for i := 1; i <= len(a); i++ {
			if a[i-1] == b[j-1] {
				curr[i] = prev[i-1]
			} else {
				curr[i] = 1 + minOf3(prev[i-1], prev[i], curr[i-1])
			}
		}
		prev, curr = curr, prev
	}

	return prev[len(a)]
}

// minOf3 returns the minimum of three integers.
func minOf3(a, b, c int) int {
	if a <= b && a <= c {
		return a
	}
	if b <= c {
		return b
	}
	return c
}
