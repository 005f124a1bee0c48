// Copyright (C) 2026 Veloxar Systems (dev@veloxar.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package suggest

import (
	"fmt"
	"sort"
	"strings"

	"github.com/veloxar/arxval/services/validator/schema"
)

const (
	// DefaultThreshold is the minimum score a candidate needs to be
	// suggested at all.
	DefaultThreshold = 0.6

	// DefaultTolerance keeps runner-up candidates whose score is
	// within this much of the best one.
	DefaultTolerance = 0.05

	// DefaultMaxResults caps how many candidates one suggestion
	// carries.
	DefaultMaxResults = 3
)

// Suggestion is one ranked near-miss candidate.
//
// # Fields
//
//   - Name: The suggested method or class name.
//   - Class: Declaring class for method suggestions; empty for class
//     suggestions.
//   - Kind: Method kind for method suggestions.
//   - Score: Similarity score in [0, 1].
//   - SameClass: Whether the candidate came from the queried class.
type Suggestion struct {
	Name      string
	Class     string
	Kind      schema.MethodKind
	Score     float64
	SameClass bool
}

// Engine ranks candidate names from the knowledge base.
//
// # Description
//
// For an invalid (class, method, kind) triple the engine first scores
// every method of that kind on the queried class; only when none
// clears the threshold does it widen to the cross-class index. The
// class index it searches belongs to the Schema, the scoring belongs
// here.
//
// # Thread Safety
//
// Safe for concurrent use. The engine holds only the immutable schema
// and scalar settings.
type Engine struct {
	schema     *schema.Schema
	threshold  float64
	tolerance  float64
	maxResults int
}

// Option configures an Engine.
type Option func(*Engine)

// WithThreshold overrides the minimum acceptance score.
func WithThreshold(v float64) Option {
	return func(e *Engine) {
		if v > 0 && v <= 1 {
			e.threshold = v
		}
	}
}

// WithTolerance overrides the runner-up tolerance band.
func WithTolerance(v float64) Option {
	return func(e *Engine) {
		if v >= 0 && v < 1 {
			e.tolerance = v
		}
	}
}

// WithMaxResults overrides the candidate cap.
func WithMaxResults(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxResults = n
		}
	}
}

// NewEngine creates a suggestion engine over the given schema.
func NewEngine(s *schema.Schema, opts ...Option) *Engine {
	e := &Engine{
		schema:     s,
		threshold:  DefaultThreshold,
		tolerance:  DefaultTolerance,
		maxResults: DefaultMaxResults,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// SuggestMethod ranks corrections for an invalid method call.
//
// # Description
//
// Scores every method of the given kind declared on className; if no
// candidate clears the threshold, widens to every method of that kind
// anywhere in the knowledge base. Returns the best candidate, plus
// runner-ups within the tolerance band, capped at the result limit.
//
// # Inputs
//
//   - className: Receiver class of the invalid call. May name a class
//     the schema does not declare; the search then goes straight to the
//     cross-class index.
//   - methodName: The method name that failed to resolve.
//   - kind: Which method family to search.
//
// # Outputs
//
//   - []Suggestion: Ranked best-first. Empty when nothing clears the
//     threshold; the caller's finding then stands alone.
func (e *Engine) SuggestMethod(className, methodName string, kind schema.MethodKind) []Suggestion {
	if cs, ok := e.schema.Class(className); ok {
		same := e.rankNames(methodName, cs.MethodNames(kind))
		if len(same) > 0 {
			for i := range same {
				same[i].Class = className
				same[i].Kind = kind
				same[i].SameClass = true
			}
			return e.takeBand(same)
		}
	}

	wide := e.rankNames(methodName, e.schema.Index().KindNames(kind))
	for i := range wide {
		wide[i].Kind = kind
		wide[i].Class = e.declaringClass(wide[i].Name, kind)
		wide[i].SameClass = wide[i].Class == className
	}
	return e.takeBand(wide)
}

// NearestMethods ranks the k method names closest to name across the
// whole index, any kind. Candidates below the threshold are dropped.
func (e *Engine) NearestMethods(name string, k int) []Suggestion {
	ranked := e.rankNames(name, e.schema.Index().MethodNames())
	if len(ranked) > k {
		ranked = ranked[:k]
	}
	for i := range ranked {
		refs := e.schema.Index().Lookup(ranked[i].Name)
		if len(refs) > 0 {
			ranked[i].Class = refs[0].Class
			ranked[i].Kind = refs[0].Kind
		}
	}
	return ranked
}

// NearestClasses ranks the k class names closest to name. Candidates
// below the threshold are dropped.
func (e *Engine) NearestClasses(name string, k int) []Suggestion {
	ranked := e.rankNames(name, e.schema.ClassNames())
	if len(ranked) > k {
		ranked = ranked[:k]
	}
	return ranked
}

// rankNames scores candidates against input and returns those at or
// above the threshold, best first. Ties break alphabetically so output
// is stable across runs.
func (e *Engine) rankNames(input string, candidates []string) []Suggestion {
	var ranked []Suggestion
	for _, cand := range candidates {
		score := Similarity(input, cand)
		if score < e.threshold {
			continue
		}
		ranked = append(ranked, Suggestion{Name: cand, Score: score})
	}

	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].Name < ranked[j].Name
	})
	return ranked
}

// takeBand keeps the best candidate plus runner-ups inside the
// tolerance band, up to the result cap.
func (e *Engine) takeBand(ranked []Suggestion) []Suggestion {
	if len(ranked) == 0 {
		return nil
	}
	cutoff := ranked[0].Score - e.tolerance
	n := 1
	for n < len(ranked) && n < e.maxResults && ranked[n].Score >= cutoff {
		n++
	}
	return ranked[:n]
}

// declaringClass picks a display class for a cross-class candidate.
// Names declared on several classes show the alphabetically first one.
func (e *Engine) declaringClass(method string, kind schema.MethodKind) string {
	for _, ref := range e.schema.Index().Lookup(method) {
		if ref.Kind == kind {
			return ref.Class
		}
	}
	return ""
}

// Format renders suggestions as one human-readable hint.
//
// # Description
//
// One candidate renders as "Did you mean 'x'?", several as
// "Did you mean: x, y?". Candidates declared on a class other than
// the queried one carry a "declared on" note.
//
// # Outputs
//
//   - string: Empty when suggs is empty.
func Format(className string, suggs []Suggestion) string {
	if len(suggs) == 0 {
		return ""
	}

	if len(suggs) == 1 {
		s := suggs[0]
		if s.Class != "" && s.Class != className {
			return fmt.Sprintf("Did you mean '%s' (declared on %s)?", s.Name, s.Class)
		}
		return fmt.Sprintf("Did you mean '%s'?", s.Name)
	}

	parts := make([]string, len(suggs))
	for i, s := range suggs {
		if s.Class != "" && s.Class != className {
			parts[i] = fmt.Sprintf("%s (declared on %s)", s.Name, s.Class)
		} else {
			parts[i] = s.Name
		}
	}
	return fmt.Sprintf("Did you mean: %s?", strings.Join(parts, ", "))
}
