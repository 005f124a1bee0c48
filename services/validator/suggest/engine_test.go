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
	"context"
	"testing"

	"github.com/veloxar/arxval/services/validator/schema"
)

const engineKB = `
version: "1.0.0"
classes:
  SwcInternalBehavior:
    factories:
      new_Runnable:
        params: [str]
        returns: Runnable
      new_Event:
        params: [str]
        returns: RteEvent
  Runnable:
    factories:
      new_DataReadAcces:
        params: [str]
        returns: VariableAccess
      new_DataWriteAcces:
        params: [str]
        returns: VariableAccess
    setters:
      set_symbol: str
      set_canBeInvokedConcurrently: bool
  RteEvent:
    setters:
      set_period: float
  VariableAccess: {}
`

func engineSchema(t *testing.T) *schema.Schema {
	t.Helper()
	s, err := schema.LoadBytes(context.Background(), []byte(engineKB), "test")
	if err != nil {
		t.Fatalf("LoadBytes failed: %v", err)
	}
	return s
}

// =============================================================================
// Levenshtein Distance Tests
// =============================================================================

func TestLevenshtein_Basics(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want int
	}{
		{"identical", "new_Runnable", "new_Runnable", 0},
		{"both empty", "", "", 0},
		{"a empty", "", "abc", 3},
		{"b empty", "abc", "", 3},
		{"substitution", "cat", "bat", 1},
		{"insertion", "cat", "cart", 1},
		{"deletion", "cart", "cat", 1},
		{"missing letter", "new_Runable", "new_Runnable", 1},
		{"dropped qualifier", "new_InternalBehavior", "new_SwcInternalBehavior", 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := levenshtein(tt.a, tt.b); got != tt.want {
				t.Errorf("levenshtein(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestLevenshtein_Symmetry(t *testing.T) {
	pairs := [][2]string{
		{"new_Runable", "new_Runnable"},
		{"set_simbol", "set_symbol"},
		{"kitten", "sitting"},
	}

	for _, pair := range pairs {
		d1 := levenshtein(pair[0], pair[1])
		d2 := levenshtein(pair[1], pair[0])
		if d1 != d2 {
			t.Errorf("levenshtein(%q, %q) = %d but reversed = %d", pair[0], pair[1], d1, d2)
		}
	}
}

// =============================================================================
// Similarity Tests
// =============================================================================

func TestSimilarity_Identical(t *testing.T) {
	if got := Similarity("new_Runnable", "new_Runnable"); got != 1 {
		t.Errorf("Similarity of identical names = %v, want 1", got)
	}
}

func TestSimilarity_CaseOnlyDifference(t *testing.T) {
	// Casing hallucinations must rank their correction at the top.
	got := Similarity("new_SomeIpEventDeployment", "new_SomeipEventDeployment")
	if got != 1 {
		t.Errorf("case-only difference scored %v, want 1", got)
	}
}

func TestSimilarity_PrefixBeatsUnrelated(t *testing.T) {
	// Same raw edit distance, but the truncated spelling of a real
	// name carries the prefix bonus.
	truncated := Similarity("set_frame", "set_frames")
	unrelated := Similarity("set_frame", "set_flame")
	if truncated <= unrelated {
		t.Errorf("prefix candidate %v should beat unrelated %v", truncated, unrelated)
	}
}

func TestSimilarity_Bounds(t *testing.T) {
	tests := []struct {
		name string
		a, b string
	}{
		{"disjoint", "zzzzz", "new_Runnable"},
		{"empty vs long", "", "new_Runnable"},
		{"near-identical with bonus", "set_frame", "set_frame1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Similarity(tt.a, tt.b)
			if got < 0 || got > 1 {
				t.Errorf("Similarity(%q, %q) = %v, outside [0, 1]", tt.a, tt.b, got)
			}
		})
	}
}

// =============================================================================
// Engine Tests
// =============================================================================

func TestEngine_SameClassFirst(t *testing.T) {
	e := NewEngine(engineSchema(t))

	got := e.SuggestMethod("SwcInternalBehavior", "new_Runable", schema.KindFactory)
	if len(got) != 1 {
		t.Fatalf("got %d suggestions, want 1: %+v", len(got), got)
	}
	if got[0].Name != "new_Runnable" {
		t.Errorf("top suggestion = %q, want %q", got[0].Name, "new_Runnable")
	}
	if !got[0].SameClass || got[0].Class != "SwcInternalBehavior" {
		t.Errorf("suggestion = %+v, want same-class on SwcInternalBehavior", got[0])
	}
}

func TestEngine_WidensWhenSameClassMisses(t *testing.T) {
	e := NewEngine(engineSchema(t))

	// RteEvent declares no setter anywhere near set_symbol; the
	// cross-class index has the exact name on Runnable.
	got := e.SuggestMethod("RteEvent", "set_symbol", schema.KindSetter)
	if len(got) != 1 {
		t.Fatalf("got %d suggestions, want 1: %+v", len(got), got)
	}
	if got[0].Name != "set_symbol" || got[0].Class != "Runnable" {
		t.Errorf("suggestion = %+v, want set_symbol declared on Runnable", got[0])
	}
	if got[0].SameClass {
		t.Error("cross-class suggestion flagged SameClass")
	}
}

func TestEngine_UnknownClassGoesWide(t *testing.T) {
	e := NewEngine(engineSchema(t))

	got := e.SuggestMethod("GhostClass", "new_Runable", schema.KindFactory)
	if len(got) == 0 {
		t.Fatal("want a cross-class suggestion for an undeclared receiver class")
	}
	if got[0].Name != "new_Runnable" || got[0].Class != "SwcInternalBehavior" {
		t.Errorf("top suggestion = %+v", got[0])
	}
}

func TestEngine_NoMatchBelowThreshold(t *testing.T) {
	e := NewEngine(engineSchema(t))

	got := e.SuggestMethod("SwcInternalBehavior", "configure_widget", schema.KindFactory)
	if got != nil {
		t.Errorf("got %+v, want nil for a name nothing resembles", got)
	}
}

func TestEngine_ToleranceBand(t *testing.T) {
	e := NewEngine(engineSchema(t))

	// Both access factories sit within the tolerance band of each
	// other for this truncation.
	got := e.SuggestMethod("Runnable", "new_DataAcces", schema.KindFactory)
	if len(got) != 2 {
		t.Fatalf("got %d suggestions, want 2: %+v", len(got), got)
	}
	if got[0].Name != "new_DataReadAcces" || got[1].Name != "new_DataWriteAcces" {
		t.Errorf("ranking = [%s, %s]", got[0].Name, got[1].Name)
	}
	if got[0].Score < got[1].Score {
		t.Error("suggestions not sorted best-first")
	}
}

func TestEngine_MaxResultsCap(t *testing.T) {
	e := NewEngine(engineSchema(t), WithMaxResults(1))

	got := e.SuggestMethod("Runnable", "new_DataAcces", schema.KindFactory)
	if len(got) != 1 {
		t.Fatalf("got %d suggestions, want 1 with cap", len(got))
	}
	if got[0].Name != "new_DataReadAcces" {
		t.Errorf("top suggestion = %q", got[0].Name)
	}
}

func TestEngine_ThresholdOverride(t *testing.T) {
	e := NewEngine(engineSchema(t), WithThreshold(0.9))

	got := e.SuggestMethod("Runnable", "new_DataAcces", schema.KindFactory)
	if got != nil {
		t.Errorf("got %+v, want nil above a 0.9 threshold", got)
	}
}

func TestEngine_NearestMethods(t *testing.T) {
	e := NewEngine(engineSchema(t))

	got := e.NearestMethods("set_simbol", 3)
	if len(got) != 1 {
		t.Fatalf("got %d matches, want 1: %+v", len(got), got)
	}
	if got[0].Name != "set_symbol" || got[0].Class != "Runnable" || got[0].Kind != schema.KindSetter {
		t.Errorf("match = %+v", got[0])
	}
}

func TestEngine_NearestClasses(t *testing.T) {
	e := NewEngine(engineSchema(t))

	got := e.NearestClasses("Runable", 3)
	if len(got) != 1 {
		t.Fatalf("got %d matches, want 1: %+v", len(got), got)
	}
	if got[0].Name != "Runnable" {
		t.Errorf("match = %q, want Runnable", got[0].Name)
	}
}

// =============================================================================
// Format Tests
// =============================================================================

func TestFormat(t *testing.T) {
	tests := []struct {
		name      string
		className string
		suggs     []Suggestion
		want      string
	}{
		{
			name:      "empty",
			className: "Runnable",
			suggs:     nil,
			want:      "",
		},
		{
			name:      "single same class",
			className: "Runnable",
			suggs:     []Suggestion{{Name: "set_symbol", Class: "Runnable"}},
			want:      "Did you mean 'set_symbol'?",
		},
		{
			name:      "single cross class",
			className: "RteEvent",
			suggs:     []Suggestion{{Name: "set_symbol", Class: "Runnable"}},
			want:      "Did you mean 'set_symbol' (declared on Runnable)?",
		},
		{
			name:      "multiple same class",
			className: "Runnable",
			suggs: []Suggestion{
				{Name: "new_DataReadAcces", Class: "Runnable"},
				{Name: "new_DataWriteAcces", Class: "Runnable"},
			},
			want: "Did you mean: new_DataReadAcces, new_DataWriteAcces?",
		},
		{
			name:      "multiple mixed",
			className: "RteEvent",
			suggs: []Suggestion{
				{Name: "set_period", Class: "RteEvent"},
				{Name: "set_symbol", Class: "Runnable"},
			},
			want: "Did you mean: set_period, set_symbol (declared on Runnable)?",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Format(tt.className, tt.suggs); got != tt.want {
				t.Errorf("Format() = %q, want %q", got, tt.want)
			}
		})
	}
}
