// Copyright (C) 2026 Veloxar Systems (dev@veloxar.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ux

import "testing"

func TestParsePersonalityLevel(t *testing.T) {
	tests := []struct {
		in   string
		want PersonalityLevel
	}{
		{"full", PersonalityFull},
		{"f", PersonalityFull},
		{"FULL", PersonalityFull},
		{"standard", PersonalityStandard},
		{"std", PersonalityStandard},
		{"minimal", PersonalityMinimal},
		{"min", PersonalityMinimal},
		{"machine", PersonalityMachine},
		{"quiet", PersonalityMachine},
		{"q", PersonalityMachine},
		{"garbage", PersonalityStandard},
		{"", PersonalityStandard},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := ParsePersonalityLevel(tt.in)
			if got != tt.want {
				t.Errorf("ParsePersonalityLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestSetPersonalityLevel(t *testing.T) {
	old := GetPersonality()
	defer SetPersonality(old)

	SetPersonalityLevel(PersonalityMinimal)
	if got := GetPersonality().Level; got != PersonalityMinimal {
		t.Errorf("Level = %v, want minimal", got)
	}

	// Other fields survive a level-only update.
	if got := GetPersonality().Theme; got != old.Theme {
		t.Errorf("Theme = %v, want %v", got, old.Theme)
	}
}

func TestInitPersonality_EnvOverride(t *testing.T) {
	old := GetPersonality()
	defer SetPersonality(old)

	t.Setenv("ARXVAL_PERSONALITY", "machine")
	InitPersonality()
	if got := GetPersonality().Level; got != PersonalityMachine {
		t.Errorf("Level = %v, want machine", got)
	}
}

func TestDefaultPersonality(t *testing.T) {
	p := DefaultPersonality()
	if p.Level != PersonalityFull {
		t.Errorf("Level = %v, want full", p.Level)
	}
	if !p.ShowHints {
		t.Error("ShowHints = false, want true")
	}
}
