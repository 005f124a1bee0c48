// Copyright (C) 2026 Veloxar Systems (dev@veloxar.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/veloxar/arxval/cmd/arxval/config"
	"github.com/veloxar/arxval/services/validator/schema"
)

// TestReadScript_File verifies reading a script from a file argument.
func TestReadScript_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gen_swc.py")
	if err := os.WriteFile(path, []byte("import autosarfactory\n"), 0644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	data, name, err := readScript([]string{path}, "")
	if err != nil {
		t.Fatalf("readScript failed: %v", err)
	}
	if string(data) != "import autosarfactory\n" {
		t.Errorf("unexpected content: %q", data)
	}
	if name != "gen_swc.py" {
		t.Errorf("Expected base name gen_swc.py, got %q", name)
	}
}

// TestReadScript_NameOverride verifies --name wins over the file name.
func TestReadScript_NameOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "whatever.py")
	if err := os.WriteFile(path, []byte("x = 1\n"), 0644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	_, name, err := readScript([]string{path}, "renamed.py")
	if err != nil {
		t.Fatalf("readScript failed: %v", err)
	}
	if name != "renamed.py" {
		t.Errorf("Expected renamed.py, got %q", name)
	}
}

// TestReadScript_MissingFile verifies a useful error for bad paths.
func TestReadScript_MissingFile(t *testing.T) {
	_, _, err := readScript([]string{"/nonexistent/script.py"}, "")
	if err == nil {
		t.Fatal("Expected an error for a missing file")
	}
}

// TestReadScript_Stdin verifies the no-argument stdin path.
func TestReadScript_Stdin(t *testing.T) {
	old := os.Stdin
	defer func() { os.Stdin = old }()

	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("creating pipe: %v", err)
	}
	os.Stdin = r

	go func() {
		w.WriteString("print('hello')\n")
		w.Close()
	}()

	data, name, err := readScript(nil, "")
	if err != nil {
		t.Fatalf("readScript failed: %v", err)
	}
	if string(data) != "print('hello')\n" {
		t.Errorf("unexpected content: %q", data)
	}
	if name != "stdin.py" {
		t.Errorf("Expected stdin.py, got %q", name)
	}
}

// TestResolveKBPath verifies the flag, env, config precedence.
func TestResolveKBPath(t *testing.T) {
	oldFlag := kbPath
	oldConfig := config.Global.KB.Path
	defer func() {
		kbPath = oldFlag
		config.Global.KB.Path = oldConfig
	}()
	t.Setenv(schema.EnvKBPath, "")

	kbPath = ""
	config.Global.KB.Path = "/etc/arxval/kb.yaml"
	if got := resolveKBPath(); got != "/etc/arxval/kb.yaml" {
		t.Errorf("Expected config path, got %q", got)
	}

	t.Setenv(schema.EnvKBPath, "/srv/kb/generated.yaml")
	if got := resolveKBPath(); got != "/srv/kb/generated.yaml" {
		t.Errorf("Expected env to beat the config, got %q", got)
	}

	kbPath = "/tmp/override.yaml"
	if got := resolveKBPath(); got != "/tmp/override.yaml" {
		t.Errorf("Expected flag to win, got %q", got)
	}
}
