// Copyright (C) 2026 Veloxar Systems (dev@veloxar.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package schema

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

// TestLoadDefault_EmbeddedKB tests that the embedded KB loads and
// declares the anchor classes the validator depends on.
func TestLoadDefault_EmbeddedKB(t *testing.T) {
	s, err := LoadDefault(context.Background())
	if err != nil {
		t.Fatalf("LoadDefault failed: %v", err)
	}

	if s.ClassCount() < 30 {
		t.Errorf("embedded KB declares %d classes, want at least 30", s.ClassCount())
	}

	m, err := s.Factory("ApplicationSwComponentType", "new_InternalBehavior")
	if err != nil {
		t.Fatalf("ApplicationSwComponentType.new_InternalBehavior: %v", err)
	}
	if m.Returns != "SwcInternalBehavior" {
		t.Errorf("new_InternalBehavior returns %q, want SwcInternalBehavior", m.Returns)
	}
	if m.Arity() != 1 || m.Params[0] != TagStr {
		t.Errorf("new_InternalBehavior params = %v, want [str]", m.Params)
	}

	tag, err := s.Setter("CanClusterConditional", "set_baudrate")
	if err != nil {
		t.Fatalf("CanClusterConditional.set_baudrate: %v", err)
	}
	if tag != TagInt {
		t.Errorf("set_baudrate tag = %q, want int", tag)
	}

	behavior, ok := s.Class("SwcInternalBehavior")
	if !ok {
		t.Fatal("SwcInternalBehavior should be declared")
	}
	if !behavior.HasMethod("new_Runnable", KindFactory) {
		t.Error("SwcInternalBehavior should declare new_Runnable")
	}

	runnable, ok := s.Class("Runnable")
	if !ok {
		t.Fatal("Runnable should be declared")
	}
	// autosarfactory really does spell these without the double-s.
	if !runnable.HasMethod("new_DataReadAcces", KindFactory) {
		t.Error("Runnable should declare new_DataReadAcces")
	}
	if !runnable.HasMethod("new_DataWriteAcces", KindFactory) {
		t.Error("Runnable should declare new_DataWriteAcces")
	}

	tag, err = s.Setter("CanFrameTriggering", "set_frame")
	if err != nil {
		t.Fatalf("CanFrameTriggering.set_frame: %v", err)
	}
	if tag != "CanFrame" {
		t.Errorf("set_frame tag = %q, want CanFrame", tag)
	}

	tag, err = s.Setter("PduToFrameMapping", "set_packingByteOrder")
	if err != nil {
		t.Fatalf("PduToFrameMapping.set_packingByteOrder: %v", err)
	}
	if tag != "enum:ByteOrderEnum" {
		t.Errorf("set_packingByteOrder tag = %q, want enum:ByteOrderEnum", tag)
	}

	mapping, ok := s.Class("SystemMapping")
	if !ok {
		t.Fatal("SystemMapping should be declared")
	}
	if !mapping.HasMethod("new_SwMapping", KindFactory) {
		t.Error("SystemMapping should declare new_SwMapping")
	}

	sri, ok := s.Class("SenderReceiverInterface")
	if !ok {
		t.Fatal("SenderReceiverInterface should be declared")
	}
	if !sri.HasMethod("new_DataElement", KindFactory) {
		t.Error("SenderReceiverInterface should declare new_DataElement")
	}
}

// TestLoad_NilContext tests that nil context returns an error.
func TestLoad_NilContext(t *testing.T) {
	_, err := Load(nil, "kb.yaml")
	if err == nil {
		t.Error("Load(nil, ...) should return error")
	}
	_, err = LoadBytes(nil, []byte("version: '1.0.0'"), "test")
	if err == nil {
		t.Error("LoadBytes(nil, ...) should return error")
	}
}

// TestCheckVersion tests the KB version gate.
func TestCheckVersion(t *testing.T) {
	tests := []struct {
		version string
		wantErr bool
	}{
		{"1.0.0", false},
		{"1.2.3", false},
		{"1.0.0-rc1", false},
		{"2.0.0", true},
		{"0.9.0", true},
		{"not-a-version", true},
		{"", true},
	}
	for _, tt := range tests {
		t.Run(tt.version, func(t *testing.T) {
			err := checkVersion(tt.version)
			if tt.wantErr && err == nil {
				t.Errorf("checkVersion(%q) should fail", tt.version)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("checkVersion(%q) failed: %v", tt.version, err)
			}
			if tt.wantErr && err != nil && !errors.Is(err, ErrVersionUnsupported) {
				t.Errorf("checkVersion(%q) err = %v, want ErrVersionUnsupported", tt.version, err)
			}
		})
	}
}

// TestLoad_LocalFile tests loading a KB from disk.
func TestLoad_LocalFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "kb.yaml")
	if err := os.WriteFile(path, []byte(miniKB), 0o644); err != nil {
		t.Fatalf("writing KB file: %v", err)
	}

	s, err := Load(context.Background(), path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if s.ClassCount() != 3 {
		t.Errorf("ClassCount() = %d, want 3", s.ClassCount())
	}
}

// TestLoad_MissingFile tests the error for a nonexistent path.
func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(context.Background(), filepath.Join(t.TempDir(), "absent.yaml"))
	if err == nil {
		t.Error("Load should fail for a missing file")
	}
}

// TestLoadBytes_InvalidYAML tests the parse error path.
func TestLoadBytes_InvalidYAML(t *testing.T) {
	_, err := LoadBytes(context.Background(), []byte("classes: ["), "test")
	if err == nil {
		t.Error("LoadBytes should fail for invalid YAML")
	}
}

// TestLoadBytes_TooLarge tests the size cap.
func TestLoadBytes_TooLarge(t *testing.T) {
	data := bytes.Repeat([]byte(" "), MaxKBFileSize+1)
	_, err := LoadBytes(context.Background(), data, "test")
	if !errors.Is(err, ErrFileTooLarge) {
		t.Errorf("err = %v, want ErrFileTooLarge", err)
	}
}

// TestGet_Singleton tests that the cached schema is loaded once.
func TestGet_Singleton(t *testing.T) {
	Reset()
	defer Reset()
	t.Setenv(EnvKBPath, "")

	ctx := context.Background()

	s1, err := Get(ctx)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if s1 == nil {
		t.Fatal("Get returned nil")
	}

	s2, err := Get(ctx)
	if err != nil {
		t.Fatalf("Get second call failed: %v", err)
	}
	if s1 != s2 {
		t.Error("Get should return same instance (singleton)")
	}
}

// TestGet_NilContext tests that nil context returns error.
func TestGet_NilContext(t *testing.T) {
	Reset()
	defer Reset()

	_, err := Get(nil)
	if err == nil {
		t.Error("Get(nil) should return error")
	}
}

// TestGet_EnvOverride tests that EnvKBPath replaces the embedded KB.
func TestGet_EnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "kb.yaml")
	if err := os.WriteFile(path, []byte(miniKB), 0o644); err != nil {
		t.Fatalf("writing KB file: %v", err)
	}

	Reset()
	defer Reset()
	t.Setenv(EnvKBPath, path)

	s, err := Get(context.Background())
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if s.ClassCount() != 3 {
		t.Errorf("ClassCount() = %d, want 3 from the override KB", s.ClassCount())
	}
}

// TestGet_BrokenOverrideIsHardError tests that a configured KB that
// fails to load does not silently fall back to the embedded default.
func TestGet_BrokenOverrideIsHardError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "kb.yaml")
	if err := os.WriteFile(path, []byte("classes: ["), 0o644); err != nil {
		t.Fatalf("writing KB file: %v", err)
	}

	Reset()
	defer Reset()
	t.Setenv(EnvKBPath, path)

	_, err := Get(context.Background())
	if err == nil {
		t.Error("Get should fail when the configured KB is broken")
	}
}
