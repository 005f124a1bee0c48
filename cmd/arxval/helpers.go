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
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/veloxar/arxval/cmd/arxval/config"
	"github.com/veloxar/arxval/pkg/ux"
	"github.com/veloxar/arxval/services/validator/schema"
)

// Exit codes shared by the validation commands.
const (
	ExitValid   = 0
	ExitErrors  = 1
	ExitFailure = 2
)

// resolveKBPath picks the knowledge base source: --kb flag first, then
// the ambient resolution (ARXVAL_KB_PATH or a conventional local
// file), then the config file. Empty means the embedded KB.
func resolveKBPath() string {
	if kbPath != "" {
		return kbPath
	}
	if path := schema.ResolveSource(); path != "" {
		return path
	}
	return config.Global.KB.Path
}

// loadSchema loads the configured knowledge base.
func loadSchema(ctx context.Context) (*schema.Schema, error) {
	path := resolveKBPath()
	if path == "" {
		return schema.LoadDefault(ctx)
	}
	return schema.Load(ctx, path)
}

// loadSchemaStyled loads the knowledge base behind a spinner. Plain
// mode skips the spinner so JSON and quiet output stay clean.
func loadSchemaStyled(ctx context.Context, plain bool) (*schema.Schema, error) {
	if plain {
		return loadSchema(ctx)
	}
	var s *schema.Schema
	err := ux.WithSpinner("Loading knowledge base", func() error {
		var err error
		s, err = loadSchema(ctx)
		return err
	})
	return s, err
}

// readScript reads the script from the named file, or stdin when the
// argument is missing or "-". Returns the source and a display name.
func readScript(args []string, nameOverride string) ([]byte, string, error) {
	if len(args) == 0 || args[0] == "-" {
		source, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, "", fmt.Errorf("reading stdin: %w", err)
		}
		name := nameOverride
		if name == "" {
			name = "stdin.py"
		}
		return source, name, nil
	}

	source, err := os.ReadFile(args[0])
	if err != nil {
		return nil, "", fmt.Errorf("reading %s: %w", args[0], err)
	}
	name := nameOverride
	if name == "" {
		name = filepath.Base(args[0])
	}
	return source, name, nil
}

// failf prints a styled error and exits with the failure code.
func failf(format string, args ...any) {
	ux.Error(fmt.Sprintf(format, args...))
	os.Exit(ExitFailure)
}

// printJSON writes v as indented JSON to stdout.
func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		failf("encoding JSON output: %v", err)
	}
}
