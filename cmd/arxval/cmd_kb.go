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
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/veloxar/arxval/pkg/ux"
	"github.com/veloxar/arxval/services/validator/schema"
)

func runKBInfo(cmd *cobra.Command, args []string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	s, err := loadSchema(ctx)
	if err != nil {
		failf("loading knowledge base: %v", err)
	}

	if kbJSON {
		printJSON(struct {
			Version string `json:"version"`
			Classes int    `json:"classes"`
			Methods int    `json:"methods"`
		}{s.Version(), s.ClassCount(), s.Index().Size()})
		return
	}

	ux.Title("Knowledge Base")
	ux.Info(fmt.Sprintf("Version: %s", s.Version()))
	ux.Info(fmt.Sprintf("Classes: %d", s.ClassCount()))
	ux.Info(fmt.Sprintf("Methods: %d distinct names", s.Index().Size()))
}

func runKBClasses(cmd *cobra.Command, args []string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	s, err := loadSchema(ctx)
	if err != nil {
		failf("loading knowledge base: %v", err)
	}

	var kind schema.MethodKind
	filtered := false
	switch kbClassesKind {
	case "":
	case "factory":
		kind, filtered = schema.KindFactory, true
	case "setter":
		kind, filtered = schema.KindSetter, true
	default:
		failf("unknown --kind %q, expected factory or setter", kbClassesKind)
	}

	ux.Title(fmt.Sprintf("Classes (%s)", s.Version()))
	shown := 0
	for _, name := range s.ClassNames() {
		spec, ok := s.Class(name)
		if !ok {
			continue
		}
		if filtered && len(spec.MethodNames(kind)) == 0 {
			continue
		}
		ux.Info(fmt.Sprintf("%-40s %d factories, %d setters",
			name, len(spec.FactoryNames()), len(spec.SetterNames())))
		shown++
	}
	ux.Muted(fmt.Sprintf("%d classes", shown))
}

func runKBClass(cmd *cobra.Command, args []string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	s, err := loadSchema(ctx)
	if err != nil {
		failf("loading knowledge base: %v", err)
	}

	name := args[0]
	spec, ok := s.Class(name)
	if !ok {
		failf("class %q is not in the knowledge base", name)
	}

	ux.Title(name)

	factories := spec.FactoryNames()
	if len(factories) > 0 {
		ux.Info("Factories:")
		for _, fname := range factories {
			m, _ := spec.Factory(fname)
			ux.Info(fmt.Sprintf("  %s(%s) -> %s",
				fname, strings.Join(m.Params, ", "), m.Returns))
		}
	}

	setters := spec.SetterNames()
	if len(setters) > 0 {
		ux.Info("Setters:")
		for _, sname := range setters {
			tag, _ := spec.Setter(sname)
			ux.Info(fmt.Sprintf("  %s(%s)", sname, tag))
		}
	}

	if len(factories) == 0 && len(setters) == 0 {
		ux.Muted("No declared methods")
	}
}

func runKBCheck(cmd *cobra.Command, args []string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	path := resolveKBPath()
	if len(args) == 1 {
		path = args[0]
	}
	if path == "" {
		failf("no knowledge base to check: pass a file or set kb.path in the config")
	}

	s, err := schema.Load(ctx, path)
	if err != nil {
		var batch *schema.BatchError
		if errors.As(err, &batch) {
			ux.Error(fmt.Sprintf("%s fails integrity checks:", path))
			fmt.Println(batch.ErrorList())
			os.Exit(ExitErrors)
		}
		failf("loading %s: %v", path, err)
	}

	ux.Success(fmt.Sprintf("%s loads clean: version %s, %d classes, %d methods",
		path, s.Version(), s.ClassCount(), s.Index().Size()))
}
