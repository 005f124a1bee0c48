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
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/veloxar/arxval/pkg/ux"
	"github.com/veloxar/arxval/services/validator/pipeline"
	"github.com/veloxar/arxval/services/validator/validate"
)

func runFix(cmd *cobra.Command, args []string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	source, name, err := readScript(args, fixName)
	if err != nil {
		failf("%v", err)
	}

	fromStdin := len(args) == 0 || args[0] == "-"
	if fixWrite && fromStdin {
		failf("--write requires a script file argument, not stdin")
	}

	s, err := loadSchemaStyled(ctx, fixJSON)
	if err != nil {
		failf("loading knowledge base: %v", err)
	}

	p := pipeline.NewPipeline(s)
	pr, err := p.Run(ctx, source, name)
	if err != nil {
		failf("fixing %s: %v", name, err)
	}

	if fixJSON {
		printJSON(pr)
	} else {
		printFixText(name, pr)
	}

	if fixWrite && pr.FixedScript != "" {
		if err := writeFixedScript(args[0], pr.FixedScript); err != nil {
			failf("%v", err)
		}
	}

	if pr.Result.HasErrors() {
		os.Exit(ExitErrors)
	}
	os.Exit(ExitValid)
}

// printFixText renders the fix pass for the terminal.
func printFixText(name string, pr *pipeline.PassResult) {
	ux.Title(fmt.Sprintf("Fix: %s", name))

	if pr.FixedScript == "" {
		if pr.Result.Valid {
			ux.Success("Script is valid, nothing to fix")
			return
		}
		for _, f := range pr.Result.Findings {
			ux.FindingLine(f.Line, f.Severity.String(), f.Message, f.Suggestion)
		}
		ux.Warning("No deterministic fix applies to these findings")
		ux.Summary(pr.Result.ErrorCount(), pr.Result.WarningCount(), 0)
		return
	}

	for _, fix := range pr.Applied {
		ux.Info(fmt.Sprintf("L%d: %s -> %s", fix.Line, fix.Before, fix.After))
	}
	if pr.Diff != "" {
		ux.Box("Diff", pr.Diff)
	}

	// Applied rewrites were already listed above; show what remains.
	for _, f := range pr.Result.Findings {
		if f.Severity == validate.SeverityFixed {
			continue
		}
		ux.FindingLine(f.Line, f.Severity.String(), f.Message, f.Suggestion)
	}
	ux.Summary(pr.Result.ErrorCount(), pr.Result.WarningCount(), pr.Result.FixedCount())
	ux.Muted(fmt.Sprintf("Pass %s finished in %s", pr.PassID, pr.Duration.Round(time.Millisecond)))
}

// writeFixedScript overwrites path with the fixed source, confirming
// first unless --yes was given.
func writeFixedScript(path, fixed string) error {
	if !fixYes {
		if !ux.IsInteractive() {
			return fmt.Errorf("refusing to overwrite %s without --yes in a non-interactive session", path)
		}

		var confirmed bool
		form := huh.NewForm(
			huh.NewGroup(
				huh.NewConfirm().
					Title(fmt.Sprintf("Overwrite %s with the fixed script?", path)).
					Affirmative("Yes").
					Negative("No").
					Value(&confirmed),
			),
		)
		if err := form.Run(); err != nil {
			return fmt.Errorf("confirming overwrite: %w", err)
		}
		if !confirmed {
			ux.Muted("Leaving the original untouched")
			return nil
		}
	}

	if err := os.WriteFile(path, []byte(fixed), 0644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	ux.Success(fmt.Sprintf("Wrote fixed script to %s", path))
	return nil
}
