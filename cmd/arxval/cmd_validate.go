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

	"github.com/spf13/cobra"

	"github.com/veloxar/arxval/pkg/ux"
	"github.com/veloxar/arxval/services/validator/pipeline"
)

func runValidate(cmd *cobra.Command, args []string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	source, name, err := readScript(args, validateName)
	if err != nil {
		failf("%v", err)
	}

	s, err := loadSchemaStyled(ctx, validateJSON || validateQuiet)
	if err != nil {
		failf("loading knowledge base: %v", err)
	}

	p := pipeline.NewPipeline(s, pipeline.WithoutAutoFix())
	pr, err := p.Run(ctx, source, name)
	if err != nil {
		failf("validating %s: %v", name, err)
	}

	if !validateQuiet {
		switch {
		case validateJSON:
			printJSON(pr)
		case validateBrowse && ux.IsInteractive() && len(pr.Result.Findings) > 0:
			if err := browseFindings(name, pr.Result); err != nil {
				failf("findings browser: %v", err)
			}
		default:
			printPassText(name, pr)
		}
	}

	if pr.Result.HasErrors() {
		os.Exit(ExitErrors)
	}
	os.Exit(ExitValid)
}

// printPassText renders one completed pass for the terminal.
func printPassText(name string, pr *pipeline.PassResult) {
	ux.Title(fmt.Sprintf("Validation: %s", name))

	if len(pr.Result.Findings) == 0 {
		ux.Success("Script is valid")
		ux.Muted(fmt.Sprintf("KB calls checked in %s", pr.Duration.Round(time.Millisecond)))
		return
	}

	for _, f := range pr.Result.Findings {
		ux.FindingLine(f.Line, f.Severity.String(), f.Message, f.Suggestion)
	}
	ux.Summary(pr.Result.ErrorCount(), pr.Result.WarningCount(), pr.Result.FixedCount())
	ux.Muted(fmt.Sprintf("Pass %s finished in %s", pr.PassID, pr.Duration.Round(time.Millisecond)))
}
