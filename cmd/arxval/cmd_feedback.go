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
	"github.com/veloxar/arxval/services/validator/feedback"
	"github.com/veloxar/arxval/services/validator/pipeline"
)

func runFeedback(cmd *cobra.Command, args []string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	source, name, err := readScript(args, "")
	if err != nil {
		failf("%v", err)
	}

	s, err := loadSchemaStyled(ctx, feedbackJSON || feedbackPrompt)
	if err != nil {
		failf("loading knowledge base: %v", err)
	}

	p := pipeline.NewPipeline(s, pipeline.WithoutAutoFix())
	pr, err := p.Run(ctx, source, name)
	if err != nil {
		failf("validating %s: %v", name, err)
	}

	composer := feedback.NewComposer()
	report := composer.Compose(pr.Result)

	switch {
	case feedbackPrompt:
		// Raw retry prompt, ready to paste into an LLM conversation.
		// Empty output means the script needs no correction.
		fmt.Println(composer.PromptText(pr.Result))
	case feedbackJSON:
		printJSON(report)
	default:
		printFeedbackText(name, report)
	}

	if report.Rejected {
		os.Exit(ExitErrors)
	}
	os.Exit(ExitValid)
}

// printFeedbackText renders the structured report for the terminal.
func printFeedbackText(name string, report *feedback.Report) {
	ux.Title(fmt.Sprintf("Feedback: %s", name))

	if report.Rejected {
		ux.Error(report.Reason)
	} else {
		ux.Success(report.Reason)
	}

	for _, issue := range report.Issues {
		ux.FindingLine(issue.Line, issue.Severity, issue.Message, issue.Fix)
	}
	if report.Action != "" {
		ux.Muted(report.Action)
	}
}
