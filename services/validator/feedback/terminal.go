// Copyright (C) 2026 Veloxar Systems (dev@veloxar.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package feedback

import (
	"fmt"

	"github.com/veloxar/arxval/pkg/ux"
	"github.com/veloxar/arxval/services/validator/validate"
)

// Render prints a validation result to the terminal, one line per
// finding plus a severity summary. Honors the active personality
// level, so machine mode stays tab-separated and parseable.
func Render(result *validate.Result) {
	if result == nil {
		return
	}

	if result.ScriptName != "" {
		ux.Title(result.ScriptName)
	}

	if len(result.Findings) == 0 {
		ux.Success("no issues found")
		return
	}

	for _, f := range result.Findings {
		ux.FindingLine(f.Line, f.Severity.String(), f.Message, f.Suggestion)
	}

	ux.Summary(result.ErrorCount(), result.WarningCount(), result.FixedCount())

	if result.Valid {
		ux.Success("script is valid")
	} else {
		ux.Error(fmt.Sprintf("script rejected with %d error(s)", result.ErrorCount()))
	}
}

// RenderDiff prints a unified diff of applied fixes.
func RenderDiff(diff string) {
	if diff == "" {
		return
	}
	ux.Box("applied fixes", diff)
}
