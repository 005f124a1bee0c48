// Copyright (C) 2026 Veloxar Systems (dev@veloxar.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package validate checks generated scripts against the API knowledge
// base.
//
// The validator consumes the analysis package's output (a parsed
// script plus tracked call sites with receiver-type snapshots) and
// produces an ordered list of findings. It never executes the script.
//
// # Architecture
//
// One validation pass runs in three stages:
//
//	Syntax diagnostics → Anti-pattern shapes → Per-site checks
//
// Anti-patterns go first because they are Errors regardless of whether
// the receiver type resolved; a match suppresses the ordinary findings
// of its statement so one misuse yields one finding.
//
// # Severity Model
//
//	| Finding                                | Severity | Affects validity |
//	|----------------------------------------|----------|------------------|
//	| Syntax diagnostic                      | Error    | Yes              |
//	| Undeclared method on resolved class    | Error    | Yes              |
//	| Anti-pattern shape                     | Error    | Yes              |
//	| Wrong arity on declared method         | Warning  | No               |
//	| Call with unresolvable receiver type   | Warning  | No               |
//
// Unverifiable calls are Warnings by design: static tracking cannot
// follow every Python expression, and a call that cannot be checked
// is not the same as a call that is wrong.
//
// # Usage
//
//	v := validate.NewValidator(kb)
//	result := v.Validate(ctx, script, tracked)
//	if !result.Valid {
//	    for _, f := range result.Errors() {
//	        fmt.Println(f.Line, f.Message, f.Suggestion)
//	    }
//	}
//
// # Thread Safety
//
// The Validator is safe for concurrent use; passes share nothing but
// the immutable schema.
package validate
