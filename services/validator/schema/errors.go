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
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for knowledge base loading and lookups.
//
// All load-time failures are configuration errors: the process should
// refuse to start rather than validate scripts against a broken KB.
var (
	// ErrClassNotFound is returned when a lookup names a class the
	// knowledge base does not declare.
	ErrClassNotFound = errors.New("class not found in knowledge base")

	// ErrMethodNotFound is returned when a class exists but does not
	// declare the requested factory or setter.
	ErrMethodNotFound = errors.New("method not found on class")

	// ErrDanglingClassRef is returned when a factory return type,
	// parameter tag, or reference-setter tag names a class that is
	// absent from the knowledge base. Detected at load time.
	ErrDanglingClassRef = errors.New("reference to undeclared class")

	// ErrInvalidTypeTag is returned when a type tag is empty or
	// malformed (e.g. "enum:" with no enum name).
	ErrInvalidTypeTag = errors.New("invalid type tag")

	// ErrVersionUnsupported is returned when the KB version header is
	// missing, not a valid semver, or outside the supported major.
	ErrVersionUnsupported = errors.New("unsupported knowledge base version")

	// ErrSchemaEmpty is returned when the KB declares no classes.
	ErrSchemaEmpty = errors.New("knowledge base declares no classes")

	// ErrFileTooLarge is returned when a KB source exceeds the size cap.
	ErrFileTooLarge = errors.New("knowledge base file too large")
)

// BatchError aggregates load-time integrity violations.
//
// The loader checks every factory return type, parameter tag, and
// setter tag before failing, so a single load reports all dangling
// references instead of the first one. Implements Unwrap() []error
// for errors.Is/errors.As against the sentinels above.
type BatchError struct {
	// Errors holds one entry per violation, each naming the class,
	// method, and offending tag.
	Errors []error
}

// Error returns a human-readable summary of the batch.
func (e *BatchError) Error() string {
	if len(e.Errors) == 0 {
		return "batch error with no errors" // Defensive
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("%d errors: %v (and %d more)",
		len(e.Errors), e.Errors[0], len(e.Errors)-1)
}

// Unwrap returns the underlying errors for errors.Is and errors.As.
func (e *BatchError) Unwrap() []error {
	return e.Errors
}

// ErrorList returns all errors formatted one per line, for logs and
// CLI output where the full list matters.
func (e *BatchError) ErrorList() string {
	if len(e.Errors) == 0 {
		return ""
	}
	var b strings.Builder
	for i, err := range e.Errors {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(err.Error())
	}
	return b.String()
}
