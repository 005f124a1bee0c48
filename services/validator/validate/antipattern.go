// Copyright (C) 2026 Veloxar Systems (dev@veloxar.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package validate

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/veloxar/arxval/services/validator/analysis"
	"github.com/veloxar/arxval/services/validator/schema"
)

// patternMatch is one matched anti-pattern: the finding to emit plus
// the source lines whose ordinary findings it suppresses, so one
// misuse yields one finding.
type patternMatch struct {
	finding  Finding
	suppress []int
}

// =============================================================================
// REFERENCE-OBJECT MISUSE (statement shape)
// =============================================================================

// matchStatementPatterns walks one statement's call tree for the
// reference-object misuse shape: a new_<T>Ref factory, bare or
// immediately chained into set_value. The API wants the direct setter
// set_<t> instead, and the shape is wrong no matter what the receiver
// type resolved to.
func (v *Validator) matchStatementPatterns(stmt analysis.Statement) []patternMatch {
	if stmt.Value == nil || stmt.Value.Kind != analysis.ExprCall || stmt.Value.Call == nil {
		return nil
	}

	var matches []patternMatch
	consumed := make(map[*analysis.RawCall]bool)

	walkCalls(stmt.Value.Call, func(rc *analysis.RawCall) {
		if rc.Method == "set_value" && rc.RecvCall != nil && isRefFactory(rc.RecvCall.Method) {
			consumed[rc.RecvCall] = true
			matches = append(matches, v.refMisuseMatch(stmt, rc, rc.RecvCall, true))
			return
		}
		if isRefFactory(rc.Method) && !consumed[rc] {
			matches = append(matches, v.refMisuseMatch(stmt, rc, rc, false))
		}
	})
	return matches
}

// refMisuseMatch builds the finding for one reference misuse. outer is
// the whole matched expression (the set_value call for the chained
// shape, the Ref call itself otherwise); refCall is the new_<T>Ref
// call that names T.
func (v *Validator) refMisuseMatch(stmt analysis.Statement, outer, refCall *analysis.RawCall, chained bool) patternMatch {
	refType := strings.TrimSuffix(strings.TrimPrefix(refCall.Method, "new_"), "Ref")
	setter := "set_" + lowerFirst(refType)
	base := receiverText(refCall)

	// The substituted value: set_value's argument for the chained
	// shape, the Ref call's own argument otherwise.
	value := firstPositionalText(outer.Args)

	var message string
	if chained {
		message = fmt.Sprintf("Invalid reference pattern: new_%sRef().set_value()", refType)
	} else {
		message = fmt.Sprintf("Invalid reference pattern: new_%sRef()", refType)
	}

	f := Finding{
		Severity: SeverityError,
		Category: CategoryAntiPattern,
		Line:     outer.Line,
		Column:   outer.Col,
		Message:  message,
		Method:   refCall.Method,
	}

	if base != "" && value != "" {
		replacement := fmt.Sprintf("%s.%s(%s)", base, setter, value)
		f.Suggestion = "Use direct setter: " + replacement
		f.Span = outer.Text
		f.Replacement = replacement
	} else {
		f.Suggestion = fmt.Sprintf("Use direct setter: %s(value)", setter)
	}

	return patternMatch{finding: f, suppress: statementLines(stmt)}
}

// =============================================================================
// ENUM LITERAL AS STRING (per call site)
// =============================================================================

// matchEnumString flags a setter declared with an enum parameter
// called with a string literal. The replacement is the module-level
// enum constant for that literal.
func (v *Validator) matchEnumString(site *analysis.CallSite) *patternMatch {
	if site.Category != analysis.CategorySetter {
		return nil
	}

	var lit *analysis.Arg
	for i := range site.Args {
		a := &site.Args[i]
		if a.IsString && !a.IsKeyword && !a.IsStarred {
			lit = a
			break
		}
	}
	if lit == nil {
		return nil
	}

	enumType := v.enumTypeFor(site)
	if enumType == "" {
		return nil
	}

	f := Finding{
		Severity: SeverityError,
		Category: CategoryAntiPattern,
		Line:     site.Line,
		Column:   site.Col,
		Message:  fmt.Sprintf("%s expects a %s constant, not a string", site.Method, enumType),
		Class:    site.ReceiverType.Class,
		Method:   site.Method,
	}

	if lit.StringValue != "" {
		constant := v.enumConstant(enumType, lit.StringValue)
		f.Suggestion = "Use " + constant
		f.Span = lit.Text
		f.Replacement = constant
	} else {
		f.Suggestion = fmt.Sprintf("Use a %s constant", enumType)
	}

	return &patternMatch{finding: f, suppress: []int{site.Line}}
}

// enumTypeFor resolves the enum type a setter expects: from the
// receiver's class when it resolved, otherwise from any class in the
// index declaring the name as an enum setter. Returns "" when the
// setter is not enum-typed anywhere, in which case a string argument
// is legitimate.
func (v *Validator) enumTypeFor(site *analysis.CallSite) string {
	if site.ReceiverType.IsKnown() {
		return v.enumTagOn(site.ReceiverType.Class, site.Method)
	}
	for _, ref := range v.schema.Index().Lookup(site.Method) {
		if ref.Kind != schema.KindSetter {
			continue
		}
		if e := v.enumTagOn(ref.Class, site.Method); e != "" {
			return e
		}
	}
	return ""
}

func (v *Validator) enumTagOn(class, method string) string {
	cs, ok := v.schema.Class(class)
	if !ok {
		return ""
	}
	tag, ok := cs.Setter(method)
	if !ok || !schema.IsEnumTag(tag) {
		return ""
	}
	return schema.EnumName(tag)
}

// enumConstant renders the module-qualified enum constant for a
// literal, e.g. "MOST-SIGNIFICANT-BYTE-LAST" becomes
// autosarfactory.ByteOrderEnum.VALUE_MOST_SIGNIFICANT_BYTE_LAST.
func (v *Validator) enumConstant(enumType, literal string) string {
	norm := strings.ToUpper(literal)
	norm = strings.ReplaceAll(norm, "-", "_")
	norm = strings.ReplaceAll(norm, " ", "_")
	if !strings.HasPrefix(norm, "VALUE_") {
		norm = "VALUE_" + norm
	}
	return fmt.Sprintf("%s.%s.%s", v.moduleClass, enumType, norm)
}

// =============================================================================
// DOCUMENT OPERATIONS (per call site)
// =============================================================================

// matchSaveWithArgs flags save called with arguments: the document
// save takes none. Skipped when the receiver resolved to a class that
// does not declare save at all; that is some other save.
func (v *Validator) matchSaveWithArgs(site *analysis.CallSite) *patternMatch {
	if site.Method != "save" || len(site.Args) == 0 {
		return nil
	}
	if site.ReceiverType.IsKnown() && !v.declaresMethod(site.ReceiverType.Class, "save") {
		return nil
	}

	recv := site.ReceiverDisplay()
	replacement := recv + ".save()"

	return &patternMatch{
		finding: Finding{
			Severity:    SeverityError,
			Category:    CategoryAntiPattern,
			Line:        site.Line,
			Column:      site.Col,
			Message:     "save() should not have arguments",
			Suggestion:  fmt.Sprintf("Use %s without arguments", replacement),
			Class:       site.ReceiverType.Class,
			Method:      site.Method,
			Span:        site.Raw,
			Replacement: replacement,
		},
		suppress: []int{site.Line},
	}
}

// matchReadWithoutList flags the module-level read called with a bare
// path instead of a list of paths.
func (v *Validator) matchReadWithoutList(site *analysis.CallSite) *patternMatch {
	if site.Method != "read" || site.ReceiverType.Class != v.moduleClass {
		return nil
	}
	if len(site.Args) != 1 {
		return nil
	}
	arg := site.Args[0]
	if arg.IsKeyword || arg.IsStarred {
		return nil
	}
	if strings.HasPrefix(strings.TrimSpace(arg.Text), "[") {
		return nil
	}

	recv := site.ReceiverDisplay()
	replacement := fmt.Sprintf("%s.read([%s])", recv, arg.Text)

	return &patternMatch{
		finding: Finding{
			Severity:    SeverityError,
			Category:    CategoryAntiPattern,
			Line:        site.Line,
			Column:      site.Col,
			Message:     "read() requires a list argument",
			Suggestion:  fmt.Sprintf(`Use %s.read(["file.arxml"])`, recv),
			Class:       site.ReceiverType.Class,
			Method:      site.Method,
			Span:        site.Raw,
			Replacement: replacement,
		},
		suppress: []int{site.Line},
	}
}

func (v *Validator) declaresMethod(class, method string) bool {
	cs, ok := v.schema.Class(class)
	if !ok {
		return false
	}
	return cs.HasMethod(method, schema.KindFactory) || cs.HasMethod(method, schema.KindSetter)
}

// =============================================================================
// HELPERS
// =============================================================================

// isRefFactory matches the new_<T>Ref naming family of reference
// objects.
func isRefFactory(method string) bool {
	return strings.HasPrefix(method, "new_") &&
		strings.HasSuffix(method, "Ref") &&
		len(method) > len("new_")+len("Ref")
}

// walkCalls visits every call in a chain: the call itself, then its
// receiver chain, then calls nested in arguments. Outer-first order
// lets a chain head claim its receiver before the receiver is
// visited on its own.
func walkCalls(rc *analysis.RawCall, fn func(*analysis.RawCall)) {
	if rc == nil {
		return
	}
	fn(rc)
	if rc.RecvCall != nil {
		walkCalls(rc.RecvCall, fn)
	}
	for _, nested := range rc.Nested {
		walkCalls(nested, fn)
	}
}

// receiverText renders a call's receiver for use in a rewrite.
func receiverText(rc *analysis.RawCall) string {
	switch {
	case rc.RecvVar != "":
		return rc.RecvVar
	case rc.RecvCall != nil:
		return rc.RecvCall.Text
	default:
		return rc.RecvText
	}
}

// firstPositionalText returns the source text of the first plain
// positional argument, "" when there is none.
func firstPositionalText(args []analysis.Arg) string {
	for _, a := range args {
		if !a.IsKeyword && !a.IsStarred {
			return a.Text
		}
	}
	return ""
}

// statementLines collects every line the statement's calls touch, for
// suppression of ordinary findings.
func statementLines(stmt analysis.Statement) []int {
	lines := map[int]bool{stmt.Line: true}
	if stmt.Value != nil && stmt.Value.Kind == analysis.ExprCall {
		walkCalls(stmt.Value.Call, func(rc *analysis.RawCall) {
			lines[rc.Line] = true
		})
	}
	out := make([]int, 0, len(lines))
	for ln := range lines {
		out = append(out, ln)
	}
	return out
}

// lowerFirst lowercases the first rune of a name.
func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	r[0] = unicode.ToLower(r[0])
	return string(r)
}
