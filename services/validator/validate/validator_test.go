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
	"context"
	"strings"
	"testing"

	"github.com/veloxar/arxval/services/validator/analysis"
	"github.com/veloxar/arxval/services/validator/schema"
)

const validateKB = `
version: "1.0.0"
classes:
  autosarfactory:
    factories:
      new_file:
        params: [str]
        returns: AUTOSAR
      read:
        params: [str]
        returns: AUTOSAR
      save:
        params: []
  AUTOSAR:
    factories:
      new_ArPackage:
        params: [str]
        returns: ArPackage
      save:
        params: []
  ArPackage:
    factories:
      new_ApplicationSwComponentType:
        params: [str]
        returns: ApplicationSwComponentType
      new_CanCluster:
        params: [str]
        returns: CanCluster
      new_CanFrame:
        params: [str]
        returns: CanFrame
  ApplicationSwComponentType:
    factories:
      new_InternalBehavior:
        params: [str]
        returns: SwcInternalBehavior
    setters:
      set_category: str
  SwcInternalBehavior:
    factories:
      new_Runnable:
        params: [str]
        returns: Runnable
      new_Event:
        params: [str]
        returns: RteEvent
  Runnable:
    setters:
      set_symbol: str
  RteEvent: {}
  CanCluster:
    factories:
      new_CanClusterVariant:
        params: []
        returns: CanClusterConditional
  CanClusterConditional:
    setters:
      set_baudrate: int
      set_protocolName: str
  CanFrame:
    setters:
      set_frameLength: int
  PduToFrameMapping:
    setters:
      set_packingByteOrder: enum:ByteOrderEnum
`

func validateSchema(t *testing.T) *schema.Schema {
	t.Helper()
	s, err := schema.LoadBytes(context.Background(), []byte(validateKB), "test")
	if err != nil {
		t.Fatalf("LoadBytes failed: %v", err)
	}
	return s
}

// runPass parses, tracks, and validates src in one go.
func runPass(t *testing.T, s *schema.Schema, seeds map[string]string, src string) *Result {
	t.Helper()

	parser := analysis.NewParser()
	script, err := parser.Parse(context.Background(), []byte(src), "test.py")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	var opts []analysis.TrackerOption
	if seeds != nil {
		opts = append(opts, analysis.WithSeedBindings(seeds))
	}
	tracked := analysis.NewTracker(s, opts...).Track(context.Background(), script)

	return NewValidator(s).Validate(context.Background(), script, tracked)
}

// =============================================================================
// VALID SCRIPTS
// =============================================================================

func TestValidate_CleanScript(t *testing.T) {
	s := validateSchema(t)
	result := runPass(t, s, nil, strings.Join([]string{
		"import autosarfactory",
		`root = autosarfactory.new_file("model.arxml")`,
		`pkg = root.new_ArPackage("Pkg")`,
		`swc = pkg.new_ApplicationSwComponentType("Swc")`,
		`swc.set_category("APPLICATION")`,
		"autosarfactory.save()",
	}, "\n"))

	if !result.Valid {
		t.Fatalf("clean script flagged invalid: %+v", result.Findings)
	}
	if len(result.Findings) != 0 {
		t.Errorf("got %d findings, want 0: %+v", len(result.Findings), result.Findings)
	}
}

func TestValidate_IntSetterArgument(t *testing.T) {
	s := validateSchema(t)
	result := runPass(t, s, map[string]string{"conditional": "CanClusterConditional"},
		"conditional.set_baudrate(500000)")

	if !result.Valid || len(result.Findings) != 0 {
		t.Errorf("set_baudrate(500000) should be clean, got %+v", result.Findings)
	}
}

func TestValidate_GetterCallsAreLenient(t *testing.T) {
	s := validateSchema(t)
	result := runPass(t, s, map[string]string{"pkg": "ArPackage"}, strings.Join([]string{
		"name = pkg.get_shortName()",
		"pkg.add_to_collection(name)",
	}, "\n"))

	if len(result.Findings) != 0 {
		t.Errorf("getter and helper calls should produce no findings, got %+v", result.Findings)
	}
}

// =============================================================================
// INVALID CALLS
// =============================================================================

func TestValidate_UndeclaredFactory(t *testing.T) {
	s := validateSchema(t)
	result := runPass(t, s, map[string]string{"cluster": "ApplicationSwComponentType"},
		`behavior = cluster.new_SwcInternalBehavior("B")`)

	if result.Valid {
		t.Fatal("undeclared factory should invalidate the script")
	}
	errs := result.Errors()
	if len(errs) != 1 {
		t.Fatalf("got %d errors, want 1: %+v", len(errs), result.Findings)
	}

	f := errs[0]
	want := "ApplicationSwComponentType has no factory method 'new_SwcInternalBehavior'"
	if f.Message != want {
		t.Errorf("Message = %q, want %q", f.Message, want)
	}
	if f.Category != CategoryInvalidCall {
		t.Errorf("Category = %q, want %q", f.Category, CategoryInvalidCall)
	}
	if f.Line != 1 {
		t.Errorf("Line = %d, want 1", f.Line)
	}
	if !strings.Contains(f.Suggestion, "new_InternalBehavior") {
		t.Errorf("Suggestion = %q, want it to name new_InternalBehavior", f.Suggestion)
	}
	if f.Span != "new_SwcInternalBehavior" {
		t.Errorf("Span = %q, want the method name", f.Span)
	}
}

func TestValidate_TypoRanksDeclaredNameFirst(t *testing.T) {
	s := validateSchema(t)
	result := runPass(t, s, map[string]string{"behavior": "SwcInternalBehavior"},
		`r = behavior.new_Runable("Step")`)

	errs := result.Errors()
	if len(errs) != 1 {
		t.Fatalf("got %d errors, want 1", len(errs))
	}
	if !strings.Contains(errs[0].Suggestion, "'new_Runnable'") {
		t.Errorf("Suggestion = %q, want new_Runnable first", errs[0].Suggestion)
	}
}

func TestValidate_UndeclaredSetter(t *testing.T) {
	s := validateSchema(t)
	result := runPass(t, s, map[string]string{"swc": "ApplicationSwComponentType"},
		`swc.set_categorie("APPLICATION")`)

	errs := result.Errors()
	if len(errs) != 1 {
		t.Fatalf("got %d errors, want 1: %+v", len(errs), result.Findings)
	}
	want := "ApplicationSwComponentType has no setter method 'set_categorie'"
	if errs[0].Message != want {
		t.Errorf("Message = %q, want %q", errs[0].Message, want)
	}
}

// =============================================================================
// UNVERIFIABLE CALLS
// =============================================================================

func TestValidate_UnknownReceiverWarns(t *testing.T) {
	s := validateSchema(t)
	result := runPass(t, s, nil, strings.Join([]string{
		"thing = build_somehow()",
		`thing.new_TotallyMadeUp("x")`,
	}, "\n"))

	// A warning, and only a warning: unknown receivers never escalate.
	if !result.Valid {
		t.Errorf("unverifiable calls must not invalidate the script: %+v", result.Findings)
	}
	warns := result.Warnings()
	if len(warns) != 1 {
		t.Fatalf("got %d warnings, want 1: %+v", len(warns), result.Findings)
	}

	f := warns[0]
	want := "cannot infer type of 'thing' to validate 'new_TotallyMadeUp': assigned from unanalyzable expression"
	if f.Message != want {
		t.Errorf("Message = %q, want %q", f.Message, want)
	}
	if f.Category != CategoryUnverifiable {
		t.Errorf("Category = %q, want %q", f.Category, CategoryUnverifiable)
	}
}

func TestValidate_UnassignedReceiverReason(t *testing.T) {
	s := validateSchema(t)
	result := runPass(t, s, nil, `ghost.set_category("X")`)

	warns := result.Warnings()
	if len(warns) != 1 {
		t.Fatalf("got %d warnings, want 1", len(warns))
	}
	if !strings.HasSuffix(warns[0].Message, ": not yet assigned") {
		t.Errorf("Message = %q, want the not-yet-assigned reason", warns[0].Message)
	}
}

// =============================================================================
// ARITY
// =============================================================================

func TestValidate_ArityMismatchWarns(t *testing.T) {
	s := validateSchema(t)
	result := runPass(t, s, map[string]string{"root": "AUTOSAR"},
		`pkg = root.new_ArPackage("Pkg", "extra")`)

	if !result.Valid {
		t.Error("arity mismatch is a warning, not an error")
	}
	warns := result.Warnings()
	if len(warns) != 1 {
		t.Fatalf("got %d warnings, want 1: %+v", len(warns), result.Findings)
	}

	f := warns[0]
	if f.Category != CategoryArity {
		t.Errorf("Category = %q, want %q", f.Category, CategoryArity)
	}
	want := "AUTOSAR.new_ArPackage expects 1 argument(s), got 2"
	if f.Message != want {
		t.Errorf("Message = %q, want %q", f.Message, want)
	}
}

func TestValidate_StarredArgsSkipArityCheck(t *testing.T) {
	s := validateSchema(t)
	result := runPass(t, s, map[string]string{"root": "AUTOSAR"},
		"pkg = root.new_ArPackage(*names)")

	if len(result.Findings) != 0 {
		t.Errorf("splat arguments make arity unverifiable, got %+v", result.Findings)
	}
}

// =============================================================================
// ANTI-PATTERNS
// =============================================================================

func TestValidate_ReferenceMisuseChain(t *testing.T) {
	s := validateSchema(t)
	result := runPass(t, s, map[string]string{"frame": "CanFrame"},
		"triggering.new_FrameRef().set_value(frame)")

	if len(result.Findings) != 1 {
		t.Fatalf("one misuse must yield one finding, got %+v", result.Findings)
	}

	f := result.Findings[0]
	if f.Severity != SeverityError || f.Category != CategoryAntiPattern {
		t.Errorf("finding = %+v, want anti-pattern error", f)
	}
	if f.Message != "Invalid reference pattern: new_FrameRef().set_value()" {
		t.Errorf("Message = %q", f.Message)
	}
	if f.Replacement != "triggering.set_frame(frame)" {
		t.Errorf("Replacement = %q, want %q", f.Replacement, "triggering.set_frame(frame)")
	}
	if !strings.Contains(f.Suggestion, "triggering.set_frame(frame)") {
		t.Errorf("Suggestion = %q", f.Suggestion)
	}
}

func TestValidate_ReferenceMisuseRegardlessOfReceiver(t *testing.T) {
	s := validateSchema(t)

	// Known receiver class, same shape: still exactly one Error, no
	// extra unverifiable or invalid-call findings from the chain.
	result := runPass(t, s, map[string]string{"frame": "CanFrame"},
		"frame.new_FrameRef().set_value(sig)")

	if len(result.Findings) != 1 {
		t.Fatalf("got %+v, want exactly one finding", result.Findings)
	}
	if result.Findings[0].Replacement != "frame.set_frame(sig)" {
		t.Errorf("Replacement = %q", result.Findings[0].Replacement)
	}
}

func TestValidate_ReferenceMisusePlainForm(t *testing.T) {
	s := validateSchema(t)
	result := runPass(t, s, nil, "triggering.new_PduRef(pdu)")

	if len(result.Findings) != 1 {
		t.Fatalf("got %+v, want one finding", result.Findings)
	}
	f := result.Findings[0]
	if f.Message != "Invalid reference pattern: new_PduRef()" {
		t.Errorf("Message = %q", f.Message)
	}
	if f.Replacement != "triggering.set_pdu(pdu)" {
		t.Errorf("Replacement = %q, want %q", f.Replacement, "triggering.set_pdu(pdu)")
	}
}

func TestValidate_EnumStringLiteral(t *testing.T) {
	s := validateSchema(t)
	result := runPass(t, s, map[string]string{"mapping": "PduToFrameMapping"},
		`mapping.set_packingByteOrder("MOST-SIGNIFICANT-BYTE-LAST")`)

	if len(result.Findings) != 1 {
		t.Fatalf("got %+v, want one finding", result.Findings)
	}

	f := result.Findings[0]
	if f.Severity != SeverityError || f.Category != CategoryAntiPattern {
		t.Errorf("finding = %+v", f)
	}
	wantRepl := "autosarfactory.ByteOrderEnum.VALUE_MOST_SIGNIFICANT_BYTE_LAST"
	if f.Replacement != wantRepl {
		t.Errorf("Replacement = %q, want %q", f.Replacement, wantRepl)
	}
	if f.Span != `"MOST-SIGNIFICANT-BYTE-LAST"` {
		t.Errorf("Span = %q, want the quoted literal", f.Span)
	}
}

func TestValidate_EnumStringUnknownReceiver(t *testing.T) {
	s := validateSchema(t)

	// The method name is declared as an enum setter somewhere, so the
	// shape is wrong even without the receiver type.
	result := runPass(t, s, nil,
		`m.set_packingByteOrder("most-significant-byte-first")`)

	if len(result.Findings) != 1 {
		t.Fatalf("got %+v, want one finding", result.Findings)
	}
	wantRepl := "autosarfactory.ByteOrderEnum.VALUE_MOST_SIGNIFICANT_BYTE_FIRST"
	if result.Findings[0].Replacement != wantRepl {
		t.Errorf("Replacement = %q, want %q", result.Findings[0].Replacement, wantRepl)
	}
}

func TestValidate_StringSetterIsNotEnumPattern(t *testing.T) {
	s := validateSchema(t)
	result := runPass(t, s, map[string]string{"conditional": "CanClusterConditional"},
		`conditional.set_protocolName("CAN FD")`)

	if len(result.Findings) != 0 {
		t.Errorf("string setters legitimately take strings, got %+v", result.Findings)
	}
}

func TestValidate_SaveWithArguments(t *testing.T) {
	s := validateSchema(t)
	result := runPass(t, s, nil, strings.Join([]string{
		"import autosarfactory",
		"autosarfactory.save(root)",
	}, "\n"))

	errs := result.Errors()
	if len(errs) != 1 {
		t.Fatalf("got %+v, want one error", result.Findings)
	}
	f := errs[0]
	if f.Message != "save() should not have arguments" {
		t.Errorf("Message = %q", f.Message)
	}
	if f.Replacement != "autosarfactory.save()" {
		t.Errorf("Replacement = %q", f.Replacement)
	}
}

func TestValidate_ReadWithoutList(t *testing.T) {
	s := validateSchema(t)
	result := runPass(t, s, nil, strings.Join([]string{
		"import autosarfactory as af",
		`root = af.read("model.arxml")`,
	}, "\n"))

	errs := result.Errors()
	if len(errs) != 1 {
		t.Fatalf("got %+v, want one error", result.Findings)
	}
	if errs[0].Message != "read() requires a list argument" {
		t.Errorf("Message = %q", errs[0].Message)
	}
	if errs[0].Replacement != `af.read(["model.arxml"])` {
		t.Errorf("Replacement = %q", errs[0].Replacement)
	}
}

func TestValidate_ReadWithListIsClean(t *testing.T) {
	s := validateSchema(t)
	result := runPass(t, s, nil, strings.Join([]string{
		"import autosarfactory as af",
		`root = af.read(["model.arxml"])`,
	}, "\n"))

	if len(result.Findings) != 0 {
		t.Errorf("read with a list is the documented form, got %+v", result.Findings)
	}
}

// =============================================================================
// SYNTAX AND ORDERING
// =============================================================================

func TestValidate_SyntaxErrorFinding(t *testing.T) {
	s := validateSchema(t)
	result := runPass(t, s, nil, strings.Join([]string{
		`pkg = root.new_ArPackage("P")`,
		"broken = root.new_(",
	}, "\n"))

	if result.Valid {
		t.Error("syntax errors invalidate the script")
	}
	found := false
	for _, f := range result.Findings {
		if f.Category == CategorySyntax && f.Severity == SeverityError {
			found = true
		}
	}
	if !found {
		t.Errorf("no syntax finding in %+v", result.Findings)
	}
}

func TestValidate_FindingsOrderedByLine(t *testing.T) {
	s := validateSchema(t)
	result := runPass(t, s, map[string]string{
		"swc":      "ApplicationSwComponentType",
		"behavior": "SwcInternalBehavior",
	}, strings.Join([]string{
		`behavior.new_Runable("R")`,
		`ghost.set_category("X")`,
		`swc.new_Bogus("B")`,
	}, "\n"))

	if len(result.Findings) != 3 {
		t.Fatalf("got %d findings, want 3: %+v", len(result.Findings), result.Findings)
	}
	for i, wantLine := range []int{1, 2, 3} {
		if result.Findings[i].Line != wantLine {
			t.Errorf("Findings[%d].Line = %d, want %d", i, result.Findings[i].Line, wantLine)
		}
	}
}

func TestValidate_NilInputs(t *testing.T) {
	v := NewValidator(validateSchema(t))

	result := v.Validate(context.Background(), nil, nil)
	if result == nil {
		t.Fatal("Validate must always return a result")
	}
	if !result.Valid {
		t.Error("empty pass should be valid")
	}

	// nil context falls back internally.
	if r := v.Validate(nil, nil, nil); r == nil {
		t.Fatal("nil ctx should not panic")
	}
}

// =============================================================================
// RESULT HELPERS
// =============================================================================

func TestResult_Counts(t *testing.T) {
	r := &Result{Findings: []Finding{
		{Severity: SeverityError},
		{Severity: SeverityWarning},
		{Severity: SeverityWarning},
		{Severity: SeverityFixed},
	}}

	if r.ErrorCount() != 1 || r.WarningCount() != 2 || r.FixedCount() != 1 {
		t.Errorf("counts = %d/%d/%d", r.ErrorCount(), r.WarningCount(), r.FixedCount())
	}
	if !r.HasErrors() {
		t.Error("HasErrors() = false")
	}
	if len(r.Errors()) != 1 || len(r.Warnings()) != 2 || len(r.Fixed()) != 1 {
		t.Error("severity filters returned wrong slices")
	}
}

func TestSeverity_Strings(t *testing.T) {
	tests := []struct {
		sev  Severity
		want string
	}{
		{SeverityError, "error"},
		{SeverityWarning, "warning"},
		{SeverityFixed, "fixed"},
		{Severity(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.sev.String(); got != tt.want {
			t.Errorf("%d.String() = %q, want %q", tt.sev, got, tt.want)
		}
	}

	if SeverityFromString("error") != SeverityError {
		t.Error("SeverityFromString(error)")
	}
	if SeverityFromString("whatever") != SeverityWarning {
		t.Error("unknown strings default to warning")
	}
}
