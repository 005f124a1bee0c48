package analysis

import (
	"context"
	"strings"
	"testing"
)

// parseSource parses src or fails the test.
func parseSource(t *testing.T, src string) *Script {
	t.Helper()
	script, err := NewParser().Parse(context.Background(), []byte(src), "test.py")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	return script
}

func TestParser_Parse_Assignment(t *testing.T) {
	script := parseSource(t, `pkg = root.new_ArPackage("Pkg")`)

	if len(script.Statements) != 1 {
		t.Fatalf("got %d statements, want 1", len(script.Statements))
	}
	stmt := script.Statements[0]
	if stmt.AssignTarget != "pkg" {
		t.Errorf("AssignTarget = %q, want %q", stmt.AssignTarget, "pkg")
	}
	if stmt.Line != 1 {
		t.Errorf("Line = %d, want 1", stmt.Line)
	}
	if stmt.Value.Kind != ExprCall {
		t.Fatalf("Value.Kind = %v, want ExprCall", stmt.Value.Kind)
	}

	call := stmt.Value.Call
	if call.Method != "new_ArPackage" {
		t.Errorf("Method = %q, want %q", call.Method, "new_ArPackage")
	}
	if call.RecvVar != "root" {
		t.Errorf("RecvVar = %q, want %q", call.RecvVar, "root")
	}
	if len(call.Args) != 1 {
		t.Fatalf("got %d args, want 1", len(call.Args))
	}
	if !call.Args[0].IsString || call.Args[0].StringValue != "Pkg" {
		t.Errorf("Args[0] = %+v, want string literal Pkg", call.Args[0])
	}
}

func TestParser_Parse_Chain(t *testing.T) {
	script := parseSource(t, `b = pkg.new_Component("C").new_Behavior("B")`)

	call := script.Statements[0].Value.Call
	if call.Method != "new_Behavior" {
		t.Errorf("outer Method = %q, want %q", call.Method, "new_Behavior")
	}
	if call.RecvCall == nil {
		t.Fatal("outer call should chain through RecvCall")
	}
	if call.RecvCall.Method != "new_Component" {
		t.Errorf("inner Method = %q, want %q", call.RecvCall.Method, "new_Component")
	}
	if call.RecvCall.RecvVar != "pkg" {
		t.Errorf("inner RecvVar = %q, want %q", call.RecvCall.RecvVar, "pkg")
	}
}

func TestParser_Parse_BareCallStatement(t *testing.T) {
	script := parseSource(t, `doc.save()`)

	stmt := script.Statements[0]
	if stmt.AssignTarget != "" {
		t.Errorf("AssignTarget = %q, want empty", stmt.AssignTarget)
	}
	call := stmt.Value.Call
	if call.Method != "save" {
		t.Errorf("Method = %q, want %q", call.Method, "save")
	}
	if len(call.Args) != 0 {
		t.Errorf("got %d args, want 0", len(call.Args))
	}
}

func TestParser_Parse_Imports(t *testing.T) {
	script := parseSource(t, strings.Join([]string{
		"import autosarfactory as af",
		"import os",
		"from pathlib import Path",
	}, "\n"))

	if len(script.Imports) != 2 {
		t.Fatalf("got %d imports, want 2 (from-imports are not modeled)", len(script.Imports))
	}
	if script.Imports[0].Module != "autosarfactory" || script.Imports[0].Alias != "af" {
		t.Errorf("Imports[0] = %+v", script.Imports[0])
	}
	if script.Imports[0].BoundName() != "af" {
		t.Errorf("BoundName() = %q, want %q", script.Imports[0].BoundName(), "af")
	}
	if script.Imports[1].Module != "os" || script.Imports[1].Alias != "" {
		t.Errorf("Imports[1] = %+v", script.Imports[1])
	}
}

func TestParser_Parse_RHSShapes(t *testing.T) {
	script := parseSource(t, strings.Join([]string{
		`count = 5`,
		`name = "hello"`,
		`alias = name`,
		`merged = a + b`,
	}, "\n"))

	if len(script.Statements) != 4 {
		t.Fatalf("got %d statements, want 4", len(script.Statements))
	}

	tests := []struct {
		idx    int
		target string
		kind   ExprKind
	}{
		{0, "count", ExprLiteral},
		{1, "name", ExprLiteral},
		{2, "alias", ExprName},
		{3, "merged", ExprOpaque},
	}
	for _, tt := range tests {
		stmt := script.Statements[tt.idx]
		if stmt.AssignTarget != tt.target {
			t.Errorf("Statements[%d].AssignTarget = %q, want %q", tt.idx, stmt.AssignTarget, tt.target)
		}
		if stmt.Value.Kind != tt.kind {
			t.Errorf("Statements[%d].Value.Kind = %v, want %v", tt.idx, stmt.Value.Kind, tt.kind)
		}
	}

	if script.Statements[2].Value.Name != "name" {
		t.Errorf("alias RHS Name = %q, want %q", script.Statements[2].Value.Name, "name")
	}
}

func TestParser_Parse_ArgShapes(t *testing.T) {
	script := parseSource(t, `m.new_Thing("a", 5, flag=True, *rest)`)

	call := script.Statements[0].Value.Call
	if len(call.Args) != 4 {
		t.Fatalf("got %d args, want 4", len(call.Args))
	}
	if !call.Args[0].IsString || call.Args[0].StringValue != "a" {
		t.Errorf("Args[0] = %+v, want string literal", call.Args[0])
	}
	if call.Args[1].IsString || call.Args[1].IsKeyword || call.Args[1].IsStarred {
		t.Errorf("Args[1] = %+v, want plain positional", call.Args[1])
	}
	if !call.Args[2].IsKeyword {
		t.Errorf("Args[2] = %+v, want keyword", call.Args[2])
	}
	if !call.Args[3].IsStarred {
		t.Errorf("Args[3] = %+v, want starred", call.Args[3])
	}
}

func TestParser_Parse_NestedArgCall(t *testing.T) {
	script := parseSource(t, `pkg.new_Mapping(helper.get_signal())`)

	call := script.Statements[0].Value.Call
	if len(call.Nested) != 1 {
		t.Fatalf("got %d nested calls, want 1", len(call.Nested))
	}
	if call.Nested[0].Method != "get_signal" {
		t.Errorf("Nested[0].Method = %q, want %q", call.Nested[0].Method, "get_signal")
	}
}

func TestParser_Parse_OpaqueReceiver(t *testing.T) {
	script := parseSource(t, `self.db.new_Entry("x")`)

	call := script.Statements[0].Value.Call
	if !call.RecvOpaque {
		t.Error("attribute-path receiver should be opaque")
	}
	if call.RecvVar != "" {
		t.Errorf("RecvVar = %q, want empty", call.RecvVar)
	}
	if call.RecvText != "self.db" {
		t.Errorf("RecvText = %q, want %q", call.RecvText, "self.db")
	}
	if call.Method != "new_Entry" {
		t.Errorf("Method = %q, want %q", call.Method, "new_Entry")
	}
}

func TestParser_Parse_CompoundBodies(t *testing.T) {
	script := parseSource(t, strings.Join([]string{
		"for name in names:",
		`    pkg.new_ApplicationSwComponentType(name)`,
		"if ready:",
		`    conditional.set_baudrate(500000)`,
		"def build(root):",
		`    p = root.new_ArPackage("P")`,
	}, "\n"))

	if len(script.Statements) != 3 {
		t.Fatalf("got %d statements, want 3 (bodies of for/if/def)", len(script.Statements))
	}
	if script.Statements[0].Value.Call.Method != "new_ApplicationSwComponentType" {
		t.Errorf("Statements[0] method = %q", script.Statements[0].Value.Call.Method)
	}
	if script.Statements[1].Value.Call.Method != "set_baudrate" {
		t.Errorf("Statements[1] method = %q", script.Statements[1].Value.Call.Method)
	}
	if script.Statements[2].AssignTarget != "p" {
		t.Errorf("Statements[2].AssignTarget = %q, want %q", script.Statements[2].AssignTarget, "p")
	}
}

func TestParser_Parse_SyntaxErrors(t *testing.T) {
	script := parseSource(t, strings.Join([]string{
		`pkg = root.new_ArPackage("P")`,
		`broken = root.new_(`,
	}, "\n"))

	if len(script.SyntaxErrors) == 0 {
		t.Fatal("broken input should produce syntax diagnostics")
	}
	if script.SyntaxErrors[0].Line != 2 {
		t.Errorf("SyntaxErrors[0].Line = %d, want 2", script.SyntaxErrors[0].Line)
	}
	// The clean statement still parses.
	found := false
	for _, stmt := range script.Statements {
		if stmt.AssignTarget == "pkg" {
			found = true
		}
	}
	if !found {
		t.Error("partial results should include the clean assignment")
	}
}

func TestParser_Parse_TooLarge(t *testing.T) {
	parser := NewParser(WithMaxScriptSize(16))
	_, err := parser.Parse(context.Background(), []byte(`x = root.new_ArPackage("P")`), "big.py")
	if err == nil {
		t.Fatal("Parse should fail above the size limit")
	}
	if !strings.Contains(err.Error(), "exceeds") {
		t.Errorf("err = %v, want size limit error", err)
	}
}

func TestParser_Parse_InvalidUTF8(t *testing.T) {
	_, err := NewParser().Parse(context.Background(), []byte{0xff, 0xfe, 0xfd}, "bad.py")
	if err != ErrInvalidContent {
		t.Errorf("err = %v, want ErrInvalidContent", err)
	}
}

func TestParser_Parse_NilContext(t *testing.T) {
	_, err := NewParser().Parse(nil, []byte("x = 1"), "test.py")
	if err == nil {
		t.Error("Parse(nil, ...) should return error")
	}
}

func TestParser_Parse_Metadata(t *testing.T) {
	script := parseSource(t, "x = 1\ny = 2\n")

	if script.Name != "test.py" {
		t.Errorf("Name = %q, want %q", script.Name, "test.py")
	}
	if script.Hash == "" {
		t.Error("Hash should be set")
	}
	if script.LineCount != 3 {
		t.Errorf("LineCount = %d, want 3", script.LineCount)
	}
}

func TestUnquoteString(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{`"hello"`, "hello"},
		{`'hello'`, "hello"},
		{`"""doc"""`, "doc"},
		{`r"raw\path"`, `raw\path`},
		{`f"shaped"`, "shaped"},
	}
	for _, tt := range tests {
		if got := unquoteString(tt.raw); got != tt.want {
			t.Errorf("unquoteString(%q) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}
