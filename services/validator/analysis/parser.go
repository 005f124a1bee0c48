package analysis

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
)

const (
	// DefaultMaxScriptSize is the maximum script size the parser will
	// accept (2MB). Generated scripts run a few KB; anything near the
	// cap is garbage input.
	DefaultMaxScriptSize = 2 * 1024 * 1024

	// WarnScriptSize is the threshold at which a warning is logged (256KB).
	WarnScriptSize = 256 * 1024

	// maxSyntaxDiagnostics caps the number of syntax-error diagnostics
	// collected per script.
	maxSyntaxDiagnostics = 10
)

// ErrScriptTooLarge is returned when input exceeds the maximum script size.
var ErrScriptTooLarge = errors.New("script exceeds maximum size limit")

// ErrInvalidContent is returned when input is not valid UTF-8.
var ErrInvalidContent = errors.New("script content is not valid UTF-8")

// ParserOption configures a Parser instance.
type ParserOption func(*Parser)

// WithMaxScriptSize sets the maximum script size the parser will accept.
func WithMaxScriptSize(bytes int64) ParserOption {
	return func(p *Parser) {
		if bytes > 0 {
			p.maxScriptSize = bytes
		}
	}
}

// Parser turns generated Python scripts into the analysis IR.
//
// Description:
//
//	Parser uses tree-sitter to parse scripts and extract the statement
//	shapes the tracker understands: single-name assignments, method
//	call chains, plain imports, and literals. The parser is
//	error-tolerant: syntactically broken scripts yield partial results
//	plus diagnostics instead of a hard failure.
//
// Thread Safety:
//
//	Parser instances are safe for concurrent use. Each Parse call
//	creates its own tree-sitter parser internally.
type Parser struct {
	maxScriptSize int64
}

// NewParser creates a Parser with the given options.
func NewParser(opts ...ParserOption) *Parser {
	p := &Parser{maxScriptSize: DefaultMaxScriptSize}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse extracts the statement IR from Python source.
//
// Description:
//
//	Walks the parse tree in source order, collecting assignments to
//	plain names, expression-statement call chains (including chains
//	nested in argument positions), and plain import statements.
//	Compound statements (if/for/while/with/try, function and class
//	bodies) are descended into; their guard expressions are not.
//	from-imports are not modeled.
//
// Inputs:
//
//	ctx - Context for cancellation and tracing. Must not be nil.
//	content - Raw Python source bytes. Must be valid UTF-8.
//	name - Display name for the script (file name or request ID).
//
// Outputs:
//
//	*Script - Parsed IR. Never nil on success; may carry SyntaxErrors
//	          for broken input alongside whatever parsed cleanly.
//	error - ErrScriptTooLarge, ErrInvalidContent, context errors, or
//	        a tree-sitter failure.
//
// Thread Safety: Safe for concurrent use.
func (p *Parser) Parse(ctx context.Context, content []byte, name string) (*Script, error) {
	if ctx == nil {
		return nil, fmt.Errorf("analysis.Parse: ctx must not be nil")
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("parse canceled before start: %w", err)
	}

	startTime := time.Now()

	if int64(len(content)) > p.maxScriptSize {
		recordParseMetrics(ctx, time.Since(startTime), 0, false)
		return nil, fmt.Errorf("%w: size %d exceeds limit %d", ErrScriptTooLarge, len(content), p.maxScriptSize)
	}

	if len(content) > WarnScriptSize {
		slog.Warn("parsing large script",
			slog.String("script", name),
			slog.Int("size_bytes", len(content)))
	}

	if !utf8.Valid(content) {
		recordParseMetrics(ctx, time.Since(startTime), 0, false)
		return nil, ErrInvalidContent
	}

	ctx, span := startParseSpan(ctx, name, len(content))
	defer span.End()

	hash := sha256.Sum256(content)

	// New parser per call for thread safety.
	parser := sitter.NewParser()
	parser.SetLanguage(python.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil {
		recordParseMetrics(ctx, time.Since(startTime), 0, false)
		return nil, fmt.Errorf("tree-sitter parse failed: %w", err)
	}
	defer tree.Close()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("parse canceled after tree-sitter: %w", err)
	}

	script := &Script{
		Name:       name,
		Statements: make([]Statement, 0),
		Imports:    make([]ImportBinding, 0),
		LineCount:  strings.Count(string(content), "\n") + 1,
		Hash:       hex.EncodeToString(hash[:]),
	}

	root := tree.RootNode()
	if root == nil {
		script.SyntaxErrors = append(script.SyntaxErrors,
			SyntaxError{Message: "tree-sitter returned nil root node"})
		recordParseMetrics(ctx, time.Since(startTime), 0, true)
		return script, nil
	}

	if root.HasError() {
		collectSyntaxErrors(root, script)
	}

	p.walkStatements(root, content, script)

	setParseSpanResult(span, len(script.Statements), len(script.SyntaxErrors))
	recordParseMetrics(ctx, time.Since(startTime), len(script.Statements), true)

	return script, nil
}

// compoundTypes are the node types the statement walker descends into.
var compoundTypes = map[string]bool{
	"block":                true,
	"if_statement":         true,
	"elif_clause":          true,
	"else_clause":          true,
	"for_statement":        true,
	"while_statement":      true,
	"with_statement":       true,
	"try_statement":        true,
	"except_clause":        true,
	"finally_clause":       true,
	"function_definition":  true,
	"class_definition":     true,
	"decorated_definition": true,
}

// walkStatements visits statements in source order, descending into
// compound statement bodies.
func (p *Parser) walkStatements(node *sitter.Node, content []byte, script *Script) {
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case "expression_statement":
			p.processExpressionStatement(child, content, script)
		case "import_statement":
			p.processImport(child, content, script)
		default:
			if compoundTypes[child.Type()] {
				p.walkStatements(child, content, script)
			}
		}
	}
}

// processExpressionStatement handles one expression statement:
// an assignment, a bare call chain, or something we do not model.
func (p *Parser) processExpressionStatement(node *sitter.Node, content []byte, script *Script) {
	if node.NamedChildCount() == 0 {
		return
	}
	expr := node.NamedChild(0)
	line := int(node.StartPoint().Row + 1)

	switch expr.Type() {
	case "assignment":
		left := expr.ChildByFieldName("left")
		right := expr.ChildByFieldName("right")
		if right == nil {
			// Bare annotation (x: int) binds nothing.
			return
		}
		target := ""
		if left != nil && left.Type() == "identifier" {
			target = nodeText(left, content)
		}
		script.Statements = append(script.Statements, Statement{
			Line:         line,
			AssignTarget: target,
			Value:        p.buildExpr(right, content),
		})
	case "augmented_assignment":
		// x += expr keeps x's previous value shape; the result is not
		// trackable, and call validation inside it is not attempted.
		left := expr.ChildByFieldName("left")
		if left != nil && left.Type() == "identifier" {
			script.Statements = append(script.Statements, Statement{
				Line:         line,
				AssignTarget: nodeText(left, content),
				Value:        &Expr{Kind: ExprOpaque, Text: nodeText(expr, content)},
			})
		}
	case "call":
		script.Statements = append(script.Statements, Statement{
			Line:  line,
			Value: p.buildExpr(expr, content),
		})
	}
}

// processImport handles 'import foo' and 'import foo as bar'.
func (p *Parser) processImport(node *sitter.Node, content []byte, script *Script) {
	line := int(node.StartPoint().Row + 1)
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case "dotted_name":
			script.Imports = append(script.Imports, ImportBinding{
				Module: nodeText(child, content),
				Line:   line,
			})
		case "aliased_import":
			var path, alias string
			for j := 0; j < int(child.ChildCount()); j++ {
				grandchild := child.Child(j)
				switch grandchild.Type() {
				case "dotted_name":
					path = nodeText(grandchild, content)
				case "identifier":
					alias = nodeText(grandchild, content)
				}
			}
			if path != "" {
				script.Imports = append(script.Imports, ImportBinding{
					Module: path,
					Alias:  alias,
					Line:   line,
				})
			}
		}
	}
}

// buildExpr classifies a right-hand-side expression.
func (p *Parser) buildExpr(node *sitter.Node, content []byte) *Expr {
	switch node.Type() {
	case "call":
		if c := p.buildCall(node, content); c != nil {
			return &Expr{Kind: ExprCall, Call: c, Text: nodeText(node, content)}
		}
		return &Expr{Kind: ExprOpaque, Text: nodeText(node, content)}
	case "identifier":
		return &Expr{Kind: ExprName, Name: nodeText(node, content), Text: nodeText(node, content)}
	case "string", "integer", "float", "true", "false", "none":
		return &Expr{Kind: ExprLiteral, Text: nodeText(node, content)}
	case "parenthesized_expression", "await":
		if node.NamedChildCount() > 0 {
			return p.buildExpr(node.NamedChild(0), content)
		}
		return &Expr{Kind: ExprOpaque, Text: nodeText(node, content)}
	default:
		return &Expr{Kind: ExprOpaque, Text: nodeText(node, content)}
	}
}

// buildCall extracts one call, recursing through chained receivers
// and argument-nested calls.
func (p *Parser) buildCall(node *sitter.Node, content []byte) *RawCall {
	fn := node.ChildByFieldName("function")
	if fn == nil {
		return nil
	}

	rc := &RawCall{
		Line: int(node.StartPoint().Row + 1),
		Col:  int(node.StartPoint().Column),
		Text: nodeText(node, content),
	}

	switch fn.Type() {
	case "attribute":
		obj := fn.ChildByFieldName("object")
		attr := fn.ChildByFieldName("attribute")
		if attr == nil {
			return nil
		}
		rc.Method = nodeText(attr, content)
		obj = unwrapParens(obj)
		if obj == nil {
			rc.RecvOpaque = true
			break
		}
		rc.RecvText = nodeText(obj, content)
		switch obj.Type() {
		case "identifier":
			rc.RecvVar = rc.RecvText
		case "call":
			rc.RecvCall = p.buildCall(obj, content)
			if rc.RecvCall == nil {
				rc.RecvOpaque = true
			}
		default:
			// Attribute paths, subscripts, and anything else we
			// cannot resolve to a tracked variable.
			rc.RecvOpaque = true
		}
	case "identifier":
		rc.Func = nodeText(fn, content)
	default:
		rc.Func = nodeText(fn, content)
	}

	args := node.ChildByFieldName("arguments")
	if args != nil {
		for i := 0; i < int(args.NamedChildCount()); i++ {
			argNode := args.NamedChild(i)
			switch argNode.Type() {
			case "comment":
				continue
			case "string":
				rc.Args = append(rc.Args, Arg{
					Text:        nodeText(argNode, content),
					IsString:    !hasInterpolation(argNode),
					StringValue: unquoteString(nodeText(argNode, content)),
				})
			case "keyword_argument":
				rc.Args = append(rc.Args, Arg{
					Text:      nodeText(argNode, content),
					IsKeyword: true,
				})
				if value := argNode.ChildByFieldName("value"); value != nil && value.Type() == "call" {
					if nested := p.buildCall(value, content); nested != nil {
						rc.Nested = append(rc.Nested, nested)
					}
				}
			case "list_splat", "dictionary_splat":
				rc.Args = append(rc.Args, Arg{
					Text:      nodeText(argNode, content),
					IsStarred: true,
				})
			case "call":
				rc.Args = append(rc.Args, Arg{Text: nodeText(argNode, content)})
				if nested := p.buildCall(argNode, content); nested != nil {
					rc.Nested = append(rc.Nested, nested)
				}
			default:
				rc.Args = append(rc.Args, Arg{Text: nodeText(argNode, content)})
			}
		}
	}

	return rc
}

// collectSyntaxErrors records the lines of ERROR and missing nodes,
// capped at maxSyntaxDiagnostics.
func collectSyntaxErrors(node *sitter.Node, script *Script) {
	if len(script.SyntaxErrors) >= maxSyntaxDiagnostics {
		return
	}
	if node.IsError() || node.IsMissing() {
		script.SyntaxErrors = append(script.SyntaxErrors, SyntaxError{
			Line:    int(node.StartPoint().Row) + 1,
			Message: "syntax error",
		})
		return
	}
	if !node.HasError() {
		return
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		collectSyntaxErrors(node.Child(i), script)
	}
}

// nodeText returns the source text of a node.
func nodeText(node *sitter.Node, content []byte) string {
	return string(content[node.StartByte():node.EndByte()])
}

// unwrapParens strips parenthesized_expression wrappers.
func unwrapParens(node *sitter.Node) *sitter.Node {
	for node != nil && node.Type() == "parenthesized_expression" && node.NamedChildCount() > 0 {
		node = node.NamedChild(0)
	}
	return node
}

// hasInterpolation reports whether a string node is an f-string with
// interpolated parts. Those are not fixed literals.
func hasInterpolation(node *sitter.Node) bool {
	for i := 0; i < int(node.NamedChildCount()); i++ {
		if node.NamedChild(i).Type() == "interpolation" {
			return true
		}
	}
	return false
}

// unquoteString strips prefix letters and quotes from a Python string
// literal's source text.
func unquoteString(raw string) string {
	trimmed := strings.TrimLeft(raw, "rbufRBUF")
	return strings.Trim(trimmed, `"'`)
}
