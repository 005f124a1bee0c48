// Package analysis parses generated Python scripts into a small typed
// IR and tracks variable types through it.
//
// The IR deliberately models only what call validation needs:
// assignments to plain names, method-call chains, imports, and
// literals. Everything else degrades to an opaque expression, which
// downstream turns into Unknown types and unverifiable-call warnings
// rather than errors.
package analysis

import (
	"fmt"
	"sort"
	"strings"
)

// Reasons a variable's type could not be inferred. These strings
// appear verbatim in warning messages.
const (
	ReasonNotAssigned     = "not yet assigned"
	ReasonUnanalyzable    = "assigned from unanalyzable expression"
	ReasonNoReturnType    = "assigned from call whose return type is not specified"
	ReasonReceiverUnknown = "receiver type unknown"
	ReasonNoSuchFactory   = "no such factory"
)

// InferredType is the tracked type of a variable or expression:
// either Known with a class name, or Unknown with a reason.
type InferredType struct {
	// Class is the inferred class name. Empty when unknown.
	Class string

	// Reason explains why the type is unknown. Empty when known.
	Reason string
}

// Known constructs a resolved type.
func Known(class string) InferredType {
	return InferredType{Class: class}
}

// Unknown constructs an unresolved type carrying its reason.
func Unknown(reason string) InferredType {
	return InferredType{Reason: reason}
}

// IsKnown reports whether the type resolved to a class.
func (t InferredType) IsKnown() bool {
	return t.Class != ""
}

// String renders the type for logs and warnings.
func (t InferredType) String() string {
	if t.IsKnown() {
		return t.Class
	}
	if t.Reason == "" {
		return "unknown"
	}
	return "unknown (" + t.Reason + ")"
}

// CallCategory classifies a method name by its prefix. Validation is
// strict for factories and setters and lenient for everything else.
type CallCategory int

const (
	// CategoryFactory is a new_* call.
	CategoryFactory CallCategory = iota

	// CategorySetter is a set_* call.
	CategorySetter

	// CategoryGetter is a get_* call.
	CategoryGetter

	// CategoryOther is any other method call.
	CategoryOther
)

// String returns the category as a short label.
func (c CallCategory) String() string {
	switch c {
	case CategoryFactory:
		return "factory"
	case CategorySetter:
		return "setter"
	case CategoryGetter:
		return "getter"
	default:
		return "other"
	}
}

// Categorize classifies a method name by prefix.
func Categorize(method string) CallCategory {
	switch {
	case strings.HasPrefix(method, "new_"):
		return CategoryFactory
	case strings.HasPrefix(method, "set_"):
		return CategorySetter
	case strings.HasPrefix(method, "get_"):
		return CategoryGetter
	default:
		return CategoryOther
	}
}

// Arg is one argument at a call site.
type Arg struct {
	// Text is the argument's source text.
	Text string

	// IsString marks a string literal; StringValue holds its
	// unquoted contents.
	IsString    bool
	StringValue string

	// IsKeyword marks a name=value argument.
	IsKeyword bool

	// IsStarred marks *args / **kwargs splats. A starred argument
	// makes the positional count unverifiable.
	IsStarred bool
}

// CallSite is one method invocation observed in the script, with the
// receiver's type as inferred at that line. Later reassignments of
// the receiver variable do not alter earlier snapshots.
type CallSite struct {
	// Line is the 1-based source line of the call.
	Line int

	// Col is the 0-based source column of the call expression.
	Col int

	// Receiver is the source text of the receiver expression.
	Receiver string

	// ReceiverVar is the receiver identifier when the receiver is a
	// plain variable, "" otherwise (chained or opaque receivers).
	ReceiverVar string

	// ReceiverType is the inferred receiver type at this line.
	ReceiverType InferredType

	// Method is the invoked method name.
	Method string

	// Category is the prefix classification of Method.
	Category CallCategory

	// Args are the call's arguments in source order.
	Args []Arg

	// AssignTarget is the variable the call's value is assigned to,
	// "" when the value is discarded or consumed mid-chain.
	AssignTarget string

	// Chained marks a call whose receiver is itself a call result.
	Chained bool

	// Raw is the full source text of the call expression.
	Raw string
}

// PositionalArity returns the number of positional arguments.
func (c *CallSite) PositionalArity() int {
	n := 0
	for _, a := range c.Args {
		if !a.IsKeyword && !a.IsStarred {
			n++
		}
	}
	return n
}

// HasStarredArgs reports whether any argument is a splat.
func (c *CallSite) HasStarredArgs() bool {
	for _, a := range c.Args {
		if a.IsStarred {
			return true
		}
	}
	return false
}

// ReceiverDisplay returns the receiver text used in messages: the
// variable name when there is one, the expression text otherwise.
func (c *CallSite) ReceiverDisplay() string {
	if c.ReceiverVar != "" {
		return c.ReceiverVar
	}
	return c.Receiver
}

// ExprKind discriminates the right-hand sides the IR distinguishes.
type ExprKind int

const (
	// ExprCall is a method-call chain.
	ExprCall ExprKind = iota

	// ExprName is a bare identifier.
	ExprName

	// ExprLiteral is a string, number, bool, or None literal.
	ExprLiteral

	// ExprOpaque is any expression shape the IR does not model.
	ExprOpaque
)

// Expr is a right-hand-side expression in the IR.
type Expr struct {
	Kind ExprKind

	// Call is set for ExprCall: the outermost call of the chain.
	Call *RawCall

	// Name is set for ExprName.
	Name string

	// Text is the expression's source text.
	Text string
}

// RawCall is one syntactic call before type resolution. Chains link
// through RecvCall: a.b().c() parses to the c() call with its RecvCall
// set to the b() call.
type RawCall struct {
	// Line is the 1-based source line, Col the 0-based column.
	Line int
	Col  int

	// Method is the attribute name invoked, "" for bare function
	// calls (Func carries the name instead).
	Method string
	Func   string

	// RecvVar names the receiver when it is a plain identifier.
	RecvVar string

	// RecvCall is the receiver call when the receiver is a call.
	RecvCall *RawCall

	// RecvText is the receiver expression's source text.
	RecvText string

	// RecvOpaque marks receivers that are neither identifiers nor
	// calls (attribute paths, subscripts, ...).
	RecvOpaque bool

	// Args are the call's arguments.
	Args []Arg

	// Nested are method calls appearing inside argument expressions,
	// in source order. They are validated like any other call.
	Nested []*RawCall

	// Text is the full call expression's source text.
	Text string
}

// Statement is one tracked statement in source order.
type Statement struct {
	// Line is the statement's 1-based source line.
	Line int

	// AssignTarget is the bound variable for single-name assignments,
	// "" for bare expressions and unsupported target shapes.
	AssignTarget string

	// Value is the assignment RHS, or the statement expression.
	Value *Expr
}

// ImportBinding is one import observed in the script.
type ImportBinding struct {
	// Module is the imported module path.
	Module string

	// Alias is the as-name, "" when the module name itself is bound.
	Alias string

	// Line is the 1-based source line.
	Line int
}

// BoundName returns the local name the import binds: the alias when
// present, the module path for simple (undotted) imports, and the
// root package for dotted ones.
func (i ImportBinding) BoundName() string {
	if i.Alias != "" {
		return i.Alias
	}
	if idx := strings.IndexByte(i.Module, '.'); idx >= 0 {
		return i.Module[:idx]
	}
	return i.Module
}

// SyntaxError is one parse diagnostic with its source line.
type SyntaxError struct {
	// Line is 1-based. Zero means the position is unknown.
	Line int

	// Message describes the diagnostic.
	Message string
}

func (e SyntaxError) String() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s at line %d", e.Message, e.Line)
	}
	return e.Message
}

// Script is the parsed form of one generated script.
type Script struct {
	// Name is the script's display name (file name or request ID).
	Name string

	// Statements are the tracked statements in source order.
	Statements []Statement

	// Imports are the script's import bindings.
	Imports []ImportBinding

	// SyntaxErrors holds parse diagnostics. A script with syntax
	// errors still yields partial results.
	SyntaxErrors []SyntaxError

	// LineCount is the script's line count.
	LineCount int

	// Hash is the sha256 of the script source.
	Hash string
}

// SymbolTable maps variable names to inferred types. One table per
// pass, owned by a single goroutine; concurrent passes each build
// their own and never share.
type SymbolTable struct {
	types map[string]InferredType
}

// NewSymbolTable returns an empty table.
func NewSymbolTable() *SymbolTable {
	return &SymbolTable{types: make(map[string]InferredType)}
}

// Bind sets the type of a variable, overwriting any previous binding.
func (st *SymbolTable) Bind(name string, t InferredType) {
	st.types[name] = t
}

// Lookup returns the variable's current type. Unbound names report
// Unknown with ReasonNotAssigned and ok=false.
func (st *SymbolTable) Lookup(name string) (InferredType, bool) {
	t, ok := st.types[name]
	if !ok {
		return Unknown(ReasonNotAssigned), false
	}
	return t, true
}

// Names returns all bound names, sorted.
func (st *SymbolTable) Names() []string {
	out := make([]string, 0, len(st.types))
	for name := range st.types {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Snapshot returns a copy of the current bindings.
func (st *SymbolTable) Snapshot() map[string]InferredType {
	out := make(map[string]InferredType, len(st.types))
	for name, t := range st.types {
		out[name] = t
	}
	return out
}

// Len returns the number of bound names.
func (st *SymbolTable) Len() int {
	return len(st.types)
}
