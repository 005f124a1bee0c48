package analysis

import (
	"context"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/veloxar/arxval/services/validator/schema"
)

// DefaultModuleClass is the pseudo-class under which the knowledge
// base declares the module-level entry points (new_file, read, save).
// Importing the module binds the imported name to this class, so
// entry-point calls type-flow like any factory call.
const DefaultModuleClass = "autosarfactory"

// TrackerOption configures a Tracker instance.
type TrackerOption func(*Tracker)

// WithSeedBindings pre-binds variables to class names before the
// statement walk. Seeds naming undeclared classes are dropped with a
// warning. Seeds override import bindings of the same name.
func WithSeedBindings(seeds map[string]string) TrackerOption {
	return func(t *Tracker) {
		t.seeds = seeds
	}
}

// WithModuleClass overrides the pseudo-class used for module imports.
func WithModuleClass(name string) TrackerOption {
	return func(t *Tracker) {
		if name != "" {
			t.moduleClass = name
		}
	}
}

// Tracker performs the forward type-inference pass over a parsed
// script.
//
// Description:
//
//	One statement at a time, last write wins: assignments from factory
//	calls on resolved receivers propagate the factory's return class;
//	everything else degrades to Unknown with a reason. Every method
//	call is emitted as a CallSite carrying the receiver type as it was
//	at that line.
//
// Thread Safety:
//
//	Tracker is immutable after construction and safe for concurrent
//	use. Each Track call builds its own SymbolTable.
type Tracker struct {
	schema      *schema.Schema
	seeds       map[string]string
	moduleClass string
}

// NewTracker creates a Tracker bound to a loaded schema.
func NewTracker(s *schema.Schema, opts ...TrackerOption) *Tracker {
	t := &Tracker{
		schema:      s,
		moduleClass: DefaultModuleClass,
	}
	for _, opt := range opts {
		opt(t)
	}

	// Filter into a private copy; the caller keeps its map.
	if len(t.seeds) > 0 {
		kept := make(map[string]string, len(t.seeds))
		for name, class := range t.seeds {
			if !s.HasClass(class) {
				slog.Warn("dropping seed binding for undeclared class",
					slog.String("variable", name),
					slog.String("class", class))
				continue
			}
			kept[name] = class
		}
		t.seeds = kept
	}

	return t
}

// TrackResult is the outcome of one tracking pass.
type TrackResult struct {
	// Calls are all observed method call sites in evaluation order,
	// each with its receiver-type snapshot.
	Calls []CallSite

	// Final is the symbol table after the last statement. Useful for
	// feedback ("variables in scope") and debugging.
	Final *SymbolTable
}

// Track runs the inference pass over a parsed script.
//
// Inputs:
//
//	ctx - Context for tracing and metrics. Must not be nil.
//	script - Parsed script IR. Must not be nil.
//
// Outputs:
//
//	*TrackResult - Call sites plus the final symbol table. Never nil.
//
// Thread Safety: Safe for concurrent use.
func (t *Tracker) Track(ctx context.Context, script *Script) *TrackResult {
	if ctx == nil {
		ctx = context.Background()
	}

	ctx, span := tracer.Start(ctx, "analysis.Track",
		trace.WithAttributes(
			attribute.String("script.name", script.Name),
			attribute.Int("script.statement_count", len(script.Statements)),
		),
	)
	defer span.End()

	table := NewSymbolTable()
	t.bindImports(table, script)
	for name, class := range t.seeds {
		table.Bind(name, Known(class))
	}

	result := &TrackResult{
		Calls: make([]CallSite, 0, len(script.Statements)),
		Final: table,
	}

	for _, stmt := range script.Statements {
		if stmt.Value == nil {
			continue
		}
		switch stmt.Value.Kind {
		case ExprCall:
			sites, valueType := t.evalCall(table, stmt.Value.Call, stmt.AssignTarget)
			result.Calls = append(result.Calls, sites...)
			if stmt.AssignTarget != "" {
				table.Bind(stmt.AssignTarget, valueType)
			}
		case ExprName:
			if stmt.AssignTarget != "" {
				aliased, _ := table.Lookup(stmt.Value.Name)
				table.Bind(stmt.AssignTarget, aliased)
			}
		case ExprLiteral, ExprOpaque:
			if stmt.AssignTarget != "" {
				table.Bind(stmt.AssignTarget, Unknown(ReasonUnanalyzable))
			}
		}
	}

	span.SetAttributes(attribute.Int("script.call_count", len(result.Calls)))
	recordTrackMetrics(ctx, len(result.Calls))

	return result
}

// bindImports binds plain imports of the module (or aliases of it) to
// the module pseudo-class, when the KB declares one.
func (t *Tracker) bindImports(table *SymbolTable, script *Script) {
	if !t.schema.HasClass(t.moduleClass) {
		return
	}
	for _, imp := range script.Imports {
		if imp.Module == t.moduleClass || strings.HasSuffix(imp.Module, "."+t.moduleClass) {
			table.Bind(imp.BoundName(), Known(t.moduleClass))
		}
	}
}

// evalCall resolves one call (recursing through chained receivers and
// argument-nested calls), emits CallSites in evaluation order, and
// returns the call's value type.
func (t *Tracker) evalCall(table *SymbolTable, c *RawCall, assignTarget string) ([]CallSite, InferredType) {
	var sites []CallSite

	var recvType InferredType
	chained := false
	switch {
	case c.RecvCall != nil:
		innerSites, innerType := t.evalCall(table, c.RecvCall, "")
		sites = append(sites, innerSites...)
		recvType = innerType
		chained = true
	case c.RecvVar != "":
		recvType, _ = table.Lookup(c.RecvVar)
	case c.Method != "":
		recvType = Unknown(ReasonReceiverUnknown)
	}

	// Arguments evaluate after the receiver, before the call.
	for _, nested := range c.Nested {
		nestedSites, _ := t.evalCall(table, nested, "")
		sites = append(sites, nestedSites...)
	}

	if c.Method == "" {
		// Bare function call; there is no receiver to validate.
		return sites, Unknown(ReasonUnanalyzable)
	}

	sites = append(sites, CallSite{
		Line:         c.Line,
		Col:          c.Col,
		Receiver:     c.RecvText,
		ReceiverVar:  c.RecvVar,
		ReceiverType: recvType,
		Method:       c.Method,
		Category:     Categorize(c.Method),
		Args:         c.Args,
		AssignTarget: assignTarget,
		Chained:      chained,
		Raw:          c.Text,
	})

	return sites, t.callValueType(recvType, c.Method)
}

// callValueType computes the type an assignment from this call would
// propagate.
func (t *Tracker) callValueType(recv InferredType, method string) InferredType {
	if !recv.IsKnown() {
		return Unknown(ReasonReceiverUnknown)
	}

	class, ok := t.schema.Class(recv.Class)
	if !ok {
		// Known types always name declared classes (factory returns
		// are integrity-checked, seeds are filtered). Degrade rather
		// than panic if that ever breaks.
		return Unknown(ReasonReceiverUnknown)
	}

	if m, ok := class.Factory(method); ok {
		if m.ReturnsClass() {
			return Known(m.Returns)
		}
		return Unknown(ReasonNoReturnType)
	}

	if Categorize(method) == CategoryFactory {
		return Unknown(ReasonNoSuchFactory)
	}

	// Setters, getters, and helpers: the KB does not specify a
	// return type for these.
	return Unknown(ReasonNoReturnType)
}
