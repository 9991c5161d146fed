// Package condition evaluates WHERE expressions (pkg/parser's Expr
// AST) against one candidate set of variable bindings (spec.md §5).
//
// Comparisons follow three-valued logic when Options.NullAwareComparisons
// is set: a comparison touching a missing property or an explicit null
// evaluates to "unknown" rather than false, and unknown propagates
// through AND/OR/NOT the way SQL's NULL does. A WHERE clause keeps only
// rows whose result is true — both false and unknown are filtered out.
package condition

import (
	"fmt"
	"strings"

	"github.com/arborix/graphdb/pkg/binding"
	"github.com/arborix/graphdb/pkg/config"
	"github.com/arborix/graphdb/pkg/graph"
	"github.com/arborix/graphdb/pkg/parser"
)

// Context carries everything evaluation needs beyond the expression
// itself. ExistsFn is supplied by the match layer so this package never
// imports it back — pkg/match depends on pkg/condition, not the other
// way around.
type Context struct {
	Graph    *graph.Graph
	Bindings binding.Bindings
	Params   map[string]any
	Options  config.Options
	ExistsFn func(pattern parser.PathPattern, b binding.Bindings) (bool, error)
}

// ErrUnboundVariable is returned when an expression references a
// pattern variable that was never bound — spec.md §5 treats this as a
// query error rather than a null.
var ErrUnboundVariable = fmt.Errorf("condition: unbound variable")

// Value evaluates any expression to a scalar/Node/Edge Go value. A
// missing property or unset parameter yields (nil, nil) rather than an
// error — callers doing a boolean test should go through Bool instead,
// which applies null-aware comparison semantics.
func Value(expr parser.Expr, ctx Context) (any, error) {
	switch e := expr.(type) {
	case parser.Literal:
		return e.Value, nil
	case parser.Variable:
		v, ok := ctx.Bindings.Get(e.Name)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnboundVariable, e.Name)
		}
		return v, nil
	case parser.Parameter:
		v, ok := ctx.Params[e.Name]
		if !ok {
			return nil, nil
		}
		return v, nil
	case parser.Property:
		return propertyValue(e, ctx)
	case parser.Comparison, parser.Logical, parser.Exists:
		b, err := Bool(expr, ctx)
		if err != nil {
			return nil, err
		}
		if b == nil {
			return nil, nil
		}
		return *b, nil
	default:
		return nil, fmt.Errorf("condition: unsupported expression %T", expr)
	}
}

func propertyValue(e parser.Property, ctx Context) (any, error) {
	obj, ok := ctx.Bindings.Get(e.Object)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnboundVariable, e.Object)
	}
	switch o := obj.(type) {
	case graph.Node:
		v, ok := o.Properties[e.Property]
		if !ok {
			return nil, nil
		}
		return v, nil
	case graph.Edge:
		v, ok := o.Properties[e.Property]
		if !ok {
			return nil, nil
		}
		return v, nil
	default:
		return nil, fmt.Errorf("condition: %s.%s: %s is not a node or edge", e.Object, e.Property, e.Object)
	}
}

// Bool evaluates expr under three-valued logic. A nil result means
// "unknown" — the row should be excluded from a WHERE-filtered result
// exactly like false, but distinguishable for IS NULL handling and for
// callers (e.g. a top-level EXISTS) that care about the difference.
func Bool(expr parser.Expr, ctx Context) (*bool, error) {
	switch e := expr.(type) {
	case parser.Literal:
		if e.Kind != parser.LiteralBoolean {
			return nil, fmt.Errorf("condition: literal %v is not boolean", e.Value)
		}
		b, _ := e.Value.(bool)
		return &b, nil
	case parser.Comparison:
		return evalComparison(e, ctx)
	case parser.Logical:
		return evalLogical(e, ctx)
	case parser.Exists:
		return evalExists(e, ctx)
	case parser.Variable, parser.Property:
		v, err := Value(e, ctx)
		if err != nil {
			return nil, err
		}
		if v == nil {
			return nil, nil
		}
		b, ok := v.(bool)
		if !ok {
			return nil, fmt.Errorf("condition: %v is not boolean", v)
		}
		return &b, nil
	default:
		return nil, fmt.Errorf("condition: unsupported boolean expression %T", expr)
	}
}

func evalExists(e parser.Exists, ctx Context) (*bool, error) {
	if ctx.ExistsFn == nil {
		return nil, fmt.Errorf("condition: EXISTS evaluated without a match callback")
	}
	found, err := ctx.ExistsFn(e.Pattern, ctx.Bindings)
	if err != nil {
		return nil, err
	}
	result := found == e.Positive
	return &result, nil
}

func evalLogical(l parser.Logical, ctx Context) (*bool, error) {
	switch l.Op {
	case parser.OpNot:
		v, err := Bool(l.Operands[0], ctx)
		if err != nil {
			return nil, err
		}
		if v == nil {
			return nil, nil
		}
		r := !*v
		return &r, nil
	case parser.OpAnd:
		return kleeneAnd(l.Operands, ctx)
	case parser.OpOr:
		return kleeneOr(l.Operands, ctx)
	case parser.OpXor:
		left, err := Bool(l.Operands[0], ctx)
		if err != nil {
			return nil, err
		}
		right, err := Bool(l.Operands[1], ctx)
		if err != nil {
			return nil, err
		}
		if left == nil || right == nil {
			return nil, nil
		}
		r := *left != *right
		return &r, nil
	default:
		return nil, fmt.Errorf("condition: unsupported logical operator %v", l.Op)
	}
}

// kleeneAnd implements Kleene's strong three-valued AND: false
// short-circuits regardless of the other operand, unknown only wins
// over true.
func kleeneAnd(operands []parser.Expr, ctx Context) (*bool, error) {
	sawUnknown := false
	for _, op := range operands {
		v, err := Bool(op, ctx)
		if err != nil {
			return nil, err
		}
		if v == nil {
			sawUnknown = true
			continue
		}
		if !*v {
			f := false
			return &f, nil
		}
	}
	if sawUnknown {
		return nil, nil
	}
	t := true
	return &t, nil
}

func kleeneOr(operands []parser.Expr, ctx Context) (*bool, error) {
	sawUnknown := false
	for _, op := range operands {
		v, err := Bool(op, ctx)
		if err != nil {
			return nil, err
		}
		if v == nil {
			sawUnknown = true
			continue
		}
		if *v {
			t := true
			return &t, nil
		}
	}
	if sawUnknown {
		return nil, nil
	}
	f := false
	return &f, nil
}

func evalComparison(c parser.Comparison, ctx Context) (*bool, error) {
	left, err := Value(c.Left, ctx)
	if err != nil {
		return nil, err
	}

	if c.Op == parser.OpIsNull {
		r := left == nil
		return &r, nil
	}
	if c.Op == parser.OpIsNotNull {
		r := left != nil
		return &r, nil
	}

	right, err := Value(c.Right, ctx)
	if err != nil {
		return nil, err
	}

	if left == nil || right == nil {
		if ctx.Options.NullAwareComparisons {
			return nil, nil
		}
		f := false
		return &f, nil
	}

	switch c.Op {
	case parser.OpEq:
		r := compareEqual(left, right)
		return &r, nil
	case parser.OpNeq:
		r := !compareEqual(left, right)
		return &r, nil
	case parser.OpLt, parser.OpLte, parser.OpGt, parser.OpGte:
		return compareOrdered(c.Op, left, right)
	case parser.OpIn:
		return compareIn(left, right)
	case parser.OpContains:
		return compareStringOp(c.Op, left, right)
	case parser.OpStartsWith:
		return compareStringOp(c.Op, left, right)
	case parser.OpEndsWith:
		return compareStringOp(c.Op, left, right)
	default:
		return nil, fmt.Errorf("condition: unsupported comparison operator %v", c.Op)
	}
}

func compareEqual(left, right any) bool {
	lf, lok := asFloat(left)
	rf, rok := asFloat(right)
	if lok && rok {
		return lf == rf
	}
	return left == right
}

func compareOrdered(op parser.CompareOp, left, right any) (*bool, error) {
	lf, lok := asFloat(left)
	rf, rok := asFloat(right)
	if lok && rok {
		var r bool
		switch op {
		case parser.OpLt:
			r = lf < rf
		case parser.OpLte:
			r = lf <= rf
		case parser.OpGt:
			r = lf > rf
		case parser.OpGte:
			r = lf >= rf
		}
		return &r, nil
	}
	ls, lok := left.(string)
	rs, rok := right.(string)
	if lok && rok {
		var r bool
		switch op {
		case parser.OpLt:
			r = ls < rs
		case parser.OpLte:
			r = ls <= rs
		case parser.OpGt:
			r = ls > rs
		case parser.OpGte:
			r = ls >= rs
		}
		return &r, nil
	}
	return nil, fmt.Errorf("condition: cannot order-compare %T and %T", left, right)
}

// compareIn evaluates "left IN right". Right is usually a list, tested
// by membership; a string right side is kept as a substring test
// instead of a type error, matching Cypher dialects that overload IN
// for string containment (see DESIGN.md Open Question decisions).
func compareIn(left, right any) (*bool, error) {
	if rs, ok := right.(string); ok {
		ls, ok := left.(string)
		if !ok {
			return nil, fmt.Errorf("condition: IN against a string requires a string left operand, got %T", left)
		}
		r := strings.Contains(rs, ls)
		return &r, nil
	}
	list, ok := right.([]any)
	if !ok {
		return nil, fmt.Errorf("condition: right side of IN must be a list or string, got %T", right)
	}
	for _, item := range list {
		if compareEqual(left, item) {
			r := true
			return &r, nil
		}
	}
	r := false
	return &r, nil
}

// compareStringOp evaluates CONTAINS/STARTS_WITH/ENDS_WITH. Both
// operands must be strings; anything else is false rather than an
// error; spec.md §4.5 so one row with a mistyped operand doesn't fail
// the whole statement.
func compareStringOp(op parser.CompareOp, left, right any) (*bool, error) {
	ls, lok := left.(string)
	rs, rok := right.(string)
	if !lok || !rok {
		r := false
		return &r, nil
	}
	var r bool
	switch op {
	case parser.OpContains:
		r = strings.Contains(ls, rs)
	case parser.OpStartsWith:
		r = strings.HasPrefix(ls, rs)
	case parser.OpEndsWith:
		r = strings.HasSuffix(ls, rs)
	}
	return &r, nil
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}
