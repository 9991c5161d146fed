package condition

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arborix/graphdb/pkg/binding"
	"github.com/arborix/graphdb/pkg/config"
	"github.com/arborix/graphdb/pkg/graph"
	"github.com/arborix/graphdb/pkg/parser"
)

func newCtx(b binding.Bindings) Context {
	return Context{Bindings: b, Params: map[string]any{}, Options: config.Defaults()}
}

func TestValuePropertyAccess(t *testing.T) {
	n := graph.Node{ID: "1", Label: "Person", Properties: map[string]any{"age": 30.0}}
	b := binding.Empty.Extend("p", n)
	v, err := Value(parser.Property{Object: "p", Property: "age"}, newCtx(b))
	require.NoError(t, err)
	assert.Equal(t, 30.0, v)
}

func TestValueMissingPropertyIsNilNotError(t *testing.T) {
	n := graph.Node{ID: "1", Label: "Person", Properties: map[string]any{}}
	b := binding.Empty.Extend("p", n)
	v, err := Value(parser.Property{Object: "p", Property: "nickname"}, newCtx(b))
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestValueUnboundVariableErrors(t *testing.T) {
	_, err := Value(parser.Variable{Name: "missing"}, newCtx(binding.Empty))
	assert.ErrorIs(t, err, ErrUnboundVariable)
}

func TestComparisonEquality(t *testing.T) {
	cmp := parser.Comparison{Op: parser.OpEq, Left: parser.Literal{Value: "Ada", Kind: parser.LiteralString}, Right: parser.Literal{Value: "Ada", Kind: parser.LiteralString}}
	r, err := Bool(cmp, newCtx(binding.Empty))
	require.NoError(t, err)
	require.NotNil(t, r)
	assert.True(t, *r)
}

func TestComparisonNumericCoercion(t *testing.T) {
	cmp := parser.Comparison{Op: parser.OpGt, Left: parser.Literal{Value: 5.0, Kind: parser.LiteralNumber}, Right: parser.Literal{Value: 3.0, Kind: parser.LiteralNumber}}
	r, err := Bool(cmp, newCtx(binding.Empty))
	require.NoError(t, err)
	assert.True(t, *r)
}

func TestNullAwareComparisonYieldsUnknown(t *testing.T) {
	n := graph.Node{ID: "1", Properties: map[string]any{}}
	b := binding.Empty.Extend("p", n)
	cmp := parser.Comparison{Op: parser.OpEq, Left: parser.Property{Object: "p", Property: "missing"}, Right: parser.Literal{Value: 1.0, Kind: parser.LiteralNumber}}
	ctx := newCtx(b)
	ctx.Options.NullAwareComparisons = true
	r, err := Bool(cmp, ctx)
	require.NoError(t, err)
	assert.Nil(t, r)
}

func TestStrictComparisonTreatsNullAsFalse(t *testing.T) {
	ctx := newCtx(binding.Empty)
	ctx.Options.NullAwareComparisons = false
	n := graph.Node{Properties: map[string]any{}}
	b := binding.Empty.Extend("p", n)
	ctx.Bindings = b
	cmp := parser.Comparison{Op: parser.OpEq, Left: parser.Property{Object: "p", Property: "missing"}, Right: parser.Literal{Value: 1.0, Kind: parser.LiteralNumber}}
	r, err := Bool(cmp, ctx)
	require.NoError(t, err)
	require.NotNil(t, r)
	assert.False(t, *r)
}

func TestIsNullAndIsNotNull(t *testing.T) {
	n := graph.Node{Properties: map[string]any{"name": "Ada"}}
	b := binding.Empty.Extend("p", n)
	ctx := newCtx(b)

	r, err := Bool(parser.Comparison{Op: parser.OpIsNull, Left: parser.Property{Object: "p", Property: "nickname"}}, ctx)
	require.NoError(t, err)
	assert.True(t, *r)

	r, err = Bool(parser.Comparison{Op: parser.OpIsNotNull, Left: parser.Property{Object: "p", Property: "name"}}, ctx)
	require.NoError(t, err)
	assert.True(t, *r)
}

func TestKleeneAndShortCircuitsOnFalseRegardlessOfUnknown(t *testing.T) {
	falseLit := parser.Literal{Value: false, Kind: parser.LiteralBoolean}
	n := graph.Node{Properties: map[string]any{}}
	b := binding.Empty.Extend("p", n)
	ctx := newCtx(b)
	ctx.Options.NullAwareComparisons = true
	unknownCmp := parser.Comparison{Op: parser.OpEq, Left: parser.Property{Object: "p", Property: "missing"}, Right: parser.Literal{Value: 1.0, Kind: parser.LiteralNumber}}

	r, err := Bool(parser.Logical{Op: parser.OpAnd, Operands: []parser.Expr{falseLit, unknownCmp}}, ctx)
	require.NoError(t, err)
	require.NotNil(t, r)
	assert.False(t, *r)
}

func TestKleeneOrShortCircuitsOnTrueRegardlessOfUnknown(t *testing.T) {
	trueLit := parser.Literal{Value: true, Kind: parser.LiteralBoolean}
	n := graph.Node{Properties: map[string]any{}}
	b := binding.Empty.Extend("p", n)
	ctx := newCtx(b)
	ctx.Options.NullAwareComparisons = true
	unknownCmp := parser.Comparison{Op: parser.OpEq, Left: parser.Property{Object: "p", Property: "missing"}, Right: parser.Literal{Value: 1.0, Kind: parser.LiteralNumber}}

	r, err := Bool(parser.Logical{Op: parser.OpOr, Operands: []parser.Expr{trueLit, unknownCmp}}, ctx)
	require.NoError(t, err)
	require.NotNil(t, r)
	assert.True(t, *r)
}

func TestInOperator(t *testing.T) {
	cmp := parser.Comparison{
		Op:    parser.OpIn,
		Left:  parser.Literal{Value: "admin", Kind: parser.LiteralString},
		Right: parser.Literal{Value: []any{"admin", "owner"}, Kind: parser.LiteralList},
	}
	r, err := Bool(cmp, newCtx(binding.Empty))
	require.NoError(t, err)
	assert.True(t, *r)
}

func TestStartsWithAndContains(t *testing.T) {
	ctx := newCtx(binding.Empty)
	r, err := Bool(parser.Comparison{Op: parser.OpStartsWith, Left: parser.Literal{Value: "Alice", Kind: parser.LiteralString}, Right: parser.Literal{Value: "Al", Kind: parser.LiteralString}}, ctx)
	require.NoError(t, err)
	assert.True(t, *r)

	r, err = Bool(parser.Comparison{Op: parser.OpContains, Left: parser.Literal{Value: "Alice", Kind: parser.LiteralString}, Right: parser.Literal{Value: "lic", Kind: parser.LiteralString}}, ctx)
	require.NoError(t, err)
	assert.True(t, *r)
}

func TestStringOpsFalseOnNonStringOperands(t *testing.T) {
	ctx := newCtx(binding.Empty)
	r, err := Bool(parser.Comparison{Op: parser.OpStartsWith, Left: parser.Literal{Value: 5.0, Kind: parser.LiteralNumber}, Right: parser.Literal{Value: "Al", Kind: parser.LiteralString}}, ctx)
	require.NoError(t, err)
	require.NotNil(t, r)
	assert.False(t, *r)

	r, err = Bool(parser.Comparison{Op: parser.OpEndsWith, Left: parser.Literal{Value: "Alice", Kind: parser.LiteralString}, Right: parser.Literal{Value: nil, Kind: parser.LiteralNull}}, ctx)
	require.NoError(t, err)
	require.NotNil(t, r)
	assert.False(t, *r)
}

func TestExistsDelegatesToCallback(t *testing.T) {
	ctx := newCtx(binding.Empty)
	ctx.ExistsFn = func(pattern parser.PathPattern, b binding.Bindings) (bool, error) {
		return true, nil
	}
	r, err := Bool(parser.Exists{Positive: true, Pattern: parser.PathPattern{}}, ctx)
	require.NoError(t, err)
	assert.True(t, *r)

	r, err = Bool(parser.Exists{Positive: false, Pattern: parser.PathPattern{}}, ctx)
	require.NoError(t, err)
	assert.False(t, *r)
}
