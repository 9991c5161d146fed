package binding

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arborix/graphdb/pkg/graph"
)

func TestExtendAndGet(t *testing.T) {
	b := Empty.Extend("a", 1).Extend("b", 2)
	v, ok := b.Get("a")
	require.True(t, ok)
	assert.Equal(t, 1, v)
	v, ok = b.Get("b")
	require.True(t, ok)
	assert.Equal(t, 2, v)
	_, ok = b.Get("c")
	assert.False(t, ok)
}

func TestExtendShadowsWithoutMutatingParent(t *testing.T) {
	parent := Empty.Extend("a", 1)
	child := parent.Extend("a", 2)
	v, _ := parent.Get("a")
	assert.Equal(t, 1, v)
	v, _ = child.Get("a")
	assert.Equal(t, 2, v)
}

func TestNodeAndEdgeAccessors(t *testing.T) {
	n := graph.Node{ID: "1", Label: "Person"}
	e := graph.Edge{Source: "1", Target: "2", Label: "KNOWS"}
	b := Empty.Extend("p", n).Extend("r", e)

	gotN, ok := b.Node("p")
	require.True(t, ok)
	assert.Equal(t, n, gotN)

	gotE, ok := b.Edge("r")
	require.True(t, ok)
	assert.Equal(t, e, gotE)

	_, ok = b.Node("r")
	assert.False(t, ok)
}

func TestNamesDedupsShadowedVariables(t *testing.T) {
	b := Empty.Extend("a", 1).Extend("b", 2).Extend("a", 3)
	names := b.Names()
	assert.ElementsMatch(t, []string{"a", "b"}, names)
}

func TestMergePrefersOtherOnConflict(t *testing.T) {
	a := Empty.Extend("x", 1).Extend("y", 2)
	b := Empty.Extend("y", 20).Extend("z", 30)
	merged := a.Merge(b)

	v, _ := merged.Get("x")
	assert.Equal(t, 1, v)
	v, _ = merged.Get("y")
	assert.Equal(t, 20, v)
	v, _ = merged.Get("z")
	assert.Equal(t, 30, v)
}
