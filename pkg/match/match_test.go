package match

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arborix/graphdb/pkg/config"
	"github.com/arborix/graphdb/pkg/graph"
	"github.com/arborix/graphdb/pkg/parser"
)

func buildSocialGraph(t *testing.T) *graph.Graph {
	t.Helper()
	g := graph.New()
	require.NoError(t, g.AddNode("alice", "Person", map[string]any{"name": "Alice", "age": 30.0}))
	require.NoError(t, g.AddNode("bob", "Person", map[string]any{"name": "Bob", "age": 25.0}))
	require.NoError(t, g.AddNode("carol", "Person", map[string]any{"name": "Carol", "age": 40.0}))
	require.NoError(t, g.AddNode("acme", "Company", map[string]any{"name": "Acme"}))
	require.NoError(t, g.AddEdge("alice", "bob", "KNOWS", nil))
	require.NoError(t, g.AddEdge("bob", "carol", "KNOWS", nil))
	require.NoError(t, g.AddEdge("alice", "acme", "WORKS_AT", nil))
	return g
}

func TestMatchNodeByLabelAndProperty(t *testing.T) {
	g := buildSocialGraph(t)
	m := New(g, config.Defaults())
	stmt, diags := parser.Parse(`MATCH (p:Person {name: "Alice"}) RETURN p`)
	require.Empty(t, diags)
	rows, err := m.MatchStatement(stmt.Matches, stmt.Where, nil)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	n, ok := rows[0].Node("p")
	require.True(t, ok)
	assert.Equal(t, "alice", n.ID)
}

func TestMatchOneHopRelationship(t *testing.T) {
	g := buildSocialGraph(t)
	m := New(g, config.Defaults())
	stmt, diags := parser.Parse(`MATCH (a:Person)-[:KNOWS]->(b:Person) RETURN a, b`)
	require.Empty(t, diags)
	rows, err := m.MatchStatement(stmt.Matches, stmt.Where, nil)
	require.NoError(t, err)
	require.Len(t, rows, 2)
}

func TestMatchWhereFiltersRows(t *testing.T) {
	g := buildSocialGraph(t)
	m := New(g, config.Defaults())
	stmt, diags := parser.Parse(`MATCH (p:Person) WHERE p.age > 28 RETURN p`)
	require.Empty(t, diags)
	rows, err := m.MatchStatement(stmt.Matches, stmt.Where, nil)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	for _, row := range rows {
		n, _ := row.Node("p")
		assert.Contains(t, []string{"alice", "carol"}, n.ID)
	}
}

func TestMatchVariableLengthPath(t *testing.T) {
	g := buildSocialGraph(t)
	m := New(g, config.Defaults())
	stmt, diags := parser.Parse(`MATCH (a:Person {name:"Alice"})-[:KNOWS*1..2]->(x:Person) RETURN x`)
	require.Empty(t, diags)
	rows, err := m.MatchStatement(stmt.Matches, stmt.Where, nil)
	require.NoError(t, err)
	ids := map[string]bool{}
	for _, row := range rows {
		n, _ := row.Node("x")
		ids[n.ID] = true
	}
	assert.True(t, ids["bob"])
	assert.True(t, ids["carol"])
}

func TestMatchVariableLengthRespectsMaxDepthOption(t *testing.T) {
	g := buildSocialGraph(t)
	opts := config.Defaults()
	opts.MaxPathDepth = 1
	m := New(g, opts)
	stmt, diags := parser.Parse(`MATCH (a:Person {name:"Alice"})-[:KNOWS*]->(x:Person) RETURN x`)
	require.Empty(t, diags)
	rows, err := m.MatchStatement(stmt.Matches, stmt.Where, nil)
	require.NoError(t, err)
	ids := map[string]bool{}
	for _, row := range rows {
		n, _ := row.Node("x")
		ids[n.ID] = true
	}
	assert.True(t, ids["bob"])
	assert.False(t, ids["carol"])
}

func TestMatchCommaSeparatedPatternsCrossProduct(t *testing.T) {
	g := buildSocialGraph(t)
	m := New(g, config.Defaults())
	stmt, diags := parser.Parse(`MATCH (a:Person), (c:Company) RETURN a, c`)
	require.Empty(t, diags)
	rows, err := m.MatchStatement(stmt.Matches, stmt.Where, nil)
	require.NoError(t, err)
	assert.Len(t, rows, 3) // 3 people x 1 company
}

func TestMatchAlreadyBoundVariableConstrainsCandidates(t *testing.T) {
	g := buildSocialGraph(t)
	m := New(g, config.Defaults())
	stmt, diags := parser.Parse(`MATCH (a:Person {name:"Alice"}), (a)-[:KNOWS]->(b) RETURN b`)
	require.Empty(t, diags)
	rows, err := m.MatchStatement(stmt.Matches, stmt.Where, nil)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	n, _ := rows[0].Node("b")
	assert.Equal(t, "bob", n.ID)
}

func TestMatchCaseInsensitiveLabel(t *testing.T) {
	g := buildSocialGraph(t)
	m := New(g, config.Defaults())
	stmt, diags := parser.Parse(`MATCH (p:person) RETURN p`)
	require.Empty(t, diags)
	rows, err := m.MatchStatement(stmt.Matches, stmt.Where, nil)
	require.NoError(t, err)
	assert.Len(t, rows, 3)
}

func TestExistsSubqueryFiltersRows(t *testing.T) {
	g := buildSocialGraph(t)
	m := New(g, config.Defaults())
	stmt, diags := parser.Parse(`MATCH (p:Person) WHERE EXISTS((p)-[:WORKS_AT]->(c:Company)) RETURN p`)
	require.Empty(t, diags)
	rows, err := m.MatchStatement(stmt.Matches, stmt.Where, nil)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	n, _ := rows[0].Node("p")
	assert.Equal(t, "alice", n.ID)
}

func TestNotExistsSubqueryFiltersRows(t *testing.T) {
	g := buildSocialGraph(t)
	m := New(g, config.Defaults())
	stmt, diags := parser.Parse(`MATCH (p:Person) WHERE NOT EXISTS((p)-[:WORKS_AT]->(c:Company)) RETURN p`)
	require.Empty(t, diags)
	rows, err := m.MatchStatement(stmt.Matches, stmt.Where, nil)
	require.NoError(t, err)
	require.Len(t, rows, 2)
}

func TestLabelCacheServesRepeatedQueriesAndObservesPropertyChanges(t *testing.T) {
	g := buildSocialGraph(t)
	m := New(g, config.Defaults())
	stmt, diags := parser.Parse(`MATCH (p:Person {name: "Bob"}) RETURN p`)
	require.Empty(t, diags)

	rows, err := m.MatchStatement(stmt.Matches, stmt.Where, nil)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	require.NoError(t, g.UpdateNodeData("bob", map[string]any{"name": "Bob", "age": 26.0}))
	rows, err = m.MatchStatement(stmt.Matches, stmt.Where, nil)
	require.NoError(t, err)
	require.Len(t, rows, 1, "property updates must be visible through a cached label bucket")

	require.NoError(t, g.AddNode("dave", "Person", map[string]any{"name": "Dave"}))
	stmt2, diags := parser.Parse(`MATCH (p:Person) RETURN p`)
	require.Empty(t, diags)
	rows, err = m.MatchStatement(stmt2.Matches, stmt2.Where, nil)
	require.NoError(t, err)
	assert.Len(t, rows, 3, "a node added after the cache was built is structurally stale until ClearCache")

	m.ClearCache()
	rows, err = m.MatchStatement(stmt2.Matches, stmt2.Where, nil)
	require.NoError(t, err)
	assert.Len(t, rows, 4, "ClearCache must rebuild the label bucket from current graph structure")
}

func TestCandidateStartsSeedsFromEdgeTypeCacheForUnlabeledStart(t *testing.T) {
	g := buildSocialGraph(t)
	m := New(g, config.Defaults())
	stmt, diags := parser.Parse(`MATCH (a)-[:KNOWS]->(b) RETURN a, b`)
	require.Empty(t, diags)
	rows, err := m.MatchStatement(stmt.Matches, stmt.Where, nil)
	require.NoError(t, err)
	require.Len(t, rows, 2)
}
