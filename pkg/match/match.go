// Package match finds every way a MATCH clause's patterns can bind
// graph nodes and edges to pattern variables (spec.md §4.4-§4.5).
//
// Fixed-length relationships ("-[:KNOWS]->") are matched by direct
// one-hop adjacency lookups. Variable-length relationships
// ("-[*2..5]->") are matched with pkg/graph's BFS primitive, bounded by
// config.Options.MaxPathDepth and MaxPathResults regardless of what
// the pattern itself requests, so a runaway "*" on a dense graph can't
// make one query unbounded.
package match

import (
	"fmt"
	"sort"
	"strings"

	"github.com/arborix/graphdb/pkg/binding"
	"github.com/arborix/graphdb/pkg/condition"
	"github.com/arborix/graphdb/pkg/config"
	"github.com/arborix/graphdb/pkg/graph"
	"github.com/arborix/graphdb/pkg/parser"
)

// Matcher evaluates patterns against one Graph under a fixed set of
// Options. A Matcher belongs to one statement (spec.md §5): it caches
// per-label node-id and per-type edge-id lists lazily as patterns ask
// for them, and that cache is shared mutable state scoped to the
// Matcher, not the Graph — a fresh Matcher starts with an empty cache.
type Matcher struct {
	Graph   *graph.Graph
	Options config.Options

	nodesByLabel map[string][]string  // cache key -> node ids, id-sorted for determinism
	edgesByType  map[string][]edgeKey // cache key -> edge identifiers, id-sorted for determinism
}

// edgeKey identifies one edge by its (source, target, label) triple,
// the same identity graph.Graph itself keys edges by.
type edgeKey struct {
	Source, Target, Label string
}

// New builds a Matcher.
func New(g *graph.Graph, opts config.Options) *Matcher {
	return &Matcher{Graph: g, Options: opts}
}

// ClearCache discards the matcher's per-label node-id and per-type
// edge-id caches, so the next lookup rebuilds them from the graph's
// current structure (spec.md §4.4 "clear_cache()"). Nodes and edges
// are always re-fetched from the graph by identifier on every lookup,
// so property mutations are observed even with a stale cache; only
// structural changes — a node/edge added or removed since the cache
// was built — require an explicit ClearCache to be observed. This is
// a documented tradeoff, not an oversight: a statement that mutates
// the graph and then matches against its own writes must clear the
// cache itself between the two.
func (m *Matcher) ClearCache() {
	m.nodesByLabel = nil
	m.edgesByType = nil
}

// labelCacheKey folds label into the cache's lookup key when labels
// compare case-insensitively, so "Person" and "person" share one
// bucket.
func (m *Matcher) labelCacheKey(label string) string {
	if m.Options.CaseInsensitiveLabels {
		return strings.ToLower(label)
	}
	return label
}

// nodeIDsByLabel returns every node id whose label equals label
// (honoring Options.CaseInsensitiveLabels), building and caching the
// bucket on first request. graph.Graph doesn't expose node insertion
// order, so the cached order is sorted by id instead — still
// deterministic across repeated calls against the same structural
// graph state, which is what spec.md §4.4's determinism requirement
// is for.
func (m *Matcher) nodeIDsByLabel(label string) []string {
	if m.nodesByLabel == nil {
		m.nodesByLabel = make(map[string][]string)
	}
	key := m.labelCacheKey(label)
	if ids, ok := m.nodesByLabel[key]; ok {
		return ids
	}
	var ids []string
	for _, n := range m.Graph.AllNodes() {
		if labelsEqual(n.Label, label, m.Options.CaseInsensitiveLabels) {
			ids = append(ids, n.ID)
		}
	}
	sort.Strings(ids)
	m.nodesByLabel[key] = ids
	return ids
}

// edgeKeysByType returns every edge identifier whose label equals
// relType (honoring Options.CaseInsensitiveLabels), building and
// caching the bucket on first request.
func (m *Matcher) edgeKeysByType(relType string) []edgeKey {
	if m.edgesByType == nil {
		m.edgesByType = make(map[string][]edgeKey)
	}
	key := m.labelCacheKey(relType)
	if keys, ok := m.edgesByType[key]; ok {
		return keys
	}
	var keys []edgeKey
	for _, e := range m.Graph.AllEdges() {
		if labelsEqual(e.Label, relType, m.Options.CaseInsensitiveLabels) {
			keys = append(keys, edgeKey{Source: e.Source, Target: e.Target, Label: e.Label})
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Source != keys[j].Source {
			return keys[i].Source < keys[j].Source
		}
		if keys[i].Target != keys[j].Target {
			return keys[i].Target < keys[j].Target
		}
		return keys[i].Label < keys[j].Label
	})
	m.edgesByType[key] = keys
	return keys
}

// MatchStatement evaluates every comma-separated MATCH pattern as an
// independent join over the running candidate rows (a cross product
// with each pattern's own label/property constraints pushed down into
// the node/edge lookup itself), then filters the joined rows by where.
// A nil where keeps every joined row.
func (m *Matcher) MatchStatement(patterns []parser.PathPattern, where parser.Expr, params map[string]any) ([]binding.Bindings, error) {
	rows := []binding.Bindings{binding.Empty}
	for _, p := range patterns {
		var next []binding.Bindings
		for _, row := range rows {
			extensions, err := m.matchPath(p, row)
			if err != nil {
				return nil, err
			}
			for _, ext := range extensions {
				next = append(next, row.Merge(ext))
			}
		}
		rows = next
		if len(rows) == 0 {
			return rows, nil
		}
	}

	if where == nil {
		return rows, nil
	}
	filtered := make([]binding.Bindings, 0, len(rows))
	for _, row := range rows {
		ctx := condition.Context{Graph: m.Graph, Bindings: row, Params: params, Options: m.Options, ExistsFn: m.exists}
		ok, err := condition.Bool(where, ctx)
		if err != nil {
			return nil, err
		}
		if ok != nil && *ok {
			filtered = append(filtered, row)
		}
	}
	return filtered, nil
}

// exists backs the condition package's EXISTS/NOT EXISTS evaluation —
// it is injected as condition.Context.ExistsFn so pkg/condition never
// imports pkg/match.
func (m *Matcher) exists(pattern parser.PathPattern, b binding.Bindings) (bool, error) {
	extensions, err := m.matchPath(pattern, b)
	if err != nil {
		return false, err
	}
	return len(extensions) > 0, nil
}

// matchPath enumerates every Bindings extension that satisfies one
// path pattern, given outer (already-established) bindings. Pattern
// variables already bound in outer constrain rather than rebind — a
// pattern that reuses an outer variable only matches nodes/edges equal
// to what it's already bound to (spec.md §4.5 "enrich pattern with
// bindings").
func (m *Matcher) matchPath(pattern parser.PathPattern, outer binding.Bindings) ([]binding.Bindings, error) {
	starts, err := m.candidateStarts(pattern, outer)
	if err != nil {
		return nil, err
	}
	var results []binding.Bindings
	for _, n := range starts {
		local := binding.Empty
		if pattern.Start.Variable != "" {
			local = local.Extend(pattern.Start.Variable, n)
		}
		if err := m.extendSegments(pattern.Segments, 0, n, local, outer, &results); err != nil {
			return nil, err
		}
	}
	return results, nil
}

func (m *Matcher) extendSegments(segments []parser.PathSegment, idx int, current graph.Node, local, outer binding.Bindings, results *[]binding.Bindings) error {
	if idx == len(segments) {
		*results = append(*results, local)
		return nil
	}
	seg := segments[idx]
	rel := seg.Relationship
	if !rel.Unbounded && rel.MinHops == 1 && rel.MaxHops == 1 {
		return m.extendFixedHop(seg, current, local, outer, segments, idx, results)
	}
	return m.extendVariableHop(seg, current, local, outer, segments, idx, results)
}

func (m *Matcher) extendFixedHop(seg parser.PathSegment, current graph.Node, local, outer binding.Bindings, segments []parser.PathSegment, idx int, results *[]binding.Bindings) error {
	rel := seg.Relationship
	for _, e := range m.Graph.EdgesFor(current.ID, graphDirection(rel.Direction)) {
		if !m.relationshipMatches(e, rel) {
			continue
		}
		neighborID := neighborOf(e, current.ID)
		neighbor, ok := m.Graph.GetNode(neighborID)
		if !ok {
			continue
		}
		if !m.nodeMatches(neighbor, seg.Node) {
			continue
		}
		if !consistentWithBound(seg.Node.Variable, neighbor, local, outer) {
			continue
		}
		if !consistentEdgeWithBound(rel.Variable, e, local, outer) {
			continue
		}

		next := local
		if seg.Node.Variable != "" {
			next = next.Extend(seg.Node.Variable, neighbor)
		}
		if rel.Variable != "" {
			next = next.Extend(rel.Variable, e)
		}
		if err := m.extendSegments(segments, idx+1, neighbor, next, outer, results); err != nil {
			return err
		}
	}
	return nil
}

func (m *Matcher) extendVariableHop(seg parser.PathSegment, current graph.Node, local, outer binding.Bindings, segments []parser.PathSegment, idx int, results *[]binding.Bindings) error {
	rel := seg.Relationship

	minHops := rel.MinHops
	if minHops < 1 {
		minHops = 1
	}
	maxHops := rel.MaxHops
	if rel.Unbounded || maxHops == 0 || maxHops > m.Options.MaxPathDepth {
		maxHops = m.Options.MaxPathDepth
	}

	v := &variableLengthVisitor{
		minHops: minHops,
		maxHops: maxHops,
		relType: rel.Type,
		caseInsensitive: m.Options.CaseInsensitiveLabels,
		maxResults: m.Options.MaxPathResults,
	}
	m.Graph.BFS(current.ID, v, graph.TraversalOptions{
		MaxDepth:   maxHops,
		Direction:  graphDirection(rel.Direction),
		TrackPaths: true,
		MaxResults: m.Options.MaxPathResults,
	})

	for _, p := range v.paths {
		endNode := p.Nodes[len(p.Nodes)-1]
		if !m.nodeMatches(endNode, seg.Node) {
			continue
		}
		if !consistentWithBound(seg.Node.Variable, endNode, local, outer) {
			continue
		}

		next := local
		if seg.Node.Variable != "" {
			next = next.Extend(seg.Node.Variable, endNode)
		}
		if rel.Variable != "" {
			next = next.Extend(rel.Variable, append([]graph.Edge{}, p.Edges...))
		}
		if err := m.extendSegments(segments, idx+1, endNode, next, outer, results); err != nil {
			return err
		}
	}
	return nil
}

// variableLengthVisitor records every BFS path whose depth falls in
// [minHops, maxHops], pruning edges that don't match relType.
type variableLengthVisitor struct {
	graph.NopVisitor
	minHops, maxHops int
	relType          string
	caseInsensitive  bool
	maxResults       int
	paths            []graph.Path
}

func (v *variableLengthVisitor) Examine(e graph.Edge, _, _ graph.Node, _ int) bool {
	if v.relType == "" {
		return true
	}
	return labelsEqual(e.Label, v.relType, v.caseInsensitive)
}

func (v *variableLengthVisitor) Discover(_ graph.Node, depth int, path *graph.Path) bool {
	if v.maxResults > 0 && len(v.paths) >= v.maxResults {
		return false
	}
	if path != nil && depth >= v.minHops && depth <= v.maxHops {
		v.paths = append(v.paths, *path)
	}
	return depth < v.maxHops
}

func graphDirection(d parser.Direction) graph.Direction {
	switch d {
	case parser.Outgoing:
		return graph.Outgoing
	case parser.Incoming:
		return graph.Incoming
	default:
		return graph.Both
	}
}

func neighborOf(e graph.Edge, from string) string {
	if e.Source == from {
		return e.Target
	}
	return e.Source
}

// candidateStarts resolves a path pattern's starting node candidates.
// When the start node carries no label of its own but the first
// segment's relationship names a fixed type, the candidates are drawn
// from the per-type edge-id cache (spec.md §4.4 "edges_by_type")
// instead of a full node scan, since every matching start node must
// be an endpoint of one of those cached edges anyway. Otherwise it
// falls back to the ordinary label-keyed candidateNodes lookup.
func (m *Matcher) candidateStarts(pattern parser.PathPattern, outer binding.Bindings) ([]graph.Node, error) {
	np := pattern.Start
	if np.Variable != "" {
		if _, ok := boundNode(np.Variable, binding.Empty, outer); ok {
			return m.candidateNodes(np, outer, binding.Empty)
		}
	}
	if len(np.Labels) > 0 || len(pattern.Segments) == 0 {
		return m.candidateNodes(np, outer, binding.Empty)
	}
	rel := pattern.Segments[0].Relationship
	if rel.Unbounded || rel.MinHops != 1 || rel.MaxHops != 1 || rel.Type == "" {
		return m.candidateNodes(np, outer, binding.Empty)
	}

	seen := make(map[string]bool)
	var out []graph.Node
	for _, ek := range m.edgeKeysByType(rel.Type) {
		var id string
		switch rel.Direction {
		case parser.Outgoing:
			id = ek.Source
		case parser.Incoming:
			id = ek.Target
		default:
			if !seen[ek.Source] {
				if n, ok := m.Graph.GetNode(ek.Source); ok && m.nodeMatches(n, np) {
					seen[ek.Source] = true
					out = append(out, n)
				}
			}
			id = ek.Target
		}
		if id == "" || seen[id] {
			continue
		}
		n, ok := m.Graph.GetNode(id)
		if !ok || !m.nodeMatches(n, np) {
			continue
		}
		seen[id] = true
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// candidateNodes resolves a NodePattern's starting candidate set: the
// single already-bound node if its variable is bound in outer or
// local, otherwise every node satisfying the pattern's label/property
// constraints. A labeled pattern is served from the per-label id
// cache (spec.md §4.4 "nodes_by_label") instead of a full graph scan;
// each cached id is re-fetched from the graph by GetNode so a
// property change since the cache was built is still observed, while
// a node added or removed since then is only picked up after
// ClearCache.
func (m *Matcher) candidateNodes(np parser.NodePattern, outer, local binding.Bindings) ([]graph.Node, error) {
	if np.Variable != "" {
		if n, ok := boundNode(np.Variable, local, outer); ok {
			if !m.nodeMatches(n, np) {
				return nil, nil
			}
			return []graph.Node{n}, nil
		}
	}
	if len(np.Labels) > 0 {
		var out []graph.Node
		for _, id := range m.nodeIDsByLabel(np.Labels[0]) {
			n, ok := m.Graph.GetNode(id)
			if !ok {
				continue
			}
			if m.nodeMatches(n, np) {
				out = append(out, n)
			}
		}
		return out, nil
	}
	var out []graph.Node
	for _, n := range m.Graph.FindNodes(func(n graph.Node) bool { return m.nodeMatches(n, np) }) {
		out = append(out, n)
	}
	return out, nil
}

func boundNode(name string, local, outer binding.Bindings) (graph.Node, bool) {
	if n, ok := local.Node(name); ok {
		return n, true
	}
	return outer.Node(name)
}

func consistentWithBound(name string, candidate graph.Node, local, outer binding.Bindings) bool {
	if name == "" {
		return true
	}
	if existing, ok := boundNode(name, local, outer); ok {
		return existing.ID == candidate.ID
	}
	return true
}

func consistentEdgeWithBound(name string, candidate graph.Edge, local, outer binding.Bindings) bool {
	if name == "" {
		return true
	}
	var existing graph.Edge
	var ok bool
	if existing, ok = local.Edge(name); !ok {
		existing, ok = outer.Edge(name)
	}
	if !ok {
		return true
	}
	return existing.Source == candidate.Source && existing.Target == candidate.Target && existing.Label == candidate.Label
}

func (m *Matcher) nodeMatches(n graph.Node, np parser.NodePattern) bool {
	for _, label := range np.Labels {
		if !labelsEqual(n.Label, label, m.Options.CaseInsensitiveLabels) {
			return false
		}
	}
	return propertiesMatch(n.Properties, np.Properties)
}

func (m *Matcher) relationshipMatches(e graph.Edge, rp parser.RelationshipPattern) bool {
	if rp.Type != "" && !labelsEqual(e.Label, rp.Type, m.Options.CaseInsensitiveLabels) {
		return false
	}
	return propertiesMatch(e.Properties, rp.Properties)
}

func labelsEqual(a, b string, caseInsensitive bool) bool {
	if !caseInsensitive {
		return a == b
	}
	return strings.EqualFold(a, b)
}

func propertiesMatch(actual, wanted map[string]any) bool {
	for k, want := range wanted {
		got, ok := actual[k]
		if !ok || !valuesEqual(got, want) {
			return false
		}
	}
	return true
}

func valuesEqual(a, b any) bool {
	af, aok := asFloat(a)
	bf, bok := asFloat(b)
	if aok && bok {
		return af == bf
	}
	return fmt.Sprint(a) == fmt.Sprint(b) && sameKind(a, b)
}

func sameKind(a, b any) bool {
	switch a.(type) {
	case string:
		_, ok := b.(string)
		return ok
	case bool:
		_, ok := b.(bool)
		return ok
	default:
		return a == b
	}
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
