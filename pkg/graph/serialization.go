package graph

// Serializable is the round-trippable JSON shape described in
// spec.md §6: { "nodes": [...], "edges": [...] }.
type Serializable struct {
	Nodes []SerializableNode `json:"nodes"`
	Edges []SerializableEdge `json:"edges"`
}

// SerializableNode mirrors one Node for JSON export/import.
type SerializableNode struct {
	ID    string         `json:"id"`
	Label string         `json:"label"`
	Data  map[string]any `json:"data"`
}

// SerializableEdge mirrors one Edge for JSON export/import.
type SerializableEdge struct {
	Source string         `json:"source"`
	Target string         `json:"target"`
	Label  string         `json:"label"`
	Data   map[string]any `json:"data"`
}

// ToSerializable snapshots the graph into the exchange format.
func (g *Graph) ToSerializable() Serializable {
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := Serializable{
		Nodes: make([]SerializableNode, 0, len(g.nodes)),
		Edges: make([]SerializableEdge, 0, len(g.edges)),
	}
	for _, n := range g.nodes {
		out.Nodes = append(out.Nodes, SerializableNode{ID: n.ID, Label: n.Label, Data: cloneProps(n.Properties)})
	}
	for _, e := range g.edges {
		out.Edges = append(out.Edges, SerializableEdge{Source: e.Source, Target: e.Target, Label: e.Label, Data: cloneProps(e.Properties)})
	}
	return out
}

// FromSerializable clears the graph and repopulates it from s. Loading
// into a non-empty graph clears it first, per spec.md §6.
func (g *Graph) FromSerializable(s Serializable) error {
	g.Clear()
	for _, n := range s.Nodes {
		if err := g.AddNode(n.ID, n.Label, n.Data); err != nil {
			return err
		}
	}
	for _, e := range s.Edges {
		if err := g.AddEdge(e.Source, e.Target, e.Label, e.Data); err != nil {
			return err
		}
	}
	return nil
}

// Snapshot returns a deep, independent copy of the graph. pkg/action's
// own rollback log undoes actions individually rather than restoring a
// whole-graph snapshot; Snapshot is exposed instead for embedders who
// want to clone a graph before trying a batch of statements — an
// in-memory alternative to the disk persistence this module
// deliberately omits (spec.md §1 Non-goals).
func (g *Graph) Snapshot() *Graph {
	return Restore(g.ToSerializable())
}

// Restore builds a fresh Graph from a previously captured
// Serializable snapshot.
func Restore(s Serializable) *Graph {
	g := New()
	_ = g.FromSerializable(s)
	return g
}
