package graph

// Visitor receives callbacks during a BFS traversal (spec.md §4.1's
// "BFS traversal primitive"). A hook returning false prunes that
// branch: Discover returning false stops the traversal from expanding
// past that node; Examine returning false skips that edge entirely.
//
// Implementations that don't care about a hook can embed
// NopVisitor to only override the ones they need.
type Visitor interface {
	// Start is called once, before the first node is discovered.
	Start()
	// Discover is called when node is first reached at the given
	// depth, optionally with the path taken to reach it (present only
	// when TraversalOptions.TrackPaths is set). Returning false stops
	// expansion past this node.
	Discover(node Node, depth int, path *Path) bool
	// Examine is called for every outgoing/incoming edge considered
	// from src at depth. Returning false skips the edge.
	Examine(edge Edge, src, tgt Node, depth int) bool
	// PathComplete is called whenever TrackPaths is set and a
	// traversal step extends the current path.
	PathComplete(path Path, depth int)
	// Finish is called once a node's neighbors have all been
	// considered.
	Finish(node Node, depth int)
}

// NopVisitor is a Visitor whose hooks are all no-ops / permissive
// (Discover and Examine both return true). Embed it to implement only
// the hooks a particular traversal cares about.
type NopVisitor struct{}

func (NopVisitor) Start()                                      {}
func (NopVisitor) Discover(Node, int, *Path) bool               { return true }
func (NopVisitor) Examine(Edge, Node, Node, int) bool           { return true }
func (NopVisitor) PathComplete(Path, int)                       {}
func (NopVisitor) Finish(Node, int)                             {}

// Path is an alternating node/edge sequence as defined in spec.md §3:
// it starts and ends with a node, len(Edges) == len(Nodes)-1, and each
// edge connects the nodes on either side of it in the traversal
// direction.
type Path struct {
	Nodes []Node
	Edges []Edge
}

// frontierEntry is the explicit BFS queue record described in spec.md
// §9's design note (explicit frontier, not a pull iterator).
type frontierEntry struct {
	node  string
	depth int
	path  *Path // nil unless TrackPaths
}

// TraversalOptions bounds a BFS walk driven by a Visitor.
type TraversalOptions struct {
	MaxDepth    int       // 0 means unbounded except for MaxResults
	Direction   Direction
	TrackPaths  bool
	MaxResults  int // 0 means unbounded
}

// BFS walks the graph breadth-first from start, calling v's hooks in
// start -> (discover/examine/finish per level) order, and returns the
// number of nodes discovered. It is the primitive pkg/match builds
// variable-length pattern matching on top of; fixed-length segments
// use direct EdgesFor lookups instead.
func (g *Graph) BFS(start string, v Visitor, opts TraversalOptions) int {
	g.mu.RLock()
	defer g.mu.RUnlock()

	v.Start()

	startNode, ok := g.nodes[start]
	if !ok {
		return 0
	}

	visited := map[string]struct{}{start: {}}
	discovered := 0

	var startPath *Path
	if opts.TrackPaths {
		startPath = &Path{Nodes: []Node{startNode.clone()}}
	}

	queue := []frontierEntry{{node: start, depth: 0, path: startPath}}
	if !v.Discover(startNode.clone(), 0, startPath) {
		return 1
	}
	discovered++

	for len(queue) > 0 {
		if opts.MaxResults > 0 && discovered >= opts.MaxResults {
			break
		}
		cur := queue[0]
		queue = queue[1:]

		curNode := g.nodes[cur.node]

		if opts.MaxDepth > 0 && cur.depth >= opts.MaxDepth {
			v.Finish(curNode.clone(), cur.depth)
			continue
		}

		for _, e := range g.incidentEdgesLocked(cur.node, opts.Direction) {
			next := e.Target
			if next == cur.node {
				next = e.Source
			}
			srcNode := curNode
			tgtNode, ok := g.nodes[next]
			if !ok {
				continue
			}
			if !v.Examine(e, srcNode.clone(), tgtNode.clone(), cur.depth) {
				continue
			}
			if _, seen := visited[next]; seen {
				continue
			}
			visited[next] = struct{}{}

			var nextPath *Path
			if opts.TrackPaths && cur.path != nil {
				p := Path{
					Nodes: append(append([]Node{}, cur.path.Nodes...), tgtNode.clone()),
					Edges: append(append([]Edge{}, cur.path.Edges...), e.clone()),
				}
				nextPath = &p
				v.PathComplete(p, cur.depth+1)
			}

			if opts.MaxResults > 0 && discovered >= opts.MaxResults {
				break
			}
			if v.Discover(tgtNode.clone(), cur.depth+1, nextPath) {
				queue = append(queue, frontierEntry{node: next, depth: cur.depth + 1, path: nextPath})
			}
			discovered++
		}
		v.Finish(curNode.clone(), cur.depth)
	}

	return discovered
}

// PathOptions configures FindPaths.
type PathOptions struct {
	MaxDepth      int
	AllowedLabels []string // empty means any relationship label
	Direction     Direction
}

// collectingVisitor records the path to the first discovery of target
// and stops expanding once it is found; it backs FindPaths.
type collectingVisitor struct {
	NopVisitor
	opts    PathOptions
	allowed map[string]struct{}
	target  string
	found   *Path
}

func (c *collectingVisitor) Examine(e Edge, _, _ Node, _ int) bool {
	if len(c.allowed) == 0 {
		return true
	}
	_, ok := c.allowed[e.Label]
	return ok
}

func (c *collectingVisitor) Discover(n Node, depth int, path *Path) bool {
	if c.found != nil {
		return false
	}
	if n.ID == c.target && path != nil {
		cp := *path
		c.found = &cp
		return false
	}
	return true
}

// FindPaths returns the identifier sequence of a shortest (by hop
// count) path from src to dst via BFS, honoring optional label and
// direction filters, or nil if no such path exists (spec.md §4.1).
func (g *Graph) FindPaths(src, dst string, opts PathOptions) []string {
	allowed := make(map[string]struct{}, len(opts.AllowedLabels))
	for _, l := range opts.AllowedLabels {
		allowed[l] = struct{}{}
	}
	cv := &collectingVisitor{opts: opts, allowed: allowed, target: dst}
	g.BFS(src, cv, TraversalOptions{
		MaxDepth:   opts.MaxDepth,
		Direction:  opts.Direction,
		TrackPaths: true,
	})
	if cv.found == nil {
		return nil
	}
	ids := make([]string, len(cv.found.Nodes))
	for i, n := range cv.found.Nodes {
		ids[i] = n.ID
	}
	return ids
}
