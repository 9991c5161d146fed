// Package binding represents the variable bindings produced while a
// pattern is matched against a graph, and threaded through WHERE
// evaluation and action execution (spec.md §3 "Binding").
package binding

import "github.com/arborix/graphdb/pkg/graph"

// Value is what a pattern variable can be bound to: a graph.Node, a
// graph.Edge, or a scalar produced by SET/MERGE property assignment.
type Value = any

// Bindings maps pattern variable names to their bound Value for one
// candidate match. Bindings are extended, never mutated in place —
// Extend returns a new Bindings sharing the parent's entries, so one
// partial match can fan out into several candidate continuations
// without the branches interfering with each other.
type Bindings struct {
	parent *Bindings
	name   string
	value  Value
}

// Empty is the zero Bindings: no variables bound.
var Empty = Bindings{}

// Extend returns a new Bindings with name bound to value, layered on
// top of b. If name was already bound in b, the new binding shadows it
// for lookups but the original Bindings value is untouched.
func (b Bindings) Extend(name string, value Value) Bindings {
	return Bindings{parent: &b, name: name, value: value}
}

// Get returns the value bound to name and whether it was bound at all.
func (b Bindings) Get(name string) (Value, bool) {
	for cur := &b; cur != nil && cur.name != ""; cur = cur.parent {
		if cur.name == name {
			return cur.value, true
		}
	}
	return nil, false
}

// Node returns the value bound to name as a graph.Node, or false if
// it's unbound or bound to something else.
func (b Bindings) Node(name string) (graph.Node, bool) {
	v, ok := b.Get(name)
	if !ok {
		return graph.Node{}, false
	}
	n, ok := v.(graph.Node)
	return n, ok
}

// Edge returns the value bound to name as a graph.Edge, or false if
// it's unbound or bound to something else.
func (b Bindings) Edge(name string) (graph.Edge, bool) {
	v, ok := b.Get(name)
	if !ok {
		return graph.Edge{}, false
	}
	e, ok := v.(graph.Edge)
	return e, ok
}

// Names returns every variable name bound in b, in no particular
// order. Useful for diagnostics and for building RETURN projections.
func (b Bindings) Names() []string {
	seen := map[string]bool{}
	var out []string
	for cur := &b; cur != nil && cur.name != ""; cur = cur.parent {
		if !seen[cur.name] {
			seen[cur.name] = true
			out = append(out, cur.name)
		}
	}
	return out
}

// Merge layers every binding in other on top of b. Where both define
// the same name, other wins.
func (b Bindings) Merge(other Bindings) Bindings {
	names := other.Names()
	result := b
	// Names() walks newest-first; replay oldest-first so the final
	// shadowing order matches other's own shadowing order.
	for i := len(names) - 1; i >= 0; i-- {
		v, _ := other.Get(names[i])
		result = result.Extend(names[i], v)
	}
	return result
}
