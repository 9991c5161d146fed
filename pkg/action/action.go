// Package action executes the CREATE/MERGE/SET/DELETE actions produced
// by pkg/parser against a pkg/graph.Graph (spec.md §4.6).
//
// Actions run in source order, each one applied directly to the graph.
// Every applied action records one undoEntry describing how to reverse
// it. If a later action fails and config.Options.RollbackOnFailure is
// set, the recorded entries are replayed in the fixed phase order
// spec.md §4.6 mandates — restore modified edges, restore modified
// nodes, re-add deleted edges, re-add deleted nodes, remove created
// edges, remove created nodes — rather than simple reverse-chronological
// order, so a rollback always undoes creation dependencies before the
// things that depended on them. This generalizes the teacher's
// Transaction op-log (pkg/storage/transaction.go) from buffer-then-commit
// to apply-then-undo-on-failure, since the engine here never defers a
// batch of actions behind an explicit BEGIN/COMMIT boundary (spec.md §1
// excludes multi-statement transactional isolation).
package action

import (
	"fmt"
	"log"

	"github.com/arborix/graphdb/pkg/binding"
	"github.com/arborix/graphdb/pkg/condition"
	"github.com/arborix/graphdb/pkg/config"
	"github.com/arborix/graphdb/pkg/graph"
	"github.com/arborix/graphdb/pkg/parser"
)

// Result reports what one Action did, for the statement engine's
// result record.
type Result struct {
	Action  parser.Action
	Created []string // node/edge identifiers created
	Deleted []string // node/edge identifiers deleted
	Updated []string // node/edge identifiers whose properties changed
}

// Executor applies a sequence of Actions to one Graph under a fixed
// Bindings row (the variables MATCH already resolved) and Options.
type Executor struct {
	Graph   *graph.Graph
	Options config.Options
}

// New builds an Executor.
func New(g *graph.Graph, opts config.Options) *Executor {
	return &Executor{Graph: g, Options: opts}
}

type undoKind int

const (
	undoCreatedNode undoKind = iota
	undoCreatedEdge
	undoDeletedNode
	undoDeletedEdge
	undoUpdatedNode
	undoUpdatedEdge
)

// undoEntry carries enough of the prior graph state to reverse one
// already-applied node/edge mutation.
type undoEntry struct {
	kind  undoKind
	id    string
	label string
	props map[string]any
	src   string
	tgt   string
}

func (e undoEntry) apply(g *graph.Graph) error {
	switch e.kind {
	case undoCreatedNode:
		return g.RemoveNode(e.id)
	case undoCreatedEdge:
		return g.RemoveEdge(e.src, e.tgt, e.label)
	case undoDeletedNode:
		return g.AddNode(e.id, e.label, e.props)
	case undoDeletedEdge:
		return g.AddEdge(e.src, e.tgt, e.label, e.props)
	case undoUpdatedNode:
		return g.UpdateNodeData(e.id, e.props)
	case undoUpdatedEdge:
		return g.UpdateEdge(e.src, e.tgt, e.label, e.props)
	default:
		return fmt.Errorf("action: unknown undo kind %d", e.kind)
	}
}

// Run executes actions in order against row, extending row with every
// variable a CREATE/MERGE binds so later actions in the same list (or
// a later RETURN) can reference them. On error, if
// Options.RollbackOnFailure is set, every already-applied mutation is
// undone in the phase order spec.md §4.6 mandates before the error is
// returned; otherwise the partial effect is left in place, matching
// Options.ContinueOnFailure semantics one level up in the statement
// engine.
func (ex *Executor) Run(actions []parser.Action, row binding.Bindings, params map[string]any) (binding.Bindings, []Result, error) {
	if ex.Options.ValidateBeforeExecute {
		if err := ex.validate(actions, row); err != nil {
			return row, nil, err
		}
	}

	var undoLog []undoEntry
	var results []Result
	for _, a := range actions {
		next, res, entries, err := ex.apply(a, row, params)
		if err != nil {
			if ex.Options.RollbackOnFailure {
				ex.rollback(undoLog)
			}
			return row, results, err
		}
		row = next
		results = append(results, res)
		undoLog = append(undoLog, entries...)
	}
	return row, results, nil
}

// rollback replays entries in the fixed phase order spec.md §4.6
// mandates: restore modified edges, restore modified nodes, re-add
// deleted edges, re-add deleted nodes, remove created edges, remove
// created nodes. Within one phase, entries replay in reverse
// chronological order so a node updated twice is restored to its
// original value rather than an intermediate one.
func (ex *Executor) rollback(entries []undoEntry) {
	phases := []undoKind{undoUpdatedEdge, undoUpdatedNode, undoDeletedEdge, undoDeletedNode, undoCreatedEdge, undoCreatedNode}
	for _, phase := range phases {
		for i := len(entries) - 1; i >= 0; i-- {
			e := entries[i]
			if e.kind != phase {
				continue
			}
			if err := e.apply(ex.Graph); err != nil {
				log.Printf("action: rollback step failed, graph may be left inconsistent: %v", err)
			}
		}
	}
}

// validate performs the preflight checks the spec requires before any
// action runs: every variable an action reads (SET/DELETE/relationship
// endpoints) must already be bound, a CREATE node must not rebind an
// already-bound variable, and a non-DETACH DELETE must not target a
// node that still has incident relationships.
func (ex *Executor) validate(actions []parser.Action, row binding.Bindings) error {
	bound := map[string]bool{}
	for _, n := range row.Names() {
		bound[n] = true
	}
	for _, a := range actions {
		switch act := a.(type) {
		case parser.CreateNode:
			if act.Variable != "" {
				if bound[act.Variable] {
					return fmt.Errorf("action: CREATE node rebinds already-bound variable %q", act.Variable)
				}
				bound[act.Variable] = true
			}
		case parser.CreateRelationship:
			if !bound[act.FromVar] {
				return fmt.Errorf("action: CREATE relationship references unbound variable %q", act.FromVar)
			}
			if !bound[act.ToVar] {
				return fmt.Errorf("action: CREATE relationship references unbound variable %q", act.ToVar)
			}
			if act.RelVariable != "" {
				bound[act.RelVariable] = true
			}
		case parser.SetProperty:
			if !bound[act.TargetVar] {
				return fmt.Errorf("action: SET references unbound variable %q", act.TargetVar)
			}
		case parser.Delete:
			for _, v := range act.Variables {
				if !bound[v] {
					return fmt.Errorf("action: DELETE references unbound variable %q", v)
				}
				if n, ok := row.Node(v); ok && !act.Detach && len(ex.Graph.EdgesFor(n.ID, graph.Both)) > 0 {
					return fmt.Errorf("action: DELETE %s: node has incident relationships, use DETACH DELETE", v)
				}
			}
		case parser.MergeNode:
			if act.Pattern.Variable != "" {
				bound[act.Pattern.Variable] = true
			}
		case parser.MergeRelationship:
			if !bound[act.FromVar] {
				return fmt.Errorf("action: MERGE relationship references unbound variable %q", act.FromVar)
			}
			if !bound[act.ToVar] {
				return fmt.Errorf("action: MERGE relationship references unbound variable %q", act.ToVar)
			}
			if act.RelVariable != "" {
				bound[act.RelVariable] = true
			}
		}
	}
	return nil
}

func (ex *Executor) apply(a parser.Action, row binding.Bindings, params map[string]any) (binding.Bindings, Result, []undoEntry, error) {
	switch act := a.(type) {
	case parser.CreateNode:
		return ex.createNode(act, row)
	case parser.CreateRelationship:
		return ex.createRelationship(act, row)
	case parser.SetProperty:
		return ex.setProperty(act, row, params)
	case parser.Delete:
		return ex.delete(act, row)
	case parser.MergeNode:
		return ex.mergeNode(act, row)
	case parser.MergeRelationship:
		return ex.mergeRelationship(act, row)
	default:
		return row, Result{}, nil, fmt.Errorf("action: unsupported action %T", a)
	}
}

func (ex *Executor) createNode(act parser.CreateNode, row binding.Bindings) (binding.Bindings, Result, []undoEntry, error) {
	id := graph.NewNodeID()
	label := ""
	if len(act.Labels) > 0 {
		label = act.Labels[0]
	}
	if err := ex.Graph.AddNode(id, label, act.Properties); err != nil {
		return row, Result{}, nil, fmt.Errorf("action: CREATE node: %w", err)
	}
	n, _ := ex.Graph.GetNode(id)
	if act.Variable != "" {
		row = row.Extend(act.Variable, n)
	}
	entry := undoEntry{kind: undoCreatedNode, id: id}
	return row, Result{Action: act, Created: []string{id}}, []undoEntry{entry}, nil
}

func (ex *Executor) createRelationship(act parser.CreateRelationship, row binding.Bindings) (binding.Bindings, Result, []undoEntry, error) {
	from, ok := row.Node(act.FromVar)
	if !ok {
		return row, Result{}, nil, fmt.Errorf("action: CREATE relationship: %q is not a bound node", act.FromVar)
	}
	to, ok := row.Node(act.ToVar)
	if !ok {
		return row, Result{}, nil, fmt.Errorf("action: CREATE relationship: %q is not a bound node", act.ToVar)
	}
	src, tgt := from.ID, to.ID
	if act.Direction == parser.Incoming {
		src, tgt = tgt, src
	}
	if err := ex.Graph.AddEdge(src, tgt, act.Type, act.Properties); err != nil {
		return row, Result{}, nil, fmt.Errorf("action: CREATE relationship: %w", err)
	}
	e, _ := ex.Graph.GetEdge(src, tgt, act.Type)
	if act.RelVariable != "" {
		row = row.Extend(act.RelVariable, e)
	}
	entry := undoEntry{kind: undoCreatedEdge, src: src, tgt: tgt, label: act.Type}
	return row, Result{Action: act, Created: []string{src + "-[" + act.Type + "]->" + tgt}}, []undoEntry{entry}, nil
}

func (ex *Executor) setProperty(act parser.SetProperty, row binding.Bindings, params map[string]any) (binding.Bindings, Result, []undoEntry, error) {
	val, err := condition.Value(act.Value, condition.Context{Bindings: row, Params: params, Options: ex.Options})
	if err != nil {
		return row, Result{}, nil, fmt.Errorf("action: SET %s.%s: %w", act.TargetVar, act.Property, err)
	}

	target, ok := row.Get(act.TargetVar)
	if !ok {
		return row, Result{}, nil, fmt.Errorf("action: SET: %q is not bound", act.TargetVar)
	}

	switch t := target.(type) {
	case graph.Node:
		old := t.Properties
		updated := cloneMap(old)
		updated[act.Property] = val
		if err := ex.Graph.UpdateNodeData(t.ID, updated); err != nil {
			return row, Result{}, nil, fmt.Errorf("action: SET %s.%s: %w", act.TargetVar, act.Property, err)
		}
		n, _ := ex.Graph.GetNode(t.ID)
		row = row.Extend(act.TargetVar, n)
		entry := undoEntry{kind: undoUpdatedNode, id: t.ID, props: old}
		return row, Result{Action: act, Updated: []string{t.ID}}, []undoEntry{entry}, nil
	case graph.Edge:
		old := t.Properties
		updated := cloneMap(old)
		updated[act.Property] = val
		if err := ex.Graph.UpdateEdge(t.Source, t.Target, t.Label, updated); err != nil {
			return row, Result{}, nil, fmt.Errorf("action: SET %s.%s: %w", act.TargetVar, act.Property, err)
		}
		e, _ := ex.Graph.GetEdge(t.Source, t.Target, t.Label)
		row = row.Extend(act.TargetVar, e)
		entry := undoEntry{kind: undoUpdatedEdge, src: t.Source, tgt: t.Target, label: t.Label, props: old}
		return row, Result{Action: act, Updated: []string{t.Source + "-[" + t.Label + "]->" + t.Target}}, []undoEntry{entry}, nil
	default:
		return row, Result{}, nil, fmt.Errorf("action: SET: %q is not a node or edge", act.TargetVar)
	}
}

func (ex *Executor) delete(act parser.Delete, row binding.Bindings) (binding.Bindings, Result, []undoEntry, error) {
	var result Result
	result.Action = act
	var entries []undoEntry

	for _, name := range act.Variables {
		v, ok := row.Get(name)
		if !ok {
			return row, result, entries, fmt.Errorf("action: DELETE: %q is not bound", name)
		}
		switch t := v.(type) {
		case graph.Edge:
			if err := ex.Graph.RemoveEdge(t.Source, t.Target, t.Label); err != nil {
				return row, result, entries, fmt.Errorf("action: DELETE %s: %w", name, err)
			}
			entries = append(entries, undoEntry{kind: undoDeletedEdge, src: t.Source, tgt: t.Target, label: t.Label, props: t.Properties})
			result.Deleted = append(result.Deleted, t.Source+"-["+t.Label+"]->"+t.Target)
		case graph.Node:
			if !act.Detach && len(ex.Graph.EdgesFor(t.ID, graph.Both)) > 0 {
				return row, result, entries, fmt.Errorf("action: DELETE %s: node has incident relationships, use DETACH DELETE", name)
			}
			incident := ex.Graph.EdgesFor(t.ID, graph.Both)
			for _, e := range incident {
				if err := ex.Graph.RemoveEdge(e.Source, e.Target, e.Label); err != nil {
					return row, result, entries, fmt.Errorf("action: DETACH DELETE %s: %w", name, err)
				}
				entries = append(entries, undoEntry{kind: undoDeletedEdge, src: e.Source, tgt: e.Target, label: e.Label, props: e.Properties})
				result.Deleted = append(result.Deleted, e.Source+"-["+e.Label+"]->"+e.Target)
			}
			if err := ex.Graph.RemoveNode(t.ID); err != nil {
				return row, result, entries, fmt.Errorf("action: DELETE %s: %w", name, err)
			}
			entries = append(entries, undoEntry{kind: undoDeletedNode, id: t.ID, label: t.Label, props: t.Properties})
			result.Deleted = append(result.Deleted, t.ID)
		default:
			return row, result, entries, fmt.Errorf("action: DELETE: %q is not a node or edge", name)
		}
	}
	return row, result, entries, nil
}

func (ex *Executor) mergeNode(act parser.MergeNode, row binding.Bindings) (binding.Bindings, Result, []undoEntry, error) {
	matches := ex.Graph.FindNodes(func(n graph.Node) bool { return nodeMatchesPattern(n, act.Pattern) })
	if len(matches) > 0 {
		n := matches[0]
		if act.Pattern.Variable != "" {
			row = row.Extend(act.Pattern.Variable, n)
		}
		row, entries, err := ex.runSetItems(act.OnMatch, row)
		return row, Result{Action: act, Updated: []string{n.ID}}, entries, err
	}

	create := parser.CreateNode{Variable: act.Pattern.Variable, Labels: act.Pattern.Labels, Properties: act.Pattern.Properties}
	row, res, entries, err := ex.createNode(create, row)
	if err != nil {
		return row, res, entries, err
	}
	row, setEntries, err := ex.runSetItems(act.OnCreate, row)
	return row, res, append(entries, setEntries...), err
}

func (ex *Executor) mergeRelationship(act parser.MergeRelationship, row binding.Bindings) (binding.Bindings, Result, []undoEntry, error) {
	from, ok := row.Node(act.FromVar)
	if !ok {
		return row, Result{}, nil, fmt.Errorf("action: MERGE relationship: %q is not a bound node", act.FromVar)
	}
	to, ok := row.Node(act.ToVar)
	if !ok {
		return row, Result{}, nil, fmt.Errorf("action: MERGE relationship: %q is not a bound node", act.ToVar)
	}
	src, tgt := from.ID, to.ID
	if act.Direction == parser.Incoming {
		src, tgt = tgt, src
	}

	if e, ok := ex.Graph.GetEdge(src, tgt, act.Type); ok {
		if act.RelVariable != "" {
			row = row.Extend(act.RelVariable, e)
		}
		row, entries, err := ex.runSetItems(act.OnMatch, row)
		return row, Result{Action: act, Updated: []string{src + "-[" + act.Type + "]->" + tgt}}, entries, err
	}

	create := parser.CreateRelationship{FromVar: act.FromVar, ToVar: act.ToVar, RelVariable: act.RelVariable, Type: act.Type, Properties: act.Properties, Direction: act.Direction}
	row, res, entries, err := ex.createRelationship(create, row)
	if err != nil {
		return row, res, entries, err
	}
	row, setEntries, err := ex.runSetItems(act.OnCreate, row)
	return row, res, append(entries, setEntries...), err
}

// runSetItems applies ON CREATE/ON MATCH SET items, collecting each
// item's own undo entry so a MERGE's rollback restores property
// values too, not just node/edge existence.
func (ex *Executor) runSetItems(items []parser.SetProperty, row binding.Bindings) (binding.Bindings, []undoEntry, error) {
	var entries []undoEntry
	for _, item := range items {
		next, _, itemEntries, err := ex.setProperty(item, row, nil)
		if err != nil {
			return row, entries, err
		}
		row = next
		entries = append(entries, itemEntries...)
	}
	return row, entries, nil
}

func nodeMatchesPattern(n graph.Node, np parser.NodePattern) bool {
	for _, label := range np.Labels {
		if n.Label != label {
			return false
		}
	}
	for k, want := range np.Properties {
		got, ok := n.Properties[k]
		if !ok || fmt.Sprint(got) != fmt.Sprint(want) {
			return false
		}
	}
	return true
}

func cloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
