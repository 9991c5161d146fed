// Package engine drives one statement end-to-end: parse, match, filter,
// act, project (spec.md §4.7). Execute is the module's single
// embedding entry point (spec.md §6 "execute(graph, statement_text) →
// result").
package engine

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/arborix/graphdb/pkg/action"
	"github.com/arborix/graphdb/pkg/binding"
	"github.com/arborix/graphdb/pkg/config"
	"github.com/arborix/graphdb/pkg/graph"
	"github.com/arborix/graphdb/pkg/match"
	"github.com/arborix/graphdb/pkg/parser"
)

// Cell tags one projected value by kind so a caller can tell a node
// binding from a scalar without type-asserting the engine's internals.
type Cell struct {
	Kind  string // "node", "edge", or "scalar"
	Value any
}

// Query is the projected RETURN table, present iff the statement had a
// RETURN clause.
type Query struct {
	Columns []string
	Rows    [][]Cell
}

// ActionReport summarizes what the action executor did, present iff
// the statement had CREATE/MERGE/SET/DELETE actions.
type ActionReport struct {
	Success        bool
	AffectedNodes  []graph.Node
	AffectedEdges  []graph.Edge
	ActionResults  []ActionOutcome
	Error          string
}

// ActionOutcome is the per-binding-row record of one action batch.
type ActionOutcome struct {
	Success bool
	Error   string
}

// Stats reports whether a statement read and/or wrote the graph, and
// how long it took.
type Stats struct {
	Reads     bool
	Writes    bool
	ElapsedMs float64
}

// Result is the uniform record every Execute call returns, mirroring
// spec.md §6's embedding surface.
type Result struct {
	Success    bool
	MatchCount int
	Statement  string
	Stats      Stats
	Query      *Query
	Actions    *ActionReport
	Error      string
	Diagnostics []parser.Diagnostic
}

// Execute parses and runs one statement against graph with no
// parameters.
func Execute(g *graph.Graph, statementText string, opts config.Options) Result {
	return ExecuteWithParams(g, statementText, nil, opts)
}

// ExecuteWithParams is Execute's parameterized form: $name tokens in
// the statement resolve against params (SPEC_FULL.md §4.3 addition).
func ExecuteWithParams(g *graph.Graph, statementText string, params map[string]any, opts config.Options) Result {
	start := time.Now()
	result := Result{Statement: statementText}

	stmt, diags := parser.Parse(statementText)
	if len(diags) > 0 {
		result.Diagnostics = diags
		result.Error = fmt.Sprintf("%d parse error(s), first: %s", len(diags), diags[0].String())
		result.Stats.ElapsedMs = elapsedMs(start)
		return result
	}

	if err := checkUnboundReferences(stmt); err != nil {
		result.Error = err.Error()
		result.Stats.ElapsedMs = elapsedMs(start)
		return result
	}

	m := match.New(g, opts)
	rows, err := m.MatchStatement(stmt.Matches, stmt.Where, params)
	if err != nil {
		result.Error = fmt.Sprintf("match: %v", err)
		result.Stats.ElapsedMs = elapsedMs(start)
		return result
	}
	result.MatchCount = len(rows)
	result.Stats.Reads = len(stmt.Matches) > 0

	finalRows := rows
	if len(stmt.Actions) > 0 {
		result.Stats.Writes = true
		report, postRows := runActions(g, stmt.Actions, rows, params, opts)
		result.Actions = &report
		result.Success = report.Success
		finalRows = postRows
		if !report.Success {
			result.Error = report.Error
			result.Stats.ElapsedMs = elapsedMs(start)
			return result
		}
	} else {
		result.Success = true
	}

	if len(stmt.Return) > 0 {
		q, err := Project(stmt.Return, finalRows, params)
		if err != nil {
			result.Error = fmt.Sprintf("return: %v", err)
			result.Success = false
			result.Stats.ElapsedMs = elapsedMs(start)
			return result
		}
		result.Query = &q
	}

	result.Stats.ElapsedMs = elapsedMs(start)
	return result
}

func elapsedMs(start time.Time) float64 {
	return float64(time.Since(start).Nanoseconds()) / 1e6
}

// runActions runs the action list exactly once per matched binding
// row, aggregating a single ActionReport across every row and
// returning each row's post-action bindings so a RETURN clause can see
// variables CREATE/MERGE/SET introduced. A statement without MATCH
// arrives with the matcher's single empty row, so its actions run once;
// a MATCH that produced no rows runs no actions. If
// Options.ContinueOnFailure is unset, the first failing row aborts the
// remaining rows.
func runActions(g *graph.Graph, actions []parser.Action, rows []binding.Bindings, params map[string]any, opts config.Options) (ActionReport, []binding.Bindings) {
	ex := action.New(g, opts)
	report := ActionReport{Success: true}
	nodeSeen := map[string]bool{}
	edgeSeen := map[string]bool{}
	var postRows []binding.Bindings

	for _, row := range rows {
		next, results, err := ex.Run(actions, row, params)
		outcome := ActionOutcome{Success: err == nil}
		if err != nil {
			outcome.Error = err.Error()
			report.ActionResults = append(report.ActionResults, outcome)
			report.Success = false
			report.Error = err.Error()
			if !opts.ContinueOnFailure {
				return report, postRows
			}
			continue
		}
		report.ActionResults = append(report.ActionResults, outcome)
		postRows = append(postRows, next)
		for _, res := range results {
			collectAffected(g, res, nodeSeen, edgeSeen, &report)
		}
	}
	return report, postRows
}

func collectAffected(g *graph.Graph, res action.Result, nodeSeen, edgeSeen map[string]bool, report *ActionReport) {
	for _, id := range append(append([]string{}, res.Created...), res.Updated...) {
		if src, label, tgt, ok := parseEdgeKey(id); ok {
			if e, found := g.GetEdge(src, tgt, label); found && !edgeSeen[id] {
				edgeSeen[id] = true
				report.AffectedEdges = append(report.AffectedEdges, e)
			}
			continue
		}
		if n, ok := g.GetNode(id); ok && !nodeSeen[id] {
			nodeSeen[id] = true
			report.AffectedNodes = append(report.AffectedNodes, n)
		}
	}
}

// parseEdgeKey recognizes the "src-[label]->tgt" identifier action.Result
// uses for edges, mirroring action.go's own encoding so the engine can
// tell a created/updated edge apart from a node by identifier shape
// alone.
func parseEdgeKey(key string) (src, label, tgt string, ok bool) {
	lb := strings.Index(key, "-[")
	rb := strings.Index(key, "]->")
	if lb < 0 || rb < 0 || rb < lb {
		return "", "", "", false
	}
	src = key[:lb]
	label = key[lb+2 : rb]
	tgt = key[rb+3:]
	return src, label, tgt, true
}

// SerializedEngine wraps Execute behind a mutex for embedders who want
// to serialize concurrent statements externally (spec.md §5), grounded
// in the teacher's sync.RWMutex-guarded MemoryEngine applied one layer
// up, at the statement boundary rather than the node/edge boundary.
type SerializedEngine struct {
	mu      sync.Mutex
	Graph   *graph.Graph
	Options config.Options
}

// NewSerializedEngine builds a SerializedEngine over graph.
func NewSerializedEngine(g *graph.Graph, opts config.Options) *SerializedEngine {
	return &SerializedEngine{Graph: g, Options: opts}
}

// Execute runs one statement, excluding any concurrent Execute call on
// the same SerializedEngine.
func (se *SerializedEngine) Execute(statementText string) Result {
	return se.ExecuteWithParams(statementText, nil)
}

// ExecuteWithParams is Execute's parameterized form.
func (se *SerializedEngine) ExecuteWithParams(statementText string, params map[string]any) Result {
	se.mu.Lock()
	defer se.mu.Unlock()
	return ExecuteWithParams(se.Graph, statementText, params, se.Options)
}
