package engine

import (
	"fmt"

	"github.com/arborix/graphdb/pkg/binding"
	"github.com/arborix/graphdb/pkg/condition"
	"github.com/arborix/graphdb/pkg/graph"
	"github.com/arborix/graphdb/pkg/parser"
)

// Project evaluates every RETURN item against every row, producing a
// Query table. Column names come from alias when given, otherwise from
// the expression's source text — AS-less expressions like "p.name"
// project under that literal string, following the teacher's
// display-name convention rather than inventing synthetic col0/col1
// names.
func Project(items []parser.ReturnItem, rows []binding.Bindings, params map[string]any) (Query, error) {
	q := Query{Columns: make([]string, len(items))}
	for i, item := range items {
		q.Columns[i] = columnName(item)
	}

	for _, row := range rows {
		cells := make([]Cell, len(items))
		for i, item := range items {
			cell, err := projectCell(item.Expr, row, params)
			if err != nil {
				return Query{}, err
			}
			cells[i] = cell
		}
		q.Rows = append(q.Rows, cells)
	}
	return q, nil
}

func columnName(item parser.ReturnItem) string {
	if item.Alias != "" {
		return item.Alias
	}
	return exprText(item.Expr)
}

// exprText renders an expression back to a short display string. This
// is not a full unparser: it covers the expression shapes RETURN
// actually accepts (variable, property lookup, literal) since
// arithmetic/function expressions in RETURN are out of scope.
func exprText(e parser.Expr) string {
	switch v := e.(type) {
	case parser.Variable:
		return v.Name
	case parser.Property:
		return v.Object + "." + v.Property
	case parser.Literal:
		return fmt.Sprintf("%v", v.Value)
	case parser.Parameter:
		return "$" + v.Name
	default:
		return fmt.Sprintf("%T", e)
	}
}

func projectCell(expr parser.Expr, row binding.Bindings, params map[string]any) (Cell, error) {
	ctx := condition.Context{Bindings: row, Params: params}
	v, err := condition.Value(expr, ctx)
	if err != nil {
		return Cell{}, fmt.Errorf("project %s: %w", exprText(expr), err)
	}
	switch val := v.(type) {
	case graph.Node:
		return Cell{Kind: "node", Value: val}, nil
	case graph.Edge:
		return Cell{Kind: "edge", Value: val}, nil
	default:
		return Cell{Kind: "scalar", Value: val}, nil
	}
}

// checkUnboundReferences is a cheap semantic pass over RETURN items run
// before matching: a RETURN naming a variable no MATCH/CREATE clause
// could ever introduce is a query error, not an empty result (spec.md
// §7 semantic error class).
func checkUnboundReferences(stmt parser.Statement) error {
	declared := map[string]bool{}
	for _, m := range stmt.Matches {
		collectPatternVars(m, declared)
	}
	for _, a := range stmt.Actions {
		collectActionVars(a, declared)
	}

	for _, item := range stmt.Return {
		if err := checkExprVars(item.Expr, declared); err != nil {
			return err
		}
	}
	return nil
}

func collectPatternVars(p parser.PathPattern, declared map[string]bool) {
	if p.Start.Variable != "" {
		declared[p.Start.Variable] = true
	}
	for _, seg := range p.Segments {
		if seg.Relationship.Variable != "" {
			declared[seg.Relationship.Variable] = true
		}
		if seg.Node.Variable != "" {
			declared[seg.Node.Variable] = true
		}
	}
}

func collectActionVars(a parser.Action, declared map[string]bool) {
	switch act := a.(type) {
	case parser.CreateNode:
		if act.Variable != "" {
			declared[act.Variable] = true
		}
	case parser.CreateRelationship:
		if act.RelVariable != "" {
			declared[act.RelVariable] = true
		}
	case parser.MergeNode:
		if act.Pattern.Variable != "" {
			declared[act.Pattern.Variable] = true
		}
	case parser.MergeRelationship:
		if act.RelVariable != "" {
			declared[act.RelVariable] = true
		}
	}
}

func checkExprVars(e parser.Expr, declared map[string]bool) error {
	switch v := e.(type) {
	case parser.Variable:
		if !declared[v.Name] {
			return fmt.Errorf("engine: RETURN references undeclared variable %q", v.Name)
		}
	case parser.Property:
		if !declared[v.Object] {
			return fmt.Errorf("engine: RETURN references undeclared variable %q", v.Object)
		}
	}
	return nil
}
