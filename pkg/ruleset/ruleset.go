// Package ruleset is the consumer half of a Markdown rule-extraction
// contract: something else (a fenced-code-block extractor, not this
// module) turns a Markdown document into a list of (header, statement
// body) pairs; ruleset turns those pairs into named, priority-ordered
// rules it can run against a graph.
//
// Generalized from the teacher's apoc/registry plugin system
// (apoc/registry/registry.go): where that registry maps a name to a Go
// function, Set maps a name to a statement string and runs it through
// engine.Execute instead of reflect.Call.
package ruleset

import (
	"fmt"
	"sort"

	"github.com/arborix/graphdb/pkg/config"
	"github.com/arborix/graphdb/pkg/engine"
	"github.com/arborix/graphdb/pkg/graph"
)

// Rule is one named statement extracted from a Markdown document's
// fenced code block, plus the header metadata that preceded it.
type Rule struct {
	Name        string
	Description string
	Priority    int // higher runs first; ties keep document order
	Disabled    bool
	Statement   string
}

// Set is an ordered collection of rules, typically all the rules
// extracted from one document.
type Set struct {
	Rules []Rule
}

// New builds a Set from already-extracted rules. Rules is copied so
// later mutation of the caller's slice doesn't affect the Set.
func New(rules []Rule) *Set {
	cp := make([]Rule, len(rules))
	copy(cp, rules)
	return &Set{Rules: cp}
}

// RuleResult pairs one rule with the engine.Result its statement
// produced.
type RuleResult struct {
	Rule   Rule
	Result engine.Result
}

// Run executes every enabled rule in the set against g, highest
// Priority first, stopping at the first rule whose statement fails
// unless opts.ContinueOnFailure is set — the same halt-on-first-failure
// discipline engine.Execute applies within one statement's action list,
// carried up to a whole rule set.
func Run(g *graph.Graph, rules *Set, opts config.Options) ([]RuleResult, error) {
	ordered := enabledInPriorityOrder(rules.Rules)
	results := make([]RuleResult, 0, len(ordered))

	for _, rule := range ordered {
		res := engine.Execute(g, rule.Statement, opts)
		results = append(results, RuleResult{Rule: rule, Result: res})
		if !res.Success && !opts.ContinueOnFailure {
			return results, fmt.Errorf("ruleset: rule %q failed: %s", rule.Name, res.Error)
		}
	}
	return results, nil
}

// enabledInPriorityOrder filters out disabled rules and stable-sorts
// the rest by descending Priority, preserving the input order among
// rules that share a priority.
func enabledInPriorityOrder(rules []Rule) []Rule {
	var out []Rule
	for _, r := range rules {
		if !r.Disabled {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Priority > out[j].Priority
	})
	return out
}

// ByName returns the rule with the given name, if present.
func (s *Set) ByName(name string) (Rule, bool) {
	for _, r := range s.Rules {
		if r.Name == name {
			return r, true
		}
	}
	return Rule{}, false
}
