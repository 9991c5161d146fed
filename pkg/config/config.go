// Package config holds the tunables that govern matching, evaluation,
// and action execution. Unlike a long-running server, an embedded
// graph engine is configured by its host program, not by its own
// process environment — Options is a plain struct the caller builds or
// loads from a small YAML file, never from environment variables.
//
// Example Usage:
//
//	opts := config.Defaults()
//	opts.MaxPathDepth = 6
//	eng := engine.NewSerializedEngine(g, opts)
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Options governs how a statement engine matches patterns, evaluates
// WHERE conditions, and executes CREATE/MERGE/SET/DELETE actions.
//
// Every field has a conservative default (see Defaults); the zero
// value of Options is NOT safe to use directly, since a zero
// MaxPathDepth would reject every variable-length pattern.
type Options struct {
	// MaxPathDepth caps how many hops a variable-length relationship
	// pattern (e.g. "-[*..10]->") may traverse. The match layer never
	// searches deeper than this even when the pattern's own MaxHops is
	// unbounded or larger.
	MaxPathDepth int `yaml:"max_path_depth"`

	// MaxPathResults caps how many paths one variable-length traversal
	// from a single start node may produce, bounding worst-case fan-out
	// on dense graphs. The cap applies to each start node separately; the
	// total number of paths a pattern yields across all of its start
	// nodes is not capped.
	MaxPathResults int `yaml:"max_path_results"`

	// CaseInsensitiveLabels makes label and relationship-type matching
	// ignore case ("Person" matches "person"). Property key and string
	// value comparisons are unaffected.
	CaseInsensitiveLabels bool `yaml:"case_insensitive_labels"`

	// NullAwareComparisons opts into three-valued (unknown) logic for
	// comparisons involving a missing property or an explicit null.
	// Defaults to false: under strict comparison semantics (spec.md
	// §4.4's default), any such comparison evaluates to false, full
	// stop. Setting this true switches to the null-propagation rule
	// instead — a comparison against null is neither true nor false,
	// and unknown propagates through AND/OR/NOT the way SQL's NULL
	// does — though rows where the WHERE clause evaluates to unknown
	// are still excluded just like false; "IS NULL" / "IS NOT NULL"
	// observe the difference either way.
	NullAwareComparisons bool `yaml:"null_aware_comparisons"`

	// ValidateBeforeExecute runs every action's precondition checks
	// (referenced variables bound, CREATE not rebinding a bound
	// variable, MERGE relationship endpoints bound, non-DETACH DELETE
	// targets free of incident relationships) before any action in the
	// binding row's action list executes, so a mutation never partially
	// applies because of a foreseeable error.
	ValidateBeforeExecute bool `yaml:"validate_before_execute"`

	// ContinueOnFailure lets the statement engine run the action list
	// for the remaining binding rows after one row's actions fail, and
	// lets pkg/ruleset run later rules after one rule fails. Within one
	// row's action list the first failing action always stops the rest,
	// whatever this is set to. Defaults to false: the first failing row
	// halts the remaining rows.
	ContinueOnFailure bool `yaml:"continue_on_failure"`

	// RollbackOnFailure replays the rollback log to undo every action
	// already applied for the same binding row when a later action in
	// that row's action list fails. Rows whose action list completed
	// earlier in the statement are not undone. Defaults to true.
	RollbackOnFailure bool `yaml:"rollback_on_failure"`
}

// Defaults returns the Options a new engine should start with absent
// any caller customization.
func Defaults() Options {
	return Options{
		MaxPathDepth:          10,
		MaxPathResults:        100,
		CaseInsensitiveLabels: true,
		NullAwareComparisons:  false,
		ValidateBeforeExecute: true,
		ContinueOnFailure:     false,
		RollbackOnFailure:     true,
	}
}

// Load reads Options from a YAML file, starting from Defaults() so a
// partial file only overrides the fields it mentions.
func Load(path string) (Options, error) {
	opts := Defaults()
	data, err := os.ReadFile(path)
	if err != nil {
		return opts, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &opts); err != nil {
		return opts, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return opts, nil
}

// Validate checks Options for internally-inconsistent values.
func (o Options) Validate() error {
	if o.MaxPathDepth <= 0 {
		return fmt.Errorf("config: max_path_depth must be positive, got %d", o.MaxPathDepth)
	}
	if o.MaxPathResults <= 0 {
		return fmt.Errorf("config: max_path_results must be positive, got %d", o.MaxPathResults)
	}
	return nil
}
