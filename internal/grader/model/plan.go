// Package model defines plans, submissions and verdicts shared by the grader packages.
package model

import "strings"

// Plan is an ordered sequence of action names returned by the solver.
// The zero value is the empty plan the solver reports when no solution exists.
type Plan struct {
	Actions []string
}

// NewPlan builds a plan from raw action names, trimming surrounding whitespace.
// Blank names are dropped so that no non-empty plan shares the empty plan's key.
func NewPlan(names []string) Plan {
	actions := make([]string, 0, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		actions = append(actions, name)
	}
	return Plan{Actions: actions}
}

// Key returns the canonical string form: action names joined by newlines.
func (p Plan) Key() string {
	return strings.Join(p.Actions, "\n")
}

// IsEmpty reports whether the solver found no plan.
func (p Plan) IsEmpty() bool {
	return len(p.Actions) == 0
}

// Len returns the number of actions.
func (p Plan) Len() int {
	return len(p.Actions)
}

// Equal compares two plans by their ordered action names.
func Equal(a, b Plan) bool {
	return a.Key() == b.Key()
}
