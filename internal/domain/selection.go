package domain

import (
	"cmp"
	"slices"
	"strings"
)

// Rule is the funding rule a file's selections are replayed against.
// It is one of Greedy, PartialThreshold or Unchecked.
type Rule interface {
	// Name identifies the rule in findings and logs.
	Name() string
	isRule()
}

// Greedy funds projects in rank order, skipping any that no longer fit and
// continuing with cheaper ones further down.
type Greedy struct{}

// PartialThreshold is greedy until the first project that does not fit.
// That project is still funded when the remaining budget covers Fraction of
// its cost, and no project after it is funded either way.
type PartialThreshold struct {
	Fraction float64
}

// Unchecked is a declared rule the replayer does not model.
type Unchecked struct {
	Rule string
}

func (Greedy) Name() string { return "greedy" }
func (PartialThreshold) Name() string { return "partial_threshold" }
func (r Unchecked) Name() string { return r.Rule }

func (Greedy) isRule() {}
func (PartialThreshold) isRule() {}
func (Unchecked) isRule() {}

// ResolveRule picks the rule a file's selections are replayed against.
// Units listed in partialUnits use PartialThreshold with fraction whatever
// META declares; otherwise a greedy or missing META rule is Greedy and any
// other rule is Unchecked.
func ResolveRule(meta Meta, partialUnits []string, fraction float64) Rule {
	if slices.Contains(partialUnits, meta.Unit) {
		return PartialThreshold{Fraction: fraction}
	}
	switch strings.ToLower(strings.TrimSpace(meta.Rule)) {
	case "", "greedy":
		return Greedy{}
	}
	return Unchecked{Rule: meta.Rule}
}

// DeclaredCodes returns the selection codes that count as funded under r.
func DeclaredCodes(r Rule) []int {
	if _, ok := r.(PartialThreshold); ok {
		return []int{Selected, SelectedThreshold}
	}
	return []int{Selected}
}

// RankProjects returns projects sorted by declared result, highest first.
// Ties keep file order.
func RankProjects(projects []Project, byScore bool) []Project {
	ranked := slices.Clone(projects)
	slices.SortStableFunc(ranked, func(a, b Project) int {
		return cmp.Compare(b.Result(byScore), a.Result(byScore))
	})
	return ranked
}

// ReplayGreedy returns the ids the greedy rule funds from ranked.
func ReplayGreedy(ranked []Project, budget float64) []string {
	funded := make([]string, 0)
	for _, p := range ranked {
		if budget >= p.Cost.Value {
			funded = append(funded, p.ID)
			budget -= p.Cost.Value
		}
	}
	return funded
}

// ReplayPartialThreshold returns the ids the partial threshold rule funds
// from ranked.
func ReplayPartialThreshold(ranked []Project, budget, fraction float64) []string {
	funded := make([]string, 0)
	for _, p := range ranked {
		if budget >= p.Cost.Value {
			funded = append(funded, p.ID)
			budget -= p.Cost.Value
			continue
		}
		if budget >= p.Cost.Value*fraction {
			funded = append(funded, p.ID)
		}
		break
	}
	return funded
}

// Replay is the outcome of replaying a rule over one election.
type Replay struct {
	Rule Rule

	// Expected holds the ids the rule funds, in rank order.
	Expected []string
	// Declared holds the ids the file marks as funded, in rank order.
	Declared []string

	// Missing are expected but not declared; Unexpected are declared but
	// not expected.
	Missing    []string
	Unexpected []string
}

// Consistent reports whether the file's selections are reproducible.
func (r Replay) Consistent() bool {
	return len(r.Missing) == 0 && len(r.Unexpected) == 0
}

// ReplaySelection replays rule over e. ok is false for Unchecked rules.
func ReplaySelection(rule Rule, e *Election, budget float64) (replay Replay, ok bool) {
	ranked := RankProjects(e.Projects, e.HasScoreField)

	var expected []string
	switch r := rule.(type) {
	case Greedy:
		expected = ReplayGreedy(ranked, budget)
	case PartialThreshold:
		expected = ReplayPartialThreshold(ranked, budget, r.Fraction)
	default:
		return Replay{Rule: rule}, false
	}

	codes := DeclaredCodes(rule)
	declared := make([]string, 0)
	for _, p := range ranked {
		if p.HasSelected && slices.Contains(codes, p.Selected) {
			declared = append(declared, p.ID)
		}
	}

	return Replay{
		Rule:       rule,
		Expected:   expected,
		Declared:   declared,
		Missing:    difference(expected, declared),
		Unexpected: difference(declared, expected),
	}, true
}

// difference returns the elements of a not in b, in a's order.
func difference(a, b []string) []string {
	in := make(map[string]struct{}, len(b))
	for _, id := range b {
		in[id] = struct{}{}
	}
	out := make([]string, 0)
	for _, id := range a {
		if _, ok := in[id]; !ok {
			out = append(out, id)
		}
	}
	return out
}
