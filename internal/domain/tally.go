package domain

import (
	"maps"
	"slices"
)

// Tally maps a project id to a recomputed total. Order records the ids in
// the order they were first seen so reports stay deterministic.
type Tally struct {
	Counts map[string]int
	Order  []string
}

func newTally() Tally {
	return Tally{Counts: make(map[string]int)}
}

func (t *Tally) add(id string, n int) {
	if _, ok := t.Counts[id]; !ok {
		t.Order = append(t.Order, id)
	}
	t.Counts[id] += n
}

func (t Tally) cloneValue() any {
	return Tally{Counts: maps.Clone(t.Counts), Order: slices.Clone(t.Order)}
}

// Get returns the total for id, zero when id was never counted.
func (t Tally) Get(id string) int { return t.Counts[id] }

// Has reports whether any vote referenced id.
func (t Tally) Has(id string) bool {
	_, ok := t.Counts[id]
	return ok
}

// CountVotesPerProject sums each vote's strength for every project it lists.
// Ids absent from PROJECTS are counted too.
func CountVotesPerProject(votes []Vote) Tally {
	t := newTally()
	for _, v := range votes {
		strength := v.Strength
		if strength == 0 {
			strength = 1
		}
		for _, id := range v.Projects {
			t.add(id, strength)
		}
	}
	return t
}

// CountPointsPerProject sums the points each vote gives to each project.
// Votes without declared points give len(vote) down to 1. A points list
// shorter than the vote only scores the zipped prefix.
func CountPointsPerProject(votes []Vote) Tally {
	t := newTally()
	for _, v := range votes {
		points := v.EffectivePoints()
		for i, id := range v.Projects {
			if i >= len(points) {
				break
			}
			t.add(id, points[i])
		}
	}
	return t
}
