package checks

import (
	"context"

	"go.opentelemetry.io/otel/attribute"

	"github.com/ahrav/pbcheck/internal/domain"
	"github.com/ahrav/pbcheck/internal/ports"
)

var _ ports.Check = (*TallyCheck)(nil)

// TallyCheck recomputes votes and points per project from VOTES and stores
// them under domain.KeyVoteTally and domain.KeyScoreTally. It reports
// nothing itself; votes_consistency compares the tallies with PROJECTS.
type TallyCheck struct {
	base
}

// NewTallyCheck creates a TallyCheck.
func NewTallyCheck(name string) (*TallyCheck, error) {
	b, err := newBase(name)
	if err != nil {
		return nil, err
	}
	return &TallyCheck{base: b}, nil
}

// Execute stores both tallies in the returned State.
func (c *TallyCheck) Execute(ctx context.Context, state domain.State) (domain.State, error) {
	_, span := startSpan(ctx, TypeTally, c.name)
	defer span.End()

	e, err := electionFrom(state, span)
	if err != nil {
		return state, err
	}

	votes := domain.CountVotesPerProject(e.Votes)
	score := domain.CountPointsPerProject(e.Votes)
	span.SetAttributes(
		attribute.Int("tally.projects", len(votes.Order)),
		attribute.Int("tally.votes", len(e.Votes)),
	)

	state = domain.With(state, domain.KeyVoteTally, votes)
	return domain.With(state, domain.KeyScoreTally, score), nil
}

// Validate always succeeds; the check has no configuration.
func (c *TallyCheck) Validate() error { return nil }

// NewTallyFromConfig is the registry factory for tally.
func NewTallyFromConfig(id string, _ map[string]any) (ports.Check, error) {
	return NewTallyCheck(id)
}
