package checks

import (
	"context"

	"github.com/ahrav/pbcheck/internal/domain"
	"github.com/ahrav/pbcheck/internal/ports"
)

var _ ports.Check = (*CountsCheck)(nil)

// CountsCheck compares num_votes and num_projects in META with the number
// of VOTES and PROJECTS rows. Missing or non-numeric counts are left to the
// schema check.
type CountsCheck struct {
	base
}

// NewCountsCheck creates a CountsCheck.
func NewCountsCheck(name string) (*CountsCheck, error) {
	b, err := newBase(name)
	if err != nil {
		return nil, err
	}
	return &CountsCheck{base: b}, nil
}

// Execute reports count mismatches.
func (c *CountsCheck) Execute(ctx context.Context, state domain.State) (domain.State, error) {
	_, span := startSpan(ctx, TypeCounts, c.name)
	defer span.End()

	e, err := electionFrom(state, span)
	if err != nil {
		return state, err
	}

	var findings []domain.Finding
	if n := e.Meta.NumVotes; n.Valid && n.Int() != int64(len(e.Votes)) {
		findings = append(findings, domain.NewFinding(domain.KindDifferentNumberVotes,
			"Different number of votes! In meta: %s vs counted in file (number of rows in VOTES section): %d",
			n.Raw, len(e.Votes)))
	}
	if n := e.Meta.NumProjects; n.Valid && n.Int() != int64(len(e.Projects)) {
		findings = append(findings, domain.NewFinding(domain.KindDifferentNumberProjects,
			"Different number of projects! In meta: %s vs counted in file (number of rows in PROJECTS section): %d",
			n.Raw, len(e.Projects)))
	}
	return emit(state, span, findings), nil
}

// Validate always succeeds; the check has no configuration.
func (c *CountsCheck) Validate() error { return nil }

// NewCountsFromConfig is the registry factory for counts.
func NewCountsFromConfig(id string, _ map[string]any) (ports.Check, error) {
	return NewCountsCheck(id)
}
