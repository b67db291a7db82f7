package checks

import (
	"context"
	"fmt"

	"github.com/ahrav/pbcheck/internal/domain"
	"github.com/ahrav/pbcheck/internal/ports"
)

var _ ports.Check = (*VotesConsistencyCheck)(nil)

// VotesConsistencyCheck compares the votes and score declared in PROJECTS
// with the tallies recomputed from VOTES. It needs the tally check to have
// run first.
type VotesConsistencyCheck struct {
	base
}

// NewVotesConsistencyCheck creates a VotesConsistencyCheck.
func NewVotesConsistencyCheck(name string) (*VotesConsistencyCheck, error) {
	b, err := newBase(name)
	if err != nil {
		return nil, err
	}
	return &VotesConsistencyCheck{base: b}, nil
}

// Execute reports declared totals that differ from the recomputed ones,
// votes for projects missing from PROJECTS and projects nobody voted for.
func (c *VotesConsistencyCheck) Execute(ctx context.Context, state domain.State) (domain.State, error) {
	_, span := startSpan(ctx, TypeVotesConsistency, c.name)
	defer span.End()

	e, err := electionFrom(state, span)
	if err != nil {
		return state, err
	}

	if !e.HasVotesField && !e.HasScoreField {
		return emit(state, span, []domain.Finding{
			domain.NewFinding(domain.KindNoVotesInProjects, "There are no votes counted in PROJECTS section!"),
		}), nil
	}

	votes, ok := domain.Get(state, domain.KeyVoteTally)
	if !ok {
		err := fmt.Errorf("%s: %w", domain.KeyVoteTally.Name(), domain.ErrMissingState)
		span.RecordError(err)
		return state, err
	}
	score, ok := domain.Get(state, domain.KeyScoreTally)
	if !ok {
		err := fmt.Errorf("%s: %w", domain.KeyScoreTally.Name(), domain.ErrMissingState)
		span.RecordError(err)
		return state, err
	}

	var findings []domain.Finding
	for _, p := range e.Projects {
		if votes.Get(p.ID) == 0 {
			findings = append(findings, domain.NewFinding(domain.KindProjectWithNoVotes,
				"Project with no votes! It's possible, that this project was not approved for voting! Project number: %s", p.ID))
		}
	}
	if e.HasVotesField {
		findings = append(findings, compareTally(e, votes, "votes", domain.KindDifferentValuesInVotes,
			func(p domain.Project) domain.Number { return p.Votes })...)
	}
	if e.HasScoreField {
		findings = append(findings, compareTally(e, score, "score", domain.KindDifferentValuesInScore,
			func(p domain.Project) domain.Number { return p.Score })...)
	}
	return emit(state, span, findings), nil
}

// compareTally reports every project whose declared value differs from the
// tally, then every tallied id absent from PROJECTS.
func compareTally(e *domain.Election, t domain.Tally, label string, kind domain.FindingKind, declared func(domain.Project) domain.Number) []domain.Finding {
	var findings []domain.Finding
	for _, p := range e.Projects {
		file := declared(p)
		if file.Int() != int64(t.Get(p.ID)) {
			findings = append(findings, differentValues(kind, label, p.ID, file.Int(), t.Get(p.ID)))
		}
	}
	for _, id := range t.Order {
		if _, ok := e.Project(id); !ok {
			findings = append(findings, differentValues(kind, label, id, 0, t.Get(id)))
		}
	}
	return findings
}

func differentValues(kind domain.FindingKind, label, id string, file int64, counted int) domain.Finding {
	return domain.NewFinding(kind, "Different values in %s! Project number: %s File %s: %d vs counted_%s: %d",
		label, id, label, file, label, counted)
}

// Validate always succeeds; the check has no configuration.
func (c *VotesConsistencyCheck) Validate() error { return nil }

// NewVotesConsistencyFromConfig is the registry factory for votes_consistency.
func NewVotesConsistencyFromConfig(id string, _ map[string]any) (ports.Check, error) {
	return NewVotesConsistencyCheck(id)
}
