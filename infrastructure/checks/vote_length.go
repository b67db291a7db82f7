package checks

import (
	"context"
	"slices"
	"strings"

	"github.com/ahrav/pbcheck/internal/domain"
	"github.com/ahrav/pbcheck/internal/ports"
)

var _ ports.Check = (*VoteLengthCheck)(nil)

// VoteLengthCheck validates each ballot: its length against max_length and
// min_length (or their _unit and _district variants), repeated projects,
// and the points column cumulative votes need.
type VoteLengthCheck struct {
	base
}

// NewVoteLengthCheck creates a VoteLengthCheck.
func NewVoteLengthCheck(name string) (*VoteLengthCheck, error) {
	b, err := newBase(name)
	if err != nil {
		return nil, err
	}
	return &VoteLengthCheck{base: b}, nil
}

// Execute reports ballot defects in VOTES order.
func (c *VoteLengthCheck) Execute(ctx context.Context, state domain.State) (domain.State, error) {
	_, span := startSpan(ctx, TypeVoteLength, c.name)
	defer span.End()

	e, err := electionFrom(state, span)
	if err != nil {
		return state, err
	}

	maxLen, minLen := e.Meta.MaxLength, e.Meta.MinLength
	cumulative := strings.EqualFold(e.Meta.VoteType, "cumulative")

	var findings []domain.Finding
	for i, v := range e.Votes {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return state, err
			}
		}

		if dups := duplicates(v.Projects); len(dups) > 0 {
			findings = append(findings, domain.NewFinding(domain.KindVoteDuplicatedProjects,
				"Duplicated projects in Voter's vote! Voter ID: %s, vote: [%s], duplicated: [%s]",
				v.VoterID, strings.Join(v.Projects, ", "), strings.Join(dups, ", ")))
		}
		if maxLen.Valid && int64(len(v.Projects)) > maxLen.Int() {
			findings = append(findings, domain.NewFinding(domain.KindVoteLengthExceeded,
				"Vote length exceeded! Voter ID: %s, max vote length: %s, number of voter votes: %d",
				v.VoterID, maxLen.Raw, len(v.Projects)))
		}
		if minLen.Valid && int64(len(v.Projects)) < minLen.Int() {
			findings = append(findings, domain.NewFinding(domain.KindVoteLengthTooShort,
				"Vote length is too short! Voter ID: %s, min vote length: %s, number of voter votes: %d",
				v.VoterID, minLen.Raw, len(v.Projects)))
		}
	}
	if cumulative && len(e.Votes) > 0 && !slices.Contains(e.VoteHeader, "points") {
		findings = append(findings, domain.NewFinding(domain.KindInvalidPoints,
			"Cumulative votes without points! VOTES has no points column"))
	}
	return emit(state, span, findings), nil
}

// duplicates returns the ids listed more than once, in first-seen order.
func duplicates(ids []string) []string {
	seen := make(map[string]int, len(ids))
	var dups []string
	for _, id := range ids {
		seen[id]++
		if seen[id] == 2 {
			dups = append(dups, id)
		}
	}
	return dups
}

// Validate always succeeds; the check has no configuration.
func (c *VoteLengthCheck) Validate() error { return nil }

// NewVoteLengthFromConfig is the registry factory for vote_length.
func NewVoteLengthFromConfig(id string, _ map[string]any) (ports.Check, error) {
	return NewVoteLengthCheck(id)
}
