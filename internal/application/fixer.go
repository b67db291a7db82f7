package application

import (
	"fmt"
	"slices"
	"strconv"

	"github.com/ahrav/pbcheck/internal/domain"
)

// FixOptions selects the repairs Fix applies.
type FixOptions struct {
	// Tally rewrites project votes and score columns from VOTES.
	Tally bool
	// Counts rewrites num_projects and num_votes.
	Counts bool
	// Commas rewrites budget, max_sum_cost and cost values that use a
	// comma as decimal separator.
	Commas bool
	// Sort orders projects by descending score, or votes without a score
	// column.
	Sort bool
}

// AllFixes enables every repair.
func AllFixes() FixOptions {
	return FixOptions{Tally: true, Counts: true, Commas: true, Sort: true}
}

// Fix returns a repaired copy of e and a description of each change. e is
// not modified. Without any change the returned election is e itself.
func Fix(e *domain.Election, opts FixOptions) (*domain.Election, []string) {
	var changes []string
	meta := e.Meta.Fields
	projects := slices.Clone(e.Projects)

	set := func(fields domain.Fields, label, name, value string) domain.Fields {
		old, ok := fields.Get(name)
		if ok && old == value {
			return fields
		}
		changes = append(changes, fmt.Sprintf("%s %s: %q -> %q", label, name, old, value))
		return fields.Set(name, value)
	}

	if opts.Commas {
		for _, name := range []string{"budget", "max_sum_cost"} {
			if v, ok := decimalWithoutComma(meta.Value(name)); ok {
				meta = set(meta, "META", name, v)
			}
		}
		for i, p := range projects {
			if v, ok := decimalWithoutComma(p.Fields.Value("cost")); ok {
				projects[i].Fields = set(p.Fields, "project "+p.ID, "cost", v)
			}
		}
	}

	hasVotes := len(e.VoteHeader) > 0
	if opts.Tally && hasVotes {
		votes := domain.CountVotesPerProject(e.Votes)
		points := domain.CountPointsPerProject(e.Votes)
		for i, p := range projects {
			if e.HasVotesField {
				projects[i].Fields = set(projects[i].Fields, "project "+p.ID, "votes", strconv.Itoa(votes.Get(p.ID)))
			}
			if e.HasScoreField {
				projects[i].Fields = set(projects[i].Fields, "project "+p.ID, "score", strconv.Itoa(points.Get(p.ID)))
			}
		}
	}

	if opts.Counts {
		meta = set(meta, "META", "num_projects", strconv.Itoa(len(projects)))
		if hasVotes {
			meta = set(meta, "META", "num_votes", strconv.Itoa(len(e.Votes)))
		}
	}

	for i, p := range projects {
		projects[i] = domain.NewProject(p.ID, p.Fields)
	}

	if opts.Sort {
		byScore := e.HasScoreField
		sorted := slices.Clone(projects)
		slices.SortStableFunc(sorted, func(a, b domain.Project) int {
			ra, rb := a.Result(byScore), b.Result(byScore)
			switch {
			case ra > rb:
				return -1
			case ra < rb:
				return 1
			}
			return 0
		})
		if !slices.EqualFunc(sorted, projects, func(a, b domain.Project) bool { return a.ID == b.ID }) {
			changes = append(changes, "projects sorted by "+resultColumn(byScore))
			projects = sorted
		}
	}

	if len(changes) == 0 {
		return e, nil
	}

	out := domain.NewElection(domain.NewMeta(meta), projects, e.Votes)
	out.ProjectHeader = e.ProjectHeader
	out.VoteHeader = e.VoteHeader
	out.HasVotesField = e.HasVotesField
	out.HasScoreField = e.HasScoreField
	out.HasSelectedField = e.HasSelectedField
	out.Notes = e.Notes
	return out, changes
}

func resultColumn(byScore bool) string {
	if byScore {
		return "score"
	}
	return "votes"
}

// decimalWithoutComma rewrites a comma-separated decimal with a dot. ok is
// false when raw has no comma or does not parse.
func decimalWithoutComma(raw string) (string, bool) {
	n := domain.ParseNumber(raw)
	if !n.Valid || !n.HasComma() {
		return "", false
	}
	return strconv.FormatFloat(n.Value, 'f', -1, 64), true
}
