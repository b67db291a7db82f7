package checks

import (
	"context"

	"github.com/ahrav/pbcheck/internal/domain"
	"github.com/ahrav/pbcheck/internal/ports"
)

var _ ports.Check = (*DateRangeCheck)(nil)

// DateRangeCheck flags elections whose date_begin is after date_end.
// Unparseable dates are left to the schema check.
type DateRangeCheck struct {
	base
}

// NewDateRangeCheck creates a DateRangeCheck.
func NewDateRangeCheck(name string) (*DateRangeCheck, error) {
	b, err := newBase(name)
	if err != nil {
		return nil, err
	}
	return &DateRangeCheck{base: b}, nil
}

// Execute compares the META dates.
func (c *DateRangeCheck) Execute(ctx context.Context, state domain.State) (domain.State, error) {
	_, span := startSpan(ctx, TypeDateRange, c.name)
	defer span.End()

	e, err := electionFrom(state, span)
	if err != nil {
		return state, err
	}

	begin, errBegin := domain.ParseElectionDate(e.Meta.DateBegin)
	end, errEnd := domain.ParseElectionDate(e.Meta.DateEnd)
	if errBegin != nil || errEnd != nil || !begin.After(end) {
		return emit(state, span, nil), nil
	}

	return emit(state, span, []domain.Finding{
		domain.NewFinding(domain.KindDateRangeMismatch,
			"Date range mismatch! date_begin: %s is after date_end: %s",
			e.Meta.DateBegin, e.Meta.DateEnd),
	}), nil
}

// Validate always succeeds; the check has no configuration.
func (c *DateRangeCheck) Validate() error { return nil }

// NewDateRangeFromConfig is the registry factory for date_range.
func NewDateRangeFromConfig(id string, _ map[string]any) (ports.Check, error) {
	return NewDateRangeCheck(id)
}
