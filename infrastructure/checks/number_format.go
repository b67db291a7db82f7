package checks

import (
	"context"

	"github.com/ahrav/pbcheck/internal/domain"
	"github.com/ahrav/pbcheck/internal/ports"
)

var _ ports.Check = (*NumberFormatCheck)(nil)

// NumberFormatCheck flags decimal commas in budget, max_sum_cost and
// project costs. The values still parse; the published format requires a
// decimal point.
type NumberFormatCheck struct {
	base
}

// NewNumberFormatCheck creates a NumberFormatCheck.
func NewNumberFormatCheck(name string) (*NumberFormatCheck, error) {
	b, err := newBase(name)
	if err != nil {
		return nil, err
	}
	return &NumberFormatCheck{base: b}, nil
}

// Execute reports every comma in a float field.
func (c *NumberFormatCheck) Execute(ctx context.Context, state domain.State) (domain.State, error) {
	_, span := startSpan(ctx, TypeNumberFormat, c.name)
	defer span.End()

	e, err := electionFrom(state, span)
	if err != nil {
		return state, err
	}

	var findings []domain.Finding
	if e.Meta.Budget.HasComma() {
		findings = append(findings, domain.NewFinding(domain.KindCommaInFloat,
			"There is a comma in a float number! in budget"))
	}
	if e.Meta.MaxSumCost.HasComma() {
		findings = append(findings, domain.NewFinding(domain.KindCommaInFloat,
			"There is a comma in a float number! in max_sum_cost"))
	}
	for _, p := range e.Projects {
		if p.Cost.HasComma() {
			findings = append(findings, domain.NewFinding(domain.KindCommaInFloat,
				"There is a comma in a float number! in project: %s, cost: %s", p.ID, p.Cost.Raw))
		}
	}
	return emit(state, span, findings), nil
}

// Validate always succeeds; the check has no configuration.
func (c *NumberFormatCheck) Validate() error { return nil }

// NewNumberFormatFromConfig is the registry factory for number_format.
func NewNumberFormatFromConfig(id string, _ map[string]any) (ports.Check, error) {
	return NewNumberFormatCheck(id)
}
