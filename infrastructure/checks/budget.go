package checks

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/ahrav/pbcheck/internal/domain"
	"github.com/ahrav/pbcheck/internal/ports"
)

var _ ports.Check = (*BudgetCheck)(nil)

// BudgetConfig configures the budget check.
type BudgetConfig struct {
	RuleConfig `yaml:",inline"`

	// UnusedBudget reports unselected projects that still fit in the budget
	// left after the selected ones. It only applies to greedy files.
	UnusedBudget bool `yaml:"unused_budget" json:"unused_budget"`
}

// DefaultBudgetConfig returns the default rule configuration with the
// unused budget check enabled.
func DefaultBudgetConfig() BudgetConfig {
	return BudgetConfig{RuleConfig: DefaultRuleConfig(), UnusedBudget: true}
}

// BudgetCheck does the budget arithmetic of a file: spending of selected
// projects against the floored budget, projects without a cost or costing
// more than the budget, budgets that fund everything and money left unused.
type BudgetCheck struct {
	base
	config BudgetConfig
}

// NewBudgetCheck creates a BudgetCheck.
func NewBudgetCheck(name string, config BudgetConfig) (*BudgetCheck, error) {
	b, err := newBase(name)
	if err != nil {
		return nil, err
	}
	if err := validate.Struct(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &BudgetCheck{base: b, config: config}, nil
}

// Execute reports the budget findings of the election. A budget that does
// not parse is an error.
func (c *BudgetCheck) Execute(ctx context.Context, state domain.State) (domain.State, error) {
	_, span := startSpan(ctx, TypeBudget, c.name)
	defer span.End()

	e, err := electionFrom(state, span)
	if err != nil {
		return state, err
	}
	if !e.Meta.Budget.Valid {
		err := fmt.Errorf("budget %q: %w", e.Meta.Budget.Raw, domain.ErrInvalidNumber)
		span.RecordError(err)
		return state, err
	}

	available := e.Meta.Budget.Floor()
	var (
		findings []domain.Finding
		spent    float64
		total    float64
	)
	for _, p := range e.Projects {
		cost := math.Trunc(p.Cost.Value)
		total += cost
		if p.HasSelected && p.Selected == domain.Selected {
			spent += cost
		}
		switch {
		case cost == 0:
			findings = append(findings, domain.NewFinding(domain.KindProjectWithNoCost,
				"There is project with no cost! It's possible that it was not approved for voting! project: %s", p.Name))
		case cost > float64(available):
			findings = append(findings, domain.NewFinding(domain.KindSingleProjectOverBudget,
				"Single project exceeded whole budget! Budget available: %d, project: %s cost of project: %s",
				available, p.Name, domain.FormatCost(cost)))
		}
	}

	if spent > float64(available) {
		findings = append(findings, domain.NewFinding(domain.KindBudgetExceeded,
			"Cost of selected projects exceeded budget! Budget: %d, cost of projects: %s",
			available, domain.FormatCost(spent)))
	}
	if float64(available) > total && !e.Meta.FullyFunded {
		findings = append(findings, domain.NewFinding(domain.KindAllProjectsFunded,
			"Budget is higher than cost of all projects! Budget: %s, cost of all projects: %s",
			thousands(available), thousands(int64(total))))
	}
	if f, ok := c.unused(e, available); ok {
		findings = append(findings, f)
	}

	return emit(state, span, findings), nil
}

// unused reports greedy files where an unselected project costs no more
// than what the selected ones left over.
func (c *BudgetCheck) unused(e *domain.Election, available int64) (domain.Finding, bool) {
	if !c.config.UnusedBudget || !e.HasSelectedField || e.Meta.FullyFunded {
		return domain.Finding{}, false
	}
	if _, greedy := c.config.Resolve(e.Meta).(domain.Greedy); !greedy {
		return domain.Finding{}, false
	}

	remaining := float64(available)
	for _, p := range e.Projects {
		if p.HasSelected && p.Selected != domain.NotSelected {
			remaining -= math.Trunc(p.Cost.Value)
		}
	}
	if remaining <= 0 {
		return domain.Finding{}, false
	}

	var fits []string
	for _, p := range e.Projects {
		cost := math.Trunc(p.Cost.Value)
		if p.HasSelected && p.Selected == domain.NotSelected && cost > 0 && cost <= remaining {
			fits = append(fits, p.ID)
		}
	}
	if len(fits) == 0 {
		return domain.Finding{}, false
	}
	return domain.NewFinding(domain.KindUnusedBudget,
		"Unused budget could fund more projects! Budget left: %s, projects that fit: %s",
		domain.FormatCost(remaining), strings.Join(fits, ", ")), true
}

// Validate checks the configuration.
func (c *BudgetCheck) Validate() error {
	if err := validate.Struct(c.config); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	return nil
}

// BudgetFactory returns the registry factory for budget checks. Plans
// override defaults key by key.
func BudgetFactory(defaults BudgetConfig) ports.CheckFactory {
	return func(id string, config map[string]any) (ports.Check, error) {
		cfg := defaults
		if err := decodeConfig(config, &cfg); err != nil {
			return nil, err
		}
		return NewBudgetCheck(id, cfg)
	}
}

// thousands groups digits by three with spaces, as budgets are written in
// the source documents.
func thousands(n int64) string { return humanize.FormatInteger("# ###.", int(n)) }
