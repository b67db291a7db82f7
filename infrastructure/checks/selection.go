package checks

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/ahrav/pbcheck/internal/domain"
	"github.com/ahrav/pbcheck/internal/ports"
)

var _ ports.Check = (*SelectionCheck)(nil)

// SelectionConfig configures the selection replay.
type SelectionConfig struct {
	RuleConfig `yaml:",inline"`
}

// DefaultSelectionConfig returns the default rule configuration.
func DefaultSelectionConfig() SelectionConfig {
	return SelectionConfig{RuleConfig: DefaultRuleConfig()}
}

// SelectionCheck replays the file's funding rule and reports projects whose
// declared selection the replay does not reproduce.
type SelectionCheck struct {
	base
	config SelectionConfig
}

// NewSelectionCheck creates a SelectionCheck.
func NewSelectionCheck(name string, config SelectionConfig) (*SelectionCheck, error) {
	b, err := newBase(name)
	if err != nil {
		return nil, err
	}
	if err := validate.Struct(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &SelectionCheck{base: b, config: config}, nil
}

// Execute replays the rule. Files without a selected column and rules the
// replayer does not model yield an informational finding instead.
func (c *SelectionCheck) Execute(ctx context.Context, state domain.State) (domain.State, error) {
	_, span := startSpan(ctx, TypeSelection, c.name)
	defer span.End()

	e, err := electionFrom(state, span)
	if err != nil {
		return state, err
	}

	if !e.HasSelectedField {
		return emit(state, span, []domain.Finding{
			domain.NewFinding(domain.KindNoSelectedField, "There is no selected field in PROJECTS section!"),
		}), nil
	}
	if !e.Meta.Budget.Valid {
		err := fmt.Errorf("budget %q: %w", e.Meta.Budget.Raw, domain.ErrInvalidNumber)
		span.RecordError(err)
		return state, err
	}

	rule := c.config.Resolve(e.Meta)
	span.SetAttributes(attribute.String("selection.rule", rule.Name()))

	replay, ok := domain.ReplaySelection(rule, e, e.Meta.Budget.Value)
	if !ok {
		return emit(state, span, []domain.Finding{
			domain.NewFinding(domain.KindRuleNotImplemented,
				"Selection rule %q is not implemented, selected projects were not verified", rule.Name()),
		}), nil
	}

	kind, label := domain.KindGreedyRuleNotFollowed, "Greedy"
	if _, partial := rule.(domain.PartialThreshold); partial {
		kind, label = domain.KindPoznanRuleNotFollowed, "Poznań"
	}

	var findings []domain.Finding
	if len(replay.Missing) > 0 {
		findings = append(findings, domain.NewFinding(kind,
			"Wrong selected projects if %s rule applied! Projects not selected but should be: %s",
			label, strings.Join(replay.Missing, ", ")))
	}
	if len(replay.Unexpected) > 0 {
		findings = append(findings, domain.NewFinding(kind,
			"Wrong selected projects if %s rule applied! Projects selected but should not: %s",
			label, strings.Join(replay.Unexpected, ", ")))
	}
	return emit(state, span, findings), nil
}

// Validate checks the configuration.
func (c *SelectionCheck) Validate() error {
	if err := validate.Struct(c.config); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	return nil
}

// SelectionFactory returns the registry factory for selection checks.
func SelectionFactory(defaults SelectionConfig) ports.CheckFactory {
	return func(id string, config map[string]any) (ports.Check, error) {
		cfg := defaults
		if err := decodeConfig(config, &cfg); err != nil {
			return nil, err
		}
		return NewSelectionCheck(id, cfg)
	}
}
