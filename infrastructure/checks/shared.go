// Package checks provides the consistency checks that implement ports.Check.
// Each check reads the parsed election from the State, appends its findings
// and returns the new State.
package checks

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gopkg.in/yaml.v3"

	"github.com/ahrav/pbcheck/internal/domain"
)

// Check type names as they appear in check plans.
const (
	TypeParseNotes       = "parse_notes"
	TypeTally            = "tally"
	TypeSchema           = "schema"
	TypeDateRange        = "date_range"
	TypeNumberFormat     = "number_format"
	TypeBudget           = "budget"
	TypeCounts           = "counts"
	TypeVoteLength       = "vote_length"
	TypeVotesConsistency = "votes_consistency"
	TypeSelection        = "selection"
)

// ErrEmptyCheckName is returned when a check is created without a name.
var ErrEmptyCheckName = errors.New("check name cannot be empty")

// Package-level validator instance for configuration validation.
var validate = validator.New()

// tracer is shared by every check; spans carry the check type and id.
var tracer = otel.Tracer("pbcheck/checks")

// RuleConfig selects the rule the selections of a file are replayed
// against. It is shared by the budget and selection checks.
type RuleConfig struct {
	// PartialThresholdUnits lists the units whose selections follow the
	// partial threshold rule regardless of META.
	PartialThresholdUnits []string `yaml:"partial_threshold_units" json:"partial_threshold_units" validate:"dive,required"`

	// ThresholdFraction is the share of a project's cost the remaining
	// budget must cover for a threshold exception.
	ThresholdFraction float64 `yaml:"threshold_fraction" json:"threshold_fraction" validate:"gt=0,lte=1"`
}

// DefaultRuleConfig returns the rule configuration used by the Poznań
// municipal elections.
func DefaultRuleConfig() RuleConfig {
	return RuleConfig{
		PartialThresholdUnits: []string{"Poznań"},
		ThresholdFraction:     0.8,
	}
}

// Resolve picks the rule for meta.
func (c RuleConfig) Resolve(meta domain.Meta) domain.Rule {
	return domain.ResolveRule(meta, c.PartialThresholdUnits, c.ThresholdFraction)
}

// decodeConfig overlays a configuration map onto cfg, which holds the
// defaults, and validates the result.
func decodeConfig[T any](config map[string]any, cfg *T) error {
	if len(config) > 0 {
		data, err := yaml.Marshal(config)
		if err != nil {
			return fmt.Errorf("marshal config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("parse config: %w", err)
		}
	}
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	return nil
}

// startSpan opens the Execute span of a check.
func startSpan(ctx context.Context, checkType, name string) (context.Context, trace.Span) {
	return tracer.Start(ctx, checkType+".Execute",
		trace.WithAttributes(
			attribute.String("unit.type", checkType),
			attribute.String("unit.id", name),
		),
	)
}

// electionFrom returns the parsed election of the State.
func electionFrom(state domain.State, span trace.Span) (*domain.Election, error) {
	e, ok := domain.Get(state, domain.KeyElection)
	if !ok || e == nil {
		err := fmt.Errorf("election: %w", domain.ErrMissingState)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return e, nil
}

// emit appends findings to state and records their number on the span.
func emit(state domain.State, span trace.Span, findings []domain.Finding) domain.State {
	span.SetAttributes(attribute.Int("check.findings", len(findings)))
	return state.AddFindings(findings...)
}

// base carries the name every check reports.
type base struct {
	name string
}

func newBase(name string) (base, error) {
	if name == "" {
		return base{}, ErrEmptyCheckName
	}
	return base{name: name}, nil
}

// Name returns the check's id in the plan.
func (b base) Name() string { return b.name }
