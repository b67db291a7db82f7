package checks

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"

	"github.com/ahrav/pbcheck/internal/domain"
	"github.com/ahrav/pbcheck/internal/ports"
	"github.com/ahrav/pbcheck/internal/schema"
)

var _ ports.Check = (*SchemaCheck)(nil)

// ErrNilSchema is returned when a schema check is built without a schema.
var ErrNilSchema = errors.New("schema check requires a field schema")

// SchemaConfig controls how much of a file the schema check validates.
type SchemaConfig struct {
	// Exhaustive validates every PROJECTS and VOTES row instead of the
	// first one of each section.
	Exhaustive bool `yaml:"exhaustive" json:"exhaustive"`
}

// DefaultSchemaConfig samples the first row of PROJECTS and VOTES.
func DefaultSchemaConfig() SchemaConfig {
	return SchemaConfig{Exhaustive: false}
}

// SchemaCheck validates META and the PROJECTS and VOTES records against the
// field schema: presence, unknown names, order, datatype, emptiness and
// value checkers.
type SchemaCheck struct {
	base
	config SchemaConfig
	schema *schema.Schema
}

// NewSchemaCheck creates a SchemaCheck over s.
func NewSchemaCheck(name string, config SchemaConfig, s *schema.Schema) (*SchemaCheck, error) {
	b, err := newBase(name)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, ErrNilSchema
	}
	return &SchemaCheck{base: b, config: config, schema: s}, nil
}

// Execute appends the schema findings of the election.
func (c *SchemaCheck) Execute(ctx context.Context, state domain.State) (domain.State, error) {
	_, span := startSpan(ctx, TypeSchema, c.name)
	defer span.End()
	span.SetAttributes(attribute.Bool("config.exhaustive", c.config.Exhaustive))

	e, err := electionFrom(state, span)
	if err != nil {
		return state, err
	}
	if err := ctx.Err(); err != nil {
		return state, err
	}

	return emit(state, span, c.schema.ValidateElection(e, c.config.Exhaustive)), nil
}

// Validate reports whether the check has a schema.
func (c *SchemaCheck) Validate() error {
	if c.schema == nil {
		return ErrNilSchema
	}
	return nil
}

// SchemaFactory returns the registry factory for schema checks over s.
// The factory's defaults come from defaults, so a plan only needs to set
// what differs from the command line.
func SchemaFactory(s *schema.Schema, defaults SchemaConfig) ports.CheckFactory {
	return func(id string, config map[string]any) (ports.Check, error) {
		cfg := defaults
		if err := decodeConfig(config, &cfg); err != nil {
			return nil, err
		}
		return NewSchemaCheck(id, cfg, s)
	}
}
