package checks

import (
	"context"

	"github.com/ahrav/pbcheck/internal/domain"
	"github.com/ahrav/pbcheck/internal/ports"
)

var _ ports.Check = (*ParseNotesCheck)(nil)

// ParseNotesCheck turns the row defects the reader kept (empty lines,
// malformed rows, unusable points) into findings.
type ParseNotesCheck struct {
	base
}

// NewParseNotesCheck creates a ParseNotesCheck.
func NewParseNotesCheck(name string) (*ParseNotesCheck, error) {
	b, err := newBase(name)
	if err != nil {
		return nil, err
	}
	return &ParseNotesCheck{base: b}, nil
}

// Execute reports one finding per parse note, in line order.
func (c *ParseNotesCheck) Execute(ctx context.Context, state domain.State) (domain.State, error) {
	_, span := startSpan(ctx, TypeParseNotes, c.name)
	defer span.End()

	e, err := electionFrom(state, span)
	if err != nil {
		return state, err
	}

	findings := make([]domain.Finding, 0, len(e.Notes))
	for _, n := range e.Notes {
		findings = append(findings, domain.Finding{Kind: n.Kind, Detail: n.Detail})
	}
	return emit(state, span, findings), nil
}

// Validate always succeeds; the check has no configuration.
func (c *ParseNotesCheck) Validate() error { return nil }

// NewParseNotesFromConfig is the registry factory for parse_notes.
func NewParseNotesFromConfig(id string, _ map[string]any) (ports.Check, error) {
	return NewParseNotesCheck(id)
}
