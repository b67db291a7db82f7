// Package ports defines the interfaces between the application layer and
// the infrastructure that checks files, stores history and exports metrics.
package ports

import (
	"context"

	"github.com/ahrav/pbcheck/internal/domain"
)

// Check is one consistency check over a parsed .pb file.
// Checks are stateless and safe for concurrent use.
type Check interface {
	// Name returns the check's identifier within a plan.
	Name() string

	// Execute inspects the election held in state and returns a new State
	// with the check's findings appended. state must not be modified.
	//
	// An error means the check itself could not run (missing inputs, bad
	// configuration); inconsistencies in the file are findings, never errors.
	//
	//	next, err := check.Execute(ctx, state)
	//	if err != nil {
	//	    return state, fmt.Errorf("check %s: %w", check.Name(), err)
	//	}
	Execute(ctx context.Context, state domain.State) (domain.State, error)

	// Validate reports whether the check is configured well enough to run.
	Validate() error
}

// CheckFactory builds a check from its plan parameters.
type CheckFactory func(id string, config map[string]any) (Check, error)

// CheckRegistry maps check types to factories.
type CheckRegistry interface {
	// CreateCheck instantiates a check of checkType named id.
	CreateCheck(checkType, id string, config map[string]any) (Check, error)

	// RegisterCheckFactory adds or replaces the factory for checkType.
	RegisterCheckFactory(checkType string, factory CheckFactory) error

	// SupportedTypes lists the registered check types in sorted order.
	SupportedTypes() []string
}
