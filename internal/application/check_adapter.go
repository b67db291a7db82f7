package application

import (
	"context"
	"errors"
	"fmt"

	"github.com/ahrav/pbcheck/internal/domain"
	"github.com/ahrav/pbcheck/internal/ports"
)

// CheckAdapter wraps a ports.Check to implement ports.Executable so checks
// can be placed in pipelines, layers and graphs.
//
// A check that fails or panics does not abort the file: the adapter turns
// the failure into a check_error finding and passes the input State on.
// Only context cancellation is returned as an error.
type CheckAdapter struct {
	// check is the underlying check that performs the actual work when
	// Execute is called.
	check ports.Check
	// id is the unique identifier for this adapter within the plan.
	id string
}

// NewCheckAdapter creates a new adapter around check.
func NewCheckAdapter(check ports.Check, id string) *CheckAdapter {
	return &CheckAdapter{
		check: check,
		id:    id,
	}
}

// Execute runs the wrapped check.
func (ca *CheckAdapter) Execute(ctx context.Context, state domain.State) (out domain.State, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, err = ca.failed(state, fmt.Errorf("panic: %v", r)), nil
		}
	}()

	next, err := ca.check.Execute(ctx, state)
	if err == nil {
		return next, nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return state, err
	}
	return ca.failed(state, err), nil
}

func (ca *CheckAdapter) failed(state domain.State, err error) domain.State {
	return state.AddFindings(domain.NewFinding(domain.KindCheckError, "Check %s failed: %v", ca.id, err))
}

// ID returns the unique string identifier for this adapter.
func (ca *CheckAdapter) ID() string { return ca.id }

// Check returns the wrapped check.
func (ca *CheckAdapter) Check() ports.Check { return ca.check }
