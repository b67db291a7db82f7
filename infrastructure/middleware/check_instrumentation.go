package middleware

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ahrav/pbcheck/internal/domain"
	"github.com/ahrav/pbcheck/internal/ports"
)

// CheckObserver provides observability hooks around a check's execution.
// Implementations can add tracing, metrics and logging without coupling
// those concerns to the checks themselves.
type CheckObserver interface {
	// PreCheck is called before the check runs. The returned context is
	// passed to the check, so observers can attach spans to it.
	PreCheck(ctx context.Context, check string) context.Context

	// PostCheck is called after the check with the findings it added, how
	// long it took and its error.
	PostCheck(ctx context.Context, check string, added []domain.Finding, elapsed time.Duration, err error)
}

// CheckInstrumentation wraps a check with latency metrics, a count of
// check failures and an optional observer. It holds no mutable state and
// is safe for the concurrent use layers make of checks.
type CheckInstrumentation struct {
	// next is the wrapped check.
	next ports.Check

	// metrics receives latencies and failure counts when set.
	metrics ports.MetricsCollector

	// observer provides optional observability hooks for tracing.
	observer CheckObserver
}

// Compile-time verification that CheckInstrumentation is a Check.
var _ ports.Check = (*CheckInstrumentation)(nil)

// MetricCheckErrors counts checks that returned an error, labeled with
// "check".
const MetricCheckErrors = "check_errors_total"

// NewCheckInstrumentation wraps next. metrics and observer may be nil.
func NewCheckInstrumentation(next ports.Check, metrics ports.MetricsCollector, observer CheckObserver) *CheckInstrumentation {
	if next == nil {
		panic("check instrumentation: next check is required")
	}
	return &CheckInstrumentation{
		next:     next,
		metrics:  metrics,
		observer: observer,
	}
}

// Instrument returns a wrapper suitable for application.WithCheckWrapper.
func Instrument(metrics ports.MetricsCollector, observer CheckObserver) func(ports.Check) ports.Check {
	return func(c ports.Check) ports.Check {
		return NewCheckInstrumentation(c, metrics, observer)
	}
}

// Name returns the wrapped check's name so plans and findings refer to the
// check, not the wrapper.
func (ci *CheckInstrumentation) Name() string { return ci.next.Name() }

// Execute runs the wrapped check, timing it and reporting the findings it
// added to the observer.
func (ci *CheckInstrumentation) Execute(ctx context.Context, state domain.State) (domain.State, error) {
	name := ci.next.Name()
	if ci.observer != nil {
		ctx = ci.observer.PreCheck(ctx, name)
	}

	before := len(state.Findings())
	start := time.Now()
	newState, err := ci.next.Execute(ctx, state)
	elapsed := time.Since(start)

	var added []domain.Finding
	if err == nil {
		if all := newState.Findings(); len(all) > before {
			added = all[before:]
		}
	}

	if ci.metrics != nil {
		labels := map[string]string{"check": name}
		ci.metrics.RecordLatency(ports.OpCheck, elapsed, labels)
		if err != nil && !errors.Is(err, context.Canceled) {
			ci.metrics.RecordCounter(MetricCheckErrors, 1, labels)
		}
	}
	if ci.observer != nil {
		ci.observer.PostCheck(ctx, name, added, elapsed, err)
	}

	return newState, err
}

// Validate checks the wrapper and then the wrapped check.
func (ci *CheckInstrumentation) Validate() error {
	if ci.next == nil {
		return fmt.Errorf("check instrumentation: next check is required")
	}
	return ci.next.Validate()
}

// Unwrap returns the wrapped check.
func (ci *CheckInstrumentation) Unwrap() ports.Check { return ci.next }
