package ports

import (
	"context"

	"github.com/ahrav/pbcheck/internal/domain"
)

// MergeStrategy combines the States produced by the members of a layer.
type MergeStrategy interface {
	// Merge folds states into baseState. states arrive in the order the
	// layer's members were declared, whatever order they finished in.
	// Implementations must be deterministic and must not modify inputs.
	Merge(baseState domain.State, states []domain.State) (domain.State, error)
}

// Executable is a node of a check plan: a single check, a pipeline, a
// layer or a whole graph.
type Executable interface {
	// Execute runs the node against state and returns the resulting State.
	// state is shared with concurrently running siblings and must be
	// treated as read-only; use domain.With or State.AddFindings.
	Execute(ctx context.Context, state domain.State) (domain.State, error)

	// ID returns the node's identifier, unique within its plan.
	ID() string
}

// Pipeline runs its members one after another, feeding each the State
// produced by the previous one.
type Pipeline interface {
	Executable

	// Add appends exec. Duplicate IDs are rejected.
	Add(exec Executable) error

	// Executables returns a copy of the members in execution order.
	Executables() []Executable
}

// Layer runs its members concurrently on the same input State and merges
// their results.
type Layer interface {
	Executable

	// Add appends exec. Duplicate IDs are rejected.
	Add(exec Executable) error

	// Executables returns a copy of the members in declaration order.
	Executables() []Executable

	// SetMergeStrategy replaces the strategy used to combine results.
	SetMergeStrategy(strategy MergeStrategy)
}

// Graph orders plan nodes by their dependencies.
type Graph interface {
	// AddNode registers exec. Its ID must be unique in the graph.
	AddNode(exec Executable) error

	// AddEdge makes targetID wait for sourceID. Edges that would close a
	// cycle are rejected.
	AddEdge(sourceID, targetID string) error

	// TopologicalSort returns the nodes with dependencies first. Ties are
	// broken by the order in which nodes were added.
	TopologicalSort() ([]Executable, error)

	// HasCycle reports whether the edges contain a cycle.
	HasCycle() bool

	// GetNode returns the node registered under id. The returned node is
	// shared with the graph and must not be mutated.
	GetNode(id string) (Executable, bool)
}
