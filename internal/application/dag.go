// Package application assembles check plans and runs them over batches of
// .pb files.
package application

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"slices"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/ahrav/pbcheck/internal/domain"
	"github.com/ahrav/pbcheck/internal/ports"
)

// members is the ordered, ID-unique member list shared by Pipeline and Layer.
type members struct {
	owner string
	mu    sync.RWMutex
	list  []ports.Executable
	ids   map[string]struct{}
}

func (m *members) add(exec ports.Executable) error {
	if exec == nil {
		return fmt.Errorf("%s: nil member", m.owner)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	id := exec.ID()
	if _, dup := m.ids[id]; dup {
		return fmt.Errorf("%s already contains %s", m.owner, id)
	}
	if m.ids == nil {
		m.ids = make(map[string]struct{})
	}
	m.ids[id] = struct{}{}
	m.list = append(m.list, exec)
	return nil
}

func (m *members) snapshot() []ports.Executable {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.list)
}

// Pipeline runs its members one after another, each seeing the State the
// previous one returned.
type Pipeline struct {
	id string
	members
}

// NewPipeline returns an empty pipeline.
func NewPipeline(id string) *Pipeline {
	return &Pipeline{id: id, members: members{owner: "pipeline " + id}}
}

// ID implements ports.Executable.
func (p *Pipeline) ID() string { return p.id }

// Add appends exec to the end of the pipeline.
func (p *Pipeline) Add(exec ports.Executable) error { return p.add(exec) }

// Executables returns the members in execution order.
func (p *Pipeline) Executables() []ports.Executable { return p.snapshot() }

// Execute threads state through every member. It stops at the first error
// and between members once ctx is done, returning the last good State.
func (p *Pipeline) Execute(ctx context.Context, state domain.State) (domain.State, error) {
	for _, exec := range p.snapshot() {
		if err := ctx.Err(); err != nil {
			return state, err
		}
		next, err := exec.Execute(ctx, state)
		if err != nil {
			return state, fmt.Errorf("pipeline %s: %s: %w", p.id, exec.ID(), err)
		}
		state = next
	}
	return state, nil
}

// Layer runs its members concurrently on the same input State and merges
// their results.
type Layer struct {
	id string
	members

	cfgMu    sync.RWMutex
	strategy ports.MergeStrategy
	limit    int
}

// NewLayer returns an empty layer running up to twice the CPU count of
// members at once.
func NewLayer(id string) *Layer {
	return &Layer{
		id:      id,
		members: members{owner: "layer " + id},
		limit:   runtime.NumCPU() * 2,
	}
}

// ID implements ports.Executable.
func (l *Layer) ID() string { return l.id }

// Add appends exec to the layer.
func (l *Layer) Add(exec ports.Executable) error { return l.add(exec) }

// Executables returns the members in declaration order.
func (l *Layer) Executables() []ports.Executable { return l.snapshot() }

// SetMergeStrategy replaces the merge strategy. nil restores FindingsMerge.
func (l *Layer) SetMergeStrategy(strategy ports.MergeStrategy) {
	l.cfgMu.Lock()
	l.strategy = strategy
	l.cfgMu.Unlock()
}

// SetConcurrencyLimit bounds how many members run at once. n <= 0 means
// twice the CPU count.
func (l *Layer) SetConcurrencyLimit(n int) {
	l.cfgMu.Lock()
	l.limit = n
	l.cfgMu.Unlock()
}

// Execute runs every member and merges the outputs in declaration order.
// A failing member does not stop its siblings; all failures are joined.
func (l *Layer) Execute(ctx context.Context, state domain.State) (domain.State, error) {
	execs := l.snapshot()
	if len(execs) == 0 {
		return state, nil
	}

	l.cfgMu.RLock()
	strategy, limit := l.strategy, l.limit
	l.cfgMu.RUnlock()
	if strategy == nil {
		strategy = FindingsMerge{}
	}
	if limit <= 0 {
		limit = runtime.NumCPU() * 2
	}

	outs := make([]domain.State, len(execs))
	errs := make([]error, len(execs))

	var g errgroup.Group
	g.SetLimit(limit)
	for i, exec := range execs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				errs[i] = err
				return nil
			}
			out, err := exec.Execute(ctx, state)
			if err != nil {
				errs[i] = fmt.Errorf("%s: %w", exec.ID(), err)
				return nil
			}
			outs[i] = out
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return state, err
	}
	if joined := errors.Join(errs...); joined != nil {
		failed := 0
		for _, err := range errs {
			if err != nil {
				failed++
			}
		}
		return state, fmt.Errorf("layer %s: %d of %d members failed: %w", l.id, failed, len(execs), joined)
	}

	merged, err := strategy.Merge(state, outs)
	if err != nil {
		return state, fmt.Errorf("layer %s: merge: %w", l.id, err)
	}
	return merged, nil
}

// Graph orders top-level plan nodes by their dependency edges.
type Graph struct {
	mu    sync.RWMutex
	nodes map[string]ports.Executable
	// order is insertion order; it breaks ties between ready nodes.
	order []string
	next  map[string][]string
}

// NewGraph returns an empty graph.
func NewGraph() *Graph {
	return &Graph{
		nodes: make(map[string]ports.Executable),
		next:  make(map[string][]string),
	}
}

// ID implements ports.Executable.
func (g *Graph) ID() string { return "graph" }

// AddNode registers exec under its ID.
func (g *Graph) AddNode(exec ports.Executable) error {
	if exec == nil {
		return errors.New("graph: nil node")
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	id := exec.ID()
	if _, dup := g.nodes[id]; dup {
		return fmt.Errorf("graph already contains node %s", id)
	}
	g.nodes[id] = exec
	g.order = append(g.order, id)
	return nil
}

// AddEdge makes to run after from. The edge is not kept if it would close
// a cycle.
func (g *Graph) AddEdge(from, to string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, id := range []string{from, to} {
		if _, ok := g.nodes[id]; !ok {
			return fmt.Errorf("unknown node %s", id)
		}
	}
	if slices.Contains(g.next[from], to) {
		return fmt.Errorf("edge %s -> %s already exists", from, to)
	}

	g.next[from] = append(g.next[from], to)
	if _, ok := g.sortLocked(); !ok {
		g.next[from] = g.next[from][:len(g.next[from])-1]
		return fmt.Errorf("edge %s -> %s would create a cycle", from, to)
	}
	return nil
}

// GetNode returns the node registered under id.
func (g *Graph) GetNode(id string) (ports.Executable, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	exec, ok := g.nodes[id]
	return exec, ok
}

// HasCycle reports whether the edges contain a cycle.
func (g *Graph) HasCycle() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.sortLocked()
	return !ok
}

// TopologicalSort returns every node after all of its predecessors. Nodes
// that become ready at the same time keep insertion order.
func (g *Graph) TopologicalSort() ([]ports.Executable, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	sorted, ok := g.sortLocked()
	if !ok {
		return nil, errors.New("graph contains a cycle")
	}
	return sorted, nil
}

// sortLocked is Kahn's algorithm. ok is false when some node never became
// ready, which happens only on a cycle.
func (g *Graph) sortLocked() (sorted []ports.Executable, ok bool) {
	pending := make(map[string]int, len(g.nodes))
	for _, targets := range g.next {
		for _, t := range targets {
			pending[t]++
		}
	}

	var ready []string
	for _, id := range g.order {
		if pending[id] == 0 {
			ready = append(ready, id)
		}
	}

	sorted = make([]ports.Executable, 0, len(g.nodes))
	for len(ready) > 0 {
		id := ready[0]
		ready = ready[1:]
		sorted = append(sorted, g.nodes[id])
		for _, t := range g.next[id] {
			if pending[t]--; pending[t] == 0 {
				ready = append(ready, t)
			}
		}
	}
	return sorted, len(sorted) == len(g.nodes)
}

// Execute runs the nodes in topological order as one pipeline.
func (g *Graph) Execute(ctx context.Context, state domain.State) (domain.State, error) {
	sorted, err := g.TopologicalSort()
	if err != nil {
		return state, err
	}
	for _, node := range sorted {
		if err := ctx.Err(); err != nil {
			return state, err
		}
		next, err := node.Execute(ctx, state)
		if err != nil {
			return state, fmt.Errorf("graph: %s: %w", node.ID(), err)
		}
		state = next
	}
	return state, nil
}

// FindingsMerge is the default layer merge. Member values are applied in
// declaration order so later members win, and each member's new findings
// are appended in the same order. Findings already in the base State are
// kept once.
type FindingsMerge struct{}

// Merge implements ports.MergeStrategy.
func (FindingsMerge) Merge(baseState domain.State, states []domain.State) (domain.State, error) {
	n := len(baseState.Findings())
	out := baseState
	for i, st := range states {
		fs := st.Findings()
		if len(fs) < n {
			return baseState, fmt.Errorf("member %d dropped findings of its input", i)
		}
		out = out.WithValuesOf(st).AddFindings(fs[n:]...)
	}
	return out, nil
}
