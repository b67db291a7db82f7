package application

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/pbcheck/internal/domain"
	"github.com/ahrav/pbcheck/internal/pbformat"
	"github.com/ahrav/pbcheck/internal/ports"
	"github.com/ahrav/pbcheck/internal/testutils"
)

func newTestLoader(t *testing.T, opts ...PlanLoaderOption) *PlanLoader {
	t.Helper()
	pl, err := NewPlanLoader(newTestRegistry(t), opts...)
	require.NoError(t, err)
	return pl
}

const minimalPlan = `version: "1.0.0"
metadata:
  name: minimal
checks:
  - id: counts
    type: counts
plan: {}
`

func TestPlanLoader_LoadDefault(t *testing.T) {
	pl := newTestLoader(t)

	graph, err := pl.LoadDefault(context.Background())
	require.NoError(t, err)

	order, err := graph.TopologicalSort()
	require.NoError(t, err)
	require.Len(t, order, 2)
	assert.Equal(t, "prepare", order[0].ID())
	assert.Equal(t, "consistency", order[1].ID())

	layer, ok := order[1].(*Layer)
	require.True(t, ok)
	var ids []string
	for _, e := range layer.Executables() {
		ids = append(ids, e.ID())
	}
	assert.Equal(t, []string{"schema", "daterange", "numberformat", "budget", "counts", "votelength", "votes", "selection"}, ids)
}

func TestPlanLoader_LoadFromReader(t *testing.T) {
	tests := []struct {
		name   string
		yaml   string
		errMsg string
		verify func(t *testing.T, g *Graph)
	}{
		{
			name: "standalone check",
			yaml: minimalPlan,
			verify: func(t *testing.T, g *Graph) {
				node, ok := g.GetNode("counts")
				require.True(t, ok)
				adapter, ok := node.(*CheckAdapter)
				require.True(t, ok)
				assert.Equal(t, "counts", adapter.Check().Name())
			},
		},
		{
			name: "parameters reach the factory",
			yaml: `version: "1.0.0"
metadata:
  name: params
checks:
  - id: budget
    type: budget
    parameters:
      unused_budget: false
      threshold_fraction: 0.5
plan: {}
`,
			verify: func(t *testing.T, g *Graph) {
				_, ok := g.GetNode("budget")
				assert.True(t, ok)
			},
		},
		{
			name: "pipeline then standalone check",
			yaml: `version: "1.0.0"
metadata:
  name: chain
checks:
  - id: notes
    type: parse_notes
  - id: tally
    type: tally
  - id: votes
    type: votes_consistency
plan:
  pipelines:
    - id: prepare
      checks: [notes, tally]
  edges:
    - from: prepare
      to: votes
`,
			verify: func(t *testing.T, g *Graph) {
				order, err := g.TopologicalSort()
				require.NoError(t, err)
				require.Len(t, order, 2)
				assert.Equal(t, "prepare", order[0].ID())
				assert.Equal(t, "votes", order[1].ID())
			},
		},
		{
			name:   "unknown field",
			yaml:   minimalPlan + "extra: true\n",
			errMsg: "failed to parse YAML",
		},
		{
			name:   "bad version",
			yaml:   strings.Replace(minimalPlan, `"1.0.0"`, `"one"`, 1),
			errMsg: "struct validation failed",
		},
		{
			name:   "unsupported type",
			yaml:   strings.Replace(minimalPlan, "type: counts", "type: vote_weighting", 1),
			errMsg: "unsupported check type: vote_weighting",
		},
		{
			name:   "parameters for a parameterless check",
			yaml:   strings.Replace(minimalPlan, "type: counts", "type: counts\n    parameters:\n      strict: true", 1),
			errMsg: "parameter validation failed",
		},
		{
			name: "duplicate check id",
			yaml: `version: "1.0.0"
metadata:
  name: dup
checks:
  - id: counts
    type: counts
  - id: counts
    type: tally
plan: {}
`,
			errMsg: `duplicate ID "counts"`,
		},
		{
			name: "layer id collides with check",
			yaml: `version: "1.0.0"
metadata:
  name: dup
checks:
  - id: counts
    type: counts
  - id: tally
    type: tally
plan:
  layers:
    - id: counts
      checks: [counts, tally]
`,
			errMsg: `duplicate ID "counts": already used by check`,
		},
		{
			name: "pipeline references unknown check",
			yaml: `version: "1.0.0"
metadata:
  name: ref
checks:
  - id: counts
    type: counts
plan:
  pipelines:
    - id: p
      checks: [counts, missing]
`,
			errMsg: "pipeline p references non-existent check: missing",
		},
		{
			name: "check placed twice",
			yaml: `version: "1.0.0"
metadata:
  name: twice
checks:
  - id: counts
    type: counts
  - id: tally
    type: tally
plan:
  pipelines:
    - id: p
      checks: [counts]
  layers:
    - id: l
      checks: [counts, tally]
`,
			errMsg: "check counts is placed in both p and l",
		},
		{
			name: "edge into a group member",
			yaml: `version: "1.0.0"
metadata:
  name: edge
checks:
  - id: notes
    type: parse_notes
  - id: counts
    type: counts
plan:
  pipelines:
    - id: p
      checks: [notes]
  edges:
    - from: counts
      to: notes
`,
			errMsg: "edge target notes is inside p",
		},
		{
			name:   "edge to unknown node",
			yaml:   strings.Replace(minimalPlan, "plan: {}", "plan:\n  edges:\n    - from: counts\n      to: nowhere", 1),
			errMsg: "edge references non-existent target node: nowhere",
		},
		{
			name: "cycle",
			yaml: `version: "1.0.0"
metadata:
  name: cycle
checks:
  - id: counts
    type: counts
  - id: tally
    type: tally
plan:
  edges:
    - from: counts
      to: tally
    - from: tally
      to: counts
`,
			errMsg: "failed to add edge",
		},
		{
			name:   "layer needs two checks",
			yaml:   strings.Replace(minimalPlan, "plan: {}", "plan:\n  layers:\n    - id: l\n      checks: [counts]", 1),
			errMsg: "struct validation failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pl := newTestLoader(t)
			graph, err := pl.LoadFromReader(context.Background(), strings.NewReader(tt.yaml))
			if tt.errMsg != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
				return
			}
			require.NoError(t, err)
			if tt.verify != nil {
				tt.verify(t, graph)
			}
		})
	}
}

func TestPlanLoader_Caching(t *testing.T) {
	pl := newTestLoader(t)
	ctx := context.Background()

	first, err := pl.LoadFromReader(ctx, strings.NewReader(minimalPlan))
	require.NoError(t, err)

	// Comments and formatting do not change the normalized plan.
	second, err := pl.LoadFromReader(ctx, strings.NewReader("# same plan\n"+minimalPlan))
	require.NoError(t, err)
	assert.Same(t, first, second)

	pl.ClearCache()
	third, err := pl.LoadFromReader(ctx, strings.NewReader(minimalPlan))
	require.NoError(t, err)
	assert.NotSame(t, first, third)
}

func TestPlanLoader_ConcurrentLoadsShareGraph(t *testing.T) {
	pl := newTestLoader(t)

	const n = 16
	graphs := make([]*Graph, n)
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			g, err := pl.LoadDefault(context.Background())
			assert.NoError(t, err)
			graphs[i] = g
		}()
	}
	wg.Wait()

	for _, g := range graphs[1:] {
		assert.Same(t, graphs[0], g)
	}
}

func TestPlanLoader_CheckWrapper(t *testing.T) {
	var wrapped atomic.Int32
	wrap := func(c ports.Check) ports.Check {
		wrapped.Add(1)
		return c
	}
	pl := newTestLoader(t, WithCheckWrapper(wrap))

	_, err := pl.LoadDefault(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(10), wrapped.Load())
}

func TestPlanLoader_LoadFromFile(t *testing.T) {
	pl := newTestLoader(t)

	_, err := pl.LoadFromFile(context.Background(), t.TempDir()+"/missing.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read file")
}

func TestDefaultPlan_RunsOnElection(t *testing.T) {
	pl := newTestLoader(t)
	graph, err := pl.LoadDefault(context.Background())
	require.NoError(t, err)

	e, err := pbformat.Read(testutils.ScenarioFunded().Meta("num_votes", "7").Reader())
	require.NoError(t, err)

	out, err := graph.Execute(context.Background(), domain.NewFileState("x.pb", e))
	require.NoError(t, err)

	require.NotEmpty(t, out.Findings())
	for _, f := range out.Findings() {
		assert.Equal(t, domain.KindDifferentNumberVotes, f.Kind)
		assert.Equal(t, "x.pb", f.File)
	}
}
