package domain

import (
	"strconv"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func project(id string, cost, votes float64, selected int) Project {
	return Project{
		ID:          id,
		Cost:        Number{Raw: FormatCost(cost), Value: cost, Valid: true},
		Votes:       Number{Raw: FormatCost(votes), Value: votes, Valid: true},
		Selected:    selected,
		HasSelected: true,
	}
}

func TestRankProjects(t *testing.T) {
	projects := []Project{
		project("a", 10, 5, 0),
		project("b", 10, 9, 0),
		project("c", 10, 5, 0),
		project("d", 10, 7, 0),
	}

	ranked := RankProjects(projects, false)
	ids := make([]string, len(ranked))
	for i, p := range ranked {
		ids[i] = p.ID
	}
	assert.Equal(t, []string{"b", "d", "a", "c"}, ids, "ties keep file order")
	assert.Equal(t, "a", projects[0].ID, "input is not reordered")
}

func TestReplayGreedy(t *testing.T) {
	tests := []struct {
		name   string
		ranked []Project
		budget float64
		want   []string
	}{
		{
			name:   "funds while it fits",
			ranked: []Project{project("1", 40, 0, 0), project("2", 40, 0, 0), project("3", 40, 0, 0)},
			budget: 100,
			want:   []string{"1", "2"},
		},
		{
			name:   "skips and continues with cheaper projects",
			ranked: []Project{project("1", 60, 0, 0), project("2", 50, 0, 0), project("3", 30, 0, 0)},
			budget: 100,
			want:   []string{"1", "3"},
		},
		{
			name:   "exact fit is funded",
			ranked: []Project{project("1", 100, 0, 0)},
			budget: 100,
			want:   []string{"1"},
		},
		{
			name:   "nothing fits",
			ranked: []Project{project("1", 100, 0, 0)},
			budget: 50,
			want:   []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ReplayGreedy(tt.ranked, tt.budget)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("ReplayGreedy() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestReplayGreedy_Deterministic(t *testing.T) {
	ranked := make([]Project, 0, 50)
	for i := 0; i < 50; i++ {
		ranked = append(ranked, project(strconv.Itoa(i), float64((i*37)%23+1), 0, 0))
	}

	first := ReplayGreedy(ranked, 120)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, ReplayGreedy(ranked, 120))
	}
}

func TestReplayPartialThreshold(t *testing.T) {
	tests := []struct {
		name   string
		ranked []Project
		budget float64
		want   []string
	}{
		{
			name:   "threshold project funded then filling stops",
			ranked: []Project{project("1", 60, 0, 0), project("2", 45, 0, 0), project("3", 1, 0, 0)},
			budget: 100,
			want:   []string{"1", "2"},
		},
		{
			name:   "threshold not met stops filling",
			ranked: []Project{project("1", 60, 0, 0), project("2", 80, 0, 0), project("3", 1, 0, 0)},
			budget: 100,
			want:   []string{"1"},
		},
		{
			name:   "threshold boundary is inclusive",
			ranked: []Project{project("1", 50, 0, 0)},
			budget: 40,
			want:   []string{"1"},
		},
		{
			name:   "everything fits",
			ranked: []Project{project("1", 10, 0, 0), project("2", 10, 0, 0)},
			budget: 100,
			want:   []string{"1", "2"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ReplayPartialThreshold(tt.ranked, tt.budget, 0.8)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("ReplayPartialThreshold() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

// Once filling stops, no later project is funded however cheap it is.
func TestReplayPartialThreshold_Monotonic(t *testing.T) {
	for stop := 1; stop < 10; stop++ {
		ranked := make([]Project, 0, 20)
		for i := 0; i < stop; i++ {
			ranked = append(ranked, project("fit"+strconv.Itoa(i), 10, 0, 0))
		}
		ranked = append(ranked, project("blocker", 1000, 0, 0))
		for i := 0; i < 10; i++ {
			ranked = append(ranked, project("cheap"+strconv.Itoa(i), 1, 0, 0))
		}

		got := ReplayPartialThreshold(ranked, float64(stop*10+5), 0.8)
		assert.Len(t, got, stop)
		for _, id := range got {
			assert.NotContains(t, id, "cheap")
		}
	}
}

func TestReplaySelection(t *testing.T) {
	t.Run("greedy consistent", func(t *testing.T) {
		e := NewElection(Meta{}, []Project{project("1", 100, 5, 1)}, nil)
		replay, ok := ReplaySelection(Greedy{}, e, 100)
		require.True(t, ok)
		assert.True(t, replay.Consistent())
		assert.Equal(t, []string{"1"}, replay.Expected)
	})

	t.Run("greedy ignores threshold code", func(t *testing.T) {
		e := NewElection(Meta{}, []Project{
			project("1", 60, 9, 1),
			project("2", 60, 8, 2),
		}, nil)
		replay, ok := ReplaySelection(Greedy{}, e, 100)
		require.True(t, ok)
		assert.True(t, replay.Consistent())
		assert.Equal(t, []string{"1"}, replay.Declared)
	})

	t.Run("partial threshold counts code 2 as funded", func(t *testing.T) {
		e := NewElection(Meta{}, []Project{
			project("1", 60, 9, 1),
			project("2", 45, 8, 2),
			project("3", 1, 7, 1),
		}, nil)
		replay, ok := ReplaySelection(PartialThreshold{Fraction: 0.8}, e, 100)
		require.True(t, ok)
		assert.Equal(t, []string{"1", "2", "3"}, replay.Declared)
		assert.Empty(t, replay.Missing)
		assert.Equal(t, []string{"3"}, replay.Unexpected)
	})

	t.Run("differences in both directions", func(t *testing.T) {
		e := NewElection(Meta{}, []Project{
			project("1", 60, 9, 0),
			project("2", 60, 8, 1),
		}, nil)
		replay, ok := ReplaySelection(Greedy{}, e, 100)
		require.True(t, ok)
		assert.Equal(t, []string{"1"}, replay.Missing)
		assert.Equal(t, []string{"2"}, replay.Unexpected)
		assert.False(t, replay.Consistent())
	})

	t.Run("ranks by score when tracked", func(t *testing.T) {
		low := project("low", 60, 100, 0)
		low.Score = ParseNumber("1")
		high := project("high", 60, 1, 1)
		high.Score = ParseNumber("50")
		e := NewElection(Meta{}, []Project{low, high}, nil)
		e.HasScoreField = true

		replay, ok := ReplaySelection(Greedy{}, e, 100)
		require.True(t, ok)
		assert.Equal(t, []string{"high"}, replay.Expected)
		assert.True(t, replay.Consistent())
	})

	t.Run("unchecked rule is not replayed", func(t *testing.T) {
		e := NewElection(Meta{}, []Project{project("1", 100, 5, 1)}, nil)
		replay, ok := ReplaySelection(Unchecked{Rule: "equalshares"}, e, 100)
		assert.False(t, ok)
		assert.Equal(t, "equalshares", replay.Rule.Name())
	})
}

func TestResolveRule(t *testing.T) {
	partial := []string{"Poznań"}

	tests := []struct {
		name string
		meta Meta
		want Rule
	}{
		{name: "greedy", meta: Meta{Unit: "Gdańsk", Rule: "greedy"}, want: Greedy{}},
		{name: "missing rule", meta: Meta{Unit: "Gdańsk"}, want: Greedy{}},
		{name: "case and space", meta: Meta{Unit: "Gdańsk", Rule: " Greedy "}, want: Greedy{}},
		{name: "partial unit", meta: Meta{Unit: "Poznań", Rule: "greedy"}, want: PartialThreshold{Fraction: 0.8}},
		{name: "equal shares", meta: Meta{Unit: "Gdańsk", Rule: "equalshares"}, want: Unchecked{Rule: "equalshares"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveRule(tt.meta, partial, 0.8))
		})
	}
}
