package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMeta(t *testing.T) {
	fields := Fields{
		{Name: "country", Value: "Poland"},
		{Name: "unit", Value: "Poznań"},
		{Name: "instance", Value: "2023"},
		{Name: "subunit", Value: "Jeżyce"},
		{Name: "budget", Value: "1.000,50"},
		{Name: "num_votes", Value: "5"},
		{Name: "max_length_unit", Value: "3"},
		{Name: "fully_funded", Value: "1"},
	}

	meta := NewMeta(fields)

	assert.Equal(t, "Poznań", meta.Unit)
	assert.True(t, meta.Budget.Valid)
	assert.InDelta(t, 1000.5, meta.Budget.Value, 1e-9)
	assert.Equal(t, int64(5), meta.NumVotes.Int())
	assert.False(t, meta.NumProjects.Valid)
	assert.Equal(t, int64(3), meta.MaxLength.Int(), "falls back to the unit variant")
	assert.False(t, meta.MinLength.Valid)
	assert.True(t, meta.FullyFunded)
	assert.Equal(t, "Poland Poznań 2023 Jeżyce", meta.WebpageName())
}

func TestNewProject(t *testing.T) {
	p := NewProject("7", Fields{
		{Name: "project_id", Value: "7"},
		{Name: "cost", Value: "15000"},
		{Name: "votes", Value: "342"},
		{Name: "name", Value: "Park renovation"},
		{Name: "selected", Value: "2"},
	})

	assert.Equal(t, "7", p.ID)
	assert.Equal(t, "Park renovation", p.Name)
	assert.InDelta(t, 15000, p.Cost.Value, 1e-9)
	assert.True(t, p.HasSelected)
	assert.Equal(t, SelectedThreshold, p.Selected)
	assert.InDelta(t, 342, p.Result(false), 1e-9)
	assert.Zero(t, p.Result(true))

	blank := NewProject("8", Fields{{Name: "selected", Value: ""}})
	assert.False(t, blank.HasSelected)
}

func TestFields_Set(t *testing.T) {
	fs := Fields{{Name: "a", Value: "1"}}

	replaced := fs.Set("a", "2")
	appended := fs.Set("b", "3")

	assert.Equal(t, "1", fs.Value("a"), "Set does not modify the receiver")
	assert.Equal(t, "2", replaced.Value("a"))
	assert.Equal(t, []string{"a", "b"}, appended.Names())
}

func TestElection_Project(t *testing.T) {
	e := NewElection(Meta{}, []Project{{ID: "1"}, {ID: "2", Name: "Library"}}, nil)

	p, ok := e.Project("2")
	require.True(t, ok)
	assert.Equal(t, "Library", p.Name)

	_, ok = e.Project("3")
	assert.False(t, ok)
}

func TestVote_EffectivePoints(t *testing.T) {
	assert.Equal(t, []int{3, 2, 1}, Vote{Projects: []string{"a", "b", "c"}}.EffectivePoints())
	assert.Equal(t, []int{9}, Vote{Projects: []string{"a"}, Points: []int{9}, PointsDeclared: true}.EffectivePoints())
}
