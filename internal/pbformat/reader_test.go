package pbformat_test

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/pbcheck/internal/domain"
	"github.com/ahrav/pbcheck/internal/pbformat"
	"github.com/ahrav/pbcheck/internal/testutils"
)

func notesOf(e *domain.Election, kind domain.FindingKind) []domain.ParseNote {
	var out []domain.ParseNote
	for _, n := range e.Notes {
		if n.Kind == kind {
			out = append(out, n)
		}
	}
	return out
}

func TestRead_Sections(t *testing.T) {
	e, err := pbformat.Read(testutils.ScenarioFunded().WithBOM().Reader())
	require.NoError(t, err)

	assert.Equal(t, "Poland", e.Meta.Country, "BOM must not leak into the first key")
	assert.Equal(t, "description", e.Meta.Fields[0].Name)
	assert.InDelta(t, 100, e.Meta.Budget.Value, 1e-9)

	require.Len(t, e.Projects, 1)
	p := e.Projects[0]
	assert.Equal(t, "1", p.ID)
	assert.Equal(t, "Park renovation", p.Name)
	assert.Equal(t, []string{"project_id", "cost", "votes", "name", "selected"}, p.Fields.Names())
	assert.True(t, p.HasSelected)

	require.Len(t, e.Votes, 5)
	assert.Equal(t, "v1", e.Votes[0].VoterID)
	assert.Equal(t, []string{"1"}, e.Votes[0].Projects)
	assert.Equal(t, 1, e.Votes[0].Strength)

	assert.True(t, e.HasVotesField)
	assert.False(t, e.HasScoreField)
	assert.True(t, e.HasSelectedField)
	assert.Empty(t, e.Notes)
}

func TestRead_CaseInsensitiveMarkersAndTrimming(t *testing.T) {
	doc := "Meta\nkey;value\n unit ;  Poznań \nProjects\nproject_id; cost ;score\n 1 ; 50 ; 7 \nvotes\nvoter_id;vote;points\nv1; 1 , 2 ;3, 4\n"

	e, err := pbformat.Read(strings.NewReader(doc))
	require.NoError(t, err)

	assert.Equal(t, "Poznań", e.Meta.Unit)
	assert.Equal(t, "1", e.Projects[0].ID)
	assert.InDelta(t, 50, e.Projects[0].Cost.Value, 1e-9)
	assert.True(t, e.HasScoreField)
	assert.Equal(t, []string{"1", "2"}, e.Votes[0].Projects)
	assert.Equal(t, []int{3, 4}, e.Votes[0].Points)
	assert.True(t, e.Votes[0].PointsDeclared)
}

func TestRead_DuplicatedVoterIsFatal(t *testing.T) {
	doc := testutils.NewPBFile().
		Project("1", "10", "2", "A", "1").
		Vote("v1", "1").
		Vote("v1", "1")

	e, err := pbformat.Read(doc.Reader())
	require.Error(t, err)
	assert.Nil(t, e)
	assert.True(t, errors.Is(err, domain.ErrDuplicatedVoterID))

	var pe *domain.ParseError
	require.True(t, errors.As(err, &pe))
	assert.Greater(t, pe.Line, 0)
}

func TestRead_MissingSections(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want error
	}{
		{name: "no meta", doc: "PROJECTS\nproject_id;cost\n1;10\n", want: domain.ErrMissingSection},
		{name: "no projects", doc: "META\nkey;value\nunit;X\n", want: domain.ErrMissingSection},
		{name: "marker without header", doc: "META\nkey;value\nunit;X\nPROJECTS", want: domain.ErrMissingHeader},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := pbformat.Read(strings.NewReader(tt.doc))
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestRead_RowDefectsAreKept(t *testing.T) {
	doc := "stray;row\nMETA\nkey;value\nunit\nbudget;100;extra\nPROJECTS\nproject_id;cost;name\n1;10\n2;20;B;surplus\n2;30;C\n\nVOTES\nvoter_id;vote;points;vote_strength\nv1;1,2;a,b;1\nv2;1,2;5;x\n"

	e, err := pbformat.Read(strings.NewReader(doc))
	require.NoError(t, err)

	malformed := notesOf(e, domain.KindMalformedRow)
	details := make([]string, len(malformed))
	for i, n := range malformed {
		details[i] = n.Detail
	}
	joined := strings.Join(details, "\n")
	assert.Contains(t, joined, "Row outside of any section")
	assert.Contains(t, joined, `META row "unit" has no value`)
	assert.Contains(t, joined, `META row "budget" has 3 cells`)
	assert.Contains(t, joined, `PROJECTS row "1" has 2 cells, header has 3`)
	assert.Contains(t, joined, `PROJECTS row "2" has 4 cells, header has 3`)
	assert.Contains(t, joined, "Duplicated project ID 2")
	assert.Contains(t, joined, `vote_strength "x"`)

	require.Len(t, e.Projects, 3, "duplicated and ragged rows are not dropped")
	assert.Equal(t, "surplus", e.Projects[1].Fields.Value("column_4"))
	assert.True(t, e.Meta.Fields.Has("unit"))

	empty := notesOf(e, domain.KindEmptyLine)
	require.Len(t, empty, 1)
	assert.Equal(t, 11, empty[0].Line)

	points := notesOf(e, domain.KindInvalidPoints)
	require.Len(t, points, 2)
	assert.False(t, e.Votes[0].PointsDeclared)
	assert.True(t, e.Votes[1].PointsDeclared)
}

func TestRead_QuotedCells(t *testing.T) {
	doc := "META\nkey;value\nunit;Gdańsk\nPROJECTS\nproject_id;cost;votes;name;selected\n" +
		"1;100;1;\"Big\" park;1\n" +
		"2;200;0;\"Road; east\";0\n" +
		"3;300;0;\"Hall \"\"Nowa\"\"\";0\n" +
		"VOTES\nvoter_id;vote\nv1;1\n"

	e, err := pbformat.Read(strings.NewReader(doc))
	require.NoError(t, err)

	require.Len(t, e.Projects, 3)
	assert.Equal(t, "Big park", e.Projects[0].Name)
	assert.Equal(t, "1", e.Projects[0].Fields.Value("selected"))
	assert.Equal(t, "Road; east", e.Projects[1].Name)
	assert.Equal(t, `Hall "Nowa"`, e.Projects[2].Name)
	require.Len(t, e.Votes, 1)
	assert.Equal(t, []string{"1"}, e.Votes[0].Projects)
	assert.Empty(t, e.Notes)
}

func TestRead_UnterminatedQuoteStaysOnItsLine(t *testing.T) {
	doc := "META\nkey;value\nunit;Gdańsk\nPROJECTS\nproject_id;cost;votes;name;selected\n" +
		"1;100;1;\"Big park;1\n" +
		"2;200;0;Road;0\n" +
		"VOTES\nvoter_id;vote\nv1;1\n"

	e, err := pbformat.Read(strings.NewReader(doc))
	require.NoError(t, err)

	require.Len(t, e.Projects, 2)
	assert.Equal(t, `"Big park`, e.Projects[0].Name)
	assert.Equal(t, "Road", e.Projects[1].Name)
	require.Len(t, e.Votes, 1)

	malformed := notesOf(e, domain.KindMalformedRow)
	require.Len(t, malformed, 1)
	assert.Equal(t, 6, malformed[0].Line)
}

func TestRead_NotesAreInLineOrder(t *testing.T) {
	doc := "META\nkey;value\nunit;X\nPROJECTS\nproject_id;cost;name\n1;10\n\n2;20;B\n;;\n3\n"

	e, err := pbformat.Read(strings.NewReader(doc))
	require.NoError(t, err)

	lines := make([]int, len(e.Notes))
	for i, n := range e.Notes {
		lines[i] = n.Line
	}
	assert.Equal(t, []int{6, 7, 9, 10}, lines)
}

func TestRead_TrailingNewlineIsNotAnEmptyLine(t *testing.T) {
	e, err := pbformat.Read(testutils.ScenarioFunded().Reader())
	require.NoError(t, err)
	assert.Empty(t, notesOf(e, domain.KindEmptyLine))

	e, err = pbformat.Read(testutils.ScenarioFunded().Trailer("\n").Reader())
	require.NoError(t, err)
	assert.Len(t, notesOf(e, domain.KindEmptyLine), 1)
}

func TestWrite_RoundTrip(t *testing.T) {
	src := testutils.NewPBFile().
		Project("1", "60", "2", "Park; with a semicolon", "1").
		Project("2", "40", "1", `Library "Nowa"`, "1").
		Vote("v1", "1,2").
		Vote("v2", "1")

	first, err := pbformat.Read(src.Reader())
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, pbformat.Write(&buf, first))

	second, err := pbformat.Read(&buf)
	require.NoError(t, err)

	assert.Equal(t, first.Meta.Fields, second.Meta.Fields)
	assert.Equal(t, first.ProjectHeader, second.ProjectHeader)
	require.Len(t, second.Projects, 2)
	assert.Equal(t, "Park; with a semicolon", second.Projects[0].Name)
	assert.Equal(t, `Library "Nowa"`, second.Projects[1].Name)
	assert.Equal(t, first.Votes[0].Projects, second.Votes[0].Projects)
}

func TestWriteFile(t *testing.T) {
	e, err := pbformat.Read(testutils.ScenarioFunded().Reader())
	require.NoError(t, err)

	path := t.TempDir() + "/nested/out.pb"
	require.NoError(t, pbformat.WriteFile(path, e))

	again, err := pbformat.ReadFile(path)
	require.NoError(t, err)
	assert.Len(t, again.Votes, 5)
}

func TestWrite_KeepsSurplusCells(t *testing.T) {
	doc := "META\nkey;value\nunit;X\nPROJECTS\nproject_id;cost;name\n1;10;A;surplus;more\n2;20;B\n"

	e, err := pbformat.Read(strings.NewReader(doc))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, pbformat.Write(&buf, e))
	assert.Contains(t, buf.String(), "1;10;A;surplus;more\n")

	again, err := pbformat.Read(&buf)
	require.NoError(t, err)
	assert.Equal(t, e.Projects[0].Fields, again.Projects[0].Fields)
}
