package schema

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/pbcheck/internal/domain"
	"github.com/ahrav/pbcheck/internal/pbformat"
	"github.com/ahrav/pbcheck/internal/testutils"
)

func mustDefault(t *testing.T) *Schema {
	t.Helper()
	s, err := Default()
	require.NoError(t, err)
	return s
}

func kinds(findings []domain.Finding) []domain.FindingKind {
	out := make([]domain.FindingKind, len(findings))
	for i, f := range findings {
		out[i] = f.Kind
	}
	return out
}

func fields(pairs ...string) domain.Fields {
	fs := make(domain.Fields, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		fs = append(fs, domain.Field{Name: pairs[i], Value: pairs[i+1]})
	}
	return fs
}

func TestDefault_Loads(t *testing.T) {
	s := mustDefault(t)

	f, ok := s.Field(domain.SectionMeta, "budget")
	require.True(t, ok)
	assert.Equal(t, TypeFloat, f.Datatype)
	assert.True(t, f.Obligatory)

	f, ok = s.Field(domain.SectionProjects, "category")
	require.True(t, ok)
	assert.True(t, f.Nullable)
	require.NotNil(t, f.Checker)
	assert.Equal(t, CheckList, f.Checker.Kind)

	_, ok = s.Field(domain.SectionVotes, "cost")
	assert.False(t, ok)
}

func TestLoad_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		wantErr string
	}{
		{
			name:    "unknown key",
			doc:     "meta: [{name: a, datatype: str, colour: red}]\nprojects: [{name: b, datatype: str}]\nvotes: [{name: c, datatype: str}]\n",
			wantErr: "colour",
		},
		{
			name:    "bad datatype",
			doc:     "meta: [{name: a, datatype: date}]\nprojects: [{name: b, datatype: str}]\nvotes: [{name: c, datatype: str}]\n",
			wantErr: "oneof",
		},
		{
			name:    "empty section",
			doc:     "meta: [{name: a, datatype: str}]\nprojects: []\nvotes: [{name: c, datatype: str}]\n",
			wantErr: "Projects",
		},
		{
			name:    "duplicated field",
			doc:     "meta: [{name: a, datatype: str}, {name: a, datatype: int}]\nprojects: [{name: b, datatype: str}]\nvotes: [{name: c, datatype: str}]\n",
			wantErr: "meta.a: duplicated field",
		},
		{
			name:    "bad pattern",
			doc:     "meta: [{name: a, datatype: str, checker: {kind: regex, pattern: '('}}]\nprojects: [{name: b, datatype: str}]\nvotes: [{name: c, datatype: str}]\n",
			wantErr: "pattern",
		},
		{
			name:    "unknown predicate",
			doc:     "meta: [{name: a, datatype: str, checker: {kind: predicate, predicate: is_city}}]\nprojects: [{name: b, datatype: str}]\nvotes: [{name: c, datatype: str}]\n",
			wantErr: `unknown predicate "is_city"`,
		},
		{
			name:    "unknown tag",
			doc:     "meta: [{name: a, datatype: str, checker: {kind: tag, tag: not_a_tag}}]\nprojects: [{name: b, datatype: str}]\nvotes: [{name: c, datatype: str}]\n",
			wantErr: `unknown validator tag "not_a_tag"`,
		},
		{
			name:    "enum without values",
			doc:     "meta: [{name: a, datatype: str, checker: {kind: enum}}]\nprojects: [{name: b, datatype: str}]\nvotes: [{name: c, datatype: str}]\n",
			wantErr: "Values",
		},
		{
			name:    "nested list",
			doc:     "meta: [{name: a, datatype: list, checker: {kind: list, element: {kind: list}}}]\nprojects: [{name: b, datatype: str}]\nvotes: [{name: c, datatype: str}]\n",
			wantErr: "cannot nest",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load([]byte(tt.doc))
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrInvalidConfiguration)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestEncode_RoundTrip(t *testing.T) {
	s := mustDefault(t)

	var buf bytes.Buffer
	require.NoError(t, s.Encode(&buf))

	again, err := Load(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, s.Meta, again.Meta)
	assert.Equal(t, s.Projects, again.Projects)
	assert.Equal(t, s.Votes, again.Votes)
}

func TestValidate_CleanFixture(t *testing.T) {
	e, err := pbformat.Read(testutils.ScenarioFunded().
		Meta("language", "pl").
		Meta("currency", "PLN").
		Meta("fully_funded", "1").
		Reader())
	require.NoError(t, err)

	assert.Empty(t, mustDefault(t).ValidateElection(e, true))
}

func TestValidate_Record(t *testing.T) {
	s := mustDefault(t)

	tests := []struct {
		name    string
		section domain.Section
		fields  domain.Fields
		want    []domain.FindingKind
		detail  string
	}{
		{
			name:    "missing obligatory fields are listed together",
			section: domain.SectionProjects,
			fields:  fields("name", "Park"),
			want:    []domain.FindingKind{domain.KindMissingObligatoryField},
			detail:  "project_id, cost",
		},
		{
			name:    "unknown field with suggestion",
			section: domain.SectionProjects,
			fields:  fields("project_id", "1", "cost", "10", "costs", "5", "zzz", "1"),
			want:    []domain.FindingKind{domain.KindNotKnownField},
			detail:  "costs (did you mean cost?), zzz",
		},
		{
			name:    "wrong order stops at first violation",
			section: domain.SectionProjects,
			fields:  fields("project_id", "1", "name", "A", "cost", "10", "votes", "2"),
			want:    []domain.FindingKind{domain.KindWrongFieldOrder},
			detail:  "cost after name, expected project_id, cost, votes, name",
		},
		{
			name:    "unknown fields do not break the order",
			section: domain.SectionVotes,
			fields:  fields("voter_id", "v1", "extra", "x", "vote", "1"),
			want:    []domain.FindingKind{domain.KindNotKnownField},
		},
		{
			name:    "datatype failure skips the checker",
			section: domain.SectionProjects,
			fields:  fields("project_id", "1", "cost", "10.5", "selected", "x"),
			want:    []domain.FindingKind{domain.KindIncorrectFieldDatatype, domain.KindIncorrectFieldDatatype},
		},
		{
			name:    "float accepts a comma decimal",
			section: domain.SectionProjects,
			fields:  fields("project_id", "1", "cost", "10", "latitude", "52,4"),
		},
		{
			name:    "empty non-nullable",
			section: domain.SectionProjects,
			fields:  fields("project_id", "1", "cost", "10", "name", ""),
			want:    []domain.FindingKind{domain.KindEmptyField},
			detail:  "Empty value of name",
		},
		{
			name:    "empty number fails coercion first",
			section: domain.SectionProjects,
			fields:  fields("project_id", "1", "cost", ""),
			want:    []domain.FindingKind{domain.KindIncorrectFieldDatatype},
			detail:  `"" is not int`,
		},
		{
			name:    "empty nullable",
			section: domain.SectionProjects,
			fields:  fields("project_id", "1", "cost", "10", "category", "", "latitude", ""),
		},
		{
			name:    "enum",
			section: domain.SectionProjects,
			fields:  fields("project_id", "1", "cost", "10", "selected", "3"),
			want:    []domain.FindingKind{domain.KindInvalidFieldValue},
			detail:  `"3" is not one of 0, 1, 2`,
		},
		{
			name:    "list with an empty item",
			section: domain.SectionVotes,
			fields:  fields("voter_id", "v1", "vote", "1,,3"),
			want:    []domain.FindingKind{domain.KindInvalidFieldValue},
			detail:  "item 2",
		},
		{
			name:    "checker message is verbatim",
			section: domain.SectionMeta,
			fields:  fields("comment", "no number"),
			want:    []domain.FindingKind{domain.KindMissingObligatoryField, domain.KindInvalidFieldValue},
			detail:  `comments must be numbered, starting with "#1: "`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := s.Validate(tt.section, "REC", tt.fields)
			assert.Equal(t, tt.want, nilIfEmpty(kinds(got)))
			if tt.detail != "" {
				require.NotEmpty(t, got)
				assert.Contains(t, got[len(got)-1].Detail, tt.detail)
			}
		})
	}
}

func nilIfEmpty(k []domain.FindingKind) []domain.FindingKind {
	if len(k) == 0 {
		return nil
	}
	return k
}

func TestValidate_MetaCheckers(t *testing.T) {
	s := mustDefault(t)

	tests := []struct {
		field string
		value string
		ok    bool
	}{
		{"country", "Poland", true},
		{"country", "Netherlands", true},
		{"country", "Polska", false},
		{"date_begin", "2023", true},
		{"date_begin", "01.03.2023", true},
		{"date_begin", "2023-03-01", false},
		{"language", "pl", true},
		{"language", "not a language", false},
		{"currency", "PLN", true},
		{"currency", "ZZZ", false},
		{"fully_funded", "1", true},
		{"fully_funded", "0", false},
		{"vote_type", "cumulative", true},
		{"vote_type", "borda", false},
		{"rule", "equalshares/add1", true},
		{"rule", "random", false},
	}

	for _, tt := range tests {
		t.Run(tt.field+"="+tt.value, func(t *testing.T) {
			fd, ok := s.Field(domain.SectionMeta, tt.field)
			require.True(t, ok)

			f, bad := s.value(fd, "META", tt.value)
			assert.Equal(t, !tt.ok, bad, f.Detail)
			if bad {
				assert.Equal(t, domain.KindInvalidFieldValue, f.Kind)
			}
		})
	}
}

// Any subsequence of the schema order passes the order check, and swapping
// two adjacent fields of it fails.
func TestValidate_OrderSubsequence(t *testing.T) {
	s := mustDefault(t)
	all := s.Fields(domain.SectionProjects)

	for mask := 1; mask < 1<<6; mask++ {
		var present domain.Fields
		for i := range 6 {
			if mask&(1<<i) != 0 {
				present = append(present, domain.Field{Name: all[i].Name, Value: "1"})
			}
		}
		_, bad := s.order(domain.SectionProjects, "P", present)
		assert.False(t, bad, "subsequence %v", present.Names())

		if len(present) >= 2 {
			swapped := append(domain.Fields(nil), present...)
			swapped[0], swapped[1] = swapped[1], swapped[0]
			_, bad = s.order(domain.SectionProjects, "P", swapped)
			assert.True(t, bad, "swapped %v", swapped.Names())
		}
	}
}

func TestValidateElection_Sampling(t *testing.T) {
	doc := testutils.NewPBFile().
		Project("1", "10", "1", "A", "1").
		Project("2", "x", "1", "B", "0").
		Vote("v1", "1")
	e, err := pbformat.Read(doc.Reader())
	require.NoError(t, err)

	s := mustDefault(t)
	assert.Empty(t, s.ValidateElection(e, false), "only the first project is sampled")

	got := s.ValidateElection(e, true)
	require.Len(t, got, 1)
	assert.Equal(t, domain.KindIncorrectFieldDatatype, got[0].Kind)
	assert.True(t, strings.Contains(got[0].Detail, "project_id 2"))
}
