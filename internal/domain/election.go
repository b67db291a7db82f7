package domain

import (
	"strconv"
	"strings"
)

// Section names one of the three parts of a .pb file.
type Section string

const (
	SectionMeta     Section = "meta"
	SectionProjects Section = "projects"
	SectionVotes    Section = "votes"
)

// Field is one named raw value in file order.
type Field struct {
	Name  string
	Value string
}

// Fields is an ordered record of raw values.
type Fields []Field

// Get returns the value of the first field named name.
func (fs Fields) Get(name string) (string, bool) {
	for _, f := range fs {
		if f.Name == name {
			return f.Value, true
		}
	}
	return "", false
}

// Value returns the named value or "" when absent.
func (fs Fields) Value(name string) string {
	v, _ := fs.Get(name)
	return v
}

// Has reports whether a field named name is present.
func (fs Fields) Has(name string) bool {
	_, ok := fs.Get(name)
	return ok
}

// Names returns field names in order.
func (fs Fields) Names() []string {
	names := make([]string, len(fs))
	for i, f := range fs {
		names[i] = f.Name
	}
	return names
}

// Set returns a copy of fs with name set to value, appending the field when
// it is absent.
func (fs Fields) Set(name, value string) Fields {
	out := make(Fields, len(fs), len(fs)+1)
	copy(out, fs)
	for i := range out {
		if out[i].Name == name {
			out[i].Value = value
			return out
		}
	}
	return append(out, Field{Name: name, Value: value})
}

// Meta is the election metadata. The typed core holds the fields the checks
// depend on; Fields keeps every META row in file order.
type Meta struct {
	Description string
	Country     string
	Unit        string
	Instance    string
	Subunit     string
	District    string
	VoteType    string
	Rule        string
	DateBegin   string
	DateEnd     string

	Budget      Number
	MaxSumCost  Number
	NumProjects Number
	NumVotes    Number

	// MinLength and MaxLength fall back to the _unit and _district variants.
	MinLength Number
	MaxLength Number

	FullyFunded bool

	Fields Fields
}

// NewMeta builds the typed core from raw META rows.
func NewMeta(fields Fields) Meta {
	firstOf := func(names ...string) Number {
		for _, n := range names {
			if v := strings.TrimSpace(fields.Value(n)); v != "" {
				return ParseNumber(v)
			}
		}
		return Number{}
	}

	return Meta{
		Description: fields.Value("description"),
		Country:     fields.Value("country"),
		Unit:        fields.Value("unit"),
		Instance:    fields.Value("instance"),
		Subunit:     fields.Value("subunit"),
		District:    fields.Value("district"),
		VoteType:    fields.Value("vote_type"),
		Rule:        fields.Value("rule"),
		DateBegin:   fields.Value("date_begin"),
		DateEnd:     fields.Value("date_end"),
		Budget:      ParseNumber(fields.Value("budget")),
		MaxSumCost:  ParseNumber(fields.Value("max_sum_cost")),
		NumProjects: ParseNumber(fields.Value("num_projects")),
		NumVotes:    ParseNumber(fields.Value("num_votes")),
		MinLength:   firstOf("min_length", "min_length_unit", "min_length_district"),
		MaxLength:   firstOf("max_length", "max_length_unit", "max_length_district"),
		FullyFunded: strings.TrimSpace(fields.Value("fully_funded")) == "1",
		Fields:      fields,
	}
}

// WebpageName is the title the election gets on the publication site.
func (m Meta) WebpageName() string {
	name := strings.Join([]string{m.Country, m.Unit, m.Instance}, " ")
	if m.Subunit != "" {
		name += " " + m.Subunit
	}
	return name
}

// Selection codes of a project.
const (
	NotSelected       = 0
	Selected          = 1
	SelectedThreshold = 2
)

// Project is one PROJECTS row.
type Project struct {
	ID    string
	Name  string
	Cost  Number
	Votes Number
	Score Number

	// Selected is the declared selection code; HasSelected is false when the
	// row has no usable value.
	Selected    int
	HasSelected bool

	// Fields holds the row, project_id first, in header order.
	Fields Fields
}

// NewProject builds a project from its id and raw fields.
func NewProject(id string, fields Fields) Project {
	p := Project{
		ID:     id,
		Name:   fields.Value("name"),
		Cost:   ParseNumber(fields.Value("cost")),
		Votes:  ParseNumber(fields.Value("votes")),
		Score:  ParseNumber(fields.Value("score")),
		Fields: fields,
	}
	if raw, ok := fields.Get("selected"); ok {
		if code, err := strconv.Atoi(strings.TrimSpace(raw)); err == nil {
			p.Selected = code
			p.HasSelected = true
		}
	}
	return p
}

// Result returns the declared score when scoreField is set, else the
// declared votes.
func (p Project) Result(scoreField bool) float64 {
	if scoreField {
		return p.Score.Value
	}
	return p.Votes.Value
}

// Vote is one VOTES row.
type Vote struct {
	VoterID  string
	Projects []string

	// Points is parallel to Projects when PointsDeclared is set.
	Points         []int
	PointsDeclared bool

	// Strength weighs the vote in vote counting. It defaults to 1.
	Strength int

	Fields Fields
}

// EffectivePoints returns the declared points or, when none are declared,
// len(Projects) down to 1.
func (v Vote) EffectivePoints() []int {
	if v.PointsDeclared {
		return v.Points
	}
	points := make([]int, len(v.Projects))
	for i := range v.Projects {
		points[i] = len(v.Projects) - i
	}
	return points
}

// ParseNote is a row-level defect the reader kept instead of dropping.
type ParseNote struct {
	Line   int
	Kind   FindingKind
	Detail string
}

// Election is a parsed .pb file. It is read-only once the reader returns it.
type Election struct {
	Meta     Meta
	Projects []Project
	Votes    []Vote

	ProjectHeader []string
	VoteHeader    []string

	HasVotesField    bool
	HasScoreField    bool
	HasSelectedField bool

	Notes []ParseNote

	projectIndex map[string]int
}

// NewElection assembles an election and indexes its projects by id.
func NewElection(meta Meta, projects []Project, votes []Vote) *Election {
	e := &Election{Meta: meta, Projects: projects, Votes: votes}
	e.reindex()
	return e
}

func (e *Election) reindex() {
	e.projectIndex = make(map[string]int, len(e.Projects))
	for i, p := range e.Projects {
		e.projectIndex[p.ID] = i
	}
}

// Project returns the project with the given id.
func (e *Election) Project(id string) (Project, bool) {
	if e.projectIndex == nil {
		for _, p := range e.Projects {
			if p.ID == id {
				return p, true
			}
		}
		return Project{}, false
	}
	i, ok := e.projectIndex[id]
	if !ok {
		return Project{}, false
	}
	return e.Projects[i], true
}

// TotalCost sums the cost of every project.
func (e *Election) TotalCost() float64 {
	var total float64
	for _, p := range e.Projects {
		total += p.Cost.Value
	}
	return total
}
