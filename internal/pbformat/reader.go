// Package pbformat reads and writes the sectioned, semicolon separated .pb
// participatory budgeting format.
package pbformat

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/encoding/unicode"

	"github.com/ahrav/pbcheck/internal/domain"
)

// Separator is the cell delimiter of .pb files.
const Separator = ';'

// listSeparator separates items inside list cells such as vote and points.
const listSeparator = ","

// ReadFile parses the .pb file at path.
func ReadFile(path string) (*domain.Election, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	return Read(f)
}

// Read parses a .pb document. Duplicated voter ids and missing META or
// PROJECTS sections are errors; every other row-level defect is recorded in
// the election's Notes and parsing continues.
func Read(r io.Reader) (*domain.Election, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}
	data, err := unicode.UTF8BOM.NewDecoder().Bytes(raw)
	if err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}

	p := &parser{
		voters:   make(map[string]int),
		projects: make(map[string]int),
	}

	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), maxLine)

	var (
		line      int
		pending   domain.Section
		markerAt  int
		hasMarker bool
	)
	for sc.Scan() {
		line++
		text := strings.TrimSuffix(sc.Text(), "\r")
		if strings.Trim(text, " \t;") == "" {
			p.note(line, domain.KindEmptyLine, "Empty line %d in file", line)
			continue
		}

		record, ok := splitRow(text)
		if !ok {
			p.note(line, domain.KindMalformedRow, "Unterminated quote at line %d, row split on every separator", line)
		}

		if hasMarker {
			p.enter(pending, trimAll(record), markerAt)
			hasMarker = false
			continue
		}
		if section, ok := sectionMarker(record); ok {
			pending, markerAt, hasMarker = section, line, true
			continue
		}
		if err := p.row(record, line); err != nil {
			return nil, err
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read line %d: %w", line+1, err)
	}
	if hasMarker {
		return nil, domain.NewParseError(markerAt, fmt.Errorf("%w: %s", domain.ErrMissingHeader, pending))
	}

	return p.election()
}

// maxLine bounds a single row. VOTES rows of large cities stay far below it.
const maxLine = 16 << 20

// splitRow splits one line on the separator. A cell that opens with a quote
// runs to the matching quote, "" inside it being a literal quote; text after
// the closing quote is kept, so `"Big" park` reads as `Big park`. Quotes
// never span lines: when one is left open, ok is false and the line is split
// on every separator instead.
func splitRow(text string) (cells []string, ok bool) {
	var (
		cell   strings.Builder
		quoted bool
		start  = true
	)
	for i := 0; i < len(text); i++ {
		c := text[i]
		switch {
		case quoted && c == '"':
			if i+1 < len(text) && text[i+1] == '"' {
				cell.WriteByte('"')
				i++
			} else {
				quoted = false
			}
		case quoted:
			cell.WriteByte(c)
		case c == '"' && start:
			quoted, start = true, false
		case c == Separator:
			cells = append(cells, cell.String())
			cell.Reset()
			start = true
		default:
			cell.WriteByte(c)
			start = false
		}
	}
	if quoted {
		return strings.Split(text, string(Separator)), false
	}
	return append(cells, cell.String()), true
}

type parser struct {
	section domain.Section
	seen    []domain.Section

	metaFields    domain.Fields
	projectHeader []string
	voteHeader    []string
	projects      map[string]int
	projectRows   []domain.Project
	voters        map[string]int
	voteRows      []domain.Vote
	notes         []domain.ParseNote
}

func (p *parser) note(line int, kind domain.FindingKind, format string, args ...any) {
	p.notes = append(p.notes, domain.ParseNote{Line: line, Kind: kind, Detail: fmt.Sprintf(format, args...)})
}

func (p *parser) enter(section domain.Section, header []string, line int) {
	if slices.Contains(p.seen, section) {
		p.note(line, domain.KindMalformedRow, "Section %s declared again at line %d", strings.ToUpper(string(section)), line)
	}
	p.seen = append(p.seen, section)
	p.section = section

	switch section {
	case domain.SectionProjects:
		p.projectHeader = header
	case domain.SectionVotes:
		p.voteHeader = header
	}
}

func (p *parser) row(record []string, line int) error {
	switch p.section {
	case domain.SectionMeta:
		p.metaRow(trimAll(record), line)
	case domain.SectionProjects:
		p.projectRow(trimAll(record), line)
	case domain.SectionVotes:
		return p.voteRow(trimAll(record), line)
	default:
		p.note(line, domain.KindMalformedRow, "Row outside of any section at line %d: %s", line, strings.Join(record, string(Separator)))
	}
	return nil
}

func (p *parser) metaRow(cells []string, line int) {
	switch {
	case len(cells) < 2:
		p.note(line, domain.KindMalformedRow, "META row %q has no value (line %d)", cells[0], line)
		p.metaFields = append(p.metaFields, domain.Field{Name: cells[0]})
		return
	case len(cells) > 2:
		p.note(line, domain.KindMalformedRow, "META row %q has %d cells, expected 2 (line %d)", cells[0], len(cells), line)
	}
	p.metaFields = append(p.metaFields, domain.Field{Name: cells[0], Value: cells[1]})
}

// zip pairs cells with header names. Cells beyond the header are reported
// and kept under a positional name so they are not lost.
func (p *parser) zip(header, cells []string, line int, section domain.Section) domain.Fields {
	if len(cells) != len(header) {
		p.note(line, domain.KindMalformedRow, "%s row %q has %d cells, header has %d (line %d)",
			strings.ToUpper(string(section)), cells[0], len(cells), len(header), line)
	}

	fields := make(domain.Fields, 0, len(cells))
	for i, v := range cells {
		name := "column_" + strconv.Itoa(i+1)
		if i < len(header) {
			name = header[i]
		}
		fields = append(fields, domain.Field{Name: name, Value: v})
	}
	return fields
}

func (p *parser) projectRow(cells []string, line int) {
	id := cells[0]
	fields := p.zip(p.projectHeader, cells, line, domain.SectionProjects)

	if first, ok := p.projects[id]; ok {
		p.note(line, domain.KindMalformedRow, "Duplicated project ID %s at line %d, first seen at line %d", id, line, first)
	} else {
		p.projects[id] = line
	}
	p.projectRows = append(p.projectRows, domain.NewProject(id, fields))
}

func (p *parser) voteRow(cells []string, line int) error {
	id := cells[0]
	if first, ok := p.voters[id]; ok {
		return domain.NewParseError(line, fmt.Errorf("%w: %s (first seen at line %d)", domain.ErrDuplicatedVoterID, id, first))
	}
	p.voters[id] = line

	fields := p.zip(p.voteHeader, cells, line, domain.SectionVotes)
	vote := domain.Vote{
		VoterID:  id,
		Projects: splitList(fields.Value("vote")),
		Strength: 1,
		Fields:   fields,
	}

	if raw, ok := fields.Get("points"); ok && raw != "" {
		points, err := parsePoints(raw)
		switch {
		case err != nil:
			p.note(line, domain.KindInvalidPoints, "Voter ID: %s, points %q are not integers", id, raw)
		case len(points) != len(vote.Projects):
			p.note(line, domain.KindInvalidPoints, "Voter ID: %s, %d points for %d projects", id, len(points), len(vote.Projects))
			vote.Points, vote.PointsDeclared = points, true
		default:
			vote.Points, vote.PointsDeclared = points, true
		}
	}

	if raw := fields.Value("vote_strength"); raw != "" {
		strength, err := strconv.Atoi(raw)
		if err != nil || strength < 0 {
			p.note(line, domain.KindMalformedRow, "Voter ID: %s, vote_strength %q is not a non-negative integer", id, raw)
		} else {
			vote.Strength = strength
		}
	}

	p.voteRows = append(p.voteRows, vote)
	return nil
}

func (p *parser) election() (*domain.Election, error) {
	for _, required := range []domain.Section{domain.SectionMeta, domain.SectionProjects} {
		if !slices.Contains(p.seen, required) {
			return nil, fmt.Errorf("%w: %s", domain.ErrMissingSection, strings.ToUpper(string(required)))
		}
	}

	e := domain.NewElection(domain.NewMeta(p.metaFields), p.projectRows, p.voteRows)
	e.ProjectHeader = p.projectHeader
	e.VoteHeader = p.voteHeader
	e.HasVotesField = slices.Contains(p.projectHeader, "votes")
	e.HasScoreField = slices.Contains(p.projectHeader, "score")
	e.HasSelectedField = slices.Contains(p.projectHeader, "selected")
	slices.SortStableFunc(p.notes, func(a, b domain.ParseNote) int { return a.Line - b.Line })
	e.Notes = p.notes
	return e, nil
}

func sectionMarker(record []string) (domain.Section, bool) {
	// A Caser is stateful, so each call gets its own.
	switch s := domain.Section(cases.Fold().String(strings.TrimSpace(record[0]))); s {
	case domain.SectionMeta, domain.SectionProjects, domain.SectionVotes:
		return s, true
	}
	return "", false
}

func trimAll(cells []string) []string {
	out := make([]string, len(cells))
	for i, c := range cells {
		out[i] = strings.TrimSpace(c)
	}
	return out
}

func splitList(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return []string{}
	}
	parts := strings.Split(raw, listSeparator)
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func parsePoints(raw string) ([]int, error) {
	parts := splitList(raw)
	points := make([]int, len(parts))
	for i, s := range parts {
		v, err := strconv.Atoi(s)
		if err != nil {
			return nil, err
		}
		points[i] = v
	}
	return points, nil
}
