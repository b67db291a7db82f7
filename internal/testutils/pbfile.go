// Package testutils builds .pb fixtures for tests.
package testutils

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
)

// auto marks a META count that String fills in from the rows.
const auto = "\x00auto"

// PBFile builds the text of a .pb file row by row. The zero META section
// produced by NewPBFile is schema-clean, so tests only set what they
// exercise.
type PBFile struct {
	meta          [][2]string
	projectHeader []string
	projects      [][]string
	voteHeader    []string
	votes         [][]string
	bom           bool
	trailer       string
}

// NewPBFile returns a builder with an approval election in Poland, a greedy
// rule, a budget of 100 and counts derived from the rows.
func NewPBFile() *PBFile {
	return &PBFile{
		meta: [][2]string{
			{"description", "Municipal PB"},
			{"country", "Poland"},
			{"unit", "Gdańsk"},
			{"instance", "2024"},
			{"num_projects", auto},
			{"num_votes", auto},
			{"budget", "100"},
			{"vote_type", "approval"},
			{"rule", "greedy"},
			{"date_begin", "2024"},
			{"date_end", "2024"},
		},
		projectHeader: []string{"project_id", "cost", "votes", "name", "selected"},
		voteHeader:    []string{"voter_id", "vote"},
	}
}

// Meta sets key to value, appending the row when the key is new.
func (b *PBFile) Meta(key, value string) *PBFile {
	for i := range b.meta {
		if b.meta[i][0] == key {
			b.meta[i][1] = value
			return b
		}
	}
	b.meta = append(b.meta, [2]string{key, value})
	return b
}

// DropMeta removes key from META.
func (b *PBFile) DropMeta(key string) *PBFile {
	out := b.meta[:0]
	for _, kv := range b.meta {
		if kv[0] != key {
			out = append(out, kv)
		}
	}
	b.meta = out
	return b
}

// ProjectHeader replaces the PROJECTS header.
func (b *PBFile) ProjectHeader(cols ...string) *PBFile {
	b.projectHeader = cols
	return b
}

// Project appends a PROJECTS row.
func (b *PBFile) Project(cells ...string) *PBFile {
	b.projects = append(b.projects, cells)
	return b
}

// VoteHeader replaces the VOTES header.
func (b *PBFile) VoteHeader(cols ...string) *PBFile {
	b.voteHeader = cols
	return b
}

// Vote appends a VOTES row.
func (b *PBFile) Vote(cells ...string) *PBFile {
	b.votes = append(b.votes, cells)
	return b
}

// Voters appends n voters, named v1..vn, each voting for ids.
func (b *PBFile) Voters(n int, ids string) *PBFile {
	start := len(b.votes)
	for i := 1; i <= n; i++ {
		b.votes = append(b.votes, []string{"v" + strconv.Itoa(start+i), ids})
	}
	return b
}

// WithBOM prefixes the file with a UTF-8 byte order mark.
func (b *PBFile) WithBOM() *PBFile {
	b.bom = true
	return b
}

// Trailer appends raw text after the last row.
func (b *PBFile) Trailer(raw string) *PBFile {
	b.trailer = raw
	return b
}

// String renders the file.
func (b *PBFile) String() string {
	var sb strings.Builder
	if b.bom {
		sb.WriteString("\uFEFF")
	}
	row := func(cells ...string) {
		quoted := make([]string, len(cells))
		for i, c := range cells {
			quoted[i] = quote(c)
		}
		sb.WriteString(strings.Join(quoted, ";"))
		sb.WriteByte('\n')
	}

	row("META")
	row("key", "value")
	for _, kv := range b.meta {
		value := kv[1]
		if value == auto {
			switch kv[0] {
			case "num_projects":
				value = strconv.Itoa(len(b.projects))
			case "num_votes":
				value = strconv.Itoa(len(b.votes))
			}
		}
		row(kv[0], value)
	}

	row("PROJECTS")
	row(b.projectHeader...)
	for _, p := range b.projects {
		row(p...)
	}

	row("VOTES")
	row(b.voteHeader...)
	for _, v := range b.votes {
		row(v...)
	}

	sb.WriteString(b.trailer)
	return sb.String()
}

func quote(cell string) string {
	if !strings.ContainsAny(cell, ";\"\n") {
		return cell
	}
	return `"` + strings.ReplaceAll(cell, `"`, `""`) + `"`
}

// Reader returns the rendered file as a reader.
func (b *PBFile) Reader() *strings.Reader {
	return strings.NewReader(b.String())
}

// WriteFile writes the file into dir under name and returns its path.
func (b *PBFile) WriteFile(t testing.TB, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		t.Fatalf("write fixture %s: %v", path, err)
	}
	return path
}

// ScenarioFunded is one project costing the whole budget of 100, declared
// with 5 votes and selected, and five voters who all chose it.
func ScenarioFunded() *PBFile {
	return NewPBFile().
		Project("1", "100", "5", "Park renovation", "1").
		Voters(5, "1")
}
