package pbformat

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"

	"github.com/ahrav/pbcheck/internal/domain"
)

// Write serializes e in .pb layout. Project and vote rows follow the
// election's headers; fields missing from a row are written empty and
// surplus cells are written after the header columns.
func Write(w io.Writer, e *domain.Election) error {
	bw := bufio.NewWriter(w)
	cw := csv.NewWriter(bw)
	cw.Comma = Separator

	rows := [][]string{{"META"}, {"key", "value"}}
	for _, f := range e.Meta.Fields {
		rows = append(rows, []string{f.Name, f.Value})
	}

	rows = append(rows, []string{"PROJECTS"}, e.ProjectHeader)
	for _, p := range e.Projects {
		rows = append(rows, rowFor(e.ProjectHeader, p.Fields))
	}

	if len(e.VoteHeader) > 0 {
		rows = append(rows, []string{"VOTES"}, e.VoteHeader)
		for _, v := range e.Votes {
			rows = append(rows, rowFor(e.VoteHeader, v.Fields))
		}
	}

	if err := cw.WriteAll(rows); err != nil {
		return fmt.Errorf("write rows: %w", err)
	}
	return bw.Flush()
}

// WriteFile writes e to path, creating parent directories.
func WriteFile(path string, e *domain.Election) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}
	f, err := os.Create(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := Write(f, e); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// rowFor lays fields out in header order. Fields the header does not name,
// such as the column_N cells of a ragged row, follow in their own order.
func rowFor(header []string, fields domain.Fields) []string {
	row := make([]string, len(header), len(fields))
	for i, name := range header {
		row[i] = fields.Value(name)
	}
	for _, f := range fields {
		if !slices.Contains(header, f.Name) {
			row = append(row, f.Value)
		}
	}
	return row
}
