// Package source lists and opens .pb files in a local directory or a Cloud
// Storage bucket.
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/ahrav/pbcheck/internal/ports"
	"github.com/ahrav/pbcheck/internal/report"
)

var _ ports.Source = (*Local)(nil)

// Local serves files from a directory.
type Local struct {
	dir string
}

// NewLocal creates a source over dir, which must exist.
func NewLocal(dir string) (*Local, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, ports.NewSourceError(dir, "", "Stat", err)
	}
	if !info.IsDir() {
		return nil, ports.NewSourceError(dir, "", "Stat", fmt.Errorf("not a directory"))
	}
	return &Local{dir: dir}, nil
}

// List returns the regular files in the directory whose names match
// pattern, in natural order. Names are relative to the directory.
func (l *Local) List(ctx context.Context, pattern string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	matches, err := filepath.Glob(filepath.Join(l.dir, pattern))
	if err != nil {
		return nil, ports.NewSourceError(l.String(), "", "List", err)
	}

	names := make([]string, 0, len(matches))
	for _, m := range matches {
		info, err := os.Stat(m)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		rel, err := filepath.Rel(l.dir, m)
		if err != nil {
			return nil, ports.NewSourceError(l.String(), m, "List", err)
		}
		names = append(names, filepath.ToSlash(rel))
	}
	report.SortNatural(names)
	return names, nil
}

// Open opens a listed file.
func (l *Local) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, ports.NewSourceError(l.String(), name, "Open", err)
	}
	f, err := os.Open(filepath.Join(l.dir, filepath.FromSlash(name)))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ports.NewSourceError(l.String(), name, "Open", ports.ErrObjectNotFound)
	}
	if err != nil {
		return nil, ports.NewSourceError(l.String(), name, "Open", err)
	}
	return f, nil
}

// Path returns the local path of a listed name.
func (l *Local) Path(name string) string {
	return filepath.Join(l.dir, filepath.FromSlash(name))
}

// String returns the directory.
func (l *Local) String() string { return l.dir }
