package source

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/pbcheck/internal/ports"
)

func writeFiles(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, n := range names {
		path := filepath.Join(dir, n)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte("content of "+n), 0o644))
	}
}

func TestLocal_List(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "poland_10.pb", "poland_2.pb", "poland_1.pb", "notes.txt", "sub/poland_3.pb")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "dir.pb"), 0o755))

	src, err := NewLocal(dir)
	require.NoError(t, err)

	tests := []struct {
		name    string
		pattern string
		want    []string
	}{
		{name: "natural order", pattern: "*.pb", want: []string{"poland_1.pb", "poland_2.pb", "poland_10.pb"}},
		{name: "narrow pattern", pattern: "poland_1*.pb", want: []string{"poland_1.pb", "poland_10.pb"}},
		{name: "nested", pattern: "sub/*.pb", want: []string{"sub/poland_3.pb"}},
		{name: "no match", pattern: "*.csv", want: []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := src.List(context.Background(), tt.pattern)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLocal_ListBadPattern(t *testing.T) {
	src, err := NewLocal(t.TempDir())
	require.NoError(t, err)

	_, err = src.List(context.Background(), "[")
	var srcErr *ports.SourceError
	require.ErrorAs(t, err, &srcErr)
	assert.Equal(t, "List", srcErr.Operation)
}

func TestLocal_Open(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "a.pb")
	src, err := NewLocal(dir)
	require.NoError(t, err)

	rc, err := src.Open(context.Background(), "a.pb")
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "content of a.pb", string(data))
	assert.Equal(t, filepath.Join(dir, "a.pb"), src.Path("a.pb"))

	_, err = src.Open(context.Background(), "missing.pb")
	assert.ErrorIs(t, err, ports.ErrObjectNotFound)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = src.Open(ctx, "a.pb")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewLocal_Errors(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "file.pb")

	_, err := NewLocal(filepath.Join(dir, "nope"))
	assert.Error(t, err)

	_, err = NewLocal(filepath.Join(dir, "file.pb"))
	assert.ErrorContains(t, err, "not a directory")
}
