package source

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcher_ReportsSettledFiles(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWatcher(dir, "*.pb", 20*time.Millisecond, nil)
	require.NoError(t, err)
	defer w.Close()

	var (
		mu    sync.Mutex
		names []string
	)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- w.Run(ctx, func(_ context.Context, name string) {
			mu.Lock()
			defer mu.Unlock()
			names = append(names, name)
		})
	}()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.pb"), []byte("META\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.pb"), []byte("META\nkey;value\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(names) > 0
	}, 2*time.Second, 10*time.Millisecond)

	// Let any late events settle before checking nothing else arrived.
	time.Sleep(100 * time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"a.pb"}, names)
}

func TestNewWatcher_Errors(t *testing.T) {
	_, err := NewWatcher(t.TempDir(), "[", time.Second, nil)
	assert.ErrorContains(t, err, "invalid pattern")

	_, err = NewWatcher(filepath.Join(t.TempDir(), "missing"), "*.pb", time.Second, nil)
	assert.Error(t, err)
}
