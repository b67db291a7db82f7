package source

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/ahrav/pbcheck/internal/ports"
	"github.com/ahrav/pbcheck/internal/report"
)

// DefaultDebounce is how long a file must stay unchanged before it is
// reported. Editors and uploads write files in several steps.
const DefaultDebounce = 500 * time.Millisecond

// Watcher reports files of a directory that are created or rewritten.
type Watcher struct {
	dir      string
	pattern  string
	debounce time.Duration
	watcher  *fsnotify.Watcher
	logger   *zap.Logger
}

// NewWatcher watches dir for files whose base name matches pattern.
func NewWatcher(dir, pattern string, debounce time.Duration, logger *zap.Logger) (*Watcher, error) {
	if _, err := filepath.Match(pattern, ""); err != nil {
		return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := fw.Add(dir); err != nil {
		_ = fw.Close()
		return nil, ports.NewSourceError(dir, "", "Watch", err)
	}
	return &Watcher{
		dir:      dir,
		pattern:  pattern,
		debounce: max(debounce, 10*time.Millisecond),
		watcher:  fw,
		logger:   logger,
	}, nil
}

// Run calls onChange with the name, relative to the directory, of every
// matching file once it has settled. Calls are sequential and in natural
// order within one tick. Run returns when ctx ends or the watcher closes.
func (w *Watcher) Run(ctx context.Context, onChange func(ctx context.Context, name string)) error {
	pending := make(map[string]time.Time)
	ticker := time.NewTicker(w.debounce / 4)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			name := filepath.Base(event.Name)
			if ok, _ := filepath.Match(w.pattern, name); !ok {
				continue
			}
			w.logger.Debug("file changed", zap.String("file", name), zap.String("op", event.Op.String()))
			pending[name] = time.Now()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", zap.String("dir", w.dir), zap.Error(err))

		case now := <-ticker.C:
			var ready []string
			for name, at := range pending {
				if now.Sub(at) >= w.debounce {
					ready = append(ready, name)
				}
			}
			report.SortNatural(ready)
			for _, name := range ready {
				delete(pending, name)
				if ctx.Err() != nil {
					return nil
				}
				onChange(ctx, name)
			}
		}
	}
}

// Close stops watching.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}
