// Package watch reruns a callback when manifest files under a directory
// change.
//
// Events are debounced: everything that changes within the quiet period is
// delivered to one callback invocation. Directory exclusions follow the same
// rules as the scan walk, so a watcher never reacts to files a scan would not
// read.
package watch

import (
	"context"
	"errors"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"

	"github.com/matzehuels/depscout/pkg/fswalk"
)

// DefaultDebounce is the quiet period used when Config.Debounce is zero.
const DefaultDebounce = 500 * time.Millisecond

var errRunTwice = errors.New("watch: Run called more than once")

// Config configures a [Watcher].
type Config struct {
	Root string

	// Patterns select the files that trigger a rerun, with the matching rules
	// of [fswalk.Match]. Empty means every file.
	Patterns []string

	// ExcludedDirs and Exclude have the meaning of the scan walk options.
	ExcludedDirs []string
	Exclude      []string

	Debounce time.Duration

	// OnChange receives the sorted root-relative paths that changed.
	OnChange func(ctx context.Context, changed []string) error

	Logger *log.Logger
}

// Watcher watches one directory tree. Run may be called once.
type Watcher struct {
	cfg     Config
	walker  *fswalk.Walker
	fsw     *fsnotify.Watcher
	logger  *log.Logger
	started atomic.Bool
}

// New validates cfg and registers every non-excluded directory under Root.
func New(cfg Config) (*Watcher, error) {
	walker, err := fswalk.New(fswalk.Config{
		Root:         cfg.Root,
		ExcludedDirs: cfg.ExcludedDirs,
		Exclude:      cfg.Exclude,
	})
	if err != nil {
		return nil, err
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{cfg: cfg, walker: walker, fsw: fsw, logger: logger}
	if err := w.addTree(walker.Root()); err != nil {
		_ = fsw.Close()
		return nil, err
	}
	return w, nil
}

// Root returns the absolute watched directory.
func (w *Watcher) Root() string { return w.walker.Root() }

// Run processes events until ctx is done. It returns nil on cancellation
// and an error when the underlying watcher breaks.
func (w *Watcher) Run(ctx context.Context) error {
	if !w.started.CompareAndSwap(false, true) {
		return errRunTwice
	}
	defer w.fsw.Close()

	var (
		mu      sync.Mutex
		pending = make(map[string]struct{})
		timer   *time.Timer
		busy    atomic.Bool
	)

	fire := func() {
		if ctx.Err() != nil {
			return
		}
		if !busy.CompareAndSwap(false, true) {
			// A rerun is still going; try again after another quiet period.
			mu.Lock()
			timer.Reset(w.cfg.Debounce)
			mu.Unlock()
			return
		}
		defer busy.Store(false)

		mu.Lock()
		changed := slices.Sorted(maps.Keys(pending))
		clear(pending)
		mu.Unlock()
		if len(changed) == 0 || w.cfg.OnChange == nil {
			return
		}
		if err := w.cfg.OnChange(ctx, changed); err != nil {
			w.logger.Error("rerun failed", "err", err)
		}
	}

	defer func() {
		mu.Lock()
		if timer != nil {
			timer.Stop()
		}
		mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case evt, ok := <-w.fsw.Events:
			if !ok {
				return errors.New("watch: event channel closed")
			}
			rel, ok := w.relevant(evt)
			if !ok {
				continue
			}
			w.logger.Debug("change", "file", rel, "op", evt.Op.String())
			mu.Lock()
			pending[rel] = struct{}{}
			if timer == nil {
				timer = time.AfterFunc(w.cfg.Debounce, fire)
			} else {
				timer.Reset(w.cfg.Debounce)
			}
			mu.Unlock()

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return errors.New("watch: error channel closed")
			}
			if fatal(err) {
				return err
			}
			w.logger.Warn("watch error", "err", err)
		}
	}
}

// relevant maps an event to its root-relative path and reports whether it
// should trigger a rerun. New directories are added to the watch.
func (w *Watcher) relevant(evt fsnotify.Event) (string, bool) {
	rel, err := filepath.Rel(w.walker.Root(), evt.Name)
	if err != nil {
		return "", false
	}
	rel = filepath.ToSlash(rel)

	if evt.Has(fsnotify.Create) {
		if info, err := os.Stat(evt.Name); err == nil && info.IsDir() {
			if !w.walker.Excluded(rel, true) {
				if err := w.addTree(evt.Name); err != nil {
					w.logger.Warn("cannot watch directory", "dir", rel, "err", err)
				}
			}
			return "", false
		}
	}
	if evt.Has(fsnotify.Chmod) && !evt.Has(fsnotify.Write) {
		return "", false
	}
	if w.walker.Excluded(rel, false) || w.insideExcluded(rel) {
		return "", false
	}
	return rel, w.matches(rel)
}

func (w *Watcher) matches(rel string) bool {
	if len(w.cfg.Patterns) == 0 {
		return true
	}
	for _, p := range w.cfg.Patterns {
		if fswalk.Match(p, rel) {
			return true
		}
	}
	return false
}

func (w *Watcher) insideExcluded(rel string) bool {
	for dir := filepath.ToSlash(filepath.Dir(rel)); dir != "." && dir != "/"; dir = filepath.ToSlash(filepath.Dir(dir)) {
		if w.walker.Excluded(dir, true) {
			return true
		}
	}
	return false
}

func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == dir {
				return err
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if p != w.walker.Root() {
			rel, err := filepath.Rel(w.walker.Root(), p)
			if err == nil && w.walker.Excluded(filepath.ToSlash(rel), true) {
				return fs.SkipDir
			}
		}
		return w.fsw.Add(p)
	})
}
