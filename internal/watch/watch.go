// Package watch keeps analysis state fresh while a project is being edited.
// It watches a project tree recursively and, after a short quiet period,
// invalidates cached analysis and notifies the subscriber with the batch of
// changed paths.
package watch

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/apiviz/apiviz-go/internal/logging"
)

// DefaultDebounce batches editor save bursts into one invalidation.
const DefaultDebounce = 100 * time.Millisecond

// skipDirs are never watched. Heavy generated trees churn constantly and
// carry nothing the analyzers read.
var skipDirs = []string{
	"node_modules", ".next", ".git", "dist", "build", "coverage",
	"__pycache__", ".venv", "venv", ".pytest_cache",
}

// Invalidator receives cache invalidation for a root. *task.Dispatcher
// satisfies it.
type Invalidator interface {
	Invalidate(root string)
}

// Watcher watches one project root.
type Watcher struct {
	root       string
	fsw        *fsnotify.Watcher
	inv        Invalidator
	onChange   func(changed []string)
	debounce   time.Duration
	extensions map[string]bool

	mu      sync.Mutex
	timer   *time.Timer
	pending map[string]struct{}
	closed  bool
}

// Option tunes a Watcher.
type Option func(*Watcher)

// WithDebounce overrides the quiet period before a change batch fires.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) { w.debounce = d }
}

// WithExtensions narrows change tracking to the given file extensions
// (".ts", ".py", ...). Directory events are always tracked so new
// subtrees get watched.
func WithExtensions(exts ...string) Option {
	return func(w *Watcher) {
		w.extensions = make(map[string]bool, len(exts))
		for _, e := range exts {
			w.extensions[strings.ToLower(e)] = true
		}
	}
}

// New creates a watcher over root. onChange runs after each debounced batch
// with the sorted set of changed paths; inv may be nil.
func New(root string, inv Invalidator, onChange func(changed []string), opts ...Option) (*Watcher, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		root:     abs,
		fsw:      fsw,
		inv:      inv,
		onChange: onChange,
		debounce: DefaultDebounce,
		pending:  make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}

	if err := w.addRecursive(abs); err != nil {
		fsw.Close()
		return nil, err
	}
	return w, nil
}

// Run consumes filesystem events until the context is cancelled or the
// watcher is closed.
func (w *Watcher) Run(ctx context.Context) error {
	logging.Info("watching project", "root", w.root)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			logging.Warn("watch error", "root", w.root, "error", err)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if w.excluded(event.Name) {
		return
	}

	// New directories need their own watches before anything inside
	// them can be seen.
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.addRecursive(event.Name); err != nil {
				logging.Debug("failed to watch new directory",
					"dir", event.Name, "error", err)
			}
			return
		}
	}

	if !w.tracked(event.Name) {
		return
	}
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return
	}

	logging.Debug("file event", "op", event.Op.String(), "path", event.Name)
	w.schedule(event.Name)
}

// schedule records a changed path and (re)arms the debounce timer.
func (w *Watcher) schedule(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}

	w.pending[path] = struct{}{}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.flush)
}

// flush fires one batch: invalidate first, then notify.
func (w *Watcher) flush() {
	w.mu.Lock()
	changed := make([]string, 0, len(w.pending))
	for p := range w.pending {
		changed = append(changed, p)
	}
	w.pending = make(map[string]struct{})
	w.mu.Unlock()

	if len(changed) == 0 {
		return
	}
	sort.Strings(changed)

	logging.Debug("change batch", "root", w.root, "files", len(changed))
	if w.inv != nil {
		w.inv.Invalidate(w.root)
	}
	if w.onChange != nil {
		w.onChange(changed)
	}
}

// Close stops the watcher. A pending debounce batch is dropped.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()
	return w.fsw.Close()
}

func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			logging.Debug("walk error while adding watches", "path", path, "error", err)
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if w.excluded(path) {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			logging.Debug("failed to add watch", "dir", path, "error", err)
		}
		return nil
	})
}

func (w *Watcher) excluded(path string) bool {
	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		return false
	}
	for _, part := range strings.Split(filepath.ToSlash(rel), "/") {
		for _, skip := range skipDirs {
			if part == skip {
				return true
			}
		}
	}
	return false
}

// tracked reports whether a changed file is interesting to the analyzers.
func (w *Watcher) tracked(path string) bool {
	if len(w.extensions) == 0 {
		return true
	}
	return w.extensions[strings.ToLower(filepath.Ext(path))]
}
