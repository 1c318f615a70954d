// Package watcher keeps the index in sync with watched directories.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"

	"github.com/nickcecere/lfind/internal/config"
	"github.com/nickcecere/lfind/internal/fs"
	"github.com/nickcecere/lfind/internal/store"
)

// Indexer indexes one file. *indexer.Indexer satisfies it.
type Indexer interface {
	IndexSingleFile(ctx context.Context, path string, force bool) (*store.FileRecord, error)
}

type action int

const (
	actionIndex action = iota
	actionDelete
)

type pendingEvent struct {
	action   action
	lastSeen time.Time
}

// Watcher watches directory trees and re-indexes files once they have been
// quiet for the debounce interval.
type Watcher struct {
	roots    []string
	matchers map[string]*fs.Matcher
	indexer  Indexer
	store    store.Store
	cfg      *config.Config

	mu           sync.Mutex
	pending      map[string]pendingEvent
	debounceTime time.Duration
	now          func() time.Time

	onEvent func(event string, path string)
}

// Option configures the watcher.
type Option func(*Watcher)

// WithDebounceTime sets how long a file must be quiet before it is handled.
func WithDebounceTime(d time.Duration) Option {
	return func(w *Watcher) {
		w.debounceTime = d
	}
}

// WithEventCallback sets a callback invoked with "index" or "delete" after
// a file has been handled.
func WithEventCallback(fn func(event string, path string)) Option {
	return func(w *Watcher) {
		w.onEvent = fn
	}
}

// New creates a watcher over roots. Every root must be an existing directory.
func New(roots []string, idx Indexer, st store.Store, cfg *config.Config, opts ...Option) (*Watcher, error) {
	if len(roots) == 0 {
		return nil, errors.New("no directories to watch")
	}

	w := &Watcher{
		matchers:     make(map[string]*fs.Matcher, len(roots)),
		indexer:      idx,
		store:        st,
		cfg:          cfg,
		pending:      make(map[string]pendingEvent),
		debounceTime: cfg.Watch.Debounce,
		now:          time.Now,
		onEvent:      func(string, string) {},
	}
	if w.debounceTime <= 0 {
		w.debounceTime = config.DefaultWatchDebounce
	}

	for _, root := range roots {
		abs, err := filepath.Abs(root)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve path %s: %w", root, err)
		}
		info, err := os.Stat(abs)
		if err != nil {
			return nil, fmt.Errorf("failed to access %s: %w", abs, err)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("%s is not a directory", abs)
		}
		if _, ok := w.matchers[abs]; ok {
			continue
		}
		w.roots = append(w.roots, abs)
		w.matchers[abs] = fs.NewMatcher(fs.WalkOptions{
			Root:           abs,
			MaxFileSize:    cfg.Indexing.MaxFileSize,
			IgnorePatterns: cfg.Ignore,
			Include:        cfg.Indexing.Include,
			UseGitignore:   true,
		})
	}

	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Roots returns the absolute watched directories.
func (w *Watcher) Roots() []string {
	return append([]string(nil), w.roots...)
}

// Start watches until ctx is cancelled.
func (w *Watcher) Start(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer fw.Close()

	for _, root := range w.roots {
		w.addDirectory(fw, root, false)
	}
	log.Info("Watching for file changes", "roots", strings.Join(w.roots, ", "), "debounce", w.debounceTime)

	go w.processDebounced(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event, fw)

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			log.Error("Watcher error", "error", err)
		}
	}
}

// rootFor returns the watched root containing path and the path relative to it.
func (w *Watcher) rootFor(path string) (string, string, bool) {
	best, bestRel := "", ""
	for _, root := range w.roots {
		rel, err := filepath.Rel(root, path)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			continue
		}
		if len(root) > len(best) {
			best, bestRel = root, rel
		}
	}
	return best, bestRel, best != ""
}

// addDirectory watches dir and its subdirectories. With queueFiles the files
// already inside are queued too, for directories that appear after start.
func (w *Watcher) addDirectory(fw *fsnotify.Watcher, dir string, queueFiles bool) {
	root, _, ok := w.rootFor(dir)
	if !ok {
		return
	}
	matcher := w.matchers[root]

	_ = filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		rel, _ := filepath.Rel(root, path)

		if d.IsDir() {
			if path != root && matcher.IgnoreDir(rel) {
				return filepath.SkipDir
			}
			if err := fw.Add(path); err != nil {
				log.Debug("Failed to watch directory", "path", path, "error", err)
			}
			return nil
		}

		if queueFiles && w.indexable(matcher, rel, path) {
			w.queue(path, actionIndex)
		}
		return nil
	})
}

// indexable reports whether a file passes the ignore rules and size limit.
func (w *Watcher) indexable(matcher *fs.Matcher, rel, path string) bool {
	if matcher.IgnoreFile(rel) {
		return false
	}
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return false
	}
	if max := w.cfg.Indexing.MaxFileSize; max > 0 && info.Size() > max {
		log.Debug("Skipping large file", "path", rel, "size", info.Size())
		return false
	}
	return true
}

// handleEvent filters one file system event into the pending set.
func (w *Watcher) handleEvent(event fsnotify.Event, fw *fsnotify.Watcher) {
	path := event.Name
	root, rel, ok := w.rootFor(path)
	if !ok {
		return
	}

	if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
		w.queue(path, actionDelete)
		return
	}
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return
	}

	info, err := os.Stat(path)
	if err != nil {
		return
	}
	if info.IsDir() {
		if event.Has(fsnotify.Create) && !w.matchers[root].IgnoreDir(rel) {
			w.addDirectory(fw, path, true)
			log.Debug("Added directory to watch", "path", rel)
		}
		return
	}

	if w.indexable(w.matchers[root], rel, path) {
		w.queue(path, actionIndex)
	}
}

// queue records an event. The latest action for a path wins and restarts
// its quiet period.
func (w *Watcher) queue(path string, a action) {
	w.mu.Lock()
	w.pending[path] = pendingEvent{action: a, lastSeen: w.now()}
	w.mu.Unlock()
}

// Pending returns the number of paths waiting for their quiet period.
func (w *Watcher) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.pending)
}

func (w *Watcher) processDebounced(ctx context.Context) {
	interval := w.debounceTime / 2
	if interval < 10*time.Millisecond {
		interval = 10 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.flushDue(ctx)
		}
	}
}

// flushDue handles every pending path that has been quiet for the debounce
// interval and returns how many were handled.
func (w *Watcher) flushDue(ctx context.Context) int {
	now := w.now()

	w.mu.Lock()
	due := make(map[string]action)
	for path, ev := range w.pending {
		if now.Sub(ev.lastSeen) >= w.debounceTime {
			due[path] = ev.action
			delete(w.pending, path)
		}
	}
	w.mu.Unlock()

	handled := 0
	for path, a := range due {
		if ctx.Err() != nil {
			return handled
		}
		w.handle(ctx, path, a)
		handled++
	}
	return handled
}

// handle applies one settled event. The file's current state decides: a
// path removed and then recreated is indexed, one written and then deleted
// is removed.
func (w *Watcher) handle(ctx context.Context, path string, a action) {
	_, rel, _ := w.rootFor(path)

	if info, err := os.Stat(path); err == nil && info.Mode().IsRegular() {
		a = actionIndex
	} else if err != nil {
		a = actionDelete
	}

	switch a {
	case actionIndex:
		if _, err := w.indexer.IndexSingleFile(ctx, path, false); err != nil {
			log.Error("Failed to index file", "path", rel, "error", err)
			return
		}
		log.Info("Indexed", "file", rel)
		w.onEvent("index", path)

	case actionDelete:
		removed, err := w.handleDelete(path)
		if err != nil {
			log.Error("Failed to remove file from index", "path", rel, "error", err)
			return
		}
		if removed {
			log.Info("Removed from index", "file", rel)
			w.onEvent("delete", path)
		}
	}
}

// handleDelete removes the record for path if there is one.
func (w *Watcher) handleDelete(path string) (bool, error) {
	rec, err := w.store.GetByPath(path)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	res := w.store.Delete([]int64{rec.ID})
	if res.Errors > 0 {
		return false, fmt.Errorf("failed to delete record %d", rec.ID)
	}
	return res.Removed > 0, nil
}
