// Package watcher provides debounced filesystem watching for repository
// roots. Raw notifications are serialized into one event stream, batched over
// a debounce window, and delivered to a single change callback.
package watcher

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	cerrors "github.com/randalmurphal/code-context/internal/errors"
)

// EventType classifies a filesystem event.
type EventType string

const (
	EventAdd       EventType = "add"
	EventChange    EventType = "change"
	EventUnlink    EventType = "unlink"
	EventAddDir    EventType = "addDir"
	EventUnlinkDir EventType = "unlinkDir"
)

// Event is one observed filesystem change. RelPath is repo-relative when the
// path lies under the repository root; otherwise the absolute path is used as
// a best-effort fallback.
type Event struct {
	Type      EventType
	AbsPath   string
	RelPath   string
	Timestamp time.Time
}

// Batch is what the change callback receives after a debounce window closes:
// the deduplicated change set keyed by relative path, plus every event of the
// window in arrival order.
type Batch struct {
	Changes map[string]Event
	Events  []Event
}

// ChangeCallback handles a debounced batch. Errors are counted and forwarded
// to the error callback; they never stop the watcher.
type ChangeCallback func(Batch) error

// Stats is a point-in-time copy of watcher counters.
type Stats struct {
	WatchedPaths    int
	TotalEvents     int
	ProcessedEvents int
	Errors          int
	StartedAt       time.Time
}

// Config controls watcher behavior.
type Config struct {
	RepoRoot         string
	Paths            []string // absolute paths to watch; defaults to {RepoRoot}
	DebounceInterval time.Duration
}

// DefaultDebounceInterval is used when the config leaves the interval unset.
const DefaultDebounceInterval = 2000 * time.Millisecond

// Watcher watches a path set and delivers debounced change batches. All event
// handling is serialized: filesystem notifications may arrive on any
// goroutine, but observation and callback invocation happen one at a time.
type Watcher struct {
	cfg    Config
	logger *slog.Logger

	mu          sync.Mutex
	fsw         *fsnotify.Watcher
	running     bool
	watchedDirs map[string]struct{}
	pendingSet  map[string]Event
	pendingList []Event
	timer       *time.Timer
	inCallback  bool
	onChange    ChangeCallback
	onError     func(error)
	stats       Stats
	done        chan struct{}
}

// New creates a watcher. Call OnChange before Start to receive batches.
func New(cfg Config) *Watcher {
	if cfg.DebounceInterval <= 0 {
		cfg.DebounceInterval = DefaultDebounceInterval
	}
	if len(cfg.Paths) == 0 && cfg.RepoRoot != "" {
		cfg.Paths = []string{cfg.RepoRoot}
	}
	return &Watcher{
		cfg:         cfg,
		logger:      slog.Default(),
		watchedDirs: make(map[string]struct{}),
		pendingSet:  make(map[string]Event),
	}
}

// OnChange registers the change callback. Only the last registration wins.
func (w *Watcher) OnChange(cb ChangeCallback) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onChange = cb
}

// OnError registers the error callback. Only the last registration wins.
func (w *Watcher) OnError(cb func(error)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onError = cb
}

// Start subscribes to filesystem events on the configured paths. Events for
// files already present at subscription time are not re-emitted. Starting an
// already-running watcher is an error.
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return cerrors.ErrWatcherRunning
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fsnotify watcher: %w", err)
	}

	for _, path := range w.cfg.Paths {
		if err := w.addPathLocked(fsw, path); err != nil {
			fsw.Close()
			return err
		}
	}

	w.fsw = fsw
	w.running = true
	w.stats = Stats{WatchedPaths: len(w.watchedDirs), StartedAt: time.Now()}
	w.done = make(chan struct{})

	go w.loop(fsw, w.done)

	w.logger.Info("watcher started", "paths", len(w.cfg.Paths), "debounce", w.cfg.DebounceInterval)
	return nil
}

// Stop tears the watcher down, flushing any buffered batch through the
// callback first. Stopping a watcher that is not running logs a warning and
// is otherwise a no-op.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		w.logger.Warn("watcher not running")
		return
	}

	w.running = false
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	fsw := w.fsw
	w.fsw = nil
	done := w.done
	w.watchedDirs = make(map[string]struct{})
	w.mu.Unlock()

	fsw.Close()
	<-done

	// Stop-time drain: a pending batch is still delivered.
	w.flush()
	w.logger.Info("watcher stopped")
}

// UpdatePaths replaces the watched path set. With restart true and a running
// watcher, the watcher is stopped and started again on the new set.
func (w *Watcher) UpdatePaths(paths []string, restart bool) error {
	w.mu.Lock()
	w.cfg.Paths = paths
	running := w.running
	w.mu.Unlock()

	if restart && running {
		w.Stop()
		return w.Start()
	}
	return nil
}

// IsWatching reports whether the watcher is running.
func (w *Watcher) IsWatching() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// Stats returns a snapshot copy of the counters.
func (w *Watcher) Stats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()
	s := w.stats
	s.WatchedPaths = len(w.watchedDirs)
	return s
}

// addPathLocked registers a path (recursively for directories) with fsnotify.
func (w *Watcher) addPathLocked(fsw *fsnotify.Watcher, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat watch path %s: %w", path, err)
	}
	if !info.IsDir() {
		if err := fsw.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		return nil
	}

	return filepath.WalkDir(path, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			w.logger.Warn("skipping unreadable path", "path", p, "error", err)
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if name := d.Name(); p != path && strings.HasPrefix(name, ".") {
			return filepath.SkipDir
		}
		if err := fsw.Add(p); err != nil {
			w.logger.Warn("watch failed", "path", p, "error", err)
			return nil
		}
		w.watchedDirs[p] = struct{}{}
		return nil
	})
}

// loop serializes raw fsnotify notifications into the pending buffers.
func (w *Watcher) loop(fsw *fsnotify.Watcher, done chan struct{}) {
	defer close(done)
	for {
		select {
		case ev, ok := <-fsw.Events:
			if !ok {
				return
			}
			w.handleFsEvent(ev)
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			w.recordError(err)
		}
	}
}

func (w *Watcher) handleFsEvent(ev fsnotify.Event) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.running {
		return
	}

	event, ok := w.classifyLocked(ev)
	if !ok {
		return
	}

	w.stats.TotalEvents++
	w.pendingSet[event.RelPath] = event
	w.pendingList = append(w.pendingList, event)
	w.resetTimerLocked()
}

// classifyLocked maps an fsnotify event onto the watcher's event model and
// keeps the recursive directory watches up to date.
func (w *Watcher) classifyLocked(ev fsnotify.Event) (Event, bool) {
	abs := ev.Name
	event := Event{
		AbsPath:   abs,
		RelPath:   w.relPath(abs),
		Timestamp: time.Now(),
	}

	base := filepath.Base(abs)
	if strings.HasPrefix(base, ".") {
		return Event{}, false
	}

	switch {
	case ev.Op.Has(fsnotify.Create):
		info, err := os.Stat(abs)
		if err == nil && info.IsDir() {
			event.Type = EventAddDir
			if w.fsw != nil {
				if err := w.fsw.Add(abs); err == nil {
					w.watchedDirs[abs] = struct{}{}
				}
			}
		} else {
			event.Type = EventAdd
		}
	case ev.Op.Has(fsnotify.Write):
		event.Type = EventChange
	case ev.Op.Has(fsnotify.Remove), ev.Op.Has(fsnotify.Rename):
		if _, wasDir := w.watchedDirs[abs]; wasDir {
			event.Type = EventUnlinkDir
			delete(w.watchedDirs, abs)
		} else {
			event.Type = EventUnlink
		}
	default:
		return Event{}, false
	}
	return event, true
}

// relPath computes the repo-relative path, falling back to the absolute path
// for anything outside the root.
func (w *Watcher) relPath(abs string) string {
	if w.cfg.RepoRoot == "" {
		return abs
	}
	rel, err := filepath.Rel(w.cfg.RepoRoot, abs)
	if err != nil || strings.HasPrefix(rel, "..") {
		return abs
	}
	return filepath.ToSlash(rel)
}

func (w *Watcher) resetTimerLocked() {
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.cfg.DebounceInterval, w.flush)
}

// flush delivers the buffered batch through the change callback exactly once.
// A reentrancy guard prevents concurrent invocations: if the callback is
// still running when the timer fires, the new events stay buffered and a
// fresh timer is scheduled when the callback returns.
func (w *Watcher) flush() {
	w.mu.Lock()
	if w.inCallback {
		w.resetTimerLocked()
		w.mu.Unlock()
		return
	}
	if len(w.pendingList) == 0 {
		w.mu.Unlock()
		return
	}

	batch := Batch{Changes: w.pendingSet, Events: w.pendingList}
	w.pendingSet = make(map[string]Event)
	w.pendingList = nil
	w.stats.ProcessedEvents += len(batch.Events)
	cb := w.onChange
	w.inCallback = true
	w.mu.Unlock()

	if cb != nil {
		if err := w.safeInvoke(cb, batch); err != nil {
			w.recordError(err)
		}
	}

	w.mu.Lock()
	w.inCallback = false
	if len(w.pendingList) > 0 && w.running {
		w.resetTimerLocked()
	}
	w.mu.Unlock()
}

// safeInvoke runs the callback, converting panics into errors so a bad
// handler cannot tear the watcher down.
func (w *Watcher) safeInvoke(cb ChangeCallback, batch Batch) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("change callback panicked: %v", r)
		}
	}()
	return cb(batch)
}

func (w *Watcher) recordError(err error) {
	w.mu.Lock()
	w.stats.Errors++
	cb := w.onError
	w.mu.Unlock()

	w.logger.Warn("watcher error", "error", err)
	if cb != nil {
		cb(err)
	}
}
