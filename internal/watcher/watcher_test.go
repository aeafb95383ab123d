package watcher

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/require"
)

// batchCollector records delivered batches for assertions.
type batchCollector struct {
	mu      sync.Mutex
	batches []Batch
}

func (c *batchCollector) callback(b Batch) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.batches = append(c.batches, b)
	return nil
}

func (c *batchCollector) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.batches)
}

func (c *batchCollector) batch(i int) Batch {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.batches[i]
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	require.True(t, cond(), "condition not met within %v", timeout)
}

func TestStartTwiceFails(t *testing.T) {
	root := t.TempDir()
	w := New(Config{RepoRoot: root, DebounceInterval: 50 * time.Millisecond})
	require.NoError(t, w.Start())
	defer w.Stop()

	require.Error(t, w.Start())
	require.True(t, w.IsWatching())
}

func TestStopWhenNotRunningIsNoOp(t *testing.T) {
	w := New(Config{RepoRoot: t.TempDir()})
	w.Stop() // warns, does not panic
	require.False(t, w.IsWatching())
}

func TestDebounceBatchesEvents(t *testing.T) {
	root := t.TempDir()
	w := New(Config{RepoRoot: root, DebounceInterval: 200 * time.Millisecond})

	collector := &batchCollector{}
	w.OnChange(collector.callback)
	w.running = true

	// Three change events within 50ms on a 200ms debounce window.
	for _, name := range []string{"a.ts", "b.ts", "c.ts"} {
		w.handleFsEvent(fsnotify.Event{Name: filepath.Join(root, name), Op: fsnotify.Write})
		time.Sleep(10 * time.Millisecond)
	}

	waitFor(t, 2*time.Second, func() bool { return collector.count() == 1 })

	batch := collector.batch(0)
	require.Len(t, batch.Changes, 3)
	require.Len(t, batch.Events, 3)
	require.Equal(t, "a.ts", batch.Events[0].RelPath)
	require.Equal(t, "b.ts", batch.Events[1].RelPath)
	require.Equal(t, "c.ts", batch.Events[2].RelPath)

	// No second invocation afterwards.
	time.Sleep(300 * time.Millisecond)
	require.Equal(t, 1, collector.count())
}

func TestDedupByRelativePathKeepsFullEventList(t *testing.T) {
	root := t.TempDir()
	w := New(Config{RepoRoot: root, DebounceInterval: 100 * time.Millisecond})

	collector := &batchCollector{}
	w.OnChange(collector.callback)
	w.running = true

	path := filepath.Join(root, "x.go")
	w.handleFsEvent(fsnotify.Event{Name: path, Op: fsnotify.Create})
	w.handleFsEvent(fsnotify.Event{Name: path, Op: fsnotify.Write})

	waitFor(t, 2*time.Second, func() bool { return collector.count() == 1 })

	batch := collector.batch(0)
	require.Len(t, batch.Changes, 1)
	require.Len(t, batch.Events, 2)
	// Latest event wins in the deduplicated set.
	require.Equal(t, EventChange, batch.Changes["x.go"].Type)
}

func TestCallbackErrorCountedAndForwarded(t *testing.T) {
	root := t.TempDir()
	w := New(Config{RepoRoot: root, DebounceInterval: 50 * time.Millisecond})
	w.running = true

	w.OnChange(func(Batch) error { return errors.New("boom") })

	var mu sync.Mutex
	var forwarded []error
	w.OnError(func(err error) {
		mu.Lock()
		forwarded = append(forwarded, err)
		mu.Unlock()
	})

	w.handleFsEvent(fsnotify.Event{Name: filepath.Join(root, "f.go"), Op: fsnotify.Write})

	waitFor(t, 2*time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(forwarded) == 1
	})
	require.Equal(t, 1, w.Stats().Errors)
}

func TestCallbackPanicDoesNotTearDown(t *testing.T) {
	root := t.TempDir()
	w := New(Config{RepoRoot: root, DebounceInterval: 50 * time.Millisecond})
	w.running = true
	w.OnChange(func(Batch) error { panic("bad handler") })

	w.handleFsEvent(fsnotify.Event{Name: filepath.Join(root, "f.go"), Op: fsnotify.Write})

	waitFor(t, 2*time.Second, func() bool { return w.Stats().Errors == 1 })
}

func TestRelativePathFallbackOutsideRoot(t *testing.T) {
	root := t.TempDir()
	w := New(Config{RepoRoot: root})

	outside := filepath.Join(t.TempDir(), "elsewhere.go")
	require.Equal(t, outside, w.relPath(outside))
	require.Equal(t, "sub/file.go", w.relPath(filepath.Join(root, "sub", "file.go")))
}

func TestRealFilesystemEvents(t *testing.T) {
	root := t.TempDir()
	existing := filepath.Join(root, "existing.go")
	require.NoError(t, os.WriteFile(existing, []byte("package x"), 0644))

	w := New(Config{RepoRoot: root, DebounceInterval: 150 * time.Millisecond})
	collector := &batchCollector{}
	w.OnChange(collector.callback)

	require.NoError(t, w.Start())
	defer w.Stop()

	// Existing files produce no events (initial-scan suppression); only the
	// modification below is observed.
	require.NoError(t, os.WriteFile(existing, []byte("package x // changed"), 0644))

	waitFor(t, 5*time.Second, func() bool { return collector.count() >= 1 })

	batch := collector.batch(0)
	_, ok := batch.Changes["existing.go"]
	require.True(t, ok)

	stats := w.Stats()
	require.GreaterOrEqual(t, stats.TotalEvents, 1)
	require.GreaterOrEqual(t, stats.ProcessedEvents, 1)
	require.False(t, stats.StartedAt.IsZero())
}

func TestStopFlushesPendingBatch(t *testing.T) {
	root := t.TempDir()
	w := New(Config{RepoRoot: root, DebounceInterval: 10 * time.Second})
	collector := &batchCollector{}
	w.OnChange(collector.callback)

	require.NoError(t, w.Start())
	require.NoError(t, os.WriteFile(filepath.Join(root, "pending.go"), []byte("x"), 0644))

	// Give fsnotify a moment to deliver, then stop before the 10s debounce.
	waitFor(t, 5*time.Second, func() bool { return w.Stats().TotalEvents >= 1 })
	w.Stop()

	require.GreaterOrEqual(t, collector.count(), 1)
	require.False(t, w.IsWatching())
}

func TestUpdatePathsRestart(t *testing.T) {
	rootA := t.TempDir()
	rootB := t.TempDir()

	w := New(Config{RepoRoot: rootA, DebounceInterval: 100 * time.Millisecond})
	collector := &batchCollector{}
	w.OnChange(collector.callback)
	require.NoError(t, w.Start())

	require.NoError(t, w.UpdatePaths([]string{rootB}, true))
	defer w.Stop()
	require.True(t, w.IsWatching())
}
