// Package index orchestrates the indexing pipeline (splitter -> embedder ->
// vector store) and the query path over it.
package index

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/randalmurphal/code-context/internal/cache"
	"github.com/randalmurphal/code-context/internal/config"
	"github.com/randalmurphal/code-context/internal/embedding"
	"github.com/randalmurphal/code-context/internal/graph"
	"github.com/randalmurphal/code-context/internal/imports"
	"github.com/randalmurphal/code-context/internal/merkle"
	"github.com/randalmurphal/code-context/internal/metrics"
	"github.com/randalmurphal/code-context/internal/rank"
	"github.com/randalmurphal/code-context/internal/security"
	"github.com/randalmurphal/code-context/internal/splitter"
	"github.com/randalmurphal/code-context/internal/store"
	"github.com/randalmurphal/code-context/internal/watcher"
)

// Progress reports one step of an indexing operation. Percentage is monotonic
// from 0 to 100 within one operation.
type Progress struct {
	Phase      string
	Current    int
	Total      int
	Percentage int
}

// ProgressFunc receives progress callbacks.
type ProgressFunc func(Progress)

// IndexResult summarizes one indexing cycle.
type IndexResult struct {
	FilesIndexed  int
	FilesRemoved  int
	ChunksCreated int
	Incremental   bool
}

// collectionState is the per-collection mutable state the coordinator owns.
type collectionState struct {
	mu             sync.Mutex
	root           string
	synchronizer   *merkle.Synchronizer
	analyzer       *imports.Analyzer
	maxImportCount int
}

// Coordinator owns collection identity and drives full and incremental
// indexing. Operations on one collection are serialized; distinct
// collections proceed independently.
type Coordinator struct {
	cfg      *config.Config
	embedder embedding.Embedder
	store    store.VectorStore
	splitter splitter.Splitter

	queryCache *cache.RedisCache
	graphStore *graph.Neo4jStore
	metrics    *metrics.Logger

	ranker   *rank.Ranker
	redactor *security.Redactor
	logger   *slog.Logger

	mu          sync.Mutex
	collections map[string]*collectionState
	watch       *watcher.Watcher
	watchRoot   string
}

// Option configures optional coordinator collaborators.
type Option func(*Coordinator)

// WithQueryCache attaches a Redis query cache.
func WithQueryCache(c *cache.RedisCache) Option {
	return func(co *Coordinator) { co.queryCache = c }
}

// WithGraphStore attaches a Neo4j import-graph exporter.
func WithGraphStore(g *graph.Neo4jStore) Option {
	return func(co *Coordinator) { co.graphStore = g }
}

// WithMetrics attaches a JSONL metrics logger.
func WithMetrics(m *metrics.Logger) Option {
	return func(co *Coordinator) { co.metrics = m }
}

// NewCoordinator creates a coordinator over the given collaborators.
func NewCoordinator(cfg *config.Config, emb embedding.Embedder, vs store.VectorStore, sp splitter.Splitter, opts ...Option) *Coordinator {
	c := &Coordinator{
		cfg:         cfg,
		embedder:    emb,
		store:       vs,
		splitter:    sp,
		ranker:      rank.NewRanker(cfg.Ranking),
		redactor:    security.NewRedactor(),
		logger:      slog.Default(),
		collections: make(map[string]*collectionState),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetEmbedder replaces the embedder.
func (c *Coordinator) SetEmbedder(e embedding.Embedder) { c.embedder = e }

// SetVectorStore replaces the vector store.
func (c *Coordinator) SetVectorStore(s store.VectorStore) { c.store = s }

// SetSplitter replaces the splitter.
func (c *Coordinator) SetSplitter(s splitter.Splitter) { c.splitter = s }

// Ranker returns the coordinator's ranker for configuration updates.
func (c *Coordinator) Ranker() *rank.Ranker { return c.ranker }

// CollectionName derives the collection identity for a repository root:
// a mode prefix plus the first 8 hex characters of the MD5 of the absolute
// root path.
func (c *Coordinator) CollectionName(root string) string {
	abs, err := filepath.Abs(root)
	if err != nil {
		abs = root
	}
	sum := md5.Sum([]byte(abs))
	prefix := "code_chunks_"
	if c.cfg.Storage.HybridMode {
		prefix = "hybrid_code_chunks_"
	}
	return prefix + hex.EncodeToString(sum[:])[:8]
}

// HasIndex reports whether the root's collection exists.
func (c *Coordinator) HasIndex(ctx context.Context, root string) (bool, error) {
	return c.store.HasCollection(ctx, c.CollectionName(root))
}

// state returns (creating if needed) the per-collection state.
func (c *Coordinator) state(collection, root string) *collectionState {
	c.mu.Lock()
	defer c.mu.Unlock()

	st, ok := c.collections[collection]
	if !ok {
		st = &collectionState{
			root:         root,
			synchronizer: merkle.NewSynchronizer(root, c.cfg.Indexing.IgnorePatterns),
			analyzer:     imports.NewAnalyzer(),
		}
		c.collections[collection] = st
	}
	return st
}

// IndexCodebase indexes the tree at root. When the collection and a snapshot
// already exist, only changed files are reprocessed; force drops everything
// and rebuilds.
func (c *Coordinator) IndexCodebase(ctx context.Context, root string, progress ProgressFunc, force bool) (*IndexResult, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve root %s: %w", root, err)
	}

	collection := c.CollectionName(abs)
	st := c.state(collection, abs)
	st.mu.Lock()
	defer st.mu.Unlock()

	emit(progress, Progress{Phase: "Preparing", Percentage: 0})

	exists, err := c.store.HasCollection(ctx, collection)
	if err != nil {
		return nil, fmt.Errorf("check collection %s: %w", collection, err)
	}

	if force && exists {
		if err := c.store.DropCollection(ctx, collection); err != nil {
			return nil, fmt.Errorf("drop collection %s: %w", collection, err)
		}
		if err := merkle.DeleteSnapshot(abs); err != nil {
			c.logger.Warn("snapshot delete failed", "root", abs, "error", err)
		}
		exists = false
	}

	snapshotExists := false
	if path, err := merkle.SnapshotPath(abs); err == nil {
		if _, err := os.Stat(path); err == nil {
			snapshotExists = true
		}
	}

	var result *IndexResult
	if exists && snapshotExists {
		result, err = c.indexIncremental(ctx, collection, st, progress)
	} else {
		result, err = c.indexFull(ctx, collection, st, progress)
	}
	if err != nil {
		return result, err
	}

	c.afterIndex(ctx, collection, st, result)
	emit(progress, Progress{Phase: "Complete", Current: result.FilesIndexed, Total: result.FilesIndexed, Percentage: 100})
	return result, nil
}

// indexFull rebuilds the collection from a clean slate.
func (c *Coordinator) indexFull(ctx context.Context, collection string, st *collectionState, progress ProgressFunc) (*IndexResult, error) {
	result := &IndexResult{}

	dim := c.embedder.Dimension()
	if c.cfg.Storage.HybridMode {
		if err := c.store.CreateHybridCollection(ctx, collection, dim); err != nil {
			return nil, fmt.Errorf("create hybrid collection: %w", err)
		}
	} else {
		if err := c.store.CreateCollection(ctx, collection, dim); err != nil {
			return nil, fmt.Errorf("create collection: %w", err)
		}
	}

	// Fresh synchronizer state: forget any stale snapshot first.
	if err := merkle.DeleteSnapshot(st.root); err != nil {
		c.logger.Warn("snapshot delete failed", "root", st.root, "error", err)
	}
	st.synchronizer = merkle.NewSynchronizer(st.root, c.cfg.Indexing.IgnorePatterns)
	st.analyzer.Reset()
	if err := st.synchronizer.Initialize(); err != nil {
		return nil, fmt.Errorf("initialize synchronizer: %w", err)
	}

	emit(progress, Progress{Phase: "Scanning", Percentage: 5})

	files := c.indexableFiles(st.synchronizer)
	total := len(files)

	// Pass 1: import edges for the whole tree, so import counts are complete
	// before any chunk is written.
	for _, rel := range files {
		c.analyzeImports(st, rel)
	}

	for i, rel := range files {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		n, err := c.indexFile(ctx, collection, st, rel)
		if err != nil {
			c.logger.Warn("file skipped", "path", rel, "error", err)
		} else {
			result.FilesIndexed++
			result.ChunksCreated += n
		}
		emit(progress, Progress{
			Phase:      "Indexing",
			Current:    i + 1,
			Total:      total,
			Percentage: 5 + (i+1)*90/max(total, 1),
		})
	}

	return result, nil
}

// indexIncremental reprocesses only what the synchronizer reports changed.
func (c *Coordinator) indexIncremental(ctx context.Context, collection string, st *collectionState, progress ProgressFunc) (*IndexResult, error) {
	result := &IndexResult{Incremental: true}

	if err := st.synchronizer.Initialize(); err != nil {
		return nil, fmt.Errorf("initialize synchronizer: %w", err)
	}
	changes, err := st.synchronizer.CheckForChanges()
	if err != nil {
		return nil, fmt.Errorf("check for changes: %w", err)
	}

	emit(progress, Progress{Phase: "Scanning", Percentage: 5})

	var toIndex []string
	for _, rel := range append(append([]string{}, changes.Added...), changes.Modified...) {
		if c.isSupportedFile(rel) {
			toIndex = append(toIndex, rel)
		}
	}
	sort.Strings(toIndex)

	var toRemove []string
	for _, rel := range changes.Removed {
		if c.isSupportedFile(rel) {
			toRemove = append(toRemove, rel)
		}
	}

	total := len(toIndex) + len(toRemove)
	done := 0

	for _, rel := range changes.Removed {
		st.analyzer.RemoveFile(rel)
	}
	if len(toRemove) > 0 {
		if err := c.store.DeleteByPaths(ctx, collection, toRemove); err != nil {
			return result, fmt.Errorf("delete removed files: %w", err)
		}
		result.FilesRemoved = len(toRemove)
		done += len(toRemove)
		emit(progress, Progress{Phase: "Indexing", Current: done, Total: total, Percentage: 5 + done*90/max(total, 1)})
	}

	// Modified files are re-chunked: drop their old records first so the
	// per-file write stays a single unit.
	var modifiedSupported []string
	for _, rel := range changes.Modified {
		if c.isSupportedFile(rel) {
			modifiedSupported = append(modifiedSupported, rel)
		}
	}
	if len(modifiedSupported) > 0 {
		if err := c.store.DeleteByPaths(ctx, collection, modifiedSupported); err != nil {
			return result, fmt.Errorf("delete modified files: %w", err)
		}
	}

	for _, rel := range toIndex {
		c.analyzeImports(st, rel)
	}
	for _, rel := range toIndex {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		n, err := c.indexFile(ctx, collection, st, rel)
		if err != nil {
			c.logger.Warn("file skipped", "path", rel, "error", err)
		} else {
			result.FilesIndexed++
			result.ChunksCreated += n
		}
		done++
		emit(progress, Progress{Phase: "Indexing", Current: done, Total: total, Percentage: 5 + done*90/max(total, 1)})
	}

	return result, nil
}

// afterIndex refreshes derived state once the cycle's writes are in.
func (c *Coordinator) afterIndex(ctx context.Context, collection string, st *collectionState, result *IndexResult) {
	st.maxImportCount = c.maxFileImportCount(st)
	c.ranker.SetMaxImportCount(st.maxImportCount)

	if c.queryCache != nil {
		if err := c.queryCache.InvalidateCollection(ctx, collection); err != nil {
			c.logger.Warn("cache invalidation failed", "collection", collection, "error", err)
		}
	}
	if c.graphStore != nil {
		if err := c.graphStore.SyncImportGraph(ctx, collection, st.analyzer.BuildGraph()); err != nil {
			c.logger.Warn("import graph sync failed", "collection", collection, "error", err)
		}
	}
	if c.metrics != nil {
		c.metrics.LogIndex(collection, result.FilesIndexed, result.FilesRemoved, result.ChunksCreated, result.Incremental)
	}

	c.logger.Info("index cycle complete",
		"collection", collection,
		"files", result.FilesIndexed,
		"removed", result.FilesRemoved,
		"chunks", result.ChunksCreated,
		"incremental", result.Incremental,
	)
}

// indexableFiles filters the synchronizer's tracked paths down to supported
// extensions, sorted for deterministic processing order.
func (c *Coordinator) indexableFiles(s *merkle.Synchronizer) []string {
	var files []string
	for _, rel := range s.TrackedPaths() {
		if c.isSupportedFile(rel) {
			files = append(files, rel)
		}
	}
	sort.Strings(files)
	return files
}

func (c *Coordinator) isSupportedFile(rel string) bool {
	ext := strings.ToLower(filepath.Ext(rel))
	for _, e := range c.cfg.Indexing.SupportedExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

// analyzeImports re-extracts one file's import edges.
func (c *Coordinator) analyzeImports(st *collectionState, rel string) {
	code, err := os.ReadFile(filepath.Join(st.root, rel))
	if err != nil {
		return
	}
	lang := languageForExt(filepath.Ext(rel))
	if !imports.IsLanguageSupported(lang) {
		return
	}
	st.analyzer.RemoveFile(rel)
	st.analyzer.AnalyzeFile(string(code), lang, rel)
}

// indexFile runs the per-file pipeline: split, embed in configured batches,
// and write all of the file's records as one unit. Returns the chunk count.
func (c *Coordinator) indexFile(ctx context.Context, collection string, st *collectionState, rel string) (int, error) {
	full := filepath.Join(st.root, rel)
	code, err := os.ReadFile(full)
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", rel, err)
	}
	info, err := os.Stat(full)
	if err != nil {
		return 0, fmt.Errorf("stat %s: %w", rel, err)
	}

	lang := languageForExt(filepath.Ext(rel))
	chunks, err := c.splitter.Split(string(code), lang, rel)
	if err != nil {
		return 0, fmt.Errorf("split %s: %w", rel, err)
	}
	if len(chunks) == 0 {
		return 0, nil
	}

	importCount := c.fileImportCount(st, rel)
	mtime := info.ModTime()
	for i := range chunks {
		chunks[i].FileModifiedAt = mtime
		chunks[i].ImportCount = importCount
		if redacted, changed := c.redactor.Redact(chunks[i].Content); changed {
			c.logger.Debug("secrets redacted", "path", rel, "lines", chunks[i].StartLine)
			chunks[i].Content = redacted
		}
	}

	batchSize := c.cfg.Embedding.BatchSize
	if batchSize <= 0 {
		batchSize = 100
	}

	var records []store.Record
	for start := 0; start < len(chunks); start += batchSize {
		end := start + batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]

		texts := make([]string, len(batch))
		for i, ch := range batch {
			texts[i] = ch.Content
		}
		vectors, err := c.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return 0, fmt.Errorf("embed %s: %w", rel, err)
		}
		if len(vectors) != len(batch) {
			return 0, fmt.Errorf("embed %s: got %d vectors for %d chunks", rel, len(vectors), len(batch))
		}

		for i, ch := range batch {
			records = append(records, store.Record{
				ID:     ch.ID(),
				Vector: vectors[i].Values,
				Chunk:  ch,
			})
		}
	}

	// One write per file so queries never observe a torn chunk set.
	if c.cfg.Storage.HybridMode {
		err = c.store.InsertHybrid(ctx, collection, records)
	} else {
		err = c.store.Insert(ctx, collection, records)
	}
	if err != nil {
		return 0, fmt.Errorf("store %s: %w", rel, err)
	}
	return len(records), nil
}

// fileImportCount approximates how often a file is imported: the best
// frequency among the module spellings that could refer to it. Modules are
// never resolved to files, so this is heuristic by design of the analyzer.
func (c *Coordinator) fileImportCount(st *collectionState, rel string) int {
	noExt := strings.TrimSuffix(rel, filepath.Ext(rel))
	base := filepath.Base(noExt)

	best := 0
	for _, key := range []string{noExt, "./" + noExt, base, "./" + base} {
		if f := st.analyzer.Frequency(key); f > best {
			best = f
		}
	}
	return best
}

// maxFileImportCount scans tracked files for the largest import count.
func (c *Coordinator) maxFileImportCount(st *collectionState) int {
	best := 0
	for _, rel := range st.synchronizer.TrackedPaths() {
		if !c.isSupportedFile(rel) {
			continue
		}
		if n := c.fileImportCount(st, rel); n > best {
			best = n
		}
	}
	return best
}

// ClearIndex drops the collection and its snapshot.
func (c *Coordinator) ClearIndex(ctx context.Context, root string, progress ProgressFunc) error {
	abs, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("resolve root %s: %w", root, err)
	}
	collection := c.CollectionName(abs)

	emit(progress, Progress{Phase: "Clearing", Percentage: 0})

	exists, err := c.store.HasCollection(ctx, collection)
	if err != nil {
		return err
	}
	if exists {
		if err := c.store.DropCollection(ctx, collection); err != nil {
			return fmt.Errorf("drop collection %s: %w", collection, err)
		}
	}
	if err := merkle.DeleteSnapshot(abs); err != nil {
		return err
	}

	c.mu.Lock()
	delete(c.collections, collection)
	c.mu.Unlock()

	if c.queryCache != nil {
		if err := c.queryCache.InvalidateCollection(ctx, collection); err != nil {
			c.logger.Warn("cache invalidation failed", "collection", collection, "error", err)
		}
	}

	emit(progress, Progress{Phase: "Complete", Percentage: 100})
	return nil
}

// StartWatching creates a watcher on root. When cb is nil the coordinator
// re-indexes incrementally after every debounced batch. Starting twice warns
// and returns without error.
func (c *Coordinator) StartWatching(root string, cb watcher.ChangeCallback, debounce time.Duration) error {
	abs, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("resolve root %s: %w", root, err)
	}

	c.mu.Lock()
	if c.watch != nil {
		c.mu.Unlock()
		c.logger.Warn("watcher already started", "root", c.watchRoot)
		return nil
	}

	w := watcher.New(watcher.Config{
		RepoRoot:         abs,
		DebounceInterval: debounce,
	})
	c.watch = w
	c.watchRoot = abs
	c.mu.Unlock()

	if cb == nil {
		cb = c.watchCallback(abs)
	}
	w.OnChange(cb)
	w.OnError(func(err error) {
		c.logger.Warn("watch error", "root", abs, "error", err)
	})

	if err := w.Start(); err != nil {
		c.mu.Lock()
		c.watch = nil
		c.watchRoot = ""
		c.mu.Unlock()
		return err
	}
	return nil
}

// watchCallback is the internal re-index driver: each batch triggers the
// incremental path for the union of pending paths.
func (c *Coordinator) watchCallback(root string) watcher.ChangeCallback {
	return func(batch watcher.Batch) error {
		ctx := context.Background()
		collection := c.CollectionName(root)
		if c.metrics != nil {
			c.metrics.LogWatchBatch(collection, len(batch.Events), len(batch.Changes))
		}

		_, err := c.IndexCodebase(ctx, root, nil, false)
		return err
	}
}

// StopWatching stops the watcher if one is running.
func (c *Coordinator) StopWatching() {
	c.mu.Lock()
	w := c.watch
	c.watch = nil
	c.watchRoot = ""
	c.mu.Unlock()

	if w == nil {
		c.logger.Warn("no watcher running")
		return
	}
	w.Stop()
}

// IsWatching reports whether a watcher is active.
func (c *Coordinator) IsWatching() bool {
	c.mu.Lock()
	w := c.watch
	c.mu.Unlock()
	return w != nil && w.IsWatching()
}

// WatcherStats returns a snapshot of watcher counters, or zero stats when no
// watcher is running.
func (c *Coordinator) WatcherStats() watcher.Stats {
	c.mu.Lock()
	w := c.watch
	c.mu.Unlock()
	if w == nil {
		return watcher.Stats{}
	}
	return w.Stats()
}

func emit(progress ProgressFunc, p Progress) {
	if progress != nil {
		progress(p)
	}
}

// languageForExt maps a file extension to the language tag used by the
// splitter and import analyzer.
func languageForExt(ext string) string {
	switch strings.ToLower(ext) {
	case ".ts", ".tsx":
		return "typescript"
	case ".js", ".jsx":
		return "javascript"
	case ".py":
		return "python"
	case ".go":
		return "go"
	case ".java":
		return "java"
	case ".rs":
		return "rust"
	case ".c", ".h":
		return "c"
	case ".cpp", ".hpp", ".cc":
		return "cpp"
	case ".cs":
		return "csharp"
	case ".md":
		return "markdown"
	default:
		return strings.TrimPrefix(strings.ToLower(ext), ".")
	}
}
