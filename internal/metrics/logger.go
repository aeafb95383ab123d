// Package metrics provides JSONL event logging for analytics.
package metrics

import (
	"encoding/json"
	"os"
	"sync"
	"time"
)

// Logger writes metrics events to a JSONL file.
type Logger struct {
	file *os.File
	mu   sync.Mutex
}

// NewLogger creates a metrics logger appending to path.
func NewLogger(path string) (*Logger, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, err
	}
	return &Logger{file: file}, nil
}

// Close closes the log file.
func (l *Logger) Close() error {
	return l.file.Close()
}

func (l *Logger) log(event string, data map[string]any) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e := map[string]any{
		"ts":    time.Now().UTC().Format(time.RFC3339),
		"event": event,
	}
	for k, v := range data {
		e[k] = v
	}

	line, _ := json.Marshal(e)
	l.file.Write(line)
	l.file.Write([]byte("\n"))
}

// LogSearch logs a semantic search.
func (l *Logger) LogSearch(collection, query string, results int, latencyMs int64, cacheHit bool) {
	l.log("search", map[string]any{
		"collection": collection,
		"query":      query,
		"results":    results,
		"latency_ms": latencyMs,
		"cache_hit":  cacheHit,
	})
}

// LogIndex logs one indexing cycle.
func (l *Logger) LogIndex(collection string, filesIndexed, filesRemoved, chunksCreated int, incremental bool) {
	l.log("index", map[string]any{
		"collection":     collection,
		"files_indexed":  filesIndexed,
		"files_removed":  filesRemoved,
		"chunks_created": chunksCreated,
		"incremental":    incremental,
	})
}

// LogWatchBatch logs one debounced watcher batch.
func (l *Logger) LogWatchBatch(collection string, events, uniquePaths int) {
	l.log("watch_batch", map[string]any{
		"collection":   collection,
		"events":       events,
		"unique_paths": uniquePaths,
	})
}
