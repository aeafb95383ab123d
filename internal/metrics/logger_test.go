package metrics

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerWritesJSONL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metrics.jsonl")

	l, err := NewLogger(path)
	require.NoError(t, err)

	l.LogSearch("code_chunks_abc", "find parser", 5, 42, false)
	l.LogIndex("code_chunks_abc", 10, 1, 37, true)
	l.LogWatchBatch("code_chunks_abc", 6, 3)
	require.NoError(t, l.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var events []map[string]any
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var e map[string]any
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &e))
		events = append(events, e)
	}

	require.Len(t, events, 3)
	assert.Equal(t, "search", events[0]["event"])
	assert.Equal(t, float64(42), events[0]["latency_ms"])
	assert.Equal(t, "index", events[1]["event"])
	assert.Equal(t, true, events[1]["incremental"])
	assert.Equal(t, "watch_batch", events[2]["event"])
	for _, e := range events {
		assert.NotEmpty(t, e["ts"])
	}
}
