package rank

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNDCGPerfectRanking(t *testing.T) {
	ranked := []string{"doc1", "doc2", "doc3"}
	relevant := []string{"doc1", "doc2", "doc3"}

	require.InDelta(t, 1.0, NDCG(ranked, relevant), 1e-9)
	require.InDelta(t, 1.0, MRR(ranked, relevant), 1e-9)
	require.InDelta(t, 3.0/5.0, PrecisionAt(ranked, relevant, 5), 1e-9)
	require.InDelta(t, 3.0/10.0, PrecisionAt(ranked, relevant, 10), 1e-9)
}

func TestNDCGNoRelevant(t *testing.T) {
	require.Equal(t, 0.0, NDCG([]string{"a", "b"}, nil))
	require.Equal(t, 0.0, NDCG(nil, []string{"a"}))
}

func TestNDCGImperfectBelowOne(t *testing.T) {
	// Most relevant doc ranked last.
	ndcg := NDCG([]string{"doc3", "doc2", "doc1"}, []string{"doc1", "doc2", "doc3"})
	require.Greater(t, ndcg, 0.0)
	require.Less(t, ndcg, 1.0)
}

func TestMRR(t *testing.T) {
	require.InDelta(t, 0.5, MRR([]string{"x", "doc1"}, []string{"doc1"}), 1e-9)
	require.Equal(t, 0.0, MRR([]string{"x", "y"}, []string{"doc1"}))
}

func TestPrecisionAlwaysDividesByK(t *testing.T) {
	// Two results, both relevant: P@5 is 2/5, not 2/2.
	require.InDelta(t, 0.4, PrecisionAt([]string{"a", "b"}, []string{"a", "b"}, 5), 1e-9)
}

func evalResults() map[string][]Result {
	now := time.Now()
	return map[string][]Result{
		"find parser": {
			{RelativePath: "parser.go", StartLine: 1, EndLine: 20, Content: "parser implementation", ModifiedAt: now, VectorScore: 0.9},
			{RelativePath: "lexer.go", StartLine: 1, EndLine: 30, Content: "lexer tokens", ModifiedAt: now.Add(-400 * 24 * time.Hour), VectorScore: 0.8},
			{RelativePath: "util.go", StartLine: 5, EndLine: 15, Content: "helpers", ModifiedAt: now, VectorScore: 0.3},
		},
	}
}

func TestIdenticalConfigsTie(t *testing.T) {
	e := NewEvaluator(evalResults(), false)

	queries := []TestQuery{{
		Query:          "find parser",
		RelevantDocIDs: []string{"parser.go:1-20"},
	}}

	cfg := DefaultConfig()
	cmp := e.Compare(queries, NamedConfig{Name: "A", Config: cfg}, NamedConfig{Name: "B", Config: cfg})

	require.Equal(t, "tie", cmp.Winner)
	require.InDelta(t, 0.0, cmp.Improvements.NDCG, 1e-9)
	require.InDelta(t, 0.0, cmp.Improvements.MRR, 1e-9)
	require.InDelta(t, 0.0, cmp.Improvements.Precision5, 1e-9)
	require.InDelta(t, 0.0, cmp.Improvements.Precision10, 1e-9)
	require.Equal(t, 1, cmp.ProcessedQueries)
}

func TestMissingResultsSkippedButCounted(t *testing.T) {
	e := NewEvaluator(evalResults(), false)

	queries := []TestQuery{
		{Query: "find parser", RelevantDocIDs: []string{"parser.go:1-20"}},
		{Query: "no such query", RelevantDocIDs: []string{"x:1-2"}},
	}

	cfg := DefaultConfig()
	cmp := e.Compare(queries, NamedConfig{Name: "A", Config: cfg}, NamedConfig{Name: "B", Config: cfg})

	require.Equal(t, 2, cmp.TotalQueries)
	require.Equal(t, 1, cmp.ProcessedQueries)
	require.Equal(t, 1, cmp.SkippedQueries)
}

func TestEmptyJudgmentsContributeZeroToAverage(t *testing.T) {
	e := NewEvaluator(evalResults(), false)

	withJudgments := []TestQuery{{Query: "find parser", RelevantDocIDs: []string{"parser.go:1-20"}}}
	withEmpty := append(withJudgments, TestQuery{Query: "find parser", RelevantDocIDs: nil})

	cfg := DefaultConfig()
	one := e.Compare(withJudgments, NamedConfig{Name: "A", Config: cfg}, NamedConfig{Name: "B", Config: cfg})
	two := e.Compare(withEmpty, NamedConfig{Name: "A", Config: cfg}, NamedConfig{Name: "B", Config: cfg})

	require.Equal(t, 2, two.ProcessedQueries)
	// The empty-judgment query halves the average.
	require.InDelta(t, one.MetricsA.NDCG/2, two.MetricsA.NDCG, 1e-9)
}

func TestDifferentConfigsProduceWinner(t *testing.T) {
	now := time.Now()
	results := map[string][]Result{
		"q": {
			{RelativePath: "recent.go", StartLine: 1, EndLine: 10, Content: "x", ModifiedAt: now, VectorScore: 0.5},
			{RelativePath: "stale.go", StartLine: 1, EndLine: 10, Content: "x", ModifiedAt: now.Add(-1000 * 24 * time.Hour), VectorScore: 0.6},
		},
	}
	e := NewEvaluator(results, true)

	queries := []TestQuery{{Query: "q", RelevantDocIDs: []string{"recent.go:1-10"}}}

	vectorOnly := Config{Enabled: true, Weights: Weights{Vector: 1.0}, RecencyHalfLife: 90}
	recencyHeavy := Config{Enabled: true, Weights: Weights{Vector: 0.2, Recency: 0.8}, RecencyHalfLife: 90}

	cmp := e.Compare(queries,
		NamedConfig{Name: "vector-only", Config: vectorOnly},
		NamedConfig{Name: "recency-heavy", Config: recencyHeavy})

	// recency-heavy puts the relevant recent file first.
	require.Equal(t, "recency-heavy", cmp.Winner)
	require.Greater(t, cmp.Improvements.MRR, 0.0)
}

func TestReportFormat(t *testing.T) {
	e := NewEvaluator(evalResults(), false)
	cfg := DefaultConfig()
	cmp := e.Compare(
		[]TestQuery{{Query: "find parser", RelevantDocIDs: []string{"parser.go:1-20"}}},
		NamedConfig{Name: "baseline", Config: cfg},
		NamedConfig{Name: "candidate", Config: cfg})

	report := cmp.Report()
	require.Contains(t, report, "baseline")
	require.Contains(t, report, "candidate")
	require.Contains(t, report, "NDCG")
	require.Contains(t, report, "Precision@10")
	require.Contains(t, report, "Winner: tie")
	require.True(t, strings.HasPrefix(report, "=== Ranking A/B Evaluation ==="))
}

func TestPositionChanges(t *testing.T) {
	a := []string{"d0", "d1", "d2", "d3", "d4"}
	b := []string{"d4", "d1", "d2", "d3", "d0"}

	changes := positionChanges(a, b)
	require.Len(t, changes, 2)
	// Both moved 4 slots; largest absolute change first.
	require.Equal(t, 4, abs(changes[0].Change))
	require.Equal(t, 4, abs(changes[1].Change))
}

func TestDocID(t *testing.T) {
	require.Equal(t, "src/a.go:10-20", DocID("src/a.go", 10, 20))
}
