package rank

import (
	"fmt"
	"log/slog"
	"math"
	"strings"
)

// TestQuery is one labeled query for offline evaluation. RelevantDocIDs are
// ordered by decreasing relevance and use the "path:start-end" form.
type TestQuery struct {
	Query          string
	RelevantDocIDs []string
}

// NamedConfig pairs a ranking configuration with a display name.
type NamedConfig struct {
	Name   string
	Config Config
}

// MetricSet holds the four IR metrics averaged over processed queries.
type MetricSet struct {
	NDCG        float64
	MRR         float64
	Precision5  float64
	Precision10 float64
}

func (m MetricSet) add(other MetricSet) MetricSet {
	return MetricSet{
		NDCG:        m.NDCG + other.NDCG,
		MRR:         m.MRR + other.MRR,
		Precision5:  m.Precision5 + other.Precision5,
		Precision10: m.Precision10 + other.Precision10,
	}
}

func (m MetricSet) scale(f float64) MetricSet {
	return MetricSet{
		NDCG:        m.NDCG * f,
		MRR:         m.MRR * f,
		Precision5:  m.Precision5 * f,
		Precision10: m.Precision10 * f,
	}
}

// PositionChange records a document that moved between the two rankings.
type PositionChange struct {
	DocID     string
	PositionA int
	PositionB int
	Change    int // PositionB - PositionA
}

// QueryEvaluation is the per-query breakdown, populated when detail is on.
type QueryEvaluation struct {
	Query           string
	MetricsA        MetricSet
	MetricsB        MetricSet
	PositionChanges []PositionChange
}

// Comparison is the outcome of evaluating two configurations over the same
// queries and result sets.
type Comparison struct {
	ConfigA          string
	ConfigB          string
	TotalQueries     int
	ProcessedQueries int
	SkippedQueries   int
	MetricsA         MetricSet
	MetricsB         MetricSet
	Improvements     MetricSet // B - A per metric
	Winner           string    // name of A, name of B, or "tie"
	Queries          []QueryEvaluation
}

// Evaluator runs A/B comparisons over pre-computed result sets, so the two
// configurations see exactly the same candidates.
type Evaluator struct {
	resultSets map[string][]Result
	detail     bool
	logger     *slog.Logger
}

// NewEvaluator creates an evaluator over the given query -> results mapping.
// When detail is true, per-query metrics and position changes are retained.
func NewEvaluator(resultSets map[string][]Result, detail bool) *Evaluator {
	return &Evaluator{resultSets: resultSets, detail: detail, logger: slog.Default()}
}

// DocID returns the identifier used to match ranked documents against
// relevance judgments.
func DocID(relativePath string, startLine, endLine int) string {
	return fmt.Sprintf("%s:%d-%d", relativePath, startLine, endLine)
}

// Compare ranks every query's result set under both configurations and
// averages the metrics. Queries with no results are skipped but still counted
// in TotalQueries; queries with empty judgments contribute zero metrics to
// the average.
func (e *Evaluator) Compare(queries []TestQuery, a, b NamedConfig) *Comparison {
	cmp := &Comparison{
		ConfigA:      a.Name,
		ConfigB:      b.Name,
		TotalQueries: len(queries),
	}

	rankerA := NewRanker(a.Config)
	rankerB := NewRanker(b.Config)

	var sumA, sumB MetricSet

	for _, q := range queries {
		results, ok := e.resultSets[q.Query]
		if !ok || len(results) == 0 {
			e.logger.Warn("no results for query, skipping", "query", q.Query)
			cmp.SkippedQueries++
			continue
		}

		rankedA := docIDs(rankerA.Rank(results, q.Query, false))
		rankedB := docIDs(rankerB.Rank(results, q.Query, false))

		metricsA := computeMetrics(rankedA, q.RelevantDocIDs)
		metricsB := computeMetrics(rankedB, q.RelevantDocIDs)
		sumA = sumA.add(metricsA)
		sumB = sumB.add(metricsB)
		cmp.ProcessedQueries++

		if e.detail {
			cmp.Queries = append(cmp.Queries, QueryEvaluation{
				Query:           q.Query,
				MetricsA:        metricsA,
				MetricsB:        metricsB,
				PositionChanges: positionChanges(rankedA, rankedB),
			})
		}
	}

	if cmp.ProcessedQueries > 0 {
		inv := 1.0 / float64(cmp.ProcessedQueries)
		cmp.MetricsA = sumA.scale(inv)
		cmp.MetricsB = sumB.scale(inv)
	}

	cmp.Improvements = MetricSet{
		NDCG:        cmp.MetricsB.NDCG - cmp.MetricsA.NDCG,
		MRR:         cmp.MetricsB.MRR - cmp.MetricsA.MRR,
		Precision5:  cmp.MetricsB.Precision5 - cmp.MetricsA.Precision5,
		Precision10: cmp.MetricsB.Precision10 - cmp.MetricsA.Precision10,
	}
	cmp.Winner = decideWinner(cmp.Improvements, a.Name, b.Name)
	return cmp
}

func docIDs(ranked []RankedResult) []string {
	ids := make([]string, len(ranked))
	for i, r := range ranked {
		ids[i] = DocID(r.RelativePath, r.StartLine, r.EndLine)
	}
	return ids
}

func computeMetrics(ranked, relevant []string) MetricSet {
	return MetricSet{
		NDCG:        NDCG(ranked, relevant),
		MRR:         MRR(ranked, relevant),
		Precision5:  PrecisionAt(ranked, relevant, 5),
		Precision10: PrecisionAt(ranked, relevant, 10),
	}
}

// NDCG computes normalized discounted cumulative gain. Relevance of the i-th
// judged document (0-based) is len(relevant)-i; the ideal ordering spans
// min(len(ranked), len(relevant)) documents.
func NDCG(ranked, relevant []string) float64 {
	if len(relevant) == 0 || len(ranked) == 0 {
		return 0
	}

	relevance := make(map[string]float64, len(relevant))
	for i, id := range relevant {
		relevance[id] = float64(len(relevant) - i)
	}

	dcg := 0.0
	for i, id := range ranked {
		if rel, ok := relevance[id]; ok {
			dcg += rel / math.Log2(float64(i)+2)
		}
	}

	ideal := len(relevant)
	if len(ranked) < ideal {
		ideal = len(ranked)
	}
	idcg := 0.0
	for i := 0; i < ideal; i++ {
		idcg += float64(len(relevant)-i) / math.Log2(float64(i)+2)
	}

	if idcg == 0 {
		return 0
	}
	return dcg / idcg
}

// MRR returns the reciprocal of the 1-based rank of the first relevant
// document, or 0 when none appears.
func MRR(ranked, relevant []string) float64 {
	relevantSet := make(map[string]struct{}, len(relevant))
	for _, id := range relevant {
		relevantSet[id] = struct{}{}
	}
	for i, id := range ranked {
		if _, ok := relevantSet[id]; ok {
			return 1.0 / float64(i+1)
		}
	}
	return 0
}

// PrecisionAt returns relevant-in-top-k divided by k. The divisor is always
// k, even when fewer than k results exist.
func PrecisionAt(ranked, relevant []string, k int) float64 {
	if k <= 0 {
		return 0
	}
	relevantSet := make(map[string]struct{}, len(relevant))
	for _, id := range relevant {
		relevantSet[id] = struct{}{}
	}

	hits := 0
	for i, id := range ranked {
		if i >= k {
			break
		}
		if _, ok := relevantSet[id]; ok {
			hits++
		}
	}
	return float64(hits) / float64(k)
}

// positionChanges lists documents that moved at least 3 slots between the two
// rankings, largest absolute move first.
func positionChanges(rankedA, rankedB []string) []PositionChange {
	posA := make(map[string]int, len(rankedA))
	for i, id := range rankedA {
		posA[id] = i
	}

	var changes []PositionChange
	for i, id := range rankedB {
		a, ok := posA[id]
		if !ok {
			continue
		}
		delta := i - a
		if abs(delta) >= 3 {
			changes = append(changes, PositionChange{
				DocID:     id,
				PositionA: a,
				PositionB: i,
				Change:    delta,
			})
		}
	}

	// Sort by absolute change, descending; stable enough via simple insertion
	// since the lists are small.
	for i := 1; i < len(changes); i++ {
		for j := i; j > 0 && abs(changes[j].Change) > abs(changes[j-1].Change); j-- {
			changes[j], changes[j-1] = changes[j-1], changes[j]
		}
	}
	return changes
}

// decideWinner counts metrics whose absolute improvement exceeds 0.01.
func decideWinner(improvements MetricSet, nameA, nameB string) string {
	votesA, votesB := 0, 0
	for _, delta := range []float64{improvements.NDCG, improvements.MRR, improvements.Precision5, improvements.Precision10} {
		if math.Abs(delta) <= 0.01 {
			continue
		}
		if delta > 0 {
			votesB++
		} else {
			votesA++
		}
	}
	switch {
	case votesB > votesA:
		return nameB
	case votesA > votesB:
		return nameA
	default:
		return "tie"
	}
}

// Report renders the comparison as a human-readable block.
func (c *Comparison) Report() string {
	var b strings.Builder

	fmt.Fprintf(&b, "=== Ranking A/B Evaluation ===\n")
	fmt.Fprintf(&b, "Queries: %d total, %d processed, %d skipped\n\n",
		c.TotalQueries, c.ProcessedQueries, c.SkippedQueries)

	writeMetrics := func(name string, m MetricSet) {
		fmt.Fprintf(&b, "[%s]\n", name)
		fmt.Fprintf(&b, "  NDCG:         %.4f\n", m.NDCG)
		fmt.Fprintf(&b, "  MRR:          %.4f\n", m.MRR)
		fmt.Fprintf(&b, "  Precision@5:  %.4f\n", m.Precision5)
		fmt.Fprintf(&b, "  Precision@10: %.4f\n", m.Precision10)
	}
	writeMetrics(c.ConfigA, c.MetricsA)
	b.WriteString("\n")
	writeMetrics(c.ConfigB, c.MetricsB)

	fmt.Fprintf(&b, "\nWinner: %s\n\n", c.Winner)
	fmt.Fprintf(&b, "Improvements (%s - %s):\n", c.ConfigB, c.ConfigA)
	fmt.Fprintf(&b, "  NDCG:         %+.4f\n", c.Improvements.NDCG)
	fmt.Fprintf(&b, "  MRR:          %+.4f\n", c.Improvements.MRR)
	fmt.Fprintf(&b, "  Precision@5:  %+.4f\n", c.Improvements.Precision5)
	fmt.Fprintf(&b, "  Precision@10: %+.4f\n", c.Improvements.Precision10)

	for _, q := range c.Queries {
		if len(q.PositionChanges) == 0 {
			continue
		}
		fmt.Fprintf(&b, "\nQuery %q position changes (>=3 slots):\n", q.Query)
		for _, pc := range q.PositionChanges {
			fmt.Fprintf(&b, "  %s: %d -> %d (%+d)\n", pc.DocID, pc.PositionA, pc.PositionB, pc.Change)
		}
	}

	return b.String()
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
