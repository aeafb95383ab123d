// Package rank scores vector-search results with a weighted blend of
// similarity, recency, import centrality, and term frequency, and provides an
// offline A/B evaluation harness for tuning the weights.
package rank

import (
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"
)

// Weights holds the four blend weights. They are expected to sum to ~1.0.
type Weights struct {
	Vector        float64 `yaml:"vector" json:"vector"`
	Recency       float64 `yaml:"recency" json:"recency"`
	Import        float64 `yaml:"import" json:"import"`
	TermFrequency float64 `yaml:"term_frequency" json:"termFrequency"`
}

// Sum returns the total of all four weights.
func (w Weights) Sum() float64 {
	return w.Vector + w.Recency + w.Import + w.TermFrequency
}

// Config controls ranking behavior.
type Config struct {
	Enabled         bool    `yaml:"enabled" json:"enabled"`
	Weights         Weights `yaml:"weights" json:"weights"`
	RecencyHalfLife float64 `yaml:"recency_half_life_days" json:"recencyHalfLifeDays"`
}

// DefaultConfig returns the standard ranking configuration.
func DefaultConfig() Config {
	return Config{
		Enabled: true,
		Weights: Weights{
			Vector:        0.6,
			Recency:       0.15,
			Import:        0.15,
			TermFrequency: 0.1,
		},
		RecencyHalfLife: 90,
	}
}

// Result is one vector-search hit as handed to the ranker.
type Result struct {
	Content       string
	RelativePath  string
	StartLine     int
	EndLine       int
	FileExtension string
	ModifiedAt    time.Time
	VectorScore   float64
	Metadata      map[string]any
}

// Factors are the per-result component scores, each in [0,1].
type Factors struct {
	Vector        float64 `json:"vector"`
	Recency       float64 `json:"recency"`
	Import        float64 `json:"import"`
	TermFrequency float64 `json:"termFrequency"`
}

// RankedResult is a result with its final blended score.
type RankedResult struct {
	Result
	Language   string
	FinalScore float64
	Factors    *Factors // nil unless detail was requested
}

// Ranker blends ranking factors under a configuration. It is stateless apart
// from the configuration and the coordinator-supplied max import count.
type Ranker struct {
	config         Config
	maxImportCount int
	logger         *slog.Logger
	now            func() time.Time
}

// NewRanker creates a ranker and validates the weight sum.
func NewRanker(cfg Config) *Ranker {
	r := &Ranker{config: cfg, logger: slog.Default(), now: time.Now}
	r.validateWeights()
	return r
}

// UpdateConfig replaces the configuration and re-validates the weights.
func (r *Ranker) UpdateConfig(cfg Config) {
	r.config = cfg
	r.validateWeights()
}

// Config returns the current configuration.
func (r *Ranker) Config() Config {
	return r.config
}

// SetMaxImportCount supplies the repository-wide maximum import count so
// import scores stay comparable across queries.
func (r *Ranker) SetMaxImportCount(max int) {
	r.maxImportCount = max
}

func (r *Ranker) validateWeights() {
	if sum := r.config.Weights.Sum(); math.Abs(sum-1.0) > 0.001 {
		r.logger.Warn("ranking weights do not sum to 1.0", "sum", sum)
	}
}

// Rank scores and sorts the results. When ranking is disabled, each result's
// vector score passes through unchanged, input order is preserved, and no
// factor detail is attached.
func (r *Ranker) Rank(results []Result, query string, includeDetails bool) []RankedResult {
	ranked := make([]RankedResult, len(results))

	if !r.config.Enabled {
		for i, res := range results {
			ranked[i] = RankedResult{
				Result:     res,
				Language:   resultLanguage(res),
				FinalScore: res.VectorScore,
			}
		}
		return ranked
	}

	maxImports := r.effectiveMaxImportCount(results)
	queryTerms := strings.Fields(strings.ToLower(query))

	for i, res := range results {
		factors := Factors{
			Vector:        clamp01(res.VectorScore),
			Recency:       r.recencyScore(res.ModifiedAt),
			Import:        importScore(importCount(res), maxImports),
			TermFrequency: termFrequencyScore(res.Content, queryTerms),
		}

		w := r.config.Weights
		final := w.Vector*factors.Vector +
			w.Recency*factors.Recency +
			w.Import*factors.Import +
			w.TermFrequency*factors.TermFrequency

		ranked[i] = RankedResult{
			Result:     res,
			Language:   resultLanguage(res),
			FinalScore: clamp01(final),
		}
		if includeDetails {
			f := factors
			ranked[i].Factors = &f
		}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].FinalScore > ranked[j].FinalScore
	})
	return ranked
}

// effectiveMaxImportCount prefers the coordinator-supplied global maximum and
// falls back to the maximum over this result set. The fallback makes scores
// incomparable across queries, hence the warning.
func (r *Ranker) effectiveMaxImportCount(results []Result) int {
	if r.maxImportCount > 0 {
		return r.maxImportCount
	}

	max := 0
	for _, res := range results {
		if c := importCount(res); c > max {
			max = c
		}
	}
	if max > 0 {
		r.logger.Warn("no global max import count, normalizing within result set")
	}
	return max
}

// recencyScore decays exponentially with file age: 2^(-ageDays / halfLife).
func (r *Ranker) recencyScore(modifiedAt time.Time) float64 {
	if modifiedAt.IsZero() {
		return 0
	}
	halfLife := r.config.RecencyHalfLife
	if halfLife <= 0 {
		halfLife = 90
	}
	ageDays := r.now().Sub(modifiedAt).Hours() / 24
	if ageDays < 0 {
		ageDays = 0
	}
	return clamp01(math.Exp2(-ageDays / halfLife))
}

func importScore(count, max int) float64 {
	if count <= 0 || max <= 0 {
		return 0
	}
	return clamp01(float64(count) / float64(max))
}

// termFrequencyScore counts query-term occurrences in the lowercased content,
// normalizes by content word count, and saturates via 1 - e^(-100x).
func termFrequencyScore(content string, queryTerms []string) float64 {
	if content == "" || len(queryTerms) == 0 {
		return 0
	}

	lower := strings.ToLower(content)
	wordCount := len(strings.Fields(lower))
	if wordCount == 0 {
		return 0
	}

	matches := 0
	for _, term := range queryTerms {
		matches += strings.Count(lower, term)
	}
	if matches == 0 {
		return 0
	}

	x := float64(matches) / float64(wordCount)
	return clamp01(1 - math.Exp(-100*x))
}

// importCount reads the owning file's import count from result metadata.
func importCount(res Result) int {
	v, ok := res.Metadata["importCount"]
	if !ok {
		return 0
	}
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	}
	return 0
}

// resultLanguage prefers the metadata language and falls back to the file
// extension with its leading dot stripped.
func resultLanguage(res Result) string {
	if lang, ok := res.Metadata["language"].(string); ok && lang != "" {
		return lang
	}
	return strings.TrimPrefix(res.FileExtension, ".")
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
