// Package imports extracts import edges from source files and maintains an
// import-frequency graph across a repository.
package imports

import (
	"regexp"
	"sort"
	"strings"
	"sync"
)

// Edge records one import statement as written in source. Imported is the raw
// module string; no resolution to files is attempted.
type Edge struct {
	Importer string
	Imported string
	Language string
	Line     int
}

// Graph is the aggregated view over all analyzed files.
type Graph struct {
	Edges     []Edge
	Frequency map[string]int
}

// ModuleCount pairs a module name with how often it is imported.
type ModuleCount struct {
	Module string
	Count  int
}

// Analyzer accumulates import edges. Extraction is line-oriented and
// best-effort: comments and string literals are not stripped, so a line like
// "// import x" will match. That trade-off keeps the analyzer language-neutral.
type Analyzer struct {
	mu    sync.Mutex
	edges []Edge
}

// NewAnalyzer creates an empty analyzer.
func NewAnalyzer() *Analyzer {
	return &Analyzer{}
}

var (
	jsFromRe       = regexp.MustCompile(`import\s+[\w*{}\s,$]+\s+from\s+['"]([^'"]+)['"]`)
	jsSideEffectRe = regexp.MustCompile(`^\s*import\s+['"]([^'"]+)['"]`)
	jsRequireRe    = regexp.MustCompile(`require\s*\(\s*['"]([^'"]+)['"]\s*\)`)
	jsDynamicRe    = regexp.MustCompile(`import\s*\(\s*['"]([^'"]+)['"]\s*\)`)

	pyImportRe = regexp.MustCompile(`^\s*import\s+([\w.]+)`)
	pyFromRe   = regexp.MustCompile(`^\s*from\s+([\w.]+)\s+import\b`)

	javaImportRe = regexp.MustCompile(`^\s*import\s+(?:static\s+)?([\w.]+(?:\.\*)?)\s*;`)

	goImportRe     = regexp.MustCompile(`^\s*import\s+(?:[\w.]+\s+)?"([^"]+)"`)
	goBlockStartRe = regexp.MustCompile(`^\s*import\s*\(`)
	goQuotedRe     = regexp.MustCompile(`"([^"]+)"`)

	rustUseRe   = regexp.MustCompile(`^\s*(?:pub\s+)?use\s+([\w:]+)`)
	rustCrateRe = regexp.MustCompile(`^\s*extern\s+crate\s+(\w+)`)

	cIncludeRe = regexp.MustCompile(`^\s*#\s*include\s*[<"]([^>"]+)[>"]`)

	csUsingRe = regexp.MustCompile(`^\s*using\s+(?:static\s+)?([\w.]+)\s*;`)
)

// languageAliases maps every recognized language tag to its canonical form.
var languageAliases = map[string]string{
	"javascript": "javascript", "js": "javascript", "jsx": "javascript",
	"typescript": "typescript", "ts": "typescript", "tsx": "typescript",
	"python": "python", "py": "python",
	"java": "java",
	"go":   "go",
	"rust": "rust", "rs": "rust",
	"c": "c", "h": "c",
	"cpp": "cpp", "c++": "cpp", "cc": "cpp", "hpp": "cpp",
	"csharp": "csharp", "cs": "csharp", "c#": "csharp",
}

// IsLanguageSupported reports whether the analyzer has extraction rules for
// the given language tag.
func IsLanguageSupported(language string) bool {
	_, ok := languageAliases[strings.ToLower(language)]
	return ok
}

// AnalyzeFile extracts import edges from one file and records them. The
// returned slice holds only this file's edges, in source order.
func (a *Analyzer) AnalyzeFile(code, language, importerPath string) []Edge {
	canonical, ok := languageAliases[strings.ToLower(language)]
	if !ok {
		return nil
	}

	var edges []Edge
	inGoBlock := false

	for i, line := range strings.Split(code, "\n") {
		lineNo := i + 1
		var modules []string

		switch canonical {
		case "javascript", "typescript":
			modules = extractJS(line)
		case "python":
			modules = firstGroup(line, pyFromRe, pyImportRe)
		case "java":
			modules = firstGroup(line, javaImportRe)
		case "go":
			modules, inGoBlock = extractGo(line, inGoBlock)
		case "rust":
			modules = firstGroup(line, rustUseRe, rustCrateRe)
		case "c", "cpp":
			modules = firstGroup(line, cIncludeRe)
		case "csharp":
			if !strings.Contains(line, "=") {
				modules = firstGroup(line, csUsingRe)
			}
		}

		for _, m := range modules {
			edges = append(edges, Edge{
				Importer: importerPath,
				Imported: m,
				Language: canonical,
				Line:     lineNo,
			})
		}
	}

	a.mu.Lock()
	a.edges = append(a.edges, edges...)
	a.mu.Unlock()
	return edges
}

// extractJS applies the ES6/CommonJS patterns to one line. The from-form wins
// over the bare side-effect form; distinct module strings on one line are each
// counted once.
func extractJS(line string) []string {
	seen := make(map[string]struct{})
	var modules []string
	add := func(m string) {
		if _, ok := seen[m]; !ok {
			seen[m] = struct{}{}
			modules = append(modules, m)
		}
	}

	fromMatched := false
	if m := jsFromRe.FindStringSubmatch(line); m != nil {
		add(m[1])
		fromMatched = true
	}
	if !fromMatched {
		if m := jsSideEffectRe.FindStringSubmatch(line); m != nil {
			add(m[1])
		}
	}
	for _, m := range jsRequireRe.FindAllStringSubmatch(line, -1) {
		add(m[1])
	}
	for _, m := range jsDynamicRe.FindAllStringSubmatch(line, -1) {
		add(m[1])
	}
	return modules
}

// extractGo handles both the single-line form and the block form. Inside a
// block, any quoted string is accepted as an import; false positives inside
// string literals are an accepted cost of staying line-oriented.
func extractGo(line string, inBlock bool) ([]string, bool) {
	if inBlock {
		if strings.TrimSpace(line) == ")" {
			return nil, false
		}
		if m := goQuotedRe.FindStringSubmatch(line); m != nil {
			return []string{m[1]}, true
		}
		return nil, true
	}
	if goBlockStartRe.MatchString(line) {
		return nil, true
	}
	if m := goImportRe.FindStringSubmatch(line); m != nil {
		return []string{m[1]}, false
	}
	return nil, false
}

// firstGroup returns the first capture of the first regex that matches.
func firstGroup(line string, patterns ...*regexp.Regexp) []string {
	for _, re := range patterns {
		if m := re.FindStringSubmatch(line); m != nil {
			return []string{m[1]}
		}
	}
	return nil
}

// BuildGraph returns a copy of all recorded edges plus per-module frequency.
func (a *Analyzer) BuildGraph() Graph {
	a.mu.Lock()
	defer a.mu.Unlock()

	edges := make([]Edge, len(a.edges))
	copy(edges, a.edges)

	freq := make(map[string]int)
	for _, e := range edges {
		freq[e.Imported]++
	}
	return Graph{Edges: edges, Frequency: freq}
}

// Frequency returns how many recorded edges import the given module.
func (a *Analyzer) Frequency(module string) int {
	a.mu.Lock()
	defer a.mu.Unlock()

	count := 0
	for _, e := range a.edges {
		if e.Imported == module {
			count++
		}
	}
	return count
}

// TopImported returns the n most-imported modules, most frequent first. Ties
// break alphabetically so the ordering is stable.
func (a *Analyzer) TopImported(n int) []ModuleCount {
	graph := a.BuildGraph()

	counts := make([]ModuleCount, 0, len(graph.Frequency))
	for module, count := range graph.Frequency {
		counts = append(counts, ModuleCount{Module: module, Count: count})
	}
	sort.Slice(counts, func(i, j int) bool {
		if counts[i].Count != counts[j].Count {
			return counts[i].Count > counts[j].Count
		}
		return counts[i].Module < counts[j].Module
	})

	if n < len(counts) {
		counts = counts[:n]
	}
	return counts
}

// ImportsOf returns the modules imported by one file, in recorded order.
func (a *Analyzer) ImportsOf(importerPath string) []string {
	a.mu.Lock()
	defer a.mu.Unlock()

	var modules []string
	for _, e := range a.edges {
		if e.Importer == importerPath {
			modules = append(modules, e.Imported)
		}
	}
	return modules
}

// ImportersOf returns the files that import the given module, deduplicated
// and sorted.
func (a *Analyzer) ImportersOf(module string) []string {
	a.mu.Lock()
	defer a.mu.Unlock()

	seen := make(map[string]struct{})
	for _, e := range a.edges {
		if e.Imported == module {
			seen[e.Importer] = struct{}{}
		}
	}
	importers := make([]string, 0, len(seen))
	for path := range seen {
		importers = append(importers, path)
	}
	sort.Strings(importers)
	return importers
}

// RemoveFile drops all edges recorded for one importer, so a deleted or
// re-analyzed file does not leave stale counts behind.
func (a *Analyzer) RemoveFile(importerPath string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	kept := a.edges[:0]
	for _, e := range a.edges {
		if e.Importer != importerPath {
			kept = append(kept, e)
		}
	}
	a.edges = kept
}

// Reset discards all recorded edges.
func (a *Analyzer) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.edges = nil
}

// TotalImports returns the number of recorded edges.
func (a *Analyzer) TotalImports() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.edges)
}

// MaxFrequency returns the highest import count across all modules, or 0 when
// nothing has been analyzed.
func (a *Analyzer) MaxFrequency() int {
	graph := a.BuildGraph()
	max := 0
	for _, count := range graph.Frequency {
		if count > max {
			max = count
		}
	}
	return max
}
