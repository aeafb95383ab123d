// Package splitter chunks source files into semantic pieces with line spans.
// An AST-based splitter covers languages with tree-sitter grammars; a
// line-based splitter covers the rest.
package splitter

import (
	"strings"

	"github.com/randalmurphal/code-context/internal/chunk"
)

// Splitter chunks code into pieces with line spans.
type Splitter interface {
	Split(code, language, filePath string) ([]chunk.Chunk, error)
	SetChunkSize(size int)
	SetChunkOverlap(overlap int)
}

const (
	defaultChunkSize    = 1000
	defaultChunkOverlap = 200
)

// CodeSplitter dispatches to the AST splitter for its supported languages and
// falls back to line-based splitting otherwise.
type CodeSplitter struct {
	ast      *ASTSplitter
	fallback *LineSplitter
}

// NewCodeSplitter creates a splitter with default chunk sizing.
func NewCodeSplitter() *CodeSplitter {
	return &CodeSplitter{
		ast:      NewASTSplitter(),
		fallback: NewLineSplitter(),
	}
}

// Split chunks the code, preferring AST boundaries when the language has a
// grammar. AST parse failures fall back to line splitting rather than erroring.
func (s *CodeSplitter) Split(code, language, filePath string) ([]chunk.Chunk, error) {
	if s.ast.SupportsLanguage(language) {
		chunks, err := s.ast.Split(code, language, filePath)
		if err == nil {
			return chunks, nil
		}
	}
	return s.fallback.Split(code, language, filePath)
}

// SetChunkSize sets the target chunk size in characters on both splitters.
func (s *CodeSplitter) SetChunkSize(size int) {
	s.ast.SetChunkSize(size)
	s.fallback.SetChunkSize(size)
}

// SetChunkOverlap sets the overlap in characters on both splitters.
func (s *CodeSplitter) SetChunkOverlap(overlap int) {
	s.ast.SetChunkOverlap(overlap)
	s.fallback.SetChunkOverlap(overlap)
}

// LineSplitter chunks by accumulating lines up to the target size, with a
// character-bounded line overlap between consecutive chunks.
type LineSplitter struct {
	chunkSize    int
	chunkOverlap int
}

// NewLineSplitter creates a line splitter with default sizing.
func NewLineSplitter() *LineSplitter {
	return &LineSplitter{chunkSize: defaultChunkSize, chunkOverlap: defaultChunkOverlap}
}

// SetChunkSize sets the target chunk size in characters.
func (s *LineSplitter) SetChunkSize(size int) {
	if size > 0 {
		s.chunkSize = size
	}
}

// SetChunkOverlap sets the overlap in characters.
func (s *LineSplitter) SetChunkOverlap(overlap int) {
	if overlap >= 0 {
		s.chunkOverlap = overlap
	}
}

// Split chunks code line-by-line. Line numbers are 1-based and inclusive.
func (s *LineSplitter) Split(code, language, filePath string) ([]chunk.Chunk, error) {
	if strings.TrimSpace(code) == "" {
		return nil, nil
	}

	lines := strings.Split(code, "\n")
	var chunks []chunk.Chunk

	start := 0
	size := 0
	for i, line := range lines {
		size += len(line) + 1
		if size < s.chunkSize && i < len(lines)-1 {
			continue
		}

		chunks = append(chunks, chunk.Chunk{
			Content:      strings.Join(lines[start:i+1], "\n"),
			RelativePath: filePath,
			StartLine:    start + 1,
			EndLine:      i + 1,
			Language:     language,
		})

		// Step back whole lines until the overlap budget is spent.
		next := i + 1
		overlap := 0
		for next > start+1 && overlap < s.chunkOverlap {
			overlap += len(lines[next-1]) + 1
			next--
		}
		if next <= start {
			next = start + 1
		}
		if next > i {
			next = i + 1
		}
		start = next
		size = 0
		for _, l := range lines[start : i+1] {
			size += len(l) + 1
		}
		if i == len(lines)-1 {
			break
		}
	}

	return chunks, nil
}
