package splitter

import (
	"context"
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/typescript/typescript"

	"github.com/randalmurphal/code-context/internal/chunk"
)

// ASTSplitter chunks source at top-level declaration boundaries using
// tree-sitter. Adjacent small declarations are merged up to the chunk size;
// oversized declarations are re-split line-by-line.
type ASTSplitter struct {
	chunkSize    int
	chunkOverlap int
	fallback     *LineSplitter
}

// NewASTSplitter creates an AST splitter with default sizing.
func NewASTSplitter() *ASTSplitter {
	return &ASTSplitter{
		chunkSize:    defaultChunkSize,
		chunkOverlap: defaultChunkOverlap,
		fallback:     NewLineSplitter(),
	}
}

// SetChunkSize sets the target chunk size in characters.
func (s *ASTSplitter) SetChunkSize(size int) {
	if size > 0 {
		s.chunkSize = size
		s.fallback.SetChunkSize(size)
	}
}

// SetChunkOverlap sets the overlap used when a declaration is re-split.
func (s *ASTSplitter) SetChunkOverlap(overlap int) {
	if overlap >= 0 {
		s.chunkOverlap = overlap
		s.fallback.SetChunkOverlap(overlap)
	}
}

func grammarFor(language string) *sitter.Language {
	switch strings.ToLower(language) {
	case "go":
		return golang.GetLanguage()
	case "python", "py":
		return python.GetLanguage()
	case "javascript", "js", "jsx":
		return javascript.GetLanguage()
	case "typescript", "ts", "tsx":
		return typescript.GetLanguage()
	default:
		return nil
	}
}

// SupportsLanguage reports whether a grammar is available.
func (s *ASTSplitter) SupportsLanguage(language string) bool {
	return grammarFor(language) != nil
}

// SupportedLanguages lists the languages with grammars.
func (s *ASTSplitter) SupportedLanguages() []string {
	return []string{"go", "python", "javascript", "typescript"}
}

// Split parses the code and emits one chunk per run of top-level declarations.
func (s *ASTSplitter) Split(code, language, filePath string) ([]chunk.Chunk, error) {
	grammar := grammarFor(language)
	if grammar == nil {
		return nil, fmt.Errorf("no grammar for language %q", language)
	}
	if strings.TrimSpace(code) == "" {
		return nil, nil
	}

	parser := sitter.NewParser()
	parser.SetLanguage(grammar)

	source := []byte(code)
	tree, err := parser.ParseCtx(context.Background(), nil, source)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", filePath, err)
	}
	defer tree.Close()

	root := tree.RootNode()
	lines := strings.Split(code, "\n")

	type span struct{ start, end int } // 0-based line indices, inclusive
	var spans []span
	for i := 0; i < int(root.NamedChildCount()); i++ {
		node := root.NamedChild(i)
		spans = append(spans, span{int(node.StartPoint().Row), int(node.EndPoint().Row)})
	}
	if len(spans) == 0 {
		return s.fallback.Split(code, language, filePath)
	}

	sliceLines := func(start, end int) string {
		if end >= len(lines) {
			end = len(lines) - 1
		}
		return strings.Join(lines[start:end+1], "\n")
	}

	var chunks []chunk.Chunk
	emit := func(start, end int) {
		content := sliceLines(start, end)
		if len(content) > s.chunkSize*2 {
			// Oversized declaration: re-split by lines, preserving absolute
			// line numbers.
			sub, _ := s.fallback.Split(content, language, filePath)
			for _, c := range sub {
				c.StartLine += start
				c.EndLine += start
				chunks = append(chunks, c)
			}
			return
		}
		chunks = append(chunks, chunk.Chunk{
			Content:      content,
			RelativePath: filePath,
			StartLine:    start + 1,
			EndLine:      end + 1,
			Language:     language,
		})
	}

	runStart := spans[0].start
	runEnd := spans[0].end
	runSize := len(sliceLines(runStart, runEnd))
	for _, sp := range spans[1:] {
		declSize := len(sliceLines(sp.start, sp.end))
		if runSize+declSize <= s.chunkSize {
			runEnd = sp.end
			runSize += declSize
			continue
		}
		emit(runStart, runEnd)
		runStart, runEnd, runSize = sp.start, sp.end, declSize
	}
	emit(runStart, runEnd)

	return chunks, nil
}
