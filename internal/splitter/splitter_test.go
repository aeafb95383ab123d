package splitter

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const goSource = `package demo

import "fmt"

func Hello() string {
	return "hello"
}

func Goodbye() string {
	return "goodbye"
}
`

func TestASTSplitterGo(t *testing.T) {
	s := NewASTSplitter()
	chunks, err := s.Split(goSource, "go", "demo.go")
	require.NoError(t, err)
	require.NotEmpty(t, chunks)

	// Small declarations merge into one chunk covering the whole file span.
	require.Equal(t, 1, len(chunks))
	require.Equal(t, 1, chunks[0].StartLine)
	require.Contains(t, chunks[0].Content, "func Hello()")
	require.Contains(t, chunks[0].Content, "func Goodbye()")
	require.Equal(t, "go", chunks[0].Language)
	require.Equal(t, "demo.go", chunks[0].RelativePath)
}

func TestASTSplitterSplitsAtDeclarations(t *testing.T) {
	s := NewASTSplitter()
	s.SetChunkSize(40) // force one chunk per declaration

	chunks, err := s.Split(goSource, "go", "demo.go")
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(chunks), 3)

	for _, c := range chunks {
		require.LessOrEqual(t, c.StartLine, c.EndLine)
		require.Greater(t, c.StartLine, 0)
	}
}

func TestASTSplitterPython(t *testing.T) {
	code := "def one():\n    return 1\n\ndef two():\n    return 2\n"
	s := NewASTSplitter()
	s.SetChunkSize(20)

	chunks, err := s.Split(code, "python", "nums.py")
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	require.Contains(t, chunks[0].Content, "def one")
	require.Contains(t, chunks[1].Content, "def two")
}

func TestASTSplitterUnsupportedLanguage(t *testing.T) {
	s := NewASTSplitter()
	require.False(t, s.SupportsLanguage("ruby"))
	_, err := s.Split("puts 1", "ruby", "x.rb")
	require.Error(t, err)
}

func TestLineSplitterSpansAndOverlap(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 40; i++ {
		b.WriteString("line-of-filler-content-for-chunking\n")
	}

	s := NewLineSplitter()
	s.SetChunkSize(400)
	s.SetChunkOverlap(72)

	chunks, err := s.Split(b.String(), "text", "notes.txt")
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)

	require.Equal(t, 1, chunks[0].StartLine)
	for i := 1; i < len(chunks); i++ {
		// Overlap: each chunk starts at or before the previous end + 1.
		require.LessOrEqual(t, chunks[i].StartLine, chunks[i-1].EndLine+1)
		require.Greater(t, chunks[i].EndLine, chunks[i-1].EndLine)
	}
}

func TestLineSplitterEmptyInput(t *testing.T) {
	s := NewLineSplitter()
	chunks, err := s.Split("   \n  ", "text", "empty.txt")
	require.NoError(t, err)
	require.Empty(t, chunks)
}

func TestCodeSplitterDispatch(t *testing.T) {
	s := NewCodeSplitter()

	goChunks, err := s.Split(goSource, "go", "demo.go")
	require.NoError(t, err)
	require.NotEmpty(t, goChunks)

	textChunks, err := s.Split("plain text body", "text", "readme.txt")
	require.NoError(t, err)
	require.Len(t, textChunks, 1)
	require.Equal(t, 1, textChunks[0].StartLine)
}

func TestChunkIDDeterministic(t *testing.T) {
	s := NewCodeSplitter()
	first, err := s.Split(goSource, "go", "demo.go")
	require.NoError(t, err)
	second, err := s.Split(goSource, "go", "demo.go")
	require.NoError(t, err)

	require.Equal(t, len(first), len(second))
	for i := range first {
		require.Equal(t, first[i].ID(), second[i].ID())
	}
}
