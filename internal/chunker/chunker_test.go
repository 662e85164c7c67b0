package chunker

import (
	"strings"
	"testing"

	"github.com/emirbartu/terminal-helper/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func smallCfg() config.ChunkingConfig {
	return config.ChunkingConfig{TargetLines: 5, OverlapLines: 2, MaxChars: 1000}
}

func TestChunk_EmptyFileYieldsNoChunks(t *testing.T) {
	c := New(smallCfg())
	assert.Empty(t, c.Chunk("empty.go", ""))
	assert.Empty(t, c.Chunk("empty.go", "   \n\n  "))
}

func TestChunk_LineAddressingMatchesOriginalText(t *testing.T) {
	lines := make([]string, 20)
	for i := range lines {
		lines[i] = "line content here"
	}
	content := strings.Join(lines, "\n")

	c := New(smallCfg())
	chunks := c.Chunk("file.go", content)
	require.NotEmpty(t, chunks)

	for _, ch := range chunks {
		expected := strings.Join(lines[ch.StartLine-1:ch.EndLine], "\n")
		assert.Equal(t, expected, ch.Content)
		assert.LessOrEqual(t, ch.StartLine, ch.EndLine)
	}
}

func TestChunk_OverlapsAcrossBoundary(t *testing.T) {
	lines := make([]string, 20)
	for i := range lines {
		lines[i] = "line"
	}
	content := strings.Join(lines, "\n")

	c := New(smallCfg())
	chunks := c.Chunk("file.go", content)
	require.GreaterOrEqual(t, len(chunks), 2)
	// Successive chunks must overlap: the next chunk starts before the
	// previous one ends.
	assert.Less(t, chunks[1].StartLine, chunks[0].EndLine+1)
}

func TestChunk_IsDeterministic(t *testing.T) {
	content := "import foo\nfunc main() {\n\tprintln(1)\n}\n"
	c := New(smallCfg())
	a := c.Chunk("main.go", content)
	b := c.Chunk("main.go", content)
	assert.Equal(t, a, b)
}

func TestChunk_HasImportsDetectsTopOfFileImports(t *testing.T) {
	content := "import foo\nfunc main() {}\n"
	c := New(smallCfg())
	chunks := c.Chunk("main.go", content)
	require.NotEmpty(t, chunks)
	assert.True(t, chunks[0].HasImports)
}

func TestChunk_FileExtLowercased(t *testing.T) {
	c := New(smallCfg())
	chunks := c.Chunk("Main.GO", "package main\n")
	require.NotEmpty(t, chunks)
	assert.Equal(t, ".go", chunks[0].FileExt)
}

func TestIsBinary_DetectsNulByte(t *testing.T) {
	assert.True(t, IsBinary([]byte("hello\x00world")))
	assert.False(t, IsBinary([]byte("hello world")))
}

func TestChunk_RespectsMaxCharsBudget(t *testing.T) {
	longLine := strings.Repeat("x", 600)
	content := strings.Join([]string{longLine, longLine, longLine}, "\n")
	cfg := config.ChunkingConfig{TargetLines: 10, OverlapLines: 0, MaxChars: 700}
	c := New(cfg)
	chunks := c.Chunk("big.go", content)
	// Each line alone is ~600 chars; a 700-char budget fits only one
	// full line per chunk once the second line would overflow it.
	require.NotEmpty(t, chunks)
	for _, ch := range chunks {
		assert.LessOrEqual(t, ch.EndLine-ch.StartLine+1, 1)
	}
}
