// Package chunker splits a source file into overlapping, line-addressable
// regions (spec §4.B). Chunk boundaries are deterministic: the same file
// text always yields byte-for-byte identical chunks.
package chunker

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/emirbartu/terminal-helper/internal/config"
	"github.com/emirbartu/terminal-helper/internal/ragtypes"
)

// importLine matches a line that opens an import/include/require/use
// clause, used to set Chunk.HasImports (spec §4.B).
var importLine = regexp.MustCompile(`^\s*(import|from|#include|require\s*\(|use\s+)`)

// binaryProbeBytes is how much of a file's start is scanned for a NUL
// byte to decide it is binary (spec §4.B).
const binaryProbeBytes = 8192

// Chunker splits file text into chunks under a target-lines/overlap/
// max-chars budget.
type Chunker struct {
	targetLines  int
	overlapLines int
	maxChars     int
}

// New creates a Chunker from the engine's chunking configuration.
func New(cfg config.ChunkingConfig) *Chunker {
	target := cfg.TargetLines
	if target <= 0 {
		target = 40
	}
	overlap := cfg.OverlapLines
	if overlap < 0 || overlap >= target {
		overlap = 0
	}
	maxChars := cfg.MaxChars
	if maxChars <= 0 {
		maxChars = 4000
	}
	return &Chunker{targetLines: target, overlapLines: overlap, maxChars: maxChars}
}

// IsBinary reports whether content looks binary: any NUL byte in the
// first binaryProbeBytes bytes (spec §4.B).
func IsBinary(content []byte) bool {
	probe := content
	if len(probe) > binaryProbeBytes {
		probe = probe[:binaryProbeBytes]
	}
	for _, b := range probe {
		if b == 0 {
			return true
		}
	}
	return false
}

// Chunk splits one file's text into line-anchored, overlapping chunks.
// Empty or whitespace-only content yields zero chunks. Callers must
// filter binary content with IsBinary before calling Chunk.
func (c *Chunker) Chunk(filePath string, content string) []ragtypes.Chunk {
	if strings.TrimSpace(content) == "" {
		return nil
	}

	// strings.Split never drops a trailing empty element meaningfully for
	// our purposes: a file ending in "\n" has its final element be "".
	lines := strings.Split(content, "\n")

	fileExt := strings.ToLower(filepath.Ext(filePath))

	var chunks []ragtypes.Chunk
	start := 0 // 0-based index into lines
	for start < len(lines) {
		end := c.boundByChars(lines, start)
		chunkLines := lines[start:end]

		chunks = append(chunks, ragtypes.Chunk{
			FilePath:   filePath,
			StartLine:  start + 1,
			EndLine:    end,
			Content:    strings.Join(chunkLines, "\n"),
			HasImports: hasImports(chunkLines),
			FileExt:    fileExt,
		})

		if end >= len(lines) {
			break
		}

		// Overlap the next chunk's start with the tail of this one, but
		// never by so much that start fails to advance: a chunk cut
		// short by the character budget may hold fewer than
		// overlapLines lines.
		overlap := c.overlapLines
		if maxOverlap := (end - start) - 1; overlap > maxOverlap {
			overlap = maxOverlap
		}
		if overlap < 0 {
			overlap = 0
		}
		start = end - overlap
	}
	return chunks
}

// boundByChars extends the window from start by up to targetLines lines,
// but stops earlier if the accumulated character count would exceed
// maxChars (and at least one line has already been included).
func (c *Chunker) boundByChars(lines []string, start int) int {
	limit := start + c.targetLines
	if limit > len(lines) {
		limit = len(lines)
	}

	size := 0
	end := start
	for i := start; i < limit; i++ {
		lineSize := len(lines[i]) + 1 // + newline
		if i > start && size+lineSize > c.maxChars {
			break
		}
		size += lineSize
		end = i + 1
	}
	if end == start {
		end = start + 1
	}
	return end
}

func hasImports(lines []string) bool {
	for _, l := range lines {
		if importLine.MatchString(l) {
			return true
		}
	}
	return false
}
