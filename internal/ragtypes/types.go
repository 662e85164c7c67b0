// Package ragtypes holds the data types shared across the retrieval engine:
// chunks, their metadata, and the scored results the fuser produces.
package ragtypes

import "fmt"

// ChunkMeta is the JSON-serializable projection of a Chunk that both the
// BM25 index and the vector index persist alongside their own state.
type ChunkMeta struct {
	FilePath   string `json:"filePath"`
	FileName   string `json:"fileName"`
	StartLine  int    `json:"startLine"`
	EndLine    int    `json:"endLine"`
	FileExt    string `json:"fileExt"`
	HasImports bool   `json:"hasImports"`
}

// Chunk is an immutable, line-addressable region of one source file.
type Chunk struct {
	FilePath   string
	StartLine  int
	EndLine    int
	Content    string
	HasImports bool
	FileExt    string
}

// ID returns the chunk's globally-unique identity within one project index.
func (c Chunk) ID() string {
	return fmt.Sprintf("%s:%d-%d", c.FilePath, c.StartLine, c.EndLine)
}

// Meta projects the chunk down to the fields persisted by both indices.
func (c Chunk) Meta() ChunkMeta {
	return ChunkMeta{
		FilePath:   c.FilePath,
		FileName:   baseName(c.FilePath),
		StartLine:  c.StartLine,
		EndLine:    c.EndLine,
		FileExt:    c.FileExt,
		HasImports: c.HasImports,
	}
}

func baseName(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' || path[i] == '\\' {
			return path[i+1:]
		}
	}
	return path
}

// SearchResult is one scored chunk returned by the hybrid fuser, carrying
// both the BM25 and the vector score. Whichever side did not produce the
// chunk leaves its score at zero.
type SearchResult struct {
	ChunkID       string
	BM25Score     float64
	VectorScore   float64
	CombinedScore float64
	Meta          ChunkMeta
}

// FileGroup buckets SearchResults sharing a file path, sorted by MaxScore.
type FileGroup struct {
	FilePath   string
	MaxScore   float64
	TotalScore float64
	Results    []SearchResult
}
