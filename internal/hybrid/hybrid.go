// Package hybrid combines a BM25 ranking and a vector-similarity ranking
// into one fused score, promotes a single root-cause chunk from
// query-specific cues, and groups results by file (spec §4.H).
package hybrid

import (
	"context"
	"fmt"
	"sort"

	"github.com/emirbartu/terminal-helper/internal/bm25"
	"github.com/emirbartu/terminal-helper/internal/config"
	"github.com/emirbartu/terminal-helper/internal/queryexpand"
	"github.com/emirbartu/terminal-helper/internal/ragtypes"
	"github.com/emirbartu/terminal-helper/internal/vectorindex"
)

// BM25Searcher is the minimal surface hybrid needs from the lexical
// index.
type BM25Searcher interface {
	Search(query string, k int) []bm25.Result
	N() int
}

// VectorSearcher is the minimal surface hybrid needs from the vector
// index, and from the Embedding Client that turns a query into a vector.
type VectorSearcher interface {
	Search(query []float32, k int) []vectorindex.Result
	Size() int
}

// Embedder produces the query vector fed to VectorSearcher.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Fuser runs the hybrid search pipeline over one BM25 index and one
// vector index (spec §4.H).
type Fuser struct {
	bm25Idx  BM25Searcher
	vecIdx   VectorSearcher
	embedder Embedder
	weightB  float64
	weightV  float64
}

// New creates a Fuser with weights normalized so they sum to 1 (spec
// §4.H step 2). Both weights non-positive is a config error (spec §7
// Config); here the caller should validate before constructing.
func New(bm25Idx BM25Searcher, vecIdx VectorSearcher, embedder Embedder, cfg config.HybridConfig) *Fuser {
	wb, wv := normalizeWeights(cfg.WeightBM25, cfg.WeightVector)
	return &Fuser{bm25Idx: bm25Idx, vecIdx: vecIdx, embedder: embedder, weightB: wb, weightV: wv}
}

func normalizeWeights(wb, wv float64) (float64, float64) {
	if wb < 0 {
		wb = 0
	}
	if wv < 0 {
		wv = 0
	}
	total := wb + wv
	if total == 0 {
		return 0.3, 0.7
	}
	return wb / total, wv / total
}

// Search runs hybrid_search per spec §4.H: clamp expandedK to the larger
// index's size, run both rankings at expandedK, merge by chunk id, sort
// by combined score descending, and return the top k.
func (f *Fuser) Search(ctx context.Context, query string, k int) ([]ragtypes.SearchResult, error) {
	if k <= 0 {
		return nil, nil
	}

	n := f.bm25Idx.N()
	vecSize := f.vecIdx.Size()
	maxSize := n
	if vecSize > maxSize {
		maxSize = vecSize
	}
	if maxSize == 0 {
		return nil, nil
	}

	expandedK := 3 * k
	if expandedK > maxSize {
		expandedK = maxSize
	}
	if k > maxSize {
		k = maxSize
	}

	bm25Results := f.bm25Idx.Search(query, expandedK)

	var vecResults []vectorindex.Result
	if f.embedder != nil && vecSize > 0 {
		qVec, err := f.embedder.Embed(ctx, query)
		if err == nil {
			vecResults = f.vecIdx.Search(qVec, expandedK)
		}
	}

	merged := make(map[string]*ragtypes.SearchResult)
	order := make([]string, 0, len(bm25Results)+len(vecResults))

	for _, r := range bm25Results {
		merged[r.ChunkID] = &ragtypes.SearchResult{ChunkID: r.ChunkID, BM25Score: r.Score, Meta: r.Meta}
		order = append(order, r.ChunkID)
	}
	for _, r := range vecResults {
		id := chunkID(r.Meta)
		if existing, ok := merged[id]; ok {
			existing.VectorScore = r.Score
		} else {
			merged[id] = &ragtypes.SearchResult{ChunkID: id, VectorScore: r.Score, Meta: r.Meta}
			order = append(order, id)
		}
	}

	results := make([]ragtypes.SearchResult, 0, len(merged))
	for _, id := range order {
		res := merged[id]
		res.CombinedScore = f.weightB*res.BM25Score + f.weightV*res.VectorScore
		results = append(results, *res)
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].CombinedScore > results[j].CombinedScore
	})

	if k > len(results) {
		k = len(results)
	}
	return results[:k], nil
}

// chunkID reconstructs a chunk's identity from metadata, matching
// ragtypes.Chunk.ID's format, so vector and BM25 results referring to the
// same chunk merge under the same key even without a shared chunk-id
// field on vectorindex.Result.
func chunkID(m ragtypes.ChunkMeta) string {
	return fmt.Sprintf("%s:%d-%d", m.FilePath, m.StartLine, m.EndLine)
}

// IdentifyRootCause returns at most one result: the one with the
// greatest rc_score after the query-cue boost (spec §4.H). It returns
// false if results is empty.
func IdentifyRootCause(results []ragtypes.SearchResult, rawQuery string) (ragtypes.SearchResult, bool) {
	if len(results) == 0 {
		return ragtypes.SearchResult{}, false
	}

	matchingNames := queryexpand.MatchingFilenames(rawQuery)

	bestIdx := 0
	bestScore := rcScore(results[0], matchingNames)
	for i := 1; i < len(results); i++ {
		s := rcScore(results[i], matchingNames)
		if s > bestScore {
			bestScore = s
			bestIdx = i
		}
	}
	return results[bestIdx], true
}

func rcScore(r ragtypes.SearchResult, matchingNames map[string]bool) float64 {
	score := r.CombinedScore
	if matchingNames[r.Meta.FileName] {
		score *= 1.5
	}
	if r.Meta.HasImports {
		score *= 1.2
	}
	return score
}

// GroupByFile buckets results by file path; groups are sorted by
// MaxScore descending, and chunks within a group preserve their input
// order (spec §4.H).
func GroupByFile(results []ragtypes.SearchResult) []ragtypes.FileGroup {
	index := make(map[string]int)
	var groups []ragtypes.FileGroup

	for _, r := range results {
		pos, ok := index[r.Meta.FilePath]
		if !ok {
			index[r.Meta.FilePath] = len(groups)
			groups = append(groups, ragtypes.FileGroup{
				FilePath:   r.Meta.FilePath,
				MaxScore:   r.CombinedScore,
				TotalScore: r.CombinedScore,
				Results:    []ragtypes.SearchResult{r},
			})
			continue
		}
		g := &groups[pos]
		g.Results = append(g.Results, r)
		g.TotalScore += r.CombinedScore
		if r.CombinedScore > g.MaxScore {
			g.MaxScore = r.CombinedScore
		}
	}

	sort.SliceStable(groups, func(i, j int) bool {
		return groups[i].MaxScore > groups[j].MaxScore
	})
	return groups
}
