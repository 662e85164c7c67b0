package ragengine

import (
	"context"
	"errors"

	"github.com/emirbartu/terminal-helper/internal/bm25"
	"github.com/emirbartu/terminal-helper/internal/hybrid"
	"github.com/emirbartu/terminal-helper/internal/queryexpand"
	"github.com/emirbartu/terminal-helper/internal/ragerr"
	"github.com/emirbartu/terminal-helper/internal/vectorindex"
	"github.com/rs/zerolog/log"
)

// RetrieveRelevantFiles runs the hybrid-search pipeline for one error log
// or natural-language query (spec §4.I retrieve_relevant_files). It never
// returns an error a caller cannot ignore: any failure short of a
// cancelled context is logged and converted to an empty result, so
// collaborators always get an answer (spec §7 "always-responsive"
// contract).
func (c *Coordinator) RetrieveRelevantFiles(ctx context.Context, errorLog string, opts RetrieveOptions) (RetrieveResult, error) {
	bmIdx, vecIdx := c.indices()
	if bmIdx == nil || vecIdx == nil {
		return RetrieveResult{}, nil
	}

	if bmIdx.N() == 0 && vecIdx.Size() == 0 {
		_, err := c.IndexCodebase(ctx, IndexOptions{MaxFiles: autoIndexMaxFiles, BatchSize: autoIndexBatchSize})
		if err != nil {
			if errors.Is(err, ragerr.ErrCancelled) {
				return RetrieveResult{}, err
			}
			log.Warn().Err(err).Msg("auto-index before retrieval failed, returning empty result")
			return RetrieveResult{}, nil
		}
		bmIdx, vecIdx = c.indices()
	}

	if err := ctx.Err(); err != nil {
		return RetrieveResult{}, ragerr.Wrap(ragerr.ErrCancelled, "retrieve_relevant_files cancelled", err)
	}

	k := opts.K
	if k <= 0 {
		k = c.cfg.Hybrid.DefaultK
	}

	expanded := queryexpand.Expand(errorLog)
	fuser := hybrid.New(bm25Searcher{bmIdx}, vectorSearcher{vecIdx}, c.embedder, c.cfg.Hybrid)

	results, err := fuser.Search(ctx, expanded, k)
	if err != nil {
		log.Warn().Err(err).Msg("hybrid search failed, returning empty result")
		return RetrieveResult{}, nil
	}

	grouped := hybrid.GroupByFile(results)

	rc, ok := hybrid.IdentifyRootCause(results, errorLog)
	out := RetrieveResult{Results: results, GroupedResults: grouped}
	if ok {
		out.RootCauseFile = &rc
	}
	log.Info().Int("results", len(results)).Int("files", len(grouped)).Msg("retrieve_relevant_files complete")
	return out, nil
}

// Stats is what rag_stats returns (spec §6).
type Stats struct {
	VectorStats  vectorindex.Stats
	BM25Count    int
	HybridConfig hybridConfigView
}

type hybridConfigView struct {
	WeightBM25   float64
	WeightVector float64
	DefaultK     int
}

// RagStats reports the current size of both indices plus the hybrid
// fusion weights in effect (spec §6 rag_stats).
func (c *Coordinator) RagStats() Stats {
	bmIdx, vecIdx := c.indices()
	st := Stats{
		HybridConfig: hybridConfigView{
			WeightBM25:   c.cfg.Hybrid.WeightBM25,
			WeightVector: c.cfg.Hybrid.WeightVector,
			DefaultK:     c.cfg.Hybrid.DefaultK,
		},
	}
	if bmIdx != nil {
		st.BM25Count = bmIdx.N()
	}
	if vecIdx != nil {
		st.VectorStats = vecIdx.Stats()
	}
	return st
}

// bm25Searcher and vectorSearcher adapt the concrete index types to
// hybrid's minimal interfaces, keeping the coordinator as the only
// package that knows about both concrete index implementations.
type bm25Searcher struct{ idx *bm25.Index }

func (b bm25Searcher) Search(query string, k int) []bm25.Result { return b.idx.Search(query, k) }
func (b bm25Searcher) N() int                                    { return b.idx.N() }

type vectorSearcher struct{ idx *vectorindex.Index }

func (v vectorSearcher) Search(query []float32, k int) []vectorindex.Result {
	return v.idx.Search(query, k)
}
func (v vectorSearcher) Size() int { return v.idx.Size() }
