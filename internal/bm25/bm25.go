// Package bm25 implements an Okapi BM25 inverted index over chunk text
// (spec §4.D): add, search, and an atomically-persisted JSON snapshot.
// Reads and writes are synchronized per spec §5 (queries run concurrently;
// any mutation is mutually exclusive with queries).
package bm25

import (
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/emirbartu/terminal-helper/internal/config"
	"github.com/emirbartu/terminal-helper/internal/ragdata"
	"github.com/emirbartu/terminal-helper/internal/ragerr"
	"github.com/emirbartu/terminal-helper/internal/ragtypes"
	"github.com/emirbartu/terminal-helper/internal/tokenizer"
	"github.com/rs/zerolog/log"
)

// posting is one (document index, term frequency) pair for a term.
type posting struct {
	DocIndex int `json:"docIndex"`
	TermFreq int `json:"termFreq"`
}

// document is one indexed chunk's content and identity.
type document struct {
	ChunkID string `json:"chunkId"`
	Content string `json:"content"`
}

// snapshot is the full JSON-serializable state persisted to disk.
type snapshot struct {
	K1            float64                        `json:"k1"`
	B             float64                        `json:"b"`
	Epsilon       float64                        `json:"epsilon"`
	TokenizerOpts config.TokenizerConfig         `json:"tokenizerOpts"`
	Documents     []document                     `json:"documents"`
	DocMeta       map[string]ragtypes.ChunkMeta  `json:"docMeta"`
	DocLen        []int                          `json:"docLen"`
	AvgDL         float64                        `json:"avgDl"`
	Postings      map[string][]posting           `json:"postings"`
}

// Index is an in-memory Okapi BM25 inverted index.
type Index struct {
	mu sync.RWMutex

	k1      float64
	b       float64
	epsilon float64
	tokOpts config.TokenizerConfig

	documents []document
	docMeta   map[string]ragtypes.ChunkMeta
	docIndex  map[string]int // chunk id -> position in documents
	docLen    []int
	avgDL     float64
	postings  map[string][]posting
	vocab     map[string]bool
}

// New creates an empty BM25 index with the given parameters, fixed for
// the life of the index (spec §4.D).
func New(cfg config.BM25Config, tokOpts config.TokenizerConfig) *Index {
	return &Index{
		k1:      cfg.K1,
		b:       cfg.B,
		epsilon: cfg.Epsilon,
		tokOpts: tokOpts,
		docMeta: make(map[string]ragtypes.ChunkMeta),
		docIndex: make(map[string]int),
		postings: make(map[string][]posting),
		vocab:    make(map[string]bool),
	}
}

// N returns the number of indexed documents.
func (idx *Index) N() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.documents)
}

// Add inserts one chunk into the index. Adding a chunk_id already present
// is a no-op (spec §4.D idempotence).
func (idx *Index) Add(chunk ragtypes.Chunk) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.addLocked(chunk)
}

// AddBatch inserts multiple chunks under one lock acquisition, preserving
// the order the caller yields them (spec §5 ordering guarantee).
func (idx *Index) AddBatch(chunks []ragtypes.Chunk) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	for _, c := range chunks {
		idx.addLocked(c)
	}
}

func (idx *Index) addLocked(chunk ragtypes.Chunk) {
	id := chunk.ID()
	if _, exists := idx.docIndex[id]; exists {
		return
	}

	terms := tokenizer.Tokenize(tokenizer.StripComments(chunk.Content), idx.tokOpts)
	docPos := len(idx.documents)

	idx.documents = append(idx.documents, document{ChunkID: id, Content: chunk.Content})
	idx.docMeta[id] = chunk.Meta()
	idx.docIndex[id] = docPos
	idx.docLen = append(idx.docLen, len(terms))

	n := float64(len(idx.documents))
	idx.avgDL = ((idx.avgDL * (n - 1)) + float64(len(terms))) / n

	freq := make(map[string]int)
	for _, t := range terms {
		freq[t]++
	}
	for term, f := range freq {
		idx.vocab[term] = true
		idx.postings[term] = append(idx.postings[term], posting{DocIndex: docPos, TermFreq: f})
	}
}

// Result is one scored document returned by Search.
type Result struct {
	ChunkID string
	Score   float64
	Meta    ragtypes.ChunkMeta
}

// Search tokenizes query with the index's tokenizer options and returns
// the top-k documents by descending BM25 score, ties broken by smaller
// doc index (insertion order). At most min(k, N) results are returned,
// and no negative score is ever returned (spec §4.D).
func (idx *Index) Search(query string, k int) []Result {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	n := len(idx.documents)
	if n == 0 || k <= 0 {
		return nil
	}

	terms := tokenizer.Tokenize(tokenizer.StripComments(query), idx.tokOpts)
	seen := make(map[string]bool)
	scores := make(map[int]float64)

	for _, term := range terms {
		if seen[term] {
			continue
		}
		seen[term] = true

		posts, ok := idx.postings[term]
		if !ok {
			continue
		}
		nt := float64(len(posts))
		idf := math.Log(1 + (float64(n)-nt+0.5)/(nt+0.5) + idx.epsilon)

		for _, p := range posts {
			dl := float64(idx.docLen[p.DocIndex])
			f := float64(p.TermFreq)
			denom := f + idx.k1*(1-idx.b+idx.b*dl/idx.avgDL)
			score := idf * (f * (idx.k1 + 1)) / denom
			scores[p.DocIndex] += score
		}
	}

	type scored struct {
		docIndex int
		score    float64
	}
	ranked := make([]scored, 0, len(scores))
	for docIdx, s := range scores {
		if s < 0 {
			s = 0
		}
		ranked = append(ranked, scored{docIndex: docIdx, score: s})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].docIndex < ranked[j].docIndex
	})

	if k > len(ranked) {
		k = len(ranked)
	}
	out := make([]Result, 0, k)
	for _, r := range ranked[:k] {
		doc := idx.documents[r.docIndex]
		out = append(out, Result{ChunkID: doc.ChunkID, Score: r.score, Meta: idx.docMeta[doc.ChunkID]})
	}
	return out
}

// Save persists the index to <dir>/<name> as a JSON snapshot, written via
// temp-file-then-rename so readers never see a partial write.
func (idx *Index) Save(dir, name string) error {
	idx.mu.RLock()
	snap := snapshot{
		K1: idx.k1, B: idx.b, Epsilon: idx.epsilon,
		TokenizerOpts: idx.tokOpts,
		Documents:     idx.documents,
		DocMeta:       idx.docMeta,
		DocLen:        idx.docLen,
		AvgDL:         idx.avgDL,
		Postings:      idx.postings,
	}
	idx.mu.RUnlock()

	data, err := json.Marshal(snap)
	if err != nil {
		return ragerr.Wrap(ragerr.ErrIo, "marshaling bm25 snapshot", err)
	}

	path := filepath.Join(dir, name)
	if err := ragdata.AtomicWrite(path, data); err != nil {
		return err
	}
	log.Info().Str("path", path).Int("documents", len(snap.Documents)).Msg("bm25 index saved")
	return nil
}

// Load reconstructs an Index from a JSON snapshot written by Save. A
// missing or unreadable file returns ErrIo wrapping the os error, and an
// unparseable or inconsistent one returns ErrCorrupt, so callers can
// distinguish "absent" from "corrupt".
func Load(path string) (*Index, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, ragerr.Wrap(ragerr.ErrIo, "reading bm25 snapshot", err)
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, ragerr.Wrap(ragerr.ErrCorrupt, "parsing bm25 snapshot", err)
	}

	idx := &Index{
		k1: snap.K1, b: snap.B, epsilon: snap.Epsilon,
		tokOpts:   snap.TokenizerOpts,
		documents: snap.Documents,
		docMeta:   snap.DocMeta,
		docLen:    snap.DocLen,
		avgDL:     snap.AvgDL,
		postings:  snap.Postings,
		docIndex:  make(map[string]int, len(snap.Documents)),
		vocab:     make(map[string]bool, len(snap.Postings)),
	}
	if idx.docMeta == nil {
		idx.docMeta = make(map[string]ragtypes.ChunkMeta)
	}
	if idx.postings == nil {
		idx.postings = make(map[string][]posting)
	}
	for i, d := range idx.documents {
		idx.docIndex[d.ChunkID] = i
	}
	for term := range idx.postings {
		idx.vocab[term] = true
	}

	if len(idx.documents) != len(idx.docLen) {
		return nil, ragerr.Wrap(ragerr.ErrCorrupt, "bm25 snapshot inconsistent", nil)
	}
	return idx, nil
}
