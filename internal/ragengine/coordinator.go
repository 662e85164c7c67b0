// Package ragengine ties the File Walker, Chunker, BM25 index, vector
// index, Embedding Client, Query Expander, and Hybrid Fuser into the four
// entry points collaborators call: init, index a project, index one file,
// and retrieve relevant files for an error log (spec §4.I).
package ragengine

import (
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/emirbartu/terminal-helper/internal/bm25"
	"github.com/emirbartu/terminal-helper/internal/chunker"
	"github.com/emirbartu/terminal-helper/internal/config"
	"github.com/emirbartu/terminal-helper/internal/embedclient"
	"github.com/emirbartu/terminal-helper/internal/ragdata"
	"github.com/emirbartu/terminal-helper/internal/ragerr"
	"github.com/emirbartu/terminal-helper/internal/ragtypes"
	"github.com/emirbartu/terminal-helper/internal/vectorindex"
	"github.com/emirbartu/terminal-helper/internal/walker"
)

const (
	bm25SnapshotName = "code_bm25.json"

	// autoIndexMaxFiles and autoIndexBatchSize are the limits
	// retrieve_relevant_files uses when it must index a project that has
	// never been indexed (spec §4.I).
	autoIndexMaxFiles  = 100
	autoIndexBatchSize = 10
)

// Coordinator owns one project's BM25 index, vector index, and embedder,
// and serializes mutation against queries at the index level (spec §5).
type Coordinator struct {
	root string
	cfg  *config.RAGConfig

	walk     *walker.Walker
	chunk    *chunker.Chunker
	embedder *embedclient.Client

	// mu guards swapping bm25Idx/vecIdx wholesale (Init, ForceReindex);
	// the indices themselves have their own internal locking for
	// concurrent Search/Add.
	mu      sync.RWMutex
	bm25Idx *bm25.Index
	vecIdx  *vectorindex.Index
}

// IndexingResult is what index_codebase returns (spec §4.I).
type IndexingResult struct {
	FileCount   int
	ChunkCount  int
	VectorStats vectorindex.Stats
	BM25Count   int
}

// RetrieveResult is what retrieve_relevant_files returns (spec §4.I).
type RetrieveResult struct {
	Results        []ragtypes.SearchResult
	GroupedResults []ragtypes.FileGroup
	RootCauseFile  *ragtypes.SearchResult
}

// IndexOptions configures one index_codebase call. Exclude patterns are
// fixed at Coordinator construction (cfg.Walk.ExcludeGlobs); these options
// only bound this call's scope.
type IndexOptions struct {
	MaxFiles     int
	BatchSize    int
	ForceReindex bool
}

// RetrieveOptions configures one retrieve_relevant_files call.
type RetrieveOptions struct {
	K int
}

// New constructs a Coordinator for a project root without touching disk.
// Call Init to load or create the on-disk state.
func New(projectRoot string, cfg *config.RAGConfig) (*Coordinator, error) {
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}

	w, err := walker.New(projectRoot, cfg.Walk.ExcludeGlobs)
	if err != nil {
		return nil, ragerr.Wrap(ragerr.ErrIo, "creating file walker", err)
	}

	embedder, err := embedclient.New(cfg.Embedder)
	if err != nil {
		return nil, fmt.Errorf("creating embedder client: %w", err)
	}

	return &Coordinator{
		root:     projectRoot,
		cfg:      cfg,
		walk:     w,
		chunk:    chunker.New(cfg.Chunking),
		embedder: embedder,
	}, nil
}

// Init creates <project_root>/.terminal_helper/rag-data/ if missing, and
// loads code_vectors.* and code_bm25.json if present, else constructs
// empty indices (spec §4.I init_rag). A corrupt snapshot bubbles up as
// ragerr.ErrCorrupt; the caller decides whether to discard and rebuild.
func (c *Coordinator) Init() error {
	dir, err := ragdata.EnsureDir(c.root)
	if err != nil {
		return err
	}

	bm25Path := filepath.Join(dir, bm25SnapshotName)
	bmIdx, err := bm25.Load(bm25Path)
	if err != nil {
		if errors.Is(err, ragerr.ErrIo) {
			bmIdx = bm25.New(c.cfg.BM25, c.cfg.Tokenizer)
		} else {
			return err
		}
	}

	vecIdx, err := vectorindex.Load(dir)
	if err != nil {
		if errors.Is(err, ragerr.ErrIo) {
			vecIdx = vectorindex.New(c.cfg.Embedder.Dimension)
		} else {
			return err
		}
	}

	c.mu.Lock()
	c.bm25Idx = bmIdx
	c.vecIdx = vecIdx
	c.mu.Unlock()
	return nil
}

func (c *Coordinator) indices() (*bm25.Index, *vectorindex.Index) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.bm25Idx, c.vecIdx
}
