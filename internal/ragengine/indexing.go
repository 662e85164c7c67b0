package ragengine

import (
	"context"
	"os"

	"github.com/emirbartu/terminal-helper/internal/bm25"
	"github.com/emirbartu/terminal-helper/internal/chunker"
	"github.com/emirbartu/terminal-helper/internal/ragdata"
	"github.com/emirbartu/terminal-helper/internal/ragerr"
	"github.com/emirbartu/terminal-helper/internal/ragtypes"
	"github.com/emirbartu/terminal-helper/internal/vectorindex"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// IndexCodebase walks project_root, chunks every discovered file, embeds
// and inserts chunks in batches, and saves both indices once all batches
// complete (spec §4.I index_codebase). A batch's embedding calls run
// concurrently; the index writes for that batch are serialized. A file
// that cannot be read or chunked is logged and skipped; a batch where
// every chunk's embedding call fails aborts the whole run with
// ragerr.ErrEmbedder. Cancelling ctx finishes the in-flight batch and
// returns ragerr.ErrCancelled without saving.
func (c *Coordinator) IndexCodebase(ctx context.Context, opts IndexOptions) (IndexingResult, error) {
	maxFiles := opts.MaxFiles
	if maxFiles <= 0 {
		maxFiles = c.cfg.Walk.MaxFiles
	}
	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = c.cfg.Walk.BatchSize
	}

	files, err := c.walk.Walk()
	if err != nil {
		return IndexingResult{}, ragerr.Wrap(ragerr.ErrIo, "walking project", err)
	}
	if len(files) > maxFiles {
		files = files[:maxFiles]
	}

	bmIdx, vecIdx := c.indices()
	if bmIdx == nil || vecIdx == nil {
		return IndexingResult{}, ragerr.Wrap(ragerr.ErrConfig, "index_codebase called before Init", nil)
	}

	if opts.ForceReindex {
		bmIdx = bm25.New(c.cfg.BM25, c.cfg.Tokenizer)
		vecIdx = vectorindex.New(c.cfg.Embedder.Dimension)
		c.mu.Lock()
		c.bm25Idx = bmIdx
		c.vecIdx = vecIdx
		c.mu.Unlock()
	}

	fileCount := 0
	chunkCount := 0

	for start := 0; start < len(files); start += batchSize {
		if err := ctx.Err(); err != nil {
			return IndexingResult{}, ragerr.Wrap(ragerr.ErrCancelled, "index_codebase cancelled", err)
		}

		end := start + batchSize
		if end > len(files) {
			end = len(files)
		}
		batch := files[start:end]

		chunks := c.chunkBatch(batch)
		fileCount += len(batch)
		chunkCount += len(chunks)
		if len(chunks) == 0 {
			continue
		}

		// The batch's embedding calls are not tied to ctx's cancellation, so
		// a cancel observed mid-batch lets the batch finish.
		records, embedErr := c.embedBatch(context.WithoutCancel(ctx), chunks)
		if embedErr != nil {
			return IndexingResult{}, embedErr
		}

		bmIdx.AddBatch(chunks)
		vecIdx.Add(records)
	}

	if err := ctx.Err(); err != nil {
		return IndexingResult{}, ragerr.Wrap(ragerr.ErrCancelled, "index_codebase cancelled before save", err)
	}

	if err := c.saveIndices(bmIdx, vecIdx); err != nil {
		return IndexingResult{}, err
	}

	log.Info().Int("files", fileCount).Int("chunks", chunkCount).Msg("index_codebase complete")
	return IndexingResult{
		FileCount:   fileCount,
		ChunkCount:  chunkCount,
		VectorStats: vecIdx.Stats(),
		BM25Count:   bmIdx.N(),
	}, nil
}

// IndexSingleFile re-chunks and re-embeds one file's current contents and
// adds them to the already-loaded indices, saving afterward (SPEC_FULL.md
// "supplemented features": a narrower entry point than a full
// index_codebase re-walk for editor-driven single-file reindexing).
// Chunks already indexed for the file are not removed first: the BM25
// index keeps any chunk id it already holds unchanged, and the vector
// index appends a new record for every chunk, including ids it already
// holds.
func (c *Coordinator) IndexSingleFile(ctx context.Context, path string) (int, error) {
	bmIdx, vecIdx := c.indices()
	if bmIdx == nil || vecIdx == nil {
		return 0, ragerr.Wrap(ragerr.ErrConfig, "index_single_file called before Init", nil)
	}

	chunks := c.chunkBatch([]string{path})
	if len(chunks) == 0 {
		return 0, nil
	}

	records, err := c.embedBatch(ctx, chunks)
	if err != nil {
		return 0, err
	}

	bmIdx.AddBatch(chunks)
	vecIdx.Add(records)

	if err := c.saveIndices(bmIdx, vecIdx); err != nil {
		return 0, err
	}
	return len(chunks), nil
}

// chunkBatch reads and chunks each file. Unreadable files are logged and
// skipped (spec §7: per-file Io errors are logged and the run continues);
// binary and empty files are skipped without logging.
func (c *Coordinator) chunkBatch(files []string) []ragtypes.Chunk {
	var chunks []ragtypes.Chunk
	for _, path := range files {
		content, err := os.ReadFile(path)
		if err != nil {
			log.Warn().Str("path", path).Err(err).Msg("skipping unreadable file")
			continue
		}
		if chunker.IsBinary(content) {
			continue
		}
		chunks = append(chunks, c.chunk.Chunk(path, string(content))...)
	}
	return chunks
}

// embedBatch embeds every chunk concurrently. A chunk whose embedding
// fails is dropped from the batch and logged; if every chunk in a
// non-empty batch fails, the batch aborts with ragerr.ErrEmbedder (spec
// §7).
func (c *Coordinator) embedBatch(ctx context.Context, chunks []ragtypes.Chunk) ([]vectorindex.Record, error) {
	records := make([]vectorindex.Record, len(chunks))
	failed := make([]bool, len(chunks))

	g, gctx := errgroup.WithContext(ctx)
	for i, chunk := range chunks {
		i, chunk := i, chunk
		g.Go(func() error {
			vec, err := c.embedder.Embed(gctx, chunk.Content)
			if err != nil {
				log.Warn().Str("chunk", chunk.ID()).Err(err).Msg("embedding chunk failed, skipping")
				failed[i] = true
				return nil
			}
			records[i] = vectorindex.Record{Vector: vec, Meta: chunk.Meta()}
			return nil
		})
	}
	_ = g.Wait()

	out := make([]vectorindex.Record, 0, len(chunks))
	allFailed := len(chunks) > 0
	for i, f := range failed {
		if f {
			continue
		}
		allFailed = false
		out = append(out, records[i])
	}
	if allFailed {
		files := make([]string, 0, len(chunks))
		for _, ch := range chunks {
			files = append(files, ch.FilePath)
		}
		log.Error().Strs("files", files).Msg("every chunk in batch failed to embed, abandoning batch")
		return nil, ragerr.Wrap(ragerr.ErrEmbedder, "every chunk in batch failed to embed", nil)
	}
	return out, nil
}

func (c *Coordinator) saveIndices(bmIdx *bm25.Index, vecIdx *vectorindex.Index) error {
	dir, err := ragdata.EnsureDir(c.root)
	if err != nil {
		return err
	}
	if err := bmIdx.Save(dir, bm25SnapshotName); err != nil {
		return err
	}
	if err := vecIdx.Save(dir); err != nil {
		return err
	}
	return nil
}
