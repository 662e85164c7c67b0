// Package vectorindex is an append-only, exact L2 nearest-neighbor store
// over fixed-dimension vectors (spec §4.F). Approximate search (HNSW,
// IVF, ...) is an explicit Non-goal of spec.md; every search scans the
// full store.
package vectorindex

import (
	"encoding/binary"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/emirbartu/terminal-helper/internal/ragdata"
	"github.com/emirbartu/terminal-helper/internal/ragerr"
	"github.com/emirbartu/terminal-helper/internal/ragtypes"
	"github.com/rs/zerolog/log"
)

// padValue replaces non-finite values and pads short vectors (spec §4.E
// step 1-2, reused here for vectors that reach the index directly).
const padValue = 0.1

// statsOverheadPerVector is the per-vector memory-usage constant for stats() (spec §4.F).
const statsOverheadPerVector = 200

// Index is an append-only store of equal-length float32 vectors.
type Index struct {
	mu sync.RWMutex

	dim      int
	vectors  []float32 // flat buffer, size*dim
	idToMeta map[uint32]ragtypes.ChunkMeta
	order    []uint32 // insertion order, for deterministic iteration
}

// New creates an empty Index locked to dimension dim.
func New(dim int) *Index {
	return &Index{dim: dim, idToMeta: make(map[uint32]ragtypes.ChunkMeta)}
}

// Dim returns the index's fixed dimension.
func (idx *Index) Dim() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.dim
}

// Size returns the number of stored vectors.
func (idx *Index) Size() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.order)
}

// Record is one vector plus its chunk metadata to add.
type Record struct {
	Vector []float32
	Meta   ragtypes.ChunkMeta
}

// sanitize replaces NaN/±Inf with padValue, and pads or truncates v to
// the index's fixed dimension (spec §4.E step 1-2, reused for §4.F's own
// "validate dimension and finiteness" rule).
func (idx *Index) sanitize(v []float32) []float32 {
	out := make([]float32, idx.dim)
	for i := 0; i < idx.dim; i++ {
		var x float32
		if i < len(v) {
			x = v[i]
		} else {
			x = padValue
		}
		if math.IsNaN(float64(x)) || math.IsInf(float64(x), 0) {
			x = padValue
		}
		out[i] = x
	}
	return out
}

// Add appends records to the index in order, assigning dense,
// insertion-ordered vector ids. Spec §4.F says the vector index
// validates dimension/finiteness and skips invalid entries; since this
// engine always routes vectors through the Embedding Client's own
// pad/truncate/sanitize step first (spec §4.E), Add performs the same
// sanitization defensively rather than rejecting a record outright.
func (idx *Index) Add(records []Record) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	for _, r := range records {
		vec := idx.sanitize(r.Vector)
		id := uint32(len(idx.order))
		idx.vectors = append(idx.vectors, vec...)
		idx.idToMeta[id] = r.Meta
		idx.order = append(idx.order, id)
	}
}

// Result is one scored vector returned by Search.
type Result struct {
	VectorID uint32
	Score    float64
	Meta     ragtypes.ChunkMeta
}

// Search returns the min(k, size) nearest vectors to query by L2
// distance, converted to a similarity score via max(0, 1 - d/100), tied
// by smaller vector id (spec §4.F).
func (idx *Index) Search(query []float32, k int) []Result {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	size := len(idx.order)
	if size == 0 || k <= 0 {
		return nil
	}

	q := idx.sanitize(query)

	type scored struct {
		id   uint32
		dist float64
	}
	all := make([]scored, size)
	for i, id := range idx.order {
		offset := i * idx.dim
		var d float64
		for j := 0; j < idx.dim; j++ {
			diff := float64(idx.vectors[offset+j]) - float64(q[j])
			d += diff * diff
		}
		all[i] = scored{id: id, dist: d}
	}

	sort.Slice(all, func(i, j int) bool {
		if all[i].dist != all[j].dist {
			return all[i].dist < all[j].dist
		}
		return all[i].id < all[j].id
	})

	if k > size {
		k = size
	}
	out := make([]Result, 0, k)
	for _, s := range all[:k] {
		score := 1 - s.dist/100
		if score < 0 {
			score = 0
		}
		out = append(out, Result{VectorID: s.id, Score: score, Meta: idx.idToMeta[s.id]})
	}
	return out
}

// Stats reports the index's size, dimension, distinct file count, and an
// approximate memory footprint (spec §4.F).
type Stats struct {
	VectorCount int
	Dimension   int
	FileCount   int
	MemoryUsage int64
}

// Stats computes the current Stats snapshot.
func (idx *Index) Stats() Stats {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	files := make(map[string]bool)
	for _, m := range idx.idToMeta {
		files[m.FilePath] = true
	}

	size := int64(len(idx.order))
	return Stats{
		VectorCount: len(idx.order),
		Dimension:   idx.dim,
		FileCount:   len(files),
		MemoryUsage: size*int64(idx.dim)*4 + size*statsOverheadPerVector,
	}
}

// metaEntry is one (id, meta) pair in the persisted metadata JSON.
type metaEntry struct {
	ID   uint32              `json:"id"`
	Meta ragtypes.ChunkMeta `json:"meta"`
}

// metadataFile is the JSON sidecar persisted alongside the binary vector
// payload (spec §6).
type metadataFile struct {
	Dimension int         `json:"dimension"`
	Size      int         `json:"size"`
	Metadata  []metaEntry `json:"metadata"`
}

// vectorFileName and metadataFileName are the fixed artifact names under
// <project_root>/.terminal_helper/rag-data/ (spec §6).
const vectorFileName = "code_vectors.bin"
const metadataFileName = "code_vectors.metadata.json"

// Save persists the vector payload as a flat little-endian float32
// buffer, and the id-to-metadata map as JSON, both via atomic replace.
// If the vector file cannot be written, the in-memory index is left
// untouched, a warning is logged, the error is returned, and the metadata
// file is not written, so the files of the last successful Save stay in
// place for a subsequent Load.
func (idx *Index) Save(dir string) error {
	idx.mu.RLock()
	vectorsCopy := make([]float32, len(idx.vectors))
	copy(vectorsCopy, idx.vectors)
	entries := make([]metaEntry, 0, len(idx.order))
	for _, id := range idx.order {
		entries = append(entries, metaEntry{ID: id, Meta: idx.idToMeta[id]})
	}
	meta := metadataFile{Dimension: idx.dim, Size: len(idx.order), Metadata: entries}
	idx.mu.RUnlock()

	buf := make([]byte, len(vectorsCopy)*4)
	for i, f := range vectorsCopy {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}

	vectorPath := filepath.Join(dir, vectorFileName)
	if err := ragdata.AtomicWrite(vectorPath, buf); err != nil {
		log.Warn().Err(err).Str("path", vectorPath).Msg("failed to write vector payload; in-memory index left intact")
		return err
	}

	metaData, err := json.Marshal(meta)
	if err != nil {
		return ragerr.Wrap(ragerr.ErrIo, "marshaling vector metadata", err)
	}
	metaPath := filepath.Join(dir, metadataFileName)
	if err := ragdata.AtomicWrite(metaPath, metaData); err != nil {
		return err
	}

	log.Info().Str("dir", dir).Int("size", meta.Size).Int("dimension", meta.Dimension).Msg("vector index saved")
	return nil
}

// Load reconstructs an Index from dir's persisted files. If the vector
// file is missing but the metadata is present, Load returns an empty
// index at the recorded dimension (spec §4.F).
func Load(dir string) (*Index, error) {
	metaPath := filepath.Join(dir, metadataFileName)
	metaData, err := os.ReadFile(metaPath)
	if err != nil {
		return nil, ragerr.Wrap(ragerr.ErrIo, "reading vector metadata", err)
	}

	var meta metadataFile
	if err := json.Unmarshal(metaData, &meta); err != nil {
		return nil, ragerr.Wrap(ragerr.ErrCorrupt, "parsing vector metadata", err)
	}

	idx := New(meta.Dimension)

	vectorPath := filepath.Join(dir, vectorFileName)
	raw, err := os.ReadFile(vectorPath)
	if err != nil {
		if os.IsNotExist(err) {
			return idx, nil
		}
		return nil, ragerr.Wrap(ragerr.ErrIo, "reading vector payload", err)
	}

	expected := meta.Size * meta.Dimension * 4
	if len(raw) != expected {
		return nil, ragerr.Wrap(ragerr.ErrCorrupt, "vector payload size mismatch", nil)
	}

	vectors := make([]float32, meta.Size*meta.Dimension)
	for i := range vectors {
		vectors[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
	}

	idToMeta := make(map[uint32]ragtypes.ChunkMeta, len(meta.Metadata))
	order := make([]uint32, 0, len(meta.Metadata))
	for _, e := range meta.Metadata {
		idToMeta[e.ID] = e.Meta
		order = append(order, e.ID)
	}

	idx.vectors = vectors
	idx.idToMeta = idToMeta
	idx.order = order
	return idx, nil
}
