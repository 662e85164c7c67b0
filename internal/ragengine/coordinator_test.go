package ragengine

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/emirbartu/terminal-helper/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeEmbedderServer responds to /health and /embed with a deterministic,
// text-length-derived vector so tests can assert on shape without caring
// about actual semantic content.
func fakeEmbedderServer(t *testing.T, dim int) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/embed", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Text string `json:"text"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		vec := make([]float64, dim)
		for i := range vec {
			vec[i] = float64(len(req.Text)%7) / 10
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"embedding": vec})
	})
	return httptest.NewServer(mux)
}

func newTestCoordinator(t *testing.T, dim int) (*Coordinator, string) {
	t.Helper()
	root := t.TempDir()
	srv := fakeEmbedderServer(t, dim)
	t.Cleanup(srv.Close)

	cfg := config.Default()
	cfg.Embedder.Endpoint = srv.URL
	cfg.Embedder.Dimension = dim
	cfg.Walk.MaxFiles = 100
	cfg.Walk.BatchSize = 5
	cfg.Chunking = config.ChunkingConfig{TargetLines: 10, OverlapLines: 2, MaxChars: 2000}

	c, err := New(root, cfg)
	require.NoError(t, err)
	require.NoError(t, c.Init())
	return c, root
}

func writeSourceFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestIndexCodebase_IndexesDiscoveredFiles(t *testing.T) {
	c, root := newTestCoordinator(t, 4)
	writeSourceFile(t, root, "main.go", "package main\n\nfunc main() {\n\tprintln(\"hi\")\n}\n")
	writeSourceFile(t, root, "util.go", "package main\n\nfunc add(a, b int) int {\n\treturn a + b\n}\n")

	result, err := c.IndexCodebase(context.Background(), IndexOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, result.FileCount)
	assert.Greater(t, result.ChunkCount, 0)
	assert.Equal(t, result.ChunkCount, result.BM25Count)
	assert.Equal(t, result.ChunkCount, result.VectorStats.VectorCount)
}

func TestIndexCodebase_PersistsAcrossReload(t *testing.T) {
	c, root := newTestCoordinator(t, 4)
	writeSourceFile(t, root, "a.go", "package main\n\nfunc a() {}\n")

	_, err := c.IndexCodebase(context.Background(), IndexOptions{})
	require.NoError(t, err)

	reloaded, err := New(root, c.cfg)
	require.NoError(t, err)
	require.NoError(t, reloaded.Init())

	stats := reloaded.RagStats()
	assert.Equal(t, c.RagStats().BM25Count, stats.BM25Count)
}

func TestIndexSingleFile_AddsOneFilesChunks(t *testing.T) {
	c, root := newTestCoordinator(t, 4)
	writeSourceFile(t, root, "only.go", "package main\n\nfunc only() {}\n")

	n, err := c.IndexSingleFile(context.Background(), filepath.Join(root, "only.go"))
	require.NoError(t, err)
	assert.Greater(t, n, 0)
	assert.Equal(t, n, c.RagStats().BM25Count)
}

func TestRetrieveRelevantFiles_AutoIndexesWhenEmpty(t *testing.T) {
	c, root := newTestCoordinator(t, 4)
	writeSourceFile(t, root, "router.go", "package main\n\nfunc dispatch() {\n\tpanic(\"boom\")\n}\n")

	result, err := c.RetrieveRelevantFiles(context.Background(), "panic in dispatch", RetrieveOptions{})
	require.NoError(t, err)
	assert.NotEmpty(t, result.Results)
}

func TestRetrieveRelevantFiles_EmptyProjectReturnsEmptyResult(t *testing.T) {
	c, _ := newTestCoordinator(t, 4)
	result, err := c.RetrieveRelevantFiles(context.Background(), "anything", RetrieveOptions{})
	require.NoError(t, err)
	assert.Empty(t, result.Results)
	assert.Nil(t, result.RootCauseFile)
}

func TestIndexCodebase_CancelledContextAbortsWithoutSaving(t *testing.T) {
	c, root := newTestCoordinator(t, 4)
	writeSourceFile(t, root, "a.go", "package main\n\nfunc a() {}\n")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.IndexCodebase(ctx, IndexOptions{})
	require.Error(t, err)
	assert.Equal(t, 0, c.RagStats().BM25Count)
}

func TestRagStats_ReportsHybridConfig(t *testing.T) {
	c, _ := newTestCoordinator(t, 4)
	stats := c.RagStats()
	assert.Equal(t, c.cfg.Hybrid.DefaultK, stats.HybridConfig.DefaultK)
}
