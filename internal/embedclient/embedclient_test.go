package embedclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/emirbartu/terminal-helper/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := config.EmbedderConfig{Endpoint: srv.URL, Dimension: 4, TimeoutSec: 2}
	c, err := New(cfg)
	require.NoError(t, err)
	return c
}

func TestEmbed_ReturnsVectorOfFixedDimension(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"embedding": []float64{1, 2, 3, 4}})
	})

	vec, err := c.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2, 3, 4}, vec)
}

func TestEmbed_PadsShortResponse(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"embedding": []float64{1, 2}})
	})

	vec, err := c.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2, 0.1, 0.1}, vec)
}

func TestEmbed_TruncatesLongResponse(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"embedding": []float64{1, 2, 3, 4, 5, 6}})
	})

	vec, err := c.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2, 3, 4}, vec)
}

func TestEmbed_LiteralNaNInResponseFails(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"embedding":[1,NaN,2,3]}`))
	})

	// NaN is not valid JSON; the embedder contract assumes a well-formed
	// numeric array, so a literal NaN in the body is a decode failure
	// that exhausts the retry and surfaces as ErrEmbedder.
	_, err := c.Embed(context.Background(), "hello")
	require.Error(t, err)
}

func TestEmbed_RetriesOnceThenFails(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := c.Embed(context.Background(), "hello")
	require.Error(t, err)
	assert.Equal(t, int32(2), calls)
}

func TestEmbed_RecoversAfterOneFailure(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		if n == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"embedding": []float64{1, 1, 1, 1}})
	})

	vec, err := c.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 1, 1, 1}, vec)
}

func TestEmbed_CachesRepeatedText(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		json.NewEncoder(w).Encode(map[string]any{"embedding": []float64{1, 2, 3, 4}})
	})

	_, err := c.Embed(context.Background(), "same text")
	require.NoError(t, err)
	_, err = c.Embed(context.Background(), "same text")
	require.NoError(t, err)

	assert.Equal(t, int32(1), calls)
}

func TestHealth_ReflectsServerStatus(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	})
	assert.True(t, c.Health(context.Background()))
}
