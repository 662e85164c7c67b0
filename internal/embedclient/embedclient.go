// Package embedclient calls the out-of-process embedder over HTTP JSON
// (spec §4.E): POST /embed {"text":...} -> {"embedding":[...]}, with a
// 30s timeout, one retry, and dimension pad/truncate plus non-finite
// sanitization. An in-process LRU (maypok86/otter, the same cache
// project-cortex uses for its graph file cache) skips a redundant round
// trip when the same chunk or query text is embedded twice within a
// batch or a hot query loop.
package embedclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/emirbartu/terminal-helper/internal/config"
	"github.com/emirbartu/terminal-helper/internal/ragerr"
	"github.com/maypok86/otter"
	"github.com/rs/zerolog/log"
)

// padValue replaces non-finite values and pads a short response (spec §4.E).
const padValue = 0.1

// cacheCapacity bounds the embedding LRU; each entry is at most a few KB
// (dim * 4 bytes), so this stays well under a few hundred MB.
const cacheCapacity = 4096

// Client embeds text by calling an external HTTP embedder.
type Client struct {
	endpoint string
	dim      int
	timeout  time.Duration
	http     *http.Client
	cache    otter.Cache[string, []float32]
}

// New creates a Client from the engine's embedder configuration.
func New(cfg config.EmbedderConfig) (*Client, error) {
	timeout := time.Duration(cfg.TimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	cache, err := otter.MustBuilder[string, []float32](cacheCapacity).Build()
	if err != nil {
		return nil, fmt.Errorf("creating embedding cache: %w", err)
	}

	return &Client{
		endpoint: cfg.Endpoint,
		dim:      cfg.Dimension,
		timeout:  timeout,
		http:     &http.Client{Timeout: timeout},
		cache:    cache,
	}, nil
}

// Dimension returns the fixed embedding dimension this client produces.
func (c *Client) Dimension() int {
	return c.dim
}

type embedRequest struct {
	Text string `json:"text"`
}

type embedResponse struct {
	Embedding []float64 `json:"embedding"`
}

// Embed calls the embedder for text, retrying once on failure, then
// pads/truncates and sanitizes the result to the client's fixed
// dimension (spec §4.E). Failure propagates as ragerr.ErrEmbedder only
// after the retried call also fails.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	if cached, ok := c.cache.Get(text); ok {
		return cached, nil
	}

	vec, err := c.embedOnce(ctx, text)
	if err != nil {
		log.Warn().Err(err).Msg("embed request failed, retrying once")
		vec, err = c.embedOnce(ctx, text)
		if err != nil {
			return nil, ragerr.Wrap(ragerr.ErrEmbedder, "embedding request failed after retry", err)
		}
	}

	out := c.sanitize(vec)
	c.cache.Set(text, out)
	return out, nil
}

func (c *Client) embedOnce(ctx context.Context, text string) ([]float64, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(embedRequest{Text: text})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/embed", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("embedder returned status %d", resp.StatusCode)
	}

	var out embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decoding embedder response: %w", err)
	}
	return out.Embedding, nil
}

// sanitize pads or truncates v to dim (step 1), replaces non-finite
// values with padValue (step 2), and logs once when a mismatch was
// observed (spec §4.E, SPEC_FULL "dimension padding telemetry").
func (c *Client) sanitize(v []float64) []float32 {
	if len(v) != c.dim {
		log.Warn().Int("expected", c.dim).Int("got", len(v)).Msg("embedder response dimension mismatch, padding/truncating")
	}

	out := make([]float32, c.dim)
	for i := 0; i < c.dim; i++ {
		var x float64
		if i < len(v) {
			x = v[i]
		} else {
			x = padValue
		}
		if math.IsNaN(x) || math.IsInf(x, 0) {
			x = padValue
		}
		out[i] = float32(x)
	}
	return out
}

// Health reports whether the embedder is responding (spec §6: GET /health).
func (c *Client) Health(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}
