package integration

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"
	"unicode"

	"github.com/valter-silva-au/workpulse/internal/core"
	"github.com/valter-silva-au/workpulse/pkg/models"
	"github.com/zeebo/blake3"
)

// NewEmbedder builds the embedder selected by cfg.Provider.
func NewEmbedder(cfg models.EmbeddingConfig) (core.Embedder, error) {
	switch cfg.Provider {
	case "", "hash":
		return NewHashEmbedder(cfg.Dimension), nil
	case "http":
		if cfg.BaseURL == "" {
			return nil, fmt.Errorf("embedding.base_url is required for the http provider")
		}
		return NewHTTPEmbedder(cfg), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}
}

// HashEmbedder is an offline embedder using feature hashing: every token
// and every character bigram of a token is hashed with BLAKE3 into one of
// Dimension buckets with a hash-derived sign, and the result is
// L2-normalized. Equal texts always map to equal vectors.
type HashEmbedder struct {
	dim int
}

// NewHashEmbedder creates a HashEmbedder. Non-positive dimensions use 256.
func NewHashEmbedder(dim int) *HashEmbedder {
	if dim <= 0 {
		dim = 256
	}
	return &HashEmbedder{dim: dim}
}

func (h *HashEmbedder) Dimension() int { return h.dim }
func (h *HashEmbedder) Model() string  { return fmt.Sprintf("blake3-hash-%d", h.dim) }

// Embed implements core.Embedder.
func (h *HashEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, h.dim)
	for _, feature := range hashFeatures(text) {
		sum := blake3.Sum256([]byte(feature))
		idx := binary.LittleEndian.Uint64(sum[:8]) % uint64(h.dim)
		if sum[8]&1 == 0 {
			vec[idx]++
		} else {
			vec[idx]--
		}
	}
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm > 0 {
		scale := float32(1 / math.Sqrt(norm))
		for i := range vec {
			vec[i] *= scale
		}
	}
	return vec, nil
}

// hashFeatures splits text into lowercase tokens plus the rune bigrams of
// tokens longer than one rune.
func hashFeatures(text string) []string {
	tokens := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := make([]string, 0, len(tokens)*3)
	for _, tok := range tokens {
		out = append(out, "t:"+tok)
		runes := []rune(tok)
		for i := 0; i+1 < len(runes); i++ {
			out = append(out, "b:"+string(runes[i:i+2]))
		}
	}
	return out
}

// HTTPEmbedder calls an OpenAI-compatible /embeddings endpoint.
type HTTPEmbedder struct {
	endpoint string
	model    string
	apiKey   string
	dim      int
	http     *http.Client
}

// NewHTTPEmbedder creates an HTTPEmbedder from cfg.
func NewHTTPEmbedder(cfg models.EmbeddingConfig) *HTTPEmbedder {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPEmbedder{
		endpoint: normalizeBaseURL(cfg.BaseURL) + "/embeddings",
		model:    cfg.Model,
		apiKey:   cfg.APIKey,
		dim:      cfg.Dimension,
		http:     newHTTPClient(timeout),
	}
}

func (e *HTTPEmbedder) Dimension() int { return e.dim }
func (e *HTTPEmbedder) Model() string  { return e.model }

type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// Embed implements core.Embedder. A vector of the wrong size is an error.
func (e *HTTPEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	payload, err := json.Marshal(map[string]any{"model": e.model, "input": text})
	if err != nil {
		return nil, fmt.Errorf("encoding embedding request: %w", err)
	}
	var decoded embeddingResponse
	if err := postJSON(ctx, e.http, e.endpoint, e.apiKey, payload, &decoded); err != nil {
		return nil, fmt.Errorf("embedding with %s: %w", e.model, err)
	}
	if len(decoded.Data) == 0 {
		return nil, fmt.Errorf("embedding with %s: response has no data", e.model)
	}
	vec := decoded.Data[0].Embedding
	if e.dim > 0 && len(vec) != e.dim {
		return nil, fmt.Errorf("embedding with %s: got %d dimensions, want %d", e.model, len(vec), e.dim)
	}
	return vec, nil
}
