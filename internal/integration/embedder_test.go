package integration

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/valter-silva-au/workpulse/pkg/models"
)

func dot(a, b []float32) float64 {
	var s float64
	for i := range a {
		s += float64(a[i]) * float64(b[i])
	}
	return s
}

func TestHashEmbedder_DeterministicAndNormalized(t *testing.T) {
	e := NewHashEmbedder(64)
	ctx := context.Background()

	a, _ := e.Embed(ctx, "Architecture design overview")
	b, _ := e.Embed(ctx, "Architecture design overview")
	if len(a) != 64 || e.Dimension() != 64 {
		t.Fatalf("dimension = %d", len(a))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatal("same text produced different vectors")
		}
	}
	if n := math.Sqrt(dot(a, a)); math.Abs(n-1) > 1e-5 {
		t.Errorf("norm = %v, want 1", n)
	}
}

func TestHashEmbedder_SimilarTextsCloser(t *testing.T) {
	e := NewHashEmbedder(256)
	ctx := context.Background()
	q, _ := e.Embed(ctx, "아키텍처 문서")
	near, _ := e.Embed(ctx, "아키텍처 설계 문서")
	far, _ := e.Embed(ctx, "quarterly budget spreadsheet")
	if dot(q, near) <= dot(q, far) {
		t.Errorf("similar text not closer: near=%v far=%v", dot(q, near), dot(q, far))
	}
}

func TestHashEmbedder_EmptyText(t *testing.T) {
	v, err := NewHashEmbedder(8).Embed(context.Background(), "  ...  ")
	if err != nil {
		t.Fatal(err)
	}
	for _, x := range v {
		if x != 0 {
			t.Fatalf("empty text should embed to the zero vector, got %v", v)
		}
	}
}

func TestHTTPEmbedder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/embeddings" {
			t.Errorf("path = %s", r.URL.Path)
		}
		var req map[string]any
		_ = json.NewDecoder(r.Body).Decode(&req)
		dim := 3
		if req["input"] == "wrong" {
			dim = 2
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{{"embedding": make([]float32, dim)}},
		})
	}))
	defer srv.Close()

	e, err := NewEmbedder(models.EmbeddingConfig{Provider: "http", BaseURL: srv.URL, Model: "emb", Dimension: 3})
	if err != nil {
		t.Fatal(err)
	}
	v, err := e.Embed(context.Background(), "hello")
	if err != nil || len(v) != 3 {
		t.Fatalf("Embed = %v, %v", v, err)
	}
	if _, err := e.Embed(context.Background(), "wrong"); err == nil {
		t.Error("expected dimension mismatch error")
	}
}

func TestNewEmbedder_Errors(t *testing.T) {
	if _, err := NewEmbedder(models.EmbeddingConfig{Provider: "http"}); err == nil {
		t.Error("http provider without base_url should fail")
	}
	if _, err := NewEmbedder(models.EmbeddingConfig{Provider: "word2vec"}); err == nil {
		t.Error("unknown provider should fail")
	}
}
