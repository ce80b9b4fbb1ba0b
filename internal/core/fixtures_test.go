package core

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/valter-silva-au/workpulse/internal/storage"
	"github.com/valter-silva-au/workpulse/pkg/models"
)

// --- Helpers ---

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
	return path
}

func testSources() models.SourcesConfig {
	return models.SourcesConfig{
		Documents: models.SourceConfig{Collection: "Documents", IdentityKey: "author", DateField: "last_modified"},
		Emails:    models.SourceConfig{Collection: "Emails", IdentityKey: "sender", DateField: "date"},
		Code:      models.SourceConfig{Collection: "Git", IdentityKey: "author", DateField: "date"},
		Readmes:   models.SourceConfig{Collection: "Git README", IdentityKey: "repo_name"},
		Chat:      models.SourceConfig{Collection: "Teams", IdentityKey: "author", DateField: "date"},
		Plans:     models.SourceConfig{Collection: "WBS", IdentityKey: "assignee"},
		Reports:   models.SourceConfig{Collection: "Reports", IdentityKey: "subject_id", DateField: "period_start"},
	}
}

// fakeEmbedder maps text onto rune-bucket counts. Texts sharing characters
// end up close to each other, which is all the tests need.
type fakeEmbedder struct {
	dim int
	err error
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	v := make([]float32, f.dim)
	v[0] = 0.01
	for _, r := range text {
		v[int(r)%f.dim]++
	}
	return v, nil
}

func (f *fakeEmbedder) Dimension() int { return f.dim }
func (f *fakeEmbedder) Model() string  { return "fake" }

// countingStore wraps a store and counts mutating calls.
type countingStore struct {
	storage.VectorStore
	mu      sync.Mutex
	upserts int
	deletes int
}

func (c *countingStore) Upsert(ctx context.Context, collection string, recs []storage.Record) error {
	c.mu.Lock()
	c.upserts++
	c.mu.Unlock()
	return c.VectorStore.Upsert(ctx, collection, recs)
}

func (c *countingStore) Delete(ctx context.Context, collection string, f storage.Filter) (int, error) {
	c.mu.Lock()
	c.deletes++
	c.mu.Unlock()
	return c.VectorStore.Delete(ctx, collection, f)
}

func (c *countingStore) writes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.upserts + c.deletes
}

func newTestRetriever(t *testing.T, store storage.VectorStore) *Retriever {
	t.Helper()
	if store == nil {
		store = storage.NewMemStore()
	}
	r := NewRetriever(store, &fakeEmbedder{dim: 16}, RetrieverConfig{Sources: testSources(), PageSize: 2}, nil)
	if _, err := r.EnsureCollections(context.Background()); err != nil {
		t.Fatalf("EnsureCollections: %v", err)
	}
	return r
}

func seed(t *testing.T, r *Retriever, collection string, recs ...storage.Record) {
	t.Helper()
	for i := range recs {
		if recs[i].Vector == nil {
			text, _ := recs[i].Payload["page_content"].(string)
			vec, err := r.Embed(context.Background(), text)
			if err != nil {
				t.Fatalf("embedding seed record: %v", err)
			}
			recs[i].Vector = vec
		}
	}
	if err := r.Upsert(context.Background(), collection, recs); err != nil {
		t.Fatalf("seeding %s: %v", collection, err)
	}
}

func rec(id string, payload map[string]any) storage.Record {
	return storage.Record{ID: id, Payload: payload}
}

// stubJudge records prompts and answers with fn, or a fixed verdict.
type stubJudge struct {
	mu      sync.Mutex
	fn      func(req JudgeRequest) (map[string]any, error)
	prompts []JudgeRequest
}

func (s *stubJudge) Judge(_ context.Context, req JudgeRequest) (map[string]any, error) {
	s.mu.Lock()
	s.prompts = append(s.prompts, req)
	s.mu.Unlock()
	if s.fn != nil {
		return s.fn(req)
	}
	return map[string]any{"summary": "ok", "task": req.Task}, nil
}

func (s *stubJudge) requests() []JudgeRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]JudgeRequest(nil), s.prompts...)
}

// stubPlans serves a fixed plan slice or error.
type stubPlans struct {
	plan *models.PlanSlice
	err  error
}

func (s stubPlans) PlanFor(_ context.Context, projectID, assignee string) (*models.PlanSlice, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.plan, nil
}
