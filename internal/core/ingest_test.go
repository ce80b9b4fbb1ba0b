package core

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/valter-silva-au/workpulse/internal/storage"
)

const planYAML = `project_id: P1
items:
  - task_id: "1.1"
    task_name: Architecture
    assignee: [Kim Minsu, Lee Jiwon]
    status: in_progress
    deliverables: [아키텍처 문서, design]
  - task_id: "1.2"
    task_name: Test plan
    assignee: Park
    deliverables: test plan
`

type recordingEvents struct {
	mu    sync.Mutex
	types []string
}

func (r *recordingEvents) LogEvent(eventType string, _ map[string]any) error {
	r.mu.Lock()
	r.types = append(r.types, eventType)
	r.mu.Unlock()
	return nil
}

func newIngestFixture(t *testing.T) (*countingStore, *Retriever, PlanIngester, *recordingEvents) {
	t.Helper()
	store := &countingStore{VectorStore: storage.NewMemStore()}
	r := newTestRetriever(t, store)
	events := &recordingEvents{}
	return store, r, NewPlanIngester(r, events, nil), events
}

func TestIngest_SecondRunIsNoop(t *testing.T) {
	store, r, ing, events := newIngestFixture(t)
	path := writeFile(t, t.TempDir(), "wbs.yaml", planYAML)
	ctx := context.Background()

	first, err := ing.Ingest(ctx, "", path)
	if err != nil {
		t.Fatalf("first ingest: %v", err)
	}
	if !first.OK || first.Skipped || first.Items != 2 || first.ProjectID != "P1" {
		t.Fatalf("first = %+v", first)
	}
	if first.Reason != RebuildNoMarker {
		t.Errorf("Reason = %q, want %q", first.Reason, RebuildNoMarker)
	}

	before := store.writes()
	second, err := ing.Ingest(ctx, "", path)
	if err != nil {
		t.Fatalf("second ingest: %v", err)
	}
	if !second.Skipped || !second.OK {
		t.Errorf("second = %+v, want skipped", second)
	}
	if got := store.writes() - before; got != 0 {
		t.Errorf("second ingest performed %d writes, want 0", got)
	}

	items, err := r.PlanItems(ctx, "P1")
	if err != nil || len(items) != 2 {
		t.Fatalf("PlanItems = %d, %v", len(items), err)
	}
	if got := strings.Join(events.types, ","); got != "plan.ingested,plan.skipped" {
		t.Errorf("events = %s", got)
	}
}

func TestIngest_ChangedFileRebuilds(t *testing.T) {
	_, r, ing, _ := newIngestFixture(t)
	dir := t.TempDir()
	path := writeFile(t, dir, "wbs.yaml", planYAML)
	ctx := context.Background()

	if _, err := ing.Ingest(ctx, "", path); err != nil {
		t.Fatal(err)
	}
	writeFile(t, dir, "wbs.yaml", `project_id: P1
items:
  - task_id: "2.1"
    task_name: Rollout
    assignee: Park
`)
	res, err := ing.Ingest(ctx, "", path)
	if err != nil {
		t.Fatal(err)
	}
	if res.Skipped || res.Reason != RebuildHashChanged || res.Items != 1 {
		t.Errorf("res = %+v", res)
	}
	items, _ := r.PlanItems(ctx, "P1")
	if len(items) != 1 || items[0].ID != "2.1" {
		t.Errorf("items after rebuild = %+v", items)
	}
}

func TestIngest_EmbeddingFailureKeepsStoredPlan(t *testing.T) {
	emb := &fakeEmbedder{dim: 16}
	r := NewRetriever(storage.NewMemStore(), emb, RetrieverConfig{Sources: testSources()}, nil)
	ctx := context.Background()
	if _, err := r.EnsureCollections(ctx); err != nil {
		t.Fatal(err)
	}
	ing := NewPlanIngester(r, nil, nil)
	dir := t.TempDir()
	path := writeFile(t, dir, "wbs.yaml", planYAML)
	if _, err := ing.Ingest(ctx, "", path); err != nil {
		t.Fatal(err)
	}

	writeFile(t, dir, "wbs.yaml", planYAML+`  - task_id: "1.3"
    task_name: Release notes
    assignee: Park
`)
	emb.err = errors.New("connection refused")
	res, err := ing.Ingest(ctx, "", path)
	if err == nil || res.OK {
		t.Fatalf("Ingest = %+v, %v; want failure", res, err)
	}

	items, err := r.PlanItems(ctx, "P1")
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 2 {
		t.Errorf("plan items after failed rebuild = %d, want the 2 previously stored", len(items))
	}
	m, _ := r.GetStoredContentHash(ctx, "WBS", "P1")
	if m == nil || !m.Complete || m.ItemCount != 2 {
		t.Errorf("marker = %+v, want the previous complete marker", m)
	}

	emb.err = nil
	res, err = ing.Ingest(ctx, "", path)
	if err != nil || res.Items != 3 || res.Reason != RebuildHashChanged {
		t.Errorf("retry = %+v, %v", res, err)
	}
}

func TestIngest_IncompleteMarkerForcesRebuild(t *testing.T) {
	_, r, ing, _ := newIngestFixture(t)
	path := writeFile(t, t.TempDir(), "wbs.yaml", planYAML)
	ctx := context.Background()

	hash, err := HashFile(path)
	if err != nil {
		t.Fatal(err)
	}
	// Simulate a crash between clear and rewrite.
	if err := r.ClearAndMark(ctx, "WBS", "P1", hash); err != nil {
		t.Fatal(err)
	}
	res, err := ing.Ingest(ctx, "P1", path)
	if err != nil {
		t.Fatal(err)
	}
	if res.Skipped || res.Reason != RebuildIncomplete {
		t.Errorf("res = %+v, want rebuild for incomplete marker", res)
	}
}

func TestIngest_MalformedFileKeepsStoredPlan(t *testing.T) {
	_, r, ing, _ := newIngestFixture(t)
	dir := t.TempDir()
	path := writeFile(t, dir, "wbs.yaml", planYAML)
	ctx := context.Background()
	if _, err := ing.Ingest(ctx, "", path); err != nil {
		t.Fatal(err)
	}

	writeFile(t, dir, "wbs.yaml", "items: [unclosed\n")
	if _, err := ing.Ingest(ctx, "P1", path); err == nil {
		t.Fatal("expected parse error")
	}
	items, _ := r.PlanItems(ctx, "P1")
	if len(items) != 2 {
		t.Errorf("stored plan has %d items after failed ingest, want 2", len(items))
	}
}

func TestIngest_RequiresProjectID(t *testing.T) {
	_, _, ing, _ := newIngestFixture(t)
	path := writeFile(t, t.TempDir(), "wbs.json", `[{"task_id": "1", "task_name": "x"}]`)
	if _, err := ing.Ingest(context.Background(), "", path); err == nil {
		t.Fatal("expected error without project id")
	}
}

func TestIngest_DuplicateIDsKeptApart(t *testing.T) {
	_, r, ing, _ := newIngestFixture(t)
	path := writeFile(t, t.TempDir(), "wbs.json", `[
		{"task_id": "1", "task_name": "first"},
		{"task_id": "1", "task_name": "second"},
		{"task_name": "no id"}
	]`)
	res, err := ing.Ingest(context.Background(), "P9", path)
	if err != nil {
		t.Fatal(err)
	}
	if res.Items != 3 {
		t.Errorf("Items = %d, want 3", res.Items)
	}
	n, _ := r.CountPlanItems(context.Background(), "WBS", "P9")
	if n != 3 {
		t.Errorf("stored %d items, want 3", n)
	}
}

func TestPlanLookup_FiltersByAssignee(t *testing.T) {
	_, r, ing, _ := newIngestFixture(t)
	path := writeFile(t, t.TempDir(), "wbs.yaml", planYAML)
	if _, err := ing.Ingest(context.Background(), "", path); err != nil {
		t.Fatal(err)
	}
	lookup := NewPlanLookup(r)

	tests := []struct {
		assignee string
		want     int
	}{
		{"kim", 1},
		{"Lee Jiwon", 1},
		{"park", 1},
		{"", 2},
		{"nobody", 0},
	}
	for _, tt := range tests {
		t.Run(tt.assignee, func(t *testing.T) {
			slice, err := lookup.PlanFor(context.Background(), "P1", tt.assignee)
			if err != nil {
				t.Fatalf("PlanFor: %v", err)
			}
			if len(slice.Items) != tt.want {
				t.Errorf("got %d items, want %d", len(slice.Items), tt.want)
			}
		})
	}

	if _, err := lookup.PlanFor(context.Background(), "UNKNOWN", "kim"); err == nil {
		t.Error("expected error for a project with no stored items")
	}
}
