package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/valter-silva-au/workpulse/internal/storage"
	"github.com/valter-silva-au/workpulse/pkg/models"
)

// Payload keys of plan records.
const (
	payloadProjectID   = "project_id"
	payloadRecordType  = "type"
	payloadContentHash = "wbs_hash"
	payloadComplete    = "complete"
	payloadItemCount   = "item_count"

	recordTypePlanItem = "plan_item"
	recordTypeMarker   = "project_overview"

	defaultContentField = "page_content"
)

// ErrEmbeddingUnavailable marks failures of the embedding collaborator so
// that hybrid retrieval can fall back to keyword matching.
var ErrEmbeddingUnavailable = errors.New("embedding unavailable")

// Embedder turns text into a fixed-dimension vector. The same model must be
// used for every write and query against one collection.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimension() int
	Model() string
}

// RetrieverConfig tunes the store adapter.
type RetrieverConfig struct {
	Sources models.SourcesConfig
	// PageSize is the scroll page size requested from the store.
	PageSize int
	// PageCap bounds how many records one scroll call returns in total.
	PageCap int
}

// Retriever is the indexed store adapter: it hides the vector store behind
// per-source filtered scrolls, similarity and hybrid search, and the plan
// marker operations used by re-ingestion.
type Retriever struct {
	store    storage.VectorStore
	embedder Embedder
	cfg      RetrieverConfig
	logger   *slog.Logger
}

// NewRetriever creates a Retriever over store. A nil logger discards output.
func NewRetriever(store storage.VectorStore, embedder Embedder, cfg RetrieverConfig, logger *slog.Logger) *Retriever {
	if cfg.PageSize <= 0 {
		cfg.PageSize = 50
	}
	if cfg.PageCap <= 0 {
		cfg.PageCap = 500
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Retriever{store: store, embedder: embedder, cfg: cfg, logger: logger}
}

// Sources returns the collection layout the retriever was built with.
func (r *Retriever) Sources() models.SourcesConfig { return r.cfg.Sources }

// EnsureCollections creates every configured collection that is missing.
// A collection whose stored vector size differs from the embedder's is
// reported as a warning; queries against it are meaningless but not fatal.
func (r *Retriever) EnsureCollections(ctx context.Context) ([]string, error) {
	dim := r.embedder.Dimension()
	names := make([]string, 0, 8)
	for name := range r.cfg.Sources.All() {
		names = append(names, name)
	}
	sort.Strings(names)

	var warnings []string
	for _, name := range names {
		src := r.cfg.Sources.All()[name]
		if src.Collection == "" {
			continue
		}
		info, err := r.store.EnsureCollection(ctx, src.Collection, dim)
		if err != nil {
			return warnings, fmt.Errorf("ensuring collection %s: %w", src.Collection, err)
		}
		if !info.Created && info.VectorSize != 0 && info.VectorSize != dim {
			w := fmt.Sprintf("collection %s has vector size %d but embedder %s produces %d",
				src.Collection, info.VectorSize, r.embedder.Model(), dim)
			r.logger.Warn("vector dimension mismatch", "collection", src.Collection,
				"stored", info.VectorSize, "embedder", dim)
			warnings = append(warnings, w)
		}
	}
	return warnings, nil
}

// identityCondition matches the identity field against value, also
// accepting the numeric form when value is an integer, since some sources
// store user ids as numbers.
func identityCondition(key, value string) storage.Condition {
	if n, err := strconv.ParseInt(value, 10, 64); err == nil {
		return storage.In(key, value, n)
	}
	return storage.Eq(key, value)
}

// ScrollByIdentityAndDate returns every record of src whose identity field
// equals identity and, when date is non-zero, whose date field falls inside
// that UTC day, both ends inclusive.
func (r *Retriever) ScrollByIdentityAndDate(ctx context.Context, src models.SourceConfig, source models.SourceType, identity string, date time.Time) ([]models.Artifact, error) {
	if date.IsZero() {
		return r.ScrollByIdentityAndRange(ctx, src, source, identity, time.Time{}, time.Time{})
	}
	from, to := DayRange(date)
	return r.ScrollByIdentityAndRange(ctx, src, source, identity, from, to)
}

// ScrollByIdentityAndRange is ScrollByIdentityAndDate over an explicit
// inclusive range. Zero bounds disable the date filter.
func (r *Retriever) ScrollByIdentityAndRange(ctx context.Context, src models.SourceConfig, source models.SourceType, identity string, from, to time.Time) ([]models.Artifact, error) {
	if strings.TrimSpace(identity) == "" {
		return nil, ErrMissingSubject
	}
	conds := []storage.Condition{identityCondition(src.IdentityKey, identity)}
	if (!from.IsZero() || !to.IsZero()) && src.DateField != "" {
		conds = append(conds, storage.Between(src.DateField, from, to))
	}
	return r.scroll(ctx, src, source, storage.Where(conds...))
}

// scroll drains the store cursor for filter, stopping at the page cap.
func (r *Retriever) scroll(ctx context.Context, src models.SourceConfig, source models.SourceType, filter storage.Filter) ([]models.Artifact, error) {
	var (
		out    []models.Artifact
		offset string
	)
	for {
		page, err := r.store.Scroll(ctx, src.Collection, storage.ScrollRequest{
			Filter: filter,
			Limit:  r.cfg.PageSize,
			Offset: offset,
		})
		if err != nil {
			return nil, fmt.Errorf("scrolling %s: %w", src.Collection, err)
		}
		for i, rec := range page.Records {
			out = append(out, toArtifact(rec, source, src.ContentField, 0))
			if len(out) >= r.cfg.PageCap {
				if page.Next != "" || i < len(page.Records)-1 {
					r.logger.Warn("scroll truncated at page cap", "collection", src.Collection, "cap", r.cfg.PageCap)
				}
				return out, nil
			}
		}
		if page.Next == "" {
			return out, nil
		}
		offset = page.Next
	}
}

func toArtifact(rec storage.Record, source models.SourceType, contentField string, score float64) models.Artifact {
	if contentField == "" {
		contentField = defaultContentField
	}
	meta := make(map[string]any, len(rec.Payload))
	var content string
	for k, v := range rec.Payload {
		if k == contentField {
			if s, ok := v.(string); ok {
				content = s
			} else if v != nil {
				content = fmt.Sprint(v)
			}
			continue
		}
		meta[k] = v
	}
	return models.Artifact{ID: rec.ID, Content: content, Source: source, Metadata: meta, Score: score}
}

// normalizeCosine maps cosine similarity from [-1, 1] onto [0, 1].
func normalizeCosine(c float64) float64 {
	s := (c + 1) / 2
	switch {
	case s < 0:
		return 0
	case s > 1:
		return 1
	}
	return s
}

// SimilaritySearch embeds query and returns up to topK nearest records of
// src matching filter, each with a normalized score in [0, 1].
func (r *Retriever) SimilaritySearch(ctx context.Context, src models.SourceConfig, source models.SourceType, query string, filter storage.Filter, topK int) ([]models.Artifact, error) {
	vec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingUnavailable, err)
	}
	hits, err := r.store.Search(ctx, src.Collection, vec, filter, topK)
	if err != nil {
		return nil, fmt.Errorf("searching %s: %w", src.Collection, err)
	}
	out := make([]models.Artifact, 0, len(hits))
	for _, h := range hits {
		out = append(out, toArtifact(h.Record, source, src.ContentField, normalizeCosine(h.Score)))
	}
	return out, nil
}

// HybridSearch runs one similarity search per query, restricted to records
// whose filename is in filenames (no restriction when empty), and merges
// the hits by id in first-seen order. When the embedder is unavailable it
// degrades to case-insensitive keyword containment over the same records.
func (r *Retriever) HybridSearch(ctx context.Context, src models.SourceConfig, source models.SourceType, queries, filenames []string, topK int) ([]models.Artifact, error) {
	var filter storage.Filter
	if len(filenames) > 0 {
		for _, f := range filenames {
			filter.Should = append(filter.Should, storage.Eq(models.MetaFilename, f))
		}
	}

	seen := make(map[string]bool)
	var out []models.Artifact
	for _, q := range queries {
		if strings.TrimSpace(q) == "" {
			continue
		}
		hits, err := r.SimilaritySearch(ctx, src, source, q, filter, topK)
		if errors.Is(err, ErrEmbeddingUnavailable) {
			r.logger.Warn("hybrid search falling back to keywords", "collection", src.Collection, "error", err)
			return r.keywordSearch(ctx, src, source, queries, filter, topK)
		}
		if err != nil {
			return nil, err
		}
		for _, h := range hits {
			if !seen[h.ID] {
				seen[h.ID] = true
				out = append(out, h)
			}
		}
	}
	return out, nil
}

func (r *Retriever) keywordSearch(ctx context.Context, src models.SourceConfig, source models.SourceType, queries []string, filter storage.Filter, topK int) ([]models.Artifact, error) {
	pool, err := r.scroll(ctx, src, source, filter)
	if err != nil {
		return nil, err
	}
	var out []models.Artifact
	for _, a := range pool {
		text := strings.ToLower(a.Content + " " + a.Filename())
		for _, q := range queries {
			q = strings.ToLower(strings.TrimSpace(q))
			if q != "" && strings.Contains(text, q) {
				out = append(out, a)
				break
			}
		}
		if topK > 0 && len(out) >= topK*len(queries) {
			break
		}
	}
	return out, nil
}

// Documents returns the subject's documents last modified on date.
func (r *Retriever) Documents(ctx context.Context, subject string, date time.Time) ([]models.Artifact, error) {
	return r.ScrollByIdentityAndDate(ctx, r.cfg.Sources.Documents, models.SourceDocument, subject, date)
}

// Emails returns the subject's emails sent on date.
func (r *Retriever) Emails(ctx context.Context, subject string, date time.Time) ([]models.Artifact, error) {
	return r.ScrollByIdentityAndDate(ctx, r.cfg.Sources.Emails, models.SourceEmail, subject, date)
}

// CodeEvents returns the subject's commits and pull-request events on date.
func (r *Retriever) CodeEvents(ctx context.Context, subject string, date time.Time) ([]models.Artifact, error) {
	return r.ScrollByIdentityAndDate(ctx, r.cfg.Sources.Code, models.SourceCodeEvent, subject, date)
}

// ChatPosts returns the subject's chat posts on date.
func (r *Retriever) ChatPosts(ctx context.Context, subject string, date time.Time) ([]models.Artifact, error) {
	return r.ScrollByIdentityAndDate(ctx, r.cfg.Sources.Chat, models.SourceChatPost, subject, date)
}

// Readmes returns at most one README record per repository, in repository
// name order.
func (r *Retriever) Readmes(ctx context.Context, repos []string) ([]models.Artifact, error) {
	src := r.cfg.Sources.Readmes
	if src.Collection == "" || len(repos) == 0 {
		return nil, nil
	}
	sorted := append([]string(nil), repos...)
	sort.Strings(sorted)

	var out []models.Artifact
	for _, repo := range sorted {
		page, err := r.store.Scroll(ctx, src.Collection, storage.ScrollRequest{
			Filter: storage.Where(storage.Eq(src.IdentityKey, repo)),
			Limit:  1,
		})
		if err != nil {
			return out, fmt.Errorf("reading README of %s: %w", repo, err)
		}
		for _, rec := range page.Records {
			out = append(out, toArtifact(rec, models.SourceCodeEvent, src.ContentField, 0))
		}
	}
	return out, nil
}

// PlanItems returns every plan item stored for projectID.
func (r *Retriever) PlanItems(ctx context.Context, projectID string) ([]models.PlanItem, error) {
	if strings.TrimSpace(projectID) == "" {
		return nil, fmt.Errorf("listing plan items: project id is required")
	}
	src := r.cfg.Sources.Plans
	arts, err := r.scroll(ctx, src, models.SourcePlanItem, storage.Where(
		storage.Eq(payloadProjectID, projectID),
		storage.Eq(payloadRecordType, recordTypePlanItem),
	))
	if err != nil {
		return nil, err
	}
	items := make([]models.PlanItem, 0, len(arts))
	for _, a := range arts {
		raw, err := json.Marshal(a.Metadata)
		if err != nil {
			return nil, fmt.Errorf("encoding plan record %s: %w", a.ID, err)
		}
		var item models.PlanItem
		if err := json.Unmarshal(raw, &item); err != nil {
			return nil, fmt.Errorf("decoding plan record %s: %w", a.ID, err)
		}
		items = append(items, item)
	}
	return items, nil
}

// CountPlanItems returns how many plan items are stored for projectID.
func (r *Retriever) CountPlanItems(ctx context.Context, collection, projectID string) (int, error) {
	n, err := r.store.Count(ctx, collection, storage.Where(
		storage.Eq(payloadProjectID, projectID),
		storage.Eq(payloadRecordType, recordTypePlanItem),
	))
	if err != nil {
		return 0, fmt.Errorf("counting plan items of %s: %w", projectID, err)
	}
	return n, nil
}

// GetStoredContentHash returns the plan marker stored for planID, or nil
// when the plan was never ingested.
func (r *Retriever) GetStoredContentHash(ctx context.Context, collection, planID string) (*PlanMarker, error) {
	page, err := r.store.Scroll(ctx, collection, storage.ScrollRequest{
		Filter: storage.Where(
			storage.Eq(payloadProjectID, planID),
			storage.Eq(payloadRecordType, recordTypeMarker),
		),
		Limit: 1,
	})
	if err != nil {
		return nil, fmt.Errorf("reading plan marker of %s: %w", planID, err)
	}
	if len(page.Records) == 0 {
		return nil, nil
	}
	p := page.Records[0].Payload
	m := &PlanMarker{}
	m.Hash, _ = p[payloadContentHash].(string)
	m.Complete, _ = p[payloadComplete].(bool)
	switch n := p[payloadItemCount].(type) {
	case float64:
		m.ItemCount = int(n)
	case int:
		m.ItemCount = n
	}
	return m, nil
}

// ClearAndMark deletes every record tagged with planID and writes an
// incomplete marker carrying newHash. It never deletes collection-wide.
func (r *Retriever) ClearAndMark(ctx context.Context, collection, planID, newHash string) error {
	if strings.TrimSpace(planID) == "" {
		return fmt.Errorf("clearing plan records: %w", storage.ErrEmptyFilter)
	}
	if _, err := r.store.Delete(ctx, collection, storage.Where(storage.Eq(payloadProjectID, planID))); err != nil {
		return fmt.Errorf("clearing plan %s: %w", planID, err)
	}
	return r.writeMarker(ctx, collection, planID, PlanMarker{Hash: newHash})
}

// MarkComplete seals the marker for planID once its items are written.
func (r *Retriever) MarkComplete(ctx context.Context, collection, planID, hash string, itemCount int) error {
	return r.writeMarker(ctx, collection, planID, PlanMarker{Hash: hash, Complete: true, ItemCount: itemCount})
}

func (r *Retriever) writeMarker(ctx context.Context, collection, planID string, m PlanMarker) error {
	rec := storage.Record{
		ID: StableID(planID, "__overview__"),
		Payload: map[string]any{
			payloadProjectID:   planID,
			payloadRecordType:  recordTypeMarker,
			payloadContentHash: m.Hash,
			payloadComplete:    m.Complete,
			payloadItemCount:   m.ItemCount,
			"updated_at":       models.FormatTimestamp(time.Now()),
		},
	}
	if err := r.store.Upsert(ctx, collection, []storage.Record{rec}); err != nil {
		return fmt.Errorf("writing plan marker of %s: %w", planID, err)
	}
	return nil
}

// Upsert writes records to collection.
func (r *Retriever) Upsert(ctx context.Context, collection string, recs []storage.Record) error {
	if err := r.store.Upsert(ctx, collection, recs); err != nil {
		return fmt.Errorf("writing to %s: %w", collection, err)
	}
	return nil
}

// Embed delegates to the configured embedder.
func (r *Retriever) Embed(ctx context.Context, text string) ([]float32, error) {
	vec, err := r.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingUnavailable, err)
	}
	return vec, nil
}

// SearchableSources lists the source names accepted by ResolveSource.
var SearchableSources = []string{"documents", "emails", "code", "readmes", "chat"}

// ResolveSource maps a config source name to its layout and artifact type.
func (r *Retriever) ResolveSource(name string) (models.SourceConfig, models.SourceType, error) {
	s := r.cfg.Sources
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "documents", "docs":
		return s.Documents, models.SourceDocument, nil
	case "emails", "email":
		return s.Emails, models.SourceEmail, nil
	case "code":
		return s.Code, models.SourceCodeEvent, nil
	case "readmes", "readme":
		return s.Readmes, models.SourceCodeEvent, nil
	case "chat":
		return s.Chat, models.SourceChatPost, nil
	default:
		return models.SourceConfig{}, "", fmt.Errorf("unknown source %q (want one of %s)", name, strings.Join(SearchableSources, ", "))
	}
}
