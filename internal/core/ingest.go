package core

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/valter-silva-au/workpulse/internal/storage"
	"github.com/valter-silva-au/workpulse/pkg/models"
)

// StableID derives a deterministic record id from a natural key so that
// re-ingesting logically identical records overwrites instead of duplicating.
func StableID(parts ...string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("workpulse:"+strings.Join(parts, "/"))).String()
}

// IngestResult describes one plan ingestion.
type IngestResult struct {
	ProjectID string        `json:"project_id"`
	Hash      string        `json:"hash"`
	Skipped   bool          `json:"skipped"`
	Reason    RebuildReason `json:"reason,omitempty"`
	Items     int           `json:"items"`
	OK        bool          `json:"ok"`
}

// PlanIngester loads plan files into the plan collection, skipping files
// whose content hash matches a completely ingested previous version.
type PlanIngester interface {
	Ingest(ctx context.Context, projectID, path string) (*IngestResult, error)
}

type planIngester struct {
	retriever *Retriever
	events    EventLogger
	logger    *slog.Logger
}

// NewPlanIngester creates a PlanIngester writing through retriever. events
// may be nil.
func NewPlanIngester(retriever *Retriever, events EventLogger, logger *slog.Logger) PlanIngester {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &planIngester{retriever: retriever, events: events, logger: logger}
}

// Ingest runs hash check, embed, clear, rewrite and seal for the plan at
// path. Unchanged input performs no writes, and an embedding failure leaves
// the stored plan untouched. Write failures after the clear leave an
// incomplete marker so the next call rebuilds from scratch; they are
// returned as errors with OK false.
func (p *planIngester) Ingest(ctx context.Context, projectID, path string) (*IngestResult, error) {
	collection := p.retriever.Sources().Plans.Collection
	res := &IngestResult{ProjectID: projectID}

	hash, err := HashFile(path)
	if err != nil {
		return res, err
	}
	res.Hash = hash

	doc, err := ParsePlanFile(path)
	if err != nil {
		return res, err
	}
	if strings.TrimSpace(projectID) == "" {
		projectID = strings.TrimSpace(doc.ProjectID)
		res.ProjectID = projectID
	}
	if projectID == "" {
		return res, fmt.Errorf("ingesting %s: project id is required", path)
	}

	marker, err := p.retriever.GetStoredContentHash(ctx, collection, projectID)
	if err != nil {
		return res, err
	}
	stored := 0
	if marker != nil {
		if stored, err = p.retriever.CountPlanItems(ctx, collection, projectID); err != nil {
			return res, err
		}
	}
	rebuild, reason := NeedsRebuild(marker, hash, stored)
	if !rebuild {
		res.Skipped, res.OK, res.Items = true, true, stored
		p.logger.Info("plan unchanged, skipping ingestion", "project", projectID, "hash", shortHash(hash))
		p.logEvent("plan.skipped", map[string]any{"project_id": projectID, "hash": hash})
		return res, nil
	}
	res.Reason = reason
	p.logger.Info("rebuilding plan", "project", projectID, "reason", string(reason))

	records, err := p.buildRecords(ctx, projectID, hash, doc.Items)
	if err != nil {
		p.logEvent("plan.failed", map[string]any{"project_id": projectID, "error": err.Error()})
		return res, fmt.Errorf("rewriting plan %s: %w", projectID, err)
	}
	if err := p.retriever.ClearAndMark(ctx, collection, projectID, hash); err != nil {
		return res, err
	}
	if len(records) > 0 {
		if err := p.retriever.Upsert(ctx, collection, records); err != nil {
			p.logEvent("plan.failed", map[string]any{"project_id": projectID, "error": err.Error()})
			return res, fmt.Errorf("rewriting plan %s: %w", projectID, err)
		}
	}
	if err := p.retriever.MarkComplete(ctx, collection, projectID, hash, len(records)); err != nil {
		return res, err
	}

	res.Items = len(records)
	res.OK = true
	p.logEvent("plan.ingested", map[string]any{
		"project_id": projectID,
		"hash":       hash,
		"items":      len(records),
		"reason":     string(reason),
	})
	return res, nil
}

func (p *planIngester) buildRecords(ctx context.Context, projectID, hash string, items []models.PlanItem) ([]storage.Record, error) {
	contentKey := p.retriever.Sources().Plans.ContentField
	if contentKey == "" {
		contentKey = defaultContentField
	}
	used := make(map[string]bool, len(items))
	records := make([]storage.Record, 0, len(items))
	for i, item := range items {
		key := strings.TrimSpace(item.ID)
		if key == "" || used[key] {
			key = fmt.Sprintf("%s#%d", key, i)
		}
		used[key] = true
		item.ProjectID = projectID

		text := planItemText(item)
		vec, err := p.retriever.Embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("embedding item %s: %w", key, err)
		}
		payload := map[string]any{
			"task_id":          item.ID,
			"task_name":        item.Name,
			"assignee":         []string(item.Assignee),
			"status":           item.Status,
			"start_date":       item.StartDate,
			"end_date":         item.EndDate,
			"deliverables":     item.Labels(),
			payloadProjectID:   projectID,
			payloadRecordType:  recordTypePlanItem,
			payloadContentHash: hash,
		}
		payload[contentKey] = text
		records = append(records, storage.Record{ID: StableID(projectID, key), Vector: vec, Payload: payload})
	}
	return records, nil
}

// planItemText is the text embedded for a plan item.
func planItemText(item models.PlanItem) string {
	parts := []string{item.Name}
	if labels := item.Labels(); len(labels) > 0 {
		parts = append(parts, "deliverables: "+strings.Join(labels, ", "))
	}
	if len(item.Assignee) > 0 {
		parts = append(parts, "assignee: "+strings.Join(item.Assignee, ", "))
	}
	if item.Status != "" {
		parts = append(parts, "status: "+item.Status)
	}
	return strings.Join(parts, " | ")
}

func (p *planIngester) logEvent(eventType string, data map[string]any) {
	logIngestEvent(p.events, p.logger, eventType, data)
}

func logIngestEvent(events EventLogger, logger *slog.Logger, eventType string, data map[string]any) {
	if events == nil {
		return
	}
	if err := events.LogEvent(eventType, data); err != nil {
		logger.Warn("writing event", "type", eventType, "error", err)
	}
}

func shortHash(h string) string {
	if len(h) > 10 {
		return h[:10]
	}
	return h
}
