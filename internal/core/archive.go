package core

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/valter-silva-au/workpulse/internal/storage"
	"github.com/valter-silva-au/workpulse/pkg/models"
)

// ReportArchive keeps finished reports in the reports collection so that
// weekly reports can be built from the daily ones. Saving a report for the
// same subject, kind and period again replaces the earlier copy.
type ReportArchive struct {
	retriever *Retriever
	logger    *slog.Logger
}

// NewReportArchive creates a ReportArchive writing through retriever.
func NewReportArchive(retriever *Retriever, logger *slog.Logger) *ReportArchive {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &ReportArchive{retriever: retriever, logger: logger}
}

// reportID is the stable record id of a report.
func reportID(rep *models.Report) string {
	return StableID("report", string(rep.Kind), rep.SubjectID, rep.ProjectID, rep.PeriodStart, rep.PeriodEnd)
}

// Save implements ReportSink. The report's content is embedded so archived
// reports are also reachable by similarity search.
func (a *ReportArchive) Save(ctx context.Context, rep *models.Report) error {
	src := a.retriever.Sources().Reports
	if src.Collection == "" {
		return fmt.Errorf("archiving report: no reports collection configured")
	}
	raw, err := json.Marshal(rep)
	if err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}
	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}
	text := jsonText(rep.Content)
	contentKey := src.ContentField
	if contentKey == "" {
		contentKey = defaultContentField
	}
	payload[contentKey] = text

	vec, err := a.retriever.Embed(ctx, text)
	if err != nil {
		// The report stays retrievable by subject and date without a vector.
		a.logger.Warn("archiving report without embedding", "subject", rep.SubjectID, "error", err)
		vec = nil
	}
	rec := storage.Record{ID: reportID(rep), Vector: vec, Payload: payload}
	if err := a.retriever.Upsert(ctx, src.Collection, []storage.Record{rec}); err != nil {
		return fmt.Errorf("archiving report: %w", err)
	}
	a.logger.Info("report archived", "kind", string(rep.Kind), "subject", rep.SubjectID, "period", rep.PeriodStart)
	return nil
}

// List returns the archived reports of kind for subjectID whose period
// starts inside [from, to], oldest first. Failed reports are skipped.
func (a *ReportArchive) List(ctx context.Context, kind models.ReportKind, subjectID string, from, to time.Time) ([]*models.Report, error) {
	src := a.retriever.Sources().Reports
	arts, err := a.retriever.ScrollByIdentityAndRange(ctx, src, models.SourceReport, subjectID, from, to)
	if err != nil {
		return nil, fmt.Errorf("listing reports of %s: %w", subjectID, err)
	}
	var out []*models.Report
	for _, art := range arts {
		raw, err := json.Marshal(art.Metadata)
		if err != nil {
			return nil, fmt.Errorf("decoding report %s: %w", art.ID, err)
		}
		var rep models.Report
		if err := json.Unmarshal(raw, &rep); err != nil {
			return nil, fmt.Errorf("decoding report %s: %w", art.ID, err)
		}
		if rep.Kind != kind || !rep.Success {
			continue
		}
		out = append(out, &rep)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].PeriodStart < out[j].PeriodStart })
	return out, nil
}
