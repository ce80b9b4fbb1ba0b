package core

import (
	"context"
	"time"

	"github.com/valter-silva-au/workpulse/pkg/models"
)

// ReportStore persists finished reports and lists them back by subject and
// period. ReportArchive is the store-backed implementation.
type ReportStore interface {
	ReportSink
	List(ctx context.Context, kind models.ReportKind, subjectID string, from, to time.Time) ([]*models.Report, error)
}

var _ ReportStore = (*ReportArchive)(nil)
