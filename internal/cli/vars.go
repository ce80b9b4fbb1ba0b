package cli

import (
	"context"

	"github.com/valter-silva-au/workpulse/internal/core"
	"github.com/valter-silva-au/workpulse/internal/observability"
	"github.com/valter-silva-au/workpulse/pkg/models"
)

// DailyRunner runs one daily report. *core.Orchestrator implements it.
type DailyRunner interface {
	Run(ctx context.Context, in models.RunInputs) *models.RunOutcome
}

// PeriodRunner builds reports from archived daily reports.
// *core.PeriodReporter implements it.
type PeriodRunner interface {
	Weekly(ctx context.Context, in core.PeriodInputs) *models.Report
	TeamWeekly(ctx context.Context, in core.TeamInputs) *models.Report
	ProgressSummary(ctx context.Context, in core.PeriodInputs) *models.Report
}

// DeliverableMatcher matches a subject's documents against plan
// deliverables. *core.DocumentsBranch implements it.
type DeliverableMatcher interface {
	MatchDeliverables(ctx context.Context, in core.BranchInput) (*models.MatchResult, []models.Artifact, error)
}

// EvidenceSearcher runs hybrid searches over one source collection.
// *core.Retriever implements it.
type EvidenceSearcher interface {
	ResolveSource(name string) (models.SourceConfig, models.SourceType, error)
	HybridSearch(ctx context.Context, src models.SourceConfig, source models.SourceType, queries, filenames []string, topK int) ([]models.Artifact, error)
}

// observableRunner is a DailyRunner that can add a per-run observer.
type observableRunner interface {
	WithObserver(obs core.Observer) *core.Orchestrator
}

// Core service instances, set during app initialization in app.go.
var (
	BasePath  string
	Config    *models.Config
	Runner    DailyRunner
	Ingester  core.PlanIngester
	Evidence  core.EvidenceIngester
	Plans     core.PlanSource
	Retriever EvidenceSearcher
	Documents DeliverableMatcher
	Periods   PeriodRunner
	Recorder  *observability.Recorder
)

// Observability service instances, set during app initialization in app.go.
var (
	EventLog    observability.EventLog
	AlertEngine observability.AlertEngine
	MetricsCalc observability.MetricsCalculator
	Notifier    observability.Notifier
)
