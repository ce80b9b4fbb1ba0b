// Package internal provides the App struct that wires every workpulse
// component together and initializes the CLI layer.
package internal

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/valter-silva-au/workpulse/internal/cli"
	"github.com/valter-silva-au/workpulse/internal/core"
	"github.com/valter-silva-au/workpulse/internal/integration"
	"github.com/valter-silva-au/workpulse/internal/observability"
	"github.com/valter-silva-au/workpulse/internal/storage"
	"github.com/valter-silva-au/workpulse/pkg/models"
)

// EventLogFileName is the JSONL event log kept in the base directory.
const EventLogFileName = ".workpulse_events.jsonl"

// App holds all service dependencies.
type App struct {
	BasePath string
	Config   *models.Config

	// Configuration
	ConfigMgr core.ConfigurationManager

	// Storage and retrieval
	Store     storage.VectorStore
	Embedder  core.Embedder
	Retriever *core.Retriever
	Matcher   *core.Matcher

	// Judgment
	Guard   *integration.Guard
	Judge   core.Judge
	Prompts core.PromptManager

	// Reporting
	Plans        *core.PlanLookup
	Ingester     core.PlanIngester
	Evidence     core.EvidenceIngester
	Branches     []core.Branch
	Documents    *core.DocumentsBranch
	Orchestrator *core.Orchestrator
	Archive      *core.ReportArchive
	Periods      *core.PeriodReporter

	// Observability
	EventLog    observability.EventLog
	Recorder    *observability.Recorder
	AlertEngine observability.AlertEngine
	MetricsCalc observability.MetricsCalculator
	Notifier    observability.Notifier
}

// Option adjusts App construction. Tests use it to swap collaborators.
type Option func(*App)

// WithJudge replaces the HTTP judgment client.
func WithJudge(j core.Judge) Option {
	return func(a *App) { a.Judge = j }
}

// NewApp loads configuration from basePath and wires every component.
func NewApp(basePath string, opts ...Option) (*App, error) {
	app := &App{BasePath: basePath}

	// --- Configuration ---
	app.ConfigMgr = core.NewConfigurationManager(basePath)
	cfg, err := app.ConfigMgr.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := app.ConfigMgr.ValidateConfig(cfg); err != nil {
		return nil, err
	}
	app.Config = cfg
	if err := observability.Init(cfg.Log.Level, cfg.Log.Format, os.Stderr); err != nil {
		return nil, fmt.Errorf("initializing logging: %w", err)
	}

	for _, opt := range opts {
		opt(app)
	}

	// --- Observability ---
	// Non-fatal: runs proceed without an event log if it can't be opened.
	app.EventLog, err = observability.NewJSONLEventLog(filepath.Join(basePath, EventLogFileName))
	if err != nil {
		observability.NewLogger("app").Warn("event log disabled", "error", err)
		app.EventLog = nil
	}
	var observer core.Observer
	var events core.EventLogger
	if app.EventLog != nil {
		app.Recorder = observability.NewRecorder(app.EventLog, observability.NewLogger("events"))
		observer, events = app.Recorder, app.Recorder
		app.AlertEngine = observability.NewAlertEngine(app.EventLog, observability.AlertThresholds{
			SourceFailureStreak: cfg.Notifications.SourceFailureStreak,
			ReportFailures:      cfg.Notifications.ReportFailures,
			ReportFailureWindow: cfg.Notifications.ReportFailureWindow,
		})
		app.MetricsCalc = observability.NewMetricsCalculator(app.EventLog)
	}
	if cfg.Notifications.Enabled && cfg.Notifications.SlackWebhookURL != "" {
		app.Notifier = observability.NewSlackNotifier(cfg.Notifications.SlackWebhookURL)
	}

	// --- Storage and retrieval ---
	app.Store, err = openStore(cfg.Store)
	if err != nil {
		app.closeEventLog()
		return nil, err
	}
	app.Embedder, err = integration.NewEmbedder(cfg.Embedding)
	if err != nil {
		_ = app.Close()
		return nil, fmt.Errorf("creating embedder: %w", err)
	}
	app.Retriever = core.NewRetriever(app.Store, app.Embedder, core.RetrieverConfig{
		Sources:  cfg.Sources,
		PageSize: cfg.Store.PageSize,
		PageCap:  cfg.Orchestrator.PageCap,
	}, observability.NewLogger("retriever"))
	if _, err := app.Retriever.EnsureCollections(context.Background()); err != nil {
		_ = app.Close()
		return nil, fmt.Errorf("preparing collections: %w", err)
	}
	app.Matcher = core.NewMatcher(core.MatcherConfig{
		Threshold:          cfg.Matcher.Threshold,
		MaxRepresentatives: cfg.Matcher.MaxRepresentatives,
		ContentPreview:     cfg.Matcher.ContentPreview,
	})

	// --- Judgment ---
	app.Prompts = core.NewPromptManager(cfg.PromptsDir)
	if app.Judge == nil {
		app.Guard = integration.NewGuard(cfg.LLM.MaxFailures, cfg.LLM.Cooldown)
		app.Judge = integration.NewChatJudge(integration.NewChatClient(cfg.LLM), cfg.LLM, app.Guard, observability.NewLogger("judge"))
	}

	// --- Reporting ---
	app.Plans = core.NewPlanLookup(app.Retriever)
	app.Ingester = core.NewPlanIngester(app.Retriever, events, observability.NewLogger("ingest"))
	app.Evidence = core.NewEvidenceIngester(app.Retriever, events, observability.NewLogger("evidence"))
	app.Branches = core.NewBranches(core.BranchDeps{
		Retriever:  app.Retriever,
		Matcher:    app.Matcher,
		Judge:      app.Judge,
		Prompts:    app.Prompts,
		Digest:     core.DigestConfig{MaxItems: cfg.Orchestrator.DigestItems, MaxChars: cfg.Orchestrator.DigestChars},
		HybridTopK: cfg.Matcher.HybridTopK,
		Logger:     observability.NewLogger("branch"),
	})
	for _, b := range app.Branches {
		if d, ok := b.(*core.DocumentsBranch); ok {
			app.Documents = d
		}
	}
	app.Archive = core.NewReportArchive(app.Retriever, observability.NewLogger("archive"))
	app.Orchestrator = core.NewOrchestrator(app.Plans, app.Branches, core.NewReportGenerator(app.Judge, app.Prompts), core.OrchestratorOptions{
		BranchTimeout: cfg.Orchestrator.BranchTimeout,
		Sink:          app.Archive,
		Observer:      observer,
		Logger:        observability.NewLogger("orchestrator"),
	})
	app.Periods = core.NewPeriodReporter(app.Archive, app.Plans, app.Judge, app.Prompts, observability.NewLogger("period"))

	// --- Wire CLI package-level variables ---
	cli.BasePath = basePath
	cli.Config = cfg
	cli.Runner = app.Orchestrator
	cli.Ingester = app.Ingester
	cli.Evidence = app.Evidence
	cli.Plans = app.Plans
	cli.Retriever = app.Retriever
	if app.Documents != nil {
		cli.Documents = app.Documents
	}
	cli.Periods = app.Periods
	cli.Recorder = app.Recorder

	cli.EventLog = app.EventLog
	cli.AlertEngine = app.AlertEngine
	cli.MetricsCalc = app.MetricsCalc
	cli.Notifier = app.Notifier

	return app, nil
}

func openStore(cfg models.StoreConfig) (storage.VectorStore, error) {
	switch cfg.Backend {
	case "memory":
		return storage.NewMemStore(), nil
	case "", "sqlite":
		s, err := storage.OpenSQLiteStore(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("opening store %s: %w", cfg.Path, err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}

func (a *App) closeEventLog() error {
	if a.EventLog == nil {
		return nil
	}
	return a.EventLog.Close()
}

// Close releases the store and the event log file handle.
func (a *App) Close() error {
	var errs []error
	if a.Store != nil {
		errs = append(errs, a.Store.Close())
	}
	errs = append(errs, a.closeEventLog())
	return errors.Join(errs...)
}

// ResolveBasePath determines the workpulse base directory: WORKPULSE_HOME,
// then the nearest ancestor of the working directory holding
// .workpulse.yaml, then the working directory itself.
func ResolveBasePath() string {
	cwd, err := os.Getwd()
	if err != nil {
		cwd = "."
	}
	return core.ResolveBaseDir(cwd)
}
