// Package mcp exposes workpulse reporting and evidence search as MCP tools
// for AI assistants.
package mcp

import (
	"context"
	"fmt"
	"strings"
	"time"

	gomcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/valter-silva-au/workpulse/internal/core"
	"github.com/valter-silva-au/workpulse/internal/observability"
	"github.com/valter-silva-au/workpulse/pkg/models"
)

// DailyRunner runs one daily report.
type DailyRunner interface {
	Run(ctx context.Context, in models.RunInputs) *models.RunOutcome
}

// DeliverableMatcher matches a subject's documents against plan deliverables.
type DeliverableMatcher interface {
	MatchDeliverables(ctx context.Context, in core.BranchInput) (*models.MatchResult, []models.Artifact, error)
}

// EvidenceSearcher runs hybrid searches over one source collection.
type EvidenceSearcher interface {
	ResolveSource(name string) (models.SourceConfig, models.SourceType, error)
	HybridSearch(ctx context.Context, src models.SourceConfig, source models.SourceType, queries, filenames []string, topK int) ([]models.Artifact, error)
}

// Services are the collaborators behind the tools. Nil services make their
// tools answer with an error result.
type Services struct {
	Runner   DailyRunner
	Plans    core.PlanSource
	Matcher  DeliverableMatcher
	Searcher EvidenceSearcher
	Metrics  observability.MetricsCalculator
	Alerts   observability.AlertEngine
}

// Server wraps workpulse services and exposes them as MCP tools.
type Server struct {
	server *gomcp.Server
	svc    Services
}

// NewServer creates an MCP server over svc.
func NewServer(svc Services, version string) *Server {
	if version == "" {
		version = "dev"
	}
	s := &Server{svc: svc}
	s.server = gomcp.NewServer(&gomcp.Implementation{Name: "workpulse", Version: version}, nil)
	s.registerTools()
	return s
}

// Run serves over stdio until the client disconnects or ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &gomcp.StdioTransport{})
}

// MCPServer returns the underlying mcp.Server for testing purposes.
func (s *Server) MCPServer() *gomcp.Server {
	return s.server
}

// --- Tool input/output types ---

type dailyReportInput struct {
	SubjectID   string `json:"subject_id" jsonschema:"required,identity of the person as stored in the source collections"`
	SubjectName string `json:"subject_name,omitempty" jsonschema:"display name, also used to find plan assignments"`
	Date        string `json:"date" jsonschema:"required,target date as YYYY-MM-DD"`
	ProjectID   string `json:"project_id,omitempty" jsonschema:"project whose work breakdown plan applies"`
}

type dailyReportOutput struct {
	Success  bool           `json:"success"`
	Report   map[string]any `json:"report,omitempty"`
	Error    string         `json:"error,omitempty"`
	Branches map[string]any `json:"branches"`
	ErrorLog []string       `json:"error_log,omitempty"`
}

type matchDeliverablesInput struct {
	SubjectID   string `json:"subject_id" jsonschema:"required,identity of the document author"`
	SubjectName string `json:"subject_name,omitempty" jsonschema:"assignee name in the plan; defaults to subject_id"`
	Date        string `json:"date" jsonschema:"required,target date as YYYY-MM-DD"`
	ProjectID   string `json:"project_id" jsonschema:"required,project whose deliverables are matched"`
}

type matchedArtifact struct {
	ID        string  `json:"id"`
	Filename  string  `json:"filename,omitempty"`
	Score     float64 `json:"score"`
	MatchType string  `json:"match_type"`
}

type deliverableOutput struct {
	Label     string            `json:"label"`
	Artifacts []matchedArtifact `json:"artifacts"`
}

type matchDeliverablesOutput struct {
	Deliverables   []deliverableOutput `json:"deliverables"`
	Unmatched      []string            `json:"unmatched"`
	TotalDocuments int                 `json:"total_documents"`
	MatchingRate   float64             `json:"matching_rate"`
}

type searchEvidenceInput struct {
	Source    string   `json:"source" jsonschema:"required,one of documents, emails, code, readmes, chat"`
	Query     string   `json:"query" jsonschema:"required,free-text query"`
	Filenames []string `json:"filenames,omitempty" jsonschema:"restrict the search to these filenames"`
	TopK      int      `json:"top_k,omitempty" jsonschema:"maximum results, default 5"`
}

type evidenceOutput struct {
	ID       string  `json:"id"`
	Score    float64 `json:"score,omitempty"`
	Filename string  `json:"filename,omitempty"`
	Author   string  `json:"author,omitempty"`
	Preview  string  `json:"preview"`
}

type searchEvidenceOutput struct {
	Results []evidenceOutput `json:"results"`
	Count   int              `json:"count"`
}

type getMetricsInput struct {
	Since string `json:"since,omitempty" jsonschema:"time window for metrics (e.g. 7d, 30d, 24h). Defaults to 7d."`
}

type sourceMetricsOutput struct {
	Succeeded     int   `json:"succeeded"`
	Failed        int   `json:"failed"`
	AverageMillis int64 `json:"average_ms"`
}

type metricsOutput struct {
	Runs             int                            `json:"runs"`
	ReportsGenerated int                            `json:"reports_generated"`
	ReportsFailed    int                            `json:"reports_failed"`
	ReportsByKind    map[string]int                 `json:"reports_by_kind"`
	Branches         map[string]sourceMetricsOutput `json:"branches"`
	PlansIngested    int                            `json:"plans_ingested"`
	PlansSkipped     int                            `json:"plans_skipped"`
	EventCount       int                            `json:"event_count"`
	OldestEvent      string                         `json:"oldest_event,omitempty"`
	NewestEvent      string                         `json:"newest_event,omitempty"`
}

type getAlertsInput struct{}

type alertOutput struct {
	ID          string `json:"id"`
	Condition   string `json:"condition"`
	Severity    string `json:"severity"`
	Message     string `json:"message"`
	TriggeredAt string `json:"triggered_at"`
}

type getAlertsOutput struct {
	Alerts []alertOutput `json:"alerts"`
	Count  int           `json:"count"`
}

// --- Tool registration ---

func (s *Server) registerTools() {
	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "daily_report",
		Description: "Generate a person's daily progress report from documents, code activity, email and chat, judged against their project plan.",
	}, s.handleDailyReport)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "match_deliverables",
		Description: "Match the documents a person touched on a date against their plan deliverables, with scores and match types.",
	}, s.handleMatchDeliverables)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "search_evidence",
		Description: "Hybrid vector and keyword search over one evidence source.",
	}, s.handleSearchEvidence)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "get_metrics",
		Description: "Get run metrics from the event log: runs, reports, branch outcomes per source and plan ingestion.",
	}, s.handleGetMetrics)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "get_alerts",
		Description: "Evaluate and return active alerts (sources failing repeatedly, report failures).",
	}, s.handleGetAlerts)
}

// --- Tool handlers ---

func (s *Server) handleDailyReport(ctx context.Context, _ *gomcp.CallToolRequest, input dailyReportInput) (*gomcp.CallToolResult, dailyReportOutput, error) {
	empty := dailyReportOutput{Branches: map[string]any{}}
	if s.svc.Runner == nil {
		return errorResult("report runner not available"), empty, nil
	}
	date, err := parseDate(input.Date)
	if err != nil {
		return errorResult(err.Error()), empty, nil
	}

	outcome := s.svc.Runner.Run(ctx, models.RunInputs{
		SubjectID:   strings.TrimSpace(input.SubjectID),
		SubjectName: strings.TrimSpace(input.SubjectName),
		TargetDate:  date,
		ProjectID:   strings.TrimSpace(input.ProjectID),
	})

	out := empty
	if outcome.Report != nil {
		out.Success = outcome.Report.Success
		out.Report = outcome.Report.Content
		out.Error = outcome.Report.Error
	}
	if outcome.Context != nil {
		for source, res := range outcome.Context.Results() {
			out.Branches[string(source)] = res.Value()
		}
		out.ErrorLog = outcome.Context.Errors.Entries()
	}
	return nil, out, nil
}

func (s *Server) handleMatchDeliverables(ctx context.Context, _ *gomcp.CallToolRequest, input matchDeliverablesInput) (*gomcp.CallToolResult, matchDeliverablesOutput, error) {
	if s.svc.Matcher == nil || s.svc.Plans == nil {
		return errorResult("deliverable matcher not available"), matchDeliverablesOutput{}, nil
	}
	date, err := parseDate(input.Date)
	if err != nil {
		return errorResult(err.Error()), matchDeliverablesOutput{}, nil
	}
	if input.SubjectID == "" || input.ProjectID == "" {
		return errorResult("subject_id and project_id are required"), matchDeliverablesOutput{}, nil
	}
	assignee := input.SubjectName
	if assignee == "" {
		assignee = input.SubjectID
	}

	plan, err := s.svc.Plans.PlanFor(ctx, input.ProjectID, assignee)
	if err != nil {
		return errorResult(fmt.Sprintf("loading plan for %s: %s", input.ProjectID, err)), matchDeliverablesOutput{}, nil
	}
	res, docs, err := s.svc.Matcher.MatchDeliverables(ctx, core.BranchInput{
		Inputs: models.RunInputs{SubjectID: input.SubjectID, SubjectName: assignee, TargetDate: date, ProjectID: input.ProjectID},
		Plan:   plan,
	})
	if err != nil {
		return errorResult(fmt.Sprintf("matching deliverables: %s", err)), matchDeliverablesOutput{}, nil
	}

	out := matchDeliverablesOutput{
		Deliverables:   make([]deliverableOutput, 0, len(res.Deliverables)),
		Unmatched:      res.Unmatched(),
		TotalDocuments: len(docs),
		MatchingRate:   res.MatchingRate(),
	}
	for _, d := range res.Deliverables {
		entry := deliverableOutput{Label: d.Label, Artifacts: make([]matchedArtifact, 0, len(d.Artifacts))}
		for _, a := range d.Artifacts {
			entry.Artifacts = append(entry.Artifacts, matchedArtifact{
				ID:        a.Artifact.ID,
				Filename:  a.Artifact.Filename(),
				Score:     a.Score,
				MatchType: string(a.MatchType),
			})
		}
		out.Deliverables = append(out.Deliverables, entry)
	}
	return nil, out, nil
}

func (s *Server) handleSearchEvidence(ctx context.Context, _ *gomcp.CallToolRequest, input searchEvidenceInput) (*gomcp.CallToolResult, searchEvidenceOutput, error) {
	empty := searchEvidenceOutput{Results: []evidenceOutput{}}
	if s.svc.Searcher == nil {
		return errorResult("evidence search not available"), empty, nil
	}
	if strings.TrimSpace(input.Query) == "" {
		return errorResult("query is required"), empty, nil
	}
	src, source, err := s.svc.Searcher.ResolveSource(input.Source)
	if err != nil {
		return errorResult(err.Error()), empty, nil
	}
	topK := input.TopK
	if topK <= 0 {
		topK = 5
	}

	arts, err := s.svc.Searcher.HybridSearch(ctx, src, source, []string{input.Query}, input.Filenames, topK)
	if err != nil {
		return errorResult(fmt.Sprintf("searching %s: %s", input.Source, err)), empty, nil
	}
	out := searchEvidenceOutput{Results: make([]evidenceOutput, len(arts)), Count: len(arts)}
	for i, a := range arts {
		out.Results[i] = evidenceOutput{
			ID:       a.ID,
			Score:    a.Score,
			Filename: a.Filename(),
			Author:   a.Author(),
			Preview:  preview(a.Content, 200),
		}
	}
	return nil, out, nil
}

func (s *Server) handleGetMetrics(_ context.Context, _ *gomcp.CallToolRequest, input getMetricsInput) (*gomcp.CallToolResult, metricsOutput, error) {
	if s.svc.Metrics == nil {
		return errorResult("metrics calculator not available"), emptyMetricsOutput(), nil
	}
	sinceStr := input.Since
	if sinceStr == "" {
		sinceStr = "7d"
	}
	sinceTime, err := ParseSince(sinceStr, time.Now().UTC())
	if err != nil {
		return errorResult(fmt.Sprintf("parsing since duration: %s", err)), emptyMetricsOutput(), nil
	}

	m, err := s.svc.Metrics.Calculate(sinceTime)
	if err != nil {
		return errorResult(fmt.Sprintf("calculating metrics: %s", err)), emptyMetricsOutput(), nil
	}

	out := emptyMetricsOutput()
	out.Runs = m.Runs
	out.ReportsGenerated = m.ReportsGenerated
	out.ReportsFailed = m.ReportsFailed
	out.PlansIngested = m.PlansIngested
	out.PlansSkipped = m.PlansSkipped
	out.EventCount = m.EventCount
	for k, v := range m.ReportsByKind {
		out.ReportsByKind[k] = v
	}
	for source, sm := range m.Branches {
		out.Branches[source] = sourceMetricsOutput{
			Succeeded:     sm.Succeeded,
			Failed:        sm.Failed,
			AverageMillis: m.AverageDuration(source).Milliseconds(),
		}
	}
	if m.OldestEvent != nil {
		out.OldestEvent = m.OldestEvent.Format(time.RFC3339)
	}
	if m.NewestEvent != nil {
		out.NewestEvent = m.NewestEvent.Format(time.RFC3339)
	}
	return nil, out, nil
}

func (s *Server) handleGetAlerts(_ context.Context, _ *gomcp.CallToolRequest, _ getAlertsInput) (*gomcp.CallToolResult, getAlertsOutput, error) {
	if s.svc.Alerts == nil {
		return errorResult("alert engine not available"), getAlertsOutput{}, nil
	}
	alerts, err := s.svc.Alerts.Evaluate()
	if err != nil {
		return errorResult(fmt.Sprintf("evaluating alerts: %s", err)), getAlertsOutput{}, nil
	}
	out := getAlertsOutput{Alerts: make([]alertOutput, len(alerts)), Count: len(alerts)}
	for i, a := range alerts {
		out.Alerts[i] = alertOutput{
			ID:          a.ID,
			Condition:   a.Condition,
			Severity:    string(a.Severity),
			Message:     a.Message,
			TriggeredAt: a.TriggeredAt.Format(time.RFC3339),
		}
	}
	return nil, out, nil
}

// --- Helpers ---

func emptyMetricsOutput() metricsOutput {
	return metricsOutput{
		ReportsByKind: make(map[string]int),
		Branches:      make(map[string]sourceMetricsOutput),
	}
}

func errorResult(msg string) *gomcp.CallToolResult {
	return &gomcp.CallToolResult{
		Content: []gomcp.Content{&gomcp.TextContent{Text: msg}},
		IsError: true,
	}
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("date is required")
	}
	t, err := time.Parse(models.DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: want YYYY-MM-DD", s)
	}
	return t, nil
}

func preview(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if r := []rune(s); len(r) > n {
		return string(r[:n]) + "..."
	}
	return s
}

// ParseSince parses a window like "7d", "30d" or "24h" into the instant that
// far before now.
func ParseSince(s string, now time.Time) (time.Time, error) {
	if len(s) < 2 {
		return time.Time{}, fmt.Errorf("invalid duration %q", s)
	}
	suffix := s[len(s)-1]
	var num int
	if _, err := fmt.Sscanf(s[:len(s)-1], "%d", &num); err != nil {
		return time.Time{}, fmt.Errorf("invalid duration %q: %w", s, err)
	}
	switch suffix {
	case 'd':
		return now.AddDate(0, 0, -num), nil
	case 'h':
		return now.Add(-time.Duration(num) * time.Hour), nil
	default:
		return time.Time{}, fmt.Errorf("unsupported duration suffix %q (use d or h)", string(suffix))
	}
}
