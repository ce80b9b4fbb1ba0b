package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	gomcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/valter-silva-au/workpulse/internal/core"
	"github.com/valter-silva-au/workpulse/internal/observability"
	"github.com/valter-silva-au/workpulse/pkg/models"
)

// --- Fake implementations ---

type fakeRunner struct {
	seen models.RunInputs
}

func (f *fakeRunner) Run(_ context.Context, in models.RunInputs) *models.RunOutcome {
	f.seen = in
	rc := models.NewRunContext(in)
	rc.Documents = &models.BranchResult{Source: models.SourceDocument, Judgment: map[string]any{"summary": "docs ok"}}
	rc.Email = models.FailedBranch(models.SourceEmail, "email branch timed out")
	rc.Errors.Append("[email] email branch timed out")
	return &models.RunOutcome{
		Context: rc,
		Report: &models.Report{
			Kind: models.ReportDaily, SubjectID: in.SubjectID, Success: true,
			Content: map[string]any{"summary": "a productive day"},
		},
	}
}

type fakePlans struct {
	assignee string
}

func (f *fakePlans) PlanFor(_ context.Context, projectID, assignee string) (*models.PlanSlice, error) {
	f.assignee = assignee
	if projectID == "missing" {
		return nil, errors.New("no plan stored")
	}
	return &models.PlanSlice{ProjectID: projectID, Assignee: assignee}, nil
}

type fakeMatcher struct{}

func (fakeMatcher) MatchDeliverables(_ context.Context, in core.BranchInput) (*models.MatchResult, []models.Artifact, error) {
	doc := models.Artifact{ID: "d1", Metadata: map[string]any{"filename": "design.docx"}}
	return &models.MatchResult{
		Deliverables: []models.DeliverableMatch{
			{Label: "design", Artifacts: []models.ScoredArtifact{{Artifact: doc, Score: 0.9, MatchType: models.MatchExactSubstring}}},
			{Label: "test plan"},
		},
		TotalArtifacts: 2,
		TotalMatched:   1,
	}, []models.Artifact{doc, {ID: "d2"}}, nil
}

type fakeSearcher struct {
	filenames []string
	topK      int
}

func (f *fakeSearcher) ResolveSource(name string) (models.SourceConfig, models.SourceType, error) {
	if name != "documents" {
		return models.SourceConfig{}, "", errors.New("unknown source")
	}
	return models.SourceConfig{Collection: "Documents"}, models.SourceDocument, nil
}

func (f *fakeSearcher) HybridSearch(_ context.Context, _ models.SourceConfig, _ models.SourceType, queries, filenames []string, topK int) ([]models.Artifact, error) {
	f.filenames, f.topK = filenames, topK
	return []models.Artifact{{
		ID: "d1", Score: 0.8, Content: strings.Repeat("x", 300),
		Metadata: map[string]any{"filename": "design.docx", "author": "u1"},
	}}, nil
}

type fakeMetricsCalculator struct {
	metrics *observability.Metrics
}

func (f *fakeMetricsCalculator) Calculate(_ time.Time) (*observability.Metrics, error) {
	return f.metrics, nil
}

type fakeAlertEngine struct {
	alerts []observability.Alert
}

func (f *fakeAlertEngine) Evaluate() ([]observability.Alert, error) {
	return f.alerts, nil
}

// --- Test helpers ---

// callTool connects an in-memory client to srv and calls one tool. A nil
// result means the call failed at the protocol level.
func callTool(t *testing.T, srv *Server, toolName string, args map[string]any) *gomcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	client := gomcp.NewClient(&gomcp.Implementation{Name: "test-client", Version: "v0.0.1"}, nil)
	t1, t2 := gomcp.NewInMemoryTransports()

	go func() {
		_ = srv.MCPServer().Run(ctx, t1)
	}()

	session, err := client.Connect(ctx, t2, nil)
	if err != nil {
		t.Fatalf("client connect: %v", err)
	}
	defer session.Close()

	result, err := session.CallTool(ctx, &gomcp.CallToolParams{Name: toolName, Arguments: args})
	if err != nil {
		return nil
	}
	return result
}

// decode unmarshals the tool output, preferring structured content.
func decode(t *testing.T, result *gomcp.CallToolResult, out any) {
	t.Helper()
	if result == nil {
		t.Fatal("tool call failed at protocol level")
	}
	if result.IsError {
		t.Fatalf("expected success, got error: %s", extractText(result))
	}
	data := []byte(extractText(result))
	if result.StructuredContent != nil {
		data, _ = json.Marshal(result.StructuredContent)
	}
	if err := json.Unmarshal(data, out); err != nil {
		t.Fatalf("unmarshalling output: %v (raw: %s)", err, data)
	}
}

func extractText(result *gomcp.CallToolResult) string {
	for _, c := range result.Content {
		if tc, ok := c.(*gomcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

// --- Tests ---

func TestDailyReport(t *testing.T) {
	runner := &fakeRunner{}
	srv := NewServer(Services{Runner: runner}, "test")

	result := callTool(t, srv, "daily_report", map[string]any{
		"subject_id": "u1", "subject_name": "Kim", "date": "2026-10-19", "project_id": "P1",
	})
	var out dailyReportOutput
	decode(t, result, &out)

	if !out.Success || out.Report["summary"] != "a productive day" {
		t.Errorf("output = %+v", out)
	}
	if runner.seen.DateString() != "2026-10-19" || runner.seen.ProjectID != "P1" {
		t.Errorf("runner inputs = %+v", runner.seen)
	}
	if len(out.ErrorLog) != 1 || !strings.Contains(out.ErrorLog[0], "[email]") {
		t.Errorf("error log = %v", out.ErrorLog)
	}
	email, _ := out.Branches["email"].(map[string]any)
	if email["type"] != "email" {
		t.Errorf("email branch = %v", out.Branches["email"])
	}
}

func TestDailyReportRejectsBadDate(t *testing.T) {
	srv := NewServer(Services{Runner: &fakeRunner{}}, "test")
	result := callTool(t, srv, "daily_report", map[string]any{"subject_id": "u1", "date": "19/10/2026"})
	if result == nil {
		return
	}
	if !result.IsError || !strings.Contains(extractText(result), "YYYY-MM-DD") {
		t.Errorf("expected date error, got %+v", result)
	}
}

func TestMatchDeliverables(t *testing.T) {
	plans := &fakePlans{}
	srv := NewServer(Services{Plans: plans, Matcher: fakeMatcher{}}, "test")

	result := callTool(t, srv, "match_deliverables", map[string]any{
		"subject_id": "u1", "date": "2026-10-19", "project_id": "P1",
	})
	var out matchDeliverablesOutput
	decode(t, result, &out)

	if plans.assignee != "u1" {
		t.Errorf("assignee defaulted to %q, want u1", plans.assignee)
	}
	if len(out.Deliverables) != 2 || out.Deliverables[0].Artifacts[0].Filename != "design.docx" {
		t.Errorf("deliverables = %+v", out.Deliverables)
	}
	if len(out.Unmatched) != 1 || out.Unmatched[0] != "test plan" {
		t.Errorf("unmatched = %v", out.Unmatched)
	}
	if out.TotalDocuments != 2 || out.MatchingRate != 0.5 {
		t.Errorf("totals = %d, %v", out.TotalDocuments, out.MatchingRate)
	}
}

func TestMatchDeliverablesPlanError(t *testing.T) {
	srv := NewServer(Services{Plans: &fakePlans{}, Matcher: fakeMatcher{}}, "test")
	result := callTool(t, srv, "match_deliverables", map[string]any{
		"subject_id": "u1", "date": "2026-10-19", "project_id": "missing",
	})
	if result == nil || !result.IsError || !strings.Contains(extractText(result), "no plan stored") {
		t.Errorf("expected plan error, got %+v", result)
	}
}

func TestSearchEvidence(t *testing.T) {
	searcher := &fakeSearcher{}
	srv := NewServer(Services{Searcher: searcher}, "test")

	result := callTool(t, srv, "search_evidence", map[string]any{
		"source": "documents", "query": "architecture", "filenames": []string{"design.docx"},
	})
	var out searchEvidenceOutput
	decode(t, result, &out)

	if out.Count != 1 || out.Results[0].Author != "u1" {
		t.Errorf("results = %+v", out.Results)
	}
	if n := len([]rune(out.Results[0].Preview)); n != 203 {
		t.Errorf("preview length = %d, want 203", n)
	}
	if searcher.topK != 5 || len(searcher.filenames) != 1 {
		t.Errorf("search args topK=%d filenames=%v", searcher.topK, searcher.filenames)
	}

	bad := callTool(t, srv, "search_evidence", map[string]any{"source": "wiki", "query": "x"})
	if bad == nil || !bad.IsError {
		t.Errorf("expected unknown source error, got %+v", bad)
	}
}

func TestGetMetrics(t *testing.T) {
	newest := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)
	calc := &fakeMetricsCalculator{metrics: &observability.Metrics{
		Runs:             4,
		ReportsGenerated: 3,
		ReportsFailed:    1,
		ReportsByKind:    map[string]int{"daily": 3},
		Branches:         map[string]observability.SourceMetrics{"email": {Succeeded: 1, Failed: 1, TotalDuration: 300}},
		EventCount:       20,
		NewestEvent:      &newest,
	}}
	srv := NewServer(Services{Metrics: calc}, "test")

	var out metricsOutput
	decode(t, callTool(t, srv, "get_metrics", map[string]any{"since": "30d"}), &out)

	if out.Runs != 4 || out.ReportsFailed != 1 || out.ReportsByKind["daily"] != 3 {
		t.Errorf("metrics = %+v", out)
	}
	if got := out.Branches["email"]; got.AverageMillis != 150 || got.Failed != 1 {
		t.Errorf("email metrics = %+v", got)
	}
	if out.NewestEvent != "2026-10-19T09:00:00Z" {
		t.Errorf("newest = %s", out.NewestEvent)
	}
}

func TestGetAlerts(t *testing.T) {
	engine := &fakeAlertEngine{alerts: []observability.Alert{{
		ID: "source-failing-email", Condition: "source_failure_streak", Severity: observability.SeverityHigh,
		Message: "email branch failed", TriggeredAt: time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC),
	}}}
	srv := NewServer(Services{Alerts: engine}, "test")

	var out getAlertsOutput
	decode(t, callTool(t, srv, "get_alerts", map[string]any{}), &out)
	if out.Count != 1 || out.Alerts[0].Severity != "high" {
		t.Errorf("alerts = %+v", out)
	}
}

func TestToolsWithoutServices(t *testing.T) {
	srv := NewServer(Services{}, "")
	calls := map[string]map[string]any{
		"daily_report":       {"subject_id": "u1", "date": "2026-10-19"},
		"match_deliverables": {"subject_id": "u1", "date": "2026-10-19", "project_id": "P1"},
		"search_evidence":    {"source": "documents", "query": "x"},
		"get_metrics":        {},
		"get_alerts":         {},
	}
	for name, args := range calls {
		t.Run(name, func(t *testing.T) {
			result := callTool(t, srv, name, args)
			if result == nil || !result.IsError {
				t.Errorf("expected error result, got %+v", result)
			}
		})
	}
}

func TestParseSince(t *testing.T) {
	now := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		in      string
		want    time.Time
		wantErr bool
	}{
		{"7d", now.AddDate(0, 0, -7), false},
		{"24h", now.Add(-24 * time.Hour), false},
		{"d", time.Time{}, true},
		{"5w", time.Time{}, true},
		{"xd", time.Time{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseSince(tt.in, now)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && !got.Equal(tt.want) {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}
