package core

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/valter-silva-au/workpulse/pkg/models"
)

func dailyReport(subject, date, summary string) *models.Report {
	return &models.Report{
		Kind:        models.ReportDaily,
		SubjectID:   subject,
		SubjectName: subject,
		ProjectID:   "P1",
		PeriodStart: date,
		PeriodEnd:   date,
		Success:     true,
		Content:     map[string]any{"summary": summary},
		GeneratedAt: time.Date(2026, 10, 19, 18, 0, 0, 0, time.UTC),
	}
}

func TestReportArchive_SaveAndList(t *testing.T) {
	r := newTestRetriever(t, nil)
	archive := NewReportArchive(r, nil)
	ctx := context.Background()

	for _, rep := range []*models.Report{
		dailyReport("u1", "2026-10-16", "friday"),
		dailyReport("u1", "2026-10-13", "monday"),
		dailyReport("u1", "2026-10-20", "next week"),
		dailyReport("u2", "2026-10-14", "someone else"),
		{Kind: models.ReportDaily, SubjectID: "u1", PeriodStart: "2026-10-14", PeriodEnd: "2026-10-14", Error: "llm down"},
	} {
		if err := archive.Save(ctx, rep); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}
	// Saving the same period again replaces the earlier copy.
	if err := archive.Save(ctx, dailyReport("u1", "2026-10-13", "monday v2")); err != nil {
		t.Fatal(err)
	}

	from, to := SpanRange(day("2026-10-13"), day("2026-10-17"))
	got, err := archive.List(ctx, models.ReportDaily, "u1", from, to)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d reports, want 2: %+v", len(got), got)
	}
	if got[0].PeriodStart != "2026-10-13" || got[0].Content["summary"] != "monday v2" {
		t.Errorf("first = %+v", got[0])
	}
	if got[1].PeriodStart != "2026-10-16" {
		t.Errorf("second = %+v", got[1])
	}
}

func newPeriodFixture(t *testing.T, judge Judge) (*ReportArchive, *PeriodReporter) {
	t.Helper()
	r := newTestRetriever(t, nil)
	archive := NewReportArchive(r, nil)
	return archive, NewPeriodReporter(archive, stubPlans{plan: testPlan()}, judge, NewPromptManager(""), nil)
}

func TestPeriodReporter_Weekly(t *testing.T) {
	judge := &stubJudge{fn: func(req JudgeRequest) (map[string]any, error) {
		return map[string]any{"title": "Week 42"}, nil
	}}
	archive, pr := newPeriodFixture(t, judge)
	ctx := context.Background()
	for _, rep := range []*models.Report{
		dailyReport("u1", "2026-10-13", "monday work"),
		dailyReport("u1", "2026-10-15", "wednesday work"),
	} {
		if err := archive.Save(ctx, rep); err != nil {
			t.Fatal(err)
		}
	}

	rep := pr.Weekly(ctx, PeriodInputs{SubjectID: "u1", SubjectName: "Kim", ProjectID: "P1",
		Start: day("2026-10-13"), End: day("2026-10-17")})
	if !rep.Success || rep.Content["title"] != "Week 42" || rep.Kind != models.ReportWeekly {
		t.Fatalf("report = %+v", rep)
	}
	prompt := judge.requests()[0].Prompt
	mon, wed := strings.Index(prompt, "monday work"), strings.Index(prompt, "wednesday work")
	if mon < 0 || wed < 0 || mon > wed {
		t.Errorf("daily reports missing or out of order in prompt:\n%s", prompt)
	}

	// The weekly report itself is archived.
	from, to := SpanRange(day("2026-10-13"), day("2026-10-13"))
	weeklies, err := archive.List(ctx, models.ReportWeekly, "u1", from, to)
	if err != nil || len(weeklies) != 1 {
		t.Errorf("archived weeklies = %v, %v", weeklies, err)
	}
}

func TestPeriodReporter_WeeklyFailures(t *testing.T) {
	_, pr := newPeriodFixture(t, &stubJudge{})
	ctx := context.Background()

	tests := []struct {
		name string
		in   PeriodInputs
		want string
	}{
		{"no subject", PeriodInputs{Start: day("2026-10-13"), End: day("2026-10-17")}, "subject"},
		{"no dates", PeriodInputs{SubjectID: "u1"}, "required"},
		{"reversed", PeriodInputs{SubjectID: "u1", Start: day("2026-10-17"), End: day("2026-10-13")}, "before start"},
		{"no dailies", PeriodInputs{SubjectID: "u1", Start: day("2026-10-13"), End: day("2026-10-17")}, "no daily reports"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rep := pr.Weekly(ctx, tt.in)
			if rep == nil || rep.Success || !strings.Contains(rep.Error, tt.want) {
				t.Errorf("report = %+v, want failure mentioning %q", rep, tt.want)
			}
		})
	}
}

func TestPeriodReporter_TeamWeekly(t *testing.T) {
	judge := &stubJudge{}
	archive, pr := newPeriodFixture(t, judge)
	ctx := context.Background()
	if err := archive.Save(ctx, dailyReport("u1", "2026-10-14", "kim shipped login")); err != nil {
		t.Fatal(err)
	}

	rep := pr.TeamWeekly(ctx, TeamInputs{
		TeamName:  "platform",
		ProjectID: "P1",
		Members:   []TeamMember{{ID: "u1", Name: "Kim"}, {ID: "u2", Name: "Lee"}},
		Start:     day("2026-10-13"),
		End:       day("2026-10-17"),
	})
	if !rep.Success || rep.Kind != models.ReportTeamWeekly || rep.SubjectID != "platform" {
		t.Fatalf("report = %+v", rep)
	}
	prompt := judge.requests()[0].Prompt
	for _, want := range []string{"## 01. Kim", "kim shipped login", "## 02. Lee", "(no daily reports in this period)"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}

	empty := pr.TeamWeekly(ctx, TeamInputs{TeamName: "ghosts", Members: []TeamMember{{ID: "x"}},
		Start: day("2026-10-13"), End: day("2026-10-17")})
	if empty.Success {
		t.Error("team with no reports should fail")
	}
}

func TestPeriodReporter_ProgressSummary(t *testing.T) {
	judge := &stubJudge{fn: func(req JudgeRequest) (map[string]any, error) {
		return map[string]any{"summary": "Architecture draft is half done"}, nil
	}}
	archive, pr := newPeriodFixture(t, judge)
	ctx := context.Background()
	for _, rep := range []*models.Report{
		dailyReport("u1", "2026-10-19", "wrote the design overview"),
		dailyReport("u1", "2026-10-20", "another day"),
	} {
		if err := archive.Save(ctx, rep); err != nil {
			t.Fatal(err)
		}
	}

	rep := pr.ProgressSummary(ctx, PeriodInputs{SubjectID: "u1", SubjectName: "Kim", ProjectID: "P1", Start: day("2026-10-19")})
	if !rep.Success || rep.Kind != models.ReportProgress {
		t.Fatalf("report = %+v", rep)
	}
	if rep.PeriodStart != "2026-10-19" || rep.PeriodEnd != "2026-10-19" {
		t.Errorf("period = %s..%s", rep.PeriodStart, rep.PeriodEnd)
	}
	reqs := judge.requests()
	if len(reqs) != 1 || reqs[0].Task != string(PromptProgress) {
		t.Fatalf("judge requests = %+v", reqs)
	}
	prompt := reqs[0].Prompt
	if !strings.Contains(prompt, "wrote the design overview") || strings.Contains(prompt, "another day") {
		t.Errorf("prompt should carry only the 2026-10-19 report:\n%s", prompt)
	}
	if !strings.Contains(prompt, "[1.1] Architecture") {
		t.Errorf("prompt missing plan items:\n%s", prompt)
	}
}

func TestPeriodReporter_ProgressSummaryMissingInputs(t *testing.T) {
	ctx := context.Background()
	withDaily := func(t *testing.T, plans PlanSource) *PeriodReporter {
		t.Helper()
		archive := NewReportArchive(newTestRetriever(t, nil), nil)
		if err := archive.Save(ctx, dailyReport("u1", "2026-10-19", "work")); err != nil {
			t.Fatal(err)
		}
		return NewPeriodReporter(archive, plans, &stubJudge{}, NewPromptManager(""), nil)
	}
	in := PeriodInputs{SubjectID: "u1", SubjectName: "Kim", ProjectID: "P1", Start: day("2026-10-19")}

	tests := []struct {
		name string
		pr   func(t *testing.T) *PeriodReporter
		in   PeriodInputs
		want string
	}{
		{"no daily report", func(t *testing.T) *PeriodReporter {
			_, pr := newPeriodFixture(t, &stubJudge{})
			return pr
		}, in, "no daily report"},
		{"no plan items", func(t *testing.T) *PeriodReporter {
			return withDaily(t, stubPlans{plan: &models.PlanSlice{ProjectID: "P1"}})
		}, in, "no plan items"},
		{"plan lookup fails", func(t *testing.T) *PeriodReporter {
			return withDaily(t, stubPlans{err: errors.New("store offline")})
		}, in, "store offline"},
		{"no project", func(t *testing.T) *PeriodReporter {
			return withDaily(t, stubPlans{plan: testPlan()})
		}, PeriodInputs{SubjectID: "u1", Start: day("2026-10-19")}, "plan is required"},
		{"no date", func(t *testing.T) *PeriodReporter {
			return withDaily(t, stubPlans{plan: testPlan()})
		}, PeriodInputs{SubjectID: "u1", ProjectID: "P1"}, "date"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rep := tt.pr(t).ProgressSummary(ctx, tt.in)
			if rep == nil || rep.Success || !strings.Contains(rep.Error, tt.want) {
				t.Errorf("report = %+v, want failure mentioning %q", rep, tt.want)
			}
		})
	}
}
