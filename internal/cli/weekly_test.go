package cli

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/valter-silva-au/workpulse/internal/core"
	"github.com/valter-silva-au/workpulse/pkg/models"
)

type periodsMock struct {
	weeklyFn     func(ctx context.Context, in core.PeriodInputs) *models.Report
	teamWeeklyFn func(ctx context.Context, in core.TeamInputs) *models.Report
	progressFn   func(ctx context.Context, in core.PeriodInputs) *models.Report
}

func (m *periodsMock) Weekly(ctx context.Context, in core.PeriodInputs) *models.Report {
	return m.weeklyFn(ctx, in)
}

func (m *periodsMock) TeamWeekly(ctx context.Context, in core.TeamInputs) *models.Report {
	return m.teamWeeklyFn(ctx, in)
}

func (m *periodsMock) ProgressSummary(ctx context.Context, in core.PeriodInputs) *models.Report {
	return m.progressFn(ctx, in)
}

func resetWeeklyFlags() {
	weeklySubject, weeklyName, weeklyProject, weeklyFrom, weeklyTo = "", "", "", "", ""
	weeklyJSON = false
	teamName, teamMembers = "", nil
}

func TestPeriodFlags(t *testing.T) {
	defer resetWeeklyFlags()
	now := time.Date(2026, 10, 21, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name, from, to string
		wantStart      string
		wantEnd        string
	}{
		{"defaults to current week", "", "", "2026-10-19", "2026-10-25"},
		{"from only", "2026-10-05", "", "2026-10-05", "2026-10-11"},
		{"to only", "", "2026-10-14", "2026-10-12", "2026-10-14"},
		{"explicit span", "2026-10-01", "2026-10-10", "2026-10-01", "2026-10-10"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			weeklyFrom, weeklyTo = tt.from, tt.to
			start, end, err := periodFlags(now)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if start.Format(models.DateLayout) != tt.wantStart || end.Format(models.DateLayout) != tt.wantEnd {
				t.Errorf("got %s..%s, want %s..%s", start.Format(models.DateLayout), end.Format(models.DateLayout), tt.wantStart, tt.wantEnd)
			}
		})
	}

	weeklyFrom, weeklyTo = "monday", ""
	if _, _, err := periodFlags(now); err == nil {
		t.Error("expected error for invalid --from")
	}
}

func TestParseMembers(t *testing.T) {
	got, err := parseMembers([]string{"u1=Kim Minji", " u2 ", "u3= Lee "})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []core.TeamMember{{ID: "u1", Name: "Kim Minji"}, {ID: "u2"}, {ID: "u3", Name: "Lee"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("members mismatch (-want +got):\n%s", diff)
	}

	if _, err := parseMembers([]string{"=Kim"}); err == nil {
		t.Error("expected error for empty member id")
	}
}

func TestWeeklyCmd(t *testing.T) {
	orig, origRec := Periods, Recorder
	defer func() { Periods, Recorder = orig, origRec; resetWeeklyFlags() }()
	defer weeklyCmd.SetOut(nil)
	Recorder = nil

	var got core.PeriodInputs
	Periods = &periodsMock{weeklyFn: func(_ context.Context, in core.PeriodInputs) *models.Report {
		got = in
		return &models.Report{Kind: models.ReportWeekly, SubjectID: in.SubjectID, Success: true,
			PeriodStart: in.Start.Format(models.DateLayout), PeriodEnd: in.End.Format(models.DateLayout)}
	}}
	weeklySubject, weeklyName, weeklyProject = "u1", "Kim", "P1"
	weeklyFrom, weeklyTo = "2026-10-12", "2026-10-18"
	var out bytes.Buffer
	weeklyCmd.SetOut(&out)

	if err := weeklyCmd.RunE(weeklyCmd, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.SubjectID != "u1" || got.SubjectName != "Kim" || got.ProjectID != "P1" {
		t.Errorf("inputs = %+v", got)
	}
	if !strings.Contains(out.String(), "weekly report for u1 (2026-10-12 to 2026-10-18)") {
		t.Errorf("output = %q", out.String())
	}
}

func TestWeeklyCmd_Failure(t *testing.T) {
	orig, origRec := Periods, Recorder
	defer func() { Periods, Recorder = orig, origRec; resetWeeklyFlags() }()
	defer weeklyCmd.SetOut(nil)
	Recorder = nil
	weeklyCmd.SetOut(&bytes.Buffer{})

	Periods = &periodsMock{weeklyFn: func(_ context.Context, in core.PeriodInputs) *models.Report {
		return &models.Report{Kind: models.ReportWeekly, SubjectID: in.SubjectID, Error: "no daily reports found"}
	}}
	weeklySubject = "u1"

	err := weeklyCmd.RunE(weeklyCmd, nil)
	if err == nil || !strings.Contains(err.Error(), "weekly report failed") {
		t.Errorf("expected failure, got %v", err)
	}
}

func TestTeamWeeklyCmd(t *testing.T) {
	orig, origRec := Periods, Recorder
	defer func() { Periods, Recorder = orig, origRec; resetWeeklyFlags() }()
	defer teamWeeklyCmd.SetOut(nil)
	Recorder = nil
	teamWeeklyCmd.SetOut(&bytes.Buffer{})

	var got core.TeamInputs
	Periods = &periodsMock{teamWeeklyFn: func(_ context.Context, in core.TeamInputs) *models.Report {
		got = in
		return &models.Report{Kind: models.ReportTeamWeekly, SubjectID: in.TeamName, Success: true}
	}}
	teamName, weeklyProject = "Platform", "P1"
	teamMembers = []string{"u1=Kim", "u2=Lee"}

	if err := teamWeeklyCmd.RunE(teamWeeklyCmd, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.TeamName != "Platform" || len(got.Members) != 2 || got.Members[1].Name != "Lee" {
		t.Errorf("inputs = %+v", got)
	}
	if got.End.Sub(got.Start) != 6*24*time.Hour {
		t.Errorf("default span should be one week, got %s..%s", got.Start, got.End)
	}
}

func TestTeamWeeklyCmd_RequiresMembers(t *testing.T) {
	orig := Periods
	defer func() { Periods = orig; resetWeeklyFlags() }()
	Periods = &periodsMock{}

	err := teamWeeklyCmd.RunE(teamWeeklyCmd, nil)
	if err == nil || !strings.Contains(err.Error(), "--member") {
		t.Errorf("expected member error, got %v", err)
	}
}
