package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/valter-silva-au/workpulse/pkg/models"
)

type runnerMock struct {
	runFn func(ctx context.Context, in models.RunInputs) *models.RunOutcome
}

func (m *runnerMock) Run(ctx context.Context, in models.RunInputs) *models.RunOutcome {
	return m.runFn(ctx, in)
}

func outcome(in models.RunInputs, rep *models.Report, errs ...string) *models.RunOutcome {
	rc := models.NewRunContext(in)
	for _, e := range errs {
		rc.Errors.Append(e)
	}
	return &models.RunOutcome{Context: rc, Report: rep, ErrorLog: rc.Errors.String()}
}

func resetDailyFlags() {
	dailySubject, dailyName, dailyDate, dailyProject = "", "", "", ""
	dailyJSON, dailyTUI = false, false
}

func TestDailyCmd_NilRunner(t *testing.T) {
	orig := Runner
	defer func() { Runner = orig }()
	Runner = nil

	err := dailyCmd.RunE(dailyCmd, nil)
	if err == nil || !strings.Contains(err.Error(), "not initialized") {
		t.Fatalf("expected not initialized error, got %v", err)
	}
}

func TestDailyCmd_PassesInputs(t *testing.T) {
	orig := Runner
	defer func() { Runner = orig; resetDailyFlags() }()
	defer dailyCmd.SetOut(nil)

	var got models.RunInputs
	Runner = &runnerMock{runFn: func(_ context.Context, in models.RunInputs) *models.RunOutcome {
		got = in
		return outcome(in, &models.Report{
			Kind: models.ReportDaily, SubjectID: in.SubjectID, PeriodStart: in.DateString(),
			PeriodEnd: in.DateString(), Success: true, Content: map[string]any{"summary": "ok"},
		}, "email: connection refused")
	}}
	dailySubject, dailyName, dailyDate, dailyProject = " u1 ", "Kim", "2026-10-19", "P1"
	var out bytes.Buffer
	dailyCmd.SetOut(&out)

	if err := dailyCmd.RunE(dailyCmd, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := models.RunInputs{SubjectID: "u1", SubjectName: "Kim", ProjectID: "P1"}
	if got.SubjectID != want.SubjectID || got.SubjectName != want.SubjectName || got.ProjectID != want.ProjectID {
		t.Errorf("inputs = %+v", got)
	}
	if got.DateString() != "2026-10-19" {
		t.Errorf("date = %s", got.DateString())
	}
	if !strings.Contains(out.String(), "daily report for u1 (2026-10-19)") {
		t.Errorf("missing report header:\n%s", out.String())
	}
	if !strings.Contains(out.String(), "email: connection refused") {
		t.Errorf("missing error log:\n%s", out.String())
	}
}

func TestDailyCmd_JSON(t *testing.T) {
	orig := Runner
	defer func() { Runner = orig; resetDailyFlags() }()
	defer dailyCmd.SetOut(nil)

	Runner = &runnerMock{runFn: func(_ context.Context, in models.RunInputs) *models.RunOutcome {
		return outcome(in, &models.Report{Kind: models.ReportDaily, SubjectID: in.SubjectID, Success: true}, "chat: timeout")
	}}
	dailySubject, dailyDate, dailyJSON = "u1", "2026-10-19", true
	var out bytes.Buffer
	dailyCmd.SetOut(&out)

	if err := dailyCmd.RunE(dailyCmd, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var decoded struct {
		Report   models.Report `json:"report"`
		ErrorLog []string      `json:"error_log"`
	}
	if err := json.Unmarshal(out.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out.String())
	}
	if !decoded.Report.Success || decoded.Report.SubjectID != "u1" {
		t.Errorf("report = %+v", decoded.Report)
	}
	if len(decoded.ErrorLog) != 1 || decoded.ErrorLog[0] != "chat: timeout" {
		t.Errorf("error_log = %v", decoded.ErrorLog)
	}
}

func TestDailyCmd_FailedReport(t *testing.T) {
	orig := Runner
	defer func() { Runner = orig; resetDailyFlags() }()
	defer dailyCmd.SetOut(nil)

	Runner = &runnerMock{runFn: func(_ context.Context, in models.RunInputs) *models.RunOutcome {
		return outcome(in, &models.Report{Kind: models.ReportDaily, SubjectID: in.SubjectID, Error: "judge unavailable"})
	}}
	dailySubject, dailyDate = "u1", "2026-10-19"
	var out bytes.Buffer
	dailyCmd.SetOut(&out)

	err := dailyCmd.RunE(dailyCmd, nil)
	if err == nil || !strings.Contains(err.Error(), "daily report failed") {
		t.Fatalf("expected failure, got %v", err)
	}
	if !strings.Contains(out.String(), "FAILED: judge unavailable") {
		t.Errorf("output = %q", out.String())
	}
}

func TestDailyCmd_InvalidDate(t *testing.T) {
	orig := Runner
	defer func() { Runner = orig; resetDailyFlags() }()

	called := false
	Runner = &runnerMock{runFn: func(_ context.Context, in models.RunInputs) *models.RunOutcome {
		called = true
		return outcome(in, nil)
	}}
	dailySubject, dailyDate = "u1", "yesterday"

	if err := dailyCmd.RunE(dailyCmd, nil); err == nil {
		t.Fatal("expected error for invalid date")
	}
	if called {
		t.Error("runner should not be called with an invalid date")
	}
}
