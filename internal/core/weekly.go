package core

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/valter-silva-au/workpulse/pkg/models"
)

// PeriodInputs select the subject and inclusive date span of a period report.
type PeriodInputs struct {
	SubjectID   string
	SubjectName string
	ProjectID   string
	Start       time.Time
	End         time.Time
}

// TeamMember identifies one member of a team report.
type TeamMember struct {
	ID   string
	Name string
}

// TeamInputs select the team and span of a team-weekly report.
type TeamInputs struct {
	TeamName  string
	ProjectID string
	Members   []TeamMember
	Start     time.Time
	End       time.Time
}

// PeriodReporter synthesizes weekly reports and one-line progress summaries
// from archived daily reports. Every operation returns a report; failures
// are flagged on it.
type PeriodReporter struct {
	archive ReportStore
	plans   PlanSource
	judge   Judge
	prompts PromptManager
	logger  *slog.Logger
	now     func() time.Time
}

// NewPeriodReporter creates a PeriodReporter. plans may be nil.
func NewPeriodReporter(archive ReportStore, plans PlanSource, judge Judge, prompts PromptManager, logger *slog.Logger) *PeriodReporter {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &PeriodReporter{archive: archive, plans: plans, judge: judge, prompts: prompts, logger: logger, now: time.Now}
}

func validSpan(start, end time.Time) error {
	if start.IsZero() || end.IsZero() {
		return fmt.Errorf("%w: period start and end are required", ErrMissingDate)
	}
	if end.Before(start) {
		return fmt.Errorf("period end %s is before start %s", end.Format(models.DateLayout), start.Format(models.DateLayout))
	}
	return nil
}

// Weekly builds the weekly report of one subject.
func (p *PeriodReporter) Weekly(ctx context.Context, in PeriodInputs) *models.Report {
	rep := &models.Report{
		Kind:        models.ReportWeekly,
		SubjectID:   in.SubjectID,
		SubjectName: in.SubjectName,
		ProjectID:   in.ProjectID,
		PeriodStart: in.Start.Format(models.DateLayout),
		PeriodEnd:   in.End.Format(models.DateLayout),
	}
	if in.SubjectID == "" {
		return p.fail(rep, ErrMissingSubject.Error())
	}
	if err := validSpan(in.Start, in.End); err != nil {
		return p.fail(rep, err.Error())
	}

	from, to := SpanRange(in.Start, in.End)
	dailies, err := p.archive.List(ctx, models.ReportDaily, in.SubjectID, from, to)
	if err != nil {
		return p.fail(rep, err.Error())
	}
	if len(dailies) == 0 {
		return p.fail(rep, fmt.Sprintf("no daily reports for %s between %s and %s", in.SubjectID, rep.PeriodStart, rep.PeriodEnd))
	}

	data := PromptData{
		SubjectID:   in.SubjectID,
		SubjectName: nameOr(in.SubjectName, in.SubjectID),
		PeriodStart: rep.PeriodStart,
		PeriodEnd:   rep.PeriodEnd,
		ProjectID:   in.ProjectID,
		Plan:        planText(p.plan(ctx, in.ProjectID, nameOr(in.SubjectName, in.SubjectID))),
		Evidence:    dailyDigest(dailies),
	}
	return p.synthesize(ctx, rep, PromptWeekly, data)
}

// TeamWeekly builds one report for a team from each member's daily reports.
// Members without reports are listed as such rather than failing the team.
func (p *PeriodReporter) TeamWeekly(ctx context.Context, in TeamInputs) *models.Report {
	rep := &models.Report{
		Kind:        models.ReportTeamWeekly,
		SubjectID:   in.TeamName,
		SubjectName: in.TeamName,
		ProjectID:   in.ProjectID,
		PeriodStart: in.Start.Format(models.DateLayout),
		PeriodEnd:   in.End.Format(models.DateLayout),
	}
	if in.TeamName == "" || len(in.Members) == 0 {
		return p.fail(rep, "team name and at least one member are required")
	}
	if err := validSpan(in.Start, in.End); err != nil {
		return p.fail(rep, err.Error())
	}

	from, to := SpanRange(in.Start, in.End)
	data := PromptData{
		SubjectID:   in.TeamName,
		SubjectName: in.TeamName,
		PeriodStart: rep.PeriodStart,
		PeriodEnd:   rep.PeriodEnd,
		ProjectID:   in.ProjectID,
		Plan:        planText(p.plan(ctx, in.ProjectID, "")),
		Sections:    make(map[string]string, len(in.Members)),
	}
	found := 0
	for i, m := range in.Members {
		title := fmt.Sprintf("%02d. %s", i+1, nameOr(m.Name, m.ID))
		dailies, err := p.archive.List(ctx, models.ReportDaily, m.ID, from, to)
		switch {
		case err != nil:
			data.Sections[title] = fmt.Sprintf("(reports unavailable: %v)", err)
		case len(dailies) == 0:
			data.Sections[title] = "(no daily reports in this period)"
		default:
			found++
			data.Sections[title] = dailyDigest(dailies)
		}
	}
	if found == 0 {
		return p.fail(rep, fmt.Sprintf("no daily reports for team %s between %s and %s", in.TeamName, rep.PeriodStart, rep.PeriodEnd))
	}
	return p.synthesize(ctx, rep, PromptTeamWeekly, data)
}

// ProgressSummary condenses the archived daily report of in.Start into a
// one-line progress statement against the subject's plan. in.End is
// ignored. A missing daily report or plan fails the summary.
func (p *PeriodReporter) ProgressSummary(ctx context.Context, in PeriodInputs) *models.Report {
	date := in.Start.Format(models.DateLayout)
	rep := &models.Report{
		Kind:        models.ReportProgress,
		SubjectID:   in.SubjectID,
		SubjectName: in.SubjectName,
		ProjectID:   in.ProjectID,
		PeriodStart: date,
		PeriodEnd:   date,
	}
	if in.SubjectID == "" {
		return p.fail(rep, ErrMissingSubject.Error())
	}
	if in.Start.IsZero() {
		return p.fail(rep, ErrMissingDate.Error())
	}

	from, to := DayRange(in.Start)
	dailies, err := p.archive.List(ctx, models.ReportDaily, in.SubjectID, from, to)
	if err != nil {
		return p.fail(rep, err.Error())
	}
	if len(dailies) == 0 {
		return p.fail(rep, fmt.Sprintf("no daily report for %s on %s", in.SubjectID, date))
	}

	name := nameOr(in.SubjectName, in.SubjectID)
	if p.plans == nil || in.ProjectID == "" {
		return p.fail(rep, "a project plan is required for a progress summary")
	}
	plan, err := p.plans.PlanFor(ctx, in.ProjectID, name)
	if err != nil {
		return p.fail(rep, fmt.Sprintf("loading plan: %v", err))
	}
	if plan == nil || len(plan.Items) == 0 {
		return p.fail(rep, fmt.Sprintf("no plan items for %s in project %s", name, in.ProjectID))
	}

	data := PromptData{
		SubjectID:   in.SubjectID,
		SubjectName: name,
		Date:        date,
		ProjectID:   in.ProjectID,
		Plan:        planText(plan),
		Evidence:    dailyDigest(dailies[len(dailies)-1:]),
	}
	return p.synthesize(ctx, rep, PromptProgress, data)
}

func (p *PeriodReporter) synthesize(ctx context.Context, rep *models.Report, kind PromptKind, data PromptData) *models.Report {
	prompt, err := p.prompts.Render(kind, data)
	if err != nil {
		return p.fail(rep, err.Error())
	}
	content, err := p.judge.Judge(ctx, JudgeRequest{Task: string(kind), Prompt: prompt})
	if err != nil {
		return p.fail(rep, fmt.Sprintf("generating %s report: %v", rep.Kind, err))
	}
	rep.Success = true
	rep.Content = content
	rep.GeneratedAt = p.now().UTC()
	if err := p.archive.Save(ctx, rep); err != nil {
		p.logger.Warn("archiving period report failed", "kind", string(rep.Kind), "error", err)
	}
	return rep
}

func (p *PeriodReporter) plan(ctx context.Context, projectID, assignee string) *models.PlanSlice {
	if p.plans == nil || projectID == "" {
		return nil
	}
	plan, err := p.plans.PlanFor(ctx, projectID, assignee)
	if err != nil {
		p.logger.Warn("plan unavailable for period report", "project", projectID, "error", err)
		return nil
	}
	return plan
}

func (p *PeriodReporter) fail(rep *models.Report, msg string) *models.Report {
	rep.Success = false
	rep.Error = msg
	rep.GeneratedAt = p.now().UTC()
	p.logger.Warn("period report failed", "kind", string(rep.Kind), "subject", rep.SubjectID, "error", msg)
	return rep
}

// dailyDigest renders daily reports oldest first, one block per day.
func dailyDigest(reps []*models.Report) string {
	var sb strings.Builder
	for _, r := range reps {
		fmt.Fprintf(&sb, "### %s\n%s\n\n", r.PeriodStart, jsonText(r.Content))
	}
	return strings.TrimRight(sb.String(), "\n")
}

func nameOr(name, id string) string {
	if strings.TrimSpace(name) != "" {
		return name
	}
	return id
}
