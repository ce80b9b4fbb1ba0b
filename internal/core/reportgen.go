package core

import (
	"context"
	"fmt"
	"time"

	"github.com/valter-silva-au/workpulse/pkg/models"
)

// ReportGenerator turns a joined run context into the daily report.
type ReportGenerator interface {
	Generate(ctx context.Context, rc *models.RunContext) (*models.Report, error)
}

type reportGenerator struct {
	judge   Judge
	prompts PromptManager
	now     func() time.Time
}

// NewReportGenerator creates a ReportGenerator that asks judge for the daily
// synthesis of all branch results.
func NewReportGenerator(judge Judge, prompts PromptManager) ReportGenerator {
	return &reportGenerator{judge: judge, prompts: prompts, now: time.Now}
}

// branchSectionTitles names each branch result in the report prompt.
var branchSectionTitles = map[models.SourceType]string{
	models.SourceDocument:  "1. Documents",
	models.SourceCodeEvent: "2. Code activity",
	models.SourceEmail:     "3. Email",
	models.SourceChatPost:  "4. Chat",
}

// Generate renders every branch slot, success or error alike, into the
// daily report prompt.
func (g *reportGenerator) Generate(ctx context.Context, rc *models.RunContext) (*models.Report, error) {
	in := rc.Inputs
	data := PromptData{
		SubjectID:   in.SubjectID,
		SubjectName: in.SubjectName,
		Date:        in.DateString(),
		ProjectID:   in.ProjectID,
		Plan:        planText(rc.Plan),
		Sections:    make(map[string]string, len(models.BranchSources)+1),
	}
	if data.SubjectName == "" {
		data.SubjectName = in.SubjectID
	}
	for _, s := range models.BranchSources {
		value := (*rc.Slot(s)).Value()
		if value == nil {
			value = map[string]any{"error": "no result", "type": string(s)}
		}
		data.Sections[branchSectionTitles[s]] = jsonText(value)
	}
	if errs := rc.Errors.String(); errs != "" {
		data.Sections["5. Run errors"] = errs
	}

	prompt, err := g.prompts.Render(PromptDaily, data)
	if err != nil {
		return nil, err
	}
	content, err := g.judge.Judge(ctx, JudgeRequest{Task: string(PromptDaily), Prompt: prompt})
	if err != nil {
		return nil, fmt.Errorf("generating daily report: %w", err)
	}
	return &models.Report{
		Kind:        models.ReportDaily,
		SubjectID:   in.SubjectID,
		SubjectName: in.SubjectName,
		ProjectID:   in.ProjectID,
		PeriodStart: in.DateString(),
		PeriodEnd:   in.DateString(),
		Success:     true,
		Content:     content,
		GeneratedAt: g.now().UTC(),
	}, nil
}
