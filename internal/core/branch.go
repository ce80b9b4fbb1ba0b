package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/valter-silva-au/workpulse/pkg/models"
)

var (
	// ErrMissingSubject is returned when a run has no subject identifier.
	ErrMissingSubject = errors.New("subject identifier is required")
	// ErrMissingDate is returned when a date-scoped branch has no target date.
	ErrMissingDate = errors.New("target date is required")
	// ErrBranchTimeout is recorded for a branch that outlived its deadline.
	ErrBranchTimeout = errors.New("branch timed out")
)

// BranchInput is the read-only view of a run that a branch works from. The
// error log is the only thing a branch may write besides its own result.
type BranchInput struct {
	Inputs models.RunInputs
	Plan   *models.PlanSlice
	Errors *models.ErrorLog
}

// Branch analyzes one evidence source for a run.
type Branch interface {
	Source() models.SourceType
	Analyze(ctx context.Context, in BranchInput) *models.BranchResult
}

// BranchDeps are the collaborators shared by all analyzer branches.
type BranchDeps struct {
	Retriever  *Retriever
	Matcher    *Matcher
	Judge      Judge
	Prompts    PromptManager
	Digest     DigestConfig
	HybridTopK int
	Logger     *slog.Logger
}

func (d BranchDeps) logger() *slog.Logger {
	if d.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return d.Logger
}

// NewBranches builds the four analyzer branches in report order.
func NewBranches(deps BranchDeps) []Branch {
	return []Branch{
		NewDocumentsBranch(deps),
		NewCodeBranch(deps),
		NewEmailBranch(deps),
		NewChatBranch(deps),
	}
}

// checkInputs returns the error result for a run that is missing its subject
// or target date, or nil when the branch can proceed.
func checkInputs(source models.SourceType, in BranchInput) *models.BranchResult {
	switch {
	case in.Inputs.SubjectID == "":
		return models.FailedBranch(source, ErrMissingSubject.Error())
	case !in.Inputs.HasDate():
		return models.FailedBranch(source, ErrMissingDate.Error())
	}
	return nil
}

// retrievalFailed records a retrieval failure in the run's error log. The
// branch carries on with whatever evidence it has.
func retrievalFailed(in BranchInput, source models.SourceType, what string, err error) {
	if in.Errors != nil {
		in.Errors.Append(fmt.Sprintf("[%s] retrieving %s: %v", source, what, err))
	}
}

// noActivity is the judgment for a branch that found no evidence at all.
func noActivity(source models.SourceType, in BranchInput) *models.BranchResult {
	return &models.BranchResult{
		Source: source,
		Judgment: map[string]any{
			"summary":        fmt.Sprintf("No %s activity recorded on %s.", source, in.Inputs.DateString()),
			"no_activity":    true,
			"activity_count": 0,
		},
	}
}

// basePromptData fills the fields common to every branch prompt.
func basePromptData(in BranchInput) PromptData {
	name := in.Inputs.SubjectName
	if name == "" {
		name = in.Inputs.SubjectID
	}
	return PromptData{
		SubjectID:   in.Inputs.SubjectID,
		SubjectName: name,
		Date:        in.Inputs.DateString(),
		ProjectID:   in.Inputs.ProjectID,
		Plan:        planText(in.Plan),
		Sections:    map[string]string{},
	}
}

// judge renders kind and asks the judge for a verdict. Any failure becomes
// the branch's error result.
func (d BranchDeps) judge(ctx context.Context, source models.SourceType, kind PromptKind, data PromptData, evidence int) *models.BranchResult {
	prompt, err := d.Prompts.Render(kind, data)
	if err != nil {
		return models.FailedBranch(source, err.Error())
	}
	start := time.Now()
	verdict, err := d.Judge.Judge(ctx, JudgeRequest{Task: string(kind), Prompt: prompt})
	if err != nil {
		d.logger().Warn("judgment failed", "source", string(source), "error", err)
		return models.FailedBranch(source, fmt.Sprintf("%s judgment failed: %v", source, err))
	}
	d.logger().Debug("judgment done", "source", string(source), "took", time.Since(start))
	return &models.BranchResult{Source: source, Judgment: verdict, EvidenceCount: evidence}
}
