package core

import (
	"context"

	"github.com/valter-silva-au/workpulse/pkg/models"
)

// readmeDigestItems bounds how many repository READMEs reach the prompt.
const readmeDigestItems = 5

// CodeBranch judges a subject's commits and pull-request events for the day,
// with commit statistics and the READMEs of the repositories touched.
type CodeBranch struct {
	deps BranchDeps
}

// NewCodeBranch creates the code activity branch.
func NewCodeBranch(deps BranchDeps) *CodeBranch {
	return &CodeBranch{deps: deps}
}

// Source implements Branch.
func (b *CodeBranch) Source() models.SourceType { return models.SourceCodeEvent }

// Analyze implements Branch.
func (b *CodeBranch) Analyze(ctx context.Context, in BranchInput) *models.BranchResult {
	source := b.Source()
	if res := checkInputs(source, in); res != nil {
		return res
	}

	src := b.deps.Retriever.Sources().Code
	events, err := b.deps.Retriever.CodeEvents(ctx, in.Inputs.SubjectID, in.Inputs.TargetDate)
	if err != nil {
		retrievalFailed(in, source, "code events", err)
	}
	if len(events) == 0 {
		return noActivity(source, in)
	}

	stats := ComputeCommitStats(events, src.DateField)
	data := basePromptData(in)
	data.Evidence = Digest(events, b.deps.Digest, metaLabel(models.MetaRepo, models.MetaType, models.MetaTitle, src.DateField))
	data.Sections["Commit statistics"] = stats.String()

	readmes, err := b.deps.Retriever.Readmes(ctx, stats.Repos)
	if err != nil {
		retrievalFailed(in, source, "repository READMEs", err)
	}
	if len(readmes) > 0 {
		cfg := b.deps.Digest
		cfg.MaxItems = readmeDigestItems
		data.Sections["Repository READMEs"] = Digest(readmes, cfg, metaLabel(models.MetaRepo))
	}
	return b.deps.judge(ctx, source, PromptCode, data, len(events))
}
