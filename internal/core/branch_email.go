package core

import (
	"context"

	"github.com/valter-silva-au/workpulse/pkg/models"
)

// EmailBranch judges the emails a subject sent on the target day.
type EmailBranch struct {
	deps BranchDeps
}

// NewEmailBranch creates the email branch.
func NewEmailBranch(deps BranchDeps) *EmailBranch {
	return &EmailBranch{deps: deps}
}

// Source implements Branch.
func (b *EmailBranch) Source() models.SourceType { return models.SourceEmail }

// Analyze implements Branch.
func (b *EmailBranch) Analyze(ctx context.Context, in BranchInput) *models.BranchResult {
	source := b.Source()
	if res := checkInputs(source, in); res != nil {
		return res
	}
	mails, err := b.deps.Retriever.Emails(ctx, in.Inputs.SubjectID, in.Inputs.TargetDate)
	if err != nil {
		retrievalFailed(in, source, "emails", err)
	}
	if len(mails) == 0 {
		return noActivity(source, in)
	}
	data := basePromptData(in)
	data.Evidence = Digest(mails, b.deps.Digest,
		metaLabel(models.MetaTitle, "subject", "to", b.deps.Retriever.Sources().Emails.DateField))
	return b.deps.judge(ctx, source, PromptEmail, data, len(mails))
}
