package core

import (
	"context"

	"github.com/valter-silva-au/workpulse/pkg/models"
)

// ChatBranch judges the chat posts a subject wrote on the target day.
type ChatBranch struct {
	deps BranchDeps
}

// NewChatBranch creates the chat branch.
func NewChatBranch(deps BranchDeps) *ChatBranch {
	return &ChatBranch{deps: deps}
}

// Source implements Branch.
func (b *ChatBranch) Source() models.SourceType { return models.SourceChatPost }

// Analyze implements Branch.
func (b *ChatBranch) Analyze(ctx context.Context, in BranchInput) *models.BranchResult {
	source := b.Source()
	if res := checkInputs(source, in); res != nil {
		return res
	}
	posts, err := b.deps.Retriever.ChatPosts(ctx, in.Inputs.SubjectID, in.Inputs.TargetDate)
	if err != nil {
		retrievalFailed(in, source, "chat posts", err)
	}
	if len(posts) == 0 {
		return noActivity(source, in)
	}
	data := basePromptData(in)
	data.Evidence = Digest(posts, b.deps.Digest,
		metaLabel("channel", b.deps.Retriever.Sources().Chat.DateField))
	return b.deps.judge(ctx, source, PromptChat, data, len(posts))
}
