package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/valter-silva-au/workpulse/pkg/models"
)

// DocumentsBranch judges the documents a subject modified on the target day
// against the deliverables of their plan slice. Matched deliverables get
// their representative files searched again for quality evidence.
type DocumentsBranch struct {
	deps BranchDeps
}

// NewDocumentsBranch creates the documents branch.
func NewDocumentsBranch(deps BranchDeps) *DocumentsBranch {
	return &DocumentsBranch{deps: deps}
}

// Source implements Branch.
func (b *DocumentsBranch) Source() models.SourceType { return models.SourceDocument }

// MatchDeliverables retrieves the subject's documents for the day and assigns
// them to the plan's deliverables, reduced to representatives.
func (b *DocumentsBranch) MatchDeliverables(ctx context.Context, in BranchInput) (*models.MatchResult, []models.Artifact, error) {
	docs, err := b.deps.Retriever.Documents(ctx, in.Inputs.SubjectID, in.Inputs.TargetDate)
	if err != nil {
		return nil, nil, err
	}
	var labels []string
	if in.Plan != nil {
		labels = in.Plan.Labels()
	}
	res := b.deps.Matcher.Representatives(b.deps.Matcher.Match(labels, docs))
	return res, docs, nil
}

// Analyze implements Branch.
func (b *DocumentsBranch) Analyze(ctx context.Context, in BranchInput) *models.BranchResult {
	source := b.Source()
	if res := checkInputs(source, in); res != nil {
		return res
	}

	match, docs, err := b.MatchDeliverables(ctx, in)
	if err != nil {
		retrievalFailed(in, source, "documents", err)
	}
	if len(docs) == 0 {
		return noActivity(source, in)
	}

	data := basePromptData(in)
	data.Evidence = Digest(docs, b.deps.Digest, metaLabel(models.MetaFilename, models.MetaTitle, b.deps.Retriever.Sources().Documents.DateField))
	data.Sections["Deliverable matching"] = matchText(match)

	if matched := match.Matched(); len(matched) > 0 {
		quality, err := b.deps.Retriever.HybridSearch(ctx, b.deps.Retriever.Sources().Documents, source,
			matched, representativeFiles(match), b.deps.HybridTopK)
		if err != nil {
			retrievalFailed(in, source, "quality evidence", err)
		} else if len(quality) > 0 {
			data.Sections["Quality evidence"] = Digest(quality, b.deps.Digest, metaLabel(models.MetaFilename))
		}
	}
	return b.deps.judge(ctx, source, PromptDocuments, data, len(docs))
}

// representativeFiles lists the distinct filenames kept as representatives.
func representativeFiles(res *models.MatchResult) []string {
	seen := make(map[string]bool)
	var out []string
	for _, d := range res.Deliverables {
		for _, sa := range d.Artifacts {
			if f := sa.Artifact.Filename(); f != "" && !seen[f] {
				seen[f] = true
				out = append(out, f)
			}
		}
	}
	return out
}

// matchText renders a match result for a prompt.
func matchText(res *models.MatchResult) string {
	if res == nil || len(res.Deliverables) == 0 {
		return "(no deliverables in plan)"
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "matched %d of %d documents (%.0f%%)\n", res.TotalMatched, res.TotalArtifacts, res.MatchingRate()*100)
	for _, d := range res.Deliverables {
		if len(d.Artifacts) == 0 {
			fmt.Fprintf(&sb, "- %s: no evidence\n", d.Label)
			continue
		}
		files := make([]string, 0, len(d.Artifacts))
		for _, sa := range d.Artifacts {
			name := sa.Artifact.Filename()
			if name == "" {
				name = sa.Artifact.ID
			}
			files = append(files, fmt.Sprintf("%s (%.3f, %s)", name, sa.Score, sa.MatchType))
		}
		fmt.Fprintf(&sb, "- %s: %s\n", d.Label, strings.Join(files, "; "))
	}
	return strings.TrimRight(sb.String(), "\n")
}
