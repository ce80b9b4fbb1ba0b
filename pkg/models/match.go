package models

// MatchType records which comparison produced a match score.
type MatchType string

const (
	MatchExactSubstring     MatchType = "exact-substring"
	MatchFilenameSimilarity MatchType = "filename-similarity"
	MatchContentSimilarity  MatchType = "content-similarity"
)

// ScoredArtifact is an artifact annotated with its affinity to one deliverable.
type ScoredArtifact struct {
	Artifact  Artifact  `json:"artifact"`
	Score     float64   `json:"score"`
	MatchType MatchType `json:"match_type"`
}

// DeliverableMatch is the evidence assigned to a single deliverable label,
// best match first.
type DeliverableMatch struct {
	Label     string           `json:"label"`
	Artifacts []ScoredArtifact `json:"artifacts"`
}

// MatchResult is the outcome of matching one artifact pool against a set of
// deliverable labels. Deliverables appear in input order, including those
// with no assigned artifacts.
type MatchResult struct {
	Deliverables   []DeliverableMatch `json:"deliverables"`
	TotalArtifacts int                `json:"total_artifacts"`
	TotalMatched   int                `json:"total_matched"`
}

// Matched returns the labels that received at least one artifact.
func (r *MatchResult) Matched() []string {
	var out []string
	for _, d := range r.Deliverables {
		if len(d.Artifacts) > 0 {
			out = append(out, d.Label)
		}
	}
	return out
}

// Unmatched returns the labels with no assigned artifacts.
func (r *MatchResult) Unmatched() []string {
	var out []string
	for _, d := range r.Deliverables {
		if len(d.Artifacts) == 0 {
			out = append(out, d.Label)
		}
	}
	return out
}

// Lookup returns the match entry for label, if present.
func (r *MatchResult) Lookup(label string) (DeliverableMatch, bool) {
	for _, d := range r.Deliverables {
		if d.Label == label {
			return d, true
		}
	}
	return DeliverableMatch{}, false
}

// MatchingRate is the fraction of input artifacts assigned to any deliverable.
func (r *MatchResult) MatchingRate() float64 {
	if r.TotalArtifacts == 0 {
		return 0
	}
	return float64(r.TotalMatched) / float64(r.TotalArtifacts)
}
