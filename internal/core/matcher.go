package core

import (
	"sort"
	"strings"

	"github.com/valter-silva-au/workpulse/pkg/models"
)

const (
	// ExactSubstringScore is the score of a label found inside a filename.
	ExactSubstringScore = 0.9

	DefaultMatchThreshold     = 0.1
	DefaultMaxRepresentatives = 3
	DefaultContentPreview     = 300
)

// MatcherConfig tunes deliverable matching.
type MatcherConfig struct {
	Threshold          float64
	MaxRepresentatives int
	ContentPreview     int
}

// Matcher assigns artifacts to the WBS deliverable they best evidence.
type Matcher struct {
	cfg MatcherConfig
}

// NewMatcher creates a Matcher. Non-positive settings fall back to defaults.
func NewMatcher(cfg MatcherConfig) *Matcher {
	if cfg.Threshold <= 0 {
		cfg.Threshold = DefaultMatchThreshold
	}
	if cfg.MaxRepresentatives <= 0 {
		cfg.MaxRepresentatives = DefaultMaxRepresentatives
	}
	if cfg.ContentPreview <= 0 {
		cfg.ContentPreview = DefaultContentPreview
	}
	return &Matcher{cfg: cfg}
}

// DeliverableLabels extracts the trimmed, non-empty deliverable labels of
// items in plan order, without duplicates.
func DeliverableLabels(items []models.PlanItem) []string {
	slice := models.PlanSlice{Items: items}
	return slice.Labels()
}

// cleanLabels trims labels and drops empty and repeated ones.
func cleanLabels(labels []string) []string {
	seen := make(map[string]bool, len(labels))
	out := make([]string, 0, len(labels))
	for _, l := range labels {
		l = strings.TrimSpace(l)
		if l == "" || seen[l] {
			continue
		}
		seen[l] = true
		out = append(out, l)
	}
	return out
}

// Score computes the affinity of one artifact to one label. The label is
// matched case-insensitively as a substring of the filename first; failing
// that, the larger of the filename-stem and content-preview sequence ratios
// is returned.
func (m *Matcher) Score(a models.Artifact, label string) (float64, models.MatchType) {
	lowLabel := strings.ToLower(label)
	lowName := strings.ToLower(a.Filename())
	if lowLabel != "" && strings.Contains(lowName, lowLabel) {
		return ExactSubstringScore, models.MatchExactSubstring
	}

	stem := lowName
	if i := strings.LastIndex(stem, "."); i >= 0 {
		stem = stem[:i]
	}
	nameScore := SequenceRatio(stem, lowLabel)
	preview := strings.ToLower(truncateRunes(a.Content, m.cfg.ContentPreview))
	contentScore := SequenceRatio(preview, lowLabel)

	if nameScore > contentScore {
		return nameScore, models.MatchFilenameSimilarity
	}
	return contentScore, models.MatchContentSimilarity
}

// Match assigns each artifact to at most one label: the one with the
// strictly highest score, earlier labels winning ties. Artifacts whose best
// score is under the threshold are dropped. Artifacts are deduplicated by
// id and labels are cleaned before matching; the result lists every
// remaining label in input order with its artifacts ranked by score.
func (m *Matcher) Match(labels []string, artifacts []models.Artifact) *models.MatchResult {
	labels = cleanLabels(labels)
	res := &models.MatchResult{Deliverables: make([]models.DeliverableMatch, len(labels))}
	for i, l := range labels {
		res.Deliverables[i] = models.DeliverableMatch{Label: l, Artifacts: []models.ScoredArtifact{}}
	}

	seen := make(map[string]bool, len(artifacts))
	for _, a := range artifacts {
		if a.ID != "" {
			if seen[a.ID] {
				continue
			}
			seen[a.ID] = true
		}
		res.TotalArtifacts++

		best, bestIdx := 0.0, -1
		var bestType models.MatchType
		for i, l := range labels {
			score, kind := m.Score(a, l)
			if score > best {
				best, bestIdx, bestType = score, i, kind
			}
		}
		if bestIdx < 0 || best < m.cfg.Threshold {
			continue
		}
		d := &res.Deliverables[bestIdx]
		d.Artifacts = append(d.Artifacts, models.ScoredArtifact{
			Artifact:  a,
			Score:     round3(best),
			MatchType: bestType,
		})
		res.TotalMatched++
	}

	for i := range res.Deliverables {
		arts := res.Deliverables[i].Artifacts
		sort.SliceStable(arts, func(x, y int) bool { return arts[x].Score > arts[y].Score })
	}
	return res
}

// Representatives bounds the evidence per deliverable. Document artifacts
// sharing a filename are merged into one entry whose content is the
// concatenation of the group, carried by the group's best-scoring member;
// at most MaxRepresentatives document files are kept per deliverable.
// Other artifacts are kept as they are.
func (m *Matcher) Representatives(res *models.MatchResult) *models.MatchResult {
	if res == nil {
		return nil
	}
	out := &models.MatchResult{
		Deliverables:   make([]models.DeliverableMatch, len(res.Deliverables)),
		TotalArtifacts: res.TotalArtifacts,
		TotalMatched:   res.TotalMatched,
	}
	for i, d := range res.Deliverables {
		out.Deliverables[i] = models.DeliverableMatch{Label: d.Label, Artifacts: m.representatives(d.Artifacts)}
	}
	return out
}

func (m *Matcher) representatives(arts []models.ScoredArtifact) []models.ScoredArtifact {
	type group struct {
		best  models.ScoredArtifact
		parts []string
	}
	var (
		order  []string
		groups = make(map[string]*group)
		others []models.ScoredArtifact
	)
	// arts is ranked, so the first member of each group is its best.
	for _, sa := range arts {
		if sa.Artifact.Source != models.SourceDocument {
			others = append(others, sa)
			continue
		}
		key := sa.Artifact.Filename()
		if key == "" {
			key = "id:" + sa.Artifact.ID
		}
		g, ok := groups[key]
		if !ok {
			g = &group{best: sa}
			groups[key] = g
			order = append(order, key)
		}
		if c := strings.TrimSpace(sa.Artifact.Content); c != "" {
			g.parts = append(g.parts, c)
		}
	}

	out := make([]models.ScoredArtifact, 0, len(order)+len(others))
	for _, key := range order {
		if len(out) == m.cfg.MaxRepresentatives {
			break
		}
		g := groups[key]
		rep := g.best
		rep.Artifact = copyArtifact(rep.Artifact)
		rep.Artifact.Content = strings.Join(g.parts, "\n\n")
		out = append(out, rep)
	}
	return append(out, others...)
}

func copyArtifact(a models.Artifact) models.Artifact {
	if a.Metadata != nil {
		meta := make(map[string]any, len(a.Metadata))
		for k, v := range a.Metadata {
			meta[k] = v
		}
		a.Metadata = meta
	}
	return a
}
