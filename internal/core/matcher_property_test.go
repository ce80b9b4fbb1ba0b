package core

import (
	"fmt"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/valter-silva-au/workpulse/pkg/models"
	"pgregory.net/rapid"
)

// =============================================================================
// Generators
// =============================================================================

var (
	labelPool = []string{
		"", "   ", "design", "design.docx", "api spec", "아키텍처 문서", "budget", " test plan ", "Design",
	}
	filenamePool = []string{
		"", "final_design.docx", "api_spec_v2.md", "architecture_doc.txt", "budget.xlsx", "notes", "test-plan.pdf",
	}
	contentPool = []string{
		"", "아키텍처 설계 개요", "API endpoints and schemas", "quarterly budget", "meeting notes about design",
	}
)

func genLabels(t *rapid.T) []string {
	return rapid.SliceOfN(rapid.SampledFrom(labelPool), 0, 6).Draw(t, "labels")
}

func genArtifacts(t *rapid.T) []models.Artifact {
	n := rapid.IntRange(0, 12).Draw(t, "numArtifacts")
	out := make([]models.Artifact, n)
	for i := range out {
		// A small id space forces duplicate ids into the pool.
		id := fmt.Sprintf("a%d", rapid.IntRange(0, 8).Draw(t, fmt.Sprintf("id_%d", i)))
		out[i] = doc(id,
			rapid.SampledFrom(filenamePool).Draw(t, fmt.Sprintf("filename_%d", i)),
			rapid.SampledFrom(contentPool).Draw(t, fmt.Sprintf("content_%d", i)))
	}
	return out
}

// =============================================================================
// Properties
// =============================================================================

// *For any* artifact pool and label set, matching twice yields the same
// assignment and ranking.
func TestMatcherProperty_Deterministic(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		labels := genLabels(rt)
		arts := genArtifacts(rt)
		m := NewMatcher(MatcherConfig{Threshold: rapid.Float64Range(0.05, 0.95).Draw(rt, "threshold")})

		first := m.Match(labels, arts)
		second := m.Match(labels, arts)
		if diff := cmp.Diff(first, second); diff != "" {
			rt.Fatalf("match not deterministic (-first +second):\n%s", diff)
		}
	})
}

// *For any* match result, no artifact id appears under two deliverables or
// twice under one.
func TestMatcherProperty_AtMostOneAssignment(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		res := NewMatcher(MatcherConfig{}).Match(genLabels(rt), genArtifacts(rt))

		owner := make(map[string]string)
		total := 0
		for _, d := range res.Deliverables {
			for _, sa := range d.Artifacts {
				total++
				if prev, ok := owner[sa.Artifact.ID]; ok {
					rt.Fatalf("artifact %s assigned to %q and %q", sa.Artifact.ID, prev, d.Label)
				}
				owner[sa.Artifact.ID] = d.Label
			}
		}
		if total != res.TotalMatched {
			rt.Fatalf("TotalMatched = %d, counted %d", res.TotalMatched, total)
		}
	})
}

// *For any* label list, output labels are exactly the trimmed, non-empty,
// first-seen input labels, matched or not.
func TestMatcherProperty_LabelFiltering(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		labels := genLabels(rt)
		res := NewMatcher(MatcherConfig{}).Match(labels, genArtifacts(rt))

		var want []string
		seen := make(map[string]bool)
		for _, l := range labels {
			l = strings.TrimSpace(l)
			if l != "" && !seen[l] {
				seen[l] = true
				want = append(want, l)
			}
		}
		var got []string
		for _, d := range res.Deliverables {
			if strings.TrimSpace(d.Label) == "" {
				rt.Fatalf("blank label in output")
			}
			got = append(got, d.Label)
		}
		if diff := cmp.Diff(want, got); diff != "" {
			rt.Fatalf("labels mismatch (-want +got):\n%s", diff)
		}
		for _, l := range res.Unmatched() {
			if strings.TrimSpace(l) == "" {
				rt.Fatalf("blank label reported unmatched")
			}
		}
	})
}

// *For any* match, scores lie in [threshold, 1] and are ranked descending.
func TestMatcherProperty_ScoresBoundedAndRanked(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		threshold := rapid.Float64Range(0.05, 0.95).Draw(rt, "threshold")
		res := NewMatcher(MatcherConfig{Threshold: threshold}).Match(genLabels(rt), genArtifacts(rt))
		for _, d := range res.Deliverables {
			for i, sa := range d.Artifacts {
				if sa.Score > 1 || sa.Score < round3(threshold)-0.001 {
					rt.Fatalf("score %v out of [%v, 1]", sa.Score, threshold)
				}
				if i > 0 && d.Artifacts[i-1].Score < sa.Score {
					rt.Fatalf("deliverable %q not ranked: %v before %v", d.Label, d.Artifacts[i-1].Score, sa.Score)
				}
			}
		}
	})
}
