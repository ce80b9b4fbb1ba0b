package core

import (
	"fmt"
	"sort"
	"strings"

	"github.com/valter-silva-au/workpulse/pkg/models"
)

const (
	DefaultDigestItems = 30
	DefaultDigestChars = 300
)

// DigestConfig bounds the evidence text handed to the judge.
type DigestConfig struct {
	MaxItems int
	MaxChars int
}

func (c DigestConfig) withDefaults() DigestConfig {
	if c.MaxItems <= 0 {
		c.MaxItems = DefaultDigestItems
	}
	if c.MaxChars <= 0 {
		c.MaxChars = DefaultDigestChars
	}
	return c
}

// Digest renders at most MaxItems artifacts, one entry each, with content
// truncated to MaxChars runes. label produces the entry heading.
func Digest(arts []models.Artifact, cfg DigestConfig, label func(models.Artifact) string) string {
	cfg = cfg.withDefaults()
	if len(arts) == 0 {
		return "(none)"
	}
	var sb strings.Builder
	for i, a := range arts {
		if i == cfg.MaxItems {
			fmt.Fprintf(&sb, "... %d more omitted\n", len(arts)-cfg.MaxItems)
			break
		}
		content := strings.Join(strings.Fields(a.Content), " ")
		if short := truncateRunes(content, cfg.MaxChars); short != content {
			content = short + "..."
		}
		fmt.Fprintf(&sb, "%d. %s\n   %s\n", i+1, label(a), content)
	}
	return strings.TrimRight(sb.String(), "\n")
}

// metaLabel joins the non-empty metadata values for keys with " | ".
func metaLabel(keys ...string) func(models.Artifact) string {
	return func(a models.Artifact) string {
		var parts []string
		for _, k := range keys {
			if v := a.Meta(k); v != "" {
				parts = append(parts, v)
			}
		}
		if len(parts) == 0 {
			return a.ID
		}
		return strings.Join(parts, " | ")
	}
}

// CommitStats summarizes code events for one day.
type CommitStats struct {
	TotalEvents  int            `json:"total_events"`
	TotalCommits int            `json:"total_commits"`
	ByHour       map[int]int    `json:"commits_by_hour"`
	ByType       map[string]int `json:"events_by_type"`
	Repos        []string       `json:"repos"`
}

// ComputeCommitStats counts events by type and commits by UTC hour, and
// lists the repositories touched. Events without a type count as commits.
func ComputeCommitStats(events []models.Artifact, dateField string) CommitStats {
	stats := CommitStats{ByHour: make(map[int]int), ByType: make(map[string]int)}
	repos := make(map[string]bool)
	for _, e := range events {
		stats.TotalEvents++
		kind := e.Meta(models.MetaType)
		if kind == "" {
			kind = "commit"
		}
		stats.ByType[kind]++
		if kind == "commit" {
			stats.TotalCommits++
			if ts := e.Timestamp(dateField); !ts.IsZero() {
				stats.ByHour[ts.Hour()]++
			}
		}
		if repo := e.Meta(models.MetaRepo); repo != "" {
			repos[repo] = true
		}
	}
	for r := range repos {
		stats.Repos = append(stats.Repos, r)
	}
	sort.Strings(stats.Repos)
	return stats
}

// String renders the statistics for a prompt.
func (s CommitStats) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "total events: %d, commits: %d\n", s.TotalEvents, s.TotalCommits)
	if len(s.ByType) > 0 {
		types := make([]string, 0, len(s.ByType))
		for k := range s.ByType {
			types = append(types, k)
		}
		sort.Strings(types)
		sb.WriteString("by type:")
		for _, k := range types {
			fmt.Fprintf(&sb, " %s=%d", k, s.ByType[k])
		}
		sb.WriteString("\n")
	}
	if len(s.ByHour) > 0 {
		hours := make([]int, 0, len(s.ByHour))
		for h := range s.ByHour {
			hours = append(hours, h)
		}
		sort.Ints(hours)
		sb.WriteString("commits by hour (UTC):")
		for _, h := range hours {
			fmt.Fprintf(&sb, " %02d:00=%d", h, s.ByHour[h])
		}
		sb.WriteString("\n")
	}
	if len(s.Repos) > 0 {
		fmt.Fprintf(&sb, "repositories: %s\n", strings.Join(s.Repos, ", "))
	}
	return strings.TrimRight(sb.String(), "\n")
}
