package cli

import (
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/valter-silva-au/workpulse/internal/core"
	"github.com/valter-silva-au/workpulse/pkg/models"
)

// completeSources lists the source names accepted by search --source.
func completeSources(_ *cobra.Command, _ []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	var out []string
	for _, s := range core.SearchableSources {
		if strings.HasPrefix(s, toComplete) {
			out = append(out, s)
		}
	}
	return out, cobra.ShellCompDirectiveNoFileComp
}

// completeRecentDates offers today and the previous six days, newest first.
func completeRecentDates(_ *cobra.Command, _ []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	today, _ := parseDateFlag("date", "", time.Now())
	var out []string
	for i := 0; i < 7; i++ {
		d := today.AddDate(0, 0, -i)
		s := d.Format(models.DateLayout)
		if strings.HasPrefix(s, toComplete) {
			out = append(out, s+"\t"+d.Weekday().String())
		}
	}
	return out, cobra.ShellCompDirectiveNoFileComp
}

// completePlanFiles restricts file completion to supported plan formats.
func completePlanFiles(_ *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	return []string{"csv", "json", "yaml", "yml"}, cobra.ShellCompDirectiveFilterFileExt
}

// completeEvidenceFiles restricts file completion to evidence exports.
func completeEvidenceFiles(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
	return []string{"json", "jsonl", "ndjson"}, cobra.ShellCompDirectiveFilterFileExt
}

func init() {
	_ = searchCmd.RegisterFlagCompletionFunc("source", completeSources)
	_ = ingestEvidenceCmd.RegisterFlagCompletionFunc("source", completeSources)
	for _, c := range []*cobra.Command{dailyCmd, matchCmd, summaryCmd} {
		_ = c.RegisterFlagCompletionFunc("date", completeRecentDates)
	}
	for _, c := range []*cobra.Command{weeklyCmd, teamWeeklyCmd} {
		_ = c.RegisterFlagCompletionFunc("from", completeRecentDates)
		_ = c.RegisterFlagCompletionFunc("to", completeRecentDates)
	}
	ingestPlanCmd.ValidArgsFunction = completePlanFiles
	ingestEvidenceCmd.ValidArgsFunction = completeEvidenceFiles
}
