package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/valter-silva-au/workpulse/internal/core"
)

var (
	summarySubject string
	summaryName    string
	summaryDate    string
	summaryProject string
	summaryJSON    bool
)

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Summarize one day's progress in a single line",
	Long: `Condense the archived daily report of one person into a one-line progress
statement measured against their plan items. Both the daily report for the
date and an ingested plan for the project must exist.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Periods == nil {
			return fmt.Errorf("period reporter not initialized")
		}
		date, err := parseDateFlag("date", summaryDate, time.Now())
		if err != nil {
			return err
		}
		rep := Periods.ProgressSummary(commandContext(cmd), core.PeriodInputs{
			SubjectID:   strings.TrimSpace(summarySubject),
			SubjectName: strings.TrimSpace(summaryName),
			ProjectID:   strings.TrimSpace(summaryProject),
			Start:       date,
			End:         date,
		})
		return finishPeriodReport(cmd, rep, summaryJSON)
	},
}

func init() {
	summaryCmd.Flags().StringVar(&summarySubject, "subject", "", "Identity of the person (required)")
	summaryCmd.Flags().StringVar(&summaryName, "name", "", "Display name used to find plan items")
	summaryCmd.Flags().StringVar(&summaryDate, "date", "", "Day of the daily report, YYYY-MM-DD (default today, UTC)")
	summaryCmd.Flags().StringVar(&summaryProject, "project", "", "Project whose plan applies (required)")
	summaryCmd.Flags().BoolVar(&summaryJSON, "json", false, "Output the summary as JSON")
	_ = summaryCmd.MarkFlagRequired("subject")
	_ = summaryCmd.MarkFlagRequired("project")
	rootCmd.AddCommand(summaryCmd)
}
