package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/valter-silva-au/workpulse/internal/core"
	"github.com/valter-silva-au/workpulse/pkg/models"
)

var (
	weeklySubject string
	weeklyName    string
	weeklyProject string
	weeklyFrom    string
	weeklyTo      string
	weeklyJSON    bool

	teamName    string
	teamMembers []string
)

// periodFlags resolves --from/--to. Missing bounds default to the week
// (Monday to Sunday) containing the other bound, or today.
func periodFlags(now time.Time) (time.Time, time.Time, error) {
	var start, end time.Time
	var err error
	if strings.TrimSpace(weeklyFrom) != "" {
		if start, err = parseDateFlag("from", weeklyFrom, now); err != nil {
			return start, end, err
		}
	}
	if strings.TrimSpace(weeklyTo) != "" {
		if end, err = parseDateFlag("to", weeklyTo, now); err != nil {
			return start, end, err
		}
	}
	switch {
	case start.IsZero() && end.IsZero():
		today, _ := parseDateFlag("date", "", now)
		start, end = weekBounds(today)
	case start.IsZero():
		start, _ = weekBounds(end)
	case end.IsZero():
		_, end = weekBounds(start)
	}
	return start, end, nil
}

// parseMembers reads "id" or "id=Display Name" entries.
func parseMembers(entries []string) ([]core.TeamMember, error) {
	var out []core.TeamMember
	for _, e := range entries {
		id, name, _ := strings.Cut(e, "=")
		id = strings.TrimSpace(id)
		if id == "" {
			return nil, fmt.Errorf("invalid --member %q: id is empty", e)
		}
		out = append(out, core.TeamMember{ID: id, Name: strings.TrimSpace(name)})
	}
	return out, nil
}

func finishPeriodReport(cmd *cobra.Command, rep *models.Report, asJSON bool) error {
	if Recorder != nil {
		Recorder.RecordReport(rep)
	}
	if asJSON {
		if err := writeJSON(cmd.OutOrStdout(), rep); err != nil {
			return err
		}
	} else {
		printReport(cmd.OutOrStdout(), rep)
	}
	if rep != nil && !rep.Success {
		return fmt.Errorf("%s report failed", rep.Kind)
	}
	return nil
}

var weeklyCmd = &cobra.Command{
	Use:   "weekly",
	Short: "Synthesize a weekly report from archived daily reports",
	Long: `Synthesize a weekly report for one person from the daily reports archived
for the period. Run "workpulse daily" for each day first.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Periods == nil {
			return fmt.Errorf("period reporter not initialized")
		}
		start, end, err := periodFlags(time.Now())
		if err != nil {
			return err
		}
		rep := Periods.Weekly(commandContext(cmd), core.PeriodInputs{
			SubjectID:   strings.TrimSpace(weeklySubject),
			SubjectName: strings.TrimSpace(weeklyName),
			ProjectID:   strings.TrimSpace(weeklyProject),
			Start:       start,
			End:         end,
		})
		return finishPeriodReport(cmd, rep, weeklyJSON)
	},
}

var teamWeeklyCmd = &cobra.Command{
	Use:   "team-weekly",
	Short: "Synthesize a team weekly report",
	Long: `Synthesize one weekly report for a team from each member's archived daily
reports. Members are given as --member id or --member "id=Display Name".`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Periods == nil {
			return fmt.Errorf("period reporter not initialized")
		}
		members, err := parseMembers(teamMembers)
		if err != nil {
			return err
		}
		if len(members) == 0 {
			return fmt.Errorf("at least one --member is required")
		}
		start, end, err := periodFlags(time.Now())
		if err != nil {
			return err
		}
		rep := Periods.TeamWeekly(commandContext(cmd), core.TeamInputs{
			TeamName:  strings.TrimSpace(teamName),
			ProjectID: strings.TrimSpace(weeklyProject),
			Members:   members,
			Start:     start,
			End:       end,
		})
		return finishPeriodReport(cmd, rep, weeklyJSON)
	},
}

func init() {
	for _, c := range []*cobra.Command{weeklyCmd, teamWeeklyCmd} {
		c.Flags().StringVar(&weeklyProject, "project", "", "Project whose plan applies")
		c.Flags().StringVar(&weeklyFrom, "from", "", "First day of the period, YYYY-MM-DD")
		c.Flags().StringVar(&weeklyTo, "to", "", "Last day of the period, YYYY-MM-DD")
		c.Flags().BoolVar(&weeklyJSON, "json", false, "Output the report as JSON")
		rootCmd.AddCommand(c)
	}
	weeklyCmd.Flags().StringVar(&weeklySubject, "subject", "", "Identity of the person (required)")
	weeklyCmd.Flags().StringVar(&weeklyName, "name", "", "Display name")
	_ = weeklyCmd.MarkFlagRequired("subject")

	teamWeeklyCmd.Flags().StringVar(&teamName, "team", "", "Team name shown in the report")
	teamWeeklyCmd.Flags().StringArrayVar(&teamMembers, "member", nil, "Team member as id or id=Name (repeatable)")
}
