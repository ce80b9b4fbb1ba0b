package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"github.com/valter-silva-au/workpulse/pkg/models"
)

var (
	dailySubject string
	dailyName    string
	dailyDate    string
	dailyProject string
	dailyJSON    bool
	dailyTUI     bool
)

var dailyCmd = &cobra.Command{
	Use:   "daily",
	Short: "Generate a daily progress report",
	Long: `Generate a daily progress report for one person.

Documents, code activity, email and chat are analyzed concurrently; each
source that fails or times out is reported as an error in its own section
while the others still contribute. The report is archived for weekly runs.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Runner == nil {
			return fmt.Errorf("report runner not initialized")
		}
		date, err := parseDateFlag("date", dailyDate, time.Now())
		if err != nil {
			return err
		}
		in := models.RunInputs{
			SubjectID:   strings.TrimSpace(dailySubject),
			SubjectName: strings.TrimSpace(dailyName),
			TargetDate:  date,
			ProjectID:   strings.TrimSpace(dailyProject),
		}

		ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt)
		defer stop()

		var out *models.RunOutcome
		if dailyTUI {
			out, err = runWithMonitor(ctx, in)
			if err != nil {
				return err
			}
		} else {
			out = Runner.Run(ctx, in)
		}

		w := cmd.OutOrStdout()
		if dailyJSON {
			return writeJSON(w, struct {
				Report   *models.Report `json:"report"`
				ErrorLog []string       `json:"error_log,omitempty"`
			}{out.Report, out.Context.Errors.Entries()})
		}
		printReport(w, out.Report)
		printErrorLog(w, out.Context.Errors.Entries())
		if out.Report != nil && !out.Report.Success {
			return fmt.Errorf("daily report failed")
		}
		return nil
	},
}

// runWithMonitor runs in while a bubbletea program shows branch progress.
func runWithMonitor(ctx context.Context, in models.RunInputs) (*models.RunOutcome, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(newMonitorModel(in, cancel))
	obs := &programObserver{send: p.Send}

	runner := Runner
	if o, ok := Runner.(observableRunner); ok {
		runner = o.WithObserver(obs)
	}
	done := make(chan *models.RunOutcome, 1)
	go func() {
		out := runner.Run(ctx, in)
		done <- out
		p.Send(runDoneMsg{outcome: out})
	}()

	if _, err := p.Run(); err != nil {
		cancel()
		<-done
		return nil, fmt.Errorf("running monitor: %w", err)
	}
	return <-done, nil
}

func init() {
	dailyCmd.Flags().StringVar(&dailySubject, "subject", "", "Identity of the person in the source collections (required)")
	dailyCmd.Flags().StringVar(&dailyName, "name", "", "Display name, also used to find plan assignments")
	dailyCmd.Flags().StringVar(&dailyDate, "date", "", "Target date as YYYY-MM-DD (default today, UTC)")
	dailyCmd.Flags().StringVar(&dailyProject, "project", "", "Project whose plan applies")
	dailyCmd.Flags().BoolVar(&dailyJSON, "json", false, "Output the report as JSON")
	dailyCmd.Flags().BoolVar(&dailyTUI, "tui", false, "Show live branch progress while the report runs")
	_ = dailyCmd.MarkFlagRequired("subject")
	rootCmd.AddCommand(dailyCmd)
}
