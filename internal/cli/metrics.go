package cli

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var (
	metricsJSON  bool
	metricsSince string
)

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Display run and report metrics",
	Long: `Display aggregated metrics derived from the event log.

Metrics include report runs, generated and failed reports by kind, branch
outcomes and average duration per evidence source, and plan ingestion counts.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if MetricsCalc == nil {
			return fmt.Errorf("metrics calculator not initialized (event log may be disabled)")
		}

		sinceTime, err := parseSinceDuration(metricsSince)
		if err != nil {
			return fmt.Errorf("parsing --since: %w", err)
		}

		metrics, err := MetricsCalc.Calculate(sinceTime)
		if err != nil {
			return fmt.Errorf("calculating metrics: %w", err)
		}

		w := cmd.OutOrStdout()
		if metricsJSON {
			return writeJSON(w, metrics)
		}

		fmt.Fprintf(w, "Metrics (since %s)\n\n", sinceTime.Format("2006-01-02"))
		fmt.Fprintf(w, "  %-24s %d\n", "Events recorded:", metrics.EventCount)
		fmt.Fprintf(w, "  %-24s %d\n", "Daily runs:", metrics.Runs)
		fmt.Fprintf(w, "  %-24s %d\n", "Reports generated:", metrics.ReportsGenerated)
		fmt.Fprintf(w, "  %-24s %d\n", "Reports failed:", metrics.ReportsFailed)
		fmt.Fprintf(w, "  %-24s %d\n", "Plans ingested:", metrics.PlansIngested)
		fmt.Fprintf(w, "  %-24s %d\n", "Plans unchanged:", metrics.PlansSkipped)

		if len(metrics.ReportsByKind) > 0 {
			fmt.Fprintln(w, "\n  Reports by kind:")
			for _, kind := range sortedKeys(metrics.ReportsByKind) {
				fmt.Fprintf(w, "    %-20s %d\n", kind+":", metrics.ReportsByKind[kind])
			}
		}

		if len(metrics.Branches) > 0 {
			sources := make([]string, 0, len(metrics.Branches))
			for s := range metrics.Branches {
				sources = append(sources, s)
			}
			sort.Strings(sources)
			fmt.Fprintln(w, "\n  Branches:")
			for _, s := range sources {
				b := metrics.Branches[s]
				fmt.Fprintf(w, "    %-20s ok %-4d failed %-4d avg %s\n",
					s+":", b.Succeeded, b.Failed, metrics.AverageDuration(s).Round(time.Millisecond))
			}
		}

		if metrics.OldestEvent != nil {
			fmt.Fprintf(w, "\n  %-24s %s\n", "Oldest event:", metrics.OldestEvent.Format(time.RFC3339))
		}
		if metrics.NewestEvent != nil {
			fmt.Fprintf(w, "  %-24s %s\n", "Newest event:", metrics.NewestEvent.Format(time.RFC3339))
		}

		return nil
	},
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// parseSinceDuration parses a human-friendly duration string like "7d", "30d",
// or "24h" and returns the corresponding time in the past.
func parseSinceDuration(s string) (time.Time, error) {
	now := time.Now().UTC()
	s = strings.TrimSpace(s)
	if s == "" {
		return now.AddDate(0, 0, -7), nil
	}

	if strings.HasSuffix(s, "d") {
		days, err := strconv.Atoi(strings.TrimSuffix(s, "d"))
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid day duration %q", s)
		}
		return now.AddDate(0, 0, -days), nil
	}

	if strings.HasSuffix(s, "h") {
		hours, err := strconv.Atoi(strings.TrimSuffix(s, "h"))
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid hour duration %q", s)
		}
		return now.Add(-time.Duration(hours) * time.Hour), nil
	}

	return time.Time{}, fmt.Errorf("unsupported duration format %q (use e.g. 7d, 30d, 24h)", s)
}

func init() {
	metricsCmd.Flags().BoolVar(&metricsJSON, "json", false, "Output metrics as JSON")
	metricsCmd.Flags().StringVar(&metricsSince, "since", "7d", "Time window for metrics (e.g. 7d, 30d, 24h)")
	rootCmd.AddCommand(metricsCmd)
}
