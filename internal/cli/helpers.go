package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/valter-silva-au/workpulse/pkg/models"
)

// parseDateFlag parses a YYYY-MM-DD flag value. Empty means today (UTC).
func parseDateFlag(name, value string, now time.Time) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		y, m, d := now.UTC().Date()
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
	}
	t, err := time.Parse(models.DateLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --%s %q: want YYYY-MM-DD", name, value)
	}
	return t, nil
}

// weekBounds returns the Monday and Sunday of the week containing t.
func weekBounds(t time.Time) (time.Time, time.Time) {
	offset := (int(t.Weekday()) + 6) % 7
	start := time.Date(t.Year(), t.Month(), t.Day()-offset, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 0, 6)
}

// commandContext returns the command's context, or Background when the
// command runs outside Execute.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func writeJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("formatting JSON: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

// printReport renders a report for the terminal.
func printReport(w io.Writer, rep *models.Report) {
	if rep == nil {
		fmt.Fprintln(w, "No report produced.")
		return
	}
	period := rep.PeriodStart
	if rep.PeriodEnd != "" && rep.PeriodEnd != rep.PeriodStart {
		period += " to " + rep.PeriodEnd
	}
	name := rep.SubjectName
	if name == "" {
		name = rep.SubjectID
	}
	fmt.Fprintf(w, "%s report for %s (%s)\n", rep.Kind, name, period)
	if !rep.Success {
		fmt.Fprintf(w, "\n  FAILED: %s\n", rep.Error)
		return
	}
	data, err := json.MarshalIndent(rep.Content, "  ", "  ")
	if err != nil {
		fmt.Fprintf(w, "\n  %v\n", rep.Content)
		return
	}
	fmt.Fprintf(w, "\n  %s\n", data)
}

func printErrorLog(w io.Writer, entries []string) {
	if len(entries) == 0 {
		return
	}
	fmt.Fprintf(w, "\n%d problem(s) during the run:\n", len(entries))
	for _, e := range entries {
		fmt.Fprintf(w, "  - %s\n", e)
	}
}
