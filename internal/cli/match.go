package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/valter-silva-au/workpulse/internal/core"
	"github.com/valter-silva-au/workpulse/pkg/models"
)

var (
	matchSubject  string
	matchAssignee string
	matchDate     string
	matchProject  string
	matchJSON     bool
)

var matchCmd = &cobra.Command{
	Use:   "match",
	Short: "Match a person's documents against their plan deliverables",
	Long: `Retrieve the documents a person modified on a date and assign each to the
deliverable it matches best, by substring, filename or content similarity.
Deliverables with no matching document are listed as unmatched.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Documents == nil {
			return fmt.Errorf("deliverable matcher not initialized")
		}
		if Plans == nil {
			return fmt.Errorf("plan source not initialized")
		}
		date, err := parseDateFlag("date", matchDate, time.Now())
		if err != nil {
			return err
		}
		subject := strings.TrimSpace(matchSubject)
		assignee := strings.TrimSpace(matchAssignee)
		if assignee == "" {
			assignee = subject
		}

		ctx := commandContext(cmd)
		plan, err := Plans.PlanFor(ctx, strings.TrimSpace(matchProject), assignee)
		if err != nil {
			return err
		}
		res, docs, err := Documents.MatchDeliverables(ctx, core.BranchInput{
			Inputs: models.RunInputs{SubjectID: subject, TargetDate: date, ProjectID: plan.ProjectID},
			Plan:   plan,
			Errors: &models.ErrorLog{},
		})
		if err != nil {
			return fmt.Errorf("matching deliverables: %w", err)
		}

		w := cmd.OutOrStdout()
		if matchJSON {
			return writeJSON(w, res)
		}
		printMatchResult(w, res, len(docs))
		return nil
	},
}

func printMatchResult(w io.Writer, res *models.MatchResult, docs int) {
	fmt.Fprintf(w, "%d document(s), %d matched (%.0f%%)\n", docs, res.TotalMatched, res.MatchingRate()*100)
	for _, d := range res.Deliverables {
		if len(d.Artifacts) == 0 {
			continue
		}
		fmt.Fprintf(w, "\n  %s\n", d.Label)
		for _, a := range d.Artifacts {
			name := a.Artifact.Filename()
			if name == "" {
				name = a.Artifact.ID
			}
			fmt.Fprintf(w, "    %.2f  %-20s %s\n", a.Score, a.MatchType, name)
		}
	}
	if unmatched := res.Unmatched(); len(unmatched) > 0 {
		fmt.Fprintf(w, "\n  Unmatched: %s\n", strings.Join(unmatched, ", "))
	}
}

func init() {
	matchCmd.Flags().StringVar(&matchSubject, "subject", "", "Identity of the person (required)")
	matchCmd.Flags().StringVar(&matchAssignee, "assignee", "", "Name used in the plan's assignee column (default --subject)")
	matchCmd.Flags().StringVar(&matchDate, "date", "", "Target date as YYYY-MM-DD (default today, UTC)")
	matchCmd.Flags().StringVar(&matchProject, "project", "", "Project whose plan applies (required)")
	matchCmd.Flags().BoolVar(&matchJSON, "json", false, "Output the match result as JSON")
	_ = matchCmd.MarkFlagRequired("subject")
	_ = matchCmd.MarkFlagRequired("project")
	rootCmd.AddCommand(matchCmd)
}
