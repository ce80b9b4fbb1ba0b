package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/valter-silva-au/workpulse/internal/core"
)

var (
	ingestProject string
	ingestJSON    bool

	evidenceSource string
	evidenceJSON   bool
)

var ingestPlanCmd = &cobra.Command{
	Use:   "ingest-plan <path>",
	Short: "Load a WBS plan file into the plan collection",
	Long: `Load a work breakdown structure from a CSV, JSON or YAML file.

The file's content hash is compared with the marker stored for the project.
An unchanged, completely ingested plan is skipped; otherwise the project's
plan items are cleared, rewritten and sealed with the new hash.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if Ingester == nil {
			return fmt.Errorf("plan ingester not initialized")
		}
		project := strings.TrimSpace(ingestProject)
		if project == "" {
			return fmt.Errorf("--project is required")
		}

		res, err := Ingester.Ingest(commandContext(cmd), project, args[0])
		w := cmd.OutOrStdout()
		if ingestJSON && res != nil {
			if jerr := writeJSON(w, res); jerr != nil {
				return jerr
			}
		}
		if err != nil {
			return fmt.Errorf("ingesting %s: %w", args[0], err)
		}
		if ingestJSON {
			return nil
		}

		if res.Skipped {
			fmt.Fprintf(w, "Plan for %s is unchanged (%s); nothing to do.\n", res.ProjectID, shortDigest(res.Hash))
			return nil
		}
		fmt.Fprintf(w, "Ingested %d plan item(s) for %s (%s)\n", res.Items, res.ProjectID, shortDigest(res.Hash))
		if res.Reason != "" {
			fmt.Fprintf(w, "  reason: %s\n", res.Reason)
		}
		return nil
	},
}

var ingestEvidenceCmd = &cobra.Command{
	Use:   "ingest-evidence <path>...",
	Short: "Load exported activity records into a source collection",
	Long: `Load documents, emails, code events, READMEs or chat posts from .json or
.jsonl exports into the collection of the given source.

Every record is embedded and stored under an id derived from its natural
key, so loading an export again updates records instead of duplicating
them. Records without the source's identity or date field are skipped and
reported.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if Evidence == nil {
			return fmt.Errorf("evidence ingester not initialized")
		}
		source := strings.TrimSpace(evidenceSource)
		if source == "" {
			return fmt.Errorf("--source is required")
		}

		w := cmd.OutOrStdout()
		var results []*core.EvidenceResult
		for _, path := range args {
			res, err := Evidence.IngestEvidence(commandContext(cmd), source, path)
			if err != nil {
				return fmt.Errorf("ingesting %s: %w", path, err)
			}
			results = append(results, res)
			if evidenceJSON {
				continue
			}
			fmt.Fprintf(w, "Loaded %d of %d %s record(s) from %s (%s)\n",
				res.Written, res.Records, res.Source, path, shortDigest(res.Hash))
			for _, p := range res.Problems {
				fmt.Fprintf(w, "  skipped %s\n", p)
			}
		}
		if evidenceJSON {
			return writeJSON(w, results)
		}
		return nil
	},
}

func shortDigest(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}

func init() {
	ingestPlanCmd.Flags().StringVar(&ingestProject, "project", "", "Project the plan belongs to (required)")
	ingestPlanCmd.Flags().BoolVar(&ingestJSON, "json", false, "Output the ingestion result as JSON")
	rootCmd.AddCommand(ingestPlanCmd)

	ingestEvidenceCmd.Flags().StringVar(&evidenceSource, "source", "",
		"Source to load: "+strings.Join(core.SearchableSources, ", ")+" (required)")
	ingestEvidenceCmd.Flags().BoolVar(&evidenceJSON, "json", false, "Output the ingestion results as JSON")
	rootCmd.AddCommand(ingestEvidenceCmd)
}
