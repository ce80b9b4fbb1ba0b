package cli

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/spf13/cobra"
	"github.com/valter-silva-au/workpulse/internal/core"
)

var (
	searchSource  string
	searchQueries []string
	searchFiles   []string
	searchTopK    int
	searchJSON    bool
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Search one evidence source",
	Long: `Run a hybrid vector and keyword search over one evidence source.

Each --query is searched separately and the hits are merged without
duplicates. --file restricts hits to the given filenames.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Retriever == nil {
			return fmt.Errorf("retriever not initialized")
		}
		if len(searchQueries) == 0 {
			return fmt.Errorf("at least one --query is required")
		}
		src, typ, err := Retriever.ResolveSource(searchSource)
		if err != nil {
			return err
		}
		hits, err := Retriever.HybridSearch(commandContext(cmd), src, typ, searchQueries, searchFiles, searchTopK)
		if err != nil {
			return fmt.Errorf("searching %s: %w", src.Collection, err)
		}

		w := cmd.OutOrStdout()
		if searchJSON {
			return writeJSON(w, hits)
		}
		if len(hits) == 0 {
			fmt.Fprintln(w, "No results.")
			return nil
		}
		for i, h := range hits {
			label := h.Filename()
			if label == "" {
				label = h.ID
			}
			fmt.Fprintf(w, "%2d. [%.2f] %s\n    %s\n", i+1, h.Score, label, previewLine(h.Content, 120))
		}
		return nil
	},
}

// previewLine flattens s to one line of at most n runes.
func previewLine(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}

func init() {
	searchCmd.Flags().StringVar(&searchSource, "source", "documents", "Source to search: "+strings.Join(core.SearchableSources, ", "))
	searchCmd.Flags().StringArrayVar(&searchQueries, "query", nil, "Search query (repeatable)")
	searchCmd.Flags().StringArrayVar(&searchFiles, "file", nil, "Restrict hits to this filename (repeatable)")
	searchCmd.Flags().IntVar(&searchTopK, "top-k", 5, "Results per query")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "Output hits as JSON")
	rootCmd.AddCommand(searchCmd)
}
