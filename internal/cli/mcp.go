package cli

import (
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	wpmcp "github.com/valter-silva-au/workpulse/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "MCP server commands",
	Long:  "Commands for running the workpulse MCP (Model Context Protocol) server.",
}

var mcpServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the workpulse MCP server on stdio",
	Long: `Start the workpulse MCP server on stdio transport.

The server exposes reporting and evidence search as MCP tools that AI
assistants can call: daily_report, match_deliverables, search_evidence,
get_metrics, get_alerts.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Runner == nil {
			return fmt.Errorf("report runner not initialized")
		}

		srv := wpmcp.NewServer(wpmcp.Services{
			Runner:   Runner,
			Plans:    Plans,
			Matcher:  Documents,
			Searcher: Retriever,
			Metrics:  MetricsCalc,
			Alerts:   AlertEngine,
		}, appVersion)

		ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt)
		defer stop()

		if err := srv.Run(ctx); err != nil {
			return fmt.Errorf("running MCP server: %w", err)
		}

		return nil
	},
}

func init() {
	mcpCmd.AddCommand(mcpServeCmd)
	rootCmd.AddCommand(mcpCmd)
}
