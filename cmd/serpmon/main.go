package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/serpmon/serpmon/cmd/serpmon/commands"
	"github.com/serpmon/serpmon/logger"
)

var rootCmd = &cobra.Command{
	Use:   "serpmon",
	Short: "serpmon - live search list monitoring with scheduled refreshes",
	Long: `serpmon monitors live-search lists and refreshes their metrics on
user-defined schedules, gated by per-account monthly query quotas.

Available commands:
  serve  - Start the API server, scheduler and refresh workers
  db     - Manage database operations
  quota  - Manage account query quotas

Examples:
  serpmon serve              # Start the service
  serpmon db migrate         # Apply pending schema migrations
  serpmon quota reset        # Reset eligible accounts to the monthly limit`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		jsonOutput, _ := cmd.Flags().GetBool("json-logs")
		if err := logger.Initialize(jsonOutput); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().Bool("json-logs", false, "Emit structured JSON logs")
	rootCmd.PersistentFlags().String("config", "", "Path to config file (default: ./serpmon.toml)")

	rootCmd.AddCommand(commands.ServeCmd)
	rootCmd.AddCommand(commands.DBCmd)
	rootCmd.AddCommand(commands.QuotaCmd)
}

func main() {
	defer logger.Sync()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
