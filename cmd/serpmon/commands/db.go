package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/serpmon/serpmon/errors"
)

// DBCmd represents the db command
var DBCmd = &cobra.Command{
	Use:   "db",
	Short: "Manage the serpmon database",
	Long: `db — Manage serpmon database operations

Examples:
  serpmon db migrate              # Apply pending schema migrations
  serpmon db stats                # Show row counts per table`,
}

var dbMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending schema migrations",
	RunE:  runDBMigrate,
}

var dbStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show database statistics",
	RunE:  runDBStats,
}

func init() {
	DBCmd.AddCommand(dbMigrateCmd)
	DBCmd.AddCommand(dbStatsCmd)
}

func runDBMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return errors.Wrap(err, "failed to load config")
	}

	// openDatabase runs migrations as part of opening
	database, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	fmt.Printf("Database at %s is up to date\n", cfg.Database.Path)
	return nil
}

func runDBStats(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return errors.Wrap(err, "failed to load config")
	}

	database, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	tables := []string{
		"accounts",
		"query_quota",
		"live_search_lists",
		"list_queries",
		"auto_update_schedules",
		"scheduler_jobs",
		"async_jobs",
	}

	fmt.Printf("Database Statistics\n")
	fmt.Printf("Database Path: %s\n\n", cfg.Database.Path)
	for _, table := range tables {
		var count int
		if err := database.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&count); err != nil {
			return errors.Wrapf(err, "failed to count rows in %s", table)
		}
		fmt.Printf("  %-22s %d\n", table, count)
	}

	return nil
}
