// Package commands implements the serpmon CLI subcommands.
package commands

import (
	"database/sql"

	"github.com/spf13/cobra"

	"github.com/serpmon/serpmon/config"
	"github.com/serpmon/serpmon/db"
	"github.com/serpmon/serpmon/errors"
	"github.com/serpmon/serpmon/logger"
)

// loadConfig resolves configuration, honoring the global --config flag
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	if path, _ := cmd.Root().PersistentFlags().GetString("config"); path != "" {
		return config.LoadFromFile(path)
	}
	return config.Load()
}

// openDatabase opens and migrates the configured database
func openDatabase(cfg *config.Config) (*sql.DB, error) {
	database, err := db.Open(cfg.Database.Path, logger.Logger)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open database")
	}
	if err := db.Migrate(database, logger.Logger); err != nil {
		database.Close()
		return nil, errors.Wrap(err, "failed to migrate database")
	}
	return database, nil
}
