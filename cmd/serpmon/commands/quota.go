package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/serpmon/serpmon/errors"
	"github.com/serpmon/serpmon/quota"
)

// QuotaCmd represents the quota command
var QuotaCmd = &cobra.Command{
	Use:   "quota",
	Short: "Manage account query quotas",
	Long: `quota — Manage monthly query quotas

Examples:
  serpmon quota reset             # Restore eligible accounts to the monthly limit
  serpmon quota show <account>    # Show remaining quota for an account`,
}

var quotaResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Restore eligible accounts to the monthly query limit",
	RunE:  runQuotaReset,
}

var quotaShowCmd = &cobra.Command{
	Use:   "show <account-id>",
	Short: "Show remaining quota for an account",
	Args:  cobra.ExactArgs(1),
	RunE:  runQuotaShow,
}

func init() {
	QuotaCmd.AddCommand(quotaResetCmd)
	QuotaCmd.AddCommand(quotaShowCmd)
}

func runQuotaReset(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return errors.Wrap(err, "failed to load config")
	}

	database, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	ledger := quota.NewLedger(database)
	updated, err := ledger.ResetAll(cfg.Quota.MonthlyQueryLimit)
	if err != nil {
		return errors.Wrap(err, "failed to reset quotas")
	}

	fmt.Printf("Reset %d account(s) to %d queries\n", updated, cfg.Quota.MonthlyQueryLimit)
	return nil
}

func runQuotaShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return errors.Wrap(err, "failed to load config")
	}

	database, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	ledger := quota.NewLedger(database)
	remaining, err := ledger.Remaining(args[0])
	if err != nil {
		return err
	}

	fmt.Printf("Account %s: %d queries remaining\n", args[0], remaining)
	return nil
}
