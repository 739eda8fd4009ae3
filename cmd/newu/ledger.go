package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/Visual-Illusions/NewU/internal/config"
	"github.com/Visual-Illusions/NewU/internal/economy"
)

// depositor is implemented by both ledger backends.
type depositor interface {
	Deposit(ctx context.Context, actorID string, amount float64) error
}

var ledgerCmd = &cobra.Command{
	Use:   "ledger",
	Short: "Inspect and fund accounts in the built-in ledger",
}

var ledgerBalanceCmd = &cobra.Command{
	Use:   "balance <actor-id>",
	Short: "Print an account balance",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadSettings(cmd)
		if err != nil {
			return err
		}
		backend, closeLedger, err := openConfiguredLedger(cmd, cfg)
		if err != nil {
			return err
		}
		defer closeLedger()

		balance, err := backend.Balance(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %.2f\n", args[0], balance)
		return nil
	},
}

var ledgerDepositCmd = &cobra.Command{
	Use:   "deposit <actor-id> <amount>",
	Short: "Credit an account, creating it if needed",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		amount, err := strconv.ParseFloat(args[1], 64)
		if err != nil || amount <= 0 {
			return fmt.Errorf("invalid amount %q", args[1])
		}

		cfg, err := loadSettings(cmd)
		if err != nil {
			return err
		}
		backend, closeLedger, err := openConfiguredLedger(cmd, cfg)
		if err != nil {
			return err
		}
		defer closeLedger()

		d, ok := backend.(depositor)
		if !ok {
			return fmt.Errorf("backend %q does not accept deposits", cfg.Economy.Backend)
		}
		if err := d.Deposit(cmd.Context(), args[0], amount); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "deposited %.2f to %s\n", amount, args[0])
		return nil
	},
}

func init() {
	ledgerCmd.AddCommand(ledgerBalanceCmd)
	ledgerCmd.AddCommand(ledgerDepositCmd)
	rootCmd.AddCommand(ledgerCmd)
}

func openConfiguredLedger(cmd *cobra.Command, cfg config.Settings) (economy.Backend, func(), error) {
	if cfg.Economy.Backend == config.BackendNone {
		return nil, nil, fmt.Errorf("no economy backend configured")
	}
	return openLedger(cmd.Context(), cfg.Economy)
}
