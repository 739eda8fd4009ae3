package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Visual-Illusions/NewU/internal/persistence"
)

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Write a compressed snapshot of the station file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadSettings(cmd)
		if err != nil {
			return err
		}
		src := persistence.NewFileStore(cfg.DataDir).Path()
		archive, err := persistence.Backup(src, cfg.Backup.Dir, time.Now())
		if err != nil {
			return err
		}
		if archive == "" {
			fmt.Fprintf(cmd.OutOrStdout(), "nothing to back up: %s does not exist\n", src)
			return nil
		}
		fmt.Fprintln(cmd.OutOrStdout(), archive)
		return nil
	},
}

var restoreCmd = &cobra.Command{
	Use:   "restore <archive>",
	Short: "Replace the station file with a backup",
	Long:  `Restores a .json.zst archive written by "newu backup". Stop the server first; a running server overwrites the file on its next save.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadSettings(cmd)
		if err != nil {
			return err
		}
		n, err := persistence.Restore(args[0], persistence.NewFileStore(cfg.DataDir).Path())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "restored %d stations\n", n)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(backupCmd)
	rootCmd.AddCommand(restoreCmd)
}
