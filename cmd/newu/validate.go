package main

import (
	"bytes"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Visual-Illusions/NewU/internal/persistence"
)

var validateCmd = &cobra.Command{
	Use:   "validate [file]",
	Short: "Check a station file against the schema",
	Long:  `Validates the station file (default: <data_dir>/stations.json) and reports how many stations it holds.`,
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := stationFilePath(cmd, args)
		if err != nil {
			return err
		}

		raw, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}

		// Legacy files fail the schema but still decode; report both.
		schemaErr := persistence.Validate(bytes.NewReader(raw))
		records, decodeErr := persistence.Decode(bytes.NewReader(raw))
		if decodeErr != nil {
			return fmt.Errorf("%s: decoded %d stations before error: %w", path, len(records), decodeErr)
		}
		if schemaErr != nil {
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d stations (legacy format: %v)\n", path, len(records), schemaErr)
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %d stations, ok\n", path, len(records))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

// stationFilePath returns args[0] or the station file in the configured data dir.
func stationFilePath(cmd *cobra.Command, args []string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	cfg, err := loadSettings(cmd)
	if err != nil {
		return "", err
	}
	return persistence.NewFileStore(cfg.DataDir).Path(), nil
}
