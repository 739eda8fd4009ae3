package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Visual-Illusions/NewU/internal/config"
)

var rootCmd = &cobra.Command{
	Use:           "newu",
	Short:         "NewU respawn stations",
	Long:          `NewU tracks respawn stations, decides where actors come back after death, and bridges a host game engine over WebSocket.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "settings file (default $NEWU_CONFIG or "+config.DefaultPath+")")
}

// loadSettings resolves the config path from the flag, $NEWU_CONFIG or the
// default, loads it and configures logging.
func loadSettings(cmd *cobra.Command) (config.Settings, error) {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		path = os.Getenv("NEWU_CONFIG")
	}
	if path == "" {
		path = config.DefaultPath
	}

	cfg, err := config.Load(path)
	if err != nil {
		return cfg, fmt.Errorf("loading config: %w", err)
	}
	setupLogging(cfg.LogLevel)
	return cfg, nil
}
