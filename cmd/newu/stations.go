package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Visual-Illusions/NewU/internal/persistence"
	"github.com/Visual-Illusions/NewU/internal/station"
)

var stationsCmd = &cobra.Command{
	Use:   "stations",
	Short: "List stations from the station file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadSettings(cmd)
		if err != nil {
			return err
		}

		registry := station.NewRegistry(persistence.NewFileStore(cfg.DataDir))
		if err := registry.Load(); err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tWORLD\tDIMENSION\tX\tY\tZ\tDISCOVERERS")
		for _, s := range registry.Stations() {
			p := s.Placement
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%d\n",
				s.Name, p.World, p.Dimension, p.BlockX(), p.BlockY(), p.BlockZ(), len(s.Discoverers))
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(stationsCmd)
}
