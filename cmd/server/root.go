package main

import (
	"github.com/spf13/cobra"

	"weatherfav/internal/config"
)

func newRootCmd() *cobra.Command {
	var cfg config.Config

	root := &cobra.Command{
		Use:           "weatherfav",
		Short:         "Favorite locations with current weather and forecasts",
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := config.Load()
			if err != nil {
				return err
			}
			cfg = loaded
			return nil
		},
	}

	root.AddCommand(
		newServeCmd(&cfg),
		newForecastCmd(&cfg),
		newFavoritesCmd(&cfg),
		newRefreshCmd(&cfg),
	)
	return root
}
