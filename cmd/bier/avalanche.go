package main

import (
	"github.com/spf13/cobra"

	"github.com/bcgov/geobc-bier/bier"
	"github.com/bcgov/geobc-bier/internal/feeds/avalanche"
)

var avalancheCmd = &cobra.Command{
	Use:   "avalanche",
	Short: "Sync Avalanche Canada forecasts",
	RunE: func(cmd *cobra.Command, args []string) error {
		settings, ago, err := settingsAndSession()
		if err != nil {
			return err
		}
		defer ago.Disconnect()

		layer, err := layerFor(ago, settings, avalanche.ITEM_ID_KEY)
		if err != nil {
			return err
		}
		return avalanche.Run(bier.NewClient(), layer)
	},
}

func init() {
	rootCmd.AddCommand(avalancheCmd)
}
