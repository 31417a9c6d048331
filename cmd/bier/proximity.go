package main

import (
	"github.com/spf13/cobra"

	"github.com/bcgov/geobc-bier/internal/feeds/proximity"
)

var proximityCmd = &cobra.Command{
	Use:   "proximity",
	Short: "Flag health facilities near active hazards",
	RunE: func(cmd *cobra.Command, args []string) error {
		settings, ago, err := settingsAndSession()
		if err != nil {
			return err
		}
		defer ago.Disconnect()

		facilities, err := layerFor(ago, settings, proximity.FACILITIES_ITEM_ID_KEY)
		if err != nil {
			return err
		}
		orders, err := layerFor(ago, settings, proximity.ORDERS_ITEM_ID_KEY)
		if err != nil {
			return err
		}
		fires, err := layerFor(ago, settings, proximity.FIRES_ITEM_ID_KEY)
		if err != nil {
			return err
		}
		soleBCR, err := layerFor(ago, settings, proximity.SOLE_BCR_ITEM_ID_KEY)
		if err != nil {
			return err
		}
		return proximity.Run(facilities, orders, fires, soleBCR)
	},
}

func init() {
	rootCmd.AddCommand(proximityCmd)
}
