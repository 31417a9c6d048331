package main

import (
	"github.com/spf13/cobra"

	"github.com/bcgov/geobc-bier/bier"
	"github.com/bcgov/geobc-bier/internal/feeds/bchydro"
)

var bchydroURL string

var bchydroCmd = &cobra.Command{
	Use:   "bchydro",
	Short: "Sync BC Hydro power outages",
	RunE: func(cmd *cobra.Command, args []string) error {
		settings, ago, err := settingsAndSession()
		if err != nil {
			return err
		}
		defer ago.Disconnect()

		outages, err := layerFor(ago, settings, bchydro.ITEM_ID_KEY)
		if err != nil {
			return err
		}
		outagesLFN, err := layerFor(ago, settings, bchydro.LFN_ITEM_ID_KEY)
		if err != nil {
			return err
		}
		return bchydro.Run(bier.NewClient(), bchydroURL, outages, outagesLFN)
	},
}

func init() {
	bchydroCmd.Flags().StringVar(&bchydroURL, "url", "", "override the outage map data URL")
	rootCmd.AddCommand(bchydroCmd)
}
