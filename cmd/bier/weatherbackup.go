package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/bcgov/geobc-bier/internal/feeds/weatherbackup"
)

var weatherBackupCmd = &cobra.Command{
	Use:   "weather-backup",
	Short: "Archive today's weather alerts",
	RunE: func(cmd *cobra.Command, args []string) error {
		settings, ago, err := settingsAndSession()
		if err != nil {
			return err
		}
		defer ago.Disconnect()

		live, err := layerFor(ago, settings, weatherbackup.LIVE_ITEM_ID_KEY)
		if err != nil {
			return err
		}
		historic, err := layerFor(ago, settings, weatherbackup.HISTORIC_ITEM_ID_KEY)
		if err != nil {
			return err
		}
		store, err := storeFor(settings)
		if err != nil {
			return err
		}
		return weatherbackup.Run(live, historic, store, time.Now())
	},
}

func init() {
	rootCmd.AddCommand(weatherBackupCmd)
}
