package main

import (
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/bcgov/geobc-bier/bier"
	"github.com/bcgov/geobc-bier/internal/feeds/weather"
)

var weatherCmd = &cobra.Command{
	Use:   "weather",
	Short: "Sync ECCC weather alerts",
	RunE: func(cmd *cobra.Command, args []string) error {
		settings, ago, err := settingsAndSession()
		if err != nil {
			return err
		}
		defer ago.Disconnect()

		layer, err := layerFor(ago, settings, weather.ITEM_ID_KEY)
		if err != nil {
			return err
		}
		if err := weather.Run(bier.NewClient(), layer); err != nil {
			return err
		}

		// The dashboard stamp is optional; feeds can run against layers that
		// no dashboard fronts.
		dashboardID, err := settings.ItemID(weather.DASHBOARD_ITEM_ID_KEY)
		if err != nil {
			logrus.Info("No sit rep dashboard configured, skipping update text")
			return nil
		}
		return weather.UpdateDashboard(ago, dashboardID, time.Now())
	},
}

func init() {
	rootCmd.AddCommand(weatherCmd)
}
