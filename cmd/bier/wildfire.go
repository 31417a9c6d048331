package main

import (
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/bcgov/geobc-bier/bier"
	"github.com/bcgov/geobc-bier/internal/feeds/wildfire"
)

var wildfireCmd = &cobra.Command{
	Use:   "wildfire",
	Short: "Summarize fires of note per fire centre",
	RunE: func(cmd *cobra.Command, args []string) error {
		settings, ago, err := settingsAndSession()
		if err != nil {
			return err
		}
		defer ago.Disconnect()

		centres, err := layerFor(ago, settings, wildfire.FIRE_CENTRE_ITEM_ID_KEY)
		if err != nil {
			return err
		}
		locations, err := layerFor(ago, settings, wildfire.FIRE_LOCATION_ITEM_ID_KEY)
		if err != nil {
			return err
		}
		table, err := layerFor(ago, settings, wildfire.WILDFIRE_TABLE_ITEM_ID_KEY)
		if err != nil {
			return err
		}
		store, err := storeFor(settings)
		if err != nil {
			return err
		}

		now := time.Now()
		notes, centreNames, err := wildfire.Run(bier.NewClient(), centres, locations, table, store, now)
		if err != nil {
			return err
		}

		var dashboards []string
		for _, key := range []string{wildfire.DASHBOARD_MOBILE_ITEM_ID_KEY, wildfire.DASHBOARD_DESKTOP_ITEM_ID_KEY} {
			itemID, err := settings.ItemID(key)
			if err != nil {
				logrus.Infof("No %s configured, skipping that dashboard", key)
				continue
			}
			dashboards = append(dashboards, itemID)
		}
		if len(dashboards) == 0 {
			return nil
		}
		return wildfire.UpdateDashboards(ago, dashboards, wildfire.DashboardText(centreNames, notes), now)
	},
}

func init() {
	rootCmd.AddCommand(wildfireCmd)
}
