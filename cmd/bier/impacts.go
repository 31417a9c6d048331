package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/bcgov/geobc-bier/internal/feeds/impacts"
)

var impactsCmd = &cobra.Command{
	Use:   "impacts",
	Short: "Compare order and alert impacts against yesterday",
	RunE: func(cmd *cobra.Command, args []string) error {
		settings, ago, err := settingsAndSession()
		if err != nil {
			return err
		}
		defer ago.Disconnect()

		impactTable, err := layerFor(ago, settings, impacts.IMPACT_TABLE_ITEM_ID_KEY)
		if err != nil {
			return err
		}
		changeTable, err := layerFor(ago, settings, impacts.CHANGE_TABLE_ITEM_ID_KEY)
		if err != nil {
			return err
		}
		store, err := storeFor(settings)
		if err != nil {
			return err
		}

		now := time.Now()
		if err := impacts.Run(impactTable, changeTable, store, now); err != nil {
			return err
		}

		dashboardID, err := settings.ItemID(impacts.DASHBOARD_ITEM_ID_KEY)
		if err != nil {
			return err
		}
		return impacts.UpdateDashboard(ago, dashboardID, now)
	},
}

func init() {
	rootCmd.AddCommand(impactsCmd)
}
