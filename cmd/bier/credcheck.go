package main

import (
	"github.com/spf13/cobra"

	"github.com/bcgov/geobc-bier/bier"
	"github.com/bcgov/geobc-bier/internal/feeds/credcheck"
)

var credcheckCmd = &cobra.Command{
	Use:   "credcheck",
	Short: "Verify the portal credentials still work",
	RunE: func(cmd *cobra.Command, args []string) error {
		settings, err := bier.LoadSettings(configPath)
		if err != nil {
			return err
		}
		return credcheck.Run(bier.Connect, bier.NewClient(), settings.Credentials(), settings.WebhookURL)
	},
}

func init() {
	rootCmd.AddCommand(credcheckCmd)
}
