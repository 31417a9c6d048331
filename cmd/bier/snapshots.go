package main

import (
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/bcgov/geobc-bier/bier"
	"github.com/bcgov/geobc-bier/internal/utils"
)

var snapshotsDir string

var snapshotsCmd = &cobra.Command{
	Use:   "snapshots",
	Short: "Work with archived feed snapshots",
}

var snapshotsPullCmd = &cobra.Command{
	Use:   "pull [prefix]",
	Short: "Download archived snapshots to a local directory",
	Long: `Downloads every object under the given key prefix from the object
store into a local directory, preserving key paths. With no prefix, pulls the
whole snapshot archive.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		settings, err := bier.LoadSettings(configPath)
		if err != nil {
			return err
		}
		store, err := bier.NewS3Store(settings.S3)
		if err != nil {
			return err
		}

		prefix := ""
		if len(args) > 0 {
			prefix = args[0]
		}

		keys, err := store.List(prefix)
		if err != nil {
			return err
		}
		logrus.Infof("%d objects found under prefix %q", len(keys), prefix)

		var pullErr error
		for _, key := range keys {
			if err := pullObject(store, key); err != nil {
				logrus.Warnf("Failed to download %s: %s", key, err.Error())
				pullErr = multierr.Append(pullErr, err)
			}
		}
		return pullErr
	},
}

func pullObject(store bier.ObjectStore, key string) error {
	data, err := store.Download(key)
	if err != nil {
		return err
	}
	localPath := filepath.Join(snapshotsDir, filepath.FromSlash(key))
	if err := utils.CreateDirectoryIfNotExists(filepath.Dir(localPath)); err != nil {
		return err
	}
	if err := os.WriteFile(localPath, data, 0644); err != nil {
		return err
	}
	logrus.Info("Downloaded: " + key)
	return nil
}

func init() {
	snapshotsPullCmd.Flags().StringVar(&snapshotsDir, "dir", "snapshots", "destination directory")
	snapshotsCmd.AddCommand(snapshotsPullCmd)
	rootCmd.AddCommand(snapshotsCmd)
}
