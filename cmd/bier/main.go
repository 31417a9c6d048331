// Command bier runs the GeoBC emergency response data feeds. Each subcommand
// is one scheduled feed invoked by Jenkins: fetch from the upstream source,
// transform, and replace the contents of the hosted layer it backs. Runs are
// independent batch jobs; a non-zero exit means the feed did not complete.
package main

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	configPath string
	storeMode  string
	localDir   string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:           "bier",
	Short:         "GeoBC emergency response data feeds",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logrus.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
		logrus.SetLevel(logLevel())
	},
}

// logLevel resolves the logging level: --verbose wins, then LOG_LEVEL from
// the environment, then info.
func logLevel() logrus.Level {
	if verbose {
		return logrus.DebugLevel
	}
	if raw := os.Getenv("LOG_LEVEL"); raw != "" {
		if level, err := logrus.ParseLevel(raw); err == nil {
			return level
		}
	}
	return logrus.InfoLevel
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config.json (default: beside the executable)")
	rootCmd.PersistentFlags().StringVar(&storeMode, "store", "s3", "object store mode: s3 or local")
	rootCmd.PersistentFlags().StringVar(&localDir, "local-dir", "data", "directory backing the local object store")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		logrus.Error("Job failed: " + err.Error())
		os.Exit(1)
	}
}
