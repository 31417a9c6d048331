// Package credcheck verifies that the stored GeoHub credentials still work
// and raises an MS Teams alarm when they do not. Runs on a schedule so dead
// service-account passwords are noticed before the data feeds start failing.
package credcheck

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/bcgov/geobc-bier/bier"
)

// Connector opens a portal session. bier.Connect is the production value;
// tests substitute a stub.
type Connector func(creds bier.Credentials) (*bier.AGO, error)

// Run attempts a portal connection with the stored credentials. On failure it
// posts a warning to the Teams channel before returning the connect error, so
// operators hear about altered credentials without watching job logs.
func Run(connect Connector, client bier.Fetcher, creds bier.Credentials, webhookURL string) error {
	ago, err := connect(creds)
	if err != nil {
		notify(client, webhookURL, creds.Username)
		return errors.New("connect to portal: " + err.Error())
	}

	ago.Disconnect()
	logrus.Infof("Credentials for '%s' verified", creds.Username)
	return nil
}

func notify(client bier.Fetcher, webhookURL, username string) {
	if webhookURL == "" {
		logrus.Warn("No Teams webhook configured, skipping notification")
		return
	}

	payload := map[string]string{
		"text": fmt.Sprintf("Warning - Automated attempt to connect to GeoHub from '%s' account failed. Credentials may have been altered.", username),
	}
	if err := client.PostJSON(webhookURL, payload, nil, nil); err != nil {
		logrus.Warnf("Teams webhook notification failed: %s", err.Error())
		return
	}
	logrus.Info("Teams webhook notification sent")
}
