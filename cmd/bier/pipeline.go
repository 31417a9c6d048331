package main

import (
	"fmt"

	"github.com/bcgov/geobc-bier/bier"
)

// settingsAndSession loads the settings and opens the portal session every
// feed needs. The caller owns the session and must Disconnect it.
func settingsAndSession() (bier.Settings, *bier.AGO, error) {
	settings, err := bier.LoadSettings(configPath)
	if err != nil {
		return bier.Settings{}, nil, err
	}
	ago, err := bier.Connect(settings.Credentials())
	if err != nil {
		return bier.Settings{}, nil, err
	}
	return settings, ago, nil
}

// layerFor resolves a configured item ID into a handle on layer 0 of its
// hosted service.
func layerFor(ago *bier.AGO, settings bier.Settings, itemKey string) (*bier.Item, error) {
	itemID, err := settings.ItemID(itemKey)
	if err != nil {
		return nil, err
	}
	return bier.NewItem(ago, itemID, 0)
}

// storeFor builds the object store: the provincial S3 bucket, or a local
// directory for development runs.
func storeFor(settings bier.Settings) (bier.ObjectStore, error) {
	switch storeMode {
	case "s3":
		return bier.NewS3Store(settings.S3)
	case "local":
		return bier.NewLocalStore(localDir)
	default:
		return nil, fmt.Errorf("unknown store mode %q", storeMode)
	}
}
