// Package weatherbackup archives the day's active weather alerts from the
// live layer into the historic layer and the object store.
package weatherbackup

import (
	"errors"
	"maps"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"go.uber.org/multierr"

	"github.com/bcgov/geobc-bier/bier"
	"github.com/bcgov/geobc-bier/models"
)

const (
	LIVE_ITEM_ID_KEY     = "WeatherAlerts_ItemID"
	HISTORIC_ITEM_ID_KEY = "HistoricAlerts_itemID"

	SNAPSHOT_PREFIX = "Data/WeatherAlerts/"
)

// Run copies everything currently in the live alerts layer into the historic
// layer, stamped with the backup time, and uploads the same set as a JSON
// snapshot. The two archive targets are independent: a failure on one does
// not stop the other. A quiet day with no alerts is a no-op.
func Run(live, historic bier.FeatureLayer, store bier.ObjectStore, now time.Time) error {
	features, err := live.Query("1=1", "*", true)
	if err != nil {
		return errors.New("query live alerts layer: " + err.Error())
	}
	if len(features) == 0 {
		logrus.Info("No active weather alerts to archive")
		return nil
	}

	archived := buildArchive(features, now)

	var archiveErr error
	if err := historic.Append(archived); err != nil {
		archiveErr = multierr.Append(archiveErr, errors.New("append to historic alerts layer: "+err.Error()))
	} else {
		logrus.Infof("Archived %d weather alerts to ItemID: %s", len(archived), historic.ItemID())
	}

	key := SNAPSHOT_PREFIX + "WeatherAlerts_" + now.Format("060102") + ".json"
	if err := store.UploadJSON(key, models.FeatureCollection{Features: archived}, false); err != nil {
		archiveErr = multierr.Append(archiveErr, errors.New("upload weather alerts snapshot: "+err.Error()))
	} else {
		logrus.Info("Weather alerts snapshot uploaded: " + key)
	}
	return archiveErr
}

func buildArchive(features []models.Feature, now time.Time) []models.Feature {
	stamp := models.EpochMillis(now)
	archived := make([]models.Feature, 0, len(features))
	for _, feature := range features {
		attrs := make(map[string]interface{}, len(feature.Attributes)+1)
		maps.Copy(attrs, feature.Attributes)
		// The historic layer assigns its own object IDs.
		for key := range attrs {
			if strings.EqualFold(key, "objectid") {
				delete(attrs, key)
			}
		}
		attrs["backup_date"] = stamp
		archived = append(archived, models.Feature{Attributes: attrs, Geometry: feature.Geometry})
	}
	return archived
}
