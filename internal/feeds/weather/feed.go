// Package weather syncs active ECCC weather alerts for BC into the hosted
// weather alerts layer and stamps the sit rep dashboard with the update time.
package weather

import (
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/bcgov/geobc-bier/bier"
	"github.com/bcgov/geobc-bier/models"
)

const (
	// GeoMet WFS query for the ALERTS layer, filtered to the BC storm
	// prediction centre (CWVR08) by CAP identifier.
	ALERTS_URL = "https://geo.weather.gc.ca/geomet?lang=en&SERVICE=WFS&REQUEST=GetFeature&layer=ALERTS&version=2.0.0&typenames=ALERTS&outputformat=application/json&filter=<ogc:Filter><ogc:PropertyIsLike%20wildCard='*'%20singleChar='.'%20escape='!'><ogc:PropertyName>identifier</ogc:PropertyName><ogc:Literal>*CWVR08*</ogc:Literal></ogc:PropertyIsLike></ogc:Filter>"

	ITEM_ID_KEY           = "WeatherAlerts_ItemID"
	DASHBOARD_ITEM_ID_KEY = "SitRepDashboard_ItemID"

	UPDATE_WIDGET_NAME = "Update Text"
)

// Lower sort values render on top of the web map.
var alertTypeSort = map[string]int{
	"warning":   0,
	"watch":     1,
	"statement": 2,
	"advisory":  3,
}

// Run fetches the active BC alerts and replaces the layer contents with them.
// An empty alert set is not an error: the layer is cleared so expired alerts
// do not linger on the map.
func Run(client bier.Fetcher, layer bier.FeatureLayer) error {
	var alerts models.WeatherAlerts
	if err := client.GetJSON(ALERTS_URL, nil, nil, &alerts); err != nil {
		return errors.New("get weather alerts: " + err.Error())
	}
	logrus.Infof("%d BC Weather Alerts found", len(alerts.Features))

	features := buildFeatures(alerts.Features)
	if len(features) == 0 {
		logrus.Warn("No BC Weather Alert data found")
	}
	if err := layer.FullReplace(features); err != nil {
		return errors.New("update weather alerts layer: " + err.Error())
	}
	logrus.Info("Finished updating BC Weather Alerts layer")
	return nil
}

func buildFeatures(alerts []models.WeatherAlert) []models.Feature {
	features := make([]models.Feature, 0, len(alerts))
	for _, alert := range alerts {
		props := alert.Properties
		if props.Area == "" {
			continue
		}
		geometry, err := alert.Geometry.ToArcGIS(models.WKIDWGS84)
		if err != nil {
			logrus.Warnf("Skipping alert %s: %s", props.Identifier, err)
			continue
		}
		features = append(features, models.Feature{
			Attributes: map[string]interface{}{
				"identifier": props.Identifier,
				"area":       props.Area,
				"headline":   props.Headline,
				"status":     props.Status,
				"alert_type": props.AlertType,
				"descrip_en": props.DescripEn,
				"effective":  alertMillis(props.Identifier, props.Effective),
				"expires":    alertMillis(props.Identifier, props.Expires),
				"sort":       sortValue(props.AlertType),
			},
			Geometry: geometry,
		})
	}
	return features
}

func sortValue(alertType string) int {
	sort, ok := alertTypeSort[alertType]
	if !ok {
		logrus.Warnf("Unknown alert type %q, sorting last", alertType)
		return len(alertTypeSort)
	}
	return sort
}

func alertMillis(identifier, value string) interface{} {
	if value == "" {
		return nil
	}
	parsed, err := time.Parse("2006-01-02T15:04:05Z", value)
	if err != nil {
		logrus.Warnf("Bad timestamp %q on alert %s", value, identifier)
		return nil
	}
	return models.EpochMillis(parsed)
}

// Banner written into the dashboard's update widget.
const updateTextTemplate = `<div style="align-items:center; display:flex; justify-content:center; margin-bottom:auto; margin-left:auto; margin-right:auto; margin-top:auto"><h3 style="font-size:14px; text-align:center"><strong>Data Last Updated: %s</strong></h3></div>`

// UpdateDashboard rewrites the "Update Text" widget on the EMCR sit rep
// dashboard with the given time.
func UpdateDashboard(portal bier.ItemContent, itemID string, now time.Time) error {
	info, err := portal.ItemInfo(itemID)
	if err != nil {
		return errors.New("get dashboard item: " + err.Error())
	}
	data, err := portal.ItemData(itemID)
	if err != nil {
		return errors.New("get dashboard data: " + err.Error())
	}

	widgets, ok := data["widgets"].([]interface{})
	if !ok {
		return fmt.Errorf("dashboard %s has no widgets", itemID)
	}
	found := false
	for _, raw := range widgets {
		widget, ok := raw.(map[string]interface{})
		if !ok || widget["name"] != UPDATE_WIDGET_NAME {
			continue
		}
		widget["text"] = fmt.Sprintf(updateTextTemplate, now.Format("January 2, 2006, 15:04 hrs"))
		found = true
	}
	if !found {
		return fmt.Errorf("widget %q not found on dashboard %s", UPDATE_WIDGET_NAME, itemID)
	}

	if err := portal.UpdateItemData(info, data); err != nil {
		return errors.New("update dashboard: " + err.Error())
	}
	logrus.Info("Finished updating EMCR Sit Rep dashboard time")
	return nil
}
