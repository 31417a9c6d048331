// Package proximity flags health care facilities that sit near active fire
// hazards and writes the results back onto the facilities layer. All distance
// filtering happens server-side through spatial queries.
package proximity

import (
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/bcgov/geobc-bier/bier"
	"github.com/bcgov/geobc-bier/models"
)

const (
	FACILITIES_ITEM_ID_KEY = "FACILITIES_ITEMID"
	ORDERS_ITEM_ID_KEY     = "ORDERSALERTSCOP_ITEMID"
	FIRES_ITEM_ID_KEY      = "FIRESLOCATIONS_ITEMID"
	SOLE_BCR_ITEM_ID_KEY   = "SOLEBCR_ITEMID"

	THRESHOLD_METERS = 25000

	UNIQUE_ID_FIELD = "LicReg"

	ACTIVE_FIRE_WHERE = "FIRE_STATUS <> 'Out' AND FIRE_STATUS <> 'Being Held' AND FIRE_STATUS <> 'Under Control'"
	FIRE_EVENT_WHERE  = "EVENT_TYPE = 'Fire'"
	ACTIVE_SOLE_WHERE = "STATUS = 'Active' AND EVENT_TYPE = 'Fire'"
)

// Run recalculates the hazard proximity columns for every facility and
// updates the facilities layer in place. Facilities clear of all hazards
// still get an update so stale flags from earlier runs are reset.
func Run(facilities bier.FeatureLayer, orders, fires, soleBCR bier.SpatialQuerier) error {
	rows, err := facilities.Query("1=1", "*", true)
	if err != nil {
		return errors.New("query facilities layer: " + err.Error())
	}
	logrus.Infof("%d facilities found", len(rows))

	updates := make([]models.Feature, 0, len(rows))
	for _, row := range rows {
		licReg := attrString(row.Attributes, UNIQUE_ID_FIELD)
		if row.Geometry == nil {
			logrus.Warnf("Facility %s has no geometry", licReg)
			continue
		}

		attrs, err := hazardAttributes(row.Geometry, orders, fires, soleBCR)
		if err != nil {
			return fmt.Errorf("facility %s: %s", licReg, err.Error())
		}
		attrs["OBJECTID"] = row.Attributes["OBJECTID"]
		updates = append(updates, models.Feature{Attributes: attrs})
	}

	if len(updates) == 0 {
		logrus.Warn("No facility updates to apply")
		return nil
	}
	if err := facilities.Update(updates); err != nil {
		return errors.New("update facilities layer: " + err.Error())
	}
	logrus.Infof("Updated hazard proximity for %d facilities", len(updates))
	return nil
}

// hazardAttributes queries each hazard layer within the threshold distance of
// the facility and builds the column values to write back.
func hazardAttributes(geom *models.Geometry, orders, fires, soleBCR bier.SpatialQuerier) (map[string]interface{}, error) {
	attrs := map[string]interface{}{
		"CLOSE_ORDER_CNT":             0,
		"ORDER_DETAILS":               "",
		"CLOSE_ALERT_CNT":             0,
		"ALERT_DETAILS":               "",
		"FIRE_COUNT_25KM":             0,
		"HAS_FIRE_25KM":               0,
		"FIRE_25KM_NUMBERS":           "",
		"FIRE_25KM_GEOGRAPHICDESCRIP": "",
		"SOLE_TYPECODES":              "",
		"SOLE_STRTDATE":               nil,
		"SOLE_COMMUNITY":              "",
		"SOLE_MUNI":                   "",
	}

	nearbyFires, err := fires.QueryNearby(geom, THRESHOLD_METERS, ACTIVE_FIRE_WHERE, "FIRE_NUMBER,GEOGRAPHIC_DESCRIPTION,FIRE_STATUS")
	if err != nil {
		return nil, errors.New("query nearby fires: " + err.Error())
	}
	if len(nearbyFires) > 0 {
		attrs["FIRE_COUNT_25KM"] = len(nearbyFires)
		attrs["HAS_FIRE_25KM"] = 1
		attrs["FIRE_25KM_NUMBERS"] = fireNumbers(nearbyFires)
		attrs["FIRE_25KM_GEOGRAPHICDESCRIP"] = fireDescriptions(nearbyFires)
	}

	nearbyOA, err := orders.QueryNearby(geom, THRESHOLD_METERS, FIRE_EVENT_WHERE, "ORDER_ALERT_STATUS,EVENT_NAME,EVENT_TYPE")
	if err != nil {
		return nil, errors.New("query nearby orders and alerts: " + err.Error())
	}
	orderRows := filterByField(nearbyOA, "ORDER_ALERT_STATUS", "Order")
	alertRows := filterByField(nearbyOA, "ORDER_ALERT_STATUS", "Alert")
	attrs["CLOSE_ORDER_CNT"] = len(orderRows)
	attrs["ORDER_DETAILS"] = orderAlertDetails(orderRows)
	attrs["CLOSE_ALERT_CNT"] = len(alertRows)
	attrs["ALERT_DETAILS"] = orderAlertDetails(alertRows)

	nearbySOLE, err := soleBCR.QueryNearby(geom, THRESHOLD_METERS, ACTIVE_SOLE_WHERE, "SOLE_TYPE_CODE,START_DATE,COMMUNITY,MUNICIPALITY")
	if err != nil {
		return nil, errors.New("query nearby sole and bcr: " + err.Error())
	}
	// A band council resolution fills the columns first, then a state of
	// local emergency takes precedence if one is also in range.
	for _, code := range []string{"FN", "LG"} {
		for _, row := range filterByField(nearbySOLE, "SOLE_TYPE_CODE", code) {
			attrs["SOLE_TYPECODES"] = code
			attrs["SOLE_STRTDATE"] = row.Attributes["START_DATE"]
			attrs["SOLE_COMMUNITY"] = attrString(row.Attributes, "COMMUNITY")
			attrs["SOLE_MUNI"] = attrString(row.Attributes, "MUNICIPALITY")
			break
		}
	}

	return attrs, nil
}

// fireNumbers joins "number (status)" entries, skipping fires missing either.
func fireNumbers(fires []models.Feature) string {
	entries := make([]string, 0, len(fires))
	for _, fire := range fires {
		number := attrString(fire.Attributes, "FIRE_NUMBER")
		status := attrString(fire.Attributes, "FIRE_STATUS")
		if number == "" || status == "" {
			continue
		}
		entries = append(entries, number+" ("+status+")")
	}
	return strings.Join(entries, ", ")
}

func fireDescriptions(fires []models.Feature) string {
	seen := make(map[string]bool, len(fires))
	entries := make([]string, 0, len(fires))
	for _, fire := range fires {
		description := attrString(fire.Attributes, "GEOGRAPHIC_DESCRIPTION")
		if description == "" || seen[description] {
			continue
		}
		seen[description] = true
		entries = append(entries, description)
	}
	return strings.Join(entries, ", ")
}

func orderAlertDetails(rows []models.Feature) string {
	entries := make([]string, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, fmt.Sprintf("%s - %s (%s)",
			attrString(row.Attributes, "ORDER_ALERT_STATUS"),
			attrString(row.Attributes, "EVENT_TYPE"),
			attrString(row.Attributes, "EVENT_NAME")))
	}
	return strings.Join(entries, ", ")
}

func filterByField(rows []models.Feature, field, value string) []models.Feature {
	matched := make([]models.Feature, 0, len(rows))
	for _, row := range rows {
		if row.Attributes[field] == value {
			matched = append(matched, row)
		}
	}
	return matched
}

func attrString(attrs map[string]interface{}, name string) string {
	value, _ := attrs[name].(string)
	return value
}
