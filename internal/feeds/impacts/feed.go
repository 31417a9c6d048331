// Package impacts builds the orders and alerts daily change table by
// comparing today's impact counts against yesterday's archived snapshot.
package impacts

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/bcgov/geobc-bier/bier"
	"github.com/bcgov/geobc-bier/models"
)

const (
	IMPACT_TABLE_ITEM_ID_KEY = "Orders_Alerts_Impact_Table_ItemID"
	CHANGE_TABLE_ITEM_ID_KEY = "Orders_Alerts_Change_Table_ItemID"
	DASHBOARD_ITEM_ID_KEY    = "Orders_Alerts_Impact_Dashboard_ItemID"

	SNAPSHOT_PREFIX = "Data/OrdersAlerts/ImpactTable/"

	ACTIVE_WHERE = "ACTIVE = 'Active'"

	UPDATE_WIDGET_NAME = "Data Changes Table"
)

// Count columns on the impact table and the change column each one feeds.
var impactColumns = []struct {
	count  string
	change string
}{
	{"SOLE_COUNT", "SOLE_CHANGE"},
	{"BCR_COUNT", "BCR_CHANGE"},
	{"ORDER_COUNT", "ORDER_CHANGE"},
	{"ALERT_COUNT", "ALERT_CHANGE"},
	{"ORDER_POP", "ORDER_POP_CHANGE"},
	{"ALERT_POP", "ALERT_POP_CHANGE"},
	{"ORDER_HOME", "ORDER_HOME_CHANGE"},
	{"ALERT_HOME", "ALERT_HOME_CHANGE"},
	{"TOTAL_POP", "TOTAL_POP_CHANGE"},
	{"TOTAL_HOME", "TOTAL_HOME_CHANGE"},
	{"TOTAL_COUNT", "TOTAL_COUNT_CHANGE"},
}

// Rows are compared per event year, PREOC region and event type.
type impactKey struct {
	year      interface{}
	preoc     interface{}
	eventType interface{}
}

// Run snapshots today's active impact rows to the object store, pulls
// yesterday's snapshot back, and replaces the change table with the per-key
// count deltas. Keys without a row on both days produce no change row, and a
// missing yesterday snapshot empties the table rather than failing.
func Run(impactTable, changeTable bier.FeatureLayer, store bier.ObjectStore, now time.Time) error {
	today, err := impactTable.Query(ACTIVE_WHERE, "*", false)
	if err != nil {
		return errors.New("query impact table: " + err.Error())
	}
	logrus.Infof("%d active impact rows found", len(today))

	todayKey := snapshotKey(now)
	if err := store.UploadJSON(todayKey, models.FeatureCollection{Features: today}, false); err != nil {
		return errors.New("upload impact snapshot: " + err.Error())
	}
	logrus.Info("Impact table snapshot uploaded: " + todayKey)

	yesterday, err := loadYesterday(store, now)
	if err != nil {
		return err
	}

	changes := buildChanges(today, buildCounts(yesterday))
	if err := changeTable.FullReplace(changes); err != nil {
		return errors.New("update change table: " + err.Error())
	}
	logrus.Infof("Finished creating %d change rows", len(changes))
	return nil
}

func snapshotKey(day time.Time) string {
	return SNAPSHOT_PREFIX + "Impact_Table_" + day.Format("060102") + ".json"
}

// loadYesterday finds yesterday's snapshot by its date suffix. No snapshot is
// not an error: the first run of the season has nothing to compare against.
func loadYesterday(store bier.ObjectStore, now time.Time) ([]models.Feature, error) {
	keys, err := store.List(SNAPSHOT_PREFIX)
	if err != nil {
		return nil, errors.New("list impact snapshots: " + err.Error())
	}

	stamp := now.AddDate(0, 0, -1).Format("060102")
	var found string
	for _, key := range keys {
		filename := key[strings.LastIndex(key, "/")+1:]
		if strings.Contains(filename, ".json") && strings.Contains(filename, stamp) {
			found = key
		}
	}
	if found == "" {
		logrus.Warnf("No impact snapshot found for %s", stamp)
		return nil, nil
	}

	var snapshot models.FeatureCollection
	if err := store.DownloadJSON(found, &snapshot); err != nil {
		return nil, errors.New("download impact snapshot: " + err.Error())
	}
	return snapshot.Features, nil
}

func buildCounts(rows []models.Feature) map[impactKey][]float64 {
	counts := make(map[impactKey][]float64, len(rows))
	for _, row := range rows {
		if row.Attributes["ACTIVE"] != "Active" {
			continue
		}
		counts[rowKey(row)] = rowCounts(row)
	}
	return counts
}

func buildChanges(today []models.Feature, yesterday map[impactKey][]float64) []models.Feature {
	changes := make([]models.Feature, 0, len(today))
	seen := make(map[impactKey]bool, len(today))
	for _, row := range today {
		if row.Attributes["ACTIVE"] != "Active" {
			continue
		}
		key := rowKey(row)
		if seen[key] {
			continue
		}
		seen[key] = true

		previous, ok := yesterday[key]
		if !ok {
			continue
		}
		counts := rowCounts(row)

		attrs := map[string]interface{}{
			"EVENT_YEAR": key.year,
			"PREOC_CODE": key.preoc,
			"EVENT_TYPE": key.eventType,
			"ACTIVE":     "Active",
		}
		for i, column := range impactColumns {
			delta := counts[i] - previous[i]
			if delta == 0 {
				attrs[column.change] = nil
			} else {
				attrs[column.change] = delta
			}
		}
		changes = append(changes, models.Feature{Attributes: attrs})
	}
	return changes
}

func rowKey(row models.Feature) impactKey {
	return impactKey{
		year:      row.Attributes["EVENT_YEAR"],
		preoc:     row.Attributes["PREOC_CODE"],
		eventType: row.Attributes["EVENT_TYPE"],
	}
}

// rowCounts reads the count columns, treating null the same as zero.
func rowCounts(row models.Feature) []float64 {
	counts := make([]float64, len(impactColumns))
	for i, column := range impactColumns {
		value, _ := row.Attributes[column.count].(float64)
		counts[i] = value
	}
	return counts
}

// UpdateDashboard rewrites the update time in the change table widget's
// caption on the impact dashboard.
func UpdateDashboard(portal bier.ItemContent, itemID string, now time.Time) error {
	info, err := portal.ItemInfo(itemID)
	if err != nil {
		return errors.New("get dashboard item: " + err.Error())
	}
	data, err := portal.ItemData(itemID)
	if err != nil {
		return errors.New("get dashboard data: " + err.Error())
	}

	stamp := now.Format("06-01-02") + " 08:00"
	found := false
	for _, raw := range dashboardWidgets(data) {
		widget, ok := raw.(map[string]interface{})
		if !ok || widget["name"] != UPDATE_WIDGET_NAME {
			continue
		}
		caption, _ := widget["caption"].(string)
		updated, err := replaceUpdateTime(caption, stamp)
		if err != nil {
			return fmt.Errorf("widget %q: %w", UPDATE_WIDGET_NAME, err)
		}
		widget["caption"] = updated
		found = true
	}
	if !found {
		return fmt.Errorf("widget %q not found on dashboard %s", UPDATE_WIDGET_NAME, itemID)
	}

	if err := portal.UpdateItemData(info, data); err != nil {
		return errors.New("update dashboard: " + err.Error())
	}
	logrus.Info("Finished updating impact dashboard time")
	return nil
}

// Newer dashboards nest their widgets under desktopView.
func dashboardWidgets(data map[string]interface{}) []interface{} {
	if desktop, ok := data["desktopView"].(map[string]interface{}); ok {
		if widgets, ok := desktop["widgets"].([]interface{}); ok {
			return widgets
		}
	}
	widgets, _ := data["widgets"].([]interface{})
	return widgets
}

// replaceUpdateTime swaps the timestamp between the caption's update marker
// and the paragraph close for the new stamp.
func replaceUpdateTime(caption, stamp string) (string, error) {
	const marker = "Data Updated: "
	start := strings.Index(caption, marker)
	if start < 0 {
		return "", errors.New("caption has no update marker")
	}
	rest := caption[start+len(marker):]
	end := strings.Index(rest, "</p>")
	if end < 0 {
		return "", errors.New("caption has no closing tag after update marker")
	}
	return caption[:start+len(marker)] + stamp + rest[end:], nil
}
