// Package wildfire summarizes the fires of note per fire centre for the EMCR
// sit rep application.
package wildfire

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"go.uber.org/multierr"

	"github.com/bcgov/geobc-bier/bier"
	"github.com/bcgov/geobc-bier/models"
)

const (
	INCIDENT_URL = "https://wildfiresituation-api.nrs.gov.bc.ca/publicPublishedIncident/"

	FIRE_CENTRE_ITEM_ID_KEY       = "FireCentre_ItemID"
	FIRE_LOCATION_ITEM_ID_KEY     = "FirePointBCWS_ItemID"
	WILDFIRE_TABLE_ITEM_ID_KEY    = "WildfireTable_ItemID"
	DASHBOARD_MOBILE_ITEM_ID_KEY  = "SitRepDashboard_Mobile_ItemID"
	DASHBOARD_DESKTOP_ITEM_ID_KEY = "SitRepDashboard_Desktop_ItemID"

	FIRE_OF_NOTE_STATUS = "Fire of Note"

	SNAPSHOT_PREFIX = "Data/Wildfire/"

	FIRE_TEXT_WIDGET_NAME = "Fires of Note Text"
	UPDATE_WIDGET_NAME    = "Update Text"
)

var stageOfControlNames = map[string]string{
	"OUT_CNTRL":  "Out of Control",
	"HOLDING":    "Being Held",
	"UNDR_CNTRL": "Under Control",
	"OUT":        "Out",
}

// MOF fire centre codes as carried on the BCWS fire location layer.
var fireCentreNames = map[int]string{
	2: "Coastal Fire Centre",
	3: "Northwest Fire Centre",
	4: "Prince George Fire Centre",
	5: "Kamloops Fire Centre",
	6: "Southeast Fire Centre",
	7: "Cariboo Fire Centre",
}

// Run rebuilds the per-centre summary table from the current fires of note
// and uploads the day's fire list as a CSV snapshot. It returns the fires and
// the centre names so the caller can refresh the sit rep dashboards.
func Run(client bier.Fetcher, centres, locations, table bier.FeatureLayer, store bier.ObjectStore, now time.Time) ([]models.FireOfNote, []string, error) {
	centreRows, err := centres.Query("1=1", "*", true)
	if err != nil {
		return nil, nil, errors.New("query fire centre layer: " + err.Error())
	}
	fireRows, err := locations.Query("1=1", "*", false)
	if err != nil {
		return nil, nil, errors.New("query fire location layer: " + err.Error())
	}

	notes, err := collectFiresOfNote(client, fireRows)
	if err != nil {
		return nil, nil, err
	}
	logrus.Infof("%d fires of note found", len(notes))

	if err := table.FullReplace(buildSummary(centreRows, notes)); err != nil {
		return nil, nil, errors.New("update wildfire summary table: " + err.Error())
	}

	key := SNAPSHOT_PREFIX + "FiresOfNote_" + now.Format("060102") + ".csv"
	if err := store.UploadCSV(key, notes, false); err != nil {
		return nil, nil, errors.New("upload fires of note snapshot: " + err.Error())
	}
	logrus.Info("Fires of note snapshot uploaded: " + key)

	return notes, centreNames(centreRows), nil
}

// collectFiresOfNote pulls the stage of control for every fire of note from
// the BCWS incident API.
func collectFiresOfNote(client bier.Fetcher, fireRows []models.Feature) ([]models.FireOfNote, error) {
	notes := make([]models.FireOfNote, 0)
	for _, row := range fireRows {
		attrs := row.Attributes
		if attrs["FIRE_STATUS"] != FIRE_OF_NOTE_STATUS {
			continue
		}
		number := attrString(attrs, "FIRE_NUMBER")

		var incident models.PublishedIncident
		if err := client.GetJSON(INCIDENT_URL+number, nil, nil, &incident); err != nil {
			return nil, errors.New("get incident " + number + ": " + err.Error())
		}
		stage, ok := stageOfControlNames[incident.StageOfControlCode]
		if !ok {
			logrus.Warnf("Unknown stage of control %q for fire %s", incident.StageOfControlCode, number)
			stage = "Unknown"
		}

		code := int(attrFloat(attrs, "FIRE_CENTRE"))
		centre, ok := fireCentreNames[code]
		if !ok {
			logrus.Warnf("Unknown fire centre code %d for fire %s", code, number)
		}

		notes = append(notes, models.FireOfNote{
			FireCentre:     centre,
			Description:    attrString(attrs, "GEOGRAPHIC_DESCRIPTION"),
			FireNumber:     number,
			SizeHectares:   attrFloat(attrs, "CURRENT_SIZE"),
			StageOfControl: stage,
			URL:            attrString(attrs, "FIRE_URL"),
		})
	}
	return notes, nil
}

// buildSummary produces one row per fire centre polygon with its stage of
// control counts. Fires that are out still show in their stage column but do
// not count toward the total.
func buildSummary(centreRows []models.Feature, notes []models.FireOfNote) []models.Feature {
	byCentre := groupByCentre(notes)

	summary := make([]models.Feature, 0, len(centreRows))
	for _, row := range centreRows {
		name := attrString(row.Attributes, "MOF_FIRE_CENTRE_NAME")
		var out, held, under, total int
		for _, fire := range byCentre[name] {
			switch fire.StageOfControl {
			case "Out of Control":
				out++
			case "Being Held":
				held++
			case "Under Control":
				under++
			}
			if fire.StageOfControl != "Out" {
				total++
			}
		}
		summary = append(summary, models.Feature{
			Attributes: map[string]interface{}{
				"MOF_FIRE_CENTRE_ID":   row.Attributes["MOF_FIRE_CENTRE_ID"],
				"MOF_FIRE_CENTRE_NAME": name,
				"OutOfControl":         out,
				"BeingHeld":            held,
				"UnderControl":         under,
				"Total":                total,
			},
			Geometry: row.Geometry,
		})
	}
	return summary
}

func groupByCentre(notes []models.FireOfNote) map[string][]models.FireOfNote {
	byCentre := make(map[string][]models.FireOfNote)
	for _, note := range notes {
		byCentre[note.FireCentre] = append(byCentre[note.FireCentre], note)
	}
	return byCentre
}

func centreNames(centreRows []models.Feature) []string {
	names := make([]string, 0, len(centreRows))
	seen := make(map[string]bool, len(centreRows))
	for _, row := range centreRows {
		name := attrString(row.Attributes, "MOF_FIRE_CENTRE_NAME")
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	return names
}

// DashboardText builds the fires of note HTML block, busiest centre first.
func DashboardText(centres []string, notes []models.FireOfNote) string {
	byCentre := groupByCentre(notes)

	sorted := make([]string, len(centres))
	copy(sorted, centres)
	sort.Slice(sorted, func(i, j int) bool {
		if len(byCentre[sorted[i]]) != len(byCentre[sorted[j]]) {
			return len(byCentre[sorted[i]]) > len(byCentre[sorted[j]])
		}
		return sorted[i] < sorted[j]
	})

	var text strings.Builder
	for _, centre := range sorted {
		text.WriteString(`<p><span style="font-size:11pt"><strong>` + centre + `</strong></span></p>`)
		fires := byCentre[centre]
		if len(fires) == 0 {
			text.WriteString("<ul><li>None</li></ul>")
			continue
		}
		text.WriteString("<ul>")
		for _, fire := range fires {
			text.WriteString(fmt.Sprintf(`<li><a href="%s" style="color: #99ccff; font-weight: bold;">%s</a> (%s), %s hectares, %s</li>`,
				fire.URL, fire.Description, fire.FireNumber, strconv.FormatFloat(fire.SizeHectares, 'f', -1, 64), fire.StageOfControl))
		}
		text.WriteString("</ul>")
	}
	return text.String()
}

// Banner written into the dashboards' update widget.
const updateTextTemplate = `<div style="align-items:center; display:flex; justify-content:center; margin-bottom:auto; margin-left:auto; margin-right:auto; margin-top:auto"><h3 style="font-size:14px; text-align:center"><strong>Data Last Updated: %s</strong></h3></div>`

// UpdateDashboards rewrites the fires of note text and the update time on
// each sit rep dashboard. Dashboards missing either widget are left as they
// are apart from the widgets that do match. Every dashboard is attempted even
// when an earlier one fails.
func UpdateDashboards(portal bier.ItemContent, itemIDs []string, text string, now time.Time) error {
	var updateErr error
	for _, itemID := range itemIDs {
		if err := updateDashboard(portal, itemID, text, now); err != nil {
			updateErr = multierr.Append(updateErr, fmt.Errorf("dashboard %s: %s", itemID, err.Error()))
		}
	}
	return updateErr
}

func updateDashboard(portal bier.ItemContent, itemID, text string, now time.Time) error {
	info, err := portal.ItemInfo(itemID)
	if err != nil {
		return errors.New("get dashboard item: " + err.Error())
	}
	data, err := portal.ItemData(itemID)
	if err != nil {
		return errors.New("get dashboard data: " + err.Error())
	}

	for _, raw := range dashboardWidgets(data) {
		widget, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		switch widget["name"] {
		case FIRE_TEXT_WIDGET_NAME:
			widget["text"] = text
		case UPDATE_WIDGET_NAME:
			widget["text"] = fmt.Sprintf(updateTextTemplate, now.Format("January 2, 2006, 15:04 hrs"))
		}
	}

	if err := portal.UpdateItemData(info, data); err != nil {
		return errors.New("update dashboard: " + err.Error())
	}
	logrus.Info("Finished updating sit rep dashboard: " + itemID)
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

func attrString(attrs map[string]interface{}, name string) string {
	value, _ := attrs[name].(string)
	return value
}

func attrFloat(attrs map[string]interface{}, name string) float64 {
	value, _ := attrs[name].(float64)
	return value
}
