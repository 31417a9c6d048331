// Package bchydro syncs the BC Hydro outage map data into the hydro outage
// hosted feature layers.
package bchydro

import (
	"errors"
	"fmt"
	"strings"

	"github.com/bcgov/geobc-bier/bier"
	"github.com/bcgov/geobc-bier/models"

	"github.com/sirupsen/logrus"
	"go.uber.org/multierr"
)

const (
	DEFAULT_API_URL = "https://www.bchydro.com/power-outages/app/outages-map-data.json"

	ITEM_ID_KEY     = "HYDROOUTAGES_ITEMID"
	LFN_ITEM_ID_KEY = "HYDROOUTAGES_LFN_ITEMID"
)

// Run fetches the outage list and replaces the contents of both outage
// layers, the public one and the copy backing the low-fidelity network map.
func Run(client bier.Fetcher, apiURL string, outages bier.FeatureLayer, outagesLFN bier.FeatureLayer) error {
	if apiURL == "" {
		apiURL = DEFAULT_API_URL
	}

	var data []models.HydroOutage
	if err := client.GetJSON(apiURL, nil, nil, &data); err != nil {
		return errors.New("get bchydro outages: " + err.Error())
	}
	if len(data) == 0 {
		logrus.Info("No BC Hydro Outages found")
		return nil
	}
	logrus.Infof("%d BC Hydro Outages found. Updating AGO...", len(data))

	features := buildFeatures(data)
	if len(features) == 0 {
		return errors.New("no valid outage features built")
	}

	// Both layers carry the same records; a failure on one must not leave
	// the other stale.
	var updateErr error
	if err := outages.FullReplace(features); err != nil {
		updateErr = multierr.Append(updateErr, errors.New("update outages layer: "+err.Error()))
	}
	if err := outagesLFN.FullReplace(features); err != nil {
		updateErr = multierr.Append(updateErr, errors.New("update outages lfn layer: "+err.Error()))
	}
	return updateErr
}

func buildFeatures(data []models.HydroOutage) []models.Feature {
	var features []models.Feature

	for _, outage := range data {
		ring := polygonRing(outage.Polygon)
		if len(ring) < 3 {
			logrus.Errorf("Skipping outage %v with degenerate polygon of %d coordinates", outage.ID, len(outage.Polygon))
			continue
		}

		attributes := map[string]interface{}{
			"OUTAGE_ID":   outage.ID,
			"GIS_ID":      outage.GisID,
			"REGION_ID":   outage.RegionID,
			"REGION":      outage.RegionName,
			"MUNI":        outage.Municipality,
			"DETAILS":     areaDetails(outage.Area),
			"CAUSE":       outage.Cause,
			"AFFECTED":    outage.NumCustomersOut,
			"CREW_STATUS": outage.CrewStatus,
			"EST_TIME_ON": millisOrNil(outage.DateOn),
			"OFFTIME":     millisOrNil(outage.DateOff),
			"UPDATED":     millisOrNil(outage.LastUpdated),
			"CREW_ETA":    millisOrNil(outage.CrewEta),
			"CREW_ETR":    millisOrNil(outage.CrewEtr),
			"SHOW_ETA":    outage.ShowEta,
			"SHOW_ETR":    outage.ShowEtr,
		}

		features = append(features, models.Feature{
			Attributes: attributes,
			Geometry:   models.Polygon([][][]float64{ring}, models.WKIDWGS84),
		})
	}

	return features
}

// polygonRing pairs the flat longitude/latitude list into ring coordinates.
// An odd trailing value is dropped.
func polygonRing(flat []float64) [][]float64 {
	var ring [][]float64
	for i := 0; i+1 < len(flat); i += 2 {
		ring = append(ring, []float64{flat[i], flat[i+1]})
	}
	return ring
}

// areaDetails flattens the area member, which arrives as either a string or
// a list of strings.
func areaDetails(area interface{}) string {
	switch v := area.(type) {
	case nil:
		return ""
	case string:
		return v
	case []interface{}:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			parts = append(parts, fmt.Sprint(item))
		}
		return strings.Join(parts, ", ")
	default:
		return fmt.Sprint(v)
	}
}

func millisOrNil(ms int64) interface{} {
	if ms == 0 {
		return nil
	}
	return ms
}
