// Package avalanche syncs Avalanche Canada forecasts into the EM GeoHub
// avalanche forecast hosted feature layer.
package avalanche

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bcgov/geobc-bier/bier"
	"github.com/bcgov/geobc-bier/models"

	"github.com/sirupsen/logrus"
)

const (
	AREAS_URL    = "https://api.avalanche.ca/forecasts/en/areas"
	PRODUCTS_URL = "https://api.avalanche.ca/forecasts/en/products"

	ITEM_ID_KEY = "AVALANCHEFORECAST_ITEMID"

	FALLBACK_STATEMENT = "No confidence statement available"
)

// Run pulls the forecast areas and products from the Avalanche Canada API,
// joins them by area ID and replaces the layer contents.
func Run(client bier.Fetcher, layer bier.FeatureLayer) error {
	var areas models.AvalancheAreas
	if err := client.GetJSON(AREAS_URL, nil, nil, &areas); err != nil {
		return errors.New("get forecast areas: " + err.Error())
	}
	if len(areas.Features) == 0 {
		return errors.New("no avalanche forecast areas found")
	}
	logrus.Infof("%d avalanche forecasts found", len(areas.Features))

	var products []models.AvalancheProduct
	if err := client.GetJSON(PRODUCTS_URL, nil, nil, &products); err != nil {
		return errors.New("get forecast products: " + err.Error())
	}

	features := buildFeatures(areas.Features, products)
	return layer.FullReplace(features)
}

func buildFeatures(areas []models.AvalancheArea, products []models.AvalancheProduct) []models.Feature {
	productsByArea := make(map[string]models.AvalancheProduct)
	for _, product := range products {
		productsByArea[product.Area.ID] = product
	}

	var features []models.Feature

	for _, area := range areas {
		geom, err := area.Geometry.ToArcGIS(models.WKIDWGS84)
		if err != nil {
			logrus.Warnf("Skipping area %s: %s", area.ID, err.Error())
			continue
		}

		product, ok := productsByArea[area.ID]
		if !ok {
			logrus.Warnf("No forecast product for area %s", area.ID)
		}

		attributes := map[string]interface{}{
			"id":           area.ID,
			"date_issued":  parseForecastTime(product.Report.DateIssued),
			"valid_until":  parseForecastTime(product.Report.ValidUntil),
			"forecaster":   defaultString(product.Report.Forecaster, "Unknown"),
			"title":        defaultString(product.Report.Title, "Unnamed"),
			"confidence":   nullableString(product.Report.Confidence.Rating.Display),
			"statement":    confidenceStatement(product.Report.Confidence.Statements),
			"url":          product.URL,
		}

		for day := 0; day < 3; day++ {
			if day >= len(product.Report.DangerRatings) {
				logrus.Warnf("Missing danger rating data for area %s on day %d", area.ID, day+1)
				continue
			}
			rating := product.Report.DangerRatings[day]
			attributes[fmt.Sprintf("danger_rating_%d", day+1)] = rating.Date.Display
			for band, value := range rating.Ratings {
				attributes[fmt.Sprintf("danger_rating_%d_%s", day+1, band)] = value.Rating.Display
			}
		}

		features = append(features, models.Feature{Attributes: attributes, Geometry: geom})
	}

	return features
}

// parseForecastTime accepts the API's ISO timestamps, with or without
// fractional seconds, and converts them to AGO epoch milliseconds.
func parseForecastTime(value string) interface{} {
	if value == "" {
		return nil
	}
	ts, err := time.Parse(time.RFC3339, value)
	if err != nil {
		logrus.Warnf("Unparseable forecast timestamp %q: %s", value, err.Error())
		return nil
	}
	return models.EpochMillis(ts)
}

func confidenceStatement(statements []string) string {
	var kept []string
	for _, statement := range statements {
		if strings.TrimSpace(statement) != "" {
			kept = append(kept, statement)
		}
	}
	if len(kept) == 0 {
		return FALLBACK_STATEMENT
	}
	return strings.Join(kept, " ")
}

func defaultString(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

func nullableString(value string) interface{} {
	if value == "" {
		return nil
	}
	return value
}
