package bier

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	models "github.com/bcgov/geobc-bier/models"

	"github.com/sirupsen/logrus"
)

const (
	// Feature edits are sent in batches of this size.
	DEFAULT_BATCH_SIZE = 500
)

// Interface for hosted feature layer operations, implemented by Item.
type FeatureLayer interface {
	Count(where string) (int, error)
	Query(where string, outFields string, returnGeometry bool) ([]models.Feature, error)
	DeleteAndTruncate() error
	Append(features []models.Feature) error
	Update(features []models.Feature) error
	FullReplace(features []models.Feature) error
	AddField(field models.Field) error
	ItemID() string
}

// Interface for distance-filtered queries, implemented by Item. Separate from
// FeatureLayer so only the proximity scripts carry it.
type SpatialQuerier interface {
	QueryNearby(geometry *models.Geometry, distanceMeters int, where, outFields string) ([]models.Feature, error)
}

// Item is a handle on one layer of a hosted feature service. Every operation
// runs under the shared item retry policy with a session reconnect before
// each retry, and reports exhaustion as a SyncError.
type Item struct {
	ago       *AGO
	info      ItemInfo
	layerURL  string
	adminURL  string
	policy    RetryPolicy
	batchSize int
}

// NewItem resolves an item ID into a handle bound to one layer index of the
// item's hosted service.
func NewItem(ago *AGO, itemID string, layer int) (*Item, error) {
	return NewItemWithPolicy(ago, itemID, layer, DefaultItemPolicy())
}

func NewItemWithPolicy(ago *AGO, itemID string, layer int, policy RetryPolicy) (*Item, error) {
	info, err := ago.ItemInfo(itemID)
	if err != nil {
		return nil, err
	}
	if info.URL == "" {
		return nil, fmt.Errorf("item %s has no hosted service url", itemID)
	}

	layerURL := strings.TrimRight(info.URL, "/") + "/" + strconv.Itoa(layer)

	return &Item{
		ago:      ago,
		info:     info,
		layerURL: layerURL,
		// Truncate and schema edits only exist on the admin endpoint.
		adminURL:  strings.Replace(layerURL, "/rest/services/", "/rest/admin/services/", 1),
		policy:    policy,
		batchSize: DEFAULT_BATCH_SIZE,
	}, nil
}

func (i *Item) ItemID() string { return i.info.ID }

func (i *Item) Info() ItemInfo { return i.info }

// Count returns the number of features matching where ("1=1" when empty).
func (i *Item) Count(where string) (int, error) {
	if where == "" {
		where = "1=1"
	}
	var count int
	err := i.withRetry("count", func() error {
		n, err := i.count(where)
		if err != nil {
			return err
		}
		count = n
		return nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

// Query returns the features matching where. An empty outFields selects all
// columns.
func (i *Item) Query(where string, outFields string, returnGeometry bool) ([]models.Feature, error) {
	if where == "" {
		where = "1=1"
	}
	if outFields == "" {
		outFields = "*"
	}
	var features []models.Feature
	err := i.withRetry("query", func() error {
		result, err := i.query(where, outFields, returnGeometry)
		if err != nil {
			return err
		}
		features = result
		return nil
	})
	if err != nil {
		return nil, err
	}
	return features, nil
}

// QueryNearby returns the features matching where that lie within
// distanceMeters of the given geometry. The distance filter runs server-side,
// so no geometry math happens here.
func (i *Item) QueryNearby(geometry *models.Geometry, distanceMeters int, where, outFields string) ([]models.Feature, error) {
	if where == "" {
		where = "1=1"
	}
	if outFields == "" {
		outFields = "*"
	}
	var features []models.Feature
	err := i.withRetry("query nearby", func() error {
		result, err := i.queryNearby(geometry, distanceMeters, where, outFields)
		if err != nil {
			return err
		}
		features = result
		return nil
	})
	if err != nil {
		return nil, err
	}
	return features, nil
}

// DeleteAndTruncate clears the layer in two passes: a deleteFeatures call
// that must succeed, then a truncate to reset object IDs. Truncate fails on
// layers with sync or views enabled, so once the delete has succeeded a
// failed truncate only logs a warning.
func (i *Item) DeleteAndTruncate() error {
	return i.withRetry("delete and truncate", func() error {
		n, err := i.count("1=1")
		if err != nil {
			return err
		}
		if err := i.deleteAll(); err != nil {
			return err
		}
		logrus.Infof("Deleted %d features from ItemID: %s", n, i.info.ID)

		if err := i.truncate(); err != nil {
			logrus.Warnf("Truncate failed on ItemID %s: %s", i.info.ID, err.Error())
		} else {
			logrus.Info("Data truncated successfully")
		}
		return nil
	})
}

// Append adds features without clearing existing rows. Batches that partially
// apply are not rolled back, so a retried append can duplicate rows rather
// than lose them.
func (i *Item) Append(features []models.Feature) error {
	if len(features) == 0 {
		logrus.Warnf("No features to append to ItemID: %s", i.info.ID)
		return nil
	}
	return i.withRetry("append", func() error {
		applied, err := i.applyEdits("append", features)
		if err != nil {
			return err
		}
		logrus.Infof("Appended %d features to ItemID: %s", applied, i.info.ID)
		return nil
	})
}

// Update applies edits to existing rows matched by object ID.
func (i *Item) Update(features []models.Feature) error {
	if len(features) == 0 {
		logrus.Warnf("No features to update on ItemID: %s", i.info.ID)
		return nil
	}
	return i.withRetry("update", func() error {
		applied, err := i.applyEdits("update", features)
		if err != nil {
			return err
		}
		logrus.Infof("Updated %d features on ItemID: %s", applied, i.info.ID)
		return nil
	})
}

// FullReplace clears the layer then appends features in batches. An empty
// slice still clears the layer. Batches are independent edits: a failure
// midway leaves earlier batches in place.
func (i *Item) FullReplace(features []models.Feature) error {
	if err := i.DeleteAndTruncate(); err != nil {
		return err
	}
	if len(features) == 0 {
		logrus.Warnf("No features to append to ItemID: %s", i.info.ID)
		return nil
	}

	batches := (len(features) + i.batchSize - 1) / i.batchSize
	for start, batch := 0, 1; start < len(features); start, batch = start+i.batchSize, batch+1 {
		end := min(start+i.batchSize, len(features))
		if err := i.Append(features[start:end]); err != nil {
			return err
		}
		logrus.Infof("Batch %d of %d appended to ItemID: %s", batch, batches, i.info.ID)
	}
	return nil
}

// AddField adds a column to the layer schema.
func (i *Item) AddField(field models.Field) error {
	payload, err := json.Marshal(map[string]interface{}{"fields": []models.Field{field}})
	if err != nil {
		return fmt.Errorf("encoding field definition: %w", err)
	}
	return i.withRetry("add field", func() error {
		return i.ago.PostForm(i.adminURL+"/addToDefinition", map[string]string{"addToDefinition": string(payload)}, nil)
	})
}

// withRetry runs op under the item retry policy, reconnecting the session
// once before every retry. Exhaustion wraps the last error in a SyncError.
func (i *Item) withRetry(op string, fn func() error) error {
	err := i.policy.Do(fn, func(attempt int, err error) {
		logrus.Warnf("Attempt %d of %s failed on ItemID %s: %s", attempt, op, i.info.ID, err.Error())
		if rerr := i.ago.Reconnect(); rerr != nil {
			logrus.Warnf("Reconnect before retry failed: %s", rerr.Error())
		}
	})
	if err != nil {
		attempts := i.policy.MaxAttempts
		if attempts < 1 {
			attempts = 1
		}
		return &SyncError{Op: op, ItemID: i.info.ID, Attempts: attempts, Err: err}
	}
	return nil
}

func (i *Item) count(where string) (int, error) {
	var result struct {
		Count int `json:"count"`
	}
	form := map[string]string{"where": where, "returnCountOnly": "true"}
	if err := i.ago.PostForm(i.layerURL+"/query", form, &result); err != nil {
		return 0, err
	}
	return result.Count, nil
}

func (i *Item) query(where, outFields string, returnGeometry bool) ([]models.Feature, error) {
	form := map[string]string{
		"where":          where,
		"outFields":      outFields,
		"returnGeometry": strconv.FormatBool(returnGeometry),
	}
	var result struct {
		Features []models.Feature `json:"features"`
	}
	if err := i.ago.PostForm(i.layerURL+"/query", form, &result); err != nil {
		return nil, err
	}
	return result.Features, nil
}

func (i *Item) queryNearby(geometry *models.Geometry, distanceMeters int, where, outFields string) ([]models.Feature, error) {
	geomJSON, err := json.Marshal(geometry)
	if err != nil {
		return nil, fmt.Errorf("encoding query geometry: %w", err)
	}
	geometryType := "esriGeometryPoint"
	if geometry.Rings != nil {
		geometryType = "esriGeometryPolygon"
	}

	form := map[string]string{
		"where":          where,
		"geometry":       string(geomJSON),
		"geometryType":   geometryType,
		"spatialRel":     "esriSpatialRelIntersects",
		"distance":       strconv.Itoa(distanceMeters),
		"units":          "esriSRUnit_Meter",
		"outFields":      outFields,
		"returnGeometry": "false",
	}
	if geometry.SpatialReference != nil {
		form["inSR"] = strconv.Itoa(geometry.SpatialReference.WKID)
	}

	var result struct {
		Features []models.Feature `json:"features"`
	}
	if err := i.ago.PostForm(i.layerURL+"/query", form, &result); err != nil {
		return nil, err
	}
	return result.Features, nil
}

func (i *Item) deleteAll() error {
	return i.ago.PostForm(i.layerURL+"/deleteFeatures", map[string]string{"where": "1=1"}, nil)
}

func (i *Item) truncate() error {
	return i.ago.PostForm(i.adminURL+"/truncate", nil, nil)
}

type editResult struct {
	ObjectID int64 `json:"objectId"`
	Success  bool  `json:"success"`
}

func (i *Item) applyEdits(op string, features []models.Feature) (int, error) {
	payload, err := json.Marshal(features)
	if err != nil {
		return 0, fmt.Errorf("encoding features: %w", err)
	}

	endpoint := i.layerURL + "/addFeatures"
	if op == "update" {
		endpoint = i.layerURL + "/updateFeatures"
	}

	form := map[string]string{
		"features": string(payload),
		// Keep whatever applied; duplicate rows beat silently lost ones.
		"rollbackOnFailure": "false",
	}

	var result struct {
		AddResults    []editResult `json:"addResults"`
		UpdateResults []editResult `json:"updateResults"`
	}
	if err := i.ago.PostForm(endpoint, form, &result); err != nil {
		return 0, err
	}

	results := result.AddResults
	if op == "update" {
		results = result.UpdateResults
	}

	applied := 0
	for _, r := range results {
		if r.Success {
			applied++
		}
	}
	if applied != len(features) {
		return applied, &EditError{Op: op, Requested: len(features), Applied: applied}
	}
	return applied, nil
}
