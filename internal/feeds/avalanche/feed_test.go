package avalanche

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/bcgov/geobc-bier/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// --- Mocks ---

type MockFetcher struct {
	mock.Mock
}

func (m *MockFetcher) GetJSON(url string, params map[string]string, headers map[string]string, v interface{}) error {
	args := m.Called(url, params, headers, v)
	return args.Error(0)
}

func (m *MockFetcher) PostJSON(url string, body interface{}, headers map[string]string, v interface{}) error {
	args := m.Called(url, body, headers, v)
	return args.Error(0)
}

type MockFeatureLayer struct {
	mock.Mock
}

func (m *MockFeatureLayer) Count(where string) (int, error) {
	args := m.Called(where)
	return args.Int(0), args.Error(1)
}

func (m *MockFeatureLayer) Query(where string, outFields string, returnGeometry bool) ([]models.Feature, error) {
	args := m.Called(where, outFields, returnGeometry)
	features, _ := args.Get(0).([]models.Feature)
	return features, args.Error(1)
}

func (m *MockFeatureLayer) DeleteAndTruncate() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockFeatureLayer) Append(features []models.Feature) error {
	args := m.Called(features)
	return args.Error(0)
}

func (m *MockFeatureLayer) Update(features []models.Feature) error {
	args := m.Called(features)
	return args.Error(0)
}

func (m *MockFeatureLayer) FullReplace(features []models.Feature) error {
	args := m.Called(features)
	return args.Error(0)
}

func (m *MockFeatureLayer) AddField(field models.Field) error {
	args := m.Called(field)
	return args.Error(0)
}

func (m *MockFeatureLayer) ItemID() string {
	args := m.Called()
	return args.String(0)
}

// --- Fixtures ---

const areasJSON = `{"features":[
	{"id":"sea-to-sky","geometry":{"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1],[0,0]]]}},
	{"id":"northwest","geometry":{"type":"Polygon","coordinates":[[[2,2],[3,2],[3,3],[2,2]]]}}
]}`

const productsJSON = `[{
	"area":{"id":"sea-to-sky"},
	"url":"https://avalanche.ca/forecasts/sea-to-sky",
	"report":{
		"dateIssued":"2026-08-24T16:00:00Z",
		"validUntil":"2026-08-25T16:00:00Z",
		"forecaster":"JSmith",
		"title":"Sea to Sky",
		"confidence":{"rating":{"display":"High"},"statements":["Forecast confidence is high.","  "]},
		"dangerRatings":[{
			"date":{"display":"Monday"},
			"ratings":{
				"alp":{"rating":{"display":"Considerable"}},
				"tln":{"rating":{"display":"Moderate"}},
				"btl":{"rating":{"display":"Low"}}
			}
		}]
	}
}]`

func stubGetJSON(m *MockFetcher, url string, payload string) {
	m.On("GetJSON", url, mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			json.Unmarshal([]byte(payload), args.Get(3))
		}).
		Return(nil).Once()
}

// --- Tests ---

func TestRun_HappyPath(t *testing.T) {
	mockClient := new(MockFetcher)
	mockLayer := new(MockFeatureLayer)

	stubGetJSON(mockClient, AREAS_URL, areasJSON)
	stubGetJSON(mockClient, PRODUCTS_URL, productsJSON)

	var captured []models.Feature
	mockLayer.On("FullReplace", mock.Anything).
		Run(func(args mock.Arguments) {
			captured = args.Get(0).([]models.Feature)
		}).
		Return(nil).Once()

	err := Run(mockClient, mockLayer)
	assert.NoError(t, err)
	mockClient.AssertExpectations(t)
	mockLayer.AssertExpectations(t)

	assert.Len(t, captured, 2)

	seaToSky := captured[0].Attributes
	assert.Equal(t, "sea-to-sky", seaToSky["id"])
	assert.Equal(t, "JSmith", seaToSky["forecaster"])
	assert.Equal(t, "High", seaToSky["confidence"])
	assert.Equal(t, "Forecast confidence is high.", seaToSky["statement"])
	assert.Equal(t, "https://avalanche.ca/forecasts/sea-to-sky", seaToSky["url"])
	assert.Equal(t, "Monday", seaToSky["danger_rating_1"])
	assert.Equal(t, "Considerable", seaToSky["danger_rating_1_alp"])
	assert.Equal(t, "Moderate", seaToSky["danger_rating_1_tln"])
	assert.Equal(t, "Low", seaToSky["danger_rating_1_btl"])
	issued := time.Date(2026, 8, 24, 16, 0, 0, 0, time.UTC)
	assert.Equal(t, models.EpochMillis(issued), seaToSky["date_issued"])
	assert.NotNil(t, captured[0].Geometry)

	// No product for this area: fallbacks apply.
	northwest := captured[1].Attributes
	assert.Equal(t, "Unknown", northwest["forecaster"])
	assert.Equal(t, "Unnamed", northwest["title"])
	assert.Equal(t, FALLBACK_STATEMENT, northwest["statement"])
	assert.Nil(t, northwest["confidence"])
	assert.Nil(t, northwest["date_issued"])
}

func TestRun_AreasFetchError(t *testing.T) {
	mockClient := new(MockFetcher)
	mockLayer := new(MockFeatureLayer)

	mockClient.On("GetJSON", AREAS_URL, mock.Anything, mock.Anything, mock.Anything).
		Return(errors.New("timeout")).Once()

	err := Run(mockClient, mockLayer)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "get forecast areas")
	mockLayer.AssertNotCalled(t, "FullReplace", mock.Anything)
}

func TestRun_NoAreas(t *testing.T) {
	mockClient := new(MockFetcher)
	mockLayer := new(MockFeatureLayer)

	stubGetJSON(mockClient, AREAS_URL, `{"features":[]}`)

	err := Run(mockClient, mockLayer)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "no avalanche forecast areas")
	mockLayer.AssertNotCalled(t, "FullReplace", mock.Anything)
}

func TestRun_ProductsFetchError(t *testing.T) {
	mockClient := new(MockFetcher)
	mockLayer := new(MockFeatureLayer)

	stubGetJSON(mockClient, AREAS_URL, areasJSON)
	mockClient.On("GetJSON", PRODUCTS_URL, mock.Anything, mock.Anything, mock.Anything).
		Return(errors.New("boom")).Once()

	err := Run(mockClient, mockLayer)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "get forecast products")
}

func TestRun_FullReplaceError(t *testing.T) {
	mockClient := new(MockFetcher)
	mockLayer := new(MockFeatureLayer)

	stubGetJSON(mockClient, AREAS_URL, areasJSON)
	stubGetJSON(mockClient, PRODUCTS_URL, productsJSON)
	mockLayer.On("FullReplace", mock.Anything).Return(errors.New("sync failed")).Once()

	err := Run(mockClient, mockLayer)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "sync failed")
}

func TestBuildFeatures_SkipsUnsupportedGeometry(t *testing.T) {
	areas := []models.AvalancheArea{
		{ID: "bad", Geometry: models.GeoJSONGeometry{Type: "LineString", Coordinates: json.RawMessage(`[[0,0],[1,1]]`)}},
		{ID: "good", Geometry: models.GeoJSONGeometry{Type: "Polygon", Coordinates: json.RawMessage(`[[[0,0],[1,0],[1,1],[0,0]]]`)}},
	}

	features := buildFeatures(areas, nil)
	assert.Len(t, features, 1)
	assert.Equal(t, "good", features[0].Attributes["id"])
}

func TestBuildFeatures_MissingDangerRatingDays(t *testing.T) {
	areas := []models.AvalancheArea{
		{ID: "a", Geometry: models.GeoJSONGeometry{Type: "Polygon", Coordinates: json.RawMessage(`[[[0,0],[1,0],[1,1],[0,0]]]`)}},
	}
	var products []models.AvalancheProduct
	json.Unmarshal([]byte(productsJSON), &products)
	products[0].Area.ID = "a"

	features := buildFeatures(areas, products)
	assert.Len(t, features, 1)

	attrs := features[0].Attributes
	assert.Equal(t, "Monday", attrs["danger_rating_1"])
	assert.NotContains(t, attrs, "danger_rating_2")
	assert.NotContains(t, attrs, "danger_rating_3")
}
