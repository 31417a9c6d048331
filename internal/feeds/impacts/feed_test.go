package impacts

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/bcgov/geobc-bier/bier"
	"github.com/bcgov/geobc-bier/models"
)

// --- Mocks ---

type MockFeatureLayer struct {
	mock.Mock
}

func (m *MockFeatureLayer) Count(where string) (int, error) {
	args := m.Called(where)
	return args.Int(0), args.Error(1)
}

func (m *MockFeatureLayer) Query(where, outFields string, returnGeometry bool) ([]models.Feature, error) {
	args := m.Called(where, outFields, returnGeometry)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Feature), args.Error(1)
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

type MockObjectStore struct {
	mock.Mock
}

func (m *MockObjectStore) Upload(key string, body []byte, contentType string, public bool) error {
	args := m.Called(key, body, contentType, public)
	return args.Error(0)
}

func (m *MockObjectStore) UploadJSON(key string, v interface{}, public bool) error {
	args := m.Called(key, v, public)
	return args.Error(0)
}

func (m *MockObjectStore) UploadCSV(key string, records interface{}, public bool) error {
	args := m.Called(key, records, public)
	return args.Error(0)
}

func (m *MockObjectStore) Download(key string) ([]byte, error) {
	args := m.Called(key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockObjectStore) DownloadJSON(key string, v interface{}) error {
	args := m.Called(key, v)
	return args.Error(0)
}

func (m *MockObjectStore) List(prefix string) ([]string, error) {
	args := m.Called(prefix)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

type MockItemContent struct {
	mock.Mock
}

func (m *MockItemContent) ItemInfo(itemID string) (bier.ItemInfo, error) {
	args := m.Called(itemID)
	return args.Get(0).(bier.ItemInfo), args.Error(1)
}

func (m *MockItemContent) ItemData(itemID string) (map[string]interface{}, error) {
	args := m.Called(itemID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]interface{}), args.Error(1)
}

func (m *MockItemContent) UpdateItemData(info bier.ItemInfo, data map[string]interface{}) error {
	args := m.Called(info, data)
	return args.Error(0)
}

// --- Fixtures ---

func impactRow(year float64, preoc, eventType string, counts map[string]float64) models.Feature {
	attrs := map[string]interface{}{
		"EVENT_YEAR": year,
		"PREOC_CODE": preoc,
		"EVENT_TYPE": eventType,
		"ACTIVE":     "Active",
	}
	for name, value := range counts {
		attrs[name] = value
	}
	return models.Feature{Attributes: attrs}
}

const yesterdaySnapshotJSON = `{
	"features": [
		{"attributes": {"EVENT_YEAR": 2026, "PREOC_CODE": "CTL", "EVENT_TYPE": "Fire", "ACTIVE": "Active",
			"ORDER_COUNT": 3, "TOTAL_POP": 1200, "TOTAL_COUNT": 4, "ORDER_HOME": 2}},
		{"attributes": {"EVENT_YEAR": 2025, "PREOC_CODE": "SEA", "EVENT_TYPE": "Flood", "ACTIVE": "Active",
			"ORDER_COUNT": 1}}
	]
}`

func todayRows() []models.Feature {
	return []models.Feature{
		impactRow(2026, "CTL", "Fire", map[string]float64{"ORDER_COUNT": 5, "TOTAL_POP": 1200, "TOTAL_COUNT": 1}),
		impactRow(2026, "NEA", "Flood", map[string]float64{"ALERT_COUNT": 2}),
	}
}

// --- Tests ---

func TestRun_HappyPath(t *testing.T) {
	now := time.Date(2026, time.August, 25, 8, 0, 0, 0, time.UTC)

	impactTable := new(MockFeatureLayer)
	impactTable.On("Query", ACTIVE_WHERE, "*", false).Return(todayRows(), nil).Once()

	snapshotKeys := []string{
		SNAPSHOT_PREFIX + "Impact_Table_260820.json",
		SNAPSHOT_PREFIX + "Impact_Table_260824.json",
	}
	store := new(MockObjectStore)
	store.On("UploadJSON", SNAPSHOT_PREFIX+"Impact_Table_260825.json", mock.Anything, false).Return(nil).Once()
	store.On("List", SNAPSHOT_PREFIX).Return(snapshotKeys, nil).Once()
	store.On("DownloadJSON", SNAPSHOT_PREFIX+"Impact_Table_260824.json", mock.Anything).
		Run(func(args mock.Arguments) {
			json.Unmarshal([]byte(yesterdaySnapshotJSON), args.Get(1))
		}).
		Return(nil).
		Once()

	var replaced []models.Feature
	changeTable := new(MockFeatureLayer)
	changeTable.On("FullReplace", mock.Anything).
		Run(func(args mock.Arguments) {
			replaced = args.Get(0).([]models.Feature)
		}).
		Return(nil).
		Once()

	err := Run(impactTable, changeTable, store, now)
	require.NoError(t, err)

	// Only CTL/Fire exists on both days; NEA/Flood is new today and SEA/Flood
	// dropped off, so neither gets a change row.
	require.Len(t, replaced, 1)
	attrs := replaced[0].Attributes
	assert.Equal(t, float64(2026), attrs["EVENT_YEAR"])
	assert.Equal(t, "CTL", attrs["PREOC_CODE"])
	assert.Equal(t, "Fire", attrs["EVENT_TYPE"])
	assert.Equal(t, "Active", attrs["ACTIVE"])
	assert.Equal(t, float64(2), attrs["ORDER_CHANGE"])
	assert.Equal(t, float64(-3), attrs["TOTAL_COUNT_CHANGE"])
	assert.Equal(t, float64(-2), attrs["ORDER_HOME_CHANGE"])
	// Zero deltas are stored as nulls.
	assert.Nil(t, attrs["TOTAL_POP_CHANGE"])
	assert.Nil(t, attrs["SOLE_CHANGE"])

	impactTable.AssertExpectations(t)
	store.AssertExpectations(t)
	changeTable.AssertExpectations(t)
}

func TestRun_NoYesterdaySnapshotClearsTable(t *testing.T) {
	now := time.Date(2026, time.August, 25, 8, 0, 0, 0, time.UTC)

	impactTable := new(MockFeatureLayer)
	impactTable.On("Query", ACTIVE_WHERE, "*", false).Return(todayRows(), nil).Once()

	store := new(MockObjectStore)
	store.On("UploadJSON", mock.Anything, mock.Anything, false).Return(nil).Once()
	store.On("List", SNAPSHOT_PREFIX).Return([]string{SNAPSHOT_PREFIX + "Impact_Table_260820.json"}, nil).Once()

	changeTable := new(MockFeatureLayer)
	changeTable.On("FullReplace", mock.MatchedBy(func(features []models.Feature) bool {
		return len(features) == 0
	})).Return(nil).Once()

	err := Run(impactTable, changeTable, store, now)
	require.NoError(t, err)
	store.AssertNotCalled(t, "DownloadJSON", mock.Anything, mock.Anything)
	changeTable.AssertExpectations(t)
}

func TestRun_QueryError(t *testing.T) {
	impactTable := new(MockFeatureLayer)
	impactTable.On("Query", ACTIVE_WHERE, "*", false).Return(nil, errors.New("query failed")).Once()

	err := Run(impactTable, new(MockFeatureLayer), new(MockObjectStore), time.Now())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "query impact table")
}

func TestRun_SnapshotUploadError(t *testing.T) {
	impactTable := new(MockFeatureLayer)
	impactTable.On("Query", ACTIVE_WHERE, "*", false).Return(todayRows(), nil).Once()

	store := new(MockObjectStore)
	store.On("UploadJSON", mock.Anything, mock.Anything, false).Return(errors.New("no bucket")).Once()

	err := Run(impactTable, new(MockFeatureLayer), store, time.Now())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upload impact snapshot")
	store.AssertNotCalled(t, "List", mock.Anything)
}

func TestRun_ListError(t *testing.T) {
	impactTable := new(MockFeatureLayer)
	impactTable.On("Query", ACTIVE_WHERE, "*", false).Return(todayRows(), nil).Once()

	store := new(MockObjectStore)
	store.On("UploadJSON", mock.Anything, mock.Anything, false).Return(nil).Once()
	store.On("List", SNAPSHOT_PREFIX).Return(nil, errors.New("list failed")).Once()

	err := Run(impactTable, new(MockFeatureLayer), store, time.Now())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "list impact snapshots")
}

func TestRun_FullReplaceError(t *testing.T) {
	now := time.Date(2026, time.August, 25, 8, 0, 0, 0, time.UTC)

	impactTable := new(MockFeatureLayer)
	impactTable.On("Query", ACTIVE_WHERE, "*", false).Return(todayRows(), nil).Once()

	store := new(MockObjectStore)
	store.On("UploadJSON", mock.Anything, mock.Anything, false).Return(nil).Once()
	store.On("List", SNAPSHOT_PREFIX).Return([]string{SNAPSHOT_PREFIX + "Impact_Table_260824.json"}, nil).Once()
	store.On("DownloadJSON", mock.Anything, mock.Anything).Return(nil).Once()

	changeTable := new(MockFeatureLayer)
	changeTable.On("FullReplace", mock.Anything).Return(errors.New("sync failed")).Once()

	err := Run(impactTable, changeTable, store, now)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "update change table")
}

func TestReplaceUpdateTime(t *testing.T) {
	caption := `<p>Some heading</p><p>Data Updated: 26-08-24 08:00</p>`
	updated, err := replaceUpdateTime(caption, "26-08-25 08:00")
	require.NoError(t, err)
	assert.Equal(t, `<p>Some heading</p><p>Data Updated: 26-08-25 08:00</p>`, updated)

	_, err = replaceUpdateTime("<p>no marker here</p>", "26-08-25 08:00")
	require.Error(t, err)
}

func TestUpdateDashboard(t *testing.T) {
	info := bier.ItemInfo{ID: "dash456", Owner: "Administrator"}
	data := map[string]interface{}{
		"desktopView": map[string]interface{}{
			"widgets": []interface{}{
				map[string]interface{}{"name": "Header", "caption": "untouched"},
				map[string]interface{}{"name": "Data Changes Table", "caption": "<p>Data Updated: 26-08-24 08:00</p>"},
			},
		},
	}

	portal := new(MockItemContent)
	portal.On("ItemInfo", "dash456").Return(info, nil).Once()
	portal.On("ItemData", "dash456").Return(data, nil).Once()
	portal.On("UpdateItemData", info, mock.MatchedBy(func(updated map[string]interface{}) bool {
		widgets := updated["desktopView"].(map[string]interface{})["widgets"].([]interface{})
		caption := widgets[1].(map[string]interface{})["caption"].(string)
		return strings.Contains(caption, "Data Updated: 26-08-25 08:00")
	})).Return(nil).Once()

	now := time.Date(2026, time.August, 25, 8, 0, 0, 0, time.UTC)
	err := UpdateDashboard(portal, "dash456", now)
	require.NoError(t, err)
	portal.AssertExpectations(t)
}

func TestUpdateDashboard_TopLevelWidgets(t *testing.T) {
	info := bier.ItemInfo{ID: "dash456"}
	data := map[string]interface{}{
		"widgets": []interface{}{
			map[string]interface{}{"name": "Data Changes Table", "caption": "<p>Data Updated: old</p>"},
		},
	}

	portal := new(MockItemContent)
	portal.On("ItemInfo", "dash456").Return(info, nil).Once()
	portal.On("ItemData", "dash456").Return(data, nil).Once()
	portal.On("UpdateItemData", info, mock.Anything).Return(nil).Once()

	err := UpdateDashboard(portal, "dash456", time.Date(2026, time.August, 25, 8, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	caption := data["widgets"].([]interface{})[0].(map[string]interface{})["caption"].(string)
	assert.Equal(t, "<p>Data Updated: 26-08-25 08:00</p>", caption)
}

func TestUpdateDashboard_WidgetMissing(t *testing.T) {
	portal := new(MockItemContent)
	portal.On("ItemInfo", "dash456").Return(bier.ItemInfo{ID: "dash456"}, nil).Once()
	portal.On("ItemData", "dash456").Return(map[string]interface{}{
		"widgets": []interface{}{
			map[string]interface{}{"name": "Header"},
		},
	}, nil).Once()

	err := UpdateDashboard(portal, "dash456", time.Now())
	require.Error(t, err)
	assert.Contains(t, err.Error(), `widget "Data Changes Table" not found`)
	portal.AssertNotCalled(t, "UpdateItemData", mock.Anything, mock.Anything)
}
