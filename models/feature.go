package models

import (
	"encoding/json"
	"fmt"
	"time"
)

const (
	WKIDWGS84    = 4326
	WKIDBCAlbers = 3005
)

type SpatialReference struct {
	WKID int `json:"wkid"`
}

// Geometry is the Esri JSON geometry layout. Points carry X/Y, polygons
// carry Rings; the unused members stay empty.
type Geometry struct {
	X                *float64          `json:"x,omitempty"`
	Y                *float64          `json:"y,omitempty"`
	Rings            [][][]float64     `json:"rings,omitempty"`
	SpatialReference *SpatialReference `json:"spatialReference,omitempty"`
}

func Point(x, y float64, wkid int) *Geometry {
	return &Geometry{X: &x, Y: &y, SpatialReference: &SpatialReference{WKID: wkid}}
}

func Polygon(rings [][][]float64, wkid int) *Geometry {
	return &Geometry{Rings: rings, SpatialReference: &SpatialReference{WKID: wkid}}
}

// Feature is one row of a hosted feature layer.
type Feature struct {
	Attributes map[string]interface{} `json:"attributes"`
	Geometry   *Geometry              `json:"geometry,omitempty"`
}

// FeatureCollection is the Esri JSON container used for query results and
// object store snapshots.
type FeatureCollection struct {
	Features []Feature `json:"features"`
}

// Field describes a layer column for addToDefinition calls.
type Field struct {
	Name   string `json:"name"`
	Type   string `json:"type"`
	Alias  string `json:"alias,omitempty"`
	Length int    `json:"length,omitempty"`
}

// EpochMillis converts a timestamp to the epoch milliseconds AGO stores in
// date fields.
func EpochMillis(t time.Time) int64 {
	return t.UnixMilli()
}

// GeoJSONGeometry is the geometry member of a GeoJSON feature. Coordinates
// stay raw so they can be decoded per geometry type.
type GeoJSONGeometry struct {
	Type        string          `json:"type"`
	Coordinates json.RawMessage `json:"coordinates"`
}

// ToArcGIS converts a GeoJSON geometry to its Esri JSON equivalent.
// MultiPolygons flatten into a single multi-ring polygon.
func (g *GeoJSONGeometry) ToArcGIS(wkid int) (*Geometry, error) {
	switch g.Type {
	case "Point":
		var coords []float64
		if err := json.Unmarshal(g.Coordinates, &coords); err != nil {
			return nil, fmt.Errorf("decoding point coordinates: %w", err)
		}
		if len(coords) < 2 {
			return nil, fmt.Errorf("point geometry has %d coordinates", len(coords))
		}
		return Point(coords[0], coords[1], wkid), nil
	case "Polygon":
		var rings [][][]float64
		if err := json.Unmarshal(g.Coordinates, &rings); err != nil {
			return nil, fmt.Errorf("decoding polygon coordinates: %w", err)
		}
		return Polygon(rings, wkid), nil
	case "MultiPolygon":
		var polygons [][][][]float64
		if err := json.Unmarshal(g.Coordinates, &polygons); err != nil {
			return nil, fmt.Errorf("decoding multipolygon coordinates: %w", err)
		}
		var rings [][][]float64
		for _, polygon := range polygons {
			rings = append(rings, polygon...)
		}
		return Polygon(rings, wkid), nil
	default:
		return nil, fmt.Errorf("unsupported geometry type %q", g.Type)
	}
}
