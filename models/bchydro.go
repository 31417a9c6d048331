package models

// HydroOutage is one entry of the BC Hydro outage map data. IDs and flags
// stay untyped because the feed passes them through to AGO unchanged.
// Polygon is a flat list of alternating longitude and latitude values.
type HydroOutage struct {
	ID              interface{} `json:"id"`
	GisID           interface{} `json:"gisId"`
	RegionID        interface{} `json:"regionId"`
	RegionName      string      `json:"regionName"`
	Municipality    string      `json:"municipality"`
	Area            interface{} `json:"area"`
	Cause           string      `json:"cause"`
	NumCustomersOut interface{} `json:"numCustomersOut"`
	CrewStatus      string      `json:"crewStatusDescription"`
	DateOn          int64       `json:"dateOn"`
	DateOff         int64       `json:"dateOff"`
	LastUpdated     int64       `json:"lastUpdated"`
	CrewEta         int64       `json:"crewEta"`
	CrewEtr         int64       `json:"crewEtr"`
	ShowEta         interface{} `json:"showEta"`
	ShowEtr         interface{} `json:"showEtr"`
	Polygon         []float64   `json:"polygon"`
}
