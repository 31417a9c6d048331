package models

// WeatherAlerts is the GeoJSON collection returned by the ECCC GeoMet WFS
// ALERTS layer.
type WeatherAlerts struct {
	Features []WeatherAlert `json:"features"`
}

// WeatherAlert is one active alert polygon with its CAP properties.
type WeatherAlert struct {
	Geometry   GeoJSONGeometry        `json:"geometry"`
	Properties WeatherAlertProperties `json:"properties"`
}

type WeatherAlertProperties struct {
	Identifier string `json:"identifier"`
	Area       string `json:"area"`
	Headline   string `json:"headline"`
	Status     string `json:"status"`
	AlertType  string `json:"alert_type"`
	DescripEn  string `json:"descrip_en"`
	Effective  string `json:"effective"`
	Expires    string `json:"expires"`
}
