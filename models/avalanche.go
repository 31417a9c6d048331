package models

// AvalancheAreas is the GeoJSON collection of forecast regions returned by
// the Avalanche Canada areas endpoint.
type AvalancheAreas struct {
	Features []AvalancheArea `json:"features"`
}

type AvalancheArea struct {
	ID       string          `json:"id"`
	Geometry GeoJSONGeometry `json:"geometry"`
}

// AvalancheProduct pairs a forecast report with the area it covers.
type AvalancheProduct struct {
	Area struct {
		ID string `json:"id"`
	} `json:"area"`
	URL    string          `json:"url"`
	Report AvalancheReport `json:"report"`
}

type AvalancheReport struct {
	DateIssued string `json:"dateIssued"`
	ValidUntil string `json:"validUntil"`
	Forecaster string `json:"forecaster"`
	Title      string `json:"title"`
	Confidence struct {
		Rating struct {
			Display string `json:"display"`
		} `json:"rating"`
		Statements []string `json:"statements"`
	} `json:"confidence"`
	DangerRatings []AvalancheDangerRating `json:"dangerRatings"`
}

// AvalancheDangerRating is one day of the three-day outlook. Ratings is
// keyed by elevation band: alp, tln and btl.
type AvalancheDangerRating struct {
	Date struct {
		Display string `json:"display"`
	} `json:"date"`
	Ratings map[string]struct {
		Rating struct {
			Display string `json:"display"`
		} `json:"rating"`
	} `json:"ratings"`
}
