package models

// PublishedIncident is the BCWS public record for a single fire, from the
// wildfire situation API.
type PublishedIncident struct {
	IncidentNumberLabel string `json:"incidentNumberLabel"`
	StageOfControlCode  string `json:"stageOfControlCode"`
	FireOfNoteInd       bool   `json:"fireOfNoteInd"`
}

// FireOfNote is one fire of note row in the daily CSV snapshot.
type FireOfNote struct {
	FireCentre     string  `csv:"FIRE_CENTRE"`
	Description    string  `csv:"GEOGRAPHIC_DESCRIPTION"`
	FireNumber     string  `csv:"FIRE_NUMBER"`
	SizeHectares   float64 `csv:"CURRENT_SIZE"`
	StageOfControl string  `csv:"STAGE_OF_CONTROL"`
	URL            string  `csv:"FIRE_URL"`
}
