package mqtt

import (
	"time"

	"github.com/trolltrack/trolltrack/internal/datastore"
)

// CatchMessage is the JSON payload published for a saved catch. Field
// names are part of the feed contract; add fields, do not rename them.
type CatchMessage struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Species   string    `json:"species"`

	ScientificName string `json:"scientificName,omitempty"`

	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`

	Weight float64 `json:"weight,omitempty"` // pounds
	Length float64 `json:"length,omitempty"` // inches

	Program string `json:"program,omitempty"`
	Lure    string `json:"lure,omitempty"`
	Notes   string `json:"notes,omitempty"`
	Angler  string `json:"angler,omitempty"`
}

// NewCatchMessage flattens a catch record into the feed payload.
func NewCatchMessage(c *datastore.CatchRecord, angler string) CatchMessage {
	msg := CatchMessage{
		ID:        c.ID,
		Timestamp: c.Timestamp.UTC(),
		Species:   c.SpeciesName(),
		Weight:    c.Weight,
		Length:    c.Length,
		Notes:     c.Notes,
		Angler:    angler,
	}
	if c.FishInfo != nil {
		msg.ScientificName = c.FishInfo.ScientificName
	}
	if c.Location != nil {
		lat, lon := c.Location.Latitude, c.Location.Longitude
		msg.Latitude = &lat
		msg.Longitude = &lon
	}
	if c.Program != nil {
		msg.Program = c.Program.Name
	}
	if c.Lure != nil {
		msg.Lure = c.Lure.Manufacturer
		if c.Lure.Color != "" {
			msg.Lure += " " + c.Lure.Color
		}
	}
	return msg
}
