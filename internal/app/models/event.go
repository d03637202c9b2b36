package models

import (
	"time"
)

// Event is an immutable row produced by the ingestion pipeline. The feed
// never mutates events; it only reads them and annotates responses.
type Event struct {
	ID            int64         `json:"id"`
	Name          string        `json:"name"`
	Description   string        `json:"description"`
	VenueName     string        `json:"venueName"`
	StartDateTime time.Time     `json:"startDateTime"`
	Geolocation   *Coordinate   `json:"geolocation,omitempty"`
	ImageData     ImageData     `json:"imageData"`
	Metadata      EventMetadata `json:"metadata"`
	CreatedAt     time.Time     `json:"createdAt"`

	// ImageURL is flattened from ImageData.SelectedImg on every feed
	// response so clients never dig into the jsonb shape.
	ImageURL string `json:"imageUrl"`

	// Distance in miles from the requesting location, when computed.
	Distance float64 `json:"distance,omitempty"`

	// Per-user status flags, merged in for detail and list views.
	Status *UserEventStatus `json:"status,omitempty"`
}

// ImageData is the producer-defined image payload. SelectedImg is the
// primary URL; Alts are fallback candidates the ingestion pipeline scored
// lower.
type ImageData struct {
	SelectedImg string   `json:"selectedImg"`
	Alts        []string `json:"alts,omitempty"`
}

// EventTags groups the category labels assigned upstream.
type EventTags struct {
	Categories []string `json:"Categories,omitempty"`
}

// EventMetadata is the structured attribute bag attached by ingestion.
// All fields default safely to their zero values when absent from the
// stored jsonb.
type EventMetadata struct {
	EventTags       EventTags `json:"eventTags"`
	Price           string    `json:"price,omitempty"`
	TicketURL       string    `json:"ticketUrl,omitempty"`
	CalendarURL     string    `json:"calendarUrl,omitempty"`
	SoldOut         bool      `json:"soldOut,omitempty"`
	LongDescription string    `json:"longDescription,omitempty"`
	Address         string    `json:"address,omitempty"`
}

// FlattenImageURL returns the primary image URL or the empty string when
// the event carries no usable image.
func (e *Event) FlattenImageURL() string {
	return e.ImageData.SelectedImg
}
