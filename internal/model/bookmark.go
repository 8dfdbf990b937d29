package model

import "time"

// Bookmark joins a user to an event. A (UserID, EventID) pair is unique.
type Bookmark struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	EventID   string    `json:"eventId"`
	CreatedAt time.Time `json:"createdAt"`

	// Event is populated when bookmarks are listed with their events.
	Event *Event `json:"event,omitempty"`
}
