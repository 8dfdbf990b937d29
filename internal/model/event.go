package model

import "time"

// Event is a discoverable concert. ProviderID is the external provider's
// identifier and is unique across the catalog; syncs upsert on it.
type Event struct {
	ID         string    `json:"id"`
	ProviderID string    `json:"providerId"`
	Artist     string    `json:"artist"`
	Venue      string    `json:"venue"`
	City       string    `json:"city"`
	Date       time.Time `json:"date"`
	Genre      string    `json:"genre"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// EventFilter narrows a catalog search. Zero values mean "no filter".
type EventFilter struct {
	Query  string   // case-insensitive substring of artist or venue
	Genres []string // exact genre labels; empty means any
	Limit  int
	Offset int
}

// EventPage is one page of search results.
type EventPage struct {
	Events     []Event `json:"events"`
	Total      int     `json:"total"`
	Page       int     `json:"page"`
	TotalPages int     `json:"totalPages"`
	Source     string  `json:"source,omitempty"` // "live" when served from the provider
}

// SyncResult reports what a provider sync did.
type SyncResult struct {
	Fetched  int `json:"fetched"`
	Filtered int `json:"filtered"`
	Upserted int `json:"upserted"`
}
