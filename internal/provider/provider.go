// Package provider defines the contract for external event catalogues and
// the decorators layered over every implementation: a circuit breaker and a
// response cache.
package provider

import (
	"context"
	"errors"

	"github.com/sakif/soundscape/internal/model"
)

// ErrNotConfigured is returned when the provider has no credentials.
// It is a deployment problem, not a provider outage, and never trips the
// breaker.
var ErrNotConfigured = errors.New("provider: not configured")

// MaxPageSize is the largest page the provider accepts.
const MaxPageSize = 100

// SearchParams narrows a provider query. Zero values are omitted.
type SearchParams struct {
	Keyword string
	City    string
	Page    int // zero-based
	Size    int

	// Fresh bypasses cached reads. The response is still cached.
	Fresh bool
}

// Page is one page of provider results mapped onto the local event model.
// Events carry ProviderID but no local ID.
type Page struct {
	Events     []model.Event `json:"events"`
	Number     int           `json:"number"`
	TotalPages int           `json:"totalPages"`
}

// HasNext reports whether another page follows this one.
func (p *Page) HasNext() bool {
	return p.Number+1 < p.TotalPages
}

// Provider searches an external event catalogue.
type Provider interface {
	Name() string
	SearchEvents(ctx context.Context, params SearchParams) (*Page, error)
}
