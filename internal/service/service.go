// Package service contains Soundscape's business logic.
//
// THE THREE LAYERS:
//
//	Handler (HTTP layer)     → parses requests, writes responses
//	Service (business layer) → validates, enforces rules, orchestrates
//	Repository (data layer)  → reads/writes the database
//
// Services accept plain Go values and model types, never *http.Request, and
// return *apperror.AppError values that the handler layer maps to status
// codes in one place. Every dependency is an interface from the repository
// package (or a small interface declared here), so tests run against
// in-memory fakes.
//
// THE DEPENDENCY CHAIN:
//
//	server.New creates:  DB → Services → Handlers
//	At runtime:          Handler calls Service calls Repository calls DB
package service

import "time"

// today returns midnight UTC of now's calendar day. Events dated before it
// are in the past.
func today(now time.Time) time.Time {
	y, m, d := now.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func nowOr(now func() time.Time) func() time.Time {
	if now == nil {
		return time.Now
	}
	return now
}
