package ticketmaster

import (
	"strings"
	"time"
	_ "time/tzdata" // venue timezones must resolve on hosts without zoneinfo

	"github.com/araddon/dateparse"

	"github.com/sakif/soundscape/internal/model"
)

const (
	unknownArtist = "Unknown Artist"
	otherGenre    = "Other"
)

// Discovery API response subset.
type searchResponse struct {
	Embedded struct {
		Events []tmEvent `json:"events"`
	} `json:"_embedded"`
	Page struct {
		Size          int `json:"size"`
		TotalElements int `json:"totalElements"`
		TotalPages    int `json:"totalPages"`
		Number        int `json:"number"`
	} `json:"page"`
}

type tmEvent struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Dates struct {
		Start struct {
			LocalDate string `json:"localDate"`
			LocalTime string `json:"localTime"`
			DateTime  string `json:"dateTime"`
		} `json:"start"`
		Timezone string `json:"timezone"`
	} `json:"dates"`
	Classifications []struct {
		Segment nameField `json:"segment"`
		Genre   nameField `json:"genre"`
	} `json:"classifications"`
	Embedded struct {
		Venues []struct {
			Name string    `json:"name"`
			City nameField `json:"city"`
		} `json:"venues"`
	} `json:"_embedded"`
}

type nameField struct {
	Name string `json:"name"`
}

func mapEvents(in []tmEvent) []model.Event {
	out := make([]model.Event, 0, len(in))
	for _, e := range in {
		if e.ID == "" {
			continue
		}
		out = append(out, mapEvent(e))
	}
	return out
}

// mapEvent converts one Discovery event. Missing strings become "", a
// missing genre becomes "Other" and an unparseable date stays zero so callers
// can filter it out.
func mapEvent(e tmEvent) model.Event {
	ev := model.Event{
		ProviderID: e.ID,
		Artist:     strings.TrimSpace(e.Name),
		Genre:      otherGenre,
		Date:       eventDate(e),
	}
	if ev.Artist == "" {
		ev.Artist = unknownArtist
	}
	if len(e.Embedded.Venues) > 0 {
		v := e.Embedded.Venues[0]
		ev.Venue = strings.TrimSpace(v.Name)
		ev.City = strings.TrimSpace(v.City.Name)
	}
	if len(e.Classifications) > 0 {
		c := e.Classifications[0]
		switch {
		case usable(c.Genre.Name):
			ev.Genre = c.Genre.Name
		case usable(c.Segment.Name):
			ev.Genre = c.Segment.Name
		}
	}
	return ev
}

// usable rejects blanks and the "Undefined" placeholder the API emits for
// unclassified events.
func usable(name string) bool {
	name = strings.TrimSpace(name)
	return name != "" && !strings.EqualFold(name, "Undefined")
}

// eventDate prefers the UTC dateTime. Events without one (TBA times) fall
// back to localDate plus localTime, read in the venue's timezone when given.
func eventDate(e tmEvent) time.Time {
	start := e.Dates.Start
	if start.DateTime != "" {
		if t, err := time.Parse(time.RFC3339, start.DateTime); err == nil {
			return t.UTC()
		}
	}
	if start.LocalDate == "" {
		return time.Time{}
	}

	loc := time.UTC
	if e.Dates.Timezone != "" {
		if l, err := time.LoadLocation(e.Dates.Timezone); err == nil {
			loc = l
		}
	}

	raw := start.LocalDate
	if start.LocalTime != "" {
		raw += " " + start.LocalTime
	}
	t, err := dateparse.ParseIn(raw, loc)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}
