package ticketmaster

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/soundscape/internal/provider"
)

const discoveryJSON = `{
  "_embedded": {
    "events": [
      {
        "id": "G5vYZ9",
        "name": "Phoebe Bridgers",
        "dates": {"start": {"localDate": "2026-07-01", "localTime": "19:30:00", "dateTime": "2026-07-02T02:30:00Z"}},
        "classifications": [{"segment": {"name": "Music"}, "genre": {"name": "Alternative"}}],
        "_embedded": {"venues": [{"name": "Greek Theatre", "city": {"name": "Los Angeles"}}]}
      },
      {
        "id": "K8vZ91",
        "name": "",
        "dates": {"start": {"localDate": "2026-08-10", "localTime": "20:00:00"}, "timezone": "America/Chicago"},
        "classifications": [{"segment": {"name": "Music"}, "genre": {"name": "Undefined"}}],
        "_embedded": {"venues": [{"name": "Stubb's", "city": {"name": "Austin"}}]}
      },
      {
        "id": "Z1",
        "name": "No Date Band",
        "dates": {"start": {}}
      }
    ]
  },
  "page": {"size": 3, "totalElements": 3, "totalPages": 2, "number": 0}
}`

func newTestServer(t *testing.T, handler http.HandlerFunc) (*Client, *url.Values) {
	t.Helper()
	var seen url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r.URL.Query()
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	c := NewClient(Config{APIKey: "test-key", BaseURL: srv.URL + "/discovery/v2/events.json"})
	return c, &seen
}

func TestSearchEvents_MapsDiscoveryResponse(t *testing.T) {
	c, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(discoveryJSON))
	})

	page, err := c.SearchEvents(context.Background(), provider.SearchParams{Keyword: "phoebe"})
	require.NoError(t, err)

	assert.Equal(t, 0, page.Number)
	assert.Equal(t, 2, page.TotalPages)
	assert.True(t, page.HasNext())
	require.Len(t, page.Events, 3)

	first := page.Events[0]
	assert.Equal(t, "G5vYZ9", first.ProviderID)
	assert.Equal(t, "Phoebe Bridgers", first.Artist)
	assert.Equal(t, "Greek Theatre", first.Venue)
	assert.Equal(t, "Los Angeles", first.City)
	assert.Equal(t, "Alternative", first.Genre)
	assert.True(t, first.Date.Equal(time.Date(2026, 7, 2, 2, 30, 0, 0, time.UTC)))
	assert.Empty(t, first.ID, "provider events carry no local id")

	second := page.Events[1]
	assert.Equal(t, "Unknown Artist", second.Artist)
	assert.Equal(t, "Music", second.Genre, "Undefined genre falls back to segment")
	// 20:00 CDT is 01:00 UTC the next day
	assert.True(t, second.Date.Equal(time.Date(2026, 8, 11, 1, 0, 0, 0, time.UTC)), "got %v", second.Date)

	third := page.Events[2]
	assert.True(t, third.Date.IsZero())
	assert.Equal(t, "Other", third.Genre)
	assert.Empty(t, third.Venue)
}

func TestSearchEvents_QueryParameters(t *testing.T) {
	c, seen := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"page": {"totalPages": 0, "number": 0}}`))
	})

	_, err := c.SearchEvents(context.Background(), provider.SearchParams{
		Keyword: "  Radiohead ",
		City:    "Austin",
		Page:    3,
		Size:    500,
	})
	require.NoError(t, err)

	q := *seen
	assert.Equal(t, "test-key", q.Get("apikey"))
	assert.Equal(t, "music", q.Get("classificationName"))
	assert.Equal(t, "100", q.Get("size"), "size is clamped")
	assert.Equal(t, "3", q.Get("page"))
	assert.Equal(t, "Radiohead", q.Get("keyword"))
	assert.Equal(t, "Austin", q.Get("city"))
}

func TestSearchEvents_OmitsBlankFilters(t *testing.T) {
	c, seen := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	})

	page, err := c.SearchEvents(context.Background(), provider.SearchParams{Keyword: "   "})
	require.NoError(t, err)
	assert.Empty(t, page.Events)
	assert.NotNil(t, page.Events)

	q := *seen
	assert.False(t, q.Has("keyword"))
	assert.False(t, q.Has("city"))
	assert.False(t, q.Has("page"))
}

func TestSearchEvents_StatusError(t *testing.T) {
	c, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"fault":"rate limit"}`, http.StatusTooManyRequests)
	})

	_, err := c.SearchEvents(context.Background(), provider.SearchParams{})
	var se *StatusError
	require.True(t, errors.As(err, &se), "got %v", err)
	assert.Equal(t, http.StatusTooManyRequests, se.Code)
	assert.Contains(t, se.Body, "rate limit")
}

func TestSearchEvents_MalformedBody(t *testing.T) {
	c, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{not json`))
	})

	_, err := c.SearchEvents(context.Background(), provider.SearchParams{})
	assert.Error(t, err)
}

func TestSearchEvents_NotConfigured(t *testing.T) {
	c := NewClient(Config{})

	_, err := c.SearchEvents(context.Background(), provider.SearchParams{})
	assert.ErrorIs(t, err, provider.ErrNotConfigured)
}

func TestNewClient_Defaults(t *testing.T) {
	c := NewClient(Config{APIKey: "k"})
	assert.Equal(t, DefaultBaseURL, c.baseURL)
	assert.Equal(t, defaultTimeout, c.httpClient.Timeout)
	assert.Equal(t, "ticketmaster", c.Name())
}
