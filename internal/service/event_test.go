package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/soundscape/internal/apperror"
	"github.com/sakif/soundscape/internal/model"
	"github.com/sakif/soundscape/internal/provider"
)

func newTestEventService(store *fakeStore, p provider.Provider) *EventService {
	svc := NewEventService(store, p, testLogger)
	svc.now = clock
	return svc
}

func providerEvent(id, artist, genre, city string, date time.Time) model.Event {
	return model.Event{ProviderID: id, Artist: artist, Venue: "Venue " + id, City: city, Genre: genre, Date: date}
}

func notConfiguredProvider() *fakeProvider {
	return &fakeProvider{search: func(provider.SearchParams) (*provider.Page, error) {
		return nil, provider.ErrNotConfigured
	}}
}

// =========================================================================
// Search
// =========================================================================

func TestSearch_LocalPaging(t *testing.T) {
	store := newFakeStore()
	for i := range 7 {
		store.addEvent(t, fmt.Sprintf("Band %d", i), "Rock", fixedNow.AddDate(0, 0, 7-i))
	}
	p := notConfiguredProvider()
	svc := newTestEventService(store, p)

	page, err := svc.Search(context.Background(), SearchInput{Page: 2})
	require.NoError(t, err)

	assert.Equal(t, 7, page.Total)
	assert.Equal(t, 2, page.Page)
	assert.Equal(t, 2, page.TotalPages, "default page size is 5")
	require.Len(t, page.Events, 2)
	assert.Equal(t, "Band 1", page.Events[0].Artist)
	assert.Equal(t, "Band 0", page.Events[1].Artist, "latest date comes last")
	assert.Empty(t, page.Source)
	assert.Zero(t, p.calls.Load())
}

func TestSearch_FiltersAndLimits(t *testing.T) {
	store := newFakeStore()
	store.addEvent(t, "Radiohead", "Rock", fixedNow.AddDate(0, 0, 1))
	store.addEvent(t, "Miles Ahead", "Jazz", fixedNow.AddDate(0, 0, 2))
	store.addEvent(t, "Radio Choir", "Classical", fixedNow.AddDate(0, 0, 3))
	svc := newTestEventService(store, notConfiguredProvider())

	page, err := svc.Search(context.Background(), SearchInput{Artist: "  RADIO ", Genres: []string{"Rock", " ", "Classical"}, Limit: 500})
	require.NoError(t, err)
	assert.Equal(t, 2, page.Total)
	assert.Equal(t, 1, page.TotalPages)

	page, err = svc.Search(context.Background(), SearchInput{Genres: []string{"Jazz"}, Page: -3, Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Page)
	require.Len(t, page.Events, 1)
	assert.Equal(t, "Miles Ahead", page.Events[0].Artist)
}

func TestSearch_NoMatchesWithoutArtistSkipsProvider(t *testing.T) {
	p := &fakeProvider{search: func(provider.SearchParams) (*provider.Page, error) {
		t.Fatal("provider must not be called")
		return nil, nil
	}}
	svc := newTestEventService(newFakeStore(), p)

	page, err := svc.Search(context.Background(), SearchInput{Genres: []string{"Polka"}})
	require.NoError(t, err)
	assert.Equal(t, 0, page.Total)
	assert.NotNil(t, page.Events)
	assert.Empty(t, page.Events)
}

func TestSearch_LiveFallback(t *testing.T) {
	store := newFakeStore()
	var got provider.SearchParams
	p := &fakeProvider{search: func(params provider.SearchParams) (*provider.Page, error) {
		got = params
		return &provider.Page{Events: []model.Event{
			providerEvent("tm-1", "Phoebe Bridgers", "Rock", "Austin", fixedNow.AddDate(0, 0, 3)),
			providerEvent("tm-2", "Phoebe Bridgers", "Folk", "Dallas", fixedNow.AddDate(0, 0, 4)),
		}, TotalPages: 1}, nil
	}}
	svc := newTestEventService(store, p)

	page, err := svc.Search(context.Background(), SearchInput{Artist: "phoebe"})
	require.NoError(t, err)

	assert.Equal(t, "phoebe", got.Keyword)
	assert.Equal(t, LiveResultCap, got.Size)
	assert.Equal(t, SourceLive, page.Source)
	assert.Equal(t, 2, page.Total)
	assert.Equal(t, 1, page.TotalPages)
	require.Len(t, page.Events, 2)
	for _, e := range page.Events {
		assert.NotEmpty(t, e.ID, "live results get provisional ids")
	}

	svc.Wait()
	stored, err := store.GetEventByID(context.Background(), page.Events[0].ID)
	require.NoError(t, err, "background upsert keeps the provisional id for new events")
	assert.Equal(t, "tm-1", stored.ProviderID)

	// The next search is served locally.
	page, err = svc.Search(context.Background(), SearchInput{Artist: "phoebe"})
	require.NoError(t, err)
	assert.Empty(t, page.Source)
	assert.Equal(t, 2, page.Total)
	assert.EqualValues(t, 1, p.calls.Load())
}

// The provider matches "taylor" on something other than the event name, so
// the local search keeps missing and every search goes live.
func TestSearch_RepeatedLiveSearchServesStoredIDs(t *testing.T) {
	store := newFakeStore()
	p := &fakeProvider{search: func(provider.SearchParams) (*provider.Page, error) {
		return &provider.Page{Events: []model.Event{
			providerEvent("tm-eras", "The Eras Tour", "Pop", "Austin", fixedNow.AddDate(0, 0, 10)),
		}, TotalPages: 1}, nil
	}}
	svc := newTestEventService(store, p)
	ctx := context.Background()

	first, err := svc.Search(ctx, SearchInput{Artist: "taylor"})
	require.NoError(t, err)
	svc.Wait()

	second, err := svc.Search(ctx, SearchInput{Artist: "taylor"})
	require.NoError(t, err)
	svc.Wait()

	require.Equal(t, SourceLive, second.Source)
	require.Len(t, second.Events, 1)
	assert.Equal(t, first.Events[0].ID, second.Events[0].ID)
	assert.EqualValues(t, 2, p.calls.Load())

	b, err := newTestBookmarkService(store).Create(ctx, validSession("user-1"), second.Events[0].ID)
	require.NoError(t, err)
	assert.Equal(t, second.Events[0].ID, b.EventID)
}

func TestSearch_LiveFallbackAppliesGenreFilter(t *testing.T) {
	p := &fakeProvider{search: func(provider.SearchParams) (*provider.Page, error) {
		return &provider.Page{Events: []model.Event{
			providerEvent("tm-1", "Phoebe", "Rock", "Austin", fixedNow.AddDate(0, 0, 3)),
			providerEvent("tm-2", "Phoebe", "Folk", "Austin", fixedNow.AddDate(0, 0, 4)),
		}}, nil
	}}
	svc := newTestEventService(newFakeStore(), p)

	page, err := svc.Search(context.Background(), SearchInput{Artist: "phoebe", Genres: []string{"Folk"}})
	require.NoError(t, err)
	svc.Wait()

	require.Len(t, page.Events, 1)
	assert.Equal(t, "tm-2", page.Events[0].ProviderID)
}

func TestSearch_LiveFallbackDegradesToEmptyPage(t *testing.T) {
	tests := []struct {
		name string
		page *provider.Page
		err  error
	}{
		{name: "provider error", err: errors.New("503 from upstream")},
		{name: "breaker open", err: fmt.Errorf("provider: %w", errors.New("circuit breaker is open"))},
		{name: "not configured", err: provider.ErrNotConfigured},
		{name: "no results", page: &provider.Page{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFakeStore()
			p := &fakeProvider{search: func(provider.SearchParams) (*provider.Page, error) {
				return tt.page, tt.err
			}}
			svc := newTestEventService(store, p)

			page, err := svc.Search(context.Background(), SearchInput{Artist: "zzzznonexistent"})
			require.NoError(t, err)
			svc.Wait()

			assert.Equal(t, 0, page.Total)
			assert.Empty(t, page.Events)
			assert.Empty(t, page.Source)
			assert.Zero(t, store.upsertCalls)
		})
	}
}

func TestSearch_LivePersistFailureDoesNotFailRequest(t *testing.T) {
	store := newFakeStore()
	store.upsertEventsErr = errors.New("disk full")
	p := &fakeProvider{search: func(provider.SearchParams) (*provider.Page, error) {
		return &provider.Page{Events: []model.Event{
			providerEvent("tm-1", "Phoebe", "Rock", "Austin", fixedNow.AddDate(0, 0, 3)),
		}}, nil
	}}
	svc := newTestEventService(store, p)

	page, err := svc.Search(context.Background(), SearchInput{Artist: "phoebe"})
	require.NoError(t, err)
	svc.Wait()

	assert.Equal(t, SourceLive, page.Source)
	assert.Len(t, page.Events, 1)
	assert.Equal(t, 1, store.upsertCalls)
}

func TestListGenres(t *testing.T) {
	store := newFakeStore()
	svc := newTestEventService(store, notConfiguredProvider())

	genres, err := svc.ListGenres(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{}, genres)

	store.addEvent(t, "A", "Rock", fixedNow)
	store.addEvent(t, "B", "Jazz", fixedNow)
	store.addEvent(t, "C", "Rock", fixedNow)
	genres, err = svc.ListGenres(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Jazz", "Rock"}, genres)
}

// =========================================================================
// Sync
// =========================================================================

// pagedProvider serves totalPages pages of perPage events each; events on
// even positions are in Austin, odd ones in Dallas.
func pagedProvider(totalPages, perPage int, failOn int) *fakeProvider {
	return &fakeProvider{search: func(params provider.SearchParams) (*provider.Page, error) {
		if params.Page == failOn {
			return nil, errors.New("upstream 500")
		}
		events := make([]model.Event, 0, perPage)
		for i := range perPage {
			city := "Austin"
			if i%2 == 1 {
				city = "Dallas"
			}
			id := fmt.Sprintf("tm-%d-%d", params.Page, i)
			events = append(events, providerEvent(id, "Band "+id, "Rock", city, fixedNow.AddDate(0, 0, 1+i)))
		}
		return &provider.Page{Events: events, Number: params.Page, TotalPages: totalPages}, nil
	}}
}

func TestSync_PagesFiltersAndUpserts(t *testing.T) {
	store := newFakeStore()
	var seen []provider.SearchParams
	// Page 0: upcoming, past, undated, today. Page 1: Austin (untrimmed), Dallas.
	p := &fakeProvider{search: func(params provider.SearchParams) (*provider.Page, error) {
		seen = append(seen, params)
		switch params.Page {
		case 0:
			return &provider.Page{Events: []model.Event{
				providerEvent("tm-1", "A", "Rock", "Austin", fixedNow.AddDate(0, 0, 1)),
				providerEvent("tm-2", "B", "Rock", "Austin", fixedNow.AddDate(0, 0, -1)),
				providerEvent("tm-3", "C", "Rock", "Austin", time.Time{}),
				providerEvent("tm-4", "D", "Rock", "Austin", fixedNow.Truncate(24*time.Hour)),
			}, Number: 0, TotalPages: 2}, nil
		default:
			return &provider.Page{Events: []model.Event{
				providerEvent("tm-5", "E", "Jazz", "austin ", fixedNow.AddDate(0, 1, 0)),
				providerEvent("tm-6", "F", "Jazz", "Dallas", fixedNow.AddDate(0, 1, 0)),
			}, Number: 1, TotalPages: 2}, nil
		}
	}}
	svc := newTestEventService(store, p)

	res, err := svc.Sync(context.Background(), SyncInput{Artist: " A ", City: "Austin"})
	require.NoError(t, err)

	assert.Equal(t, &model.SyncResult{Fetched: 6, Filtered: 3, Upserted: 3}, res)
	require.Len(t, seen, 2)
	for i, params := range seen {
		assert.Equal(t, i, params.Page)
		assert.Equal(t, "A", params.Keyword)
		assert.Equal(t, "Austin", params.City)
		assert.Equal(t, provider.MaxPageSize, params.Size)
		assert.True(t, params.Fresh, "sync bypasses the cache")
	}

	// A second run updates instead of inserting.
	res, err = svc.Sync(context.Background(), SyncInput{Artist: "A", City: "Austin"})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Upserted)
	assert.Len(t, store.events, 3)
}

func TestSync_StopsAtMaxPages(t *testing.T) {
	p := pagedProvider(20, 2, -1)
	svc := newTestEventService(newFakeStore(), p)

	res, err := svc.Sync(context.Background(), SyncInput{})
	require.NoError(t, err)
	assert.EqualValues(t, SyncMaxPages, p.calls.Load())
	assert.Equal(t, SyncMaxPages*2, res.Fetched)
	assert.Equal(t, SyncMaxPages*2, res.Upserted)
}

func TestSync_LaterPageFailureKeepsEarlierPages(t *testing.T) {
	store := newFakeStore()
	svc := newTestEventService(store, pagedProvider(4, 2, 2))

	res, err := svc.Sync(context.Background(), SyncInput{City: "austin"})
	require.NoError(t, err)
	assert.Equal(t, 4, res.Fetched)
	assert.Equal(t, 2, res.Filtered, "only Austin events survive")
	assert.Equal(t, 2, res.Upserted)
	assert.Len(t, store.events, 2)
}

func TestSync_FirstPageFailureIsFatal(t *testing.T) {
	store := newFakeStore()
	svc := newTestEventService(store, pagedProvider(4, 2, 0))

	_, err := svc.Sync(context.Background(), SyncInput{})
	require.ErrorIs(t, err, apperror.ErrUpstream)
	assert.EqualError(t, err, "Failed to sync events from Ticketmaster")
	assert.Zero(t, store.upsertCalls)
}

func TestSync_NotConfigured(t *testing.T) {
	svc := newTestEventService(newFakeStore(), notConfiguredProvider())

	_, err := svc.Sync(context.Background(), SyncInput{})
	require.ErrorIs(t, err, apperror.ErrInternal)
	assert.EqualError(t, err, "TICKETMASTER_API_KEY is not configured")
}
