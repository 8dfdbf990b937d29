package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/soundscape/internal/apperror"
	"github.com/sakif/soundscape/internal/metrics"
	"github.com/sakif/soundscape/internal/model"
	"github.com/sakif/soundscape/internal/provider"
	"github.com/sakif/soundscape/internal/repository"
)

const (
	DefaultPageSize = 5
	MaxPageSize     = 100

	// SyncMaxPages bounds one sync run to SyncMaxPages × provider.MaxPageSize
	// events.
	SyncMaxPages = 5
	// LiveResultCap bounds a live fallback search.
	LiveResultCap = 50

	// SourceLive marks a search page served from the provider.
	SourceLive = "live"

	persistTimeout = 30 * time.Second
)

// EventService serves the catalog: local search with a live provider
// fallback, the genre list, and bulk sync from the provider.
//
// BACKGROUND WORK:
// Live fallback results are persisted after the response is written, in a
// goroutine tracked by a WaitGroup. Wait blocks until those writes finish;
// the server calls it during graceful shutdown.
type EventService struct {
	events   repository.EventRepository
	provider provider.Provider
	logger   *slog.Logger
	now      func() time.Time

	background sync.WaitGroup
}

// NewEventService creates an EventService. p is the provider stack (breaker,
// cache, client); it reports provider.ErrNotConfigured when no API key is set.
func NewEventService(events repository.EventRepository, p provider.Provider, logger *slog.Logger) *EventService {
	return &EventService{
		events:   events,
		provider: p,
		logger:   logger,
		now:      time.Now,
	}
}

// SearchInput is a catalog query. Page is 1-based.
type SearchInput struct {
	Artist string
	Genres []string
	Page   int
	Limit  int
}

func (in *SearchInput) normalize() {
	in.Artist = strings.TrimSpace(in.Artist)
	if in.Page < 1 {
		in.Page = 1
	}
	if in.Limit < 1 {
		in.Limit = DefaultPageSize
	}
	if in.Limit > MaxPageSize {
		in.Limit = MaxPageSize
	}
	genres := make([]string, 0, len(in.Genres))
	for _, g := range in.Genres {
		if g = strings.TrimSpace(g); g != "" {
			genres = append(genres, g)
		}
	}
	in.Genres = genres
}

// Search pages through the local catalog sorted by date.
//
// FLOW:
//  1. Query the local store
//  2. If nothing matched and an artist was given, ask the provider live
//  3. Serve the live results (Source = "live") and upsert them in the
//     background so the next search finds them locally
//
// A failing or unconfigured provider degrades to the empty local page.
func (s *EventService) Search(ctx context.Context, in SearchInput) (*model.EventPage, error) {
	in.normalize()

	events, total, err := s.events.SearchEvents(ctx, model.EventFilter{
		Query:  in.Artist,
		Genres: in.Genres,
		Limit:  in.Limit,
		Offset: (in.Page - 1) * in.Limit,
	})
	if err != nil {
		return nil, fmt.Errorf("service/event: searching: %w", err)
	}

	if total == 0 && in.Artist != "" && s.provider != nil {
		if page := s.liveSearch(ctx, in); page != nil {
			return page, nil
		}
	}

	return newEventPage(events, total, in.Page, in.Limit), nil
}

func (s *EventService) liveSearch(ctx context.Context, in SearchInput) *model.EventPage {
	result, err := s.provider.SearchEvents(ctx, provider.SearchParams{
		Keyword: in.Artist,
		Size:    LiveResultCap,
	})
	if err != nil {
		if !errors.Is(err, provider.ErrNotConfigured) {
			s.logger.WarnContext(ctx, "live search failed",
				slog.String("artist", in.Artist),
				slog.String("error", err.Error()),
			)
		}
		return nil
	}

	live := filterGenres(result.Events, in.Genres)
	if len(live) > LiveResultCap {
		live = live[:LiveResultCap]
	}
	if len(live) == 0 {
		return nil
	}

	s.assignLiveIDs(ctx, live)
	s.persist(ctx, live)

	start := min((in.Page-1)*in.Limit, len(live))
	end := min(start+in.Limit, len(live))
	page := newEventPage(live[start:end], len(live), in.Page, in.Limit)
	page.Source = SourceLive
	return page
}

// assignLiveIDs gives live results the id they are or will be stored under:
// the existing id for known provider ids, a fresh provisional one otherwise.
// The background upsert keeps whichever id the row already has, so ids
// served here stay bookmarkable across repeated searches.
func (s *EventService) assignLiveIDs(ctx context.Context, live []model.Event) {
	providerIDs := make([]string, 0, len(live))
	for _, e := range live {
		providerIDs = append(providerIDs, e.ProviderID)
	}

	stored, err := s.events.EventIDsByProviderIDs(ctx, providerIDs)
	if err != nil {
		s.logger.WarnContext(ctx, "looking up stored live results failed",
			slog.Int("events", len(live)),
			slog.String("error", err.Error()),
		)
	}
	for i := range live {
		if id, ok := stored[live[i].ProviderID]; ok {
			live[i].ID = id
			continue
		}
		live[i].ID = xid.New().String()
	}
}

// persist upserts events without blocking the caller. Failures are logged
// and counted; they never reach the client.
func (s *EventService) persist(ctx context.Context, events []model.Event) {
	batch := make([]model.Event, len(events))
	copy(batch, events)

	s.background.Add(1)
	go func() {
		defer s.background.Done()

		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
		defer cancel()

		inserted, err := s.events.UpsertEvents(ctx, batch)
		if err != nil {
			metrics.LivePersistFailures.Inc()
			s.logger.Error("persisting live results failed",
				slog.Int("events", len(batch)),
				slog.String("error", err.Error()),
			)
			return
		}
		s.logger.Debug("live results persisted",
			slog.Int("events", len(batch)),
			slog.Int("inserted", inserted),
		)
	}()
}

// Wait blocks until background persistence has finished.
func (s *EventService) Wait() {
	s.background.Wait()
}

// ListGenres returns the distinct genres in the catalog, sorted.
func (s *EventService) ListGenres(ctx context.Context) ([]string, error) {
	genres, err := s.events.ListGenres(ctx)
	if err != nil {
		return nil, fmt.Errorf("service/event: listing genres: %w", err)
	}
	if genres == nil {
		genres = []string{}
	}
	return genres, nil
}

// SyncInput narrows a sync run. Both filters are optional.
type SyncInput struct {
	Artist string
	City   string
}

// Sync pulls upcoming music events from the provider into the local store.
//
// FLOW:
//  1. Page through the provider, at most SyncMaxPages pages of
//     provider.MaxPageSize, bypassing the result cache
//  2. Drop events without a date, dated before today, or outside the
//     requested city
//  3. Upsert the rest by provider id
//
// A first-page failure fails the sync. A later failure stops paging and
// the pages already fetched are still stored.
func (s *EventService) Sync(ctx context.Context, in SyncInput) (*model.SyncResult, error) {
	artist := strings.TrimSpace(in.Artist)
	city := strings.TrimSpace(in.City)
	cutoff := today(s.now())

	var (
		fetched int
		kept    []model.Event
	)
	for pageNum := 0; pageNum < SyncMaxPages; pageNum++ {
		page, err := s.provider.SearchEvents(ctx, provider.SearchParams{
			Keyword: artist,
			City:    city,
			Page:    pageNum,
			Size:    provider.MaxPageSize,
			Fresh:   true,
		})
		if err != nil {
			if pageNum == 0 {
				return nil, syncError(err)
			}
			s.logger.WarnContext(ctx, "sync stopped early",
				slog.Int("page", pageNum),
				slog.String("error", err.Error()),
			)
			break
		}

		fetched += len(page.Events)
		for _, e := range page.Events {
			if keepForSync(e, cutoff, city) {
				kept = append(kept, e)
			}
		}

		if !page.HasNext() {
			break
		}
	}

	upserted, err := s.events.UpsertEvents(ctx, kept)
	if err != nil {
		return nil, fmt.Errorf("service/event: storing synced events: %w", err)
	}

	result := &model.SyncResult{Fetched: fetched, Filtered: len(kept), Upserted: upserted}
	metrics.RecordSync(result.Fetched, result.Filtered, result.Upserted)
	s.logger.InfoContext(ctx, "sync finished",
		slog.String("artist", artist),
		slog.String("city", city),
		slog.Int("fetched", result.Fetched),
		slog.Int("filtered", result.Filtered),
		slog.Int("upserted", result.Upserted),
	)
	return result, nil
}

func syncError(err error) error {
	if errors.Is(err, provider.ErrNotConfigured) {
		return apperror.Internal("TICKETMASTER_API_KEY is not configured")
	}
	return apperror.Upstream("Failed to sync events from Ticketmaster", err)
}

func keepForSync(e model.Event, cutoff time.Time, city string) bool {
	if e.Date.IsZero() || e.Date.Before(cutoff) {
		return false
	}
	if city != "" && !strings.EqualFold(strings.TrimSpace(e.City), city) {
		return false
	}
	return true
}

func filterGenres(events []model.Event, genres []string) []model.Event {
	if len(genres) == 0 {
		return events
	}
	out := events[:0:0]
	for _, e := range events {
		for _, g := range genres {
			if e.Genre == g {
				out = append(out, e)
				break
			}
		}
	}
	return out
}

func newEventPage(events []model.Event, total, page, limit int) *model.EventPage {
	if events == nil {
		events = []model.Event{}
	}
	return &model.EventPage{
		Events:     events,
		Total:      total,
		Page:       page,
		TotalPages: (total + limit - 1) / limit,
	}
}
