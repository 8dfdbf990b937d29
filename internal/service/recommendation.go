package service

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/sakif/soundscape/internal/model"
	"github.com/sakif/soundscape/internal/repository"
)

const (
	// MinCandidates is the pool size below which genre matches are
	// backfilled with other upcoming events.
	MinCandidates = 6
	// SampleSize is how many recommendations one request returns.
	SampleSize = 4

	MsgNoPreferences = "No genre preferences set. Please update your profile."
)

// Recommendations is one random sample for a user.
type Recommendations struct {
	Events []model.Event
	Genres []string
	// TotalAvailable counts upcoming events matching the user's genres,
	// before backfill and sampling.
	TotalAvailable int
	// Message is set instead of Events when the user has no preferences.
	Message string
}

// RecommendationService picks upcoming events for a user's genres.
//
// ALGORITHM:
//  1. Upcoming events whose genre contains any preferred genre
//     (case-insensitive)
//  2. Fewer than MinCandidates? Backfill with random other upcoming events
//  3. Shuffle the pool and return the first SampleSize
//
// The sample is different on every call.
type RecommendationService struct {
	users   repository.UserRepository
	events  repository.EventRepository
	logger  *slog.Logger
	now     func() time.Time
	shuffle func(n int, swap func(i, j int))
}

func NewRecommendationService(users repository.UserRepository, events repository.EventRepository, logger *slog.Logger) *RecommendationService {
	return &RecommendationService{
		users:   users,
		events:  events,
		logger:  logger,
		now:     time.Now,
		shuffle: rand.Shuffle,
	}
}

func (s *RecommendationService) Get(ctx context.Context, session model.Session) (*Recommendations, error) {
	userID, err := sessionUser(session)
	if err != nil {
		return nil, err
	}

	user, err := lookupUser(ctx, s.users, userID)
	if err != nil {
		return nil, err
	}
	if len(user.Genres) == 0 {
		return &Recommendations{
			Events:  []model.Event{},
			Genres:  []string{},
			Message: MsgNoPreferences,
		}, nil
	}

	from := today(s.now())
	pool, err := s.events.UpcomingEventsByGenres(ctx, from, user.Genres)
	if err != nil {
		return nil, fmt.Errorf("service/recommendation: matching genres: %w", err)
	}
	matched := len(pool)

	if matched < MinCandidates {
		exclude := make([]string, 0, matched)
		for _, e := range pool {
			exclude = append(exclude, e.ID)
		}
		extra, err := s.events.RandomUpcomingEvents(ctx, from, MinCandidates-matched, exclude)
		if err != nil {
			return nil, fmt.Errorf("service/recommendation: backfilling: %w", err)
		}
		pool = append(pool, extra...)
	}

	s.shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })
	if len(pool) > SampleSize {
		pool = pool[:SampleSize]
	}
	if pool == nil {
		pool = []model.Event{}
	}

	s.logger.DebugContext(ctx, "recommendations built",
		slog.String("userID", userID),
		slog.Int("matched", matched),
		slog.Int("returned", len(pool)),
	)

	return &Recommendations{
		Events:         pool,
		Genres:         user.Genres,
		TotalAvailable: matched,
	}, nil
}
