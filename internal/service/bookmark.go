package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sakif/soundscape/internal/apperror"
	"github.com/sakif/soundscape/internal/model"
	"github.com/sakif/soundscape/internal/repository"
)

// BookmarkService manages a user's saved events. Every method takes the
// caller's session and fails with 401 unless it is valid.
type BookmarkService struct {
	bookmarks repository.BookmarkRepository
	events    repository.EventRepository
	logger    *slog.Logger
	now       func() time.Time
}

func NewBookmarkService(bookmarks repository.BookmarkRepository, events repository.EventRepository, logger *slog.Logger) *BookmarkService {
	return &BookmarkService{
		bookmarks: bookmarks,
		events:    events,
		logger:    logger,
		now:       time.Now,
	}
}

// List returns the bookmarked events sorted by date. Bookmarks for events
// dated before today are deleted first, so a past event is never returned.
func (s *BookmarkService) List(ctx context.Context, session model.Session) ([]model.Event, error) {
	userID, err := sessionUser(session)
	if err != nil {
		return nil, err
	}

	removed, err := s.bookmarks.DeleteBookmarksBefore(ctx, userID, today(s.now()))
	if err != nil {
		return nil, fmt.Errorf("service/bookmark: removing past bookmarks: %w", err)
	}
	if removed > 0 {
		s.logger.DebugContext(ctx, "past bookmarks removed",
			slog.String("userID", userID),
			slog.Int("count", removed),
		)
	}

	bookmarks, err := s.bookmarks.ListBookmarks(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service/bookmark: listing: %w", err)
	}

	events := make([]model.Event, 0, len(bookmarks))
	for _, b := range bookmarks {
		if b.Event != nil {
			events = append(events, *b.Event)
		}
	}
	return events, nil
}

// Create bookmarks an event. Bookmarking the same event twice returns the
// existing bookmark.
func (s *BookmarkService) Create(ctx context.Context, session model.Session, eventID string) (*model.Bookmark, error) {
	userID, err := sessionUser(session)
	if err != nil {
		return nil, err
	}
	eventID = strings.TrimSpace(eventID)
	if eventID == "" {
		return nil, apperror.ValidationFailed("eventId", "eventId is required")
	}

	if _, err := s.events.GetEventByID(ctx, eventID); err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.NotFoundMessage("Event not found")
		}
		return nil, fmt.Errorf("service/bookmark: fetching event %s: %w", eventID, err)
	}

	bookmark := &model.Bookmark{UserID: userID, EventID: eventID}
	if err := s.bookmarks.UpsertBookmark(ctx, bookmark); err != nil {
		return nil, fmt.Errorf("service/bookmark: saving: %w", err)
	}
	return bookmark, nil
}

// Delete removes a bookmark. A missing bookmark is not an error.
func (s *BookmarkService) Delete(ctx context.Context, session model.Session, eventID string) error {
	userID, err := sessionUser(session)
	if err != nil {
		return err
	}
	if err := s.bookmarks.DeleteBookmark(ctx, userID, strings.TrimSpace(eventID)); err != nil {
		return fmt.Errorf("service/bookmark: deleting: %w", err)
	}
	return nil
}

func sessionUser(session model.Session) (string, error) {
	if !session.Valid() {
		return "", apperror.Unauthorized("Not logged in")
	}
	return session.UserID, nil
}
