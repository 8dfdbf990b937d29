// Package repository defines the storage interfaces the service layer depends
// on. Implementations live in subpackages (sqlite).
//
// Lookups that find nothing return an error wrapping apperror.ErrNotFound;
// uniqueness violations wrap apperror.ErrConflict.
package repository

import (
	"context"
	"time"

	"github.com/sakif/soundscape/internal/model"
)

type UserRepository interface {
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	GetUserByVerificationToken(ctx context.Context, token string) (*model.User, error)
	// GetUserByResetToken only matches tokens whose expiry is after now.
	GetUserByResetToken(ctx context.Context, token string, now time.Time) (*model.User, error)
	UpdateUser(ctx context.Context, user *model.User) error
}

type EventRepository interface {
	GetEventByID(ctx context.Context, id string) (*model.Event, error)
	CreateEvent(ctx context.Context, event *model.Event) error
	// SearchEvents returns one page sorted by date ascending plus the total
	// number of matches.
	SearchEvents(ctx context.Context, filter model.EventFilter) ([]model.Event, int, error)
	ListGenres(ctx context.Context) ([]string, error)
	// UpsertEvents inserts or updates by ProviderID and reports how many rows
	// were newly inserted. Events keep their existing ID on update.
	UpsertEvents(ctx context.Context, events []model.Event) (int, error)
	// EventIDsByProviderIDs maps each stored provider id to its event id.
	// Unknown provider ids are absent from the result.
	EventIDsByProviderIDs(ctx context.Context, providerIDs []string) (map[string]string, error)
	// UpcomingEventsByGenres returns events on or after from whose genre
	// contains any of genres, case-insensitively.
	UpcomingEventsByGenres(ctx context.Context, from time.Time, genres []string) ([]model.Event, error)
	// RandomUpcomingEvents returns up to limit random events on or after
	// from, skipping the given IDs.
	RandomUpcomingEvents(ctx context.Context, from time.Time, limit int, excludeIDs []string) ([]model.Event, error)
}

type BookmarkRepository interface {
	// ListBookmarks joins bookmarks to their events, sorted by event date.
	ListBookmarks(ctx context.Context, userID string) ([]model.Bookmark, error)
	// DeleteBookmarksBefore removes the user's bookmarks whose event date is
	// strictly before cutoff.
	DeleteBookmarksBefore(ctx context.Context, userID string, cutoff time.Time) (int, error)
	// UpsertBookmark creates the (user, event) pair or returns the existing one.
	UpsertBookmark(ctx context.Context, bookmark *model.Bookmark) error
	DeleteBookmark(ctx context.Context, userID, eventID string) error
}

type PostRepository interface {
	CreatePost(ctx context.Context, post *model.Post) error
	GetPost(ctx context.Context, id string) (*model.Post, error)
	// ListPostStats returns every post with its vote tally in insertion order.
	ListPostStats(ctx context.Context) ([]model.PostStats, error)
	CountVotes(ctx context.Context, postID string) (likes, dislikes int, err error)
}

type VoteRepository interface {
	GetVote(ctx context.Context, postID string, voter model.Voter) (*model.Vote, error)
	// UpsertVote records vote, replacing the kind of an existing
	// (voter, post) row instead of adding a second one.
	UpsertVote(ctx context.Context, vote *model.Vote) error
}
