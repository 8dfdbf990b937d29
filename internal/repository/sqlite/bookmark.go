package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/soundscape/internal/apperror"
	"github.com/sakif/soundscape/internal/model"
)

// ListBookmarks returns the user's bookmarks with their events attached,
// sorted by event date ascending.
func (db *DB) ListBookmarks(ctx context.Context, userID string) ([]model.Bookmark, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT b.id, b.user_id, b.event_id, b.created_at,
		        e.id, e.provider_id, e.artist, e.venue, e.city, e.date, e.genre, e.created_at, e.updated_at
		 FROM bookmarks b
		 JOIN events e ON e.id = b.event_id
		 WHERE b.user_id = ?
		 ORDER BY e.date ASC, b.created_at ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing bookmarks for %s: %w", userID, err)
	}
	defer rows.Close()

	bookmarks := []model.Bookmark{}
	for rows.Next() {
		var (
			b model.Bookmark
			e model.Event
		)
		if err := rows.Scan(
			&b.ID, &b.UserID, &b.EventID, &b.CreatedAt,
			&e.ID, &e.ProviderID, &e.Artist, &e.Venue, &e.City, &e.Date, &e.Genre, &e.CreatedAt, &e.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("sqlite: scanning bookmark: %w", err)
		}
		b.Event = &e
		bookmarks = append(bookmarks, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating bookmarks: %w", err)
	}
	return bookmarks, nil
}

func (db *DB) DeleteBookmarksBefore(ctx context.Context, userID string, cutoff time.Time) (int, error) {
	res, err := db.conn.ExecContext(ctx,
		`DELETE FROM bookmarks
		 WHERE user_id = ?
		   AND event_id IN (SELECT id FROM events WHERE date < ?)`,
		userID, dbTime(cutoff))
	if err != nil {
		return 0, fmt.Errorf("sqlite: deleting past bookmarks for %s: %w", userID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	return int(n), nil
}

// UpsertBookmark is idempotent: when the pair already exists the stored row
// is loaded into bookmark instead of inserting a second one.
func (db *DB) UpsertBookmark(ctx context.Context, bookmark *model.Bookmark) error {
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO bookmarks (id, user_id, event_id, created_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(user_id, event_id) DO NOTHING`,
		xid.New().String(), bookmark.UserID, bookmark.EventID, dbTime(db.now()),
	)
	if err != nil {
		return fmt.Errorf("sqlite: upserting bookmark (%s, %s): %w", bookmark.UserID, bookmark.EventID, err)
	}

	err = db.conn.QueryRowContext(ctx,
		`SELECT id, created_at FROM bookmarks WHERE user_id = ? AND event_id = ?`,
		bookmark.UserID, bookmark.EventID,
	).Scan(&bookmark.ID, &bookmark.CreatedAt)
	if err != nil {
		return notFoundOr(err, "bookmark", bookmark.EventID, "reading bookmark")
	}
	return nil
}

// DeleteBookmark succeeds whether or not the bookmark existed.
func (db *DB) DeleteBookmark(ctx context.Context, userID, eventID string) error {
	if userID == "" {
		return apperror.ValidationFailed("userId", "user id is required")
	}
	_, err := db.conn.ExecContext(ctx,
		`DELETE FROM bookmarks WHERE user_id = ? AND event_id = ?`, userID, eventID)
	if err != nil {
		return fmt.Errorf("sqlite: deleting bookmark (%s, %s): %w", userID, eventID, err)
	}
	return nil
}
