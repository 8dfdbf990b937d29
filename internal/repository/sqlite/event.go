package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/soundscape/internal/apperror"
	"github.com/sakif/soundscape/internal/model"
)

const eventColumns = `id, provider_id, artist, venue, city, date, genre, created_at, updated_at`

// CreateEvent inserts a single event. Events created outside a provider sync
// get a synthetic "local:" provider id so the uniqueness invariant holds.
func (db *DB) CreateEvent(ctx context.Context, event *model.Event) error {
	now := dbTime(db.now())
	if event.ID == "" {
		event.ID = xid.New().String()
	}
	if event.ProviderID == "" {
		event.ProviderID = "local:" + event.ID
	}
	if event.Genre == "" {
		event.Genre = "Other"
	}
	event.Date = dbTime(event.Date)
	event.CreatedAt = now
	event.UpdatedAt = now

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO events (`+eventColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		event.ID, event.ProviderID, event.Artist, event.Venue, event.City,
		event.Date, event.Genre, event.CreatedAt, event.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("event", event.ProviderID)
		}
		return fmt.Errorf("sqlite: inserting event %s: %w", event.ProviderID, err)
	}
	return nil
}

func (db *DB) GetEventByID(ctx context.Context, id string) (*model.Event, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+eventColumns+` FROM events WHERE id = ?`, id)

	var e model.Event
	if err := scanEvent(row, &e); err != nil {
		return nil, notFoundOr(err, "event", id, "getting event")
	}
	return &e, nil
}

// SearchEvents matches filter.Query as a case-insensitive substring of artist
// or venue and filter.Genres as an exact set. Results are sorted by date.
func (db *DB) SearchEvents(ctx context.Context, filter model.EventFilter) ([]model.Event, int, error) {
	var (
		where []string
		args  []any
	)

	if q := strings.TrimSpace(filter.Query); q != "" {
		pattern := "%" + escapeLike(strings.ToLower(q)) + "%"
		where = append(where, `(LOWER(artist) LIKE ? ESCAPE '\' OR LOWER(venue) LIKE ? ESCAPE '\')`)
		args = append(args, pattern, pattern)
	}
	if len(filter.Genres) > 0 {
		where = append(where, `genre IN (`+placeholders(len(filter.Genres))+`)`)
		for _, g := range filter.Genres {
			args = append(args, g)
		}
	}

	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM events`+clause, args...,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("sqlite: counting events: %w", err)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}
	pageArgs := append(append([]any{}, args...), limit, max(filter.Offset, 0))

	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+eventColumns+` FROM events`+clause+
			` ORDER BY date ASC, id ASC LIMIT ? OFFSET ?`, pageArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("sqlite: searching events: %w", err)
	}
	events, err := collectEvents(rows)
	if err != nil {
		return nil, 0, err
	}
	return events, total, nil
}

// ListGenres returns distinct non-empty genres in byte order.
func (db *DB) ListGenres(ctx context.Context) ([]string, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT DISTINCT genre FROM events WHERE TRIM(genre) <> '' ORDER BY genre`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing genres: %w", err)
	}
	defer rows.Close()

	genres := []string{}
	for rows.Next() {
		var g string
		if err := rows.Scan(&g); err != nil {
			return nil, fmt.Errorf("sqlite: scanning genre: %w", err)
		}
		genres = append(genres, g)
	}
	return genres, rows.Err()
}

// UpsertEvents inserts or updates each event keyed by ProviderID inside one
// transaction. On return every element's ID holds the stored row's ID.
func (db *DB) UpsertEvents(ctx context.Context, events []model.Event) (int, error) {
	if len(events) == 0 {
		return 0, nil
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("sqlite: beginning upsert: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	now := dbTime(db.now())
	inserted := 0
	for i := range events {
		e := &events[i]
		if e.ProviderID == "" {
			return 0, fmt.Errorf("sqlite: upserting event %q: provider id is required", e.Artist)
		}

		var existingID string
		err := tx.QueryRowContext(ctx,
			`SELECT id FROM events WHERE provider_id = ?`, e.ProviderID,
		).Scan(&existingID)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			if e.ID == "" {
				e.ID = xid.New().String()
			}
			e.CreatedAt = now
			inserted++
		case err != nil:
			return 0, fmt.Errorf("sqlite: looking up event %s: %w", e.ProviderID, err)
		default:
			e.ID = existingID
		}
		if e.Genre == "" {
			e.Genre = "Other"
		}
		e.Date = dbTime(e.Date)
		e.UpdatedAt = now

		// ON CONFLICT covers a concurrent insert between the lookup and here.
		_, err = tx.ExecContext(ctx,
			`INSERT INTO events (`+eventColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT(provider_id) DO UPDATE SET
			     artist = excluded.artist,
			     venue = excluded.venue,
			     city = excluded.city,
			     date = excluded.date,
			     genre = excluded.genre,
			     updated_at = excluded.updated_at`,
			e.ID, e.ProviderID, e.Artist, e.Venue, e.City, e.Date, e.Genre, now, e.UpdatedAt,
		)
		if err != nil {
			return 0, fmt.Errorf("sqlite: upserting event %s: %w", e.ProviderID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("sqlite: committing upsert: %w", err)
	}
	return inserted, nil
}

func (db *DB) EventIDsByProviderIDs(ctx context.Context, providerIDs []string) (map[string]string, error) {
	ids := make(map[string]string, len(providerIDs))
	if len(providerIDs) == 0 {
		return ids, nil
	}

	args := make([]any, len(providerIDs))
	for i, pid := range providerIDs {
		args[i] = pid
	}
	rows, err := db.conn.QueryContext(ctx,
		`SELECT provider_id, id FROM events WHERE provider_id IN (`+placeholders(len(providerIDs))+`)`,
		args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: looking up event ids: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var pid, id string
		if err := rows.Scan(&pid, &id); err != nil {
			return nil, fmt.Errorf("sqlite: scanning event id: %w", err)
		}
		ids[pid] = id
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating event ids: %w", err)
	}
	return ids, nil
}

func (db *DB) UpcomingEventsByGenres(ctx context.Context, from time.Time, genres []string) ([]model.Event, error) {
	var (
		likes []string
		args  = []any{dbTime(from)}
	)
	for _, g := range genres {
		g = strings.TrimSpace(g)
		if g == "" {
			continue
		}
		likes = append(likes, `LOWER(genre) LIKE ? ESCAPE '\'`)
		args = append(args, "%"+escapeLike(strings.ToLower(g))+"%")
	}
	if len(likes) == 0 {
		return []model.Event{}, nil
	}

	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+eventColumns+` FROM events
		 WHERE date >= ? AND (`+strings.Join(likes, " OR ")+`)
		 ORDER BY date ASC`, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing upcoming events by genre: %w", err)
	}
	return collectEvents(rows)
}

func (db *DB) RandomUpcomingEvents(ctx context.Context, from time.Time, limit int, excludeIDs []string) ([]model.Event, error) {
	if limit <= 0 {
		return []model.Event{}, nil
	}

	query := `SELECT ` + eventColumns + ` FROM events WHERE date >= ?`
	args := []any{dbTime(from)}
	if len(excludeIDs) > 0 {
		query += ` AND id NOT IN (` + placeholders(len(excludeIDs)) + `)`
		for _, id := range excludeIDs {
			args = append(args, id)
		}
	}
	query += ` ORDER BY RANDOM() LIMIT ?`
	args = append(args, limit)

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: sampling upcoming events: %w", err)
	}
	return collectEvents(rows)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEvent(s scanner, e *model.Event) error {
	return s.Scan(&e.ID, &e.ProviderID, &e.Artist, &e.Venue, &e.City,
		&e.Date, &e.Genre, &e.CreatedAt, &e.UpdatedAt)
}

// collectEvents drains and closes rows. The result is never nil.
func collectEvents(rows *sql.Rows) ([]model.Event, error) {
	defer rows.Close()

	events := []model.Event{}
	for rows.Next() {
		var e model.Event
		if err := scanEvent(rows, &e); err != nil {
			return nil, fmt.Errorf("sqlite: scanning event: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating events: %w", err)
	}
	return events, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike makes s match literally inside a LIKE pattern.
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
