package sqlite

import (
	"context"
	"fmt"

	"github.com/rs/xid"

	"github.com/sakif/soundscape/internal/model"
)

const postColumns = `p.id, p.event_title, p.artist_name, p.genre, p.date, p.time,
	p.venue, p.address, p.city, p.state, p.zip_code, p.created_at`

func (db *DB) CreatePost(ctx context.Context, post *model.Post) error {
	post.ID = xid.New().String()
	post.CreatedAt = dbTime(db.now())

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO posts (id, event_title, artist_name, genre, date, time,
		                    venue, address, city, state, zip_code, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		post.ID, post.EventTitle, post.ArtistName, post.Genre, post.Date, post.Time,
		post.Venue, post.Address, post.City, post.State, post.ZipCode, post.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: inserting post: %w", err)
	}
	return nil
}

func (db *DB) GetPost(ctx context.Context, id string) (*model.Post, error) {
	var p model.Post
	err := db.conn.QueryRowContext(ctx,
		`SELECT `+postColumns+` FROM posts p WHERE p.id = ?`, id,
	).Scan(postDest(&p)...)
	if err != nil {
		return nil, notFoundOr(err, "post", id, "getting post")
	}
	return &p, nil
}

// ListPostStats aggregates votes in SQL. rowid gives insertion order, which
// callers rely on to break ratio ties stably.
func (db *DB) ListPostStats(ctx context.Context) ([]model.PostStats, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+postColumns+`,
		        COALESCE(SUM(CASE WHEN v.kind = 'like' THEN 1 ELSE 0 END), 0),
		        COALESCE(SUM(CASE WHEN v.kind = 'dislike' THEN 1 ELSE 0 END), 0)
		 FROM posts p
		 LEFT JOIN votes v ON v.post_id = p.id
		 GROUP BY p.id
		 ORDER BY p.rowid ASC`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing posts: %w", err)
	}
	defer rows.Close()

	stats := []model.PostStats{}
	for rows.Next() {
		var (
			p               model.Post
			likes, dislikes int
		)
		dest := append(postDest(&p), &likes, &dislikes)
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("sqlite: scanning post: %w", err)
		}
		stats = append(stats, model.NewPostStats(p, likes, dislikes))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating posts: %w", err)
	}
	return stats, nil
}

func (db *DB) CountVotes(ctx context.Context, postID string) (int, int, error) {
	var likes, dislikes int
	err := db.conn.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(CASE WHEN kind = 'like' THEN 1 ELSE 0 END), 0),
		        COALESCE(SUM(CASE WHEN kind = 'dislike' THEN 1 ELSE 0 END), 0)
		 FROM votes WHERE post_id = ?`, postID,
	).Scan(&likes, &dislikes)
	if err != nil {
		return 0, 0, fmt.Errorf("sqlite: counting votes for %s: %w", postID, err)
	}
	return likes, dislikes, nil
}

func postDest(p *model.Post) []any {
	return []any{&p.ID, &p.EventTitle, &p.ArtistName, &p.Genre, &p.Date, &p.Time,
		&p.Venue, &p.Address, &p.City, &p.State, &p.ZipCode, &p.CreatedAt}
}
