package sqlite

import (
	"context"
	"fmt"

	"github.com/rs/xid"

	"github.com/sakif/soundscape/internal/model"
)

func (db *DB) GetVote(ctx context.Context, postID string, voter model.Voter) (*model.Vote, error) {
	var (
		v         model.Vote
		voterKind string
		kind      string
	)
	err := db.conn.QueryRowContext(ctx,
		`SELECT id, post_id, voter_kind, voter_id, kind, created_at, updated_at
		 FROM votes WHERE post_id = ? AND voter_kind = ? AND voter_id = ?`,
		postID, string(voter.Kind), voter.ID,
	).Scan(&v.ID, &v.PostID, &voterKind, &v.Voter.ID, &kind, &v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		return nil, notFoundOr(err, "vote", voter.String(), "getting vote")
	}
	v.Voter.Kind = model.VoterKind(voterKind)
	v.Kind = model.VoteKind(kind)
	return &v, nil
}

// UpsertVote relies on UNIQUE(voter_kind, voter_id, post_id): two racing
// first votes from the same voter merge into one row.
func (db *DB) UpsertVote(ctx context.Context, vote *model.Vote) error {
	now := dbTime(db.now())
	if vote.ID == "" {
		vote.ID = xid.New().String()
	}

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO votes (id, post_id, voter_kind, voter_id, kind, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(voter_kind, voter_id, post_id) DO UPDATE SET
		     kind = excluded.kind,
		     updated_at = excluded.updated_at`,
		vote.ID, vote.PostID, string(vote.Voter.Kind), vote.Voter.ID, string(vote.Kind), now, now,
	)
	if err != nil {
		return fmt.Errorf("sqlite: upserting vote %s on %s: %w", vote.Voter, vote.PostID, err)
	}

	stored, err := db.GetVote(ctx, vote.PostID, vote.Voter)
	if err != nil {
		return err
	}
	*vote = *stored
	return nil
}
