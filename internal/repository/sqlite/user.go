package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/xid"

	"github.com/sakif/soundscape/internal/apperror"
	"github.com/sakif/soundscape/internal/model"
)

const userColumns = `id, name, email, password_hash, google_id, genres, email_verified,
	verification_token, reset_token, reset_token_expiry, created_at, updated_at`

// CreateUser inserts a new user, assigning ID and timestamps.
// Returns apperror.ErrConflict if the email (or Google id) is already taken.
func (db *DB) CreateUser(ctx context.Context, user *model.User) error {
	now := dbTime(db.now())
	user.ID = xid.New().String()
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	user.CreatedAt = now
	user.UpdatedAt = now

	genres, err := encodeGenres(user.Genres)
	if err != nil {
		return err
	}

	_, err = db.conn.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID,
		user.Name,
		user.Email,
		user.PasswordHash,
		nullString(user.GoogleID),
		genres,
		user.EmailVerified,
		nullString(user.VerificationToken),
		nullString(user.ResetToken),
		nullTime(user.ResetTokenExpiry),
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.ConflictMessage("User already exists")
		}
		return fmt.Errorf("sqlite: inserting user %s: %w", user.Email, err)
	}
	return nil
}

// UpdateUser writes every mutable field of user.
func (db *DB) UpdateUser(ctx context.Context, user *model.User) error {
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	user.UpdatedAt = dbTime(db.now())

	genres, err := encodeGenres(user.Genres)
	if err != nil {
		return err
	}

	res, err := db.conn.ExecContext(ctx,
		`UPDATE users SET name = ?, email = ?, password_hash = ?, google_id = ?, genres = ?,
		        email_verified = ?, verification_token = ?, reset_token = ?,
		        reset_token_expiry = ?, updated_at = ?
		 WHERE id = ?`,
		user.Name,
		user.Email,
		user.PasswordHash,
		nullString(user.GoogleID),
		genres,
		user.EmailVerified,
		nullString(user.VerificationToken),
		nullString(user.ResetToken),
		nullTime(user.ResetTokenExpiry),
		user.UpdatedAt,
		user.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.ConflictMessage("Email already in use")
		}
		return fmt.Errorf("sqlite: updating user %s: %w", user.ID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if n == 0 {
		return apperror.NotFound("user", user.ID)
	}
	return nil
}

// GetUserByID retrieves a user by internal ID.
func (db *DB) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	if err != nil {
		return nil, notFoundOr(err, "user", id, "getting user")
	}
	return u, nil
}

// GetUserByEmail matches case-insensitively.
func (db *DB) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = ? COLLATE NOCASE`, email)
	u, err := scanUser(row)
	if err != nil {
		return nil, notFoundOr(err, "user", email, "getting user by email")
	}
	return u, nil
}

func (db *DB) GetUserByVerificationToken(ctx context.Context, token string) (*model.User, error) {
	if token == "" {
		return nil, apperror.NotFound("user", "verification token")
	}
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE verification_token = ?`, token)
	u, err := scanUser(row)
	if err != nil {
		return nil, notFoundOr(err, "user", "verification token", "getting user by verification token")
	}
	return u, nil
}

func (db *DB) GetUserByResetToken(ctx context.Context, token string, now time.Time) (*model.User, error) {
	if token == "" {
		return nil, apperror.NotFound("user", "reset token")
	}
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users
		 WHERE reset_token = ? AND reset_token_expiry > ?`, token, dbTime(now))
	u, err := scanUser(row)
	if err != nil {
		return nil, notFoundOr(err, "user", "reset token", "getting user by reset token")
	}
	return u, nil
}

func scanUser(row *sql.Row) (*model.User, error) {
	var (
		u                                 model.User
		googleID, verifyToken, resetToken sql.NullString
		resetExpiry                       sql.NullTime
		genres                            string
	)
	err := row.Scan(
		&u.ID,
		&u.Name,
		&u.Email,
		&u.PasswordHash,
		&googleID,
		&genres,
		&u.EmailVerified,
		&verifyToken,
		&resetToken,
		&resetExpiry,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	u.GoogleID = googleID.String
	u.VerificationToken = verifyToken.String
	u.ResetToken = resetToken.String
	if resetExpiry.Valid {
		t := resetExpiry.Time
		u.ResetTokenExpiry = &t
	}
	if err := json.Unmarshal([]byte(genres), &u.Genres); err != nil {
		return nil, fmt.Errorf("decoding genres for user %s: %w", u.ID, err)
	}
	if u.Genres == nil {
		u.Genres = []string{}
	}
	return &u, nil
}

// encodeGenres stores the genre set as a JSON array in a TEXT column.
func encodeGenres(genres []string) (string, error) {
	if genres == nil {
		genres = []string{}
	}
	b, err := json.Marshal(genres)
	if err != nil {
		return "", fmt.Errorf("sqlite: encoding genres: %w", err)
	}
	return string(b), nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: dbTime(*t), Valid: true}
}
