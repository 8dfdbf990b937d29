// Package sqlite implements the repository interfaces on SQLite using the
// pure-Go modernc.org/sqlite driver (no CGo, cross-compiles cleanly).
//
// The schema is managed by goose. Migrations are embedded SQL files under
// migrations/ and run on every New; goose records applied versions in its
// own table so reruns are no-ops.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/pressly/goose/v3"
	msqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/sakif/soundscape/internal/apperror"
	"github.com/sakif/soundscape/internal/repository"
	"github.com/sakif/soundscape/internal/repository/sqlite/migrations"
)

// DB wraps a sql.DB connection pool and implements every repository
// interface.
type DB struct {
	conn *sql.DB
	now  func() time.Time
}

// compile-time checks that *DB implements every repository interface
var (
	_ repository.UserRepository     = (*DB)(nil)
	_ repository.EventRepository    = (*DB)(nil)
	_ repository.BookmarkRepository = (*DB)(nil)
	_ repository.PostRepository     = (*DB)(nil)
	_ repository.VoteRepository     = (*DB)(nil)
)

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// New opens the database at dsn and runs migrations.
//
// dsn examples:
//   - "data/soundscape.db"                        file-based database
//   - "file:test?mode=memory&cache=shared"        in-memory, shared by the pool
//
// The pool is limited to one connection. SQLite serialises writers anyway,
// and PRAGMAs such as foreign_keys are per connection, so a single
// connection keeps them in force for every query.
func New(dsn string, logger *slog.Logger) (*DB, error) {
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// WAL lets readers proceed while a write is in progress. In-memory
	// databases answer "memory" and carry on.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}

	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: enabling foreign keys: %w", err)
	}

	if _, err := conn.Exec("PRAGMA busy_timeout=5000"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting busy timeout: %w", err)
	}

	if err := migrate(context.Background(), conn, logger); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return &DB{conn: conn, now: time.Now}, nil
}

// Close closes the database connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping reports whether the database is reachable.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

func migrate(ctx context.Context, conn *sql.DB, logger *slog.Logger) error {
	goose.SetBaseFS(migrations.Migrations)
	goose.SetLogger(gooseLogger{logger: logger})
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("setting goose dialect: %w", err)
	}
	return gooseUpContext(ctx, conn, ".")
}

// gooseLogger routes goose's printf-style output into slog at debug level.
type gooseLogger struct {
	logger *slog.Logger
}

func (l gooseLogger) Printf(format string, v ...interface{}) {
	if l.logger != nil {
		l.logger.Debug(fmt.Sprintf(format, v...), slog.String("component", "goose"))
	}
}

func (l gooseLogger) Fatalf(format string, v ...interface{}) {
	if l.logger != nil {
		l.logger.Error(fmt.Sprintf(format, v...), slog.String("component", "goose"))
	}
	os.Exit(1)
}

// isUniqueViolation reports whether err is a UNIQUE or PRIMARY KEY
// constraint failure.
func isUniqueViolation(err error) bool {
	var se *msqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return true
	case sqlite3.SQLITE_CONSTRAINT:
		// primary code only, when extended codes are off
		return strings.Contains(se.Error(), "UNIQUE constraint failed")
	}
	return false
}

// notFoundOr maps sql.ErrNoRows to an apperror NotFound and wraps anything
// else with context.
func notFoundOr(err error, resource, id, op string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return apperror.NotFound(resource, id)
	}
	return fmt.Errorf("sqlite: %s: %w", op, err)
}

// dbTime normalises times before they are written so stored values share one
// textual layout and compare correctly as strings.
func dbTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Second)
}
