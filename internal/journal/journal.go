// Package journal provides durable diagnostic storage for delivered
// markers.
//
// The journal is a sink-side convenience, not part of the timing core: it
// records which markers were sent and when, so an operator can cross-check
// the physiological record after a session. Trial outcomes are never
// stored - there are none to store.
package journal

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 1 - Initial schema (sessions + markers).
const currentSchemaVersion = 1

// Store is a SQLite-backed marker journal.
// Uses WAL mode for concurrent read access during a live session.
type Store struct {
	db *sql.DB
}

// Record is one journaled marker.
type Record struct {
	SessionToken string
	Seq          int64
	Label        string
	// Offset is detection time relative to session start.
	Offset time.Duration
	// WallTime is the wall-clock moment of delivery, for aligning the
	// journal with external recordings.
	WallTime time.Time
}

// Open creates or opens a journal database at the given path.
// Applies required pragmas and migrations automatically; idempotent.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to journal: %w", err)
	}

	// SQLite supports one writer at a time; a single connection avoids
	// SQLITE_BUSY during the session's append stream.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// BeginSession records a session row. Called once, before the first marker.
func (s *Store) BeginSession(ctx context.Context, token string, startedAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (token, started_at_unix_ms)
		VALUES (?, ?)
		ON CONFLICT(token) DO NOTHING
	`, token, startedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("begin session %s: %w", token, err)
	}
	return nil
}

// Append journals one delivered marker.
// The UNIQUE(session_token, seq) constraint with ON CONFLICT DO NOTHING
// makes duplicate appends idempotent.
func (s *Store) Append(ctx context.Context, rec Record) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO markers (session_token, seq, label, offset_ms, wall_unix_ms)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(session_token, seq) DO NOTHING
	`,
		rec.SessionToken,
		rec.Seq,
		rec.Label,
		rec.Offset.Milliseconds(),
		rec.WallTime.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("append marker %q (seq %d): %w", rec.Label, rec.Seq, err)
	}
	return nil
}

// Markers returns every journaled marker for a session in delivery order.
func (s *Store) Markers(ctx context.Context, sessionToken string) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT session_token, seq, label, offset_ms, wall_unix_ms
		FROM markers
		WHERE session_token = ?
		ORDER BY seq
	`, sessionToken)
	if err != nil {
		return nil, fmt.Errorf("read markers for %s: %w", sessionToken, err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var rec Record
		var offsetMs, wallMs int64
		if err := rows.Scan(&rec.SessionToken, &rec.Seq, &rec.Label, &offsetMs, &wallMs); err != nil {
			return nil, fmt.Errorf("scan marker: %w", err)
		}
		rec.Offset = time.Duration(offsetMs) * time.Millisecond
		rec.WallTime = time.UnixMilli(wallMs)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read markers for %s: %w", sessionToken, err)
	}
	return out, nil
}

// Sessions returns journaled session tokens, newest first.
func (s *Store) Sessions(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT token FROM sessions ORDER BY started_at_unix_ms DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("read sessions: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var token string
		if err := rows.Scan(&token); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		out = append(out, token)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read sessions: %w", err)
	}
	return out, nil
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

// applySchema creates tables if they don't exist. Idempotent.
func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}
	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}
