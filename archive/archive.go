// Package archive stores classified management notifications in SQLite so
// earlier captures can be reviewed with --history.
package archive

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/yllada/ovpn-mgmt/common"
	"github.com/yllada/ovpn-mgmt/mgmt"
)

// Errors returned by the archive, re-exported from common for convenience.
var (
	ErrArchive         = common.ErrArchive
	ErrSessionNotFound = common.ErrSessionNotFound
)

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id         TEXT PRIMARY KEY,
	source     TEXT NOT NULL,
	started_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS notifications (
	session_id  TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
	line_no     INTEGER NOT NULL,
	type        TEXT NOT NULL,
	message     TEXT NOT NULL,
	recorded_at INTEGER NOT NULL,
	PRIMARY KEY (session_id, line_no)
);
CREATE INDEX IF NOT EXISTS notifications_type ON notifications(type);
`

// Session is one capture: a single run over one input source.
type Session struct {
	ID        string
	Source    string
	StartedAt time.Time
	// Count is the number of notifications recorded, filled by Sessions.
	Count int
}

// Entry is a notification recorded in a session.
type Entry struct {
	LineNo       int
	Notification mgmt.Notification
	RecordedAt   time.Time
}

// Store is an open archive database.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens or creates the archive at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("%w: create archive directory: %w", ErrArchive, err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", ErrArchive, path, err)
	}
	// SQLite allows one writer; a single connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: enable foreign keys: %w", ErrArchive, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: create schema: %w", ErrArchive, err)
	}

	common.LogDebug("Archive: opened %s", path)
	return &Store{db: db, now: time.Now}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// BeginSession registers a new capture of source.
func (s *Store) BeginSession(ctx context.Context, source string) (Session, error) {
	session := Session{
		ID:        uuid.NewString(),
		Source:    source,
		StartedAt: s.now(),
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO sessions (id, source, started_at) VALUES (?, ?, ?)",
		session.ID, session.Source, session.StartedAt.UnixNano())
	if err != nil {
		return Session{}, fmt.Errorf("%w: begin session: %w", ErrArchive, err)
	}
	return session, nil
}

// Record stores notification n seen on line lineNo of the session's input.
func (s *Store) Record(ctx context.Context, sessionID string, lineNo int, n mgmt.Notification) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO notifications (session_id, line_no, type, message, recorded_at) VALUES (?, ?, ?, ?, ?)",
		sessionID, lineNo, n.Type, n.Message, s.now().UnixNano())
	if err != nil {
		return fmt.Errorf("%w: record line %d: %w", ErrArchive, lineNo, err)
	}
	return nil
}

// Sessions lists every session, newest first, with its notification count.
func (s *Store) Sessions(ctx context.Context) ([]Session, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT s.id, s.source, s.started_at, COUNT(n.line_no)
		FROM sessions s LEFT JOIN notifications n ON n.session_id = s.id
		GROUP BY s.id
		ORDER BY s.started_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("%w: list sessions: %w", ErrArchive, err)
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		var sess Session
		var started int64
		if err := rows.Scan(&sess.ID, &sess.Source, &started, &sess.Count); err != nil {
			return nil, fmt.Errorf("%w: scan session: %w", ErrArchive, err)
		}
		sess.StartedAt = time.Unix(0, started)
		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list sessions: %w", ErrArchive, err)
	}
	return sessions, nil
}

// FindSession resolves a full session ID or a unique prefix of one.
// The prefix is compared literally; LIKE wildcards have no meaning.
func (s *Store) FindSession(ctx context.Context, idOrPrefix string) (Session, error) {
	if idOrPrefix == "" {
		return Session{}, fmt.Errorf("%w: empty session ID", ErrSessionNotFound)
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, source, started_at FROM sessions WHERE substr(id, 1, length(?1)) = ?1 LIMIT 2", idOrPrefix)
	if err != nil {
		return Session{}, fmt.Errorf("%w: find session: %w", ErrArchive, err)
	}
	defer rows.Close()

	var matches []Session
	for rows.Next() {
		var sess Session
		var started int64
		if err := rows.Scan(&sess.ID, &sess.Source, &started); err != nil {
			return Session{}, fmt.Errorf("%w: scan session: %w", ErrArchive, err)
		}
		sess.StartedAt = time.Unix(0, started)
		matches = append(matches, sess)
	}
	if err := rows.Err(); err != nil {
		return Session{}, fmt.Errorf("%w: find session: %w", ErrArchive, err)
	}

	switch len(matches) {
	case 0:
		return Session{}, fmt.Errorf("%w: %s", ErrSessionNotFound, idOrPrefix)
	case 1:
		return matches[0], nil
	default:
		return Session{}, fmt.Errorf("%w: %s is ambiguous", ErrSessionNotFound, idOrPrefix)
	}
}

// Notifications returns the entries of a session in line order.
func (s *Store) Notifications(ctx context.Context, sessionID string) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT line_no, type, message, recorded_at FROM notifications WHERE session_id = ? ORDER BY line_no",
		sessionID)
	if err != nil {
		return nil, fmt.Errorf("%w: list notifications: %w", ErrArchive, err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var recorded int64
		if err := rows.Scan(&e.LineNo, &e.Notification.Type, &e.Notification.Message, &recorded); err != nil {
			return nil, fmt.Errorf("%w: scan notification: %w", ErrArchive, err)
		}
		e.RecordedAt = time.Unix(0, recorded)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list notifications: %w", ErrArchive, err)
	}
	return entries, nil
}

// DeleteSession removes a session and its notifications.
func (s *Store) DeleteSession(ctx context.Context, sessionID string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM sessions WHERE id = ?", sessionID)
	if err != nil {
		return fmt.Errorf("%w: delete session: %w", ErrArchive, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: delete session: %w", ErrArchive, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	return nil
}

// IsNotFound reports whether err means a session does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrSessionNotFound)
}
