package repository

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/cwmonitor/fraud-monitor-bot/internal/modules/message/domain"
	sharederrors "github.com/cwmonitor/fraud-monitor-bot/internal/shared/errors"
	"github.com/samber/oops"

	_ "modernc.org/sqlite"
)

const (
	readyMaxAttempts  = 30
	readyInitialDelay = time.Second
	readyMaxDelay     = 30 * time.Second
)

const schema = `
CREATE TABLE IF NOT EXISTS messages (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	source_key TEXT NOT NULL,
	user_key TEXT NOT NULL,
	content TEXT NOT NULL,
	content_fingerprint TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	UNIQUE (source_key, content_fingerprint)
);
CREATE INDEX IF NOT EXISTS idx_messages_source_key ON messages(source_key);
CREATE INDEX IF NOT EXISTS idx_messages_created_at ON messages(created_at);
`

// SQLiteStorage implements Repository on a local SQLite database. The
// dedup invariant lives in the schema's UNIQUE constraint, not in a
// read-before-write.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage opens (creating if needed) the database at dbPath and
// ensures the messages schema exists.
func NewSQLiteStorage(dbPath string) (Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, oops.With("db_path", dbPath, "context", "failed to create database directory").Wrap(err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, oops.With("db_path", dbPath, "context", "failed to open database").Wrap(err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, oops.With("db_path", dbPath, "context", "failed to create messages schema").Wrap(err)
	}

	return &SQLiteStorage{db: db}, nil
}

// WaitReady pings the database with capped exponential backoff until it
// answers, the context is cancelled, or the attempt budget runs out.
func (s *SQLiteStorage) WaitReady(ctx context.Context) error {
	delay := readyInitialDelay
	var lastErr error
	for attempt := 1; attempt <= readyMaxAttempts; attempt++ {
		if err := s.db.PingContext(ctx); err == nil {
			if attempt > 1 {
				slog.Info("database connection successful", "attempts", attempt)
			}
			return nil
		} else {
			lastErr = err
		}

		slog.Warn("database not ready", "attempt", attempt, "max_attempts", readyMaxAttempts, "retry_in", delay.String())
		select {
		case <-ctx.Done():
			return oops.With("context", "database readiness wait cancelled").Wrap(ctx.Err())
		case <-time.After(delay):
		}
		delay *= 2
		if delay > readyMaxDelay {
			delay = readyMaxDelay
		}
	}
	return oops.With("attempts", readyMaxAttempts, "cause", lastErr.Error()).Wrap(sharederrors.ErrStorageUnavailable)
}

// Insert stores msg unless a row with the same (source_key,
// content_fingerprint) already exists. The conflict path reports
// inserted == false; it is the idempotent duplicate, not an error.
func (s *SQLiteStorage) Insert(ctx context.Context, msg *domain.Message) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (source_key, user_key, content, content_fingerprint, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (source_key, content_fingerprint) DO NOTHING
	`, msg.SourceKey, msg.UserKey, msg.Content, msg.ContentFingerprint, msg.CreatedAt.UTC().Unix())
	if err != nil {
		return false, oops.With("source_key", msg.SourceKey, "cause", err.Error()).Wrap(sharederrors.ErrStorageUnavailable)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, oops.With("source_key", msg.SourceKey, "cause", err.Error()).Wrap(sharederrors.ErrStorageUnavailable)
	}
	if affected == 0 {
		return false, nil
	}

	if id, err := res.LastInsertId(); err == nil {
		msg.ID = id
	}
	return true, nil
}

// Recent returns up to limit messages, newest first.
func (s *SQLiteStorage) Recent(ctx context.Context, limit int) ([]*domain.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, source_key, user_key, content, content_fingerprint, created_at
		FROM messages
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, oops.With("limit", limit, "cause", err.Error()).Wrap(sharederrors.ErrStorageUnavailable)
	}
	defer rows.Close()

	var messages []*domain.Message
	for rows.Next() {
		var m domain.Message
		var createdAt int64
		if err := rows.Scan(&m.ID, &m.SourceKey, &m.UserKey, &m.Content, &m.ContentFingerprint, &createdAt); err != nil {
			return nil, oops.With("context", "failed to scan message row").Wrap(err)
		}
		m.CreatedAt = time.Unix(createdAt, 0).UTC()
		messages = append(messages, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.With("context", "failed to iterate message rows").Wrap(err)
	}
	return messages, nil
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
