package store

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"ConsultChat/internal/session"
)

// SQLiteStore keeps each snapshot as a single named row.
type SQLiteStore struct {
	db     *sql.DB
	key    string
	logger *slog.Logger
}

// NewSQLiteStore opens (or creates) the database at path.
func NewSQLiteStore(path, key string, logger *slog.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	createSnapshotsTable := `
	CREATE TABLE IF NOT EXISTS snapshots (
		key TEXT PRIMARY KEY,
		data TEXT NOT NULL,
		updated_at DATETIME
	);`

	if _, err := db.Exec(createSnapshotsTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create snapshots table: %w", err)
	}

	return &SQLiteStore{db: db, key: key, logger: loggerOrDefault(logger)}, nil
}

// Load reads the snapshot row; a missing or unreadable row yields an empty snapshot.
func (s *SQLiteStore) Load() session.Snapshot {
	var data string
	err := s.db.QueryRow("SELECT data FROM snapshots WHERE key = ?", s.key).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return session.EmptySnapshot()
	}
	if err != nil {
		s.logger.Error("failed to load snapshot", "key", s.key, "error", err)
		return session.EmptySnapshot()
	}

	snap, err := Decode([]byte(data))
	if err != nil {
		s.logger.Error("failed to parse stored snapshot", "key", s.key, "error", err)
		return session.EmptySnapshot()
	}
	s.logger.Info("snapshot loaded", "key", s.key, "message_count", len(snap.Messages))
	return snap
}

// Save upserts the snapshot row. Failures are logged and swallowed.
func (s *SQLiteStore) Save(snap session.Snapshot) {
	if err := s.TrySave(snap); err != nil {
		s.logger.Error("failed to save snapshot", "key", s.key, "error", err)
	}
}

// TrySave upserts the snapshot row and reports the failure.
func (s *SQLiteStore) TrySave(snap session.Snapshot) error {
	data, err := Encode(snap)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	_, err = s.db.Exec(
		"INSERT OR REPLACE INTO snapshots (key, data, updated_at) VALUES (?, ?, ?)",
		s.key, string(data), time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert snapshot: %w", err)
	}
	s.logger.Debug("snapshot saved", "key", s.key, "message_count", len(snap.Messages))
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
