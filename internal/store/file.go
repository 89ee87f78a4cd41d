package store

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"ConsultChat/internal/session"
)

// FileStore keeps the snapshot in a single JSON file.
type FileStore struct {
	path   string
	logger *slog.Logger
}

func NewFileStore(path string, logger *slog.Logger) *FileStore {
	return &FileStore{path: path, logger: loggerOrDefault(logger)}
}

func (s *FileStore) Load() session.Snapshot {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.logger.Error("failed to read snapshot file", "path", s.path, "error", err)
		}
		return session.EmptySnapshot()
	}
	snap, err := Decode(data)
	if err != nil {
		s.logger.Error("failed to parse snapshot file", "path", s.path, "error", err)
		return session.EmptySnapshot()
	}
	return snap
}

func (s *FileStore) Save(snap session.Snapshot) {
	if err := s.TrySave(snap); err != nil {
		s.logger.Error("failed to save snapshot file", "path", s.path, "error", err)
	}
}

// TrySave replaces the file atomically so a crash never leaves half a record.
func (s *FileStore) TrySave(snap session.Snapshot) error {
	data, err := Encode(snap)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".snapshot-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), s.path)
}
