// Package store persists session snapshots. Adapters are best-effort: Load
// falls back to an empty snapshot and Save only logs failures.
package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"

	"ConsultChat/internal/config"
	"ConsultChat/internal/session"
)

// Store is the durable snapshot adapter used by the controller
type Store interface {
	Load() session.Snapshot
	Save(snap session.Snapshot)
}

// CheckedStore is implemented by adapters that can report whether a save
// reached storage. Their Save logs the same error and swallows it.
type CheckedStore interface {
	Store
	TrySave(snap session.Snapshot) error
}

// Encode serializes a snapshot as {"messages": [...], "durations": {...}}.
func Encode(snap session.Snapshot) ([]byte, error) {
	if snap.Messages == nil {
		snap.Messages = []session.Message{}
	}
	if snap.Durations == nil {
		snap.Durations = map[string]int64{}
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	return data, nil
}

// Decode parses a stored record. Blank input and missing fields yield empty
// collections; malformed JSON is an error.
func Decode(data []byte) (session.Snapshot, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return session.EmptySnapshot(), nil
	}
	var snap session.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return session.EmptySnapshot(), fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	if snap.Messages == nil {
		snap.Messages = []session.Message{}
	}
	if snap.Durations == nil {
		snap.Durations = map[string]int64{}
	}
	return snap, nil
}

// Open builds the store selected by the configuration
func Open(cfg config.Config, logger *slog.Logger) (Store, func() error, error) {
	switch cfg.StoreKind {
	case config.StoreSQLite:
		s, err := NewSQLiteStore(cfg.StorePath, cfg.StorageKey, logger)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	case config.StoreFile:
		return NewFileStore(cfg.StorePath, logger), func() error { return nil }, nil
	case config.StoreMemory:
		return NewMemoryStore(logger), func() error { return nil }, nil
	default:
		return nil, nil, fmt.Errorf("unknown store: %s", cfg.StoreKind)
	}
}

func loggerOrDefault(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.Default()
	}
	return logger
}
