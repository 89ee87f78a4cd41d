package store

import (
	"log/slog"
	"sync"

	"ConsultChat/internal/session"
)

// MemoryStore holds the encoded record in memory. Saves still go through the
// codec so the round trip matches the durable stores.
type MemoryStore struct {
	mu     sync.Mutex
	data   []byte
	saves  int
	logger *slog.Logger
}

func NewMemoryStore(logger *slog.Logger) *MemoryStore {
	return &MemoryStore{logger: loggerOrDefault(logger)}
}

// NewMemoryStoreWithData seeds the store with a raw record, valid or not.
func NewMemoryStoreWithData(data []byte, logger *slog.Logger) *MemoryStore {
	s := NewMemoryStore(logger)
	s.data = append([]byte(nil), data...)
	return s
}

func (s *MemoryStore) Load() session.Snapshot {
	s.mu.Lock()
	data := s.data
	s.mu.Unlock()

	snap, err := Decode(data)
	if err != nil {
		s.logger.Error("failed to parse stored snapshot", "error", err)
		return session.EmptySnapshot()
	}
	return snap
}

func (s *MemoryStore) Save(snap session.Snapshot) {
	if err := s.TrySave(snap); err != nil {
		s.logger.Error("failed to encode snapshot", "error", err)
	}
}

func (s *MemoryStore) TrySave(snap session.Snapshot) error {
	data, err := Encode(snap)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.data = data
	s.saves++
	s.mu.Unlock()
	return nil
}

// Saves reports how many writes reached the store.
func (s *MemoryStore) Saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

// Raw returns the last stored record.
func (s *MemoryStore) Raw() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]byte(nil), s.data...)
}
