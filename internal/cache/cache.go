package cache

import (
	"crypto/sha256"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"ConsultChat/internal/session"
)

// Fingerprint hashes the persisted content of a snapshot. Two snapshots with
// the same fingerprint serialize to the same record.
func Fingerprint(snap session.Snapshot) string {
	h := sha256.New()
	for _, msg := range snap.Messages {
		h.Write([]byte(msg.ID))
		h.Write([]byte{0})
		h.Write([]byte(msg.Role))
		h.Write([]byte{0})
		h.Write([]byte(msg.CreatedAt.UTC().Format("2006-01-02T15:04:05.999999999")))
		for _, p := range msg.Parts {
			h.Write([]byte{1})
			h.Write([]byte(p.Type))
			h.Write([]byte{0})
			h.Write([]byte(p.Text))
		}
		h.Write([]byte{2})
	}
	keys := make([]string, 0, len(snap.Durations))
	for k := range snap.Durations {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		h.Write([]byte(k))
		h.Write([]byte{0})
		h.Write([]byte(strconv.FormatInt(snap.Durations[k], 10)))
		h.Write([]byte{3})
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}

// LastWrite remembers the fingerprint of the most recently persisted snapshot.
type LastWrite struct {
	mu  sync.Mutex
	key string
}

// Changed reports whether snap differs from the last recorded write.
func (l *LastWrite) Changed(snap session.Snapshot) (string, bool) {
	key := Fingerprint(snap)
	l.mu.Lock()
	defer l.mu.Unlock()
	return key, key != l.key
}

// Record marks key as persisted.
func (l *LastWrite) Record(key string) {
	l.mu.Lock()
	l.key = key
	l.mu.Unlock()
}
