package session

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Role identifies who authored a message
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// PartText is the only part type the client produces; other types are kept as-is on restore.
const PartText = "text"

// Part is one ordered piece of message content
type Part struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// Message represents a single chat message
type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Parts     []Part    `json:"parts"`
	CreatedAt time.Time `json:"createdAt"`
}

// NewID returns a fresh message id.
func NewID() string {
	return uuid.NewString()
}

// NewUserMessage builds a user message holding a single text part.
func NewUserMessage(text string, now time.Time) Message {
	return Message{
		ID:        NewID(),
		Role:      RoleUser,
		Parts:     []Part{{Type: PartText, Text: text}},
		CreatedAt: now,
	}
}

// Text concatenates the text parts of the message.
func (m Message) Text() string {
	var b strings.Builder
	for _, p := range m.Parts {
		if p.Type == PartText {
			b.WriteString(p.Text)
		}
	}
	return b.String()
}

// Clone returns a copy that shares no part storage with m.
func (m Message) Clone() Message {
	out := m
	if m.Parts != nil {
		out.Parts = append([]Part(nil), m.Parts...)
	}
	return out
}

// Status is the mode of the active turn, shared by the whole session.
type Status string

const (
	StatusReady     Status = "ready"
	StatusSubmitted Status = "submitted"
	StatusStreaming Status = "streaming"
	StatusError     Status = "error"
)

// Busy reports whether a turn is outstanding.
func (s Status) Busy() bool {
	return s == StatusSubmitted || s == StatusStreaming
}

// Snapshot is the persisted unit: ordered messages plus per-message durations in milliseconds.
type Snapshot struct {
	Messages  []Message        `json:"messages"`
	Durations map[string]int64 `json:"durations"`
}

// EmptySnapshot returns a snapshot with non-nil, empty collections.
func EmptySnapshot() Snapshot {
	return Snapshot{
		Messages:  []Message{},
		Durations: map[string]int64{},
	}
}

// Clone deep-copies the snapshot.
func (s Snapshot) Clone() Snapshot {
	out := Snapshot{
		Messages:  make([]Message, len(s.Messages)),
		Durations: make(map[string]int64, len(s.Durations)),
	}
	for i, m := range s.Messages {
		out.Messages[i] = m.Clone()
	}
	for k, v := range s.Durations {
		out.Durations[k] = v
	}
	return out
}

// Prune returns a copy without duration keys that do not name a message.
func (s Snapshot) Prune() Snapshot {
	s = s.Clone()
	ids := make(map[string]struct{}, len(s.Messages))
	for _, m := range s.Messages {
		ids[m.ID] = struct{}{}
	}
	for k := range s.Durations {
		if _, ok := ids[k]; !ok {
			delete(s.Durations, k)
		}
	}
	return s
}
