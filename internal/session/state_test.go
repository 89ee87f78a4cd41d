package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func textMessage(id string, role Role, text string) Message {
	return Message{
		ID:        id,
		Role:      role,
		Parts:     []Part{{Type: PartText, Text: text}},
		CreatedAt: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestStateAppendPreservesOrder(t *testing.T) {
	s := NewState()
	s.Append(textMessage("a", RoleUser, "hi"))
	s.Append(textMessage("b", RoleAssistant, "hello"))
	s.Append(textMessage("c", RoleUser, "bye"))

	msgs := s.Messages()
	require.Len(t, msgs, 3)
	require.Equal(t, []string{"a", "b", "c"}, []string{msgs[0].ID, msgs[1].ID, msgs[2].ID})
}

func TestStateAppendReplacesByID(t *testing.T) {
	s := NewState()
	s.Append(textMessage("u", RoleUser, "question"))
	s.Append(textMessage("a", RoleAssistant, "The market"))
	s.Append(textMessage("a", RoleAssistant, "The market size"))

	require.Equal(t, 2, s.Len())
	msg, ok := s.Message("a")
	require.True(t, ok)
	require.Equal(t, "The market size", msg.Text())
	require.Equal(t, "a", s.Messages()[1].ID)
}

func TestStateReturnsCopies(t *testing.T) {
	s := NewState()
	s.Append(textMessage("a", RoleUser, "hi"))

	msgs := s.Messages()
	msgs[0].Parts[0].Text = "mutated"
	got, _ := s.Message("a")
	require.Equal(t, "hi", got.Text())

	d := s.Durations()
	d["x"] = 1
	require.Empty(t, s.Durations())
}

func TestStateReplaceAll(t *testing.T) {
	s := NewState()
	s.Append(textMessage("old", RoleUser, "old"))
	s.ReplaceAll([]Message{textMessage("n1", RoleUser, "x"), textMessage("n2", RoleAssistant, "y")})

	require.Equal(t, 2, s.Len())
	_, ok := s.Message("old")
	require.False(t, ok)

	s.ReplaceAll(nil)
	require.Equal(t, 0, s.Len())
	require.NotNil(t, s.Messages())
}

func TestStateDurationsAndStatus(t *testing.T) {
	s := NewState()
	require.Equal(t, StatusReady, s.Status())

	s.SetDuration("a", 4200)
	s.SetDuration("a", 4300)
	require.Equal(t, map[string]int64{"a": 4300}, s.Durations())

	s.ReplaceDurations(map[string]int64{"b": 1})
	require.Equal(t, map[string]int64{"b": 1}, s.Durations())

	s.SetStatus(StatusStreaming)
	require.True(t, s.Status().Busy())
	s.SetStatus(StatusError)
	require.False(t, s.Status().Busy())
}

func TestSnapshotPruneAndClone(t *testing.T) {
	snap := Snapshot{
		Messages:  []Message{textMessage("a", RoleAssistant, "x")},
		Durations: map[string]int64{"a": 10, "stale": 20},
	}
	pruned := snap.Prune()
	require.Equal(t, map[string]int64{"a": 10}, pruned.Durations)
	require.Len(t, snap.Durations, 2)

	pruned.Messages[0].Parts[0].Text = "changed"
	require.Equal(t, "x", snap.Messages[0].Text())
}

func TestMessageText(t *testing.T) {
	m := Message{Parts: []Part{
		{Type: PartText, Text: "The market "},
		{Type: "source-url"},
		{Type: PartText, Text: "is large"},
	}}
	require.Equal(t, "The market is large", m.Text())
}
