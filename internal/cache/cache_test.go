package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"ConsultChat/internal/session"
)

func snapshot(text string, durations map[string]int64) session.Snapshot {
	return session.Snapshot{
		Messages: []session.Message{{
			ID:        "m1",
			Role:      session.RoleAssistant,
			Parts:     []session.Part{{Type: session.PartText, Text: text}},
			CreatedAt: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
		}},
		Durations: durations,
	}
}

func TestFingerprintStable(t *testing.T) {
	a := snapshot("hello", map[string]int64{"m1": 10, "m2": 20})
	b := snapshot("hello", map[string]int64{"m2": 20, "m1": 10})
	require.Equal(t, Fingerprint(a), Fingerprint(b))
}

func TestFingerprintDetectsChanges(t *testing.T) {
	base := Fingerprint(snapshot("hello", nil))
	require.NotEqual(t, base, Fingerprint(snapshot("hello!", nil)))
	require.NotEqual(t, base, Fingerprint(snapshot("hello", map[string]int64{"m1": 1})))
	require.NotEqual(t, base, Fingerprint(session.EmptySnapshot()))
}

func TestLastWrite(t *testing.T) {
	var lw LastWrite
	snap := snapshot("hello", nil)

	key, changed := lw.Changed(snap)
	require.True(t, changed)
	lw.Record(key)

	_, changed = lw.Changed(snap)
	require.False(t, changed)
}
