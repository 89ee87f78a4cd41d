package prompts

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCategoriesAreComplete(t *testing.T) {
	require.Len(t, Categories, 3)
	seen := map[string]bool{}
	for _, c := range Categories {
		require.False(t, seen[c.ID], "duplicate category %s", c.ID)
		seen[c.ID] = true
		require.NotEmpty(t, c.Presets)
		for _, p := range c.Presets {
			require.NotEmpty(t, p.Label)
			require.NotEmpty(t, p.Prompt)
		}
	}
}

func TestFind(t *testing.T) {
	p, err := Find("case-prep", 2)
	require.NoError(t, err)
	require.Equal(t, "Market entry case", p.Label)

	_, err = Find("case-prep", 0)
	require.Error(t, err)
	_, err = Find("case-prep", 5)
	require.Error(t, err)
	_, err = Find("nope", 1)
	require.ErrorContains(t, err, "unknown mode")
}
