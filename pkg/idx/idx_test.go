package idx_test

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/authsession/pkg/idx"
)

func TestNewAndParse(t *testing.T) {
	t.Parallel()

	id := idx.New()
	require.Len(t, id.String(), 26)

	parsed, err := idx.Parse(" " + id.String() + "\n")
	require.NoError(t, err)
	require.Equal(t, id, parsed)
}

func TestNewIsMonotonic(t *testing.T) {
	t.Parallel()

	ids := make([]string, 1000)
	for i := range ids {
		ids[i] = idx.New().String()
	}
	require.True(t, slices.IsSorted(ids))
}

func TestParseRejects(t *testing.T) {
	t.Parallel()

	for _, s := range []string{"", "not-a-ulid", "01HQ7T3Z1MZ0JQ3M6MZQ1FQ3Z", "01HQ7T3Z1MZ0JQ3M6MZQ1FQ3ZV; drop"} {
		_, err := idx.Parse(s)
		require.ErrorIs(t, err, idx.ErrInvalid, s)
	}
}
