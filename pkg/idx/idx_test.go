package idx_test

import (
	"testing"
	"time"

	"github.com/aussiebroadwan/authcore/pkg/idx"
	"github.com/stretchr/testify/require"
)

func TestNewParses(t *testing.T) {
	id := idx.New()
	require.False(t, id.IsZero())

	parsed, err := idx.Parse(id.String())
	require.NoError(t, err)
	require.Equal(t, id, parsed)
}

func TestParseRejectsGarbage(t *testing.T) {
	for _, in := range []string{"", "   ", "not-a-ulid", "01HQ7T3Z1MZ0JQ3M6MZQ1FQ3Z"} {
		_, err := idx.Parse(in)
		require.ErrorIs(t, err, idx.ErrInvalid, in)
	}
}

func TestGeneratorIsMonotonic(t *testing.T) {
	fixed := time.Unix(1700000000, 0)
	g := idx.NewGenerator(func() time.Time { return fixed })

	prev := g.Next()
	for range 100 {
		next := g.Next()
		require.Greater(t, next.String(), prev.String())
		prev = next
	}
	require.WithinDuration(t, fixed, prev.Time(), time.Millisecond)
}

func TestTimeOfInvalidIDIsZero(t *testing.T) {
	require.True(t, idx.ID("nope").Time().IsZero())
}
