package idx_test

import (
	"sync"
	"testing"
	"time"

	"github.com/moviestream/auth/pkg/idx"
	"github.com/stretchr/testify/require"
)

func TestNewProducesValidIDs(t *testing.T) {
	t.Parallel()

	id := idx.New()
	require.False(t, id.IsZero())

	parsed, err := idx.Parse(id.String())
	require.NoError(t, err)
	require.Equal(t, id, parsed)
}

func TestNewIsMonotonicWithinProcess(t *testing.T) {
	t.Parallel()

	prev := idx.New()
	for range 100 {
		next := idx.New()
		require.Less(t, prev.String(), next.String())
		prev = next
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	t.Parallel()

	for _, input := range []string{"", "   ", "not-a-ulid", "0000"} {
		_, err := idx.Parse(input)
		require.ErrorIs(t, err, idx.ErrInvalid)
	}
}

func TestTimeRoundtrip(t *testing.T) {
	t.Parallel()

	before := time.Now().UTC().Truncate(time.Millisecond)
	id := idx.New()
	require.WithinDuration(t, before, id.Time(), time.Second)
}

func TestConcurrentGeneration(t *testing.T) {
	t.Parallel()

	const n = 200
	ids := make(chan idx.ID, n)
	var wg sync.WaitGroup
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ids <- idx.New()
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[idx.ID]struct{}, n)
	for id := range ids {
		_, dup := seen[id]
		require.False(t, dup, "duplicate id %s", id)
		seen[id] = struct{}{}
	}
}
