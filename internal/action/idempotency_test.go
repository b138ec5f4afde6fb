package action

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type memDedupeStore struct {
	data map[string]string
}

func newMemDedupeStore() *memDedupeStore { return &memDedupeStore{data: map[string]string{}} }

func (m *memDedupeStore) Get(ctx context.Context, key string) (string, error) {
	return m.data[key], nil
}

func (m *memDedupeStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	m.data[key] = value
	return nil
}

func TestWithDedupeRunsOnceForSameKey(t *testing.T) {
	t.Parallel()
	store := newMemDedupeStore()
	calls := 0
	fn := func() (string, error) {
		calls++
		return "result", nil
	}

	out1, err := withDedupe(context.Background(), store, "key-1", fn)
	require.NoError(t, err)
	require.Equal(t, "result", out1)

	out2, err := withDedupe(context.Background(), store, "key-1", fn)
	require.NoError(t, err)
	require.Equal(t, "result", out2)
	require.Equal(t, 1, calls)
}

func TestWithDedupeWithoutKeyAlwaysRuns(t *testing.T) {
	t.Parallel()
	store := newMemDedupeStore()
	calls := 0
	fn := func() (int, error) {
		calls++
		return calls, nil
	}

	out1, err := withDedupe(context.Background(), store, "", fn)
	require.NoError(t, err)
	require.Equal(t, 1, out1)

	out2, err := withDedupe(context.Background(), store, "", fn)
	require.NoError(t, err)
	require.Equal(t, 2, out2)
}

func TestWithDedupePropagatesError(t *testing.T) {
	t.Parallel()
	store := newMemDedupeStore()
	sentinel := require.Error
	_, err := withDedupe(context.Background(), store, "key-err", func() (string, error) {
		return "", context.DeadlineExceeded
	})
	sentinel(t, err)
	require.Empty(t, store.data)
}

func TestWithDedupeNilStoreStillRuns(t *testing.T) {
	t.Parallel()
	calls := 0
	out, err := withDedupe(context.Background(), nil, "key", func() (string, error) {
		calls++
		return "x", nil
	})
	require.NoError(t, err)
	require.Equal(t, "x", out)
	out2, err := withDedupe(context.Background(), nil, "key", func() (string, error) {
		calls++
		return "y", nil
	})
	require.NoError(t, err)
	require.Equal(t, "y", out2)
	require.Equal(t, 2, calls)
}
