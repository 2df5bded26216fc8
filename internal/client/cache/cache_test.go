package cache

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetFetchesOnceThenCaches(t *testing.T) {
	c := New()
	var calls atomic.Int32
	c.Register("k", func(ctx context.Context) (any, error) {
		calls.Add(1)
		return 42, nil
	})

	v, err := c.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.Equal(t, 42, v)

	_, err = c.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestGetWithoutFetcher(t *testing.T) {
	c := New()
	_, err := c.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNoFetcher)
}

func TestInvalidateRefetchesAllKeys(t *testing.T) {
	c := New()
	var a, b atomic.Int32
	c.Register("a", func(ctx context.Context) (any, error) { return int(a.Add(1)), nil })
	c.Register("b", func(ctx context.Context) (any, error) { return int(b.Add(1)), nil })

	_, _ = c.Get(context.Background(), "a")
	_, _ = c.Get(context.Background(), "b")

	require.NoError(t, c.Invalidate(context.Background(), "a", "b"))
	assert.Equal(t, int32(2), a.Load())
	assert.Equal(t, int32(2), b.Load())

	v, err := c.Get(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, 2, v)
}

func TestInvalidatePropagatesFetchErrors(t *testing.T) {
	c := New()
	boom := errors.New("backend down")
	c.Register("good", func(ctx context.Context) (any, error) { return 1, nil })
	c.Register("bad", func(ctx context.Context) (any, error) { return nil, boom })

	err := c.Invalidate(context.Background(), "good", "bad")
	assert.ErrorIs(t, err, boom)
}

func TestInvalidateEvictsUnregisteredKeys(t *testing.T) {
	c := New()
	c.Register("k", func(ctx context.Context) (any, error) { return "v", nil })
	_, _ = c.Get(context.Background(), "k")

	// "other" has no fetcher; invalidating it is a plain eviction.
	require.NoError(t, c.Invalidate(context.Background(), "other"))
	_, ok := c.Peek("k")
	assert.True(t, ok)
}

func TestPurgeDropsValuesKeepsFetchers(t *testing.T) {
	c := New()
	var calls atomic.Int32
	c.Register("k", func(ctx context.Context) (any, error) {
		calls.Add(1)
		return "v", nil
	})
	_, _ = c.Get(context.Background(), "k")

	c.Purge()
	_, ok := c.Peek("k")
	assert.False(t, ok)

	_, err := c.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestSemanticKeys(t *testing.T) {
	assert.Equal(t, "competition:5:submissions", KeyCompetitionSubmissions(5))
	assert.Equal(t, "submission:9", KeySubmission(9))
}
