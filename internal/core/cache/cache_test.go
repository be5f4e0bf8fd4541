package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type listing struct {
	Names []string `json:"names"`
}

func newTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	return NewWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()})), mr
}

func TestRememberCachesUntilTTL(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()
	calls := 0
	load := func(context.Context) (listing, error) {
		calls++
		return listing{Names: []string{"a", "b"}}, nil
	}

	for i := 0; i < 3; i++ {
		got, err := Remember(ctx, c, "stores", 30*time.Second, load)
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b"}, got.Names)
	}
	assert.Equal(t, 1, calls)

	mr.FastForward(31 * time.Second)
	_, err := Remember(ctx, c, "stores", 30*time.Second, load)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestRememberReloadsCorruptEntry(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()
	require.NoError(t, mr.Set("stores", "{not json"))

	got, err := Remember(ctx, c, "stores", time.Minute, func(context.Context) ([]string, error) {
		return []string{"fresh"}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"fresh"}, got)

	v, err := mr.Get("stores")
	require.NoError(t, err)
	assert.Equal(t, `["fresh"]`, v)
}

func TestInvalidate(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()
	_, err := c.GetOrLoad(ctx, "k", time.Minute, func(context.Context) ([]byte, error) { return []byte(`1`), nil })
	require.NoError(t, err)
	assert.True(t, mr.Exists("k"))

	require.NoError(t, c.Invalidate(ctx, "k"))
	assert.False(t, mr.Exists("k"))
}

func TestNilCacheLoadsDirectly(t *testing.T) {
	var c *Cache
	ctx := context.Background()
	got, err := Remember(ctx, c, "k", time.Minute, func(context.Context) (listing, error) {
		return listing{Names: []string{"x"}}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"x"}, got.Names)
	assert.NoError(t, c.Invalidate(ctx, "k"))

	_, err = Remember(ctx, c, "k", time.Minute, func(context.Context) (listing, error) {
		return listing{}, errors.New("boom")
	})
	assert.EqualError(t, err, "boom")
}
