package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cachedThing struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
}

func newTestStore(t *testing.T) (*miniredis.Miniredis, *Store) {
	t.Helper()
	mr := miniredis.RunT(t)
	c, err := NewClient(mr.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return mr, NewStore(c, PostCacheName, time.Minute)
}

func TestStore_AsideFetchesOnceThenHits(t *testing.T) {
	t.Parallel()
	mr, store := newTestStore(t)
	ctx := context.Background()

	calls := 0
	fetch := func(dest *cachedThing) func() error {
		return func() error {
			calls++
			*dest = cachedThing{ID: 7, Name: "fresh"}
			return nil
		}
	}

	var first cachedThing
	require.NoError(t, store.Aside(ctx, PostKey(7), &first, fetch(&first)))
	assert.Equal(t, "fresh", first.Name)
	assert.True(t, mr.Exists("post:7"))
	assert.Equal(t, time.Minute, mr.TTL("post:7"))

	var second cachedThing
	require.NoError(t, store.Aside(ctx, PostKey(7), &second, fetch(&second)))
	assert.Equal(t, first, second)
	assert.Equal(t, 1, calls)
}

func TestStore_InvalidateForcesRefetch(t *testing.T) {
	t.Parallel()
	mr, store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SetJSON(ctx, PostKey(1), cachedThing{ID: 1}))
	store.Invalidate(ctx, PostKey(1))
	assert.False(t, mr.Exists("post:1"))
}

func TestStore_FetchErrorIsReturnedAndNotCached(t *testing.T) {
	t.Parallel()
	mr, store := newTestStore(t)

	var dest cachedThing
	err := store.Aside(context.Background(), PostKey(2), &dest, func() error { return errors.New("db down") })
	assert.Error(t, err)
	assert.False(t, mr.Exists("post:2"))
}

func TestStore_RedisFailureDegradesToFetch(t *testing.T) {
	t.Parallel()
	mr, store := newTestStore(t)
	mr.Close()

	var dest cachedThing
	err := store.Aside(context.Background(), PostKey(3), &dest, func() error {
		dest = cachedThing{ID: 3}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, uint(3), dest.ID)
}

func TestStore_NilIsNoop(t *testing.T) {
	t.Parallel()

	var store *Store
	ctx := context.Background()

	found, err := store.GetJSON(ctx, "k", &cachedThing{})
	assert.NoError(t, err)
	assert.False(t, found)
	assert.NoError(t, store.SetJSON(ctx, "k", cachedThing{}))
	store.Invalidate(ctx, "k")

	fetched := false
	require.NoError(t, store.Aside(ctx, "k", &cachedThing{}, func() error { fetched = true; return nil }))
	assert.True(t, fetched)

	assert.False(t, NewStore(nil, "", 0).Enabled())
}

func TestInitRedis_InvalidURLLeavesClientNil(t *testing.T) {
	assert.Nil(t, InitRedis("redis://%%bad"))
	assert.Nil(t, GetClient())
}
