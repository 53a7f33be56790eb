package cart

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCart_AddIsIdempotentAndOrdered(t *testing.T) {
	var c Cart
	now := time.Now()

	assert.True(t, c.Add(3, now))
	assert.True(t, c.Add(1, now))
	assert.False(t, c.Add(3, now))
	assert.Equal(t, []uint{3, 1}, c.IDs())

	assert.True(t, c.Remove(3))
	assert.False(t, c.Remove(3))
	assert.Equal(t, []uint{1}, c.IDs())
	assert.Equal(t, "cart:42", Key(42))
}

func newRedisStore(t *testing.T, ttl time.Duration) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStoreWithClient(client, ttl), mr
}

func TestRedisStore_RoundTrip(t *testing.T) {
	store, mr := newRedisStore(t, time.Hour)
	ctx := context.Background()

	empty, err := store.Load(ctx, Key(1))
	require.NoError(t, err)
	assert.Zero(t, empty.Len())

	c := &Cart{}
	c.Add(10, time.Now())
	c.Add(11, time.Now())
	require.NoError(t, store.Save(ctx, Key(1), c))
	assert.True(t, mr.Exists("cart:1"))
	assert.Equal(t, time.Hour, mr.TTL("cart:1"))

	loaded, err := store.Load(ctx, Key(1))
	require.NoError(t, err)
	assert.Equal(t, []uint{10, 11}, loaded.IDs())

	require.NoError(t, store.Clear(ctx, Key(1)))
	assert.False(t, mr.Exists("cart:1"))
	assert.NoError(t, store.Ping(ctx))
}

func TestRedisStore_ExpiresAndEmptyDeletes(t *testing.T) {
	store, mr := newRedisStore(t, time.Minute)
	ctx := context.Background()

	c := &Cart{}
	c.Add(5, time.Now())
	require.NoError(t, store.Save(ctx, Key(2), c))

	mr.FastForward(2 * time.Minute)
	loaded, err := store.Load(ctx, Key(2))
	require.NoError(t, err)
	assert.Zero(t, loaded.Len())

	require.NoError(t, store.Save(ctx, Key(2), c))
	require.NoError(t, store.Save(ctx, Key(2), &Cart{}))
	assert.False(t, mr.Exists("cart:2"))
}

func TestRedisStore_CorruptValue(t *testing.T) {
	store, mr := newRedisStore(t, time.Minute)
	require.NoError(t, mr.Set("cart:3", "{not json"))

	_, err := store.Load(context.Background(), Key(3))
	assert.Error(t, err)
}

func TestNewRedisStore_BadURL(t *testing.T) {
	_, err := NewRedisStore("://nope", time.Minute)
	assert.Error(t, err)
}

func TestMemoryStore_CopiesOnSave(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	c := &Cart{}
	c.Add(1, time.Now())
	require.NoError(t, store.Save(ctx, "k", c))
	c.Add(2, time.Now())

	loaded, err := store.Load(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []uint{1}, loaded.IDs())

	require.NoError(t, store.Clear(ctx, "k"))
	loaded, err = store.Load(ctx, "k")
	require.NoError(t, err)
	assert.Zero(t, loaded.Len())
}
