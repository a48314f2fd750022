package session_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linemk/shop-bot/internal/session"
)

type state struct {
	Step  string `json:"step"`
	Draft string `json:"draft,omitempty"`
}

func newStore(t *testing.T, ttl time.Duration) (*session.Store[state], *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return session.NewStore[state](client, ttl), mr
}

func TestStore_SaveLoad(t *testing.T) {
	store, mr := newStore(t, time.Hour)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, 42, state{Step: "cart", Draft: "x"}))
	assert.True(t, mr.Exists("session:42"))

	got, found, err := store.Load(ctx, 42)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, state{Step: "cart", Draft: "x"}, got)
}

func TestStore_LoadMissing(t *testing.T) {
	store, _ := newStore(t, time.Hour)

	got, found, err := store.Load(context.Background(), 1)
	require.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, state{}, got)
}

func TestStore_Expires(t *testing.T) {
	store, mr := newStore(t, time.Minute)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, 42, state{Step: "menu"}))
	mr.FastForward(2 * time.Minute)

	_, found, err := store.Load(ctx, 42)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestStore_CorruptedValueIsMissing(t *testing.T) {
	store, mr := newStore(t, time.Hour)
	require.NoError(t, mr.Set("session:42", "{not json"))

	_, found, err := store.Load(context.Background(), 42)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestStore_Delete(t *testing.T) {
	store, mr := newStore(t, time.Hour)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, 42, state{Step: "menu"}))
	require.NoError(t, store.Delete(ctx, 42))
	assert.False(t, mr.Exists("session:42"))
}

func TestStore_RedisDown(t *testing.T) {
	store, mr := newStore(t, time.Hour)
	mr.Close()

	_, _, err := store.Load(context.Background(), 42)
	assert.Error(t, err)
}
