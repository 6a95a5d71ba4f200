package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newNonceStore(t *testing.T) (*NonceStore, *miniredis.Miniredis) {
	s := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: s.Addr()})
	return NewNonceStore(client), s
}

func TestNonceStore_ReplayIsRejected(t *testing.T) {
	store, _ := newNonceStore(t)
	ctx := context.Background()

	ok, err := store.CheckAndSet(ctx, "processor", "n-1", 2*time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "first use should be accepted")

	ok, err = store.CheckAndSet(ctx, "processor", "n-1", 2*time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "replayed nonce should be rejected")
}

func TestNonceStore_ScopesAreIndependent(t *testing.T) {
	store, _ := newNonceStore(t)
	ctx := context.Background()

	ok, err := store.CheckAndSet(ctx, "processor", "n-2", 2*time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.CheckAndSet(ctx, "admin", "n-2", 2*time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestNonceStore_ExpiredNonceIsAcceptedAgain(t *testing.T) {
	store, s := newNonceStore(t)
	ctx := context.Background()

	ok, err := store.CheckAndSet(ctx, "processor", "n-3", time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, s.Exists("nonce:processor:n-3"))

	s.FastForward(2 * time.Second)

	ok, err = store.CheckAndSet(ctx, "processor", "n-3", time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
}
