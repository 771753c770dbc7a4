package session

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prn-tf/vaultbox/internal/domain"
)

var alice = domain.Identity{UserID: "u-alice", Username: "alice", Role: domain.RoleUser}

func exerciseStore(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	token, err := store.Create(ctx, alice, time.Hour)
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	got, err := store.Get(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, alice, *got)

	other, err := store.Create(ctx, alice, time.Hour)
	require.NoError(t, err)
	assert.NotEqual(t, token, other, "each login gets its own token")

	require.NoError(t, store.Delete(ctx, token))
	require.NoError(t, store.Delete(ctx, token), "delete is idempotent")

	_, err = store.Get(ctx, token)
	assert.ErrorIs(t, err, ErrNotFound)

	got, err = store.Get(ctx, other)
	require.NoError(t, err, "deleting one session leaves others intact")
	assert.Equal(t, alice.UserID, got.UserID)

	_, err = store.Get(ctx, "no-such-token")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore()
	defer store.Stop()

	exerciseStore(t, store)
}

func TestMemoryStore_Expiry(t *testing.T) {
	store := NewMemoryStore()
	defer store.Stop()

	now := time.Now()
	store.now = func() time.Time { return now }

	ctx := context.Background()
	token, err := store.Create(ctx, alice, time.Minute)
	require.NoError(t, err)

	now = now.Add(59 * time.Second)
	_, err = store.Get(ctx, token)
	require.NoError(t, err)

	now = now.Add(time.Second)
	_, err = store.Get(ctx, token)
	assert.ErrorIs(t, err, ErrNotFound)

	store.cleanup()
	assert.Equal(t, 0, store.Len())
}

func TestMemoryStore_IdentityIsCopied(t *testing.T) {
	store := NewMemoryStore()
	defer store.Stop()

	ctx := context.Background()
	token, err := store.Create(ctx, alice, time.Hour)
	require.NoError(t, err)

	got, err := store.Get(ctx, token)
	require.NoError(t, err)
	got.Role = domain.RoleAdmin

	again, err := store.Get(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleUser, again.Role)
}

func TestRedisStore(t *testing.T) {
	addr := os.Getenv("VAULTBOX_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("VAULTBOX_TEST_REDIS_ADDR not set")
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()
	require.NoError(t, client.Ping(context.Background()).Err())

	exerciseStore(t, NewRedisStore(client))
}
