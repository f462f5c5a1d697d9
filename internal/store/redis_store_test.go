package store_test

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"konnect/internal/store"
)

// Runs against a real server when KONNECT_TEST_REDIS holds its address.
func TestRedisStore(t *testing.T) {
	addr := os.Getenv("KONNECT_TEST_REDIS")
	if addr == "" {
		t.Skip("KONNECT_TEST_REDIS not set")
	}
	ctx := context.Background()
	prefix := "konnect-test:" + uuid.NewString() + ":"
	kv := store.NewRedisStore(redis.NewClient(&redis.Options{Addr: addr}), prefix)
	defer kv.Close()

	_, ok, err := kv.Get(ctx, "PrivateKey_student_alice")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, kv.Put(ctx, "PrivateKey_student_alice", []byte("a")))
	require.NoError(t, kv.Put(ctx, "PrivateKey_club_chess", []byte("b")))
	require.NoError(t, kv.Put(ctx, "other", []byte("c")))

	keys, err := kv.List(ctx, "PrivateKey_")
	require.NoError(t, err)
	require.Equal(t, []string{"PrivateKey_club_chess", "PrivateKey_student_alice"}, keys)

	for _, k := range append(keys, "other") {
		require.NoError(t, kv.Delete(ctx, k))
	}
	keys, err = kv.List(ctx, "")
	require.NoError(t, err)
	require.Empty(t, keys)
}
