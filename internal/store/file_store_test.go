package store_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"konnect/internal/domain"
	"konnect/internal/store"
)

func TestFileStore_PutGetDelete(t *testing.T) {
	home := t.TempDir()
	ctx := context.Background()

	var kv domain.KVStore
	kv, err := store.NewFileStore(home)
	require.NoError(t, err)

	_, ok, err := kv.Get(ctx, "missing")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, kv.Put(ctx, "PrivateKey_student_alice", []byte("sealed")))
	got, ok, err := kv.Get(ctx, "PrivateKey_student_alice")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("sealed"), got)

	fi, err := os.Stat(filepath.Join(home, "kv.json"))
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), fi.Mode().Perm())

	require.NoError(t, kv.Delete(ctx, "PrivateKey_student_alice"))
	require.NoError(t, kv.Delete(ctx, "PrivateKey_student_alice"))
	_, ok, err = kv.Get(ctx, "PrivateKey_student_alice")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestFileStore_ListByPrefix_SurvivesReopen(t *testing.T) {
	home := t.TempDir()
	ctx := context.Background()

	kv, err := store.NewFileStore(home)
	require.NoError(t, err)
	for _, k := range []string{"PrivateKey_club_chess", "other", "PrivateKey_admin_root"} {
		require.NoError(t, kv.Put(ctx, k, []byte(k)))
	}

	reopened, err := store.NewFileStore(home)
	require.NoError(t, err)
	keys, err := reopened.List(ctx, domain.StoredKeyPrefix)
	require.NoError(t, err)
	require.Equal(t, []string{"PrivateKey_admin_root", "PrivateKey_club_chess"}, keys)
}

func TestFileStore_CorruptFile(t *testing.T) {
	home := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(home, "kv.json"), []byte("{"), 0o600))

	kv, err := store.NewFileStore(home)
	require.NoError(t, err)
	_, _, err = kv.Get(context.Background(), "x")
	require.ErrorContains(t, err, "decode "+filepath.Join(home, "kv.json"))

	// Writes do not start over from an unreadable file.
	require.Error(t, kv.Put(context.Background(), "x", []byte("y")))
	raw, err := os.ReadFile(filepath.Join(home, "kv.json"))
	require.NoError(t, err)
	require.Equal(t, "{", string(raw))
}
