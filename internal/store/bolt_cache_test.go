package store_test

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"konnect/internal/crypto"
	"konnect/internal/domain"
	"konnect/internal/store"
)

var (
	alice = domain.Identity{Type: domain.UserStudent, ID: "alice"}
	bob   = domain.Identity{Type: domain.UserStudent, ID: "bob"}
	carol = domain.Identity{Type: domain.UserStudent, ID: "carol"}
)

func openCache(t *testing.T) *store.BoltCache {
	t.Helper()
	c, err := store.OpenBoltCache(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestBoltCache_ConversationsAndOrder(t *testing.T) {
	c := openCache(t)
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		require.NoError(t, c.Put(key, domain.DecryptedMessage{
			ID:        fmt.Sprintf("m%d", i),
			From:      alice,
			To:        bob,
			Plaintext: []byte(fmt.Sprintf("direct %d", i)),
		}))
	}
	require.NoError(t, c.Put(key, domain.DecryptedMessage{
		ID: "g1", From: alice, To: bob, Group: "study", Plaintext: []byte("group"),
	}))

	all, err := c.List(key, bob, alice.String(), 0)
	require.NoError(t, err)
	require.Len(t, all, 5)
	for i, m := range all {
		require.Equal(t, fmt.Sprintf("direct %d", i), string(m.Plaintext))
	}

	last, err := c.List(key, bob, alice.String(), 2)
	require.NoError(t, err)
	require.Len(t, last, 2)
	require.Equal(t, "m3", last[0].ID)
	require.Equal(t, "m4", last[1].ID)

	group, err := c.List(key, bob, "group:study", 0)
	require.NoError(t, err)
	require.Len(t, group, 1)

	none, err := c.List(key, bob, "student:nobody", 0)
	require.NoError(t, err)
	require.Empty(t, none)
}

func TestBoltCache_WrongKey(t *testing.T) {
	c := openCache(t)
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	other, err := crypto.GenerateKey()
	require.NoError(t, err)

	require.NoError(t, c.Put(key, domain.DecryptedMessage{ID: "m", From: alice, To: bob, Plaintext: []byte("x")}))
	_, err = c.List(other, bob, alice.String(), 0)
	require.True(t, errors.Is(err, store.ErrCacheLocked))
}

func TestBoltCache_UsersOnOneDevice(t *testing.T) {
	c := openCache(t)
	bobKey, err := crypto.GenerateKey()
	require.NoError(t, err)
	carolKey, err := crypto.GenerateKey()
	require.NoError(t, err)

	require.NoError(t, c.Put(bobKey, domain.DecryptedMessage{ID: "b", From: alice, To: bob, Plaintext: []byte("to bob")}))
	require.NoError(t, c.Put(carolKey, domain.DecryptedMessage{ID: "c", From: alice, To: carol, Plaintext: []byte("to carol")}))

	got, err := c.List(bobKey, bob, alice.String(), 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "to bob", string(got[0].Plaintext))

	got, err = c.List(carolKey, carol, alice.String(), 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "to carol", string(got[0].Plaintext))

	// Carol's key does not open bob's history.
	_, err = c.List(carolKey, bob, alice.String(), 0)
	require.True(t, errors.Is(err, store.ErrCacheLocked))
}
