package server_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"konnect/internal/domain"
	"konnect/internal/server"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestKeyManager_Reroll(t *testing.T) {
	clk := &clock{now: time.Unix(1_700_000_000, 0)}
	km, err := server.NewKeyManager(2048, time.Minute, clk.Now)
	require.NoError(t, err)

	first := km.Current()
	require.Contains(t, first.KeyID, "key_")

	rotated, err := km.Reroll()
	require.NoError(t, err)
	require.False(t, rotated)
	require.Equal(t, first, km.Current())

	clk.Advance(time.Minute)
	rotated, err = km.Reroll()
	require.NoError(t, err)
	require.True(t, rotated)
	second := km.Current()
	require.NotEqual(t, first.KeyID, second.KeyID)

	// The previous key still opens requests.
	_, err = km.PrivateKey(first.KeyID)
	require.NoError(t, err)
	_, err = km.PrivateKey(second.KeyID)
	require.NoError(t, err)

	require.NoError(t, km.Rotate())
	_, err = km.PrivateKey(first.KeyID)
	require.ErrorIs(t, err, domain.ErrUnknownKeyID)
	_, err = km.PrivateKey("key_nope")
	require.ErrorIs(t, err, domain.ErrUnknownKeyID)
}

func TestSessionKeys_DeterministicPerIdentity(t *testing.T) {
	master := make([]byte, 32)
	sk, err := server.NewSessionKeys(master)
	require.NoError(t, err)

	a1, id1, err := sk.For(alice)
	require.NoError(t, err)
	a2, id2, err := sk.For(alice)
	require.NoError(t, err)
	b, idb, err := sk.For(bob)
	require.NoError(t, err)

	require.Equal(t, a1, a2)
	require.Equal(t, id1, id2)
	require.NotEqual(t, a1, b)
	require.NotEqual(t, id1, idb)
	require.Len(t, a1, 32)

	_, err = server.NewSessionKeys([]byte("short"))
	require.Error(t, err)
}
