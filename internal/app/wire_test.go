package app_test

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"konnect/internal/app"
	"konnect/internal/domain"
)

func TestWire_EndToEnd(t *testing.T) {
	gin.SetMode(gin.TestMode)
	srv, _, err := app.NewServer(&app.ServerConfig{
		Listen:       "unused",
		RSABits:      2048,
		MasterSecret: []byte(strings.Repeat("k", 32)),
	})
	require.NoError(t, err)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	wire := func(user string) *app.Wire {
		t.Setenv("KONNECT_SERVER", ts.URL)
		t.Setenv("KONNECT_USER_ID", user)
		cfg, err := app.NewConfig(t.TempDir(), app.NewViper(""))
		require.NoError(t, err)
		w, err := app.NewWire(cfg)
		require.NoError(t, err)
		t.Cleanup(func() { _ = w.Close() })
		return w
	}
	ctx := context.Background()

	alice := wire("alice")
	_, err = alice.Identity.Create(ctx, alice.Session)
	require.NoError(t, err)
	bob := wire("bob")
	_, err = bob.Identity.Create(ctx, bob.Session)
	require.NoError(t, err)

	require.NoError(t, alice.Messages.SendDirect(ctx, alice.Session, bob.Session.User, []byte("hi bob")))

	// A fresh process for Bob: recover keys from the vault, then read.
	bob.Identity.Logout(bob.Session)
	sess, err := bob.Login(ctx)
	require.NoError(t, err)
	msgs, err := bob.Messages.Receive(ctx, sess, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 1)

	hist, err := bob.Messages.History(sess, alice.Session.User.String(), 0)
	require.NoError(t, err)
	require.Len(t, hist, 1)
	require.Equal(t, "hi bob", string(hist[0].Plaintext))
	require.Equal(t, domain.UserStudent, hist[0].From.Type)

	// Bob loses the device; his backup brings the same key to a new one.
	recovery, err := bob.Backups.Create(ctx, sess)
	require.NoError(t, err)
	require.NoError(t, alice.Messages.SendDirect(ctx, alice.Session, bob.Session.User, []byte("still there?")))

	laptop := wire("bob")
	require.NoError(t, laptop.Backups.Restore(ctx, laptop.Session, recovery))
	msgs, err = laptop.Messages.Receive(ctx, laptop.Session, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	require.Equal(t, "still there?", string(msgs[0].Plaintext))
}
