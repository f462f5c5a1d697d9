package identity_test

import (
	"context"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"konnect/internal/crypto"
	"konnect/internal/domain"
	"konnect/internal/services/identity"
	"konnect/internal/services/vault"
	"konnect/internal/store"
)

type fixedExchange struct {
	key         []byte
	invalidated int
}

func (f *fixedExchange) Current(context.Context) (domain.SessionKey, error) {
	return domain.SessionKey{Key: append([]byte(nil), f.key...), KeyID: "sk"}, nil
}
func (f *fixedExchange) Establish(ctx context.Context) (domain.SessionKey, error) {
	return f.Current(ctx)
}
func (f *fixedExchange) ServerPublicKey(context.Context) (domain.ServerPublicKey, error) {
	return domain.ServerPublicKey{}, errors.New("unused")
}
func (f *fixedExchange) ForgetServerKey()           {}
func (f *fixedExchange) Invalidate()                { f.invalidated++ }
func (f *fixedExchange) State() domain.SessionState { return domain.StateEstablished }

// directory records published public keys.
type directory struct {
	mu        sync.Mutex
	published []string
	fail      error
}

func (d *directory) ServerPublicKey(context.Context) (domain.ServerPublicKey, error) {
	return domain.ServerPublicKey{}, errors.New("unused")
}
func (d *directory) ExchangeSessionKey(context.Context, string) (domain.KeyExchangeResponse, error) {
	return domain.KeyExchangeResponse{}, errors.New("unused")
}
func (d *directory) RecipientKey(context.Context, domain.Identity) (string, error) {
	return "", errors.New("unused")
}
func (d *directory) GroupKeys(context.Context, domain.GroupID) ([]domain.Recipient, error) {
	return nil, errors.New("unused")
}
func (d *directory) RegisterPublicKey(_ context.Context, pub string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.fail != nil {
		return d.fail
	}
	d.published = append(d.published, pub)
	return nil
}

func setup(t *testing.T) (*identity.Service, *directory, *domain.Session) {
	t.Helper()
	kv, err := store.NewFileStore(t.TempDir())
	require.NoError(t, err)
	sk, err := crypto.GenerateKey()
	require.NoError(t, err)
	dir := &directory{}
	svc := identity.New(dir, vault.New(kv, nil), identity.Options{})
	sess := &domain.Session{
		User:     domain.Identity{Type: domain.UserClub, ID: "chess"},
		Exchange: &fixedExchange{key: sk},
	}
	return svc, dir, sess
}

func TestIdentity_CreateLoginLogout(t *testing.T) {
	svc, dir, sess := setup(t)
	ctx := context.Background()

	kp, err := svc.Create(ctx, sess)
	require.NoError(t, err)
	require.True(t, sess.LoggedIn())
	require.Equal(t, []string{kp.PublicKey}, dir.published)

	fp, err := svc.Fingerprint(sess)
	require.NoError(t, err)
	want, err := crypto.Fingerprint(kp.PublicKey)
	require.NoError(t, err)
	require.Equal(t, want, fp)

	svc.Logout(sess)
	require.False(t, sess.LoggedIn())
	require.Equal(t, 1, sess.Exchange.(*fixedExchange).invalidated)
	_, err = svc.Fingerprint(sess)
	require.ErrorIs(t, err, identity.ErrNotLoggedIn)

	require.NoError(t, svc.Login(ctx, sess))
	require.True(t, sess.LoggedIn())
	require.Equal(t, kp.PrivateKey, sess.Keys.PrivateKey)
	require.Len(t, sess.Keys.CacheKey, crypto.KeySize)
}

func TestIdentity_PublishFailure_KeepsStoredKeys(t *testing.T) {
	svc, dir, sess := setup(t)
	ctx := context.Background()
	dir.fail = errors.New("server down")

	kp, err := svc.Create(ctx, sess)
	require.Error(t, err)
	require.Empty(t, dir.published)

	dir.fail = nil
	svc.Logout(sess)
	require.NoError(t, svc.Login(ctx, sess))
	require.NoError(t, svc.Register(ctx, sess))
	require.Equal(t, []string{kp.PublicKey}, dir.published)
}

func TestIdentity_LoginWithoutRecord(t *testing.T) {
	svc, _, sess := setup(t)
	err := svc.Login(context.Background(), sess)
	require.ErrorIs(t, err, vault.ErrNotFound)
	require.False(t, sess.LoggedIn())
}

func TestIdentity_CreateRefusesExistingRecord(t *testing.T) {
	svc, dir, sess := setup(t)
	ctx := context.Background()

	first, err := svc.Create(ctx, sess)
	require.NoError(t, err)

	_, err = svc.Create(ctx, sess)
	require.ErrorIs(t, err, identity.ErrIdentityExists)
	require.Len(t, dir.published, 1)

	// The stored key is untouched.
	svc.Logout(sess)
	require.NoError(t, svc.Login(ctx, sess))
	require.Equal(t, first.PrivateKey, sess.Keys.PrivateKey)

	second, err := svc.Replace(ctx, sess)
	require.NoError(t, err)
	require.NotEqual(t, first.PrivateKey, second.PrivateKey)
	require.Equal(t, []string{first.PublicKey, second.PublicKey}, dir.published)

	svc.Logout(sess)
	require.NoError(t, svc.Login(ctx, sess))
	require.Equal(t, second.PrivateKey, sess.Keys.PrivateKey)
}
