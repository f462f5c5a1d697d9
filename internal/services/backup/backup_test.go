package backup_test

import (
	"context"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"konnect/internal/crypto"
	"konnect/internal/domain"
	"konnect/internal/services/backup"
	"konnect/internal/services/vault"
	"konnect/internal/store"
)

type fixedExchange struct{ key []byte }

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
func (f *fixedExchange) Invalidate()                {}
func (f *fixedExchange) State() domain.SessionState { return domain.StateEstablished }

// serverBackups holds one backup like the key server does for one caller.
type serverBackups struct {
	mu     sync.Mutex
	backup *domain.KeyBackup
	puts   int
}

func (s *serverBackups) PutBackup(_ context.Context, b domain.KeyBackup) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.puts++
	s.backup = &b
	return nil
}

func (s *serverBackups) GetBackup(context.Context) (domain.KeyBackup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.backup == nil {
		return domain.KeyBackup{}, domain.ErrNotFound
	}
	return *s.backup, nil
}

var (
	keysOnce sync.Once
	userKeys domain.UserKeys
)

func testKeys(t *testing.T) domain.UserKeys {
	t.Helper()
	keysOnce.Do(func() {
		kp, err := crypto.GenerateKeyPair(2048)
		if err != nil {
			panic(err)
		}
		ck, err := crypto.GenerateKey()
		if err != nil {
			panic(err)
		}
		userKeys = domain.UserKeys{PrivateKey: kp.PrivateKey, CacheKey: ck}
	})
	return domain.UserKeys{
		PrivateKey: userKeys.PrivateKey,
		CacheKey:   append([]byte(nil), userKeys.CacheKey...),
	}
}

// device is one installation of the client: its own vault, session key and
// log in state.
func device(t *testing.T, server *serverBackups) (*backup.Service, *vault.Service, *domain.Session) {
	t.Helper()
	kv, err := store.NewFileStore(t.TempDir())
	require.NoError(t, err)
	sk, err := crypto.GenerateKey()
	require.NoError(t, err)
	v := vault.New(kv, nil)
	sess := &domain.Session{
		User:     domain.Identity{Type: domain.UserStudent, ID: "alice"},
		Exchange: &fixedExchange{key: sk},
	}
	return backup.New(server, v, backup.Options{}), v, sess
}

func TestBackup_RestoreOnNewDevice(t *testing.T) {
	server := &serverBackups{}
	ctx := context.Background()

	svc, _, sess := device(t, server)
	keys := testKeys(t)
	sess.Keys = keys
	recovery, err := svc.Create(ctx, sess)
	require.NoError(t, err)
	require.Contains(t, recovery, "PRIVATE KEY")
	require.NotContains(t, server.backup.Sealed, keys.PrivateKey)
	require.Len(t, server.backup.RecoveryKeyHash, 64)

	// The original device is gone; a new one restores from the server.
	fresh, freshVault, freshSess := device(t, server)
	require.NoError(t, fresh.Restore(ctx, freshSess, recovery))
	require.True(t, freshSess.LoggedIn())
	require.Equal(t, keys.PrivateKey, freshSess.Keys.PrivateKey)
	require.Equal(t, keys.CacheKey, freshSess.Keys.CacheKey)

	stored, err := freshVault.Recover(ctx, freshSess)
	require.NoError(t, err)
	require.Equal(t, keys.PrivateKey, stored.PrivateKey)
}

func TestBackup_NewBackupRetiresOldRecoveryKey(t *testing.T) {
	server := &serverBackups{}
	ctx := context.Background()
	svc, _, sess := device(t, server)
	sess.Keys = testKeys(t)

	first, err := svc.Create(ctx, sess)
	require.NoError(t, err)
	second, err := svc.Create(ctx, sess)
	require.NoError(t, err)
	require.Equal(t, 2, server.puts)

	fresh, _, freshSess := device(t, server)
	require.ErrorIs(t, fresh.Restore(ctx, freshSess, first), backup.ErrWrongRecoveryKey)
	require.False(t, freshSess.LoggedIn())
	require.NoError(t, fresh.Restore(ctx, freshSess, second))
	require.True(t, freshSess.LoggedIn())
}

func TestBackup_TamperedBackup(t *testing.T) {
	server := &serverBackups{}
	ctx := context.Background()
	svc, _, sess := device(t, server)
	sess.Keys = testKeys(t)
	recovery, err := svc.Create(ctx, sess)
	require.NoError(t, err)

	raw, err := crypto.UnB64(server.backup.Sealed)
	require.NoError(t, err)
	raw[len(raw)-1] ^= 0xff
	server.backup.Sealed = crypto.B64(raw)

	fresh, freshVault, freshSess := device(t, server)
	err = fresh.Restore(ctx, freshSess, recovery)
	require.True(t, errors.Is(err, crypto.ErrAuthentication))
	require.False(t, freshSess.LoggedIn())

	ok, err := freshVault.Exists(ctx, freshSess.User)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestBackup_Errors(t *testing.T) {
	ctx := context.Background()
	svc, _, sess := device(t, &serverBackups{})

	_, err := svc.Create(ctx, sess)
	require.ErrorIs(t, err, backup.ErrNotLoggedIn)

	err = svc.Restore(ctx, sess, testKeys(t).PrivateKey)
	require.ErrorIs(t, err, backup.ErrNoBackup)

	err = svc.Restore(ctx, sess, "not a key")
	require.True(t, errors.Is(err, crypto.ErrInvalidKey))
}
