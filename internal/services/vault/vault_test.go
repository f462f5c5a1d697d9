package vault_test

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"konnect/internal/crypto"
	"konnect/internal/domain"
	"konnect/internal/services/vault"
	"konnect/internal/store"
)

// fixedExchange always hands out the same session key, as the key server
// does for one identity.
type fixedExchange struct {
	key        []byte
	establish  atomic.Int32
	failReason error
}

func (f *fixedExchange) Current(context.Context) (domain.SessionKey, error) {
	if f.failReason != nil {
		return domain.SessionKey{}, f.failReason
	}
	return domain.SessionKey{Key: append([]byte(nil), f.key...), KeyID: "sk_1"}, nil
}
func (f *fixedExchange) Establish(ctx context.Context) (domain.SessionKey, error) {
	f.establish.Add(1)
	return f.Current(ctx)
}
func (f *fixedExchange) ServerPublicKey(context.Context) (domain.ServerPublicKey, error) {
	return domain.ServerPublicKey{}, errors.New("unused")
}
func (f *fixedExchange) ForgetServerKey()           {}
func (f *fixedExchange) Invalidate()                {}
func (f *fixedExchange) State() domain.SessionState { return domain.StateEstablished }

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
	return userKeys
}

func setup(t *testing.T) (*vault.Service, *store.FileStore, *domain.Session) {
	t.Helper()
	kv, err := store.NewFileStore(t.TempDir())
	require.NoError(t, err)
	sk, err := crypto.GenerateKey()
	require.NoError(t, err)
	sess := &domain.Session{
		User:     domain.Identity{Type: domain.UserStudent, ID: "alice"},
		Exchange: &fixedExchange{key: sk},
	}
	return vault.New(kv, nil), kv, sess
}

func TestVault_StoreRecover(t *testing.T) {
	v, kv, sess := setup(t)
	ctx := context.Background()
	keys := testKeys(t)

	require.NoError(t, v.Store(ctx, sess, keys))

	raw, ok, err := kv.Get(ctx, "PrivateKey_student_alice")
	require.NoError(t, err)
	require.True(t, ok)
	require.NotContains(t, string(raw), "PRIVATE KEY")

	var rec domain.StoredKeyRecord
	require.NoError(t, json.Unmarshal(raw, &rec))
	require.Equal(t, 1, rec.V)
	require.Equal(t, "sk_1", rec.KeyID)

	got, err := v.Recover(ctx, sess)
	require.NoError(t, err)
	require.Equal(t, keys.PrivateKey, got.PrivateKey)
	require.Equal(t, keys.CacheKey, got.CacheKey)
	require.EqualValues(t, 1, sess.Exchange.(*fixedExchange).establish.Load())
}

func TestVault_Exists(t *testing.T) {
	v, _, sess := setup(t)
	ctx := context.Background()

	ok, err := v.Exists(ctx, sess.User)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, v.Store(ctx, sess, testKeys(t)))
	ok, err = v.Exists(ctx, sess.User)
	require.NoError(t, err)
	require.True(t, ok)
	require.Zero(t, sess.Exchange.(*fixedExchange).establish.Load())
}

func TestVault_Recover_NotFound(t *testing.T) {
	v, _, sess := setup(t)
	_, err := v.Recover(context.Background(), sess)
	require.ErrorIs(t, err, vault.ErrNotFound)
}

func TestVault_Recover_CorruptField_ReturnsNeither(t *testing.T) {
	cases := map[string]func(rec *domain.StoredKeyRecord){
		"private key": func(rec *domain.StoredKeyRecord) {
			raw, _ := crypto.UnB64(rec.EncryptedPrivateKey)
			raw[len(raw)-1] ^= 0x01
			rec.EncryptedPrivateKey = crypto.B64(raw)
		},
		"cache key": func(rec *domain.StoredKeyRecord) {
			raw, _ := crypto.UnB64(rec.EncryptedCacheKey)
			raw[len(raw)-1] ^= 0x01
			rec.EncryptedCacheKey = crypto.B64(raw)
		},
		"swapped fields": func(rec *domain.StoredKeyRecord) {
			rec.EncryptedPrivateKey, rec.EncryptedCacheKey = rec.EncryptedCacheKey, rec.EncryptedPrivateKey
		},
		"version": func(rec *domain.StoredKeyRecord) { rec.V = 9 },
	}
	for name, corrupt := range cases {
		t.Run(name, func(t *testing.T) {
			v, kv, sess := setup(t)
			ctx := context.Background()
			require.NoError(t, v.Store(ctx, sess, testKeys(t)))

			raw, _, err := kv.Get(ctx, sess.User.StorageName())
			require.NoError(t, err)
			var rec domain.StoredKeyRecord
			require.NoError(t, json.Unmarshal(raw, &rec))
			corrupt(&rec)
			raw, err = json.Marshal(rec)
			require.NoError(t, err)
			require.NoError(t, kv.Put(ctx, sess.User.StorageName(), raw))

			got, err := v.Recover(ctx, sess)
			require.True(t, errors.Is(err, vault.ErrKeyRecoveryFailed))
			require.Empty(t, got.PrivateKey)
			require.Empty(t, got.CacheKey)
		})
	}
}

func TestVault_Recover_DifferentSessionKey(t *testing.T) {
	v, _, sess := setup(t)
	ctx := context.Background()
	require.NoError(t, v.Store(ctx, sess, testKeys(t)))

	other, err := crypto.GenerateKey()
	require.NoError(t, err)
	sess.Exchange = &fixedExchange{key: other}
	_, err = v.Recover(ctx, sess)
	require.True(t, errors.Is(err, vault.ErrKeyRecoveryFailed))
	require.True(t, errors.Is(err, crypto.ErrAuthentication))
}

func TestVault_Recover_HandshakeFailure(t *testing.T) {
	v, _, sess := setup(t)
	ctx := context.Background()
	require.NoError(t, v.Store(ctx, sess, testKeys(t)))

	boom := errors.New("server unreachable")
	sess.Exchange.(*fixedExchange).failReason = boom
	_, err := v.Recover(ctx, sess)
	require.True(t, errors.Is(err, boom))
	require.False(t, errors.Is(err, vault.ErrKeyRecoveryFailed))
}

func TestVault_Store_RejectsInvalidKeys(t *testing.T) {
	v, _, sess := setup(t)
	keys := testKeys(t)

	err := v.Store(context.Background(), sess, domain.UserKeys{PrivateKey: keys.PrivateKey, CacheKey: []byte("short")})
	require.True(t, errors.Is(err, vault.ErrInvalidKeys))
	err = v.Store(context.Background(), sess, domain.UserKeys{PrivateKey: "junk", CacheKey: keys.CacheKey})
	require.True(t, errors.Is(err, vault.ErrInvalidKeys))
}

func TestVault_RemoveAndClearAll(t *testing.T) {
	v, kv, sess := setup(t)
	ctx := context.Background()
	keys := testKeys(t)

	bob := &domain.Session{User: domain.Identity{Type: domain.UserClub, ID: "chess"}, Exchange: sess.Exchange}
	require.NoError(t, v.Store(ctx, sess, keys))
	require.NoError(t, v.Store(ctx, bob, keys))
	require.NoError(t, kv.Put(ctx, "unrelated", []byte("keep")))

	require.NoError(t, v.Remove(ctx, sess.User))
	_, err := v.Recover(ctx, sess)
	require.ErrorIs(t, err, vault.ErrNotFound)
	_, err = v.Recover(ctx, bob)
	require.NoError(t, err)

	require.NoError(t, v.ClearAll(ctx))
	_, err = v.Recover(ctx, bob)
	require.ErrorIs(t, err, vault.ErrNotFound)
	_, ok, err := kv.Get(ctx, "unrelated")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestVault_ConcurrentStoreRecover(t *testing.T) {
	v, _, sess := setup(t)
	ctx := context.Background()
	keys := testKeys(t)
	require.NoError(t, v.Store(ctx, sess, keys))

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			errs <- v.Store(ctx, sess, keys)
		}()
		go func() {
			defer wg.Done()
			got, err := v.Recover(ctx, sess)
			if err == nil && got.PrivateKey != keys.PrivateKey {
				err = errors.New("recovered a different private key")
			}
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}
}
