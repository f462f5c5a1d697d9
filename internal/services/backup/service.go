package backup

import (
	"context"
	"crypto/sha256"
	"crypto/x509"
	"encoding/hex"
	"encoding/json"

	"github.com/pkg/errors"

	"konnect/internal/crypto"
	"konnect/internal/domain"
	"konnect/internal/logger"
	"konnect/internal/metrics"
)

// Options configures a Service.
type Options struct {
	// RSABits is the size of the recovery key pair; zero means the default.
	RSABits int
	Logger  logger.Logger
}

// Service creates and restores server-held key backups.
type Service struct {
	store domain.BackupStore
	vault domain.KeyVault
	bits  int
	log   logger.Logger
}

// New returns a backup service.
func New(store domain.BackupStore, vault domain.KeyVault, opts Options) *Service {
	return &Service{
		store: store,
		vault: vault,
		bits:  opts.RSABits,
		log:   logger.OrDiscard(opts.Logger),
	}
}

// sealedKeys is the plaintext of KeyBackup.Sealed.
type sealedKeys struct {
	PrivateKey string `json:"private_key"`
	CacheKey   []byte `json:"cache_key"`
}

// Create seals the signed-in keys of sess to a fresh recovery key pair and
// uploads the result, replacing any earlier backup. It returns the PEM
// recovery private key; it is not stored anywhere else.
func (s *Service) Create(ctx context.Context, sess *domain.Session) (recoveryKey string, err error) {
	defer func() { metrics.VaultOperations.WithLabelValues("backup", metrics.Result(err)).Inc() }()

	if !sess.LoggedIn() {
		return "", ErrNotLoggedIn
	}
	rk, err := crypto.GenerateKeyPairContext(ctx, s.bits)
	if err != nil {
		return "", errors.Wrap(err, "recovery key pair")
	}
	hash, err := recoveryKeyHash(rk.PublicKey)
	if err != nil {
		return "", err
	}

	raw, err := json.Marshal(sealedKeys{PrivateKey: sess.Keys.PrivateKey, CacheKey: sess.Keys.CacheKey})
	if err != nil {
		return "", errors.Wrap(err, "encode keys")
	}
	sealed, err := crypto.SealFor(raw, rk.PublicKey)
	crypto.Wipe(raw)
	if err != nil {
		return "", errors.Wrap(err, "seal keys")
	}

	b := domain.KeyBackup{V: domain.KeyBackupVersion, RecoveryKeyHash: hash, Sealed: sealed}
	if err := s.store.PutBackup(ctx, b); err != nil {
		return "", errors.Wrap(err, "upload key backup")
	}
	s.log.WithField("user", sess.User.String()).Infof("uploaded key backup for recovery key %s", hash[:16])
	return rk.PrivateKey, nil
}

// Restore downloads the backup of sess.User, opens it with recoveryKey,
// stores the keys in the vault and signs sess in with them. The existing
// vault record of the user, if any, is replaced.
func (s *Service) Restore(ctx context.Context, sess *domain.Session, recoveryKey string) (err error) {
	defer func() { metrics.VaultOperations.WithLabelValues("restore", metrics.Result(err)).Inc() }()

	pub, err := crypto.PublicKeyOf(recoveryKey)
	if err != nil {
		return errors.Wrap(err, "recovery key")
	}
	hash, err := recoveryKeyHash(pub)
	if err != nil {
		return err
	}

	b, err := s.store.GetBackup(ctx)
	if errors.Is(err, domain.ErrNotFound) {
		return ErrNoBackup
	}
	if err != nil {
		return errors.Wrap(err, "download key backup")
	}
	if b.V != domain.KeyBackupVersion {
		return errors.Errorf("unsupported backup version %d", b.V)
	}
	if b.RecoveryKeyHash != hash {
		return ErrWrongRecoveryKey
	}

	raw, err := crypto.OpenFrom(b.Sealed, recoveryKey)
	if err != nil {
		return errors.Wrap(err, "open key backup")
	}
	var sk sealedKeys
	err = json.Unmarshal(raw, &sk)
	crypto.Wipe(raw)
	if err != nil {
		return errors.Wrap(err, "decode key backup")
	}

	keys := domain.UserKeys{PrivateKey: sk.PrivateKey, CacheKey: sk.CacheKey}
	if err := s.vault.Store(ctx, sess, keys); err != nil {
		crypto.Wipe(keys.CacheKey)
		return errors.Wrap(err, "store restored keys")
	}
	crypto.Wipe(sess.Keys.CacheKey)
	sess.Keys = keys
	s.log.WithField("user", sess.User.String()).Infof("restored keys from backup")
	return nil
}

// recoveryKeyHash is the hex SHA-256 of the PKIX DER of a recovery public key.
func recoveryKeyHash(publicKey string) (string, error) {
	p, err := crypto.ParsePublicKey(publicKey)
	if err != nil {
		return "", err
	}
	der, err := x509.MarshalPKIXPublicKey(p)
	if err != nil {
		return "", errors.Wrap(crypto.ErrInvalidKey, err.Error())
	}
	sum := sha256.Sum256(der)
	return hex.EncodeToString(sum[:]), nil
}
