package vault

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"

	"konnect/internal/crypto"
	"konnect/internal/domain"
	"konnect/internal/logger"
	"konnect/internal/metrics"
)

const (
	recordKeyInfo = "konnect vault|"

	fieldPrivateKey = "encrypted_private_key"
	fieldCacheKey   = "encrypted_cache_key"
)

// Service implements domain.KeyVault over a KVStore.
type Service struct {
	kv    domain.KVStore
	log   logger.Logger
	locks userLocks
}

// New constructs a vault Service.
func New(kv domain.KVStore, log logger.Logger) *Service {
	return &Service{kv: kv, log: logger.OrDiscard(log)}
}

// Store seals keys under the current session key and writes them for
// sess.User, replacing any previous record.
func (s *Service) Store(ctx context.Context, sess *domain.Session, keys domain.UserKeys) (err error) {
	defer func() { metrics.VaultOperations.WithLabelValues("store", metrics.Result(err)).Inc() }()

	if err := validate(keys); err != nil {
		return err
	}
	name := sess.User.StorageName()
	unlock := s.locks.lock(name)
	defer unlock()

	sk, err := sess.Exchange.Current(ctx)
	if err != nil {
		return errors.Wrap(err, "session key for vault")
	}
	defer crypto.Wipe(sk.Key)

	rk, err := crypto.DeriveKey(sk.Key, recordKeyInfo+name)
	if err != nil {
		return err
	}
	defer crypto.Wipe(rk)

	encPriv, err := crypto.SealToken(rk, []byte(keys.PrivateKey), []byte(fieldPrivateKey))
	if err != nil {
		return errors.Wrap(err, "seal private key")
	}
	encCache, err := crypto.SealToken(rk, keys.CacheKey, []byte(fieldCacheKey))
	if err != nil {
		return errors.Wrap(err, "seal cache key")
	}

	raw, err := json.Marshal(domain.StoredKeyRecord{
		V:                   domain.StoredKeyRecordVersion,
		KeyID:               sk.KeyID,
		EncryptedPrivateKey: encPriv,
		EncryptedCacheKey:   encCache,
	})
	if err != nil {
		return errors.Wrap(err, "encode key record")
	}
	if err := s.kv.Put(ctx, name, raw); err != nil {
		return errors.Wrapf(err, "write %s", name)
	}
	s.log.WithField("user", sess.User.String()).Debugf("stored keys under session key %s", sk.KeyID)
	return nil
}

// Recover reads the record of sess.User, runs a fresh key exchange and
// opens both secrets. Either both are returned or neither.
func (s *Service) Recover(ctx context.Context, sess *domain.Session) (keys domain.UserKeys, err error) {
	defer func() { metrics.VaultOperations.WithLabelValues("recover", metrics.Result(err)).Inc() }()

	name := sess.User.StorageName()
	unlock := s.locks.lock(name)
	defer unlock()

	raw, ok, err := s.kv.Get(ctx, name)
	if err != nil {
		return domain.UserKeys{}, errors.Wrapf(err, "read %s", name)
	}
	if !ok {
		return domain.UserKeys{}, ErrNotFound
	}
	var rec domain.StoredKeyRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return domain.UserKeys{}, &RecoveryError{Field: "record", Err: err}
	}
	if rec.V != domain.StoredKeyRecordVersion {
		return domain.UserKeys{}, &RecoveryError{Field: "record", Err: errors.Errorf("unsupported version %d", rec.V)}
	}

	sk, err := sess.Exchange.Establish(ctx)
	if err != nil {
		return domain.UserKeys{}, errors.Wrap(err, "session key for vault")
	}
	defer crypto.Wipe(sk.Key)

	rk, err := crypto.DeriveKey(sk.Key, recordKeyInfo+name)
	if err != nil {
		return domain.UserKeys{}, err
	}
	defer crypto.Wipe(rk)

	priv, errPriv := crypto.OpenToken(rk, rec.EncryptedPrivateKey, []byte(fieldPrivateKey))
	cache, errCache := crypto.OpenToken(rk, rec.EncryptedCacheKey, []byte(fieldCacheKey))
	switch {
	case errPriv != nil:
		crypto.Wipe(priv, cache)
		return domain.UserKeys{}, &RecoveryError{Field: fieldPrivateKey, Err: errPriv}
	case errCache != nil:
		crypto.Wipe(priv, cache)
		return domain.UserKeys{}, &RecoveryError{Field: fieldCacheKey, Err: errCache}
	}

	keys = domain.UserKeys{PrivateKey: string(priv), CacheKey: cache}
	crypto.Wipe(priv)
	if err := validate(keys); err != nil {
		crypto.Wipe(cache)
		return domain.UserKeys{}, &RecoveryError{Field: "record", Err: err}
	}
	s.log.WithField("user", sess.User.String()).Debugf("recovered keys stored under %s", rec.KeyID)
	return keys, nil
}

// Exists reports whether a record for user is stored on the device. The
// record is not opened.
func (s *Service) Exists(ctx context.Context, user domain.Identity) (bool, error) {
	name := user.StorageName()
	unlock := s.locks.lock(name)
	defer unlock()
	_, ok, err := s.kv.Get(ctx, name)
	if err != nil {
		return false, errors.Wrapf(err, "read %s", name)
	}
	return ok, nil
}

// Remove deletes the record of user. A missing record is not an error.
func (s *Service) Remove(ctx context.Context, user domain.Identity) (err error) {
	defer func() { metrics.VaultOperations.WithLabelValues("remove", metrics.Result(err)).Inc() }()

	name := user.StorageName()
	unlock := s.locks.lock(name)
	defer unlock()
	if err := s.kv.Delete(ctx, name); err != nil {
		return errors.Wrapf(err, "delete %s", name)
	}
	return nil
}

// ClearAll deletes every vault record on the device.
func (s *Service) ClearAll(ctx context.Context) (err error) {
	defer func() { metrics.VaultOperations.WithLabelValues("clear", metrics.Result(err)).Inc() }()

	names, err := s.kv.List(ctx, domain.StoredKeyPrefix)
	if err != nil {
		return errors.Wrap(err, "list stored keys")
	}
	for _, name := range names {
		unlock := s.locks.lock(name)
		err := s.kv.Delete(ctx, name)
		unlock()
		if err != nil {
			return errors.Wrapf(err, "delete %s", name)
		}
	}
	s.log.Infof("cleared %d stored key records", len(names))
	return nil
}

func validate(keys domain.UserKeys) error {
	if len(keys.CacheKey) != crypto.KeySize {
		return errors.Wrapf(ErrInvalidKeys, "cache key is %d bytes", len(keys.CacheKey))
	}
	if _, err := crypto.ParsePrivateKey(keys.PrivateKey); err != nil {
		return errors.Wrap(ErrInvalidKeys, err.Error())
	}
	return nil
}

// Compile-time assertion that Service implements domain.KeyVault.
var _ domain.KeyVault = (*Service)(nil)
