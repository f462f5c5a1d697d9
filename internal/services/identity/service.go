package identity

import (
	"context"

	"github.com/pkg/errors"

	"konnect/internal/crypto"
	"konnect/internal/domain"
	"konnect/internal/logger"
)

var (
	// ErrNotLoggedIn is returned by operations that need recovered keys.
	ErrNotLoggedIn = errors.New("not logged in")
	// ErrIdentityExists is returned by Create when the device already holds
	// keys for the user. Use Replace to discard them.
	ErrIdentityExists = errors.New("identity already exists on this device")
)

// Options configures a Service.
type Options struct {
	// RSABits is the durable key size; zero means the default.
	RSABits int
	Logger  logger.Logger
}

// Service manages durable keys using the vault and the key server.
//
// The durable identity contains:
//   - an RSA key pair; incoming message keys are wrapped to its public half.
//   - a 32-byte cache key protecting the local message history.
type Service struct {
	keys  domain.KeyServer
	vault domain.KeyVault
	bits  int
	log   logger.Logger
}

// New returns an identity service.
func New(keys domain.KeyServer, vault domain.KeyVault, opts Options) *Service {
	return &Service{
		keys:  keys,
		vault: vault,
		bits:  opts.RSABits,
		log:   logger.OrDiscard(opts.Logger),
	}
}

// Create generates a new durable identity for sess.User, stores it in the
// vault, publishes its public key and signs sess in with it. It fails with
// ErrIdentityExists if the vault already has a record for the user.
//
// The record is stored before the key is published, so a failed publish can
// be repeated with Register without losing the private key.
func (s *Service) Create(ctx context.Context, sess *domain.Session) (domain.KeyPair, error) {
	ok, err := s.vault.Exists(ctx, sess.User)
	if err != nil {
		return domain.KeyPair{}, err
	}
	if ok {
		return domain.KeyPair{}, errors.Wrap(ErrIdentityExists, sess.User.String())
	}
	return s.create(ctx, sess)
}

// Replace is Create without the existence check. Messages already queued
// for the old public key can no longer be opened.
func (s *Service) Replace(ctx context.Context, sess *domain.Session) (domain.KeyPair, error) {
	kp, err := s.create(ctx, sess)
	if err == nil {
		s.log.WithField("user", sess.User.String()).Warnf("replaced existing identity")
	}
	return kp, err
}

func (s *Service) create(ctx context.Context, sess *domain.Session) (domain.KeyPair, error) {
	kp, err := crypto.GenerateKeyPairContext(ctx, s.bits)
	if err != nil {
		return domain.KeyPair{}, err
	}
	cacheKey, err := crypto.GenerateKey()
	if err != nil {
		return domain.KeyPair{}, err
	}
	keys := domain.UserKeys{PrivateKey: kp.PrivateKey, CacheKey: cacheKey}
	if err := s.vault.Store(ctx, sess, keys); err != nil {
		crypto.Wipe(cacheKey)
		return domain.KeyPair{}, errors.Wrap(err, "store new identity")
	}
	sess.Keys = keys

	if err := s.keys.RegisterPublicKey(ctx, kp.PublicKey); err != nil {
		return kp, errors.Wrap(err, "publish public key")
	}
	s.log.WithField("user", sess.User.String()).Infof("created identity")
	return kp, nil
}

// Register publishes the public half of the signed-in key again.
func (s *Service) Register(ctx context.Context, sess *domain.Session) error {
	pub, err := s.PublicKey(sess)
	if err != nil {
		return err
	}
	if err := s.keys.RegisterPublicKey(ctx, pub); err != nil {
		return errors.Wrap(err, "publish public key")
	}
	return nil
}

// Login recovers the durable keys of sess.User into sess. On failure sess
// stays signed out.
func (s *Service) Login(ctx context.Context, sess *domain.Session) error {
	keys, err := s.vault.Recover(ctx, sess)
	if err != nil {
		return err
	}
	crypto.Wipe(sess.Keys.CacheKey)
	sess.Keys = keys
	s.log.WithField("user", sess.User.String()).Debugf("logged in")
	return nil
}

// Logout wipes the recovered keys and expires the session key.
func (s *Service) Logout(sess *domain.Session) {
	crypto.Wipe(sess.Keys.CacheKey)
	sess.Keys = domain.UserKeys{}
	if sess.Exchange != nil {
		sess.Exchange.Invalidate()
	}
}

// PublicKey returns the PEM public key of the signed-in identity.
func (s *Service) PublicKey(sess *domain.Session) (string, error) {
	if !sess.LoggedIn() {
		return "", ErrNotLoggedIn
	}
	return crypto.PublicKeyOf(sess.Keys.PrivateKey)
}

// Fingerprint returns the short fingerprint of the signed-in public key.
func (s *Service) Fingerprint(sess *domain.Session) (string, error) {
	pub, err := s.PublicKey(sess)
	if err != nil {
		return "", err
	}
	return crypto.Fingerprint(pub)
}

// Compile-time assertion that Service implements domain.IdentityService.
var _ domain.IdentityService = (*Service)(nil)
