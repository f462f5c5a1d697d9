package message

import (
	"context"

	lru "github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"

	"konnect/internal/crypto"
	"konnect/internal/domain"
	"konnect/internal/logger"
)

// DefaultKeyCacheSize is the number of recipient public keys kept in memory.
const DefaultKeyCacheSize = 512

// Service sends and receives messages over the transport.
//
// High-level flow:
//   - Send: resolve recipient public keys (cached), fan the message out with
//     the Encoder, publish every envelope in one batch.
//   - Receive: fetch envelopes, open them in order, store plaintexts in the
//     local cache, then ack processed envelopes.
type Service struct {
	keys      domain.KeyServer
	transport domain.MessageTransport
	cache     domain.MessageCache
	encoder   Encoder
	keyCache  *lru.Cache
	log       logger.Logger
}

// New constructs a message Service. cache may be nil, in which case received
// messages are returned but not stored.
func New(
	keys domain.KeyServer,
	transport domain.MessageTransport,
	cache domain.MessageCache,
	log logger.Logger,
) (*Service, error) {
	kc, err := lru.New(DefaultKeyCacheSize)
	if err != nil {
		return nil, errors.Wrap(err, "recipient key cache")
	}
	return &Service{
		keys:      keys,
		transport: transport,
		cache:     cache,
		keyCache:  kc,
		log:       logger.OrDiscard(log),
	}, nil
}

// SendDirect encrypts plaintext to one member and publishes its envelope.
func (s *Service) SendDirect(
	ctx context.Context,
	sess *domain.Session,
	to domain.Identity,
	plaintext []byte,
) error {
	if to == sess.User {
		return ErrNoRecipients
	}
	pub, err := s.recipientKey(ctx, to)
	if err != nil {
		return err
	}
	return s.send(ctx, sess, Outgoing{
		Sender:     sess.User,
		Recipients: []domain.Recipient{{Identity: to, PublicKey: pub}},
		Plaintext:  plaintext,
	})
}

// SendGroup encrypts plaintext to every member of group except the sender.
// If any member lacks a public key nothing is published.
func (s *Service) SendGroup(
	ctx context.Context,
	sess *domain.Session,
	group domain.GroupID,
	plaintext []byte,
) error {
	members, err := s.keys.GroupKeys(ctx, group)
	if err != nil {
		return errors.Wrapf(err, "resolve keys of group %s", group)
	}
	for _, m := range members {
		if m.PublicKey != "" {
			s.keyCache.Add(m.Identity.String(), m.PublicKey)
		}
	}
	return s.send(ctx, sess, Outgoing{
		Sender:     sess.User,
		Group:      group,
		Recipients: members,
		Plaintext:  plaintext,
	})
}

func (s *Service) send(ctx context.Context, sess *domain.Session, msg Outgoing) error {
	sk, err := sess.Exchange.Current(ctx)
	if err != nil {
		return err
	}
	defer crypto.Wipe(sk.Key)

	envs, err := s.encoder.Encode(ctx, sk.Key, msg)
	if err != nil {
		var rke *RecipientKeyError
		if errors.As(err, &rke) {
			s.keyCache.Remove(rke.Recipient)
		}
		return err
	}
	if err := s.transport.Publish(ctx, envs); err != nil {
		return errors.Wrapf(err, "publish %d envelopes", len(envs))
	}
	s.log.WithField("user", sess.User.String()).Debugf("published %d envelopes", len(envs))
	return nil
}

// Receive fetches pending envelopes and decrypts them.
//
// Envelopes are processed in order. One that fails to open, or is addressed
// to someone else, is dropped: it is acked with the rest but never cached or
// returned, and the returned *ReceiveError lists it. Processing stops only
// when the local cache fails; that envelope and everything after it stay
// queued for the next call.
func (s *Service) Receive(
	ctx context.Context,
	sess *domain.Session,
	limit int,
) ([]domain.DecryptedMessage, error) {
	if !sess.LoggedIn() {
		return nil, ErrNotLoggedIn
	}
	envs, err := s.transport.Fetch(ctx, limit)
	if err != nil {
		return nil, errors.Wrap(err, "fetch envelopes")
	}
	if len(envs) == 0 {
		return nil, nil
	}
	sk, err := sess.Exchange.Current(ctx)
	if err != nil {
		return nil, err
	}
	defer crypto.Wipe(sk.Key)

	log := s.log.WithField("user", sess.User.String())
	out := make([]domain.DecryptedMessage, 0, len(envs))
	var (
		failed    []EnvelopeError
		cacheErr  error
		processed int
	)
	for _, env := range envs {
		m, err := Open(env, sess.Keys.PrivateKey, sk.Key)
		if err == nil && m.To != sess.User {
			err = errors.Wrapf(ErrMisrouted, "addressed to %s", m.To)
		}
		if err != nil {
			failed = append(failed, EnvelopeError{ID: env.ID, Err: err})
			log.Warnf("dropping envelope %s: %v", env.ID, err)
			processed++
			continue
		}
		if s.cache != nil {
			if err := s.cache.Put(sess.Keys.CacheKey, m); err != nil {
				cacheErr = errors.Wrapf(err, "cache envelope %s", env.ID)
				break
			}
		}
		out = append(out, m)
		processed++
	}

	if processed > 0 {
		if err := s.transport.Ack(ctx, processed); err != nil {
			return out, errors.Wrapf(err, "ack %d envelopes", processed)
		}
	}
	if cacheErr != nil {
		log.Warnf("receive stopped after %d envelopes: %v", processed, cacheErr)
		return out, cacheErr
	}
	if len(failed) > 0 {
		return out, &ReceiveError{Failed: failed}
	}
	return out, nil
}

// History returns cached messages of one conversation, oldest first.
func (s *Service) History(sess *domain.Session, conversation string, limit int) ([]domain.DecryptedMessage, error) {
	if !sess.LoggedIn() {
		return nil, ErrNotLoggedIn
	}
	if s.cache == nil {
		return nil, nil
	}
	return s.cache.List(sess.Keys.CacheKey, sess.User, conversation, limit)
}

func (s *Service) recipientKey(ctx context.Context, who domain.Identity) (string, error) {
	if v, ok := s.keyCache.Get(who.String()); ok {
		return v.(string), nil
	}
	pub, err := s.keys.RecipientKey(ctx, who)
	if err != nil {
		return "", &RecipientKeyError{Recipient: who.String(), Err: err}
	}
	if pub == "" {
		return "", &RecipientKeyError{Recipient: who.String()}
	}
	s.keyCache.Add(who.String(), pub)
	return pub, nil
}

// Compile-time assertion that Service implements domain.MessageService.
var _ domain.MessageService = (*Service)(nil)
