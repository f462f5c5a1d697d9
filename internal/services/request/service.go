package request

import (
	"bytes"
	"context"
	"encoding/json"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/sync/singleflight"

	"konnect/internal/crypto"
	"konnect/internal/domain"
	"konnect/internal/logger"
	"konnect/internal/metrics"
)

// Options configures a Service.
type Options struct {
	// RSABits is the size of the response key pair; zero means the default.
	RSABits int
	Logger  logger.Logger
}

// Service implements domain.RequestService over an APIClient.
type Service struct {
	api  domain.APIClient
	bits int
	log  logger.Logger

	generate func(context.Context, int) (domain.KeyPair, error)
	flight   singleflight.Group

	mu       sync.Mutex
	respKeys *domain.KeyPair
}

// New constructs a request Service.
func New(api domain.APIClient, opts Options) *Service {
	return &Service{
		api:      api,
		bits:     opts.RSABits,
		log:      logger.OrDiscard(opts.Logger),
		generate: crypto.GenerateKeyPairContext,
	}
}

// Do seals body, posts it to path and decodes the (possibly enveloped)
// response into out. out may be nil.
//
// If the server no longer knows the key id the body was wrapped to, the
// cached server key is dropped and the call is retried once with a fresh one.
func (s *Service) Do(ctx context.Context, sess *domain.Session, path string, body any, out any) error {
	err := s.do(ctx, sess, path, body, out)
	if !errors.Is(err, domain.ErrUnknownKeyID) {
		return err
	}
	s.log.WithField("path", path).Infof("server key id rejected, refreshing server key")
	sess.Exchange.ForgetServerKey()
	err = s.do(ctx, sess, path, body, out)
	if errors.Is(err, domain.ErrUnknownKeyID) {
		return errors.Wrap(ErrStaleServerKey, err.Error())
	}
	return err
}

func (s *Service) do(ctx context.Context, sess *domain.Session, path string, body any, out any) error {
	req, err := s.Seal(ctx, sess, body)
	if err != nil {
		return err
	}
	raw, err := s.api.Call(ctx, path, req)
	if err != nil {
		return errors.Wrapf(err, "call %s", path)
	}
	return s.Open(raw, out)
}

// Seal builds the encrypted form of body for the server's current key.
func (s *Service) Seal(ctx context.Context, sess *domain.Session, body any) (domain.EncryptedRequest, error) {
	server, err := sess.Exchange.ServerPublicKey(ctx)
	if err != nil {
		return domain.EncryptedRequest{}, errors.Wrap(err, "server public key")
	}
	resp, err := s.responseKeys(ctx)
	if err != nil {
		return domain.EncryptedRequest{}, err
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return domain.EncryptedRequest{}, errors.Wrap(err, "encode request body")
	}

	k, err := crypto.GenerateKey()
	if err != nil {
		return domain.EncryptedRequest{}, err
	}
	defer crypto.Wipe(k)

	data, err := crypto.SealToken(k, raw, nil)
	if err != nil {
		return domain.EncryptedRequest{}, errors.Wrap(err, "seal request body")
	}
	wrapped, err := crypto.Wrap(k, server.PublicKey)
	if err != nil {
		return domain.EncryptedRequest{}, errors.Wrap(err, "wrap request key")
	}
	metrics.EnvelopesEncrypted.Inc()
	return domain.EncryptedRequest{
		Key:       crypto.B64(wrapped),
		KeyID:     server.KeyID,
		Data:      data,
		PublicKey: resp.PublicKey,
	}, nil
}

// Open decodes a response into out. A JSON object with a "key" field is
// opened with the response private key first; anything else is decoded as is.
func (s *Service) Open(raw json.RawMessage, out any) error {
	plain, err := s.open(raw)
	if err != nil {
		metrics.DecryptFailures.WithLabelValues("response").Inc()
		return err
	}
	if out == nil || len(bytes.TrimSpace(plain)) == 0 {
		return nil
	}
	if err := json.Unmarshal(plain, out); err != nil {
		return errors.Wrap(err, "decode response body")
	}
	return nil
}

func (s *Service) open(raw json.RawMessage) ([]byte, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		// Not an object, so not an envelope.
		return raw, nil
	}
	if _, ok := fields["key"]; !ok {
		return raw, nil
	}

	var env domain.EncryptedResponse
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, errors.Wrap(crypto.ErrMalformedEnvelope, err.Error())
	}
	s.mu.Lock()
	resp := s.respKeys
	s.mu.Unlock()
	if resp == nil {
		return nil, errors.Wrap(crypto.ErrKeyUnwrap, "enveloped response without a response key")
	}

	wrapped, err := crypto.UnB64(env.Key)
	if err != nil {
		return nil, err
	}
	k, err := crypto.Unwrap(wrapped, resp.PrivateKey)
	if err != nil {
		return nil, err
	}
	defer crypto.Wipe(k)
	return crypto.OpenToken(k, env.Data, nil)
}

// responseKeys returns the response key pair, generating it on first use.
// Concurrent first callers share one generation, which runs without s.mu
// held and is not cut short when a caller gives up waiting.
func (s *Service) responseKeys(ctx context.Context) (domain.KeyPair, error) {
	s.mu.Lock()
	kp := s.respKeys
	s.mu.Unlock()
	if kp != nil {
		return *kp, nil
	}

	ch := s.flight.DoChan("response", func() (any, error) {
		kp, err := s.generate(context.WithoutCancel(ctx), s.bits)
		if err != nil {
			return nil, errors.Wrap(err, "response key pair")
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.respKeys == nil {
			s.respKeys = &kp
		}
		return *s.respKeys, nil
	})
	select {
	case <-ctx.Done():
		return domain.KeyPair{}, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return domain.KeyPair{}, r.Err
		}
		return r.Val.(domain.KeyPair), nil
	}
}

// SealFields seals the named fields of obj under the session key of sess.
func (s *Service) SealFields(ctx context.Context, sess *domain.Session, obj map[string]any, fields ...string) (map[string]any, error) {
	sk, err := sess.Exchange.Current(ctx)
	if err != nil {
		return nil, err
	}
	defer crypto.Wipe(sk.Key)
	return SealFields(sk.Key, obj, fields...)
}

// OpenFields opens the named fields of obj under the session key of sess.
func (s *Service) OpenFields(ctx context.Context, sess *domain.Session, obj map[string]any, fields ...string) (map[string]any, error) {
	sk, err := sess.Exchange.Current(ctx)
	if err != nil {
		return nil, err
	}
	defer crypto.Wipe(sk.Key)
	return OpenFields(sk.Key, obj, fields...)
}

// Compile-time assertion that Service implements domain.RequestService.
var _ domain.RequestService = (*Service)(nil)
