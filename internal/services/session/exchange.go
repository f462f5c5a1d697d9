package session

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/singleflight"

	"konnect/internal/crypto"
	"konnect/internal/domain"
	"konnect/internal/logger"
	"konnect/internal/metrics"
)

const (
	// DefaultTTL bounds how long an established key is served from memory.
	DefaultTTL = 30 * time.Minute
	// DefaultHandshakeTimeout bounds one handshake attempt regardless of
	// how long its callers are willing to wait.
	DefaultHandshakeTimeout = 30 * time.Second

	flightHandshake = "handshake"
	flightServerKey = "server-key"
)

// Options tune an Exchange. Zero values select defaults.
type Options struct {
	RSABits          int
	TTL              time.Duration
	HandshakeTimeout time.Duration
	Now              func() time.Time
	Logger           logger.Logger
}

// attempt is one in-flight handshake shared by every caller waiting on it.
// It runs under its own context, cancelled once no caller is left waiting.
// Only the attempt whose gen matches Exchange.gen may change the state.
type attempt struct {
	ctx     context.Context
	cancel  context.CancelFunc
	gen     uint64
	waiters int
}

func (a *attempt) flightKey() string {
	return flightHandshake + "-" + strconv.FormatUint(a.gen, 10)
}

// Exchange performs the session key handshake and caches its result.
//
// State transitions:
//   - Uninitialized -> KeyRequested when a handshake starts.
//   - KeyRequested -> Established once the wrapped key is unwrapped.
//   - KeyRequested -> Expired when the wrapped key does not unwrap.
//   - KeyRequested -> Uninitialized on transport failure, timeout or cancel.
//   - Established -> Expired after TTL or Invalidate.
type Exchange struct {
	server  domain.KeyServer
	bits    int
	ttl     time.Duration
	timeout time.Duration
	now     func() time.Time
	log     logger.Logger

	flight singleflight.Group

	mu        sync.Mutex
	state     domain.SessionState
	key       *domain.SessionKey
	serverKey *domain.ServerPublicKey
	inflight  *attempt
	gen       uint64
	closed    bool
}

// New constructs an Exchange against the given key server.
func New(server domain.KeyServer, opts Options) *Exchange {
	e := &Exchange{
		server:  server,
		bits:    opts.RSABits,
		ttl:     opts.TTL,
		timeout: opts.HandshakeTimeout,
		now:     opts.Now,
		log:     logger.OrDiscard(opts.Logger),
		state:   domain.StateUninitialized,
	}
	if e.timeout <= 0 {
		e.timeout = DefaultHandshakeTimeout
	}
	if e.bits == 0 {
		e.bits = crypto.DefaultRSABits
	}
	if e.ttl <= 0 {
		e.ttl = DefaultTTL
	}
	if e.now == nil {
		e.now = time.Now
	}
	return e
}

// State returns the current lifecycle state.
func (e *Exchange) State() domain.SessionState {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.expireIfStaleLocked()
	return e.state
}

// Current returns the established session key, performing a handshake when
// there is none or the cached one has expired. The returned key is a copy.
func (e *Exchange) Current(ctx context.Context) (domain.SessionKey, error) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return domain.SessionKey{}, ErrClosed
	}
	e.expireIfStaleLocked()
	if e.state == domain.StateEstablished && e.key != nil {
		k := cloneKey(*e.key)
		e.mu.Unlock()
		return k, nil
	}
	e.mu.Unlock()
	return e.handshake(ctx)
}

// Establish runs a fresh handshake, replacing any cached key. Concurrent
// callers join the attempt already in flight.
func (e *Exchange) Establish(ctx context.Context) (domain.SessionKey, error) {
	e.mu.Lock()
	closed := e.closed
	e.mu.Unlock()
	if closed {
		return domain.SessionKey{}, ErrClosed
	}
	return e.handshake(ctx)
}

// Invalidate expires the cached key so the next Current performs a handshake.
func (e *Exchange) Invalidate() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == domain.StateEstablished {
		e.dropKeyLocked()
		e.state = domain.StateExpired
	}
}

// Close wipes the cached key and refuses further handshakes.
func (e *Exchange) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.dropKeyLocked()
	e.serverKey = nil
	e.state = domain.StateUninitialized
	e.closed = true
}

// ServerPublicKey returns the server's current public key, fetching it once
// and caching it until ForgetServerKey.
func (e *Exchange) ServerPublicKey(ctx context.Context) (domain.ServerPublicKey, error) {
	e.mu.Lock()
	if e.serverKey != nil {
		k := *e.serverKey
		e.mu.Unlock()
		return k, nil
	}
	e.mu.Unlock()

	v, err, _ := e.flight.Do(flightServerKey, func() (interface{}, error) {
		k, err := e.server.ServerPublicKey(ctx)
		if err != nil {
			return nil, errors.Wrap(err, "fetch server public key")
		}
		if _, err := crypto.ParsePublicKey(k.PublicKey); err != nil {
			return nil, errors.Wrap(err, "server public key")
		}
		e.mu.Lock()
		e.serverKey = &k
		e.mu.Unlock()
		return k, nil
	})
	if err != nil {
		return domain.ServerPublicKey{}, err
	}
	return v.(domain.ServerPublicKey), nil
}

// ForgetServerKey drops the cached server public key, e.g. after the server
// rotated past it.
func (e *Exchange) ForgetServerKey() {
	e.mu.Lock()
	e.serverKey = nil
	e.mu.Unlock()
}

// handshake joins the attempt in flight or starts one. ctx only bounds how
// long this caller waits; the attempt is cancelled when its last waiter
// leaves, and a cancelled attempt is never joined.
func (e *Exchange) handshake(ctx context.Context) (domain.SessionKey, error) {
	e.mu.Lock()
	att := e.inflight
	if att == nil || att.ctx.Err() != nil {
		e.gen++
		runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.timeout)
		att = &attempt{ctx: runCtx, cancel: cancel, gen: e.gen}
		e.inflight = att
	}
	att.waiters++
	key := att.flightKey()
	// DoChan runs fn on its own goroutine, so holding mu here keeps
	// e.inflight and the singleflight key in step.
	ch := e.flight.DoChan(key, func() (interface{}, error) {
		defer func() {
			e.mu.Lock()
			e.flight.Forget(key)
			if e.inflight == att {
				e.inflight = nil
			}
			e.mu.Unlock()
			att.cancel()
		}()
		return e.run(att)
	})
	e.mu.Unlock()

	select {
	case <-ctx.Done():
		e.leave(att)
		return domain.SessionKey{}, &HandshakeError{Stage: "wait", Err: ctx.Err()}
	case r := <-ch:
		e.leave(att)
		if r.Err != nil {
			return domain.SessionKey{}, r.Err
		}
		return cloneKey(r.Val.(domain.SessionKey)), nil
	}
}

// leave drops one waiter. The last one out cancels the attempt and detaches
// it, so the next caller starts afresh instead of joining a dying call.
func (e *Exchange) leave(att *attempt) {
	e.mu.Lock()
	defer e.mu.Unlock()
	att.waiters--
	if att.waiters == 0 {
		att.cancel()
		if e.inflight == att {
			e.inflight = nil
		}
	}
}

// run is one handshake attempt. The cached key is replaced only once the new
// key is fully unwrapped.
//
// Steps:
//  1. Enter KeyRequested and drop any previous key.
//  2. Generate an ephemeral RSA pair on a background goroutine.
//  3. Send the public half to the server's key-exchange endpoint.
//  4. Unwrap the returned session key with the ephemeral private half.
//  5. Publish the key and enter Established.
//
// An attempt superseded by a newer one leaves the state alone.
func (e *Exchange) run(att *attempt) (domain.SessionKey, error) {
	ctx := att.ctx
	e.mu.Lock()
	if att.gen == e.gen {
		e.dropKeyLocked()
		e.state = domain.StateKeyRequested
	}
	e.mu.Unlock()

	eph, err := crypto.GenerateKeyPairContext(ctx, e.bits)
	if err != nil {
		return domain.SessionKey{}, e.fail(att, "keygen", err, domain.StateUninitialized)
	}

	resp, err := e.server.ExchangeSessionKey(ctx, eph.PublicKey)
	if err != nil {
		return domain.SessionKey{}, e.fail(att, "transport", err, domain.StateUninitialized)
	}

	wrapped, err := crypto.UnB64(resp.Key)
	if err != nil {
		return domain.SessionKey{}, e.fail(att, "unwrap", err, domain.StateExpired)
	}
	key, err := crypto.Unwrap(wrapped, eph.PrivateKey)
	if err != nil {
		return domain.SessionKey{}, e.fail(att, "unwrap", err, domain.StateExpired)
	}
	if err := ctx.Err(); err != nil {
		crypto.Wipe(key)
		return domain.SessionKey{}, e.fail(att, "transport", err, domain.StateUninitialized)
	}

	sk := domain.SessionKey{Key: key, KeyID: resp.KeyID, ObtainedAt: e.now()}
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		crypto.Wipe(key)
		return domain.SessionKey{}, ErrClosed
	}
	if att.gen != e.gen {
		e.mu.Unlock()
		crypto.Wipe(key)
		return domain.SessionKey{}, &HandshakeError{Stage: "superseded", Err: context.Canceled}
	}
	e.key = &sk
	e.state = domain.StateEstablished
	e.mu.Unlock()

	metrics.Handshakes.WithLabelValues("ok").Inc()
	e.log.WithField("key_id", sk.KeyID).Debugf("session key established")
	return cloneKey(sk), nil
}

func (e *Exchange) fail(att *attempt, stage string, err error, next domain.SessionState) error {
	label := stage
	if att.ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		label = "timeout"
		next = domain.StateUninitialized
	}
	e.mu.Lock()
	if att.gen == e.gen {
		e.state = next
	}
	e.mu.Unlock()

	metrics.Handshakes.WithLabelValues(label).Inc()
	e.log.Warnf("session handshake failed at %s: %v", stage, err)
	return &HandshakeError{Stage: stage, Err: err}
}

func (e *Exchange) expireIfStaleLocked() {
	if e.state == domain.StateEstablished && e.key != nil && e.now().Sub(e.key.ObtainedAt) >= e.ttl {
		e.dropKeyLocked()
		e.state = domain.StateExpired
	}
}

func (e *Exchange) dropKeyLocked() {
	if e.key != nil {
		crypto.Wipe(e.key.Key)
		e.key = nil
	}
}

func cloneKey(k domain.SessionKey) domain.SessionKey {
	k.Key = append([]byte(nil), k.Key...)
	return k
}

// Compile-time assertion that Exchange implements domain.KeyExchange.
var _ domain.KeyExchange = (*Exchange)(nil)
