package app

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"konnect/internal/domain"
	"konnect/internal/logger"
	"konnect/internal/relay"
	"konnect/internal/services/backup"
	"konnect/internal/services/identity"
	"konnect/internal/services/message"
	"konnect/internal/services/request"
	"konnect/internal/services/session"
	"konnect/internal/services/vault"
	"konnect/internal/store"
)

// cacheFile is the local message cache under the config home.
const cacheFile = "messages.db"

// Wire bundles all stores, services and clients for the CLI.
type Wire struct {
	Config   *Config
	Log      logger.Logger
	Relay    *relay.Client
	Exchange *session.Exchange
	Session  *domain.Session
	KV       domain.KVStore
	Cache    *store.BoltCache
	Vault    *vault.Service
	Identity *identity.Service
	Backups  *backup.Service
	Messages *message.Service
	Requests *request.Service

	closers []io.Closer
}

// NewWire constructs the dependency graph from cfg. Session is nil when cfg
// names no user.
func NewWire(cfg *Config) (*Wire, error) {
	log := logger.NewLogger(cfg.LogLevel)
	if err := os.MkdirAll(cfg.Home, 0o700); err != nil {
		return nil, errors.Wrap(err, "create home")
	}

	w := &Wire{Config: cfg, Log: log}
	kv, err := w.openKV(cfg)
	if err != nil {
		return nil, err
	}
	w.KV = kv

	cache, err := store.OpenBoltCache(filepath.Join(cfg.Home, cacheFile))
	if err != nil {
		w.Close()
		return nil, err
	}
	w.Cache = cache
	w.closers = append(w.closers, cache)

	w.Relay = relay.New(relay.Options{
		BaseURL: cfg.Server,
		Token:   cfg.BearerToken(),
		Timeout: cfg.HTTPTimeout,
		Retries: cfg.HTTPRetries,
		Logger:  log,
	})
	w.Exchange = session.New(w.Relay, session.Options{
		RSABits: cfg.RSABits,
		TTL:     cfg.SessionTTL,
		Logger:  log,
	})
	if user, err := cfg.User(); err == nil {
		w.Session = session.NewSession(user, w.Exchange)
	}

	w.Vault = vault.New(kv, log)
	w.Identity = identity.New(w.Relay, w.Vault, identity.Options{RSABits: cfg.RSABits, Logger: log})
	w.Backups = backup.New(w.Relay, w.Vault, backup.Options{RSABits: cfg.RSABits, Logger: log})
	w.Messages, err = message.New(w.Relay, w.Relay, cache, log)
	if err != nil {
		w.Close()
		return nil, err
	}
	w.Requests = request.New(w.Relay, request.Options{RSABits: cfg.RSABits, Logger: log})
	return w, nil
}

func (w *Wire) openKV(cfg *Config) (domain.KVStore, error) {
	switch cfg.Store.Backend {
	case BackendRedis:
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Store.RedisAddr, DB: cfg.Store.RedisDB})
		rs := store.NewRedisStore(rdb, store.DefaultRedisPrefix)
		w.closers = append(w.closers, rs)
		return rs, nil
	default:
		return store.NewFileStore(cfg.Home)
	}
}

// RequireSession returns the configured session or an error naming the
// missing settings.
func (w *Wire) RequireSession() (*domain.Session, error) {
	if w.Session == nil {
		return nil, errors.New("no user configured; set user.type and user.id")
	}
	return w.Session, nil
}

// Login recovers the configured user's keys into the session.
func (w *Wire) Login(ctx context.Context) (*domain.Session, error) {
	sess, err := w.RequireSession()
	if err != nil {
		return nil, err
	}
	if err := w.Identity.Login(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// Close wipes the session keys and releases the stores.
func (w *Wire) Close() error {
	if w.Session != nil && w.Identity != nil {
		w.Identity.Logout(w.Session)
	}
	if w.Exchange != nil {
		w.Exchange.Close()
	}
	var first error
	for i := len(w.closers) - 1; i >= 0; i-- {
		if err := w.closers[i].Close(); err != nil && first == nil {
			first = err
		}
	}
	w.closers = nil
	return first
}
