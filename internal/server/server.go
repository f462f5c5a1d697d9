package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"konnect/internal/domain"
	"konnect/internal/logger"
	"konnect/internal/metrics"
)

// Config configures a Server.
type Config struct {
	// RSABits is the size of the server key pairs; zero means the default.
	RSABits int
	// RerollInterval is the minimum lifetime of a server key.
	RerollInterval time.Duration
	// MasterSecret seeds every session key. Empty means random per process.
	MasterSecret []byte
	// Groups is the initial group table.
	Groups map[domain.GroupID][]domain.Identity
	// Authenticate maps a bearer token to an identity. Nil means
	// DevAuthenticator.
	Authenticate func(token string) (domain.Identity, error)
	Logger       logger.Logger
	Now          func() time.Time
}

// Server is the key server application.
type Server struct {
	keys     *KeyManager
	sessions *SessionKeys
	state    *state
	auth     func(string) (domain.Identity, error)
	log      logger.Logger
	now      func() time.Time
	engine   *gin.Engine
}

// New builds a Server and its routes.
func New(cfg Config) (*Server, error) {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	km, err := NewKeyManager(cfg.RSABits, cfg.RerollInterval, now)
	if err != nil {
		return nil, errors.Wrap(err, "server key")
	}
	sk, err := NewSessionKeys(cfg.MasterSecret)
	if err != nil {
		return nil, errors.Wrap(err, "session keys")
	}
	auth := cfg.Authenticate
	if auth == nil {
		auth = DevAuthenticator
	}
	s := &Server{
		keys:     km,
		sessions: sk,
		state:    newState(cfg.Groups),
		auth:     auth,
		log:      logger.OrDiscard(cfg.Logger),
		now:      now,
	}
	s.engine = s.routes()
	return s, nil
}

func (s *Server) routes() *gin.Engine {
	metrics.Register(prometheus.DefaultRegisterer)

	r := gin.New()
	r.Use(gin.Recovery(), accessLog(s.log), metrics.Middleware())

	r.GET("/healthz", s.healthCheck)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/encryption/public-key", s.publicKey)

	authed := r.Group("/", s.authenticate())
	authed.POST("/encryption/aes/external-key", s.exchange)
	authed.POST("/keys/register", s.register)
	authed.POST("/keys/user", s.userKey)
	authed.POST("/keys/group", s.groupKeys)
	authed.PUT("/keys/backup", s.putBackup)
	authed.GET("/keys/backup", s.getBackup)
	authed.PUT("/groups/:id", s.setGroup)
	authed.POST("/messages", s.publish)
	authed.GET("/messages", s.fetch)
	authed.POST("/messages/ack", s.ack)

	api := authed.Group("/api", s.decryptRequest())
	api.POST("/echo", s.echo)
	api.POST("/whoami", s.whoami)
	return r
}

// Handler returns the HTTP handler of the application.
func (s *Server) Handler() http.Handler { return s.engine }

// Keys returns the server key manager.
func (s *Server) Keys() *KeyManager { return s.keys }

// Run serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.log.Infof("key server listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "shutdown")
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
