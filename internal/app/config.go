package app

import (
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"konnect/internal/domain"
	"konnect/internal/logger"
	"konnect/internal/server"
)

const (
	// EnvPrefix prefixes every environment override, e.g. KONNECT_SERVER.
	EnvPrefix = "KONNECT"

	DefaultServer      = "http://127.0.0.1:8080"
	DefaultRSABits     = 2048
	DefaultSessionTTL  = 30 * time.Minute
	DefaultHTTPTimeout = 10 * time.Second
	DefaultHTTPRetries = 2
	DefaultListen      = "127.0.0.1:8080"
)

// Backends of the key record store.
const (
	BackendFile  = "file"
	BackendRedis = "redis"
)

// Config holds the client's runtime options.
type Config struct {
	Home        string        `validate:"required"`
	Server      string        `validate:"required,url"`
	Token       string        // bearer credential; defaults to the identity
	UserType    string        `validate:"omitempty,oneof=student club admin"`
	UserID      string        `validate:"required_with=UserType"`
	RSABits     int           `validate:"min=2048"`
	SessionTTL  time.Duration `validate:"min=0"`
	HTTPTimeout time.Duration `validate:"min=0"`
	HTTPRetries int           `validate:"min=0"`
	LogLevel    uint32
	Store       StoreConfig
}

// StoreConfig selects where StoredKeyRecords live.
type StoreConfig struct {
	Backend   string `validate:"oneof=file redis"`
	RedisAddr string `validate:"required_if=Backend redis"`
	RedisDB   int    `validate:"min=0"`
}

// User returns the configured identity.
func (c *Config) User() (domain.Identity, error) {
	if c.UserID == "" {
		return domain.Identity{}, errors.New("no user configured; set user.type and user.id")
	}
	return domain.Identity{Type: domain.UserType(c.UserType), ID: c.UserID}, nil
}

// BearerToken returns the credential presented to the server.
func (c *Config) BearerToken() string {
	if c.Token != "" {
		return c.Token
	}
	if u, err := c.User(); err == nil {
		return u.String()
	}
	return ""
}

// DefaultHome returns $KONNECT_HOME or ~/.konnect.
func DefaultHome() string {
	if h := os.Getenv(EnvPrefix + "_HOME"); h != "" {
		return h
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".konnect"
	}
	return filepath.Join(home, ".konnect")
}

// NewViper returns a viper instance with defaults and environment overrides
// set. configFile may be empty.
func NewViper(configFile string) *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("server", DefaultServer)
	v.SetDefault("user.type", string(domain.UserStudent))
	v.SetDefault("rsa.bits", DefaultRSABits)
	v.SetDefault("session.ttl", DefaultSessionTTL)
	v.SetDefault("http.timeout", DefaultHTTPTimeout)
	v.SetDefault("http.retries", DefaultHTTPRetries)
	v.SetDefault("log.level", "info")
	v.SetDefault("store.backend", BackendFile)
	v.SetDefault("listen", DefaultListen)
	v.SetDefault("reroll.interval", server.DefaultRerollInterval)

	if configFile != "" {
		v.SetConfigFile(configFile)
		v.SetConfigType("yaml")
	}
	return v
}

// readConfig reads the config file if one is set. A missing file is not an
// error.
func readConfig(v *viper.Viper) error {
	if v.ConfigFileUsed() == "" {
		return nil
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return errors.Wrap(err, "read config")
	}
	return nil
}

// NewConfig builds the client Config from v.
func NewConfig(home string, v *viper.Viper) (*Config, error) {
	if err := readConfig(v); err != nil {
		return nil, err
	}
	level, err := logger.GetLogLevel(v.GetString("log.level"))
	if err != nil {
		return nil, err
	}
	cfg := &Config{
		Home:        home,
		Server:      v.GetString("server"),
		Token:       v.GetString("token"),
		UserID:      v.GetString("user.id"),
		RSABits:     v.GetInt("rsa.bits"),
		SessionTTL:  v.GetDuration("session.ttl"),
		HTTPTimeout: v.GetDuration("http.timeout"),
		HTTPRetries: v.GetInt("http.retries"),
		LogLevel:    level,
		Store: StoreConfig{
			Backend:   v.GetString("store.backend"),
			RedisAddr: v.GetString("store.redis.addr"),
			RedisDB:   v.GetInt("store.redis.db"),
		},
	}
	if cfg.UserID != "" {
		cfg.UserType = v.GetString("user.type")
	}
	if err := validator.New().Struct(cfg); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}
	return cfg, nil
}

// ServerConfig holds the key server's runtime options.
type ServerConfig struct {
	Listen         string        `validate:"required"`
	RerollInterval time.Duration `validate:"min=0"`
	RSABits        int           `validate:"min=2048"`
	MasterSecret   []byte        `validate:"omitempty,min=32"`
	Groups         map[domain.GroupID][]domain.Identity
	LogLevel       uint32
}

// NewServerConfig builds the key server's ServerConfig from v.
func NewServerConfig(v *viper.Viper) (*ServerConfig, error) {
	if err := readConfig(v); err != nil {
		return nil, err
	}
	level, err := logger.GetLogLevel(v.GetString("log.level"))
	if err != nil {
		return nil, err
	}
	cfg := &ServerConfig{
		Listen:         v.GetString("listen"),
		RerollInterval: v.GetDuration("reroll.interval"),
		RSABits:        v.GetInt("rsa.bits"),
		LogLevel:       level,
		Groups:         map[domain.GroupID][]domain.Identity{},
	}
	if v.IsSet("master.secret") {
		cfg.MasterSecret, err = hex.DecodeString(v.GetString("master.secret"))
		if err != nil {
			return nil, errors.Wrap(err, "master.secret must be hex")
		}
	}
	for g, members := range v.GetStringMapStringSlice("groups") {
		for _, m := range members {
			who, err := domain.ParseIdentity(m)
			if err != nil {
				return nil, errors.Wrapf(err, "group %s", g)
			}
			cfg.Groups[domain.GroupID(g)] = append(cfg.Groups[domain.GroupID(g)], who)
		}
	}
	if err := validator.New().Struct(cfg); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}
	return cfg, nil
}
