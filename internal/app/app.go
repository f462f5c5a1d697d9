package app

import (
	"konnect/internal/logger"
	"konnect/internal/server"
)

// NewServer builds the key server from cfg.
func NewServer(cfg *ServerConfig) (*server.Server, logger.Logger, error) {
	log := logger.NewLogger(cfg.LogLevel)
	srv, err := server.New(server.Config{
		RSABits:        cfg.RSABits,
		RerollInterval: cfg.RerollInterval,
		MasterSecret:   cfg.MasterSecret,
		Groups:         cfg.Groups,
		Logger:         log,
	})
	if err != nil {
		return nil, nil, err
	}
	return srv, log, nil
}
