package server

import (
	"errors"
	"log/slog"
	"time"

	"github.com/learnalabs/educaster/api/handlers"
	"github.com/learnalabs/educaster/ledger"
)

type Config struct {
	Logger            *slog.Logger
	Engine            *ledger.Engine
	ListenAddr        string
	MetricsAddr       string
	AdminAPIKey       string
	CORSOrigins       []string
	ReadHeaderTimeout time.Duration
	ShutdownTimeout   time.Duration
	VersionInfo       handlers.VersionInfo

	// Ready reports whether the backing store is reachable. Used by /readyz.
	Ready func() bool
}

func (cfg *Config) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.Engine == nil {
		return errors.New("engine is required")
	}
	if cfg.ListenAddr == "" {
		return errors.New("listen addr is required")
	}
	if cfg.ReadHeaderTimeout == 0 {
		cfg.ReadHeaderTimeout = 10 * time.Second
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 15 * time.Second
	}
	if len(cfg.CORSOrigins) == 0 {
		cfg.CORSOrigins = []string{"*"}
	}
	if cfg.Ready == nil {
		cfg.Ready = func() bool { return true }
	}
	return nil
}
