package main

import (
	"context"
	"fmt"
	"math/big"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/getsentry/sentry-go"
	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	flag "github.com/spf13/pflag"

	"github.com/learnalabs/educaster/api/config"
	"github.com/learnalabs/educaster/api/handlers"
	"github.com/learnalabs/educaster/api/metrics"
	"github.com/learnalabs/educaster/api/server"
	"github.com/learnalabs/educaster/ledger"
	"github.com/learnalabs/educaster/ledger/pgstore"
	"github.com/learnalabs/educaster/utils/pkg/logger"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	verboseFlag := flag.Bool("verbose", false, "enable verbose (debug) logging")
	listenAddrFlag := flag.String("listen-addr", ":8080", "API listen address (or set LISTEN_ADDR env var)")
	metricsAddrFlag := flag.String("metrics-addr", ":9090", "metrics listen address, empty disables (or set METRICS_ADDR env var)")
	adminAPIKeyFlag := flag.String("admin-api-key", "", "bearer key for admin endpoints (or set ADMIN_API_KEY env var)")
	migrateFlag := flag.Bool("migrate", false, "run database migrations on startup")

	ownerFlag := flag.String("owner", "", "owner address used to bootstrap an empty ledger (or set LEDGER_OWNER env var)")
	transitionIntervalFlag := flag.Duration("transition-interval", 7*24*time.Hour, "weekly epoch length used on bootstrap")
	claimWindowFlag := flag.Duration("claim-window", 72*time.Hour, "claim window length used on bootstrap")
	minimumTokenFlag := flag.String("minimum-token", "0", "pass-key fee per campaign used on bootstrap")

	flag.Parse()

	// .env is optional; flags and real env vars win.
	_ = godotenv.Load()

	if env := os.Getenv("LISTEN_ADDR"); env != "" {
		*listenAddrFlag = env
	}
	if env := os.Getenv("METRICS_ADDR"); env != "" {
		*metricsAddrFlag = env
	}
	if env := os.Getenv("ADMIN_API_KEY"); env != "" {
		*adminAPIKeyFlag = env
	}
	if env := os.Getenv("LEDGER_OWNER"); env != "" {
		*ownerFlag = env
	}

	log := logger.New(*verboseFlag)

	if dsn := os.Getenv("SENTRY_DSN"); dsn != "" {
		err := sentry.Init(sentry.ClientOptions{
			Dsn:         dsn,
			Environment: os.Getenv("SENTRY_ENVIRONMENT"),
			Release:     version,
		})
		if err != nil {
			return fmt.Errorf("failed to init sentry: %w", err)
		}
		defer sentry.Flush(2 * time.Second)
	}

	if err := config.LoadPostgres(log, config.PgConfigFromEnv(), *migrateFlag); err != nil {
		return fmt.Errorf("failed to load postgres: %w", err)
	}
	defer config.ClosePostgres()

	store, err := pgstore.New(pgstore.Config{Logger: log, Pool: config.PgPool})
	if err != nil {
		return fmt.Errorf("failed to create store: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *ownerFlag != "" {
		if !common.IsHexAddress(*ownerFlag) {
			return fmt.Errorf("invalid --owner %q", *ownerFlag)
		}
		owner := common.HexToAddress(*ownerFlag)
		minToken, ok := new(big.Int).SetString(*minimumTokenFlag, 10)
		if !ok || minToken.Sign() < 0 {
			return fmt.Errorf("invalid --minimum-token %q", *minimumTokenFlag)
		}
		if err := ledger.Bootstrap(ctx, store, clockwork.NewRealClock(), ledger.BootstrapParams{
			Owner:              owner,
			TransitionInterval: *transitionIntervalFlag,
			ClaimWindow:        *claimWindowFlag,
			MinimumToken:       minToken,
		}); err != nil {
			return fmt.Errorf("failed to bootstrap ledger: %w", err)
		}
	}

	engine, err := ledger.NewEngine(ledger.Config{
		Logger: log,
		Store:  store,
	})
	if err != nil {
		return fmt.Errorf("failed to create engine: %w", err)
	}

	metrics.BuildInfo.WithLabelValues(version, commit, date).Set(1)

	srv, err := server.New(server.Config{
		Logger:      log,
		Engine:      engine,
		ListenAddr:  *listenAddrFlag,
		MetricsAddr: *metricsAddrFlag,
		AdminAPIKey: *adminAPIKeyFlag,
		VersionInfo: handlers.VersionInfo{Version: version, Commit: commit, Date: date},
		Ready: func() bool {
			pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return config.PgPool.Ping(pingCtx) == nil
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	return srv.Run(ctx)
}
