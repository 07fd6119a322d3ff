package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	flag "github.com/spf13/pflag"
	"github.com/robfig/cron/v3"

	"github.com/learnalabs/educaster/api/config"
	"github.com/learnalabs/educaster/api/metrics"
	"github.com/learnalabs/educaster/ledger"
	"github.com/learnalabs/educaster/ledger/pgstore"
	"github.com/learnalabs/educaster/utils/pkg/logger"
	"github.com/learnalabs/educaster/utils/pkg/retry"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	verboseFlag := flag.Bool("verbose", false, "enable verbose (debug) logging")
	scheduleFlag := flag.String("schedule", "@hourly", "cron schedule for settlement attempts (or set SETTLER_SCHEDULE env var)")
	callerFlag := flag.String("caller", "", "admin address the settler acts as (or set SETTLER_CALLER env var)")
	tokenFlag := flag.String("token", "", "reward token address passed to settlement")

	flag.Parse()

	_ = godotenv.Load()
	if env := os.Getenv("SETTLER_SCHEDULE"); env != "" {
		*scheduleFlag = env
	}
	if env := os.Getenv("SETTLER_CALLER"); env != "" && *callerFlag == "" {
		*callerFlag = env
	}

	log := logger.New(*verboseFlag)

	if !common.IsHexAddress(*callerFlag) {
		return fmt.Errorf("invalid --caller %q", *callerFlag)
	}
	caller := common.HexToAddress(*callerFlag)

	var token common.Address
	if *tokenFlag != "" {
		if !common.IsHexAddress(*tokenFlag) {
			return fmt.Errorf("invalid --token %q", *tokenFlag)
		}
		token = common.HexToAddress(*tokenFlag)
	}

	if err := config.LoadPostgres(log, config.PgConfigFromEnv(), false); err != nil {
		return fmt.Errorf("failed to load postgres: %w", err)
	}
	defer config.ClosePostgres()

	store, err := pgstore.New(pgstore.Config{Logger: log, Pool: config.PgPool})
	if err != nil {
		return fmt.Errorf("failed to create store: %w", err)
	}
	engine, err := ledger.NewEngine(ledger.Config{
		Logger: log,
		Store:  store,
	})
	if err != nil {
		return fmt.Errorf("failed to create engine: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	attempt := func() {
		attemptCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
		defer cancel()

		var report ledger.SettlementReport
		err := retry.Do(attemptCtx, retry.DefaultConfig(), func() error {
			var err error
			report, err = engine.SortWeeklyReward(attemptCtx, caller, token, nil, nil)
			return err
		})
		if errors.Is(err, ledger.ErrTooEarlyForTransition) {
			log.Debug("settler: transition not due yet")
			return
		}
		metrics.RecordSettlement(report.CampaignsSettled, err)
		if err != nil {
			log.Error("settler: settlement failed", "error", err)
			return
		}
		metrics.CurrentWeekGauge.Set(float64(report.NewWeekID))
		log.Info("settler: week settled",
			"settled_week", report.SettledWeekID,
			"new_week", report.NewWeekID,
			"campaigns", report.CampaignsSettled,
			"snapshots", report.SnapshotsWritten)
	}

	c := cron.New()
	if _, err := c.AddFunc(*scheduleFlag, attempt); err != nil {
		return fmt.Errorf("invalid --schedule %q: %w", *scheduleFlag, err)
	}

	log.Info("settler: starting", "schedule", *scheduleFlag, "caller", caller.Hex())
	c.Start()

	<-ctx.Done()
	log.Info("settler: stopping", "reason", ctx.Err())
	stopCtx := c.Stop()
	<-stopCtx.Done()
	return nil
}
