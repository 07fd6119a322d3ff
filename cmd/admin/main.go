package main

import (
	"context"
	"fmt"
	"math/big"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	flag "github.com/spf13/pflag"

	"github.com/learnalabs/educaster/api/config"
	"github.com/learnalabs/educaster/ledger"
	"github.com/learnalabs/educaster/ledger/pgstore"
	"github.com/learnalabs/educaster/utils/pkg/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	verboseFlag := flag.Bool("verbose", false, "enable verbose (debug) logging")

	// Commands
	migrateFlag := flag.Bool("migrate", false, "Run ledger database migrations using goose")
	migrateStatusFlag := flag.Bool("migrate-status", false, "Show ledger database migration status")
	bootstrapFlag := flag.Bool("bootstrap", false, "Seed the epoch clock and owner on an empty ledger")
	settleFlag := flag.Bool("settle", false, "Run the weekly settlement")
	banFlag := flag.Bool("ban", false, "Ban users from campaigns")
	unbanFlag := flag.Bool("unban", false, "Unban users from campaigns")
	sweepFlag := flag.Bool("sweep", false, "Sweep expired unclaimed rewards back into the current pool")
	setAdminsFlag := flag.Bool("set-admins", false, "Activate or deactivate admin addresses (owner only)")
	mintFlag := flag.Bool("mint", false, "Credit a treasury balance (models an external deposit)")

	// Options
	callerFlag := flag.String("caller", "", "address the command acts as (or set LEDGER_CALLER env var)")
	ownerFlag := flag.String("owner", "", "owner address for --bootstrap")
	transitionIntervalFlag := flag.Duration("transition-interval", 7*24*time.Hour, "epoch length for --bootstrap")
	claimWindowFlag := flag.Duration("claim-window", 72*time.Hour, "claim window for --bootstrap")
	minimumTokenFlag := flag.String("minimum-token", "0", "pass-key fee per campaign for --bootstrap")
	tokenFlag := flag.String("token", "", "reward token address for --settle")
	topUpFlag := flag.String("top-up", "0", "optional ERC20 top-up amount for --settle")
	campaignsFlag := flag.StringSlice("campaigns", nil, "campaign names (--settle top-up targets) or 0x hashes (--ban/--unban/--sweep)")
	usersFlag := flag.StringSlice("users", nil, "user addresses for --ban/--unban")
	adminsFlag := flag.StringSlice("admins", nil, "admin addresses for --set-admins")
	activeFlag := flag.Bool("active", true, "activate (true) or deactivate (false) for --set-admins")
	weekFlag := flag.Uint64("week", 0, "week identifier for --sweep")
	accountFlag := flag.String("account", "", "account address for --mint")
	assetFlag := flag.String("asset", "", "asset address for --mint, empty for native")
	amountFlag := flag.String("amount", "", "amount for --mint")

	flag.Parse()

	_ = godotenv.Load()
	if env := os.Getenv("LEDGER_CALLER"); env != "" && *callerFlag == "" {
		*callerFlag = env
	}

	log := logger.New(*verboseFlag)
	ctx := context.Background()

	pgCfg := config.PgConfigFromEnv()
	if err := pgCfg.Validate(); err != nil {
		return fmt.Errorf("invalid postgres config: %w", err)
	}

	if *migrateFlag {
		return config.RunMigrations(log, pgCfg.ConnStr())
	}
	if *migrateStatusFlag {
		return config.MigrationStatus(pgCfg.ConnStr())
	}

	if err := config.LoadPostgres(log, pgCfg, false); err != nil {
		return fmt.Errorf("failed to load postgres: %w", err)
	}
	defer config.ClosePostgres()

	store, err := pgstore.New(pgstore.Config{Logger: log, Pool: config.PgPool})
	if err != nil {
		return fmt.Errorf("failed to create store: %w", err)
	}
	treasury, err := pgstore.NewTreasury(pgstore.Config{Logger: log, Pool: config.PgPool})
	if err != nil {
		return fmt.Errorf("failed to create treasury: %w", err)
	}

	if *bootstrapFlag {
		owner, err := parseAddr(*ownerFlag)
		if err != nil {
			return fmt.Errorf("--owner: %w", err)
		}
		minToken, err := parseAmount(*minimumTokenFlag)
		if err != nil {
			return fmt.Errorf("--minimum-token: %w", err)
		}
		if err := ledger.Bootstrap(ctx, store, clockwork.NewRealClock(), ledger.BootstrapParams{
			Owner:              owner,
			TransitionInterval: *transitionIntervalFlag,
			ClaimWindow:        *claimWindowFlag,
			MinimumToken:       minToken,
		}); err != nil {
			return err
		}
		log.Info("ledger bootstrapped", "owner", owner.Hex())
		return nil
	}

	if *mintFlag {
		account, err := parseAddr(*accountFlag)
		if err != nil {
			return fmt.Errorf("--account: %w", err)
		}
		asset := ledger.NativeAsset
		if *assetFlag != "" {
			asset, err = parseAddr(*assetFlag)
			if err != nil {
				return fmt.Errorf("--asset: %w", err)
			}
		}
		amount, err := parseAmount(*amountFlag)
		if err != nil {
			return fmt.Errorf("--amount: %w", err)
		}
		if err := treasury.Mint(ctx, account, asset, amount); err != nil {
			return err
		}
		log.Info("balance credited", "account", account.Hex(), "asset", asset.Hex(), "amount", amount)
		return nil
	}

	engine, err := ledger.NewEngine(ledger.Config{
		Logger: log,
		Store:  store,
	})
	if err != nil {
		return fmt.Errorf("failed to create engine: %w", err)
	}

	caller, err := parseAddr(*callerFlag)
	if err != nil {
		return fmt.Errorf("--caller: %w", err)
	}

	switch {
	case *settleFlag:
		token, err := parseAddr(*tokenFlag)
		if err != nil {
			return fmt.Errorf("--token: %w", err)
		}
		topUp, err := parseAmount(*topUpFlag)
		if err != nil {
			return fmt.Errorf("--top-up: %w", err)
		}
		report, err := engine.SortWeeklyReward(ctx, caller, token, topUp, *campaignsFlag)
		if err != nil {
			return err
		}
		log.Info("settlement complete",
			"settled_week", report.SettledWeekID,
			"new_week", report.NewWeekID,
			"campaigns", report.CampaignsSettled,
			"snapshots", report.SnapshotsWritten,
			"claim_active_until", report.ClaimActiveUntil)
		return nil

	case *banFlag, *unbanFlag:
		users, err := parseAddrs(*usersFlag)
		if err != nil {
			return fmt.Errorf("--users: %w", err)
		}
		hashes, err := parseHashes(*campaignsFlag)
		if err != nil {
			return fmt.Errorf("--campaigns: %w", err)
		}
		if *banFlag {
			err = engine.BanUsers(ctx, caller, users, hashes)
		} else {
			err = engine.UnbanUsers(ctx, caller, users, hashes)
		}
		if err != nil {
			return err
		}
		log.Info("ban state updated", "users", len(users), "campaigns", len(hashes), "banned", *banFlag)
		return nil

	case *sweepFlag:
		hashes, err := parseHashes(*campaignsFlag)
		if err != nil {
			return fmt.Errorf("--campaigns: %w", err)
		}
		if *weekFlag == 0 || len(hashes) != 1 {
			return fmt.Errorf("--sweep requires --week and exactly one --campaigns hash")
		}
		native, erc20, err := engine.SweepExpired(ctx, caller, *weekFlag, hashes[0])
		if err != nil {
			return err
		}
		log.Info("sweep complete", "week", *weekFlag, "native", native, "erc20", erc20)
		return nil

	case *setAdminsFlag:
		admins, err := parseAddrs(*adminsFlag)
		if err != nil {
			return fmt.Errorf("--admins: %w", err)
		}
		if err := engine.SetAdmins(ctx, caller, admins, *activeFlag); err != nil {
			return err
		}
		log.Info("admin roster updated", "admins", len(admins), "active", *activeFlag)
		return nil
	}

	flag.Usage()
	return fmt.Errorf("no command specified")
}

func parseAddr(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("invalid address %q", s)
	}
	return common.HexToAddress(s), nil
}

func parseAddrs(in []string) ([]common.Address, error) {
	out := make([]common.Address, 0, len(in))
	for _, s := range in {
		a, err := parseAddr(s)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

// parseHashes accepts 0x-prefixed campaign hashes or bare campaign names,
// which are hashed.
func parseHashes(in []string) ([]common.Hash, error) {
	out := make([]common.Hash, 0, len(in))
	for _, s := range in {
		if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
			b := common.FromHex(s)
			if len(b) != common.HashLength {
				return nil, fmt.Errorf("invalid hash %q", s)
			}
			out = append(out, common.BytesToHash(b))
			continue
		}
		out = append(out, ledger.CampaignHash(s))
	}
	return out, nil
}

func parseAmount(s string) (*big.Int, error) {
	if s == "" {
		return new(big.Int), nil
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok || v.Sign() < 0 {
		return nil, fmt.Errorf("invalid amount %q", s)
	}
	return v, nil
}
