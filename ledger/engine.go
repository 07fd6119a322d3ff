package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jonboulle/clockwork"

	"github.com/learnalabs/educaster/verify"
)

// Role is the capability level required by a mutating entry point. The
// owner is implicitly an admin; operators are per-campaign.
type Role int

const (
	RoleOwner Role = iota
	RoleAdmin
)

// Config configures the Engine.
type Config struct {
	Logger *slog.Logger
	Clock  clockwork.Clock
	Store  Store

	// Verifier and Policy gate pass-key issuance when both are set. A nil
	// Verifier disables identity checks.
	Verifier verify.Verifier
	Policy   verify.Policy
}

func (cfg *Config) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.Store == nil {
		return errors.New("store is required")
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	return nil
}

// Engine executes ledger operations. Every mutating method runs one store
// transaction; failures roll back with no partial state. Balance movements
// go through the transaction too, so a debit never survives an operation
// that failed after it.
type Engine struct {
	log      *slog.Logger
	clock    clockwork.Clock
	store    Store
	verifier verify.Verifier
	policy   verify.Policy
}

func NewEngine(cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Engine{
		log:      cfg.Logger,
		clock:    cfg.Clock,
		store:    cfg.Store,
		verifier: cfg.Verifier,
		policy:   cfg.Policy,
	}, nil
}

// BootstrapParams seed the epoch clock and role state on first run.
type BootstrapParams struct {
	Owner              common.Address
	TransitionInterval time.Duration
	ClaimWindow        time.Duration
	MinimumToken       *big.Int
}

// Bootstrap initializes the epoch state and owner if the store is empty.
// Safe to call on every startup; an already-bootstrapped store is left
// untouched.
func Bootstrap(ctx context.Context, store Store, clock clockwork.Clock, p BootstrapParams) error {
	if p.TransitionInterval <= 0 {
		return errors.New("ledger: transition interval must be positive")
	}
	if p.ClaimWindow <= 0 {
		return errors.New("ledger: claim window must be positive")
	}
	return store.Transact(ctx, func(tx Tx) error {
		epoch, err := tx.Epoch(ctx)
		if err != nil {
			return err
		}
		if epoch.WeekID != 0 || !epoch.TransitionDate.IsZero() {
			return nil // already bootstrapped
		}
		now := clock.Now()
		epoch = EpochState{
			WeekID:             1,
			TransitionInterval: p.TransitionInterval,
			TransitionDate:     now.Add(p.TransitionInterval),
			ClaimWindow:        p.ClaimWindow,
			MinimumToken:       clone(p.MinimumToken),
		}
		if err := tx.PutEpoch(ctx, epoch); err != nil {
			return err
		}
		return tx.SetOwner(ctx, p.Owner)
	})
}

// requireRole is the single capability check called at every privileged
// entry point.
func (e *Engine) requireRole(ctx context.Context, tx Tx, caller common.Address, role Role) error {
	owner, err := tx.Owner(ctx)
	if err != nil {
		return err
	}
	if caller == owner {
		return nil
	}
	if role == RoleAdmin {
		ok, err := tx.IsAdmin(ctx, caller)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
	}
	return fmt.Errorf("caller %s: %w", caller.Hex(), ErrUnauthorized)
}

// RegisterCampaign creates a campaign (admin-only). The hash is derived
// from the name; funding happens separately through SetUpCampaign.
func (e *Engine) RegisterCampaign(ctx context.Context, caller common.Address, name string, operator, token common.Address) (Campaign, error) {
	var c Campaign
	err := e.store.Transact(ctx, func(tx Tx) error {
		if err := e.requireRole(ctx, tx, caller, RoleAdmin); err != nil {
			return err
		}
		hash := CampaignHash(name)
		if _, err := tx.Campaign(ctx, hash); err == nil {
			return fmt.Errorf("campaign %q: %w", name, ErrCampaignExists)
		} else if !errors.Is(err, ErrUnknownCampaign) {
			return err
		}
		epoch, err := tx.Epoch(ctx)
		if err != nil {
			return err
		}
		now := e.clock.Now()
		c = Campaign{Hash: hash, Name: name, Operator: operator, Token: token, CreatedAt: now}
		if err := tx.PutCampaign(ctx, c); err != nil {
			return err
		}
		return tx.PutCampaignWeek(ctx, CampaignWeek{
			WeekID:       epoch.WeekID,
			CampaignHash: hash,
			FundsNative:  zero(),
			FundsERC20:   zero(),
			TipsNative:   zero(),
			LastUpdated:  now,
		})
	})
	if err != nil {
		return Campaign{}, err
	}
	e.log.Info("engine: campaign registered", "name", name, "hash", c.Hash, "operator", operator.Hex())
	return c, nil
}

// SetUpCampaign tops up a campaign's fund pool for the current week. Only
// the campaign's operator (or an admin) may fund it; value is pulled from
// the caller through the treasury.
func (e *Engine) SetUpCampaign(ctx context.Context, caller common.Address, name string, erc20Amount *big.Int, token common.Address, nativeValue *big.Int) error {
	hash := CampaignHash(name)
	err := e.store.Transact(ctx, func(tx Tx) error {
		c, err := tx.Campaign(ctx, hash)
		if err != nil {
			return err
		}
		if caller != c.Operator {
			if err := e.requireRole(ctx, tx, caller, RoleAdmin); err != nil {
				return err
			}
		}
		if erc20Amount != nil && erc20Amount.Sign() > 0 && token != c.Token {
			return fmt.Errorf("campaign %q funded with token %s, expects %s", name, token.Hex(), c.Token.Hex())
		}
		epoch, err := tx.Epoch(ctx)
		if err != nil {
			return err
		}
		cw, err := tx.CampaignWeek(ctx, epoch.WeekID, hash)
		if err != nil {
			return err
		}
		if cw.Settled {
			return ErrWeekSettled
		}
		if err := tx.Debit(ctx, caller, c.Token, erc20Amount); err != nil {
			return err
		}
		if err := tx.Debit(ctx, caller, NativeAsset, nativeValue); err != nil {
			return err
		}
		if erc20Amount != nil {
			cw.FundsERC20 = new(big.Int).Add(cw.FundsERC20, erc20Amount)
		}
		if nativeValue != nil {
			cw.FundsNative = new(big.Int).Add(cw.FundsNative, nativeValue)
		}
		cw.LastUpdated = e.clock.Now()
		return tx.PutCampaignWeek(ctx, cw)
	})
	if err != nil {
		return err
	}
	e.log.Info("engine: campaign funded", "name", name, "erc20", erc20Amount, "native", nativeValue)
	return nil
}

// AdjustCampaignValues overwrites the current week's pools for a batch of
// campaigns (admin-only correction path, no treasury movement). Arrays must
// be parallel; a settled week is never adjustable.
func (e *Engine) AdjustCampaignValues(ctx context.Context, caller common.Address, hashes []common.Hash, erc20Values, nativeValues []*big.Int) error {
	if len(hashes) != len(erc20Values) || len(hashes) != len(nativeValues) {
		return ErrLengthMismatch
	}
	return e.store.Transact(ctx, func(tx Tx) error {
		if err := e.requireRole(ctx, tx, caller, RoleAdmin); err != nil {
			return err
		}
		epoch, err := tx.Epoch(ctx)
		if err != nil {
			return err
		}
		now := e.clock.Now()
		for i, hash := range hashes {
			if _, err := tx.Campaign(ctx, hash); err != nil {
				return err
			}
			cw, err := tx.CampaignWeek(ctx, epoch.WeekID, hash)
			if err != nil {
				return err
			}
			if cw.Settled {
				return ErrWeekSettled
			}
			cw.FundsERC20 = clone(erc20Values[i])
			cw.FundsNative = clone(nativeValues[i])
			cw.LastUpdated = now
			if err := tx.PutCampaignWeek(ctx, cw); err != nil {
				return err
			}
		}
		return nil
	})
}

// GenerateKey issues the caller's weekly pass keys for the named campaigns.
// The attached value must cover MinimumToken per campaign; the fee is
// debited and split across the campaigns' native pools. Re-keying an
// already-keyed campaign rejects the whole call.
func (e *Engine) GenerateKey(ctx context.Context, caller common.Address, hashes []common.Hash, value *big.Int) error {
	if len(hashes) == 0 {
		return errors.New("ledger: no campaigns named")
	}
	if e.verifier != nil {
		result, err := e.verifier.Verify(ctx, caller)
		if err != nil {
			return fmt.Errorf("identity verification: %w", err)
		}
		if err := e.policy.Check(result); err != nil {
			return err
		}
	}
	err := e.store.Transact(ctx, func(tx Tx) error {
		epoch, err := tx.Epoch(ctx)
		if err != nil {
			return err
		}
		fee := new(big.Int).Mul(epoch.MinimumToken, big.NewInt(int64(len(hashes))))
		if value == nil || value.Cmp(fee) < 0 {
			return fmt.Errorf("pass-key fee %s not covered by value %s: %w", fee, value, ErrInsufficientFunds)
		}
		for _, hash := range hashes {
			if _, err := tx.Campaign(ctx, hash); err != nil {
				return err
			}
			p, err := tx.Profile(ctx, epoch.WeekID, hash, caller)
			if err != nil {
				return err
			}
			if p.PassKey {
				return fmt.Errorf("campaign %s: %w", hash, ErrPassKeyExists)
			}
		}
		// The exact fee is debited; any excess value stays with the caller.
		if err := tx.Debit(ctx, caller, NativeAsset, fee); err != nil {
			return err
		}
		share := new(big.Int).Div(fee, big.NewInt(int64(len(hashes))))
		remainder := new(big.Int).Mod(fee, big.NewInt(int64(len(hashes))))
		now := e.clock.Now()
		for i, hash := range hashes {
			p, err := tx.Profile(ctx, epoch.WeekID, hash, caller)
			if err != nil {
				return err
			}
			p.WeekID = epoch.WeekID
			p.CampaignHash = hash
			p.Address = caller
			p.PassKey = true
			if err := tx.PutProfile(ctx, p); err != nil {
				return err
			}
			cw, err := tx.CampaignWeek(ctx, epoch.WeekID, hash)
			if err != nil {
				return err
			}
			add := new(big.Int).Set(share)
			if i == 0 {
				add.Add(add, remainder)
			}
			cw.FundsNative = new(big.Int).Add(cw.FundsNative, add)
			cw.LastUpdated = now
			if err := tx.PutCampaignWeek(ctx, cw); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	e.log.Info("engine: pass keys generated", "user", caller.Hex(), "campaigns", len(hashes))
	return nil
}

// RecordPoints records one quiz result for a user against a campaign
// (admin/delegated-recorder only). Questions already counted for the user
// this week earn nothing; the net new points feed the weekly totals.
// Returns the net points awarded.
func (e *Engine) RecordPoints(ctx context.Context, caller, user common.Address, result QuizResult, hash common.Hash) (uint64, error) {
	var net uint64
	err := e.store.Transact(ctx, func(tx Tx) error {
		if err := e.requireRole(ctx, tx, caller, RoleAdmin); err != nil {
			return err
		}
		var err error
		net, err = e.recordPoints(ctx, tx, user, result, hash)
		return err
	})
	if err != nil {
		return 0, err
	}
	e.log.Debug("engine: points recorded", "user", user.Hex(), "campaign", hash, "points", net)
	return net, nil
}

// RecordPointsBatch applies RecordPoints semantics for several campaigns in
// one transaction. Each result names its campaign; all succeed or none do.
func (e *Engine) RecordPointsBatch(ctx context.Context, caller, user common.Address, results []QuizResult) ([]uint64, error) {
	nets := make([]uint64, len(results))
	err := e.store.Transact(ctx, func(tx Tx) error {
		if err := e.requireRole(ctx, tx, caller, RoleAdmin); err != nil {
			return err
		}
		for i, result := range results {
			net, err := e.recordPoints(ctx, tx, user, result, result.CampaignHash)
			if err != nil {
				return err
			}
			nets[i] = net
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return nets, nil
}

func (e *Engine) recordPoints(ctx context.Context, tx Tx, user common.Address, result QuizResult, hash common.Hash) (uint64, error) {
	if _, err := tx.Campaign(ctx, hash); err != nil {
		return 0, err
	}
	banned, err := tx.IsBanned(ctx, hash, user)
	if err != nil {
		return 0, err
	}
	if banned {
		return 0, fmt.Errorf("user %s campaign %s: %w", user.Hex(), hash, ErrBlacklisted)
	}
	epoch, err := tx.Epoch(ctx)
	if err != nil {
		return 0, err
	}
	p, err := tx.Profile(ctx, epoch.WeekID, hash, user)
	if err != nil {
		return 0, err
	}
	if !p.PassKey {
		return 0, fmt.Errorf("user %s campaign %s: %w", user.Hex(), hash, ErrNoPassKey)
	}

	var net uint64
	for _, q := range result.Questions {
		answered, err := tx.HasAnswered(ctx, epoch.WeekID, hash, user, q.QuestionHash)
		if err != nil {
			return 0, err
		}
		if answered {
			continue
		}
		if err := tx.MarkAnswered(ctx, epoch.WeekID, hash, user, q.QuestionHash); err != nil {
			return 0, err
		}
		net += q.Points
	}
	if net == 0 {
		return 0, nil
	}

	firstActivity := p.Points == 0
	p.Points += net
	if err := tx.PutProfile(ctx, p); err != nil {
		return 0, err
	}
	cw, err := tx.CampaignWeek(ctx, epoch.WeekID, hash)
	if err != nil {
		return 0, err
	}
	cw.TotalPoints += net
	if firstActivity {
		cw.ActiveLearners++
	}
	cw.LastUpdated = e.clock.Now()
	return net, tx.PutCampaignWeek(ctx, cw)
}

// BanUsers blacklists the cross product of users and campaigns
// (admin-only). Accrued points survive; future accrual and claims are
// blocked while banned.
func (e *Engine) BanUsers(ctx context.Context, caller common.Address, users []common.Address, hashes []common.Hash) error {
	return e.setBanned(ctx, caller, users, hashes, true)
}

// UnbanUsers lifts bans for the cross product of users and campaigns.
func (e *Engine) UnbanUsers(ctx context.Context, caller common.Address, users []common.Address, hashes []common.Hash) error {
	return e.setBanned(ctx, caller, users, hashes, false)
}

func (e *Engine) setBanned(ctx context.Context, caller common.Address, users []common.Address, hashes []common.Hash, banned bool) error {
	err := e.store.Transact(ctx, func(tx Tx) error {
		if err := e.requireRole(ctx, tx, caller, RoleAdmin); err != nil {
			return err
		}
		for _, hash := range hashes {
			if _, err := tx.Campaign(ctx, hash); err != nil {
				return err
			}
			for _, user := range users {
				if err := tx.SetBanned(ctx, hash, user, banned); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	e.log.Info("engine: ban state updated", "users", len(users), "campaigns", len(hashes), "banned", banned)
	return nil
}

// SendTip adds native value from any address into a campaign's current-week
// tip pool. Tips are accounted separately from operator funds and merged
// into the distributable balance at settlement.
func (e *Engine) SendTip(ctx context.Context, from common.Address, hash common.Hash, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return errors.New("ledger: tip amount must be positive")
	}
	return e.store.Transact(ctx, func(tx Tx) error {
		if _, err := tx.Campaign(ctx, hash); err != nil {
			return err
		}
		epoch, err := tx.Epoch(ctx)
		if err != nil {
			return err
		}
		cw, err := tx.CampaignWeek(ctx, epoch.WeekID, hash)
		if err != nil {
			return err
		}
		if cw.Settled {
			return ErrWeekSettled
		}
		if err := tx.Debit(ctx, from, NativeAsset, amount); err != nil {
			return err
		}
		cw.TipsNative = new(big.Int).Add(cw.TipsNative, amount)
		cw.LastUpdated = e.clock.Now()
		return tx.PutCampaignWeek(ctx, cw)
	})
}

// SortWeeklyReward settles the current week and advances the epoch
// (admin-only). The named campaigns are first topped up with erc20TopUp
// split evenly (debited from the caller); then every campaign with activity
// gets per-user pro-rata snapshots written, the claim window opens for the
// settled week, and the clock moves to the next week with unallocated
// remainders rolled into the fresh pools. Snapshot and advance are one
// transaction, so no point recording can land between them.
func (e *Engine) SortWeeklyReward(ctx context.Context, caller, token common.Address, erc20TopUp *big.Int, campaignNames []string) (SettlementReport, error) {
	var report SettlementReport
	err := e.store.Transact(ctx, func(tx Tx) error {
		if err := e.requireRole(ctx, tx, caller, RoleAdmin); err != nil {
			return err
		}
		epoch, err := tx.Epoch(ctx)
		if err != nil {
			return err
		}
		now := e.clock.Now()
		if now.Before(epoch.TransitionDate) {
			return fmt.Errorf("transition due %s, now %s: %w",
				epoch.TransitionDate.Format(time.RFC3339), now.Format(time.RFC3339), ErrTooEarlyForTransition)
		}

		if erc20TopUp != nil && erc20TopUp.Sign() > 0 {
			if len(campaignNames) == 0 {
				return errors.New("ledger: top-up requires campaign names")
			}
			if err := tx.Debit(ctx, caller, token, erc20TopUp); err != nil {
				return err
			}
			n := big.NewInt(int64(len(campaignNames)))
			share := new(big.Int).Div(erc20TopUp, n)
			remainder := new(big.Int).Mod(erc20TopUp, n)
			for i, name := range campaignNames {
				hash := CampaignHash(name)
				c, err := tx.Campaign(ctx, hash)
				if err != nil {
					return err
				}
				if c.Token != token {
					return fmt.Errorf("campaign %q expects token %s, top-up in %s", name, c.Token.Hex(), token.Hex())
				}
				cw, err := tx.CampaignWeek(ctx, epoch.WeekID, hash)
				if err != nil {
					return err
				}
				add := new(big.Int).Set(share)
				if i == 0 {
					add.Add(add, remainder)
				}
				cw.FundsERC20 = new(big.Int).Add(cw.FundsERC20, add)
				if err := tx.PutCampaignWeek(ctx, cw); err != nil {
					return err
				}
			}
		}

		weeks, err := tx.ListCampaignWeeks(ctx, epoch.WeekID)
		if err != nil {
			return err
		}
		report.SettledWeekID = epoch.WeekID
		claimUntil := now.Add(epoch.ClaimWindow)

		for _, cw := range weeks {
			remainderNative := cw.Pool()
			remainderERC20 := clone(cw.FundsERC20)

			if cw.TotalPoints > 0 {
				profiles, err := tx.ListProfiles(ctx, epoch.WeekID, cw.CampaignHash)
				if err != nil {
					return err
				}
				total := new(big.Int).SetUint64(cw.TotalPoints)
				pool := cw.Pool()
				for _, p := range profiles {
					if p.Points == 0 {
						continue
					}
					points := new(big.Int).SetUint64(p.Points)
					native := new(big.Int).Div(new(big.Int).Mul(points, pool), total)
					erc20 := new(big.Int).Div(new(big.Int).Mul(points, cw.FundsERC20), total)
					if native.Sign() == 0 && erc20.Sign() == 0 {
						continue
					}
					if err := tx.PutSnapshot(ctx, RewardSnapshot{
						WeekID:       epoch.WeekID,
						CampaignHash: cw.CampaignHash,
						Address:      p.Address,
						NativeAmount: native,
						ERC20Amount:  erc20,
					}); err != nil {
						return err
					}
					remainderNative.Sub(remainderNative, native)
					remainderERC20.Sub(remainderERC20, erc20)
					report.SnapshotsWritten++
				}
				report.CampaignsSettled++
			}

			cw.Settled = true
			cw.ClaimActiveUntil = claimUntil
			cw.LastUpdated = now
			if err := tx.PutCampaignWeek(ctx, cw); err != nil {
				return err
			}

			// Fresh accumulators for the new week; dust and unallocated
			// funds roll forward.
			if err := tx.PutCampaignWeek(ctx, CampaignWeek{
				WeekID:       epoch.WeekID + 1,
				CampaignHash: cw.CampaignHash,
				FundsNative:  remainderNative,
				FundsERC20:   remainderERC20,
				TipsNative:   zero(),
				LastUpdated:  now,
			}); err != nil {
				return err
			}
		}

		epoch.WeekID++
		epoch.TransitionDate = now.Add(epoch.TransitionInterval)
		report.NewWeekID = epoch.WeekID
		report.ClaimActiveUntil = claimUntil
		return tx.PutEpoch(ctx, epoch)
	})
	if err != nil {
		return SettlementReport{}, err
	}
	e.log.Info("engine: week settled",
		"settled_week", report.SettledWeekID,
		"new_week", report.NewWeekID,
		"campaigns", report.CampaignsSettled,
		"snapshots", report.SnapshotsWritten)
	return report, nil
}

// ClaimReward pays out the caller's settled share for (weekID, campaign).
// Pull-based: the claim window must be open, the caller must not be banned
// (checked at claim time, not only at settlement), and each snapshot pays
// at most once.
func (e *Engine) ClaimReward(ctx context.Context, caller common.Address, weekID uint64, hash common.Hash) (RewardSnapshot, error) {
	var paid RewardSnapshot
	err := e.store.Transact(ctx, func(tx Tx) error {
		c, err := tx.Campaign(ctx, hash)
		if err != nil {
			return err
		}
		banned, err := tx.IsBanned(ctx, hash, caller)
		if err != nil {
			return err
		}
		if banned {
			return fmt.Errorf("user %s campaign %s: %w", caller.Hex(), hash, ErrBlacklisted)
		}
		snap, ok, err := tx.Snapshot(ctx, weekID, hash, caller)
		if err != nil {
			return err
		}
		if !ok || snap.Swept {
			return ErrNothingToClaim
		}
		if snap.Claimed {
			return ErrAlreadyClaimed
		}
		cw, err := tx.CampaignWeek(ctx, weekID, hash)
		if err != nil {
			return err
		}
		if e.clock.Now().After(cw.ClaimActiveUntil) {
			return fmt.Errorf("claim deadline %s: %w", cw.ClaimActiveUntil.Format(time.RFC3339), ErrClaimWindowExpired)
		}
		if err := tx.Credit(ctx, caller, NativeAsset, snap.NativeAmount); err != nil {
			return err
		}
		if err := tx.Credit(ctx, caller, c.Token, snap.ERC20Amount); err != nil {
			return err
		}
		snap.Claimed = true
		if err := tx.PutSnapshot(ctx, snap); err != nil {
			return err
		}
		totals, err := tx.UserTotals(ctx, caller)
		if err != nil {
			return err
		}
		totals.Address = caller
		totals.ClaimedNative = new(big.Int).Add(clone(totals.ClaimedNative), snap.NativeAmount)
		totals.ClaimedERC20 = new(big.Int).Add(clone(totals.ClaimedERC20), snap.ERC20Amount)
		if totals.Minted == nil {
			totals.Minted = zero()
		}
		if err := tx.PutUserTotals(ctx, totals); err != nil {
			return err
		}
		paid = snap
		return nil
	})
	if err != nil {
		return RewardSnapshot{}, err
	}
	e.log.Info("engine: reward claimed",
		"user", caller.Hex(), "week", weekID, "campaign", hash,
		"native", paid.NativeAmount, "erc20", paid.ERC20Amount)
	return paid, nil
}

// SweepExpired moves a settled week's unclaimed snapshot amounts back into
// the campaign's current-week pool once the claim window has expired
// (admin-only). Swept snapshots can no longer be claimed.
func (e *Engine) SweepExpired(ctx context.Context, caller common.Address, weekID uint64, hash common.Hash) (native, erc20 *big.Int, err error) {
	native, erc20 = zero(), zero()
	err = e.store.Transact(ctx, func(tx Tx) error {
		if err := e.requireRole(ctx, tx, caller, RoleAdmin); err != nil {
			return err
		}
		if _, err := tx.Campaign(ctx, hash); err != nil {
			return err
		}
		cw, err := tx.CampaignWeek(ctx, weekID, hash)
		if err != nil {
			return err
		}
		if !cw.Settled {
			return fmt.Errorf("week %d: %w", weekID, ErrWeekNotSettled)
		}
		if !e.clock.Now().After(cw.ClaimActiveUntil) {
			return ErrClaimWindowOpen
		}
		snaps, err := tx.ListSnapshots(ctx, weekID, hash)
		if err != nil {
			return err
		}
		for _, s := range snaps {
			if s.Claimed || s.Swept {
				continue
			}
			native.Add(native, s.NativeAmount)
			erc20.Add(erc20, s.ERC20Amount)
			s.Swept = true
			if err := tx.PutSnapshot(ctx, s); err != nil {
				return err
			}
		}
		if native.Sign() == 0 && erc20.Sign() == 0 {
			return nil
		}
		epoch, err := tx.Epoch(ctx)
		if err != nil {
			return err
		}
		current, err := tx.CampaignWeek(ctx, epoch.WeekID, hash)
		if err != nil {
			return err
		}
		current.FundsNative = new(big.Int).Add(current.FundsNative, native)
		current.FundsERC20 = new(big.Int).Add(current.FundsERC20, erc20)
		current.LastUpdated = e.clock.Now()
		return tx.PutCampaignWeek(ctx, current)
	})
	if err != nil {
		return nil, nil, err
	}
	e.log.Info("engine: expired rewards swept", "week", weekID, "campaign", hash, "native", native, "erc20", erc20)
	return native, erc20, nil
}

// SetAdmins toggles admin roster entries (owner-only).
func (e *Engine) SetAdmins(ctx context.Context, caller common.Address, admins []common.Address, active bool) error {
	return e.store.Transact(ctx, func(tx Tx) error {
		if err := e.requireRole(ctx, tx, caller, RoleOwner); err != nil {
			return err
		}
		for _, a := range admins {
			if err := tx.SetAdmin(ctx, a, active); err != nil {
				return err
			}
		}
		return nil
	})
}

// SetMinimumToken updates the per-campaign pass-key fee (owner-only).
func (e *Engine) SetMinimumToken(ctx context.Context, caller common.Address, v *big.Int) error {
	if v == nil || v.Sign() < 0 {
		return errors.New("ledger: minimum token must be non-negative")
	}
	return e.updateEpoch(ctx, caller, func(epoch *EpochState) { epoch.MinimumToken = clone(v) })
}

// SetTransitionInterval updates the epoch duration (owner-only). Takes
// effect from the next transition; the current deadline is untouched.
func (e *Engine) SetTransitionInterval(ctx context.Context, caller common.Address, d time.Duration) error {
	if d <= 0 {
		return errors.New("ledger: transition interval must be positive")
	}
	return e.updateEpoch(ctx, caller, func(epoch *EpochState) { epoch.TransitionInterval = d })
}

// SetClaimWindow updates the claim window applied at future settlements
// (owner-only).
func (e *Engine) SetClaimWindow(ctx context.Context, caller common.Address, d time.Duration) error {
	if d <= 0 {
		return errors.New("ledger: claim window must be positive")
	}
	return e.updateEpoch(ctx, caller, func(epoch *EpochState) { epoch.ClaimWindow = d })
}

func (e *Engine) updateEpoch(ctx context.Context, caller common.Address, mutate func(*EpochState)) error {
	return e.store.Transact(ctx, func(tx Tx) error {
		if err := e.requireRole(ctx, tx, caller, RoleOwner); err != nil {
			return err
		}
		epoch, err := tx.Epoch(ctx)
		if err != nil {
			return err
		}
		mutate(&epoch)
		return tx.PutEpoch(ctx, epoch)
	})
}
