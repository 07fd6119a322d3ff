package ledger

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Tx is the set of reads and writes available inside a store transaction.
// Getters for keyed records return the zero record (not an error) when the
// key is absent; Campaign is the exception and returns ErrUnknownCampaign.
type Tx interface {
	// Epoch state. Exactly one row; Bootstrap creates it.
	Epoch(ctx context.Context) (EpochState, error)
	PutEpoch(ctx context.Context, e EpochState) error

	// Campaign registry.
	Campaign(ctx context.Context, hash common.Hash) (Campaign, error)
	PutCampaign(ctx context.Context, c Campaign) error
	ListCampaigns(ctx context.Context) ([]Campaign, error)

	// Per-week campaign accumulators.
	CampaignWeek(ctx context.Context, weekID uint64, hash common.Hash) (CampaignWeek, error)
	PutCampaignWeek(ctx context.Context, cw CampaignWeek) error
	ListCampaignWeeks(ctx context.Context, weekID uint64) ([]CampaignWeek, error)

	// Per (user, week, campaign) profiles.
	Profile(ctx context.Context, weekID uint64, hash common.Hash, addr common.Address) (Profile, error)
	PutProfile(ctx context.Context, p Profile) error
	ListProfiles(ctx context.Context, weekID uint64, hash common.Hash) ([]Profile, error)

	// Answered-question replay guard, scoped to (user, week, campaign).
	// Rollover starts every user on an empty set for the new week.
	HasAnswered(ctx context.Context, weekID uint64, hash common.Hash, addr common.Address, question common.Hash) (bool, error)
	MarkAnswered(ctx context.Context, weekID uint64, hash common.Hash, addr common.Address, question common.Hash) error

	// Ban registry, per (user, campaign), not week-scoped.
	IsBanned(ctx context.Context, hash common.Hash, addr common.Address) (bool, error)
	SetBanned(ctx context.Context, hash common.Hash, addr common.Address, banned bool) error

	// Settlement snapshots.
	Snapshot(ctx context.Context, weekID uint64, hash common.Hash, addr common.Address) (RewardSnapshot, bool, error)
	PutSnapshot(ctx context.Context, s RewardSnapshot) error
	ListSnapshots(ctx context.Context, weekID uint64, hash common.Hash) ([]RewardSnapshot, error)

	// Lifetime totals.
	UserTotals(ctx context.Context, addr common.Address) (UserTotals, error)
	PutUserTotals(ctx context.Context, t UserTotals) error

	// Treasury balances per (account, asset), standing in for the chain's
	// token custody. Movements commit or roll back with the transaction
	// that made them; a failed operation never strands a debit. Debit
	// returns ErrInsufficientFunds when the balance does not cover the
	// amount; nil and zero amounts are no-ops.
	Balance(ctx context.Context, account, asset common.Address) (*big.Int, error)
	Debit(ctx context.Context, account, asset common.Address, amount *big.Int) error
	Credit(ctx context.Context, account, asset common.Address, amount *big.Int) error

	// Roles. The owner is fixed at bootstrap; admins are toggled by the
	// owner and listed for the dashboard read.
	Owner(ctx context.Context) (common.Address, error)
	SetOwner(ctx context.Context, addr common.Address) error
	IsAdmin(ctx context.Context, addr common.Address) (bool, error)
	SetAdmin(ctx context.Context, addr common.Address, active bool) error
	ListAdmins(ctx context.Context) ([]common.Address, error)
}

// Store provides transactional access to ledger state. Transact runs fn in
// a read-write transaction that commits only if fn returns nil; View runs
// fn read-only. Implementations must make concurrent transactions appear
// sequential for the keys they touch.
type Store interface {
	Transact(ctx context.Context, fn func(tx Tx) error) error
	View(ctx context.Context, fn func(tx Tx) error) error
}
