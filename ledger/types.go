// Package ledger implements the Educaster weekly reward ledger: campaign
// registry, epoch clock, pass-key gating, per-question points accounting,
// ban registry, and the weekly settlement/claim engine. All state lives in
// an explicit Store; every operation runs as a single store transaction.
package ledger

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// NativeAsset is the asset identifier used by the Treasury for the chain's
// native currency. ERC20 assets are identified by their token address.
var NativeAsset = common.Address{}

// EpochState is the process-wide weekly clock plus the tunable parameters
// that gate pass-key fees and claim windows.
type EpochState struct {
	WeekID             uint64
	TransitionInterval time.Duration
	TransitionDate     time.Time
	ClaimWindow        time.Duration
	MinimumToken       *big.Int // pass-key fee per campaign, in native units
}

// Campaign is a registered topic bucket. The hash is derived from the name
// (keccak) and never changes; the operator is the only non-admin address
// allowed to fund it.
type Campaign struct {
	Hash      common.Hash
	Name      string
	Operator  common.Address
	Token     common.Address // ERC20 funding this campaign
	CreatedAt time.Time
}

// CampaignWeek holds the per-week mutable side of a campaign: fund pools,
// point totals and the claim window once settled. A new row is created at
// every epoch rollover; settled rows are immutable except for sweeps.
type CampaignWeek struct {
	WeekID           uint64
	CampaignHash     common.Hash
	FundsNative      *big.Int
	FundsERC20       *big.Int
	TipsNative       *big.Int // donations, merged into the pool at settlement
	TotalPoints      uint64
	ActiveLearners   uint64
	LastUpdated      time.Time
	Settled          bool
	ClaimActiveUntil time.Time // zero until settled
}

// Pool returns the distributable native balance: operator funds plus tips.
func (cw *CampaignWeek) Pool() *big.Int {
	return new(big.Int).Add(cw.FundsNative, cw.TipsNative)
}

// Profile is the per (user, week, campaign) record: pass-key flag and the
// points accrued this week.
type Profile struct {
	WeekID       uint64
	CampaignHash common.Hash
	Address      common.Address
	PassKey      bool
	Points       uint64
}

// UserTotals are lifetime running totals, never reset at rollover.
type UserTotals struct {
	Address       common.Address
	ClaimedNative *big.Int
	ClaimedERC20  *big.Int
	Minted        *big.Int
}

// RewardSnapshot is a user's pro-rata share of a campaign's pool, computed
// once at settlement and fixed thereafter.
type RewardSnapshot struct {
	WeekID       uint64
	CampaignHash common.Hash
	Address      common.Address
	NativeAmount *big.Int
	ERC20Amount  *big.Int
	Claimed      bool
	Swept        bool
}

// AnsweredQuestion is a single scored question inside a quiz result. The
// hash identifies the question content; the ledger never sees the text.
type AnsweredQuestion struct {
	QuestionHash common.Hash
	Points       uint64
}

// QuizResult is one quiz submission for one campaign.
type QuizResult struct {
	CampaignHash common.Hash
	Questions    []AnsweredQuestion
}

// Eligibility is the per-campaign answer to "can this user claim, and how
// much": pass-key status, ban status, and snapshot amounts if settled.
type Eligibility struct {
	CampaignHash common.Hash
	HasPassKey   bool
	Banned       bool
	Claimed      bool
	NativeAmount *big.Int
	ERC20Amount  *big.Int
}

// SettlementReport summarizes one SortWeeklyReward run.
type SettlementReport struct {
	SettledWeekID    uint64
	NewWeekID        uint64
	CampaignsSettled int
	SnapshotsWritten int
	ClaimActiveUntil time.Time
}

// ProfileView combines the weekly profiles of a user across campaigns with
// their lifetime totals.
type ProfileView struct {
	Address  common.Address
	WeekID   uint64
	Profiles []Profile
	Totals   UserTotals
}

// DataView is the dashboard read: epoch state, the current week's campaign
// snapshots and the active admin roster.
type DataView struct {
	Epoch     EpochState
	Campaigns []CampaignSnapshot
	Admins    []common.Address
}

// CampaignSnapshot joins a campaign with its current-week accumulators.
type CampaignSnapshot struct {
	Campaign
	Week CampaignWeek
}

func zero() *big.Int { return new(big.Int) }

func clone(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(v)
}
