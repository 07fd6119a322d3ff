package pgstore_test

import (
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/learnalabs/educaster/ledger"
	"github.com/learnalabs/educaster/ledger/pgstore"
	ectesting "github.com/learnalabs/educaster/utils/pkg/testing"
)

func newStore(t *testing.T) *pgstore.Store {
	t.Helper()
	store, err := pgstore.New(pgstore.Config{
		Logger: ectesting.NewLogger(),
		Pool:   testPool(t),
	})
	require.NoError(t, err)
	return store
}

func addr(b byte) common.Address {
	return common.BytesToAddress([]byte{b})
}

func TestEpochRoundTrip(t *testing.T) {
	store := newStore(t)
	ctx := t.Context()

	err := store.View(ctx, func(tx ledger.Tx) error {
		epoch, err := tx.Epoch(ctx)
		require.NoError(t, err)
		assert.Zero(t, epoch.WeekID)
		assert.True(t, epoch.TransitionDate.IsZero())
		require.NotNil(t, epoch.MinimumToken)
		return nil
	})
	require.NoError(t, err)

	want := ledger.EpochState{
		WeekID:             4,
		TransitionInterval: 7 * 24 * time.Hour,
		TransitionDate:     time.Date(2025, 6, 9, 0, 0, 0, 0, time.UTC),
		ClaimWindow:        72 * time.Hour,
		MinimumToken:       big.NewInt(250),
	}
	err = store.Transact(ctx, func(tx ledger.Tx) error {
		return tx.PutEpoch(ctx, want)
	})
	require.NoError(t, err)

	err = store.View(ctx, func(tx ledger.Tx) error {
		got, err := tx.Epoch(ctx)
		require.NoError(t, err)
		assert.Equal(t, want.WeekID, got.WeekID)
		assert.Equal(t, want.TransitionInterval, got.TransitionInterval)
		assert.True(t, want.TransitionDate.Equal(got.TransitionDate))
		assert.Equal(t, want.ClaimWindow, got.ClaimWindow)
		assert.Zero(t, want.MinimumToken.Cmp(got.MinimumToken))
		return nil
	})
	require.NoError(t, err)
}

func TestCampaignRoundTrip(t *testing.T) {
	store := newStore(t)
	ctx := t.Context()

	err := store.View(ctx, func(tx ledger.Tx) error {
		_, err := tx.Campaign(ctx, ledger.CampaignHash("nope"))
		assert.ErrorIs(t, err, ledger.ErrUnknownCampaign)
		return nil
	})
	require.NoError(t, err)

	solidity := ledger.Campaign{
		Hash:      ledger.CampaignHash("solidity"),
		Name:      "solidity",
		Operator:  addr(0x11),
		Token:     addr(0x22),
		CreatedAt: time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC),
	}
	rust := ledger.Campaign{
		Hash:      ledger.CampaignHash("rust"),
		Name:      "rust",
		Operator:  addr(0x33),
		Token:     addr(0x44),
		CreatedAt: time.Date(2025, 6, 2, 11, 0, 0, 0, time.UTC),
	}
	err = store.Transact(ctx, func(tx ledger.Tx) error {
		if err := tx.PutCampaign(ctx, solidity); err != nil {
			return err
		}
		return tx.PutCampaign(ctx, rust)
	})
	require.NoError(t, err)

	err = store.View(ctx, func(tx ledger.Tx) error {
		got, err := tx.Campaign(ctx, solidity.Hash)
		require.NoError(t, err)
		assert.Equal(t, solidity.Name, got.Name)
		assert.Equal(t, solidity.Operator, got.Operator)
		assert.Equal(t, solidity.Token, got.Token)

		all, err := tx.ListCampaigns(ctx)
		require.NoError(t, err)
		require.Len(t, all, 2)
		assert.Equal(t, "rust", all[0].Name)
		assert.Equal(t, "solidity", all[1].Name)
		return nil
	})
	require.NoError(t, err)
}

func TestCampaignWeekRoundTrip(t *testing.T) {
	store := newStore(t)
	ctx := t.Context()
	hash := ledger.CampaignHash("solidity")

	err := store.Transact(ctx, func(tx ledger.Tx) error {
		return tx.PutCampaign(ctx, ledger.Campaign{
			Hash: hash, Name: "solidity", Operator: addr(1), Token: addr(2),
			CreatedAt: time.Now().UTC(),
		})
	})
	require.NoError(t, err)

	err = store.View(ctx, func(tx ledger.Tx) error {
		cw, err := tx.CampaignWeek(ctx, 1, hash)
		require.NoError(t, err)
		assert.Equal(t, uint64(1), cw.WeekID)
		assert.Zero(t, cw.FundsNative.Sign())
		assert.Zero(t, cw.FundsERC20.Sign())
		assert.Zero(t, cw.TipsNative.Sign())
		assert.False(t, cw.Settled)
		assert.True(t, cw.ClaimActiveUntil.IsZero())
		return nil
	})
	require.NoError(t, err)

	until := time.Date(2025, 6, 12, 0, 0, 0, 0, time.UTC)
	want := ledger.CampaignWeek{
		WeekID:           1,
		CampaignHash:     hash,
		FundsNative:      big.NewInt(1000),
		FundsERC20:       big.NewInt(500),
		TipsNative:       big.NewInt(42),
		TotalPoints:      90,
		ActiveLearners:   3,
		LastUpdated:      time.Date(2025, 6, 5, 0, 0, 0, 0, time.UTC),
		Settled:          true,
		ClaimActiveUntil: until,
	}
	err = store.Transact(ctx, func(tx ledger.Tx) error {
		return tx.PutCampaignWeek(ctx, want)
	})
	require.NoError(t, err)

	err = store.View(ctx, func(tx ledger.Tx) error {
		got, err := tx.CampaignWeek(ctx, 1, hash)
		require.NoError(t, err)
		assert.Zero(t, got.FundsNative.Cmp(big.NewInt(1000)))
		assert.Zero(t, got.FundsERC20.Cmp(big.NewInt(500)))
		assert.Zero(t, got.TipsNative.Cmp(big.NewInt(42)))
		assert.Equal(t, uint64(90), got.TotalPoints)
		assert.Equal(t, uint64(3), got.ActiveLearners)
		assert.True(t, got.Settled)
		assert.True(t, until.Equal(got.ClaimActiveUntil))

		weeks, err := tx.ListCampaignWeeks(ctx, 1)
		require.NoError(t, err)
		require.Len(t, weeks, 1)
		assert.Equal(t, hash, weeks[0].CampaignHash)
		return nil
	})
	require.NoError(t, err)
}

func TestProfilesAndAnsweredQuestions(t *testing.T) {
	store := newStore(t)
	ctx := t.Context()
	hash := ledger.CampaignHash("rust")
	user := addr(0xAA)
	question := ledger.QuestionHash("q1")

	err := store.Transact(ctx, func(tx ledger.Tx) error {
		if err := tx.PutCampaign(ctx, ledger.Campaign{
			Hash: hash, Name: "rust", Operator: addr(1), Token: addr(2),
			CreatedAt: time.Now().UTC(),
		}); err != nil {
			return err
		}
		if err := tx.PutProfile(ctx, ledger.Profile{
			WeekID: 1, CampaignHash: hash, Address: user, PassKey: true, Points: 60,
		}); err != nil {
			return err
		}
		return tx.MarkAnswered(ctx, 1, hash, user, question)
	})
	require.NoError(t, err)

	err = store.View(ctx, func(tx ledger.Tx) error {
		p, err := tx.Profile(ctx, 1, hash, user)
		require.NoError(t, err)
		assert.True(t, p.PassKey)
		assert.Equal(t, uint64(60), p.Points)

		// Absent profile is a zero record, not an error.
		other, err := tx.Profile(ctx, 1, hash, addr(0xBB))
		require.NoError(t, err)
		assert.False(t, other.PassKey)
		assert.Zero(t, other.Points)

		answered, err := tx.HasAnswered(ctx, 1, hash, user, question)
		require.NoError(t, err)
		assert.True(t, answered)

		// Same question a week later is fresh.
		answered, err = tx.HasAnswered(ctx, 2, hash, user, question)
		require.NoError(t, err)
		assert.False(t, answered)

		profiles, err := tx.ListProfiles(ctx, 1, hash)
		require.NoError(t, err)
		require.Len(t, profiles, 1)
		assert.Equal(t, user, profiles[0].Address)
		return nil
	})
	require.NoError(t, err)
}

func TestBansRoundTrip(t *testing.T) {
	store := newStore(t)
	ctx := t.Context()
	hash := ledger.CampaignHash("solidity")
	user := addr(0xAA)

	err := store.Transact(ctx, func(tx ledger.Tx) error {
		return tx.SetBanned(ctx, hash, user, true)
	})
	require.NoError(t, err)

	err = store.View(ctx, func(tx ledger.Tx) error {
		banned, err := tx.IsBanned(ctx, hash, user)
		require.NoError(t, err)
		assert.True(t, banned)
		return nil
	})
	require.NoError(t, err)

	err = store.Transact(ctx, func(tx ledger.Tx) error {
		return tx.SetBanned(ctx, hash, user, false)
	})
	require.NoError(t, err)

	err = store.View(ctx, func(tx ledger.Tx) error {
		banned, err := tx.IsBanned(ctx, hash, user)
		require.NoError(t, err)
		assert.False(t, banned)
		return nil
	})
	require.NoError(t, err)
}

func TestSnapshotsAndUserTotals(t *testing.T) {
	store := newStore(t)
	ctx := t.Context()
	hash := ledger.CampaignHash("rust")
	user := addr(0xAA)

	err := store.View(ctx, func(tx ledger.Tx) error {
		_, ok, err := tx.Snapshot(ctx, 1, hash, user)
		require.NoError(t, err)
		assert.False(t, ok)
		return nil
	})
	require.NoError(t, err)

	err = store.Transact(ctx, func(tx ledger.Tx) error {
		if err := tx.PutSnapshot(ctx, ledger.RewardSnapshot{
			WeekID: 1, CampaignHash: hash, Address: user,
			NativeAmount: big.NewInt(733), ERC20Amount: big.NewInt(10),
		}); err != nil {
			return err
		}
		return tx.PutUserTotals(ctx, ledger.UserTotals{
			Address:       user,
			ClaimedNative: big.NewInt(733),
			ClaimedERC20:  big.NewInt(10),
			Minted:        big.NewInt(1),
		})
	})
	require.NoError(t, err)

	err = store.View(ctx, func(tx ledger.Tx) error {
		snap, ok, err := tx.Snapshot(ctx, 1, hash, user)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Zero(t, snap.NativeAmount.Cmp(big.NewInt(733)))
		assert.Zero(t, snap.ERC20Amount.Cmp(big.NewInt(10)))
		assert.False(t, snap.Claimed)

		snaps, err := tx.ListSnapshots(ctx, 1, hash)
		require.NoError(t, err)
		require.Len(t, snaps, 1)

		totals, err := tx.UserTotals(ctx, user)
		require.NoError(t, err)
		assert.Zero(t, totals.ClaimedNative.Cmp(big.NewInt(733)))

		// Absent totals are a zero record.
		empty, err := tx.UserTotals(ctx, addr(0xBB))
		require.NoError(t, err)
		assert.Zero(t, empty.ClaimedNative.Sign())
		return nil
	})
	require.NoError(t, err)
}

func TestRolesRoundTrip(t *testing.T) {
	store := newStore(t)
	ctx := t.Context()

	err := store.View(ctx, func(tx ledger.Tx) error {
		owner, err := tx.Owner(ctx)
		require.NoError(t, err)
		assert.Equal(t, common.Address{}, owner)
		return nil
	})
	require.NoError(t, err)

	err = store.Transact(ctx, func(tx ledger.Tx) error {
		if err := tx.SetOwner(ctx, addr(0x01)); err != nil {
			return err
		}
		if err := tx.SetAdmin(ctx, addr(0x02), true); err != nil {
			return err
		}
		return tx.SetAdmin(ctx, addr(0x03), true)
	})
	require.NoError(t, err)

	err = store.Transact(ctx, func(tx ledger.Tx) error {
		return tx.SetAdmin(ctx, addr(0x03), false)
	})
	require.NoError(t, err)

	err = store.View(ctx, func(tx ledger.Tx) error {
		owner, err := tx.Owner(ctx)
		require.NoError(t, err)
		assert.Equal(t, addr(0x01), owner)

		isAdmin, err := tx.IsAdmin(ctx, addr(0x02))
		require.NoError(t, err)
		assert.True(t, isAdmin)

		isAdmin, err = tx.IsAdmin(ctx, addr(0x03))
		require.NoError(t, err)
		assert.False(t, isAdmin)

		admins, err := tx.ListAdmins(ctx)
		require.NoError(t, err)
		require.Len(t, admins, 1)
		assert.Equal(t, addr(0x02), admins[0])
		return nil
	})
	require.NoError(t, err)
}

func TestTransactRollsBackOnError(t *testing.T) {
	store := newStore(t)
	ctx := t.Context()
	boom := errors.New("boom")

	err := store.Transact(ctx, func(tx ledger.Tx) error {
		if err := tx.SetOwner(ctx, addr(0x01)); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	err = store.View(ctx, func(tx ledger.Tx) error {
		owner, err := tx.Owner(ctx)
		require.NoError(t, err)
		assert.Equal(t, common.Address{}, owner)
		return nil
	})
	require.NoError(t, err)
}

func TestBalances(t *testing.T) {
	pool := testPool(t)
	store := newStore(t)
	ctx := t.Context()

	treasury, err := pgstore.NewTreasury(pgstore.Config{
		Logger: ectesting.NewLogger(),
		Pool:   pool,
	})
	require.NoError(t, err)

	account := addr(0xAA)
	asset := addr(0x10)

	balance, err := treasury.Balance(ctx, account, asset)
	require.NoError(t, err)
	assert.Zero(t, balance.Sign())

	// Debit with no balance row at all.
	err = store.Transact(ctx, func(tx ledger.Tx) error {
		return tx.Debit(ctx, account, asset, big.NewInt(1))
	})
	assert.ErrorIs(t, err, ledger.ErrInsufficientFunds)

	require.NoError(t, treasury.Mint(ctx, account, asset, big.NewInt(100)))
	require.NoError(t, store.Transact(ctx, func(tx ledger.Tx) error {
		return tx.Debit(ctx, account, asset, big.NewInt(60))
	}))

	err = store.Transact(ctx, func(tx ledger.Tx) error {
		return tx.Debit(ctx, account, asset, big.NewInt(41))
	})
	assert.ErrorIs(t, err, ledger.ErrInsufficientFunds)

	balance, err = treasury.Balance(ctx, account, asset)
	require.NoError(t, err)
	assert.Zero(t, balance.Cmp(big.NewInt(40)))
}

func TestBalanceMovesRollBackWithTransaction(t *testing.T) {
	pool := testPool(t)
	store := newStore(t)
	ctx := t.Context()

	treasury, err := pgstore.NewTreasury(pgstore.Config{
		Logger: ectesting.NewLogger(),
		Pool:   pool,
	})
	require.NoError(t, err)

	account := addr(0xAA)
	asset := addr(0x10)
	require.NoError(t, treasury.Mint(ctx, account, asset, big.NewInt(100)))

	boom := errors.New("boom")
	err = store.Transact(ctx, func(tx ledger.Tx) error {
		if err := tx.Debit(ctx, account, asset, big.NewInt(60)); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	// The debit rode the failed transaction and was undone with it.
	balance, err := treasury.Balance(ctx, account, asset)
	require.NoError(t, err)
	assert.Zero(t, balance.Cmp(big.NewInt(100)))
}

// TestEngineFlowOnPostgres runs the full weekly cycle against the Postgres
// store: bootstrap, register, fund, key up, record, settle, claim.
func TestEngineFlowOnPostgres(t *testing.T) {
	pool := testPool(t)
	store := newStore(t)
	ctx := t.Context()

	clock := clockwork.NewFakeClockAt(time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC))
	treasury, err := pgstore.NewTreasury(pgstore.Config{
		Logger: ectesting.NewLogger(),
		Pool:   pool,
	})
	require.NoError(t, err)

	owner := addr(0x01)
	operator := addr(0x02)
	learner := addr(0x03)
	token := addr(0x10)

	require.NoError(t, ledger.Bootstrap(ctx, store, clock, ledger.BootstrapParams{
		Owner:              owner,
		TransitionInterval: 7 * 24 * time.Hour,
		ClaimWindow:        72 * time.Hour,
		MinimumToken:       big.NewInt(100),
	}))

	engine, err := ledger.NewEngine(ledger.Config{
		Logger: ectesting.NewLogger(),
		Clock:  clock,
		Store:  store,
	})
	require.NoError(t, err)

	c, err := engine.RegisterCampaign(ctx, owner, "solidity", operator, token)
	require.NoError(t, err)

	require.NoError(t, treasury.Mint(ctx, operator, ledger.NativeAsset, big.NewInt(1000)))
	require.NoError(t, treasury.Mint(ctx, operator, token, big.NewInt(500)))
	require.NoError(t, engine.SetUpCampaign(ctx, operator, "solidity",
		big.NewInt(500), token, big.NewInt(1000)))

	require.NoError(t, treasury.Mint(ctx, learner, ledger.NativeAsset, big.NewInt(100)))
	require.NoError(t, engine.GenerateKey(ctx, learner, []common.Hash{c.Hash}, big.NewInt(100)))

	credited, err := engine.RecordPoints(ctx, owner, learner, ledger.QuizResult{
		CampaignHash: c.Hash,
		Questions: []ledger.AnsweredQuestion{
			{QuestionHash: ledger.QuestionHash("q1"), Points: 40},
			{QuestionHash: ledger.QuestionHash("q2"), Points: 20},
		},
	}, c.Hash)
	require.NoError(t, err)
	assert.Equal(t, uint64(60), credited)

	clock.Advance(7*24*time.Hour + time.Minute)
	report, err := engine.SortWeeklyReward(ctx, owner, token, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), report.SettledWeekID)
	assert.Equal(t, uint64(2), report.NewWeekID)
	assert.Equal(t, 1, report.CampaignsSettled)

	snap, err := engine.ClaimReward(ctx, learner, 1, c.Hash)
	require.NoError(t, err)
	// Sole learner takes the whole pool: 1000 funds + 100 pass-key fee.
	assert.Zero(t, snap.NativeAmount.Cmp(big.NewInt(1100)))
	assert.Zero(t, snap.ERC20Amount.Cmp(big.NewInt(500)))

	native, err := treasury.Balance(ctx, learner, ledger.NativeAsset)
	require.NoError(t, err)
	assert.Zero(t, native.Cmp(big.NewInt(1100)))
	erc20, err := treasury.Balance(ctx, learner, token)
	require.NoError(t, err)
	assert.Zero(t, erc20.Cmp(big.NewInt(500)))

	_, err = engine.ClaimReward(ctx, learner, 1, c.Hash)
	assert.ErrorIs(t, err, ledger.ErrAlreadyClaimed)
}
