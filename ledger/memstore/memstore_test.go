package memstore

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/learnalabs/educaster/ledger"
)

func addr(b byte) common.Address {
	var a common.Address
	a[19] = b
	return a
}

func TestTransactRollsBackOnError(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := New()

	boom := errors.New("boom")
	err := s.Transact(ctx, func(tx ledger.Tx) error {
		require.NoError(t, tx.PutCampaign(ctx, ledger.Campaign{
			Hash: ledger.CampaignHash("solidity"),
			Name: "solidity",
		}))
		require.NoError(t, tx.SetOwner(ctx, addr(1)))
		return boom
	})
	require.ErrorIs(t, err, boom)

	// Nothing from the failed transaction is visible.
	require.NoError(t, s.View(ctx, func(tx ledger.Tx) error {
		_, err := tx.Campaign(ctx, ledger.CampaignHash("solidity"))
		assert.ErrorIs(t, err, ledger.ErrUnknownCampaign)
		owner, err := tx.Owner(ctx)
		require.NoError(t, err)
		assert.Equal(t, common.Address{}, owner)
		return nil
	}))
}

func TestTransactCommitsOnSuccess(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := New()
	hash := ledger.CampaignHash("rust")

	require.NoError(t, s.Transact(ctx, func(tx ledger.Tx) error {
		return tx.PutCampaign(ctx, ledger.Campaign{Hash: hash, Name: "rust"})
	}))

	require.NoError(t, s.View(ctx, func(tx ledger.Tx) error {
		c, err := tx.Campaign(ctx, hash)
		require.NoError(t, err)
		assert.Equal(t, "rust", c.Name)
		return nil
	}))
}

func TestCampaignWeekZeroRecordDefaults(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := New()
	hash := ledger.CampaignHash("go")

	require.NoError(t, s.View(ctx, func(tx ledger.Tx) error {
		cw, err := tx.CampaignWeek(ctx, 3, hash)
		require.NoError(t, err)
		assert.Equal(t, uint64(3), cw.WeekID)
		assert.Equal(t, hash, cw.CampaignHash)
		assert.Zero(t, cw.FundsNative.Sign())
		assert.Zero(t, cw.FundsERC20.Sign())
		assert.Zero(t, cw.TipsNative.Sign())
		assert.False(t, cw.Settled)
		return nil
	}))
}

func TestBigIntsAreIsolatedFromCallers(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := New()
	hash := ledger.CampaignHash("go")
	funds := big.NewInt(100)

	require.NoError(t, s.Transact(ctx, func(tx ledger.Tx) error {
		return tx.PutCampaignWeek(ctx, ledger.CampaignWeek{
			WeekID:       1,
			CampaignHash: hash,
			FundsNative:  funds,
			FundsERC20:   new(big.Int),
			TipsNative:   new(big.Int),
		})
	}))

	// Mutating the caller's big.Int after the write must not leak into the
	// store, and mutating a read-back value must not leak either.
	funds.SetInt64(999)

	require.NoError(t, s.View(ctx, func(tx ledger.Tx) error {
		cw, err := tx.CampaignWeek(ctx, 1, hash)
		require.NoError(t, err)
		assert.Equal(t, int64(100), cw.FundsNative.Int64())
		cw.FundsNative.SetInt64(5)
		return nil
	}))

	require.NoError(t, s.View(ctx, func(tx ledger.Tx) error {
		cw, err := tx.CampaignWeek(ctx, 1, hash)
		require.NoError(t, err)
		assert.Equal(t, int64(100), cw.FundsNative.Int64())
		return nil
	}))
}

func TestBalancesMoveWithTransaction(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := New()
	account := addr(1)
	asset := addr(9)
	s.Mint(account, asset, big.NewInt(100))

	// A debit inside a failed transaction is undone with it.
	boom := errors.New("boom")
	err := s.Transact(ctx, func(tx ledger.Tx) error {
		require.NoError(t, tx.Debit(ctx, account, asset, big.NewInt(60)))
		return boom
	})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, int64(100), s.Balance(account, asset).Int64())

	require.NoError(t, s.Transact(ctx, func(tx ledger.Tx) error {
		return tx.Debit(ctx, account, asset, big.NewInt(60))
	}))
	assert.Equal(t, int64(40), s.Balance(account, asset).Int64())

	err = s.Transact(ctx, func(tx ledger.Tx) error {
		return tx.Debit(ctx, account, asset, big.NewInt(41))
	})
	require.ErrorIs(t, err, ledger.ErrInsufficientFunds)

	require.NoError(t, s.Transact(ctx, func(tx ledger.Tx) error {
		return tx.Credit(ctx, account, asset, big.NewInt(5))
	}))
	assert.Equal(t, int64(45), s.Balance(account, asset).Int64())
}

func TestAnsweredQuestionsAreWeekScoped(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := New()
	hash := ledger.CampaignHash("go")
	user := addr(7)
	q := ledger.QuestionHash("what is a goroutine?")

	require.NoError(t, s.Transact(ctx, func(tx ledger.Tx) error {
		return tx.MarkAnswered(ctx, 1, hash, user, q)
	}))

	require.NoError(t, s.View(ctx, func(tx ledger.Tx) error {
		ok, err := tx.HasAnswered(ctx, 1, hash, user, q)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = tx.HasAnswered(ctx, 2, hash, user, q)
		require.NoError(t, err)
		assert.False(t, ok)
		return nil
	}))
}

func TestListOrderingIsDeterministic(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := New()

	require.NoError(t, s.Transact(ctx, func(tx ledger.Tx) error {
		for _, name := range []string{"zig", "ada", "ocaml"} {
			if err := tx.PutCampaign(ctx, ledger.Campaign{Hash: ledger.CampaignHash(name), Name: name}); err != nil {
				return err
			}
		}
		for _, a := range []common.Address{addr(3), addr(1), addr(2)} {
			if err := tx.SetAdmin(ctx, a, true); err != nil {
				return err
			}
		}
		return nil
	}))

	require.NoError(t, s.View(ctx, func(tx ledger.Tx) error {
		cs, err := tx.ListCampaigns(ctx)
		require.NoError(t, err)
		require.Len(t, cs, 3)
		assert.Equal(t, []string{"ada", "ocaml", "zig"}, []string{cs[0].Name, cs[1].Name, cs[2].Name})

		admins, err := tx.ListAdmins(ctx)
		require.NoError(t, err)
		assert.Equal(t, []common.Address{addr(1), addr(2), addr(3)}, admins)
		return nil
	}))
}
