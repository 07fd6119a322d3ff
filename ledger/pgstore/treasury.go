package pgstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/learnalabs/educaster/ledger"
)

// Balances live in the balances table and stand in for the on-chain token
// custody. Debit and Credit run on the transaction's connection, so a
// rolled-back operation rolls its balance movements back with it.

func (t *pgTx) Balance(ctx context.Context, account, asset common.Address) (*big.Int, error) {
	var s string
	err := t.tx.QueryRow(ctx, `
		SELECT amount::text FROM balances WHERE account = $1 AND asset = $2
	`, account[:], asset[:]).Scan(&s)
	if errors.Is(err, pgx.ErrNoRows) {
		return new(big.Int), nil
	}
	if err != nil {
		return nil, fmt.Errorf("select balance: %w", err)
	}
	return parseNum(s), nil
}

func (t *pgTx) Debit(ctx context.Context, account, asset common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() == 0 {
		return nil
	}
	if amount.Sign() < 0 {
		return errors.New("debit amount must be positive")
	}
	tag, err := t.tx.Exec(ctx, `
		UPDATE balances SET amount = amount - $3::numeric
		WHERE account = $1 AND asset = $2 AND amount >= $3::numeric
	`, account[:], asset[:], amount.String())
	if err != nil {
		return fmt.Errorf("debit balance: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("account %s asset %s amount %s: %w",
			account.Hex(), asset.Hex(), amount, ledger.ErrInsufficientFunds)
	}
	return nil
}

func (t *pgTx) Credit(ctx context.Context, account, asset common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() == 0 {
		return nil
	}
	if amount.Sign() < 0 {
		return errors.New("credit amount must be positive")
	}
	_, err := t.tx.Exec(ctx, `
		INSERT INTO balances (account, asset, amount) VALUES ($1, $2, $3::numeric)
		ON CONFLICT (account, asset) DO UPDATE SET amount = balances.amount + EXCLUDED.amount
	`, account[:], asset[:], amount.String())
	if err != nil {
		return fmt.Errorf("credit balance: %w", err)
	}
	return nil
}

// Treasury seeds and inspects balances outside any ledger transaction:
// Mint models a deposit observed on chain, Balance serves operational
// reads. Ledger operations move funds through the Tx methods instead.
type Treasury struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewTreasury(cfg Config) (*Treasury, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Treasury{log: cfg.Logger, pool: cfg.Pool}, nil
}

// Mint credits an account, modeling a deposit arriving from outside the
// ledger.
func (t *Treasury) Mint(ctx context.Context, account, asset common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return errors.New("mint amount must be positive")
	}
	_, err := t.pool.Exec(ctx, `
		INSERT INTO balances (account, asset, amount) VALUES ($1, $2, $3::numeric)
		ON CONFLICT (account, asset) DO UPDATE SET amount = balances.amount + EXCLUDED.amount
	`, account[:], asset[:], amount.String())
	if err != nil {
		return fmt.Errorf("mint balance: %w", err)
	}
	return nil
}

// Balance returns the current balance for (account, asset).
func (t *Treasury) Balance(ctx context.Context, account, asset common.Address) (*big.Int, error) {
	var s string
	err := t.pool.QueryRow(ctx, `
		SELECT amount::text FROM balances WHERE account = $1 AND asset = $2
	`, account[:], asset[:]).Scan(&s)
	if errors.Is(err, pgx.ErrNoRows) {
		return new(big.Int), nil
	}
	if err != nil {
		return nil, fmt.Errorf("select balance: %w", err)
	}
	return parseNum(s), nil
}
