// Package pgstore is the PostgreSQL ledger.Store. Transactions run at
// serializable isolation so concurrent settlement and point recording
// appear sequential; callers that hit a serialization failure retry at
// their level.
package pgstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/learnalabs/educaster/ledger"
)

type Config struct {
	Logger *slog.Logger
	Pool   *pgxpool.Pool
}

func (cfg *Config) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.Pool == nil {
		return errors.New("pool is required")
	}
	return nil
}

type Store struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func New(cfg Config) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Store{log: cfg.Logger, pool: cfg.Pool}, nil
}

func (s *Store) Transact(ctx context.Context, fn func(tx ledger.Tx) error) error {
	return s.run(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable}, fn)
}

func (s *Store) View(ctx context.Context, fn func(tx ledger.Tx) error) error {
	return s.run(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly}, fn)
}

func (s *Store) run(ctx context.Context, opts pgx.TxOptions, fn func(tx ledger.Tx) error) error {
	tx, err := s.pool.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()
	if err := fn(&pgTx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

type pgTx struct {
	tx pgx.Tx
}

func (t *pgTx) Epoch(ctx context.Context) (ledger.EpochState, error) {
	var (
		e               ledger.EpochState
		intervalSecs    int64
		claimWindowSecs int64
		transitionDate  *time.Time
		minimumToken    string
	)
	err := t.tx.QueryRow(ctx, `
		SELECT week_id, transition_interval_secs, transition_date,
		       claim_window_secs, minimum_token::text
		FROM epoch WHERE id = 1
	`).Scan(&e.WeekID, &intervalSecs, &transitionDate, &claimWindowSecs, &minimumToken)
	if errors.Is(err, pgx.ErrNoRows) {
		return ledger.EpochState{MinimumToken: new(big.Int)}, nil
	}
	if err != nil {
		return ledger.EpochState{}, fmt.Errorf("select epoch: %w", err)
	}
	e.TransitionInterval = time.Duration(intervalSecs) * time.Second
	e.ClaimWindow = time.Duration(claimWindowSecs) * time.Second
	if transitionDate != nil {
		e.TransitionDate = *transitionDate
	}
	e.MinimumToken = parseNum(minimumToken)
	return e, nil
}

func (t *pgTx) PutEpoch(ctx context.Context, e ledger.EpochState) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO epoch (id, week_id, transition_interval_secs, transition_date,
		                   claim_window_secs, minimum_token)
		VALUES (1, $1, $2, $3, $4, $5::numeric)
		ON CONFLICT (id) DO UPDATE SET
			week_id = EXCLUDED.week_id,
			transition_interval_secs = EXCLUDED.transition_interval_secs,
			transition_date = EXCLUDED.transition_date,
			claim_window_secs = EXCLUDED.claim_window_secs,
			minimum_token = EXCLUDED.minimum_token
	`, e.WeekID, int64(e.TransitionInterval/time.Second), e.TransitionDate,
		int64(e.ClaimWindow/time.Second), numStr(e.MinimumToken))
	if err != nil {
		return fmt.Errorf("upsert epoch: %w", err)
	}
	return nil
}

func (t *pgTx) Campaign(ctx context.Context, hash common.Hash) (ledger.Campaign, error) {
	var (
		c               ledger.Campaign
		operator, token []byte
	)
	err := t.tx.QueryRow(ctx, `
		SELECT name, operator, token, created_at FROM campaigns WHERE hash = $1
	`, hash[:]).Scan(&c.Name, &operator, &token, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ledger.Campaign{}, ledger.ErrUnknownCampaign
	}
	if err != nil {
		return ledger.Campaign{}, fmt.Errorf("select campaign: %w", err)
	}
	c.Hash = hash
	c.Operator = common.BytesToAddress(operator)
	c.Token = common.BytesToAddress(token)
	return c, nil
}

func (t *pgTx) PutCampaign(ctx context.Context, c ledger.Campaign) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO campaigns (hash, name, operator, token, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (hash) DO UPDATE SET
			operator = EXCLUDED.operator,
			token = EXCLUDED.token
	`, c.Hash[:], c.Name, c.Operator[:], c.Token[:], c.CreatedAt)
	if err != nil {
		return fmt.Errorf("upsert campaign: %w", err)
	}
	return nil
}

func (t *pgTx) ListCampaigns(ctx context.Context) ([]ledger.Campaign, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT hash, name, operator, token, created_at FROM campaigns ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("list campaigns: %w", err)
	}
	defer rows.Close()

	var out []ledger.Campaign
	for rows.Next() {
		var (
			c                     ledger.Campaign
			hash, operator, token []byte
		)
		if err := rows.Scan(&hash, &c.Name, &operator, &token, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan campaign: %w", err)
		}
		c.Hash = common.BytesToHash(hash)
		c.Operator = common.BytesToAddress(operator)
		c.Token = common.BytesToAddress(token)
		out = append(out, c)
	}
	return out, rows.Err()
}

func (t *pgTx) CampaignWeek(ctx context.Context, weekID uint64, hash common.Hash) (ledger.CampaignWeek, error) {
	cw := ledger.CampaignWeek{WeekID: weekID, CampaignHash: hash}
	var (
		fundsNative, fundsERC20, tipsNative string
		lastUpdated, claimUntil             *time.Time
	)
	err := t.tx.QueryRow(ctx, `
		SELECT funds_native::text, funds_erc20::text, tips_native::text,
		       total_points, active_learners, last_updated, settled, claim_active_until
		FROM campaign_weeks WHERE week_id = $1 AND campaign_hash = $2
	`, weekID, hash[:]).Scan(&fundsNative, &fundsERC20, &tipsNative,
		&cw.TotalPoints, &cw.ActiveLearners, &lastUpdated, &cw.Settled, &claimUntil)
	if errors.Is(err, pgx.ErrNoRows) {
		cw.FundsNative = new(big.Int)
		cw.FundsERC20 = new(big.Int)
		cw.TipsNative = new(big.Int)
		return cw, nil
	}
	if err != nil {
		return ledger.CampaignWeek{}, fmt.Errorf("select campaign week: %w", err)
	}
	cw.FundsNative = parseNum(fundsNative)
	cw.FundsERC20 = parseNum(fundsERC20)
	cw.TipsNative = parseNum(tipsNative)
	if lastUpdated != nil {
		cw.LastUpdated = *lastUpdated
	}
	if claimUntil != nil {
		cw.ClaimActiveUntil = *claimUntil
	}
	return cw, nil
}

func (t *pgTx) PutCampaignWeek(ctx context.Context, cw ledger.CampaignWeek) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO campaign_weeks (week_id, campaign_hash, funds_native, funds_erc20,
		                            tips_native, total_points, active_learners,
		                            last_updated, settled, claim_active_until)
		VALUES ($1, $2, $3::numeric, $4::numeric, $5::numeric, $6, $7, $8, $9, $10)
		ON CONFLICT (week_id, campaign_hash) DO UPDATE SET
			funds_native = EXCLUDED.funds_native,
			funds_erc20 = EXCLUDED.funds_erc20,
			tips_native = EXCLUDED.tips_native,
			total_points = EXCLUDED.total_points,
			active_learners = EXCLUDED.active_learners,
			last_updated = EXCLUDED.last_updated,
			settled = EXCLUDED.settled,
			claim_active_until = EXCLUDED.claim_active_until
	`, cw.WeekID, cw.CampaignHash[:], numStr(cw.FundsNative), numStr(cw.FundsERC20),
		numStr(cw.TipsNative), cw.TotalPoints, cw.ActiveLearners,
		timePtr(cw.LastUpdated), cw.Settled, timePtr(cw.ClaimActiveUntil))
	if err != nil {
		return fmt.Errorf("upsert campaign week: %w", err)
	}
	return nil
}

func (t *pgTx) ListCampaignWeeks(ctx context.Context, weekID uint64) ([]ledger.CampaignWeek, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT campaign_hash, funds_native::text, funds_erc20::text, tips_native::text,
		       total_points, active_learners, last_updated, settled, claim_active_until
		FROM campaign_weeks WHERE week_id = $1 ORDER BY campaign_hash
	`, weekID)
	if err != nil {
		return nil, fmt.Errorf("list campaign weeks: %w", err)
	}
	defer rows.Close()

	var out []ledger.CampaignWeek
	for rows.Next() {
		cw := ledger.CampaignWeek{WeekID: weekID}
		var (
			hash                                []byte
			fundsNative, fundsERC20, tipsNative string
			lastUpdated, claimUntil             *time.Time
		)
		if err := rows.Scan(&hash, &fundsNative, &fundsERC20, &tipsNative,
			&cw.TotalPoints, &cw.ActiveLearners, &lastUpdated, &cw.Settled, &claimUntil); err != nil {
			return nil, fmt.Errorf("scan campaign week: %w", err)
		}
		cw.CampaignHash = common.BytesToHash(hash)
		cw.FundsNative = parseNum(fundsNative)
		cw.FundsERC20 = parseNum(fundsERC20)
		cw.TipsNative = parseNum(tipsNative)
		if lastUpdated != nil {
			cw.LastUpdated = *lastUpdated
		}
		if claimUntil != nil {
			cw.ClaimActiveUntil = *claimUntil
		}
		out = append(out, cw)
	}
	return out, rows.Err()
}

func (t *pgTx) Profile(ctx context.Context, weekID uint64, hash common.Hash, addr common.Address) (ledger.Profile, error) {
	p := ledger.Profile{WeekID: weekID, CampaignHash: hash, Address: addr}
	err := t.tx.QueryRow(ctx, `
		SELECT pass_key, points FROM profiles
		WHERE week_id = $1 AND campaign_hash = $2 AND address = $3
	`, weekID, hash[:], addr[:]).Scan(&p.PassKey, &p.Points)
	if errors.Is(err, pgx.ErrNoRows) {
		return p, nil
	}
	if err != nil {
		return ledger.Profile{}, fmt.Errorf("select profile: %w", err)
	}
	return p, nil
}

func (t *pgTx) PutProfile(ctx context.Context, p ledger.Profile) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO profiles (week_id, campaign_hash, address, pass_key, points)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (week_id, campaign_hash, address) DO UPDATE SET
			pass_key = EXCLUDED.pass_key,
			points = EXCLUDED.points
	`, p.WeekID, p.CampaignHash[:], p.Address[:], p.PassKey, p.Points)
	if err != nil {
		return fmt.Errorf("upsert profile: %w", err)
	}
	return nil
}

func (t *pgTx) ListProfiles(ctx context.Context, weekID uint64, hash common.Hash) ([]ledger.Profile, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT address, pass_key, points FROM profiles
		WHERE week_id = $1 AND campaign_hash = $2 ORDER BY address
	`, weekID, hash[:])
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	defer rows.Close()

	var out []ledger.Profile
	for rows.Next() {
		p := ledger.Profile{WeekID: weekID, CampaignHash: hash}
		var addr []byte
		if err := rows.Scan(&addr, &p.PassKey, &p.Points); err != nil {
			return nil, fmt.Errorf("scan profile: %w", err)
		}
		p.Address = common.BytesToAddress(addr)
		out = append(out, p)
	}
	return out, rows.Err()
}

func (t *pgTx) HasAnswered(ctx context.Context, weekID uint64, hash common.Hash, addr common.Address, question common.Hash) (bool, error) {
	var exists bool
	err := t.tx.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM answered_questions
			WHERE week_id = $1 AND campaign_hash = $2 AND address = $3 AND question_hash = $4
		)
	`, weekID, hash[:], addr[:], question[:]).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("select answered question: %w", err)
	}
	return exists, nil
}

func (t *pgTx) MarkAnswered(ctx context.Context, weekID uint64, hash common.Hash, addr common.Address, question common.Hash) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO answered_questions (week_id, campaign_hash, address, question_hash)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT DO NOTHING
	`, weekID, hash[:], addr[:], question[:])
	if err != nil {
		return fmt.Errorf("insert answered question: %w", err)
	}
	return nil
}

func (t *pgTx) IsBanned(ctx context.Context, hash common.Hash, addr common.Address) (bool, error) {
	var exists bool
	err := t.tx.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM bans WHERE campaign_hash = $1 AND address = $2)
	`, hash[:], addr[:]).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("select ban: %w", err)
	}
	return exists, nil
}

func (t *pgTx) SetBanned(ctx context.Context, hash common.Hash, addr common.Address, banned bool) error {
	var err error
	if banned {
		_, err = t.tx.Exec(ctx, `
			INSERT INTO bans (campaign_hash, address) VALUES ($1, $2)
			ON CONFLICT DO NOTHING
		`, hash[:], addr[:])
	} else {
		_, err = t.tx.Exec(ctx, `
			DELETE FROM bans WHERE campaign_hash = $1 AND address = $2
		`, hash[:], addr[:])
	}
	if err != nil {
		return fmt.Errorf("set ban: %w", err)
	}
	return nil
}

func (t *pgTx) Snapshot(ctx context.Context, weekID uint64, hash common.Hash, addr common.Address) (ledger.RewardSnapshot, bool, error) {
	s := ledger.RewardSnapshot{WeekID: weekID, CampaignHash: hash, Address: addr}
	var native, erc20 string
	err := t.tx.QueryRow(ctx, `
		SELECT native_amount::text, erc20_amount::text, claimed, swept
		FROM reward_snapshots
		WHERE week_id = $1 AND campaign_hash = $2 AND address = $3
	`, weekID, hash[:], addr[:]).Scan(&native, &erc20, &s.Claimed, &s.Swept)
	if errors.Is(err, pgx.ErrNoRows) {
		return ledger.RewardSnapshot{}, false, nil
	}
	if err != nil {
		return ledger.RewardSnapshot{}, false, fmt.Errorf("select snapshot: %w", err)
	}
	s.NativeAmount = parseNum(native)
	s.ERC20Amount = parseNum(erc20)
	return s, true, nil
}

func (t *pgTx) PutSnapshot(ctx context.Context, s ledger.RewardSnapshot) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO reward_snapshots (week_id, campaign_hash, address,
		                              native_amount, erc20_amount, claimed, swept)
		VALUES ($1, $2, $3, $4::numeric, $5::numeric, $6, $7)
		ON CONFLICT (week_id, campaign_hash, address) DO UPDATE SET
			native_amount = EXCLUDED.native_amount,
			erc20_amount = EXCLUDED.erc20_amount,
			claimed = EXCLUDED.claimed,
			swept = EXCLUDED.swept
	`, s.WeekID, s.CampaignHash[:], s.Address[:],
		numStr(s.NativeAmount), numStr(s.ERC20Amount), s.Claimed, s.Swept)
	if err != nil {
		return fmt.Errorf("upsert snapshot: %w", err)
	}
	return nil
}

func (t *pgTx) ListSnapshots(ctx context.Context, weekID uint64, hash common.Hash) ([]ledger.RewardSnapshot, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT address, native_amount::text, erc20_amount::text, claimed, swept
		FROM reward_snapshots
		WHERE week_id = $1 AND campaign_hash = $2 ORDER BY address
	`, weekID, hash[:])
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()

	var out []ledger.RewardSnapshot
	for rows.Next() {
		s := ledger.RewardSnapshot{WeekID: weekID, CampaignHash: hash}
		var (
			addr          []byte
			native, erc20 string
		)
		if err := rows.Scan(&addr, &native, &erc20, &s.Claimed, &s.Swept); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		s.Address = common.BytesToAddress(addr)
		s.NativeAmount = parseNum(native)
		s.ERC20Amount = parseNum(erc20)
		out = append(out, s)
	}
	return out, rows.Err()
}

func (t *pgTx) UserTotals(ctx context.Context, addr common.Address) (ledger.UserTotals, error) {
	v := ledger.UserTotals{Address: addr}
	var native, erc20, minted string
	err := t.tx.QueryRow(ctx, `
		SELECT claimed_native::text, claimed_erc20::text, minted::text
		FROM user_totals WHERE address = $1
	`, addr[:]).Scan(&native, &erc20, &minted)
	if errors.Is(err, pgx.ErrNoRows) {
		v.ClaimedNative = new(big.Int)
		v.ClaimedERC20 = new(big.Int)
		v.Minted = new(big.Int)
		return v, nil
	}
	if err != nil {
		return ledger.UserTotals{}, fmt.Errorf("select user totals: %w", err)
	}
	v.ClaimedNative = parseNum(native)
	v.ClaimedERC20 = parseNum(erc20)
	v.Minted = parseNum(minted)
	return v, nil
}

func (t *pgTx) PutUserTotals(ctx context.Context, v ledger.UserTotals) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO user_totals (address, claimed_native, claimed_erc20, minted)
		VALUES ($1, $2::numeric, $3::numeric, $4::numeric)
		ON CONFLICT (address) DO UPDATE SET
			claimed_native = EXCLUDED.claimed_native,
			claimed_erc20 = EXCLUDED.claimed_erc20,
			minted = EXCLUDED.minted
	`, v.Address[:], numStr(v.ClaimedNative), numStr(v.ClaimedERC20), numStr(v.Minted))
	if err != nil {
		return fmt.Errorf("upsert user totals: %w", err)
	}
	return nil
}

func (t *pgTx) Owner(ctx context.Context) (common.Address, error) {
	var addr []byte
	err := t.tx.QueryRow(ctx, `SELECT address FROM owner WHERE id = 1`).Scan(&addr)
	if errors.Is(err, pgx.ErrNoRows) {
		return common.Address{}, nil
	}
	if err != nil {
		return common.Address{}, fmt.Errorf("select owner: %w", err)
	}
	return common.BytesToAddress(addr), nil
}

func (t *pgTx) SetOwner(ctx context.Context, addr common.Address) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO owner (id, address) VALUES (1, $1)
		ON CONFLICT (id) DO UPDATE SET address = EXCLUDED.address
	`, addr[:])
	if err != nil {
		return fmt.Errorf("upsert owner: %w", err)
	}
	return nil
}

func (t *pgTx) IsAdmin(ctx context.Context, addr common.Address) (bool, error) {
	var exists bool
	err := t.tx.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM admins WHERE address = $1 AND active)
	`, addr[:]).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("select admin: %w", err)
	}
	return exists, nil
}

func (t *pgTx) SetAdmin(ctx context.Context, addr common.Address, active bool) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO admins (address, active) VALUES ($1, $2)
		ON CONFLICT (address) DO UPDATE SET active = EXCLUDED.active
	`, addr[:], active)
	if err != nil {
		return fmt.Errorf("upsert admin: %w", err)
	}
	return nil
}

func (t *pgTx) ListAdmins(ctx context.Context) ([]common.Address, error) {
	rows, err := t.tx.Query(ctx, `SELECT address FROM admins WHERE active ORDER BY address`)
	if err != nil {
		return nil, fmt.Errorf("list admins: %w", err)
	}
	defer rows.Close()

	var out []common.Address
	for rows.Next() {
		var addr []byte
		if err := rows.Scan(&addr); err != nil {
			return nil, fmt.Errorf("scan admin: %w", err)
		}
		out = append(out, common.BytesToAddress(addr))
	}
	return out, rows.Err()
}

// numStr renders a big.Int for a ::numeric parameter; nil becomes zero.
func numStr(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

// parseNum parses a numeric::text column. Values written through numStr
// always parse; a corrupt row yields zero rather than a panic.
func parseNum(s string) *big.Int {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return new(big.Int)
	}
	return v
}

// timePtr maps the zero time to NULL.
func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
