// Package memstore is an in-memory ledger.Store used by unit tests and dev
// mode. Transactions run against a deep copy of the state and swap it in
// on success, giving the same all-or-nothing semantics as the Postgres
// store.
package memstore

import (
	"context"
	"fmt"
	"math/big"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/learnalabs/educaster/ledger"
)

type weekKey struct {
	weekID uint64
	hash   common.Hash
}

type userKey struct {
	weekID uint64
	hash   common.Hash
	addr   common.Address
}

type answerKey struct {
	weekID   uint64
	hash     common.Hash
	addr     common.Address
	question common.Hash
}

type banKey struct {
	hash common.Hash
	addr common.Address
}

type balanceKey struct {
	account common.Address
	asset   common.Address
}

type state struct {
	epoch         ledger.EpochState
	owner         common.Address
	admins        map[common.Address]bool
	campaigns     map[common.Hash]ledger.Campaign
	campaignWeeks map[weekKey]ledger.CampaignWeek
	profiles      map[userKey]ledger.Profile
	answered      map[answerKey]struct{}
	bans          map[banKey]bool
	snapshots     map[userKey]ledger.RewardSnapshot
	totals        map[common.Address]ledger.UserTotals
	balances      map[balanceKey]*big.Int
}

func newState() *state {
	return &state{
		admins:        make(map[common.Address]bool),
		campaigns:     make(map[common.Hash]ledger.Campaign),
		campaignWeeks: make(map[weekKey]ledger.CampaignWeek),
		profiles:      make(map[userKey]ledger.Profile),
		answered:      make(map[answerKey]struct{}),
		bans:          make(map[banKey]bool),
		snapshots:     make(map[userKey]ledger.RewardSnapshot),
		totals:        make(map[common.Address]ledger.UserTotals),
		balances:      make(map[balanceKey]*big.Int),
	}
}

func (s *state) clone() *state {
	c := newState()
	c.epoch = s.epoch
	c.epoch.MinimumToken = cloneInt(s.epoch.MinimumToken)
	c.owner = s.owner
	for k, v := range s.admins {
		c.admins[k] = v
	}
	for k, v := range s.campaigns {
		c.campaigns[k] = v
	}
	for k, v := range s.campaignWeeks {
		c.campaignWeeks[k] = cloneWeek(v)
	}
	for k, v := range s.profiles {
		c.profiles[k] = v
	}
	for k := range s.answered {
		c.answered[k] = struct{}{}
	}
	for k, v := range s.bans {
		c.bans[k] = v
	}
	for k, v := range s.snapshots {
		c.snapshots[k] = cloneSnapshot(v)
	}
	for k, v := range s.totals {
		c.totals[k] = cloneTotals(v)
	}
	for k, v := range s.balances {
		c.balances[k] = new(big.Int).Set(v)
	}
	return c
}

// Store is the in-memory ledger store.
type Store struct {
	mu sync.RWMutex
	st *state
}

func New() *Store {
	return &Store{st: newState()}
}

// Transact runs fn against a copy of the state; the copy replaces the live
// state only if fn succeeds.
func (s *Store) Transact(_ context.Context, fn func(tx ledger.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	staged := s.st.clone()
	if err := fn(&memTx{st: staged}); err != nil {
		return err
	}
	s.st = staged
	return nil
}

// View runs fn against a copy of the state and discards it.
func (s *Store) View(_ context.Context, fn func(tx ledger.Tx) error) error {
	s.mu.RLock()
	staged := s.st.clone()
	s.mu.RUnlock()
	return fn(&memTx{st: staged})
}

// Mint credits a balance directly, modeling a deposit arriving from outside
// the ledger. Tests and dev mode seed accounts with it.
func (s *Store) Mint(account, asset common.Address, amount *big.Int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := balanceKey{account, asset}
	b, ok := s.st.balances[key]
	if !ok {
		b = new(big.Int)
		s.st.balances[key] = b
	}
	b.Add(b, amount)
}

// Balance returns a copy of the (account, asset) balance.
func (s *Store) Balance(account, asset common.Address) *big.Int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if b, ok := s.st.balances[balanceKey{account, asset}]; ok {
		return new(big.Int).Set(b)
	}
	return new(big.Int)
}

type memTx struct {
	st *state
}

func (t *memTx) Epoch(context.Context) (ledger.EpochState, error) {
	e := t.st.epoch
	e.MinimumToken = cloneInt(e.MinimumToken)
	return e, nil
}

func (t *memTx) PutEpoch(_ context.Context, e ledger.EpochState) error {
	e.MinimumToken = cloneInt(e.MinimumToken)
	t.st.epoch = e
	return nil
}

func (t *memTx) Campaign(_ context.Context, hash common.Hash) (ledger.Campaign, error) {
	c, ok := t.st.campaigns[hash]
	if !ok {
		return ledger.Campaign{}, ledger.ErrUnknownCampaign
	}
	return c, nil
}

func (t *memTx) PutCampaign(_ context.Context, c ledger.Campaign) error {
	t.st.campaigns[c.Hash] = c
	return nil
}

func (t *memTx) ListCampaigns(context.Context) ([]ledger.Campaign, error) {
	out := make([]ledger.Campaign, 0, len(t.st.campaigns))
	for _, c := range t.st.campaigns {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (t *memTx) CampaignWeek(_ context.Context, weekID uint64, hash common.Hash) (ledger.CampaignWeek, error) {
	if cw, ok := t.st.campaignWeeks[weekKey{weekID, hash}]; ok {
		return cloneWeek(cw), nil
	}
	return ledger.CampaignWeek{
		WeekID:       weekID,
		CampaignHash: hash,
		FundsNative:  new(big.Int),
		FundsERC20:   new(big.Int),
		TipsNative:   new(big.Int),
	}, nil
}

func (t *memTx) PutCampaignWeek(_ context.Context, cw ledger.CampaignWeek) error {
	t.st.campaignWeeks[weekKey{cw.WeekID, cw.CampaignHash}] = cloneWeek(cw)
	return nil
}

func (t *memTx) ListCampaignWeeks(_ context.Context, weekID uint64) ([]ledger.CampaignWeek, error) {
	var out []ledger.CampaignWeek
	for k, cw := range t.st.campaignWeeks {
		if k.weekID == weekID {
			out = append(out, cloneWeek(cw))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CampaignHash.Hex() < out[j].CampaignHash.Hex()
	})
	return out, nil
}

func (t *memTx) Profile(_ context.Context, weekID uint64, hash common.Hash, addr common.Address) (ledger.Profile, error) {
	if p, ok := t.st.profiles[userKey{weekID, hash, addr}]; ok {
		return p, nil
	}
	return ledger.Profile{WeekID: weekID, CampaignHash: hash, Address: addr}, nil
}

func (t *memTx) PutProfile(_ context.Context, p ledger.Profile) error {
	t.st.profiles[userKey{p.WeekID, p.CampaignHash, p.Address}] = p
	return nil
}

func (t *memTx) ListProfiles(_ context.Context, weekID uint64, hash common.Hash) ([]ledger.Profile, error) {
	var out []ledger.Profile
	for k, p := range t.st.profiles {
		if k.weekID == weekID && k.hash == hash {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Address.Hex() < out[j].Address.Hex()
	})
	return out, nil
}

func (t *memTx) HasAnswered(_ context.Context, weekID uint64, hash common.Hash, addr common.Address, question common.Hash) (bool, error) {
	_, ok := t.st.answered[answerKey{weekID, hash, addr, question}]
	return ok, nil
}

func (t *memTx) MarkAnswered(_ context.Context, weekID uint64, hash common.Hash, addr common.Address, question common.Hash) error {
	t.st.answered[answerKey{weekID, hash, addr, question}] = struct{}{}
	return nil
}

func (t *memTx) IsBanned(_ context.Context, hash common.Hash, addr common.Address) (bool, error) {
	return t.st.bans[banKey{hash, addr}], nil
}

func (t *memTx) SetBanned(_ context.Context, hash common.Hash, addr common.Address, banned bool) error {
	if banned {
		t.st.bans[banKey{hash, addr}] = true
	} else {
		delete(t.st.bans, banKey{hash, addr})
	}
	return nil
}

func (t *memTx) Snapshot(_ context.Context, weekID uint64, hash common.Hash, addr common.Address) (ledger.RewardSnapshot, bool, error) {
	if s, ok := t.st.snapshots[userKey{weekID, hash, addr}]; ok {
		return cloneSnapshot(s), true, nil
	}
	return ledger.RewardSnapshot{}, false, nil
}

func (t *memTx) PutSnapshot(_ context.Context, s ledger.RewardSnapshot) error {
	t.st.snapshots[userKey{s.WeekID, s.CampaignHash, s.Address}] = cloneSnapshot(s)
	return nil
}

func (t *memTx) ListSnapshots(_ context.Context, weekID uint64, hash common.Hash) ([]ledger.RewardSnapshot, error) {
	var out []ledger.RewardSnapshot
	for k, s := range t.st.snapshots {
		if k.weekID == weekID && k.hash == hash {
			out = append(out, cloneSnapshot(s))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Address.Hex() < out[j].Address.Hex()
	})
	return out, nil
}

func (t *memTx) UserTotals(_ context.Context, addr common.Address) (ledger.UserTotals, error) {
	if v, ok := t.st.totals[addr]; ok {
		return cloneTotals(v), nil
	}
	return ledger.UserTotals{
		Address:       addr,
		ClaimedNative: new(big.Int),
		ClaimedERC20:  new(big.Int),
		Minted:        new(big.Int),
	}, nil
}

func (t *memTx) PutUserTotals(_ context.Context, v ledger.UserTotals) error {
	t.st.totals[v.Address] = cloneTotals(v)
	return nil
}

func (t *memTx) Balance(_ context.Context, account, asset common.Address) (*big.Int, error) {
	if b, ok := t.st.balances[balanceKey{account, asset}]; ok {
		return new(big.Int).Set(b), nil
	}
	return new(big.Int), nil
}

func (t *memTx) Debit(_ context.Context, account, asset common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() == 0 {
		return nil
	}
	if amount.Sign() < 0 {
		return fmt.Errorf("memstore: negative debit amount %s", amount)
	}
	b, ok := t.st.balances[balanceKey{account, asset}]
	if !ok || b.Cmp(amount) < 0 {
		return fmt.Errorf("debit %s from %s: %w", amount, account.Hex(), ledger.ErrInsufficientFunds)
	}
	b.Sub(b, amount)
	return nil
}

func (t *memTx) Credit(_ context.Context, account, asset common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() == 0 {
		return nil
	}
	if amount.Sign() < 0 {
		return fmt.Errorf("memstore: negative credit amount %s", amount)
	}
	key := balanceKey{account, asset}
	b, ok := t.st.balances[key]
	if !ok {
		b = new(big.Int)
		t.st.balances[key] = b
	}
	b.Add(b, amount)
	return nil
}

func (t *memTx) Owner(context.Context) (common.Address, error) {
	return t.st.owner, nil
}

func (t *memTx) SetOwner(_ context.Context, addr common.Address) error {
	t.st.owner = addr
	return nil
}

func (t *memTx) IsAdmin(_ context.Context, addr common.Address) (bool, error) {
	return t.st.admins[addr], nil
}

func (t *memTx) SetAdmin(_ context.Context, addr common.Address, active bool) error {
	if active {
		t.st.admins[addr] = true
	} else {
		delete(t.st.admins, addr)
	}
	return nil
}

func (t *memTx) ListAdmins(context.Context) ([]common.Address, error) {
	out := make([]common.Address, 0, len(t.st.admins))
	for a := range t.st.admins {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Hex() < out[j].Hex() })
	return out, nil
}

func cloneInt(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(v)
}

func cloneWeek(cw ledger.CampaignWeek) ledger.CampaignWeek {
	cw.FundsNative = cloneInt(cw.FundsNative)
	cw.FundsERC20 = cloneInt(cw.FundsERC20)
	cw.TipsNative = cloneInt(cw.TipsNative)
	return cw
}

func cloneSnapshot(s ledger.RewardSnapshot) ledger.RewardSnapshot {
	s.NativeAmount = cloneInt(s.NativeAmount)
	s.ERC20Amount = cloneInt(s.ERC20Amount)
	return s
}

func cloneTotals(v ledger.UserTotals) ledger.UserTotals {
	v.ClaimedNative = cloneInt(v.ClaimedNative)
	v.ClaimedERC20 = cloneInt(v.ClaimedERC20)
	v.Minted = cloneInt(v.Minted)
	return v
}
