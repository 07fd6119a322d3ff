package ledger

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
)

// GetCampaigns returns every registered campaign joined with its
// current-week accumulators.
func (e *Engine) GetCampaigns(ctx context.Context) ([]CampaignSnapshot, error) {
	var out []CampaignSnapshot
	err := e.store.View(ctx, func(tx Tx) error {
		epoch, err := tx.Epoch(ctx)
		if err != nil {
			return err
		}
		campaigns, err := tx.ListCampaigns(ctx)
		if err != nil {
			return err
		}
		out = make([]CampaignSnapshot, 0, len(campaigns))
		for _, c := range campaigns {
			cw, err := tx.CampaignWeek(ctx, epoch.WeekID, c.Hash)
			if err != nil {
				return err
			}
			out = append(out, CampaignSnapshot{Campaign: c, Week: cw})
		}
		return nil
	})
	return out, err
}

// CheckEligibility reports, per campaign, whether the user holds a pass
// key, their ban status, and the snapshotted share amounts for the given
// week (zero before settlement).
func (e *Engine) CheckEligibility(ctx context.Context, weekID uint64, user common.Address, hashes []common.Hash) ([]Eligibility, error) {
	out := make([]Eligibility, 0, len(hashes))
	err := e.store.View(ctx, func(tx Tx) error {
		for _, hash := range hashes {
			if _, err := tx.Campaign(ctx, hash); err != nil {
				return err
			}
			p, err := tx.Profile(ctx, weekID, hash, user)
			if err != nil {
				return err
			}
			banned, err := tx.IsBanned(ctx, hash, user)
			if err != nil {
				return err
			}
			el := Eligibility{
				CampaignHash: hash,
				HasPassKey:   p.PassKey,
				Banned:       banned,
				NativeAmount: zero(),
				ERC20Amount:  zero(),
			}
			snap, ok, err := tx.Snapshot(ctx, weekID, hash, user)
			if err != nil {
				return err
			}
			if ok && !snap.Swept {
				el.Claimed = snap.Claimed
				el.NativeAmount = clone(snap.NativeAmount)
				el.ERC20Amount = clone(snap.ERC20Amount)
			}
			out = append(out, el)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// GetProfile returns the user's weekly profiles for the named campaigns
// plus their lifetime claim totals.
func (e *Engine) GetProfile(ctx context.Context, user common.Address, weekID uint64, hashes []common.Hash) (ProfileView, error) {
	view := ProfileView{Address: user, WeekID: weekID}
	err := e.store.View(ctx, func(tx Tx) error {
		for _, hash := range hashes {
			if _, err := tx.Campaign(ctx, hash); err != nil {
				return err
			}
			p, err := tx.Profile(ctx, weekID, hash, user)
			if err != nil {
				return err
			}
			p.WeekID = weekID
			p.CampaignHash = hash
			p.Address = user
			view.Profiles = append(view.Profiles, p)
		}
		totals, err := tx.UserTotals(ctx, user)
		if err != nil {
			return err
		}
		totals.Address = user
		totals.ClaimedNative = clone(totals.ClaimedNative)
		totals.ClaimedERC20 = clone(totals.ClaimedERC20)
		totals.Minted = clone(totals.Minted)
		view.Totals = totals
		return nil
	})
	if err != nil {
		return ProfileView{}, err
	}
	return view, nil
}

// GetData returns the dashboard read: epoch state, current-week campaign
// snapshots, and the active admin roster.
func (e *Engine) GetData(ctx context.Context) (DataView, error) {
	var view DataView
	err := e.store.View(ctx, func(tx Tx) error {
		epoch, err := tx.Epoch(ctx)
		if err != nil {
			return err
		}
		view.Epoch = epoch
		campaigns, err := tx.ListCampaigns(ctx)
		if err != nil {
			return err
		}
		for _, c := range campaigns {
			cw, err := tx.CampaignWeek(ctx, epoch.WeekID, c.Hash)
			if err != nil {
				return err
			}
			view.Campaigns = append(view.Campaigns, CampaignSnapshot{Campaign: c, Week: cw})
		}
		admins, err := tx.ListAdmins(ctx)
		if err != nil {
			return err
		}
		view.Admins = admins
		return nil
	})
	if err != nil {
		return DataView{}, err
	}
	return view, nil
}
