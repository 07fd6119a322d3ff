package handlers

import (
	"net/http"
	"strconv"
	"time"
)

// EpochJSON is the wire form of the epoch state.
type EpochJSON struct {
	WeekID             uint64    `json:"week_id"`
	TransitionInterval string    `json:"transition_interval"`
	TransitionDate     time.Time `json:"transition_date"`
	ClaimWindow        string    `json:"claim_window"`
	MinimumToken       string    `json:"minimum_token"`
}

// DataResponse is the dashboard read.
type DataResponse struct {
	Epoch     EpochJSON      `json:"epoch"`
	Campaigns []CampaignJSON `json:"campaigns"`
	Admins    []string       `json:"admins"`
}

// GetData handles GET /api/v1/data.
func (h *Handlers) GetData(w http.ResponseWriter, r *http.Request) {
	view, err := h.engine.GetData(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	resp := DataResponse{
		Epoch: EpochJSON{
			WeekID:             view.Epoch.WeekID,
			TransitionInterval: view.Epoch.TransitionInterval.String(),
			TransitionDate:     view.Epoch.TransitionDate,
			ClaimWindow:        view.Epoch.ClaimWindow.String(),
			MinimumToken:       amountString(view.Epoch.MinimumToken),
		},
		Campaigns: make([]CampaignJSON, 0, len(view.Campaigns)),
		Admins:    make([]string, 0, len(view.Admins)),
	}
	for _, cs := range view.Campaigns {
		resp.Campaigns = append(resp.Campaigns, campaignJSON(cs))
	}
	for _, a := range view.Admins {
		resp.Admins = append(resp.Admins, a.Hex())
	}

	h.writeJSON(w, http.StatusOK, resp)
}

// ProfileEntryJSON is one weekly campaign profile.
type ProfileEntryJSON struct {
	CampaignHash string `json:"campaign_hash"`
	PassKey      bool   `json:"pass_key"`
	Points       uint64 `json:"points"`
}

// ProfileResponse is a user's weekly profiles plus lifetime totals.
type ProfileResponse struct {
	Address       string             `json:"address"`
	WeekID        uint64             `json:"week_id"`
	Profiles      []ProfileEntryJSON `json:"profiles"`
	ClaimedNative string             `json:"claimed_native"`
	ClaimedERC20  string             `json:"claimed_erc20"`
	Minted        string             `json:"minted"`
}

// GetProfile handles GET /api/v1/profile?user=&week=&hash=&hash=.
func (h *Handlers) GetProfile(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	user, err := parseAddress(q.Get("user"))
	if err != nil {
		h.badRequest(w, err.Error())
		return
	}
	weekID, err := strconv.ParseUint(q.Get("week"), 10, 64)
	if err != nil {
		h.badRequest(w, "invalid week")
		return
	}
	hashes, err := parseHashes(q["hash"])
	if err != nil {
		h.badRequest(w, err.Error())
		return
	}

	view, err := h.engine.GetProfile(r.Context(), user, weekID, hashes)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	resp := ProfileResponse{
		Address:       view.Address.Hex(),
		WeekID:        view.WeekID,
		Profiles:      make([]ProfileEntryJSON, 0, len(view.Profiles)),
		ClaimedNative: amountString(view.Totals.ClaimedNative),
		ClaimedERC20:  amountString(view.Totals.ClaimedERC20),
		Minted:        amountString(view.Totals.Minted),
	}
	for _, p := range view.Profiles {
		resp.Profiles = append(resp.Profiles, ProfileEntryJSON{
			CampaignHash: p.CampaignHash.Hex(),
			PassKey:      p.PassKey,
			Points:       p.Points,
		})
	}

	h.writeJSON(w, http.StatusOK, resp)
}
