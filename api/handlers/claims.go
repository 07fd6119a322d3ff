package handlers

import (
	"net/http"
	"time"

	"github.com/learnalabs/educaster/api/metrics"
)

// ClaimRequest claims a settled weekly reward.
type ClaimRequest struct {
	Caller string `json:"caller"`
	WeekID uint64 `json:"week_id"`
	Hash   string `json:"hash"`
}

// ClaimResponse reports the paid out amounts.
type ClaimResponse struct {
	WeekID       uint64 `json:"week_id"`
	CampaignHash string `json:"campaign_hash"`
	NativeAmount string `json:"native_amount"`
	ERC20Amount  string `json:"erc20_amount"`
}

// Claim handles POST /api/v1/claims.
func (h *Handlers) Claim(w http.ResponseWriter, r *http.Request) {
	var req ClaimRequest
	if err := h.decode(r, &req); err != nil {
		h.badRequest(w, err.Error())
		return
	}
	caller, err := parseAddress(req.Caller)
	if err != nil {
		h.badRequest(w, err.Error())
		return
	}
	hash, err := parseHash(req.Hash)
	if err != nil {
		h.badRequest(w, err.Error())
		return
	}

	start := time.Now()
	snap, err := h.engine.ClaimReward(r.Context(), caller, req.WeekID, hash)
	metrics.RecordLedgerOp("claim", time.Since(start), err)
	metrics.RecordClaim(err)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, ClaimResponse{
		WeekID:       snap.WeekID,
		CampaignHash: snap.CampaignHash.Hex(),
		NativeAmount: amountString(snap.NativeAmount),
		ERC20Amount:  amountString(snap.ERC20Amount),
	})
}
