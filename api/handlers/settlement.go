package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/learnalabs/educaster/api/metrics"
)

// SettleRequest triggers the weekly settlement run. CampaignNames receive an
// even split of the optional ERC20 top-up before shares are computed.
type SettleRequest struct {
	Caller        string   `json:"caller"`
	Token         string   `json:"token"`
	ERC20TopUp    string   `json:"erc20_top_up"`
	CampaignNames []string `json:"campaign_names"`
}

// SettleResponse summarizes the run.
type SettleResponse struct {
	RunID            string    `json:"run_id"`
	SettledWeekID    uint64    `json:"settled_week_id"`
	NewWeekID        uint64    `json:"new_week_id"`
	CampaignsSettled int       `json:"campaigns_settled"`
	SnapshotsWritten int       `json:"snapshots_written"`
	ClaimActiveUntil time.Time `json:"claim_active_until"`
}

// Settle handles POST /api/v1/settlement (admin).
func (h *Handlers) Settle(w http.ResponseWriter, r *http.Request) {
	var req SettleRequest
	if err := h.decode(r, &req); err != nil {
		h.badRequest(w, err.Error())
		return
	}
	caller, err := parseAddress(req.Caller)
	if err != nil {
		h.badRequest(w, err.Error())
		return
	}
	token, err := parseAddress(req.Token)
	if err != nil {
		h.badRequest(w, err.Error())
		return
	}
	topUp, err := parseAmount(req.ERC20TopUp)
	if err != nil {
		h.badRequest(w, err.Error())
		return
	}

	runID := uuid.New()
	h.log.Info("settlement run starting", "run_id", runID, "caller", caller)

	start := time.Now()
	report, err := h.engine.SortWeeklyReward(r.Context(), caller, token, topUp, req.CampaignNames)
	metrics.RecordLedgerOp("settle", time.Since(start), err)
	metrics.RecordSettlement(report.CampaignsSettled, err)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	metrics.CurrentWeekGauge.Set(float64(report.NewWeekID))

	h.log.Info("settlement run complete",
		"run_id", runID,
		"settled_week", report.SettledWeekID,
		"new_week", report.NewWeekID,
		"campaigns", report.CampaignsSettled,
		"snapshots", report.SnapshotsWritten)

	h.writeJSON(w, http.StatusOK, SettleResponse{
		RunID:            runID.String(),
		SettledWeekID:    report.SettledWeekID,
		NewWeekID:        report.NewWeekID,
		CampaignsSettled: report.CampaignsSettled,
		SnapshotsWritten: report.SnapshotsWritten,
		ClaimActiveUntil: report.ClaimActiveUntil,
	})
}

// SweepRequest returns expired unclaimed rewards to the current week's pool.
type SweepRequest struct {
	Caller string `json:"caller"`
	WeekID uint64 `json:"week_id"`
	Hash   string `json:"hash"`
}

// Sweep handles POST /api/v1/settlement/sweep (admin).
func (h *Handlers) Sweep(w http.ResponseWriter, r *http.Request) {
	var req SweepRequest
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
	native, erc20, err := h.engine.SweepExpired(r.Context(), caller, req.WeekID, hash)
	metrics.RecordLedgerOp("sweep", time.Since(start), err)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{
		"swept_native": amountString(native),
		"swept_erc20":  amountString(erc20),
		"week_id":      strconv.FormatUint(req.WeekID, 10),
	})
}
