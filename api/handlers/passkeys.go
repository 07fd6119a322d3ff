package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/learnalabs/educaster/api/metrics"
)

// GenerateKeyRequest buys weekly pass keys for the named campaigns. Value
// must cover MinimumToken per campaign.
type GenerateKeyRequest struct {
	Caller string   `json:"caller"`
	Hashes []string `json:"hashes"`
	Value  string   `json:"value"`
}

// GenerateKey handles POST /api/v1/passkeys.
func (h *Handlers) GenerateKey(w http.ResponseWriter, r *http.Request) {
	var req GenerateKeyRequest
	if err := h.decode(r, &req); err != nil {
		h.badRequest(w, err.Error())
		return
	}
	caller, err := parseAddress(req.Caller)
	if err != nil {
		h.badRequest(w, err.Error())
		return
	}
	hashes, err := parseHashes(req.Hashes)
	if err != nil {
		h.badRequest(w, err.Error())
		return
	}
	if len(hashes) == 0 {
		h.badRequest(w, "at least one campaign hash is required")
		return
	}
	value, err := parseAmount(req.Value)
	if err != nil {
		h.badRequest(w, err.Error())
		return
	}

	start := time.Now()
	err = h.engine.GenerateKey(r.Context(), caller, hashes, value)
	metrics.RecordLedgerOp("generate_key", time.Since(start), err)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, map[string]any{
		"status":    "keyed",
		"campaigns": len(hashes),
	})
}

// EligibilityJSON is the per-campaign eligibility wire form.
type EligibilityJSON struct {
	CampaignHash string `json:"campaign_hash"`
	HasPassKey   bool   `json:"has_pass_key"`
	Banned       bool   `json:"banned"`
	Claimed      bool   `json:"claimed"`
	NativeAmount string `json:"native_amount"`
	ERC20Amount  string `json:"erc20_amount"`
}

// CheckEligibility handles GET /api/v1/eligibility?user=&week=&hash=&hash=.
func (h *Handlers) CheckEligibility(w http.ResponseWriter, r *http.Request) {
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
	if len(hashes) == 0 {
		h.badRequest(w, "at least one campaign hash is required")
		return
	}

	results, err := h.engine.CheckEligibility(r.Context(), weekID, user, hashes)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	out := make([]EligibilityJSON, 0, len(results))
	for _, el := range results {
		out = append(out, EligibilityJSON{
			CampaignHash: el.CampaignHash.Hex(),
			HasPassKey:   el.HasPassKey,
			Banned:       el.Banned,
			Claimed:      el.Claimed,
			NativeAmount: amountString(el.NativeAmount),
			ERC20Amount:  amountString(el.ERC20Amount),
		})
	}
	h.writeJSON(w, http.StatusOK, out)
}
