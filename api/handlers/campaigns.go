package handlers

import (
	"net/http"
	"time"

	"github.com/learnalabs/educaster/api/metrics"
)

// RegisterCampaignRequest creates a campaign shell before any funding.
type RegisterCampaignRequest struct {
	Caller   string `json:"caller"`
	Name     string `json:"name"`
	Operator string `json:"operator"`
	Token    string `json:"token"`
}

// RegisterCampaign handles POST /api/v1/campaigns (admin).
func (h *Handlers) RegisterCampaign(w http.ResponseWriter, r *http.Request) {
	var req RegisterCampaignRequest
	if err := h.decode(r, &req); err != nil {
		h.badRequest(w, err.Error())
		return
	}
	caller, err := parseAddress(req.Caller)
	if err != nil {
		h.badRequest(w, err.Error())
		return
	}
	operator, err := parseAddress(req.Operator)
	if err != nil {
		h.badRequest(w, err.Error())
		return
	}
	token, err := parseAddress(req.Token)
	if err != nil {
		h.badRequest(w, err.Error())
		return
	}
	if req.Name == "" {
		h.badRequest(w, "campaign name is required")
		return
	}

	start := time.Now()
	c, err := h.engine.RegisterCampaign(r.Context(), caller, req.Name, operator, token)
	metrics.RecordLedgerOp("register_campaign", time.Since(start), err)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, map[string]string{
		"hash": c.Hash.Hex(),
		"name": c.Name,
	})
}

// SetUpCampaignRequest funds a campaign's weekly pools.
type SetUpCampaignRequest struct {
	Caller      string `json:"caller"`
	Name        string `json:"name"`
	Token       string `json:"token"`
	ERC20Amount string `json:"erc20_amount"`
	NativeValue string `json:"native_value"`
}

// SetUpCampaign handles POST /api/v1/campaigns/setup (operator or admin).
func (h *Handlers) SetUpCampaign(w http.ResponseWriter, r *http.Request) {
	var req SetUpCampaignRequest
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
	erc20Amount, err := parseAmount(req.ERC20Amount)
	if err != nil {
		h.badRequest(w, err.Error())
		return
	}
	nativeValue, err := parseAmount(req.NativeValue)
	if err != nil {
		h.badRequest(w, err.Error())
		return
	}

	start := time.Now()
	err = h.engine.SetUpCampaign(r.Context(), caller, req.Name, erc20Amount, token, nativeValue)
	metrics.RecordLedgerOp("setup_campaign", time.Since(start), err)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"status": "funded"})
}

// AdjustCampaignsRequest is a batch pool correction.
type AdjustCampaignsRequest struct {
	Caller       string   `json:"caller"`
	Hashes       []string `json:"hashes"`
	ERC20Values  []string `json:"erc20_values"`
	NativeValues []string `json:"native_values"`
}

// AdjustCampaigns handles POST /api/v1/campaigns/adjust (admin).
func (h *Handlers) AdjustCampaigns(w http.ResponseWriter, r *http.Request) {
	var req AdjustCampaignsRequest
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
	erc20Values, err := parseAmounts(req.ERC20Values)
	if err != nil {
		h.badRequest(w, err.Error())
		return
	}
	nativeValues, err := parseAmounts(req.NativeValues)
	if err != nil {
		h.badRequest(w, err.Error())
		return
	}

	start := time.Now()
	err = h.engine.AdjustCampaignValues(r.Context(), caller, hashes, erc20Values, nativeValues)
	metrics.RecordLedgerOp("adjust_campaigns", time.Since(start), err)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"status": "adjusted"})
}

// ListCampaigns handles GET /api/v1/campaigns.
func (h *Handlers) ListCampaigns(w http.ResponseWriter, r *http.Request) {
	snapshots, err := h.engine.GetCampaigns(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	items := make([]CampaignJSON, 0, len(snapshots))
	for _, cs := range snapshots {
		items = append(items, campaignJSON(cs))
	}

	p := ParsePagination(r, DefaultLimit)
	h.writeJSON(w, http.StatusOK, PaginatedResponse[CampaignJSON]{
		Items:  page(items, p),
		Total:  len(items),
		Limit:  p.Limit,
		Offset: p.Offset,
	})
}
