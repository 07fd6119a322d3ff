package handlers

import (
	"net/http"
	"time"

	"github.com/learnalabs/educaster/api/metrics"
)

// TipRequest adds native funds to a campaign's tip pool.
type TipRequest struct {
	From   string `json:"from"`
	Hash   string `json:"hash"`
	Amount string `json:"amount"`
}

// SendTip handles POST /api/v1/tips.
func (h *Handlers) SendTip(w http.ResponseWriter, r *http.Request) {
	var req TipRequest
	if err := h.decode(r, &req); err != nil {
		h.badRequest(w, err.Error())
		return
	}
	from, err := parseAddress(req.From)
	if err != nil {
		h.badRequest(w, err.Error())
		return
	}
	hash, err := parseHash(req.Hash)
	if err != nil {
		h.badRequest(w, err.Error())
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		h.badRequest(w, err.Error())
		return
	}
	if amount.Sign() == 0 {
		h.badRequest(w, "amount must be positive")
		return
	}

	start := time.Now()
	err = h.engine.SendTip(r.Context(), from, hash, amount)
	metrics.RecordLedgerOp("tip", time.Since(start), err)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"status": "tipped"})
}
