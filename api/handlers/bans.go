package handlers

import (
	"net/http"
	"time"

	"github.com/learnalabs/educaster/api/metrics"
)

// BanRequest bans or unbans the cross product of users and campaigns.
type BanRequest struct {
	Caller string   `json:"caller"`
	Users  []string `json:"users"`
	Hashes []string `json:"hashes"`
}

// BanUsers handles POST /api/v1/bans (admin).
func (h *Handlers) BanUsers(w http.ResponseWriter, r *http.Request) {
	h.setBanned(w, r, true)
}

// UnbanUsers handles POST /api/v1/bans/remove (admin).
func (h *Handlers) UnbanUsers(w http.ResponseWriter, r *http.Request) {
	h.setBanned(w, r, false)
}

func (h *Handlers) setBanned(w http.ResponseWriter, r *http.Request, banned bool) {
	var req BanRequest
	if err := h.decode(r, &req); err != nil {
		h.badRequest(w, err.Error())
		return
	}
	caller, err := parseAddress(req.Caller)
	if err != nil {
		h.badRequest(w, err.Error())
		return
	}
	users, err := parseAddresses(req.Users)
	if err != nil {
		h.badRequest(w, err.Error())
		return
	}
	hashes, err := parseHashes(req.Hashes)
	if err != nil {
		h.badRequest(w, err.Error())
		return
	}
	if len(users) == 0 || len(hashes) == 0 {
		h.badRequest(w, "users and hashes are required")
		return
	}

	op := "ban_users"
	start := time.Now()
	if banned {
		err = h.engine.BanUsers(r.Context(), caller, users, hashes)
	} else {
		op = "unban_users"
		err = h.engine.UnbanUsers(r.Context(), caller, users, hashes)
	}
	metrics.RecordLedgerOp(op, time.Since(start), err)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"users":     len(users),
		"campaigns": len(hashes),
		"banned":    banned,
	})
}
