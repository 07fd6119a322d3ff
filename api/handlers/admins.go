package handlers

import (
	"math/big"
	"net/http"
	"time"

	"github.com/learnalabs/educaster/api/metrics"
)

// SetAdminsRequest activates or deactivates admin addresses (owner only).
type SetAdminsRequest struct {
	Caller string   `json:"caller"`
	Admins []string `json:"admins"`
	Active bool     `json:"active"`
}

// SetAdmins handles POST /api/v1/admins.
func (h *Handlers) SetAdmins(w http.ResponseWriter, r *http.Request) {
	var req SetAdminsRequest
	if err := h.decode(r, &req); err != nil {
		h.badRequest(w, err.Error())
		return
	}
	caller, err := parseAddress(req.Caller)
	if err != nil {
		h.badRequest(w, err.Error())
		return
	}
	admins, err := parseAddresses(req.Admins)
	if err != nil {
		h.badRequest(w, err.Error())
		return
	}
	if len(admins) == 0 {
		h.badRequest(w, "at least one admin address is required")
		return
	}

	start := time.Now()
	err = h.engine.SetAdmins(r.Context(), caller, admins, req.Active)
	metrics.RecordLedgerOp("set_admins", time.Since(start), err)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{"admins": len(admins), "active": req.Active})
}

// SetParamsRequest updates owner-controlled epoch parameters. Zero or empty
// fields are left unchanged.
type SetParamsRequest struct {
	Caller             string `json:"caller"`
	MinimumToken       string `json:"minimum_token,omitempty"`
	TransitionInterval string `json:"transition_interval,omitempty"`
	ClaimWindow        string `json:"claim_window,omitempty"`
}

// SetParams handles POST /api/v1/params (owner).
func (h *Handlers) SetParams(w http.ResponseWriter, r *http.Request) {
	var req SetParamsRequest
	if err := h.decode(r, &req); err != nil {
		h.badRequest(w, err.Error())
		return
	}
	caller, err := parseAddress(req.Caller)
	if err != nil {
		h.badRequest(w, err.Error())
		return
	}

	var (
		minToken           *big.Int
		transitionInterval time.Duration
		claimWindow        time.Duration
	)
	if req.MinimumToken != "" {
		v, err := parseAmount(req.MinimumToken)
		if err != nil {
			h.badRequest(w, err.Error())
			return
		}
		minToken = v
	}
	if req.TransitionInterval != "" {
		d, err := time.ParseDuration(req.TransitionInterval)
		if err != nil {
			h.badRequest(w, "invalid transition_interval")
			return
		}
		transitionInterval = d
	}
	if req.ClaimWindow != "" {
		d, err := time.ParseDuration(req.ClaimWindow)
		if err != nil {
			h.badRequest(w, "invalid claim_window")
			return
		}
		claimWindow = d
	}

	ctx := r.Context()
	start := time.Now()
	opErr := func() error {
		if minToken != nil {
			if err := h.engine.SetMinimumToken(ctx, caller, minToken); err != nil {
				return err
			}
		}
		if transitionInterval > 0 {
			if err := h.engine.SetTransitionInterval(ctx, caller, transitionInterval); err != nil {
				return err
			}
		}
		if claimWindow > 0 {
			if err := h.engine.SetClaimWindow(ctx, caller, claimWindow); err != nil {
				return err
			}
		}
		return nil
	}()
	metrics.RecordLedgerOp("set_params", time.Since(start), opErr)
	if opErr != nil {
		h.writeError(w, r, opErr)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}
