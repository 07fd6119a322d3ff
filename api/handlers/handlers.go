// Package handlers implements the JSON HTTP surface over the ledger engine.
// Addresses and hashes travel as 0x-prefixed hex strings, token amounts as
// decimal strings.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/getsentry/sentry-go"

	"github.com/learnalabs/educaster/ledger"
	"github.com/learnalabs/educaster/verify"
)

type Config struct {
	Logger      *slog.Logger
	Engine      *ledger.Engine
	AdminAPIKey string
}

func (cfg *Config) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.Engine == nil {
		return errors.New("engine is required")
	}
	return nil
}

// Handlers carries the dependencies shared by every endpoint.
type Handlers struct {
	log    *slog.Logger
	engine *ledger.Engine
	apiKey string
}

func New(cfg Config) (*Handlers, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Handlers{log: cfg.Logger, engine: cfg.Engine, apiKey: cfg.AdminAPIKey}, nil
}

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error string `json:"error"`
}

func (h *Handlers) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Error("failed to write response", "error", err)
	}
}

// writeError maps ledger errors to HTTP statuses. Anything unclassified is a
// 500 and goes to Sentry.
func (h *Handlers) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, ledger.ErrUnauthorized),
		errors.Is(err, ledger.ErrBlacklisted),
		errors.Is(err, ledger.ErrNoPassKey),
		errors.Is(err, verify.ErrConfigMismatch):
		status = http.StatusForbidden
	case errors.Is(err, ledger.ErrUnknownCampaign),
		errors.Is(err, ledger.ErrNothingToClaim):
		status = http.StatusNotFound
	case errors.Is(err, ledger.ErrInsufficientFunds):
		status = http.StatusPaymentRequired
	case errors.Is(err, ledger.ErrLengthMismatch):
		status = http.StatusBadRequest
	case errors.Is(err, ledger.ErrClaimWindowExpired):
		status = http.StatusGone
	case errors.Is(err, ledger.ErrPassKeyExists),
		errors.Is(err, ledger.ErrAlreadyClaimed),
		errors.Is(err, ledger.ErrCampaignExists),
		errors.Is(err, ledger.ErrWeekSettled),
		errors.Is(err, ledger.ErrWeekNotSettled),
		errors.Is(err, ledger.ErrClaimWindowOpen),
		errors.Is(err, ledger.ErrTooEarlyForTransition):
		status = http.StatusConflict
	}

	if status == http.StatusInternalServerError {
		h.log.Error("internal error", "method", r.Method, "path", r.URL.Path, "error", err)
		sentry.CaptureException(err)
		h.writeJSON(w, status, ErrorResponse{Error: "internal server error"})
		return
	}

	h.writeJSON(w, status, ErrorResponse{Error: err.Error()})
}

func (h *Handlers) decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func (h *Handlers) badRequest(w http.ResponseWriter, msg string) {
	h.writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: msg})
}

func parseAddress(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("invalid address %q", s)
	}
	return common.HexToAddress(s), nil
}

func parseAddresses(in []string) ([]common.Address, error) {
	out := make([]common.Address, 0, len(in))
	for _, s := range in {
		a, err := parseAddress(s)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

func parseHash(s string) (common.Hash, error) {
	b, err := hexutilDecode(s)
	if err != nil || len(b) != common.HashLength {
		return common.Hash{}, fmt.Errorf("invalid hash %q", s)
	}
	return common.BytesToHash(b), nil
}

func parseHashes(in []string) ([]common.Hash, error) {
	out := make([]common.Hash, 0, len(in))
	for _, s := range in {
		hash, err := parseHash(s)
		if err != nil {
			return nil, err
		}
		out = append(out, hash)
	}
	return out, nil
}

func hexutilDecode(s string) ([]byte, error) {
	if len(s) < 2 || s[0] != '0' || (s[1] != 'x' && s[1] != 'X') {
		return nil, fmt.Errorf("missing 0x prefix")
	}
	return common.FromHex(s), nil
}

// parseAmount parses a non-negative decimal token amount. Empty means zero.
func parseAmount(s string) (*big.Int, error) {
	if s == "" {
		return new(big.Int), nil
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok || v.Sign() < 0 {
		return nil, fmt.Errorf("invalid amount %q", s)
	}
	return v, nil
}

func parseAmounts(in []string) ([]*big.Int, error) {
	out := make([]*big.Int, 0, len(in))
	for _, s := range in {
		v, err := parseAmount(s)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func amountString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

// CampaignJSON is the wire form of a campaign joined with its week.
type CampaignJSON struct {
	Hash             string     `json:"hash"`
	Name             string     `json:"name"`
	Operator         string     `json:"operator"`
	Token            string     `json:"token"`
	CreatedAt        time.Time  `json:"created_at"`
	WeekID           uint64     `json:"week_id"`
	FundsNative      string     `json:"funds_native"`
	FundsERC20       string     `json:"funds_erc20"`
	TipsNative       string     `json:"tips_native"`
	TotalPoints      uint64     `json:"total_points"`
	ActiveLearners   uint64     `json:"active_learners"`
	Settled          bool       `json:"settled"`
	ClaimActiveUntil *time.Time `json:"claim_active_until,omitempty"`
}

func campaignJSON(cs ledger.CampaignSnapshot) CampaignJSON {
	out := CampaignJSON{
		Hash:           cs.Hash.Hex(),
		Name:           cs.Name,
		Operator:       cs.Operator.Hex(),
		Token:          cs.Token.Hex(),
		CreatedAt:      cs.CreatedAt,
		WeekID:         cs.Week.WeekID,
		FundsNative:    amountString(cs.Week.FundsNative),
		FundsERC20:     amountString(cs.Week.FundsERC20),
		TipsNative:     amountString(cs.Week.TipsNative),
		TotalPoints:    cs.Week.TotalPoints,
		ActiveLearners: cs.Week.ActiveLearners,
		Settled:        cs.Week.Settled,
	}
	if !cs.Week.ClaimActiveUntil.IsZero() {
		t := cs.Week.ClaimActiveUntil
		out.ClaimActiveUntil = &t
	}
	return out
}
