package handlers

import (
	"net/http"
	"time"

	"github.com/learnalabs/educaster/api/metrics"
	"github.com/learnalabs/educaster/ledger"
)

// QuestionJSON is one graded question inside a quiz submission. Hash may be
// the raw question content instead, in which case the ledger hash is derived
// server side.
type QuestionJSON struct {
	Hash    string `json:"hash,omitempty"`
	Content string `json:"content,omitempty"`
	Points  uint64 `json:"points"`
}

// QuizResultJSON is one quiz submission for one campaign.
type QuizResultJSON struct {
	CampaignHash string         `json:"campaign_hash"`
	Questions    []QuestionJSON `json:"questions"`
}

func (q QuizResultJSON) toLedger() (ledger.QuizResult, error) {
	hash, err := parseHash(q.CampaignHash)
	if err != nil {
		return ledger.QuizResult{}, err
	}
	out := ledger.QuizResult{CampaignHash: hash}
	for _, question := range q.Questions {
		aq := ledger.AnsweredQuestion{Points: question.Points}
		if question.Hash != "" {
			qh, err := parseHash(question.Hash)
			if err != nil {
				return ledger.QuizResult{}, err
			}
			aq.QuestionHash = qh
		} else {
			aq.QuestionHash = ledger.QuestionHash(question.Content)
		}
		out.Questions = append(out.Questions, aq)
	}
	return out, nil
}

// RecordPointsRequest credits one quiz submission to a user.
type RecordPointsRequest struct {
	Caller string         `json:"caller"`
	User   string         `json:"user"`
	Result QuizResultJSON `json:"result"`
}

// RecordPoints handles POST /api/v1/points (admin).
func (h *Handlers) RecordPoints(w http.ResponseWriter, r *http.Request) {
	var req RecordPointsRequest
	if err := h.decode(r, &req); err != nil {
		h.badRequest(w, err.Error())
		return
	}
	caller, err := parseAddress(req.Caller)
	if err != nil {
		h.badRequest(w, err.Error())
		return
	}
	user, err := parseAddress(req.User)
	if err != nil {
		h.badRequest(w, err.Error())
		return
	}
	result, err := req.Result.toLedger()
	if err != nil {
		h.badRequest(w, err.Error())
		return
	}

	start := time.Now()
	credited, err := h.engine.RecordPoints(r.Context(), caller, user, result, result.CampaignHash)
	metrics.RecordLedgerOp("record_points", time.Since(start), err)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	metrics.PointsRecordedTotal.Add(float64(credited))

	h.writeJSON(w, http.StatusOK, map[string]uint64{"credited": credited})
}

// RecordPointsBatchRequest credits quiz submissions across campaigns in one
// all-or-nothing call.
type RecordPointsBatchRequest struct {
	Caller  string           `json:"caller"`
	User    string           `json:"user"`
	Results []QuizResultJSON `json:"results"`
}

// RecordPointsBatch handles POST /api/v1/points/batch (admin).
func (h *Handlers) RecordPointsBatch(w http.ResponseWriter, r *http.Request) {
	var req RecordPointsBatchRequest
	if err := h.decode(r, &req); err != nil {
		h.badRequest(w, err.Error())
		return
	}
	caller, err := parseAddress(req.Caller)
	if err != nil {
		h.badRequest(w, err.Error())
		return
	}
	user, err := parseAddress(req.User)
	if err != nil {
		h.badRequest(w, err.Error())
		return
	}
	results := make([]ledger.QuizResult, 0, len(req.Results))
	for _, jr := range req.Results {
		result, err := jr.toLedger()
		if err != nil {
			h.badRequest(w, err.Error())
			return
		}
		results = append(results, result)
	}

	start := time.Now()
	credited, err := h.engine.RecordPointsBatch(r.Context(), caller, user, results)
	metrics.RecordLedgerOp("record_points_batch", time.Since(start), err)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var total uint64
	for _, c := range credited {
		total += c
	}
	metrics.PointsRecordedTotal.Add(float64(total))

	h.writeJSON(w, http.StatusOK, map[string]any{"credited": credited})
}
