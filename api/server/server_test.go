package server_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/learnalabs/educaster/api/handlers"
	"github.com/learnalabs/educaster/api/server"
	"github.com/learnalabs/educaster/ledger"
	"github.com/learnalabs/educaster/ledger/memstore"
	ectesting "github.com/learnalabs/educaster/utils/pkg/testing"
)

const testAPIKey = "test-api-key"

var (
	owner    = common.BytesToAddress([]byte{0x01})
	operator = common.BytesToAddress([]byte{0x02})
	learner  = common.BytesToAddress([]byte{0x03})
	token    = common.BytesToAddress([]byte{0x10})
)

type fixture struct {
	router http.Handler
	clock  *clockwork.FakeClock
	store  *memstore.Store
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := memstore.New()
	clock := clockwork.NewFakeClockAt(time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC))

	require.NoError(t, ledger.Bootstrap(t.Context(), store, clock, ledger.BootstrapParams{
		Owner:              owner,
		TransitionInterval: 7 * 24 * time.Hour,
		ClaimWindow:        72 * time.Hour,
		MinimumToken:       big.NewInt(100),
	}))

	engine, err := ledger.NewEngine(ledger.Config{
		Logger: ectesting.NewLogger(),
		Clock:  clock,
		Store:  store,
	})
	require.NoError(t, err)

	srv, err := server.New(server.Config{
		Logger:      ectesting.NewLogger(),
		Engine:      engine,
		ListenAddr:  "127.0.0.1:0",
		AdminAPIKey: testAPIKey,
		VersionInfo: handlers.VersionInfo{Version: "test"},
	})
	require.NoError(t, err)

	return &fixture{router: srv.Router(), clock: clock, store: store}
}

func (f *fixture) do(t *testing.T, method, path string, body any, admin bool) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if admin {
		req.Header.Set("Authorization", "Bearer "+testAPIKey)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v), "body: %s", rec.Body.String())
	return v
}

func TestHealthAndVersion(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/healthz", nil, false)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/readyz", nil, false)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/version", nil, false)
	require.Equal(t, http.StatusOK, rec.Code)
	info := decodeBody[handlers.VersionInfo](t, rec)
	assert.Equal(t, "test", info.Version)
}

func TestAdminEndpointsRequireAPIKey(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/v1/settlement", handlers.SettleRequest{
		Caller: owner.Hex(), Token: token.Hex(),
	}, false)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/settlement", bytes.NewBufferString("{}"))
	req.Header.Set("Authorization", "Bearer wrong-key")
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestWeeklyCycleOverHTTP(t *testing.T) {
	f := newFixture(t)

	// Admin registers the campaign shell.
	rec := f.do(t, http.MethodPost, "/api/v1/campaigns", handlers.RegisterCampaignRequest{
		Caller:   owner.Hex(),
		Name:     "solidity",
		Operator: operator.Hex(),
		Token:    token.Hex(),
	}, true)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decodeBody[map[string]string](t, rec)
	hash := created["hash"]
	assert.Equal(t, ledger.CampaignHash("solidity").Hex(), hash)

	// Operator funds it.
	f.store.Mint(operator, ledger.NativeAsset, big.NewInt(1000))
	f.store.Mint(operator, token, big.NewInt(500))
	rec = f.do(t, http.MethodPost, "/api/v1/campaigns/setup", handlers.SetUpCampaignRequest{
		Caller:      operator.Hex(),
		Name:        "solidity",
		Token:       token.Hex(),
		ERC20Amount: "500",
		NativeValue: "1000",
	}, false)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// The campaign listing shows the funded pools.
	rec = f.do(t, http.MethodGet, "/api/v1/campaigns", nil, false)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decodeBody[handlers.PaginatedResponse[handlers.CampaignJSON]](t, rec)
	require.Equal(t, 1, list.Total)
	assert.Equal(t, "1000", list.Items[0].FundsNative)
	assert.Equal(t, "500", list.Items[0].FundsERC20)

	// Learner buys a pass key.
	f.store.Mint(learner, ledger.NativeAsset, big.NewInt(100))
	rec = f.do(t, http.MethodPost, "/api/v1/passkeys", handlers.GenerateKeyRequest{
		Caller: learner.Hex(),
		Hashes: []string{hash},
		Value:  "100",
	}, false)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	// Admin records a quiz result.
	rec = f.do(t, http.MethodPost, "/api/v1/points", handlers.RecordPointsRequest{
		Caller: owner.Hex(),
		User:   learner.Hex(),
		Result: handlers.QuizResultJSON{
			CampaignHash: hash,
			Questions: []handlers.QuestionJSON{
				{Content: "q1", Points: 40},
				{Content: "q2", Points: 20},
			},
		},
	}, true)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	credited := decodeBody[map[string]uint64](t, rec)
	assert.Equal(t, uint64(60), credited["credited"])

	// Replay of the same questions credits nothing.
	rec = f.do(t, http.MethodPost, "/api/v1/points", handlers.RecordPointsRequest{
		Caller: owner.Hex(),
		User:   learner.Hex(),
		Result: handlers.QuizResultJSON{
			CampaignHash: hash,
			Questions:    []handlers.QuestionJSON{{Content: "q1", Points: 40}},
		},
	}, true)
	require.Equal(t, http.StatusOK, rec.Code)
	credited = decodeBody[map[string]uint64](t, rec)
	assert.Zero(t, credited["credited"])

	// Settlement before the transition date is rejected.
	rec = f.do(t, http.MethodPost, "/api/v1/settlement", handlers.SettleRequest{
		Caller: owner.Hex(), Token: token.Hex(),
	}, true)
	assert.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())

	f.clock.Advance(7*24*time.Hour + time.Minute)
	rec = f.do(t, http.MethodPost, "/api/v1/settlement", handlers.SettleRequest{
		Caller: owner.Hex(), Token: token.Hex(),
	}, true)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	settled := decodeBody[handlers.SettleResponse](t, rec)
	assert.Equal(t, uint64(1), settled.SettledWeekID)
	assert.Equal(t, uint64(2), settled.NewWeekID)
	assert.Equal(t, 1, settled.CampaignsSettled)

	// Eligibility shows the snapshotted share.
	rec = f.do(t, http.MethodGet,
		fmt.Sprintf("/api/v1/eligibility?user=%s&week=1&hash=%s", learner.Hex(), hash), nil, false)
	require.Equal(t, http.StatusOK, rec.Code)
	elig := decodeBody[[]handlers.EligibilityJSON](t, rec)
	require.Len(t, elig, 1)
	assert.True(t, elig[0].HasPassKey)
	assert.Equal(t, "1100", elig[0].NativeAmount)
	assert.Equal(t, "500", elig[0].ERC20Amount)

	// Learner claims; pool was 1000 funds + 100 pass-key fee.
	rec = f.do(t, http.MethodPost, "/api/v1/claims", handlers.ClaimRequest{
		Caller: learner.Hex(), WeekID: 1, Hash: hash,
	}, false)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	claim := decodeBody[handlers.ClaimResponse](t, rec)
	assert.Equal(t, "1100", claim.NativeAmount)
	assert.Equal(t, "500", claim.ERC20Amount)

	// Second claim conflicts.
	rec = f.do(t, http.MethodPost, "/api/v1/claims", handlers.ClaimRequest{
		Caller: learner.Hex(), WeekID: 1, Hash: hash,
	}, false)
	assert.Equal(t, http.StatusConflict, rec.Code)

	// Profile reflects lifetime totals.
	rec = f.do(t, http.MethodGet,
		fmt.Sprintf("/api/v1/profile?user=%s&week=1&hash=%s", learner.Hex(), hash), nil, false)
	require.Equal(t, http.StatusOK, rec.Code)
	profile := decodeBody[handlers.ProfileResponse](t, rec)
	assert.Equal(t, "1100", profile.ClaimedNative)
	assert.Equal(t, "500", profile.ClaimedERC20)
	require.Len(t, profile.Profiles, 1)
	assert.Equal(t, uint64(60), profile.Profiles[0].Points)
}

func TestErrorMapping(t *testing.T) {
	f := newFixture(t)

	unknown := ledger.CampaignHash("missing").Hex()

	// Unknown campaign maps to 404.
	rec := f.do(t, http.MethodPost, "/api/v1/tips", handlers.TipRequest{
		From: learner.Hex(), Hash: unknown, Amount: "5",
	}, false)
	assert.Equal(t, http.StatusNotFound, rec.Code, rec.Body.String())

	// Register and fund, then exercise domain rejections.
	rec = f.do(t, http.MethodPost, "/api/v1/campaigns", handlers.RegisterCampaignRequest{
		Caller: owner.Hex(), Name: "rust", Operator: operator.Hex(), Token: token.Hex(),
	}, true)
	require.Equal(t, http.StatusCreated, rec.Code)
	hash := ledger.CampaignHash("rust").Hex()

	// Recording points without a pass key is forbidden.
	rec = f.do(t, http.MethodPost, "/api/v1/points", handlers.RecordPointsRequest{
		Caller: owner.Hex(),
		User:   learner.Hex(),
		Result: handlers.QuizResultJSON{
			CampaignHash: hash,
			Questions:    []handlers.QuestionJSON{{Content: "q1", Points: 10}},
		},
	}, true)
	assert.Equal(t, http.StatusForbidden, rec.Code, rec.Body.String())

	// Pass key purchase without funds is a payment error.
	rec = f.do(t, http.MethodPost, "/api/v1/passkeys", handlers.GenerateKeyRequest{
		Caller: learner.Hex(), Hashes: []string{hash}, Value: "100",
	}, false)
	assert.Equal(t, http.StatusPaymentRequired, rec.Code, rec.Body.String())

	// Non-admin caller with a valid API key is still rejected by the ledger.
	rec = f.do(t, http.MethodPost, "/api/v1/settlement", handlers.SettleRequest{
		Caller: learner.Hex(), Token: token.Hex(),
	}, true)
	assert.Equal(t, http.StatusForbidden, rec.Code, rec.Body.String())

	// Malformed address is a bad request.
	rec = f.do(t, http.MethodPost, "/api/v1/claims", handlers.ClaimRequest{
		Caller: "not-an-address", WeekID: 1, Hash: hash,
	}, false)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
