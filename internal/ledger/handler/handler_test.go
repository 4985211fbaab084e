package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"

	"mutualpool/internal/assets/adapters"
	jwttoken "mutualpool/internal/jwt_token"
	"mutualpool/internal/ledger"
	id "mutualpool/pkg/domain"
	"mutualpool/pkg/platform/middleware/auth"
	outboxmemory "mutualpool/pkg/platform/outbox/store/memory"
)

const (
	admin    = id.AccountID("root")
	insurer  = id.AccountID("insurer-a")
	owner    = id.AccountID("alice")
	attester = id.AccountID("dr-who")
	subject  = id.SubjectID("vehicle-1")
)

type HandlerSuite struct {
	suite.Suite
	router http.Handler
	jwt    *jwttoken.JWTService
	outbox *outboxmemory.Store
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	registry := adapters.NewMemoryRegistry()
	registry.Register(subject, owner)
	registry.AuthorizeAttester(subject, attester)

	params := ledger.DefaultParams()
	params.PanelSize = 3
	s.outbox = outboxmemory.New()
	engine := ledger.New(ledger.NewMemoryTx(s.outbox), registry, admin, params, ledger.WithLogger(logger))

	s.jwt = jwttoken.NewJWTService("test-key", "mutualpool", "mutualpool-api", time.Hour)
	r := chi.NewRouter()
	r.Use(auth.RequireAuth(jwttoken.NewJWTServiceAdapter(s.jwt), logger))
	New(engine, logger).Register(r)
	s.router = r
}

func (s *HandlerSuite) do(method, path string, caller id.AccountID, body any) *httptest.ResponseRecorder {
	var payload io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		s.Require().NoError(err)
		payload = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, payload)
	if !caller.IsNil() {
		token, err := s.jwt.GenerateAccessToken(caller)
		s.Require().NoError(err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *HandlerSuite) expect(status int, rec *httptest.ResponseRecorder) {
	s.Require().Equal(status, rec.Code, rec.Body.String())
}

func (s *HandlerSuite) decode(rec *httptest.ResponseRecorder, out any) {
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), out))
}

func (s *HandlerSuite) enroll(juror id.AccountID) {
	s.expect(http.StatusCreated, s.do(http.MethodPost, "/participants", admin, map[string]any{
		"participant": juror, "did": "did:example:" + juror,
	}))
	s.expect(http.StatusCreated, s.do(http.MethodPost, "/participants/"+string(juror)+"/checks", admin, map[string]any{
		"identity_hash": "hash-" + juror, "passed": true,
	}))
	s.expect(http.StatusOK, s.do(http.MethodPost, "/accounts/"+string(juror)+"/fund", admin, map[string]any{"amount": 100}))
	s.expect(http.StatusOK, s.do(http.MethodPost, "/stake", juror, map[string]any{"amount": 100}))
}

func (s *HandlerSuite) TestMissingTokenRejected() {
	s.expect(http.StatusUnauthorized, s.do(http.MethodGet, "/pool", "", nil))
}

func (s *HandlerSuite) TestClaimLifecycle() {
	s.expect(http.StatusNoContent, s.do(http.MethodPost, "/roles/issuer/grants", admin, map[string]any{"account": insurer}))
	s.expect(http.StatusCreated, s.do(http.MethodPost, "/credentials", insurer, map[string]any{
		"holder": attester, "license_ref": "MD-1", "expires_at": time.Now().Add(365 * 24 * time.Hour),
	}))
	jurors := []id.AccountID{"juror-1", "juror-2", "juror-3"}
	for _, j := range jurors {
		s.enroll(j)
	}
	s.expect(http.StatusOK, s.do(http.MethodPost, "/accounts/alice/fund", admin, map[string]any{"amount": 1000}))

	rec := s.do(http.MethodGet, "/subjects/vehicle-1/quote", owner, nil)
	s.expect(http.StatusOK, rec)
	var quote QuoteResponse
	s.decode(rec, &quote)
	s.Equal(uint64(100), quote.Premium)

	rec = s.do(http.MethodPost, "/subjects/vehicle-1/deposits", owner, map[string]any{"amount": 500})
	s.expect(http.StatusOK, rec)
	var pool PoolResponse
	s.decode(rec, &pool)
	s.Equal(PoolResponse{Immediate: 150, Stable: 300, Risk: 50, Total: 500}, pool)

	rec = s.do(http.MethodPost, "/claims", owner, map[string]any{
		"subject": subject, "attester": attester, "evidence_ref": "ipfs://report", "amount": 100,
	})
	s.expect(http.StatusCreated, rec)
	var claim ClaimResponse
	s.decode(rec, &claim)
	s.Equal("1", claim.ID)
	s.Equal("pending", claim.Status)

	rec = s.do(http.MethodPost, "/claims/1/panel", admin, nil)
	s.expect(http.StatusOK, rec)
	s.decode(rec, &claim)
	s.Equal([]string{"juror-1", "juror-2", "juror-3"}, claim.Panel)

	for _, j := range jurors {
		rec = s.do(http.MethodPost, "/claims/1/votes", j, map[string]any{"approve": true})
		s.expect(http.StatusOK, rec)
	}
	s.decode(rec, &claim)
	s.Equal("approved", claim.Status)
	s.True(claim.PaidOut)
	s.Len(claim.Payouts, 5)

	rec = s.do(http.MethodGet, "/accounts/dr-who/balance", attester, nil)
	s.expect(http.StatusOK, rec)
	var balance struct {
		Wallet uint64 `json:"wallet"`
	}
	s.decode(rec, &balance)
	s.Equal(uint64(80), balance.Wallet)

	rec = s.do(http.MethodGet, "/participants/juror-1/reputation", admin, nil)
	s.expect(http.StatusOK, rec)
	var history []map[string]any
	s.decode(rec, &history)
	s.Require().Len(history, 1)
	s.Equal(float64(505), history[0]["score"])

	s.NotEmpty(s.outbox.All())
}

func (s *HandlerSuite) TestRequestValidation() {
	tests := []struct {
		name   string
		method string
		path   string
		body   any
	}{
		{name: "unknown role", method: http.MethodPost, path: "/roles/janitor/grants", body: map[string]any{"account": "x"}},
		{name: "zero amount", method: http.MethodPost, path: "/stake", body: map[string]any{"amount": 0}},
		{name: "missing vote value", method: http.MethodPost, path: "/claims/1/votes", body: map[string]any{}},
		{name: "malformed claim id", method: http.MethodGet, path: "/claims/abc"},
		{name: "blank evidence", method: http.MethodPost, path: "/claims", body: map[string]any{
			"subject": subject, "attester": attester, "evidence_ref": "  ", "amount": 1,
		}},
		{name: "unknown field", method: http.MethodPost, path: "/wallet/withdraw", body: map[string]any{"amount": 1, "to": "x"}},
		{name: "empty batch", method: http.MethodPost, path: "/credentials/validity", body: map[string]any{"holders": []string{}}},
	}
	for _, tt := range tests {
		s.Run(tt.name, func() {
			s.expect(http.StatusBadRequest, s.do(tt.method, tt.path, owner, tt.body))
		})
	}
}

func (s *HandlerSuite) TestDomainErrorMapping() {
	s.expect(http.StatusNotFound, s.do(http.MethodGet, "/claims/7", owner, nil))
	s.expect(http.StatusForbidden, s.do(http.MethodPost, "/roles/issuer/grants", owner, map[string]any{"account": owner}))
	s.expect(http.StatusUnprocessableEntity, s.do(http.MethodPost, "/wallet/withdraw", owner, map[string]any{"amount": 5}))

	s.expect(http.StatusCreated, s.do(http.MethodPost, "/participants", admin, map[string]any{"participant": "p1", "did": "did:example:1"}))
	s.expect(http.StatusConflict, s.do(http.MethodPost, "/participants", admin, map[string]any{"participant": "p1", "did": "did:example:2"}))
}

func (s *HandlerSuite) TestBatchReads() {
	s.enroll("juror-1")
	rec := s.do(http.MethodPost, "/participants/eligibility", owner, map[string]any{
		"participants": []string{"juror-1", "stranger"},
	})
	s.expect(http.StatusOK, rec)
	var out []map[string]any
	s.decode(rec, &out)
	s.Equal([]map[string]any{
		{"participant": "juror-1", "eligible": true},
		{"participant": "stranger", "eligible": false},
	}, out)

	rec = s.do(http.MethodGet, "/pool/stakers", owner, nil)
	s.expect(http.StatusOK, rec)
	s.JSONEq(`{"stakers":["juror-1"]}`, rec.Body.String())

	rec = s.do(http.MethodGet, fmt.Sprintf("/participants/%s/checks", "juror-1"), owner, nil)
	s.expect(http.StatusOK, rec)
}
