package auth

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"

	id "mutualpool/pkg/domain"
	"mutualpool/pkg/requestcontext"
)

type MockJWTValidator struct {
	mock.Mock
}

func (m *MockJWTValidator) ValidateToken(tokenString string) (*JWTClaims, error) {
	args := m.Called(tokenString)
	if claims := args.Get(0); claims != nil {
		return claims.(*JWTClaims), args.Error(1)
	}
	return nil, args.Error(1)
}

type captureHandler struct {
	called bool
	ctx    context.Context
}

func (h *captureHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.called = true
	h.ctx = r.Context()
	w.WriteHeader(http.StatusOK)
}

type AuthMiddlewareTestSuite struct {
	suite.Suite
	validator *MockJWTValidator
	next      *captureHandler
	handler   http.Handler
}

func TestAuthMiddlewareSuite(t *testing.T) {
	suite.Run(t, new(AuthMiddlewareTestSuite))
}

func (s *AuthMiddlewareTestSuite) SetupTest() {
	s.validator = new(MockJWTValidator)
	s.next = &captureHandler{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.handler = RequireAuth(s.validator, logger)(s.next)
}

func (s *AuthMiddlewareTestSuite) serve(header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/claims", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func (s *AuthMiddlewareTestSuite) TestValidTokenSetsCaller() {
	s.validator.On("ValidateToken", "good").Return(&JWTClaims{Subject: "alice", JTI: "j1"}, nil)

	rec := s.serve("Bearer good")

	s.Equal(http.StatusOK, rec.Code)
	s.True(s.next.called)
	s.Equal(id.AccountID("alice"), requestcontext.Caller(s.next.ctx))
	s.validator.AssertExpectations(s.T())
}

func (s *AuthMiddlewareTestSuite) TestMissingHeader() {
	rec := s.serve("")
	s.Equal(http.StatusUnauthorized, rec.Code)
	s.False(s.next.called)
	s.validator.AssertNotCalled(s.T(), "ValidateToken", mock.Anything)
}

func (s *AuthMiddlewareTestSuite) TestWrongScheme() {
	rec := s.serve("Basic dXNlcjpwYXNz")
	s.Equal(http.StatusUnauthorized, rec.Code)
	s.False(s.next.called)
}

func (s *AuthMiddlewareTestSuite) TestInvalidToken() {
	s.validator.On("ValidateToken", "bad").Return(nil, errors.New("signature mismatch"))

	rec := s.serve("Bearer bad")

	s.Equal(http.StatusUnauthorized, rec.Code)
	s.JSONEq(`{"error":"unauthorized","error_description":"Invalid or expired token"}`, rec.Body.String())
	s.False(s.next.called)
}

func (s *AuthMiddlewareTestSuite) TestBlankSubjectRejected() {
	s.validator.On("ValidateToken", "anon").Return(&JWTClaims{Subject: "  "}, nil)

	rec := s.serve("Bearer anon")

	s.Equal(http.StatusUnauthorized, rec.Code)
	s.False(s.next.called)
}
