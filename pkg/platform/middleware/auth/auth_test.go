package auth

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"

	"hearth/pkg/requestcontext"
)

type stubValidator struct {
	claims map[string]*JWTClaims
}

func (v stubValidator) ValidateToken(token string) (*JWTClaims, error) {
	if c, ok := v.claims[token]; ok {
		return c, nil
	}
	return nil, errors.New("bad token")
}

type AuthMiddlewareSuite struct {
	suite.Suite
	userID    uuid.UUID
	validator stubValidator
	logger    *slog.Logger
}

func TestAuthMiddlewareSuite(t *testing.T) {
	suite.Run(t, new(AuthMiddlewareSuite))
}

func (s *AuthMiddlewareSuite) SetupTest() {
	s.userID = uuid.New()
	s.validator = stubValidator{claims: map[string]*JWTClaims{
		"good":        {UserID: s.userID.String(), Roles: []string{" role_admin ", "USER", "user"}},
		"bad-subject": {UserID: "not-a-uuid"},
	}}
	s.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
}

func (s *AuthMiddlewareSuite) serve(mw func(http.Handler) http.Handler, authHeader string) (*httptest.ResponseRecorder, *http.Request) {
	var seen *http.Request
	h := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r
		w.WriteHeader(http.StatusOK)
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr, seen
}

func (s *AuthMiddlewareSuite) TestRequireAuth() {
	mw := RequireAuth(s.validator, s.logger)

	s.Run("valid token populates identity", func() {
		rr, seen := s.serve(mw, "Bearer good")
		s.Equal(http.StatusOK, rr.Code)
		s.Require().NotNil(seen)
		s.Equal(s.userID.String(), requestcontext.UserID(seen.Context()).String())
		s.Equal([]string{"ROLE_ADMIN", "USER"}, requestcontext.Roles(seen.Context()))
	})

	s.Run("missing header", func() {
		rr, seen := s.serve(mw, "")
		s.Equal(http.StatusUnauthorized, rr.Code)
		s.Nil(seen)
		assert.Contains(s.T(), rr.Body.String(), `"error":"unauthorized"`)
	})

	s.Run("wrong scheme", func() {
		rr, _ := s.serve(mw, "Basic abc")
		s.Equal(http.StatusUnauthorized, rr.Code)
	})

	s.Run("invalid token", func() {
		rr, _ := s.serve(mw, "Bearer nope")
		s.Equal(http.StatusUnauthorized, rr.Code)
	})

	s.Run("non uuid subject", func() {
		rr, _ := s.serve(mw, "Bearer bad-subject")
		s.Equal(http.StatusUnauthorized, rr.Code)
	})
}

func (s *AuthMiddlewareSuite) TestOptionalAuth() {
	mw := OptionalAuth(s.validator, s.logger)

	s.Run("anonymous passes through", func() {
		rr, seen := s.serve(mw, "")
		s.Equal(http.StatusOK, rr.Code)
		s.Require().NotNil(seen)
		s.True(requestcontext.UserID(seen.Context()).IsNil())
	})

	s.Run("valid token populates identity", func() {
		_, seen := s.serve(mw, "Bearer good")
		s.Require().NotNil(seen)
		s.Equal(s.userID.String(), requestcontext.UserID(seen.Context()).String())
	})

	s.Run("invalid token continues anonymously", func() {
		rr, seen := s.serve(mw, "Bearer nope")
		s.Equal(http.StatusOK, rr.Code)
		s.Require().NotNil(seen)
		s.True(requestcontext.UserID(seen.Context()).IsNil())
		s.Nil(requestcontext.Roles(seen.Context()))
	})
}
