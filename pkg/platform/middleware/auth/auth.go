package auth

import (
	"log/slog"
	"net/http"
	"strings"

	id "hearth/pkg/domain"
	dErrors "hearth/pkg/domain-errors"
	"hearth/pkg/platform/httputil"
	pstrings "hearth/pkg/platform/strings"
	"hearth/pkg/requestcontext"
)

// JWTValidator defines the interface for validating JWT tokens
type JWTValidator interface {
	ValidateToken(tokenString string) (*JWTClaims, error)
}

// JWTClaims represents the claims we expect from the JWT validator
type JWTClaims struct {
	UserID string
	Email  string
	Roles  []string
}

const bearerPrefix = "Bearer "

// RequireAuth rejects requests without a valid bearer token.
func RequireAuth(validator JWTValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), bearerPrefix)
			if !ok || token == "" {
				logger.WarnContext(ctx, "unauthorized access - missing token",
					"request_id", requestcontext.RequestID(ctx),
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "Missing or invalid Authorization header"))
				return
			}
			authed, err := authenticate(r, validator, token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", requestcontext.RequestID(ctx),
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "Invalid or expired token"))
				return
			}
			next.ServeHTTP(w, authed)
		})
	}
}

// OptionalAuth attaches the caller's identity when a valid token is present.
// Requests with a missing or invalid token continue anonymously.
func OptionalAuth(validator JWTValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), bearerPrefix)
			if !ok || token == "" {
				next.ServeHTTP(w, r)
				return
			}
			authed, err := authenticate(r, validator, token)
			if err != nil {
				logger.DebugContext(r.Context(), "ignoring invalid token on optional route",
					"error", err,
					"request_id", requestcontext.RequestID(r.Context()),
				)
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, authed)
		})
	}
}

func authenticate(r *http.Request, validator JWTValidator, token string) (*http.Request, error) {
	claims, err := validator.ValidateToken(token)
	if err != nil {
		return nil, err
	}
	userID, err := id.ParseUserID(claims.UserID)
	if err != nil {
		return nil, err
	}
	ctx := requestcontext.WithUserID(r.Context(), userID)
	ctx = requestcontext.WithRoles(ctx, pstrings.DedupeAndTrimUpper(claims.Roles))
	return r.WithContext(ctx), nil
}
