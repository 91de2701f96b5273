package testutil

import (
	"net/http"

	id "hearth/pkg/domain"
	"hearth/pkg/requestcontext"
)

// WithAuth puts the identity the auth middleware would set into the request
// context, for tests that call handlers directly. Invalid IDs are ignored.
func WithAuth(req *http.Request, userID string, roles ...string) *http.Request {
	ctx := req.Context()
	if parsedUserID, err := id.ParseUserID(userID); err == nil {
		ctx = requestcontext.WithUserID(ctx, parsedUserID)
	}
	if len(roles) > 0 {
		ctx = requestcontext.WithRoles(ctx, roles)
	}
	return req.WithContext(ctx)
}
