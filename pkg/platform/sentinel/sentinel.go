package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores return these (optionally
// wrapped) so the listing service can translate them into domain errors:
//   - ErrNotFound: row or snapshot does not exist
//   - ErrConflict: optimistic revision check failed or a version number was taken
//   - ErrUnavailable: backing store or broker temporarily unreachable
//
// For validation errors (bad input, missing fields), use pkg/domain-errors directly.
var (
	ErrNotFound    = errors.New("not found")
	ErrConflict    = errors.New("conflict")
	ErrUnavailable = errors.New("unavailable")
)
