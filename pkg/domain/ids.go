// Package domain holds typed identifiers shared across modules.
//
// Each identifier is a distinct named UUID type so the compiler rejects a
// UserID where a ListingID is expected.
package domain

import (
	"strings"

	"github.com/google/uuid"

	dErrors "hearth/pkg/domain-errors"
)

type (
	UserID    uuid.UUID
	ListingID uuid.UUID
	VersionID uuid.UUID
	EventID   uuid.UUID
)

func (id UserID) String() string    { return uuid.UUID(id).String() }
func (id ListingID) String() string { return uuid.UUID(id).String() }
func (id VersionID) String() string { return uuid.UUID(id).String() }
func (id EventID) String() string   { return uuid.UUID(id).String() }

func (id UserID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id ListingID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

func NewListingID() ListingID { return ListingID(uuid.New()) }
func NewVersionID() VersionID { return VersionID(uuid.New()) }
func NewEventID() EventID     { return EventID(uuid.New()) }

// ParseUserID parses a non-nil UUID user identifier.
func ParseUserID(s string) (UserID, error) {
	u, err := parseUUID(s, "user id")
	return UserID(u), err
}

// ParseListingID parses a non-nil UUID listing identifier.
func ParseListingID(s string) (ListingID, error) {
	u, err := parseUUID(s, "listing id")
	return ListingID(u), err
}

// ParseVersionID parses a non-nil UUID version identifier.
func ParseVersionID(s string) (VersionID, error) {
	u, err := parseUUID(s, "version id")
	return VersionID(u), err
}

func parseUUID(s, label string) (uuid.UUID, error) {
	if strings.TrimSpace(s) == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" is required")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid "+label)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" must not be nil")
	}
	return u, nil
}
