package models

import (
	"time"

	id "hearth/pkg/domain"
)

// Version is an immutable content snapshot, unique per (ListingID, VersionNo).
type Version struct {
	ID        id.VersionID
	ListingID id.ListingID
	VersionNo int
	Content   Content
	CreatedAt time.Time
}

// NewVersion snapshots content under versionNo.
func NewVersion(listingID id.ListingID, versionNo int, content Content, now time.Time) *Version {
	return &Version{
		ID:        id.NewVersionID(),
		ListingID: listingID,
		VersionNo: versionNo,
		Content:   content.Clone(),
		CreatedAt: now,
	}
}

// InitialSnapshot stands in for version 1 of a listing that was never edited.
func InitialSnapshot(l *Listing) *Version {
	return &Version{
		ListingID: l.ID,
		VersionNo: InitialVersion,
		Content:   Content{MediaRefs: []string{}},
		CreatedAt: l.CreatedAt,
	}
}

// ListingView is a listing paired with the snapshot resolved for one reader.
type ListingView struct {
	Listing   *Listing
	VersionNo int
	Content   Content
}
