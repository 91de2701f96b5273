package models

import (
	"time"

	id "hearth/pkg/domain"
	dErrors "hearth/pkg/domain-errors"
)

// InitialVersion is the version number a listing starts at. It has no stored
// snapshot; reading it yields empty content.
const InitialVersion = 1

// Listing is the aggregate root for one property advertisement. It tracks two
// pointers into the listing's append-only snapshot sequence: CurrentVersion,
// the newest snapshot (the editable target), and PublishedVersion, the one
// public readers see.
//
// Invariants:
//   - CurrentVersion >= 1
//   - PublishedVersion is nil iff the listing was never published, and once
//     set is never unset and never exceeds CurrentVersion
//   - Status only moves Draft -> Published -> Archived
//
// Revision is the optimistic concurrency token; stores bump it on every write.
type Listing struct {
	ID               id.ListingID
	OwnerID          id.UserID
	Status           Status
	CurrentVersion   int
	PublishedVersion *int
	Revision         int64
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// NewDraft creates an unpublished listing at the initial version.
func NewDraft(listingID id.ListingID, ownerID id.UserID, now time.Time) (*Listing, error) {
	if listingID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "listing id is required")
	}
	if ownerID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "owner id is required")
	}
	return &Listing{
		ID:             listingID,
		OwnerID:        ownerID,
		Status:         StatusDraft,
		CurrentVersion: InitialVersion,
		Revision:       1,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// Clone returns a copy safe to mutate independently of l.
func (l *Listing) Clone() *Listing {
	out := *l
	if l.PublishedVersion != nil {
		pv := *l.PublishedVersion
		out.PublishedVersion = &pv
	}
	return &out
}

// HasActiveEdit reports whether a working snapshot newer than the published
// one exists.
func (l *Listing) HasActiveEdit() bool {
	return l.PublishedVersion != nil && l.CurrentVersion > *l.PublishedVersion
}

// LastPublicVersion is the version most recently exposed to readers, falling
// back to the current version for never-published listings.
func (l *Listing) LastPublicVersion() int {
	if l.PublishedVersion != nil {
		return *l.PublishedVersion
	}
	return l.CurrentVersion
}

// NextVersion is the version number the next snapshot will take.
func (l *Listing) NextVersion() int {
	return l.CurrentVersion + 1
}

// -----------------------------------------------------------------------------
// Content edits
// -----------------------------------------------------------------------------

// CanUpdateContent allows edits on drafts and on published listings with an
// open edit.
func (l *Listing) CanUpdateContent() error {
	switch {
	case l.Status == StatusArchived:
		return dErrors.New(dErrors.CodeNotEditable, "archived listing cannot be edited")
	case l.Status == StatusPublished && !l.HasActiveEdit():
		return dErrors.New(dErrors.CodeNotEditable, "published listing must be opened for editing first")
	}
	return nil
}

// ApplyContentUpdate advances CurrentVersion to the snapshot being appended.
func (l *Listing) ApplyContentUpdate(now time.Time) int {
	l.CurrentVersion = l.NextVersion()
	l.UpdatedAt = now
	return l.CurrentVersion
}

// -----------------------------------------------------------------------------
// Status transitions
// -----------------------------------------------------------------------------

func (l *Listing) CanPublish() error {
	if !l.Status.CanPublish() {
		return dErrors.New(dErrors.CodeInvalidStatusTransition, "cannot publish a listing in status "+l.Status.String())
	}
	return nil
}

// ApplyPublish promotes the current snapshot and makes the listing public.
func (l *Listing) ApplyPublish(now time.Time) {
	pv := l.CurrentVersion
	l.Status = StatusPublished
	l.PublishedVersion = &pv
	l.UpdatedAt = now
}

// CanStartEdit allows opening a working copy on published listings only.
// Callers check HasActiveEdit themselves: an open edit makes startEdit a no-op.
func (l *Listing) CanStartEdit() error {
	switch l.Status {
	case StatusArchived:
		return dErrors.New(dErrors.CodeNotEditable, "archived listing cannot be edited")
	case StatusDraft:
		return dErrors.New(dErrors.CodeInvalidStatusTransition, "draft listings are edited directly")
	}
	return nil
}

// ApplyStartEdit reserves the working snapshot's version number.
func (l *Listing) ApplyStartEdit(now time.Time) int {
	return l.ApplyContentUpdate(now)
}

func (l *Listing) CanRepublish() error {
	switch {
	case l.Status == StatusArchived:
		return dErrors.New(dErrors.CodeNotEditable, "archived listing cannot be edited")
	case l.Status != StatusPublished:
		return dErrors.New(dErrors.CodeInvalidStatusTransition, "cannot republish a listing in status "+l.Status.String())
	case !l.HasActiveEdit():
		return dErrors.New(dErrors.CodeValidation, "no active edit to republish")
	}
	return nil
}

// ApplyRepublish promotes the working snapshot, closing the edit.
func (l *Listing) ApplyRepublish(now time.Time) {
	pv := l.CurrentVersion
	l.PublishedVersion = &pv
	l.UpdatedAt = now
}

func (l *Listing) CanArchive() error {
	if !l.Status.CanArchive() {
		return dErrors.New(dErrors.CodeInvalidStatusTransition, "cannot archive a listing in status "+l.Status.String())
	}
	return nil
}

func (l *Listing) ApplyArchive(now time.Time) {
	l.Status = StatusArchived
	l.UpdatedAt = now
}

// -----------------------------------------------------------------------------
// Read rules
// -----------------------------------------------------------------------------

// VisibleTo reports whether p may see the listing at all. Callers that fail
// this check must be told "not found".
func (l *Listing) VisibleTo(p *Principal) bool {
	return l.Status.IsPubliclyVisible() || p.CanManage(l)
}

// ResolveVersionForRead picks the snapshot p should see: managers with an
// open edit see the working copy, everyone else the published snapshot, or
// the current one before first publish.
func (l *Listing) ResolveVersionForRead(p *Principal) int {
	if p.CanManage(l) && l.HasActiveEdit() {
		return l.CurrentVersion
	}
	return l.LastPublicVersion()
}

// CanReadVersion reports whether p may read snapshot versionNo directly.
// Managers may read any existing version; others only the published one.
func (l *Listing) CanReadVersion(p *Principal, versionNo int) bool {
	if versionNo < InitialVersion || versionNo > l.CurrentVersion {
		return false
	}
	if p.CanManage(l) {
		return true
	}
	return l.Status.IsPubliclyVisible() && l.PublishedVersion != nil && *l.PublishedVersion == versionNo
}
