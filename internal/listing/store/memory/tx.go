package memory

import (
	"context"
	"time"

	"hearth/internal/listing/models"
	"hearth/internal/listing/service"
	id "hearth/pkg/domain"
	dErrors "hearth/pkg/domain-errors"
	"hearth/pkg/platform/sentinel"
)

const defaultTxTimeout = 5 * time.Second

// RunInTx runs fn against a staging unit and commits its writes atomically.
// A stale revision or a taken version number at commit time yields
// sentinel.ErrConflict and nothing is applied.
func (s *InMemory) RunInTx(ctx context.Context, fn func(ctx context.Context, stores service.Stores) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, defaultTxTimeout)
		defer cancel()
	}

	u := newUnit(s)
	if err := fn(ctx, service.Stores{Listings: u, Versions: u}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	return s.commit(u)
}

func (s *InMemory) commit(u *unit) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for listingID := range u.created {
		if _, ok := s.listings[listingID]; ok {
			return sentinel.ErrConflict
		}
	}
	for listingID, expected := range u.baseRevision {
		current, ok := s.listings[listingID]
		if !ok {
			return sentinel.ErrNotFound
		}
		if current.Revision != expected {
			return sentinel.ErrConflict
		}
	}
	for key := range u.versions {
		if _, ok := s.versions[key]; ok {
			return sentinel.ErrConflict
		}
	}

	for listingID, l := range u.listings {
		s.listings[listingID] = l
	}
	for key, v := range u.versions {
		s.versions[key] = v
	}
	return nil
}

// unit stages writes for one RunInTx call. Reads see staged values first.
type unit struct {
	base *InMemory
	// listings holds the latest staged state of every created or updated listing.
	listings map[id.ListingID]*models.Listing
	created  map[id.ListingID]struct{}
	// baseRevision is the committed revision each update was planned against.
	baseRevision map[id.ListingID]int64
	versions     map[versionKey]*models.Version
}

func newUnit(base *InMemory) *unit {
	return &unit{
		base:         base,
		listings:     make(map[id.ListingID]*models.Listing),
		created:      make(map[id.ListingID]struct{}),
		baseRevision: make(map[id.ListingID]int64),
		versions:     make(map[versionKey]*models.Version),
	}
}

func (u *unit) FindByID(ctx context.Context, listingID id.ListingID) (*models.Listing, error) {
	if l, ok := u.listings[listingID]; ok {
		return l.Clone(), nil
	}
	return u.base.FindByID(ctx, listingID)
}

func (u *unit) Create(ctx context.Context, l *models.Listing) error {
	if _, ok := u.listings[l.ID]; ok {
		return sentinel.ErrConflict
	}
	if _, err := u.base.FindByID(ctx, l.ID); err == nil {
		return sentinel.ErrConflict
	}
	u.created[l.ID] = struct{}{}
	u.listings[l.ID] = l.Clone()
	return nil
}

func (u *unit) Update(ctx context.Context, l *models.Listing, expectedRevision int64) error {
	current, err := u.FindByID(ctx, l.ID)
	if err != nil {
		return err
	}
	if current.Revision != expectedRevision {
		return sentinel.ErrConflict
	}
	_, created := u.created[l.ID]
	if _, planned := u.baseRevision[l.ID]; !planned && !created {
		u.baseRevision[l.ID] = expectedRevision
	}
	l.Revision = expectedRevision + 1
	u.listings[l.ID] = l.Clone()
	return nil
}

func (u *unit) ListByOwner(ctx context.Context, ownerID id.UserID) ([]*models.Listing, error) {
	committed, err := u.base.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	out := make([]*models.Listing, 0, len(committed))
	seen := make(map[id.ListingID]struct{}, len(committed))
	for _, l := range committed {
		if staged, ok := u.listings[l.ID]; ok {
			l = staged.Clone()
		}
		seen[l.ID] = struct{}{}
		out = append(out, l)
	}
	for listingID, l := range u.listings {
		if _, ok := seen[listingID]; !ok && l.OwnerID == ownerID {
			out = append(out, l.Clone())
		}
	}
	sortByRecency(out)
	return out, nil
}

func (u *unit) Append(ctx context.Context, v *models.Version) error {
	key := versionKey{v.ListingID, v.VersionNo}
	if _, ok := u.versions[key]; ok {
		return sentinel.ErrConflict
	}
	if _, err := u.base.FindByListingAndVersion(ctx, v.ListingID, v.VersionNo); err == nil {
		return sentinel.ErrConflict
	}
	u.versions[key] = cloneVersion(v)
	return nil
}

func (u *unit) FindByListingAndVersion(ctx context.Context, listingID id.ListingID, versionNo int) (*models.Version, error) {
	if v, ok := u.versions[versionKey{listingID, versionNo}]; ok {
		return cloneVersion(v), nil
	}
	return u.base.FindByListingAndVersion(ctx, listingID, versionNo)
}
