// Package memory implements the listing stores in process. Units of work stage
// their writes and apply them atomically at commit, after re-checking every
// revision they depend on.
package memory

import (
	"context"
	"slices"
	"strings"
	"sync"

	"hearth/internal/listing/models"
	id "hearth/pkg/domain"
	"hearth/pkg/platform/sentinel"
)

type versionKey struct {
	listingID id.ListingID
	versionNo int
}

// InMemory holds listings and their snapshots. Values are cloned on the way in
// and out so callers never share memory with the store.
type InMemory struct {
	mu       sync.RWMutex
	listings map[id.ListingID]*models.Listing
	versions map[versionKey]*models.Version
}

func NewInMemory() *InMemory {
	return &InMemory{
		listings: make(map[id.ListingID]*models.Listing),
		versions: make(map[versionKey]*models.Version),
	}
}

func (s *InMemory) FindByID(_ context.Context, listingID id.ListingID) (*models.Listing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.listings[listingID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return l.Clone(), nil
}

func (s *InMemory) Create(_ context.Context, l *models.Listing) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.listings[l.ID]; ok {
		return sentinel.ErrConflict
	}
	s.listings[l.ID] = l.Clone()
	return nil
}

// Update stores l if the stored revision still equals expectedRevision, and
// advances l.Revision.
func (s *InMemory) Update(_ context.Context, l *models.Listing, expectedRevision int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.listings[l.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if current.Revision != expectedRevision {
		return sentinel.ErrConflict
	}
	l.Revision = expectedRevision + 1
	s.listings[l.ID] = l.Clone()
	return nil
}

func (s *InMemory) ListByOwner(_ context.Context, ownerID id.UserID) ([]*models.Listing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Listing, 0)
	for _, l := range s.listings {
		if l.OwnerID == ownerID {
			out = append(out, l.Clone())
		}
	}
	sortByRecency(out)
	return out, nil
}

func (s *InMemory) Append(_ context.Context, v *models.Version) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := versionKey{v.ListingID, v.VersionNo}
	if _, ok := s.versions[key]; ok {
		return sentinel.ErrConflict
	}
	s.versions[key] = cloneVersion(v)
	return nil
}

func (s *InMemory) FindByListingAndVersion(_ context.Context, listingID id.ListingID, versionNo int) (*models.Version, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.versions[versionKey{listingID, versionNo}]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return cloneVersion(v), nil
}

func cloneVersion(v *models.Version) *models.Version {
	out := *v
	out.Content = v.Content.Clone()
	return &out
}

// sortByRecency orders by UpdatedAt descending, ties broken by id for a
// stable listing.
func sortByRecency(ls []*models.Listing) {
	slices.SortFunc(ls, func(a, b *models.Listing) int {
		if c := b.UpdatedAt.Compare(a.UpdatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID.String(), b.ID.String())
	})
}
