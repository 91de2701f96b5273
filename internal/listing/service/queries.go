package service

import (
	"context"
	"time"

	"hearth/internal/listing/models"
	id "hearth/pkg/domain"
	dErrors "hearth/pkg/domain-errors"
)

// GetListing returns the listing with the snapshot resolved for p. p may be
// nil for anonymous readers.
func (s *Service) GetListing(ctx context.Context, p *models.Principal, listingID id.ListingID) (_ *models.ListingView, err error) {
	ctx, span := s.startSpan(ctx, opGet, listingID)
	start := time.Now()
	defer func() { err = s.finish(ctx, span, opGet, start, err) }()

	l, err := loadVisible(ctx, s.listings, p, listingID)
	if err != nil {
		return nil, err
	}
	versionNo := l.ResolveVersionForRead(p)
	v, err := loadSnapshot(ctx, s.versions, l, versionNo)
	if err != nil {
		return nil, err
	}
	return &models.ListingView{Listing: l, VersionNo: versionNo, Content: v.Content}, nil
}

// GetListingVersion returns one snapshot. Managers may read any version that
// exists; everyone else only the published one of a published listing.
func (s *Service) GetListingVersion(ctx context.Context, p *models.Principal, listingID id.ListingID, versionNo int) (_ *models.ListingView, err error) {
	ctx, span := s.startSpan(ctx, opGetVersion, listingID)
	start := time.Now()
	defer func() { err = s.finish(ctx, span, opGetVersion, start, err) }()

	l, err := loadVisible(ctx, s.listings, p, listingID)
	if err != nil {
		return nil, err
	}
	if !l.CanReadVersion(p, versionNo) {
		return nil, dErrors.New(dErrors.CodeNotFound, "listing version not found")
	}
	v, err := loadSnapshot(ctx, s.versions, l, versionNo)
	if err != nil {
		return nil, err
	}
	return &models.ListingView{Listing: l, VersionNo: versionNo, Content: v.Content}, nil
}

// ResolveVersionForRead reports which version number p would be shown.
func (s *Service) ResolveVersionForRead(ctx context.Context, p *models.Principal, listingID id.ListingID) (_ int, err error) {
	ctx, span := s.startSpan(ctx, opResolve, listingID)
	start := time.Now()
	defer func() { err = s.finish(ctx, span, opResolve, start, err) }()

	l, err := loadVisible(ctx, s.listings, p, listingID)
	if err != nil {
		return 0, err
	}
	return l.ResolveVersionForRead(p), nil
}

// ListMine returns p's listings, most recently updated first.
func (s *Service) ListMine(ctx context.Context, p *models.Principal) (_ []*models.Listing, err error) {
	ctx, span := s.startSpan(ctx, opListMine, id.ListingID{})
	start := time.Now()
	defer func() { err = s.finish(ctx, span, opListMine, start, err) }()

	if err := requirePrincipal(p); err != nil {
		return nil, err
	}
	return s.listings.ListByOwner(ctx, p.UserID)
}
