package service

import (
	"context"
	"time"

	"hearth/internal/listing/events"
	"hearth/internal/listing/models"
	id "hearth/pkg/domain"
	"hearth/pkg/requestcontext"
)

// CreateDraft creates an empty draft owned by p.
func (s *Service) CreateDraft(ctx context.Context, p *models.Principal) (_ *models.Listing, err error) {
	ctx, span := s.startSpan(ctx, opCreate, id.ListingID{})
	start := time.Now()
	defer func() { err = s.finish(ctx, span, opCreate, start, err) }()

	if err := requirePrincipal(p); err != nil {
		return nil, err
	}

	l, err := models.NewDraft(id.NewListingID(), p.UserID, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}
	err = s.runUnit(ctx, opCreate, func(ctx context.Context, stores Stores) error {
		return stores.Listings.Create(ctx, l)
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "listing draft created",
		"listing_id", l.ID,
		"owner_id", l.OwnerID,
		"request_id", requestcontext.RequestID(ctx),
	)
	if s.emitCreated {
		s.emit(ctx, l.ID, events.Created(l))
	}
	return l, nil
}

// UpdateDraft stores content as a new snapshot. Allowed on drafts and on
// published listings with an open edit; emits nothing.
func (s *Service) UpdateDraft(ctx context.Context, p *models.Principal, listingID id.ListingID, content models.Content) (_ *models.Listing, err error) {
	ctx, span := s.startSpan(ctx, opUpdate, listingID)
	start := time.Now()
	defer func() { err = s.finish(ctx, span, opUpdate, start, err) }()

	if err := requirePrincipal(p); err != nil {
		return nil, err
	}
	content = content.Clone()
	content.Normalize()
	if err := content.Validate(); err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	var updated *models.Listing
	err = s.runUnit(ctx, opUpdate, func(ctx context.Context, stores Stores) error {
		l, err := loadManaged(ctx, stores.Listings, p, listingID)
		if err != nil {
			return err
		}
		if err := l.CanUpdateContent(); err != nil {
			return err
		}

		expected := l.Revision
		versionNo := l.ApplyContentUpdate(now)
		if err := stores.Versions.Append(ctx, models.NewVersion(l.ID, versionNo, content, now)); err != nil {
			return err
		}
		if err := stores.Listings.Update(ctx, l, expected); err != nil {
			return err
		}
		updated = l
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "listing content updated",
		"listing_id", updated.ID,
		"version", updated.CurrentVersion,
		"request_id", requestcontext.RequestID(ctx),
	)
	return updated, nil
}

// Publish makes a draft public at its current version.
func (s *Service) Publish(ctx context.Context, p *models.Principal, listingID id.ListingID) (_ *models.Listing, err error) {
	ctx, span := s.startSpan(ctx, opPublish, listingID)
	start := time.Now()
	defer func() { err = s.finish(ctx, span, opPublish, start, err) }()

	if err := requirePrincipal(p); err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	var (
		published *models.Listing
		content   models.Content
	)
	err = s.runUnit(ctx, opPublish, func(ctx context.Context, stores Stores) error {
		l, err := loadManaged(ctx, stores.Listings, p, listingID)
		if err != nil {
			return err
		}
		if err := l.CanPublish(); err != nil {
			return err
		}
		v, err := loadSnapshot(ctx, stores.Versions, l, l.CurrentVersion)
		if err != nil {
			return err
		}
		if err := models.ValidateForPublish(v.Content); err != nil {
			return err
		}

		expected := l.Revision
		l.ApplyPublish(now)
		if err := stores.Listings.Update(ctx, l, expected); err != nil {
			return err
		}
		published, content = l, v.Content
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "listing published",
		"listing_id", published.ID,
		"published_version", *published.PublishedVersion,
		"request_id", requestcontext.RequestID(ctx),
	)
	s.emit(ctx, published.ID, events.Published(published, content))
	return published, nil
}

// StartEdit opens a working copy of the published snapshot. It is a no-op
// when an edit is already open.
func (s *Service) StartEdit(ctx context.Context, p *models.Principal, listingID id.ListingID) (_ *models.Listing, err error) {
	ctx, span := s.startSpan(ctx, opStartEdit, listingID)
	start := time.Now()
	defer func() { err = s.finish(ctx, span, opStartEdit, start, err) }()

	if err := requirePrincipal(p); err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	var (
		result  *models.Listing
		created bool
	)
	err = s.runUnit(ctx, opStartEdit, func(ctx context.Context, stores Stores) error {
		created = false
		l, err := loadManaged(ctx, stores.Listings, p, listingID)
		if err != nil {
			return err
		}
		if err := l.CanStartEdit(); err != nil {
			return err
		}
		if l.HasActiveEdit() {
			result = l
			return nil
		}
		v, err := loadSnapshot(ctx, stores.Versions, l, *l.PublishedVersion)
		if err != nil {
			return err
		}

		expected := l.Revision
		versionNo := l.ApplyStartEdit(now)
		if err := stores.Versions.Append(ctx, models.NewVersion(l.ID, versionNo, v.Content, now)); err != nil {
			return err
		}
		if err := stores.Listings.Update(ctx, l, expected); err != nil {
			return err
		}
		result, created = l, true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if created {
		s.logger.InfoContext(ctx, "listing edit started",
			"listing_id", result.ID,
			"working_version", result.CurrentVersion,
			"request_id", requestcontext.RequestID(ctx),
		)
	}
	return result, nil
}

// Republish promotes the open edit to the published snapshot.
func (s *Service) Republish(ctx context.Context, p *models.Principal, listingID id.ListingID) (_ *models.Listing, err error) {
	ctx, span := s.startSpan(ctx, opRepublish, listingID)
	start := time.Now()
	defer func() { err = s.finish(ctx, span, opRepublish, start, err) }()

	if err := requirePrincipal(p); err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	var (
		republished *models.Listing
		content     models.Content
	)
	err = s.runUnit(ctx, opRepublish, func(ctx context.Context, stores Stores) error {
		l, err := loadManaged(ctx, stores.Listings, p, listingID)
		if err != nil {
			return err
		}
		if err := l.CanRepublish(); err != nil {
			return err
		}
		v, err := loadSnapshot(ctx, stores.Versions, l, l.CurrentVersion)
		if err != nil {
			return err
		}
		if err := models.ValidateForPublish(v.Content); err != nil {
			return err
		}

		expected := l.Revision
		l.ApplyRepublish(now)
		if err := stores.Listings.Update(ctx, l, expected); err != nil {
			return err
		}
		republished, content = l, v.Content
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "listing republished",
		"listing_id", republished.ID,
		"published_version", *republished.PublishedVersion,
		"request_id", requestcontext.RequestID(ctx),
	)
	s.emit(ctx, republished.ID, events.Updated(republished, content))
	return republished, nil
}

// Archive retires a published listing. Archived is terminal.
func (s *Service) Archive(ctx context.Context, p *models.Principal, listingID id.ListingID) (_ *models.Listing, err error) {
	ctx, span := s.startSpan(ctx, opArchive, listingID)
	start := time.Now()
	defer func() { err = s.finish(ctx, span, opArchive, start, err) }()

	if err := requirePrincipal(p); err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	var archived *models.Listing
	err = s.runUnit(ctx, opArchive, func(ctx context.Context, stores Stores) error {
		l, err := loadManaged(ctx, stores.Listings, p, listingID)
		if err != nil {
			return err
		}
		if err := l.CanArchive(); err != nil {
			return err
		}

		expected := l.Revision
		l.ApplyArchive(now)
		if err := stores.Listings.Update(ctx, l, expected); err != nil {
			return err
		}
		archived = l
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "listing archived",
		"listing_id", archived.ID,
		"request_id", requestcontext.RequestID(ctx),
	)
	s.emit(ctx, archived.ID, events.Archived(archived))
	return archived, nil
}
