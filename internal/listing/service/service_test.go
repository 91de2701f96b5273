package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"hearth/internal/listing/events"
	"hearth/internal/listing/models"
	"hearth/internal/listing/service"
	"hearth/internal/listing/store/memory"
	id "hearth/pkg/domain"
	dErrors "hearth/pkg/domain-errors"
	"hearth/pkg/requestcontext"
)

type ServiceSuite struct {
	suite.Suite
	ctx     context.Context
	store   *memory.InMemory
	sink    *events.MemorySink
	service *service.Service
	owner   *models.Principal
	admin   *models.Principal
	other   *models.Principal
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	now := time.Date(2026, 4, 2, 8, 30, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), now)
	s.store = memory.NewInMemory()
	s.sink = events.NewMemorySink(nil)
	s.service = service.New(s.store, s.store, s.store,
		service.WithEventSink(s.sink),
		service.WithCreatedEvents(true),
	)
	s.owner = &models.Principal{UserID: id.UserID(uuid.New()), Roles: []string{"USER"}}
	s.admin = &models.Principal{UserID: id.UserID(uuid.New()), Roles: []string{"ADMIN"}}
	s.other = &models.Principal{UserID: id.UserID(uuid.New())}
}

func completeContent() models.Content {
	price := decimal.RequireFromString("1250.00")
	area := decimal.RequireFromString("54.5")
	rooms := 2
	return models.Content{
		Title:        "Sunny two-room flat",
		Description:  "Close to the park.",
		Price:        models.Price{Amount: &price, CurrencyCode: "EUR"},
		Address:      &models.Address{Country: "Germany", City: "Berlin"},
		Area:         &area,
		Rooms:        &rooms,
		PropertyType: models.PropertyApartment,
		MediaRefs:    []string{"photo-1"},
	}
}

func (s *ServiceSuite) requireCode(err error, code dErrors.Code) {
	s.T().Helper()
	s.Require().Error(err)
	s.Equal(code, dErrors.CodeOf(err), "unexpected error: %v", err)
}

func (s *ServiceSuite) assertPointers(l *models.Listing) {
	s.T().Helper()
	s.GreaterOrEqual(l.CurrentVersion, models.InitialVersion)
	if l.PublishedVersion != nil {
		s.LessOrEqual(*l.PublishedVersion, l.CurrentVersion)
	}
}

func (s *ServiceSuite) createDraft() *models.Listing {
	l, err := s.service.CreateDraft(s.ctx, s.owner)
	s.Require().NoError(err)
	return l
}

func (s *ServiceSuite) publishedListing() *models.Listing {
	l := s.createDraft()
	_, err := s.service.UpdateDraft(s.ctx, s.owner, l.ID, completeContent())
	s.Require().NoError(err)
	l, err = s.service.Publish(s.ctx, s.owner, l.ID)
	s.Require().NoError(err)
	return l
}

func (s *ServiceSuite) TestCreateDraft() {
	s.Run("creates a draft at the initial version", func() {
		l := s.createDraft()
		s.Equal(models.StatusDraft, l.Status)
		s.Equal(models.InitialVersion, l.CurrentVersion)
		s.Nil(l.PublishedVersion)
		s.Equal(s.owner.UserID, l.OwnerID)
	})

	s.Run("emits ListingCreatedV1 when enabled", func() {
		l := s.createDraft()
		var found bool
		for _, r := range s.sink.OfType(events.TypeListingCreated) {
			if r.Key == l.ID.String() {
				found = true
				s.Equal(events.TopicListing, r.Topic)
			}
		}
		s.True(found)
	})

	s.Run("requires a principal", func() {
		_, err := s.service.CreateDraft(s.ctx, nil)
		s.requireCode(err, dErrors.CodeUnauthorized)
	})
}

func (s *ServiceSuite) TestUpdateDraft() {
	s.Run("each update appends a snapshot", func() {
		l := s.createDraft()
		updated, err := s.service.UpdateDraft(s.ctx, s.owner, l.ID, models.Content{Title: "First title"})
		s.Require().NoError(err)
		s.Equal(2, updated.CurrentVersion)

		updated, err = s.service.UpdateDraft(s.ctx, s.owner, l.ID, models.Content{Title: "Second title"})
		s.Require().NoError(err)
		s.Equal(3, updated.CurrentVersion)

		first, err := s.service.GetListingVersion(s.ctx, s.owner, l.ID, 2)
		s.Require().NoError(err)
		s.Equal("First title", first.Content.Title)
	})

	s.Run("draft updates emit nothing", func() {
		before := len(s.sink.Records())
		l := s.createDraft()
		_, err := s.service.UpdateDraft(s.ctx, s.owner, l.ID, models.Content{Title: "Quiet update"})
		s.Require().NoError(err)
		// only the created event
		s.Len(s.sink.Records(), before+1)
	})

	s.Run("rejects malformed content without creating a version", func() {
		l := s.createDraft()
		_, err := s.service.UpdateDraft(s.ctx, s.owner, l.ID, models.Content{Title: "abc"})
		s.requireCode(err, dErrors.CodeValidation)

		got, err := s.service.GetListing(s.ctx, s.owner, l.ID)
		s.Require().NoError(err)
		s.Equal(models.InitialVersion, got.Listing.CurrentVersion)
	})

	s.Run("published listing requires an open edit", func() {
		l := s.publishedListing()
		_, err := s.service.UpdateDraft(s.ctx, s.owner, l.ID, completeContent())
		s.requireCode(err, dErrors.CodeNotEditable)
	})

	s.Run("other users cannot edit", func() {
		l := s.createDraft()
		_, err := s.service.UpdateDraft(s.ctx, s.other, l.ID, completeContent())
		s.requireCode(err, dErrors.CodeNotFound)

		p := s.publishedListing()
		_, err = s.service.UpdateDraft(s.ctx, s.other, p.ID, completeContent())
		s.requireCode(err, dErrors.CodeForbidden)
	})

	s.Run("admins may edit any draft", func() {
		l := s.createDraft()
		_, err := s.service.UpdateDraft(s.ctx, s.admin, l.ID, completeContent())
		s.Require().NoError(err)
	})
}

func (s *ServiceSuite) TestPublish() {
	s.Run("empty draft is not publishable", func() {
		l := s.createDraft()
		_, err := s.service.Publish(s.ctx, s.owner, l.ID)
		s.requireCode(err, dErrors.CodeNotPublishable)
		de, ok := dErrors.From(err)
		s.Require().True(ok)
		s.Equal(models.FieldTitle, de.Field)
	})

	s.Run("complete draft publishes at the current version", func() {
		l := s.publishedListing()
		s.Equal(models.StatusPublished, l.Status)
		s.Require().NotNil(l.PublishedVersion)
		s.Equal(2, *l.PublishedVersion)
		s.Equal(2, l.CurrentVersion)

		recs := s.sink.OfType(events.TypeListingPublished)
		s.Require().NotEmpty(recs)
		payload, ok := recs[len(recs)-1].Envelope.Payload.(events.ListingPublishedV1)
		s.Require().True(ok)
		s.Equal(l.ID.String(), payload.ListingID)
		s.Equal(2, payload.Version)
		s.Equal("Sunny two-room flat", payload.Title)
		s.Equal([]string{"photo-1"}, payload.PhotoIDs)
	})

	s.Run("publishing twice is an invalid transition", func() {
		l := s.publishedListing()
		_, err := s.service.Publish(s.ctx, s.owner, l.ID)
		s.requireCode(err, dErrors.CodeInvalidStatusTransition)
	})

	s.Run("failed validation names the first missing field", func() {
		l := s.createDraft()
		content := completeContent()
		content.Address = nil
		_, err := s.service.UpdateDraft(s.ctx, s.owner, l.ID, content)
		s.Require().NoError(err)

		_, err = s.service.Publish(s.ctx, s.owner, l.ID)
		s.requireCode(err, dErrors.CodeNotPublishable)
		de, _ := dErrors.From(err)
		s.Equal(models.FieldAddress, de.Field)
	})
}

func (s *ServiceSuite) TestEditCycle() {
	s.Run("start edit copies the published snapshot", func() {
		l := s.publishedListing()
		edited, err := s.service.StartEdit(s.ctx, s.owner, l.ID)
		s.Require().NoError(err)
		s.Equal(3, edited.CurrentVersion)
		s.Equal(2, *edited.PublishedVersion)
		s.True(edited.HasActiveEdit())

		working, err := s.service.GetListingVersion(s.ctx, s.owner, l.ID, 3)
		s.Require().NoError(err)
		s.Equal("Sunny two-room flat", working.Content.Title)
	})

	s.Run("start edit twice is a no-op", func() {
		l := s.publishedListing()
		first, err := s.service.StartEdit(s.ctx, s.owner, l.ID)
		s.Require().NoError(err)
		second, err := s.service.StartEdit(s.ctx, s.owner, l.ID)
		s.Require().NoError(err)
		s.Equal(first.CurrentVersion, second.CurrentVersion)
		s.Equal(first.Revision, second.Revision)
	})

	s.Run("start edit on a draft is rejected", func() {
		l := s.createDraft()
		_, err := s.service.StartEdit(s.ctx, s.owner, l.ID)
		s.requireCode(err, dErrors.CodeInvalidStatusTransition)
	})

	s.Run("republish without an open edit fails validation", func() {
		l := s.publishedListing()
		_, err := s.service.Republish(s.ctx, s.owner, l.ID)
		s.requireCode(err, dErrors.CodeValidation)
	})

	s.Run("republish on a draft is an invalid transition", func() {
		l := s.createDraft()
		_, err := s.service.Republish(s.ctx, s.owner, l.ID)
		s.requireCode(err, dErrors.CodeInvalidStatusTransition)
	})

	s.Run("edit then republish promotes the working copy", func() {
		l := s.publishedListing()
		_, err := s.service.StartEdit(s.ctx, s.owner, l.ID)
		s.Require().NoError(err)

		content := completeContent()
		content.Title = "Renovated two-room flat"
		edited, err := s.service.UpdateDraft(s.ctx, s.owner, l.ID, content)
		s.Require().NoError(err)
		s.Equal(4, edited.CurrentVersion)

		// readers keep seeing the published snapshot during the edit
		public, err := s.service.GetListing(s.ctx, s.other, l.ID)
		s.Require().NoError(err)
		s.Equal(2, public.VersionNo)
		s.Equal("Sunny two-room flat", public.Content.Title)

		mine, err := s.service.GetListing(s.ctx, s.owner, l.ID)
		s.Require().NoError(err)
		s.Equal(4, mine.VersionNo)

		republished, err := s.service.Republish(s.ctx, s.owner, l.ID)
		s.Require().NoError(err)
		s.Equal(4, *republished.PublishedVersion)
		s.False(republished.HasActiveEdit())

		public, err = s.service.GetListing(s.ctx, s.other, l.ID)
		s.Require().NoError(err)
		s.Equal("Renovated two-room flat", public.Content.Title)

		recs := s.sink.OfType(events.TypeListingUpdated)
		s.Require().NotEmpty(recs)
		payload := recs[len(recs)-1].Envelope.Payload.(events.ListingUpdatedV1)
		s.Equal(4, payload.Version)
	})

	s.Run("republish revalidates the working copy", func() {
		l := s.publishedListing()
		_, err := s.service.StartEdit(s.ctx, s.owner, l.ID)
		s.Require().NoError(err)
		content := completeContent()
		content.PropertyType = ""
		_, err = s.service.UpdateDraft(s.ctx, s.owner, l.ID, content)
		s.Require().NoError(err)

		_, err = s.service.Republish(s.ctx, s.owner, l.ID)
		s.requireCode(err, dErrors.CodeNotPublishable)

		got, err := s.service.GetListing(s.ctx, s.other, l.ID)
		s.Require().NoError(err)
		s.Equal(2, got.VersionNo)
	})
}

func (s *ServiceSuite) TestArchive() {
	s.Run("draft cannot be archived", func() {
		l := s.createDraft()
		_, err := s.service.Archive(s.ctx, s.owner, l.ID)
		s.requireCode(err, dErrors.CodeInvalidStatusTransition)
	})

	s.Run("archived is terminal", func() {
		l := s.publishedListing()
		archived, err := s.service.Archive(s.ctx, s.owner, l.ID)
		s.Require().NoError(err)
		s.Equal(models.StatusArchived, archived.Status)

		_, err = s.service.Publish(s.ctx, s.owner, l.ID)
		s.requireCode(err, dErrors.CodeInvalidStatusTransition)
		_, err = s.service.StartEdit(s.ctx, s.owner, l.ID)
		s.requireCode(err, dErrors.CodeNotEditable)
		_, err = s.service.UpdateDraft(s.ctx, s.owner, l.ID, completeContent())
		s.requireCode(err, dErrors.CodeNotEditable)
		_, err = s.service.Archive(s.ctx, s.owner, l.ID)
		s.requireCode(err, dErrors.CodeInvalidStatusTransition)

		recs := s.sink.OfType(events.TypeListingArchived)
		s.Require().NotEmpty(recs)
		payload := recs[len(recs)-1].Envelope.Payload.(events.ListingArchivedV1)
		s.Equal(2, payload.Version)
	})

	s.Run("archived listings are hidden from the public", func() {
		l := s.publishedListing()
		_, err := s.service.Archive(s.ctx, s.admin, l.ID)
		s.Require().NoError(err)

		_, err = s.service.GetListing(s.ctx, nil, l.ID)
		s.requireCode(err, dErrors.CodeNotFound)
		view, err := s.service.GetListing(s.ctx, s.owner, l.ID)
		s.Require().NoError(err)
		s.Equal(models.StatusArchived, view.Listing.Status)
	})
}

func (s *ServiceSuite) TestReads() {
	s.Run("draft is hidden from non-owners", func() {
		l := s.createDraft()
		_, err := s.service.UpdateDraft(s.ctx, s.owner, l.ID, completeContent())
		s.Require().NoError(err)

		_, err = s.service.GetListing(s.ctx, s.other, l.ID)
		s.requireCode(err, dErrors.CodeNotFound)
		_, err = s.service.GetListing(s.ctx, nil, l.ID)
		s.requireCode(err, dErrors.CodeNotFound)

		view, err := s.service.GetListing(s.ctx, s.owner, l.ID)
		s.Require().NoError(err)
		s.Equal(2, view.VersionNo)
		s.Equal("Sunny two-room flat", view.Content.Title)
	})

	s.Run("untouched draft reads as empty content", func() {
		l := s.createDraft()
		view, err := s.service.GetListing(s.ctx, s.owner, l.ID)
		s.Require().NoError(err)
		s.Equal(models.InitialVersion, view.VersionNo)
		s.Empty(view.Content.Title)
		s.NotNil(view.Content.MediaRefs)
	})

	s.Run("unknown listing is not found", func() {
		_, err := s.service.GetListing(s.ctx, s.owner, id.NewListingID())
		s.requireCode(err, dErrors.CodeNotFound)
	})

	s.Run("public readers only see the published version", func() {
		l := s.publishedListing()
		_, err := s.service.StartEdit(s.ctx, s.owner, l.ID)
		s.Require().NoError(err)

		_, err = s.service.GetListingVersion(s.ctx, s.other, l.ID, 3)
		s.requireCode(err, dErrors.CodeNotFound)
		_, err = s.service.GetListingVersion(s.ctx, s.other, l.ID, 1)
		s.requireCode(err, dErrors.CodeNotFound)
		view, err := s.service.GetListingVersion(s.ctx, s.other, l.ID, 2)
		s.Require().NoError(err)
		s.Equal(2, view.VersionNo)

		_, err = s.service.GetListingVersion(s.ctx, s.owner, l.ID, 9)
		s.requireCode(err, dErrors.CodeNotFound)
	})

	s.Run("resolve version follows the reader", func() {
		l := s.publishedListing()
		_, err := s.service.StartEdit(s.ctx, s.owner, l.ID)
		s.Require().NoError(err)

		n, err := s.service.ResolveVersionForRead(s.ctx, s.owner, l.ID)
		s.Require().NoError(err)
		s.Equal(3, n)
		n, err = s.service.ResolveVersionForRead(s.ctx, s.admin, l.ID)
		s.Require().NoError(err)
		s.Equal(3, n)
		n, err = s.service.ResolveVersionForRead(s.ctx, nil, l.ID)
		s.Require().NoError(err)
		s.Equal(2, n)
	})

	s.Run("list mine returns only the caller's listings", func() {
		mine := []*models.Listing{s.createDraft(), s.publishedListing()}
		_, err := s.service.CreateDraft(s.ctx, s.other)
		s.Require().NoError(err)

		got, err := s.service.ListMine(s.ctx, s.owner)
		s.Require().NoError(err)
		ids := make(map[id.ListingID]bool, len(got))
		for _, l := range got {
			s.Equal(s.owner.UserID, l.OwnerID)
			ids[l.ID] = true
		}
		for _, l := range mine {
			s.True(ids[l.ID])
		}

		_, err = s.service.ListMine(s.ctx, nil)
		s.requireCode(err, dErrors.CodeUnauthorized)
	})
}

func (s *ServiceSuite) TestPointerInvariantAcrossLifecycle() {
	l := s.createDraft()
	steps := []func() (*models.Listing, error){
		func() (*models.Listing, error) { return s.service.UpdateDraft(s.ctx, s.owner, l.ID, completeContent()) },
		func() (*models.Listing, error) { return s.service.Publish(s.ctx, s.owner, l.ID) },
		func() (*models.Listing, error) { return s.service.StartEdit(s.ctx, s.owner, l.ID) },
		func() (*models.Listing, error) { return s.service.UpdateDraft(s.ctx, s.owner, l.ID, completeContent()) },
		func() (*models.Listing, error) { return s.service.Republish(s.ctx, s.owner, l.ID) },
		func() (*models.Listing, error) { return s.service.Archive(s.ctx, s.owner, l.ID) },
	}
	for _, step := range steps {
		got, err := step()
		s.Require().NoError(err)
		s.assertPointers(got)
	}
}
