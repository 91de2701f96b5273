package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"hearth/internal/listing/handler/mocks"
	"hearth/internal/listing/models"
	id "hearth/pkg/domain"
	dErrors "hearth/pkg/domain-errors"
	authmw "hearth/pkg/platform/middleware/auth"
	"hearth/pkg/testutil"
)

type tokenValidator map[string]*authmw.JWTClaims

func (v tokenValidator) ValidateToken(token string) (*authmw.JWTClaims, error) {
	if c, ok := v[token]; ok {
		return c, nil
	}
	return nil, errors.New("invalid token")
}

type ListingHandlerSuite struct {
	suite.Suite
	ownerID   id.UserID
	listingID id.ListingID
	service   *mocks.MockService
	router    chi.Router
}

func TestListingHandlerSuite(t *testing.T) {
	suite.Run(t, new(ListingHandlerSuite))
}

func (s *ListingHandlerSuite) SetupTest() {
	ctrl := gomock.NewController(s.T())
	s.service = mocks.NewMockService(ctrl)
	s.ownerID = id.UserID(uuid.New())
	s.listingID = id.NewListingID()

	validator := tokenValidator{
		"owner": {UserID: s.ownerID.String(), Roles: []string{"USER"}},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.router = chi.NewRouter()
	New(s.service, validator, logger).Register(s.router)
}

func (s *ListingHandlerSuite) do(req *http.Request, token string) *httptest.ResponseRecorder {
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return testutil.DoRequest(s.router, req)
}

func (s *ListingHandlerSuite) path(suffix string) string {
	return "/listings/" + s.listingID.String() + suffix
}

func (s *ListingHandlerSuite) listing(status models.Status, current int, published *int) *models.Listing {
	return &models.Listing{
		ID:               s.listingID,
		OwnerID:          s.ownerID,
		Status:           status,
		CurrentVersion:   current,
		PublishedVersion: published,
		Revision:         1,
		UpdatedAt:        time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func intPtr(v int) *int { return &v }

func (s *ListingHandlerSuite) expectOwner(p *models.Principal) {
	s.Require().NotNil(p)
	s.Equal(s.ownerID, p.UserID)
	s.Equal([]string{"USER"}, p.Roles)
}

func (s *ListingHandlerSuite) TestCreate() {
	s.Run("returns the new id", func() {
		s.service.EXPECT().CreateDraft(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, p *models.Principal) (*models.Listing, error) {
				s.expectOwner(p)
				return s.listing(models.StatusDraft, 1, nil), nil
			})

		rr := s.do(testutil.NewRequest(s.T(), http.MethodPost, "/listings"), "owner")

		testutil.AssertStatus(s.T(), rr, http.StatusCreated)
		testutil.AssertJSONContains(s.T(), rr, "id", s.listingID.String())
	})

	s.Run("requires authentication", func() {
		rr := s.do(testutil.NewRequest(s.T(), http.MethodPost, "/listings"), "")
		testutil.AssertStatusAndError(s.T(), rr, http.StatusUnauthorized, "unauthorized")
	})
}

func (s *ListingHandlerSuite) TestUpdate() {
	s.Run("converts the body into content", func() {
		s.service.EXPECT().UpdateDraft(gomock.Any(), gomock.Any(), s.listingID, gomock.Any()).
			DoAndReturn(func(_ context.Context, p *models.Principal, _ id.ListingID, c models.Content) (*models.Listing, error) {
				s.expectOwner(p)
				s.Equal("Sunny flat near the park", c.Title)
				s.Equal("1250.5", c.Price.Amount.String())
				s.Equal("EUR", c.Price.CurrencyCode)
				s.Equal(models.PropertyApartment, c.PropertyType)
				s.Require().NotNil(c.Address)
				s.Equal("Berlin", c.Address.City)
				s.Equal([]string{}, c.MediaRefs)
				return s.listing(models.StatusDraft, 2, nil), nil
			})

		body := `{"title":"  Sunny flat near the park ","priceAmount":1250.50,"currencyCode":"EUR",` +
			`"address":{"country":"Germany","city":"Berlin"},"propertyType":"apartment"}`
		rr := s.do(testutil.NewRequestWithBody(s.T(), http.MethodPut, s.path(""), body), "owner")

		testutil.AssertStatusOK(s.T(), rr)
		resp := testutil.UnmarshalResponse[listingActionResponse](s.T(), rr)
		s.Equal("DRAFT", resp.Status)
		s.Equal(2, resp.Version)
	})

	s.Run("published listing reports the public version", func() {
		s.service.EXPECT().UpdateDraft(gomock.Any(), gomock.Any(), s.listingID, gomock.Any()).
			Return(s.listing(models.StatusPublished, 4, intPtr(3)), nil)

		rr := s.do(testutil.NewRequestWithBody(s.T(), http.MethodPut, s.path(""), `{"title":"Updated title"}`), "owner")

		resp := testutil.UnmarshalResponse[listingActionResponse](s.T(), rr)
		s.Equal(3, resp.Version)
	})

	s.Run("unknown property type is rejected before the service", func() {
		rr := s.do(testutil.NewRequestWithBody(s.T(), http.MethodPut, s.path(""), `{"propertyType":"castle"}`), "owner")
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "invalid_property_type")
	})

	s.Run("lower case currency is rejected", func() {
		rr := s.do(testutil.NewRequestWithBody(s.T(), http.MethodPut, s.path(""), `{"currencyCode":"eur"}`), "owner")
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "invalid_currency_code")
	})

	s.Run("malformed body", func() {
		rr := s.do(testutil.NewRequestWithBody(s.T(), http.MethodPut, s.path(""), `{"title":`), "owner")
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "bad_request")
	})

	s.Run("malformed listing id", func() {
		rr := s.do(testutil.NewRequestWithBody(s.T(), http.MethodPut, "/listings/not-a-uuid", `{}`), "owner")
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "invalid_input")
	})
}

func (s *ListingHandlerSuite) TestTransitions() {
	s.Run("publish", func() {
		s.service.EXPECT().Publish(gomock.Any(), gomock.Any(), s.listingID).
			Return(s.listing(models.StatusPublished, 2, intPtr(2)), nil)

		rr := s.do(testutil.NewRequest(s.T(), http.MethodPost, s.path("/publish")), "owner")

		testutil.AssertStatusOK(s.T(), rr)
		resp := testutil.UnmarshalResponse[listingActionResponse](s.T(), rr)
		s.Equal(listingActionResponse{ID: s.listingID.String(), Status: "PUBLISHED", Version: 2}, *resp)
	})

	s.Run("publish with missing field", func() {
		s.service.EXPECT().Publish(gomock.Any(), gomock.Any(), s.listingID).
			Return(nil, dErrors.NewField(dErrors.CodeNotPublishable, "title", "title is required"))

		rr := s.do(testutil.NewRequest(s.T(), http.MethodPost, s.path("/publish")), "owner")

		testutil.AssertStatus(s.T(), rr, http.StatusConflict)
		errResp := testutil.UnmarshalErrorResponse(s.T(), rr)
		s.Equal("not_publishable", errResp["error"])
		s.Equal("title", errResp["field"])
	})

	s.Run("start edit reports the working version", func() {
		s.service.EXPECT().StartEdit(gomock.Any(), gomock.Any(), s.listingID).
			Return(s.listing(models.StatusPublished, 3, intPtr(2)), nil)

		rr := s.do(testutil.NewRequest(s.T(), http.MethodPost, s.path("/edit")), "owner")

		resp := testutil.UnmarshalResponse[listingActionResponse](s.T(), rr)
		s.Equal(3, resp.Version)
	})

	s.Run("republish reports the new public version", func() {
		s.service.EXPECT().Republish(gomock.Any(), gomock.Any(), s.listingID).
			Return(s.listing(models.StatusPublished, 3, intPtr(3)), nil)

		rr := s.do(testutil.NewRequest(s.T(), http.MethodPost, s.path("/republish")), "owner")

		resp := testutil.UnmarshalResponse[listingActionResponse](s.T(), rr)
		s.Equal(3, resp.Version)
	})

	s.Run("archive by a non owner", func() {
		s.service.EXPECT().Archive(gomock.Any(), gomock.Any(), s.listingID).
			Return(nil, dErrors.New(dErrors.CodeForbidden, "not the listing owner"))

		rr := s.do(testutil.NewRequest(s.T(), http.MethodPost, s.path("/archive")), "owner")

		testutil.AssertStatusAndError(s.T(), rr, http.StatusForbidden, "forbidden")
	})

	s.Run("internal errors hide their description", func() {
		s.service.EXPECT().Archive(gomock.Any(), gomock.Any(), s.listingID).
			Return(nil, dErrors.Wrap(errors.New("connection reset"), dErrors.CodeInternal, "store failure"))

		rr := s.do(testutil.NewRequest(s.T(), http.MethodPost, s.path("/archive")), "owner")

		testutil.AssertStatus(s.T(), rr, http.StatusInternalServerError)
		s.NotContains(rr.Body.String(), "store failure")
	})
}

func (s *ListingHandlerSuite) TestReads() {
	s.Run("anonymous reader gets a nil principal", func() {
		price := decimal.RequireFromString("990.00")
		s.service.EXPECT().GetListing(gomock.Any(), gomock.Nil(), s.listingID).
			Return(&models.ListingView{
				Listing:   s.listing(models.StatusPublished, 3, intPtr(2)),
				VersionNo: 2,
				Content: models.Content{
					Title:   "Published title",
					Price:   models.Price{Amount: &price, CurrencyCode: "PLN"},
					Address: &models.Address{Country: "Poland", City: "Krakow"},
				},
			}, nil)

		rr := s.do(testutil.NewRequest(s.T(), http.MethodGet, s.path("")), "")

		testutil.AssertStatusOK(s.T(), rr)
		resp := testutil.UnmarshalResponse[map[string]any](s.T(), rr)
		s.Equal(float64(2), (*resp)["version"])
		s.Equal("Published title", (*resp)["title"])
		s.Equal("990", (*resp)["priceAmount"])
		s.Equal([]any{}, (*resp)["mediaRefs"])
		s.Equal(s.ownerID.String(), (*resp)["ownerId"])
	})

	s.Run("invalid token on a public read is treated as anonymous", func() {
		s.service.EXPECT().GetListing(gomock.Any(), gomock.Nil(), s.listingID).
			Return(nil, dErrors.New(dErrors.CodeNotFound, "listing not found"))

		rr := s.do(testutil.NewRequest(s.T(), http.MethodGet, s.path("")), "expired")

		testutil.AssertStatusAndError(s.T(), rr, http.StatusNotFound, "not_found")
	})

	s.Run("owner reads a specific version", func() {
		s.service.EXPECT().GetListingVersion(gomock.Any(), gomock.Any(), s.listingID, 1).
			DoAndReturn(func(_ context.Context, p *models.Principal, _ id.ListingID, _ int) (*models.ListingView, error) {
				s.expectOwner(p)
				return &models.ListingView{Listing: s.listing(models.StatusDraft, 1, nil), VersionNo: 1, Content: models.Content{MediaRefs: []string{}}}, nil
			})

		rr := s.do(testutil.NewRequest(s.T(), http.MethodGet, s.path("/versions/1")), "owner")

		testutil.AssertStatusOK(s.T(), rr)
		testutil.AssertJSONContains(s.T(), rr, "status", "DRAFT")
	})

	s.Run("non numeric version", func() {
		rr := s.do(testutil.NewRequest(s.T(), http.MethodGet, s.path("/versions/latest")), "owner")
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "invalid_input")
	})

	s.Run("version zero", func() {
		rr := s.do(testutil.NewRequest(s.T(), http.MethodGet, s.path("/versions/0")), "")
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "invalid_input")
	})

	s.Run("missing snapshot is an internal anomaly", func() {
		s.service.EXPECT().GetListing(gomock.Any(), gomock.Any(), s.listingID).
			Return(nil, dErrors.New(dErrors.CodeContentNotFound, "listing content not found"))

		rr := s.do(testutil.NewRequest(s.T(), http.MethodGet, s.path("")), "owner")

		testutil.AssertStatus(s.T(), rr, http.StatusInternalServerError)
	})
}

func (s *ListingHandlerSuite) TestListMine() {
	s.Run("summaries in service order", func() {
		first := s.listing(models.StatusPublished, 3, intPtr(2))
		second := s.listing(models.StatusDraft, 1, nil)
		second.ID = id.NewListingID()
		s.service.EXPECT().ListMine(gomock.Any(), gomock.Any()).Return([]*models.Listing{first, second}, nil)

		rr := s.do(testutil.NewRequest(s.T(), http.MethodGet, "/listings/mine"), "owner")

		testutil.AssertStatusOK(s.T(), rr)
		resp := testutil.UnmarshalResponse[[]listingSummaryResponse](s.T(), rr)
		s.Require().Len(*resp, 2)
		s.Equal(first.ID.String(), (*resp)[0].ID)
		s.Equal(3, (*resp)[0].Version)
		s.Equal("DRAFT", (*resp)[1].Status)
	})

	s.Run("empty list is an array", func() {
		s.service.EXPECT().ListMine(gomock.Any(), gomock.Any()).Return(nil, nil)

		rr := s.do(testutil.NewRequest(s.T(), http.MethodGet, "/listings/mine"), "owner")

		testutil.AssertStatusOK(s.T(), rr)
		s.JSONEq(`[]`, rr.Body.String())
	})

	s.Run("requires authentication", func() {
		rr := s.do(testutil.NewRequest(s.T(), http.MethodGet, "/listings/mine"), "")
		testutil.AssertStatus(s.T(), rr, http.StatusUnauthorized)
	})

	s.Run("admin roles reach the service", func() {
		s.service.EXPECT().ListMine(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, p *models.Principal) ([]*models.Listing, error) {
				s.Require().NotNil(p)
				s.True(p.IsAdmin())
				return []*models.Listing{}, nil
			})
		h := New(s.service, tokenValidator{}, slog.New(slog.NewTextHandler(io.Discard, nil)))
		req := testutil.WithAuth(testutil.NewRequest(s.T(), http.MethodGet, "/listings/mine"), s.ownerID.String(), "ADMIN")

		rr := httptest.NewRecorder()
		h.handleListMine(rr, req)

		testutil.AssertStatusOK(s.T(), rr)
	})
}

func TestWriteMiddlewareOnlyWrapsMutations(t *testing.T) {
	ctrl := gomock.NewController(t)
	service := mocks.NewMockService(ctrl)
	ownerID := id.UserID(uuid.New())
	validator := tokenValidator{"owner": {UserID: ownerID.String()}}
	blocked := func(http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
		})
	}

	r := chi.NewRouter()
	New(service, validator, slog.New(slog.NewTextHandler(io.Discard, nil)), WithWriteMiddleware(blocked)).Register(r)

	service.EXPECT().ListMine(gomock.Any(), gomock.Any()).Return([]*models.Listing{}, nil)

	write := httptest.NewRequest(http.MethodPost, "/listings", nil)
	write.Header.Set("Authorization", "Bearer owner")
	testutil.AssertStatus(t, testutil.DoRequest(r, write), http.StatusTooManyRequests)

	read := httptest.NewRequest(http.MethodGet, "/listings/mine", nil)
	read.Header.Set("Authorization", "Bearer owner")
	testutil.AssertStatusOK(t, testutil.DoRequest(r, read))
}
