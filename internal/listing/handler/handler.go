package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"hearth/internal/listing/models"
	id "hearth/pkg/domain"
	dErrors "hearth/pkg/domain-errors"
	"hearth/pkg/platform/httputil"
	authmw "hearth/pkg/platform/middleware/auth"
	"hearth/pkg/requestcontext"
)

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Service

// Service defines the listing lifecycle operations the HTTP layer drives.
type Service interface {
	CreateDraft(ctx context.Context, p *models.Principal) (*models.Listing, error)
	UpdateDraft(ctx context.Context, p *models.Principal, listingID id.ListingID, content models.Content) (*models.Listing, error)
	Publish(ctx context.Context, p *models.Principal, listingID id.ListingID) (*models.Listing, error)
	StartEdit(ctx context.Context, p *models.Principal, listingID id.ListingID) (*models.Listing, error)
	Republish(ctx context.Context, p *models.Principal, listingID id.ListingID) (*models.Listing, error)
	Archive(ctx context.Context, p *models.Principal, listingID id.ListingID) (*models.Listing, error)
	GetListing(ctx context.Context, p *models.Principal, listingID id.ListingID) (*models.ListingView, error)
	GetListingVersion(ctx context.Context, p *models.Principal, listingID id.ListingID, versionNo int) (*models.ListingView, error)
	ListMine(ctx context.Context, p *models.Principal) ([]*models.Listing, error)
}

// Handler serves the /listings endpoints.
type Handler struct {
	logger    *slog.Logger
	listings  Service
	validator authmw.JWTValidator
	writeMW   []func(http.Handler) http.Handler
}

// Option configures a Handler.
type Option func(*Handler)

// WithWriteMiddleware wraps every mutating route, after authentication.
func WithWriteMiddleware(mw ...func(http.Handler) http.Handler) Option {
	return func(h *Handler) {
		h.writeMW = append(h.writeMW, mw...)
	}
}

// New creates a listing Handler.
func New(listings Service, validator authmw.JWTValidator, logger *slog.Logger, opts ...Option) *Handler {
	h := &Handler{
		logger:    logger,
		listings:  listings,
		validator: validator,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register registers the listing routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Route("/listings", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(authmw.RequireAuth(h.validator, h.logger))
			r.Get("/mine", h.handleListMine)

			r.Group(func(r chi.Router) {
				r.Use(h.writeMW...)
				r.Post("/", h.handleCreate)
				r.Put("/{id}", h.handleUpdate)
				r.Post("/{id}/publish", h.handlePublish)
				r.Post("/{id}/edit", h.handleStartEdit)
				r.Post("/{id}/republish", h.handleRepublish)
				r.Post("/{id}/archive", h.handleArchive)
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(authmw.OptionalAuth(h.validator, h.logger))
			r.Get("/{id}", h.handleGet)
			r.Get("/{id}/versions/{versionNo}", h.handleGetVersion)
		})
	})
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l, err := h.listings.CreateDraft(ctx, principalFrom(ctx))
	if err != nil {
		h.writeServiceError(ctx, w, "create draft", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, createListingResponse{ID: l.ID.String()})
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	listingID, ok := h.listingIDParam(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[UpdateListingRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	l, err := h.listings.UpdateDraft(ctx, principalFrom(ctx), listingID, req.Content())
	if err != nil {
		h.writeServiceError(ctx, w, "update draft", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, actionResponse(l, l.LastPublicVersion()))
}

func (h *Handler) handlePublish(w http.ResponseWriter, r *http.Request) {
	h.handleAction(w, r, "publish", h.listings.Publish, (*models.Listing).LastPublicVersion)
}

func (h *Handler) handleStartEdit(w http.ResponseWriter, r *http.Request) {
	h.handleAction(w, r, "start edit", h.listings.StartEdit, currentVersion)
}

func (h *Handler) handleRepublish(w http.ResponseWriter, r *http.Request) {
	h.handleAction(w, r, "republish", h.listings.Republish, (*models.Listing).LastPublicVersion)
}

func (h *Handler) handleArchive(w http.ResponseWriter, r *http.Request) {
	h.handleAction(w, r, "archive", h.listings.Archive, currentVersion)
}

type transition func(ctx context.Context, p *models.Principal, listingID id.ListingID) (*models.Listing, error)

func (h *Handler) handleAction(w http.ResponseWriter, r *http.Request, action string, do transition, version func(*models.Listing) int) {
	ctx := r.Context()
	listingID, ok := h.listingIDParam(w, r)
	if !ok {
		return
	}
	l, err := do(ctx, principalFrom(ctx), listingID)
	if err != nil {
		h.writeServiceError(ctx, w, action, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, actionResponse(l, version(l)))
}

func (h *Handler) handleListMine(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	listings, err := h.listings.ListMine(ctx, principalFrom(ctx))
	if err != nil {
		h.writeServiceError(ctx, w, "list mine", err)
		return
	}
	resp := make([]listingSummaryResponse, 0, len(listings))
	for _, l := range listings {
		resp = append(resp, summaryResponse(l))
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	listingID, ok := h.listingIDParam(w, r)
	if !ok {
		return
	}
	view, err := h.listings.GetListing(ctx, principalFrom(ctx), listingID)
	if err != nil {
		h.writeServiceError(ctx, w, "get listing", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, detailsResponse(view))
}

func (h *Handler) handleGetVersion(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	listingID, ok := h.listingIDParam(w, r)
	if !ok {
		return
	}
	versionNo, err := strconv.Atoi(chi.URLParam(r, "versionNo"))
	if err != nil || versionNo < models.InitialVersion {
		httputil.WriteError(w, dErrors.NewField(dErrors.CodeInvalidInput, "versionNo", "version must be a positive integer"))
		return
	}
	view, err := h.listings.GetListingVersion(ctx, principalFrom(ctx), listingID, versionNo)
	if err != nil {
		h.writeServiceError(ctx, w, "get listing version", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, detailsResponse(view))
}

func (h *Handler) listingIDParam(w http.ResponseWriter, r *http.Request) (id.ListingID, bool) {
	listingID, err := id.ParseListingID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return id.ListingID{}, false
	}
	return listingID, true
}

// writeServiceError logs at a level that matches who is at fault and writes
// the mapped response.
func (h *Handler) writeServiceError(ctx context.Context, w http.ResponseWriter, action string, err error) {
	attrs := []any{
		"action", action,
		"error", err,
		"request_id", requestcontext.RequestID(ctx),
	}
	switch dErrors.CodeOf(err) {
	case dErrors.CodeInternal, dErrors.CodeContentNotFound, dErrors.CodeInvariantViolation:
		h.logger.ErrorContext(ctx, "listing request failed", attrs...)
	default:
		h.logger.InfoContext(ctx, "listing request rejected", attrs...)
	}
	httputil.WriteError(w, err)
}

// principalFrom builds the caller from identity the auth middleware placed in
// the context. Anonymous callers yield nil.
func principalFrom(ctx context.Context) *models.Principal {
	userID := requestcontext.UserID(ctx)
	if userID.IsNil() {
		return nil
	}
	return &models.Principal{UserID: userID, Roles: requestcontext.Roles(ctx)}
}

func currentVersion(l *models.Listing) int { return l.CurrentVersion }
