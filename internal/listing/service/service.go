package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"hearth/internal/listing/events"
	"hearth/internal/listing/metrics"
	"hearth/internal/listing/models"
	id "hearth/pkg/domain"
	dErrors "hearth/pkg/domain-errors"
	"hearth/pkg/platform/sentinel"
	"hearth/pkg/requestcontext"
)

// ListingStore persists listing aggregates. Update is a compare-and-swap on
// Revision and returns sentinel.ErrConflict when expectedRevision is stale.
type ListingStore interface {
	FindByID(ctx context.Context, listingID id.ListingID) (*models.Listing, error)
	Create(ctx context.Context, listing *models.Listing) error
	Update(ctx context.Context, listing *models.Listing, expectedRevision int64) error
	ListByOwner(ctx context.Context, ownerID id.UserID) ([]*models.Listing, error)
}

// VersionStore holds immutable snapshots. Append returns sentinel.ErrConflict
// when the (listing, version number) pair is already taken.
type VersionStore interface {
	Append(ctx context.Context, version *models.Version) error
	FindByListingAndVersion(ctx context.Context, listingID id.ListingID, versionNo int) (*models.Version, error)
}

// EventSink receives events after the unit of work that produced them commits.
type EventSink interface {
	Emit(ctx context.Context, topic, key string, env events.Envelope) error
}

const (
	defaultMaxAttempts = 3
	emitTimeout        = 5 * time.Second
)

const (
	opCreate      = "create_draft"
	opUpdate      = "update_draft"
	opPublish     = "publish"
	opStartEdit   = "start_edit"
	opRepublish   = "republish"
	opArchive     = "archive"
	opGet         = "get"
	opGetVersion  = "get_version"
	opResolve     = "resolve_version"
	opListMine    = "list_mine"
	tracerName    = "hearth/listing"
	spanKeyListID = "listing.id"
)

// Service runs the listing lifecycle: every mutation is one unit of work over
// the listing row and its snapshots, retried on optimistic conflicts, with
// events emitted only after commit.
type Service struct {
	listings    ListingStore
	versions    VersionStore
	tx          StoreTx
	sink        EventSink
	logger      *slog.Logger
	metrics     *metrics.Metrics
	tracer      trace.Tracer
	topic       string
	maxAttempts int
	emitCreated bool
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithEventSink(sink EventSink) Option {
	return func(s *Service) {
		s.sink = sink
	}
}

func WithTopic(topic string) Option {
	return func(s *Service) {
		if topic != "" {
			s.topic = topic
		}
	}
}

// WithMaxAttempts bounds how many times a conflicting unit of work runs.
func WithMaxAttempts(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

// WithCreatedEvents turns on ListingCreatedV1 emission for new drafts.
func WithCreatedEvents(enabled bool) Option {
	return func(s *Service) {
		s.emitCreated = enabled
	}
}

// WithTracerProvider records engine spans on tp instead of the global provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Service) {
		if tp != nil {
			s.tracer = tp.Tracer(tracerName)
		}
	}
}

// New constructs a Service. versions serves reads and may be a cache in front
// of the transactional store; mutations only touch the stores handed out by tx.
func New(listings ListingStore, versions VersionStore, tx StoreTx, opts ...Option) *Service {
	s := &Service{
		listings:    listings,
		versions:    versions,
		tx:          tx,
		logger:      slog.New(slog.DiscardHandler),
		tracer:      otel.Tracer(tracerName),
		topic:       events.TopicListing,
		maxAttempts: defaultMaxAttempts,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// -----------------------------------------------------------------------------
// Shared plumbing
// -----------------------------------------------------------------------------

func (s *Service) startSpan(ctx context.Context, op string, listingID id.ListingID) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{attribute.String("listing.operation", op)}
	if !listingID.IsNil() {
		attrs = append(attrs, attribute.String(spanKeyListID, listingID.String()))
	}
	return s.tracer.Start(ctx, "listing."+op, trace.WithAttributes(attrs...))
}

// finish normalizes err, records the outcome and closes the span.
func (s *Service) finish(ctx context.Context, span trace.Span, op string, start time.Time, err error) error {
	defer span.End()

	if err == nil {
		s.metrics.ObserveOperation(op, "ok", time.Since(start))
		return nil
	}
	if _, ok := dErrors.From(err); !ok {
		err = dErrors.Wrap(err, dErrors.CodeInternal, "failed to "+op)
	}
	code := dErrors.CodeOf(err)
	s.metrics.ObserveOperation(op, string(code), time.Since(start))
	span.RecordError(err)
	span.SetStatus(codes.Error, string(code))

	switch code {
	case dErrors.CodeInternal, dErrors.CodeContentNotFound:
		s.logger.ErrorContext(ctx, "listing operation failed",
			"operation", op,
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
	case dErrors.CodeConflict:
		s.logger.WarnContext(ctx, "listing operation gave up after conflicts",
			"operation", op,
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
	}
	return err
}

// runUnit executes fn in a transaction, rerunning it from scratch while the
// store reports an optimistic conflict.
func (s *Service) runUnit(ctx context.Context, op string, fn func(ctx context.Context, stores Stores) error) error {
	var err error
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		err = s.tx.RunInTx(ctx, fn)
		if !errors.Is(err, sentinel.ErrConflict) {
			return err
		}
		s.metrics.IncrementConflictRetry(op)
		s.logger.DebugContext(ctx, "listing unit of work conflicted",
			"operation", op,
			"attempt", attempt,
			"request_id", requestcontext.RequestID(ctx),
		)
	}
	return dErrors.Wrap(err, dErrors.CodeConflict, "listing was modified concurrently, retry the request")
}

// emit hands env to the sink. Failures are logged and counted: the state
// change it describes has already committed.
func (s *Service) emit(ctx context.Context, listingID id.ListingID, env events.Envelope) {
	if s.sink == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), emitTimeout)
	defer cancel()

	if err := s.sink.Emit(ctx, s.topic, listingID.String(), env); err != nil {
		s.metrics.IncrementEvent(string(env.EventType), "error")
		s.logger.ErrorContext(ctx, "failed to emit listing event",
			"event_type", env.EventType,
			"event_id", env.EventID,
			"listing_id", listingID,
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		return
	}
	s.metrics.IncrementEvent(string(env.EventType), "ok")
}

func requirePrincipal(p *models.Principal) error {
	if p == nil || p.UserID.IsNil() {
		return dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	return nil
}

func listingNotFound() error {
	return dErrors.New(dErrors.CodeNotFound, "listing not found")
}

// loadManaged loads a listing p may mutate. Listings p cannot even see are
// reported as not found.
func loadManaged(ctx context.Context, store ListingStore, p *models.Principal, listingID id.ListingID) (*models.Listing, error) {
	l, err := store.FindByID(ctx, listingID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, listingNotFound()
		}
		return nil, err
	}
	if !p.CanManage(l) {
		if l.VisibleTo(p) {
			return nil, dErrors.New(dErrors.CodeForbidden, "only the owner or an admin may modify this listing")
		}
		return nil, listingNotFound()
	}
	return l, nil
}

// loadVisible loads a listing p may read.
func loadVisible(ctx context.Context, store ListingStore, p *models.Principal, listingID id.ListingID) (*models.Listing, error) {
	l, err := store.FindByID(ctx, listingID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, listingNotFound()
		}
		return nil, err
	}
	if !l.VisibleTo(p) {
		return nil, listingNotFound()
	}
	return l, nil
}

// loadSnapshot returns snapshot versionNo of l. The initial version of a
// never-edited listing has no stored snapshot and reads as empty content; any
// other missing snapshot is an integrity fault.
func loadSnapshot(ctx context.Context, store VersionStore, l *models.Listing, versionNo int) (*models.Version, error) {
	v, err := store.FindByListingAndVersion(ctx, l.ID, versionNo)
	if err == nil {
		return v, nil
	}
	if errors.Is(err, sentinel.ErrNotFound) {
		if versionNo == models.InitialVersion {
			return models.InitialSnapshot(l), nil
		}
		return nil, dErrors.New(dErrors.CodeContentNotFound,
			fmt.Sprintf("snapshot %d of listing %s is missing", versionNo, l.ID))
	}
	return nil, err
}
