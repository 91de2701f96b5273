// Package cache keeps listing snapshots in Redis in front of the durable
// version store. Snapshots never change once written, so entries need no
// invalidation; the TTL only bounds memory.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"hearth/internal/listing/metrics"
	"hearth/internal/listing/models"
	"hearth/internal/listing/service"
	id "hearth/pkg/domain"
	"hearth/pkg/platform/circuit"
)

const (
	keyPrefix    = "listing:version:"
	defaultTTL   = 10 * time.Minute
	redisTimeout = 200 * time.Millisecond
)

// errCorruptEntry marks a cached value that Redis returned fine but that
// cannot be decoded into a snapshot. It is a miss, not a Redis failure.
var errCorruptEntry = errors.New("corrupt cache entry")

// VersionCache is a read-through service.VersionStore. While its breaker is
// open reads skip Redis and go straight to the inner store; writes-back keep
// probing so the breaker can close again.
type VersionCache struct {
	client  redis.Cmdable
	inner   service.VersionStore
	ttl     time.Duration
	breaker *circuit.Breaker
	metrics *metrics.Metrics
	logger  *slog.Logger
}

type Option func(*VersionCache)

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *VersionCache) {
		c.metrics = m
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *VersionCache) {
		c.logger = logger
	}
}

func WithBreaker(b *circuit.Breaker) Option {
	return func(c *VersionCache) {
		if b != nil {
			c.breaker = b
		}
	}
}

func NewVersionCache(client redis.Cmdable, inner service.VersionStore, ttl time.Duration, opts ...Option) *VersionCache {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	c := &VersionCache{
		client:  client,
		inner:   inner,
		ttl:     ttl,
		breaker: circuit.New("listing-version-cache"),
		logger:  slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Append writes through to the inner store.
func (c *VersionCache) Append(ctx context.Context, v *models.Version) error {
	return c.inner.Append(ctx, v)
}

func (c *VersionCache) FindByListingAndVersion(ctx context.Context, listingID id.ListingID, versionNo int) (*models.Version, error) {
	key := cacheKey(listingID, versionNo)

	if !c.breaker.IsOpen() {
		v, err := c.get(ctx, key)
		switch {
		case err == nil:
			c.metrics.IncrementCacheLookup("hit")
			return v, nil
		case errors.Is(err, redis.Nil):
			c.metrics.IncrementCacheLookup("miss")
		case errors.Is(err, errCorruptEntry):
			c.metrics.IncrementCacheLookup("miss")
			c.logger.WarnContext(ctx, "dropping unreadable listing version cache entry", "key", key, "error", err)
			c.evict(ctx, key)
		default:
			c.metrics.IncrementCacheLookup("error")
			c.recordFailure(ctx, err)
		}
	} else {
		c.metrics.IncrementCacheLookup("bypass")
	}

	v, err := c.inner.FindByListingAndVersion(ctx, listingID, versionNo)
	if err != nil {
		return nil, err
	}
	c.set(ctx, key, v)
	return v, nil
}

func (c *VersionCache) get(ctx context.Context, key string) (*models.Version, error) {
	ctx, cancel := context.WithTimeout(ctx, redisTimeout)
	defer cancel()

	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, err
	}
	c.breaker.RecordSuccess()

	var entry cachedVersion
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, fmt.Errorf("%w: %w", errCorruptEntry, err)
	}
	v, err := entry.toModel()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errCorruptEntry, err)
	}
	return v, nil
}

func (c *VersionCache) evict(ctx context.Context, key string) {
	ctx, cancel := context.WithTimeout(ctx, redisTimeout)
	defer cancel()

	if err := c.client.Del(ctx, key).Err(); err != nil {
		c.recordFailure(ctx, err)
	}
}

func (c *VersionCache) set(ctx context.Context, key string, v *models.Version) {
	raw, err := json.Marshal(fromModel(v))
	if err != nil {
		c.logger.WarnContext(ctx, "failed to encode listing version for cache", "error", err)
		return
	}
	ctx, cancel := context.WithTimeout(ctx, redisTimeout)
	defer cancel()

	if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		c.recordFailure(ctx, err)
		return
	}
	if _, change := c.breaker.RecordSuccess(); change.Closed {
		c.logger.InfoContext(ctx, "listing version cache recovered", "breaker", c.breaker.Name())
	}
}

func (c *VersionCache) recordFailure(ctx context.Context, err error) {
	_, change := c.breaker.RecordFailure()
	if change.Opened {
		c.logger.WarnContext(ctx, "listing version cache disabled after repeated failures",
			"breaker", c.breaker.Name(),
			"error", err,
		)
	}
}

func cacheKey(listingID id.ListingID, versionNo int) string {
	return fmt.Sprintf("%s%s:%d", keyPrefix, listingID, versionNo)
}

type cachedVersion struct {
	ID        string         `json:"id"`
	ListingID string         `json:"listingId"`
	VersionNo int            `json:"versionNo"`
	Content   models.Content `json:"content"`
	CreatedAt time.Time      `json:"createdAt"`
}

func fromModel(v *models.Version) cachedVersion {
	return cachedVersion{
		ID:        v.ID.String(),
		ListingID: v.ListingID.String(),
		VersionNo: v.VersionNo,
		Content:   v.Content,
		CreatedAt: v.CreatedAt,
	}
}

func (e cachedVersion) toModel() (*models.Version, error) {
	versionID, err := id.ParseVersionID(e.ID)
	if err != nil {
		return nil, err
	}
	listingID, err := id.ParseListingID(e.ListingID)
	if err != nil {
		return nil, err
	}
	if e.VersionNo < models.InitialVersion {
		return nil, fmt.Errorf("invalid version number %d", e.VersionNo)
	}
	return &models.Version{
		ID:        versionID,
		ListingID: listingID,
		VersionNo: e.VersionNo,
		Content:   e.Content.Clone(),
		CreatedAt: e.CreatedAt,
	}, nil
}
