// Package events shapes listing domain events and delivers them to a sink.
//
// Every event is wrapped in an Envelope and keyed by listing id so that all
// events for one listing land on the same partition in order.
package events

import (
	"time"

	"github.com/shopspring/decimal"

	"hearth/internal/listing/models"
	id "hearth/pkg/domain"
)

// TopicListing is the topic listing lifecycle events are published to.
const TopicListing = "listing-events"

type Type string

const (
	TypeListingCreated   Type = "ListingCreatedV1"
	TypeListingPublished Type = "ListingPublishedV1"
	TypeListingUpdated   Type = "ListingUpdatedV1"
	TypeListingArchived  Type = "ListingArchivedV1"
)

// Envelope is the wire wrapper for every event.
type Envelope struct {
	EventID    string    `json:"eventId"`
	EventType  Type      `json:"eventType"`
	OccurredAt time.Time `json:"occurredAt"`
	Payload    any       `json:"payload"`
}

// NewEnvelope wraps payload with a fresh event id.
func NewEnvelope(eventType Type, payload any, occurredAt time.Time) Envelope {
	return Envelope{
		EventID:    id.NewEventID().String(),
		EventType:  eventType,
		OccurredAt: occurredAt.UTC(),
		Payload:    payload,
	}
}

// ListingCreatedV1 announces a new draft. It carries no content.
type ListingCreatedV1 struct {
	ListingID string `json:"listingId"`
	OwnerID   string `json:"ownerId"`
	Status    string `json:"status"`
	Version   int    `json:"version"`
}

// ListingArchivedV1 announces the end of a listing's public life. Version is
// the last version readers saw.
type ListingArchivedV1 struct {
	ListingID  string    `json:"listingId"`
	OwnerID    string    `json:"ownerId"`
	Status     string    `json:"status"`
	Version    int       `json:"version"`
	ArchivedAt time.Time `json:"archivedAt"`
}

// AddressPayload mirrors models.Address on the wire.
type AddressPayload struct {
	Country    string  `json:"country"`
	City       string  `json:"city"`
	Street     *string `json:"street,omitempty"`
	PostalCode *string `json:"postalCode,omitempty"`
}

// ContentPayload is the published content carried by published/updated events.
type ContentPayload struct {
	ListingID    string           `json:"listingId"`
	OwnerID      string           `json:"ownerId"`
	Status       string           `json:"status"`
	Version      int              `json:"version"`
	Title        string           `json:"title"`
	Description  string           `json:"description"`
	PriceAmount  *decimal.Decimal `json:"priceAmount,omitempty"`
	CurrencyCode string           `json:"currencyCode"`
	Address      *AddressPayload  `json:"address,omitempty"`
	Area         *decimal.Decimal `json:"area,omitempty"`
	Rooms        *int             `json:"rooms,omitempty"`
	Floor        *int             `json:"floor,omitempty"`
	PropertyType string           `json:"propertyType"`
	PhotoIDs     []string         `json:"photoIds"`
}

// ListingPublishedV1 announces a first publish.
type ListingPublishedV1 struct {
	ContentPayload
	PublishedAt time.Time `json:"publishedAt"`
}

// ListingUpdatedV1 announces that a new snapshot became the published one.
type ListingUpdatedV1 struct {
	ContentPayload
	UpdatedAt time.Time `json:"updatedAt"`
}

func Created(l *models.Listing) Envelope {
	return NewEnvelope(TypeListingCreated, ListingCreatedV1{
		ListingID: l.ID.String(),
		OwnerID:   l.OwnerID.String(),
		Status:    l.Status.String(),
		Version:   l.CurrentVersion,
	}, l.CreatedAt)
}

func Published(l *models.Listing, c models.Content) Envelope {
	return NewEnvelope(TypeListingPublished, ListingPublishedV1{
		ContentPayload: contentPayload(l, c),
		PublishedAt:    l.UpdatedAt.UTC(),
	}, l.UpdatedAt)
}

func Updated(l *models.Listing, c models.Content) Envelope {
	return NewEnvelope(TypeListingUpdated, ListingUpdatedV1{
		ContentPayload: contentPayload(l, c),
		UpdatedAt:      l.UpdatedAt.UTC(),
	}, l.UpdatedAt)
}

func Archived(l *models.Listing) Envelope {
	return NewEnvelope(TypeListingArchived, ListingArchivedV1{
		ListingID:  l.ID.String(),
		OwnerID:    l.OwnerID.String(),
		Status:     l.Status.String(),
		Version:    l.LastPublicVersion(),
		ArchivedAt: l.UpdatedAt.UTC(),
	}, l.UpdatedAt)
}

func contentPayload(l *models.Listing, c models.Content) ContentPayload {
	c = c.Clone()
	p := ContentPayload{
		ListingID:    l.ID.String(),
		OwnerID:      l.OwnerID.String(),
		Status:       l.Status.String(),
		Version:      l.LastPublicVersion(),
		Title:        c.Title,
		Description:  c.Description,
		PriceAmount:  c.Price.Amount,
		CurrencyCode: c.Price.CurrencyCode,
		Area:         c.Area,
		Rooms:        c.Rooms,
		Floor:        c.Floor,
		PropertyType: string(c.PropertyType),
		PhotoIDs:     c.MediaRefs,
	}
	if c.Address != nil {
		p.Address = &AddressPayload{
			Country:    c.Address.Country,
			City:       c.Address.City,
			Street:     c.Address.Street,
			PostalCode: c.Address.PostalCode,
		}
	}
	return p
}
