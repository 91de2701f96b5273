package handler

import (
	"time"

	"github.com/shopspring/decimal"

	"hearth/internal/listing/models"
)

// AddressRequest is the wire form of a property address.
type AddressRequest struct {
	Country    string  `json:"country"`
	City       string  `json:"city"`
	Street     *string `json:"street,omitempty"`
	PostalCode *string `json:"postalCode,omitempty"`
}

// UpdateListingRequest carries the full draft content. Every field is
// optional while the listing is a draft; publish checks completeness.
type UpdateListingRequest struct {
	Title        string           `json:"title"`
	Description  string           `json:"description"`
	PriceAmount  *decimal.Decimal `json:"priceAmount,omitempty"`
	CurrencyCode string           `json:"currencyCode,omitempty"`
	Address      *AddressRequest  `json:"address,omitempty"`
	Area         *decimal.Decimal `json:"area,omitempty"`
	Rooms        *int             `json:"rooms,omitempty"`
	Floor        *int             `json:"floor,omitempty"`
	PropertyType string           `json:"propertyType,omitempty"`
	MediaRefs    []string         `json:"mediaRefs,omitempty"`

	content models.Content
}

// Validate normalizes the request and converts it into listing content.
func (r *UpdateListingRequest) Validate() error {
	propertyType, err := models.ParsePropertyType(r.PropertyType)
	if err != nil {
		return err
	}
	c := models.Content{
		Title:       r.Title,
		Description: r.Description,
		Price: models.Price{
			Amount:       r.PriceAmount,
			CurrencyCode: r.CurrencyCode,
		},
		Area:         r.Area,
		Rooms:        r.Rooms,
		Floor:        r.Floor,
		PropertyType: propertyType,
		MediaRefs:    r.MediaRefs,
	}
	if r.Address != nil {
		c.Address = &models.Address{
			Country:    r.Address.Country,
			City:       r.Address.City,
			Street:     r.Address.Street,
			PostalCode: r.Address.PostalCode,
		}
	}
	c.Normalize()
	if err := c.Validate(); err != nil {
		return err
	}
	r.content = c
	return nil
}

// Content returns the converted content. Only meaningful after Validate.
func (r *UpdateListingRequest) Content() models.Content {
	return r.content
}

type createListingResponse struct {
	ID string `json:"id"`
}

type listingActionResponse struct {
	ID      string `json:"id"`
	Status  string `json:"status"`
	Version int    `json:"version"`
}

type listingSummaryResponse struct {
	ID        string    `json:"id"`
	Status    string    `json:"status"`
	Version   int       `json:"version"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type addressResponse struct {
	Country    string  `json:"country"`
	City       string  `json:"city"`
	Street     *string `json:"street,omitempty"`
	PostalCode *string `json:"postalCode,omitempty"`
}

type listingDetailsResponse struct {
	ID           string           `json:"id"`
	OwnerID      string           `json:"ownerId"`
	Status       string           `json:"status"`
	Version      int              `json:"version"`
	Title        string           `json:"title"`
	Description  string           `json:"description"`
	PriceAmount  *decimal.Decimal `json:"priceAmount,omitempty"`
	CurrencyCode string           `json:"currencyCode,omitempty"`
	Address      *addressResponse `json:"address,omitempty"`
	Area         *decimal.Decimal `json:"area,omitempty"`
	Rooms        *int             `json:"rooms,omitempty"`
	Floor        *int             `json:"floor,omitempty"`
	PropertyType string           `json:"propertyType,omitempty"`
	MediaRefs    []string         `json:"mediaRefs"`
}

// actionResponse reports the version a caller acted on: the public one for
// published listings, the working copy otherwise.
func actionResponse(l *models.Listing, version int) listingActionResponse {
	return listingActionResponse{
		ID:      l.ID.String(),
		Status:  l.Status.String(),
		Version: version,
	}
}

func summaryResponse(l *models.Listing) listingSummaryResponse {
	return listingSummaryResponse{
		ID:        l.ID.String(),
		Status:    l.Status.String(),
		Version:   l.CurrentVersion,
		UpdatedAt: l.UpdatedAt,
	}
}

func detailsResponse(v *models.ListingView) listingDetailsResponse {
	c := v.Content
	resp := listingDetailsResponse{
		ID:           v.Listing.ID.String(),
		OwnerID:      v.Listing.OwnerID.String(),
		Status:       v.Listing.Status.String(),
		Version:      v.VersionNo,
		Title:        c.Title,
		Description:  c.Description,
		PriceAmount:  c.Price.Amount,
		CurrencyCode: c.Price.CurrencyCode,
		Area:         c.Area,
		Rooms:        c.Rooms,
		Floor:        c.Floor,
		PropertyType: string(c.PropertyType),
		MediaRefs:    c.MediaRefs,
	}
	if resp.MediaRefs == nil {
		resp.MediaRefs = []string{}
	}
	if c.Address != nil {
		resp.Address = &addressResponse{
			Country:    c.Address.Country,
			City:       c.Address.City,
			Street:     c.Address.Street,
			PostalCode: c.Address.PostalCode,
		}
	}
	return resp
}
