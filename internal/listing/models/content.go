package models

import (
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"

	dErrors "hearth/pkg/domain-errors"
)

const (
	maxTitleLen       = 120
	minTitleLen       = 5
	maxDescriptionLen = 5000
	maxCountryLen     = 80
	maxCityLen        = 120
	maxStreetLen      = 200
	maxPostalCodeLen  = 20
	minRooms          = 1
	maxRooms          = 50
	minFloor          = -10
	maxFloor          = 300
	maxMediaRefs      = 50
	maxMediaRefLen    = 256
)

// PropertyType enumerates the kinds of property a listing may advertise.
type PropertyType string

const (
	PropertyApartment  PropertyType = "APARTMENT"
	PropertyHouse      PropertyType = "HOUSE"
	PropertyStudio     PropertyType = "STUDIO"
	PropertyRoom       PropertyType = "ROOM"
	PropertyLand       PropertyType = "LAND"
	PropertyCommercial PropertyType = "COMMERCIAL"
)

var propertyTypes = map[PropertyType]struct{}{
	PropertyApartment:  {},
	PropertyHouse:      {},
	PropertyStudio:     {},
	PropertyRoom:       {},
	PropertyLand:       {},
	PropertyCommercial: {},
}

func (p PropertyType) IsValid() bool {
	_, ok := propertyTypes[p]
	return ok
}

// ParsePropertyType normalizes raw input. An empty value means "not set".
func ParsePropertyType(raw string) (PropertyType, error) {
	p := PropertyType(strings.ToUpper(strings.TrimSpace(raw)))
	if p == "" {
		return "", nil
	}
	if !p.IsValid() {
		return "", dErrors.NewField(dErrors.CodeInvalidPropertyType, "propertyType", "unknown property type: "+raw)
	}
	return p, nil
}

// Price carries an amount and an ISO-4217 currency code. Both are optional
// while the listing is a draft.
type Price struct {
	Amount       *decimal.Decimal `json:"amount,omitempty"`
	CurrencyCode string           `json:"currencyCode,omitempty"`
}

// Address locates the property. Country and city are mandatory once an
// address is given; street and postal code are optional but never blank.
type Address struct {
	Country    string  `json:"country"`
	City       string  `json:"city"`
	Street     *string `json:"street,omitempty"`
	PostalCode *string `json:"postalCode,omitempty"`
}

// Content is the versioned body of a listing. Snapshots hold a Content value
// that is never mutated after it is stored.
type Content struct {
	Title        string           `json:"title"`
	Description  string           `json:"description"`
	Price        Price            `json:"price"`
	Address      *Address         `json:"address,omitempty"`
	Area         *decimal.Decimal `json:"area,omitempty"`
	Rooms        *int             `json:"rooms,omitempty"`
	Floor        *int             `json:"floor,omitempty"`
	PropertyType PropertyType     `json:"propertyType,omitempty"`
	MediaRefs    []string         `json:"mediaRefs"`
}

// Clone returns a deep copy so a stored snapshot never aliases caller memory.
func (c Content) Clone() Content {
	out := c
	if c.Price.Amount != nil {
		amount := *c.Price.Amount
		out.Price.Amount = &amount
	}
	if c.Address != nil {
		addr := *c.Address
		if c.Address.Street != nil {
			street := *c.Address.Street
			addr.Street = &street
		}
		if c.Address.PostalCode != nil {
			postal := *c.Address.PostalCode
			addr.PostalCode = &postal
		}
		out.Address = &addr
	}
	if c.Area != nil {
		area := *c.Area
		out.Area = &area
	}
	if c.Rooms != nil {
		rooms := *c.Rooms
		out.Rooms = &rooms
	}
	if c.Floor != nil {
		floor := *c.Floor
		out.Floor = &floor
	}
	out.MediaRefs = append([]string{}, c.MediaRefs...)
	return out
}

// Normalize trims free-text fields in place.
func (c *Content) Normalize() {
	c.Title = strings.TrimSpace(c.Title)
	c.Description = strings.TrimSpace(c.Description)
	c.Price.CurrencyCode = strings.TrimSpace(c.Price.CurrencyCode)
	if c.Address != nil {
		c.Address.Country = strings.TrimSpace(c.Address.Country)
		c.Address.City = strings.TrimSpace(c.Address.City)
	}
	if c.MediaRefs == nil {
		c.MediaRefs = []string{}
	}
}

// Validate checks draft well-formedness: anything present must be valid, but
// nothing is required. Completeness is checked separately at publish time.
func (c Content) Validate() error {
	if n := utf8.RuneCountInString(c.Title); c.Title != "" && (n < minTitleLen || n > maxTitleLen) {
		return dErrors.NewField(dErrors.CodeValidation, "title", "title must be between 5 and 120 characters")
	}
	if utf8.RuneCountInString(c.Description) > maxDescriptionLen {
		return dErrors.NewField(dErrors.CodeValidation, "description", "description must be at most 5000 characters")
	}
	if c.Price.Amount != nil && !c.Price.Amount.IsPositive() {
		return dErrors.NewField(dErrors.CodeValidation, "price", "price amount must be positive")
	}
	if c.Price.CurrencyCode != "" {
		if err := ValidateCurrencyCode(c.Price.CurrencyCode); err != nil {
			return err
		}
	}
	if c.Address != nil {
		if err := c.Address.validate(); err != nil {
			return err
		}
	}
	if c.Area != nil && !c.Area.IsPositive() {
		return dErrors.NewField(dErrors.CodeValidation, "area", "area must be positive")
	}
	if c.Rooms != nil && (*c.Rooms < minRooms || *c.Rooms > maxRooms) {
		return dErrors.NewField(dErrors.CodeValidation, "rooms", "rooms must be between 1 and 50")
	}
	if c.Floor != nil && (*c.Floor < minFloor || *c.Floor > maxFloor) {
		return dErrors.NewField(dErrors.CodeValidation, "floor", "floor must be between -10 and 300")
	}
	if c.PropertyType != "" && !c.PropertyType.IsValid() {
		return dErrors.NewField(dErrors.CodeInvalidPropertyType, "propertyType", "unknown property type: "+string(c.PropertyType))
	}
	if len(c.MediaRefs) > maxMediaRefs {
		return dErrors.NewField(dErrors.CodeValidation, "mediaRefs", "at most 50 media references are allowed")
	}
	for _, ref := range c.MediaRefs {
		if strings.TrimSpace(ref) == "" || len(ref) > maxMediaRefLen {
			return dErrors.NewField(dErrors.CodeValidation, "mediaRefs", "media references must be non-blank and at most 256 bytes")
		}
	}
	return nil
}

func (a Address) validate() error {
	if a.Country == "" || utf8.RuneCountInString(a.Country) > maxCountryLen {
		return dErrors.NewField(dErrors.CodeValidation, "address.country", "country is required and must be at most 80 characters")
	}
	if a.City == "" || utf8.RuneCountInString(a.City) > maxCityLen {
		return dErrors.NewField(dErrors.CodeValidation, "address.city", "city is required and must be at most 120 characters")
	}
	if a.Street != nil && (strings.TrimSpace(*a.Street) == "" || utf8.RuneCountInString(*a.Street) > maxStreetLen) {
		return dErrors.NewField(dErrors.CodeValidation, "address.street", "street must be non-blank and at most 200 characters")
	}
	if a.PostalCode != nil && (strings.TrimSpace(*a.PostalCode) == "" || utf8.RuneCountInString(*a.PostalCode) > maxPostalCodeLen) {
		return dErrors.NewField(dErrors.CodeValidation, "address.postalCode", "postal code must be non-blank and at most 20 characters")
	}
	return nil
}

// ValidateCurrencyCode accepts upper-case ISO-4217 codes only.
func ValidateCurrencyCode(code string) error {
	if len(code) != 3 {
		return invalidCurrency(code)
	}
	for i := 0; i < len(code); i++ {
		if code[i] < 'A' || code[i] > 'Z' {
			return invalidCurrency(code)
		}
	}
	if _, err := currency.ParseISO(code); err != nil {
		return invalidCurrency(code)
	}
	return nil
}

func invalidCurrency(code string) error {
	return dErrors.NewField(dErrors.CodeInvalidCurrencyCode, "currency", "invalid currency code: "+code)
}
