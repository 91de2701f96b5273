package models

import (
	"strings"

	dErrors "hearth/pkg/domain-errors"
)

// Publish-readiness field categories, in check order.
const (
	FieldTitle        = "title"
	FieldPrice        = "price"
	FieldCurrency     = "currency"
	FieldAddress      = "address"
	FieldArea         = "area"
	FieldPropertyType = "propertyType"
)

// ValidateForPublish reports the first field category that keeps c from
// becoming the published snapshot. The error carries CodeNotPublishable and
// the category in Field.
func ValidateForPublish(c Content) error {
	switch {
	case strings.TrimSpace(c.Title) == "":
		return notPublishable(FieldTitle, "title missing")
	case c.Price.Amount == nil:
		return notPublishable(FieldPrice, "price missing")
	case strings.TrimSpace(c.Price.CurrencyCode) == "":
		return notPublishable(FieldCurrency, "currency missing")
	case c.Address == nil ||
		strings.TrimSpace(c.Address.Country) == "" ||
		strings.TrimSpace(c.Address.City) == "":
		return notPublishable(FieldAddress, "address missing")
	case c.Area == nil || !c.Area.IsPositive():
		return notPublishable(FieldArea, "area invalid")
	case c.PropertyType == "":
		return notPublishable(FieldPropertyType, "propertyType missing")
	}
	return nil
}

func notPublishable(field, msg string) error {
	return dErrors.NewField(dErrors.CodeNotPublishable, field, msg)
}
