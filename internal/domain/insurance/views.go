package insurance

import (
	"strings"
	"time"

	"github.com/healthcheck/healthcheck/internal/domain/filter"
)

const (
	GroupKeyword = "keyword"

	FieldHolderName = "holderName"
	FieldCardNumber = "cardNumber"
	FieldProvider   = "provider"
	FieldValidFrom  = "validFrom"
	FieldValidTo    = "validTo"
	FieldCardImage  = "cardImage"
)

// ListView exposes cards to the filter engine.
func ListView() filter.View[*Card] {
	return filter.View[*Card]{
		Groups: map[string][]string{
			GroupKeyword: {FieldHolderName, FieldCardNumber, FieldProvider},
		},
		Text: map[string]func(*Card) string{
			FieldHolderName: func(c *Card) string { return c.HolderName },
			FieldCardNumber: func(c *Card) string { return c.CardNumber },
			FieldProvider:   func(c *Card) string { return c.Provider },
		},
		Category: map[string]func(*Card) string{
			FieldProvider: func(c *Card) string { return c.Provider },
		},
		Dates: map[string]func(*Card) *time.Time{
			FieldValidFrom: func(c *Card) *time.Time { return &c.ValidFrom },
			FieldValidTo:   func(c *Card) *time.Time { return &c.ValidTo },
		},
		Presence: map[string]func(*Card) bool{
			FieldCardImage: func(c *Card) bool { return c.CardImageURL != nil && strings.TrimSpace(*c.CardImageURL) != "" },
		},
	}
}

// ValidityWindow matches cards whose valid-from or valid-to date falls in
// [start, end].
func ValidityWindow(start, end *time.Time) filter.DateRange {
	return filter.Between(start, end, FieldValidFrom, FieldValidTo)
}
