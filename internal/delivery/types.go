package delivery

import (
	"time"

	"github.com/google/uuid"
)

// DayIcon is the availability glyph shown on a calendar day.
type DayIcon string

const (
	IconFull    DayIcon = "full"
	IconPartial DayIcon = "partial"
	IconNone    DayIcon = "none"
)

// DayState is the computed presentation state for one calendar day.
type DayState struct {
	Selectable bool    `json:"selectable"`
	Icon       DayIcon `json:"icon"`
	Closed     bool    `json:"closed"`
}

// CartLine is the slice of a cart the resolver needs: which farm produces
// the line and how much of it.
type CartLine struct {
	ProductID    uuid.UUID `json:"product_id"`
	ProductTitle string    `json:"product_title"`
	FarmID       uuid.UUID `json:"farm_id"`
	FarmName     string    `json:"farm_name"`
	Quantity     int       `json:"quantity"`
}

// Schedule maps an ISO date to whether the business delivers at all that day.
// A missing key means the day is not offered.
type Schedule map[string]bool

// DayAvailability lists which farms can ship on a single date.
type DayAvailability struct {
	AllAvailable bool        `json:"all_available"`
	Available    []uuid.UUID `json:"available"`
	Unavailable  []uuid.UUID `json:"unavailable,omitempty"`
}

// AvailabilityMap maps an ISO date to that date's farm availability.
// A missing key means no availability data was loaded for the date.
type AvailabilityMap map[string]DayAvailability

// UnavailableItem describes a cart line that cannot ship on the chosen date.
type UnavailableItem struct {
	ProductID    uuid.UUID `json:"product_id"`
	ProductTitle string    `json:"product_title"`
	FarmID       uuid.UUID `json:"farm_id"`
	FarmName     string    `json:"farm_name"`
	Reason       string    `json:"reason"`
}

// NextAvailableDate is the earliest future date the whole cart can ship together.
type NextAvailableDate struct {
	Date  time.Time `json:"date"`
	Label string    `json:"label"`
}

// Outcome is the result of resolving a (date, cart) pair. When Proceed is
// false the caller must collect a decision before checkout continues.
type Outcome struct {
	Proceed           bool               `json:"proceed"`
	UnavailableItems  []UnavailableItem  `json:"unavailable_items,omitempty"`
	NextAvailableDate *NextAvailableDate `json:"next_available_date,omitempty"`
}

// NeedsDecision reports whether the outcome blocks checkout on a user choice.
func (o Outcome) NeedsDecision() bool {
	return !o.Proceed
}

// Resolution is the (date, cart) pair produced by applying a decision.
// It is a value; the caller persists it.
type Resolution struct {
	Date time.Time
	Cart []CartLine
}

// DateKey formats a time as the ISO date key used by Schedule and AvailabilityMap.
func DateKey(t time.Time) string {
	return t.Format("2006-01-02")
}

// FarmIDs returns the unique farm ids across the cart, in first-seen order.
func FarmIDs(cart []CartLine) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(cart))
	ids := make([]uuid.UUID, 0, len(cart))
	for _, line := range cart {
		if _, ok := seen[line.FarmID]; ok {
			continue
		}
		seen[line.FarmID] = struct{}{}
		ids = append(ids, line.FarmID)
	}
	return ids
}

func availableSet(day DayAvailability) map[uuid.UUID]struct{} {
	set := make(map[uuid.UUID]struct{}, len(day.Available))
	for _, id := range day.Available {
		set[id] = struct{}{}
	}
	return set
}
