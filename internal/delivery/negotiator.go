package delivery

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// UnavailableReason is the fixed message attached to lines that cannot ship
// on the chosen date.
const UnavailableReason = "not available for delivery on the selected date"

// DefaultHorizonDays bounds the forward scan for a consolidation date.
const DefaultHorizonDays = 60

var (
	ErrNoConsolidationDate = errors.New("no consolidation date available")
	ErrNothingToResolve    = errors.New("outcome does not need a decision")
)

// Resolve evaluates whether every cart line can ship on the selected date.
// When it cannot, the outcome carries the blocked lines and, if one exists
// within horizonDays, the earliest strictly later open date on which every
// farm in the cart can ship together.
//
// Resolve is pure. It tolerates stale or partial availability data; the
// caller re-validates against the database before an order is created.
func Resolve(selectedDate time.Time, cart []CartLine, schedule Schedule, avail AvailabilityMap, horizonDays int) Outcome {
	farmIDs := FarmIDs(cart)
	if len(farmIDs) == 0 {
		return Outcome{Proceed: true}
	}

	set := availableSet(avail[DateKey(selectedDate)])
	blocked := make([]UnavailableItem, 0)
	for _, line := range cart {
		if _, ok := set[line.FarmID]; ok {
			continue
		}
		blocked = append(blocked, UnavailableItem{
			ProductID:    line.ProductID,
			ProductTitle: line.ProductTitle,
			FarmID:       line.FarmID,
			FarmName:     line.FarmName,
			Reason:       UnavailableReason,
		})
	}
	if len(blocked) == 0 {
		return Outcome{Proceed: true}
	}

	outcome := Outcome{Proceed: false, UnavailableItems: blocked}
	if next, ok := nextFullDate(selectedDate, farmIDs, schedule, avail, horizonDays); ok {
		outcome.NextAvailableDate = &NextAvailableDate{
			Date:  next,
			Label: next.Format("2006-01-02 (Mon)"),
		}
	}
	return outcome
}

// nextFullDate scans strictly after the selected date, in increasing order,
// for the first open day where every farm can ship.
func nextFullDate(selectedDate time.Time, farmIDs []uuid.UUID, schedule Schedule, avail AvailabilityMap, horizonDays int) (time.Time, bool) {
	if horizonDays <= 0 {
		horizonDays = DefaultHorizonDays
	}
	for offset := 1; offset <= horizonDays; offset++ {
		day := selectedDate.AddDate(0, 0, offset)
		key := DateKey(day)
		if open, published := schedule[key]; !published || !open {
			continue
		}
		set := availableSet(avail[key])
		all := true
		for _, id := range farmIDs {
			if _, ok := set[id]; !ok {
				all = false
				break
			}
		}
		if all {
			return day, true
		}
	}
	return time.Time{}, false
}

// Consolidate moves the whole cart onto the outcome's next available date.
// All lines are retained. The caller persists the returned pair.
func Consolidate(cart []CartLine, outcome Outcome) (Resolution, error) {
	if !outcome.NeedsDecision() {
		return Resolution{}, ErrNothingToResolve
	}
	if outcome.NextAvailableDate == nil {
		return Resolution{}, ErrNoConsolidationDate
	}
	kept := make([]CartLine, len(cart))
	copy(kept, cart)
	return Resolution{Date: outcome.NextAvailableDate.Date, Cart: kept}, nil
}

// RemoveAndProceed drops the blocked lines and keeps the originally selected
// date. Lines from farms outside the blocked set are unchanged.
func RemoveAndProceed(selectedDate time.Time, cart []CartLine, outcome Outcome) (Resolution, error) {
	if !outcome.NeedsDecision() {
		return Resolution{}, ErrNothingToResolve
	}
	blocked := make(map[uuid.UUID]struct{}, len(outcome.UnavailableItems))
	for _, item := range outcome.UnavailableItems {
		blocked[item.FarmID] = struct{}{}
	}
	kept := make([]CartLine, 0, len(cart))
	for _, line := range cart {
		if _, ok := blocked[line.FarmID]; ok {
			continue
		}
		kept = append(kept, line)
	}
	return Resolution{Date: selectedDate, Cart: kept}, nil
}
