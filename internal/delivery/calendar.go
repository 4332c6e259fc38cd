package delivery

import (
	"time"

	"github.com/google/uuid"
)

// ComputeDayState derives the calendar presentation for one day.
//
// Rules, in order:
//   - days before minDate are never selectable
//   - days without an open schedule entry are closed, absence of data means
//     the day is not offered
//   - an empty cart has no farm constraint, every open day is fully available
//   - days with no loaded availability data show the conservative none icon
//     but stay selectable, the server re-checks at submission
//   - otherwise the icon follows how many of the cart's farms can ship, and
//     a day no cart farm can ship is not selectable
func ComputeDayState(day time.Time, schedule Schedule, avail AvailabilityMap, farmIDs []uuid.UUID, minDate time.Time) DayState {
	if day.Before(minDate) {
		return DayState{Selectable: false, Icon: IconNone}
	}

	key := DateKey(day)
	open, published := schedule[key]
	if !published || !open {
		return DayState{Selectable: false, Icon: IconNone, Closed: true}
	}

	if len(farmIDs) == 0 {
		return DayState{Selectable: true, Icon: IconFull}
	}

	dayAvail, ok := avail[key]
	if !ok {
		return DayState{Selectable: true, Icon: IconNone}
	}

	set := availableSet(dayAvail)
	shippable := 0
	for _, id := range farmIDs {
		if _, ok := set[id]; ok {
			shippable++
		}
	}

	switch {
	case shippable == len(farmIDs):
		return DayState{Selectable: true, Icon: IconFull}
	case shippable > 0:
		return DayState{Selectable: true, Icon: IconPartial}
	default:
		return DayState{Selectable: false, Icon: IconNone}
	}
}

// ComputeMonthStates evaluates every day of the given month in one pass.
// Keys are ISO dates.
func ComputeMonthStates(year int, month time.Month, schedule Schedule, avail AvailabilityMap, farmIDs []uuid.UUID, minDate time.Time) map[string]DayState {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	states := make(map[string]DayState, 31)
	for day := first; day.Month() == month; day = day.AddDate(0, 0, 1) {
		states[DateKey(day)] = ComputeDayState(day, schedule, avail, farmIDs, minDate)
	}
	return states
}
