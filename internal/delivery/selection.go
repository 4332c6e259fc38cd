package delivery

import (
	"fmt"
	"time"
)

// SelectionState names a phase of the checkout date-selection cycle.
type SelectionState string

const (
	StateIdle             SelectionState = "idle"
	StateDateChosen       SelectionState = "date_chosen"
	StateProceed          SelectionState = "proceed"
	StateAwaitingDecision SelectionState = "awaiting_decision"
	StateResolved         SelectionState = "resolved"
)

// DecisionAction is one of the two terminal resolutions a user can pick.
type DecisionAction string

const (
	ActionConsolidate DecisionAction = "consolidate"
	ActionRemoveItems DecisionAction = "remove_items"
)

// ParseDecisionAction validates a wire value into a DecisionAction.
func ParseDecisionAction(value string) (DecisionAction, error) {
	switch DecisionAction(value) {
	case ActionConsolidate:
		return ActionConsolidate, nil
	case ActionRemoveItems:
		return ActionRemoveItems, nil
	default:
		return "", fmt.Errorf("unknown decision action %q", value)
	}
}

// Selection is an explicit state container for one date-selection cycle:
// Idle -> DateChosen -> {Proceed | AwaitingDecision} -> Resolved -> Idle.
// It holds snapshots only; nothing here touches storage.
type Selection struct {
	state   SelectionState
	date    time.Time
	cart    []CartLine
	outcome Outcome
	result  Resolution
}

// NewSelection starts a cycle in Idle.
func NewSelection() *Selection {
	return &Selection{state: StateIdle}
}

// State returns the current phase.
func (s *Selection) State() SelectionState {
	return s.state
}

// Outcome returns the evaluation result once a date has been chosen.
func (s *Selection) Outcome() Outcome {
	return s.outcome
}

// Choose evaluates the date against the cart and moves to Proceed or
// AwaitingDecision. Only valid from Idle.
func (s *Selection) Choose(date time.Time, cart []CartLine, schedule Schedule, avail AvailabilityMap, horizonDays int) (Outcome, error) {
	if s.state != StateIdle {
		return Outcome{}, fmt.Errorf("cannot choose a date from state %q", s.state)
	}

	s.state = StateDateChosen
	s.date = date
	s.cart = make([]CartLine, len(cart))
	copy(s.cart, cart)

	s.outcome = Resolve(date, s.cart, schedule, avail, horizonDays)
	if s.outcome.Proceed {
		s.state = StateProceed
		s.result = Resolution{Date: date, Cart: s.cart}
	} else {
		s.state = StateAwaitingDecision
	}
	return s.outcome, nil
}

// Decide applies one resolution action and moves to Resolved. Only valid
// from AwaitingDecision; consolidate requires a next available date.
func (s *Selection) Decide(action DecisionAction) (Resolution, error) {
	if s.state != StateAwaitingDecision {
		return Resolution{}, fmt.Errorf("cannot decide from state %q", s.state)
	}

	var (
		resolution Resolution
		err        error
	)
	switch action {
	case ActionConsolidate:
		resolution, err = Consolidate(s.cart, s.outcome)
	case ActionRemoveItems:
		resolution, err = RemoveAndProceed(s.date, s.cart, s.outcome)
	default:
		return Resolution{}, fmt.Errorf("unknown decision action %q", action)
	}
	if err != nil {
		return Resolution{}, err
	}

	s.state = StateResolved
	s.result = resolution
	return resolution, nil
}

// Result returns the resolved (date, cart) pair. Only valid once the cycle
// reached Proceed or Resolved.
func (s *Selection) Result() (Resolution, error) {
	if s.state != StateProceed && s.state != StateResolved {
		return Resolution{}, fmt.Errorf("no result in state %q", s.state)
	}
	return s.result, nil
}

// Reset returns to Idle so the caller can re-enter evaluation, for example
// to re-validate a consolidated date.
func (s *Selection) Reset() {
	*s = Selection{state: StateIdle}
}
