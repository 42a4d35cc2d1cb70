package fsm

import (
	"fmt"
)

// State identifies a state of one machine. Valid states are dense in
// [0, maxStates).
type State uint8

const (
	// Ignored is the target an EventMap uses when the event has no effect in
	// the current state.
	Ignored State = 0xFE

	// CannotHappen is reserved and never a valid target.
	CannotHappen State = 0xFF
)

// EventMap maps every current state to the target state of one external
// event. Targets is indexed by current state.
type EventMap struct {
	Event   string
	Targets []State
}

// Resolve returns the target for current, or Ignored if current is not
// covered by the map.
func (m EventMap) Resolve(current State) State {
	if int(current) >= len(m.Targets) {
		return Ignored
	}
	return m.Targets[current]
}

// Ignores reports whether the event has no effect in current.
func (m EventMap) Ignores(current State) bool {
	return m.Resolve(current) == Ignored
}

// ValidateEventMaps checks that every map covers exactly maxStates states,
// that targets are valid states or Ignored, and that event names are unique.
func ValidateEventMaps(maxStates int, maps ...EventMap) error {
	if err := checkMaxStates(maxStates); err != nil {
		return err
	}

	seen := make(map[string]bool, len(maps))
	for _, m := range maps {
		if m.Event == "" {
			return &ContractError{Code: ErrCodeEventMap, Message: "event map without event name"}
		}
		if seen[m.Event] {
			return &ContractError{
				Code:    ErrCodeEventMap,
				Message: fmt.Sprintf("duplicate event map %q", m.Event),
			}
		}
		seen[m.Event] = true

		if len(m.Targets) != maxStates {
			return &ContractError{
				Code:    ErrCodeEventMap,
				Message: fmt.Sprintf("event %q has %d targets, want %d", m.Event, len(m.Targets), maxStates),
			}
		}
		for from, to := range m.Targets {
			if to != Ignored && int(to) >= maxStates {
				return &ContractError{
					Code:    ErrCodeEventMap,
					Message: fmt.Sprintf("event %q from state %d targets %d (max states %d)", m.Event, from, to, maxStates),
					State:   to,
				}
			}
		}
	}
	return nil
}

func checkMaxStates(maxStates int) error {
	if maxStates <= 0 || maxStates >= int(Ignored) {
		return &ContractError{
			Code:    ErrCodeInvalidMaxStates,
			Message: fmt.Sprintf("max states %d must be in (0, %d)", maxStates, Ignored),
		}
	}
	return nil
}
