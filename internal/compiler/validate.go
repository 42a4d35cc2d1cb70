package compiler

import (
	"fmt"

	"github.com/roach88/tablefsm/internal/fsm"
)

// Validation error codes (E200-E299)
const (
	ErrNoStates         = "E201" // at least one state required
	ErrTooManyStates    = "E202" // state count collides with the Ignored sentinel
	ErrDuplicateState   = "E203" // state listed twice
	ErrUnknownInitial   = "E204" // initial is not a state
	ErrDuplicateEvent   = "E205" // event defined twice
	ErrUnknownState     = "E206" // event or chain references an undeclared state
	ErrDuplicateFrom    = "E207" // event lists the same source state twice
	ErrEmptyStateName   = "E208" // state name is empty
	ErrUnknownChainFrom = "E209" // chains key is not a state
)

// ValidationError represents a machine definition error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate checks a compiled machine. Returns all errors found (does not
// fail-fast).
func Validate(def *MachineSpec) []ValidationError {
	var errs []ValidationError

	if len(def.States) == 0 {
		errs = append(errs, ValidationError{
			Field:   "states",
			Message: "at least one state is required",
			Code:    ErrNoStates,
		})
	}
	if len(def.States) >= int(fsm.Ignored) {
		errs = append(errs, ValidationError{
			Field:   "states",
			Message: fmt.Sprintf("%d states, must be fewer than %d", len(def.States), fsm.Ignored),
			Code:    ErrTooManyStates,
		})
	}

	known := make(map[string]bool, len(def.States))
	for i, st := range def.States {
		field := fmt.Sprintf("states[%d]", i)
		if st == "" {
			errs = append(errs, ValidationError{Field: field, Message: "state name is empty", Code: ErrEmptyStateName})
			continue
		}
		if known[st] {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("duplicate state %q", st),
				Code:    ErrDuplicateState,
			})
		}
		known[st] = true
	}

	if def.Initial != "" && !known[def.Initial] {
		errs = append(errs, ValidationError{
			Field:   "initial",
			Message: fmt.Sprintf("initial state %q is not declared", def.Initial),
			Code:    ErrUnknownInitial,
		})
	}

	seenEvents := make(map[string]bool, len(def.Events))
	for _, ev := range def.Events {
		if seenEvents[ev.Name] {
			errs = append(errs, ValidationError{
				Field:   "events." + ev.Name,
				Message: "event defined twice",
				Code:    ErrDuplicateEvent,
			})
		}
		seenEvents[ev.Name] = true

		froms := make(map[string]bool, len(ev.Transitions))
		for _, e := range ev.Transitions {
			field := fmt.Sprintf("events.%s.%s", ev.Name, e.From)
			if !known[e.From] {
				errs = append(errs, ValidationError{
					Field:   field,
					Message: fmt.Sprintf("source state %q is not declared", e.From),
					Code:    ErrUnknownState,
				})
			}
			if !known[e.To] {
				errs = append(errs, ValidationError{
					Field:   field,
					Message: fmt.Sprintf("target state %q is not declared", e.To),
					Code:    ErrUnknownState,
				})
			}
			if froms[e.From] {
				errs = append(errs, ValidationError{
					Field:   field,
					Message: "source state listed twice",
					Code:    ErrDuplicateFrom,
				})
			}
			froms[e.From] = true
		}
	}

	for _, c := range def.Chains {
		if !known[c.From] {
			errs = append(errs, ValidationError{
				Field:   "chains." + c.From,
				Message: fmt.Sprintf("state %q is not declared", c.From),
				Code:    ErrUnknownChainFrom,
			})
		}
		for _, to := range c.Targets {
			if !known[to] {
				errs = append(errs, ValidationError{
					Field:   "chains." + c.From,
					Message: fmt.Sprintf("target state %q is not declared", to),
					Code:    ErrUnknownState,
				})
			}
		}
	}

	return errs
}

// Unreachable lists the states that no sequence of events and chains leads to
// from the initial state, in declaration order.
func Unreachable(def *MachineSpec) []string {
	edges := make(map[string][]string)
	for _, ev := range def.Events {
		for _, e := range ev.Transitions {
			edges[e.From] = append(edges[e.From], e.To)
		}
	}
	for _, c := range def.Chains {
		edges[c.From] = append(edges[c.From], c.Targets...)
	}

	reached := map[string]bool{def.Initial: true}
	queue := []string{def.Initial}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, next := range edges[cur] {
			if !reached[next] {
				reached[next] = true
				queue = append(queue, next)
			}
		}
	}

	var out []string
	for _, st := range def.States {
		if !reached[st] {
			out = append(out, st)
		}
	}
	return out
}
