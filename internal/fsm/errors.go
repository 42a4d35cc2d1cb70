package fsm

import (
	"errors"
	"fmt"
)

// ContractError reports a wiring defect: a table or event map that does not
// fit the machine, a target state outside the machine, or a handler bound to
// a payload variant its callers do not send.
//
// Constructors return it; the drain loop and dispatchers panic with it.
// It is never a run-time condition to recover from.
type ContractError struct {
	// Code identifies the defect.
	Code ContractErrorCode

	// Message is a human-readable description.
	Message string

	// State is the offending state, where one applies.
	State State
}

// ContractErrorCode categorizes contract violations.
type ContractErrorCode string

const (
	// ErrCodeInvalidMaxStates: max states is zero or collides with Ignored.
	ErrCodeInvalidMaxStates ContractErrorCode = "INVALID_MAX_STATES"

	// ErrCodeTableSize: the table does not have exactly max states entries.
	ErrCodeTableSize ContractErrorCode = "TABLE_SIZE_MISMATCH"

	// ErrCodeNilDispatcher: a table entry or handler is nil.
	ErrCodeNilDispatcher ContractErrorCode = "NIL_DISPATCHER"

	// ErrCodeStateOutOfRange: a transition targets a state >= max states.
	ErrCodeStateOutOfRange ContractErrorCode = "STATE_OUT_OF_RANGE"

	// ErrCodePayloadMismatch: a handler received a payload variant it did
	// not declare.
	ErrCodePayloadMismatch ContractErrorCode = "PAYLOAD_MISMATCH"

	// ErrCodeEventMap: a per-event map does not fit the machine.
	ErrCodeEventMap ContractErrorCode = "INVALID_EVENT_MAP"
)

// Error implements the error interface.
func (e *ContractError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewStateOutOfRangeError creates a ContractError for a target state outside
// a machine with maxStates states.
func NewStateOutOfRangeError(s State, maxStates int) *ContractError {
	return &ContractError{
		Code:    ErrCodeStateOutOfRange,
		Message: fmt.Sprintf("state %d out of range (max states %d)", s, maxStates),
		State:   s,
	}
}

// NewPayloadMismatchError creates a ContractError for a handler of state
// that expects a different payload variant than got.
func NewPayloadMismatchError(state, expects string, got Payload) *ContractError {
	kind := "<nil>"
	if got != nil {
		kind = fmt.Sprintf("%T (%s)", got, got.PayloadKind())
	}
	return &ContractError{
		Code:    ErrCodePayloadMismatch,
		Message: fmt.Sprintf("state %s expects %s, got %s", state, expects, kind),
	}
}

// IsContractError returns true if err is or wraps a *ContractError.
func IsContractError(err error) bool {
	var ce *ContractError
	return errors.As(err, &ce)
}

// StepsExceededError is returned when one drain hits the engine's step
// budget. The pending transition is still armed; Drain resumes it.
type StepsExceededError struct {
	Machine string // Engine name
	Pending string // Name of the deferred target state
	Steps   int    // Steps executed by the drain
	Limit   int    // Configured budget
}

// Error implements the error interface.
func (e *StepsExceededError) Error() string {
	return fmt.Sprintf("machine %s exceeded max steps quota: %d steps >= %d limit, transition to %s deferred",
		e.Machine, e.Steps, e.Limit, e.Pending)
}

// IsStepsExceededError returns true if err is or wraps a *StepsExceededError.
func IsStepsExceededError(err error) bool {
	var se *StepsExceededError
	return errors.As(err, &se)
}
