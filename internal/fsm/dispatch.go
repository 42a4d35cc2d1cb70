package fsm

import (
	"fmt"
	"reflect"
)

// Dispatcher binds one state to its entry handler.
//
// Invoke narrows the generic payload to the variant the handler declared and
// calls it with owner. A payload of the wrong variant is a wiring defect:
// Invoke panics with a *ContractError rather than calling the handler.
type Dispatcher[C any] interface {
	// Name is the state's display name.
	Name() string

	// Expects is the Go type name of the payload variant the handler takes.
	Expects() string

	// Invoke runs the handler.
	Invoke(owner C, p Payload)
}

type action[C any, P Payload] struct {
	name string
	fn   func(C, P)
}

// Action returns a Dispatcher that calls fn with the payload narrowed to P.
//
// A handler declared on NoPayload accepts every variant; the payload is
// dropped and fn receives NoPayload{}.
func Action[C any, P Payload](name string, fn func(C, P)) Dispatcher[C] {
	if fn == nil {
		panic(&ContractError{
			Code:    ErrCodeNilDispatcher,
			Message: fmt.Sprintf("state %q bound to nil handler", name),
		})
	}
	return &action[C, P]{name: name, fn: fn}
}

func (a *action[C, P]) Name() string { return a.name }

func (a *action[C, P]) Expects() string {
	return reflect.TypeFor[P]().String()
}

func (a *action[C, P]) Invoke(owner C, p Payload) {
	narrowed, ok := p.(P)
	if !ok {
		var zero P
		if _, none := any(zero).(NoPayload); !none {
			panic(NewPayloadMismatchError(a.name, a.Expects(), p))
		}
		narrowed = zero
	}
	a.fn(owner, narrowed)
}
