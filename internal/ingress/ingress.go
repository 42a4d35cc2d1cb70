// Package ingress converts command-source input into steering operations.
package ingress

import (
	"errors"
	"fmt"
	"math"

	"github.com/roach88/tablefsm/internal/fsm"
	"github.com/roach88/tablefsm/internal/steering"
)

// Activation request codes sent by the command source.
const (
	CodeStop    uint8 = 0
	CodeRequest uint8 = 1
)

// ErrUnknownCode is returned for an activation code other than CodeStop or
// CodeRequest.
var ErrUnknownCode = errors.New("unknown activation code")

// Controller is the part of a steering interface the command source drives.
type Controller interface {
	SetValue(r steering.Request) error
	Stop() error
	SendClearance() error
	Activate() error
	CurrentState() fsm.State
}

// Decompose splits a signed command into magnitude and sign.
func Decompose(v float64) steering.Request {
	return steering.Request{
		Magnitude: math.Abs(v),
		Sign:      v < 0,
	}
}

// ApplyValue decomposes v and forwards it as a set_value request.
func ApplyValue(c Controller, v float64) error {
	return c.SetValue(Decompose(v))
}

// ApplyCode maps an activation code to exactly one operation:
//
//	CodeStop     Stop
//	CodeRequest  SendClearance in Idle, Activate in Clearance, nothing otherwise
func ApplyCode(c Controller, code uint8) error {
	switch code {
	case CodeStop:
		return c.Stop()
	case CodeRequest:
		switch c.CurrentState() {
		case steering.Idle:
			return c.SendClearance()
		case steering.Clearance:
			return c.Activate()
		default:
			return nil
		}
	default:
		return fmt.Errorf("%w: %d", ErrUnknownCode, code)
	}
}
