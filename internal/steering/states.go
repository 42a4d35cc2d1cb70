package steering

import (
	"fmt"
	"strings"

	"github.com/roach88/tablefsm/internal/can"
	"github.com/roach88/tablefsm/internal/fsm"
)

// Steering interface states.
const (
	Idle fsm.State = iota
	Clearance
	Activation
	Working
	Stop
)

// MaxStates is the number of steering interface states.
const MaxStates = 5

// MachineName is the default engine name of the steering interface.
const MachineName = "SteeringInterface"

// External event names.
const (
	EventSetValue      = "set_value"
	EventStop          = "stop"
	EventSendClearance = "send_clearance"
	EventActivate      = "activate"
)

const ignored = fsm.Ignored

// Per-event transition maps, indexed by current state:
//
//	current     set_value  stop  send_clearance  activate
//	Idle        -          -     Clearance       -
//	Clearance   -          Stop  -               Activation
//	Activation  Working    Stop  -               -
//	Working     Working    Stop  -               -
//	Stop        -          -     -               -
var (
	setValueMap = fsm.EventMap{
		Event:   EventSetValue,
		Targets: []fsm.State{ignored, ignored, Working, Working, ignored},
	}
	stopMap = fsm.EventMap{
		Event:   EventStop,
		Targets: []fsm.State{ignored, Stop, Stop, Stop, ignored},
	}
	sendClearanceMap = fsm.EventMap{
		Event:   EventSendClearance,
		Targets: []fsm.State{Clearance, ignored, ignored, ignored, ignored},
	}
	activateMap = fsm.EventMap{
		Event:   EventActivate,
		Targets: []fsm.State{ignored, Activation, ignored, ignored, ignored},
	}
)

func init() {
	if err := fsm.ValidateEventMaps(MaxStates, EventMaps()...); err != nil {
		panic(err)
	}
}

// EventMaps returns copies of the external event maps in a fixed order.
func EventMaps() []fsm.EventMap {
	maps := []fsm.EventMap{setValueMap, stopMap, sendClearanceMap, activateMap}
	out := make([]fsm.EventMap, len(maps))
	for i, m := range maps {
		targets := make([]fsm.State, len(m.Targets))
		copy(targets, m.Targets)
		out[i] = fsm.EventMap{Event: m.Event, Targets: targets}
	}
	return out
}

// StateNames lists the state names in state order.
func StateNames() []string {
	return []string{"Idle", "Clearance", "Activation", "Working", "Stop"}
}

// ControlMode selects how Working dispatches requests.
type ControlMode uint8

const (
	ModeAngle ControlMode = iota
	ModeTorque
)

func (m ControlMode) String() string {
	switch m {
	case ModeAngle:
		return "angle"
	case ModeTorque:
		return "torque"
	default:
		return fmt.Sprintf("mode(%d)", uint8(m))
	}
}

// ParseControlMode parses "angle" or "torque".
func ParseControlMode(s string) (ControlMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "angle", "":
		return ModeAngle, nil
	case "torque":
		return ModeTorque, nil
	default:
		return 0, fmt.Errorf("unknown control mode %q (want angle or torque)", s)
	}
}

// Gateway states reported by the vehicle gateway.
const (
	GatewayAngleReady  uint8 = 2
	GatewayTorqueReady uint8 = 3
)

// valueFrame returns the gateway state m needs and the frame its setpoints
// go out on.
func (m ControlMode) valueFrame() (gateway uint8, frameID uint16, ok bool) {
	switch m {
	case ModeAngle:
		return GatewayAngleReady, can.AngleFrameID, true
	case ModeTorque:
		return GatewayTorqueReady, can.TorqueFrameID, true
	default:
		return 0, 0, false
	}
}
