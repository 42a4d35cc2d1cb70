package steering

import (
	"github.com/roach88/tablefsm/internal/can"
	"github.com/roach88/tablefsm/internal/fsm"
	"github.com/roach88/tablefsm/internal/metrics"
)

var transitions = fsm.MustTable(MaxStates,
	fsm.Action("Idle", (*Interface).enterIdle),
	fsm.Action("Clearance", (*Interface).enterClearance),
	fsm.Action("Activation", (*Interface).enterActivation),
	fsm.Action("Working", (*Interface).enterWorking),
	fsm.Action("Stop", (*Interface).enterStop),
)

// Table returns the steering transition table.
func Table() *fsm.Table[*Interface] {
	return transitions
}

func (si *Interface) enterIdle(fsm.NoPayload) {}

func (si *Interface) enterClearance(fsm.NoPayload) {
	if !si.activationAllowed("Clearance") {
		si.eng.TriggerInternal(Stop, nil)
		return
	}
	si.send(si.encoder.Control(can.RequestClearance, uint8(si.ControlMode())))
}

// enterActivation sends the activation request once. Working is only reached
// through an explicit set_value.
func (si *Interface) enterActivation(fsm.NoPayload) {
	if !si.activationAllowed("Activation") {
		si.eng.TriggerInternal(Stop, nil)
		return
	}
	si.send(si.encoder.Control(can.RequestActivate, uint8(si.ControlMode())))
}

// enterWorking sends r as a value frame of the selected control mode. The
// gateway must report the matching ready state; any other combination is a
// logic leak and chains to Stop. A failed working guard leaves the interface
// in Working without a chained transition, unlike Clearance and Activation.
func (si *Interface) enterWorking(r Request) {
	mode := si.ControlMode()
	ready, frameID, known := mode.valueFrame()
	if si.debugMode && known {
		si.gatewayState.Store(uint32(ready))
	}

	g := si.currentGuards()
	workingOK := si.debugMode || g.WorkingRequirementsOK()
	stopping := !si.debugMode && g.HasStopConditions()
	if !workingOK || stopping {
		if !workingOK {
			si.logger.Warn("working requirements failed", "state", "Working")
		}
		if stopping {
			si.logger.Warn("stop condition present", "state", "Working")
		}
		return
	}

	if gw := si.GatewayState(); !known || gw != ready {
		si.logger.Error("logic condition leak", "state", "Working", "mode", mode, "gateway_state", gw)
		metrics.IncGuardRedirect(si.name, "Working", metrics.ReasonLogicLeak)
		si.eng.TriggerInternal(Stop, nil)
		return
	}
	si.logger.Debug("setpoint", "mode", mode, "value", r.Value())
	si.send(si.encoder.Value(frameID, r.Magnitude, r.Sign))
}

// enterStop sends the stop frame and re-enters Stop until the transport
// confirmed it, then moves to Idle.
func (si *Interface) enterStop(fsm.NoPayload) {
	si.send(si.encoder.Control(can.RequestStop, uint8(si.ControlMode())))

	if !si.stopNotified {
		si.stopNotified = true
		si.queueHeartbeat(TopicStop)
	}

	if !si.msgSent.Load() {
		si.eng.TriggerInternal(Stop, nil)
		return
	}
	si.msgSent.Store(false)
	si.stopNotified = false
	si.eng.TriggerInternal(Idle, nil)
}

// activationAllowed checks the Clearance/Activation guards, logging and
// counting every failure.
func (si *Interface) activationAllowed(state string) bool {
	if si.debugMode {
		return true
	}
	g := si.currentGuards()
	ok := true
	if !g.ActivationRequirementsOK() {
		si.logger.Warn("activation requirements failed", "state", state)
		metrics.IncGuardRedirect(si.name, state, metrics.ReasonActivationRequirements)
		ok = false
	}
	if g.HasStopConditions() {
		si.logger.Warn("stop condition present", "state", state)
		metrics.IncGuardRedirect(si.name, state, metrics.ReasonStopCondition)
		ok = false
	}
	return ok
}

func (si *Interface) currentGuards() Guards {
	return si.guards.Load().Guards
}

// send hands f to the transport. Delivery is fire-and-forget.
func (si *Interface) send(f can.Frame) {
	if err := si.transport.Send(f); err != nil {
		si.logger.Warn("send frame failed", "frame", f.String(), "error", err)
		return
	}
	si.logger.Debug("frame sent", "frame", f.String(), "len", f.Len())
}
