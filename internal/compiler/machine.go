// Package compiler compiles CUE machine definitions into event maps and checks
// them against the Go transition tables.
//
// A definition looks like:
//
//	machine: SteeringInterface: {
//		initial: "Idle"
//		states: ["Idle", "Clearance", "Activation", "Working", "Stop"]
//		events: {
//			send_clearance: { Idle: "Clearance" }
//			stop: { Clearance: "Stop", Activation: "Stop", Working: "Stop" }
//		}
//		chains: {
//			Stop: ["Stop", "Idle"]
//		}
//	}
//
// States an event does not list ignore it. chains documents the internal
// transitions each state's handler may request; it feeds cycle analysis only.
package compiler

import (
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/tablefsm/internal/fsm"
)

// MachineSpec is a compiled machine definition.
type MachineSpec struct {
	Name    string
	Initial string
	States  []string
	Events  []EventSpec
	Chains  []ChainSpec
}

// EventSpec lists the transitions of one external event in source order.
type EventSpec struct {
	Name        string
	Transitions []Edge
}

// ChainSpec lists the internal targets a state's handler may request.
type ChainSpec struct {
	From    string
	Targets []string
}

// Edge is one from → to pair.
type Edge struct {
	From string
	To   string
}

// CompileFile compiles every machine in a CUE file.
func CompileFile(path string) ([]*MachineSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return CompileBytes(path, data)
}

// CompileBytes compiles every machine under the top-level "machine" field.
// filename is used in error positions.
func CompileBytes(filename string, data []byte) ([]*MachineSpec, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(data, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	machines := v.LookupPath(cue.ParsePath("machine"))
	if !machines.Exists() {
		return nil, &CompileError{
			Field:   "machine",
			Message: "no machine definitions found",
			Pos:     v.Pos(),
		}
	}

	iter, err := machines.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var defs []*MachineSpec
	for iter.Next() {
		def, err := CompileMachine(iter.Value())
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	return defs, nil
}

// CompileMachine parses a CUE value into a MachineSpec. The value should be
// the machine struct itself, e.g. the value at path "machine.Steering".
func CompileMachine(v cue.Value) (*MachineSpec, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	def := &MachineSpec{}

	// Name from the struct label
	labels := v.Path().Selectors()
	if len(labels) > 0 {
		def.Name = labels[len(labels)-1].String()
	}

	statesVal := v.LookupPath(cue.ParsePath("states"))
	if !statesVal.Exists() {
		return nil, &CompileError{
			Field:   "states",
			Message: "states is required",
			Pos:     v.Pos(),
		}
	}
	states, err := stringList(statesVal)
	if err != nil {
		return nil, err
	}
	def.States = states

	initialVal := v.LookupPath(cue.ParsePath("initial"))
	if initialVal.Exists() {
		initial, err := initialVal.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		def.Initial = initial
	} else if len(def.States) > 0 {
		def.Initial = def.States[0]
	}

	def.Events, err = parseEvents(v)
	if err != nil {
		return nil, err
	}

	def.Chains, err = parseChains(v)
	if err != nil {
		return nil, err
	}

	return def, nil
}

// parseEvents parses the events struct: event name → { from: to }.
func parseEvents(v cue.Value) ([]EventSpec, error) {
	eventsVal := v.LookupPath(cue.ParsePath("events"))
	if !eventsVal.Exists() {
		return nil, nil
	}

	iter, err := eventsVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var events []EventSpec
	for iter.Next() {
		event := EventSpec{Name: iter.Label()}

		edges, err := iter.Value().Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for edges.Next() {
			to, err := edges.Value().String()
			if err != nil {
				return nil, &CompileError{
					Field:   fmt.Sprintf("events.%s.%s", event.Name, edges.Label()),
					Message: "target must be a state name",
					Pos:     edges.Value().Pos(),
				}
			}
			event.Transitions = append(event.Transitions, Edge{From: edges.Label(), To: to})
		}
		events = append(events, event)
	}
	return events, nil
}

// parseChains parses the optional chains struct: state → [targets].
func parseChains(v cue.Value) ([]ChainSpec, error) {
	chainsVal := v.LookupPath(cue.ParsePath("chains"))
	if !chainsVal.Exists() {
		return nil, nil
	}

	iter, err := chainsVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var chains []ChainSpec
	for iter.Next() {
		targets, err := stringList(iter.Value())
		if err != nil {
			return nil, err
		}
		chains = append(chains, ChainSpec{From: iter.Label(), Targets: targets})
	}
	return chains, nil
}

func stringList(v cue.Value) ([]string, error) {
	list, err := v.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var out []string
	for list.Next() {
		s, err := list.Value().String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		out = append(out, s)
	}
	return out, nil
}

// StateIndex returns the index of a state name.
func (s *MachineSpec) StateIndex(name string) (fsm.State, bool) {
	for i, st := range s.States {
		if st == name {
			return fsm.State(i), true
		}
	}
	return 0, false
}

// EventMaps converts the events to fsm.EventMaps. Call Validate first; an
// unknown state name is reported as an error.
func (s *MachineSpec) EventMaps() ([]fsm.EventMap, error) {
	maps := make([]fsm.EventMap, 0, len(s.Events))
	for _, ev := range s.Events {
		targets := make([]fsm.State, len(s.States))
		for i := range targets {
			targets[i] = fsm.Ignored
		}
		for _, e := range ev.Transitions {
			from, ok := s.StateIndex(e.From)
			if !ok {
				return nil, fmt.Errorf("event %s: unknown state %q", ev.Name, e.From)
			}
			to, ok := s.StateIndex(e.To)
			if !ok {
				return nil, fmt.Errorf("event %s: unknown state %q", ev.Name, e.To)
			}
			targets[from] = to
		}
		maps = append(maps, fsm.EventMap{Event: ev.Name, Targets: targets})
	}
	if err := fsm.ValidateEventMaps(len(s.States), maps...); err != nil {
		return nil, err
	}
	return maps, nil
}

// CompileError is a compile failure with its CUE source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
