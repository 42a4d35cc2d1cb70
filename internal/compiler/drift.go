package compiler

import (
	"fmt"

	"github.com/roach88/tablefsm/internal/fsm"
)

// Drift compares a compiled machine with the Go tables (state names in state
// order and the external event maps). It returns one line per difference; an
// empty result means the definition matches.
func Drift(def *MachineSpec, states []string, maps []fsm.EventMap) []string {
	var diffs []string

	if !equalStrings(def.States, states) {
		diffs = append(diffs, fmt.Sprintf("states: definition %v, tables %v", def.States, states))
		return diffs
	}

	compiled, err := def.EventMaps()
	if err != nil {
		return append(diffs, fmt.Sprintf("events: %v", err))
	}

	byName := make(map[string]fsm.EventMap, len(compiled))
	for _, m := range compiled {
		byName[m.Event] = m
	}

	name := func(s fsm.State) string {
		if s == fsm.Ignored {
			return "ignored"
		}
		if int(s) < len(states) {
			return states[s]
		}
		return fmt.Sprintf("State(%d)", s)
	}

	for _, want := range maps {
		got, ok := byName[want.Event]
		if !ok {
			diffs = append(diffs, fmt.Sprintf("event %s: missing from definition", want.Event))
			continue
		}
		delete(byName, want.Event)
		for from := range states {
			w, g := want.Resolve(fsm.State(from)), got.Resolve(fsm.State(from))
			if w != g {
				diffs = append(diffs, fmt.Sprintf("event %s from %s: definition %s, tables %s",
					want.Event, states[from], name(g), name(w)))
			}
		}
	}
	for _, m := range compiled {
		if _, extra := byName[m.Event]; extra {
			diffs = append(diffs, fmt.Sprintf("event %s: not in tables", m.Event))
		}
	}

	return diffs
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
