package compiler

import (
	"testing"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tablefsm/internal/fsm"
)

const lampDef = `
machine: Lamp: {
	initial: "Off"
	states: ["Off", "On", "Broken"]
	events: {
		toggle: { Off: "On", On: "Off" }
		smash: { Off: "Broken", On: "Broken" }
	}
	chains: {
		Broken: ["Off"]
	}
}
`

func compileMachine(t *testing.T, src, name string) *MachineSpec {
	t.Helper()
	ctx := cuecontext.New()
	v := ctx.CompileString(src)
	require.NoError(t, v.Err())

	def, err := CompileMachine(v.LookupPath(cue.ParsePath("machine." + name)))
	require.NoError(t, err)
	return def
}

func TestCompileMachine(t *testing.T) {
	def := compileMachine(t, lampDef, "Lamp")

	assert.Equal(t, "Lamp", def.Name)
	assert.Equal(t, "Off", def.Initial)
	assert.Equal(t, []string{"Off", "On", "Broken"}, def.States)

	require.Len(t, def.Events, 2)
	assert.Equal(t, "toggle", def.Events[0].Name)
	assert.Equal(t, []Edge{{From: "Off", To: "On"}, {From: "On", To: "Off"}}, def.Events[0].Transitions)
	assert.Equal(t, "smash", def.Events[1].Name)

	assert.Equal(t, []ChainSpec{{From: "Broken", Targets: []string{"Off"}}}, def.Chains)
}

func TestCompileMachine_InitialDefaultsToFirstState(t *testing.T) {
	def := compileMachine(t, `machine: M: { states: ["A", "B"] }`, "M")

	assert.Equal(t, "A", def.Initial)
	assert.Empty(t, def.Events)
	assert.Empty(t, def.Chains)
}

func TestCompileMachine_MissingStates(t *testing.T) {
	ctx := cuecontext.New()
	v := ctx.CompileString(`machine: M: { initial: "A" }`)

	_, err := CompileMachine(v.LookupPath(cue.ParsePath("machine.M")))
	require.Error(t, err)

	var ce *CompileError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "states", ce.Field)
}

func TestCompileMachine_NonStringTarget(t *testing.T) {
	ctx := cuecontext.New()
	v := ctx.CompileString(`machine: M: { states: ["A"], events: { go: { A: 1 } } }`)

	_, err := CompileMachine(v.LookupPath(cue.ParsePath("machine.M")))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "events.go.A")
}

func TestCompileBytes(t *testing.T) {
	defs, err := CompileBytes("lamp.cue", []byte(lampDef))
	require.NoError(t, err)
	require.Len(t, defs, 1)
	assert.Equal(t, "Lamp", defs[0].Name)
}

func TestCompileBytes_NoMachines(t *testing.T) {
	_, err := CompileBytes("empty.cue", []byte(`other: 1`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no machine definitions found")
}

func TestCompileBytes_SyntaxError(t *testing.T) {
	_, err := CompileBytes("broken.cue", []byte("machine: {\n\tstates: [\n"))
	require.Error(t, err)
}

func TestEventMaps(t *testing.T) {
	def := compileMachine(t, lampDef, "Lamp")

	maps, err := def.EventMaps()
	require.NoError(t, err)
	require.Len(t, maps, 2)

	assert.Equal(t, fsm.EventMap{
		Event:   "toggle",
		Targets: []fsm.State{1, 0, fsm.Ignored},
	}, maps[0])
	assert.Equal(t, fsm.EventMap{
		Event:   "smash",
		Targets: []fsm.State{2, 2, fsm.Ignored},
	}, maps[1])
}

func TestEventMaps_UnknownState(t *testing.T) {
	def := &MachineSpec{
		States: []string{"A"},
		Events: []EventSpec{{Name: "go", Transitions: []Edge{{From: "A", To: "Z"}}}},
	}

	_, err := def.EventMaps()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown state "Z"`)
}

func TestStateIndex(t *testing.T) {
	def := compileMachine(t, lampDef, "Lamp")

	s, ok := def.StateIndex("Broken")
	assert.True(t, ok)
	assert.Equal(t, fsm.State(2), s)

	_, ok = def.StateIndex("Missing")
	assert.False(t, ok)
}
