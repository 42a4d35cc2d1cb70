package harness

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tablefsm/internal/testutil"
)

func u8(v uint8) *uint8 { return &v }

func TestRun_MinimalScenario(t *testing.T) {
	sc, err := ParseScenario([]byte(minimalYAML))
	require.NoError(t, err)

	result, err := Run(context.Background(), sc)
	require.NoError(t, err)

	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Equal(t, testutil.DefaultSessionID, result.SessionID)
	assert.Equal(t, "Clearance", result.FinalState)

	// transition + clearance frame
	require.Len(t, result.Trace, 2)
	assert.Equal(t, "transition", result.Trace[0].Kind)
	assert.Equal(t, "Idle", result.Trace[0].From)
	assert.Equal(t, "Clearance", result.Trace[0].To)
	assert.Equal(t, "frame", result.Trace[1].Kind)
	assert.Equal(t, "0x110#01000001", result.Trace[1].Frame)
}

func TestRun_TestdataScenariosPass(t *testing.T) {
	for _, name := range []string{"debug_torque", "e2e_steering", "guard_redirect", "torque_gateway", "working_guard"} {
		t.Run(name, func(t *testing.T) {
			sc, err := LoadScenario("testdata/scenarios/" + name + ".yaml")
			require.NoError(t, err)

			result, err := Run(context.Background(), sc)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
		})
	}
}

func TestRun_StepExpectationFailures(t *testing.T) {
	sc := &Scenario{
		Name:        "expectations",
		Description: "every kind of step expectation failing",
		Steps: []Step{
			{Op: OpSendClearance, Expect: &StepExpect{State: "Working"}},
			{Op: OpStop, Expect: &StepExpect{Error: "boom"}},
			{Op: OpCode, Code: u8(9)},
			{Op: OpConfirmSent},
			{Op: OpDrain, Expect: &StepExpect{Deferred: true}},
		},
		Assertions: []Assertion{{Type: AssertFinalState, State: "Idle"}},
	}

	result, err := Run(context.Background(), sc)
	require.NoError(t, err)

	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 4)
	assert.Contains(t, result.Errors[0], "expected state Working, got Clearance")
	assert.Contains(t, result.Errors[1], `expected error containing "boom"`)
	assert.Contains(t, result.Errors[2], "unexpected error")
	assert.Contains(t, result.Errors[3], "expected deferred drain")
}

func TestRun_UnexpectedDeferralFails(t *testing.T) {
	sc := &Scenario{
		Name:        "unexpected_deferral",
		Description: "stop without confirmation defers",
		Steps: []Step{
			{Op: OpSendClearance},
			{Op: OpStop},
		},
		Assertions: []Assertion{{Type: AssertFinalState, State: "Stop"}},
	}

	result, err := Run(context.Background(), sc)
	require.NoError(t, err)

	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "steps[1] stop: unexpected error")
}

func TestRun_MaxChainStepsFromConfig(t *testing.T) {
	steps := 3
	sc := &Scenario{
		Name:        "budget",
		Description: "stop defers after three entries",
		Config:      ScenarioConfig{MaxChainSteps: &steps},
		Steps: []Step{
			{Op: OpSendClearance},
			{Op: OpStop, Expect: &StepExpect{Deferred: true}},
		},
		Assertions: []Assertion{
			{Type: AssertDeferredCount, Count: 1},
			{Type: AssertFrameCount, Count: 4}, // clearance + three stop frames
		},
	}

	result, err := Run(context.Background(), sc)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_CanceledContext(t *testing.T) {
	sc, err := ParseScenario([]byte(minimalYAML))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = Run(ctx, sc)
	require.Error(t, err)
}

func TestRun_Deterministic(t *testing.T) {
	sc, err := LoadScenario("testdata/scenarios/e2e_steering.yaml")
	require.NoError(t, err)

	first, err := Run(context.Background(), sc)
	require.NoError(t, err)
	second, err := Run(context.Background(), sc)
	require.NoError(t, err)

	assert.Equal(t, RenderTrace(sc.Name, first), RenderTrace(sc.Name, second))
}
