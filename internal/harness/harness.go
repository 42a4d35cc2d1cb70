package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/roach88/tablefsm/internal/can"
	"github.com/roach88/tablefsm/internal/fsm"
	"github.com/roach88/tablefsm/internal/ingress"
	"github.com/roach88/tablefsm/internal/recorder"
	"github.com/roach88/tablefsm/internal/steering"
	"github.com/roach88/tablefsm/internal/store"
	"github.com/roach88/tablefsm/internal/testutil"
)

// Harness executes one scenario against one steering interface.
type Harness struct {
	store    *store.Store
	recorder *recorder.Recorder
	si       *steering.Interface
	logger   *slog.Logger
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
// Deterministic helpers ensure reproducible results.
//
// Execution flow:
// 1. Create fresh in-memory database and recording session
// 2. Build the steering interface from the scenario config
// 3. Execute steps, checking step expectations
// 4. Read the timeline back and evaluate assertions
//
// The returned error reports harness failures (store, setup); failed
// expectations are in Result.Errors.
func Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	h, err := newHarness(ctx, st, scenario)
	if err != nil {
		return nil, err
	}

	result := NewResult()
	result.SessionID = h.recorder.SessionID()

	for i, step := range scenario.Steps {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		h.executeStep(i, step, result)
	}
	result.FinalState = h.si.StateName()

	if err := h.recorder.Err(); err != nil {
		return nil, fmt.Errorf("failed to record trace: %w", err)
	}

	timeline, err := st.ReadTimeline(ctx, h.recorder.SessionID())
	if err != nil {
		return nil, fmt.Errorf("failed to read trace: %w", err)
	}
	result.Trace = FromTimeline(timeline)

	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(errMsg)
	}

	return result, nil
}

func newHarness(ctx context.Context, st *store.Store, scenario *Scenario) (*Harness, error) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil)) // Suppress logs in tests

	rec, err := recorder.New(ctx, st, steering.MachineName,
		recorder.WithIDGenerator(testutil.NewFixedSessionGenerator(scenario.SessionID)),
		recorder.WithTransport(can.NopTransport{}),
		recorder.WithLogger(logger),
		recorder.WithLabel(scenario.Name),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create recorder: %w", err)
	}

	mode, err := steering.ParseControlMode(scenario.Config.ControlMode)
	if err != nil {
		return nil, err
	}
	guards := steering.Guards(steering.AllowAll)
	if scenario.Guards != nil {
		guards = scenario.Guards.Guards()
	}
	maxSteps := steering.DefaultMaxSteps
	if scenario.Config.MaxChainSteps != nil {
		maxSteps = *scenario.Config.MaxChainSteps
	}

	si, err := steering.New(
		steering.WithLogger(logger),
		steering.WithRecorder(rec),
		steering.WithDebugMode(scenario.Config.DebugMode),
		steering.WithControlMode(mode),
		steering.WithGatewayState(scenario.Config.GatewayState),
		steering.WithGuards(guards),
		steering.WithMaxSteps(maxSteps),
	)
	if err != nil {
		return nil, err
	}

	return &Harness{store: st, recorder: rec, si: si, logger: logger}, nil
}

// executeStep runs one step and checks its expectation.
func (h *Harness) executeStep(i int, step Step, result *Result) {
	err := h.apply(step)

	h.logger.Info("step completed",
		"step", i,
		"op", step.Op,
		"state", h.si.StateName(),
		"error", err,
	)

	expect := step.Expect
	if expect == nil {
		expect = &StepExpect{}
	}
	prefix := fmt.Sprintf("steps[%d] %s", i, step.Op)

	deferred := fsm.IsStepsExceededError(err)
	switch {
	case expect.Deferred && !deferred:
		result.AddError(fmt.Sprintf("%s: expected deferred drain, got %v", prefix, err))
	case expect.Error != "":
		if err == nil || !strings.Contains(err.Error(), expect.Error) {
			result.AddError(fmt.Sprintf("%s: expected error containing %q, got %v", prefix, expect.Error, err))
		}
	case err != nil && !(deferred && expect.Deferred):
		result.AddError(fmt.Sprintf("%s: unexpected error: %v", prefix, err))
	}

	if expect.State != "" && h.si.StateName() != expect.State {
		result.AddError(fmt.Sprintf("%s: expected state %s, got %s", prefix, expect.State, h.si.StateName()))
	}
}

func (h *Harness) apply(step Step) error {
	switch step.Op {
	case OpSendClearance:
		return h.si.SendClearance()
	case OpActivate:
		return h.si.Activate()
	case OpStop:
		return h.si.Stop()
	case OpSetValue:
		return ingress.ApplyValue(h.si, step.Value)
	case OpCode:
		return ingress.ApplyCode(h.si, *step.Code)
	case OpConfirmSent:
		h.si.ConfirmSent()
		return nil
	case OpDrain:
		return h.si.Update()
	case OpSetGuards:
		h.si.SetGuards(step.Guards.Guards())
		return nil
	case OpSetGatewayState:
		h.si.SetGatewayState(*step.GatewayState)
		return nil
	default:
		return fmt.Errorf("unknown op %q", step.Op)
	}
}
