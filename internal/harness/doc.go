// Package harness runs YAML scenarios against a steering interface and checks
// the recorded trace.
//
// # Scenario Format
//
//	name: e2e_steering
//	description: "Clearance, activation, two setpoints, stop"
//	session_id: test-session-e2e
//	config:
//	  debug_mode: true
//	  control_mode: angle
//	  gateway_state: 0
//	  max_chain_steps: 8
//	guards: { activation: true, working: true, stop_conditions: false }
//	steps:
//	  - op: send_clearance
//	    expect: { state: Clearance }
//	  - op: set_value
//	    value: -0.5
//	  - op: stop
//	    expect: { state: Stop, deferred: true }
//	assertions:
//	  - type: final_state
//	    state: Idle
//	  - type: frame_count
//	    frame_id: 0x111
//	    count: 2
//
// # Operations
//
//   - send_clearance, activate, stop: the external events
//   - set_value: value is decomposed into magnitude and sign
//   - code: an activation code from the command source (0 stop, 1 request)
//   - confirm_sent: the transport confirms the stop frame
//   - drain: resume a cascade deferred by the step budget
//   - set_guards: replace the guard answers
//   - set_gateway_state: set the reported gateway state
//
// # Assertion Types
//
//   - final_state: the state after the last step
//   - trace_order: states entered in this order (not necessarily adjacent)
//   - frame_count: frames sent with frame_id, or all frames if omitted
//   - deferred_count: drains deferred by the step budget
//
// # Deterministic Testing
//
// Every run uses a fresh in-memory store, a fixed session ID and a logical
// clock starting at 1, so the same scenario renders the same trace. Golden
// traces live in testdata/golden/<name>.golden.
package harness
