package harness

import (
	"fmt"
	"strings"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nState entries:\n")
	for _, event := range e.Trace {
		if event.Kind == "transition" {
			fmt.Fprintf(&buf, "  [%d] %s -> %s (%s)\n", event.Seq, event.From, event.To, event.Origin)
		}
	}

	return buf.String()
}

// assertFinalState checks the state after the last step.
func assertFinalState(result *Result, assertion Assertion) error {
	if result.FinalState == assertion.State {
		return nil
	}
	return &AssertionError{
		Type:     AssertFinalState,
		Expected: assertion.State,
		Actual:   result.FinalState,
		Trace:    result.Trace,
	}
}

// assertTraceOrder checks that states were entered in the specified order.
// Entries don't need to be consecutive (intervening entries are allowed).
func assertTraceOrder(result *Result, assertion Assertion) error {
	next := 0
	for _, event := range result.Trace {
		if next == len(assertion.States) {
			break
		}
		if event.Kind == "transition" && event.To == assertion.States[next] {
			next++
		}
	}

	if next < len(assertion.States) {
		return &AssertionError{
			Type:     AssertTraceOrder,
			Expected: fmt.Sprintf("states entered in order: %v", assertion.States),
			Actual: fmt.Sprintf("matched %v, missing %s",
				assertion.States[:next], assertion.States[next]),
			Trace: result.Trace,
		}
	}
	return nil
}

// assertFrameCount checks the number of frames sent.
func assertFrameCount(result *Result, assertion Assertion) error {
	count := 0
	for _, event := range result.Trace {
		if event.Kind != "frame" {
			continue
		}
		if assertion.FrameID == nil || event.FrameID == *assertion.FrameID {
			count++
		}
	}

	if count != assertion.Count {
		what := "frames"
		if assertion.FrameID != nil {
			what = fmt.Sprintf("frames with id 0x%03X", *assertion.FrameID)
		}
		return &AssertionError{
			Type:     AssertFrameCount,
			Expected: fmt.Sprintf("%d %s", assertion.Count, what),
			Actual:   fmt.Sprintf("%d %s", count, what),
			Trace:    result.Trace,
		}
	}
	return nil
}

// assertDeferredCount checks the number of deferred drains.
func assertDeferredCount(result *Result, assertion Assertion) error {
	count := 0
	for _, event := range result.Trace {
		if event.Kind == "deferred" {
			count++
		}
	}

	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertDeferredCount,
			Expected: fmt.Sprintf("%d deferred drains", assertion.Count),
			Actual:   fmt.Sprintf("%d deferred drains", count),
			Trace:    result.Trace,
		}
	}
	return nil
}

// EvaluateAssertions runs all assertions and returns error messages.
// Returns an empty slice if all assertions pass.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	errors := []string{}

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertFinalState:
			err = assertFinalState(result, assertion)
		case AssertTraceOrder:
			err = assertTraceOrder(result, assertion)
		case AssertFrameCount:
			err = assertFrameCount(result, assertion)
		case AssertDeferredCount:
			err = assertDeferredCount(result, assertion)
		default:
			err = fmt.Errorf("unknown assertion type: %s", assertion.Type)
		}

		if err != nil {
			errors = append(errors, fmt.Sprintf("assertion %d (%s): %v", i, assertion.Type, err))
		}
	}

	return errors
}
