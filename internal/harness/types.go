package harness

import (
	"fmt"

	"github.com/roach88/tablefsm/internal/can"
	"github.com/roach88/tablefsm/internal/store"
)

// TraceEvent is one recorded event of a scenario run.
type TraceEvent struct {
	Seq         int64  `json:"seq"`
	Kind        string `json:"kind"` // "transition", "frame" or "deferred"
	From        string `json:"from,omitempty"`
	To          string `json:"to,omitempty"`
	Origin      string `json:"origin,omitempty"`
	Step        int    `json:"step,omitempty"`
	PayloadKind string `json:"payload_kind,omitempty"`
	Payload     string `json:"payload,omitempty"`
	Frame       string `json:"frame,omitempty"` // cansend form
	FrameID     uint16 `json:"frame_id,omitempty"`
}

// FromTimeline converts a stored session timeline.
func FromTimeline(events []store.Event) []TraceEvent {
	trace := make([]TraceEvent, 0, len(events))
	for _, ev := range events {
		trace = append(trace, traceEventFromStore(ev))
	}
	return trace
}

// traceEventFromStore converts a stored timeline row.
func traceEventFromStore(ev store.Event) TraceEvent {
	te := TraceEvent{Seq: ev.Seq, Kind: string(ev.Kind)}
	switch ev.Kind {
	case store.KindFrame:
		f := can.Frame{ID: ev.FrameID, Data: ev.FrameData}
		te.Frame = f.String()
		te.FrameID = ev.FrameID
	case store.KindDeferred:
		te.From = ev.FromState
		te.To = ev.ToState
		te.Step = ev.Step
	default:
		te.From = ev.FromState
		te.To = ev.ToState
		te.Origin = ev.Origin
		te.Step = ev.Step
		te.PayloadKind = ev.PayloadKind
		te.Payload = ev.Payload
	}
	return te
}

// String renders the event as one trace line without its seq.
func (e TraceEvent) String() string {
	switch e.Kind {
	case "frame":
		return fmt.Sprintf("frame      %s", e.Frame)
	case "deferred":
		return fmt.Sprintf("deferred   %s pending=%s steps=%d", e.From, e.To, e.Step)
	default:
		return fmt.Sprintf("transition %s -> %s %s step=%d %s %s",
			e.From, e.To, e.Origin, e.Step, e.PayloadKind, e.Payload)
	}
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true if every step expectation and assertion held.
	Pass bool `json:"pass"`

	// SessionID identifies the recorded session.
	SessionID string `json:"session_id"`

	// FinalState is the state after the last step.
	FinalState string `json:"final_state"`

	// Trace is the recorded timeline ordered by seq.
	Trace []TraceEvent `json:"trace"`

	// Errors contains failed expectations. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
