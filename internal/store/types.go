package store

// EventKind classifies a trace event.
type EventKind string

const (
	KindTransition EventKind = "transition"
	KindFrame      EventKind = "frame"
	KindDeferred   EventKind = "deferred"
)

// Session is one recorded run of one machine.
type Session struct {
	ID      string
	Machine string
	Label   string

	// EventCount is filled by ListSessions.
	EventCount int
}

// Event is one row of a session timeline.
//
// Transition events use FromState, ToState, Origin, Step and the payload
// columns. Frame events use FrameID and FrameData. Deferred events use
// FromState (the state the drain stopped in), ToState (the still-armed
// target) and Step (steps taken).
type Event struct {
	SessionID   string
	Seq         int64
	Kind        EventKind
	FromState   string
	ToState     string
	Origin      string
	Step        int
	PayloadKind string
	Payload     string // JSON object
	FrameID     uint16
	FrameData   []byte
}
