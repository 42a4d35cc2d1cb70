package fsm

// Origin tells whether a transition was requested from outside the engine or
// chained by a state handler.
type Origin string

const (
	OriginExternal Origin = "external"
	OriginInternal Origin = "internal"
)

// Transition describes one executed step of the drain loop. Observers receive
// it after CurrentState has switched and before the target's handler runs.
type Transition struct {
	Machine  string
	Seq      int64 // Logical clock value
	Step     int   // 1-based step within the current drain
	From     State
	To       State
	FromName string
	ToName   string
	Payload  Payload
	Origin   Origin
}

// Observer is notified of every executed transition.
//
// Observers run on the draining goroutine while the engine lock is held; they
// must not trigger the engine that notifies them.
type Observer interface {
	OnTransition(t Transition)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Transition)

// OnTransition implements Observer.
func (f ObserverFunc) OnTransition(t Transition) { f(t) }

// Deferral describes a drain that stopped on the step budget with a
// transition still armed.
type Deferral struct {
	Machine     string
	Seq         int64
	State       State // Current state when the drain stopped
	StateName   string
	Pending     State
	PendingName string
	Steps       int
	Limit       int
}

// DeferralObserver is implemented by observers that also track deferred
// drains. The engine checks for it on every registered Observer.
type DeferralObserver interface {
	OnDeferred(d Deferral)
}
