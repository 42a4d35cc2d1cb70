package fsm

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
)

// DefaultMaxSteps is the default step budget of one drain.
// It bounds self-chaining handlers; see package documentation.
const DefaultMaxSteps = 32

// pending is the single transition slot. Only the engine touches it.
type pending struct {
	target    State
	payload   Payload
	generated bool
	origin    Origin
}

type config struct {
	name      string
	initial   State
	maxSteps  int
	logger    *slog.Logger
	observers []Observer
	clock     *Clock
}

// Option configures an Engine.
type Option func(*config)

// WithName sets the machine name used in logs, observers and errors.
func WithName(name string) Option {
	return func(c *config) {
		c.name = name
	}
}

// WithInitialState sets the state the engine starts in. The state's handler
// is not run. Default: state 0.
func WithInitialState(s State) Option {
	return func(c *config) {
		c.initial = s
	}
}

// WithMaxSteps sets the step budget of a single drain.
//
// Default: 32 (DefaultMaxSteps). Use 0 for an unbounded drain.
func WithMaxSteps(n int) Option {
	return func(c *config) {
		c.maxSteps = n
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		c.logger = l
	}
}

// WithObserver adds an observer. Observers are notified in the order added.
func WithObserver(o Observer) Option {
	return func(c *config) {
		c.observers = append(c.observers, o)
	}
}

// WithClock shares a logical clock with other components.
func WithClock(clock *Clock) Option {
	return func(c *config) {
		c.clock = clock
	}
}

// Engine executes transitions of one machine instance.
//
// C is the owner type handed to every handler; typically a pointer to the
// concrete machine that embeds the engine.
//
// Thread-safety model:
//   - TriggerExternal, Drain, Pending: safe from any goroutine, serialized by
//     the engine mutex; never call them from a handler of the same engine
//   - TriggerInternal: only from a handler of this engine (the drain loop
//     holds the mutex), or while no other goroutine triggers the engine
//   - CurrentState: safe from anywhere
//
// INVARIANTS:
//   - CurrentState() < table.Len() at all times
//   - at most one pending transition exists; re-arming overwrites it
type Engine[C any] struct {
	mu sync.Mutex

	owner   C
	table   *Table[C]
	name    string
	current atomic.Uint32
	pending pending

	maxSteps  int
	clock     *Clock
	logger    *slog.Logger
	observers []Observer
}

// New creates an Engine driving table on behalf of owner.
func New[C any](owner C, table *Table[C], opts ...Option) (*Engine[C], error) {
	if table == nil {
		return nil, &ContractError{Code: ErrCodeTableSize, Message: "nil transition table"}
	}

	cfg := config{
		name:     "fsm",
		maxSteps: DefaultMaxSteps,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	if int(cfg.initial) >= table.Len() {
		return nil, NewStateOutOfRangeError(cfg.initial, table.Len())
	}
	if cfg.maxSteps < 0 {
		return nil, fmt.Errorf("max steps must be >= 0, got %d", cfg.maxSteps)
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}
	if cfg.clock == nil {
		cfg.clock = NewClock()
	}

	e := &Engine[C]{
		owner:     owner,
		table:     table,
		name:      cfg.name,
		maxSteps:  cfg.maxSteps,
		clock:     cfg.clock,
		logger:    cfg.logger,
		observers: cfg.observers,
	}
	e.current.Store(uint32(cfg.initial))

	return e, nil
}

// Name returns the machine name.
func (e *Engine[C]) Name() string {
	return e.name
}

// Table returns the engine's transition table.
func (e *Engine[C]) Table() *Table[C] {
	return e.table
}

// CurrentState returns the state entered last.
func (e *Engine[C]) CurrentState() State {
	return State(e.current.Load())
}

// StateName returns the display name of s.
func (e *Engine[C]) StateName(s State) string {
	return e.table.Name(s)
}

// TriggerExternal requests a transition from outside the engine and drains
// every transition it chains before returning.
//
// A target of Ignored is a no-op. The returned error is nil unless the drain
// exhausted the step budget (*StepsExceededError).
func (e *Engine[C]) TriggerExternal(target State, p Payload) error {
	if target == Ignored {
		e.logger.Debug("event ignored",
			"machine", e.name,
			"state", e.table.Name(e.CurrentState()),
		)
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.arm(target, p, OriginExternal)
	return e.runUntilDrained()
}

// TriggerEvent resolves m against the current state and triggers the result
// while holding the engine lock, so concurrent callers never resolve against
// a state another caller is about to leave. An event the current state
// ignores is a no-op.
func (e *Engine[C]) TriggerEvent(m EventMap, p Payload) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	current := e.CurrentState()
	if m.Ignores(current) {
		e.logger.Debug("event ignored",
			"machine", e.name,
			"event", m.Event,
			"state", e.table.Name(current),
		)
		return nil
	}

	e.arm(m.Resolve(current), p, OriginExternal)
	return e.runUntilDrained()
}

// TriggerInternal arms the pending slot with target, overwriting anything not
// yet drained. A nil payload becomes NoPayload{}.
//
// From a handler this chains target after the handler returns, within the
// same TriggerExternal call.
func (e *Engine[C]) TriggerInternal(target State, p Payload) {
	e.arm(target, p, OriginInternal)
}

// Drain runs the drain loop for a transition left armed by an exhausted step
// budget (or armed with TriggerInternal from outside a handler). Draining an
// empty slot is a no-op.
func (e *Engine[C]) Drain() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.runUntilDrained()
}

// Pending returns the armed target, if any.
func (e *Engine[C]) Pending() (State, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.pending.target, e.pending.generated
}

func (e *Engine[C]) arm(target State, p Payload, origin Origin) {
	if e.pending.generated {
		e.logger.Debug("pending transition overwritten",
			"machine", e.name,
			"dropped", e.table.Name(e.pending.target),
			"target", e.table.Name(target),
		)
	}
	e.pending = pending{
		target:    target,
		payload:   orNoPayload(p),
		generated: true,
		origin:    origin,
	}
}

// runUntilDrained executes pending transitions until no handler re-arms the
// slot or the step budget is spent. Caller holds e.mu.
func (e *Engine[C]) runUntilDrained() error {
	steps := 0
	for e.pending.generated {
		if e.maxSteps > 0 && steps >= e.maxSteps {
			err := &StepsExceededError{
				Machine: e.name,
				Pending: e.table.Name(e.pending.target),
				Steps:   steps,
				Limit:   e.maxSteps,
			}
			// A state re-entering itself is a retry loop waiting on the
			// outside; anything else is a runaway cascade.
			level := slog.LevelWarn
			if e.pending.target == e.CurrentState() {
				level = slog.LevelDebug
			}
			e.logger.Log(context.Background(), level, "drain deferred",
				"machine", e.name,
				"pending", err.Pending,
				"steps", steps,
				"limit", e.maxSteps,
			)
			e.notifyDeferred(steps)
			return err
		}

		target := e.pending.target
		if int(target) >= e.table.Len() {
			e.pending = pending{}
			panic(NewStateOutOfRangeError(target, e.table.Len()))
		}
		dispatcher := e.table.Lookup(target)

		// Take the payload and clear the flag before the handler runs, so a
		// handler calling TriggerInternal re-arms the loop and sees the new
		// CurrentState.
		payload := e.pending.payload
		origin := e.pending.origin
		e.pending.payload = nil
		e.pending.generated = false

		from := e.CurrentState()
		e.current.Store(uint32(target))
		steps++

		t := Transition{
			Machine:  e.name,
			Seq:      e.clock.Next(),
			Step:     steps,
			From:     from,
			To:       target,
			FromName: e.table.Name(from),
			ToName:   dispatcher.Name(),
			Payload:  payload,
			Origin:   origin,
		}
		e.logger.Debug("entering state",
			"machine", e.name,
			"from", t.FromName,
			"to", t.ToName,
			"origin", origin,
			"payload", payload.PayloadKind(),
			"step", steps,
		)
		for _, o := range e.observers {
			o.OnTransition(t)
		}

		dispatcher.Invoke(e.owner, payload)
	}
	return nil
}

func (e *Engine[C]) notifyDeferred(steps int) {
	current := e.CurrentState()
	d := Deferral{
		Machine:     e.name,
		Seq:         e.clock.Next(),
		State:       current,
		StateName:   e.table.Name(current),
		Pending:     e.pending.target,
		PendingName: e.table.Name(e.pending.target),
		Steps:       steps,
		Limit:       e.maxSteps,
	}
	for _, o := range e.observers {
		if do, ok := o.(DeferralObserver); ok {
			do.OnDeferred(d)
		}
	}
}
