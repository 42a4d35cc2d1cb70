// Package steering implements the steering interface state machine: it
// mediates between a command source (clearance, activation, setpoints, stop)
// and the CAN transport, refusing to steer unless the vehicle guards allow
// it.
//
// States: Idle, Clearance, Activation, Working, Stop. External operations
// resolve their target through fixed per-event maps (see EventMaps); entry
// handlers check guards, send frames and redirect to Stop on failure.
//
// Stop waits for the transport to confirm the stop frame was sent
// (ConfirmSent). Until then it re-enters itself; the engine's step budget
// defers that loop and Update resumes it.
package steering

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/roach88/tablefsm/internal/can"
	"github.com/roach88/tablefsm/internal/fsm"
	"github.com/roach88/tablefsm/internal/heartbeat"
)

// DefaultMaxSteps is the step budget of one steering drain.
const DefaultMaxSteps = 8

// TopicStop is the heartbeat posted when the interface enters Stop.
const TopicStop = "stop"

// ErrAwaitingConfirmation is returned when a drain stops in Stop because the
// stop frame is not confirmed yet. The returned error also satisfies
// fsm.IsStepsExceededError; ConfirmSent followed by Update completes the stop.
var ErrAwaitingConfirmation = errors.New("stop awaiting send confirmation")

// Recorder observes transitions and carries frames, stamping both from one
// clock.
type Recorder interface {
	fsm.Observer
	can.Transport
	Clock() *fsm.Clock
}

type settings struct {
	name         string
	logger       *slog.Logger
	transport    can.Transport
	heartbeats   *heartbeat.Registry
	guards       Guards
	debugMode    bool
	mode         ControlMode
	gatewayState uint8
	maxSteps     int
	observers    []fsm.Observer
	clock        *fsm.Clock
	recorder     Recorder
}

// Option configures an Interface.
type Option func(*settings)

// WithName overrides the machine name. Default: MachineName.
func WithName(name string) Option {
	return func(s *settings) { s.name = name }
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *settings) { s.logger = l }
}

// WithTransport sets the frame transport. Default: can.NopTransport.
func WithTransport(t can.Transport) Option {
	return func(s *settings) { s.transport = t }
}

// WithHeartbeats shares a heartbeat registry. Default: a private registry.
func WithHeartbeats(r *heartbeat.Registry) Option {
	return func(s *settings) { s.heartbeats = r }
}

// WithGuards sets the guard source. Default: AllowAll.
func WithGuards(g Guards) Option {
	return func(s *settings) { s.guards = g }
}

// WithDebugMode bypasses every guard and, on entering Working, pins the
// gateway state to the one the selected control mode needs.
func WithDebugMode(on bool) Option {
	return func(s *settings) { s.debugMode = on }
}

// WithControlMode sets the initial control mode. Default: ModeAngle.
func WithControlMode(m ControlMode) Option {
	return func(s *settings) { s.mode = m }
}

// WithGatewayState sets the initial gateway state.
func WithGatewayState(v uint8) Option {
	return func(s *settings) { s.gatewayState = v }
}

// WithMaxSteps sets the engine step budget. Default: DefaultMaxSteps; 0 is
// unbounded.
func WithMaxSteps(n int) Option {
	return func(s *settings) { s.maxSteps = n }
}

// WithObserver adds an engine observer.
func WithObserver(o fsm.Observer) Option {
	return func(s *settings) { s.observers = append(s.observers, o) }
}

// WithClock shares a logical clock with the engine.
func WithClock(c *fsm.Clock) Option {
	return func(s *settings) { s.clock = c }
}

// WithRecorder records the interface: r becomes the frame transport and an
// observer, and the engine stamps transitions from r's clock. It takes
// precedence over WithTransport and WithClock; r forwards frames itself.
func WithRecorder(r Recorder) Option {
	return func(s *settings) { s.recorder = r }
}

// Interface is one steering interface instance.
//
// The external operations are safe for concurrent use. Heartbeats queued by a
// handler are delivered after the operation's drain returns, outside the
// engine lock, so a listener may call back into any machine.
type Interface struct {
	eng *fsm.Engine[*Interface]

	name       string
	logger     *slog.Logger
	transport  can.Transport
	encoder    *can.Encoder
	heartbeats *heartbeat.Registry
	debugMode  bool

	mode         atomic.Uint32
	gatewayState atomic.Uint32
	guards       atomic.Pointer[guardSet]
	msgSent      atomic.Bool

	// stopNotified is only touched by handlers, under the engine lock.
	stopNotified bool

	hbMu   sync.Mutex
	queued []string
}

// New creates a steering interface in Idle.
func New(opts ...Option) (*Interface, error) {
	s := settings{
		name:     MachineName,
		guards:   AllowAll,
		maxSteps: DefaultMaxSteps,
	}
	for _, opt := range opts {
		opt(&s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.recorder != nil {
		s.transport = s.recorder
		s.clock = s.recorder.Clock()
		s.observers = append(s.observers, s.recorder)
	}
	if s.transport == nil {
		s.transport = can.NopTransport{}
	}
	if s.heartbeats == nil {
		s.heartbeats = heartbeat.NewRegistry()
	}
	if s.guards == nil {
		s.guards = AllowAll
	}

	si := &Interface{
		name:       s.name,
		logger:     s.logger.With("machine", s.name),
		transport:  s.transport,
		encoder:    can.NewEncoder(),
		heartbeats: s.heartbeats,
		debugMode:  s.debugMode,
	}
	si.mode.Store(uint32(s.mode))
	si.gatewayState.Store(uint32(s.gatewayState))
	si.guards.Store(&guardSet{s.guards})

	engOpts := []fsm.Option{
		fsm.WithName(s.name),
		fsm.WithInitialState(Idle),
		fsm.WithMaxSteps(s.maxSteps),
		fsm.WithLogger(s.logger),
	}
	if s.clock != nil {
		engOpts = append(engOpts, fsm.WithClock(s.clock))
	}
	for _, o := range s.observers {
		engOpts = append(engOpts, fsm.WithObserver(o))
	}

	eng, err := fsm.New(si, transitions, engOpts...)
	if err != nil {
		return nil, fmt.Errorf("create %s engine: %w", s.name, err)
	}
	si.eng = eng
	return si, nil
}

// SetValue requests a setpoint. Leads to Working from Activation or Working.
func (si *Interface) SetValue(r Request) error {
	return si.fire(setValueMap, r)
}

// Stop requests the interface to stop. Leads to Stop from Clearance,
// Activation or Working.
func (si *Interface) Stop() error {
	return si.fire(stopMap, nil)
}

// SendClearance requests clearance. Leads to Clearance from Idle.
func (si *Interface) SendClearance() error {
	return si.fire(sendClearanceMap, nil)
}

// Activate requests activation. Leads to Activation from Clearance.
func (si *Interface) Activate() error {
	return si.fire(activateMap, nil)
}

// Fire triggers the named external event. Request payloads are only valid
// for EventSetValue.
func (si *Interface) Fire(event string, p fsm.Payload) error {
	for _, m := range []fsm.EventMap{setValueMap, stopMap, sendClearanceMap, activateMap} {
		if m.Event == event {
			return si.fire(m, p)
		}
	}
	return fmt.Errorf("unknown event %q", event)
}

// ConfirmSent marks the stop frame as sent. The transport collaborator calls
// it; the next drain of Stop moves the interface to Idle.
func (si *Interface) ConfirmSent() {
	si.msgSent.Store(true)
}

// Update resumes a cascade deferred by the step budget. It is a no-op when
// nothing is pending.
func (si *Interface) Update() error {
	err := si.eng.Drain()
	si.flushHeartbeats()
	return si.classify(err)
}

func (si *Interface) fire(m fsm.EventMap, p fsm.Payload) error {
	err := si.eng.TriggerEvent(m, p)
	si.flushHeartbeats()
	return si.classify(err)
}

// classify marks a drain deferred by the Stop retry loop as the normal wait
// for ConfirmSent.
func (si *Interface) classify(err error) error {
	var se *fsm.StepsExceededError
	if !errors.As(err, &se) {
		return err
	}
	target, armed := si.eng.Pending()
	if armed && target == Stop && si.eng.CurrentState() == Stop && !si.msgSent.Load() {
		return fmt.Errorf("%w: %w", ErrAwaitingConfirmation, err)
	}
	return err
}

// CurrentState returns the current state.
func (si *Interface) CurrentState() fsm.State {
	return si.eng.CurrentState()
}

// StateName returns the name of the current state.
func (si *Interface) StateName() string {
	return si.eng.StateName(si.eng.CurrentState())
}

// Pending returns the transition left armed by a deferred drain, if any.
func (si *Interface) Pending() (fsm.State, bool) {
	return si.eng.Pending()
}

// Name returns the machine name.
func (si *Interface) Name() string {
	return si.name
}

// DebugMode reports whether guards are bypassed.
func (si *Interface) DebugMode() bool {
	return si.debugMode
}

// SetControlMode selects angle or torque control for subsequent frames.
func (si *Interface) SetControlMode(m ControlMode) {
	si.mode.Store(uint32(m))
}

// ControlMode returns the selected control mode.
func (si *Interface) ControlMode() ControlMode {
	return ControlMode(si.mode.Load())
}

// SetGatewayState records the state reported by the vehicle gateway.
func (si *Interface) SetGatewayState(v uint8) {
	si.gatewayState.Store(uint32(v))
}

// GatewayState returns the last gateway state.
func (si *Interface) GatewayState() uint8 {
	return uint8(si.gatewayState.Load())
}

// SetGuards replaces the guard source. nil restores AllowAll.
func (si *Interface) SetGuards(g Guards) {
	if g == nil {
		g = AllowAll
	}
	si.guards.Store(&guardSet{g})
}

// Heartbeats returns the registry stop heartbeats are posted to.
func (si *Interface) Heartbeats() *heartbeat.Registry {
	return si.heartbeats
}

func (si *Interface) queueHeartbeat(topic string) {
	si.hbMu.Lock()
	si.queued = append(si.queued, topic)
	si.hbMu.Unlock()
}

func (si *Interface) flushHeartbeats() {
	si.hbMu.Lock()
	topics := si.queued
	si.queued = nil
	si.hbMu.Unlock()

	for _, topic := range topics {
		n := si.heartbeats.Notify(topic)
		si.logger.Debug("heartbeat", "topic", topic, "listeners", n)
	}
}
