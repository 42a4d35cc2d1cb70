// Package recorder writes machine traces to the store. A Recorder is an
// fsm.Observer for transitions and deferred drains and a can.Transport tee
// for frames, so one session holds the full interleaved timeline.
package recorder

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/roach88/tablefsm/internal/can"
	"github.com/roach88/tablefsm/internal/fsm"
	"github.com/roach88/tablefsm/internal/store"
)

type settings struct {
	ids    IDGenerator
	next   can.Transport
	logger *slog.Logger
	label  string
}

// Option configures a Recorder.
type Option func(*settings)

// WithIDGenerator sets the session ID source. Default: UUIDv7Generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(s *settings) { s.ids = g }
}

// WithTransport sets the transport frames are forwarded to after recording.
// Default: can.NopTransport.
func WithTransport(t can.Transport) Option {
	return func(s *settings) { s.next = t }
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *settings) { s.logger = l }
}

// WithLabel sets a free-form session label.
func WithLabel(label string) Option {
	return func(s *settings) { s.label = label }
}

// Recorder records one session.
//
// Observer callbacks cannot return errors; the first failed write is kept and
// returned by Err, later events are still attempted. Every event of a session
// needs its own seq, so the recorder owns the clock of the machine it records.
type Recorder struct {
	store     *store.Store
	sessionID string
	clock     *fsm.Clock
	next      can.Transport
	logger    *slog.Logger

	// ctx bounds the store writes of observer callbacks, which carry no
	// context of their own.
	ctx context.Context

	mu  sync.Mutex
	err error
}

// New creates the session for machine and returns its Recorder.
func New(ctx context.Context, st *store.Store, machine string, opts ...Option) (*Recorder, error) {
	s := settings{ids: UUIDv7Generator{}}
	for _, opt := range opts {
		opt(&s)
	}
	if s.next == nil {
		s.next = can.NopTransport{}
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}

	id := s.ids.Generate()
	if err := st.CreateSession(ctx, store.Session{ID: id, Machine: machine, Label: s.label}); err != nil {
		return nil, fmt.Errorf("create recording session: %w", err)
	}

	return &Recorder{
		store:     st,
		sessionID: id,
		clock:     fsm.NewClock(),
		next:      s.next,
		logger:    s.logger,
		ctx:       ctx,
	}, nil
}

// SessionID returns the recorded session's ID.
func (r *Recorder) SessionID() string {
	return r.sessionID
}

// Clock returns the session clock. Frames are stamped from it; the recorded
// machine must stamp its transitions from it too (steering.WithRecorder does
// this), otherwise seqs collide and Err reports store.ErrDuplicateSeq.
func (r *Recorder) Clock() *fsm.Clock {
	return r.clock
}

// Err returns the first write error, if any.
func (r *Recorder) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// OnTransition implements fsm.Observer.
func (r *Recorder) OnTransition(t fsm.Transition) {
	payload, err := json.Marshal(t.Payload)
	if err != nil {
		r.fail(fmt.Errorf("marshal %s payload: %w", t.ToName, err))
		payload = []byte("{}")
	}
	kind := ""
	if t.Payload != nil {
		kind = t.Payload.PayloadKind()
	}

	r.write(store.Event{
		SessionID:   r.sessionID,
		Seq:         t.Seq,
		Kind:        store.KindTransition,
		FromState:   t.FromName,
		ToState:     t.ToName,
		Origin:      string(t.Origin),
		Step:        t.Step,
		PayloadKind: kind,
		Payload:     string(payload),
	})
}

// OnDeferred implements fsm.DeferralObserver.
func (r *Recorder) OnDeferred(d fsm.Deferral) {
	r.write(store.Event{
		SessionID: r.sessionID,
		Seq:       d.Seq,
		Kind:      store.KindDeferred,
		FromState: d.StateName,
		ToState:   d.PendingName,
		Step:      d.Steps,
	})
}

// Send implements can.Transport: it records f and forwards it.
func (r *Recorder) Send(f can.Frame) error {
	r.write(store.Event{
		SessionID: r.sessionID,
		Seq:       r.clock.Next(),
		Kind:      store.KindFrame,
		FrameID:   f.ID,
		FrameData: f.Clone().Data,
	})
	return r.next.Send(f)
}

func (r *Recorder) write(ev store.Event) {
	if err := r.store.WriteEvent(r.ctx, ev); err != nil {
		r.fail(err)
	}
}

func (r *Recorder) fail(err error) {
	r.logger.Error("record trace event", "session", r.sessionID, "error", err)

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err == nil {
		r.err = err
	}
}
