package recorder

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tablefsm/internal/can"
	"github.com/roach88/tablefsm/internal/fsm"
	"github.com/roach88/tablefsm/internal/steering"
	"github.com/roach88/tablefsm/internal/store"
)

func setupTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRecorder_RecordsInterleavedTimeline(t *testing.T) {
	ctx := context.Background()
	st := setupTestStore(t)
	mem := can.NewMemoryTransport()

	rec, err := New(ctx, st, steering.MachineName,
		WithIDGenerator(NewFixedGenerator("session-1")),
		WithTransport(mem),
		WithLabel("demo"),
		WithLogger(quietLogger()),
	)
	require.NoError(t, err)

	si, err := steering.New(
		steering.WithLogger(quietLogger()),
		steering.WithDebugMode(true),
		steering.WithMaxSteps(2),
		steering.WithRecorder(rec),
	)
	require.NoError(t, err)

	require.NoError(t, si.SendClearance())
	require.NoError(t, si.Activate())
	require.NoError(t, si.SetValue(steering.Request{Magnitude: 0.5, Sign: true}))
	require.True(t, fsm.IsStepsExceededError(si.Stop()))
	require.NoError(t, rec.Err())

	events, err := st.ReadTimeline(ctx, "session-1")
	require.NoError(t, err)

	var kinds []store.EventKind
	for i, ev := range events {
		assert.Equal(t, int64(i+1), ev.Seq, "seq is dense across kinds")
		kinds = append(kinds, ev.Kind)
	}
	assert.Equal(t, []store.EventKind{
		store.KindTransition, store.KindFrame, // Clearance
		store.KindTransition, store.KindFrame, // Activation
		store.KindTransition, store.KindFrame, // Working
		store.KindTransition, store.KindFrame, // Stop
		store.KindTransition, store.KindFrame, // Stop (retry)
		store.KindDeferred,
	}, kinds)

	working := events[4]
	assert.Equal(t, "Activation", working.FromState)
	assert.Equal(t, "Working", working.ToState)
	assert.Equal(t, "steering.request", working.PayloadKind)
	assert.JSONEq(t, `{"magnitude":0.5,"sign":true}`, working.Payload)

	assert.Equal(t, can.AngleFrameID, events[5].FrameID)
	assert.Len(t, events[5].FrameData, 5)

	deferred := events[10]
	assert.Equal(t, "Stop", deferred.FromState)
	assert.Equal(t, "Stop", deferred.ToState)
	assert.Equal(t, 2, deferred.Step)

	assert.Len(t, mem.Frames(), 5, "frames are forwarded")

	sess, err := st.ReadSession(ctx, rec.SessionID())
	require.NoError(t, err)
	assert.Equal(t, "demo", sess.Label)
	assert.Equal(t, steering.MachineName, sess.Machine)
	assert.Equal(t, len(events), sess.EventCount)
}

func TestRecorder_KeepsFirstWriteError(t *testing.T) {
	ctx := context.Background()
	st := setupTestStore(t)
	rec, err := New(ctx, st, "m", WithIDGenerator(NewFixedGenerator("s")), WithLogger(quietLogger()))
	require.NoError(t, err)

	require.NoError(t, st.Close())
	rec.OnTransition(fsm.Transition{Seq: 1, ToName: "Idle", Payload: fsm.NoPayload{}})
	rec.OnDeferred(fsm.Deferral{Seq: 2})

	require.Error(t, rec.Err())
	assert.Contains(t, rec.Err().Error(), "write event")
}

func TestNew_DuplicateSessionFails(t *testing.T) {
	ctx := context.Background()
	st := setupTestStore(t)
	gen := NewFixedGenerator("same", "same")

	_, err := New(ctx, st, "m", WithIDGenerator(gen))
	require.NoError(t, err)
	_, err = New(ctx, st, "m", WithIDGenerator(gen))
	require.ErrorIs(t, err, store.ErrSessionExists)

	sessions, err := st.ListSessions(ctx)
	require.NoError(t, err)
	assert.Len(t, sessions, 1)
}

func TestRecorder_SeparateClockReportsCollision(t *testing.T) {
	ctx := context.Background()
	st := setupTestStore(t)
	rec, err := New(ctx, st, steering.MachineName,
		WithIDGenerator(NewFixedGenerator("split")),
		WithLogger(quietLogger()),
	)
	require.NoError(t, err)

	// Wired by hand without the recorder's clock: transition seq 1 and
	// frame seq 1 collide.
	si, err := steering.New(
		steering.WithLogger(quietLogger()),
		steering.WithTransport(rec),
		steering.WithObserver(rec),
	)
	require.NoError(t, err)
	require.NoError(t, si.SendClearance())

	require.ErrorIs(t, rec.Err(), store.ErrDuplicateSeq)
}
