package can

import (
	"bytes"
	"errors"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryTransport(t *testing.T) {
	tr := NewMemoryTransport()
	_, ok := tr.Last()
	assert.False(t, ok)

	data := []byte{1, 2}
	require.NoError(t, tr.Send(Frame{ID: ControlFrameID, Data: data}))
	require.NoError(t, tr.Send(Frame{ID: AngleFrameID, Data: []byte{3}}))
	data[0] = 9

	frames := tr.Frames()
	require.Len(t, frames, 2)
	assert.Equal(t, []byte{1, 2}, frames[0].Data, "frames are copied on send")
	assert.Equal(t, 1, tr.Count(ControlFrameID))
	assert.Equal(t, 0, tr.Count(TorqueFrameID))

	last, ok := tr.Last()
	assert.True(t, ok)
	assert.Equal(t, AngleFrameID, last.ID)
}

func TestMemoryTransport_Concurrent(t *testing.T) {
	tr := NewMemoryTransport()
	e := NewEncoder()

	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 25 {
				_ = tr.Send(e.Control(RequestIdle, 0))
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 100, tr.Count(ControlFrameID))
}

func TestLogTransport(t *testing.T) {
	var buf bytes.Buffer
	tr := NewLogTransport(slog.New(slog.NewTextHandler(&buf, nil)))

	require.NoError(t, tr.Send(Frame{ID: ControlFrameID, Data: []byte{0x03, 0x00, 0x00, 0x03}}))

	assert.Contains(t, buf.String(), "frame=0x110#03000003")
	assert.Contains(t, buf.String(), "len=4")
}

func TestTransportFunc(t *testing.T) {
	want := errors.New("bus off")
	var tr Transport = TransportFunc(func(Frame) error { return want })

	assert.ErrorIs(t, tr.Send(Frame{}), want)
	assert.NoError(t, NopTransport{}.Send(Frame{}))
}
