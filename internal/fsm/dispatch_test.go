package fsm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type reading struct{ value float64 }

func (reading) PayloadKind() string { return "reading" }

type sink struct {
	readings []float64
	calls    int
}

func TestAction_NarrowsPayload(t *testing.T) {
	d := Action("Measure", func(s *sink, p reading) {
		s.readings = append(s.readings, p.value)
	})
	s := &sink{}

	d.Invoke(s, reading{value: 1.5})

	assert.Equal(t, "Measure", d.Name())
	assert.Equal(t, "fsm.reading", d.Expects())
	assert.Equal(t, []float64{1.5}, s.readings)
}

func TestAction_NoPayloadAcceptsAnyVariant(t *testing.T) {
	var got []Payload
	d := Action("Idle", func(s *sink, p NoPayload) {
		s.calls++
		got = append(got, p)
	})
	s := &sink{}

	d.Invoke(s, NoPayload{})
	d.Invoke(s, reading{value: 3})
	d.Invoke(s, nil)

	assert.Equal(t, 3, s.calls)
	assert.Equal(t, []Payload{NoPayload{}, NoPayload{}, NoPayload{}}, got)
	assert.Equal(t, "fsm.NoPayload", d.Expects())
}

func TestAction_MismatchPanicsWithoutCallingHandler(t *testing.T) {
	s := &sink{}
	d := Action("Measure", func(s *sink, _ reading) { s.calls++ })

	ce := recoverContract(t, func() { d.Invoke(s, NoPayload{}) })

	assert.Equal(t, ErrCodePayloadMismatch, ce.Code)
	assert.Equal(t, "state Measure expects fsm.reading, got fsm.NoPayload (none)", ce.Message)
	assert.Zero(t, s.calls)
}

func TestAction_NilPayloadToTypedHandlerPanics(t *testing.T) {
	d := Action("Measure", func(*sink, reading) {})

	ce := recoverContract(t, func() { d.Invoke(&sink{}, nil) })

	assert.Equal(t, ErrCodePayloadMismatch, ce.Code)
	assert.Contains(t, ce.Message, "got <nil>")
}

func TestAction_NilHandlerPanics(t *testing.T) {
	ce := recoverContract(t, func() { Action[*sink, reading]("Broken", nil) })

	assert.Equal(t, ErrCodeNilDispatcher, ce.Code)
	assert.Contains(t, ce.Message, `"Broken"`)
}

func TestNoPayload_Kind(t *testing.T) {
	require.Equal(t, "none", NoPayload{}.PayloadKind())
}
