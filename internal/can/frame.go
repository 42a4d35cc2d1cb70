// Package can builds the outbound frames of the steering interface and hands
// them to a Transport.
//
// Frame layout:
//
//	control  0x110  [request, mode, counter, checksum]
//	angle    0x111  [hi, lo, sign, counter, checksum]
//	torque   0x112  [hi, lo, sign, counter, checksum]
//
// Values are scaled by 10 (0.1 unit resolution) and saturate at 0xFFFF.
// Every frame ID carries its own 4-bit rolling counter. The checksum byte is
// the XOR of all preceding bytes.
package can

import (
	"fmt"
	"math"
	"strings"
	"sync"
)

// Frame IDs.
const (
	ControlFrameID uint16 = 0x110
	AngleFrameID   uint16 = 0x111
	TorqueFrameID  uint16 = 0x112
)

// MaxDataLen is the classic CAN payload limit.
const MaxDataLen = 8

// Request is the request byte of a control frame.
type Request uint8

const (
	RequestIdle Request = iota
	RequestClearance
	RequestActivate
	RequestStop
)

func (r Request) String() string {
	switch r {
	case RequestIdle:
		return "idle"
	case RequestClearance:
		return "clearance"
	case RequestActivate:
		return "activate"
	case RequestStop:
		return "stop"
	default:
		return fmt.Sprintf("request(%d)", uint8(r))
	}
}

// Frame is one outbound frame.
type Frame struct {
	ID   uint16
	Data []byte
}

// Len returns the payload length.
func (f Frame) Len() int {
	return len(f.Data)
}

// String formats the frame the way cansend accepts it, e.g. "0x110#01000A0B".
func (f Frame) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "0x%03X#", f.ID)
	for _, d := range f.Data {
		fmt.Fprintf(&b, "%02X", d)
	}
	return b.String()
}

// Clone returns a frame that shares no memory with f.
func (f Frame) Clone() Frame {
	data := make([]byte, len(f.Data))
	copy(data, f.Data)
	return Frame{ID: f.ID, Data: data}
}

// Checksum returns the XOR of b.
func Checksum(b []byte) byte {
	var sum byte
	for _, v := range b {
		sum ^= v
	}
	return sum
}

// ScaleValue converts a magnitude to its 0.1-resolution wire value.
// Negative and NaN magnitudes encode as 0.
func ScaleValue(magnitude float64) uint16 {
	if math.IsNaN(magnitude) || magnitude <= 0 {
		return 0
	}
	scaled := math.Round(magnitude * 10)
	if scaled >= math.MaxUint16 {
		return math.MaxUint16
	}
	return uint16(scaled)
}

// Encoder builds frames and owns the rolling counters. Safe for concurrent
// use.
type Encoder struct {
	mu       sync.Mutex
	counters map[uint16]uint8
}

// NewEncoder creates an Encoder with all counters at zero.
func NewEncoder() *Encoder {
	return &Encoder{counters: make(map[uint16]uint8)}
}

// Control builds a control frame carrying req and the control mode byte.
func (e *Encoder) Control(req Request, mode uint8) Frame {
	return e.seal(ControlFrameID, []byte{byte(req), mode})
}

// Value builds a value request frame for id.
func (e *Encoder) Value(id uint16, magnitude float64, negative bool) Frame {
	raw := ScaleValue(magnitude)
	var sign byte
	if negative {
		sign = 1
	}
	return e.seal(id, []byte{byte(raw >> 8), byte(raw), sign})
}

// seal appends the rolling counter and checksum.
func (e *Encoder) seal(id uint16, body []byte) Frame {
	e.mu.Lock()
	counter := e.counters[id]
	e.counters[id] = (counter + 1) & 0x0F
	e.mu.Unlock()

	data := append(body, counter)
	data = append(data, Checksum(data))
	return Frame{ID: id, Data: data}
}
