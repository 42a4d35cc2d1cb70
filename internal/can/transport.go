package can

import (
	"log/slog"
	"sync"
)

// Transport frames and transmits outbound data. Send is fire-and-forget from
// the state machine's point of view: callers log a returned error and carry
// on.
type Transport interface {
	Send(f Frame) error
}

// TransportFunc adapts a function to Transport.
type TransportFunc func(Frame) error

// Send implements Transport.
func (fn TransportFunc) Send(f Frame) error { return fn(f) }

// NopTransport drops every frame.
type NopTransport struct{}

// Send implements Transport.
func (NopTransport) Send(Frame) error { return nil }

// LogTransport writes every frame to a logger.
type LogTransport struct {
	logger *slog.Logger
}

// NewLogTransport creates a LogTransport. A nil logger uses slog.Default().
func NewLogTransport(logger *slog.Logger) *LogTransport {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogTransport{logger: logger}
}

// Send implements Transport.
func (t *LogTransport) Send(f Frame) error {
	t.logger.Info("can frame",
		"id", f.ID,
		"len", f.Len(),
		"frame", f.String(),
	)
	return nil
}

// MemoryTransport keeps every frame in memory.
type MemoryTransport struct {
	mu     sync.Mutex
	frames []Frame
}

// NewMemoryTransport creates an empty MemoryTransport.
func NewMemoryTransport() *MemoryTransport {
	return &MemoryTransport{}
}

// Send implements Transport.
func (t *MemoryTransport) Send(f Frame) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.frames = append(t.frames, f.Clone())
	return nil
}

// Frames returns the frames sent so far, oldest first.
func (t *MemoryTransport) Frames() []Frame {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]Frame, len(t.frames))
	copy(out, t.frames)
	return out
}

// Count returns how many frames with id were sent.
func (t *MemoryTransport) Count(id uint16) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := 0
	for _, f := range t.frames {
		if f.ID == id {
			n++
		}
	}
	return n
}

// Last returns the most recent frame, if any.
func (t *MemoryTransport) Last() (Frame, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.frames) == 0 {
		return Frame{}, false
	}
	return t.frames[len(t.frames)-1], true
}
