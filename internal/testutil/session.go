// Package testutil holds deterministic helpers shared by tests and the
// scenario harness.
package testutil

// DefaultSessionID is the session ID a FixedSessionGenerator without an
// explicit ID returns.
const DefaultSessionID = "test-session-default"

// FixedSessionGenerator generates the same session ID every time.
//
// With a fixed ID and the logical clock starting at 1, the same scenario
// produces a byte-identical timeline, which is what golden traces compare.
//
// Unlike recorder.FixedGenerator, which returns IDs in sequence, this
// generator never runs out. Use it when each store holds one session.
//
// Thread-safety: FixedSessionGenerator is stateless and safe for concurrent use.
type FixedSessionGenerator struct {
	id string
}

// NewFixedSessionGenerator creates a fixed session ID generator.
//
// The ID is typically set in the scenario YAML:
//
//	session_id: "test-session-e2e"
//
// If id is empty, Generate() returns DefaultSessionID.
func NewFixedSessionGenerator(id string) *FixedSessionGenerator {
	if id == "" {
		id = DefaultSessionID
	}
	return &FixedSessionGenerator{id: id}
}

// Generate returns the fixed session ID.
//
// Implements recorder.IDGenerator.
func (g *FixedSessionGenerator) Generate() string {
	return g.id
}
