package store

import (
	"context"
	"path/filepath"
	"testing"
)

// createTestStore creates a new file-backed store for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestSession inserts a session with a fixed machine name.
func createTestSession(t *testing.T, s *Store, id string) {
	t.Helper()
	if err := s.CreateSession(context.Background(), Session{ID: id, Machine: "SteeringInterface"}); err != nil {
		t.Fatalf("CreateSession() failed: %v", err)
	}
}

// createTestTransition creates a transition event with minimal fields.
func createTestTransition(sessionID string, seq int64, from, to string) Event {
	return Event{
		SessionID:   sessionID,
		Seq:         seq,
		Kind:        KindTransition,
		FromState:   from,
		ToState:     to,
		Origin:      "external",
		Step:        1,
		PayloadKind: "none",
		Payload:     "{}",
	}
}
