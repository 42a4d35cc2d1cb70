package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"
)

// CreateSession inserts a session record. An existing session with the same
// ID is an error wrapping ErrSessionExists; sessions are never appended to
// by a second run.
func (s *Store) CreateSession(ctx context.Context, sess Session) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, machine, label)
		VALUES (?, ?, ?)
	`, sess.ID, sess.Machine, sess.Label)
	if isPrimaryKeyViolation(err) {
		return fmt.Errorf("write session %s: %w", sess.ID, ErrSessionExists)
	}
	if err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	return nil
}

// WriteEvent appends an event to a session timeline. Writing a seq the
// session already holds is an error wrapping ErrDuplicateSeq; the first row
// is kept.
//
// Note: The session must exist (foreign key constraint).
func (s *Store) WriteEvent(ctx context.Context, ev Event) error {
	payload := ev.Payload
	if payload == "" {
		payload = "{}"
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO events
		(session_id, seq, kind, from_state, to_state, origin, step, payload_kind, payload, frame_id, frame_data)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		ev.SessionID,
		ev.Seq,
		string(ev.Kind),
		ev.FromState,
		ev.ToState,
		ev.Origin,
		ev.Step,
		ev.PayloadKind,
		payload,
		int64(ev.FrameID),
		ev.FrameData,
	)
	if isPrimaryKeyViolation(err) {
		return fmt.Errorf("write event %s/%d: %w", ev.SessionID, ev.Seq, ErrDuplicateSeq)
	}
	if err != nil {
		return fmt.Errorf("write event: %w", err)
	}
	return nil
}

func isPrimaryKeyViolation(err error) bool {
	var sqlErr sqlite3.Error
	return errors.As(err, &sqlErr) && sqlErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
}
