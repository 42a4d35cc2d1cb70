package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ReadSession returns the session with id, or an error wrapping ErrNotFound.
func (s *Store) ReadSession(ctx context.Context, id string) (Session, error) {
	var sess Session
	err := s.db.QueryRowContext(ctx, `
		SELECT s.id, s.machine, s.label, COUNT(e.seq)
		FROM sessions s
		LEFT JOIN events e ON e.session_id = s.id
		WHERE s.id = ?
		GROUP BY s.id
	`, id).Scan(&sess.ID, &sess.Machine, &sess.Label, &sess.EventCount)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, fmt.Errorf("read session %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return Session{}, fmt.Errorf("read session %s: %w", id, err)
	}
	return sess, nil
}

// ListSessions returns every session ordered by id. UUIDv7 ids sort by
// creation time.
//
// Returns an empty slice (not nil) if there are no sessions.
func (s *Store) ListSessions(ctx context.Context) ([]Session, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT s.id, s.machine, s.label, COUNT(e.seq)
		FROM sessions s
		LEFT JOIN events e ON e.session_id = s.id
		GROUP BY s.id
		ORDER BY s.id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	sessions := []Session{}
	for rows.Next() {
		var sess Session
		if err := rows.Scan(&sess.ID, &sess.Machine, &sess.Label, &sess.EventCount); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return sessions, nil
}

// ReadTimeline returns every event of a session ordered by seq.
//
// Returns an empty slice (not nil) if the session has no events.
func (s *Store) ReadTimeline(ctx context.Context, sessionID string) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT session_id, seq, kind, from_state, to_state, origin, step,
		       payload_kind, payload, frame_id, frame_data
		FROM events
		WHERE session_id = ?
		ORDER BY seq ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	events := []Event{}
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

// CountEvents returns the number of events of kind in a session.
func (s *Store) CountEvents(ctx context.Context, sessionID string, kind EventKind) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM events WHERE session_id = ? AND kind = ?
	`, sessionID, string(kind)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count %s events: %w", kind, err)
	}
	return n, nil
}

func scanEvent(rows *sql.Rows) (Event, error) {
	var (
		ev      Event
		kind    string
		frameID int64
	)
	err := rows.Scan(
		&ev.SessionID,
		&ev.Seq,
		&kind,
		&ev.FromState,
		&ev.ToState,
		&ev.Origin,
		&ev.Step,
		&ev.PayloadKind,
		&ev.Payload,
		&frameID,
		&ev.FrameData,
	)
	if err != nil {
		return Event{}, fmt.Errorf("scan event: %w", err)
	}
	ev.Kind = EventKind(kind)
	ev.FrameID = uint16(frameID)
	return ev, nil
}
