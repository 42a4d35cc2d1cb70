package cli

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tablefsm/internal/testutil"
)

// recordSession runs ops against a fresh database and returns its path.
func recordSession(t *testing.T, sessionID string, ops ...string) string {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "steer.db")
	opts := &RunOptions{
		RootOptions: &RootOptions{Format: "json"},
		IDGenerator: testutil.NewFixedSessionGenerator(sessionID),
	}
	args := append([]string{"--db", dbPath, "--label", "trace-test"}, ops...)
	_, err := executeRun(t, opts, args...)
	require.NoError(t, err)
	return dbPath
}

func executeTrace(t *testing.T, format string, args ...string) (*bytes.Buffer, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewTraceCommand(&RootOptions{Format: format})
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	return buf, cmd.Execute()
}

func TestTraceCommandRequiresDB(t *testing.T) {
	_, err := executeTrace(t, "text")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `required flag(s) "db" not set`)
}

func TestTraceCommandListSessions(t *testing.T) {
	dbPath := recordSession(t, "trace-session", "send_clearance")

	buf, err := executeTrace(t, "text", "--db", dbPath)
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "SESSION")
	assert.Contains(t, out, "trace-session")
	assert.Contains(t, out, "SteeringInterface")
	assert.Contains(t, out, "trace-test")
}

func TestTraceCommandEmptyDB(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "empty.db")

	buf, err := executeTrace(t, "text", "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "No sessions recorded.")
}

func TestTraceCommandTimeline(t *testing.T) {
	dbPath := recordSession(t, "trace-session", "send_clearance", "stop", "confirm_sent", "drain")

	buf, err := executeTrace(t, "json", "--db", dbPath, "--session", "trace-session")
	require.NoError(t, err)

	var resp struct {
		Status string      `json:"status"`
		Data   TraceResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "trace-session", resp.Data.Session.ID)
	assert.Equal(t, "trace-test", resp.Data.Session.Label)

	stats := resp.Data.Stats
	assert.Equal(t, stats.TotalEvents, stats.Transitions+stats.Frames+stats.Deferred)
	assert.Equal(t, 1, stats.Deferred)
	assert.Len(t, resp.Data.Timeline, stats.TotalEvents)

	// The logical clock orders every event.
	for i := 1; i < len(resp.Data.Timeline); i++ {
		assert.Less(t, resp.Data.Timeline[i-1].Seq, resp.Data.Timeline[i].Seq)
	}
	last := resp.Data.Timeline[len(resp.Data.Timeline)-1]
	assert.Equal(t, "transition", last.Kind)
	assert.Equal(t, "Idle", last.To)
}

func TestTraceCommandTimelineText(t *testing.T) {
	dbPath := recordSession(t, "trace-session", "send_clearance")

	buf, err := executeTrace(t, "text", "--db", dbPath, "--session", "trace-session")
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "Session: trace-session")
	assert.Contains(t, out, "Events: 2 (1 transitions, 1 frames, 0 deferred)")
	assert.Contains(t, out, "transition Idle -> Clearance")
	assert.Contains(t, out, "frame      0x110#01000001")
}

func TestTraceCommandUnknownSession(t *testing.T) {
	dbPath := recordSession(t, "trace-session", "send_clearance")

	_, err := executeTrace(t, "text", "--db", dbPath, "--session", "missing")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "session not found: missing")
}
