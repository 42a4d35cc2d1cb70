package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func executeValidate(t *testing.T, format string, args ...string) (*bytes.Buffer, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewValidateCommand(&RootOptions{Format: format})
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	return buf, cmd.Execute()
}

func writeCUE(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "machine.cue")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestValidateCommandSteeringDefinition(t *testing.T) {
	buf, err := executeValidate(t, "text", "../../machines/steering.cue")
	require.NoError(t, err, buf.String())

	out := buf.String()
	assert.Contains(t, out, "✓ SteeringInterface (5 states, 4 events)")
	assert.Contains(t, out, "warning: State re-enters itself: Stop → Stop")
	assert.NotContains(t, out, "drift:")
}

func TestValidateCommandJSON(t *testing.T) {
	buf, err := executeValidate(t, "json", "../../machines/steering.cue")
	require.NoError(t, err)

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.Data.Valid)
	require.Len(t, resp.Data.Machines, 1)
	assert.Empty(t, resp.Data.Machines[0].Drift)
	assert.Len(t, resp.Data.Machines[0].Cycles, 1)
}

func TestValidateCommandDrift(t *testing.T) {
	path := writeCUE(t, `
machine: SteeringInterface: {
	states: ["Idle", "Clearance", "Activation", "Working", "Stop"]
	events: {
		set_value: { Activation: "Working", Working: "Working" }
		stop: { Clearance: "Stop", Activation: "Stop", Working: "Stop" }
		send_clearance: { Idle: "Clearance" }
		activate: { Clearance: "Working" }
	}
}
`)

	buf, err := executeValidate(t, "text", path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, buf.String(), "✗ SteeringInterface")
	assert.Contains(t, buf.String(), "drift: event activate from Clearance: definition Working, tables Activation")
}

func TestValidateCommandErrors(t *testing.T) {
	path := writeCUE(t, `
machine: Lamp: {
	states: ["Off", "On", "Off"]
	events: toggle: { Off: "Dim" }
}
`)

	buf, err := executeValidate(t, "json", path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
		Error  *CLIError        `json:"error"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, "E_VALIDATION", resp.Error.Code)
	assert.False(t, resp.Data.Valid)

	codes := map[string]bool{}
	for _, e := range resp.Data.Machines[0].Errors {
		codes[e.Code] = true
	}
	assert.True(t, codes["E203"], "duplicate state")
	assert.True(t, codes["E206"], "unknown target state")
}

func TestValidateCommandUnreachableIsWarning(t *testing.T) {
	path := writeCUE(t, `
machine: Lamp: {
	states: ["Off", "On", "Broken"]
	events: toggle: { Off: "On", On: "Off" }
}
`)

	buf, err := executeValidate(t, "text", path)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "✓ Lamp (3 states, 1 events)")
	assert.Contains(t, buf.String(), "warning: state Broken is unreachable")
}

func TestValidateCommandCompileError(t *testing.T) {
	path := writeCUE(t, "machine: {")

	_, err := executeValidate(t, "text", path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "compilation failed")
}

func TestValidateCommandMissingFile(t *testing.T) {
	_, err := executeValidate(t, "text", "/nonexistent/machine.cue")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
