package fsm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noop(name string) Dispatcher[*sink] {
	return Action(name, func(*sink, NoPayload) {})
}

func TestNewTable(t *testing.T) {
	tbl, err := NewTable(3, noop("A"), noop("B"), noop("C"))
	require.NoError(t, err)

	assert.Equal(t, 3, tbl.Len())
	assert.Equal(t, []string{"A", "B", "C"}, tbl.Names())
	assert.Equal(t, "B", tbl.Lookup(1).Name())
}

func TestNewTable_Errors(t *testing.T) {
	tests := []struct {
		name      string
		maxStates int
		rows      []Dispatcher[*sink]
		code      ContractErrorCode
	}{
		{"zero states", 0, nil, ErrCodeInvalidMaxStates},
		{"collides with Ignored", int(Ignored), nil, ErrCodeInvalidMaxStates},
		{"too few rows", 3, []Dispatcher[*sink]{noop("A"), noop("B")}, ErrCodeTableSize},
		{"too many rows", 1, []Dispatcher[*sink]{noop("A"), noop("B")}, ErrCodeTableSize},
		{"nil row", 2, []Dispatcher[*sink]{noop("A"), nil}, ErrCodeNilDispatcher},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewTable(tt.maxStates, tt.rows...)
			require.Error(t, err)

			var ce *ContractError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, tt.code, ce.Code)
		})
	}
}

func TestNewTable_SizeMismatchMessage(t *testing.T) {
	_, err := NewTable(5, noop("A"))
	require.Error(t, err)
	assert.Equal(t, "TABLE_SIZE_MISMATCH: table has 1 entries, want 5", err.Error())
}

func TestMustTable_Panics(t *testing.T) {
	assert.Panics(t, func() { MustTable(2, noop("A")) })
}

func TestTable_Name(t *testing.T) {
	tbl := MustTable(2, noop("Idle"), noop("Run"))

	assert.Equal(t, "Idle", tbl.Name(0))
	assert.Equal(t, "Run", tbl.Name(1))
	assert.Equal(t, "Ignored", tbl.Name(Ignored))
	assert.Equal(t, "State(7)", tbl.Name(7))
}

func TestTable_LookupOutOfRangePanics(t *testing.T) {
	tbl := MustTable(2, noop("Idle"), noop("Run"))

	ce := recoverContract(t, func() { tbl.Lookup(2) })

	assert.Equal(t, ErrCodeStateOutOfRange, ce.Code)
	assert.Equal(t, State(2), ce.State)
}

func TestTable_StateByName(t *testing.T) {
	tbl := MustTable(2, noop("Idle"), noop("Run"))

	s, ok := tbl.StateByName("Run")
	assert.True(t, ok)
	assert.Equal(t, State(1), s)

	_, ok = tbl.StateByName("Missing")
	assert.False(t, ok)
}

func TestTable_CopiesRows(t *testing.T) {
	rows := []Dispatcher[*sink]{noop("A"), noop("B")}
	tbl := MustTable(2, rows...)

	rows[0] = noop("Z")

	assert.Equal(t, "A", tbl.Name(0))
}
