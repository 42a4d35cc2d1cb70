package fsm

import "fmt"

// Table is the ordered state map of one machine: entry i is the Dispatcher
// run on entering state i. A Table is immutable after construction.
type Table[C any] struct {
	rows []Dispatcher[C]
}

// NewTable builds a Table with exactly maxStates dispatchers.
//
// Returns a *ContractError if maxStates collides with the Ignored sentinel,
// the number of rows differs from maxStates, or a row is nil.
func NewTable[C any](maxStates int, rows ...Dispatcher[C]) (*Table[C], error) {
	if err := checkMaxStates(maxStates); err != nil {
		return nil, err
	}
	if len(rows) != maxStates {
		return nil, &ContractError{
			Code:    ErrCodeTableSize,
			Message: fmt.Sprintf("table has %d entries, want %d", len(rows), maxStates),
		}
	}
	for i, row := range rows {
		if row == nil {
			return nil, &ContractError{
				Code:    ErrCodeNilDispatcher,
				Message: fmt.Sprintf("table entry %d is nil", i),
				State:   State(i),
			}
		}
	}

	t := &Table[C]{rows: make([]Dispatcher[C], len(rows))}
	copy(t.rows, rows)
	return t, nil
}

// MustTable is NewTable for package-level wiring; it panics on error.
func MustTable[C any](maxStates int, rows ...Dispatcher[C]) *Table[C] {
	t, err := NewTable(maxStates, rows...)
	if err != nil {
		panic(err)
	}
	return t
}

// Len returns the machine's number of states.
func (t *Table[C]) Len() int {
	return len(t.rows)
}

// Lookup returns the dispatcher for s. It panics with a *ContractError if s
// is not a state of this table.
func (t *Table[C]) Lookup(s State) Dispatcher[C] {
	if int(s) >= len(t.rows) {
		panic(NewStateOutOfRangeError(s, len(t.rows)))
	}
	return t.rows[s]
}

// Name returns the display name of s.
func (t *Table[C]) Name(s State) string {
	switch {
	case s == Ignored:
		return "Ignored"
	case int(s) < len(t.rows):
		return t.rows[s].Name()
	default:
		return fmt.Sprintf("State(%d)", s)
	}
}

// Names lists the state names in state order.
func (t *Table[C]) Names() []string {
	names := make([]string, len(t.rows))
	for i, row := range t.rows {
		names[i] = row.Name()
	}
	return names
}

// StateByName returns the state whose dispatcher is named name.
func (t *Table[C]) StateByName(name string) (State, bool) {
	for i, row := range t.rows {
		if row.Name() == name {
			return State(i), true
		}
	}
	return 0, false
}
