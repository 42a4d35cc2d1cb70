// Package fsm implements a table-driven finite-state-machine engine for
// control interfaces.
//
// A machine is described by three pieces of static data:
//
//   - a Table with exactly one Dispatcher per state, answering "what happens
//     on entering state i"
//   - one EventMap per external event, answering "which state does this
//     event lead to from the current state" (or Ignored)
//   - the owner value handed to every state handler
//
// ARCHITECTURE:
//
// Pending slot + drain loop:
// The engine holds a single pending transition. TriggerExternal arms it and
// runs the drain loop; a handler invoked by the loop may arm it again with
// TriggerInternal, which makes the loop run another iteration before
// TriggerExternal returns. Chained transitions therefore execute depth-first
// on the caller's stack:
//
//  1. TriggerExternal(target) arms {target, payload, generated}
//  2. the loop clears generated and switches CurrentState to target
//  3. the target's Dispatcher narrows the payload and calls the handler
//  4. a handler calling TriggerInternal re-arms the slot; goto 2
//
// A second TriggerInternal before the slot is drained overwrites the first
// (last write wins).
//
// Locking:
// TriggerExternal and Drain hold the engine mutex for the whole cascade.
// CurrentState is an atomic read and may be called from anywhere, including
// handlers. Handlers must never call TriggerExternal or Drain on their own
// engine.
//
// Step budget:
// A handler that keeps re-arming itself (a retry state waiting for an
// outside confirmation) would spin forever inside one call. WithMaxSteps
// bounds the steps of a single drain; once exhausted the pending transition
// stays armed and the call returns *StepsExceededError. Drain resumes it.
//
// Error classes:
//   - wiring defects (table size, state out of range, payload mismatch) are
//     *ContractError; returned from constructors, panicked at run time
//   - domain guard outcomes are not errors; handlers redirect with
//     TriggerInternal
package fsm
