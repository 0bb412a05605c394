// Package state implements the row-builder's explicit state machine
// (spec.md §4.3): idle, open_table, and open_fields. Check methods
// validate that a call is legal without mutating anything; the matching
// Enter/Mark/Commit/Cancel method is applied only once the caller's own
// work (validation, byte writes) has actually succeeded, so a rejected
// call never leaves the machine in a phase its buffer doesn't match. This
// mirrors the teacher's mDNS responder state machine, which keeps "what
// phase are we in" separate from "what bytes get sent".
package state

import qerr "github.com/lineflux/qdbsender/errors"

// Phase enumerates the row-builder's three reachable states.
type Phase int

const (
	// Idle is the state between rows: no table is open.
	Idle Phase = iota
	// OpenTable is entered by Table and accepts either Symbol or Column
	// calls.
	OpenTable
	// OpenFields is entered by the first Column call; from here only
	// further Column calls are legal, never Symbol.
	OpenFields
)

// String renders the phase name for diagnostics.
func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case OpenTable:
		return "open_table"
	case OpenFields:
		return "open_fields"
	default:
		return "unknown"
	}
}

// Machine tracks the current row-builder phase and whether the open row
// has accumulated at least one symbol or field, the precondition At/AtNow
// enforce.
type Machine struct {
	phase         Phase
	hasTagOrField bool
}

// New returns a Machine in the Idle phase.
func New() *Machine {
	return &Machine{phase: Idle}
}

// Phase returns the current phase.
func (m *Machine) Phase() Phase { return m.phase }

// HasTagOrField reports whether the open row carries at least one symbol
// or field.
func (m *Machine) HasTagOrField() bool { return m.hasTagOrField }

// CheckTable reports whether Table may legally be called.
func (m *Machine) CheckTable() error {
	if m.phase != Idle {
		return qerr.New(qerr.InvalidApiCall, "table called while a row is already open")
	}
	return nil
}

// EnterTable commits the Idle -> OpenTable transition. Call only after
// CheckTable returned nil and the table name has been written.
func (m *Machine) EnterTable() {
	m.phase = OpenTable
	m.hasTagOrField = false
}

// CheckSymbol reports whether Symbol may legally be called: only while in
// OpenTable, since the line protocol forbids a tag after any field.
func (m *Machine) CheckSymbol() error {
	switch m.phase {
	case Idle:
		return qerr.New(qerr.InvalidApiCall, "symbol called with no table open")
	case OpenFields:
		return qerr.New(qerr.InvalidApiCall, "symbol called after a field was already written to this row")
	}
	return nil
}

// MarkSymbol records that the open row now carries at least one tag. Call
// only after CheckSymbol returned nil and the tag has been written.
func (m *Machine) MarkSymbol() {
	m.hasTagOrField = true
}

// CheckColumn reports whether a field column may legally be appended: in
// OpenTable or OpenFields, never Idle.
func (m *Machine) CheckColumn() error {
	if m.phase == Idle {
		return qerr.New(qerr.InvalidApiCall, "column called with no table open")
	}
	return nil
}

// EnterFields commits the transition to OpenFields. Call only after
// CheckColumn returned nil and the field has been written.
func (m *Machine) EnterFields() {
	m.phase = OpenFields
	m.hasTagOrField = true
}

// CheckCommit reports whether At/AtNow may legally close the row.
func (m *Machine) CheckCommit() error {
	if m.phase == Idle {
		return qerr.New(qerr.InvalidApiCall, "at/atNow called with no row open")
	}
	if !m.hasTagOrField {
		return qerr.New(qerr.InvalidApiCall, "at/atNow called on a row with no symbols or fields")
	}
	return nil
}

// Commit resets the machine to Idle. Call only after CheckCommit returned
// nil and the row's timestamp and newline have been written.
func (m *Machine) Commit() {
	m.phase = Idle
	m.hasTagOrField = false
}

// CheckCancel reports whether CancelRow may legally be called.
func (m *Machine) CheckCancel() error {
	if m.phase == Idle {
		return qerr.New(qerr.InvalidApiCall, "cancelRow called with no row open")
	}
	return nil
}

// Cancel resets the machine to Idle unconditionally. Call only after
// CheckCancel returned nil.
func (m *Machine) Cancel() {
	m.phase = Idle
	m.hasTagOrField = false
}

// Reset forces the machine back to Idle unconditionally, used when a
// buffer-level Clear discards all pending state.
func (m *Machine) Reset() {
	m.phase = Idle
	m.hasTagOrField = false
}
