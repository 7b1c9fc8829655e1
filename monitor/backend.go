// File: monitor/backend.go
// Author: momentics <momentics@gmail.com>
//
// Capability contract between the engine and concrete notification backends.

package monitor

import "github.com/momentics/mountmon/api"

// Verdict classifies one readiness signal dispatched to a backend.
type Verdict int

const (
	// Accept marks the signal as a genuine, reportable change.
	Accept Verdict = iota
	// Reject marks the signal as spurious (duplicate, self-generated or
	// veiled); the backend has already drained whatever caused it.
	Reject
)

// Backend is the capability set every registered entry must provide.
// Implementations live outside the engine; the engine only dispatches.
type Backend interface {
	// FD returns the backend's readiness descriptor, opening it on first
	// use. The descriptor is registered with the engine's multiplexer.
	FD(mn *Monitor, e *Entry) (int, error)

	// CloseFD releases the backend's descriptor resources. Invoked
	// unconditionally during multiplexer teardown; must be idempotent.
	CloseFD(mn *Monitor, e *Entry) error

	// FreeData releases backend-specific payload attached to the entry.
	FreeData(e *Entry) error

	// ProcessEvent classifies one readiness signal for the entry.
	ProcessEvent(mn *Monitor, e *Entry) (Verdict, error)
}

// RecordSource is the optional secondary-record capability. Backends whose
// single readiness event can represent several logical records implement it;
// the engine reports api.ErrNotSupported for backends that do not.
type RecordSource interface {
	// NextRecord fills rec with the next record of the last accepted
	// change. The bool result is false once no records remain.
	NextRecord(mn *Monitor, e *Entry, rec *api.Record) (bool, error)
}
