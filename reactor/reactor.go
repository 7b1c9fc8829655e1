// File: reactor/reactor.go
// Author: momentics <momentics@gmail.com>
//
// Platform-neutral readiness-multiplexer interface.

package reactor

import "errors"

// Interest is the set of readiness conditions requested for a descriptor.
type Interest uint32

const (
	// EventIn requests wake-ups when data is available for reading.
	EventIn Interest = 1 << iota
	// EventPri requests wake-ups on exceptional conditions.
	EventPri
	// EventEdge switches the registration to edge-triggered delivery.
	EventEdge
)

// Idempotency outcomes of Add/Remove. Callers that want enable/disable to be
// repeatable match against these instead of raw OS errors.
var (
	ErrExists        = errors.New("reactor: descriptor already registered")
	ErrNotRegistered = errors.New("reactor: descriptor not registered")
)

// Event is one readiness signal returned by Wait.
type Event struct {
	Token int32 // registration tag supplied to Add; never zero
}

// Reactor multiplexes readiness of many descriptors behind one fd.
type Reactor interface {
	// Fd returns the multiplexer's own descriptor, usable for embedding in
	// an external readiness loop.
	Fd() int

	// Add registers fd with the given interest and tags the registration
	// with token. Re-adding an already registered fd returns ErrExists.
	Add(fd int, interest Interest, token int32) error

	// Remove deregisters fd. Removing an unknown fd returns ErrNotRegistered.
	Remove(fd int) error

	// Wait blocks for up to timeoutMs milliseconds and fills events with
	// ready registrations. timeoutMs < 0 blocks indefinitely, 0 polls.
	Wait(events []Event, timeoutMs int) (int, error)

	// Close releases the multiplexer descriptor. Registered descriptors
	// themselves stay open; only their registrations are torn down.
	Close() error
}
