// File: monitor/monitor.go
// Author: momentics <momentics@gmail.com>
//
// Monitor lifecycle and multiplexer management.

package monitor

import (
	"errors"

	"github.com/momentics/mountmon/api"
	"github.com/momentics/mountmon/control"
	"github.com/momentics/mountmon/reactor"
)

// Monitor owns the readiness multiplexer and the ordered entry collection.
// All operations on one instance must be serialized by the caller.
type Monitor struct {
	refs    int
	rc      reactor.Reactor // nil until first Fd/Wait
	entries []*Entry

	lastToken int32 // token generator, 0 is reserved for "none"
	last      int32 // entry most recently returned by NextChange

	kernelVeiled bool
	metrics      *control.MetricsRegistry
}

// New allocates a monitor with refcount 1; release it with Unref.
func New() *Monitor {
	debugf("alloc monitor")
	return &Monitor{refs: 1}
}

// Ref increments the reference counter.
func (m *Monitor) Ref() {
	if m != nil {
		m.refs++
	}
}

// Unref decrements the reference counter. On zero the multiplexer is closed
// and every entry is released.
func (m *Monitor) Unref() {
	if m == nil {
		return
	}
	m.refs--
	if m.refs > 0 {
		return
	}
	_ = m.CloseFd()
	for len(m.entries) > 0 {
		_ = m.Remove(m.entries[0])
	}
}

// VeilKernel makes kernel-side backends report their events as spurious
// while a userspace mount tool signals (via the utab act file) that it is
// about to update the userspace mount table itself.
func (m *Monitor) VeilKernel(enable bool) {
	if m != nil {
		m.kernelVeiled = enable
	}
}

// KernelVeiled reports whether kernel-side events are currently veiled.
func (m *Monitor) KernelVeiled() bool { return m != nil && m.kernelVeiled }

// SetMetrics attaches an optional counter registry updated by Wait and the
// internal readiness loop.
func (m *Monitor) SetMetrics(mr *control.MetricsRegistry) {
	if m != nil {
		m.metrics = mr
	}
}

func (m *Monitor) count(key string) {
	if m.metrics != nil {
		m.metrics.Inc(key)
	}
}

// SetEnabled toggles an entry's participation in the multiplexer and clears
// any pending change. With the multiplexer already created the registration
// is updated immediately; enabling and disabling are idempotent. The enabled
// flag reflects caller intent and is updated even when the registration
// fails; the returned error reports the failure.
func (m *Monitor) SetEnabled(e *Entry, enable bool) error {
	if m == nil || e == nil {
		return api.ErrInvalidArgument
	}
	e.enabled = enable
	e.active = false

	if m.rc == nil {
		return nil // no multiplexer yet, Fd() will register later
	}

	if enable {
		fd, err := e.backend.FD(m, e)
		if err != nil {
			return err
		}
		debugf("add fd=%d (for %s)", fd, e.Path)
		if err := m.rc.Add(fd, e.Interest, e.token); err != nil && !errors.Is(err, reactor.ErrExists) {
			return err
		}
		if e.Interest&(reactor.EventIn|reactor.EventEdge) != 0 {
			// Discard readiness accumulated before the registration,
			// e.g. the initial edge on /proc/self/mountinfo.
			var evs [1]reactor.Event
			for {
				n, err := m.rc.Wait(evs[:], 0)
				if err != nil || n == 0 {
					break
				}
			}
		}
	} else if e.FD >= 0 {
		debugf("remove fd=%d (for %s)", e.FD, e.Path)
		if err := m.rc.Remove(e.FD); err != nil && !errors.Is(err, reactor.ErrNotRegistered) {
			return err
		}
	}
	return nil
}

// Fd returns the multiplexer descriptor, creating it lazily and registering
// every enabled entry on first use. The descriptor is usable in an external
// readiness loop; after each wake-up call NextChange or EventCleanup.
func (m *Monitor) Fd() (int, error) {
	if m == nil {
		return -1, api.ErrInvalidArgument
	}
	if m.rc != nil {
		return m.rc.Fd(), nil
	}

	debugf("create top-level monitor fd")
	rc, err := reactor.New()
	if err != nil {
		return -1, err
	}
	m.rc = rc

	for _, e := range m.entries {
		if !e.enabled {
			continue
		}
		if err := m.SetEnabled(e, true); err != nil {
			// Unwind the partial setup so a later call can retry cleanly.
			_ = m.rc.Close()
			m.rc = nil
			debugf("failed to create monitor: %v", err)
			return -1, err
		}
	}
	debugf("successfully created monitor (fd=%d)", m.rc.Fd())
	return m.rc.Fd(), nil
}

// CloseFd deregisters every entry, invokes each backend's CloseFD hook and
// closes the multiplexer descriptor. Entries keep their enabled flag; the
// next Fd or Wait re-registers them on a fresh descriptor. Idempotent, and
// the function that runs during teardown.
func (m *Monitor) CloseFd() error {
	if m == nil {
		return api.ErrInvalidArgument
	}
	var firstErr error
	for _, e := range m.entries {
		if m.rc != nil && e.FD >= 0 {
			if err := m.rc.Remove(e.FD); err != nil && !errors.Is(err, reactor.ErrNotRegistered) && firstErr == nil {
				firstErr = err
			}
		}
		e.active = false
		if err := e.backend.CloseFD(m, e); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if m.rc != nil {
		debugf("closing top-level monitor fd")
		if err := m.rc.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		m.rc = nil
	}
	return firstErr
}
