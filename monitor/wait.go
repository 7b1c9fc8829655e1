// File: monitor/wait.go
// Author: momentics <momentics@gmail.com>
//
// Readiness loop and the public wait/consume surface.

package monitor

import (
	"time"

	"github.com/momentics/mountmon/api"
	"github.com/momentics/mountmon/reactor"
)

// readEvents is the internal drain/dispatch loop: block on the multiplexer
// for one ready entry, let its backend classify the signal, and continue
// past rejected (spurious) signals until a change is accepted or the
// timeout elapses. The caller-visible timeout is a hard deadline across
// reject-and-retry iterations. Returns (entry, true) on an accepted change
// and (nil, false) on timeout.
func (m *Monitor) readEvents(timeoutMs int) (*Entry, bool, error) {
	var deadline time.Time
	if timeoutMs > 0 {
		deadline = time.Now().Add(time.Duration(timeoutMs) * time.Millisecond)
	}

	remaining := timeoutMs
	var evs [1]reactor.Event
	for {
		debugf("calling wait, timeout=%d", remaining)
		n, err := m.rc.Wait(evs[:], remaining)
		if err != nil {
			return nil, false, err
		}
		if n == 0 {
			m.count("loop.timeouts")
			debugf(" *** nothing")
			return nil, false, nil
		}
		m.count("loop.wakeups")

		e := m.entryByToken(evs[0].Token)
		if e == nil {
			return nil, false, api.NewError(api.ErrCodeInternal,
				"monitor: readiness event with unknown entry tag").
				WithContext("token", evs[0].Token)
		}

		verdict, err := e.backend.ProcessEvent(m, e)
		if err != nil {
			return nil, false, err
		}
		if verdict == Accept {
			m.count("loop.accepts")
			e.active = true
			return e, true, nil
		}
		m.count("loop.rejects")

		if timeoutMs > 0 {
			remaining = int(time.Until(deadline).Milliseconds())
			if remaining < 0 {
				remaining = 0
			}
		}
	}
}

// Wait blocks for up to timeoutMs milliseconds until some backend accepts a
// change. -1 blocks indefinitely, 0 polls without blocking. The multiplexer
// is created on first use. Returns true when something changed and false on
// timeout; drain the changes with NextChange before waiting again.
func (m *Monitor) Wait(timeoutMs int) (bool, error) {
	if m == nil {
		return false, api.ErrInvalidArgument
	}
	if m.rc == nil {
		if _, err := m.Fd(); err != nil {
			return false, err
		}
	}
	m.count("wait.calls")
	_, changed, err := m.readEvents(timeoutMs)
	if changed {
		m.count("wait.changes")
	}
	return changed, err
}

// NextChange claims the next accepted-but-unconsumed entry, in registration
// order, and reports its path and type. When no entry is pending it makes
// one non-blocking readiness-loop pass before giving up. Call it in a loop
// after every successful Wait until the bool result is false.
func (m *Monitor) NextChange() (api.Change, bool, error) {
	if m == nil || m.rc == nil {
		return api.Change{}, false, api.ErrInvalidArgument
	}

	m.last = 0

	e := m.firstActive()
	if e == nil {
		var ok bool
		var err error
		e, ok, err = m.readEvents(0) // try without timeout
		if err != nil {
			return api.Change{}, false, err
		}
		if !ok {
			return api.Change{}, false, nil
		}
	}

	e.active = false
	m.last = e.token

	debugf(" *** success [changed: %s, type=%s]", e.Path, e.Type)
	return api.Change{Path: e.Path, Type: e.Type}, true, nil
}

// EventCleanup drains all currently knowable changes, discarding the
// results. Use it after a wake-up when the individual changes are not
// interesting.
func (m *Monitor) EventCleanup() error {
	if m == nil || m.rc == nil {
		return api.ErrInvalidArgument
	}
	for {
		_, ok, err := m.NextChange()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
	}
}

// NextRecord fills rec with the next secondary record of the change most
// recently returned by NextChange. Backends without the record capability
// yield api.ErrNotSupported; with no prior change the result is simply
// false so callers can loop uniformly.
func (m *Monitor) NextRecord(rec *api.Record) (bool, error) {
	if m == nil || rec == nil {
		return false, api.ErrInvalidArgument
	}
	e := m.entryByToken(m.last)
	if e == nil {
		return false, nil
	}
	rs, ok := e.backend.(RecordSource)
	if !ok {
		return false, api.ErrNotSupported
	}
	return rs.NextRecord(m, e, rec)
}
