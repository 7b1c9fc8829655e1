// File: monitor/entry.go
// Author: momentics <momentics@gmail.com>
//
// Entry registration, lookup and lifecycle.

package monitor

import (
	"github.com/momentics/mountmon/api"
	"github.com/momentics/mountmon/reactor"
)

// Entry is one registered notification source. Backends fill in the exported
// fields right after Register; the engine owns the enable/active state.
type Entry struct {
	FD       int              // backend readiness descriptor, -1 until opened
	ID       int              // caller-assigned discriminator, -1 when unused
	Path     string           // monitored path, reported by NextChange
	Type     api.MonitorType  // backend kind
	Interest reactor.Interest // readiness conditions for the multiplexer
	Data     any              // backend private state, released via FreeData

	backend Backend
	token   int32 // multiplexer registration tag, unique per monitor
	enabled bool
	active  bool // accepted change pending, not yet claimed by NextChange
}

// Enabled reports whether the entry participates in the multiplexer.
func (e *Entry) Enabled() bool { return e != nil && e.enabled }

// Backend returns the capability set the entry was registered with.
func (e *Entry) Backend() Backend {
	if e == nil {
		return nil
	}
	return e.backend
}

// Register creates a disabled entry for the given backend kind and appends
// it to the monitor. Insertion order defines the drain order among entries
// that are simultaneously active.
func (m *Monitor) Register(typ api.MonitorType, id int, b Backend) *Entry {
	if m == nil || b == nil {
		return nil
	}
	m.lastToken++
	e := &Entry{
		FD:      -1,
		ID:      id,
		Type:    typ,
		backend: b,
		token:   m.lastToken,
	}
	m.entries = append(m.entries, e)
	return e
}

// Lookup returns the entry registered for (typ, id), or nil.
func (m *Monitor) Lookup(typ api.MonitorType, id int) *Entry {
	if m == nil {
		return nil
	}
	for _, e := range m.entries {
		if e.Type == typ && e.ID == id {
			return e
		}
	}
	return nil
}

// Remove releases an entry: backend payload, multiplexer registration and
// the entry's own descriptor. The last-change handle is cleared first so it
// can never dangle. Entries not in the collection (already removed, or owned
// by another monitor) report api.ErrNotFound and stay untouched.
func (m *Monitor) Remove(e *Entry) error {
	if m == nil || e == nil {
		return api.ErrInvalidArgument
	}
	idx := -1
	for i, cur := range m.entries {
		if cur == e {
			idx = i
			break
		}
	}
	if idx < 0 {
		return api.ErrNotFound
	}
	if m.last == e.token {
		m.last = 0
	}
	if m.rc != nil && e.FD >= 0 {
		_ = m.rc.Remove(e.FD)
	}
	_ = e.backend.FreeData(e)
	err := e.backend.CloseFD(m, e)
	m.entries = append(m.entries[:idx], m.entries[idx+1:]...)
	return err
}

func (m *Monitor) entryByToken(token int32) *Entry {
	if token == 0 {
		return nil
	}
	for _, e := range m.entries {
		if e.token == token {
			return e
		}
	}
	return nil
}

func (m *Monitor) firstActive() *Entry {
	for _, e := range m.entries {
		if e.active {
			return e
		}
	}
	return nil
}
