//go:build linux
// +build linux

// Author: momentics <momentics@gmail.com>
// SPDX-License-Identifier: MIT

// Package fake provides scriptable test doubles for the monitor engine.
// Backend readiness is driven through a pipe, so engine tests exercise the
// real multiplexer path.
package fake

import (
	"golang.org/x/sys/unix"

	"github.com/momentics/mountmon/api"
	"github.com/momentics/mountmon/monitor"
	"github.com/momentics/mountmon/reactor"
)

// Backend is a monitor backend whose readiness is triggered by writing to a
// pipe and whose event verdicts follow a script.
type Backend struct {
	// Verdicts is consumed one per ProcessEvent call; once exhausted every
	// further event is accepted.
	Verdicts []monitor.Verdict
	// FDErr, when set, makes FD fail (exercises enable-failure paths).
	FDErr error

	r, w   int
	closed bool
}

// NewBackend allocates the underlying pipe.
func NewBackend() (*Backend, error) {
	var p [2]int
	if err := unix.Pipe2(p[:], unix.O_NONBLOCK|unix.O_CLOEXEC); err != nil {
		return nil, err
	}
	return &Backend{r: p[0], w: p[1]}, nil
}

// Trigger simulates one readiness signal.
func (b *Backend) Trigger() error {
	_, err := unix.Write(b.w, []byte{1})
	return err
}

func (b *Backend) FD(mn *monitor.Monitor, e *monitor.Entry) (int, error) {
	if b.FDErr != nil {
		return -1, b.FDErr
	}
	if b.closed {
		// Reopen like the real backends do after a multiplexer reset.
		var p [2]int
		if err := unix.Pipe2(p[:], unix.O_NONBLOCK|unix.O_CLOEXEC); err != nil {
			return -1, err
		}
		b.r, b.w = p[0], p[1]
		b.closed = false
	}
	e.FD = b.r
	return b.r, nil
}

func (b *Backend) CloseFD(mn *monitor.Monitor, e *monitor.Entry) error {
	if !b.closed {
		_ = unix.Close(b.r)
		_ = unix.Close(b.w)
		b.closed = true
	}
	e.FD = -1
	return nil
}

func (b *Backend) FreeData(e *monitor.Entry) error {
	e.Data = nil
	return nil
}

// ProcessEvent drains the pipe and returns the next scripted verdict.
func (b *Backend) ProcessEvent(mn *monitor.Monitor, e *monitor.Entry) (monitor.Verdict, error) {
	var buf [64]byte
	for {
		n, err := unix.Read(e.FD, buf[:])
		if err != nil || n == 0 {
			break
		}
	}
	if len(b.Verdicts) == 0 {
		return monitor.Accept, nil
	}
	v := b.Verdicts[0]
	b.Verdicts = b.Verdicts[1:]
	return v, nil
}

// RecordBackend extends Backend with a scripted secondary-record stream.
type RecordBackend struct {
	Backend
	Records []api.Record

	next int
}

// NewRecordBackend allocates a record-capable fake backend.
func NewRecordBackend(records []api.Record) (*RecordBackend, error) {
	b, err := NewBackend()
	if err != nil {
		return nil, err
	}
	return &RecordBackend{Backend: *b, Records: records}, nil
}

// NextRecord serves the scripted records once per accepted change.
func (b *RecordBackend) NextRecord(mn *monitor.Monitor, e *monitor.Entry, rec *api.Record) (bool, error) {
	if b.next >= len(b.Records) {
		return false, nil
	}
	*rec = b.Records[b.next]
	b.next++
	return true, nil
}

// Enable registers a fake entry and enables it, mirroring what the real
// backend setup functions do.
func Enable(mn *monitor.Monitor, typ api.MonitorType, id int, path string, b monitor.Backend) (*monitor.Entry, error) {
	if mn == nil || b == nil {
		return nil, api.ErrInvalidArgument
	}
	e := mn.Register(typ, id, b)
	e.Path = path
	e.Interest = reactor.EventIn
	return e, mn.SetEnabled(e, true)
}
