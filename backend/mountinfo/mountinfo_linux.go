//go:build linux
// +build linux

// File: backend/mountinfo/mountinfo_linux.go
// Author: momentics <momentics@gmail.com>
//
// Kernel mount table watcher. /proc/self/mountinfo signals table changes as
// edge-triggered readiness on the open file; there is nothing to read, every
// un-veiled edge is a change.

package mountinfo

import (
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/momentics/mountmon/api"
	"github.com/momentics/mountmon/internal/paths"
	"github.com/momentics/mountmon/monitor"
	"github.com/momentics/mountmon/reactor"
)

type backend struct{}

// Enable turns kernel mount table monitoring on or off, allocating the
// entry on first use. With the top-level monitor already created the
// registration is updated immediately; repeated calls are idempotent.
func Enable(mn *monitor.Monitor, enable bool) error {
	if mn == nil {
		return api.ErrInvalidArgument
	}
	if e := mn.Lookup(api.TypeMountinfo, -1); e != nil {
		err := mn.SetEnabled(e, enable)
		if !enable {
			_ = e.Backend().CloseFD(mn, e)
		}
		return err
	}
	if !enable {
		return nil
	}

	e := mn.Register(api.TypeMountinfo, -1, backend{})
	e.Path = paths.Mountinfo
	e.Interest = reactor.EventIn | reactor.EventEdge
	return mn.SetEnabled(e, true)
}

func (backend) FD(mn *monitor.Monitor, e *monitor.Entry) (int, error) {
	if e == nil || !e.Enabled() {
		return -1, api.ErrInvalidArgument
	}
	if e.FD >= 0 {
		return e.FD, nil
	}
	fd, err := unix.Open(e.Path, unix.O_RDONLY|unix.O_CLOEXEC, 0)
	if err != nil {
		return -1, fmt.Errorf("mountinfo: open %s: %w", e.Path, err)
	}
	e.FD = fd
	return fd, nil
}

func (backend) CloseFD(mn *monitor.Monitor, e *monitor.Entry) error {
	if e != nil && e.FD >= 0 {
		_ = unix.Close(e.FD)
		e.FD = -1
	}
	return nil
}

func (backend) FreeData(e *monitor.Entry) error { return nil }

// ProcessEvent classifies one readiness edge. While the kernel is veiled and
// a userspace tool holds the act lock the event duplicates an upcoming
// userspace one and is rejected.
func (backend) ProcessEvent(mn *monitor.Monitor, e *monitor.Entry) (monitor.Verdict, error) {
	if e == nil || e.FD < 0 {
		return monitor.Reject, api.ErrInvalidArgument
	}
	if mn.KernelVeiled() && paths.VeilActive() {
		return monitor.Reject, nil
	}
	return monitor.Accept, nil
}
