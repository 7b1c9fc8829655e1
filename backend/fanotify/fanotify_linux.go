//go:build linux
// +build linux

// File: backend/fanotify/fanotify_linux.go
// Author: momentics <momentics@gmail.com>
//
// Mount-namespace watcher based on fanotify mount reporting (Linux >= 6.15).
// One readiness event carries a batch of per-mount records (mount ID plus
// attach/detach state) which the engine exposes through NextRecord.

package fanotify

import (
	"fmt"
	"unsafe"

	"github.com/eapache/queue"
	"golang.org/x/sys/unix"

	"github.com/momentics/mountmon/api"
	"github.com/momentics/mountmon/internal/paths"
	"github.com/momentics/mountmon/monitor"
	"github.com/momentics/mountmon/reactor"
)

// Mount reporting constants, kernel v6.15 (not yet in x/sys).
const (
	fanReportMnt = 0x00004000 // FAN_REPORT_MNT
	fanMarkMntns = 0x00000110 // FAN_MARK_MNTNS
	fanMntAttach = 0x01000000 // FAN_MNT_ATTACH
	fanMntDetach = 0x02000000 // FAN_MNT_DETACH
)

// eventInfoMnt mirrors struct fanotify_event_info_mnt.
type eventInfoMnt struct {
	InfoType uint8
	_        uint8
	Len      uint16
	_        uint32 // alignment of the 64-bit mount ID
	MntID    uint64
}

const (
	sizeofMeta    = unix.FAN_EVENT_METADATA_LEN
	sizeofInfoMnt = int(unsafe.Sizeof(eventInfoMnt{}))
)

// entryData is the backend payload: the marked namespace descriptor and the
// parsed but unconsumed records of the last accepted event.
type entryData struct {
	nsFD    int
	records *queue.Queue
}

type backend struct{}

// Enable turns mount-namespace monitoring on or off. ns is a mount
// namespace descriptor, or -1 for the current namespace; it doubles as the
// entry id, so several namespaces can be monitored side by side.
func Enable(mn *monitor.Monitor, enable bool, ns int) error {
	if mn == nil {
		return api.ErrInvalidArgument
	}
	if e := mn.Lookup(api.TypeFanotify, ns); e != nil {
		err := mn.SetEnabled(e, enable)
		if !enable {
			_ = e.Backend().CloseFD(mn, e)
		}
		return err
	}
	if !enable {
		return nil
	}

	e := mn.Register(api.TypeFanotify, ns, backend{})
	data := &entryData{nsFD: ns, records: queue.New()}
	e.Data = data
	e.Interest = reactor.EventIn

	if ns < 0 {
		// Private namespace descriptor, closed again by FreeData. The
		// path is a placeholder for NextChange output.
		fd, err := unix.Open(paths.MntNamespace, unix.O_RDONLY|unix.O_CLOEXEC, 0)
		if err != nil {
			_ = mn.Remove(e)
			return fmt.Errorf("fanotify: open %s: %w", paths.MntNamespace, err)
		}
		data.nsFD = fd
		e.Path = paths.MntNamespace
	} else {
		e.Path = fmt.Sprintf("/proc/self/fd/%d", ns)
	}

	return mn.SetEnabled(e, true)
}

func (backend) FD(mn *monitor.Monitor, e *monitor.Entry) (int, error) {
	if e == nil || !e.Enabled() {
		return -1, api.ErrInvalidArgument
	}
	if e.FD >= 0 {
		return e.FD, nil
	}
	data, ok := e.Data.(*entryData)
	if !ok || data.nsFD < 0 {
		return -1, api.ErrInvalidArgument
	}

	fd, err := unix.FanotifyInit(fanReportMnt|unix.FAN_CLOEXEC|unix.FAN_NONBLOCK, 0)
	if err != nil {
		return -1, fmt.Errorf("fanotify: init: %w", err)
	}
	if err := markMountNS(fd, data.nsFD); err != nil {
		_ = unix.Close(fd)
		return -1, err
	}
	e.FD = fd
	return fd, nil
}

// markMountNS subscribes to attach/detach events of the given namespace.
// The pathname argument must be NULL for FAN_MARK_MNTNS, which
// unix.FanotifyMark cannot express, hence the raw syscall.
func markMountNS(fd, nsFD int) error {
	_, _, errno := unix.Syscall6(unix.SYS_FANOTIFY_MARK,
		uintptr(fd),
		uintptr(unix.FAN_MARK_ADD|fanMarkMntns),
		uintptr(fanMntAttach|fanMntDetach),
		uintptr(nsFD), 0, 0)
	if errno != 0 {
		return fmt.Errorf("fanotify: mark mount namespace: %w", errno)
	}
	return nil
}

func (backend) CloseFD(mn *monitor.Monitor, e *monitor.Entry) error {
	if e != nil && e.FD >= 0 {
		_ = unix.Close(e.FD)
		e.FD = -1
	}
	return nil
}

func (backend) FreeData(e *monitor.Entry) error {
	if e == nil {
		return nil
	}
	if data, ok := e.Data.(*entryData); ok {
		// When the namespace FD was supplied by the caller it doubles as
		// the entry id and stays owned by the caller.
		if data.nsFD >= 0 && e.ID != data.nsFD {
			_ = unix.Close(data.nsFD)
		}
	}
	e.Data = nil
	return nil
}

// ProcessEvent reads one batch of mount events and parses it into records.
// Unconsumed records of an earlier batch are discarded first.
func (backend) ProcessEvent(mn *monitor.Monitor, e *monitor.Entry) (monitor.Verdict, error) {
	if e == nil || e.FD < 0 {
		return monitor.Reject, api.ErrInvalidArgument
	}
	data, ok := e.Data.(*entryData)
	if !ok {
		return monitor.Reject, api.ErrInvalidArgument
	}
	data.records = queue.New()

	var buf [4096]byte

	if mn.KernelVeiled() && paths.VeilActive() {
		// Veiled: a userspace tool will report this change, just drain.
		for {
			if _, err := unix.Read(e.FD, buf[:]); err != nil {
				break
			}
		}
		return monitor.Reject, nil
	}

	n, err := unix.Read(e.FD, buf[:])
	if err != nil || n <= 0 {
		return monitor.Reject, nil // nothing
	}

	parseEvents(buf[:n], data.records)
	return monitor.Accept, nil
}

// parseEvents walks a fanotify metadata buffer and queues one record per
// mount event. Malformed or foreign-version tails end the walk.
func parseEvents(buf []byte, records *queue.Queue) {
	off := 0
	for len(buf)-off >= sizeofMeta {
		meta := (*unix.FanotifyEventMetadata)(unsafe.Pointer(&buf[off]))
		eventLen := int(meta.Event_len)
		if eventLen < sizeofMeta || eventLen > len(buf)-off ||
			meta.Vers != unix.FANOTIFY_METADATA_VERSION {
			return
		}
		if eventLen >= sizeofMeta+sizeofInfoMnt {
			info := (*eventInfoMnt)(unsafe.Pointer(&buf[off+sizeofMeta]))
			records.Add(api.Record{
				MountID:  info.MntID,
				Attached: meta.Mask&fanMntAttach != 0,
				Detached: meta.Mask&fanMntDetach != 0,
			})
		}
		off += eventLen
	}
}

// NextRecord pops the next per-mount record of the last accepted event.
func (backend) NextRecord(mn *monitor.Monitor, e *monitor.Entry, rec *api.Record) (bool, error) {
	if e == nil || e.FD < 0 {
		return false, api.ErrInvalidArgument
	}
	data, ok := e.Data.(*entryData)
	if !ok || rec == nil || data.records == nil || data.records.Length() == 0 {
		return false, nil
	}
	*rec = data.records.Remove().(api.Record)
	return true, nil
}
