//go:build linux
// +build linux

// File: backend/utab/utab_linux.go
// Author: momentics <momentics@gmail.com>
//
// Userspace mount table watcher based on inotify.
//
// Mount tools rewrite <utab>.event after every utab update, so the final
// watch target is the event file with IN_CLOSE_WRITE. Until that file
// exists the watch falls back to the nearest existing parent directory and
// migrates as files and directories appear or vanish.

package utab

import (
	"fmt"
	"strings"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/momentics/mountmon/api"
	"github.com/momentics/mountmon/internal/paths"
	"github.com/momentics/mountmon/monitor"
	"github.com/momentics/mountmon/reactor"
)

// entryData tracks which path the active inotify watch covers.
type entryData struct {
	watchPath string
}

type backend struct{}

// Enable turns userspace mount table monitoring on or off. The filename
// overrides the default utab path and is honored only on the first enabling
// call; there is at most one userspace entry per monitor.
func Enable(mn *monitor.Monitor, enable bool, filename string) error {
	if mn == nil {
		return api.ErrInvalidArgument
	}
	if e := mn.Lookup(api.TypeUserspace, -1); e != nil {
		err := mn.SetEnabled(e, enable)
		if !enable {
			_ = e.Backend().CloseFD(mn, e)
		}
		return err
	}
	if !enable {
		return nil
	}

	if filename == "" {
		filename = paths.Utab
	}

	e := mn.Register(api.TypeUserspace, -1, backend{})
	e.Path = filename
	e.Interest = reactor.EventIn
	return mn.SetEnabled(e, true)
}

func (backend) FD(mn *monitor.Monitor, e *monitor.Entry) (int, error) {
	if e == nil || !e.Enabled() {
		return -1, api.ErrInvalidArgument
	}
	if e.FD >= 0 {
		return e.FD, nil
	}

	fd, err := unix.InotifyInit1(unix.IN_NONBLOCK | unix.IN_CLOEXEC)
	if err != nil {
		return -1, fmt.Errorf("utab: inotify init: %w", err)
	}
	e.FD = fd

	if _, _, err := addWatch(e); err != nil {
		_ = unix.Close(e.FD)
		e.FD = -1
		return -1, err
	}
	return e.FD, nil
}

func (backend) CloseFD(mn *monitor.Monitor, e *monitor.Entry) error {
	if e == nil {
		return nil
	}
	if e.FD >= 0 {
		_ = unix.Close(e.FD)
		e.FD = -1
	}
	// Watches die with the descriptor; forget them so a later reopen
	// starts the walk from scratch.
	if data, ok := e.Data.(*entryData); ok {
		data.watchPath = ""
	}
	return nil
}

func (backend) FreeData(e *monitor.Entry) error {
	if e != nil {
		e.Data = nil
	}
	return nil
}

// ProcessEvent verifies and drains the inotify buffer. A close of the event
// file is a genuine change; everything else only migrates the watch, and
// counts as a change exactly when the migration reaches the event file
// (the file just appeared, so the utab was updated).
func (backend) ProcessEvent(mn *monitor.Monitor, e *monitor.Entry) (monitor.Verdict, error) {
	if e == nil || e.FD < 0 {
		return monitor.Reject, api.ErrInvalidArgument
	}

	verdict := monitor.Reject
	buf := make([]byte, 16*(unix.SizeofInotifyEvent+unix.NAME_MAX+1))

	for {
		n, err := unix.Read(e.FD, buf)
		if err != nil || n < unix.SizeofInotifyEvent {
			break // drained
		}

		for off := 0; off < n; {
			ev := (*unix.InotifyEvent)(unsafe.Pointer(&buf[off]))
			off += unix.SizeofInotifyEvent + int(ev.Len)

			if ev.Mask&unix.IN_CLOSE_WRITE != 0 {
				verdict = monitor.Accept
				continue
			}
			if ev.Mask&unix.IN_DELETE_SELF != 0 {
				e.Data = nil // watched path is gone, restart the walk
			}
			final, wd, err := addWatch(e)
			if err == nil && wd >= 0 && wd != int(ev.Wd) {
				_, _ = unix.InotifyRmWatch(e.FD, uint32(ev.Wd))
			}
			if final {
				verdict = monitor.Accept
			}
		}
	}
	return verdict, nil
}

// addWatch installs the best available inotify watch for the entry's event
// file: the file itself when it exists, otherwise the nearest existing
// parent directory. The bool result reports that the event file itself got
// watched just now; wd is the new watch descriptor or -1 when the current
// watch was kept.
func addWatch(e *monitor.Entry) (final bool, wd int, err error) {
	data, _ := e.Data.(*entryData)
	if data == nil {
		data = &entryData{}
		e.Data = data
	}

	// Already watching the final event file; re-adding would replay
	// obsolete directory events still sitting in the inotify buffer.
	eventFile := paths.EventFile(e.Path)
	if data.watchPath == eventFile {
		return false, -1, nil
	}

	wd, werr := unix.InotifyAddWatch(e.FD, eventFile, unix.IN_CLOSE_WRITE|unix.IN_DELETE_SELF)
	if werr == nil {
		data.watchPath = eventFile
		return true, wd, nil
	}
	if werr != unix.ENOENT {
		return false, -1, fmt.Errorf("utab: add watch %s: %w", eventFile, werr)
	}

	// The event file does not exist yet. Watch the directory that should
	// contain it; if that is missing too, climb towards the root.
	filename := eventFile
	for strings.IndexByte(filename, '/') >= 0 {
		filename = filename[:strings.LastIndexByte(filename, '/')]
		if filename == "" {
			break
		}
		if data.watchPath == filename {
			break // unchanged, keep the current watch
		}
		wd, werr = unix.InotifyAddWatch(e.FD, filename, unix.IN_CREATE|unix.IN_ISDIR|unix.IN_DELETE_SELF)
		if werr == nil {
			data.watchPath = filename
			return false, wd, nil
		}
		if werr != unix.ENOENT {
			return false, -1, fmt.Errorf("utab: add watch %s: %w", filename, werr)
		}
	}
	return false, -1, nil
}
