// File: api/types.go
// Author: momentics <momentics@gmail.com>
//
// Shared API-level type declarations and constants.

package api

// MonitorType identifies which backend kind a monitor entry belongs to.
type MonitorType int

const (
	TypeNone MonitorType = iota
	// TypeMountinfo is the kernel mount table watcher (/proc/self/mountinfo).
	TypeMountinfo
	// TypeUserspace is the userspace mount table watcher (/run/mount/utab).
	TypeUserspace
	// TypeFanotify is the mount-namespace watcher (fanotify, Linux >= 6.15).
	TypeFanotify
)

func (t MonitorType) String() string {
	switch t {
	case TypeMountinfo:
		return "mountinfo"
	case TypeUserspace:
		return "userspace"
	case TypeFanotify:
		return "fanotify"
	default:
		return "none"
	}
}

// Change describes one accepted change as reported by Monitor.NextChange.
type Change struct {
	Path string      // monitored path of the entry that changed
	Type MonitorType // backend kind that reported the change
}

// Record is one secondary record attached to the last accepted change.
// A single readiness event may carry several records (for example one
// fanotify read covering several mount points).
type Record struct {
	MountID  uint64 // unique mount ID assigned by the kernel
	Attached bool   // mount was attached
	Detached bool   // mount was detached
}
