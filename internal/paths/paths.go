// File: internal/paths/paths.go
// Author: momentics <momentics@gmail.com>
//
// Well-known mount table paths shared by the userspace and kernel backends.

package paths

import "os"

const (
	// Utab is the userspace mount table maintained by mount(8) helpers.
	Utab = "/run/mount/utab"
	// Mountinfo is the kernel mount table of the current namespace.
	Mountinfo = "/proc/self/mountinfo"
	// MntNamespace is the mount namespace reference of the current process.
	MntNamespace = "/proc/self/ns/mnt"
)

// EventFile returns the event file a userspace mount tool rewrites after
// every utab update.
func EventFile(utab string) string { return utab + ".event" }

// ActFile returns the lock file a userspace mount tool holds while a mount
// operation is in flight.
func ActFile(utab string) string { return utab + ".act" }

// VeilActive reports whether a userspace mount tool currently holds the act
// lock, meaning kernel-side events duplicate an upcoming userspace one.
func VeilActive() bool {
	_, err := os.Stat(ActFile(Utab))
	return err == nil
}
