//go:build !linux
// +build !linux

// File: backend/fanotify/fanotify_stub.go
// Author: momentics <momentics@gmail.com>
//
// Stub for platforms without fanotify.

package fanotify

import (
	"github.com/momentics/mountmon/api"
	"github.com/momentics/mountmon/monitor"
)

// Enable is unsupported on this platform.
func Enable(mn *monitor.Monitor, enable bool, ns int) error {
	return api.ErrNotSupported
}
