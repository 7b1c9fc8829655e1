//go:build !linux
// +build !linux

// File: backend/utab/utab_stub.go
// Author: momentics <momentics@gmail.com>
//
// Stub for platforms without inotify.

package utab

import (
	"github.com/momentics/mountmon/api"
	"github.com/momentics/mountmon/monitor"
)

// Enable is unsupported on this platform.
func Enable(mn *monitor.Monitor, enable bool, filename string) error {
	return api.ErrNotSupported
}
