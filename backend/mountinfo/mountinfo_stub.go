//go:build !linux
// +build !linux

// File: backend/mountinfo/mountinfo_stub.go
// Author: momentics <momentics@gmail.com>
//
// Stub for platforms without a kernel mount table.

package mountinfo

import (
	"github.com/momentics/mountmon/api"
	"github.com/momentics/mountmon/monitor"
)

// Enable is unsupported on this platform.
func Enable(mn *monitor.Monitor, enable bool) error {
	return api.ErrNotSupported
}
