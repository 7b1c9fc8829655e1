// File: internal/paths/paths_test.go
// Author: momentics <momentics@gmail.com>

package paths

import "testing"

func TestDerivedFiles(t *testing.T) {
	if got := EventFile("/run/mount/utab"); got != "/run/mount/utab.event" {
		t.Errorf("EventFile = %q", got)
	}
	if got := ActFile("/tmp/x/utab"); got != "/tmp/x/utab.act" {
		t.Errorf("ActFile = %q", got)
	}
}
