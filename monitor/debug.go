// File: monitor/debug.go
// Author: momentics <momentics@gmail.com>
//
// Env-gated debug tracing, off by default.

package monitor

import (
	"log"
	"os"
)

var debugEnabled = os.Getenv("MOUNTMON_DEBUG") != ""

func debugf(format string, args ...any) {
	if debugEnabled {
		log.Printf("mountmon: "+format, args...)
	}
}
