// control/debug.go
// Author: momentics <momentics@gmail.com>
//
// State probes for long-running watchers.

package control

import "sync"

// DebugProbes collects named state probes. A daemon embedding a monitor
// registers its counter registry (and whatever else is worth dumping) once
// and calls DumpState from a signal handler or a debug endpoint.
type DebugProbes struct {
	mu     sync.RWMutex
	probes map[string]func() any
}

// NewDebugProbes creates an empty probe registry.
func NewDebugProbes() *DebugProbes {
	return &DebugProbes{
		probes: make(map[string]func() any),
	}
}

// RegisterProbe inserts a named probe; fn runs on every DumpState call.
func (dp *DebugProbes) RegisterProbe(name string, fn func() any) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.probes[name] = fn
}

// RegisterMetrics exposes a monitor's counter registry as a probe.
func (dp *DebugProbes) RegisterMetrics(name string, mr *MetricsRegistry) {
	dp.RegisterProbe(name, func() any { return mr.Snapshot() })
}

// DumpState evaluates every probe and returns the combined state keyed by
// probe name. Counter registries appear as plain name-to-value maps.
func (dp *DebugProbes) DumpState() map[string]any {
	dp.mu.RLock()
	defer dp.mu.RUnlock()
	out := make(map[string]any)
	for k, fn := range dp.probes {
		out[k] = fn()
	}
	return out
}
