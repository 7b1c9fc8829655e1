// Package control
// Author: momentics <momentics@gmail.com>
//
// Runtime metrics and debug introspection layer for the monitor engine.
//
// Provides a concurrent-safe counter registry (attach it to a Monitor with
// SetMetrics to count waits, wake-ups, accepts and rejects) and a debug
// probe registry for state dumps in long-running watchers.
package control
