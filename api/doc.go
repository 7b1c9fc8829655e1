// Package api
// Author: momentics <momentics@gmail.com>
//
// Shared types and error contracts for the mountmon change-monitoring engine.
// The engine itself lives in the monitor package; concrete watchers live
// under backend/.
package api
