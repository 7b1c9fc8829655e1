// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package reactor provides the readiness-multiplexer abstraction used by the
// monitor engine: a single OS-level descriptor on which backend descriptors
// are registered with an opaque token, plus the Linux epoll implementation.
package reactor
