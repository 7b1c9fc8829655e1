//go:build linux
// +build linux

// File: reactor/epoll_reactor.go
// Author: momentics <momentics@gmail.com>
//
// Linux epoll(7)-based reactor implementation and factory.

package reactor

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// epollReactor implements Reactor using Linux epoll.
type epollReactor struct {
	epfd int
}

// New creates a close-on-exec epoll instance.
func New() (Reactor, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("epoll create: %w", err)
	}
	return &epollReactor{epfd: epfd}, nil
}

func (r *epollReactor) Fd() int { return r.epfd }

// Add registers fd with epoll. The token travels in the event payload so
// Wait can hand it back without any fd-to-owner lookup.
func (r *epollReactor) Add(fd int, interest Interest, token int32) error {
	ev := unix.EpollEvent{
		Events: epollEvents(interest),
		Fd:     token,
	}
	if err := unix.EpollCtl(r.epfd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
		if err == unix.EEXIST {
			return ErrExists
		}
		return fmt.Errorf("epoll ctl add: %w", err)
	}
	return nil
}

// Remove deregisters fd from epoll.
func (r *epollReactor) Remove(fd int) error {
	if err := unix.EpollCtl(r.epfd, unix.EPOLL_CTL_DEL, fd, nil); err != nil {
		if err == unix.ENOENT {
			return ErrNotRegistered
		}
		return fmt.Errorf("epoll ctl del: %w", err)
	}
	return nil
}

// Wait blocks until at least one registration is ready or timeoutMs elapses.
func (r *epollReactor) Wait(events []Event, timeoutMs int) (int, error) {
	raw := make([]unix.EpollEvent, len(events))
	var n int
	for {
		var err error
		n, err = unix.EpollWait(r.epfd, raw, timeoutMs)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return 0, fmt.Errorf("epoll wait: %w", err)
		}
		break
	}
	for i := 0; i < n; i++ {
		events[i] = Event{Token: raw[i].Fd}
	}
	return n, nil
}

// Close releases the epoll file descriptor.
func (r *epollReactor) Close() error {
	return unix.Close(r.epfd)
}

func epollEvents(interest Interest) uint32 {
	var ev uint32
	if interest&EventIn != 0 {
		ev |= unix.EPOLLIN
	}
	if interest&EventPri != 0 {
		ev |= unix.EPOLLPRI
	}
	if interest&EventEdge != 0 {
		ev |= uint32(unix.EPOLLET)
	}
	return ev
}
