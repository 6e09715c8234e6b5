//go:build unix

package transport

import (
	"errors"
	"time"

	"golang.org/x/sys/unix"
)

// Poller multiplexes readiness for a single file descriptor using
// poll(2). A single fd is all the node ever has, so this is deliberately
// simpler than an epoll-backed multi-fd reactor — but it is the same
// readiness-notification facility the spec's architecture calls for: one
// blocking call, one computed timeout, never longer than the caller's
// nearest deadline.
type Poller struct {
	fd int
}

// NewPoller wraps fd for readiness waits.
func NewPoller(fd int) *Poller {
	return &Poller{fd: fd}
}

// Wait blocks until the fd is readable or timeout elapses. A negative
// timeout waits indefinitely.
func (p *Poller) Wait(timeout time.Duration) (readable bool, err error) {
	ms := -1
	if timeout >= 0 {
		ms = int(timeout.Milliseconds())
	}

	fds := []unix.PollFd{{Fd: int32(p.fd), Events: unix.POLLIN}}
	for {
		n, err := unix.Poll(fds, ms)
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			return false, err
		}
		return n > 0 && fds[0].Revents&unix.POLLIN != 0, nil
	}
}
