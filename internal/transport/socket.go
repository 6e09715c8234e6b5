//go:build unix

// Package transport implements the node's only OS resource: a
// non-blocking UDP socket driven directly by raw syscalls, plus a
// readiness poller over a single file descriptor. The event loop (§4.4)
// needs an explicit, caller-controlled block point with a computed
// timeout — net.UDPConn's Read parks the calling goroutine in the Go
// runtime's own netpoller instead, which is exactly the hidden blocking
// this package exists to avoid.
package transport

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/swimd/swimd/internal/addr"
)

// Socket is a non-blocking UDP socket bound to a single local endpoint.
type Socket struct {
	fd     int
	family int
}

// Listen creates and binds a non-blocking UDP socket to self. If
// self.Port is 0, the kernel assigns an ephemeral port; call
// LocalEndpoint to discover it.
func Listen(self addr.Endpoint) (*Socket, error) {
	family := unix.AF_INET
	if self.Family == addr.FamilyV6 {
		family = unix.AF_INET6
	}

	fd, err := unix.Socket(family, unix.SOCK_DGRAM, unix.IPPROTO_UDP)
	if err != nil {
		return nil, fmt.Errorf("transport: socket: %w", err)
	}

	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("transport: set nonblocking: %w", err)
	}

	if err := unix.Bind(fd, endpointToSockaddr(self)); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("transport: bind %s: %w", self, err)
	}

	return &Socket{fd: fd, family: family}, nil
}

// Fd returns the underlying file descriptor, for registering with a
// Poller.
func (s *Socket) Fd() int { return s.fd }

// LocalEndpoint returns the address the socket is actually bound to
// (resolving an ephemeral port-0 bind to its assigned port).
func (s *Socket) LocalEndpoint() (addr.Endpoint, error) {
	sa, err := unix.Getsockname(s.fd)
	if err != nil {
		return addr.Endpoint{}, fmt.Errorf("transport: getsockname: %w", err)
	}
	return sockaddrToEndpoint(sa)
}

// RecvFrom reads one datagram without blocking. It returns ErrWouldBlock
// when the socket currently has nothing to read — the event loop's drain
// loop treats that as "done for this wake".
func (s *Socket) RecvFrom(buf []byte) (int, addr.Endpoint, error) {
	n, from, err := unix.Recvfrom(s.fd, buf, 0)
	if err != nil {
		if errors.Is(err, unix.EAGAIN) {
			return 0, addr.Endpoint{}, ErrWouldBlock
		}
		return 0, addr.Endpoint{}, fmt.Errorf("transport: recvfrom: %w", err)
	}
	ep, err := sockaddrToEndpoint(from)
	if err != nil {
		return 0, addr.Endpoint{}, err
	}
	return n, ep, nil
}

// SendTo writes one datagram to to. A transient send failure (§7) is
// returned to the caller to log; the caller's probe still counts toward
// its own timeout rather than being retried here.
func (s *Socket) SendTo(buf []byte, to addr.Endpoint) error {
	if err := unix.Sendto(s.fd, buf, 0, endpointToSockaddr(to)); err != nil {
		return fmt.Errorf("transport: sendto %s: %w", to, err)
	}
	return nil
}

// Close releases the socket.
func (s *Socket) Close() error {
	return unix.Close(s.fd)
}

func endpointToSockaddr(e addr.Endpoint) unix.Sockaddr {
	if e.Family == addr.FamilyV6 {
		sa := &unix.SockaddrInet6{Port: int(e.Port)}
		copy(sa.Addr[:], e.IP[:16])
		return sa
	}
	sa := &unix.SockaddrInet4{Port: int(e.Port)}
	copy(sa.Addr[:], e.IP[:4])
	return sa
}

func sockaddrToEndpoint(sa unix.Sockaddr) (addr.Endpoint, error) {
	switch v := sa.(type) {
	case *unix.SockaddrInet4:
		var e addr.Endpoint
		e.Family = addr.FamilyV4
		copy(e.IP[:4], v.Addr[:])
		e.Port = uint16(v.Port)
		return e, nil
	case *unix.SockaddrInet6:
		var e addr.Endpoint
		e.Family = addr.FamilyV6
		copy(e.IP[:16], v.Addr[:])
		e.Port = uint16(v.Port)
		return e, nil
	default:
		return addr.Endpoint{}, fmt.Errorf("transport: unsupported sockaddr %T", sa)
	}
}
