// Package addr provides a comparable socket-endpoint type used as the
// member-table key, the wire codec's address field, and the transport's
// recvfrom/sendto address.
package addr

import (
	"fmt"
	"net"
	"strconv"
)

// Family identifies the address family of an Endpoint.
type Family uint8

const (
	// FamilyV4 marks a 4-byte IPv4 address stored in the low bytes of IP.
	FamilyV4 Family = 4
	// FamilyV6 marks a 16-byte IPv6 address.
	FamilyV6 Family = 6
)

// Endpoint is a fixed-size, comparable network address. It is deliberately
// a plain value type (not net.UDPAddr, whose IP field is a slice and is
// therefore not comparable) so it can be used directly as a map key.
type Endpoint struct {
	Family Family
	IP     [16]byte
	Port   uint16
}

// Zero reports whether e is the zero-value endpoint.
func (e Endpoint) Zero() bool {
	return e == Endpoint{}
}

// FromUDPAddr converts a resolved *net.UDPAddr into an Endpoint.
func FromUDPAddr(a *net.UDPAddr) (Endpoint, error) {
	if a == nil {
		return Endpoint{}, fmt.Errorf("addr: nil UDPAddr")
	}
	return FromIPPort(a.IP, a.Port)
}

// FromIPPort builds an Endpoint from a net.IP and a port.
func FromIPPort(ip net.IP, port int) (Endpoint, error) {
	if port < 0 || port > 0xFFFF {
		return Endpoint{}, fmt.Errorf("addr: port %d out of range", port)
	}

	var e Endpoint
	e.Port = uint16(port)

	if v4 := ip.To4(); v4 != nil {
		e.Family = FamilyV4
		copy(e.IP[:4], v4)
		return e, nil
	}

	v6 := ip.To16()
	if v6 == nil {
		return Endpoint{}, fmt.Errorf("addr: invalid IP %v", ip)
	}
	e.Family = FamilyV6
	copy(e.IP[:], v6)
	return e, nil
}

// Parse parses a "host:port" string, resolving host via the standard
// resolver (so "localhost:9000" and dotted/IPv6 literals both work).
func Parse(hostport string) (Endpoint, error) {
	host, portStr, err := net.SplitHostPort(hostport)
	if err != nil {
		return Endpoint{}, fmt.Errorf("addr: %w", err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return Endpoint{}, fmt.Errorf("addr: invalid port %q: %w", portStr, err)
	}

	ip := net.ParseIP(host)
	if ip == nil {
		resolved, err := net.ResolveIPAddr("ip", host)
		if err != nil {
			return Endpoint{}, fmt.Errorf("addr: resolve %q: %w", host, err)
		}
		ip = resolved.IP
	}
	return FromIPPort(ip, port)
}

// IPAddr returns the net.IP this endpoint encodes.
func (e Endpoint) IPAddr() net.IP {
	if e.Family == FamilyV4 {
		ip := make(net.IP, 4)
		copy(ip, e.IP[:4])
		return ip
	}
	ip := make(net.IP, 16)
	copy(ip, e.IP[:])
	return ip
}

// UDPAddr converts the Endpoint to a *net.UDPAddr.
func (e Endpoint) UDPAddr() *net.UDPAddr {
	return &net.UDPAddr{IP: e.IPAddr(), Port: int(e.Port)}
}

// String renders the endpoint as "host:port".
func (e Endpoint) String() string {
	return net.JoinHostPort(e.IPAddr().String(), strconv.Itoa(int(e.Port)))
}
