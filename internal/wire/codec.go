// Package wire implements the SWIM datagram codec: three fixed message
// kinds (Ping, Ack, PingReq), each carrying a correlation id, encoded as a
// compact deterministic binary layout with no outer length framing — one
// datagram carries exactly one message.
package wire

import (
	"encoding/binary"
	"fmt"

	"github.com/swimd/swimd/internal/addr"
)

// Kind identifies a message's wire tag.
type Kind uint8

const (
	// KindPing is a direct liveness probe.
	KindPing Kind = 1
	// KindAck acknowledges a Ping or a relayed PingReq.
	KindAck Kind = 2
	// KindPingReq asks a relay to probe Target on the sender's behalf.
	KindPingReq Kind = 3
)

// Message is the decoded form of any of the three wire kinds. Fields not
// relevant to Kind are left zero.
type Message struct {
	Kind   Kind
	ID     uint64
	From   addr.Endpoint
	Target addr.Endpoint // only set for KindPingReq
}

// sizes: kind(1) + id(8) + endpoint(1 family + 4|16 ip + 2 port)
const (
	tagSize    = 1
	idSize     = 8
	familySize = 1
	portSize   = 2
)

func endpointSize(e addr.Endpoint) int {
	if e.Family == addr.FamilyV6 {
		return familySize + 16 + portSize
	}
	return familySize + 4 + portSize
}

func putEndpoint(buf []byte, e addr.Endpoint) []byte {
	buf = append(buf, byte(e.Family))
	if e.Family == addr.FamilyV6 {
		buf = append(buf, e.IP[:16]...)
	} else {
		buf = append(buf, e.IP[:4]...)
	}
	var port [portSize]byte
	binary.BigEndian.PutUint16(port[:], e.Port)
	buf = append(buf, port[:]...)
	return buf
}

func getEndpoint(buf []byte) (addr.Endpoint, []byte, error) {
	if len(buf) < familySize {
		return addr.Endpoint{}, nil, ErrMalformed
	}
	family := addr.Family(buf[0])
	buf = buf[familySize:]

	var ipLen int
	switch family {
	case addr.FamilyV4:
		ipLen = 4
	case addr.FamilyV6:
		ipLen = 16
	default:
		return addr.Endpoint{}, nil, ErrMalformed
	}

	if len(buf) < ipLen+portSize {
		return addr.Endpoint{}, nil, ErrMalformed
	}

	var e addr.Endpoint
	e.Family = family
	copy(e.IP[:ipLen], buf[:ipLen])
	buf = buf[ipLen:]
	e.Port = binary.BigEndian.Uint16(buf[:portSize])
	buf = buf[portSize:]

	return e, buf, nil
}

// Encode renders m as a datagram payload. The caller is expected to have
// populated only the fields relevant to m.Kind.
func Encode(m Message) ([]byte, error) {
	switch m.Kind {
	case KindPing, KindAck:
		size := tagSize + idSize + endpointSize(m.From)
		buf := make([]byte, 0, size)
		buf = append(buf, byte(m.Kind))
		buf = appendID(buf, m.ID)
		buf = putEndpoint(buf, m.From)
		return buf, nil
	case KindPingReq:
		size := tagSize + idSize + endpointSize(m.From) + endpointSize(m.Target)
		buf := make([]byte, 0, size)
		buf = append(buf, byte(m.Kind))
		buf = appendID(buf, m.ID)
		buf = putEndpoint(buf, m.From)
		buf = putEndpoint(buf, m.Target)
		return buf, nil
	default:
		return nil, fmt.Errorf("wire: unknown kind %d", m.Kind)
	}
}

func appendID(buf []byte, id uint64) []byte {
	var b [idSize]byte
	binary.BigEndian.PutUint64(b[:], id)
	return append(buf, b[:]...)
}

// Decode is total: any malformed datagram yields ErrMalformed rather than
// panicking or partially populating m.
func Decode(buf []byte) (Message, error) {
	if len(buf) < tagSize+idSize {
		return Message{}, ErrMalformed
	}

	kind := Kind(buf[0])
	rest := buf[tagSize:]
	id := binary.BigEndian.Uint64(rest[:idSize])
	rest = rest[idSize:]

	switch kind {
	case KindPing, KindAck:
		from, rest, err := getEndpoint(rest)
		if err != nil {
			return Message{}, err
		}
		if len(rest) != 0 {
			return Message{}, ErrMalformed
		}
		return Message{Kind: kind, ID: id, From: from}, nil
	case KindPingReq:
		from, rest, err := getEndpoint(rest)
		if err != nil {
			return Message{}, err
		}
		target, rest, err := getEndpoint(rest)
		if err != nil {
			return Message{}, err
		}
		if len(rest) != 0 {
			return Message{}, ErrMalformed
		}
		return Message{Kind: kind, ID: id, From: from, Target: target}, nil
	default:
		return Message{}, ErrMalformed
	}
}
