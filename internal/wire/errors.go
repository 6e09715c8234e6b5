package wire

import "errors"

// ErrMalformed is returned (and never otherwise surfaced — callers drop
// the datagram and count it) when a buffer cannot be decoded.
var ErrMalformed = errors.New("wire: malformed datagram")
