package transport

import "errors"

// ErrWouldBlock is returned by RecvFrom when no datagram is currently
// available — the normal "drain until empty" terminator for the event
// loop's read loop.
var ErrWouldBlock = errors.New("transport: would block")
