// Package probe implements the bookkeeping for in-flight direct probes,
// indirect probes, and relayed pings (§4.3): each keyed by a correlation
// id and an absolute deadline, and ordered by a single deadline heap so
// the event loop can always ask "how long until the next thing expires".
package probe

import (
	"time"

	"github.com/swimd/swimd/internal/addr"
)

// Kind distinguishes what a deadline-heap entry (and an Expired result)
// refers to.
type Kind uint8

const (
	// KindDirect is a direct Ping awaiting an Ack.
	KindDirect Kind = iota
	// KindIndirect is a PingReq fan-out awaiting a forwarded Ack.
	KindIndirect
	// KindRelay is bookkeeping for a PingReq this node is relaying on
	// behalf of another node.
	KindRelay
)

// DirectProbe is a Ping sent to target, awaiting its Ack.
type DirectProbe struct {
	ID       uint64
	Target   addr.Endpoint
	SentAt   time.Time
	Deadline time.Time
}

// IndirectProbe is a PingReq fan-out for target through Relays, created
// after a DirectProbe expired.
type IndirectProbe struct {
	ID       uint64
	Target   addr.Endpoint
	Relays   []addr.Endpoint
	Deadline time.Time
}

// RelayState is bookkeeping kept by a relay: it remembers who asked for
// an indirect ping of whom, so that an Ack arriving from the target can
// be forwarded back to the original requester.
type RelayState struct {
	ID        uint64
	Requester addr.Endpoint
	Deadline  time.Time
}

// Expired is one item popped off the deadline heap whose time has come.
// Exactly one of Direct/Indirect/Relay is set, matching Kind.
type Expired struct {
	Kind     Kind
	Direct   *DirectProbe
	Indirect *IndirectProbe
	Relay    *RelayState
}

// Coordinator owns every in-flight probe and the relay bookkeeping, plus
// the monotonically increasing correlation-id counter. Like the
// membership table, it is owned exclusively by the event loop.
type Coordinator struct {
	nextID uint64
	heap   deadlineHeap

	direct         map[uint64]*DirectProbe
	directByTarget map[addr.Endpoint]*DirectProbe
	indirect       map[uint64]*IndirectProbe
	relays         map[uint64]*RelayState
}

// New creates an empty Coordinator.
func New() *Coordinator {
	return &Coordinator{
		direct:         make(map[uint64]*DirectProbe),
		directByTarget: make(map[addr.Endpoint]*DirectProbe),
		indirect:       make(map[uint64]*IndirectProbe),
		relays:         make(map[uint64]*RelayState),
	}
}

// NextID allocates a fresh correlation id. It is never reused within the
// process lifetime.
func (c *Coordinator) NextID() uint64 {
	c.nextID++
	return c.nextID
}

// HasPendingDirect reports whether target already has a direct probe in
// flight — a tick must skip such a target (§4.3 collision guard).
func (c *Coordinator) HasPendingDirect(target addr.Endpoint) bool {
	_, ok := c.directByTarget[target]
	return ok
}

// PendingDirectTargets returns the set of targets with a direct probe
// currently in flight, for building a tick's exclude set in one call.
func (c *Coordinator) PendingDirectTargets() map[addr.Endpoint]bool {
	out := make(map[addr.Endpoint]bool, len(c.directByTarget))
	for target := range c.directByTarget {
		out[target] = true
	}
	return out
}

// StartDirect allocates a correlation id and records a new pending direct
// probe against target.
func (c *Coordinator) StartDirect(target addr.Endpoint, now time.Time, timeout time.Duration) *DirectProbe {
	id := c.NextID()
	deadline := now.Add(timeout)
	p := &DirectProbe{ID: id, Target: target, SentAt: now, Deadline: deadline}
	c.direct[id] = p
	c.directByTarget[target] = p
	c.heap.Push(deadlineEntry{id: id, kind: KindDirect, deadline: deadline})
	return p
}

// CompleteDirect removes and returns the pending direct probe with id, if
// any, but only when from matches the probe's own Target. Correlation ids
// are only unique within a process (§3), so a relay running its own ticks
// can have a pending direct probe whose id happens to collide with a
// PingReq it is relaying for someone else; requiring the Ack's sender to
// match the recorded Target is what keeps that collision from completing
// the wrong probe.
func (c *Coordinator) CompleteDirect(id uint64, from addr.Endpoint) (*DirectProbe, bool) {
	p, ok := c.direct[id]
	if !ok || p.Target != from {
		return nil, false
	}
	delete(c.direct, id)
	delete(c.directByTarget, p.Target)
	return p, true
}

// StartIndirect allocates a correlation id and records a new pending
// indirect probe against target through relays.
func (c *Coordinator) StartIndirect(target addr.Endpoint, relays []addr.Endpoint, now time.Time, timeout time.Duration) *IndirectProbe {
	id := c.NextID()
	deadline := now.Add(timeout)
	p := &IndirectProbe{ID: id, Target: target, Relays: relays, Deadline: deadline}
	c.indirect[id] = p
	c.heap.Push(deadlineEntry{id: id, kind: KindIndirect, deadline: deadline})
	return p
}

// CompleteIndirect removes and returns the pending indirect probe with
// id, if any, but only when from matches the probe's own Target — the
// same correlation-id-collision guard as CompleteDirect. A relay forwards
// the target's Ack unchanged, so a legitimate completion always has
// from == p.Target; subsequent Acks with the same id (from other relays)
// find nothing and are dropped by the caller.
func (c *Coordinator) CompleteIndirect(id uint64, from addr.Endpoint) (*IndirectProbe, bool) {
	p, ok := c.indirect[id]
	if !ok || p.Target != from {
		return nil, false
	}
	delete(c.indirect, id)
	return p, true
}

// StartRelay records that this node is relaying a PingReq with the given
// (externally chosen) correlation id on behalf of requester.
func (c *Coordinator) StartRelay(id uint64, requester addr.Endpoint, now time.Time, timeout time.Duration) *RelayState {
	deadline := now.Add(timeout)
	r := &RelayState{ID: id, Requester: requester, Deadline: deadline}
	c.relays[id] = r
	c.heap.Push(deadlineEntry{id: id, kind: KindRelay, deadline: deadline})
	return r
}

// PeekRelay looks up relay bookkeeping by id without removing it, so a
// duplicate Ack within the relay window can still be forwarded.
func (c *Coordinator) PeekRelay(id uint64) (*RelayState, bool) {
	r, ok := c.relays[id]
	return r, ok
}

// liveEntry reports whether a popped heap entry still refers to a live
// (not yet completed) pending record.
func (c *Coordinator) liveEntry(e deadlineEntry) bool {
	switch e.kind {
	case KindDirect:
		p, ok := c.direct[e.id]
		return ok && p.Deadline.Equal(e.deadline)
	case KindIndirect:
		p, ok := c.indirect[e.id]
		return ok && p.Deadline.Equal(e.deadline)
	case KindRelay:
		r, ok := c.relays[e.id]
		return ok && r.Deadline.Equal(e.deadline)
	default:
		return false
	}
}

// NextDeadline returns the earliest deadline among every still-live
// pending record, discarding stale heap entries (already-completed
// probes) as it goes.
func (c *Coordinator) NextDeadline() (time.Time, bool) {
	for {
		e, ok := c.heap.Peek()
		if !ok {
			return time.Time{}, false
		}
		if c.liveEntry(e) {
			return e.deadline, true
		}
		c.heap.Pop()
	}
}

// DrainExpired pops and returns every pending record whose deadline is
// <= now, removing them from the coordinator's bookkeeping as it goes.
func (c *Coordinator) DrainExpired(now time.Time) []Expired {
	var out []Expired
	for {
		e, ok := c.heap.Peek()
		if !ok || e.deadline.After(now) {
			break
		}
		c.heap.Pop()

		switch e.kind {
		case KindDirect:
			p, ok := c.direct[e.id]
			if !ok || !p.Deadline.Equal(e.deadline) {
				continue
			}
			delete(c.direct, e.id)
			delete(c.directByTarget, p.Target)
			out = append(out, Expired{Kind: KindDirect, Direct: p})
		case KindIndirect:
			p, ok := c.indirect[e.id]
			if !ok || !p.Deadline.Equal(e.deadline) {
				continue
			}
			delete(c.indirect, e.id)
			out = append(out, Expired{Kind: KindIndirect, Indirect: p})
		case KindRelay:
			r, ok := c.relays[e.id]
			if !ok || !r.Deadline.Equal(e.deadline) {
				continue
			}
			delete(c.relays, e.id)
			out = append(out, Expired{Kind: KindRelay, Relay: r})
		}
	}
	return out
}
