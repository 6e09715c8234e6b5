package swimnode

import (
	"time"

	"github.com/swimd/swimd/internal/addr"
	"github.com/swimd/swimd/internal/metrics"
	"github.com/swimd/swimd/internal/probe"
	"github.com/swimd/swimd/internal/wire"
)

// dispatch routes a decoded message to its handler. wire.Decode already
// rejects any kind outside the three it knows, so the switch is total.
func (n *Node) dispatch(msg wire.Message, now time.Time) {
	switch msg.Kind {
	case wire.KindPing:
		n.handlePing(msg, now)
	case wire.KindAck:
		n.handleAck(msg, now)
	case wire.KindPingReq:
		n.handlePingReq(msg, now)
	}
}

// handlePing resolves a Suspect sender back to Active (logged and recorded
// like any other transition) or inserts an unknown sender into the member
// table, before Acking it directly (§4.2).
func (n *Node) handlePing(msg wire.Message, now time.Time) {
	n.markAlive(msg.From, now)
	if n.table.InsertOrObserve(msg.From, now) {
		n.cfg.Logger.Infof("discovered member %s via ping", msg.From)
		n.cfg.Snapshot.RecordMemberEvent(msg.From.String(), "none", "active")
	}
	n.send(wire.Message{Kind: wire.KindAck, ID: msg.ID, From: n.self}, msg.From)
}

// handlePingReq either Acks directly (the requester mistook us for the
// target) or relays a Ping on the requester's behalf (§4.3).
func (n *Node) handlePingReq(msg wire.Message, now time.Time) {
	if msg.Target == n.self {
		n.send(wire.Message{Kind: wire.KindAck, ID: msg.ID, From: n.self}, msg.From)
		return
	}

	n.coordinator.StartRelay(msg.ID, msg.From, now, n.cfg.ProbeTimeout)
	n.send(wire.Message{Kind: wire.KindPing, ID: msg.ID, From: n.self}, msg.Target)
}

// handleAck completes whichever pending record msg.ID refers to: a direct
// probe of our own, an indirect probe of our own, or a relay we are
// forwarding on someone else's behalf. An id matching none of those is a
// late ack (arrived after its probe's deadline was already drained) or a
// spoofed/duplicate datagram, and is dropped silently (§4.3, §7).
func (n *Node) handleAck(msg wire.Message, now time.Time) {
	if dp, ok := n.coordinator.CompleteDirect(msg.ID, msg.From); ok {
		n.onDirectAcked(dp, now)
		return
	}
	if ip, ok := n.coordinator.CompleteIndirect(msg.ID, msg.From); ok {
		n.onIndirectAcked(ip, now)
		return
	}
	if rs, ok := n.coordinator.PeekRelay(msg.ID); ok {
		n.send(msg, rs.Requester)
		return
	}
	n.cfg.Logger.Debugf("dropped ack with unknown id %d", msg.ID)
}

func (n *Node) onDirectAcked(p *probe.DirectProbe, now time.Time) {
	sample := now.Sub(p.SentAt)
	stats := n.rtt.Observe(p.Target, sample)
	n.markAlive(p.Target, now)
	n.cfg.Metrics.ObserveRTT(p.Target.String(), stats)
	n.cfg.Metrics.IncProbe(metrics.ProbeOutcomeDirectAck)
	n.cfg.Logger.Debugf("direct ack from %s, rtt=%s", p.Target, sample)
}

func (n *Node) onIndirectAcked(p *probe.IndirectProbe, now time.Time) {
	n.markAlive(p.Target, now)
	n.cfg.Metrics.IncProbe(metrics.ProbeOutcomeIndirectAck)
	n.cfg.Logger.Debugf("indirect ack for %s", p.Target)
}

// markAlive resolves target back to Active if it was Suspect, logging and
// recording the transition at info level like any other state change —
// only when Table.MarkAlive reports the transition actually happened.
func (n *Node) markAlive(target addr.Endpoint, now time.Time) {
	if _, transitioned := n.table.MarkAlive(target, now); transitioned {
		n.cfg.Logger.Infof("member %s: suspect -> active", target)
		n.cfg.Snapshot.RecordMemberEvent(target.String(), "suspect", "active")
	}
}

// onDirectExpired promotes an un-acked direct probe to an indirect probe
// fanned out through up to IndirectProbeCount relays, or straight to
// Suspect if no relay is available (§4.3).
func (n *Node) onDirectExpired(p *probe.DirectProbe, now time.Time) {
	exclude := map[addr.Endpoint]bool{n.self: true, p.Target: true}
	relays := n.table.RandomLiveTargets(n.cfg.Rand, exclude, n.cfg.IndirectProbeCount)

	if len(relays) == 0 {
		n.markSuspect(p.Target, now)
		return
	}

	ip := n.coordinator.StartIndirect(p.Target, relays, now, n.cfg.ProbeTimeout)
	for _, relay := range relays {
		n.send(wire.Message{Kind: wire.KindPingReq, ID: ip.ID, From: n.self, Target: p.Target}, relay)
	}
	n.cfg.Logger.Debugf("direct probe of %s timed out, fanning out to %d relays (id=%d)", p.Target, len(relays), ip.ID)
}

// onIndirectExpired marks the target Suspect once every relay's window has
// closed without a forwarded ack (§4.3).
func (n *Node) onIndirectExpired(p *probe.IndirectProbe, now time.Time) {
	n.markSuspect(p.Target, now)
}

func (n *Node) markSuspect(target addr.Endpoint, now time.Time) {
	if _, transitioned := n.table.MarkSuspect(target, now, n.cfg.SuspectTimeout); transitioned {
		n.cfg.Logger.Infof("member %s: active -> suspect", target)
		n.cfg.Metrics.IncProbe(metrics.ProbeOutcomeSuspected)
		n.cfg.Snapshot.RecordMemberEvent(target.String(), "active", "suspect")
	}
}
