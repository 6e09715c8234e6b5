// Package swimnode is the event loop: it owns the socket, the membership
// table, and the probe coordinator, and drives them all from one
// single-threaded poll-wait-dispatch cycle (§4.4). Nothing here spawns a
// goroutine — every blocking point is the one explicit poller.Wait call.
package swimnode

import (
	"context"
	"fmt"
	"time"

	"github.com/swimd/swimd/internal/addr"
	"github.com/swimd/swimd/internal/membership"
	"github.com/swimd/swimd/internal/metrics"
	"github.com/swimd/swimd/internal/probe"
	"github.com/swimd/swimd/internal/transport"
	"github.com/swimd/swimd/internal/wire"
)

// maxDatagram is comfortably larger than any message this codec can
// produce (the largest, a PingReq over IPv6, is well under 64 bytes).
const maxDatagram = 512

// Node is one running SWIM participant.
type Node struct {
	cfg Config

	self   addr.Endpoint
	socket *transport.Socket
	poller *transport.Poller

	table       *membership.Table
	coordinator *probe.Coordinator
	rtt         *metrics.Aggregator

	lastTick time.Time
	recvBuf  []byte
}

// New binds the node's socket and prepares its in-memory state. It does
// not send anything yet; call Run to start the event loop.
func New(cfg Config) (*Node, error) {
	cfg = cfg.Normalize()

	socket, err := transport.Listen(cfg.Self)
	if err != nil {
		return nil, fmt.Errorf("swimnode: listen: %w", err)
	}

	self := cfg.Self
	if self.Port == 0 {
		if resolved, err := socket.LocalEndpoint(); err == nil {
			self = resolved
		}
	}

	n := &Node{
		cfg:         cfg,
		self:        self,
		socket:      socket,
		poller:      transport.NewPoller(socket.Fd()),
		table:       membership.New(self),
		coordinator: probe.New(),
		rtt:         metrics.NewAggregator(),
		recvBuf:     make([]byte, maxDatagram),
	}
	return n, nil
}

// LocalEndpoint returns the endpoint the node is actually bound to.
func (n *Node) LocalEndpoint() addr.Endpoint { return n.self }

// Close releases the node's socket.
func (n *Node) Close() error { return n.socket.Close() }

// Run drives the event loop until ctx is cancelled. A cancellation is
// noticed within one tick interval at worst, since the poll wait is never
// longer than the time remaining until the next tick.
func (n *Node) Run(ctx context.Context) error {
	now := n.cfg.Clock.Now()
	n.lastTick = now

	if n.cfg.Seed != nil {
		n.bootstrap(*n.cfg.Seed, now)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		now = n.cfg.Clock.Now()
		wait := n.nextWait(now)

		readable, err := n.poller.Wait(wait)
		if err != nil {
			return fmt.Errorf("swimnode: poll: %w", err)
		}

		now = n.cfg.Clock.Now()

		if readable {
			n.drainSocket(now)
		}

		n.processExpiredProbes(now)
		n.processExpiredSuspicions(now)
		n.maybeTick(now)
	}
}

// bootstrap sends the initial Ping to the seed node, identically to how a
// normal tick probes a randomly chosen target (§4.1).
func (n *Node) bootstrap(seed addr.Endpoint, now time.Time) {
	n.table.InsertOrObserve(seed, now)
	p := n.coordinator.StartDirect(seed, now, n.cfg.ProbeTimeout)
	n.send(wire.Message{Kind: wire.KindPing, ID: p.ID, From: n.self}, seed)
	n.cfg.Logger.Infof("bootstrap: probing seed %s (id=%d)", seed, p.ID)
}

// nextWait computes how long the poller may block: never past the next
// tick, the next probe/relay deadline, or the next suspicion deadline.
func (n *Node) nextWait(now time.Time) time.Duration {
	next := n.lastTick.Add(n.cfg.TickInterval)

	if d, ok := n.coordinator.NextDeadline(); ok && d.Before(next) {
		next = d
	}
	if d, ok := n.table.NextSuspicionDeadline(); ok && d.Before(next) {
		next = d
	}

	wait := next.Sub(now)
	if wait < 0 {
		wait = 0
	}
	return wait
}

// drainSocket reads every currently available datagram and dispatches it.
func (n *Node) drainSocket(now time.Time) {
	for {
		size, _, err := n.socket.RecvFrom(n.recvBuf)
		if err == transport.ErrWouldBlock {
			return
		}
		if err != nil {
			n.cfg.Logger.Infof("recv error: %v", err)
			return
		}

		msg, err := wire.Decode(n.recvBuf[:size])
		if err != nil {
			n.cfg.Metrics.IncDecodeError()
			n.cfg.Logger.Debugf("dropped malformed datagram (%d bytes)", size)
			continue
		}
		n.dispatch(msg, now)
	}
}

// processExpiredProbes handles every direct/indirect/relay bookkeeping
// entry whose deadline has passed (§4.3 steps 2-3).
func (n *Node) processExpiredProbes(now time.Time) {
	for _, e := range n.coordinator.DrainExpired(now) {
		switch e.Kind {
		case probe.KindDirect:
			n.onDirectExpired(e.Direct, now)
		case probe.KindIndirect:
			n.onIndirectExpired(e.Indirect, now)
		case probe.KindRelay:
			n.cfg.Logger.Debugf("relay %d expired with no forwarded ack", e.Relay.ID)
		}
	}
}

// processExpiredSuspicions transitions every Suspect member past its
// deadline to Dead (§4.3 step 4).
func (n *Node) processExpiredSuspicions(now time.Time) {
	for _, e := range n.table.ExpireSuspects(now) {
		if _, transitioned := n.table.MarkDead(e, now); transitioned {
			n.cfg.Logger.Infof("member %s: suspect -> dead", e)
			n.cfg.Metrics.IncProbe(metrics.ProbeOutcomeDead)
			n.cfg.Snapshot.RecordMemberEvent(e.String(), "suspect", "dead")
		}
	}
}

// maybeTick runs at most one tick per call, advancing lastTick by exactly
// one interval — a node running far behind catches up one interval per
// loop pass rather than skipping straight to now.
func (n *Node) maybeTick(now time.Time) {
	if now.Before(n.lastTick.Add(n.cfg.TickInterval)) {
		return
	}
	n.runTick(now)
	n.lastTick = n.lastTick.Add(n.cfg.TickInterval)
}

func (n *Node) runTick(now time.Time) {
	exclude := n.coordinator.PendingDirectTargets()
	targets := n.table.RandomLiveTargets(n.cfg.Rand, exclude, 1)

	if len(targets) > 0 {
		target := targets[0]
		p := n.coordinator.StartDirect(target, now, n.cfg.ProbeTimeout)
		n.send(wire.Message{Kind: wire.KindPing, ID: p.ID, From: n.self}, target)
	}

	active, suspect, dead := n.table.CountByState()
	n.cfg.Metrics.SetMemberCounts(active, suspect, dead)
	meanRTT := n.rtt.MeanAll()
	n.cfg.Snapshot.RecordTick(active, suspect, dead, meanRTT)
	n.cfg.Logger.Infof("tick: active=%d suspect=%d dead=%d mean_rtt=%s", active, suspect, dead, meanRTT)

	if n.cfg.OnTick != nil {
		n.cfg.OnTick(Snapshot{
			At:      now,
			Active:  active,
			Suspect: suspect,
			Dead:    dead,
			MeanRTT: meanRTT,
			Members: n.table.Snapshot(),
		})
	}
}

// send encodes and writes msg to to, logging (not failing) a transient
// send error per §7 — the probe's own timeout is what notices the loss.
func (n *Node) send(msg wire.Message, to addr.Endpoint) {
	buf, err := wire.Encode(msg)
	if err != nil {
		n.cfg.Logger.Infof("encode error for kind %d: %v", msg.Kind, err)
		return
	}
	if err := n.socket.SendTo(buf, to); err != nil {
		n.cfg.Logger.Infof("send to %s failed: %v", to, err)
	}
}
