package probe

import (
	"testing"
	"time"

	"github.com/swimd/swimd/internal/addr"
)

func ep(t *testing.T, s string) addr.Endpoint {
	t.Helper()
	e, err := addr.Parse(s)
	if err != nil {
		t.Fatal(err)
	}
	return e
}

func TestDirectProbeLifecycle(t *testing.T) {
	c := New()
	target := ep(t, "127.0.0.1:9001")
	now := time.Now()

	if c.HasPendingDirect(target) {
		t.Fatal("pending direct probe before StartDirect")
	}

	p := c.StartDirect(target, now, 500*time.Millisecond)
	if !c.HasPendingDirect(target) {
		t.Fatal("no pending direct probe after StartDirect")
	}

	got, ok := c.CompleteDirect(p.ID, target)
	if !ok || got != p {
		t.Fatalf("CompleteDirect = %v, %v", got, ok)
	}
	if c.HasPendingDirect(target) {
		t.Fatal("pending direct probe persisted after completion")
	}

	// Unknown id must be a no-op, not an error.
	if _, ok := c.CompleteDirect(999, target); ok {
		t.Fatal("CompleteDirect succeeded for unknown id")
	}
}

func TestCompleteDirectRejectsMismatchedSource(t *testing.T) {
	// A correlation id is only process-unique (§3): a relay running its own
	// ticks can have a pending direct probe whose id collides with a
	// PingReq it is relaying for someone else. An Ack from a sender other
	// than the probe's own Target must not complete it.
	c := New()
	target := ep(t, "127.0.0.1:9001")
	other := ep(t, "127.0.0.1:9999")
	now := time.Now()

	p := c.StartDirect(target, now, 500*time.Millisecond)
	if _, ok := c.CompleteDirect(p.ID, other); ok {
		t.Fatal("CompleteDirect succeeded with a source that doesn't match the probe's target")
	}
	if !c.HasPendingDirect(target) {
		t.Fatal("mismatched-source Ack must not remove the pending probe")
	}

	got, ok := c.CompleteDirect(p.ID, target)
	if !ok || got != p {
		t.Fatalf("CompleteDirect with the correct source = %v, %v", got, ok)
	}
}

func TestNoDuplicateCorrelationIDs(t *testing.T) {
	c := New()
	seen := make(map[uint64]bool)
	for i := 0; i < 1000; i++ {
		id := c.NextID()
		if seen[id] {
			t.Fatalf("duplicate correlation id %d", id)
		}
		seen[id] = true
	}
}

func TestDirectProbeExpiry(t *testing.T) {
	c := New()
	target := ep(t, "127.0.0.1:9001")
	now := time.Now()
	p := c.StartDirect(target, now, 10*time.Millisecond)

	expired := c.DrainExpired(now)
	if len(expired) != 0 {
		t.Fatalf("probe expired before its deadline")
	}

	expired = c.DrainExpired(now.Add(20 * time.Millisecond))
	if len(expired) != 1 || expired[0].Kind != KindDirect || expired[0].Direct.ID != p.ID {
		t.Fatalf("DrainExpired = %+v, want one expired direct probe", expired)
	}
	if c.HasPendingDirect(target) {
		t.Fatal("expired probe still tracked as pending")
	}
}

func TestAckAfterDeadlineButBeforeDrainWins(t *testing.T) {
	// Same event-loop-pass tie-break from §4.3: if the Ack is processed
	// before DrainExpired runs, the direct probe completes normally and
	// never surfaces as expired.
	c := New()
	target := ep(t, "127.0.0.1:9001")
	now := time.Now()
	p := c.StartDirect(target, now, 10*time.Millisecond)

	late := now.Add(20 * time.Millisecond)
	if _, ok := c.CompleteDirect(p.ID, target); !ok {
		t.Fatal("late-but-processed-first Ack should still complete the probe")
	}

	expired := c.DrainExpired(late)
	if len(expired) != 0 {
		t.Fatalf("DrainExpired returned %d items, want 0 (already completed)", len(expired))
	}
}

func TestIndirectProbeLifecycleAndExpiry(t *testing.T) {
	c := New()
	target := ep(t, "127.0.0.1:9001")
	relays := []addr.Endpoint{ep(t, "127.0.0.1:9002"), ep(t, "127.0.0.1:9003")}
	now := time.Now()

	ip := c.StartIndirect(target, relays, now, 10*time.Millisecond)
	if got, ok := c.CompleteIndirect(ip.ID, target); !ok || got != ip {
		t.Fatalf("CompleteIndirect = %v, %v", got, ok)
	}
	// Second Ack with the same id is dropped silently.
	if _, ok := c.CompleteIndirect(ip.ID, target); ok {
		t.Fatal("CompleteIndirect succeeded twice for the same id")
	}

	ip2 := c.StartIndirect(target, relays, now, 10*time.Millisecond)
	expired := c.DrainExpired(now.Add(20 * time.Millisecond))
	if len(expired) != 1 || expired[0].Kind != KindIndirect || expired[0].Indirect.ID != ip2.ID {
		t.Fatalf("DrainExpired = %+v", expired)
	}
}

func TestRelayBookkeepingAllowsDuplicateForward(t *testing.T) {
	c := New()
	requester := ep(t, "127.0.0.1:9004")
	now := time.Now()

	c.StartRelay(42, requester, now, 500*time.Millisecond)
	r1, ok := c.PeekRelay(42)
	if !ok || r1.Requester != requester {
		t.Fatalf("PeekRelay = %v, %v", r1, ok)
	}
	// A second duplicate Ack within the window still finds the entry.
	r2, ok := c.PeekRelay(42)
	if !ok || r2 != r1 {
		t.Fatal("PeekRelay is not idempotent within the relay window")
	}

	expired := c.DrainExpired(now.Add(time.Second))
	if len(expired) != 1 || expired[0].Kind != KindRelay {
		t.Fatalf("DrainExpired = %+v", expired)
	}
	if _, ok := c.PeekRelay(42); ok {
		t.Fatal("relay bookkeeping survived past its deadline")
	}
}

func TestNextDeadlineSkipsStaleEntries(t *testing.T) {
	c := New()
	now := time.Now()
	aTarget := ep(t, "127.0.0.1:9001")
	a := c.StartDirect(aTarget, now, 10*time.Millisecond)
	c.StartDirect(ep(t, "127.0.0.1:9002"), now, 50*time.Millisecond)

	c.CompleteDirect(a.ID, aTarget)

	deadline, ok := c.NextDeadline()
	if !ok {
		t.Fatal("NextDeadline reported none pending")
	}
	if !deadline.Equal(now.Add(50 * time.Millisecond)) {
		t.Errorf("NextDeadline = %v, want the surviving probe's deadline", deadline)
	}
}

func TestNextDeadlineEmpty(t *testing.T) {
	c := New()
	if _, ok := c.NextDeadline(); ok {
		t.Fatal("NextDeadline reported a deadline on an empty coordinator")
	}
}
