package membership

import (
	"math/rand"
	"time"

	"github.com/swimd/swimd/internal/addr"
)

// Table is the node's membership view. It is owned exclusively by the
// event loop and is not safe for concurrent use — the protocol's
// single-threaded discipline (§5) makes that unnecessary.
type Table struct {
	self    addr.Endpoint
	members map[addr.Endpoint]*Member
}

// New creates an empty table. self is excluded from every operation — it
// is a programming error for self to ever appear as a key.
func New(self addr.Endpoint) *Table {
	return &Table{self: self, members: make(map[addr.Endpoint]*Member)}
}

// Get returns the member for e, or nil if unknown.
func (t *Table) Get(e addr.Endpoint) *Member {
	return t.members[e]
}

// Len returns the number of known members (excluding self, which is never
// stored).
func (t *Table) Len() int {
	return len(t.members)
}

// Snapshot returns a shallow copy of every member, for inspection
// (debug HTTP endpoint, snapshot store, tests). Safe to retain and mutate
// without affecting the table.
func (t *Table) Snapshot() []Member {
	out := make([]Member, 0, len(t.members))
	for _, m := range t.members {
		out = append(out, *m)
	}
	return out
}

// CountByState returns how many known members are in each state.
func (t *Table) CountByState() (active, suspect, dead int) {
	for _, m := range t.members {
		switch m.State {
		case Active:
			active++
		case Suspect:
			suspect++
		case Dead:
			dead++
		}
	}
	return
}

// InsertOrObserve records that e is known as of now. If absent, it is
// created in Active state. If present and Suspect, it is resolved back to
// Active and its suspicion deadline cleared. If present and Active or
// Dead, this is a no-op. Returns whether the row was newly created.
func (t *Table) InsertOrObserve(e addr.Endpoint, now time.Time) bool {
	if e == t.self {
		return false
	}

	m, ok := t.members[e]
	if !ok {
		t.members[e] = newMember(e, now)
		return true
	}

	if m.State == Suspect {
		m.State = Active
		m.SuspicionDeadline = time.Time{}
		m.ChangedAt = now
	}
	return false
}

// MarkSuspect transitions e to Suspect if it is currently Active. A
// member already Suspect keeps its original deadline; a Dead member is
// untouched. Returns the resulting member (nil if e is unknown) and
// whether this call actually performed the Active -> Suspect transition —
// callers must gate any once-per-transition side effect (logging, metrics,
// snapshot rows) on that bool, since a member can sit in Suspect across
// many calls (e.g. one per tick) before it ever resolves.
func (t *Table) MarkSuspect(e addr.Endpoint, now time.Time, suspectTimeout time.Duration) (*Member, bool) {
	m, ok := t.members[e]
	if !ok {
		return nil, false
	}
	if m.State != Active {
		return m, false
	}
	m.State = Suspect
	m.ChangedAt = now
	m.SuspicionDeadline = now.Add(suspectTimeout)
	return m, true
}

// MarkDead transitions e from Suspect to Dead, but only if its suspicion
// deadline has passed. Any other state is a no-op. The bool reports
// whether this call performed the transition.
func (t *Table) MarkDead(e addr.Endpoint, now time.Time) (*Member, bool) {
	m, ok := t.members[e]
	if !ok {
		return nil, false
	}
	if m.State != Suspect || now.Before(m.SuspicionDeadline) {
		return m, false
	}
	m.State = Dead
	m.ChangedAt = now
	m.SuspicionDeadline = time.Time{}
	return m, true
}

// MarkAlive resolves a Suspect member back to Active (used whenever an Ack
// observes the member, whether via direct or indirect probe). It is a
// no-op for members already Active and, per the no-incarnation design,
// for members already Dead. The bool reports whether this call performed
// the Suspect -> Active transition.
func (t *Table) MarkAlive(e addr.Endpoint, now time.Time) (*Member, bool) {
	m, ok := t.members[e]
	if !ok {
		return nil, false
	}
	if m.State != Suspect {
		return m, false
	}
	m.State = Active
	m.ChangedAt = now
	m.SuspicionDeadline = time.Time{}
	return m, true
}

// ExpireSuspects returns every Suspect member whose deadline is <= now,
// for the event loop to feed to MarkDead.
func (t *Table) ExpireSuspects(now time.Time) []addr.Endpoint {
	var expired []addr.Endpoint
	for e, m := range t.members {
		if m.State == Suspect && !now.Before(m.SuspicionDeadline) {
			expired = append(expired, e)
		}
	}
	return expired
}

// NextSuspicionDeadline returns the earliest pending suspicion deadline
// among all Suspect members, if any.
func (t *Table) NextSuspicionDeadline() (time.Time, bool) {
	var earliest time.Time
	found := false
	for _, m := range t.members {
		if m.State != Suspect {
			continue
		}
		if !found || m.SuspicionDeadline.Before(earliest) {
			earliest = m.SuspicionDeadline
			found = true
		}
	}
	return earliest, found
}

// RandomLiveTargets returns up to k members whose state is Active or
// Suspect, excluding self and every endpoint in exclude, sampled uniformly
// without replacement using rng. The result order is not stable.
func (t *Table) RandomLiveTargets(rng *rand.Rand, exclude map[addr.Endpoint]bool, k int) []addr.Endpoint {
	candidates := make([]addr.Endpoint, 0, len(t.members))
	for e, m := range t.members {
		if e == t.self || exclude[e] {
			continue
		}
		if m.State == Active || m.State == Suspect {
			candidates = append(candidates, e)
		}
	}

	rng.Shuffle(len(candidates), func(i, j int) {
		candidates[i], candidates[j] = candidates[j], candidates[i]
	})

	if k > len(candidates) {
		k = len(candidates)
	}
	return candidates[:k]
}
