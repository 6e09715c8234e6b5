package swimnode

import (
	"math/rand"
	"time"

	"github.com/swimd/swimd/internal/addr"
	"github.com/swimd/swimd/internal/logging"
	"github.com/swimd/swimd/internal/membership"
	"github.com/swimd/swimd/internal/metrics"
	"github.com/swimd/swimd/internal/snapshot"
)

// Clock abstracts time.Now so tests can drive the event loop with a fake
// clock instead of waiting on real wall time.
type Clock interface {
	Now() time.Time
}

// realClock is the production Clock.
type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Config configures a Node. TickInterval, ProbeTimeout, SuspectTimeout and
// IndirectProbeCount are the protocol's four tunable constants (§3);
// zero-valued fields in Config fall back to the protocol defaults via
// Normalize.
type Config struct {
	Self addr.Endpoint
	Seed *addr.Endpoint

	TickInterval       time.Duration
	ProbeTimeout       time.Duration
	SuspectTimeout     time.Duration
	IndirectProbeCount int

	Clock    Clock
	Rand     *rand.Rand
	Logger   *logging.Logger
	Metrics  *metrics.Exporter
	Snapshot *snapshot.Store

	// OnTick, if set, is invoked synchronously at the end of every tick
	// with the current membership snapshot — the hook the debug HTTP
	// surface uses to publish a thread-safe view without the event loop
	// ever sharing its table across goroutines.
	OnTick func(Snapshot)
}

// Snapshot is a point-in-time view of the node handed to Config.OnTick.
type Snapshot struct {
	At      time.Time
	Active  int
	Suspect int
	Dead    int
	MeanRTT time.Duration
	Members []membership.Member
}

// Default protocol constants (§3).
const (
	DefaultTickInterval       = 1000 * time.Millisecond
	DefaultProbeTimeout       = 500 * time.Millisecond
	DefaultSuspectTimeout     = 3000 * time.Millisecond
	DefaultIndirectProbeCount = 3
)

// Normalize fills in zero-valued fields with defaults and returns the
// result; it never mutates the receiver.
func (c Config) Normalize() Config {
	if c.TickInterval == 0 {
		c.TickInterval = DefaultTickInterval
	}
	if c.ProbeTimeout == 0 {
		c.ProbeTimeout = DefaultProbeTimeout
	}
	if c.SuspectTimeout == 0 {
		c.SuspectTimeout = DefaultSuspectTimeout
	}
	if c.IndirectProbeCount == 0 {
		c.IndirectProbeCount = DefaultIndirectProbeCount
	}
	if c.Clock == nil {
		c.Clock = realClock{}
	}
	if c.Rand == nil {
		c.Rand = rand.New(rand.NewSource(int64(c.Self.Port)<<32 | int64(time.Now().UnixNano())))
	}
	if c.Logger == nil {
		c.Logger = logging.New(logging.LevelInfo)
	}
	return c
}
