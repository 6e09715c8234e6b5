// Package metrics implements the per-peer round-trip-time accumulator
// (§4.5) and, separately, its optional Prometheus exposition.
package metrics

import (
	"time"

	"github.com/swimd/swimd/internal/addr"
)

const (
	alphaMean   = 0.125 // matches common RTO estimators (RFC 6298 style)
	alphaJitter = 0.25
)

// RTTStats holds the online mean/jitter for one peer. Zero value is ready
// to use.
type RTTStats struct {
	Samples uint64
	Mean    time.Duration
	Jitter  time.Duration
}

// Observe feeds a new round-trip sample into the running estimate.
func (s *RTTStats) Observe(sample time.Duration) {
	if s.Samples == 0 {
		s.Mean = sample
		s.Jitter = 0
		s.Samples = 1
		return
	}

	diff := sample - s.Mean
	if diff < 0 {
		diff = -diff
	}
	s.Jitter += time.Duration(alphaJitter * float64(diff-s.Jitter))
	s.Mean += time.Duration(alphaMean * float64(sample-s.Mean))
	s.Samples++
}

// Aggregator tracks RTTStats per peer endpoint. It is owned by the event
// loop and, like the membership table, is not safe for concurrent use.
type Aggregator struct {
	byPeer map[addr.Endpoint]*RTTStats
}

// NewAggregator creates an empty aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{byPeer: make(map[addr.Endpoint]*RTTStats)}
}

// Observe records a round-trip sample for peer.
func (a *Aggregator) Observe(peer addr.Endpoint, sample time.Duration) RTTStats {
	s, ok := a.byPeer[peer]
	if !ok {
		s = &RTTStats{}
		a.byPeer[peer] = s
	}
	s.Observe(sample)
	return *s
}

// Get returns the current stats for peer, if any samples have been
// observed.
func (a *Aggregator) Get(peer addr.Endpoint) (RTTStats, bool) {
	s, ok := a.byPeer[peer]
	if !ok {
		return RTTStats{}, false
	}
	return *s, true
}

// MeanAll returns the mean RTT across every peer with at least one
// sample, for the per-tick status line. Returns 0 if no peer has ever
// been sampled.
func (a *Aggregator) MeanAll() time.Duration {
	if len(a.byPeer) == 0 {
		return 0
	}
	var total time.Duration
	for _, s := range a.byPeer {
		total += s.Mean
	}
	return total / time.Duration(len(a.byPeer))
}
