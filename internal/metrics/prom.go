package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Exporter mirrors the aggregator and the membership table into
// Prometheus metrics. It is purely observational: nothing in the event
// loop reads these back, and a nil *Exporter is safe to call into (every
// method is a no-op), so wiring it is optional.
type Exporter struct {
	registry *prometheus.Registry

	peerRTTMean   *prometheus.GaugeVec
	peerRTTJitter *prometheus.GaugeVec
	membersTotal  *prometheus.GaugeVec
	decodeErrors  prometheus.Counter
	probesTotal   *prometheus.CounterVec
}

// NewExporter builds an Exporter registered against a fresh registry.
func NewExporter() *Exporter {
	reg := prometheus.NewRegistry()
	return &Exporter{
		registry: reg,
		peerRTTMean: promauto.With(reg).NewGaugeVec(prometheus.GaugeOpts{
			Name: "swimd_peer_rtt_mean_microseconds",
			Help: "Smoothed round-trip-time mean per peer, in microseconds.",
		}, []string{"peer"}),
		peerRTTJitter: promauto.With(reg).NewGaugeVec(prometheus.GaugeOpts{
			Name: "swimd_peer_rtt_jitter_microseconds",
			Help: "Smoothed round-trip-time jitter per peer, in microseconds.",
		}, []string{"peer"}),
		membersTotal: promauto.With(reg).NewGaugeVec(prometheus.GaugeOpts{
			Name: "swimd_members_total",
			Help: "Number of known members by liveness state.",
		}, []string{"state"}),
		decodeErrors: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "swimd_decode_errors_total",
			Help: "Malformed datagrams dropped by the wire codec.",
		}),
		probesTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "swimd_probes_total",
			Help: "Completed probes by outcome.",
		}, []string{"outcome"}),
	}
}

// Registry returns the underlying registry, for mounting promhttp.Handler.
func (e *Exporter) Registry() *prometheus.Registry {
	if e == nil {
		return nil
	}
	return e.registry
}

// ObserveRTT records a peer's latest smoothed RTT stats.
func (e *Exporter) ObserveRTT(peer string, s RTTStats) {
	if e == nil {
		return
	}
	e.peerRTTMean.WithLabelValues(peer).Set(float64(s.Mean.Microseconds()))
	e.peerRTTJitter.WithLabelValues(peer).Set(float64(s.Jitter.Microseconds()))
}

// SetMemberCounts sets the current active/suspect/dead gauges.
func (e *Exporter) SetMemberCounts(active, suspect, dead int) {
	if e == nil {
		return
	}
	e.membersTotal.WithLabelValues("active").Set(float64(active))
	e.membersTotal.WithLabelValues("suspect").Set(float64(suspect))
	e.membersTotal.WithLabelValues("dead").Set(float64(dead))
}

// IncDecodeError bumps the malformed-datagram counter.
func (e *Exporter) IncDecodeError() {
	if e == nil {
		return
	}
	e.decodeErrors.Inc()
}

// Probe outcome labels for IncProbe.
const (
	ProbeOutcomeDirectAck    = "direct_ack"
	ProbeOutcomeIndirectAck  = "indirect_ack"
	ProbeOutcomeSuspected    = "suspected"
	ProbeOutcomeDead         = "dead"
	ProbeOutcomeCollisionHit = "collision_skip"
)

// IncProbe bumps the probe-outcome counter for outcome.
func (e *Exporter) IncProbe(outcome string) {
	if e == nil {
		return
	}
	e.probesTotal.WithLabelValues(outcome).Inc()
}
