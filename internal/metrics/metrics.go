// Package metrics records dispatch and ETA outcomes in Prometheus collectors.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Dispatch outcomes.
const (
	OutcomeAssigned     = "assigned"
	OutcomeNoDriver     = "no_available_driver"
	OutcomeInvalid      = "invalid"
	OutcomeCommitFailed = "commit_failed"
	OutcomeError        = "error"
)

// Recorder is safe for concurrent use. A nil *Recorder discards everything.
type Recorder struct {
	dispatches     *prometheus.CounterVec
	claimConflicts prometheus.Counter
	etaEstimates   *prometheus.CounterVec
	routingLatency prometheus.Histogram
	releases       *prometheus.CounterVec
}

// NewRecorder registers the collectors on reg. If reg is nil the default
// registerer is used. Collectors that are already registered are reused.
func NewRecorder(reg prometheus.Registerer) (*Recorder, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	r := &Recorder{
		dispatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pickup_dispatch_total",
			Help: "Dispatch attempts by outcome",
		}, []string{"outcome"}),
		claimConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pickup_dispatch_claim_conflicts_total",
			Help: "Candidate claims lost to a concurrent dispatch",
		}),
		etaEstimates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pickup_eta_estimates_total",
			Help: "ETA estimates by source (routing, cache, fallback)",
		}, []string{"source"}),
		routingLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "pickup_routing_latency_seconds",
			Help:    "Latency of external routing calls",
			Buckets: prometheus.DefBuckets,
		}),
		releases: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pickup_driver_releases_total",
			Help: "Drivers released back to available by reason",
		}, []string{"reason"}),
	}

	var err error
	if r.dispatches, err = register(reg, r.dispatches); err != nil {
		return nil, err
	}
	if r.claimConflicts, err = register(reg, r.claimConflicts); err != nil {
		return nil, err
	}
	if r.etaEstimates, err = register(reg, r.etaEstimates); err != nil {
		return nil, err
	}
	if r.routingLatency, err = register(reg, r.routingLatency); err != nil {
		return nil, err
	}
	if r.releases, err = register(reg, r.releases); err != nil {
		return nil, err
	}
	return r, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

func (r *Recorder) Dispatch(outcome string) {
	if r == nil {
		return
	}
	r.dispatches.WithLabelValues(outcome).Inc()
}

func (r *Recorder) ClaimConflict() {
	if r == nil {
		return
	}
	r.claimConflicts.Inc()
}

func (r *Recorder) ETA(source string) {
	if r == nil {
		return
	}
	r.etaEstimates.WithLabelValues(source).Inc()
}

func (r *Recorder) RoutingLatency(d time.Duration) {
	if r == nil {
		return
	}
	r.routingLatency.Observe(d.Seconds())
}

func (r *Recorder) Release(reason string) {
	if r == nil {
		return
	}
	r.releases.WithLabelValues(reason).Inc()
}
