// Package telemetry exposes the shopping engine's runtime metrics as
// Prometheus collectors, per SPEC_FULL.md §3's assignment of
// github.com/prometheus/client_golang to the shopping/dcode subsystems.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/boyski/audited-objects/pkg/shop"
)

const namespace = "ao"

// Telemetry bundles the collectors a running audit/shop session reports
// against. A nil *Telemetry is safe to call methods on -- they become
// no-ops -- so callers that don't wire a Registerer still compile and
// run without a metrics server.
type Telemetry struct {
	verdicts    *prometheus.CounterVec
	eliminated  prometheus.Histogram
	dcodeHits   prometheus.Counter
	dcodeMisses prometheus.Counter
}

// New creates the collector set and registers it with reg. Pass
// prometheus.NewRegistry() for an isolated registry (tests, multiple
// instances in one process) or prometheus.DefaultRegisterer for the
// global one a CLI's "/metrics" HTTP endpoint serves.
func New(reg prometheus.Registerer) (*Telemetry, error) {
	t := &Telemetry{
		verdicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "shop",
			Name:      "verdicts_total",
			Help:      "Count of shopping verdicts by result.",
		}, []string{"result"}),
		eliminated: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "shop",
			Name:      "bundle_elimination_depth",
			Help:      "Number of prerequisite comparisons made before a PTX bundle was eliminated or confirmed.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		}),
		dcodeHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dcode",
			Name:      "cache_hits_total",
			Help:      "Count of dcode computations served from cache.",
		}),
		dcodeMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dcode",
			Name:      "cache_misses_total",
			Help:      "Count of dcode computations that required hashing.",
		}),
	}
	for _, c := range []prometheus.Collector{t.verdicts, t.eliminated, t.dcodeHits, t.dcodeMisses} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// ObserveVerdict increments the verdicts_total counter for result.
func (t *Telemetry) ObserveVerdict(result shop.Result) {
	if t == nil {
		return
	}
	t.verdicts.WithLabelValues(result.String()).Inc()
}

// ObserveEliminationDepth records how many prerequisite comparisons a
// PTX bundle walk made before it was eliminated or confirmed a winner.
func (t *Telemetry) ObserveEliminationDepth(n int) {
	if t == nil {
		return
	}
	t.eliminated.Observe(float64(n))
}

// ObserveDcodeCache records a cache hit or miss from pkg/dcode.
func (t *Telemetry) ObserveDcodeCache(hit bool) {
	if t == nil {
		return
	}
	if hit {
		t.dcodeHits.Inc()
	} else {
		t.dcodeMisses.Inc()
	}
}

// DcodeHitRatio returns the fraction of recorded dcode cache lookups that
// were hits; returns 0 if no lookups have occurred. No CLI subcommand
// calls it.
func (t *Telemetry) DcodeHitRatio() float64 {
	if t == nil {
		return 0
	}
	hits := testutil.ToFloat64(t.dcodeHits)
	misses := testutil.ToFloat64(t.dcodeMisses)
	total := hits + misses
	if total == 0 {
		return 0
	}
	return hits / total
}
