// Package metrics exports proxy internals to Prometheus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Recorder implements cache.Metrics and stories.Metrics.
// Safe for concurrent use; all Prometheus metric types are goroutine-safe.
type Recorder struct {
	cacheHits     *prometheus.CounterVec
	cacheMisses   *prometheus.CounterVec
	upstream      *prometheus.CounterVec
	upstreamTime  *prometheus.HistogramVec
	inFlight      prometheus.Gauge
	permitWaiting prometheus.Gauge

	reg prometheus.Registerer
	ns  string
}

// New constructs a Recorder and registers its collectors with reg
// (nil => prometheus.DefaultRegisterer) under namespace ns.
func New(reg prometheus.Registerer, ns string) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	r := &Recorder{
		cacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: "cache",
			Name:      "hits_total",
			Help:      "Cache hits by cache name",
		}, []string{"cache"}),
		cacheMisses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: "cache",
			Name:      "misses_total",
			Help:      "Cache misses by cache name",
		}, []string{"cache"}),
		upstream: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: "upstream",
			Name:      "requests_total",
			Help:      "Upstream requests by endpoint and outcome",
		}, []string{"endpoint", "outcome"}),
		upstreamTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: ns,
			Subsystem: "upstream",
			Name:      "request_duration_seconds",
			Help:      "Upstream request latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"endpoint"}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: ns,
			Subsystem: "upstream",
			Name:      "in_flight",
			Help:      "Upstream item requests currently holding a permit",
		}),
		permitWaiting: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: ns,
			Subsystem: "upstream",
			Name:      "permit_waiting",
			Help:      "Item fetches waiting for a permit",
		}),
		reg: reg,
		ns:  ns,
	}
	reg.MustRegister(r.cacheHits, r.cacheMisses, r.upstream, r.upstreamTime, r.inFlight, r.permitWaiting)
	return r
}

// Hit increments the hit counter for cache.
func (r *Recorder) Hit(cache string) { r.cacheHits.WithLabelValues(cache).Inc() }

// Miss increments the miss counter for cache.
func (r *Recorder) Miss(cache string) { r.cacheMisses.WithLabelValues(cache).Inc() }

// Upstream records one finished upstream call.
func (r *Recorder) Upstream(endpoint, outcome string, d time.Duration) {
	r.upstream.WithLabelValues(endpoint, outcome).Inc()
	r.upstreamTime.WithLabelValues(endpoint).Observe(d.Seconds())
}

// InFlight moves the in-flight gauge by delta.
func (r *Recorder) InFlight(delta int) { r.inFlight.Add(float64(delta)) }

// Waiting moves the permit-waiting gauge by delta.
func (r *Recorder) Waiting(delta int) { r.permitWaiting.Add(float64(delta)) }

// TrackSize exports a gauge of resident entries for a named cache.
func (r *Recorder) TrackSize(cache string, size func() int) {
	r.reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace:   r.ns,
		Subsystem:   "cache",
		Name:        "entries",
		Help:        "Resident cache entries, expired ones included until swept",
		ConstLabels: prometheus.Labels{"cache": cache},
	}, func() float64 { return float64(size()) }))
}
