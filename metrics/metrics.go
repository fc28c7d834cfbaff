// Package metrics defines the Prometheus instrumentation for the model
// consistency engine, following the same per-subsystem vector layout the
// teacher's index manager uses: a namespace, one vector per observable
// event, labels for the dimensions worth slicing on.
package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "modelsync"

// Set bundles every metric the Dispatcher touches. Construct one with New
// and register it against whatever *prometheus.Registry the application
// uses; a nil *Set is valid and every method on it is a no-op, so
// instrumentation can be wired in optionally.
type Set struct {
	Publishes       *prometheus.CounterVec
	Deletes         *prometheus.CounterVec
	RewriteSeconds  prometheus.Histogram
	ListenerBuckets prometheus.Gauge
	PausedObservers prometheus.Gauge
	CriticalErrors  *prometheus.CounterVec
	QueueDepth      prometheus.Gauge
}

// New builds a Set and registers every metric against reg. If reg is nil,
// a private registry is created so callers can still read values in
// tests without colliding with the default global registry.
func New(reg *prometheus.Registry) *Set {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	s := &Set{
		Publishes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publishes_total",
			Help:      "Publishes processed, by outcome.",
		}, []string{"result"}),
		Deletes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deletes_total",
			Help:      "Deletes processed, by outcome.",
		}, []string{"result"}),
		RewriteSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "rewrite_duration_seconds",
			Help:      "Time spent rewriting one observer's tree against a patch.",
			Buckets:   prometheus.DefBuckets,
		}),
		ListenerBuckets: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "listener_buckets",
			Help:      "Live id-to-observer-set buckets in the listener index.",
		}),
		PausedObservers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "paused_observers",
			Help:      "Observers currently buffering updates instead of receiving them.",
		}),
		CriticalErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "critical_errors_total",
			Help:      "Critical errors reported to the delegate, by kind.",
		}, []string{"kind"}),
		QueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_depth",
			Help:      "Work items waiting on the serial worker queue.",
		}),
	}

	reg.MustRegister(
		s.Publishes,
		s.Deletes,
		s.RewriteSeconds,
		s.ListenerBuckets,
		s.PausedObservers,
		s.CriticalErrors,
		s.QueueDepth,
	)
	return s
}

func (s *Set) publishResult(result string) {
	if s == nil {
		return
	}
	s.Publishes.WithLabelValues(result).Inc()
}

// PublishDelivered records a publish that produced at least one non-empty
// delta for some observer.
func (s *Set) PublishDelivered() { s.publishResult("delivered") }

// PublishNoop records a publish whose patch matched an observer but
// produced an empty delta (Rewriter's equals short-circuit).
func (s *Set) PublishNoop() { s.publishResult("noop") }

// PublishNoSubscribers records a publish whose patch hit no subscriber at
// all.
func (s *Set) PublishNoSubscribers() { s.publishResult("no_subscribers") }

func (s *Set) DeleteResult(result string) {
	if s == nil {
		return
	}
	s.Deletes.WithLabelValues(result).Inc()
}

// ObserveRewrite records how long one Rewriter pass took.
func (s *Set) ObserveRewrite(seconds float64) {
	if s == nil {
		return
	}
	s.RewriteSeconds.Observe(seconds)
}

// SetListenerBuckets reports the current number of live index buckets.
func (s *Set) SetListenerBuckets(n int) {
	if s == nil {
		return
	}
	s.ListenerBuckets.Set(float64(n))
}

// SetPausedObservers reports the current size of the pause table.
func (s *Set) SetPausedObservers(n int) {
	if s == nil {
		return
	}
	s.PausedObservers.Set(float64(n))
}

// CriticalError records one delegate-bound critical error by kind.
func (s *Set) CriticalError(kind string) {
	if s == nil {
		return
	}
	s.CriticalErrors.WithLabelValues(kind).Inc()
}

// SetQueueDepth reports the serial worker queue's current backlog.
func (s *Set) SetQueueDepth(n int) {
	if s == nil {
		return
	}
	s.QueueDepth.Set(float64(n))
}
