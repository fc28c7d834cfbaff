package modelsync

import (
	"log/slog"
	"time"

	"github.com/drpcorg/modelsync/logging"
	"github.com/drpcorg/modelsync/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

// Scheduler runs a closure on whatever execution context the application
// considers its "main thread" — a UI event loop, a single fixed
// goroutine, or (in tests and server processes with no such concept) the
// DefaultScheduler below. Observer callbacks and PauseTable mutations run
// exclusively through it; the worker never touches either directly.
type Scheduler interface {
	// Run enqueues fn to execute on the scheduler's thread and returns
	// immediately.
	Run(fn func())

	// RunAndWait enqueues fn and blocks the caller until it has executed.
	// Used for the snapshot hop in updateObservers, where the worker
	// needs an observer's current root before it can proceed.
	RunAndWait(fn func())
}

// Options configures a Dispatcher. The zero value is valid: every field
// has a documented default applied by New.
type Options struct {
	// GCInterval is the period between pruning ticks. A pointer
	// distinguishes "unset" (defaults to 300s) from an explicit zero,
	// which disables the timer entirely — pruning still happens
	// opportunistically and on NotifyMemoryPressure.
	GCInterval *time.Duration

	// Delegate optionally receives WillReplaceModel and
	// FailedWithCriticalError callbacks. It is held weakly: build it with
	// WrapDelegate, or leave it as the zero DelegateHandle to skip
	// delegate notifications entirely.
	Delegate DelegateHandle

	// Logger receives structured engine logs. Defaults to a
	// logging.DefaultLogger at slog.LevelInfo.
	Logger logging.Logger

	// MetricsRegistry is the Prometheus registry C8 metrics register
	// against. Defaults to a private registry created for this
	// Dispatcher alone.
	MetricsRegistry *prometheus.Registry

	// QueueCapacity bounds how many pending work items the serial queue
	// buffers before Submit blocks. Defaults to 1024, mirroring the
	// teacher's FDQueue limit parameter.
	QueueCapacity int

	// Scheduler is the main-thread capability described above. Defaults
	// to a DefaultScheduler backed by a dedicated goroutine.
	Scheduler Scheduler
}

func (o Options) withDefaults() Options {
	if o.GCInterval == nil {
		d := defaultGCInterval
		o.GCInterval = &d
	}
	if o.Logger == nil {
		o.Logger = logging.NewDefaultLogger(slog.LevelInfo)
	}
	if o.QueueCapacity <= 0 {
		o.QueueCapacity = 1024
	}
	if o.Scheduler == nil {
		o.Scheduler = NewDefaultScheduler()
	}
	return o
}

const defaultGCInterval = 300 * time.Second

func (o Options) buildMetrics() *metrics.Set {
	return metrics.New(o.MetricsRegistry)
}
