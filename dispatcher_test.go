package modelsync

import (
	"context"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drpcorg/modelsync/treemodel"
)

func histogramSampleCount(t *testing.T, h prometheus.Histogram) uint64 {
	t.Helper()
	m := &dto.Metric{}
	require.NoError(t, h.Write(m))
	return m.GetHistogram().GetSampleCount()
}

// drain blocks until every closure submitted to d's serial queue before
// this call, and every scheduler closure those queued in turn, has run.
func drain(d *Dispatcher) {
	done := make(chan struct{})
	d.queue.Submit(func() { close(done) })
	<-done
	d.scheduler.RunAndWait(func() {})
}

func newTestDispatcher(t *testing.T) *Dispatcher {
	d := New(Options{})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = d.Close(ctx)
	})
	return d
}

// criticalRecorder implements CriticalErrorDelegate, recording every
// error handed to it under a mutex for test assertions.
type criticalRecorder struct {
	mu   sync.Mutex
	errs []*CriticalError
}

func (c *criticalRecorder) FailedWithCriticalError(err *CriticalError) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errs = append(c.errs, err)
}

func (c *criticalRecorder) snapshot() []*CriticalError {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*CriticalError, len(c.errs))
	copy(out, c.errs)
	return out
}

func TestDispatcherSimpleReplace(t *testing.T) {
	d := newTestDispatcher(t)

	root := treemodel.New("1", "a", []*treemodel.Node{treemodel.New("2", "b", nil)})
	m := treemodel.NewMirror(root, true)
	d.Subscribe(Wrap(m))
	drain(d)

	d.Publish(treemodel.New("1", "a", []*treemodel.Node{treemodel.New("2", "b-prime", nil)}), "ctx")
	drain(d)

	deltas := m.Deltas()
	require.Len(t, deltas, 1)
	assert.Equal(t, idSet("1", "2"), deltas[0].Changed)
}

// Scenario 6: delete cascades the root; a subsequent publish re-introducing
// the same ids delivers nothing because the observer's own CurrentModel has
// no root to rewrite against.
func TestDispatcherDeleteThenPublishNoDelivery(t *testing.T) {
	d := newTestDispatcher(t)

	b := treemodel.New("2", "b", nil)
	root := treemodel.New("1", "a", []*treemodel.Node{b}, "2")
	m := treemodel.NewMirror(root, true)
	d.Subscribe(Wrap(m))
	drain(d)

	d.Delete(b, nil)
	drain(d)

	deltas := m.Deltas()
	require.Len(t, deltas, 1)
	assert.False(t, deltas[0].IsEmpty())
	_, hasRoot := m.CurrentModel()
	assert.False(t, hasRoot)

	d.Publish(treemodel.New("1", "a", []*treemodel.Node{treemodel.New("2", "b", nil)}), nil)
	drain(d)

	assert.Len(t, m.Deltas(), 1, "no further delivery once the observer has no root to rewrite")
}

// Scenario 9: Delete without identity reports a critical error without
// ever reaching the serial queue.
func TestDispatcherDeleteWithoutIdentityReportsCriticalError(t *testing.T) {
	d := newTestDispatcher(t)
	rec := &criticalRecorder{}
	d.opts.Delegate = WrapDelegate(rec)

	anon := treemodel.NewAnonymous("no id", nil)
	d.Delete(anon, nil)
	drain(d)

	errs := rec.snapshot()
	require.Len(t, errs, 1)
	assert.Equal(t, DeleteIDFailure, errs[0].Kind)
}

func TestDispatcherPauseResumeMergesToNothing(t *testing.T) {
	d := newTestDispatcher(t)

	root := treemodel.New("1", "a", []*treemodel.Node{treemodel.New("2", "b", nil)})
	m := treemodel.NewMirror(root, true)
	d.Subscribe(Wrap(m))
	drain(d)

	d.Pause(m)
	assert.True(t, d.IsPaused(m))

	d.Publish(treemodel.New("1", "a", []*treemodel.Node{treemodel.New("2", "b-prime", nil)}), nil)
	drain(d)
	d.Publish(treemodel.New("1", "a", []*treemodel.Node{treemodel.New("2", "b", nil)}), nil)
	drain(d)

	d.Resume(m)
	drain(d)

	assert.Empty(t, m.Deltas(), "the two publishes net out to nothing once reconciled at resume")
	assert.False(t, d.IsPaused(m))
}

// Scenario 8: GC reclaims dead observers.
func TestDispatcherCleanMemoryReclaimsDeadObservers(t *testing.T) {
	d := newTestDispatcher(t)

	func() {
		root := treemodel.New("1", "a", nil)
		m := treemodel.NewMirror(root, true)
		d.Subscribe(Wrap(m))
		drain(d)
	}()
	runtime.GC()
	runtime.GC()

	require.Equal(t, 1, d.index.bucketCount())
	d.CleanMemory()
	drain(d)
	assert.Equal(t, 0, d.index.bucketCount())
}

func TestDispatcherSubscribeIsIdempotent(t *testing.T) {
	d := newTestDispatcher(t)

	root := treemodel.New("1", "a", nil)
	m := treemodel.NewMirror(root, true)
	h := Wrap(m)
	d.Subscribe(h)
	d.Subscribe(h)
	drain(d)

	assert.Equal(t, 1, d.index.buckets["1"].count())
}

func TestDispatcherUnsubscribeRemovesFromIndexAndPauseTable(t *testing.T) {
	d := newTestDispatcher(t)

	root := treemodel.New("1", "a", nil)
	m := treemodel.NewMirror(root, true)
	h := Wrap(m)
	d.Subscribe(h)
	drain(d)
	d.Pause(m)

	d.Unsubscribe(h)
	drain(d)

	assert.Equal(t, 0, d.index.bucketCount())
	assert.False(t, d.IsPaused(m))
}

// Scenario 7: a publish that hits zero subscribers is counted distinctly
// and never touches the rewrite-duration histogram.
func TestDispatcherPublishNoSubscribersMetric(t *testing.T) {
	d := newTestDispatcher(t)

	counter := d.metrics.Publishes.WithLabelValues("no_subscribers")
	before := testutil.ToFloat64(counter)
	beforeSamples := histogramSampleCount(t, d.metrics.RewriteSeconds)

	d.Publish(treemodel.New("1", "a", nil), nil)
	drain(d)

	after := testutil.ToFloat64(counter)
	afterSamples := histogramSampleCount(t, d.metrics.RewriteSeconds)

	assert.Equal(t, before+1, after)
	assert.Equal(t, beforeSamples, afterSamples, "a publish with no subscribers never runs the Rewriter")
}
