package modelsync

import (
	"context"
	"sync"
	"time"

	"github.com/drpcorg/modelsync/internal/queue"
	"github.com/drpcorg/modelsync/logging"
	"github.com/drpcorg/modelsync/metrics"
)

// Dispatcher is the engine's public entry point: it owns the serial work
// queue, the listener index, the pause table, the GC timer, and the
// memory-pressure hook, and orchestrates every publish, subscribe,
// delete, and pause/resume through them. Every exported method is safe to
// call from any goroutine; the work itself always runs on the serial
// queue or the configured Scheduler, never on the calling goroutine.
type Dispatcher struct {
	opts      Options
	metrics   *metrics.Set
	logger    logging.Logger
	scheduler Scheduler
	queue     *queue.Serial

	// worker-owned: touched only from closures submitted to d.queue.
	index *listenerIndex

	// main-thread-owned: touched only from closures run on d.scheduler.
	pauses *pauseTable

	gcStop chan struct{}
	gcDone chan struct{}
}

// New constructs a Dispatcher and starts its GC timer (if enabled). Call
// Close to stop both when the Dispatcher is no longer needed.
func New(opts Options) *Dispatcher {
	opts = opts.withDefaults()

	d := &Dispatcher{
		opts:      opts,
		metrics:   opts.buildMetrics(),
		logger:    opts.Logger,
		scheduler: opts.Scheduler,
		index:     newListenerIndex(),
		pauses:    newPauseTable(),
		gcStop:    make(chan struct{}),
		gcDone:    make(chan struct{}),
	}
	d.queue = queue.New(opts.QueueCapacity, queue.WithDepthGauge(d.metrics.SetQueueDepth))
	d.startGC()
	return d
}

var (
	defaultDispatcher     *Dispatcher
	defaultDispatcherOnce sync.Once
)

// Default lazily constructs and memoizes a package-level Dispatcher with
// default Options, for callers that want the convenience of a shared
// instance instead of threading an explicit handle through their program.
// Unlike the original, this is opt-in: nothing forces a singleton on
// callers who construct their own via New. Concurrent first calls are
// safe: construction happens exactly once, guarded by sync.Once.
func Default() *Dispatcher {
	defaultDispatcherOnce.Do(func() {
		defaultDispatcher = New(Options{})
	})
	return defaultDispatcher
}

// Subscribe registers h against every identified node reachable from its
// observer's current model, snapshotted on the Scheduler. Idempotent:
// subscribing the same observer again never enlarges any bucket.
func (d *Dispatcher) Subscribe(h ObserverHandle) {
	var root Model
	var hasRoot bool
	d.scheduler.RunAndWait(func() {
		obs, ok := h.resolve()
		if !ok {
			return
		}
		root, hasRoot = obs.CurrentModel()
	})
	d.subscribeWithRoot(h, root, hasRoot)
}

// SubscribeWithRoot registers h against every identified node reachable
// from root directly, bypassing the CurrentModel snapshot hop — useful
// when the caller already has the root in hand.
func (d *Dispatcher) SubscribeWithRoot(h ObserverHandle, root Model) {
	d.subscribeWithRoot(h, root, root != nil)
}

func (d *Dispatcher) subscribeWithRoot(h ObserverHandle, root Model, hasRoot bool) {
	if !hasRoot {
		return
	}
	ids := identifiedIDs(root)
	d.queue.Submit(func() {
		d.index.addAll(ids, h)
		d.metrics.SetListenerBuckets(d.index.bucketCount())
	})
}

// Publish flattens newModel into a patch and delivers the resulting delta
// to every observer registered against any id the patch touches. The
// root's own id (if any) is attached to the logging context as a
// correlation field carried by this publish's "enqueued" and "dispatched"
// debug lines; log lines from updateObservers do not carry it.
func (d *Dispatcher) Publish(newModel Model, ctx any) {
	logCtx := context.Background()
	if id, ok := newModel.Identity(); ok {
		logCtx = logging.WithDefaultArgs(logCtx, "publish_root_id", string(id))
	}
	d.logger.DebugCtx(logCtx, "publish enqueued")
	d.queue.Submit(func() {
		p := flattenPatch(newModel)
		pairs := d.collectObservers(idsOf(p))
		if len(pairs) == 0 {
			d.metrics.PublishNoSubscribers()
			return
		}
		d.logger.DebugCtx(logCtx, "publish dispatched", "observers", len(pairs))
		d.updateObservers(pairs, p, ctx, true)
	})
}

// Delete removes model from every observer that references its id. model
// must carry an identity; otherwise a DeleteIDFailure critical error is
// reported and nothing is enqueued.
func (d *Dispatcher) Delete(model Model, ctx any) {
	id, ok := model.Identity()
	if !ok {
		d.reportCritical(newCriticalError(DeleteIDFailure, "Delete called with a model lacking an identity"))
		d.metrics.DeleteResult("no_id")
		return
	}
	logCtx := logging.WithDefaultArgs(context.Background(), "delete_id", string(id))
	d.logger.DebugCtx(logCtx, "delete enqueued")
	d.queue.Submit(func() {
		p := patch{id: patchEntry{tombstone: true}}
		pairs := d.collectObservers([]Id{id})
		if len(pairs) == 0 {
			d.metrics.DeleteResult("no_subscribers")
			return
		}
		d.logger.DebugCtx(logCtx, "delete dispatched", "observers", len(pairs))
		d.updateObservers(pairs, p, ctx, false)
		d.metrics.DeleteResult("delivered")
	})
}

// Unsubscribe removes h from the listener index and drops any pause
// entry for its observer. Tolerated during observer teardown: a no-op if
// the observer is already unreachable.
func (d *Dispatcher) Unsubscribe(h ObserverHandle) {
	d.queue.Submit(func() {
		d.index.remove(h)
		d.metrics.SetListenerBuckets(d.index.bucketCount())
	})
	if obs, ok := h.resolve(); ok {
		d.scheduler.Run(func() {
			d.pauses.remove(obs)
			d.metrics.SetPausedObservers(d.pauses.count())
		})
	}
}

// Pause stops o from receiving deliveries; updates are buffered until
// Resume. Safe to call from any goroutine: the actual mutation runs on
// the Scheduler, the same execution context updateObservers and
// Unsubscribe use for every other pauseTable access. A no-op if o is
// already paused.
func (d *Dispatcher) Pause(o Observer) {
	d.scheduler.RunAndWait(func() {
		if d.pauses.pause(o) {
			d.metrics.SetPausedObservers(d.pauses.count())
		}
	})
}

// IsPaused reports whether o is currently paused. Safe to call from any
// goroutine; the read runs on the Scheduler.
func (d *Dispatcher) IsPaused(o Observer) bool {
	var paused bool
	d.scheduler.RunAndWait(func() {
		paused = d.pauses.isPaused(o)
	})
	return paused
}

// Resume delivers o's accumulated delta, reconciled against o's current
// reality, and returns it to the Active state. Safe to call from any
// goroutine; the pauseTable removal and the CurrentModel/Equals snapshot
// it depends on both run on the Scheduler.
func (d *Dispatcher) Resume(o Observer) {
	var entry *pausedEntry
	var ok, skip bool
	var outdated Model
	d.scheduler.RunAndWait(func() {
		entry, ok = d.pauses.remove(o)
		d.metrics.SetPausedObservers(d.pauses.count())
		if !ok || entry.delta.IsEmpty() {
			skip = true
			return
		}

		var hasOutdated bool
		outdated, hasOutdated = o.CurrentModel()
		if !hasOutdated {
			skip = true
			return
		}
		if entry.hasRoot && outdated != nil && entry.bufferedRoot.Equals(outdated) {
			skip = true
		}
	})
	if skip {
		return
	}

	d.queue.Submit(func() {
		delta := reconcilePausedDelta(entry.bufferedRoot, entry.hasRoot, outdated, entry.delta)
		d.scheduler.Run(func() {
			o.OnModelUpdated(entry.bufferedRoot, entry.hasRoot, delta, entry.context)
		})
	})
}

// CleanMemory prunes every dead weak holder and drops empty index
// buckets. It does not prune pauseTable entries: pauseTable keys are
// strong references by design (see DESIGN.md) so that a paused
// observer's owner — which is still displaying it, just not being
// redrawn — does not have it collected out from under it. A consequence
// is that an observer paused and then abandoned without ever calling
// Resume or Unsubscribe leaks its pause entry for the Dispatcher's
// lifetime; callers that pause observers must eventually Resume or
// Unsubscribe them. Safe to call from any goroutine; the index prune
// runs on the serial queue.
func (d *Dispatcher) CleanMemory() {
	d.queue.Submit(func() {
		d.index.pruneAll()
		d.metrics.SetListenerBuckets(d.index.bucketCount())
	})
}

// Close stops accepting new work, cancels the GC timer, and waits for
// queued work to drain or ctx to be done, whichever comes first.
func (d *Dispatcher) Close(ctx context.Context) error {
	close(d.gcStop)
	<-d.gcDone
	return d.queue.Close(ctx)
}

// observerPair couples a live Observer with the weak handle it was
// resolved from, so newly introduced subtrees can be re-registered
// against the same weak reference without needing the caller's original
// concrete pointer type.
type observerPair struct {
	handle ObserverHandle
	obs    Observer
}

// collectObservers gathers the deduplicated set of observers registered
// against any id in ids, worker-owned (must run on d.queue).
func (d *Dispatcher) collectObservers(ids []Id) []observerPair {
	seen := make(map[Observer]struct{})
	var out []observerPair
	for _, id := range ids {
		for _, h := range d.index.observersFor(id) {
			obs, ok := h.resolve()
			if !ok {
				continue
			}
			if _, dup := seen[obs]; dup {
				continue
			}
			seen[obs] = struct{}{}
			out = append(out, observerPair{handle: h, obs: obs})
		}
	}
	d.metrics.SetListenerBuckets(d.index.bucketCount())
	return out
}

// observerSnapshot is one observer's root at the moment updateObservers
// took its main-thread snapshot.
type observerSnapshot struct {
	observerPair
	root    Model
	hasRoot bool
	paused  bool
}

// updateObservers is the orchestration core shared by Publish and Delete:
// snapshot roots on the Scheduler, rewrite each on the worker, then
// deliver or buffer the results. Worker-owned (must run on d.queue).
func (d *Dispatcher) updateObservers(pairs []observerPair, p patch, ctx any, isPublish bool) {
	snapshots := make([]observerSnapshot, 0, len(pairs))
	d.scheduler.RunAndWait(func() {
		for _, pair := range pairs {
			if entry, paused := d.pauses.entryFor(pair.obs); paused {
				snapshots = append(snapshots, observerSnapshot{
					observerPair: pair, root: entry.bufferedRoot, hasRoot: entry.hasRoot, paused: true,
				})
				continue
			}
			root, hasRoot := pair.obs.CurrentModel()
			snapshots = append(snapshots, observerSnapshot{observerPair: pair, root: root, hasRoot: hasRoot})
		}
	})

	anyDelivered := false
	for _, snap := range snapshots {
		if !snap.hasRoot {
			continue
		}

		start := time.Now()
		result := rewrite(snap.root, p, ctx)
		d.metrics.ObserveRewrite(time.Since(start).Seconds())

		for _, violation := range result.TypeViolations {
			d.reportCritical(violation)
		}

		if !result.Delta.IsEmpty() {
			for _, sub := range result.NewlyIntroduced {
				d.index.addAll(identifiedIDs(sub), snap.handle)
			}
			anyDelivered = true
		}

		d.deliverResult(snap, result, ctx)
	}

	if isPublish {
		if anyDelivered {
			d.metrics.PublishDelivered()
		} else {
			d.metrics.PublishNoop()
		}
	}
}

// deliverResult routes one observer's rewrite result to the right place:
// merged into the pause table if paused, delivered (with the supersede
// check) on the Scheduler otherwise.
func (d *Dispatcher) deliverResult(snap observerSnapshot, result rewriteResult, ctx any) {
	for _, ev := range result.WillReplace {
		d.scheduler.Run(func() {
			d.opts.Delegate.willReplaceModel(ev.old, ev.new, ev.context)
		})
	}

	if result.Delta.IsEmpty() && !snap.paused {
		return
	}

	if snap.paused {
		d.scheduler.Run(func() {
			d.pauses.mergeUpdate(snap.obs, result.NewRoot, result.HasRoot, result.Delta, ctx)
		})
		return
	}

	obs := snap.obs
	newRoot, hasRoot, delta := result.NewRoot, result.HasRoot, result.Delta
	snapID, snapHasID := Id(""), false
	if snap.hasRoot {
		snapID, snapHasID = identityOf(snap.root)
	}
	d.scheduler.Run(func() {
		// A newer publish may already be in flight and about to
		// supersede this one; detect drift since the snapshot was taken
		// by comparing the observer's current identity against the
		// identity of the root we actually rewrote, not the rewrite's
		// result — a root deletion legitimately has no new identity at
		// all and must still be delivered. Only identities are compared, so
		// a change since the snapshot that keeps the root's id is not
		// detected here.
		current, ok := obs.CurrentModel()
		if ok {
			currentID, currentHasID := identityOf(current)
			if currentHasID != snapHasID || currentID != snapID {
				return
			}
		}
		obs.OnModelUpdated(newRoot, hasRoot, delta, ctx)
	})
}

func identityOf(m Model) (Id, bool) {
	if m == nil {
		return "", false
	}
	return m.Identity()
}

// reportCritical surfaces err to the configured Delegate, once per
// occurrence — not once per Dispatcher lifetime. A Model that keeps
// violating its contract on every publish is expected to keep reporting
// on every publish; the caller's Delegate decides whether to rate-limit
// its own handling of repeats.
func (d *Dispatcher) reportCritical(err *CriticalError) {
	d.metrics.CriticalError(err.Kind.String())
	d.logger.Error("critical error", "kind", err.Kind.String(), "message", err.Message)
	d.scheduler.Run(func() {
		d.opts.Delegate.failedWithCriticalError(err)
	})
}

func (d *Dispatcher) startGC() {
	interval := *d.opts.GCInterval
	if interval <= 0 {
		close(d.gcDone)
		return
	}
	go func() {
		defer close(d.gcDone)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				d.logger.Debug("gc tick: pruning listener index")
				d.CleanMemory()
			case <-d.gcStop:
				return
			}
		}
	}()
}

// NotifyMemoryPressure triggers an immediate CleanMemory pass, mirroring
// the platform memory-warning hook described in the design notes.
func (d *Dispatcher) NotifyMemoryPressure() {
	d.logger.Debug("memory pressure: pruning listener index")
	d.CleanMemory()
}

// flattenPatch builds a replacement-only patch map from newModel, used by
// Publish.
func flattenPatch(newModel Model) patch {
	flat := flattenByID(newModel)
	p := make(patch, len(flat))
	for id, m := range flat {
		p[id] = patchEntry{replacement: m}
	}
	return p
}

func idsOf(p patch) []Id {
	ids := make([]Id, 0, len(p))
	for id := range p {
		ids = append(ids, id)
	}
	return ids
}
