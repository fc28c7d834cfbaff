package modelsync

import "github.com/drpcorg/modelsync/weakref"

// DefaultScheduler runs work on a single dedicated goroutine, for hosts
// with no native "main thread" concept (servers, tests). GUI integrations
// should supply their own Scheduler that posts to the platform's real
// main-thread run loop instead.
type DefaultScheduler struct {
	work chan func()
}

// NewDefaultScheduler starts the background goroutine and returns a ready
// Scheduler.
func NewDefaultScheduler() *DefaultScheduler {
	s := &DefaultScheduler{work: make(chan func(), 256)}
	go func() {
		for fn := range s.work {
			fn()
		}
	}()
	return s
}

func (s *DefaultScheduler) Run(fn func()) {
	s.work <- fn
}

// RunAndWait deadlocks if called from within fn of an outer Run/RunAndWait
// on this same Scheduler — e.g. an observer callback invoking Pause, Resume,
// or IsPaused reentrantly. The dedicated goroutine is a single consumer;
// blocking it on work it must itself drain from the same channel never
// completes. Wrapping such a call in Run does not avoid this: the deferred
// closure runs on the same goroutine and blocks it the same way.
func (s *DefaultScheduler) RunAndWait(fn func()) {
	done := make(chan struct{})
	s.work <- func() {
		fn()
		close(done)
	}
	<-done
}

// ObserverHandle is the type-erased weak reference a Dispatcher actually
// stores: a type-erased resolver. Identity comparison (used by
// weakObserverSet.containsIdentity) resolves both handles and compares
// the live Observers.
type ObserverHandle struct {
	resolver weakref.Resolver[Observer]
}

// Wrap captures a weak reference to o, suitable for Dispatcher.Subscribe.
// o must be kept alive by its owner for as long as it should keep
// receiving updates — the engine never extends its lifetime.
func Wrap[T any](o *T) ObserverHandle {
	return ObserverHandle{resolver: weakref.Wrap[T, Observer](o)}
}

func (h ObserverHandle) resolve() (Observer, bool) {
	return h.resolver.Resolve()
}

func (h ObserverHandle) sameIdentity(other ObserverHandle) bool {
	return weakref.SameIdentity[Observer](h.resolver, other.resolver)
}

// DelegateHandle is the analogous weak wrapper for Options.Delegate.
type DelegateHandle struct {
	willReplace weakref.Resolver[WillReplaceModelDelegate]
	onCritical  weakref.Resolver[CriticalErrorDelegate]
	set         bool
}

// WrapDelegate captures weak references to whichever optional delegate
// methods d implements, for use as Options.Delegate.
func WrapDelegate[T any](d *T) DelegateHandle {
	h := DelegateHandle{set: true}
	if _, ok := any(d).(WillReplaceModelDelegate); ok {
		h.willReplace = weakref.Wrap[T, WillReplaceModelDelegate](d)
	}
	if _, ok := any(d).(CriticalErrorDelegate); ok {
		h.onCritical = weakref.Wrap[T, CriticalErrorDelegate](d)
	}
	return h
}

func (h DelegateHandle) willReplaceModel(old, new Model, context any) {
	if !h.set {
		return
	}
	if d, ok := h.willReplace.Resolve(); ok {
		d.WillReplaceModel(old, new, context)
	}
}

func (h DelegateHandle) failedWithCriticalError(err *CriticalError) {
	if !h.set {
		return
	}
	if d, ok := h.onCritical.Resolve(); ok {
		d.FailedWithCriticalError(err)
	}
}
