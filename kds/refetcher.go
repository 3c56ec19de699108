package kds

import (
	"sync/atomic"
)

// Refetcher runs a full-state refetch in the background. Triggers that
// arrive while one is in flight are coalesced into a single trailing run, so
// the last change is never missed.
type Refetcher struct {
	fetch   func()
	running atomic.Bool
	dirty   atomic.Bool
	skipped atomic.Int64
}

func NewRefetcher(fetch func()) *Refetcher {
	return &Refetcher{fetch: fetch}
}

// Trigger starts a refetch unless one is running, in which case it asks for
// one more run after it. It reports whether it started one.
func (r *Refetcher) Trigger() bool {
	if !r.running.CompareAndSwap(false, true) {
		r.skipped.Add(1)
		r.dirty.Store(true)
		return false
	}
	go r.run()
	return true
}

func (r *Refetcher) run() {
	for {
		r.fetch()
		if r.dirty.Swap(false) {
			continue
		}
		r.running.Store(false)
		// a trigger that saw running just before the store left dirty set
		if !r.dirty.Load() || !r.running.CompareAndSwap(false, true) {
			return
		}
		r.dirty.Store(false)
	}
}

// Skipped counts triggers folded into a trailing run.
func (r *Refetcher) Skipped() int64 {
	return r.skipped.Load()
}

// Busy reports whether a refetch is in flight.
func (r *Refetcher) Busy() bool {
	return r.running.Load()
}
