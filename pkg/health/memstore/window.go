package memstore

import (
	"sync"
	"time"
)

// quotaWindow is the per-(provider, window) request counter behind
// CheckQuota: a rolling window of time-bucketed counts. Expired buckets
// are pruned lazily on every call, so an idle provider's counters decay
// to nothing without a background sweeper.
//
// Bucket granularity trades accuracy for memory: a 1-minute window with
// 1-second buckets holds 60 counters per provider.
type quotaWindow struct {
	window     time.Duration
	bucketSize time.Duration
	buckets    []quotaBucket
	mu         sync.Mutex
}

type quotaBucket struct {
	timestamp time.Time
	count     int64
}

func newQuotaWindow(window, bucketSize time.Duration) *quotaWindow {
	n := int(window / bucketSize)
	if n == 0 {
		n = 1
	}
	return &quotaWindow{
		window:     window,
		bucketSize: bucketSize,
		buckets:    make([]quotaBucket, n),
	}
}

// Sum returns the total count across the window, pruning expired
// buckets first. Used by the router's peek-only quota check.
func (w *quotaWindow) Sum() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.pruneLocked(time.Now())
	return w.sumLocked()
}

// TryAdd is the atomic check-and-increment behind the orchestrator's
// real quota consumption: the count goes up only when the result would
// still be within limit, so a denied call never leaves a phantom
// increment behind. Returns whether the add was allowed and the sum
// after the call.
func (w *quotaWindow) TryAdd(limit, value int64) (allowed bool, sum int64) {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := time.Now()
	w.pruneLocked(now)

	current := w.sumLocked()
	if current+value > limit {
		return false, current
	}

	w.bucketFor(now).count += value
	return true, current + value
}

func (w *quotaWindow) sumLocked() int64 {
	var sum int64
	for i := range w.buckets {
		if !w.buckets[i].timestamp.IsZero() {
			sum += w.buckets[i].count
		}
	}
	return sum
}

func (w *quotaWindow) pruneLocked(now time.Time) {
	cutoff := now.Add(-w.window)
	for i := range w.buckets {
		if !w.buckets[i].timestamp.IsZero() && w.buckets[i].timestamp.Before(cutoff) {
			w.buckets[i] = quotaBucket{}
		}
	}
}

// bucketFor returns the live bucket for now's boundary, reusing an
// empty slot or evicting the oldest when the ring is full. Caller must
// hold the lock.
func (w *quotaWindow) bucketFor(now time.Time) *quotaBucket {
	boundary := now.Truncate(w.bucketSize)

	empty := -1
	oldest := 0
	for i := range w.buckets {
		if w.buckets[i].timestamp.Equal(boundary) {
			return &w.buckets[i]
		}
		if w.buckets[i].timestamp.IsZero() {
			if empty == -1 {
				empty = i
			}
			continue
		}
		if w.buckets[i].timestamp.Before(w.buckets[oldest].timestamp) {
			oldest = i
		}
	}

	idx := empty
	if idx == -1 {
		idx = oldest
	}
	w.buckets[idx] = quotaBucket{timestamp: boundary}
	return &w.buckets[idx]
}
