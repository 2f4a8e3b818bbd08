package traffic

import (
	"sync"
	"time"
)

// maxAge bounds how long outcomes are kept; health windows must not exceed it.
const maxAge = 15 * time.Minute

var defaultTracker = NewTracker()

// RecordSuccess records a successful fetch from provider.
func RecordSuccess(provider string) {
	defaultTracker.RecordSuccess(provider)
}

// RecordError records a failed fetch from provider.
func RecordError(provider string) {
	defaultTracker.RecordError(provider)
}

// ErrorRate returns (errorCount, totalCount) for provider within the window.
func ErrorRate(provider string, window time.Duration) (errors, total int) {
	return defaultTracker.ErrorRate(provider, window)
}

// Reset clears all recorded outcomes. For tests only.
func Reset() {
	defaultTracker.Reset()
}

type outcomes struct {
	successTimes []time.Time
	errorTimes   []time.Time
}

// Tracker keeps sliding windows of fetch outcomes per provider.
// It feeds the degraded health status and the providerErrorsInWindow gauge.
type Tracker struct {
	mu  sync.Mutex
	now func() time.Time
	by  map[string]*outcomes
}

// NewTracker returns an empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{now: time.Now, by: make(map[string]*outcomes)}
}

// RecordSuccess records a successful fetch from provider.
func (t *Tracker) RecordSuccess(provider string) {
	t.record(provider, false)
}

// RecordError records a failed fetch from provider.
func (t *Tracker) RecordError(provider string) {
	t.record(provider, true)
}

func (t *Tracker) record(provider string, failed bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	o := t.by[provider]
	if o == nil {
		o = &outcomes{}
		t.by[provider] = o
	}
	if failed {
		o.errorTimes = append(o.errorTimes, now)
	} else {
		o.successTimes = append(o.successTimes, now)
	}
	o.prune(now.Add(-maxAge))
}

// ErrorRate returns (errorCount, totalCount) for provider within the window.
func (t *Tracker) ErrorRate(provider string, window time.Duration) (errors, total int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	o := t.by[provider]
	if o == nil {
		return 0, 0
	}
	cutoff := t.now().Add(-window)
	errCount := countInWindow(o.errorTimes, cutoff)
	return errCount, errCount + countInWindow(o.successTimes, cutoff)
}

// Reset clears all recorded outcomes.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.by = make(map[string]*outcomes)
}

// countInWindow counts timestamps not before cutoff.
func countInWindow(times []time.Time, cutoff time.Time) int {
	n := 0
	for _, ts := range times {
		if !ts.Before(cutoff) {
			n++
		}
	}
	return n
}

// prune drops timestamps older than cutoff. Slices are append-only in time order.
func (o *outcomes) prune(cutoff time.Time) {
	prune := func(slice *[]time.Time) {
		times := *slice
		i := 0
		for ; i < len(times) && times[i].Before(cutoff); i++ {
		}
		if i > 0 {
			*slice = append(times[:0], times[i:]...)
		}
	}
	prune(&o.successTimes)
	prune(&o.errorTimes)
}
