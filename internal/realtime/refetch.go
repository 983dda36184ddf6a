package realtime

import (
	"context"
	"sync"
	"time"
)

// Refetcher coalesces bursts of change events into full refetches. A fetch
// runs debounce after the last trigger, but never later than maxWait after
// the first trigger of a burst. At most one fetch runs at a time; triggers
// that arrive while it runs cause exactly one trailing fetch.
type Refetcher struct {
	fetch    func(context.Context)
	debounce time.Duration
	maxWait  time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu         sync.Mutex
	timer      *time.Timer
	burstStart time.Time
	gen        uint64
	running    bool
	pending    bool
	closed     bool
}

func NewRefetcher(debounce, maxWait time.Duration, fetch func(context.Context)) *Refetcher {
	if maxWait < debounce {
		maxWait = debounce
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Refetcher{fetch: fetch, debounce: debounce, maxWait: maxWait, ctx: ctx, cancel: cancel}
}

func (r *Refetcher) Trigger() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	if r.running {
		r.pending = true
		return
	}
	r.scheduleLocked()
}

func (r *Refetcher) scheduleLocked() {
	now := time.Now()
	if r.burstStart.IsZero() {
		r.burstStart = now
	}
	delay := r.debounce
	if deadline := r.burstStart.Add(r.maxWait); now.Add(delay).After(deadline) {
		delay = deadline.Sub(now)
		if delay < 0 {
			delay = 0
		}
	}

	// A timer that already fired but has not taken the lock yet sees a
	// newer generation and does nothing.
	r.gen++
	gen := r.gen
	if r.timer != nil {
		r.timer.Stop()
	}
	r.timer = time.AfterFunc(delay, func() { r.fire(gen) })
}

func (r *Refetcher) fire(gen uint64) {
	r.mu.Lock()
	if r.closed || gen != r.gen || r.running {
		r.mu.Unlock()
		return
	}
	r.burstStart = time.Time{}
	r.running = true
	r.wg.Add(1)
	r.mu.Unlock()

	r.fetch(r.ctx)

	r.mu.Lock()
	r.running = false
	if r.pending && !r.closed {
		r.pending = false
		r.scheduleLocked()
	}
	r.mu.Unlock()
	r.wg.Done()
}

// Close stops pending timers, cancels a running fetch and waits for it.
func (r *Refetcher) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	if r.timer != nil {
		r.timer.Stop()
	}
	r.mu.Unlock()

	r.cancel()
	r.wg.Wait()
}
