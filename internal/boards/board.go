// Package boards keeps server-side copies of the live screens (kitchen
// queue, server pickups, floor plan, order stats). A board watches the
// change feed and refetches its whole dataset when a relevant row changes;
// websocket clients receive each new snapshot.
package boards

import (
	"context"
	"sync"
	"time"

	"github.com/bhavnindersingh/RecipeManager/internal/auth"
	"github.com/bhavnindersingh/RecipeManager/internal/models"
	"github.com/bhavnindersingh/RecipeManager/internal/realtime"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Watch names a feed table and the columns whose updates matter. Inserts
// and deletes always count.
type Watch struct {
	Table  string
	Fields []string
}

// Definition pairs a board's loader with the feed tables that trigger it.
type Definition struct {
	Name    string
	Screens []auth.Screen
	Watches []Watch
	Fetch   func(ctx context.Context) (any, error)
}

type Snapshot struct {
	Board   string    `json:"board"`
	Version uint64    `json:"version"`
	Data    any       `json:"data"`
	Error   string    `json:"error,omitempty"`
	At      time.Time `json:"at"`
}

type Options struct {
	Debounce time.Duration
	MaxWait  time.Duration
	// Refetches counts fetches by board and result; may be nil.
	Refetches *prometheus.CounterVec
}

type Board struct {
	def       Definition
	hub       *realtime.Hub
	refetcher *realtime.Refetcher
	refetches *prometheus.CounterVec
	log       *zap.Logger

	subs []*realtime.Subscription
	wg   sync.WaitGroup

	mu        sync.RWMutex
	snap      Snapshot
	listeners map[chan Snapshot]struct{}
	closed    bool
}

func New(def Definition, hub *realtime.Hub, opts Options, log *zap.Logger) *Board {
	b := &Board{
		def:       def,
		hub:       hub,
		refetches: opts.Refetches,
		log:       log.With(zap.String("board", def.Name)),
		listeners: make(map[chan Snapshot]struct{}),
		snap:      Snapshot{Board: def.Name},
	}
	b.refetcher = realtime.NewRefetcher(opts.Debounce, opts.MaxWait, b.refresh)
	return b
}

func (b *Board) Name() string { return b.def.Name }

// Allows reports whether role may open this board.
func (b *Board) Allows(role models.UserRole) bool {
	for _, s := range b.def.Screens {
		if auth.CanAccess(role, s) {
			return true
		}
	}
	return false
}

// Start loads the first snapshot and begins following the feed.
func (b *Board) Start(ctx context.Context) {
	b.refresh(ctx)
	for _, w := range b.def.Watches {
		sub := b.hub.Subscribe(w.Table, realtime.Filter{}, realtime.DefaultBuffer)
		b.subs = append(b.subs, sub)
		b.wg.Add(1)
		go b.follow(sub, w.Fields)
	}
}

func (b *Board) follow(sub *realtime.Subscription, fields []string) {
	defer b.wg.Done()
	for ev := range sub.Events() {
		if realtime.HasSignificantChanges(ev, fields...) {
			b.refetcher.Trigger()
		}
	}
}

func (b *Board) refresh(ctx context.Context) {
	data, err := b.def.Fetch(ctx)
	if ctx.Err() != nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
		b.log.Warn("board refetch failed", zap.Error(err))
	}
	if b.refetches != nil {
		b.refetches.WithLabelValues(b.def.Name, result).Inc()
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	next := Snapshot{Board: b.def.Name, Version: b.snap.Version + 1, At: time.Now()}
	if err != nil {
		// Keep showing the last good data alongside the error.
		next.Data = b.snap.Data
		next.Error = "Refresh failed, showing the last loaded data"
	} else {
		next.Data = data
	}
	b.snap = next
	for ch := range b.listeners {
		select {
		case ch <- next:
		default:
			// A slow client skips to a later snapshot.
		}
	}
}

func (b *Board) Snapshot() Snapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.snap
}

// Listen returns a channel receiving every new snapshot and a func that
// stops delivery and closes the channel.
func (b *Board) Listen() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	b.listeners[ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if _, ok := b.listeners[ch]; ok {
				delete(b.listeners, ch)
				close(ch)
			}
		})
	}
}

// Close unsubscribes from the feed, stops pending refetches and closes
// every listener.
func (b *Board) Close() {
	for _, sub := range b.subs {
		b.hub.Unsubscribe(sub)
	}
	b.wg.Wait()
	b.refetcher.Close()

	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	for ch := range b.listeners {
		close(ch)
		delete(b.listeners, ch)
	}
}

type Registry struct {
	boards map[string]*Board
	order  []string
}

func NewRegistry(boards ...*Board) *Registry {
	r := &Registry{boards: make(map[string]*Board, len(boards))}
	for _, b := range boards {
		r.boards[b.Name()] = b
		r.order = append(r.order, b.Name())
	}
	return r
}

func (r *Registry) Get(name string) (*Board, bool) {
	b, ok := r.boards[name]
	return b, ok
}

func (r *Registry) Start(ctx context.Context) {
	for _, name := range r.order {
		r.boards[name].Start(ctx)
	}
}

func (r *Registry) Close() {
	for _, name := range r.order {
		r.boards[name].Close()
	}
}
