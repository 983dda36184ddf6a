package realtime

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

const DefaultBuffer = 64

type Subscription struct {
	id     uint64
	table  string
	filter Filter
	ch     chan Event
}

func (s *Subscription) Events() <-chan Event { return s.ch }
func (s *Subscription) Table() string        { return s.table }

// Hub fans events out to in-process subscribers. A subscriber whose buffer
// is full misses the event; publishers never block.
type Hub struct {
	mu     sync.RWMutex
	nextID uint64
	subs   map[string]map[uint64]*Subscription
	closed bool

	log     *zap.Logger
	events  *prometheus.CounterVec
	dropped prometheus.Counter
}

// NewHub builds a hub. events and dropped may be nil.
func NewHub(log *zap.Logger, events *prometheus.CounterVec, dropped prometheus.Counter) *Hub {
	return &Hub{
		subs:    make(map[string]map[uint64]*Subscription),
		log:     log,
		events:  events,
		dropped: dropped,
	}
}

func (h *Hub) Subscribe(table string, filter Filter, buffer int) *Subscription {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	s := &Subscription{id: h.nextID, table: table, filter: filter, ch: make(chan Event, buffer)}
	if h.closed {
		close(s.ch)
		return s
	}
	if h.subs[table] == nil {
		h.subs[table] = make(map[uint64]*Subscription)
	}
	h.subs[table][s.id] = s
	return s
}

// Unsubscribe releases s and closes its channel. Safe to call twice.
func (h *Hub) Unsubscribe(s *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()

	byID := h.subs[s.table]
	if _, ok := byID[s.id]; !ok {
		return
	}
	delete(byID, s.id)
	if len(byID) == 0 {
		delete(h.subs, s.table)
	}
	close(s.ch)
}

// Publish delivers ev to matching subscribers of ev.Table.
func (h *Hub) Publish(ev Event) {
	if h.events != nil {
		h.events.WithLabelValues(ev.Table, string(ev.Type)).Inc()
	}
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, s := range h.subs[ev.Table] {
		if !s.filter.Match(ev) {
			continue
		}
		select {
		case s.ch <- ev:
		default:
			if h.dropped != nil {
				h.dropped.Inc()
			}
			h.log.Warn("realtime subscriber is full, dropping event",
				zap.String("table", ev.Table), zap.String("type", string(ev.Type)))
		}
	}
}

func (h *Hub) Subscribers(table string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[table])
}

// Close ends every subscription.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for table, byID := range h.subs {
		for _, s := range byID {
			close(s.ch)
		}
		delete(h.subs, table)
	}
}
