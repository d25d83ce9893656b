package broadcast

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/warusakudeveroper/Arduino-MCP-sub000/internal/core/domain"
	"github.com/warusakudeveroper/Arduino-MCP-sub000/internal/telemetry"
)

const (
	// DefaultReplaySize is the number of events kept for new subscribers.
	DefaultReplaySize = 500
	// DefaultQueueSize bounds each subscriber's undelivered backlog.
	DefaultQueueSize = 64
	// DefaultKeepAlive is the idle tick interval toward subscribers.
	DefaultKeepAlive = 15 * time.Second
)

// Subscriber is one consumer of the event stream. Consume Backlog()
// first, then read live events from Events(); the channel closes on
// unsubscribe.
type Subscriber struct {
	id      uint64
	ch      chan domain.SerialEvent
	backlog []domain.SerialEvent
	dropped atomic.Int64
}

// Events returns the subscriber's live delivery channel.
func (s *Subscriber) Events() <-chan domain.SerialEvent {
	return s.ch
}

// Backlog hands over the replay snapshot taken at subscribe time. It is
// delivered outside the bounded live queue, so no replay entry is ever
// dropped on a fresh subscriber. One-shot: later calls return nil.
func (s *Subscriber) Backlog() []domain.SerialEvent {
	out := s.backlog
	s.backlog = nil
	return out
}

// Dropped reports how many events were discarded toward this subscriber.
func (s *Subscriber) Dropped() int64 {
	return s.dropped.Load()
}

// enqueue delivers best-effort: when the queue is full the oldest queued
// event is discarded so the subscriber keeps seeing fresh output. Callers
// hold the broadcaster lock, so send and evict never race each other.
func (s *Subscriber) enqueue(ev domain.SerialEvent) {
	select {
	case s.ch <- ev:
		return
	default:
	}
	select {
	case <-s.ch:
		s.dropped.Add(1)
		telemetry.EventsDropped.WithLabelValues("slow_subscriber").Inc()
	default:
	}
	select {
	case s.ch <- ev:
	default:
		s.dropped.Add(1)
		telemetry.EventsDropped.WithLabelValues("slow_subscriber").Inc()
	}
}

// Broadcaster fans serial events out to all subscribers and keeps a short
// replay buffer so new clients see recent history first.
type Broadcaster struct {
	mu         sync.Mutex
	subs       map[uint64]*Subscriber
	nextID     uint64
	replay     []domain.SerialEvent
	replaySize int
	queueSize  int
	keepAlive  time.Duration
}

// New creates a Broadcaster with the given replay and per-subscriber queue
// capacities. Zero or negative values select the defaults.
func New(replaySize, queueSize int) *Broadcaster {
	if replaySize <= 0 {
		replaySize = DefaultReplaySize
	}
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Broadcaster{
		subs:       make(map[uint64]*Subscriber),
		replay:     make([]domain.SerialEvent, 0, replaySize),
		replaySize: replaySize,
		queueSize:  queueSize,
		keepAlive:  DefaultKeepAlive,
	}
}

// SetKeepAlive overrides the keep-alive interval. Call before Run.
func (b *Broadcaster) SetKeepAlive(d time.Duration) {
	if d > 0 {
		b.keepAlive = d
	}
}

// Subscribe registers a consumer. The replay buffer is snapshotted into
// the subscriber's backlog under the same lock that orders publishes, so
// every event lands exactly once: in the backlog or in the live queue,
// never both, and replay always precedes live. Drop-oldest only ever
// applies to the live queue of a slow consumer.
func (b *Broadcaster) Subscribe() *Subscriber {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	sub := &Subscriber{
		id:      b.nextID,
		ch:      make(chan domain.SerialEvent, b.queueSize),
		backlog: make([]domain.SerialEvent, len(b.replay)),
	}
	copy(sub.backlog, b.replay)
	b.subs[sub.id] = sub
	return sub
}

// Unsubscribe removes the consumer and closes its channel.
func (b *Broadcaster) Unsubscribe(sub *Subscriber) {
	if sub == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[sub.id]; !ok {
		return
	}
	delete(b.subs, sub.id)
	close(sub.ch)
}

// Publish delivers an event to every subscriber and appends it to the
// replay buffer. It never blocks on slow consumers.
func (b *Broadcaster) Publish(ev domain.SerialEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.replay = append(b.replay, ev)
	if len(b.replay) > b.replaySize {
		b.replay = b.replay[1:]
	}

	for _, sub := range b.subs {
		sub.enqueue(ev)
	}
}

// Replay returns a copy of the current replay buffer.
func (b *Broadcaster) Replay() []domain.SerialEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]domain.SerialEvent, len(b.replay))
	copy(out, b.replay)
	return out
}

// SubscriberCount reports the current number of consumers.
func (b *Broadcaster) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Run emits keep-alive ticks until the context is cancelled. Keep-alives
// go to subscribers only; they are never stored in the replay buffer.
func (b *Broadcaster) Run(ctx context.Context) {
	ticker := time.NewTicker(b.keepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			b.ping()
		}
	}
}

func (b *Broadcaster) ping() {
	ev := domain.NewPingEvent()
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, sub := range b.subs {
		sub.enqueue(ev)
	}
}
