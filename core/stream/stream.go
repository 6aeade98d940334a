// Package stream provides the broadcast primitive shared by the playback
// engine, the realtime session and the feature services: a subject that
// replays its latest value to late subscribers and fans out publishes to
// every active subscription in FIFO order.
package stream

import (
	"sync"
)

// defaultBuffer is the per-subscriber channel capacity. A subscriber
// that falls further behind than this misses intermediate values but can
// always observe the latest one via Value.
const defaultBuffer = 16

// Subject is a broadcast channel with a remembered last value.
// The zero value is not usable; construct with New or NewWithValue.
type Subject[T any] struct {
	mu       sync.Mutex
	value    T
	hasValue bool
	subs     map[int]chan T
	nextID   int
	closed   bool
}

// New creates a Subject with no initial value. Subscribers receive
// nothing until the first Publish.
func New[T any]() *Subject[T] {
	return &Subject[T]{subs: make(map[int]chan T)}
}

// NewWithValue creates a Subject that immediately replays initial to
// every new subscriber.
func NewWithValue[T any](initial T) *Subject[T] {
	s := New[T]()
	s.value = initial
	s.hasValue = true
	return s
}

// Publish stores v as the latest value and delivers it to all active
// subscribers. Delivery to a full subscriber buffer drops the value for
// that subscriber only; order of delivered values is preserved.
func (s *Subject[T]) Publish(v T) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.value = v
	s.hasValue = true
	for _, ch := range s.subs {
		select {
		case ch <- v:
		default:
		}
	}
}

// Value returns the latest published value and whether one exists.
func (s *Subject[T]) Value() (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value, s.hasValue
}

// Subscribe registers a new subscriber. The latest value, if any, is
// replayed first. The returned cancel func detaches the subscriber and
// closes its channel; it is safe to call more than once.
func (s *Subject[T]) Subscribe() (<-chan T, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan T, defaultBuffer)
	if s.closed {
		close(ch)
		return ch, func() {}
	}

	id := s.nextID
	s.nextID++
	s.subs[id] = ch
	if s.hasValue {
		ch <- s.value
	}

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if sub, ok := s.subs[id]; ok {
				delete(s.subs, id)
				close(sub)
			}
		})
	}
	return ch, cancel
}

// Close detaches and closes all subscriber channels. Further publishes
// are ignored and further subscriptions receive a closed channel.
func (s *Subject[T]) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	for id, ch := range s.subs {
		delete(s.subs, id)
		close(ch)
	}
}

// Bag collects subscription cancel funcs so a view can tear down all of
// its stream subscriptions with one call when it is destroyed.
type Bag struct {
	mu      sync.Mutex
	cancels []func()
}

// Add registers a cancel func with the bag.
func (b *Bag) Add(cancel func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cancels = append(b.cancels, cancel)
}

// Close cancels every registered subscription, newest first.
func (b *Bag) Close() {
	b.mu.Lock()
	cancels := b.cancels
	b.cancels = nil
	b.mu.Unlock()

	for i := len(cancels) - 1; i >= 0; i-- {
		cancels[i]()
	}
}
