package stream

import (
	"context"
	"sync"
)

// Stream fan-outs events to all active subscribers (SSE clients).
type Stream[T any] struct {
	mu   sync.RWMutex
	subs map[int]chan T
	next int
}

// New initialises an empty stream.
func New[T any]() *Stream[T] {
	return &Stream[T]{subs: make(map[int]chan T)}
}

// Subscribe registers a subscriber and returns a channel which will receive
// events. The channel is closed when the provided context ends.
func (s *Stream[T]) Subscribe(ctx context.Context) <-chan T {
	ch := make(chan T, 16)

	s.mu.Lock()
	id := s.next
	s.next++
	s.subs[id] = ch
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		delete(s.subs, id)
		close(ch)
		s.mu.Unlock()
	}()

	return ch
}

// Publish fan-outs the event to all subscribers.
func (s *Stream[T]) Publish(evt T) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ch := range s.subs {
		select {
		case ch <- evt:
		default:
			// Drop when subscriber is slow to avoid blocking.
		}
	}
}
