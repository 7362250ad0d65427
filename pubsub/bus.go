package pubsub

import "sync"

// Bus fans payloads out to every live subscription of a topic. Publish never
// waits for subscribers.
type Bus interface {
	Publish(topic string, payload []byte)
	Subscribe(topic string) *Subscription
	Close() error
}

// Subscription is a bounded mailbox. When it is full the oldest payload is
// discarded to make room for the new one.
type Subscription struct {
	Topic string

	mu      sync.Mutex
	ch      chan []byte
	closed  bool
	dropped int
	onClose func(*Subscription)
}

func newSubscription(topic string, buffer int, onClose func(*Subscription)) *Subscription {
	if buffer <= 0 {
		buffer = 1
	}
	return &Subscription{Topic: topic, ch: make(chan []byte, buffer), onClose: onClose}
}

// C is closed once the subscription is closed.
func (s *Subscription) C() <-chan []byte { return s.ch }

// Dropped counts payloads discarded because the reader fell behind.
func (s *Subscription) Dropped() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

func (s *Subscription) deliver(payload []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	for {
		select {
		case s.ch <- payload:
			return
		default:
		}
		select {
		case <-s.ch:
			s.dropped++
		default:
		}
	}
}

func (s *Subscription) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.ch)
	s.mu.Unlock()

	if s.onClose != nil {
		s.onClose(s)
	}
}
