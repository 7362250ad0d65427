package pubsub

import "sync"

// MemoryBus delivers within the current process.
type MemoryBus struct {
	mu     sync.RWMutex
	topics map[string]map[*Subscription]struct{}
	buffer int
}

var _ Bus = (*MemoryBus)(nil)

func NewMemoryBus(buffer int) *MemoryBus {
	return &MemoryBus{topics: make(map[string]map[*Subscription]struct{}), buffer: buffer}
}

func (b *MemoryBus) Publish(topic string, payload []byte) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for sub := range b.topics[topic] {
		sub.deliver(payload)
	}
}

func (b *MemoryBus) Subscribe(topic string) *Subscription {
	sub := newSubscription(topic, b.buffer, b.remove)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.topics[topic] == nil {
		b.topics[topic] = make(map[*Subscription]struct{})
	}
	b.topics[topic][sub] = struct{}{}
	return sub
}

// Subscribers returns the number of live subscriptions on topic.
func (b *MemoryBus) Subscribers(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.topics[topic])
}

func (b *MemoryBus) remove(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.topics[sub.Topic]
	delete(subs, sub)
	if len(subs) == 0 {
		delete(b.topics, sub.Topic)
	}
}

func (b *MemoryBus) Close() error {
	b.mu.Lock()
	var all []*Subscription
	for _, subs := range b.topics {
		for sub := range subs {
			all = append(all, sub)
		}
	}
	b.mu.Unlock()

	for _, sub := range all {
		sub.Close()
	}
	return nil
}
