package pubsub

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const publishTimeout = 3 * time.Second

type outgoing struct {
	channel string
	payload []byte
}

// RedisBus relays topics through Redis PUBLISH/SUBSCRIBE so that every
// server process sees every message. Publish only enqueues; a background
// loop performs the network call.
type RedisBus struct {
	client *redis.Client
	prefix string
	buffer int
	log    *slog.Logger

	outbox chan outgoing
	done   chan struct{}
	wg     sync.WaitGroup
	once   sync.Once
}

var _ Bus = (*RedisBus)(nil)

func NewRedisBus(ctx context.Context, addr, prefix string, buffer int, log *slog.Logger) (*RedisBus, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis: ping: %w", err)
	}

	b := &RedisBus{
		client: client,
		prefix: prefix,
		buffer: buffer,
		log:    log,
		outbox: make(chan outgoing, 1024),
		done:   make(chan struct{}),
	}
	b.wg.Add(1)
	go b.run()
	return b, nil
}

func (b *RedisBus) run() {
	defer b.wg.Done()
	for {
		select {
		case out := <-b.outbox:
			ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
			if err := b.client.Publish(ctx, out.channel, out.payload).Err(); err != nil {
				b.log.Warn("Redis publish failed", "channel", out.channel, "error", err)
			}
			cancel()
		case <-b.done:
			return
		}
	}
}

func (b *RedisBus) Publish(topic string, payload []byte) {
	select {
	case b.outbox <- outgoing{channel: b.prefix + topic, payload: payload}:
	default:
		b.log.Warn("Redis outbox full, dropping event", "topic", topic)
	}
}

func (b *RedisBus) Subscribe(topic string) *Subscription {
	ps := b.client.Subscribe(context.Background(), b.prefix+topic)
	sub := newSubscription(topic, b.buffer, func(*Subscription) {
		_ = ps.Close()
	})

	go func() {
		for msg := range ps.Channel() {
			sub.deliver([]byte(msg.Payload))
		}
	}()
	return sub
}

func (b *RedisBus) Close() error {
	b.once.Do(func() { close(b.done) })
	b.wg.Wait()
	return b.client.Close()
}
