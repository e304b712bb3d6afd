package kv

import (
	"context"
	"sync"

	"github.com/redis/go-redis/v9"
)

const channelPrefix = "otesta:slot:"

// RedisNotifier carries slot change payloads across processes via pub/sub,
// the cross-tab channel of the slot model. Delivery order between processes
// is whatever the broker provides; observers replace wholesale.
type RedisNotifier struct {
	client *redis.Client

	mu   sync.Mutex
	subs []*redis.PubSub
}

// NewRedisNotifier wraps the raw redis client.
func NewRedisNotifier(client *redis.Client) *RedisNotifier {
	return &RedisNotifier{client: client}
}

func (n *RedisNotifier) Publish(ctx context.Context, name, payload string) error {
	return n.client.Publish(ctx, channelPrefix+name, payload).Err()
}

func (n *RedisNotifier) Subscribe(name string, fn func(payload string)) (unsubscribe func()) {
	sub := n.client.Subscribe(context.Background(), channelPrefix+name)

	n.mu.Lock()
	n.subs = append(n.subs, sub)
	n.mu.Unlock()

	go func() {
		for msg := range sub.Channel() {
			fn(msg.Payload)
		}
	}()

	return func() {
		_ = sub.Close()
	}
}

// Close tears down every open subscription.
func (n *RedisNotifier) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	var firstErr error
	for _, sub := range n.subs {
		if err := sub.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	n.subs = nil
	return firstErr
}
