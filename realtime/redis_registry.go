package realtime

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/viberl/BlindTasting-sub000/metrics"
)

// DefaultChannelPrefix namespaces the pub/sub channel of each tasting room
const DefaultChannelPrefix = "tasting:"

// RedisRegistry relays broadcasts through Redis pub/sub so that every
// instance behind a load balancer delivers them to its own clients. Room
// membership stays local; only events cross the wire. Redis keeps the
// publish order of a channel, so per-room ordering survives the hop.
type RedisRegistry struct {
	local  *LocalRegistry
	client *redis.Client
	prefix string
	logger *slog.Logger

	mu     sync.Mutex
	pubsub *redis.PubSub
	done   chan struct{}
}

// NewRedisRegistry wraps local with a Redis transport
func NewRedisRegistry(client *redis.Client, local *LocalRegistry, logger *slog.Logger) *RedisRegistry {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisRegistry{
		local:  local,
		client: client,
		prefix: DefaultChannelPrefix,
		logger: logger.With("component", "realtime-redis"),
	}
}

// Start subscribes to every room channel and begins relaying messages to
// local clients. It returns once the subscription is confirmed.
func (r *RedisRegistry) Start(ctx context.Context) error {
	ps := r.client.PSubscribe(ctx, r.prefix+"*")
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return fmt.Errorf("failed to subscribe to room channels: %w", err)
	}

	r.mu.Lock()
	r.pubsub = ps
	r.done = make(chan struct{})
	done := r.done
	r.mu.Unlock()

	go func() {
		defer close(done)
		for msg := range ps.Channel() {
			tastingID := strings.TrimPrefix(msg.Channel, r.prefix)
			r.local.Deliver(tastingID, []byte(msg.Payload))
		}
	}()
	return nil
}

// Close stops relaying messages
func (r *RedisRegistry) Close() error {
	r.mu.Lock()
	ps, done := r.pubsub, r.done
	r.pubsub = nil
	r.mu.Unlock()
	if ps == nil {
		return nil
	}
	err := ps.Close()
	<-done
	return err
}

// Register adds client to the local room
func (r *RedisRegistry) Register(tastingID string, client *Client) {
	r.local.Register(tastingID, client)
}

// Unregister removes client from the local room
func (r *RedisRegistry) Unregister(tastingID string, client *Client) {
	r.local.Unregister(tastingID, client)
}

// RoomSize returns the number of clients connected to this instance
func (r *RedisRegistry) RoomSize(tastingID string) int {
	return r.local.RoomSize(tastingID)
}

// Broadcast publishes event on the room channel. When Redis is unreachable
// the event is still delivered to this instance's clients.
func (r *RedisRegistry) Broadcast(ctx context.Context, tastingID string, event Event) error {
	data, err := Encode(event)
	if err != nil {
		return err
	}
	metrics.BroadcastsTotal.WithLabelValues(string(event.Type)).Inc()

	if err := r.client.Publish(ctx, r.prefix+tastingID, data).Err(); err != nil {
		r.logger.Warn("redis publish failed, delivering locally", "tasting_id", tastingID, "type", event.Type, "error", err)
		r.local.Deliver(tastingID, data)
	}
	return nil
}
