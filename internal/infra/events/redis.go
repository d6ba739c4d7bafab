package events

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/floroz/gavel-live/internal/notify"
)

var _ notify.UpdateBroadcaster = (*RedisPublisher)(nil)

// RedisPublisher exports accepted bids to Redis Pub/Sub.
// Each item gets its own channel, {prefix}:{itemID}, so subscribers can
// follow one item or PSUBSCRIBE to {prefix}:*.
type RedisPublisher struct {
	client *redis.Client
	prefix string
	now    func() time.Time
}

// NewRedisPublisher connects to the Redis server at url
func NewRedisPublisher(ctx context.Context, url, prefix string) (*RedisPublisher, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)

	// Test connection
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisPublisher{
		client: rdb,
		prefix: prefix,
		now:    time.Now,
	}, nil
}

// Channel returns the Pub/Sub channel of an item
func (p *RedisPublisher) Channel(itemID string) string {
	return fmt.Sprintf("%s:%s", p.prefix, itemID)
}

// BroadcastUpdate implements notify.UpdateBroadcaster
func (p *RedisPublisher) BroadcastUpdate(ctx context.Context, update notify.BidUpdate) error {
	body, err := EncodeBidUpdate(update, p.now())
	if err != nil {
		return err
	}
	if err := p.client.Publish(ctx, p.Channel(update.ItemID), body).Err(); err != nil {
		return fmt.Errorf("failed to publish to redis: %w", err)
	}
	return nil
}

// Close closes the Redis connection
func (p *RedisPublisher) Close() error {
	return p.client.Close()
}
