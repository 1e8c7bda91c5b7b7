package queue

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisQueue implements Queue over Redis pub/sub channels.
type RedisQueue struct {
	client *redis.Client
}

// NewRedisQueue creates a RedisQueue from a Redis URL.
func NewRedisQueue(redisURL string) (*RedisQueue, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	return &RedisQueue{client: redis.NewClient(opts)}, nil
}

// NewRedisQueueFromClient wraps an existing client.
func NewRedisQueueFromClient(client *redis.Client) *RedisQueue {
	return &RedisQueue{client: client}
}

func (q *RedisQueue) Publish(ctx context.Context, channel string, payload []byte) (int64, error) {
	receivers, err := q.client.Publish(ctx, channel, payload).Result()
	if err != nil {
		return 0, fmt.Errorf("publish to %s: %w", channel, classify(err))
	}
	return receivers, nil
}

func (q *RedisQueue) Subscribe(ctx context.Context, channel string) (Subscription, error) {
	ps := q.client.Subscribe(ctx, channel)
	// Confirm the subscription before handing it to the worker loop, so a
	// dead transport surfaces here rather than as a poll failure.
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("subscribe to %s: %w", channel, classify(err))
	}
	return &redisSubscription{ps: ps, channel: channel}, nil
}

func (q *RedisQueue) Ping(ctx context.Context) error {
	return q.client.Ping(ctx).Err()
}

func (q *RedisQueue) Close() error {
	return q.client.Close()
}

type redisSubscription struct {
	ps      *redis.PubSub
	channel string
}

func (s *redisSubscription) Poll(ctx context.Context, timeout time.Duration) ([]byte, error) {
	msg, err := s.ps.ReceiveTimeout(ctx, timeout)
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return nil, ErrNoMessage
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("poll %s: %w", s.channel, classify(err))
	}

	switch m := msg.(type) {
	case *redis.Message:
		return []byte(m.Payload), nil
	default:
		// Subscription confirmations and pongs are not messages.
		return nil, ErrNoMessage
	}
}

func (s *redisSubscription) Close() error {
	return s.ps.Close()
}

func classify(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %v", ErrTransportUnavailable, err)
}

var _ Queue = (*RedisQueue)(nil)
