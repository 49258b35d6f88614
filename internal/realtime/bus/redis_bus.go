package bus

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/agrisense/agrisense-backend/internal/platform/logger"
)

type redisBus struct {
	log *logger.Logger
	rdb *goredis.Client
}

// NewRedisBus publishes and subscribes through rdb. The client is owned by
// the caller and is not closed by the bus.
func NewRedisBus(log *logger.Logger, rdb *goredis.Client) (LiveBus, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if rdb == nil {
		return nil, fmt.Errorf("redis client required")
	}
	return &redisBus{
		log: log.With("service", "RedisLiveBus"),
		rdb: rdb,
	}, nil
}

func (b *redisBus) Publish(ctx context.Context, channel string, payload []byte) error {
	if b == nil || b.rdb == nil {
		return fmt.Errorf("redis live bus not initialized")
	}
	return b.rdb.Publish(ctx, channel, payload).Err()
}

func (b *redisBus) Subscribe(ctx context.Context, channel string) (Subscription, error) {
	if b == nil || b.rdb == nil {
		return nil, fmt.Errorf("redis live bus not initialized")
	}
	ps := b.rdb.Subscribe(ctx, channel)
	// ensures subscription actually started
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("redis subscribe: %w", err)
	}
	return &redisSubscription{ps: ps, channel: channel}, nil
}

func (b *redisBus) Close() error { return nil }

type redisSubscription struct {
	ps      *goredis.PubSub
	channel string

	once sync.Once
	err  error
}

func (s *redisSubscription) Receive(ctx context.Context, timeout time.Duration) (*Message, error) {
	deadline := time.Now().Add(timeout)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, nil
		}
		raw, err := s.ps.ReceiveTimeout(ctx, remaining)
		if err != nil {
			if isTimeout(err) {
				return nil, nil
			}
			return nil, err
		}
		switch m := raw.(type) {
		case *goredis.Message:
			return &Message{Channel: m.Channel, Payload: []byte(m.Payload)}, nil
		case *goredis.Subscription, *goredis.Pong:
			continue
		}
	}
}

func (s *redisSubscription) Close() error {
	s.once.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = s.ps.Unsubscribe(ctx, s.channel)
		s.err = s.ps.Close()
	})
	return s.err
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
