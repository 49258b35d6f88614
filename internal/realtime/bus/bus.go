package bus

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrClosed is returned by a Subscription after Close.
var ErrClosed = errors.New("subscription closed")

// Message is one payload received on a channel.
type Message struct {
	Channel string
	Payload []byte
}

// LiveBus is the pub/sub transport behind the per-farm live feed.
type LiveBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (Subscription, error)
	Close() error
}

type Subscription interface {
	// Receive waits up to timeout for the next message. It returns nil, nil
	// when the timeout passes without one.
	Receive(ctx context.Context, timeout time.Duration) (*Message, error)
	// Close unsubscribes and releases the handle. It is safe to call twice.
	Close() error
}

func FarmChannel(farmID string) string {
	return fmt.Sprintf("farm:%s:live", farmID)
}

func JobStatusKey(jobID string) string {
	return fmt.Sprintf("job:%s:status", jobID)
}
