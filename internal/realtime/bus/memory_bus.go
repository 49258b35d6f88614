package bus

import (
	"context"
	"sync"
	"time"

	"github.com/agrisense/agrisense-backend/internal/platform/logger"
)

const memoryBuffer = 256

// memoryBus fans messages out inside one process. A subscriber whose buffer
// is full drops the message rather than blocking publishers.
type memoryBus struct {
	log *logger.Logger

	mu   sync.RWMutex
	subs map[string]map[*memorySubscription]struct{}
}

func NewMemoryBus(log *logger.Logger) LiveBus {
	if log == nil {
		log = logger.Nop()
	}
	return &memoryBus{
		log:  log.With("service", "MemoryLiveBus"),
		subs: map[string]map[*memorySubscription]struct{}{},
	}
}

func (b *memoryBus) Publish(ctx context.Context, channel string, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	cp := append([]byte(nil), payload...)
	b.mu.RLock()
	defer b.mu.RUnlock()
	for s := range b.subs[channel] {
		select {
		case s.ch <- &Message{Channel: channel, Payload: cp}:
		default:
			b.log.Warn("live subscriber buffer full; dropping message", "channel", channel)
		}
	}
	return nil
}

func (b *memoryBus) Subscribe(ctx context.Context, channel string) (Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s := &memorySubscription{bus: b, channel: channel, ch: make(chan *Message, memoryBuffer), done: make(chan struct{})}
	b.mu.Lock()
	if b.subs[channel] == nil {
		b.subs[channel] = map[*memorySubscription]struct{}{}
	}
	b.subs[channel][s] = struct{}{}
	b.mu.Unlock()
	return s, nil
}

func (b *memoryBus) Close() error {
	b.mu.Lock()
	var all []*memorySubscription
	for _, set := range b.subs {
		for s := range set {
			all = append(all, s)
		}
	}
	b.mu.Unlock()
	for _, s := range all {
		_ = s.Close()
	}
	return nil
}

func (b *memoryBus) remove(s *memorySubscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	set := b.subs[s.channel]
	delete(set, s)
	if len(set) == 0 {
		delete(b.subs, s.channel)
	}
}

// subscribers is used by tests to check that handles are released.
func (b *memoryBus) subscribers(channel string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[channel])
}

type memorySubscription struct {
	bus     *memoryBus
	channel string
	ch      chan *Message
	done    chan struct{}
	once    sync.Once
}

func (s *memorySubscription) Receive(ctx context.Context, timeout time.Duration) (*Message, error) {
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-s.done:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	case m := <-s.ch:
		return m, nil
	case <-t.C:
		return nil, nil
	}
}

func (s *memorySubscription) Close() error {
	s.once.Do(func() {
		s.bus.remove(s)
		close(s.done)
	})
	return nil
}

// Subscribers reports the open subscriptions of channel on a memory bus,
// or -1 for other implementations.
func Subscribers(b LiveBus, channel string) int {
	if mb, ok := b.(*memoryBus); ok {
		return mb.subscribers(channel)
	}
	return -1
}
