package realtime

import (
	"context"
	"errors"
	"time"

	gojson "github.com/goccy/go-json"

	"github.com/agrisense/agrisense-backend/internal/platform/logger"
	"github.com/agrisense/agrisense-backend/internal/realtime/bus"
)

const (
	ReceiveTimeout = time.Second
	IdleSleep      = 50 * time.Millisecond
)

// Frame is one forwarded message. JSON payloads are decoded into JSON;
// anything else is passed through untouched in Text.
type Frame struct {
	IsJSON bool
	JSON   any
	Text   string
}

func DecodeFrame(payload []byte) Frame {
	var v any
	if err := gojson.Unmarshal(payload, &v); err != nil {
		return Frame{Text: string(payload)}
	}
	return Frame{IsJSON: true, JSON: v}
}

// Sink delivers a frame to one consumer. An error ends the tail.
type Sink func(Frame) error

// Tail subscribes to channel and forwards every message to sink until ctx
// is done, the sink fails, or the subscription breaks. The subscription is
// always released before Tail returns.
func Tail(ctx context.Context, log *logger.Logger, b bus.LiveBus, channel string, sink Sink) error {
	sub, err := b.Subscribe(ctx, channel)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := sub.Close(); cerr != nil && log != nil {
			log.Warn("live unsubscribe failed", "channel", channel, "error", cerr)
		}
	}()

	for {
		msg, err := sub.Receive(ctx, ReceiveTimeout)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		if msg != nil {
			if err := sink(DecodeFrame(msg.Payload)); err != nil {
				return err
			}
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(IdleSleep):
		}
	}
}
