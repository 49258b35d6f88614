package ingest

import (
	"context"
	"time"

	gojson "github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/agrisense/agrisense-backend/internal/realtime/bus"
)

const (
	EventIngest           = "ingest"
	EventIrrigationClosed = "irrigation_closed"
)

// Event is the live-feed envelope of one persisted record.
type Event struct {
	EventType  string    `json:"event_type"`
	Layer      string    `json:"layer"`
	FarmID     string    `json:"farm_id"`
	ZoneID     *string   `json:"zone_id"`
	VertexID   *string   `json:"vertex_id"`
	Payload    any       `json:"payload"`
	Warnings   []string  `json:"warnings"`
	RecordID   int64     `json:"record_id"`
	IngestedAt time.Time `json:"ingested_at"`
}

// Publisher is the publish half of bus.LiveBus.
type Publisher interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

func idString(id *uuid.UUID) *string {
	if id == nil {
		return nil
	}
	s := id.String()
	return &s
}

func warningsAt(ws []Warning, index int) []string {
	out := []string{}
	for _, w := range ws {
		if w.Index == index {
			out = append(out, w.Message)
		}
	}
	return out
}

// publish sends events in order. Failures are logged and skipped; the
// records are already committed.
func (s *Service) publish(ctx context.Context, farmID uuid.UUID, events []Event) {
	if s.pub == nil || len(events) == 0 {
		return
	}
	channel := bus.FarmChannel(farmID.String())
	for _, ev := range events {
		raw, err := gojson.Marshal(ev)
		if err != nil {
			s.log.Warn("encode live event failed", "farm_id", farmID, "record_id", ev.RecordID, "error", err)
			continue
		}
		if err := s.pub.Publish(ctx, channel, raw); err != nil {
			s.log.Warn("publish live event failed", "farm_id", farmID, "layer", ev.Layer, "record_id", ev.RecordID, "error", err)
		}
	}
}
