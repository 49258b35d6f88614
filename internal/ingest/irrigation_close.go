package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/agrisense/agrisense-backend/internal/domain"
	"github.com/agrisense/agrisense-backend/internal/domain/farm"
	"github.com/agrisense/agrisense-backend/internal/engine"
	"github.com/agrisense/agrisense-backend/internal/graphcache"
	apperr "github.com/agrisense/agrisense-backend/internal/pkg/errors"
	"github.com/agrisense/agrisense-backend/internal/pkg/dbctx"
)

type CloseReceipt struct {
	Event    *types.IrrigationEvent `json:"event"`
	Warnings []string               `json:"warnings"`
}

type closePayload struct {
	EventID      int64     `json:"event_id"`
	TimestampEnd time.Time `json:"timestamp_end"`
	VolumeLiters *float64  `json:"volume_liters"`
}

// CloseIrrigationEvent sets the end time and volume of an open irrigation
// event once, then marks the valve closed in the graph state.
func (s *Service) CloseIrrigationEvent(ctx context.Context, farmID uuid.UUID, eventID int64, end time.Time, volume *float64) (*CloseReceipt, error) {
	if end.IsZero() {
		return nil, apperr.Invalid("timestamp_end is required")
	}
	if volume != nil && *volume < 0 {
		return nil, apperr.Invalid("volume_liters must not be negative")
	}

	var (
		event    *types.IrrigationEvent
		valve    *types.Vertex
		state    engine.GraphState
		updated  bool
		warnings = []string{}
	)
	key := farmID.String()
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		if _, err := s.requireFarm(dbc, farmID); err != nil {
			return err
		}
		ev, err := s.repos.Telemetry.GetIrrigationEvent(dbc, eventID)
		if err != nil {
			return err
		}
		if ev == nil {
			return apperr.NotFound("irrigation event %d not found", eventID)
		}
		v, err := s.repos.Vertex.GetByID(dbc, ev.ValveID)
		if err != nil {
			return err
		}
		if v == nil || v.FarmID != farmID {
			return apperr.NotFound("irrigation event %d not found", eventID)
		}
		if ev.TimestampEnd != nil {
			return apperr.Invalid("irrigation event %d is already closed", eventID)
		}
		if end.Before(ev.TimestampStart) {
			return apperr.Invalid("timestamp_end must not be before timestamp_start")
		}
		ok, err := s.repos.Telemetry.CloseIrrigationEvent(dbc, eventID, end, volume)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.Invalid("irrigation event %d is already closed", eventID)
		}
		ev.TimestampEnd = &end
		if volume != nil {
			ev.VolumeLiters = volume
		}
		event, valve = ev, v

		current, err := graphcache.FromContext(ctx).Get(ctx, key, func(context.Context) (engine.GraphState, error) {
			return s.graph.GetGraph(dbc, farmID)
		})
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("graph update failed for %s: %v", farm.LayerIrrigation, err))
			return nil
		}
		next, err := s.engine.UpdateFeatures(ctx, current, string(farm.LayerIrrigation), v.ID.String(),
			irrigationFeatures(ev.TimestampStart, ev.TimestampEnd, ev.VolumeLiters))
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("graph update failed for %s: %v", farm.LayerIrrigation, err))
			return nil
		}
		state, updated = next, true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if updated {
		graphcache.FromContext(ctx).Set(key, state)
	}
	s.publish(ctx, farmID, []Event{{
		EventType:  EventIrrigationClosed,
		Layer:      string(farm.LayerIrrigation),
		FarmID:     key,
		ZoneID:     idString(valve.ZoneID),
		VertexID:   idString(&valve.ID),
		Payload:    closePayload{EventID: event.ID, TimestampEnd: end, VolumeLiters: event.VolumeLiters},
		Warnings:   warnings,
		RecordID:   event.ID,
		IngestedAt: time.Now().UTC(),
	}})
	return &CloseReceipt{Event: event, Warnings: warnings}, nil
}
