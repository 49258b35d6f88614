// Package ingest validates telemetry against the farm topology, stores it,
// folds each record into the operation's graph state and announces it on
// the farm's live channel.
package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/agrisense/agrisense-backend/internal/data/repos"
	types "github.com/agrisense/agrisense-backend/internal/domain"
	"github.com/agrisense/agrisense-backend/internal/domain/farm"
	"github.com/agrisense/agrisense-backend/internal/engine"
	"github.com/agrisense/agrisense-backend/internal/graphcache"
	"github.com/agrisense/agrisense-backend/internal/observability"
	apperr "github.com/agrisense/agrisense-backend/internal/pkg/errors"
	"github.com/agrisense/agrisense-backend/internal/pkg/dbctx"
	"github.com/agrisense/agrisense-backend/internal/platform/logger"
)

// GraphLoader rebuilds a farm's graph state from storage.
type GraphLoader interface {
	GetGraph(dbc dbctx.Context, farmID uuid.UUID) (engine.GraphState, error)
}

// FeatureUpdater applies one feature vector to a graph state.
type FeatureUpdater interface {
	UpdateFeatures(ctx context.Context, state engine.GraphState, layer, vertexID string, features []float64) (engine.GraphState, error)
}

type Service struct {
	db      *gorm.DB
	log     *logger.Logger
	repos   repos.Set
	graph   GraphLoader
	engine  FeatureUpdater
	pub     Publisher
	metrics *observability.Metrics
}

// NewService wires the orchestrator. pub and metrics may be nil.
func NewService(db *gorm.DB, baseLog *logger.Logger, set repos.Set, graph GraphLoader, eng FeatureUpdater, pub Publisher, metrics *observability.Metrics) *Service {
	return &Service{
		db:      db,
		log:     baseLog.With("service", "IngestService"),
		repos:   set,
		graph:   graph,
		engine:  eng,
		pub:     pub,
		metrics: metrics,
	}
}

// layerResult is the outcome of one layer pipeline before anything is
// published.
type layerResult struct {
	receipt *Receipt
	events  []Event
	state   engine.GraphState
}

// Ingest runs one layer call in its own transaction.
func (s *Service) Ingest(ctx context.Context, farmID uuid.UUID, layer farm.Layer, recs []Record) (*Receipt, error) {
	d, err := descriptorFor(layer)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, apperr.Invalid("records must not be empty")
	}

	var res *layerResult
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		f, err := s.requireFarm(dbc, farmID)
		if err != nil {
			return err
		}
		res, err = s.runLayer(dbc, f, d, recs)
		return err
	})
	if err != nil {
		s.metrics.IngestRecords(string(d.layer), StatusFailed, len(recs))
		s.log.Warn("ingest failed", "farm_id", farmID, "layer", d.layer, "records", len(recs), "error", err)
		return nil, err
	}

	graphcache.FromContext(ctx).Set(farmID.String(), res.state)
	s.publish(ctx, farmID, res.events)
	s.observe(res.receipt)
	return res.receipt, nil
}

// IngestBulk runs each non-empty layer in a savepoint of one outer
// transaction. A failing layer is rolled back alone and reported as failed.
func (s *Service) IngestBulk(ctx context.Context, farmID uuid.UUID, req BulkRequest) (*BulkReceipt, error) {
	if !graphcache.HasScope(ctx) {
		ctx = graphcache.WithScope(ctx)
	}
	scope := graphcache.FromContext(ctx)
	key := farmID.String()

	out := &BulkReceipt{
		FarmID:   farmID,
		Warnings: []Warning{},
		Layers:   map[string]*Receipt{},
	}
	var (
		pending []Event
		win     window
		done    []*Receipt
	)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		f, err := s.requireFarm(dbctx.Context{Ctx: ctx, Tx: tx}, farmID)
		if err != nil {
			return err
		}
		for _, batch := range req.layers() {
			d := descriptors[batch.layer]
			snap, had := scope.Snapshot(key)

			var res *layerResult
			lerr := tx.Transaction(func(sp *gorm.DB) error {
				r, err := s.runLayer(dbctx.Context{Ctx: ctx, Tx: sp}, f, d, batch.records)
				if err != nil {
					return err
				}
				scope.Set(key, r.state)
				res = r
				return nil
			})

			var receipt *Receipt
			if lerr != nil {
				scope.Restore(key, snap, had)
				s.log.Warn("bulk layer failed", "farm_id", farmID, "layer", d.layer, "records", len(batch.records), "error", lerr)
				w := Warning{Index: 0, Message: fmt.Sprintf("%s ingest failed: %v", d.layer, lerr)}
				receipt = &Receipt{
					FarmID:      farmID,
					Layer:       string(d.layer),
					Status:      StatusFailed,
					FailedCount: len(batch.records),
					EventIDs:    []int64{},
					Warnings:    []Warning{w},
				}
			} else {
				receipt = res.receipt
				pending = append(pending, res.events...)
			}

			out.Layers[receipt.Layer] = receipt
			out.InsertedCount += receipt.InsertedCount
			out.FailedCount += receipt.FailedCount
			out.Warnings = append(out.Warnings, receipt.Warnings...)
			win.merge(receipt.TimestampStart, receipt.TimestampEnd)
			done = append(done, receipt)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	switch {
	case out.FailedCount > 0 && out.InsertedCount > 0:
		out.Status = StatusPartial
	case out.FailedCount > 0:
		out.Status = StatusFailed
	default:
		out.Status = StatusOK
	}
	out.TimestampStart, out.TimestampEnd = win.start, win.end

	s.publish(ctx, farmID, pending)
	for _, r := range done {
		s.observe(r)
	}
	return out, nil
}

func (s *Service) requireFarm(dbc dbctx.Context, farmID uuid.UUID) (*types.Farm, error) {
	f, err := s.repos.Farm.GetByID(dbc, farmID)
	if err != nil {
		return nil, err
	}
	if f == nil {
		return nil, apperr.NotFound("farm %s not found", farmID)
	}
	return f, nil
}

// runLayer is the shared pipeline. Reference failures abort before any row
// is written; graph update failures become warnings.
func (s *Service) runLayer(dbc dbctx.Context, f *types.Farm, d *descriptor, recs []Record) (*layerResult, error) {
	if !farm.LayerActive(f.FarmType, d.accepted...) {
		return nil, apperr.Invalid("layer %s is not active for farm type %s", d.layer, f.FarmType)
	}

	ctx := dbc.Ctx
	key := f.ID.String()
	state, err := graphcache.FromContext(ctx).Get(ctx, key, func(context.Context) (engine.GraphState, error) {
		return s.graph.GetGraph(dbc, f.ID)
	})
	if err != nil {
		return nil, err
	}

	r := newResolver(dbc, s.repos, f.ID)
	var (
		warnings []Warning
		rows     = make([]any, 0, len(recs))
		resolved = make([]*resolution, 0, len(recs))
		win      window
		touched  []uuid.UUID
	)
	for i, rec := range recs {
		if rec.Layer() != d.layer {
			return nil, apperr.Invalid("record %d is not a %s record", i, d.layer)
		}
		res, err := d.resolve(r, rec)
		if err != nil {
			return nil, err
		}
		for _, msg := range res.warnings {
			warnings = append(warnings, Warning{Index: i, Message: msg})
		}
		if res.vertexID != nil {
			next, err := s.engine.UpdateFeatures(ctx, state, string(d.layer), res.vertexID.String(), d.features(rec))
			if err != nil {
				warnings = append(warnings, Warning{Index: i, Message: fmt.Sprintf("graph update failed for %s: %v", d.layer, err)})
			} else {
				state = next
			}
			touched = append(touched, *res.vertexID)
		}
		for _, ts := range res.times {
			win.add(ts)
		}
		rows = append(rows, res.row)
		resolved = append(resolved, res)
	}

	if err := s.repos.Telemetry.Append(dbc, d.rows(rows)); err != nil {
		return nil, err
	}
	if err := s.repos.Vertex.TouchLastSeen(dbc, touched, time.Now().UTC()); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	ids := make([]int64, len(rows))
	events := make([]Event, len(rows))
	for i, row := range rows {
		ids[i] = recordID(row)
		events[i] = Event{
			EventType:  EventIngest,
			Layer:      string(d.layer),
			FarmID:     key,
			ZoneID:     idString(resolved[i].zoneID),
			VertexID:   idString(resolved[i].vertexID),
			Payload:    recs[i],
			Warnings:   warningsAt(warnings, i),
			RecordID:   ids[i],
			IngestedAt: now,
		}
	}

	status := StatusOK
	if len(warnings) > 0 {
		status = StatusPartial
	}
	if warnings == nil {
		warnings = []Warning{}
	}
	return &layerResult{
		receipt: &Receipt{
			FarmID:         f.ID,
			Layer:          string(d.layer),
			Status:         status,
			InsertedCount:  len(rows),
			FailedCount:    0,
			EventIDs:       ids,
			TimestampStart: win.start,
			TimestampEnd:   win.end,
			Warnings:       warnings,
		},
		events: events,
		state:  state,
	}, nil
}

func (s *Service) observe(r *Receipt) {
	if r == nil {
		return
	}
	if r.InsertedCount > 0 {
		s.metrics.IngestRecords(r.Layer, r.Status, r.InsertedCount)
	}
	if r.FailedCount > 0 {
		s.metrics.IngestRecords(r.Layer, StatusFailed, r.FailedCount)
	}
	s.metrics.IngestWarnings(r.Layer, len(r.Warnings))
}
