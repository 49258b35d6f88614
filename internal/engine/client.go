package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/agrisense/agrisense-backend/internal/observability"
	"github.com/agrisense/agrisense-backend/internal/platform/logger"
)

var errNoBackend = errors.New("engine backend not configured")

// Client is the typed, instrumented handle on one Backend. It is created
// once at startup and shared; the backend is initialized on first use.
type Client struct {
	backend Backend
	log     *logger.Logger
	metrics *observability.Metrics
	tracer  trace.Tracer

	initMu sync.Mutex
	ready  atomic.Bool
}

func NewClient(backend Backend, log *logger.Logger, metrics *observability.Metrics) *Client {
	if log == nil {
		log = logger.Nop()
	}
	return &Client{
		backend: backend,
		log:     log.With("component", "EngineClient"),
		metrics: metrics,
		tracer:  observability.Tracer("agrisense/engine"),
	}
}

// Ready reports whether the backend finished initializing.
func (c *Client) Ready() bool { return c.ready.Load() }

// Init initializes the backend at most once. A failed attempt leaves the
// client uninitialized so the next caller retries.
func (c *Client) Init(ctx context.Context) error {
	if c.ready.Load() {
		return nil
	}
	c.initMu.Lock()
	defer c.initMu.Unlock()
	if c.ready.Load() {
		return nil
	}
	if c.backend == nil {
		return errNoBackend
	}
	if err := c.backend.Init(ctx); err != nil {
		return err
	}
	c.ready.Store(true)
	c.log.Info("engine initialized")
	return nil
}

func (c *Client) invoke(ctx context.Context, op string, args map[string]any, out any) (err error) {
	if ctx == nil {
		ctx = context.Background()
	}
	start := time.Now()
	ctx, span := c.tracer.Start(ctx, "engine."+op, trace.WithAttributes(attribute.String("engine.operation", op)))
	defer func() {
		dur := time.Since(start)
		ok := err == nil
		fields := []interface{}{
			"operation", op,
			"duration_ms", float64(dur.Microseconds()) / 1000.0,
			"ok", ok,
		}
		if ok {
			fields = append(fields, "error", nil)
			c.log.Info("engine_call", fields...)
		} else {
			fields = append(fields, "error", err.Error())
			c.log.Error("engine_call", fields...)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		c.metrics.ObserveEngineCall(op, ok, dur)
		span.End()
	}()

	if initErr := c.Init(ctx); initErr != nil {
		return &EngineError{Op: op, Msg: "engine init failed: " + initErr.Error(), Err: initErr}
	}

	raw, callErr := c.backend.Invoke(ctx, op, NormalizeMap(args))
	if callErr != nil {
		return wrapErr(op, callErr)
	}
	if out == nil {
		return nil
	}
	if len(raw) == 0 {
		return &EngineError{Op: op, Msg: "empty result"}
	}
	if decErr := json.Unmarshal(raw, out); decErr != nil {
		return &EngineError{Op: op, Msg: fmt.Sprintf("decode result: %v", decErr), Err: decErr}
	}
	return nil
}

func (c *Client) Build(ctx context.Context, cfg GraphConfig) (GraphState, error) {
	var doc json.RawMessage
	if err := c.invoke(ctx, OpBuild, map[string]any{"config": map[string]any(cfg)}, &doc); err != nil {
		return GraphState{}, err
	}
	farmID, _ := Normalize(cfg["farm_id"]).(string)
	return GraphState{FarmID: farmID, Version: 1, Doc: doc}, nil
}

// UpdateFeatures returns the successor state; state itself is unchanged.
func (c *Client) UpdateFeatures(ctx context.Context, state GraphState, layer, vertexID string, features []float64) (GraphState, error) {
	var doc json.RawMessage
	err := c.invoke(ctx, OpUpdateFeatures, map[string]any{
		"state":     state.Doc,
		"layer":     layer,
		"vertex_id": vertexID,
		"features":  features,
	}, &doc)
	if err != nil {
		return GraphState{}, err
	}
	return state.next(doc), nil
}

func (c *Client) QueryStatus(ctx context.Context, state GraphState, vertexID string) (map[string]any, error) {
	var out map[string]any
	err := c.invoke(ctx, OpQueryStatus, map[string]any{"state": state.Doc, "vertex_id": vertexID}, &out)
	return out, err
}

func (c *Client) CrossLayerQuery(ctx context.Context, state GraphState, layerA, layerB string) (any, error) {
	var out any
	err := c.invoke(ctx, OpCrossLayerQuery, map[string]any{
		"state":   state.Doc,
		"layer_a": layerA,
		"layer_b": layerB,
	}, &out)
	return out, err
}

func (c *Client) IrrigationSchedule(ctx context.Context, state GraphState, horizonDays int, forecast map[string]any) ([]map[string]any, error) {
	if forecast == nil {
		forecast = map[string]any{}
	}
	var out []map[string]any
	err := c.invoke(ctx, OpIrrigationSchedule, map[string]any{
		"state":        state.Doc,
		"horizon_days": horizonDays,
		"forecast":     forecast,
	}, &out)
	return out, err
}

func (c *Client) NutrientReport(ctx context.Context, state GraphState) ([]map[string]any, error) {
	var out []map[string]any
	err := c.invoke(ctx, OpNutrientReport, map[string]any{"state": state.Doc}, &out)
	return out, err
}

func (c *Client) YieldForecast(ctx context.Context, state GraphState) ([]map[string]any, error) {
	var out []map[string]any
	err := c.invoke(ctx, OpYieldForecast, map[string]any{"state": state.Doc}, &out)
	return out, err
}

func (c *Client) DetectAnomalies(ctx context.Context, state GraphState) ([]map[string]any, error) {
	var out []map[string]any
	err := c.invoke(ctx, OpDetectAnomalies, map[string]any{"state": state.Doc}, &out)
	return out, err
}

// TrainYieldResidual fits the residual model on observed yields keyed by
// crop bed vertex id.
func (c *Client) TrainYieldResidual(ctx context.Context, state GraphState, outcomes map[string]float64) (map[string]any, error) {
	var out map[string]any
	err := c.invoke(ctx, OpTrainYieldResidual, map[string]any{"state": state.Doc, "outcomes": outcomes}, &out)
	return out, err
}

func (c *Client) GenerateSynthetic(ctx context.Context, farmType string, days int, seed int64) (map[string]any, error) {
	if farmType == "" {
		farmType = DefaultSyntheticFarmType
	}
	if days <= 0 {
		days = DefaultSyntheticDays
	}
	var out map[string]any
	err := c.invoke(ctx, OpGenerateSynthetic, map[string]any{
		"farm_type": farmType,
		"days":      days,
		"seed":      seed,
	}, &out)
	return out, err
}
