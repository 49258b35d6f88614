// Package engine is the only path from the service to the external graph
// engine. It normalizes arguments to plain JSON values, wraps every failure
// in *EngineError and records one telemetry event per call.
package engine

import (
	"context"
	"encoding/json"
)

const (
	OpBuild              = "build_graph"
	OpUpdateFeatures     = "update_features"
	OpQueryStatus        = "query_farm_status"
	OpCrossLayerQuery    = "cross_layer_query"
	OpIrrigationSchedule = "irrigation_schedule"
	OpNutrientReport     = "nutrient_report"
	OpYieldForecast      = "yield_forecast"
	OpDetectAnomalies    = "detect_anomalies"
	OpTrainYieldResidual = "train_yield_residual"
	OpGenerateSynthetic  = "generate_synthetic"
)

// Backend is a transport to an engine process. args are already
// normalized; the result is the raw JSON reply.
type Backend interface {
	Init(ctx context.Context) error
	Invoke(ctx context.Context, op string, args map[string]any) (json.RawMessage, error)
}

// GraphConfig is the denormalized farm description consumed by build_graph.
type GraphConfig map[string]any

const (
	DefaultSyntheticFarmType = "greenhouse"
	DefaultSyntheticDays     = 90
	DefaultSyntheticSeed     = 42
)
