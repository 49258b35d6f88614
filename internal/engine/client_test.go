package engine_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/agrisense/agrisense-backend/internal/engine"
	"github.com/agrisense/agrisense-backend/internal/engine/mock"
	"github.com/agrisense/agrisense-backend/internal/platform/logger"
)

func observedLogger() (*logger.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return &logger.Logger{SugaredLogger: zap.New(core).Sugar()}, logs
}

func testConfig() engine.GraphConfig {
	return engine.GraphConfig{
		"farm_id":       "farm-1",
		"farm_type":     "greenhouse",
		"active_layers": []string{"soil", "npk", "vision"},
		"vertices": []map[string]any{
			{"id": "v-sensor", "type": "sensor", "zone_id": "z1"},
			{"id": "v-bed", "type": "crop_bed", "zone_id": "z1"},
			{"id": "v-cam", "type": "camera", "zone_id": "z1"},
		},
		"edges": []map[string]any{},
	}
}

func TestClientInitOnceUnderConcurrency(t *testing.T) {
	backend := mock.New()
	c := engine.NewClient(backend, nil, nil)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := c.Init(context.Background()); err != nil {
				t.Errorf("Init: %v", err)
			}
		}()
	}
	wg.Wait()
	if got := backend.InitCalls(); got != 1 {
		t.Fatalf("expected one backend init, got %d", got)
	}
	if !c.Ready() {
		t.Fatalf("expected client ready")
	}
}

func TestClientRetriesInitAfterFailure(t *testing.T) {
	backend := mock.New()
	backend.FailInit(errors.New("engine booting"))
	c := engine.NewClient(backend, nil, nil)

	_, err := c.Build(context.Background(), testConfig())
	var ee *engine.EngineError
	if !errors.As(err, &ee) {
		t.Fatalf("expected EngineError, got %v", err)
	}
	if ee.Op != engine.OpBuild {
		t.Fatalf("unexpected op %q", ee.Op)
	}
	if c.Ready() {
		t.Fatalf("client must stay uninitialized after failed init")
	}

	if _, err := c.Build(context.Background(), testConfig()); err != nil {
		t.Fatalf("second build: %v", err)
	}
	if got := backend.InitCalls(); got != 2 {
		t.Fatalf("expected 2 init attempts, got %d", got)
	}
}

func TestClientWrapsBackendErrors(t *testing.T) {
	backend := mock.New()
	backend.FailOn(engine.OpNutrientReport, errors.New("solver diverged"))
	log, logs := observedLogger()
	c := engine.NewClient(backend, log, nil)

	state, err := c.Build(context.Background(), testConfig())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	_, err = c.NutrientReport(context.Background(), state)
	if err == nil {
		t.Fatalf("expected error")
	}
	if got := err.Error(); got != "nutrient_report failed: solver diverged" {
		t.Fatalf("unexpected message %q", got)
	}

	calls := logs.FilterMessage("engine_call").All()
	if len(calls) != 2 {
		t.Fatalf("expected 2 engine_call entries, got %d", len(calls))
	}
	last := calls[1].ContextMap()
	if last["operation"] != engine.OpNutrientReport || last["ok"] != false {
		t.Fatalf("unexpected failure fields: %v", last)
	}
	if calls[1].Level != zapcore.ErrorLevel {
		t.Fatalf("expected error level, got %s", calls[1].Level)
	}
	if _, ok := last["duration_ms"]; !ok {
		t.Fatalf("missing duration_ms")
	}
	first := calls[0].ContextMap()
	if first["ok"] != true || first["error"] != nil {
		t.Fatalf("unexpected success fields: %v", first)
	}
}

func TestClientUpdateFeaturesAdvancesVersion(t *testing.T) {
	c := engine.NewClient(mock.New(), nil, nil)
	ctx := context.Background()

	s1, err := c.Build(ctx, testConfig())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if s1.FarmID != "farm-1" || s1.Version != 1 {
		t.Fatalf("unexpected state %+v", s1)
	}
	s2, err := c.UpdateFeatures(ctx, s1, "soil", "v-sensor", []float64{0.05, 21, 0, 0})
	if err != nil {
		t.Fatalf("UpdateFeatures: %v", err)
	}
	if s2.Version != 2 || s1.Version != 1 {
		t.Fatalf("expected versions 1 -> 2, got %d -> %d", s1.Version, s2.Version)
	}

	if _, err := c.UpdateFeatures(ctx, s1, "soil", "missing", []float64{1}); err == nil {
		t.Fatalf("expected unknown vertex to fail")
	}

	anomalies, err := c.DetectAnomalies(ctx, s2)
	if err != nil {
		t.Fatalf("DetectAnomalies: %v", err)
	}
	if len(anomalies) != 1 || anomalies[0]["vertex_id"] != "v-sensor" {
		t.Fatalf("expected low moisture anomaly, got %v", anomalies)
	}
	// the earlier state is untouched
	base, _ := c.DetectAnomalies(ctx, s1)
	if len(base) != 0 {
		t.Fatalf("expected no anomalies on the base state, got %v", base)
	}
}

func TestClientEmptyResultIsEngineError(t *testing.T) {
	c := engine.NewClient(emptyBackend{}, nil, nil)
	_, err := c.QueryStatus(context.Background(), engine.GraphState{Doc: json.RawMessage(`{}`)}, "v")
	var ee *engine.EngineError
	if !errors.As(err, &ee) || ee.Msg != "empty result" {
		t.Fatalf("expected empty result error, got %v", err)
	}
}

func TestClientWithoutBackend(t *testing.T) {
	c := engine.NewClient(nil, nil, nil)
	if _, err := c.YieldForecast(context.Background(), engine.GraphState{}); err == nil {
		t.Fatalf("expected error without backend")
	}
}

func TestGenerateSyntheticDefaults(t *testing.T) {
	backend := mock.New()
	c := engine.NewClient(backend, nil, nil)
	out, err := c.GenerateSynthetic(context.Background(), "", 0, engine.DefaultSyntheticSeed)
	if err != nil {
		t.Fatalf("GenerateSynthetic: %v", err)
	}
	if out["farm_type"] != "greenhouse" || out["days"] != float64(90) {
		t.Fatalf("unexpected defaults: %v", out)
	}
	again, _ := c.GenerateSynthetic(context.Background(), "", 0, engine.DefaultSyntheticSeed)
	a, _ := json.Marshal(out)
	b, _ := json.Marshal(again)
	if string(a) != string(b) {
		t.Fatalf("same seed must produce the same data")
	}
}

type emptyBackend struct{}

func (emptyBackend) Init(context.Context) error { return nil }
func (emptyBackend) Invoke(context.Context, string, map[string]any) (json.RawMessage, error) {
	return nil, nil
}
