package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"gorm.io/gorm"

	"github.com/agrisense/agrisense-backend/internal/data/repos"
	"github.com/agrisense/agrisense-backend/internal/data/repos/testutil"
	"github.com/agrisense/agrisense-backend/internal/engine"
	"github.com/agrisense/agrisense-backend/internal/engine/mock"
	agrihttp "github.com/agrisense/agrisense-backend/internal/http"
	httpH "github.com/agrisense/agrisense-backend/internal/http/handlers"
	"github.com/agrisense/agrisense-backend/internal/ingest"
	"github.com/agrisense/agrisense-backend/internal/jobs/dispatch"
	"github.com/agrisense/agrisense-backend/internal/realtime/bus"
	"github.com/agrisense/agrisense-backend/internal/services"
)

type apiEnv struct {
	db       *gorm.DB
	backend  *mock.Engine
	live     bus.LiveBus
	dispatch *dispatch.Local
	router   *gin.Engine
}

func newAPI(t *testing.T) *apiEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.DB(t)
	log := testutil.Logger(t)
	backend := mock.New()
	eng := engine.NewClient(backend, log, nil)
	set := repos.NewSet(db, log)
	live := bus.NewMemoryBus(log)
	topo := services.NewTopologyService(db, log, set, eng, nil)
	ing := ingest.NewService(db, log, set, topo, eng, live, nil)
	jobs := services.NewRecomputeService(log, set, topo, nil, nil)
	local := dispatch.NewLocal(log, jobs, 2)
	jobs.SetDispatcher(local)
	analytics := services.NewAnalyticsService(log, set, topo, eng, nil)

	r := agrihttp.NewRouter(agrihttp.RouterConfig{
		Log:              log,
		FarmHandler:      httpH.NewFarmHandler(topo),
		IngestHandler:    httpH.NewIngestHandler(ing),
		JobHandler:       httpH.NewJobHandler(jobs),
		AnalyticsHandler: httpH.NewAnalyticsHandler(analytics),
		LiveHandler:      httpH.NewLiveHandler(log, topo, live, nil),
		HealthHandler:    httpH.NewHealthHandler(nil, nil, nil),
	})
	return &apiEnv{db: db, backend: backend, live: live, dispatch: local, router: r}
}

func (e *apiEnv) do(t *testing.T, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)

	out := map[string]any{}
	if rec.Body.Len() > 0 && strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
			t.Fatalf("decode %s %s: %v (%s)", method, path, err, rec.Body.String())
		}
	}
	return rec, out
}

func errorCode(t *testing.T, body map[string]any) string {
	t.Helper()
	env, ok := body["error"].(map[string]any)
	if !ok {
		t.Fatalf("missing error envelope: %v", body)
	}
	code, _ := env["code"].(string)
	return code
}

func TestTopologyAndIngestRoundTrip(t *testing.T) {
	e := newAPI(t)

	rec, farm := e.do(t, http.MethodPost, "/api/v1/farms", map[string]any{"name": "North", "farm_type": "greenhouse"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create farm: %d %s", rec.Code, rec.Body.String())
	}
	farmID := farm["id"].(string)

	rec, zone := e.do(t, http.MethodPost, "/api/v1/farms/"+farmID+"/zones", map[string]any{"name": "Bay 1", "area_m2": 120})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create zone: %d %s", rec.Code, rec.Body.String())
	}
	zoneID := zone["id"].(string)

	rec, sensor := e.do(t, http.MethodPost, "/api/v1/farms/"+farmID+"/sensors", map[string]any{
		"zone_id":     zoneID,
		"vertex_type": "sensor",
		"config":      map[string]any{"sensor_type": "soil"},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create sensor: %d %s", rec.Code, rec.Body.String())
	}

	rec, receipt := e.do(t, http.MethodPost, "/api/v1/ingest/soil", map[string]any{
		"farm_id": farmID,
		"readings": []map[string]any{{
			"sensor_id":   sensor["id"],
			"timestamp":   "2026-05-01T06:00:00Z",
			"moisture":    0.31,
			"temperature": 18.5,
		}},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("ingest soil: %d %s", rec.Code, rec.Body.String())
	}
	if receipt["inserted_count"] != float64(1) || receipt["status"] != "ok" {
		t.Fatalf("receipt = %v", receipt)
	}

	rec, graph := e.do(t, http.MethodGet, "/api/v1/farms/"+farmID+"/graph", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("graph: %d %s", rec.Code, rec.Body.String())
	}
	if graph["farm_id"] != farmID {
		t.Fatalf("graph summary = %v", graph)
	}
	// One build per request scope: the ingest and the graph read.
	if e.backend.Calls(engine.OpBuild) != 2 {
		t.Fatalf("build calls = %d, want 2", e.backend.Calls(engine.OpBuild))
	}
}

func TestErrorMapping(t *testing.T) {
	e := newAPI(t)
	gh := testutil.SeedGreenhouse(t, context.Background(), e.db)
	farmID := gh.Farm.ID.String()

	rec, body := e.do(t, http.MethodGet, "/api/v1/farms/not-a-uuid", nil)
	if rec.Code != http.StatusBadRequest || errorCode(t, body) != "invalid_farmId" {
		t.Fatalf("bad uuid: %d %v", rec.Code, body)
	}

	rec, body = e.do(t, http.MethodGet, "/api/v1/farms/00000000-0000-0000-0000-000000000001", nil)
	if rec.Code != http.StatusNotFound || errorCode(t, body) != "not_found" {
		t.Fatalf("missing farm: %d %v", rec.Code, body)
	}

	rec, body = e.do(t, http.MethodPost, "/api/v1/ingest/soil", map[string]any{
		"farm_id":  farmID,
		"readings": []map[string]any{{"sensor_id": gh.Camera.ID, "timestamp": "2026-05-01T06:00:00Z"}},
	})
	if rec.Code != http.StatusBadRequest || errorCode(t, body) != "invalid_request" {
		t.Fatalf("wrong vertex type: %d %v", rec.Code, body)
	}

	e.backend.FailOn(engine.OpBuild, errors.New("solver offline"))
	rec, body = e.do(t, http.MethodGet, "/api/v1/farms/"+farmID+"/graph", nil)
	if rec.Code != http.StatusBadGateway || errorCode(t, body) != "engine_error" {
		t.Fatalf("engine failure: %d %v", rec.Code, body)
	}
}

func TestIngestRejectsEmptyBody(t *testing.T) {
	e := newAPI(t)
	gh := testutil.SeedGreenhouse(t, context.Background(), e.db)

	rec, body := e.do(t, http.MethodPost, "/api/v1/ingest/npk", map[string]any{"farm_id": gh.Farm.ID})
	if rec.Code != http.StatusBadRequest || errorCode(t, body) != "invalid_request" {
		t.Fatalf("empty records: %d %v", rec.Code, body)
	}
	rec, _ = e.do(t, http.MethodPost, "/api/v1/ingest/soil", map[string]any{"readings": []any{}})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing farm_id: %d", rec.Code)
	}
}

func TestRecomputeJobFlow(t *testing.T) {
	e := newAPI(t)
	gh := testutil.SeedGreenhouse(t, context.Background(), e.db)

	rec, job := e.do(t, http.MethodPost, "/api/v1/jobs/"+gh.Farm.ID.String()+"/recompute", nil)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("create job: %d %s", rec.Code, rec.Body.String())
	}
	jobID, _ := job["job_id"].(string)
	if jobID == "" || job["farm_id"] != gh.Farm.ID.String() {
		t.Fatalf("job = %v", job)
	}
	e.dispatch.Wait()

	rec, status := e.do(t, http.MethodGet, "/api/v1/jobs/"+jobID+"/status", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: %d %s", rec.Code, rec.Body.String())
	}
	if status["status"] != "succeeded" || status["started_at"] == nil || status["completed_at"] == nil {
		t.Fatalf("status = %v", status)
	}

	rec, body := e.do(t, http.MethodGet, "/api/v1/jobs/00000000-0000-0000-0000-000000000009/status", nil)
	if rec.Code != http.StatusNotFound || errorCode(t, body) != "not_found" {
		t.Fatalf("unknown job: %d %v", rec.Code, body)
	}
}

func TestIrrigationScheduleHorizon(t *testing.T) {
	e := newAPI(t)
	gh := testutil.SeedGreenhouse(t, context.Background(), e.db)
	base := "/api/v1/analytics/" + gh.Farm.ID.String() + "/irrigation/schedule"

	rec, body := e.do(t, http.MethodGet, base+"?horizon_days=31", nil)
	if rec.Code != http.StatusBadRequest || errorCode(t, body) != "invalid_request" {
		t.Fatalf("horizon 31: %d %v", rec.Code, body)
	}
	rec, body = e.do(t, http.MethodGet, base, nil)
	if rec.Code != http.StatusOK || body["horizon_days"] != float64(7) || body["cached"] != false {
		t.Fatalf("default horizon: %d %v", rec.Code, body)
	}
	_, body = e.do(t, http.MethodGet, base, nil)
	if body["cached"] != true {
		t.Fatalf("second call should be cached: %v", body)
	}
}

func TestHealthEndpoints(t *testing.T) {
	e := newAPI(t)
	for _, path := range []string{"/healthcheck", "/live", "/ready"} {
		rec, _ := e.do(t, http.MethodGet, path, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: %d", path, rec.Code)
		}
	}
}

func dialLive(t *testing.T, srv *httptest.Server, farmID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/" + farmID + "/live"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	return conn
}

func TestWebSocketRejectsBadFarm(t *testing.T) {
	e := newAPI(t)
	srv := httptest.NewServer(e.router)
	defer srv.Close()

	cases := map[string]string{
		"nope":                                 "invalid_farm_id",
		"00000000-0000-0000-0000-000000000001": "farm_not_found",
	}
	for farmID, want := range cases {
		conn := dialLive(t, srv, farmID)
		var msg map[string]string
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("%s: read: %v", farmID, err)
		}
		if msg["error"] != want {
			t.Fatalf("%s: error = %q, want %q", farmID, msg["error"], want)
		}
		_, _, err := conn.ReadMessage()
		if !websocket.IsCloseError(err, websocket.ClosePolicyViolation) {
			t.Fatalf("%s: close = %v, want 1008", farmID, err)
		}
	}
}

func TestWebSocketForwardsLiveEvents(t *testing.T) {
	e := newAPI(t)
	gh := testutil.SeedGreenhouse(t, context.Background(), e.db)
	srv := httptest.NewServer(e.router)
	defer srv.Close()

	conn := dialLive(t, srv, gh.Farm.ID.String())
	channel := bus.FarmChannel(gh.Farm.ID.String())
	deadline := time.Now().Add(2 * time.Second)
	for bus.Subscribers(e.live, channel) == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("websocket never subscribed")
		}
		time.Sleep(10 * time.Millisecond)
	}

	ctx := context.Background()
	_ = e.live.Publish(ctx, channel, []byte(`{"layer":"soil"}`))
	_ = e.live.Publish(ctx, channel, []byte("raw frame"))

	var first map[string]any
	if err := conn.ReadJSON(&first); err != nil || first["layer"] != "soil" {
		t.Fatalf("first frame = %v, %v", first, err)
	}
	_, second, err := conn.ReadMessage()
	if err != nil || string(second) != "raw frame" {
		t.Fatalf("second frame = %q, %v", second, err)
	}

	_ = conn.Close()
	deadline = time.Now().Add(3 * time.Second)
	for bus.Subscribers(e.live, channel) != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("subscription not released after disconnect")
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestSSEStreamsLiveEvents(t *testing.T) {
	e := newAPI(t)
	gh := testutil.SeedGreenhouse(t, context.Background(), e.db)
	srv := httptest.NewServer(e.router)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/v1/farms/"+gh.Farm.ID.String()+"/live", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("sse request: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type = %q", ct)
	}

	channel := bus.FarmChannel(gh.Farm.ID.String())
	for bus.Subscribers(e.live, channel) == 0 {
		time.Sleep(10 * time.Millisecond)
	}
	_ = e.live.Publish(ctx, channel, []byte(`{"layer":"npk"}`))

	buf := make([]byte, 256)
	n, err := resp.Body.Read(buf)
	if err != nil {
		t.Fatalf("read sse: %v", err)
	}
	if got := string(buf[:n]); got != "data: {\"layer\":\"npk\"}\n\n" {
		t.Fatalf("sse frame = %q", got)
	}
}
