package enginehttp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/agrisense/agrisense-backend/internal/engine/config"
)

type roundTripperFunc func(req *http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) { return f(req) }

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(bytes.NewReader([]byte(body))),
	}
}

func testConfig() config.EngineConfig {
	return config.EngineConfig{
		Type:        config.TypeHTTP,
		BaseURL:     "http://engine",
		InitMaxWait: config.Duration{Duration: 2 * time.Second},
	}
}

func TestInvokePostsNormalizedArgs(t *testing.T) {
	client := &http.Client{
		Transport: roundTripperFunc(func(req *http.Request) (*http.Response, error) {
			if req.Method != http.MethodPost || req.URL.Path != "/v1/ops/update_features" {
				t.Fatalf("unexpected request: %s %s", req.Method, req.URL.Path)
			}
			var in map[string]any
			if err := json.NewDecoder(req.Body).Decode(&in); err != nil {
				t.Fatalf("decode req: %v", err)
			}
			if in["vertex_id"] != "v1" {
				t.Fatalf("vertex_id=%v", in["vertex_id"])
			}
			state, ok := in["state"].(map[string]any)
			if !ok || state["n_vertices"] != float64(1) {
				t.Fatalf("state not forwarded as raw json: %#v", in["state"])
			}
			return jsonResponse(http.StatusOK, `{"result":{"n_vertices":1,"touched":true}}`), nil
		}),
	}

	e, err := NewWithHTTPClient(testConfig(), client)
	if err != nil {
		t.Fatalf("NewWithHTTPClient: %v", err)
	}
	raw, err := e.Invoke(context.Background(), "update_features", map[string]any{
		"state":     json.RawMessage(`{"n_vertices":1}`),
		"vertex_id": "v1",
	})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if !strings.Contains(string(raw), `"touched":true`) {
		t.Fatalf("result=%s", raw)
	}
}

func TestInvokeSurfacesHTTPAndEngineErrors(t *testing.T) {
	calls := 0
	client := &http.Client{
		Transport: roundTripperFunc(func(req *http.Request) (*http.Response, error) {
			calls++
			if calls == 1 {
				return jsonResponse(http.StatusInternalServerError, `boom`), nil
			}
			return jsonResponse(http.StatusOK, `{"error":"vertex not in graph"}`), nil
		}),
	}
	e, err := NewWithHTTPClient(testConfig(), client)
	if err != nil {
		t.Fatalf("NewWithHTTPClient: %v", err)
	}

	_, err = e.Invoke(context.Background(), "query_farm_status", nil)
	var herr *HTTPError
	if !errors.As(err, &herr) || herr.StatusCode != http.StatusInternalServerError || herr.Body != "boom" {
		t.Fatalf("expected HTTPError 500, got %v", err)
	}

	_, err = e.Invoke(context.Background(), "query_farm_status", nil)
	if err == nil || err.Error() != "vertex not in graph" {
		t.Fatalf("expected engine reported error, got %v", err)
	}
}

func TestInitRetriesUntilHealthy(t *testing.T) {
	var hits int32
	client := &http.Client{
		Transport: roundTripperFunc(func(req *http.Request) (*http.Response, error) {
			if req.URL.Path != "/v1/health" {
				t.Fatalf("unexpected path: %s", req.URL.Path)
			}
			if atomic.AddInt32(&hits, 1) < 3 {
				return jsonResponse(http.StatusServiceUnavailable, `starting`), nil
			}
			return jsonResponse(http.StatusOK, `{"ok":true}`), nil
		}),
	}
	e, err := NewWithHTTPClient(testConfig(), client)
	if err != nil {
		t.Fatalf("NewWithHTTPClient: %v", err)
	}
	if err := e.Init(context.Background()); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if got := atomic.LoadInt32(&hits); got != 3 {
		t.Fatalf("health hits=%d, want 3", got)
	}
}

func TestInitStopsOnClientError(t *testing.T) {
	var hits int32
	client := &http.Client{
		Transport: roundTripperFunc(func(req *http.Request) (*http.Response, error) {
			atomic.AddInt32(&hits, 1)
			return jsonResponse(http.StatusNotFound, ``), nil
		}),
	}
	e, err := NewWithHTTPClient(testConfig(), client)
	if err != nil {
		t.Fatalf("NewWithHTTPClient: %v", err)
	}
	if err := e.Init(context.Background()); err == nil {
		t.Fatalf("expected init failure")
	}
	if got := atomic.LoadInt32(&hits); got != 1 {
		t.Fatalf("4xx must not be retried, hits=%d", got)
	}
}

func TestNewRequiresBaseURL(t *testing.T) {
	if _, err := New(config.EngineConfig{Type: config.TypeHTTP}); err == nil {
		t.Fatalf("expected error without base_url")
	}
}
