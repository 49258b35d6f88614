// Package enginehttp reaches an engine process over JSON RPC:
// POST {base_url}{ops_path}/{op} with the normalized args as the body.
package enginehttp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	gojson "github.com/goccy/go-json"

	"github.com/agrisense/agrisense-backend/internal/engine/config"
)

type Engine struct {
	baseURL    string
	opsPath    string
	healthPath string

	timeout     time.Duration
	initMaxWait time.Duration

	httpClient *http.Client
}

func New(cfg config.EngineConfig) (*Engine, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("enginehttp: base_url required")
	}
	opsPath := strings.TrimRight(strings.TrimSpace(cfg.OpsPath), "/")
	if opsPath == "" {
		opsPath = "/v1/ops"
	}
	healthPath := strings.TrimSpace(cfg.HealthPath)
	if healthPath == "" {
		healthPath = "/v1/health"
	}

	tr := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	initMaxWait := cfg.InitMaxWait.Duration
	if initMaxWait <= 0 {
		initMaxWait = 30 * time.Second
	}

	return &Engine{
		baseURL:     baseURL,
		opsPath:     opsPath,
		healthPath:  healthPath,
		timeout:     cfg.Timeout.Duration,
		initMaxWait: initMaxWait,
		httpClient:  &http.Client{Transport: tr},
	}, nil
}

// NewWithHTTPClient is intended for tests; it avoids network access by using a custom RoundTripper.
func NewWithHTTPClient(cfg config.EngineConfig, httpClient *http.Client) (*Engine, error) {
	e, err := New(cfg)
	if err != nil {
		return nil, err
	}
	if httpClient != nil {
		e.httpClient = httpClient
	}
	return e, nil
}

// Init waits for the health endpoint to answer 2xx, retrying with
// exponential backoff for at most init_max_wait.
func (e *Engine) Init(ctx context.Context) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 100 * time.Millisecond
	bo.MaxInterval = 2 * time.Second
	bo.MaxElapsedTime = e.initMaxWait

	return backoff.Retry(func() error {
		err := e.doJSON(ctx, 5*time.Second, http.MethodGet, e.healthPath, nil, nil)
		var herr *HTTPError
		if errors.As(err, &herr) && herr.StatusCode >= 400 && herr.StatusCode < 500 {
			return backoff.Permanent(err)
		}
		return err
	}, backoff.WithContext(bo, ctx))
}

type opReply struct {
	Result json.RawMessage `json:"result"`
	Error  string          `json:"error,omitempty"`
}

func (e *Engine) Invoke(ctx context.Context, op string, args map[string]any) (json.RawMessage, error) {
	var reply opReply
	if err := e.doJSON(ctx, e.timeout, http.MethodPost, e.opsPath+"/"+op, args, &reply); err != nil {
		return nil, err
	}
	if reply.Error != "" {
		return nil, errors.New(reply.Error)
	}
	return reply.Result, nil
}

func (e *Engine) doJSON(ctx context.Context, timeout time.Duration, method string, path string, body any, out any) error {
	var buf bytes.Buffer
	if body != nil {
		if err := gojson.NewEncoder(&buf).Encode(body); err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
	}

	ctx2 := ctx
	var cancel context.CancelFunc
	if timeout > 0 {
		ctx2, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx2, method, e.baseURL+path, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		return &HTTPError{StatusCode: resp.StatusCode, Body: string(raw)}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	return gojson.NewDecoder(resp.Body).Decode(out)
}
