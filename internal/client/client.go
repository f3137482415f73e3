package client

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/time/rate"

	"github.com/GriffinCanCode/playground/internal/domain/bundle"
	"github.com/GriffinCanCode/playground/internal/domain/workspace"
	"github.com/GriffinCanCode/playground/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/playground/internal/preview/sandbox"
)

// RequestIDHeader carries the per-call id the server logs with each request.
const RequestIDHeader = "X-Request-ID"

// Config defines client behaviour.
type Config struct {
	BaseURL    string
	Timeout    time.Duration
	RetryCount int
	RetryWait  time.Duration
	RetryMax   time.Duration
	RateLimit  float64 // Requests per second; zero is unlimited
	Breaker    resilience.Settings
	UserAgent  string
}

// DefaultConfig returns production-ready client settings for baseURL.
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL:    baseURL,
		Timeout:    30 * time.Second,
		RetryCount: 2,
		RetryWait:  100 * time.Millisecond,
		RetryMax:   2 * time.Second,
		Breaker: resilience.Settings{
			Threshold: 5,
			Cooldown:  30 * time.Second,
		},
		UserAgent: "playctl/1.0",
	}
}

// Client talks to a playground server over its REST API and stream.
type Client struct {
	cfg     Config
	resty   *resty.Client
	ready   *retryablehttp.Client
	limiter *rate.Limiter
	breaker *resilience.Breaker
}

// New creates a client. Idempotent requests are retried on 5xx answers;
// repeated server faults open the circuit.
func New(cfg Config) *Client {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	ready := retryablehttp.NewClient()
	ready.RetryMax = 10
	ready.RetryWaitMin = 100 * time.Millisecond
	ready.RetryWaitMax = 2 * time.Second
	ready.Logger = nil

	r := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.RetryCount).
		SetRetryWaitTime(cfg.RetryWait).
		SetRetryMaxWaitTime(cfg.RetryMax).
		SetHeader("User-Agent", cfg.UserAgent).
		SetHeader("Accept", "application/json").
		SetJSONMarshaler(sonic.Marshal).
		SetJSONUnmarshaler(sonic.Unmarshal).
		OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
			// Retries reuse the request, so they share one id in the server log.
			if req.Header.Get(RequestIDHeader) == "" {
				req.SetHeader(RequestIDHeader, uuid.NewString())
			}
			return nil
		}).
		AddRetryCondition(func(resp *resty.Response, err error) bool {
			if resp == nil || resp.Request == nil {
				return false
			}
			return resp.StatusCode() >= 500 && resp.Request.Method != http.MethodPost
		})
	// Pooled transport, shared with the readiness probe
	r.SetTransport(ready.HTTPClient.Transport)

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), max(1, int(cfg.RateLimit)))
	}

	settings := cfg.Breaker
	settings.IsFailure = serverFault

	return &Client{
		cfg:     cfg,
		resty:   r,
		ready:   ready,
		limiter: limiter,
		breaker: resilience.New("playground-api", settings),
	}
}

// BaseURL returns the server root.
func (c *Client) BaseURL() string { return c.cfg.BaseURL }

// BreakerState returns the current circuit breaker state
func (c *Client) BreakerState() resilience.State {
	return c.breaker.State()
}

// WaitReady polls /health until the server answers, retrying connection
// failures and 5xx with backoff.
func (c *Client) WaitReady(ctx context.Context) error {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.ready.Do(req)
	if err != nil {
		return fmt.Errorf("server not ready: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return &APIError{Status: resp.StatusCode}
	}
	return nil
}

// request runs one call through the rate limiter and the breaker.
func (c *Client) request(ctx context.Context, method, path string, body, out any, prepare ...func(*resty.Request)) (*resty.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit error: %w", err)
	}

	var resp *resty.Response
	err := c.breaker.Do(func() error {
		var apiErr errorBody
		req := c.resty.R().SetContext(ctx).SetError(&apiErr)
		if body != nil {
			req.SetBody(body)
		}
		if out != nil {
			req.SetResult(out)
		}
		for _, p := range prepare {
			p(req)
		}
		r, err := req.Execute(method, path)
		if err != nil {
			return fmt.Errorf("%s %s: %w", method, path, err)
		}
		resp = r
		if r.IsError() {
			return &APIError{Status: r.StatusCode(), Message: apiErr.Error}
		}
		return nil
	})
	return resp, err
}

func workspacePath(id string, rest ...string) string {
	return "/workspaces/" + id + strings.Join(rest, "")
}

// Health returns the server health summary.
func (c *Client) Health(ctx context.Context) (Health, error) {
	var out Health
	_, err := c.request(ctx, http.MethodGet, "/health", nil, &out)
	return out, err
}

// Templates lists starter bundles.
func (c *Client) Templates(ctx context.Context) ([]bundle.Template, error) {
	var out struct {
		Templates []bundle.Template `json:"templates"`
	}
	_, err := c.request(ctx, http.MethodGet, "/templates", nil, &out)
	return out.Templates, err
}

// CreateWorkspace starts a workspace from template ("" for the default).
func (c *Client) CreateWorkspace(ctx context.Context, template string) (workspace.Info, error) {
	var out workspace.Info
	_, err := c.request(ctx, http.MethodPost, "/workspaces", map[string]string{"template": template}, &out)
	return out, err
}

// ListWorkspaces lists live workspaces.
func (c *Client) ListWorkspaces(ctx context.Context) ([]workspace.Info, error) {
	var out struct {
		Workspaces []workspace.Info `json:"workspaces"`
	}
	_, err := c.request(ctx, http.MethodGet, "/workspaces", nil, &out)
	return out.Workspaces, err
}

// Workspace returns one workspace summary.
func (c *Client) Workspace(ctx context.Context, id string) (workspace.Info, error) {
	var out workspace.Info
	_, err := c.request(ctx, http.MethodGet, workspacePath(id), nil, &out)
	return out, err
}

// DeleteWorkspace tears a workspace down.
func (c *Client) DeleteWorkspace(ctx context.Context, id string) error {
	_, err := c.request(ctx, http.MethodDelete, workspacePath(id), nil, nil)
	return err
}

// Sources returns the buffers of a workspace.
func (c *Client) Sources(ctx context.Context, id string) (bundle.Bundle, error) {
	var out bundle.Bundle
	_, err := c.request(ctx, http.MethodGet, workspacePath(id, "/sources"), nil, &out)
	return out, err
}

// UpdateSource replaces one buffer.
func (c *Client) UpdateSource(ctx context.Context, id string, kind bundle.Kind, content string) (workspace.Info, error) {
	var out workspace.Info
	_, err := c.request(ctx, http.MethodPut, workspacePath(id, "/sources/", string(kind)),
		map[string]string{"content": content}, &out)
	return out, err
}

// ReplaceSources uploads all three buffers with one rebuild.
func (c *Client) ReplaceSources(ctx context.Context, id string, b bundle.Bundle) (workspace.Info, error) {
	var out workspace.Info
	_, err := c.request(ctx, http.MethodPut, workspacePath(id, "/sources"), b, &out)
	return out, err
}

// Document fetches the compiled document. A non-empty etag makes the get
// conditional.
func (c *Client) Document(ctx context.Context, id, etag string) (Document, error) {
	resp, err := c.request(ctx, http.MethodGet, workspacePath(id, "/document"), nil, nil,
		func(r *resty.Request) {
			r.SetHeader("Accept", "text/html")
			if etag != "" {
				r.SetHeader("If-None-Match", etag)
			}
		})
	if err != nil {
		return Document{}, err
	}
	return Document{
		HTML:        resp.String(),
		ETag:        resp.Header().Get("ETag"),
		NotModified: resp.StatusCode() == http.StatusNotModified,
	}, nil
}

// DOM fetches the sanitised live body.
func (c *Client) DOM(ctx context.Context, id string) (DOM, error) {
	var out DOM
	_, err := c.request(ctx, http.MethodGet, workspacePath(id, "/dom"), nil, &out)
	return out, err
}

// Logs fetches the log stream of the current generation.
func (c *Client) Logs(ctx context.Context, id string) (Logs, error) {
	var out Logs
	_, err := c.request(ctx, http.MethodGet, workspacePath(id, "/logs"), nil, &out)
	return out, err
}

// Selection fetches the last picked element.
func (c *Client) Selection(ctx context.Context, id string) (Selection, error) {
	var out Selection
	_, err := c.request(ctx, http.MethodGet, workspacePath(id, "/selection"), nil, &out)
	return out, err
}

// ToggleInspect flips the inspection session and reports whether it is on.
func (c *Client) ToggleInspect(ctx context.Context, id string) (bool, error) {
	var out struct {
		Inspecting bool `json:"inspecting"`
	}
	_, err := c.request(ctx, http.MethodPost, workspacePath(id, "/inspect/toggle"), nil, &out)
	return out.Inspecting, err
}

// Input simulates a pointer move or click on the element matching target.
func (c *Client) Input(ctx context.Context, id string, in sandbox.Input) (InputResult, error) {
	var out InputResult
	_, err := c.request(ctx, http.MethodPost, workspacePath(id, "/input"), in, &out)
	return out, err
}
