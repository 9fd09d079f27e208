package openaicompat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rhuss/relaychat/pkg/api"
	"github.com/rhuss/relaychat/pkg/debug"
	"github.com/rhuss/relaychat/pkg/provider"
)

// DefaultTimeout bounds one upstream call, from connect to the last byte.
const DefaultTimeout = 300 * time.Second

// Config holds settings for an OpenAI-compatible backend.
type Config struct {
	// BaseURL is the API root including its version segment,
	// e.g. "https://openrouter.ai/api/v1". Required.
	BaseURL string

	// APIKey is sent as a bearer credential when non-empty.
	APIKey string

	// Timeout bounds the whole upstream call. Zero means DefaultTimeout.
	Timeout time.Duration

	// Referer and Title are optional attribution headers
	// (HTTP-Referer, X-Title) understood by OpenRouter.
	Referer string
	Title   string

	// Name identifies the provider in logs and metrics.
	// Defaults to "openai-compatible".
	Name string

	// Transport overrides the HTTP transport (used by tests).
	Transport http.RoundTripper
}

// Client streams chat completions from an OpenAI-compatible backend.
// It implements provider.Provider.
type Client struct {
	httpClient *http.Client
	endpoint   string
	cfg        Config
}

var _ provider.Provider = (*Client)(nil)

// New creates a Client after validating cfg.
func New(cfg Config) (*Client, error) {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		return nil, errors.New("openaicompat: base URL is required")
	}
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("openaicompat: invalid base URL %q", cfg.BaseURL)
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Name == "" {
		cfg.Name = "openai-compatible"
	}

	return &Client{
		// No client-level timeout: a stream may outlive any fixed value
		// that suits plain requests. Stream applies cfg.Timeout through the
		// request context instead.
		httpClient: &http.Client{Transport: cfg.Transport},
		endpoint:   baseURL + "/chat/completions",
		cfg:        cfg,
	}, nil
}

// Name returns the provider identifier.
func (c *Client) Name() string {
	return c.cfg.Name
}

// Stream opens one streaming completion. See provider.Provider.
//
// The returned channel is fed by a goroutine that owns the upstream
// response body; the body is closed when the stream ends or ctx is
// cancelled, whichever comes first.
func (c *Client) Stream(ctx context.Context, req *provider.ProviderRequest) (<-chan provider.ProviderEvent, error) {
	body, err := json.Marshal(TranslateToChat(req))
	if err != nil {
		return nil, api.NewServerError(fmt.Sprintf("failed to marshal upstream request: %s", err.Error()))
	}

	streamCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)

	httpReq, err := http.NewRequestWithContext(streamCtx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		cancel()
		return nil, api.NewServerError(fmt.Sprintf("failed to create upstream request: %s", err.Error()))
	}
	c.setHeaders(httpReq)

	debug.Log("upstream", "opening stream",
		"url", c.endpoint,
		"model", req.Model,
		"messages", len(req.Messages),
	)
	if debug.TraceIsEnabled("upstream") {
		debug.Trace("upstream", "request body", "body", string(body))
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		cancel()
		return nil, MapNetworkError(err)
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		apiErr := MapHTTPError(httpResp)
		httpResp.Body.Close()
		cancel()
		return nil, apiErr
	}

	ch := make(chan provider.ProviderEvent, 16)

	go func() {
		defer close(ch)
		defer cancel()
		defer httpResp.Body.Close()

		if ParseSSEStream(streamCtx, httpResp.Body, ch) {
			return
		}
		// The upper bound expired while the caller was still listening.
		if errors.Is(streamCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			select {
			case ch <- provider.ProviderEvent{
				Type: provider.ProviderEventError,
				Err:  MapNetworkError(context.DeadlineExceeded),
			}:
			case <-ctx.Done():
			}
		}
	}()

	return ch, nil
}

func (c *Client) setHeaders(r *http.Request) {
	r.Header.Set("Content-Type", "application/json")
	r.Header.Set("Accept", "text/event-stream")
	if c.cfg.APIKey != "" {
		r.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}
	if c.cfg.Referer != "" {
		r.Header.Set("HTTP-Referer", c.cfg.Referer)
	}
	if c.cfg.Title != "" {
		r.Header.Set("X-Title", c.cfg.Title)
	}
}

// Close releases idle upstream connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}
