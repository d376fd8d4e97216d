// Package httpworker implements the backend runtime contracts against an
// out-of-process inference worker. Pipelines are loaded with POST /v1/load,
// images are generated with POST /v1/generate, which streams NDJSON step
// lines followed by the final image, and released with POST /v1/unload.
package httpworker

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

	"github.com/rs/zerolog"

	"diffusiond/internal/backend"
)

// Options configures a worker client.
type Options struct {
	BaseURL string
	APIKey  string
	// RequestTimeout bounds a whole generate call; 0 disables it.
	RequestTimeout time.Duration
	ConnectTimeout time.Duration
	// NoPreviews drops the preview quality a request asks for, so the worker
	// never renders step frames.
	NoPreviews bool
	Logger     zerolog.Logger
}

// Client talks to one worker process.
type Client struct {
	baseURL    string
	apiKey     string
	reqTimeout time.Duration
	noPreviews bool
	httpClient *http.Client
	log        zerolog.Logger
}

// New constructs a worker client.
func New(opts Options) *Client {
	connect := opts.ConnectTimeout
	if connect <= 0 {
		connect = 5 * time.Second
	}
	tr := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   connect,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          16,
		IdleConnTimeout:       90 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	// Timeout=0: generate streams for minutes, deadlines come from contexts.
	return &Client{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		apiKey:     opts.APIKey,
		reqTimeout: opts.RequestTimeout,
		noPreviews: opts.NoPreviews,
		httpClient: &http.Client{Transport: tr, Timeout: 0},
		log:        opts.Logger,
	}
}

// Standard returns the standard-family runtime backed by this worker.
func (c *Client) Standard() backend.StandardRuntime { return standardRuntime{c: c} }

// Extended returns the extended-family runtime backed by this worker.
func (c *Client) Extended() backend.ExtendedRuntime { return extendedRuntime{c: c} }

// Factory builds backends for both families against this worker.
func (c *Client) Factory() backend.Factory {
	return backend.Factory{Standard: c.Standard(), Extended: c.Extended()}
}

type workerError struct {
	Error string `json:"error"`
}

// post sends a JSON body and returns the response for the caller to close.
func (c *Client) post(ctx context.Context, path string, payload any) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Translate context timeouts/cancels
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		var opErr *net.OpError
		if errors.As(err, &opErr) {
			return nil, backend.ErrDependencyUnavailable("inference worker unreachable: " + err.Error())
		}
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		var we workerError
		msg := strings.TrimSpace(string(b))
		if json.Unmarshal(b, &we) == nil && we.Error != "" {
			msg = we.Error
		}
		if resp.StatusCode == http.StatusServiceUnavailable {
			return nil, backend.ErrDependencyUnavailable("inference worker unavailable: " + msg)
		}
		return nil, fmt.Errorf("worker %s: %s: %s", path, resp.Status, msg)
	}
	return resp, nil
}

// call posts payload and decodes a JSON reply into out (which may be nil).
func (c *Client) call(ctx context.Context, path string, payload, out any) error {
	resp, err := c.post(ctx, path, payload)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("worker %s: decode reply: %w", path, err)
	}
	return nil
}
