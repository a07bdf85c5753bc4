// Package upstream fetches intercepted requests from the published
// dashboard origin.
package upstream

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"time"

	"github.com/traderecks888/offline-gateway/internal/agent"
	"github.com/traderecks888/offline-gateway/internal/cachestore"
)

// Config holds the origin settings.
type Config struct {
	// BaseURL is the origin every intercepted request is resolved against.
	BaseURL string
	// Timeout bounds one origin fetch. Zero means no client-side timeout.
	Timeout time.Duration
}

// Client fetches requests from the origin. It implements agent.Fetcher:
// any origin status is a response; only a transport failure is an error.
type Client struct {
	base   *url.URL
	client *http.Client
}

// New creates an origin client.
func New(cfg Config) (*Client, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse upstream base URL: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("upstream base URL %q must be absolute", cfg.BaseURL)
	}

	return &Client{
		base:   base,
		client: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// Fetch performs the origin request and buffers the full response.
func (c *Client) Fetch(ctx context.Context, req *agent.Request) (*cachestore.Response, error) {
	target, err := c.resolve(req.URL)
	if err != nil {
		return nil, err
	}

	outReq, err := http.NewRequestWithContext(ctx, req.Method, target, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if req.Accept != "" {
		outReq.Header.Set("Accept", req.Accept)
	}

	resp, err := c.client.Do(outReq)
	if err != nil {
		return nil, fmt.Errorf("origin fetch: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read origin response: %w", err)
	}

	return &cachestore.Response{
		Status:  resp.StatusCode,
		Headers: flattenHeaders(resp.Header),
		Body:    body,
	}, nil
}

// resolve joins a gateway-relative URL onto the origin base. The base path
// is preserved so a dashboard published under a sub-path keeps working.
func (c *Client) resolve(rawURL string) (string, error) {
	ref, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse request URL %q: %w", rawURL, err)
	}

	target := *c.base
	target.Path = path.Join(c.base.Path, ref.Path)
	if ref.Path != "" && ref.Path[len(ref.Path)-1] == '/' {
		target.Path += "/"
	}
	target.RawQuery = ref.RawQuery
	return target.String(), nil
}

// flattenHeaders converts http.Header to map[string]string (first value only).
func flattenHeaders(h http.Header) map[string]string {
	result := make(map[string]string, len(h))
	for key, values := range h {
		if len(values) > 0 {
			result[key] = values[0]
		}
	}
	return result
}
