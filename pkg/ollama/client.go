// Package ollama is the client for an Ollama-compatible inference server: the
// model catalog and single-turn streaming generation.
//
// Neither operation returns an error. ListModels degrades to an empty catalog;
// Generate reports every failure as the final element of its fragment stream.
package ollama

import (
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/papercomputeco/ollachat/pkg/endpoint"
)

const (
	// DefaultModel is offered when the catalog is empty.
	DefaultModel = "gemma3:latest"

	// DefaultBuffer is the capacity of the fragment channel.
	DefaultBuffer = 16

	catalogTimeout = 10 * time.Second
)

// Client talks to one inference server. It holds no per-call state and is safe
// for concurrent use.
type Client struct {
	endpoint   endpoint.Endpoint
	httpClient *http.Client
	logger     *zap.Logger
	buffer     int
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client. It should not set a Timeout, since
// streams can run for minutes; deadlines come from the caller's context.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithBuffer sets the fragment channel capacity.
func WithBuffer(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.buffer = n
		}
	}
}

// New creates a Client for the endpoint.
func New(ep endpoint.Endpoint, opts ...Option) *Client {
	c := &Client{
		endpoint: ep,
		logger:   zap.NewNop(),
		buffer:   DefaultBuffer,
		httpClient: &http.Client{
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
				DialContext: (&net.Dialer{
					Timeout:   10 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				MaxIdleConns:        10,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Endpoint returns the endpoint the client was built with.
func (c *Client) Endpoint() endpoint.Endpoint {
	return c.endpoint
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
