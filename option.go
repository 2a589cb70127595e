package modexia

import (
	"net/http"
	"time"

	"github.com/modexia/modexia-go/logger"
	"github.com/modexia/modexia-go/metrics"
)

// Option configures a Client at construction time.
type Option func(*Client)

// WithBaseURL pins the service endpoint, overriding both the environment
// variable and the key-prefix convention.
func WithBaseURL(u string) Option {
	return func(c *Client) {
		c.baseURL = u
	}
}

// WithTimeout sets the per-request timeout. Ignored when WithHTTPClient
// supplies a client that owns its own timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithHTTPClient supplies a custom transport, e.g. one with a tuned
// connection pool or a recording round tripper.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithLogger attaches a structured logger. The default discards everything.
func WithLogger(l logger.Logger) Option {
	return func(c *Client) {
		c.log = l
	}
}

// WithMetrics attaches a metrics recorder. The default discards everything.
func WithMetrics(r metrics.Recorder) Option {
	return func(c *Client) {
		c.metrics = r
	}
}
