// Package modexia provides the official Go client for the Modexia agent
// payment API. It authenticates an agent identity, issues transfers, tracks
// asynchronous settlement, and transparently satisfies HTTP 402 paywalls
// encountered while fetching third-party resources.
package modexia

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/modexia/modexia-go/logger"
	"github.com/modexia/modexia-go/metrics"
)

// Version is the SDK release version, sent in the User-Agent header.
const Version = "0.4.0"

// DefaultTimeout bounds a single HTTP exchange, including the paywall fetches.
const DefaultTimeout = 15 * time.Second

// Service endpoints selected by API key prefix when no explicit base URL or
// environment override is given.
const (
	ProductionURL = "https://api.modexia.software"
	SandboxURL    = "https://sandbox.modexia.software"
	LocalURL      = "http://localhost:3000"
)

const (
	baseURLEnv    = "MODEXIA_BASE_URL"
	liveKeyPrefix = "mx_live_"
	testKeyPrefix = "mx_test_"

	apiKeyHeader = "x-modexia-key"
	userAgent    = "Modexia-Go/" + Version
)

// clientConfig is the resolved configuration checked at construction time.
type clientConfig struct {
	APIKey  string `validate:"required"`
	BaseURL string `validate:"required,url"`
}

var validate = validator.New()

// Client is a Modexia API session. A single Client is safe for concurrent
// use; the identity cache is the only shared state and is overwritten
// last-writer-wins (a stale balance read is benign, balance is advisory).
type Client struct {
	apiKey     string
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
	bareClient *http.Client
	log        logger.Logger
	metrics    metrics.Recorder

	// Injectable suspension points, swapped out in tests for deterministic,
	// sleep-free retry and polling runs.
	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time

	mu       sync.RWMutex
	identity *Identity
}

// New creates a Client for the given API key. The base URL is resolved once,
// in priority order: WithBaseURL option, the MODEXIA_BASE_URL environment
// variable, then the key-prefix convention (mx_live_ keys talk to production,
// mx_test_ keys to the sandbox, anything else to a local server).
func New(apiKey string, opts ...Option) (*Client, error) {
	c := &Client{
		apiKey:  apiKey,
		timeout: DefaultTimeout,
		log:     logger.NoopLogger{},
		metrics: metrics.NoopRecorder{},
		sleep:   sleepContext,
		now:     time.Now,
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.baseURL == "" {
		c.baseURL = resolveBaseURL(apiKey)
	}
	if err := validate.Struct(clientConfig{APIKey: apiKey, BaseURL: c.baseURL}); err != nil {
		return nil, fmt.Errorf("invalid client configuration: %w", err)
	}

	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: c.timeout}
	}
	// Separate base-URL-less transport for absolute paywall fetches, so
	// third-party requests never carry the API key.
	c.bareClient = &http.Client{Timeout: c.timeout}

	c.log.Info("resolved base URL", map[string]any{"base_url": c.baseURL})
	return c, nil
}

// resolveBaseURL applies the environment and key-prefix conventions.
func resolveBaseURL(apiKey string) string {
	if env := os.Getenv(baseURLEnv); env != "" {
		return env
	}
	switch {
	case strings.HasPrefix(apiKey, liveKeyPrefix):
		return ProductionURL
	case strings.HasPrefix(apiKey, testKeyPrefix):
		return SandboxURL
	default:
		return LocalURL
	}
}

// BaseURL returns the endpoint this client was resolved against.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// sleepContext blocks for d or until the caller's context is cancelled.
func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
