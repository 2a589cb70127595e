package modexia

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// maxRetries is the number of additional attempts beyond the first.
const maxRetries = 3

// backoffBase seeds the exponential schedule: 0.5s, 1s, 2s.
const backoffBase = 500 * time.Millisecond

// bodyExcerptLimit caps how much of an unstructured error body is surfaced.
const bodyExcerptLimit = 512

// transientStatus reports whether a status code indicates a transient server
// condition worth retrying.
func transientStatus(code int) bool {
	switch code {
	case http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

// backoffDelay is 0.5 * 2^attempt seconds.
func backoffDelay(attempt int) time.Duration {
	return backoffBase * time.Duration(1<<uint(attempt))
}

// request performs one authenticated API exchange with bounded retry.
//
// Classification:
//   - transport failures and 500/502/503/504 retry with exponential backoff
//     until the budget is spent, then surface as NetworkError or PaymentError
//   - 401/403 fail immediately with AuthError
//   - other >=400 statuses (except 402) fail immediately with PaymentError,
//     preferring the server's structured error field
//   - 402 is not an error here: the body is decoded and handed back so the
//     paywall negotiator can act on it
//   - a 2xx with an empty body decodes to an empty map
func (c *Client) request(ctx context.Context, method, path string, body any) (map[string]any, error) {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
	}

	requestID := uuid.NewString()
	start := time.Now()
	labels := map[string]string{"method": method, "path": path}
	c.metrics.IncCounter("requests_total", labels)

	for attempt := 0; ; attempt++ {
		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set(apiKeyHeader, c.apiKey)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("User-Agent", userAgent)
		req.Header.Set("X-Request-Id", requestID)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if attempt == maxRetries {
				c.metrics.IncCounter("request_failures_total", labels)
				return nil, &NetworkError{Message: "connection failed", Err: err}
			}
			c.log.Warn("transport failure, retrying", map[string]any{
				"request_id": requestID, "attempt": attempt, "error": err.Error(),
			})
			c.metrics.IncCounter("request_retries_total", labels)
			if serr := c.sleep(ctx, backoffDelay(attempt)); serr != nil {
				return nil, serr
			}
			continue
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, &NetworkError{Message: "failed to read response body", Err: err}
		}

		if transientStatus(resp.StatusCode) && attempt < maxRetries {
			c.log.Warn("transient server error, retrying", map[string]any{
				"request_id": requestID, "attempt": attempt, "status": resp.StatusCode,
			})
			c.metrics.IncCounter("request_retries_total", labels)
			if serr := c.sleep(ctx, backoffDelay(attempt)); serr != nil {
				return nil, serr
			}
			continue
		}

		switch {
		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			return nil, &AuthError{Message: string(respBody)}
		case resp.StatusCode >= 400 && resp.StatusCode != http.StatusPaymentRequired:
			code := ErrCodeBadRequest
			if resp.StatusCode >= 500 {
				code = ErrCodeServerError
			}
			return nil, &PaymentError{Code: code, Message: serverErrorMessage(resp.StatusCode, path, respBody)}
		}

		c.metrics.ObserveLatency("request_duration_seconds", time.Since(start), labels)

		if len(respBody) == 0 {
			return map[string]any{}, nil
		}
		var result map[string]any
		if err := json.Unmarshal(respBody, &result); err != nil {
			return nil, fmt.Errorf("failed to decode response from %s: %w", path, err)
		}
		return result, nil
	}
}

// serverErrorMessage prefers the server's structured error field and falls
// back to a truncated excerpt of the raw body.
func serverErrorMessage(status int, path string, body []byte) string {
	var parsed struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error != "" {
		return parsed.Error
	}
	excerpt := body
	if len(excerpt) > bodyExcerptLimit {
		excerpt = excerpt[:bodyExcerptLimit]
	}
	return fmt.Sprintf("HTTP %d at %s: %s", status, path, excerpt)
}
