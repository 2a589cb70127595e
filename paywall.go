package modexia

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	challengeHeader = "WWW-Authenticate"
	proofHeader     = "X-Payment-Proof"
	l402Scheme      = "L402"
)

// Two independent quoted-attribute extractions; both must match for the
// challenge to be negotiable.
var (
	challengeAmountRe      = regexp.MustCompile(`amount="([^"]+)"`)
	challengeDestinationRe = regexp.MustCompile(`destination="([^"]+)"`)
)

// paywallChallenge is the payment terms parsed from a 402 challenge header.
// It lives only for the duration of one negotiation.
type paywallChallenge struct {
	amount      decimal.Decimal
	destination string
}

// parsePaywallChallenge extracts the quoted amount and destination
// attributes. The challenge is rejected when either attribute is missing or
// the amount is not a non-negative decimal.
func parsePaywallChallenge(header string) (paywallChallenge, bool) {
	amt := challengeAmountRe.FindStringSubmatch(header)
	dst := challengeDestinationRe.FindStringSubmatch(header)
	if amt == nil || dst == nil {
		return paywallChallenge{}, false
	}
	amount, err := decimal.NewFromString(amt[1])
	if err != nil || amount.IsNegative() {
		return paywallChallenge{}, false
	}
	return paywallChallenge{amount: amount, destination: dst[1]}, true
}

// FetchOption adjusts a single SmartFetch call.
type FetchOption func(*fetchOptions)

type fetchOptions struct {
	params  url.Values
	headers http.Header
}

// WithQueryParams appends query parameters to the fetched URL.
func WithQueryParams(params url.Values) FetchOption {
	return func(o *fetchOptions) {
		o.params = params
	}
}

// WithHeaders adds request headers to the fetch and to its replay.
func WithHeaders(h http.Header) FetchOption {
	return func(o *fetchOptions) {
		for k, vs := range h {
			for _, v := range vs {
				o.headers.Add(k, v)
			}
		}
	}
}

// SmartFetch retrieves a resource, transparently paying a single HTTP 402
// paywall along the way.
//
// Absolute URLs are fetched on a standalone transport without the configured
// base URL or API key, so third-party requests are never redirected into the
// service host. Relative paths go through the session base.
//
// On a 402, the WWW-Authenticate challenge is parsed for amount and
// destination; the client never pays speculatively, only after observing a
// concrete challenge. A well-formed challenge triggers one Transfer with
// default waiting semantics, then exactly one replay carrying
// "Authorization: L402 {txId}" and "X-Payment-Proof: {txId}". A malformed
// challenge, an unsuccessful receipt, or a second 402 hand the response back
// unchanged, bounding recursion.
func (c *Client) SmartFetch(ctx context.Context, rawURL string, opts ...FetchOption) (*http.Response, error) {
	options := fetchOptions{headers: http.Header{}}
	for _, opt := range opts {
		opt(&options)
	}

	absolute := strings.HasPrefix(rawURL, "http://") || strings.HasPrefix(rawURL, "https://")

	resp, err := c.fetch(ctx, rawURL, absolute, options)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusPaymentRequired {
		return resp, nil
	}

	challenge, ok := parsePaywallChallenge(resp.Header.Get(challengeHeader))
	if !ok {
		// Not a negotiable paywall: hand the 402 back untouched.
		return resp, nil
	}

	c.log.Info("negotiating paywall", map[string]any{
		"url":         rawURL,
		"amount":      formatAmount(challenge.amount),
		"destination": challenge.destination,
	})
	c.metrics.IncCounter("paywall_negotiations_total", nil)

	receipt, err := c.Transfer(ctx, challenge.destination, challenge.amount)
	if err != nil {
		resp.Body.Close()
		return nil, err
	}
	if !receipt.Success {
		// Payment did not go through; the original 402 is still the most
		// truthful answer.
		return resp, nil
	}
	resp.Body.Close()

	options.headers.Set("Authorization", fmt.Sprintf("%s %s", l402Scheme, receipt.TxID))
	options.headers.Set(proofHeader, receipt.TxID)
	c.metrics.IncCounter("paywall_payments_total", nil)

	return c.fetch(ctx, rawURL, absolute, options)
}

// fetch issues a single GET, mapping transport failures to NetworkError.
func (c *Client) fetch(ctx context.Context, rawURL string, absolute bool, options fetchOptions) (*http.Response, error) {
	target := rawURL
	httpClient := c.httpClient
	if absolute {
		httpClient = c.bareClient
	} else {
		target = c.baseURL + rawURL
	}

	if len(options.params) > 0 {
		sep := "?"
		if strings.Contains(target, "?") {
			sep = "&"
		}
		target += sep + options.params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for k, vs := range options.headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if !absolute {
		req.Header.Set(apiKeyHeader, c.apiKey)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, &NetworkError{Message: "connection failed", Err: err}
	}
	return resp, nil
}
