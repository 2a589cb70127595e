package modexia

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// payServer mocks the agent pay and transaction endpoints. Poll responses
// are served from states in order, repeating the last one.
type payServer struct {
	mu          sync.Mutex
	payResponse map[string]any
	states      []map[string]any

	payCalls    int
	pollCalls   int
	lastPayBody map[string]any
}

func (s *payServer) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()

		switch {
		case r.Method == http.MethodPost && r.URL.Path == payPath:
			s.payCalls++
			json.NewDecoder(r.Body).Decode(&s.lastPayBody)
			json.NewEncoder(w).Encode(s.payResponse)
		case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, transactionPath):
			idx := s.pollCalls
			if idx >= len(s.states) {
				idx = len(s.states) - 1
			}
			s.pollCalls++
			json.NewEncoder(w).Encode(s.states[idx])
		default:
			http.NotFound(w, r)
		}
	})
}

func (s *payServer) counts() (pay, poll int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.payCalls, s.pollCalls
}

func (s *payServer) payBody() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastPayBody
}

func TestTransferWaitsForSettlement(t *testing.T) {
	ps := &payServer{
		payResponse: map[string]any{"success": true, "txId": "tx_mocked"},
		states: []map[string]any{
			{"state": "PENDING"},
			{"state": "COMPLETED", "txHash": "0x456"},
		},
	}
	server := httptest.NewServer(ps.handler())
	defer server.Close()

	c := newTestClient(t, server.URL)
	fixed := time.Date(2024, 1, 1, 12, 30, 0, 0, time.UTC)
	c.now = func() time.Time { return fixed }

	amount := decimal.RequireFromString("10.0")
	receipt, err := c.Transfer(context.Background(), "0xAsyncRec", amount)
	require.NoError(t, err)

	assert.True(t, receipt.Success)
	assert.Equal(t, StatusComplete, receipt.Status)
	assert.Equal(t, "tx_mocked", receipt.TxID)
	assert.Equal(t, "0x456", receipt.TxHash)

	pay, poll := ps.counts()
	assert.Equal(t, 1, pay)
	assert.Equal(t, 2, poll)

	body := ps.payBody()
	assert.Equal(t, "0xAsyncRec", body["providerAddress"])
	assert.Equal(t, "10.0", body["amount"], "amount must ride the wire as a decimal string")
	assert.Equal(t, deriveIdempotencyKey("0xAsyncRec", amount, fixed), body["idempotencyKey"])
}

func TestPollSettlementStateSpellings(t *testing.T) {
	for _, state := range []string{"complete", "COMPLETE", "Completed"} {
		t.Run(state, func(t *testing.T) {
			ps := &payServer{
				payResponse: map[string]any{"success": true, "txId": "tx_1"},
				states:      []map[string]any{{"state": state}},
			}
			server := httptest.NewServer(ps.handler())
			defer server.Close()

			c := newTestClient(t, server.URL)
			receipt, err := c.Transfer(context.Background(), "0xRec", decimal.RequireFromString("1.0"))
			require.NoError(t, err)
			assert.True(t, receipt.Success)
			assert.Equal(t, StatusComplete, receipt.Status)
		})
	}
}

func TestPollSettlementFailureIsError(t *testing.T) {
	ps := &payServer{
		payResponse: map[string]any{"success": true, "txId": "tx_1"},
		states:      []map[string]any{{"state": "FAILED", "errorReason": "no funds"}},
	}
	server := httptest.NewServer(ps.handler())
	defer server.Close()

	c := newTestClient(t, server.URL)
	_, err := c.Transfer(context.Background(), "0xRec", decimal.RequireFromString("1.0"))

	var payErr *PaymentError
	require.ErrorAs(t, err, &payErr)
	assert.Equal(t, ErrCodeTransferFailed, payErr.Code)
	assert.Contains(t, payErr.Message, "no funds")
}

func TestPollSettlementTimeoutYieldsOpenReceipt(t *testing.T) {
	ps := &payServer{
		payResponse: map[string]any{"success": true, "txId": "tx_slow"},
		states:      []map[string]any{{"state": "PENDING"}},
	}
	server := httptest.NewServer(ps.handler())
	defer server.Close()

	c := newTestClient(t, server.URL)
	// Fake clock: each poll-interval sleep advances wall time, so the 30s
	// budget is consumed without real waiting.
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	c.sleep = func(_ context.Context, d time.Duration) error {
		now = now.Add(d)
		return nil
	}

	receipt, err := c.Transfer(context.Background(), "0xRec", decimal.RequireFromString("1.0"))
	require.NoError(t, err)

	assert.True(t, receipt.Success)
	assert.Equal(t, StatusPending, receipt.Status)
	assert.Equal(t, "tx_slow", receipt.TxID)

	_, poll := ps.counts()
	assert.Equal(t, int(pollBudget/pollInterval), poll)
}

func TestTransferRejectedSubmissionKeepsPendingStatus(t *testing.T) {
	ps := &payServer{
		payResponse: map[string]any{"success": false, "error": "limit exceeded"},
	}
	server := httptest.NewServer(ps.handler())
	defer server.Close()

	c := newTestClient(t, server.URL)
	receipt, err := c.Transfer(context.Background(), "0xRec", decimal.RequireFromString("1.0"))
	require.NoError(t, err)

	assert.False(t, receipt.Success)
	assert.Equal(t, StatusPending, receipt.Status)
	assert.Equal(t, "limit exceeded", receipt.ErrorReason)

	_, poll := ps.counts()
	assert.Zero(t, poll, "a rejected submission must not be polled")
}

func TestTransferWithoutWait(t *testing.T) {
	ps := &payServer{
		payResponse: map[string]any{"success": true, "txId": "tx_async"},
	}
	server := httptest.NewServer(ps.handler())
	defer server.Close()

	c := newTestClient(t, server.URL)
	receipt, err := c.Transfer(context.Background(), "0xRec", decimal.RequireFromString("1.0"), WithoutWait())
	require.NoError(t, err)

	assert.True(t, receipt.Success)
	assert.Equal(t, StatusPending, receipt.Status)
	assert.Equal(t, "tx_async", receipt.TxID)

	_, poll := ps.counts()
	assert.Zero(t, poll)
}

func TestTransferExplicitIdempotencyKey(t *testing.T) {
	ps := &payServer{
		payResponse: map[string]any{"success": true, "txId": "tx_1"},
		states:      []map[string]any{{"state": "COMPLETE"}},
	}
	server := httptest.NewServer(ps.handler())
	defer server.Close()

	c := newTestClient(t, server.URL)
	_, err := c.Transfer(context.Background(), "0xRec", decimal.RequireFromString("1.0"),
		WithIdempotencyKey("caller-supplied-key"))
	require.NoError(t, err)

	assert.Equal(t, "caller-supplied-key", ps.payBody()["idempotencyKey"])
}

func TestTransferCancellationStopsPolling(t *testing.T) {
	ps := &payServer{
		payResponse: map[string]any{"success": true, "txId": "tx_1"},
		states:      []map[string]any{{"state": "PENDING"}},
	}
	server := httptest.NewServer(ps.handler())
	defer server.Close()

	c := newTestClient(t, server.URL)
	ctx, cancel := context.WithCancel(context.Background())
	c.sleep = func(ctx context.Context, _ time.Duration) error {
		cancel()
		return ctx.Err()
	}

	_, err := c.Transfer(ctx, "0xRec", decimal.RequireFromString("1.0"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestParseSettlementState(t *testing.T) {
	tests := []struct {
		in   string
		want settlementState
	}{
		{"COMPLETE", stateComplete},
		{"completed", stateComplete},
		{"Failed", stateFailed},
		{"PENDING", stateSubmitted},
		{"PROCESSING", stateSubmitted},
		{"", stateSubmitted},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, parseSettlementState(tt.in), "state %q", tt.in)
	}
}
