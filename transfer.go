package modexia

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
)

const (
	// pollInterval is the fixed cadence of settlement status checks.
	pollInterval = 2 * time.Second
	// pollBudget is the wall-clock ceiling for polling, measured from the
	// first poll, not from submission.
	pollBudget = 30 * time.Second
)

const (
	payPath         = "/api/v1/agent/pay"
	transactionPath = "/api/v1/agent/transaction/"
)

// TransferOption adjusts a single Transfer call.
type TransferOption func(*transferOptions)

type transferOptions struct {
	idempotencyKey string
	wait           bool
}

// WithIdempotencyKey supplies an explicit idempotency key instead of the
// derived intent hash.
func WithIdempotencyKey(key string) TransferOption {
	return func(o *transferOptions) {
		o.idempotencyKey = key
	}
}

// WithoutWait returns a PENDING receipt immediately after submission instead
// of polling for settlement.
func WithoutWait() TransferOption {
	return func(o *transferOptions) {
		o.wait = false
	}
}

// Transfer pays amount to recipient from the authenticated agent's wallet.
//
// The amount rides the wire as a decimal string, never a binary float. When
// no idempotency key is supplied one is derived from recipient, amount, and
// the current clock hour, so retried calls within the hour dedupe to a
// single payment server-side.
//
// By default Transfer blocks until the transfer settles, fails, or the
// polling budget runs out. A settlement failure is returned as a
// *PaymentError; an accepted-but-unsettled transfer comes back as a PENDING
// receipt with Success true for the caller to reconcile via GetHistory.
func (c *Client) Transfer(ctx context.Context, recipient string, amount decimal.Decimal, opts ...TransferOption) (*PaymentReceipt, error) {
	options := transferOptions{wait: true}
	for _, opt := range opts {
		opt(&options)
	}

	key := options.idempotencyKey
	if key == "" {
		key = deriveIdempotencyKey(recipient, amount, c.now())
	}

	c.log.Info("submitting transfer", map[string]any{
		"recipient": recipient, "amount": formatAmount(amount),
	})

	data, err := c.request(ctx, http.MethodPost, payPath, map[string]any{
		"providerAddress": recipient,
		"amount":          formatAmount(amount),
		"idempotencyKey":  key,
	})
	if err != nil {
		return nil, err
	}

	success, _ := data["success"].(bool)
	txID, _ := data["txId"].(string)

	if options.wait && success {
		return c.pollSettlement(ctx, txID)
	}

	// A rejected submission keeps PENDING status rather than FAILED: the
	// server may still settle a duplicate of the same intent, so the caller
	// reconciles through history instead of trusting a terminal state here.
	errReason, _ := data["error"].(string)
	return &PaymentReceipt{
		Success:     success,
		Status:      StatusPending,
		TxID:        txID,
		ErrorReason: errReason,
	}, nil
}

// pollSettlement drives a submitted transfer to a terminal state.
//
// States: SUBMITTED -> {COMPLETE, FAILED, TIMED_OUT}. A FAILED settlement is
// a hard failure raised as *PaymentError. Exhausting the budget is not a
// failure: the transfer is still open server-side, so the receipt carries
// Success true with Status PENDING. A request failure inside the loop
// propagates directly; the retry executor already retried it.
func (c *Client) pollSettlement(ctx context.Context, txID string) (*PaymentReceipt, error) {
	start := c.now()
	for c.now().Sub(start) < pollBudget {
		data, err := c.request(ctx, http.MethodGet, transactionPath+txID, nil)
		if err != nil {
			return nil, err
		}

		state, _ := data["state"].(string)
		switch parseSettlementState(state) {
		case stateComplete:
			txHash, _ := data["txHash"].(string)
			c.log.Info("transfer settled", map[string]any{"tx_id": txID, "tx_hash": txHash})
			c.metrics.IncCounter("transfers_total", map[string]string{"outcome": "complete"})
			return &PaymentReceipt{Success: true, Status: StatusComplete, TxID: txID, TxHash: txHash}, nil
		case stateFailed:
			reason, _ := data["errorReason"].(string)
			c.metrics.IncCounter("transfers_total", map[string]string{"outcome": "failed"})
			return nil, &PaymentError{
				Code:    ErrCodeTransferFailed,
				Message: fmt.Sprintf("transfer failed: %s", reason),
			}
		}

		if err := c.sleep(ctx, pollInterval); err != nil {
			return nil, err
		}
	}

	c.log.Warn("settlement still pending after polling budget", map[string]any{"tx_id": txID})
	c.metrics.IncCounter("transfers_total", map[string]string{"outcome": "timeout"})
	return &PaymentReceipt{Success: true, Status: StatusPending, TxID: txID}, nil
}
