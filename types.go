package modexia

import "strings"

// ReceiptStatus is the settlement status carried on a PaymentReceipt.
type ReceiptStatus string

const (
	StatusPending  ReceiptStatus = "PENDING"
	StatusComplete ReceiptStatus = "COMPLETE"
	StatusFailed   ReceiptStatus = "FAILED"
)

// Identity describes the authenticated agent. It is cached on the client
// after the first successful session validation; there is no expiry logic,
// callers decide freshness by re-validating.
type Identity struct {
	Username      string `json:"username"`
	Balance       string `json:"balance"`
	WalletAddress string `json:"walletAddress,omitempty"`
	Email         string `json:"email,omitempty"`
}

// PaymentReceipt is the terminal artifact of a transfer or a paywall
// payment. Immutable once constructed.
//
// Success true with Status PENDING means the transfer was accepted but did
// not settle within the polling budget; the caller reconciles out-of-band,
// e.g. via GetHistory.
type PaymentReceipt struct {
	Success     bool          `json:"success"`
	Status      ReceiptStatus `json:"status"`
	TxID        string        `json:"txId,omitempty"`
	TxHash      string        `json:"txHash,omitempty"`
	ErrorReason string        `json:"errorReason,omitempty"`
}

// TransactionHistoryItem is a read-only projection of a server-side ledger
// record. Amount stays a decimal string to avoid float precision drift.
type TransactionHistoryItem struct {
	TxID            string `json:"txId"`
	Type            string `json:"type"`
	Amount          string `json:"amount"`
	State           string `json:"state"`
	CreatedAt       string `json:"createdAt"`
	ProviderAddress string `json:"providerAddress,omitempty"`
	TxHash          string `json:"txHash,omitempty"`
}

// TransactionHistoryResponse is one page of history. Pagination is
// limit-only; there is no cursor token to resume from.
type TransactionHistoryResponse struct {
	Transactions []TransactionHistoryItem `json:"transactions"`
	HasMore      bool                     `json:"hasMore"`
}

// settlementState is the closed set of transaction states the poller acts
// on. Every known server spelling is mapped here at the parsing edge so the
// state machine never compares raw strings.
type settlementState int

const (
	stateSubmitted settlementState = iota
	stateComplete
	stateFailed
)

// parseSettlementState maps a server-reported state, case-insensitively,
// into the closed set. Unknown states are treated as still submitted.
func parseSettlementState(s string) settlementState {
	switch strings.ToUpper(s) {
	case "COMPLETE", "COMPLETED":
		return stateComplete
	case "FAILED":
		return stateFailed
	default:
		return stateSubmitted
	}
}
