package modexia

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
)

const historyPath = "/api/v1/user/transactions"

// defaultHistoryLimit is used when the caller passes a non-positive limit.
const defaultHistoryLimit = 5

// GetHistory fetches the most recent transactions for the authenticated
// agent. Pagination is limit-only: when HasMore is true there is no cursor
// to resume from, so callers re-query with a larger limit.
func (c *Client) GetHistory(ctx context.Context, limit int) (*TransactionHistoryResponse, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}

	data, err := c.request(ctx, http.MethodGet, fmt.Sprintf("%s?limit=%d", historyPath, limit), nil)
	if err != nil {
		return nil, err
	}

	out := &TransactionHistoryResponse{Transactions: []TransactionHistoryItem{}}
	if raw, ok := data["transactions"].([]any); ok {
		for _, entry := range raw {
			m, ok := entry.(map[string]any)
			if !ok {
				continue
			}
			amount := stringField(m, "amount")
			if amount == "" {
				amount = "0"
			}
			out.Transactions = append(out.Transactions, TransactionHistoryItem{
				TxID:            stringField(m, "txId"),
				Type:            stringField(m, "type"),
				Amount:          amount,
				State:           stringField(m, "state"),
				CreatedAt:       stringField(m, "createdAt"),
				ProviderAddress: stringField(m, "providerAddress"),
				TxHash:          stringField(m, "txHash"),
			})
		}
	}
	out.HasMore, _ = data["hasMore"].(bool)
	return out, nil
}

// stringField reads a string-valued field from a decoded JSON object,
// coercing numbers so decimal amounts sent as JSON numbers survive as
// strings.
func stringField(m map[string]any, key string) string {
	switch v := m[key].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	}
	return ""
}
