package modexia

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// intentHourLayout truncates the intent timestamp to the clock hour.
const intentHourLayout = "2006-01-02-15"

// formatAmount renders an amount at its own scale, keeping trailing zeros:
// an amount created from "10.0" stays "10.0", not "10". Decimal.String
// trims trailing zeros, which would change both the intent hash and the
// wire string relative to what the caller wrote.
func formatAmount(amount decimal.Decimal) string {
	if amount.Exponent() < 0 {
		return amount.StringFixed(-amount.Exponent())
	}
	return amount.String()
}

// deriveIdempotencyKey hashes recipient, amount, and the current clock hour
// so that duplicate transfer calls within the same hour collapse to one
// logical payment intent server-side. A safety net against double-submission
// from client-side retries, not a replacement for explicit keys.
func deriveIdempotencyKey(recipient string, amount decimal.Decimal, now time.Time) string {
	intent := fmt.Sprintf("%s_%s_%s", recipient, formatAmount(amount), now.Format(intentHourLayout))
	sum := sha256.Sum256([]byte(intent))
	return hex.EncodeToString(sum[:])
}
