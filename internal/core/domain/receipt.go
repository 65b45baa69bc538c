package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ReceiptPrefix is part of the printed receipt contract; downstream
// reporting parses numbers of the form OR-000042.
const ReceiptPrefix = "OR-"

// Receipt is the immutable record of a single completed payment.
// Exactly one exists per paid request.
type Receipt struct {
	ID        string
	Number    string
	RequestID string
	Amount    decimal.Decimal
	IssuedAt  time.Time
}

// FormatReceiptNumber renders a sequence value in the official receipt
// number format. Numbers are never reissued or reformatted once printed.
func FormatReceiptNumber(seq int64) string {
	return fmt.Sprintf("%s%06d", ReceiptPrefix, seq)
}
