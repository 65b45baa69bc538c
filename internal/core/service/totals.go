package service

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/bgysuite/barangay-backend/internal/core/domain"
	"github.com/bgysuite/barangay-backend/internal/port"
)

// computeLiveTotal sums line items at current catalog prices. Document line
// items carry no inventory reference and contribute nothing.
func computeLiveTotal(ctx context.Context, store port.DatabaseRepository, req *domain.Request) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, line := range req.Items {
		if line.ItemID == "" {
			continue
		}
		item, err := store.GetItem(ctx, line.ItemID)
		if err != nil {
			return decimal.Zero, fmt.Errorf("item lookup failed: %w", err)
		}
		if item == nil {
			return decimal.Zero, fmt.Errorf("inventory item %s: %w", line.ItemID, domain.ErrNotFound)
		}
		total = total.Add(item.UnitPrice.Mul(decimal.NewFromInt(int64(line.Quantity))))
	}
	return total, nil
}
