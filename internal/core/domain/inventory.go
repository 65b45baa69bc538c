package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type InventoryItem struct {
	ItemID    string
	Name      string
	UnitPrice decimal.Decimal
	Quantity  int
	Version   int // optimistic locking
	CreatedAt time.Time
	UpdatedAt time.Time
}
