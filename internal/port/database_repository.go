package port

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bgysuite/barangay-backend/internal/core/domain"
)

// DatabaseRepository owns every transactional mutation of requests,
// inventory and receipts. Each method is a single all-or-nothing unit; no
// caller ever observes a partially applied transition.
type DatabaseRepository interface {
	// CreateRequest persists a pending request with its line items.
	CreateRequest(ctx context.Context, req domain.Request) error

	// GetRequest loads a request with line items in insertion order, or
	// nil when no such request exists.
	GetRequest(ctx context.Context, id string) (*domain.Request, error)

	// DeleteRequest removes a request and its line items, but only while
	// the request is still pending. Returns domain.ErrInvalidTransition
	// once a decision has been made.
	DeleteRequest(ctx context.Context, id string) error

	// DecideRequest moves a pending request to approved or denied. An
	// approval reserves stock for every asset line item in insertion
	// order; the first shortfall aborts the whole transaction with a
	// domain.InsufficientStockError and leaves the request pending.
	DecideRequest(ctx context.Context, id string, outcome domain.RequestStatus, adminMessage string, decidedAt time.Time) error

	// PayRequest marks an approved, unpaid request paid and issues its
	// receipt, all in one transaction. A request that is not approved or
	// is already paid yields domain.ErrNotApproved or domain.ErrAlreadyPaid.
	PayRequest(ctx context.Context, id string, amount decimal.Decimal, paidAt time.Time) (*domain.Receipt, error)

	// CompleteRequest flags an approved document request as released.
	CompleteRequest(ctx context.Context, id string) error

	// GetItem retrieves an inventory item by ID, nil when absent.
	GetItem(ctx context.Context, itemID string) (*domain.InventoryItem, error)

	// ListItems returns the catalog ordered by item ID.
	ListItems(ctx context.Context) ([]domain.InventoryItem, error)

	// UpsertItem creates or replaces a catalog entry.
	UpsertItem(ctx context.Context, item domain.InventoryItem) error

	// RestoreStock adds quantity back to an item, used on administrative
	// reversal of an approval. It never fails for tracked items.
	RestoreStock(ctx context.Context, itemID string, quantity int) error

	// FindResidentByID looks up a resident profile, nil when absent.
	FindResidentByID(ctx context.Context, id string) (*domain.Resident, error)

	// UpsertResident creates or replaces a resident profile.
	UpsertResident(ctx context.Context, res domain.Resident) error

	// GetReceipt returns the receipt issued for a request, nil when the
	// request has not been paid.
	GetReceipt(ctx context.Context, requestID string) (*domain.Receipt, error)

	// StatusCounts aggregates request counts per status, optionally
	// scoped to one resident when residentID is non-empty.
	StatusCounts(ctx context.Context, residentID string) (*domain.StatusCounts, error)
}
