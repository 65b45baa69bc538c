package port

import (
	"context"

	"github.com/bgysuite/barangay-backend/internal/core/domain"
)

// CacheRepository is the Redis-backed fast path. Everything here is
// advisory: the database remains the authority on stock and payment state.
type CacheRepository interface {
	// DecrementStockMirror atomically decreases the mirrored stock count,
	// returning false when the mirror says the quantity is unavailable.
	// A missing mirror key passes the check and defers to the database.
	DecrementStockMirror(ctx context.Context, itemID string, quantity int) (bool, error)

	// IncrementStockMirror restores mirrored stock (rollback on failure).
	// It is a no-op for items the mirror does not track.
	IncrementStockMirror(ctx context.Context, itemID string, quantity int) error

	// SetStockMirror overwrites the mirrored count, used at seed time and
	// when resynchronizing after a mismatch with the database.
	SetStockMirror(ctx context.Context, itemID string, quantity int) error

	// SetIdempotency sets a key for idempotency check, returns false if already exists
	SetIdempotency(ctx context.Context, key string) (bool, error)

	// GetStatusCounts returns cached dashboard counts, with a hit flag.
	GetStatusCounts(ctx context.Context, key string) (*domain.StatusCounts, bool, error)

	// SetStatusCounts caches dashboard counts under a short TTL.
	SetStatusCounts(ctx context.Context, key string, counts *domain.StatusCounts) error
}
