package port

import "github.com/bgysuite/barangay-backend/internal/core/domain"

// Notifier receives lifecycle events. Delivery is fire-and-forget: a failed
// or dropped notification must never fail the transition that emitted it,
// so Notify neither blocks nor returns an error.
type Notifier interface {
	Notify(event domain.Event)
}
