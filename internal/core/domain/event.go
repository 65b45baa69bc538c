package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type EventType string

const (
	EventSubmitted EventType = "request.submitted"
	EventWithdrawn EventType = "request.withdrawn"
	EventDecided   EventType = "request.decided"
	EventPaid      EventType = "request.paid"
	EventCompleted EventType = "request.completed"
	// EventDecisionAudit is the single administrator-facing audit record
	// emitted alongside the per-item decision events.
	EventDecisionAudit EventType = "request.decision.audit"
)

// Event is the lifecycle notification handed to the dispatcher. Delivery is
// best effort; nothing in the core waits on it.
type Event struct {
	Type          EventType
	RequestID     string
	ResidentID    string
	ItemID        string
	Outcome       RequestStatus
	ReceiptNumber string
	Amount        decimal.Decimal
	Message       string
	OccurredAt    time.Time
}
