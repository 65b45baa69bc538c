package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound covers missing requests, line items, inventory items and
	// residents. Wrap it with context naming the missing reference.
	ErrNotFound = errors.New("not found")

	// ErrInvalidTransition is returned for any attempt to move a request
	// out of a state that does not permit the transition, including
	// re-deciding a decided request and withdrawing after a decision.
	ErrInvalidTransition = errors.New("invalid transition")

	// ErrNotApproved rejects payment or completion of a request that is
	// not in the approved state.
	ErrNotApproved = errors.New("request not approved")

	// ErrAlreadyPaid rejects a second payment attempt. The first receipt
	// stands; no mutation occurs.
	ErrAlreadyPaid = errors.New("request already paid")

	// ErrDuplicateRequest rejects a resubmission carrying an idempotency
	// key that was already consumed.
	ErrDuplicateRequest = errors.New("duplicate request")
)

// ValidationError reports a malformed submission. Nothing is persisted when
// one is returned.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + e.Reason
}

func NewValidationError(format string, args ...any) *ValidationError {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// InsufficientStockError names the first line item whose reservation failed.
// The whole decision is rolled back when one is returned.
type InsufficientStockError struct {
	ItemID    string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for item %s: requested %d, available %d",
		e.ItemID, e.Requested, e.Available)
}
