package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type RequestKind string

const (
	KindDocument RequestKind = "document"
	KindAsset    RequestKind = "asset"
)

type RequestStatus string

const (
	StatusPending  RequestStatus = "pending"
	StatusApproved RequestStatus = "approved"
	StatusDenied   RequestStatus = "denied"
)

type PaymentStatus string

const (
	PaymentUnpaid PaymentStatus = "unpaid"
	PaymentPaid   PaymentStatus = "paid"
)

// LineItem is one requested good or document within a request. Asset line
// items reference an inventory item; document line items carry a document
// type plus its template fields instead.
type LineItem struct {
	ID           string
	RequestID    string
	ItemID       string
	DocumentType DocumentType
	Fields       map[string]string
	Quantity     int
	Position     int
}

// Request is the unit of transactional consistency: its line items and
// payment fields are only ever mutated together, and only through the
// fulfillment and payment services.
type Request struct {
	ID            string
	Kind          RequestKind
	ResidentID    string
	Status        RequestStatus
	PaymentStatus PaymentStatus
	Completed     bool
	AdminMessage  string
	AmountPaid    *decimal.Decimal
	Items         []LineItem
	CreatedAt     time.Time
	UpdatedAt     time.Time
	DecidedAt     *time.Time
	PaidAt        *time.Time
}

// Decided reports whether the request has left the pending state.
func (r *Request) Decided() bool {
	return r.Status != StatusPending
}

// StatusCounts is the read projection consumed by the dashboards.
type StatusCounts struct {
	Pending  int `json:"pending"`
	Approved int `json:"approved"`
	Denied   int `json:"denied"`
	Paid     int `json:"paid"`
	Total    int `json:"total"`
}
