package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/bgysuite/barangay-backend/internal/core/domain"
	"github.com/bgysuite/barangay-backend/internal/port"
)

const submitIdempotencyPrefix = "submit:"

// SubmitLineItem is the submission payload for one line item. Asset items
// carry ItemID and Quantity; document items carry DocumentType and Fields.
type SubmitLineItem struct {
	ItemID       string
	DocumentType string
	Fields       map[string]string
	Quantity     int
}

// RequestService owns the pending side of the lifecycle: submission,
// withdrawal, reads and the status-count projection.
type RequestService struct {
	store    port.DatabaseRepository
	cache    port.CacheRepository
	notifier port.Notifier
	logger   *logrus.Logger
}

func NewRequestService(store port.DatabaseRepository, cache port.CacheRepository, notifier port.Notifier, logger *logrus.Logger) *RequestService {
	return &RequestService{
		store:    store,
		cache:    cache,
		notifier: notifier,
		logger:   logger,
	}
}

// Submit validates and persists a new pending request. When clientRequestID
// is non-empty it doubles as an idempotency key so a double-submitted form
// creates one request. No state is mutated when validation fails.
func (s *RequestService) Submit(ctx context.Context, clientRequestID string, kind domain.RequestKind, residentID string, items []SubmitLineItem) (*domain.Request, error) {
	if kind != domain.KindDocument && kind != domain.KindAsset {
		return nil, domain.NewValidationError("unknown request kind %q", kind)
	}
	if len(items) == 0 {
		return nil, domain.NewValidationError("request has no line items")
	}

	resident, err := s.store.FindResidentByID(ctx, residentID)
	if err != nil {
		return nil, fmt.Errorf("resident lookup failed: %w", err)
	}
	if resident == nil {
		return nil, fmt.Errorf("resident %s: %w", residentID, domain.ErrNotFound)
	}

	now := time.Now()
	req := domain.Request{
		ID:            uuid.New().String(),
		Kind:          kind,
		ResidentID:    residentID,
		Status:        domain.StatusPending,
		PaymentStatus: domain.PaymentUnpaid,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	for i, in := range items {
		if in.Quantity < 1 {
			return nil, domain.NewValidationError("line item %d: quantity must be at least 1, got %d", i, in.Quantity)
		}

		line := domain.LineItem{
			ID:        uuid.New().String(),
			RequestID: req.ID,
			Quantity:  in.Quantity,
			Position:  i,
		}

		switch kind {
		case domain.KindAsset:
			if in.ItemID == "" {
				return nil, domain.NewValidationError("line item %d: item_id is required for asset requests", i)
			}
			item, err := s.store.GetItem(ctx, in.ItemID)
			if err != nil {
				return nil, fmt.Errorf("item lookup failed: %w", err)
			}
			if item == nil {
				return nil, fmt.Errorf("inventory item %s: %w", in.ItemID, domain.ErrNotFound)
			}
			line.ItemID = in.ItemID

		case domain.KindDocument:
			docType := domain.DocumentType(in.DocumentType)
			if !docType.Valid() {
				return nil, domain.NewValidationError("line item %d: unknown document type %q", i, in.DocumentType)
			}
			if missing := docType.MissingFields(in.Fields); len(missing) > 0 {
				return nil, domain.NewValidationError("line item %d: missing required fields %v for %s", i, missing, docType)
			}
			line.DocumentType = docType
			line.Fields = in.Fields
		}

		req.Items = append(req.Items, line)
	}

	if clientRequestID != "" {
		ok, err := s.cache.SetIdempotency(ctx, submitIdempotencyPrefix+clientRequestID)
		if err != nil {
			return nil, fmt.Errorf("idempotency check failed: %w", err)
		}
		if !ok {
			return nil, domain.ErrDuplicateRequest
		}
	}

	if err := s.store.CreateRequest(ctx, req); err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	s.notifier.Notify(domain.Event{
		Type:       domain.EventSubmitted,
		RequestID:  req.ID,
		ResidentID: req.ResidentID,
		OccurredAt: now,
	})

	return &req, nil
}

// Withdraw deletes a request that has not yet been decided.
func (s *RequestService) Withdraw(ctx context.Context, id string) error {
	req, err := s.store.GetRequest(ctx, id)
	if err != nil {
		return fmt.Errorf("load request: %w", err)
	}
	if req == nil {
		return fmt.Errorf("request %s: %w", id, domain.ErrNotFound)
	}
	if req.Decided() {
		return fmt.Errorf("request %s is %s: %w", id, req.Status, domain.ErrInvalidTransition)
	}

	// The delete re-checks the status inside its own transaction; the read
	// above only exists to report a friendlier error.
	if err := s.store.DeleteRequest(ctx, id); err != nil {
		return err
	}

	s.notifier.Notify(domain.Event{
		Type:       domain.EventWithdrawn,
		RequestID:  req.ID,
		ResidentID: req.ResidentID,
		OccurredAt: time.Now(),
	})

	return nil
}

// GetRequest loads a request by ID.
func (s *RequestService) GetRequest(ctx context.Context, id string) (*domain.Request, error) {
	req, err := s.store.GetRequest(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load request: %w", err)
	}
	if req == nil {
		return nil, fmt.Errorf("request %s: %w", id, domain.ErrNotFound)
	}
	return req, nil
}

// ComputeTotal returns the amount due for a request: live catalog prices
// while unpaid, the frozen amount once paid. Catalog price changes after
// payment can therefore never alter a historical receipt.
func (s *RequestService) ComputeTotal(ctx context.Context, req *domain.Request) (decimal.Decimal, error) {
	if req.AmountPaid != nil {
		return *req.AmountPaid, nil
	}
	return computeLiveTotal(ctx, s.store, req)
}

// ListItems returns the rentable-asset catalog.
func (s *RequestService) ListItems(ctx context.Context) ([]domain.InventoryItem, error) {
	items, err := s.store.ListItems(ctx)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	return items, nil
}

// StatusCounts returns request counts per status, optionally scoped to one
// resident. Results are served from a short-TTL cache when available.
func (s *RequestService) StatusCounts(ctx context.Context, residentID string) (*domain.StatusCounts, error) {
	key := residentID
	if key == "" {
		key = "all"
	}

	if counts, hit, err := s.cache.GetStatusCounts(ctx, key); err == nil && hit {
		return counts, nil
	} else if err != nil {
		s.logger.WithField("key", key).WithError(err).Warn("status count cache read failed")
	}

	counts, err := s.store.StatusCounts(ctx, residentID)
	if err != nil {
		return nil, fmt.Errorf("status counts: %w", err)
	}

	if err := s.cache.SetStatusCounts(ctx, key, counts); err != nil {
		s.logger.WithField("key", key).WithError(err).Warn("status count cache write failed")
	}

	return counts, nil
}
