package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/bgysuite/barangay-backend/internal/core/domain"
	"github.com/bgysuite/barangay-backend/internal/port"
)

// FulfillmentService is the state machine for administrator decisions:
// pending -> approved | denied, plus the release step for document
// requests. All stock movement happens here and nowhere else.
type FulfillmentService struct {
	store    port.DatabaseRepository
	cache    port.CacheRepository
	notifier port.Notifier
	logger   *logrus.Logger
}

func NewFulfillmentService(store port.DatabaseRepository, cache port.CacheRepository, notifier port.Notifier, logger *logrus.Logger) *FulfillmentService {
	return &FulfillmentService{
		store:    store,
		cache:    cache,
		notifier: notifier,
		logger:   logger,
	}
}

// Decide transitions a pending request to approved or denied. An approval
// reserves stock for every asset line item; the first shortfall aborts the
// whole decision and the request stays pending with no stock consumed.
func (s *FulfillmentService) Decide(ctx context.Context, requestID string, outcome domain.RequestStatus, adminMessage string) (*domain.Request, error) {
	if outcome != domain.StatusApproved && outcome != domain.StatusDenied {
		return nil, domain.NewValidationError("decision outcome must be approved or denied, got %q", outcome)
	}

	req, err := s.store.GetRequest(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("load request: %w", err)
	}
	if req == nil {
		return nil, fmt.Errorf("request %s: %w", requestID, domain.ErrNotFound)
	}
	if req.Decided() {
		return nil, fmt.Errorf("request %s is %s: %w", requestID, req.Status, domain.ErrInvalidTransition)
	}

	// Fast-fail on the stock mirror before opening the transaction. The
	// mirror is advisory; the conditional decrement inside DecideRequest
	// is what actually guarantees stock never goes negative.
	var mirrored []domain.LineItem
	if outcome == domain.StatusApproved {
		for _, line := range req.Items {
			if line.ItemID == "" {
				continue
			}
			ok, err := s.cache.DecrementStockMirror(ctx, line.ItemID, line.Quantity)
			if err != nil {
				s.logger.WithField("item_id", line.ItemID).WithError(err).Warn("stock mirror unavailable")
				continue
			}
			if !ok {
				s.rollbackMirror(ctx, mirrored)
				return nil, s.insufficientStock(ctx, line)
			}
			mirrored = append(mirrored, line)
		}
	}

	decidedAt := time.Now()
	if err := s.store.DecideRequest(ctx, requestID, outcome, adminMessage, decidedAt); err != nil {
		s.rollbackMirror(ctx, mirrored)

		// The mirror passed but the database refused: the mirror was
		// stale-high, so pull it back in line with the catalog.
		var stockErr *domain.InsufficientStockError
		if errors.As(err, &stockErr) {
			if mErr := s.cache.SetStockMirror(ctx, stockErr.ItemID, stockErr.Available); mErr != nil {
				s.logger.WithField("item_id", stockErr.ItemID).WithError(mErr).Warn("stock mirror resync failed")
			}
		}
		return nil, err
	}

	req.Status = outcome
	req.AdminMessage = adminMessage
	req.DecidedAt = &decidedAt
	req.UpdatedAt = decidedAt

	// One notification per line item, then a single audit event for the
	// administrator trail.
	for _, line := range req.Items {
		s.notifier.Notify(domain.Event{
			Type:       domain.EventDecided,
			RequestID:  req.ID,
			ResidentID: req.ResidentID,
			ItemID:     line.ItemID,
			Outcome:    outcome,
			Message:    adminMessage,
			OccurredAt: decidedAt,
		})
	}
	s.notifier.Notify(domain.Event{
		Type:       domain.EventDecisionAudit,
		RequestID:  req.ID,
		ResidentID: req.ResidentID,
		Outcome:    outcome,
		Message:    adminMessage,
		OccurredAt: decidedAt,
	})

	return req, nil
}

// Complete marks an approved document request as released. Asset requests
// complete through payment instead.
func (s *FulfillmentService) Complete(ctx context.Context, requestID string) (*domain.Request, error) {
	req, err := s.store.GetRequest(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("load request: %w", err)
	}
	if req == nil {
		return nil, fmt.Errorf("request %s: %w", requestID, domain.ErrNotFound)
	}
	if req.Kind != domain.KindDocument {
		return nil, fmt.Errorf("request %s is not a document request: %w", requestID, domain.ErrInvalidTransition)
	}

	if err := s.store.CompleteRequest(ctx, requestID); err != nil {
		return nil, err
	}

	now := time.Now()
	req.Completed = true
	req.UpdatedAt = now

	s.notifier.Notify(domain.Event{
		Type:       domain.EventCompleted,
		RequestID:  req.ID,
		ResidentID: req.ResidentID,
		OccurredAt: now,
	})

	return req, nil
}

// Revert restores stock for a previously approved asset request, the
// administrative un-approval path. The request itself is returned to
// pending by the storage layer before stock is restored.
func (s *FulfillmentService) Revert(ctx context.Context, req *domain.Request) error {
	for _, line := range req.Items {
		if line.ItemID == "" {
			continue
		}
		if err := s.store.RestoreStock(ctx, line.ItemID, line.Quantity); err != nil {
			return fmt.Errorf("restore stock for %s: %w", line.ItemID, err)
		}
		if err := s.cache.IncrementStockMirror(ctx, line.ItemID, line.Quantity); err != nil {
			s.logger.WithField("item_id", line.ItemID).WithError(err).Warn("stock mirror restore failed")
		}
	}
	return nil
}

func (s *FulfillmentService) rollbackMirror(ctx context.Context, lines []domain.LineItem) {
	for _, line := range lines {
		if err := s.cache.IncrementStockMirror(ctx, line.ItemID, line.Quantity); err != nil {
			s.logger.WithField("item_id", line.ItemID).WithError(err).Warn("stock mirror rollback failed")
		}
	}
}

// insufficientStock builds the typed shortfall error from the catalog and
// resynchronizes the mirror so an immediate retry sees fresh numbers.
func (s *FulfillmentService) insufficientStock(ctx context.Context, line domain.LineItem) error {
	available := 0
	if item, err := s.store.GetItem(ctx, line.ItemID); err == nil && item != nil {
		available = item.Quantity
		if err := s.cache.SetStockMirror(ctx, line.ItemID, item.Quantity); err != nil {
			s.logger.WithField("item_id", line.ItemID).WithError(err).Warn("stock mirror resync failed")
		}
	}
	return &domain.InsufficientStockError{
		ItemID:    line.ItemID,
		Requested: line.Quantity,
		Available: available,
	}
}
