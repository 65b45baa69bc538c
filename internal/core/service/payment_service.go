package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/sirupsen/logrus"

	"github.com/bgysuite/barangay-backend/internal/core/domain"
	"github.com/bgysuite/barangay-backend/internal/port"
)

const payLockTTL = 10 * time.Second

// PaymentService marks approved asset requests paid and issues receipts.
// The conditional update inside PayRequest is what makes payment exactly
// once; the Redis lock only shrinks the window in which two callers race to
// the same conditional update.
type PaymentService struct {
	store    port.DatabaseRepository
	locker   *redislock.Client
	notifier port.Notifier
	logger   *logrus.Logger
}

func NewPaymentService(store port.DatabaseRepository, locker *redislock.Client, notifier port.Notifier, logger *logrus.Logger) *PaymentService {
	return &PaymentService{
		store:    store,
		locker:   locker,
		notifier: notifier,
		logger:   logger,
	}
}

// Pay settles an approved asset request: freezes the total at current
// catalog prices, issues a receipt with a fresh number and flips
// payment_status, all in one storage transaction. A second call returns
// domain.ErrAlreadyPaid and mutates nothing.
func (s *PaymentService) Pay(ctx context.Context, requestID string) (*domain.Receipt, error) {
	if s.locker != nil {
		lock, err := s.locker.Obtain(ctx, "pay:"+requestID, payLockTTL, nil)
		switch {
		case errors.Is(err, redislock.ErrNotObtained):
			// A concurrent payment holds the lock. Proceed anyway: the
			// loser of the race gets ErrAlreadyPaid from the database.
			s.logger.WithField("request_id", requestID).Warn("payment lock contended")
		case err != nil:
			s.logger.WithField("request_id", requestID).WithError(err).Warn("payment lock unavailable")
		default:
			defer func() {
				if rErr := lock.Release(ctx); rErr != nil && !errors.Is(rErr, redislock.ErrLockNotHeld) {
					s.logger.WithField("request_id", requestID).WithError(rErr).Warn("payment lock release failed")
				}
			}()
		}
	}

	req, err := s.store.GetRequest(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("load request: %w", err)
	}
	if req == nil {
		return nil, fmt.Errorf("request %s: %w", requestID, domain.ErrNotFound)
	}
	if req.Kind != domain.KindAsset {
		return nil, fmt.Errorf("request %s is not an asset request: %w", requestID, domain.ErrInvalidTransition)
	}
	if req.Status != domain.StatusApproved {
		return nil, fmt.Errorf("request %s is %s: %w", requestID, req.Status, domain.ErrNotApproved)
	}
	if req.PaymentStatus == domain.PaymentPaid {
		return nil, fmt.Errorf("request %s: %w", requestID, domain.ErrAlreadyPaid)
	}

	amount, err := computeLiveTotal(ctx, s.store, req)
	if err != nil {
		return nil, err
	}

	paidAt := time.Now()
	receipt, err := s.store.PayRequest(ctx, requestID, amount, paidAt)
	if err != nil {
		return nil, err
	}

	s.notifier.Notify(domain.Event{
		Type:          domain.EventPaid,
		RequestID:     requestID,
		ResidentID:    req.ResidentID,
		ReceiptNumber: receipt.Number,
		Amount:        receipt.Amount,
		OccurredAt:    paidAt,
	})

	return receipt, nil
}

// Receipt returns the receipt issued for a paid request.
func (s *PaymentService) Receipt(ctx context.Context, requestID string) (*domain.Receipt, error) {
	receipt, err := s.store.GetReceipt(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("load receipt: %w", err)
	}
	if receipt == nil {
		return nil, fmt.Errorf("receipt for request %s: %w", requestID, domain.ErrNotFound)
	}
	return receipt, nil
}
