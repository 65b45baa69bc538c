package notify

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/bgysuite/barangay-backend/internal/core/domain"
)

// Dispatcher forwards lifecycle events to the messaging layer, which for
// this service is the structured log consumed by the out-of-scope delivery
// pipeline. Events flow through a buffered queue drained by a worker pool;
// a full queue drops the event rather than stall the transition that
// produced it.
type Dispatcher struct {
	queue  chan domain.Event
	logger *logrus.Logger
	wg     sync.WaitGroup
	mu     sync.RWMutex
	closed bool
}

func NewDispatcher(logger *logrus.Logger, workers, queueSize int) *Dispatcher {
	if workers < 1 {
		workers = 1
	}
	d := &Dispatcher{
		queue:  make(chan domain.Event, queueSize),
		logger: logger,
	}
	for i := 0; i < workers; i++ {
		d.wg.Add(1)
		go func(id int) {
			defer d.wg.Done()
			d.workerLoop(id)
		}(i)
	}
	return d
}

// Notify enqueues an event. It never blocks and never reports failure to
// the caller; notifications are best effort by contract.
func (d *Dispatcher) Notify(event domain.Event) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.logger.WithFields(logrus.Fields{
			"type":       event.Type,
			"request_id": event.RequestID,
		}).Warn("dispatcher closed, event dropped")
		return
	}

	select {
	case d.queue <- event:
	default:
		d.logger.WithFields(logrus.Fields{
			"type":       event.Type,
			"request_id": event.RequestID,
		}).Warn("notification queue full, event dropped")
	}
}

func (d *Dispatcher) workerLoop(id int) {
	for event := range d.queue {
		d.deliver(id, event)
	}
}

func (d *Dispatcher) deliver(worker int, event domain.Event) {
	// A panicking formatter or hook must not take the worker down.
	defer func() {
		if r := recover(); r != nil {
			d.logger.WithField("recover", r).Error("notification delivery panicked")
		}
	}()

	fields := logrus.Fields{
		"worker":      worker,
		"type":        event.Type,
		"request_id":  event.RequestID,
		"resident_id": event.ResidentID,
	}
	if event.ItemID != "" {
		fields["item_id"] = event.ItemID
	}
	if event.Outcome != "" {
		fields["outcome"] = event.Outcome
	}
	if event.ReceiptNumber != "" {
		fields["receipt_number"] = event.ReceiptNumber
		fields["amount"] = event.Amount.String()
	}
	if event.Message != "" {
		fields["message"] = event.Message
	}

	d.logger.WithFields(fields).Info("notification dispatched")
}

// Close stops accepting events and waits for queued ones to drain.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()
	d.wg.Wait()
}
