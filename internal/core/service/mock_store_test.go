package service

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/bgysuite/barangay-backend/internal/core/domain"
)

// Mock DatabaseRepository. Conditional transitions are applied atomically
// under one mutex, mirroring what the MySQL adapter does with conditional
// updates inside a transaction.
type mockStore struct {
	mu        sync.Mutex
	requests  map[string]*domain.Request
	items     map[string]*domain.InventoryItem
	residents map[string]domain.Resident
	receipts  map[string]*domain.Receipt
	seq       int64
}

func newMockStore() *mockStore {
	return &mockStore{
		requests:  make(map[string]*domain.Request),
		items:     make(map[string]*domain.InventoryItem),
		residents: make(map[string]domain.Resident),
		receipts:  make(map[string]*domain.Receipt),
	}
}

func copyRequest(r *domain.Request) *domain.Request {
	cp := *r
	cp.Items = append([]domain.LineItem(nil), r.Items...)
	if r.AmountPaid != nil {
		amount := *r.AmountPaid
		cp.AmountPaid = &amount
	}
	return &cp
}

func (m *mockStore) CreateRequest(ctx context.Context, req domain.Request) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests[req.ID] = copyRequest(&req)
	return nil
}

func (m *mockStore) GetRequest(ctx context.Context, id string) (*domain.Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.requests[id]
	if !ok {
		return nil, nil
	}
	return copyRequest(r), nil
}

func (m *mockStore) DeleteRequest(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.requests[id]
	if !ok {
		return fmt.Errorf("request %s: %w", id, domain.ErrNotFound)
	}
	if r.Status != domain.StatusPending {
		return fmt.Errorf("request %s is %s: %w", id, r.Status, domain.ErrInvalidTransition)
	}
	delete(m.requests, id)
	return nil
}

func (m *mockStore) DecideRequest(ctx context.Context, id string, outcome domain.RequestStatus, adminMessage string, decidedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.requests[id]
	if !ok {
		return fmt.Errorf("request %s: %w", id, domain.ErrNotFound)
	}
	if r.Status != domain.StatusPending {
		return fmt.Errorf("request %s is %s: %w", id, r.Status, domain.ErrInvalidTransition)
	}

	if outcome == domain.StatusApproved {
		var reserved []domain.LineItem
		for _, line := range r.Items {
			if line.ItemID == "" {
				continue
			}
			item, ok := m.items[line.ItemID]
			if !ok {
				m.restore(reserved)
				return fmt.Errorf("inventory item %s: %w", line.ItemID, domain.ErrNotFound)
			}
			if item.Quantity < line.Quantity {
				m.restore(reserved)
				return &domain.InsufficientStockError{
					ItemID:    line.ItemID,
					Requested: line.Quantity,
					Available: item.Quantity,
				}
			}
			item.Quantity -= line.Quantity
			reserved = append(reserved, line)
		}
	}

	r.Status = outcome
	r.AdminMessage = adminMessage
	r.DecidedAt = &decidedAt
	r.UpdatedAt = decidedAt
	return nil
}

func (m *mockStore) restore(lines []domain.LineItem) {
	for _, line := range lines {
		m.items[line.ItemID].Quantity += line.Quantity
	}
}

func (m *mockStore) PayRequest(ctx context.Context, id string, amount decimal.Decimal, paidAt time.Time) (*domain.Receipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.requests[id]
	if !ok {
		return nil, fmt.Errorf("request %s: %w", id, domain.ErrNotFound)
	}
	if r.Status != domain.StatusApproved {
		return nil, fmt.Errorf("request %s is %s: %w", id, r.Status, domain.ErrNotApproved)
	}
	if r.PaymentStatus == domain.PaymentPaid {
		return nil, fmt.Errorf("request %s: %w", id, domain.ErrAlreadyPaid)
	}

	m.seq++
	receipt := &domain.Receipt{
		ID:        fmt.Sprintf("rcpt-%d", m.seq),
		Number:    domain.FormatReceiptNumber(m.seq),
		RequestID: id,
		Amount:    amount,
		IssuedAt:  paidAt,
	}

	r.PaymentStatus = domain.PaymentPaid
	r.AmountPaid = &amount
	r.PaidAt = &paidAt
	r.UpdatedAt = paidAt
	m.receipts[id] = receipt

	cp := *receipt
	return &cp, nil
}

func (m *mockStore) CompleteRequest(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.requests[id]
	if !ok {
		return fmt.Errorf("request %s: %w", id, domain.ErrNotFound)
	}
	if r.Status != domain.StatusApproved {
		return fmt.Errorf("request %s is %s: %w", id, r.Status, domain.ErrNotApproved)
	}
	if r.Completed {
		return fmt.Errorf("request %s already completed: %w", id, domain.ErrInvalidTransition)
	}
	r.Completed = true
	return nil
}

func (m *mockStore) GetItem(ctx context.Context, itemID string) (*domain.InventoryItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.items[itemID]
	if !ok {
		return nil, nil
	}
	cp := *item
	return &cp, nil
}

func (m *mockStore) ListItems(ctx context.Context) ([]domain.InventoryItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var items []domain.InventoryItem
	for _, item := range m.items {
		items = append(items, *item)
	}
	return items, nil
}

func (m *mockStore) UpsertItem(ctx context.Context, item domain.InventoryItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := item
	m.items[item.ItemID] = &cp
	return nil
}

func (m *mockStore) RestoreStock(ctx context.Context, itemID string, quantity int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.items[itemID]
	if !ok {
		return fmt.Errorf("inventory item %s: %w", itemID, domain.ErrNotFound)
	}
	item.Quantity += quantity
	return nil
}

func (m *mockStore) FindResidentByID(ctx context.Context, id string) (*domain.Resident, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	res, ok := m.residents[id]
	if !ok {
		return nil, nil
	}
	return &res, nil
}

func (m *mockStore) UpsertResident(ctx context.Context, res domain.Resident) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.residents[res.ID] = res
	return nil
}

func (m *mockStore) GetReceipt(ctx context.Context, requestID string) (*domain.Receipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	receipt, ok := m.receipts[requestID]
	if !ok {
		return nil, nil
	}
	cp := *receipt
	return &cp, nil
}

func (m *mockStore) StatusCounts(ctx context.Context, residentID string) (*domain.StatusCounts, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var counts domain.StatusCounts
	for _, r := range m.requests {
		if residentID != "" && r.ResidentID != residentID {
			continue
		}
		switch r.Status {
		case domain.StatusPending:
			counts.Pending++
		case domain.StatusApproved:
			counts.Approved++
		case domain.StatusDenied:
			counts.Denied++
		}
		if r.PaymentStatus == domain.PaymentPaid {
			counts.Paid++
		}
		counts.Total++
	}
	return &counts, nil
}

func (m *mockStore) itemQuantity(itemID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.items[itemID].Quantity
}

// Mock CacheRepository
type mockCache struct {
	mu             sync.Mutex
	stock          map[string]int
	idempotencySet map[string]bool
	counts         map[string]domain.StatusCounts
}

func newMockCache() *mockCache {
	return &mockCache{
		stock:          make(map[string]int),
		idempotencySet: make(map[string]bool),
		counts:         make(map[string]domain.StatusCounts),
	}
}

func (m *mockCache) DecrementStockMirror(ctx context.Context, itemID string, quantity int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, tracked := m.stock[itemID]
	if !tracked {
		return true, nil
	}
	if current >= quantity {
		m.stock[itemID] = current - quantity
		return true, nil
	}
	return false, nil
}

func (m *mockCache) IncrementStockMirror(ctx context.Context, itemID string, quantity int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, tracked := m.stock[itemID]; tracked {
		m.stock[itemID] += quantity
	}
	return nil
}

func (m *mockCache) SetStockMirror(ctx context.Context, itemID string, quantity int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stock[itemID] = quantity
	return nil
}

func (m *mockCache) SetIdempotency(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.idempotencySet[key] {
		return false, nil
	}
	m.idempotencySet[key] = true
	return true, nil
}

func (m *mockCache) GetStatusCounts(ctx context.Context, key string) (*domain.StatusCounts, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts, ok := m.counts[key]
	if !ok {
		return nil, false, nil
	}
	cp := counts
	return &cp, true, nil
}

func (m *mockCache) SetStatusCounts(ctx context.Context, key string, counts *domain.StatusCounts) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts[key] = *counts
	return nil
}

// Mock Notifier
type mockNotifier struct {
	mu     sync.Mutex
	events []domain.Event
}

func (m *mockNotifier) Notify(event domain.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
}

func (m *mockNotifier) byType(t domain.EventType) []domain.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Event
	for _, e := range m.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

type testEnv struct {
	store    *mockStore
	cache    *mockCache
	notifier *mockNotifier

	requests    *RequestService
	fulfillment *FulfillmentService
	payments    *PaymentService
}

func newTestEnv() *testEnv {
	store := newMockStore()
	cache := newMockCache()
	notifier := &mockNotifier{}
	logger := testLogger()

	return &testEnv{
		store:       store,
		cache:       cache,
		notifier:    notifier,
		requests:    NewRequestService(store, cache, notifier, logger),
		fulfillment: NewFulfillmentService(store, cache, notifier, logger),
		payments:    NewPaymentService(store, nil, notifier, logger),
	}
}

func (e *testEnv) seedItem(itemID string, price int64, quantity int) {
	e.store.UpsertItem(context.Background(), domain.InventoryItem{
		ItemID:    itemID,
		Name:      itemID,
		UnitPrice: decimal.NewFromInt(price),
		Quantity:  quantity,
	})
}

func (e *testEnv) seedResident(id string) {
	e.store.UpsertResident(context.Background(), domain.Resident{
		ID:        id,
		FirstName: "Juan",
		LastName:  "Dela Cruz",
	})
}
