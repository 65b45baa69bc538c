package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/bgysuite/barangay-backend/internal/core/domain"
)

// MySQLAdapter is the system of record. Every lifecycle transition is one
// transaction here; the invariants (stock never negative, at most one
// receipt per request) are enforced by conditional updates and unique keys,
// not by callers behaving.
type MySQLAdapter struct {
	db *sql.DB
}

func NewMySQLAdapter(db *sql.DB) *MySQLAdapter {
	return &MySQLAdapter{db: db}
}

func (m *MySQLAdapter) CreateRequest(ctx context.Context, req domain.Request) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO requests (id, kind, resident_id, status, payment_status, completed, admin_message, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		req.ID, req.Kind, req.ResidentID, req.Status, req.PaymentStatus,
		req.Completed, req.AdminMessage, req.CreatedAt, req.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert request: %w", err)
	}

	for _, line := range req.Items {
		var fields sql.NullString
		if line.Fields != nil {
			raw, err := json.Marshal(line.Fields)
			if err != nil {
				return fmt.Errorf("marshal line item fields: %w", err)
			}
			fields = sql.NullString{String: string(raw), Valid: true}
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO request_items (id, request_id, item_id, document_type, fields, quantity, position)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			line.ID, req.ID, nullString(line.ItemID), nullString(string(line.DocumentType)),
			fields, line.Quantity, line.Position,
		)
		if err != nil {
			return fmt.Errorf("insert line item: %w", err)
		}
	}

	return tx.Commit()
}

func (m *MySQLAdapter) GetRequest(ctx context.Context, id string) (*domain.Request, error) {
	var (
		req        domain.Request
		amountPaid decimal.NullDecimal
		decidedAt  sql.NullTime
		paidAt     sql.NullTime
	)
	err := m.db.QueryRowContext(ctx, `
		SELECT id, kind, resident_id, status, payment_status, completed, admin_message,
		       amount_paid, created_at, updated_at, decided_at, paid_at
		FROM requests WHERE id = ?`, id,
	).Scan(&req.ID, &req.Kind, &req.ResidentID, &req.Status, &req.PaymentStatus,
		&req.Completed, &req.AdminMessage, &amountPaid, &req.CreatedAt,
		&req.UpdatedAt, &decidedAt, &paidAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query request: %w", err)
	}

	if amountPaid.Valid {
		req.AmountPaid = &amountPaid.Decimal
	}
	if decidedAt.Valid {
		req.DecidedAt = &decidedAt.Time
	}
	if paidAt.Valid {
		req.PaidAt = &paidAt.Time
	}

	items, err := m.requestItems(ctx, m.db, id)
	if err != nil {
		return nil, err
	}
	req.Items = items

	return &req, nil
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (m *MySQLAdapter) requestItems(ctx context.Context, q querier, requestID string) ([]domain.LineItem, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, request_id, item_id, document_type, fields, quantity, position
		FROM request_items WHERE request_id = ? ORDER BY position`, requestID)
	if err != nil {
		return nil, fmt.Errorf("query line items: %w", err)
	}
	defer rows.Close()

	var items []domain.LineItem
	for rows.Next() {
		var (
			line    domain.LineItem
			itemID  sql.NullString
			docType sql.NullString
			fields  sql.NullString
		)
		if err := rows.Scan(&line.ID, &line.RequestID, &itemID, &docType, &fields, &line.Quantity, &line.Position); err != nil {
			return nil, fmt.Errorf("scan line item: %w", err)
		}
		line.ItemID = itemID.String
		line.DocumentType = domain.DocumentType(docType.String)
		if fields.Valid {
			if err := json.Unmarshal([]byte(fields.String), &line.Fields); err != nil {
				return nil, fmt.Errorf("unmarshal line item fields: %w", err)
			}
		}
		items = append(items, line)
	}
	return items, rows.Err()
}

func (m *MySQLAdapter) DeleteRequest(ctx context.Context, id string) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	// Line items go first; the rollback restores them if the request
	// turns out to be undeletable.
	if _, err := tx.ExecContext(ctx, `DELETE FROM request_items WHERE request_id = ?`, id); err != nil {
		return fmt.Errorf("delete line items: %w", err)
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM requests WHERE id = ? AND status = ?`, id, domain.StatusPending)
	if err != nil {
		return fmt.Errorf("delete request: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		var status domain.RequestStatus
		err := tx.QueryRowContext(ctx, `SELECT status FROM requests WHERE id = ?`, id).Scan(&status)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("request %s: %w", id, domain.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("query request status: %w", err)
		}
		return fmt.Errorf("request %s is %s: %w", id, status, domain.ErrInvalidTransition)
	}

	return tx.Commit()
}

func (m *MySQLAdapter) DecideRequest(ctx context.Context, id string, outcome domain.RequestStatus, adminMessage string, decidedAt time.Time) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		UPDATE requests
		SET status = ?, admin_message = ?, decided_at = ?, updated_at = ?
		WHERE id = ? AND status = ?`,
		outcome, adminMessage, decidedAt, decidedAt, id, domain.StatusPending,
	)
	if err != nil {
		return fmt.Errorf("update request status: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		var status domain.RequestStatus
		err := tx.QueryRowContext(ctx, `SELECT status FROM requests WHERE id = ?`, id).Scan(&status)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("request %s: %w", id, domain.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("query request status: %w", err)
		}
		return fmt.Errorf("request %s is %s: %w", id, status, domain.ErrInvalidTransition)
	}

	if outcome != domain.StatusApproved {
		return tx.Commit()
	}

	// Reserve stock in insertion order. The first shortfall rolls back the
	// whole decision, including reservations that already succeeded.
	items, err := m.requestItems(ctx, tx, id)
	if err != nil {
		return err
	}
	for _, line := range items {
		if line.ItemID == "" {
			continue
		}

		result, err := tx.ExecContext(ctx, `
			UPDATE inventory
			SET quantity = quantity - ?, version = version + 1, updated_at = NOW()
			WHERE item_id = ? AND quantity >= ?`,
			line.Quantity, line.ItemID, line.Quantity,
		)
		if err != nil {
			return fmt.Errorf("reserve stock: %w", err)
		}

		rows, _ := result.RowsAffected()
		if rows == 0 {
			available := 0
			err := tx.QueryRowContext(ctx, `SELECT quantity FROM inventory WHERE item_id = ?`, line.ItemID).Scan(&available)
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("inventory item %s: %w", line.ItemID, domain.ErrNotFound)
			}
			if err != nil {
				return fmt.Errorf("query inventory: %w", err)
			}
			return &domain.InsufficientStockError{
				ItemID:    line.ItemID,
				Requested: line.Quantity,
				Available: available,
			}
		}
	}

	return tx.Commit()
}

func (m *MySQLAdapter) PayRequest(ctx context.Context, id string, amount decimal.Decimal, paidAt time.Time) (*domain.Receipt, error) {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		UPDATE requests
		SET payment_status = ?, amount_paid = ?, paid_at = ?, updated_at = ?
		WHERE id = ? AND status = ? AND payment_status = ?`,
		domain.PaymentPaid, amount, paidAt, paidAt,
		id, domain.StatusApproved, domain.PaymentUnpaid,
	)
	if err != nil {
		return nil, fmt.Errorf("update payment status: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		var (
			status  domain.RequestStatus
			payment domain.PaymentStatus
		)
		err := tx.QueryRowContext(ctx, `SELECT status, payment_status FROM requests WHERE id = ?`, id).Scan(&status, &payment)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("request %s: %w", id, domain.ErrNotFound)
		}
		if err != nil {
			return nil, fmt.Errorf("query request: %w", err)
		}
		if status != domain.StatusApproved {
			return nil, fmt.Errorf("request %s is %s: %w", id, status, domain.ErrNotApproved)
		}
		return nil, fmt.Errorf("request %s: %w", id, domain.ErrAlreadyPaid)
	}

	// The sequence row serializes concurrent payments, so numbers stay
	// unique and monotonic even for same-instant payments of different
	// requests. A failure after this point only leaves a gap.
	result, err = tx.ExecContext(ctx, `UPDATE sequences SET value = LAST_INSERT_ID(value + 1) WHERE name = 'receipt'`)
	if err != nil {
		return nil, fmt.Errorf("bump receipt sequence: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return nil, errors.New("receipt sequence row missing")
	}
	seq, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("read receipt sequence: %w", err)
	}

	receipt := domain.Receipt{
		ID:        uuid.New().String(),
		Number:    domain.FormatReceiptNumber(seq),
		RequestID: id,
		Amount:    amount,
		IssuedAt:  paidAt,
	}

	// The unique key on request_id is the final guard against a second
	// receipt slipping in through any future code path.
	_, err = tx.ExecContext(ctx, `
		INSERT INTO receipts (id, number, request_id, amount, issued_at)
		VALUES (?, ?, ?, ?, ?)`,
		receipt.ID, receipt.Number, receipt.RequestID, receipt.Amount, receipt.IssuedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert receipt: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit payment: %w", err)
	}
	return &receipt, nil
}

func (m *MySQLAdapter) CompleteRequest(ctx context.Context, id string) error {
	result, err := m.db.ExecContext(ctx, `
		UPDATE requests
		SET completed = 1, updated_at = NOW()
		WHERE id = ? AND status = ? AND completed = 0`,
		id, domain.StatusApproved,
	)
	if err != nil {
		return fmt.Errorf("update request: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		var (
			status    domain.RequestStatus
			completed bool
		)
		err := m.db.QueryRowContext(ctx, `SELECT status, completed FROM requests WHERE id = ?`, id).Scan(&status, &completed)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("request %s: %w", id, domain.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("query request: %w", err)
		}
		if status != domain.StatusApproved {
			return fmt.Errorf("request %s is %s: %w", id, status, domain.ErrNotApproved)
		}
		return fmt.Errorf("request %s already completed: %w", id, domain.ErrInvalidTransition)
	}

	return nil
}

func (m *MySQLAdapter) GetItem(ctx context.Context, itemID string) (*domain.InventoryItem, error) {
	var item domain.InventoryItem
	err := m.db.QueryRowContext(ctx, `
		SELECT item_id, name, unit_price, quantity, version, created_at, updated_at
		FROM inventory WHERE item_id = ?`, itemID,
	).Scan(&item.ItemID, &item.Name, &item.UnitPrice, &item.Quantity,
		&item.Version, &item.CreatedAt, &item.UpdatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query inventory: %w", err)
	}
	return &item, nil
}

func (m *MySQLAdapter) ListItems(ctx context.Context) ([]domain.InventoryItem, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT item_id, name, unit_price, quantity, version, created_at, updated_at
		FROM inventory ORDER BY item_id`)
	if err != nil {
		return nil, fmt.Errorf("query inventory: %w", err)
	}
	defer rows.Close()

	var items []domain.InventoryItem
	for rows.Next() {
		var item domain.InventoryItem
		if err := rows.Scan(&item.ItemID, &item.Name, &item.UnitPrice, &item.Quantity,
			&item.Version, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan inventory: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (m *MySQLAdapter) UpsertItem(ctx context.Context, item domain.InventoryItem) error {
	_, err := m.db.ExecContext(ctx, `
		INSERT INTO inventory (item_id, name, unit_price, quantity, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, 0, NOW(), NOW())
		ON DUPLICATE KEY UPDATE name = ?, unit_price = ?, quantity = ?, version = version + 1, updated_at = NOW()`,
		item.ItemID, item.Name, item.UnitPrice, item.Quantity,
		item.Name, item.UnitPrice, item.Quantity,
	)
	if err != nil {
		return fmt.Errorf("upsert inventory: %w", err)
	}
	return nil
}

func (m *MySQLAdapter) RestoreStock(ctx context.Context, itemID string, quantity int) error {
	result, err := m.db.ExecContext(ctx, `
		UPDATE inventory
		SET quantity = quantity + ?, version = version + 1, updated_at = NOW()
		WHERE item_id = ?`,
		quantity, itemID,
	)
	if err != nil {
		return fmt.Errorf("restore stock: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return fmt.Errorf("inventory item %s: %w", itemID, domain.ErrNotFound)
	}
	return nil
}

func (m *MySQLAdapter) FindResidentByID(ctx context.Context, id string) (*domain.Resident, error) {
	var res domain.Resident
	err := m.db.QueryRowContext(ctx, `
		SELECT id, first_name, last_name, created_at
		FROM residents WHERE id = ?`, id,
	).Scan(&res.ID, &res.FirstName, &res.LastName, &res.CreatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query resident: %w", err)
	}
	return &res, nil
}

func (m *MySQLAdapter) UpsertResident(ctx context.Context, res domain.Resident) error {
	_, err := m.db.ExecContext(ctx, `
		INSERT INTO residents (id, first_name, last_name, created_at)
		VALUES (?, ?, ?, NOW())
		ON DUPLICATE KEY UPDATE first_name = ?, last_name = ?`,
		res.ID, res.FirstName, res.LastName, res.FirstName, res.LastName,
	)
	if err != nil {
		return fmt.Errorf("upsert resident: %w", err)
	}
	return nil
}

func (m *MySQLAdapter) GetReceipt(ctx context.Context, requestID string) (*domain.Receipt, error) {
	var receipt domain.Receipt
	err := m.db.QueryRowContext(ctx, `
		SELECT id, number, request_id, amount, issued_at
		FROM receipts WHERE request_id = ?`, requestID,
	).Scan(&receipt.ID, &receipt.Number, &receipt.RequestID, &receipt.Amount, &receipt.IssuedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query receipt: %w", err)
	}
	return &receipt, nil
}

func (m *MySQLAdapter) StatusCounts(ctx context.Context, residentID string) (*domain.StatusCounts, error) {
	query := `SELECT status, COUNT(*) FROM requests`
	args := []any{}
	if residentID != "" {
		query += ` WHERE resident_id = ?`
		args = append(args, residentID)
	}
	query += ` GROUP BY status`

	rows, err := m.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query status counts: %w", err)
	}
	defer rows.Close()

	var counts domain.StatusCounts
	for rows.Next() {
		var (
			status domain.RequestStatus
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan status counts: %w", err)
		}
		switch status {
		case domain.StatusPending:
			counts.Pending = n
		case domain.StatusApproved:
			counts.Approved = n
		case domain.StatusDenied:
			counts.Denied = n
		}
		counts.Total += n
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	paidQuery := `SELECT COUNT(*) FROM requests WHERE payment_status = ?`
	paidArgs := []any{domain.PaymentPaid}
	if residentID != "" {
		paidQuery += ` AND resident_id = ?`
		paidArgs = append(paidArgs, residentID)
	}
	if err := m.db.QueryRowContext(ctx, paidQuery, paidArgs...).Scan(&counts.Paid); err != nil {
		return nil, fmt.Errorf("query paid count: %w", err)
	}

	return &counts, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
