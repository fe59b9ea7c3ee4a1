package repository

import (
	"context"
	"database/sql"
	"errors"

	"vendingstore/internal/model"
)

// TransactionRepo provides access to the transactions table.
type TransactionRepo struct {
	db *sql.DB
}

// NewTransactionRepo constructs a TransactionRepo with the given DB handle.
func NewTransactionRepo(db *sql.DB) *TransactionRepo {
	return &TransactionRepo{db: db}
}

// CreateTx inserts a transaction inside tx and fills in its ID and
// database-assigned transaction_date.
func (r *TransactionRepo) CreateTx(ctx context.Context, tx *sql.Tx, t *model.Transaction) error {
	res, err := tx.ExecContext(ctx,
		`INSERT INTO transactions (user_id, product_id, quantity, unit_price, total_amount, status, payment_method, notes)
		 VALUES (?,?,?,?,?,?,?,?)`,
		t.UserID, t.ProductID, t.Quantity, t.UnitPrice, t.TotalAmount, t.Status, t.PaymentMethod, t.Notes)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	t.ID = uint64(id)
	return tx.QueryRowContext(ctx,
		"SELECT transaction_date FROM transactions WHERE id=?", t.ID).
		Scan(&t.TransactionDate)
}

// TransactionDetail is a transaction joined with the buyer and
// product names for display.
type TransactionDetail struct {
	model.Transaction
	Username    string
	ProductName string
}

const detailSelect = `SELECT t.id, t.user_id, t.product_id, t.quantity, t.unit_price, t.total_amount,
       t.status, t.payment_method, t.notes, t.transaction_date, u.username, p.name
  FROM transactions t
  JOIN users u ON u.id = t.user_id
  JOIN products p ON p.id = t.product_id`

func scanDetail(row rowScanner) (TransactionDetail, error) {
	var d TransactionDetail
	err := row.Scan(&d.ID, &d.UserID, &d.ProductID, &d.Quantity, &d.UnitPrice,
		&d.TotalAmount, &d.Status, &d.PaymentMethod, &d.Notes, &d.TransactionDate,
		&d.Username, &d.ProductName)
	return d, err
}

// GetByID fetches a single transaction with names joined.
func (r *TransactionRepo) GetByID(ctx context.Context, id uint64) (TransactionDetail, error) {
	d, err := scanDetail(r.db.QueryRowContext(ctx, detailSelect+" WHERE t.id=? LIMIT 1", id))
	if errors.Is(err, sql.ErrNoRows) {
		return TransactionDetail{}, ErrTransactionNotFound
	}
	return d, err
}

// ListByUser returns a user's transactions, newest first.
func (r *TransactionRepo) ListByUser(ctx context.Context, userID uint64) ([]TransactionDetail, error) {
	rows, err := r.db.QueryContext(ctx,
		detailSelect+" WHERE t.user_id=? ORDER BY t.transaction_date DESC, t.id DESC", userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectDetails(rows)
}

// Paginate returns one page of transactions, newest first. A nil
// userID means all users (admin view).
func (r *TransactionRepo) Paginate(ctx context.Context, page, perPage int, userID *uint64) ([]TransactionDetail, int64, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 10
	}
	where, args := "", []any{}
	if userID != nil {
		where = " WHERE t.user_id=?"
		args = append(args, *userID)
	}

	var total int64
	if err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM transactions t"+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, perPage, (page-1)*perPage)
	rows, err := r.db.QueryContext(ctx,
		detailSelect+where+" ORDER BY t.transaction_date DESC, t.id DESC LIMIT ? OFFSET ?", args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	items, err := collectDetails(rows)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func collectDetails(rows *sql.Rows) ([]TransactionDetail, error) {
	var result []TransactionDetail
	for rows.Next() {
		d, err := scanDetail(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
