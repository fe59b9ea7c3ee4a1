package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"

	"vendingstore/internal/model"
)

// Ledger is the store capability the purchase workflow is built
// against. Plain reads run outside any transaction; InTx runs fn
// inside one database transaction and commits only when fn returns
// nil, rolling back otherwise.
type Ledger interface {
	Product(ctx context.Context, id uint64) (model.Product, error)
	User(ctx context.Context, id uint64) (model.User, error)
	InTx(ctx context.Context, fn func(LedgerTx) error) error
}

// LedgerTx is the view of the ledger available inside InTx. The
// ForUpdate reads hold row locks until the transaction ends; the two
// Adjust operations carry the non-negative guards.
type LedgerTx interface {
	ProductForUpdate(ctx context.Context, id uint64) (model.Product, error)
	UserForUpdate(ctx context.Context, id uint64) (model.User, error)
	AdjustQuantity(ctx context.Context, productID uint64, delta int64) error
	AdjustBalance(ctx context.Context, userID uint64, amount decimal.Decimal) error
	CreateTransaction(ctx context.Context, t *model.Transaction) error
}

// SQLLedger implements Ledger on MySQL by composing the row
// repositories over a shared transaction.
type SQLLedger struct {
	db           *sql.DB
	products     *ProductRepo
	users        *UserRepo
	transactions *TransactionRepo
}

// NewSQLLedger constructs a SQLLedger over db.
func NewSQLLedger(db *sql.DB, products *ProductRepo, users *UserRepo, transactions *TransactionRepo) *SQLLedger {
	return &SQLLedger{db: db, products: products, users: users, transactions: transactions}
}

func (l *SQLLedger) Product(ctx context.Context, id uint64) (model.Product, error) {
	return l.products.GetByID(ctx, id)
}

func (l *SQLLedger) User(ctx context.Context, id uint64) (model.User, error) {
	return l.users.GetByID(ctx, id)
}

// InTx begins a transaction, runs fn against it and commits on
// success. Any error from fn (or the commit) leaves the database
// untouched.
func (l *SQLLedger) InTx(ctx context.Context, fn func(LedgerTx) error) error {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := fn(&sqlLedgerTx{ledger: l, tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	committed = true
	return nil
}

type sqlLedgerTx struct {
	ledger *SQLLedger
	tx     *sql.Tx
}

func (t *sqlLedgerTx) ProductForUpdate(ctx context.Context, id uint64) (model.Product, error) {
	return t.ledger.products.GetForUpdateTx(ctx, t.tx, id)
}

func (t *sqlLedgerTx) UserForUpdate(ctx context.Context, id uint64) (model.User, error) {
	return t.ledger.users.GetForUpdateTx(ctx, t.tx, id)
}

func (t *sqlLedgerTx) AdjustQuantity(ctx context.Context, productID uint64, delta int64) error {
	return t.ledger.products.AdjustQuantityTx(ctx, t.tx, productID, delta)
}

func (t *sqlLedgerTx) AdjustBalance(ctx context.Context, userID uint64, amount decimal.Decimal) error {
	return t.ledger.users.AdjustBalanceTx(ctx, t.tx, userID, amount)
}

func (t *sqlLedgerTx) CreateTransaction(ctx context.Context, tr *model.Transaction) error {
	return t.ledger.transactions.CreateTx(ctx, t.tx, tr)
}
