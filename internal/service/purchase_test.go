package service

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vendingstore/internal/model"
	"vendingstore/internal/repository"
)

// fakeLedger implements repository.Ledger in memory. InTx runs fn
// against a deep copy and swaps it in only on success, mirroring the
// commit/rollback behavior of the SQL implementation.
type fakeLedger struct {
	products map[uint64]model.Product
	users    map[uint64]model.User
	txs      []model.Transaction
	nextID   uint64

	// beforeTx, when set, runs at the start of InTx to simulate a
	// concurrent writer sneaking in between the precondition reads
	// and the transaction.
	beforeTx func(l *fakeLedger)
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		products: map[uint64]model.Product{},
		users:    map[uint64]model.User{},
		nextID:   1,
	}
}

func (l *fakeLedger) clone() *fakeLedger {
	c := &fakeLedger{
		products: make(map[uint64]model.Product, len(l.products)),
		users:    make(map[uint64]model.User, len(l.users)),
		txs:      append([]model.Transaction(nil), l.txs...),
		nextID:   l.nextID,
	}
	for k, v := range l.products {
		c.products[k] = v
	}
	for k, v := range l.users {
		c.users[k] = v
	}
	return c
}

func (l *fakeLedger) Product(_ context.Context, id uint64) (model.Product, error) {
	p, ok := l.products[id]
	if !ok {
		return model.Product{}, repository.ErrProductNotFound
	}
	return p, nil
}

func (l *fakeLedger) User(_ context.Context, id uint64) (model.User, error) {
	u, ok := l.users[id]
	if !ok {
		return model.User{}, repository.ErrUserNotFound
	}
	return u, nil
}

func (l *fakeLedger) InTx(_ context.Context, fn func(repository.LedgerTx) error) error {
	if l.beforeTx != nil {
		l.beforeTx(l)
	}
	snap := l.clone()
	if err := fn(&fakeLedgerTx{l: snap}); err != nil {
		return err
	}
	snap.beforeTx = l.beforeTx
	*l = *snap
	return nil
}

type fakeLedgerTx struct{ l *fakeLedger }

func (t *fakeLedgerTx) ProductForUpdate(ctx context.Context, id uint64) (model.Product, error) {
	return t.l.Product(ctx, id)
}

func (t *fakeLedgerTx) UserForUpdate(ctx context.Context, id uint64) (model.User, error) {
	return t.l.User(ctx, id)
}

func (t *fakeLedgerTx) AdjustQuantity(_ context.Context, productID uint64, delta int64) error {
	p, ok := t.l.products[productID]
	if !ok || p.QuantityAvailable+delta < 0 {
		return repository.ErrQuantityBelowZero
	}
	p.QuantityAvailable += delta
	t.l.products[productID] = p
	return nil
}

func (t *fakeLedgerTx) AdjustBalance(_ context.Context, userID uint64, amount decimal.Decimal) error {
	u, ok := t.l.users[userID]
	if !ok || u.Balance.Add(amount).IsNegative() {
		return repository.ErrBalanceBelowZero
	}
	u.Balance = u.Balance.Add(amount)
	t.l.users[userID] = u
	return nil
}

func (t *fakeLedgerTx) CreateTransaction(_ context.Context, tr *model.Transaction) error {
	tr.ID = t.l.nextID
	t.l.nextID++
	t.l.txs = append(t.l.txs, *tr)
	return nil
}

func money(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func seedLedger() *fakeLedger {
	l := newFakeLedger()
	l.products[1] = model.Product{
		ID: 1, Name: "Cola", Price: money("3.99"), QuantityAvailable: 10, IsActive: true,
	}
	l.users[5] = model.User{
		ID: 5, Username: "alice", Role: model.RoleUser, Balance: money("10.00"), IsActive: true,
	}
	return l
}

func TestPurchaseSuccess(t *testing.T) {
	l := seedLedger()
	svc := NewPurchaseService(l, nil)

	result, err := svc.Purchase(context.Background(), 5, 1, 2)
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.Equal(t, uint64(1), result.TransactionID)
	assert.Equal(t, "Cola", result.ProductName)
	assert.Equal(t, int64(2), result.Quantity)
	assert.True(t, result.UnitPrice.Equal(money("3.99")))
	assert.True(t, result.TotalAmount.Equal(money("7.98")), "got %s", result.TotalAmount)
	assert.True(t, result.NewBalance.Equal(money("2.02")), "got %s", result.NewBalance)

	assert.Equal(t, int64(8), l.products[1].QuantityAvailable)
	assert.True(t, l.users[5].Balance.Equal(money("2.02")))

	require.Len(t, l.txs, 1)
	tx := l.txs[0]
	assert.Equal(t, uint64(5), tx.UserID)
	assert.Equal(t, uint64(1), tx.ProductID)
	assert.Equal(t, model.StatusCompleted, tx.Status)
	assert.Equal(t, model.PaymentMethodBalance, tx.PaymentMethod)
	assert.True(t, tx.UnitPrice.Equal(money("3.99")))
	assert.True(t, tx.TotalAmount.Equal(money("7.98")))
}

func TestPurchaseInsufficientBalance(t *testing.T) {
	l := seedLedger()
	u := l.users[5]
	u.Balance = money("1.00")
	l.users[5] = u
	svc := NewPurchaseService(l, nil)

	_, err := svc.Purchase(context.Background(), 5, 1, 1)
	var balErr *InsufficientBalanceError
	require.ErrorAs(t, err, &balErr)
	assert.True(t, balErr.Balance.Equal(money("1.00")))
	assert.True(t, balErr.Required.Equal(money("3.99")))
	assert.Equal(t, "Insufficient balance. You have $1.00, but need $3.99.", err.Error())

	// Nothing moved.
	assert.Equal(t, int64(10), l.products[1].QuantityAvailable)
	assert.True(t, l.users[5].Balance.Equal(money("1.00")))
	assert.Empty(t, l.txs)
}

func TestPurchaseInsufficientStock(t *testing.T) {
	l := seedLedger()
	svc := NewPurchaseService(l, nil)

	_, err := svc.Purchase(context.Background(), 5, 1, 11)
	var stockErr *InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, int64(10), stockErr.Available)
	assert.Equal(t, "Insufficient stock. Only 10 available.", err.Error())

	assert.Equal(t, int64(10), l.products[1].QuantityAvailable)
	assert.Empty(t, l.txs)
}

func TestPurchaseOutOfStock(t *testing.T) {
	l := seedLedger()
	p := l.products[1]
	p.QuantityAvailable = 0
	l.products[1] = p
	svc := NewPurchaseService(l, nil)

	_, err := svc.Purchase(context.Background(), 5, 1, 1)
	var stockErr *InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, int64(0), stockErr.Available)
}

func TestPurchaseInvalidQuantity(t *testing.T) {
	l := seedLedger()
	svc := NewPurchaseService(l, nil)

	for _, qty := range []int64{0, -1, -100} {
		_, err := svc.Purchase(context.Background(), 5, 1, qty)
		assert.ErrorIs(t, err, ErrInvalidQuantity, "quantity %d", qty)
	}
	assert.Equal(t, int64(10), l.products[1].QuantityAvailable)
}

func TestPurchaseProductNotFound(t *testing.T) {
	svc := NewPurchaseService(seedLedger(), nil)

	_, err := svc.Purchase(context.Background(), 5, 999, 1)
	assert.ErrorIs(t, err, ErrProductNotFound)
}

func TestPurchaseAccountNotFound(t *testing.T) {
	svc := NewPurchaseService(seedLedger(), nil)

	_, err := svc.Purchase(context.Background(), 999, 1, 1)
	assert.ErrorIs(t, err, ErrAccountNotFound)
}

func TestPurchaseInactiveProduct(t *testing.T) {
	l := seedLedger()
	p := l.products[1]
	p.IsActive = false
	l.products[1] = p
	svc := NewPurchaseService(l, nil)

	_, err := svc.Purchase(context.Background(), 5, 1, 1)
	assert.ErrorIs(t, err, ErrProductUnavailable)
	assert.Empty(t, l.txs)
}

func TestPurchaseDeniedForAdmins(t *testing.T) {
	l := seedLedger()
	l.users[9] = model.User{
		ID: 9, Username: "root", Role: model.RoleAdmin, Balance: money("100.00"), IsActive: true,
	}
	svc := NewPurchaseService(l, nil)

	_, err := svc.Purchase(context.Background(), 9, 1, 1)
	assert.ErrorIs(t, err, ErrAdminPurchase)
	assert.Equal(t, int64(10), l.products[1].QuantityAvailable)
	assert.Empty(t, l.txs)
}

func TestPurchaseCustomPolicy(t *testing.T) {
	l := seedLedger()
	allowAll := PolicyFunc(func(model.User) error { return nil })
	l.users[9] = model.User{
		ID: 9, Username: "root", Role: model.RoleAdmin, Balance: money("100.00"), IsActive: true,
	}
	svc := NewPurchaseService(l, allowAll)

	_, err := svc.Purchase(context.Background(), 9, 1, 1)
	assert.NoError(t, err)
}

func TestPurchaseRejectionIsIdempotent(t *testing.T) {
	l := seedLedger()
	u := l.users[5]
	u.Balance = money("1.00")
	l.users[5] = u
	svc := NewPurchaseService(l, nil)

	first, err1 := svc.Purchase(context.Background(), 5, 1, 1)
	second, err2 := svc.Purchase(context.Background(), 5, 1, 1)
	assert.Nil(t, first)
	assert.Nil(t, second)
	assert.Equal(t, err1.Error(), err2.Error())
	assert.True(t, l.users[5].Balance.Equal(money("1.00")))
	assert.Empty(t, l.txs)
}

func TestPurchaseStockRaceRollsBack(t *testing.T) {
	l := seedLedger()
	// A concurrent buyer empties the shelf after the precondition
	// read but before the transaction starts.
	l.beforeTx = func(fl *fakeLedger) {
		p := fl.products[1]
		p.QuantityAvailable = 1
		fl.products[1] = p
		fl.beforeTx = nil
	}
	svc := NewPurchaseService(l, nil)

	_, err := svc.Purchase(context.Background(), 5, 1, 2)
	assert.ErrorIs(t, err, ErrStockUpdateFailed)

	// The transaction rolled back: the racing write survives, ours
	// does not.
	assert.Equal(t, int64(1), l.products[1].QuantityAvailable)
	assert.True(t, l.users[5].Balance.Equal(money("10.00")))
	assert.Empty(t, l.txs)
}

func TestPurchaseUsesLockedPrice(t *testing.T) {
	l := seedLedger()
	// Price doubles between the precondition read and the locked
	// read; the committed snapshot must use the locked price.
	l.beforeTx = func(fl *fakeLedger) {
		p := fl.products[1]
		p.Price = money("5.00")
		fl.products[1] = p
		fl.beforeTx = nil
	}
	svc := NewPurchaseService(l, nil)

	result, err := svc.Purchase(context.Background(), 5, 1, 1)
	require.NoError(t, err)
	assert.True(t, result.UnitPrice.Equal(money("5.00")))
	assert.True(t, result.TotalAmount.Equal(money("5.00")))
	assert.True(t, result.NewBalance.Equal(money("5.00")))
	require.Len(t, l.txs, 1)
	assert.True(t, l.txs[0].UnitPrice.Equal(money("5.00")))
}
