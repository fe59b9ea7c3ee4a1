package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vendingstore/internal/middleware"
	"vendingstore/internal/model"
	"vendingstore/internal/repository"
	"vendingstore/internal/service"
)

// memLedger is a minimal in-memory repository.Ledger for exercising
// the handler against a real PurchaseService.
type memLedger struct {
	products map[uint64]model.Product
	users    map[uint64]model.User
	txs      []model.Transaction
}

func (l *memLedger) Product(_ context.Context, id uint64) (model.Product, error) {
	p, ok := l.products[id]
	if !ok {
		return model.Product{}, repository.ErrProductNotFound
	}
	return p, nil
}

func (l *memLedger) User(_ context.Context, id uint64) (model.User, error) {
	u, ok := l.users[id]
	if !ok {
		return model.User{}, repository.ErrUserNotFound
	}
	return u, nil
}

func (l *memLedger) InTx(_ context.Context, fn func(repository.LedgerTx) error) error {
	return fn(&memLedgerTx{l: l})
}

type memLedgerTx struct{ l *memLedger }

func (t *memLedgerTx) ProductForUpdate(ctx context.Context, id uint64) (model.Product, error) {
	return t.l.Product(ctx, id)
}

func (t *memLedgerTx) UserForUpdate(ctx context.Context, id uint64) (model.User, error) {
	return t.l.User(ctx, id)
}

func (t *memLedgerTx) AdjustQuantity(_ context.Context, productID uint64, delta int64) error {
	p := t.l.products[productID]
	if p.QuantityAvailable+delta < 0 {
		return repository.ErrQuantityBelowZero
	}
	p.QuantityAvailable += delta
	t.l.products[productID] = p
	return nil
}

func (t *memLedgerTx) AdjustBalance(_ context.Context, userID uint64, amount decimal.Decimal) error {
	u := t.l.users[userID]
	if u.Balance.Add(amount).IsNegative() {
		return repository.ErrBalanceBelowZero
	}
	u.Balance = u.Balance.Add(amount)
	t.l.users[userID] = u
	return nil
}

func (t *memLedgerTx) CreateTransaction(_ context.Context, tr *model.Transaction) error {
	tr.ID = uint64(len(t.l.txs) + 1)
	t.l.txs = append(t.l.txs, *tr)
	return nil
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func newPurchaseTestEnv() (*memLedger, *PurchaseHandler) {
	l := &memLedger{
		products: map[uint64]model.Product{
			1: {ID: 1, Name: "Cola", Price: dec("3.99"), QuantityAvailable: 10, IsActive: true},
		},
		users: map[uint64]model.User{
			5: {ID: 5, Username: "alice", Role: model.RoleUser, Balance: dec("10.00"), IsActive: true},
			9: {ID: 9, Username: "root", Role: model.RoleAdmin, Balance: dec("99.00"), IsActive: true},
		},
	}
	svc := service.NewPurchaseService(l, nil)
	return l, NewPurchaseHandler(svc, nil)
}

func doPurchase(h *PurchaseHandler, id middleware.Identity, productID, body string) *httptest.ResponseRecorder {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/products/"+productID+"/purchase", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetPath("/api/products/:id/purchase")
	c.SetParamNames("id")
	c.SetParamValues(productID)
	c.Set("identity", id)
	_ = h.Purchase(c)
	return rec
}

func TestPurchaseHandlerSuccess(t *testing.T) {
	l, h := newPurchaseTestEnv()

	rec := doPurchase(h, middleware.Identity{UserID: 5, Username: "alice", Role: "user"}, "1", `{"quantity":2}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
		Data    struct {
			TransactionID uint64 `json:"transaction_id"`
			Product       struct {
				ID   uint64 `json:"id"`
				Name string `json:"name"`
			} `json:"product"`
			Quantity    int64  `json:"quantity"`
			UnitPrice   string `json:"unit_price"`
			TotalAmount string `json:"total_amount"`
			NewBalance  string `json:"new_balance"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "Purchase successful!", resp.Message)
	assert.Equal(t, uint64(1), resp.Data.TransactionID)
	assert.Equal(t, "Cola", resp.Data.Product.Name)
	assert.Equal(t, int64(2), resp.Data.Quantity)
	assert.Equal(t, "3.99", resp.Data.UnitPrice)
	assert.Equal(t, "7.98", resp.Data.TotalAmount)
	assert.Equal(t, "2.02", resp.Data.NewBalance)

	assert.Equal(t, int64(8), l.products[1].QuantityAvailable)
}

func TestPurchaseHandlerDefaultsQuantityToOne(t *testing.T) {
	l, h := newPurchaseTestEnv()

	rec := doPurchase(h, middleware.Identity{UserID: 5, Username: "alice", Role: "user"}, "1", `{}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(9), l.products[1].QuantityAvailable)
}

func TestPurchaseHandlerErrorMapping(t *testing.T) {
	cases := []struct {
		name       string
		identity   middleware.Identity
		productID  string
		body       string
		wantStatus int
		wantError  string
	}{
		{
			name:       "invalid quantity",
			identity:   middleware.Identity{UserID: 5, Role: "user"},
			productID:  "1",
			body:       `{"quantity":0}`,
			wantStatus: http.StatusUnprocessableEntity,
			wantError:  "quantity must be at least 1",
		},
		{
			name:       "product not found",
			identity:   middleware.Identity{UserID: 5, Role: "user"},
			productID:  "999",
			body:       `{"quantity":1}`,
			wantStatus: http.StatusNotFound,
			wantError:  "product not found",
		},
		{
			name:       "insufficient stock",
			identity:   middleware.Identity{UserID: 5, Role: "user"},
			productID:  "1",
			body:       `{"quantity":100}`,
			wantStatus: http.StatusBadRequest,
			wantError:  "Insufficient stock. Only 10 available.",
		},
		{
			name:       "admin cannot purchase",
			identity:   middleware.Identity{UserID: 9, Username: "root", Role: "admin"},
			productID:  "1",
			body:       `{"quantity":1}`,
			wantStatus: http.StatusForbidden,
			wantError:  "administrators cannot make purchases",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, h := newPurchaseTestEnv()
			rec := doPurchase(h, tc.identity, tc.productID, tc.body)

			assert.Equal(t, tc.wantStatus, rec.Code)
			var resp struct {
				Success bool   `json:"success"`
				Error   string `json:"error"`
			}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.False(t, resp.Success)
			assert.Equal(t, tc.wantError, resp.Error)
		})
	}
}

func TestPurchaseHandlerInsufficientBalance(t *testing.T) {
	l, h := newPurchaseTestEnv()
	u := l.users[5]
	u.Balance = dec("1.00")
	l.users[5] = u

	rec := doPurchase(h, middleware.Identity{UserID: 5, Username: "alice", Role: "user"}, "1", `{"quantity":1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Insufficient balance. You have $1.00, but need $3.99.")
	assert.True(t, l.users[5].Balance.Equal(dec("1.00")))
	assert.Equal(t, int64(10), l.products[1].QuantityAvailable)
}
