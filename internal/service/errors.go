package service

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Purchase error kinds. Each precondition failure has its own kind so
// the API layer can map them to distinct statuses and messages.
var (
	ErrInvalidQuantity    = errors.New("quantity must be at least 1")
	ErrProductNotFound    = errors.New("product not found")
	ErrProductUnavailable = errors.New("product is not available")
	ErrAccountNotFound    = errors.New("account not found")
	ErrAdminPurchase      = errors.New("administrators cannot make purchases")

	// ErrStockUpdateFailed and ErrBalanceUpdateFailed report a guard
	// trip inside the transaction: a concurrent purchase consumed the
	// stock or balance between the precondition check and the update.
	ErrStockUpdateFailed   = errors.New("failed to update stock")
	ErrBalanceUpdateFailed = errors.New("failed to update balance")

	// ErrPurchaseFailed wraps unexpected causes (driver errors,
	// broken connections) so callers can answer generically.
	ErrPurchaseFailed = errors.New("purchase failed")
)

// InsufficientStockError reports a purchase that asked for more units
// than are in stock. Available carries the units still on hand.
type InsufficientStockError struct {
	Available int64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("Insufficient stock. Only %d available.", e.Available)
}

// InsufficientBalanceError reports a purchase the buyer cannot
// afford. Balance is what they have, Required what the purchase
// costs.
type InsufficientBalanceError struct {
	Balance  decimal.Decimal
	Required decimal.Decimal
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("Insufficient balance. You have $%s, but need $%s.",
		e.Balance.StringFixed(2), e.Required.StringFixed(2))
}
