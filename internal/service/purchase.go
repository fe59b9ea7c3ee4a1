package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"vendingstore/internal/model"
	"vendingstore/internal/repository"
)

// PurchasePolicy decides whether a user may buy at all, independent
// of stock and balance. The policy is injected so deployments can
// swap the rule without touching the workflow.
type PurchasePolicy interface {
	CanPurchase(u model.User) error
}

// PolicyFunc adapts a function to the PurchasePolicy interface.
type PolicyFunc func(u model.User) error

func (f PolicyFunc) CanPurchase(u model.User) error { return f(u) }

// DenyAdminPurchases is the default policy: admin accounts manage the
// catalog, they do not buy from it.
func DenyAdminPurchases() PurchasePolicy {
	return PolicyFunc(func(u model.User) error {
		if u.IsAdmin() {
			return ErrAdminPurchase
		}
		return nil
	})
}

// PurchaseResult is what a successful purchase returns to the caller.
type PurchaseResult struct {
	TransactionID uint64
	ProductID     uint64
	ProductName   string
	Quantity      int64
	UnitPrice     decimal.Decimal
	TotalAmount   decimal.Decimal
	NewBalance    decimal.Decimal
}

// PurchaseService runs the buy-with-balance workflow against an
// injected ledger.
type PurchaseService struct {
	ledger repository.Ledger
	policy PurchasePolicy
}

// NewPurchaseService constructs a PurchaseService. A nil policy
// defaults to DenyAdminPurchases.
func NewPurchaseService(ledger repository.Ledger, policy PurchasePolicy) *PurchaseService {
	if policy == nil {
		policy = DenyAdminPurchases()
	}
	return &PurchaseService{ledger: ledger, policy: policy}
}

// Purchase executes one purchase: validate, then atomically debit
// stock and balance and record the transaction. Preconditions are
// checked in a fixed order so a request that fails several of them
// always reports the same error. Nothing is mutated unless every
// check passes and the whole transaction commits.
func (s *PurchaseService) Purchase(ctx context.Context, userID, productID uint64, quantity int64) (*PurchaseResult, error) {
	if quantity < 1 {
		return nil, ErrInvalidQuantity
	}

	product, err := s.ledger.Product(ctx, productID)
	if err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrPurchaseFailed, err)
	}
	if !product.IsActive {
		return nil, ErrProductUnavailable
	}
	if !product.InStock(quantity) {
		return nil, &InsufficientStockError{Available: product.QuantityAvailable}
	}

	user, err := s.ledger.User(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrPurchaseFailed, err)
	}
	if err := s.policy.CanPurchase(user); err != nil {
		return nil, err
	}

	total := product.Price.Mul(decimal.NewFromInt(quantity))
	if user.Balance.LessThan(total) {
		return nil, &InsufficientBalanceError{Balance: user.Balance, Required: total}
	}

	var result *PurchaseResult
	err = s.ledger.InTx(ctx, func(tx repository.LedgerTx) error {
		// Re-read both rows under locks: the unlocked precondition
		// reads may be stale by now. Lock order is product then user
		// everywhere, so concurrent purchases cannot deadlock.
		locked, err := tx.ProductForUpdate(ctx, productID)
		if err != nil {
			return err
		}
		if !locked.IsActive {
			return ErrProductUnavailable
		}
		buyer, err := tx.UserForUpdate(ctx, userID)
		if err != nil {
			return err
		}

		// Price may have changed since the precondition read; the
		// locked row is authoritative.
		total = locked.Price.Mul(decimal.NewFromInt(quantity))

		if err := tx.AdjustQuantity(ctx, productID, -quantity); err != nil {
			if errors.Is(err, repository.ErrQuantityBelowZero) {
				return ErrStockUpdateFailed
			}
			return err
		}
		if err := tx.AdjustBalance(ctx, userID, total.Neg()); err != nil {
			if errors.Is(err, repository.ErrBalanceBelowZero) {
				return ErrBalanceUpdateFailed
			}
			return err
		}

		t := &model.Transaction{
			UserID:        userID,
			ProductID:     productID,
			Quantity:      quantity,
			UnitPrice:     locked.Price,
			TotalAmount:   total,
			Status:        model.StatusCompleted,
			PaymentMethod: model.PaymentMethodBalance,
		}
		if err := tx.CreateTransaction(ctx, t); err != nil {
			return err
		}

		result = &PurchaseResult{
			TransactionID: t.ID,
			ProductID:     locked.ID,
			ProductName:   locked.Name,
			Quantity:      quantity,
			UnitPrice:     locked.Price,
			TotalAmount:   total,
			NewBalance:    buyer.Balance.Sub(total),
		}
		return nil
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrProductUnavailable),
			errors.Is(err, ErrStockUpdateFailed),
			errors.Is(err, ErrBalanceUpdateFailed):
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrPurchaseFailed, err)
	}
	return result, nil
}
