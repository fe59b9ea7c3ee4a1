package repository

import "errors"

// Sentinel errors shared by the repositories. Handlers and services
// translate these into their own error kinds or HTTP statuses.
var (
	ErrProductNotFound     = errors.New("product not found")
	ErrUserNotFound        = errors.New("user not found")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrUsernameExists      = errors.New("username already exists")
	ErrEmailExists         = errors.New("email already exists")

	// ErrQuantityBelowZero reports a guarded stock adjustment that
	// would have driven quantity_available negative.
	ErrQuantityBelowZero = errors.New("quantity would go below zero")

	// ErrBalanceBelowZero reports a guarded balance adjustment that
	// would have driven the user balance negative.
	ErrBalanceBelowZero = errors.New("balance would go below zero")
)
