package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction status values. Only StatusCompleted is produced by the
// purchase workflow; the remaining states exist for out-of-band
// processes such as refunds.
const (
	StatusCompleted = "completed"
	StatusPending   = "pending"
	StatusCancelled = "cancelled"
	StatusRefunded  = "refunded"
)

// PaymentMethodBalance tags purchases settled against the internal
// ledger balance.
const PaymentMethodBalance = "balance"

// Transaction records a completed purchase in the `transactions`
// table. UnitPrice and TotalAmount are snapshots taken at purchase
// time: they deliberately do not track later changes to the product
// price. Once created with status "completed", quantity and the two
// amounts are immutable; only the status may transition later.
//
// Fields:
//  ID              – primary key identifier.
//  UserID          – buyer; immutable after creation.
//  ProductID       – purchased product; immutable after creation.
//  Quantity        – units bought, always >= 1.
//  UnitPrice       – product price snapshot at purchase time.
//  TotalAmount     – Quantity x UnitPrice snapshot.
//  Status          – completed | pending | cancelled | refunded.
//  PaymentMethod   – settlement tag, defaults to "balance".
//  Notes           – optional free-form note.
//  TransactionDate – set at creation, immutable.
type Transaction struct {
	ID              uint64          // transactions.id
	UserID          uint64          // transactions.user_id
	ProductID       uint64          // transactions.product_id
	Quantity        int64           // transactions.quantity
	UnitPrice       decimal.Decimal // transactions.unit_price
	TotalAmount     decimal.Decimal // transactions.total_amount
	Status          string          // transactions.status
	PaymentMethod   string          // transactions.payment_method
	Notes           *string         // transactions.notes (nullable)
	TransactionDate time.Time       // transactions.transaction_date
}
