// Package queue defines message payloads exchanged over the message
// broker, plus the publisher and background consumer for them.
package queue

// PurchaseCompletedEvent is published after a purchase commits. It
// carries enough for downstream consumers to log, notify or feed
// analytics without querying the primary database. Amounts are
// decimal strings to keep broker payloads exact.
type PurchaseCompletedEvent struct {
	TransactionID uint64 `json:"transaction_id"`
	UserID        uint64 `json:"user_id"`
	Username      string `json:"username"`
	ProductID     uint64 `json:"product_id"`
	ProductName   string `json:"product_name"`
	Quantity      int64  `json:"quantity"`
	UnitPrice     string `json:"unit_price"`
	TotalAmount   string `json:"total_amount"`
	NewBalance    string `json:"new_balance"`
	CompletedAt   string `json:"completed_at"`
}
