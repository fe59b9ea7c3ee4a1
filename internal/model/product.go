package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product represents a sellable item as stored in the `products`
// table. Each field corresponds to a column in the database. The
// json tags are omitted here because these structs are primarily
// used internally by the repository layer; handlers define
// separate response types with appropriate JSON tags.
//
// Products are never hard-deleted: "deleting" a product flips
// IsActive to false so historical transactions keep a valid
// reference. QuantityAvailable must never go negative; the
// repository enforces that at the SQL level.
//
// Fields:
//  ID                – primary key identifier of the product.
//  Name              – display name.
//  Description       – optional free-form description.
//  Price             – unit price; always > 0 while the product is active.
//  QuantityAvailable – units in stock, never negative.
//  ImageURL          – optional image location.
//  IsActive          – soft-delete flag.
//  CreatedAt         – timestamp of creation.
//  UpdatedAt         – timestamp of last update.
type Product struct {
	ID                uint64          // products.id
	Name              string          // products.name
	Description       *string         // products.description (nullable)
	Price             decimal.Decimal // products.price
	QuantityAvailable int64           // products.quantity_available
	ImageURL          *string         // products.image_url (nullable)
	IsActive          bool            // products.is_active
	CreatedAt         time.Time       // products.created_at
	UpdatedAt         time.Time       // products.updated_at
}

// InStock reports whether at least quantity units are available.
func (p Product) InStock(quantity int64) bool {
	return p.QuantityAvailable >= quantity
}
