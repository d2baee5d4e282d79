package tracking

import (
	"time"
)

// User is an identity record, resolved lazily by email on the first view.
type User struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name,omitempty"`
	Phone       string    `json:"phone,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Product is a catalog record. ProductID is caller-supplied and unique;
// Name is set on first creation and never overwritten by later views.
type Product struct {
	ID          string    `json:"id"`
	ProductID   string    `json:"product_id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	PriceCents  int64     `json:"price_cents,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// ViewEvent is an immutable fact that someone looked at a product.
// ProductName is a snapshot taken at write time and does not follow renames.
// UserID is nil for anonymous views.
type ViewEvent struct {
	ID          string    `json:"id"`
	UserID      *string   `json:"user_id"`
	ProductID   string    `json:"product_id"`
	ProductName string    `json:"product_name"`
	ViewedAt    time.Time `json:"viewed_at"`
	CreatedAt   time.Time `json:"created_at"`
}

// UserView is a view event joined to its user, as consumed by the scanner.
// Rows without a resolvable user are filtered out at the query level.
type UserView struct {
	UserID      string
	Email       string
	DisplayName string
	Phone       string
	ProductID   string
	ProductName string
	ViewedAt    time.Time
}
