package tracking

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Repository handles database operations for users, products and view events.
type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// uniqueViolation is the Postgres error code for a unique constraint conflict.
const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	pqErr, ok := err.(*pq.Error)
	return ok && pqErr.Code == uniqueViolation
}

// FindUserByEmail returns the user with the given email, or nil if none exists.
func (r *Repository) FindUserByEmail(ctx context.Context, email string) (*User, error) {
	query := `
		SELECT id, email, COALESCE(display_name, ''), COALESCE(phone, ''), created_at
		FROM users WHERE email = $1
	`
	var u User
	err := r.db.QueryRowContext(ctx, query, email).Scan(&u.ID, &u.Email, &u.DisplayName, &u.Phone, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, &PersistenceError{Op: "find user", Err: err}
	}
	return &u, nil
}

// FindOrCreateUserByEmail resolves a user by email, creating one if absent.
// Existing fields are never overwritten. A unique-constraint conflict on
// insert means another request created the row first; it is re-fetched.
func (r *Repository) FindOrCreateUserByEmail(ctx context.Context, email string) (*User, error) {
	u, err := r.FindUserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if u != nil {
		return u, nil
	}

	u = &User{
		ID:        uuid.New().String(),
		Email:     email,
		CreatedAt: time.Now().UTC(),
	}
	query := `INSERT INTO users (id, email, created_at) VALUES ($1, $2, $3)`
	if _, err := r.db.ExecContext(ctx, query, u.ID, u.Email, u.CreatedAt); err != nil {
		if isUniqueViolation(err) {
			return r.FindUserByEmail(ctx, email)
		}
		return nil, &PersistenceError{Op: "create user", Err: err}
	}
	return u, nil
}

// FindProductByID returns the product with the given external product_id,
// or nil if none exists.
func (r *Repository) FindProductByID(ctx context.Context, productID string) (*Product, error) {
	query := `
		SELECT id, product_id, name, COALESCE(description, ''), COALESCE(price_cents, 0), created_at
		FROM products WHERE product_id = $1
	`
	var p Product
	err := r.db.QueryRowContext(ctx, query, productID).Scan(&p.ID, &p.ProductID, &p.Name, &p.Description, &p.PriceCents, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, &PersistenceError{Op: "find product", Err: err}
	}
	return &p, nil
}

// FindOrCreateProduct resolves a product by its external id, creating it with
// the supplied name if absent. An existing product's name is NOT overwritten.
func (r *Repository) FindOrCreateProduct(ctx context.Context, productID, name string) (*Product, error) {
	p, err := r.FindProductByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	if p != nil {
		return p, nil
	}

	p = &Product{
		ID:        uuid.New().String(),
		ProductID: productID,
		Name:      name,
		CreatedAt: time.Now().UTC(),
	}
	query := `INSERT INTO products (id, product_id, name, created_at) VALUES ($1, $2, $3, $4)`
	if _, err := r.db.ExecContext(ctx, query, p.ID, p.ProductID, p.Name, p.CreatedAt); err != nil {
		if isUniqueViolation(err) {
			return r.FindProductByID(ctx, productID)
		}
		return nil, &PersistenceError{Op: "create product", Err: err}
	}
	return p, nil
}

// InsertViewEvent persists a single view event. The event is immutable once
// written.
func (r *Repository) InsertViewEvent(ctx context.Context, v *ViewEvent) error {
	v.ID = uuid.New().String()
	v.CreatedAt = time.Now().UTC()

	query := `
		INSERT INTO view_events (id, user_id, product_id, product_name, viewed_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.db.ExecContext(ctx, query, v.ID, v.UserID, v.ProductID, v.ProductName, v.ViewedAt, v.CreatedAt)
	if err != nil {
		return &PersistenceError{Op: "insert view event", Err: err}
	}
	return nil
}

// ViewsSince returns all view events with viewed_at >= since, joined to their
// user. Events without a resolvable user are excluded: a reminder needs a
// deliverable address. Ordered by viewed_at so grouping preserves encounter
// order.
func (r *Repository) ViewsSince(ctx context.Context, since time.Time) ([]UserView, error) {
	query := `
		SELECT u.id, u.email, COALESCE(u.display_name, ''), COALESCE(u.phone, ''),
		       v.product_id, v.product_name, v.viewed_at
		FROM view_events v
		JOIN users u ON u.id = v.user_id
		WHERE v.viewed_at >= $1
		ORDER BY v.viewed_at ASC
	`
	rows, err := r.db.QueryContext(ctx, query, since)
	if err != nil {
		return nil, &PersistenceError{Op: "query recent views", Err: err}
	}
	defer rows.Close()

	var views []UserView
	for rows.Next() {
		var uv UserView
		if err := rows.Scan(&uv.UserID, &uv.Email, &uv.DisplayName, &uv.Phone, &uv.ProductID, &uv.ProductName, &uv.ViewedAt); err != nil {
			return nil, &PersistenceError{Op: "scan view row", Err: err}
		}
		views = append(views, uv)
	}
	if err := rows.Err(); err != nil {
		return nil, &PersistenceError{Op: "iterate view rows", Err: err}
	}
	return views, nil
}

// RecentViewsByEmail returns the view events recorded for a user since the
// given instant, newest first.
func (r *Repository) RecentViewsByEmail(ctx context.Context, email string, since time.Time) ([]*ViewEvent, error) {
	query := `
		SELECT v.id, v.user_id, v.product_id, v.product_name, v.viewed_at, v.created_at
		FROM view_events v
		JOIN users u ON u.id = v.user_id
		WHERE u.email = $1 AND v.viewed_at >= $2
		ORDER BY v.viewed_at DESC
	`
	rows, err := r.db.QueryContext(ctx, query, email, since)
	if err != nil {
		return nil, &PersistenceError{Op: "query views by email", Err: err}
	}
	defer rows.Close()

	var events []*ViewEvent
	for rows.Next() {
		var v ViewEvent
		if err := rows.Scan(&v.ID, &v.UserID, &v.ProductID, &v.ProductName, &v.ViewedAt, &v.CreatedAt); err != nil {
			return nil, &PersistenceError{Op: "scan view event", Err: err}
		}
		events = append(events, &v)
	}
	return events, rows.Err()
}
