package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"vendingstore/internal/model"
)

// productColumns is the column list shared by every product SELECT so
// scanProduct stays in sync with the queries.
const productColumns = "id, name, description, price, quantity_available, image_url, is_active, created_at, updated_at"

// ProductRepo provides access to the products table.
type ProductRepo struct {
	db *sql.DB
}

// NewProductRepo constructs a ProductRepo with the given DB handle.
func NewProductRepo(db *sql.DB) *ProductRepo {
	return &ProductRepo{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (model.Product, error) {
	var p model.Product
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Price,
		&p.QuantityAvailable, &p.ImageURL, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

// GetByID retrieves a product regardless of its active flag. Callers
// that only want purchasable products check IsActive themselves.
func (r *ProductRepo) GetByID(ctx context.Context, id uint64) (model.Product, error) {
	p, err := scanProduct(r.db.QueryRowContext(ctx,
		"SELECT "+productColumns+" FROM products WHERE id=? LIMIT 1", id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Product{}, ErrProductNotFound
	}
	return p, err
}

// ProductPageQuery describes one catalog page request.
type ProductPageQuery struct {
	Page       int
	PerPage    int
	SortBy     string
	SortDir    string // "asc" or "desc"
	ActiveOnly bool
}

// ProductPage is a page of catalog results plus paging metadata.
// From/To are 1-based positions of the first and last item on the
// page within the full result set; both are 0 on an empty set.
type ProductPage struct {
	Items       []model.Product
	Total       int64
	PerPage     int
	CurrentPage int
	LastPage    int
	From        int64
	To          int64
}

// sortColumns whitelists caller-supplied sort fields. Anything else
// falls back to name.
var sortColumns = map[string]string{
	"id":                 "id",
	"name":               "name",
	"price":              "price",
	"quantity_available": "quantity_available",
	"created_at":         "created_at",
}

func orderByColumn(sortBy string) string {
	if col, ok := sortColumns[sortBy]; ok {
		return col
	}
	return "name"
}

// Paginate returns one page of products ordered by the requested
// column. The sort column is whitelisted and the direction normalized,
// so neither can inject SQL.
func (r *ProductRepo) Paginate(ctx context.Context, q ProductPageQuery) (ProductPage, error) {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PerPage < 1 {
		q.PerPage = 10
	}
	where := ""
	if q.ActiveOnly {
		where = " WHERE is_active = 1"
	}

	var total int64
	if err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM products"+where).Scan(&total); err != nil {
		return ProductPage{}, err
	}

	dir := "ASC"
	if strings.EqualFold(q.SortDir, "desc") {
		dir = "DESC"
	}
	offset := (q.Page - 1) * q.PerPage
	query := fmt.Sprintf("SELECT %s FROM products%s ORDER BY %s %s LIMIT ? OFFSET ?",
		productColumns, where, orderByColumn(q.SortBy), dir)

	rows, err := r.db.QueryContext(ctx, query, q.PerPage, offset)
	if err != nil {
		return ProductPage{}, err
	}
	defer rows.Close()

	var items []model.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return ProductPage{}, err
		}
		items = append(items, p)
	}
	if err := rows.Err(); err != nil {
		return ProductPage{}, err
	}

	page := ProductPage{
		Items:       items,
		Total:       total,
		PerPage:     q.PerPage,
		CurrentPage: q.Page,
		LastPage:    int((total + int64(q.PerPage) - 1) / int64(q.PerPage)),
	}
	if page.LastPage < 1 {
		page.LastPage = 1
	}
	if total > 0 && len(items) > 0 {
		page.From = int64(offset) + 1
		page.To = int64(offset) + int64(len(items))
	}
	return page, nil
}

// Search finds active products whose name or description contains the
// term, case-insensitively, ordered by name. No pagination: search
// results are expected to stay small.
func (r *ProductRepo) Search(ctx context.Context, term string) ([]model.Product, error) {
	like := "%" + strings.ToLower(strings.TrimSpace(term)) + "%"
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+productColumns+` FROM products
		 WHERE is_active = 1
		   AND (LOWER(name) LIKE ? OR LOWER(COALESCE(description,'')) LIKE ?)
		 ORDER BY name`, like, like)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []model.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Create inserts a product and returns the stored row so the caller
// sees database-assigned timestamps.
func (r *ProductRepo) Create(ctx context.Context, name string, description *string, price decimal.Decimal, quantity int64, imageURL *string) (model.Product, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO products (name, description, price, quantity_available, image_url)
		 VALUES (?,?,?,?,?)`,
		name, description, price, quantity, imageURL)
	if err != nil {
		return model.Product{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.Product{}, err
	}
	return r.GetByID(ctx, uint64(id))
}

// ProductUpdate carries the fields of a partial product update. Nil
// fields are left untouched.
type ProductUpdate struct {
	Name        *string
	Description *string
	Price       *decimal.Decimal
	Quantity    *int64
	ImageURL    *string
	IsActive    *bool
}

// Update applies a partial update and returns the stored row.
func (r *ProductRepo) Update(ctx context.Context, id uint64, u ProductUpdate) (model.Product, error) {
	var (
		sets []string
		args []any
	)
	add := func(col string, v any) {
		sets = append(sets, col+" = ?")
		args = append(args, v)
	}
	if u.Name != nil {
		add("name", *u.Name)
	}
	if u.Description != nil {
		add("description", *u.Description)
	}
	if u.Price != nil {
		add("price", *u.Price)
	}
	if u.Quantity != nil {
		add("quantity_available", *u.Quantity)
	}
	if u.ImageURL != nil {
		add("image_url", *u.ImageURL)
	}
	if u.IsActive != nil {
		add("is_active", *u.IsActive)
	}
	if len(sets) == 0 {
		return r.GetByID(ctx, id)
	}
	sets = append(sets, "updated_at = NOW()")
	args = append(args, id)

	res, err := r.db.ExecContext(ctx,
		"UPDATE products SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...)
	if err != nil {
		return model.Product{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// RowsAffected is 0 both for a missing row and for a no-op
		// update, so confirm existence with the follow-up read.
		if _, err := r.GetByID(ctx, id); err != nil {
			return model.Product{}, err
		}
	}
	return r.GetByID(ctx, id)
}

// Deactivate soft-deletes a product. Historical transactions keep
// referencing the row.
func (r *ProductRepo) Deactivate(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE products SET is_active = 0, updated_at = NOW() WHERE id = ?", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// AdjustQuantity shifts stock by delta outside any purchase, e.g. an
// admin restock. The guard keeps the result non-negative.
func (r *ProductRepo) AdjustQuantity(ctx context.Context, id uint64, delta int64) error {
	return adjustQuantity(ctx, r.db, id, delta)
}

// GetForUpdateTx reads a product inside tx with a row lock held until
// commit or rollback.
func (r *ProductRepo) GetForUpdateTx(ctx context.Context, tx *sql.Tx, id uint64) (model.Product, error) {
	p, err := scanProduct(tx.QueryRowContext(ctx,
		"SELECT "+productColumns+" FROM products WHERE id=? FOR UPDATE", id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Product{}, ErrProductNotFound
	}
	return p, err
}

// AdjustQuantityTx is the in-transaction variant of AdjustQuantity.
func (r *ProductRepo) AdjustQuantityTx(ctx context.Context, tx *sql.Tx, id uint64, delta int64) error {
	return adjustQuantity(ctx, tx, id, delta)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// adjustQuantity applies the guarded stock shift: the WHERE clause
// refuses any delta that would take quantity_available below zero, so
// concurrent purchases can never oversell.
func adjustQuantity(ctx context.Context, ex execer, id uint64, delta int64) error {
	res, err := ex.ExecContext(ctx,
		`UPDATE products
		 SET quantity_available = quantity_available + ?, updated_at = NOW()
		 WHERE id = ? AND quantity_available + ? >= 0`,
		delta, id, delta)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrQuantityBelowZero
	}
	return nil
}
