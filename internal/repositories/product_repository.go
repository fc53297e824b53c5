package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/trinity-shop/trinity-platform/internal/models"
	"github.com/trinity-shop/trinity-platform/internal/utils"
)

// ErrInsufficientStock is returned when a conditional stock decrement touches
// no row, meaning the remaining stock is below the requested quantity.
var ErrInsufficientStock = errors.New("insufficient stock")

type ProductRepository interface {
	CreateProduct(ctx context.Context, product *models.Product) error
	GetProductByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
	UpdateProduct(ctx context.Context, product *models.Product) error
	ListProducts(ctx context.Context, page, size int) ([]*models.Product, int, error)
	DecrementStock(ctx context.Context, q Querier, id uuid.UUID, quantity int) error
	IncrementStock(ctx context.Context, q Querier, id uuid.UUID, quantity int) error
}

type productRepository struct {
	DB *sql.DB
}

func NewProductRepo(db *sql.DB) ProductRepository {
	return &productRepository{DB: db}
}

func (r *productRepository) CreateProduct(ctx context.Context, product *models.Product) error {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	query := `
		INSERT INTO products (id, category_id, name, description, price, stock, sku, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at
	`

	return r.DB.QueryRowContext(dbCtx, query,
		product.ID, product.CategoryID, product.Name, product.Description,
		product.Price, product.Stock, product.SKU, product.Status,
	).Scan(&product.CreatedAt, &product.UpdatedAt)
}

func (r *productRepository) GetProductByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	product := &models.Product{}

	query := `
		SELECT p.id, p.category_id, p.name, p.description, p.price,
		       p.stock, p.sku, p.status, p.created_at, p.updated_at
		FROM products p
		WHERE p.id = $1`

	err := r.DB.QueryRowContext(dbCtx, query, id).Scan(
		&product.ID, &product.CategoryID, &product.Name, &product.Description,
		&product.Price, &product.Stock, &product.SKU, &product.Status,
		&product.CreatedAt, &product.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}

		return nil, fmt.Errorf("querying database: %w", err)
	}

	return product, nil
}

func (r *productRepository) UpdateProduct(ctx context.Context, product *models.Product) error {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	query := `
		UPDATE products
		SET category_id = $1, name = $2, description = $3, price = $4, stock = $5, status = $6, updated_at = NOW()
		WHERE id = $7
		RETURNING updated_at
	`

	return r.DB.QueryRowContext(dbCtx, query,
		product.CategoryID, product.Name, product.Description, product.Price,
		product.Stock, product.Status, product.ID,
	).Scan(&product.UpdatedAt)
}

func (r *productRepository) ListProducts(ctx context.Context, page, size int) ([]*models.Product, int, error) {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	var total int

	countQuery := `SELECT COUNT(*) FROM products`

	err := r.DB.QueryRowContext(dbCtx, countQuery).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * size

	query := `
		SELECT p.id, p.category_id, p.name, p.description, p.price,
		       p.stock, p.sku, p.status, p.created_at, p.updated_at
		FROM products p
		ORDER BY p.created_at
		LIMIT $1 OFFSET $2
	`

	rows, err := r.DB.QueryContext(dbCtx, query, size, offset)
	if err != nil {
		return nil, 0, err
	}

	defer rows.Close()

	var products []*models.Product

	for rows.Next() {
		product := &models.Product{}

		err := rows.Scan(
			&product.ID, &product.CategoryID, &product.Name, &product.Description,
			&product.Price, &product.Stock, &product.SKU, &product.Status,
			&product.CreatedAt, &product.UpdatedAt,
		)
		if err != nil {
			return nil, 0, err
		}

		products = append(products, product)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	return products, total, nil
}

// DecrementStock is the atomic unit of truth for stock reservation. The
// conditional WHERE clause rejects the decrement when the remaining stock is
// below the requested quantity, instead of read-modify-writing in application
// code.
func (r *productRepository) DecrementStock(ctx context.Context, q Querier, id uuid.UUID, quantity int) error {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	query := `
		UPDATE products
		SET stock = stock - $2, updated_at = NOW()
		WHERE id = $1 AND stock >= $2
	`

	result, err := q.ExecContext(dbCtx, query, id, quantity)
	if err != nil {
		return fmt.Errorf("failed to decrement stock: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}

	if affected == 0 {
		return ErrInsufficientStock
	}

	return nil
}

func (r *productRepository) IncrementStock(ctx context.Context, q Querier, id uuid.UUID, quantity int) error {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	query := `
		UPDATE products
		SET stock = stock + $2, updated_at = NOW()
		WHERE id = $1
	`

	result, err := q.ExecContext(dbCtx, query, id, quantity)
	if err != nil {
		return fmt.Errorf("failed to increment stock: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}

	if affected == 0 {
		return sql.ErrNoRows
	}

	return nil
}
