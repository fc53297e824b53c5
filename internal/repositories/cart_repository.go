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

// ErrCartAlreadySettled is returned by SettleCart when the PENDING
// compare-and-swap touches no row, meaning a concurrent capture settled the
// cart first.
var ErrCartAlreadySettled = errors.New("cart already settled")

type CartRepository interface {
	CreateCart(ctx context.Context, cart *models.Cart) error
	GetActiveCartByUserID(ctx context.Context, userID uuid.UUID) (*models.Cart, error)
	GetCartByID(ctx context.Context, id uuid.UUID) (*models.Cart, error)
	InsertItem(ctx context.Context, item *models.CartItem) error
	UpdateItem(ctx context.Context, item *models.CartItem) error
	DeleteItem(ctx context.Context, id uuid.UUID) error
	SaveCart(ctx context.Context, cart *models.Cart) error
	ClearItems(ctx context.Context, cartID uuid.UUID) error
	SettleCart(ctx context.Context, q Querier, cartID uuid.UUID) error
}

type cartRepository struct {
	DB *sql.DB
}

func NewCartRepo(db *sql.DB) CartRepository {
	return &cartRepository{DB: db}
}

func (r *cartRepository) CreateCart(ctx context.Context, cart *models.Cart) error {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	query := `
		INSERT INTO carts (id, user_id, total_price, status)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at
	`

	return r.DB.QueryRowContext(dbCtx, query, cart.ID, cart.UserID, cart.TotalPrice, cart.Status).
		Scan(&cart.CreatedAt, &cart.UpdatedAt)
}

func (r *cartRepository) GetActiveCartByUserID(ctx context.Context, userID uuid.UUID) (*models.Cart, error) {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	query := `
		SELECT id, user_id, total_price, status, coupon_id, created_at, updated_at
		FROM carts
		WHERE user_id = $1 AND status = 'PENDING'
	`

	return r.scanCart(dbCtx, query, userID)
}

func (r *cartRepository) GetCartByID(ctx context.Context, id uuid.UUID) (*models.Cart, error) {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	query := `
		SELECT id, user_id, total_price, status, coupon_id, created_at, updated_at
		FROM carts
		WHERE id = $1
	`

	return r.scanCart(dbCtx, query, id)
}

func (r *cartRepository) scanCart(ctx context.Context, query string, arg any) (*models.Cart, error) {
	cart := &models.Cart{}

	err := r.DB.QueryRowContext(ctx, query, arg).Scan(
		&cart.ID, &cart.UserID, &cart.TotalPrice, &cart.Status,
		&cart.CouponID, &cart.CreatedAt, &cart.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}

		return nil, fmt.Errorf("querying database: %w", err)
	}

	items, err := r.loadItems(ctx, cart.ID)
	if err != nil {
		return nil, err
	}

	cart.Items = items

	return cart, nil
}

func (r *cartRepository) loadItems(ctx context.Context, cartID uuid.UUID) ([]models.CartItem, error) {
	query := `
		SELECT ci.id, ci.cart_id, ci.product_id, ci.quantity, ci.total_price,
		       ci.price_before_discount, ci.discount_amount, ci.coupon_discount_per, ci.applied_coupon_code,
		       p.id, p.category_id, p.name, p.description, p.price, p.stock, p.sku, p.status, p.created_at, p.updated_at
		FROM cart_items ci
		JOIN products p ON p.id = ci.product_id
		WHERE ci.cart_id = $1
		ORDER BY ci.created_at
	`

	rows, err := r.DB.QueryContext(ctx, query, cartID)
	if err != nil {
		return nil, fmt.Errorf("failed to load cart items: %w", err)
	}

	defer rows.Close()

	var items []models.CartItem

	for rows.Next() {
		var item models.CartItem

		product := &models.Product{}

		err := rows.Scan(
			&item.ID, &item.CartID, &item.ProductID, &item.Quantity, &item.TotalPrice,
			&item.PriceBeforeDiscount, &item.DiscountAmount, &item.CouponDiscountPer, &item.AppliedCouponCode,
			&product.ID, &product.CategoryID, &product.Name, &product.Description,
			&product.Price, &product.Stock, &product.SKU, &product.Status,
			&product.CreatedAt, &product.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan cart item: %w", err)
		}

		item.Product = product
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return items, nil
}

func (r *cartRepository) InsertItem(ctx context.Context, item *models.CartItem) error {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	query := `
		INSERT INTO cart_items (id, cart_id, product_id, quantity, total_price)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := r.DB.ExecContext(dbCtx, query, item.ID, item.CartID, item.ProductID, item.Quantity, item.TotalPrice)
	if err != nil {
		return fmt.Errorf("failed to insert cart item: %w", err)
	}

	return nil
}

func (r *cartRepository) UpdateItem(ctx context.Context, item *models.CartItem) error {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	query := `
		UPDATE cart_items
		SET quantity = $1, total_price = $2, price_before_discount = $3,
		    discount_amount = $4, coupon_discount_per = $5, applied_coupon_code = $6
		WHERE id = $7
	`

	result, err := r.DB.ExecContext(dbCtx, query,
		item.Quantity, item.TotalPrice, item.PriceBeforeDiscount,
		item.DiscountAmount, item.CouponDiscountPer, item.AppliedCouponCode, item.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update cart item: %w", err)
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

func (r *cartRepository) DeleteItem(ctx context.Context, id uuid.UUID) error {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	result, err := r.DB.ExecContext(dbCtx, `DELETE FROM cart_items WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete cart item: %w", err)
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

// SaveCart persists the cart-level derived state: total price, coupon
// reference and status.
func (r *cartRepository) SaveCart(ctx context.Context, cart *models.Cart) error {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	query := `
		UPDATE carts
		SET total_price = $1, coupon_id = $2, status = $3, updated_at = NOW()
		WHERE id = $4
	`

	result, err := r.DB.ExecContext(dbCtx, query, cart.TotalPrice, cart.CouponID, cart.Status, cart.ID)
	if err != nil {
		return fmt.Errorf("failed to update the cart: %w", err)
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

// ClearItems empties the cart on user request, keeping it active.
func (r *cartRepository) ClearItems(ctx context.Context, cartID uuid.UUID) error {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	if _, err := r.DB.ExecContext(dbCtx, `DELETE FROM cart_items WHERE cart_id = $1`, cartID); err != nil {
		return fmt.Errorf("failed to clear cart items: %w", err)
	}

	query := `
		UPDATE carts
		SET total_price = 0, coupon_id = NULL, updated_at = NOW()
		WHERE id = $1
	`

	if _, err := r.DB.ExecContext(dbCtx, query, cartID); err != nil {
		return fmt.Errorf("failed to reset cart: %w", err)
	}

	return nil
}

// SettleCart transitions a cart from PENDING to PAID exactly once and drops
// its items. The status predicate is the idempotency guard: a concurrent
// capture that lost the race gets ErrCartAlreadySettled and must abort its
// transaction.
func (r *cartRepository) SettleCart(ctx context.Context, q Querier, cartID uuid.UUID) error {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	query := `
		UPDATE carts
		SET status = 'PAID', total_price = 0, coupon_id = NULL, updated_at = NOW()
		WHERE id = $1 AND status = 'PENDING'
	`

	result, err := q.ExecContext(dbCtx, query, cartID)
	if err != nil {
		return fmt.Errorf("failed to settle cart: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}

	if affected == 0 {
		return ErrCartAlreadySettled
	}

	if _, err := q.ExecContext(dbCtx, `DELETE FROM cart_items WHERE cart_id = $1`, cartID); err != nil {
		return fmt.Errorf("failed to delete settled cart items: %w", err)
	}

	return nil
}
