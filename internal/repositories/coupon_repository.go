package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/trinity-shop/trinity-platform/internal/models"
	"github.com/trinity-shop/trinity-platform/internal/utils"
)

// ErrCouponExhausted is returned when the conditional usage decrement touches
// no row, meaning a concurrent settlement consumed the last use first.
var ErrCouponExhausted = errors.New("coupon usage limit exhausted")

type CouponRepository interface {
	CreateCoupon(ctx context.Context, coupon *models.Coupon) error
	GetCouponByID(ctx context.Context, id uuid.UUID) (*models.Coupon, error)
	GetCouponByCode(ctx context.Context, code string) (*models.Coupon, error)
	ListCoupons(ctx context.Context) ([]*models.Coupon, error)
	DeleteCoupon(ctx context.Context, id uuid.UUID) error
	ConsumeUsage(ctx context.Context, q Querier, id uuid.UUID) error
}

type couponRepository struct {
	DB *sql.DB
}

func NewCouponRepo(db *sql.DB) CouponRepository {
	return &couponRepository{DB: db}
}

func (r *couponRepository) CreateCoupon(ctx context.Context, coupon *models.Coupon) error {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	query := `
		INSERT INTO coupons (id, code, discount_type, discount_value, is_global, usage_limit, expiry_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at
	`

	err := r.DB.QueryRowContext(dbCtx, query,
		coupon.ID, coupon.Code, coupon.DiscountType, coupon.DiscountValue,
		coupon.IsGlobal, coupon.UsageLimit, coupon.ExpiryDate,
	).Scan(&coupon.CreatedAt, &coupon.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert coupon: %w", err)
	}

	for _, productID := range coupon.ProductIDs {
		if _, err := r.DB.ExecContext(dbCtx,
			`INSERT INTO coupon_products (coupon_id, product_id) VALUES ($1, $2)`,
			coupon.ID, productID,
		); err != nil {
			return fmt.Errorf("failed to link coupon product: %w", err)
		}
	}

	for _, userID := range coupon.UserIDs {
		if _, err := r.DB.ExecContext(dbCtx,
			`INSERT INTO coupon_users (coupon_id, user_id) VALUES ($1, $2)`,
			coupon.ID, userID,
		); err != nil {
			return fmt.Errorf("failed to link coupon user: %w", err)
		}
	}

	return nil
}

func (r *couponRepository) GetCouponByID(ctx context.Context, id uuid.UUID) (*models.Coupon, error) {
	return r.getCoupon(ctx, `WHERE c.id = $1`, id)
}

func (r *couponRepository) GetCouponByCode(ctx context.Context, code string) (*models.Coupon, error) {
	return r.getCoupon(ctx, `WHERE c.code = $1`, code)
}

func (r *couponRepository) getCoupon(ctx context.Context, where string, arg any) (*models.Coupon, error) {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	query := `
		SELECT c.id, c.code, c.discount_type, c.discount_value, c.is_global, c.usage_limit, c.expiry_date,
		       c.created_at, c.updated_at,
		       COALESCE(ARRAY(SELECT cp.product_id FROM coupon_products cp WHERE cp.coupon_id = c.id), '{}'),
		       COALESCE(ARRAY(SELECT cu.user_id FROM coupon_users cu WHERE cu.coupon_id = c.id), '{}')
		FROM coupons c
	` + where

	coupon := &models.Coupon{}

	var productIDs, userIDs []string

	err := r.DB.QueryRowContext(dbCtx, query, arg).Scan(
		&coupon.ID, &coupon.Code, &coupon.DiscountType, &coupon.DiscountValue,
		&coupon.IsGlobal, &coupon.UsageLimit, &coupon.ExpiryDate,
		&coupon.CreatedAt, &coupon.UpdatedAt,
		pq.Array(&productIDs), pq.Array(&userIDs),
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}

		return nil, fmt.Errorf("querying database: %w", err)
	}

	coupon.ProductIDs, err = parseUUIDs(productIDs)
	if err != nil {
		return nil, fmt.Errorf("invalid coupon product id: %w", err)
	}

	coupon.UserIDs, err = parseUUIDs(userIDs)
	if err != nil {
		return nil, fmt.Errorf("invalid coupon user id: %w", err)
	}

	return coupon, nil
}

func parseUUIDs(values []string) ([]uuid.UUID, error) {
	if len(values) == 0 {
		return nil, nil
	}

	ids := make([]uuid.UUID, 0, len(values))

	for _, v := range values {
		id, err := uuid.Parse(v)
		if err != nil {
			return nil, err
		}

		ids = append(ids, id)
	}

	return ids, nil
}

func (r *couponRepository) ListCoupons(ctx context.Context) ([]*models.Coupon, error) {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	query := `
		SELECT id, code, discount_type, discount_value, is_global, usage_limit, expiry_date, created_at, updated_at
		FROM coupons
		ORDER BY created_at DESC
	`

	rows, err := r.DB.QueryContext(dbCtx, query)
	if err != nil {
		return nil, err
	}

	defer rows.Close()

	var coupons []*models.Coupon

	for rows.Next() {
		coupon := &models.Coupon{}

		err := rows.Scan(
			&coupon.ID, &coupon.Code, &coupon.DiscountType, &coupon.DiscountValue,
			&coupon.IsGlobal, &coupon.UsageLimit, &coupon.ExpiryDate,
			&coupon.CreatedAt, &coupon.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}

		coupons = append(coupons, coupon)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return coupons, nil
}

func (r *couponRepository) DeleteCoupon(ctx context.Context, id uuid.UUID) error {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	result, err := r.DB.ExecContext(dbCtx, `DELETE FROM coupons WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete coupon: %w", err)
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

// ConsumeUsage decrements the remaining uses at settlement time. The
// conditional predicate re-validates exhaustion: a settlement that lost the
// race on a single-use coupon gets ErrCouponExhausted instead of driving the
// limit negative.
func (r *couponRepository) ConsumeUsage(ctx context.Context, q Querier, id uuid.UUID) error {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	query := `
		UPDATE coupons
		SET usage_limit = usage_limit - 1, updated_at = NOW()
		WHERE id = $1 AND usage_limit > 0
	`

	result, err := q.ExecContext(dbCtx, query, id)
	if err != nil {
		return fmt.Errorf("failed to consume coupon usage: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}

	if affected == 0 {
		return ErrCouponExhausted
	}

	return nil
}
