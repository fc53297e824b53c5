package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	appErrors "github.com/trinity-shop/trinity-platform/internal/errors"
	"github.com/trinity-shop/trinity-platform/internal/models"
	"github.com/trinity-shop/trinity-platform/internal/repositories"
)

type CouponService interface {
	CreateCoupon(ctx context.Context, req *models.CreateCouponRequest) (*models.Coupon, error)
	GetCouponByCode(ctx context.Context, code string) (*models.Coupon, error)
	ListCoupons(ctx context.Context) ([]*models.Coupon, error)
	DeleteCoupon(ctx context.Context, id uuid.UUID) error
}

type couponService struct {
	couponRepo  repository.CouponRepository
	productRepo repository.ProductRepository
	userRepo    repository.UserRepository
}

func NewCouponService(couponRepo repository.CouponRepository, productRepo repository.ProductRepository, userRepo repository.UserRepository) CouponService {
	return &couponService{couponRepo: couponRepo, productRepo: productRepo, userRepo: userRepo}
}

func (s *couponService) CreateCoupon(ctx context.Context, req *models.CreateCouponRequest) (*models.Coupon, error) {
	if _, err := s.couponRepo.GetCouponByCode(ctx, req.Code); err == nil {
		return nil, appErrors.DuplicateEntryError(fmt.Sprintf("Coupon code %q already exists", req.Code))
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.DatabaseError("Failed to check coupon code").WithError(err)
	}

	if !req.ExpiryDate.After(time.Now()) {
		return nil, appErrors.BadRequestError("Expiry date must be in the future")
	}

	if req.DiscountType == models.DiscountTypePercentage && req.DiscountValue > 100 {
		return nil, appErrors.BadRequestError("Percentage discount cannot exceed 100")
	}

	for _, productID := range req.ProductIDs {
		if _, err := s.productRepo.GetProductByID(ctx, productID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.NotFoundError(fmt.Sprintf("Product not found: %s", productID))
			}

			return nil, appErrors.DatabaseError("Failed to fetch product").WithError(err)
		}
	}

	for _, userID := range req.UserIDs {
		if _, err := s.userRepo.GetUserByID(ctx, userID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.NotFoundError(fmt.Sprintf("User not found: %s", userID))
			}

			return nil, appErrors.DatabaseError("Failed to fetch user").WithError(err)
		}
	}

	coupon := &models.Coupon{
		ID:            uuid.New(),
		Code:          req.Code,
		DiscountType:  req.DiscountType,
		DiscountValue: req.DiscountValue,
		IsGlobal:      req.IsGlobal,
		UsageLimit:    req.UsageLimit,
		ExpiryDate:    req.ExpiryDate,
		ProductIDs:    req.ProductIDs,
		UserIDs:       req.UserIDs,
	}

	if err := s.couponRepo.CreateCoupon(ctx, coupon); err != nil {
		return nil, appErrors.DatabaseError("Failed to create coupon").WithError(err)
	}

	return coupon, nil
}

func (s *couponService) GetCouponByCode(ctx context.Context, code string) (*models.Coupon, error) {
	coupon, err := s.couponRepo.GetCouponByCode(ctx, code)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.NotFoundError("Coupon not found")
		}

		return nil, appErrors.DatabaseError("Failed to fetch coupon").WithError(err)
	}

	return coupon, nil
}

func (s *couponService) ListCoupons(ctx context.Context) ([]*models.Coupon, error) {
	coupons, err := s.couponRepo.ListCoupons(ctx)
	if err != nil {
		return nil, appErrors.DatabaseError("Failed to list coupons").WithError(err)
	}

	return coupons, nil
}

func (s *couponService) DeleteCoupon(ctx context.Context, id uuid.UUID) error {
	if err := s.couponRepo.DeleteCoupon(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.NotFoundError("Coupon not found")
		}

		return appErrors.DatabaseError("Failed to delete coupon").WithError(err)
	}

	return nil
}
