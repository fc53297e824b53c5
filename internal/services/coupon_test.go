package service_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	appErrors "github.com/trinity-shop/trinity-platform/internal/errors"
	"github.com/trinity-shop/trinity-platform/internal/models"
	service "github.com/trinity-shop/trinity-platform/internal/services"
)

func TestCreateCoupon(t *testing.T) {
	ctx := context.Background()

	validReq := func() *models.CreateCouponRequest {
		return &models.CreateCouponRequest{
			Code:          "SUMMER25",
			DiscountType:  models.DiscountTypePercentage,
			DiscountValue: 25,
			IsGlobal:      true,
			UsageLimit:    100,
			ExpiryDate:    time.Now().Add(30 * 24 * time.Hour),
		}
	}

	t.Run("Success - Global Percentage Coupon", func(t *testing.T) {
		// Arrange
		couponRepo := new(mockCouponRepo)
		couponRepo.On("GetCouponByCode", ctx, "SUMMER25").Return(nil, sql.ErrNoRows).Once()
		couponRepo.On("CreateCoupon", ctx, mock.AnythingOfType("*models.Coupon")).Return(nil).Once()

		couponService := service.NewCouponService(couponRepo, new(mockProductRepo), new(mockUserRepo))

		// Act
		coupon, err := couponService.CreateCoupon(ctx, validReq())

		// Assert
		require.NoError(t, err)
		assert.Equal(t, "SUMMER25", coupon.Code)
		assert.NotEqual(t, uuid.Nil, coupon.ID)
		couponRepo.AssertExpectations(t)
	})

	t.Run("Success - Scoped Coupon Checks Targets Exist", func(t *testing.T) {
		// Arrange
		productID := uuid.New()
		userID := uuid.New()

		req := validReq()
		req.IsGlobal = false
		req.ProductIDs = []uuid.UUID{productID}
		req.UserIDs = []uuid.UUID{userID}

		couponRepo := new(mockCouponRepo)
		couponRepo.On("GetCouponByCode", ctx, "SUMMER25").Return(nil, sql.ErrNoRows).Once()
		couponRepo.On("CreateCoupon", ctx, mock.AnythingOfType("*models.Coupon")).Return(nil).Once()

		productRepo := new(mockProductRepo)
		productRepo.On("GetProductByID", ctx, productID).Return(&models.Product{ID: productID}, nil).Once()

		userRepo := new(mockUserRepo)
		userRepo.On("GetUserByID", ctx, userID).Return(&models.User{ID: userID}, nil).Once()

		couponService := service.NewCouponService(couponRepo, productRepo, userRepo)

		// Act
		coupon, err := couponService.CreateCoupon(ctx, req)

		// Assert
		require.NoError(t, err)
		assert.Equal(t, []uuid.UUID{productID}, coupon.ProductIDs)
		productRepo.AssertExpectations(t)
		userRepo.AssertExpectations(t)
	})

	t.Run("Failure - Duplicate Code", func(t *testing.T) {
		// Arrange
		couponRepo := new(mockCouponRepo)
		couponRepo.On("GetCouponByCode", ctx, "SUMMER25").Return(&models.Coupon{Code: "SUMMER25"}, nil).Once()

		couponService := service.NewCouponService(couponRepo, new(mockProductRepo), new(mockUserRepo))

		// Act
		_, err := couponService.CreateCoupon(ctx, validReq())

		// Assert
		appErr, ok := appErrors.IsAppError(err)
		assert.True(t, ok)
		assert.Equal(t, appErrors.ErrCodeDuplicateEntry, appErr.Code)
	})

	t.Run("Failure - Expiry In The Past", func(t *testing.T) {
		// Arrange
		req := validReq()
		req.ExpiryDate = time.Now().Add(-time.Hour)

		couponRepo := new(mockCouponRepo)
		couponRepo.On("GetCouponByCode", ctx, "SUMMER25").Return(nil, sql.ErrNoRows).Once()

		couponService := service.NewCouponService(couponRepo, new(mockProductRepo), new(mockUserRepo))

		// Act
		_, err := couponService.CreateCoupon(ctx, req)

		// Assert
		appErr, ok := appErrors.IsAppError(err)
		assert.True(t, ok)
		assert.Equal(t, "Expiry date must be in the future", appErr.Message)
	})

	t.Run("Failure - Percentage Above 100", func(t *testing.T) {
		// Arrange
		req := validReq()
		req.DiscountValue = 120

		couponRepo := new(mockCouponRepo)
		couponRepo.On("GetCouponByCode", ctx, "SUMMER25").Return(nil, sql.ErrNoRows).Once()

		couponService := service.NewCouponService(couponRepo, new(mockProductRepo), new(mockUserRepo))

		// Act
		_, err := couponService.CreateCoupon(ctx, req)

		// Assert
		appErr, ok := appErrors.IsAppError(err)
		assert.True(t, ok)
		assert.Equal(t, "Percentage discount cannot exceed 100", appErr.Message)
	})

	t.Run("Failure - Unknown Scoped Product", func(t *testing.T) {
		// Arrange
		productID := uuid.New()

		req := validReq()
		req.ProductIDs = []uuid.UUID{productID}

		couponRepo := new(mockCouponRepo)
		couponRepo.On("GetCouponByCode", ctx, "SUMMER25").Return(nil, sql.ErrNoRows).Once()

		productRepo := new(mockProductRepo)
		productRepo.On("GetProductByID", ctx, productID).Return(nil, sql.ErrNoRows).Once()

		couponService := service.NewCouponService(couponRepo, productRepo, new(mockUserRepo))

		// Act
		_, err := couponService.CreateCoupon(ctx, req)

		// Assert
		appErr, ok := appErrors.IsAppError(err)
		assert.True(t, ok)
		assert.Equal(t, appErrors.ErrCodeNotFound, appErr.Code)
	})
}

func TestGetCouponByCode(t *testing.T) {
	ctx := context.Background()

	t.Run("Failure - Not Found", func(t *testing.T) {
		// Arrange
		couponRepo := new(mockCouponRepo)
		couponRepo.On("GetCouponByCode", ctx, "GHOST").Return(nil, sql.ErrNoRows).Once()

		couponService := service.NewCouponService(couponRepo, new(mockProductRepo), new(mockUserRepo))

		// Act
		_, err := couponService.GetCouponByCode(ctx, "GHOST")

		// Assert
		appErr, ok := appErrors.IsAppError(err)
		assert.True(t, ok)
		assert.Equal(t, appErrors.ErrCodeNotFound, appErr.Code)
	})
}
