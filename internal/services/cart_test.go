package service_test

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	appErrors "github.com/trinity-shop/trinity-platform/internal/errors"
	"github.com/trinity-shop/trinity-platform/internal/models"
	service "github.com/trinity-shop/trinity-platform/internal/services"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func pendingCart(userID uuid.UUID, items ...models.CartItem) *models.Cart {
	cart := &models.Cart{
		ID:     uuid.New(),
		UserID: userID,
		Status: models.CartStatusPending,
		Items:  items,
	}

	for _, item := range items {
		cart.TotalPrice += item.TotalPrice
	}

	return cart
}

func TestGetCart(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()

	t.Run("Success - Existing Cart", func(t *testing.T) {
		// Arrange
		cartRepo := new(mockCartRepo)
		existing := pendingCart(userID)
		cartRepo.On("GetActiveCartByUserID", ctx, userID).Return(existing, nil).Once()

		cartService := service.NewCartService(cartRepo, new(mockProductRepo), new(mockCouponRepo), testLogger())

		// Act
		cart, err := cartService.GetCart(ctx, userID)

		// Assert
		assert.NoError(t, err)
		assert.Equal(t, existing.ID, cart.ID)
		cartRepo.AssertExpectations(t)
	})

	t.Run("Success - Creates Cart When None Open", func(t *testing.T) {
		// Arrange
		cartRepo := new(mockCartRepo)
		cartRepo.On("GetActiveCartByUserID", ctx, userID).Return(nil, sql.ErrNoRows).Once()
		cartRepo.On("CreateCart", ctx, mock.AnythingOfType("*models.Cart")).Return(nil).Once()

		cartService := service.NewCartService(cartRepo, new(mockProductRepo), new(mockCouponRepo), testLogger())

		// Act
		cart, err := cartService.GetCart(ctx, userID)

		// Assert
		assert.NoError(t, err)
		assert.Equal(t, userID, cart.UserID)
		assert.Equal(t, models.CartStatusPending, cart.Status)
		assert.Empty(t, cart.Items)
		cartRepo.AssertExpectations(t)
	})

	t.Run("Failure - Database Error", func(t *testing.T) {
		// Arrange
		cartRepo := new(mockCartRepo)
		dbErr := errors.New("connection refused")
		cartRepo.On("GetActiveCartByUserID", ctx, userID).Return(nil, dbErr).Once()

		cartService := service.NewCartService(cartRepo, new(mockProductRepo), new(mockCouponRepo), testLogger())

		// Act
		cart, err := cartService.GetCart(ctx, userID)

		// Assert
		assert.Nil(t, cart)
		appErr, ok := appErrors.IsAppError(err)
		assert.True(t, ok)
		assert.Equal(t, appErrors.ErrCodeDatabaseError, appErr.Code)
		assert.ErrorIs(t, err, dbErr)
	})
}

func TestAddItem(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()
	productID := uuid.New()

	product := &models.Product{
		ID:    productID,
		Name:  "Mechanical Keyboard",
		Price: 74.99,
		Stock: 5,
	}

	t.Run("Success - New Line", func(t *testing.T) {
		// Arrange
		cartRepo := new(mockCartRepo)
		productRepo := new(mockProductRepo)
		cartRepo.On("GetActiveCartByUserID", ctx, userID).Return(pendingCart(userID), nil).Once()
		productRepo.On("GetProductByID", ctx, productID).Return(product, nil).Once()
		cartRepo.On("InsertItem", ctx, mock.AnythingOfType("*models.CartItem")).Return(nil).Once()
		cartRepo.On("SaveCart", ctx, mock.AnythingOfType("*models.Cart")).Return(nil).Once()

		cartService := service.NewCartService(cartRepo, productRepo, new(mockCouponRepo), testLogger())

		// Act
		cart, err := cartService.AddItem(ctx, userID, &models.AddItemRequest{ProductID: productID, Quantity: 2})

		// Assert
		assert.NoError(t, err)
		assert.Len(t, cart.Items, 1)
		assert.InDelta(t, 149.98, cart.Items[0].TotalPrice, 0.001)
		assert.InDelta(t, 149.98, cart.TotalPrice, 0.001)
		cartRepo.AssertExpectations(t)
	})

	t.Run("Success - Existing Line Accumulates Quantity", func(t *testing.T) {
		// Arrange
		cartRepo := new(mockCartRepo)
		productRepo := new(mockProductRepo)
		existing := pendingCart(userID, models.CartItem{
			ID:         uuid.New(),
			ProductID:  productID,
			Quantity:   1,
			TotalPrice: 74.99,
		})
		cartRepo.On("GetActiveCartByUserID", ctx, userID).Return(existing, nil).Once()
		productRepo.On("GetProductByID", ctx, productID).Return(product, nil).Once()
		cartRepo.On("UpdateItem", ctx, mock.AnythingOfType("*models.CartItem")).Return(nil).Once()
		cartRepo.On("SaveCart", ctx, mock.AnythingOfType("*models.Cart")).Return(nil).Once()

		cartService := service.NewCartService(cartRepo, productRepo, new(mockCouponRepo), testLogger())

		// Act
		cart, err := cartService.AddItem(ctx, userID, &models.AddItemRequest{ProductID: productID, Quantity: 2})

		// Assert
		assert.NoError(t, err)
		assert.Equal(t, 3, cart.Items[0].Quantity)
		assert.InDelta(t, 224.97, cart.Items[0].TotalPrice, 0.001)
		cartRepo.AssertExpectations(t)
	})

	t.Run("Failure - Insufficient Stock", func(t *testing.T) {
		// Arrange
		cartRepo := new(mockCartRepo)
		productRepo := new(mockProductRepo)
		cartRepo.On("GetActiveCartByUserID", ctx, userID).Return(pendingCart(userID), nil).Once()
		productRepo.On("GetProductByID", ctx, productID).Return(product, nil).Once()

		cartService := service.NewCartService(cartRepo, productRepo, new(mockCouponRepo), testLogger())

		// Act
		cart, err := cartService.AddItem(ctx, userID, &models.AddItemRequest{ProductID: productID, Quantity: 6})

		// Assert
		assert.Nil(t, cart)
		appErr, ok := appErrors.IsAppError(err)
		assert.True(t, ok)
		assert.Equal(t, appErrors.ErrCodeBadRequest, appErr.Code)
		assert.Equal(t, `Cannot add 6 of product "Mechanical Keyboard" to cart. Only 5 left in stock.`, appErr.Message)
	})

	t.Run("Failure - Product Not Found", func(t *testing.T) {
		// Arrange
		cartRepo := new(mockCartRepo)
		productRepo := new(mockProductRepo)
		cartRepo.On("GetActiveCartByUserID", ctx, userID).Return(pendingCart(userID), nil).Once()
		productRepo.On("GetProductByID", ctx, productID).Return(nil, sql.ErrNoRows).Once()

		cartService := service.NewCartService(cartRepo, productRepo, new(mockCouponRepo), testLogger())

		// Act
		_, err := cartService.AddItem(ctx, userID, &models.AddItemRequest{ProductID: productID, Quantity: 1})

		// Assert
		appErr, ok := appErrors.IsAppError(err)
		assert.True(t, ok)
		assert.Equal(t, appErrors.ErrCodeNotFound, appErr.Code)
	})
}

func TestApplyCoupon(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()
	productID := uuid.New()

	globalFixed := func() *models.Coupon {
		return &models.Coupon{
			ID:            uuid.New(),
			Code:          "SAVE5",
			DiscountType:  models.DiscountTypeFixed,
			DiscountValue: 5,
			IsGlobal:      true,
			UsageLimit:    10,
			ExpiryDate:    time.Now().Add(24 * time.Hour),
		}
	}

	cartWithLine := func() *models.Cart {
		return pendingCart(userID, models.CartItem{
			ID:         uuid.New(),
			ProductID:  productID,
			Quantity:   2,
			TotalPrice: 20,
			Product:    &models.Product{ID: productID, Name: "Notebook", Price: 10, Stock: 5},
		})
	}

	t.Run("Success - Fixed Discount Per Line", func(t *testing.T) {
		// Arrange
		cartRepo := new(mockCartRepo)
		couponRepo := new(mockCouponRepo)
		coupon := globalFixed()
		cartRepo.On("GetActiveCartByUserID", ctx, userID).Return(cartWithLine(), nil).Once()
		couponRepo.On("GetCouponByCode", ctx, "SAVE5").Return(coupon, nil).Once()
		cartRepo.On("UpdateItem", ctx, mock.AnythingOfType("*models.CartItem")).Return(nil).Once()
		cartRepo.On("SaveCart", ctx, mock.AnythingOfType("*models.Cart")).Return(nil).Once()

		cartService := service.NewCartService(cartRepo, new(mockProductRepo), couponRepo, testLogger())

		// Act
		cart, err := cartService.ApplyCoupon(ctx, userID, "SAVE5")

		// Assert
		assert.NoError(t, err)
		item := cart.Items[0]
		assert.InDelta(t, 15, item.TotalPrice, 0.001)
		assert.InDelta(t, 20, *item.PriceBeforeDiscount, 0.001)
		assert.InDelta(t, 5, *item.DiscountAmount, 0.001)
		assert.Equal(t, "SAVE5", *item.AppliedCouponCode)
		assert.InDelta(t, 15, cart.TotalPrice, 0.001)
		assert.Equal(t, coupon.ID, *cart.CouponID)
		cartRepo.AssertExpectations(t)
	})

	t.Run("Success - Percentage Discount", func(t *testing.T) {
		// Arrange
		cartRepo := new(mockCartRepo)
		couponRepo := new(mockCouponRepo)
		coupon := globalFixed()
		coupon.DiscountType = models.DiscountTypePercentage
		coupon.DiscountValue = 25
		cartRepo.On("GetActiveCartByUserID", ctx, userID).Return(cartWithLine(), nil).Once()
		couponRepo.On("GetCouponByCode", ctx, "SAVE5").Return(coupon, nil).Once()
		cartRepo.On("UpdateItem", ctx, mock.AnythingOfType("*models.CartItem")).Return(nil).Once()
		cartRepo.On("SaveCart", ctx, mock.AnythingOfType("*models.Cart")).Return(nil).Once()

		cartService := service.NewCartService(cartRepo, new(mockProductRepo), couponRepo, testLogger())

		// Act
		cart, err := cartService.ApplyCoupon(ctx, userID, "SAVE5")

		// Assert
		assert.NoError(t, err)
		assert.InDelta(t, 15, cart.Items[0].TotalPrice, 0.001)
		assert.InDelta(t, 5, *cart.Items[0].DiscountAmount, 0.001)
	})

	t.Run("Failure - Expired", func(t *testing.T) {
		// Arrange
		cartRepo := new(mockCartRepo)
		couponRepo := new(mockCouponRepo)
		coupon := globalFixed()
		coupon.ExpiryDate = time.Now().Add(-time.Hour)
		cartRepo.On("GetActiveCartByUserID", ctx, userID).Return(cartWithLine(), nil).Once()
		couponRepo.On("GetCouponByCode", ctx, "SAVE5").Return(coupon, nil).Once()

		cartService := service.NewCartService(cartRepo, new(mockProductRepo), couponRepo, testLogger())

		// Act
		_, err := cartService.ApplyCoupon(ctx, userID, "SAVE5")

		// Assert
		appErr, ok := appErrors.IsAppError(err)
		assert.True(t, ok)
		assert.Equal(t, "This coupon has expired.", appErr.Message)
	})

	t.Run("Failure - Usage Limit Reached", func(t *testing.T) {
		// Arrange
		cartRepo := new(mockCartRepo)
		couponRepo := new(mockCouponRepo)
		coupon := globalFixed()
		coupon.UsageLimit = 0
		cartRepo.On("GetActiveCartByUserID", ctx, userID).Return(cartWithLine(), nil).Once()
		couponRepo.On("GetCouponByCode", ctx, "SAVE5").Return(coupon, nil).Once()

		cartService := service.NewCartService(cartRepo, new(mockProductRepo), couponRepo, testLogger())

		// Act
		_, err := cartService.ApplyCoupon(ctx, userID, "SAVE5")

		// Assert
		appErr, ok := appErrors.IsAppError(err)
		assert.True(t, ok)
		assert.Equal(t, "This coupon has reached its usage limit.", appErr.Message)
	})

	t.Run("Failure - Not Authorized", func(t *testing.T) {
		// Arrange
		cartRepo := new(mockCartRepo)
		couponRepo := new(mockCouponRepo)
		coupon := globalFixed()
		coupon.IsGlobal = false
		coupon.UserIDs = []uuid.UUID{uuid.New()}
		cartRepo.On("GetActiveCartByUserID", ctx, userID).Return(cartWithLine(), nil).Once()
		couponRepo.On("GetCouponByCode", ctx, "SAVE5").Return(coupon, nil).Once()

		cartService := service.NewCartService(cartRepo, new(mockProductRepo), couponRepo, testLogger())

		// Act
		_, err := cartService.ApplyCoupon(ctx, userID, "SAVE5")

		// Assert
		appErr, ok := appErrors.IsAppError(err)
		assert.True(t, ok)
		assert.Equal(t, "You are not authorized to use this coupon", appErr.Message)
	})

	t.Run("Failure - Coupon Already Applied", func(t *testing.T) {
		// Arrange
		cartRepo := new(mockCartRepo)
		couponRepo := new(mockCouponRepo)
		applied := globalFixed()
		cart := cartWithLine()
		cart.CouponID = &applied.ID
		cartRepo.On("GetActiveCartByUserID", ctx, userID).Return(cart, nil).Once()
		couponRepo.On("GetCouponByID", ctx, applied.ID).Return(applied, nil).Once()
		couponRepo.On("GetCouponByCode", ctx, "SAVE5").Return(globalFixed(), nil).Once()

		cartService := service.NewCartService(cartRepo, new(mockProductRepo), couponRepo, testLogger())

		// Act
		_, err := cartService.ApplyCoupon(ctx, userID, "SAVE5")

		// Assert
		appErr, ok := appErrors.IsAppError(err)
		assert.True(t, ok)
		assert.Equal(t, "A coupon is already applied to this cart", appErr.Message)
	})

	t.Run("Failure - Coupon Not Found", func(t *testing.T) {
		// Arrange
		cartRepo := new(mockCartRepo)
		couponRepo := new(mockCouponRepo)
		cartRepo.On("GetActiveCartByUserID", ctx, userID).Return(cartWithLine(), nil).Once()
		couponRepo.On("GetCouponByCode", ctx, "SAVE5").Return(nil, sql.ErrNoRows).Once()

		cartService := service.NewCartService(cartRepo, new(mockProductRepo), couponRepo, testLogger())

		// Act
		_, err := cartService.ApplyCoupon(ctx, userID, "SAVE5")

		// Assert
		appErr, ok := appErrors.IsAppError(err)
		assert.True(t, ok)
		assert.Equal(t, appErrors.ErrCodeNotFound, appErr.Code)
	})
}

func TestRemoveCoupon(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()
	productID := uuid.New()

	t.Run("Success - Restores Pre-Discount Prices", func(t *testing.T) {
		// Arrange
		cartRepo := new(mockCartRepo)
		couponRepo := new(mockCouponRepo)

		coupon := &models.Coupon{
			ID:            uuid.New(),
			Code:          "SAVE5",
			DiscountType:  models.DiscountTypeFixed,
			DiscountValue: 5,
			IsGlobal:      true,
			UsageLimit:    10,
			ExpiryDate:    time.Now().Add(time.Hour),
		}

		before := 20.0
		discount := 5.0
		code := "SAVE5"
		cart := pendingCart(userID, models.CartItem{
			ID:                  uuid.New(),
			ProductID:           productID,
			Quantity:            2,
			TotalPrice:          15,
			PriceBeforeDiscount: &before,
			DiscountAmount:      &discount,
			AppliedCouponCode:   &code,
		})
		cart.CouponID = &coupon.ID

		cartRepo.On("GetActiveCartByUserID", ctx, userID).Return(cart, nil).Once()
		couponRepo.On("GetCouponByID", ctx, coupon.ID).Return(coupon, nil).Once()
		cartRepo.On("UpdateItem", ctx, mock.AnythingOfType("*models.CartItem")).Return(nil).Once()
		cartRepo.On("SaveCart", ctx, mock.AnythingOfType("*models.Cart")).Return(nil).Once()

		cartService := service.NewCartService(cartRepo, new(mockProductRepo), couponRepo, testLogger())

		// Act
		result, err := cartService.RemoveCoupon(ctx, userID)

		// Assert
		assert.NoError(t, err)
		assert.InDelta(t, 20, result.Items[0].TotalPrice, 0.001)
		assert.Nil(t, result.Items[0].PriceBeforeDiscount)
		assert.Nil(t, result.Items[0].AppliedCouponCode)
		assert.Nil(t, result.CouponID)
		assert.InDelta(t, 20, result.TotalPrice, 0.001)
	})

	t.Run("Failure - No Coupon Applied", func(t *testing.T) {
		// Arrange
		cartRepo := new(mockCartRepo)
		cartRepo.On("GetActiveCartByUserID", ctx, userID).Return(pendingCart(userID), nil).Once()

		cartService := service.NewCartService(cartRepo, new(mockProductRepo), new(mockCouponRepo), testLogger())

		// Act
		_, err := cartService.RemoveCoupon(ctx, userID)

		// Assert
		appErr, ok := appErrors.IsAppError(err)
		assert.True(t, ok)
		assert.Equal(t, "No coupon applied to remove", appErr.Message)
	})
}

func TestUpdateQuantity(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()
	productID := uuid.New()

	product := &models.Product{ID: productID, Name: "Notebook", Price: 10, Stock: 5}

	t.Run("Success - Coupon Reapplied To Repriced Line", func(t *testing.T) {
		// Arrange
		cartRepo := new(mockCartRepo)
		couponRepo := new(mockCouponRepo)
		productRepo := new(mockProductRepo)

		coupon := &models.Coupon{
			ID:            uuid.New(),
			Code:          "SAVE5",
			DiscountType:  models.DiscountTypeFixed,
			DiscountValue: 5,
			IsGlobal:      true,
			UsageLimit:    10,
			ExpiryDate:    time.Now().Add(time.Hour),
		}

		before := 20.0
		discount := 5.0
		code := "SAVE5"
		cart := pendingCart(userID, models.CartItem{
			ID:                  uuid.New(),
			ProductID:           productID,
			Quantity:            2,
			TotalPrice:          15,
			PriceBeforeDiscount: &before,
			DiscountAmount:      &discount,
			AppliedCouponCode:   &code,
			Product:             product,
		})
		cart.CouponID = &coupon.ID

		cartRepo.On("GetActiveCartByUserID", ctx, userID).Return(cart, nil).Once()
		couponRepo.On("GetCouponByID", ctx, coupon.ID).Return(coupon, nil).Once()
		productRepo.On("GetProductByID", ctx, productID).Return(product, nil).Once()
		cartRepo.On("UpdateItem", ctx, mock.AnythingOfType("*models.CartItem")).Return(nil).Twice()
		cartRepo.On("SaveCart", ctx, mock.AnythingOfType("*models.Cart")).Return(nil).Once()

		cartService := service.NewCartService(cartRepo, productRepo, couponRepo, testLogger())

		// Act
		result, err := cartService.UpdateQuantity(ctx, userID, &models.UpdateQuantityRequest{ProductID: productID, Quantity: 3})

		// Assert
		assert.NoError(t, err)
		item := result.Items[0]
		assert.Equal(t, 3, item.Quantity)
		assert.InDelta(t, 30, *item.PriceBeforeDiscount, 0.001)
		assert.InDelta(t, 25, item.TotalPrice, 0.001)
		assert.InDelta(t, 25, result.TotalPrice, 0.001)
		cartRepo.AssertExpectations(t)
	})

	t.Run("Failure - Item Missing", func(t *testing.T) {
		// Arrange
		cartRepo := new(mockCartRepo)
		cartRepo.On("GetActiveCartByUserID", ctx, userID).Return(pendingCart(userID), nil).Once()

		cartService := service.NewCartService(cartRepo, new(mockProductRepo), new(mockCouponRepo), testLogger())

		// Act
		_, err := cartService.UpdateQuantity(ctx, userID, &models.UpdateQuantityRequest{ProductID: productID, Quantity: 1})

		// Assert
		appErr, ok := appErrors.IsAppError(err)
		assert.True(t, ok)
		assert.Equal(t, appErrors.ErrCodeNotFound, appErr.Code)
	})
}

func TestRemoveItem(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()
	productID := uuid.New()

	t.Run("Success", func(t *testing.T) {
		// Arrange
		cartRepo := new(mockCartRepo)
		item := models.CartItem{ID: uuid.New(), ProductID: productID, Quantity: 1, TotalPrice: 10}
		cartRepo.On("GetActiveCartByUserID", ctx, userID).Return(pendingCart(userID, item), nil).Once()
		cartRepo.On("DeleteItem", ctx, item.ID).Return(nil).Once()
		cartRepo.On("SaveCart", ctx, mock.AnythingOfType("*models.Cart")).Return(nil).Once()

		cartService := service.NewCartService(cartRepo, new(mockProductRepo), new(mockCouponRepo), testLogger())

		// Act
		cart, err := cartService.RemoveItem(ctx, userID, productID)

		// Assert
		assert.NoError(t, err)
		assert.Empty(t, cart.Items)
		assert.Zero(t, cart.TotalPrice)
	})

	t.Run("Failure - Item Not In Cart", func(t *testing.T) {
		// Arrange
		cartRepo := new(mockCartRepo)
		cartRepo.On("GetActiveCartByUserID", ctx, userID).Return(pendingCart(userID), nil).Once()

		cartService := service.NewCartService(cartRepo, new(mockProductRepo), new(mockCouponRepo), testLogger())

		// Act
		_, err := cartService.RemoveItem(ctx, userID, productID)

		// Assert
		appErr, ok := appErrors.IsAppError(err)
		assert.True(t, ok)
		assert.Equal(t, appErrors.ErrCodeNotFound, appErr.Code)
	})
}
