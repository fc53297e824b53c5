package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"
	appErrors "github.com/trinity-shop/trinity-platform/internal/errors"
	"github.com/trinity-shop/trinity-platform/internal/models"
	"github.com/trinity-shop/trinity-platform/internal/repositories"
	"github.com/trinity-shop/trinity-platform/internal/utils"
)

type CartService interface {
	GetCart(ctx context.Context, userID uuid.UUID) (*models.Cart, error)
	AddItem(ctx context.Context, userID uuid.UUID, req *models.AddItemRequest) (*models.Cart, error)
	UpdateQuantity(ctx context.Context, userID uuid.UUID, req *models.UpdateQuantityRequest) (*models.Cart, error)
	RemoveItem(ctx context.Context, userID uuid.UUID, productID uuid.UUID) (*models.Cart, error)
	ClearCart(ctx context.Context, userID uuid.UUID) error
	ApplyCoupon(ctx context.Context, userID uuid.UUID, code string) (*models.Cart, error)
	RemoveCoupon(ctx context.Context, userID uuid.UUID) (*models.Cart, error)
}

type cartService struct {
	cartRepo    repository.CartRepository
	productRepo repository.ProductRepository
	couponRepo  repository.CouponRepository
	logger      *slog.Logger
}

func NewCartService(cartRepo repository.CartRepository, productRepo repository.ProductRepository, couponRepo repository.CouponRepository, logger *slog.Logger) CartService {
	return &cartService{cartRepo: cartRepo, productRepo: productRepo, couponRepo: couponRepo, logger: logger}
}

// getOrCreateCart returns the user's open cart, creating an empty one when
// none exists. Settled carts never come back from the lookup, so a user
// always lands on a fresh cart after checkout.
func (s *cartService) getOrCreateCart(ctx context.Context, userID uuid.UUID) (*models.Cart, error) {
	cart, err := s.cartRepo.GetActiveCartByUserID(ctx, userID)

	switch {
	case err == nil:
		return s.hydrateCoupon(ctx, cart)
	case errors.Is(err, sql.ErrNoRows):
		cart = &models.Cart{
			ID:     uuid.New(),
			UserID: userID,
			Status: models.CartStatusPending,
		}
		if err := s.cartRepo.CreateCart(ctx, cart); err != nil {
			return nil, appErrors.DatabaseError("Failed to create cart").WithError(err)
		}

		return cart, nil
	default:
		return nil, appErrors.DatabaseError("Failed to fetch cart").WithError(err)
	}
}

func (s *cartService) hydrateCoupon(ctx context.Context, cart *models.Cart) (*models.Cart, error) {
	if cart.CouponID == nil {
		return cart, nil
	}

	coupon, err := s.couponRepo.GetCouponByID(ctx, *cart.CouponID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			cart.CouponID = nil

			return cart, nil
		}

		return nil, appErrors.DatabaseError("Failed to fetch applied coupon").WithError(err)
	}

	cart.Coupon = coupon

	return cart, nil
}

func (s *cartService) GetCart(ctx context.Context, userID uuid.UUID) (*models.Cart, error) {
	return s.getOrCreateCart(ctx, userID)
}

func (s *cartService) AddItem(ctx context.Context, userID uuid.UUID, req *models.AddItemRequest) (*models.Cart, error) {
	cart, err := s.getOrCreateCart(ctx, userID)
	if err != nil {
		return nil, err
	}

	product, err := s.productRepo.GetProductByID(ctx, req.ProductID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.NotFoundError("Product not found")
		}

		return nil, appErrors.DatabaseError("Failed to fetch product").WithError(err)
	}

	if req.Quantity > product.Stock {
		return nil, appErrors.BadRequestError(fmt.Sprintf(
			"Cannot add %d of product %q to cart. Only %d left in stock.",
			req.Quantity, product.Name, product.Stock))
	}

	if existing := cart.FindItem(req.ProductID); existing != nil {
		existing.Quantity += req.Quantity
		// Re-priced at the current unit price; a previously applied coupon
		// is not reapplied to the new quantity.
		existing.TotalPrice = utils.Round2(float64(existing.Quantity) * product.Price)

		if err := s.cartRepo.UpdateItem(ctx, existing); err != nil {
			return nil, appErrors.DatabaseError("Failed to update cart item").WithError(err)
		}
	} else {
		item := &models.CartItem{
			ID:         uuid.New(),
			CartID:     cart.ID,
			ProductID:  product.ID,
			Quantity:   req.Quantity,
			TotalPrice: utils.Round2(float64(req.Quantity) * product.Price),
			Product:    product,
		}

		if err := s.cartRepo.InsertItem(ctx, item); err != nil {
			return nil, appErrors.DatabaseError("Failed to add item to cart").WithError(err)
		}

		cart.Items = append(cart.Items, *item)
	}

	return s.persistTotals(ctx, cart)
}

func (s *cartService) UpdateQuantity(ctx context.Context, userID uuid.UUID, req *models.UpdateQuantityRequest) (*models.Cart, error) {
	cart, err := s.getOrCreateCart(ctx, userID)
	if err != nil {
		return nil, err
	}

	item := cart.FindItem(req.ProductID)
	if item == nil {
		return nil, appErrors.NotFoundError("Item not found in the cart")
	}

	product, err := s.productRepo.GetProductByID(ctx, req.ProductID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.NotFoundError("Product not found")
		}

		return nil, appErrors.DatabaseError("Failed to fetch product").WithError(err)
	}

	if req.Quantity > product.Stock {
		return nil, appErrors.BadRequestError(fmt.Sprintf(
			"Cannot add %d of product %q to cart. Only %d left in stock.",
			req.Quantity, product.Name, product.Stock))
	}

	item.Quantity = req.Quantity
	item.TotalPrice = utils.Round2(float64(req.Quantity) * product.Price)
	item.PriceBeforeDiscount = nil
	item.DiscountAmount = nil
	item.CouponDiscountPer = nil
	item.AppliedCouponCode = nil

	if err := s.cartRepo.UpdateItem(ctx, item); err != nil {
		return nil, appErrors.DatabaseError("Failed to update cart item").WithError(err)
	}

	// A live coupon is reapplied over the repriced line so quantity changes
	// never leave a stale discount behind. The existing application is not
	// re-validated against expiry or usage limits.
	if cart.Coupon != nil {
		if err := s.applyDiscounts(ctx, cart, cart.Coupon); err != nil {
			return nil, err
		}
	}

	return s.persistTotals(ctx, cart)
}

func (s *cartService) RemoveItem(ctx context.Context, userID uuid.UUID, productID uuid.UUID) (*models.Cart, error) {
	cart, err := s.getOrCreateCart(ctx, userID)
	if err != nil {
		return nil, err
	}

	item := cart.FindItem(productID)
	if item == nil {
		return nil, appErrors.NotFoundError("Item not found in the cart")
	}

	if err := s.cartRepo.DeleteItem(ctx, item.ID); err != nil {
		return nil, appErrors.DatabaseError("Failed to remove cart item").WithError(err)
	}

	remaining := make([]models.CartItem, 0, len(cart.Items)-1)
	for _, existing := range cart.Items {
		if existing.ID != item.ID {
			remaining = append(remaining, existing)
		}
	}
	cart.Items = remaining

	return s.persistTotals(ctx, cart)
}

func (s *cartService) ClearCart(ctx context.Context, userID uuid.UUID) error {
	cart, err := s.getOrCreateCart(ctx, userID)
	if err != nil {
		return err
	}

	if err := s.cartRepo.ClearItems(ctx, cart.ID); err != nil {
		return appErrors.DatabaseError("Failed to clear cart").WithError(err)
	}

	cart.Items = nil
	cart.TotalPrice = 0
	cart.CouponID = nil
	cart.Coupon = nil

	if err := s.cartRepo.SaveCart(ctx, cart); err != nil {
		return appErrors.DatabaseError("Failed to save cart").WithError(err)
	}

	return nil
}

func (s *cartService) ApplyCoupon(ctx context.Context, userID uuid.UUID, code string) (*models.Cart, error) {
	cart, err := s.getOrCreateCart(ctx, userID)
	if err != nil {
		return nil, err
	}

	coupon, err := s.couponRepo.GetCouponByCode(ctx, code)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.NotFoundError("Coupon not found")
		}

		return nil, appErrors.DatabaseError("Failed to fetch coupon").WithError(err)
	}

	if time.Now().After(coupon.ExpiryDate) {
		return nil, appErrors.BadRequestError("This coupon has expired.")
	}

	if coupon.UsageLimit <= 0 {
		return nil, appErrors.BadRequestError("This coupon has reached its usage limit.")
	}

	if !coupon.IsGlobal && !coupon.AuthorizedFor(userID) {
		return nil, appErrors.BadRequestError("You are not authorized to use this coupon")
	}

	if cart.Coupon != nil {
		return nil, appErrors.BadRequestError("A coupon is already applied to this cart")
	}

	if err := s.applyDiscounts(ctx, cart, coupon); err != nil {
		return nil, err
	}

	cart.CouponID = &coupon.ID
	cart.Coupon = coupon

	return s.persistTotals(ctx, cart)
}

func (s *cartService) RemoveCoupon(ctx context.Context, userID uuid.UUID) (*models.Cart, error) {
	cart, err := s.getOrCreateCart(ctx, userID)
	if err != nil {
		return nil, err
	}

	if cart.Coupon == nil && cart.CouponID == nil {
		return nil, appErrors.BadRequestError("No coupon applied to remove")
	}

	for i := range cart.Items {
		item := &cart.Items[i]
		if item.AppliedCouponCode == nil {
			continue
		}

		if item.PriceBeforeDiscount != nil {
			item.TotalPrice = *item.PriceBeforeDiscount
		}
		item.PriceBeforeDiscount = nil
		item.DiscountAmount = nil
		item.CouponDiscountPer = nil
		item.AppliedCouponCode = nil

		if err := s.cartRepo.UpdateItem(ctx, item); err != nil {
			return nil, appErrors.DatabaseError("Failed to update cart item").WithError(err)
		}
	}

	cart.CouponID = nil
	cart.Coupon = nil

	return s.persistTotals(ctx, cart)
}

// applyDiscounts stamps the coupon's discount onto every eligible line. Each
// line keeps its pre-discount price so removal can restore it exactly.
func (s *cartService) applyDiscounts(ctx context.Context, cart *models.Cart, coupon *models.Coupon) error {
	for i := range cart.Items {
		item := &cart.Items[i]
		if !coupon.EligibleFor(item.ProductID) {
			continue
		}

		// Lines already carrying this coupon keep their discount as is.
		if item.AppliedCouponCode != nil {
			continue
		}

		before := item.TotalPrice
		discount := utils.Round2(coupon.DiscountFor(before))
		discounted := utils.Round2(math.Max(0, before-discount))

		item.PriceBeforeDiscount = &before
		item.DiscountAmount = &discount
		item.CouponDiscountPer = &coupon.DiscountValue
		item.AppliedCouponCode = &coupon.Code
		item.TotalPrice = discounted

		if err := s.cartRepo.UpdateItem(ctx, item); err != nil {
			return appErrors.DatabaseError("Failed to update cart item").WithError(err)
		}
	}

	return nil
}

// persistTotals recomputes the cart total from its lines and saves the cart
// header.
func (s *cartService) persistTotals(ctx context.Context, cart *models.Cart) (*models.Cart, error) {
	var total float64
	for _, item := range cart.Items {
		total += item.TotalPrice
	}
	cart.TotalPrice = utils.Round2(total)

	if err := s.cartRepo.SaveCart(ctx, cart); err != nil {
		return nil, appErrors.DatabaseError("Failed to save cart").WithError(err)
	}

	return cart, nil
}
