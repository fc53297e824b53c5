package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	appErrors "github.com/trinity-shop/trinity-platform/internal/errors"
	"github.com/trinity-shop/trinity-platform/internal/models"
	"github.com/trinity-shop/trinity-platform/internal/utils"
)

type CheckoutService interface {
	Checkout(ctx context.Context, userID uuid.UUID, req *models.CheckoutRequest) (*models.CheckoutResponse, error)
}

type checkoutService struct {
	cartService CartService
	gateways    map[models.PaymentMethod]PaymentGateway
	settlement  *settlementEngine
	logger      *slog.Logger
}

func NewCheckoutService(cartService CartService, gateways map[models.PaymentMethod]PaymentGateway, settlement *settlementEngine, logger *slog.Logger) CheckoutService {
	return &checkoutService{
		cartService: cartService,
		gateways:    gateways,
		settlement:  settlement,
		logger:      logger,
	}
}

func (s *checkoutService) Checkout(ctx context.Context, userID uuid.UUID, req *models.CheckoutRequest) (*models.CheckoutResponse, error) {
	cart, err := s.cartService.GetCart(ctx, userID)
	if err != nil {
		return nil, err
	}

	if len(cart.Items) == 0 {
		return nil, appErrors.BadRequestError("Cannot checkout an empty cart")
	}

	// Live stock check before any money moves; the settlement transaction
	// re-checks under the conditional decrement.
	for _, item := range cart.Items {
		if item.Product == nil {
			continue
		}

		if item.Quantity > item.Product.Stock {
			return nil, appErrors.BadRequestError(fmt.Sprintf("Insufficient stock for product: %s", item.Product.Name))
		}
	}

	switch req.PaymentMethod {
	case "cash":
		return s.checkoutCash(ctx, cart, req.CashPaid)
	case "stripe":
		return s.checkoutRedirect(ctx, cart, models.PaymentMethodStripe)
	case "paypal":
		return s.checkoutRedirect(ctx, cart, models.PaymentMethodPaypal)
	default:
		return nil, appErrors.BadRequestError("Invalid payment method")
	}
}

func (s *checkoutService) checkoutCash(ctx context.Context, cart *models.Cart, cashPaid *float64) (*models.CheckoutResponse, error) {
	if cashPaid == nil {
		return nil, appErrors.BadRequestError("Cash amount must be provided for cash payment.")
	}

	if *cashPaid < cart.TotalPrice {
		shortfall := utils.Round2(cart.TotalPrice - *cashPaid)

		return nil, appErrors.BadRequestError(fmt.Sprintf("Insufficient cash provided. Additional $%.2f is required.", shortfall))
	}

	invoice, err := s.settlement.settle(ctx, cart, models.PaymentMethodCash, "")
	if err != nil {
		return nil, err
	}

	change := utils.Round2(*cashPaid - cart.TotalPrice)

	s.logger.Info("cash checkout settled",
		slog.String("cartId", cart.ID.String()),
		slog.String("invoiceId", invoice.ID.String()))

	return &models.CheckoutResponse{
		Invoice: invoice,
		Change:  &change,
		Message: "Cash payment processed successfully.",
	}, nil
}

func (s *checkoutService) checkoutRedirect(ctx context.Context, cart *models.Cart, method models.PaymentMethod) (*models.CheckoutResponse, error) {
	gateway, ok := s.gateways[method]
	if !ok {
		return nil, appErrors.InternalError(fmt.Sprintf("Payment method %s is not configured", method))
	}

	correlation := Correlation{UserID: cart.UserID, CartID: cart.ID}

	redirectURL, err := gateway.CreateCheckout(ctx, cart, correlation, checkoutTotals(cart))
	if err != nil {
		return nil, appErrors.ThirdPartyError("Failed to initiate payment").WithError(err)
	}

	response := &models.CheckoutResponse{}

	switch method {
	case models.PaymentMethodStripe:
		response.CheckoutURL = redirectURL
	case models.PaymentMethodPaypal:
		response.ApprovalURL = redirectURL
	}

	return response, nil
}

// checkoutTotals derives the provider-side breakdown. The payable total is
// the cart's discounted total; the item total is recomputed from the live
// unit prices the provider line items carry.
func checkoutTotals(cart *models.Cart) CheckoutTotals {
	var itemTotal float64

	for _, item := range cart.Items {
		if item.Product != nil {
			itemTotal += float64(item.Quantity) * item.Product.Price
		} else {
			itemTotal += item.TotalPrice
		}
	}

	itemTotal = utils.Round2(itemTotal)
	discount := utils.Round2(itemTotal - cart.TotalPrice)
	if discount < 0 {
		discount = 0
	}

	return CheckoutTotals{
		ItemTotal: itemTotal,
		Discount:  discount,
		Total:     cart.TotalPrice,
	}
}
