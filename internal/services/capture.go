package service

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	appErrors "github.com/trinity-shop/trinity-platform/internal/errors"
	"github.com/trinity-shop/trinity-platform/internal/models"
	"github.com/trinity-shop/trinity-platform/internal/repositories"
)

// CaptureService finalizes redirect-based payments after the buyer returns
// from the provider.
type CaptureService interface {
	CapturePaypal(ctx context.Context, orderID string) (*models.CaptureResult, error)
	CaptureStripe(ctx context.Context, sessionID string) (*models.CaptureResult, error)
}

type captureService struct {
	cartRepo   repository.CartRepository
	couponRepo repository.CouponRepository
	gateways   map[models.PaymentMethod]PaymentGateway
	settlement *settlementEngine
	logger     *slog.Logger
}

func NewCaptureService(cartRepo repository.CartRepository, couponRepo repository.CouponRepository, gateways map[models.PaymentMethod]PaymentGateway, settlement *settlementEngine, logger *slog.Logger) CaptureService {
	return &captureService{
		cartRepo:   cartRepo,
		couponRepo: couponRepo,
		gateways:   gateways,
		settlement: settlement,
		logger:     logger,
	}
}

func (s *captureService) CapturePaypal(ctx context.Context, orderID string) (*models.CaptureResult, error) {
	return s.capture(ctx, models.PaymentMethodPaypal, orderID)
}

func (s *captureService) CaptureStripe(ctx context.Context, sessionID string) (*models.CaptureResult, error) {
	return s.capture(ctx, models.PaymentMethodStripe, sessionID)
}

func (s *captureService) capture(ctx context.Context, method models.PaymentMethod, providerRef string) (*models.CaptureResult, error) {
	gateway, ok := s.gateways[method]
	if !ok {
		return nil, appErrors.InternalError("Payment method is not configured")
	}

	outcome, err := gateway.Capture(ctx, providerRef)
	if err != nil {
		return nil, appErrors.ThirdPartyError("Failed to capture payment").WithError(err)
	}

	if !outcome.Settled {
		return &models.CaptureResult{Message: outcome.Info}, nil
	}

	cart, err := s.cartRepo.GetCartByID(ctx, outcome.Correlation.CartID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.NotFoundError("Cart not found or mismatched cart ID.")
		}

		return nil, appErrors.DatabaseError("Failed to fetch cart").WithError(err)
	}

	if cart.UserID != outcome.Correlation.UserID {
		return nil, appErrors.NotFoundError("Cart not found or mismatched cart ID.")
	}

	if cart.CouponID != nil {
		coupon, err := s.couponRepo.GetCouponByID(ctx, *cart.CouponID)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.DatabaseError("Failed to fetch applied coupon").WithError(err)
		}
		cart.Coupon = coupon
	}

	invoice, err := s.settlement.settle(ctx, cart, method, outcome.ProviderTxID)
	if err != nil {
		return nil, err
	}

	s.logger.Info("payment captured",
		slog.String("method", string(method)),
		slog.String("cartId", cart.ID.String()),
		slog.String("invoiceId", invoice.ID.String()))

	return &models.CaptureResult{
		Invoice: invoice,
		Message: "Payment captured and invoice created successfully.",
	}, nil
}
