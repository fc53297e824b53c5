package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	appErrors "github.com/trinity-shop/trinity-platform/internal/errors"
	"github.com/trinity-shop/trinity-platform/internal/metrics"
	"github.com/trinity-shop/trinity-platform/internal/models"
	"github.com/trinity-shop/trinity-platform/internal/repositories"
	"github.com/trinity-shop/trinity-platform/internal/utils"
	"github.com/trinity-shop/trinity-platform/pkg/pdfgen"
	"github.com/trinity-shop/trinity-platform/pkg/sendgrid"
)

// settlementEngine turns a paid-for pending cart into an invoice. Stock
// decrement, coupon usage consumption, invoice creation and the cart's
// PENDING to PAID transition all commit in one database transaction, so a
// partial settlement can never be observed. The cart row update doubles as
// the idempotency guard: a second settlement of the same cart finds no
// PENDING row to flip and fails cleanly.
type settlementEngine struct {
	repo     *repository.Repository
	lockRepo repository.SettlementLockRepository
	renderer pdfgen.Renderer
	notifier sendgrid.Notifier
	logger   *slog.Logger
}

func NewSettlementEngine(repo *repository.Repository, lockRepo repository.SettlementLockRepository, renderer pdfgen.Renderer, notifier sendgrid.Notifier, logger *slog.Logger) *settlementEngine {
	return &settlementEngine{
		repo:     repo,
		lockRepo: lockRepo,
		renderer: renderer,
		notifier: notifier,
		logger:   logger,
	}
}

func (e *settlementEngine) settle(ctx context.Context, cart *models.Cart, method models.PaymentMethod, providerTxID string) (*models.Invoice, error) {
	if len(cart.Items) == 0 {
		return nil, appErrors.BadRequestError("Cannot process an empty cart.")
	}

	acquired, err := e.lockRepo.AcquireSettlementLock(ctx, cart.ID)
	if err != nil {
		return nil, appErrors.InternalError("Failed to acquire settlement lock").WithError(err)
	}

	if !acquired {
		return nil, appErrors.TooManyRequestsError("Another settlement for this cart is already in progress")
	}

	defer func() {
		if err := e.lockRepo.ReleaseSettlementLock(context.WithoutCancel(ctx), cart.ID); err != nil {
			e.logger.Warn("failed to release settlement lock", slog.String("cartId", cart.ID.String()), slog.Any("error", err))
		}
	}()

	invoice := e.buildInvoice(cart, method, providerTxID)

	err = e.repo.WithinTx(ctx, func(tx *sql.Tx) error {
		for _, item := range cart.Items {
			if err := e.repo.Product.DecrementStock(ctx, tx, item.ProductID, item.Quantity); err != nil {
				if errors.Is(err, repository.ErrInsufficientStock) {
					name := item.ProductID.String()
					if item.Product != nil {
						name = item.Product.Name
					}

					return appErrors.BadRequestError(fmt.Sprintf("Insufficient stock for product: %s", name))
				}

				return appErrors.DatabaseError("Failed to update product stock").WithError(err)
			}
		}

		if cart.CouponID != nil {
			if err := e.repo.Coupon.ConsumeUsage(ctx, tx, *cart.CouponID); err != nil {
				if errors.Is(err, repository.ErrCouponExhausted) {
					return appErrors.BadRequestError("This coupon has reached its usage limit.")
				}

				return appErrors.DatabaseError("Failed to consume coupon usage").WithError(err)
			}
		}

		if err := e.repo.Invoice.CreateInvoice(ctx, tx, invoice); err != nil {
			return appErrors.DatabaseError("Failed to create invoice").WithError(err)
		}

		if err := e.repo.Cart.SettleCart(ctx, tx, cart.ID); err != nil {
			if errors.Is(err, repository.ErrCartAlreadySettled) {
				return appErrors.BadRequestError("This cart has already been settled")
			}

			return appErrors.DatabaseError("Failed to settle cart").WithError(err)
		}

		return nil
	})
	if err != nil {
		if appErr, ok := appErrors.IsAppError(err); ok {
			return nil, appErr
		}

		return nil, appErrors.DatabaseError("Failed to settle cart").WithError(err)
	}

	metrics.ObserveSettlement(string(method))

	e.sendConfirmation(ctx, invoice)

	return invoice, nil
}

func (e *settlementEngine) buildInvoice(cart *models.Cart, method models.PaymentMethod, providerTxID string) *models.Invoice {
	now := time.Now()

	invoice := &models.Invoice{
		ID:              uuid.New(),
		UserID:          cart.UserID,
		OrderNumber:     utils.NewOrderNumber(),
		Status:          models.InvoiceStatusPaid,
		Amount:          cart.TotalPrice,
		CouponID:        cart.CouponID,
		PaymentMethod:   method,
		PaymentIntentID: providerTxID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	for _, item := range cart.Items {
		line := models.InvoiceProduct{
			ID:        uuid.New(),
			InvoiceID: invoice.ID,
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
		}

		if item.Product != nil {
			line.ProductName = item.Product.Name
			line.Price = item.Product.Price
		}

		invoice.Products = append(invoice.Products, line)
	}

	return invoice
}

// sendConfirmation renders the invoice PDF and mails it. Both steps are
// best-effort: the settlement already committed.
func (e *settlementEngine) sendConfirmation(ctx context.Context, invoice *models.Invoice) {
	user, err := e.repo.User.GetUserByID(ctx, invoice.UserID)
	if err != nil {
		e.logger.Warn("failed to load user for order confirmation",
			slog.String("invoiceId", invoice.ID.String()), slog.Any("error", err))

		return
	}

	pdf, err := e.renderer.RenderInvoice(invoice, user)
	if err != nil {
		e.logger.Warn("failed to render invoice pdf",
			slog.String("invoiceId", invoice.ID.String()), slog.Any("error", err))

		pdf = nil
	}

	if err := e.notifier.SendOrderConfirmation(ctx, user, invoice, pdf); err != nil {
		e.logger.Warn("failed to send order confirmation email",
			slog.String("invoiceId", invoice.ID.String()), slog.Any("error", err))
	}
}
