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
)

type InvoiceService interface {
	GetInvoice(ctx context.Context, id uuid.UUID) (*models.Invoice, error)
	ListInvoices(ctx context.Context) ([]*models.Invoice, error)
	ListInvoicesByUser(ctx context.Context, userID uuid.UUID) ([]*models.Invoice, error)
	CreateManualInvoice(ctx context.Context, req *models.CreateManualInvoiceRequest) (*models.Invoice, error)
	GetInvoicePDF(ctx context.Context, id uuid.UUID) ([]byte, error)
	ProcessFullRefund(ctx context.Context, id uuid.UUID, reason string) (*models.Invoice, error)
	ProcessPartialRefund(ctx context.Context, id uuid.UUID, req *models.PartialRefundRequest) (*models.Invoice, error)
}

type invoiceService struct {
	repo     *repository.Repository
	gateways map[models.PaymentMethod]PaymentGateway
	renderer pdfgen.Renderer
	logger   *slog.Logger
}

func NewInvoiceService(repo *repository.Repository, gateways map[models.PaymentMethod]PaymentGateway, renderer pdfgen.Renderer, logger *slog.Logger) InvoiceService {
	return &invoiceService{repo: repo, gateways: gateways, renderer: renderer, logger: logger}
}

func (s *invoiceService) GetInvoice(ctx context.Context, id uuid.UUID) (*models.Invoice, error) {
	invoice, err := s.repo.Invoice.GetInvoiceByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.NotFoundError("Invoice not found")
		}

		return nil, appErrors.DatabaseError("Failed to fetch invoice").WithError(err)
	}

	return invoice, nil
}

func (s *invoiceService) ListInvoices(ctx context.Context) ([]*models.Invoice, error) {
	invoices, err := s.repo.Invoice.ListInvoices(ctx)
	if err != nil {
		return nil, appErrors.DatabaseError("Failed to list invoices").WithError(err)
	}

	return invoices, nil
}

func (s *invoiceService) ListInvoicesByUser(ctx context.Context, userID uuid.UUID) ([]*models.Invoice, error) {
	invoices, err := s.repo.Invoice.ListInvoicesByUser(ctx, userID)
	if err != nil {
		return nil, appErrors.DatabaseError("Failed to list invoices").WithError(err)
	}

	return invoices, nil
}

// CreateManualInvoice records a sale made outside the cart flow, for
// example over the phone. Stock is decremented the same way settlement does
// it.
func (s *invoiceService) CreateManualInvoice(ctx context.Context, req *models.CreateManualInvoiceRequest) (*models.Invoice, error) {
	user, err := s.repo.User.GetUserByID(ctx, req.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.NotFoundError("User not found")
		}

		return nil, appErrors.DatabaseError("Failed to fetch user").WithError(err)
	}

	now := time.Now()
	invoice := &models.Invoice{
		ID:            uuid.New(),
		UserID:        user.ID,
		OrderNumber:   utils.NewOrderNumber(),
		Status:        req.Status,
		PaymentMethod: models.PaymentMethodCash,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	var total float64

	for _, line := range req.Products {
		product, err := s.repo.Product.GetProductByID(ctx, line.ProductID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.NotFoundError(fmt.Sprintf("Product not found: %s", line.ProductID))
			}

			return nil, appErrors.DatabaseError("Failed to fetch product").WithError(err)
		}

		invoice.Products = append(invoice.Products, models.InvoiceProduct{
			ID:          uuid.New(),
			InvoiceID:   invoice.ID,
			ProductID:   product.ID,
			ProductName: product.Name,
			Quantity:    line.Quantity,
			Price:       product.Price,
		})

		total += float64(line.Quantity) * product.Price
	}

	invoice.Amount = utils.Round2(total)

	err = s.repo.WithinTx(ctx, func(tx *sql.Tx) error {
		for _, line := range invoice.Products {
			if err := s.repo.Product.DecrementStock(ctx, tx, line.ProductID, line.Quantity); err != nil {
				if errors.Is(err, repository.ErrInsufficientStock) {
					return appErrors.BadRequestError(fmt.Sprintf("Insufficient stock for product: %s", line.ProductName))
				}

				return appErrors.DatabaseError("Failed to update product stock").WithError(err)
			}
		}

		if err := s.repo.Invoice.CreateInvoice(ctx, tx, invoice); err != nil {
			return appErrors.DatabaseError("Failed to create invoice").WithError(err)
		}

		return nil
	})
	if err != nil {
		if appErr, ok := appErrors.IsAppError(err); ok {
			return nil, appErr
		}

		return nil, appErrors.DatabaseError("Failed to create invoice").WithError(err)
	}

	return invoice, nil
}

func (s *invoiceService) GetInvoicePDF(ctx context.Context, id uuid.UUID) ([]byte, error) {
	invoice, err := s.GetInvoice(ctx, id)
	if err != nil {
		return nil, err
	}

	user, err := s.repo.User.GetUserByID(ctx, invoice.UserID)
	if err != nil {
		return nil, appErrors.DatabaseError("Failed to fetch user").WithError(err)
	}

	pdf, err := s.renderer.RenderInvoice(invoice, user)
	if err != nil {
		return nil, appErrors.InternalError("Failed to render invoice").WithError(err)
	}

	return pdf, nil
}

func (s *invoiceService) ProcessFullRefund(ctx context.Context, id uuid.UUID, reason string) (*models.Invoice, error) {
	invoice, err := s.GetInvoice(ctx, id)
	if err != nil {
		return nil, err
	}

	if invoice.Status == models.InvoiceStatusRefunded {
		return nil, appErrors.BadRequestError("This invoice has already been fully refunded")
	}

	amount := utils.Round2(invoice.Amount - invoice.RefundedAmount)
	if amount <= 0 {
		return nil, appErrors.BadRequestError("There is nothing left to refund on this invoice")
	}

	// Only the quantities no earlier refund already returned go back to
	// stock. A full refund after a partial one restocks the remainder.
	restock := make(map[uuid.UUID]int, len(invoice.Products))
	for _, line := range invoice.Products {
		if left := line.Quantity - line.RefundedQuantity; left > 0 {
			restock[line.ProductID] += left
		}
	}

	return s.executeRefund(ctx, invoice, amount, reason, models.InvoiceStatusRefunded, restock)
}

func (s *invoiceService) ProcessPartialRefund(ctx context.Context, id uuid.UUID, req *models.PartialRefundRequest) (*models.Invoice, error) {
	invoice, err := s.GetInvoice(ctx, id)
	if err != nil {
		return nil, err
	}

	if invoice.Status == models.InvoiceStatusRefunded {
		return nil, appErrors.BadRequestError("This invoice has already been fully refunded")
	}

	var amount float64
	restock := make(map[uuid.UUID]int, len(req.Items))

	for _, line := range req.Items {
		purchased := invoice.FindProduct(line.ProductID)
		if purchased == nil {
			return nil, appErrors.BadRequestError(fmt.Sprintf("Product %s not found in invoice", line.ProductID))
		}

		refundable := purchased.Quantity - purchased.RefundedQuantity
		if line.Quantity > refundable {
			return nil, appErrors.BadRequestError(fmt.Sprintf(
				"Cannot refund %d of product %q. Only %d remain refundable.",
				line.Quantity, purchased.ProductName, refundable))
		}

		amount += float64(line.Quantity) * purchased.Price
		restock[line.ProductID] += line.Quantity
	}

	amount = utils.Round2(amount)

	remaining := utils.Round2(invoice.Amount - invoice.RefundedAmount)
	if amount > remaining {
		return nil, appErrors.BadRequestError("Refund amount exceeds the refundable balance on this invoice")
	}

	status := models.InvoiceStatusPartiallyRefunded
	if utils.Round2(invoice.RefundedAmount+amount) >= invoice.Amount {
		status = models.InvoiceStatusRefunded
	}

	return s.executeRefund(ctx, invoice, amount, req.Reason, status, restock)
}

func (s *invoiceService) executeRefund(ctx context.Context, invoice *models.Invoice, amount float64, reason string, status models.InvoiceStatus, restock map[uuid.UUID]int) (*models.Invoice, error) {
	gateway, ok := s.gateways[invoice.PaymentMethod]
	if !ok {
		return nil, appErrors.InternalError("Payment method is not configured")
	}

	refundID, err := gateway.Refund(ctx, invoice.PaymentIntentID, amount)
	if err != nil {
		return nil, appErrors.ThirdPartyError("Failed to process refund with the payment provider").WithError(err)
	}

	refund := &models.RefundItem{
		ID:            uuid.New(),
		InvoiceID:     invoice.ID,
		Amount:        amount,
		PaymentMethod: invoice.PaymentMethod,
		RefundID:      refundID,
		Reason:        reason,
		CreatedAt:     time.Now(),
	}

	refundedAmount := utils.Round2(invoice.RefundedAmount + amount)

	err = s.repo.WithinTx(ctx, func(tx *sql.Tx) error {
		if err := s.repo.Invoice.AddRefund(ctx, tx, refund, status, refundedAmount); err != nil {
			return appErrors.DatabaseError("Failed to record refund").WithError(err)
		}

		for productID, quantity := range restock {
			if err := s.repo.Invoice.AddRefundedQuantity(ctx, tx, invoice.ID, productID, quantity); err != nil {
				if errors.Is(err, repository.ErrRefundQuantityExceeded) {
					return appErrors.BadRequestError("Refund quantity exceeds what remains refundable on this invoice")
				}

				return appErrors.DatabaseError("Failed to record refunded quantity").WithError(err)
			}

			if err := s.repo.Product.IncrementStock(ctx, tx, productID, quantity); err != nil {
				return appErrors.DatabaseError("Failed to restore product stock").WithError(err)
			}
		}

		return nil
	})
	if err != nil {
		// The provider refund already went through; the ledger write is the
		// part that failed.
		s.logger.Error("refund recorded at provider but not persisted",
			slog.String("invoiceId", invoice.ID.String()),
			slog.String("refundId", refundID),
			slog.Any("error", err))

		if appErr, ok := appErrors.IsAppError(err); ok {
			return nil, appErr
		}

		return nil, appErrors.DatabaseError("Failed to record refund").WithError(err)
	}

	invoice.Status = status
	invoice.RefundedAmount = refundedAmount
	invoice.Refunds = append(invoice.Refunds, *refund)
	invoice.UpdatedAt = time.Now()

	metrics.ObserveRefund(string(invoice.PaymentMethod))

	s.logger.Info("refund processed",
		slog.String("invoiceId", invoice.ID.String()),
		slog.String("refundId", refundID),
		slog.Float64("amount", amount))

	return invoice, nil
}
