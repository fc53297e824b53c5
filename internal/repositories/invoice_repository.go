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

// ErrRefundQuantityExceeded is returned when a refunded-quantity bump would
// push a line past the quantity that was purchased.
var ErrRefundQuantityExceeded = errors.New("refund quantity exceeds purchased quantity")

type InvoiceRepository interface {
	CreateInvoice(ctx context.Context, q Querier, invoice *models.Invoice) error
	GetInvoiceByID(ctx context.Context, id uuid.UUID) (*models.Invoice, error)
	ListInvoices(ctx context.Context) ([]*models.Invoice, error)
	ListInvoicesByUser(ctx context.Context, userID uuid.UUID) ([]*models.Invoice, error)
	AddRefund(ctx context.Context, q Querier, refund *models.RefundItem, status models.InvoiceStatus, refundedAmount float64) error
	AddRefundedQuantity(ctx context.Context, q Querier, invoiceID, productID uuid.UUID, quantity int) error
}

type invoiceRepository struct {
	DB *sql.DB
}

func NewInvoiceRepo(db *sql.DB) InvoiceRepository {
	return &invoiceRepository{DB: db}
}

// CreateInvoice inserts the invoice and its frozen line items. It accepts a
// Querier so settlement can run it inside the same transaction as the stock
// and coupon mutations.
func (r *invoiceRepository) CreateInvoice(ctx context.Context, q Querier, invoice *models.Invoice) error {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	query := `
		INSERT INTO invoices (id, user_id, order_number, status, amount, coupon_id, payment_method, payment_intent_id, refunded_amount)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 0)
		RETURNING created_at, updated_at
	`

	err := q.QueryRowContext(dbCtx, query,
		invoice.ID, invoice.UserID, invoice.OrderNumber, invoice.Status, invoice.Amount,
		invoice.CouponID, invoice.PaymentMethod, invoice.PaymentIntentID,
	).Scan(&invoice.CreatedAt, &invoice.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert invoice: %w", err)
	}

	lineQuery := `
		INSERT INTO invoice_products (id, invoice_id, product_id, product_name, quantity, price)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	for i := range invoice.Products {
		line := &invoice.Products[i]

		if _, err := q.ExecContext(dbCtx, lineQuery,
			line.ID, invoice.ID, line.ProductID, line.ProductName, line.Quantity, line.Price,
		); err != nil {
			return fmt.Errorf("failed to insert invoice product: %w", err)
		}
	}

	return nil
}

func (r *invoiceRepository) GetInvoiceByID(ctx context.Context, id uuid.UUID) (*models.Invoice, error) {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	query := `
		SELECT id, user_id, order_number, status, amount, coupon_id, payment_method,
		       COALESCE(payment_intent_id, ''), refunded_amount, created_at, updated_at
		FROM invoices
		WHERE id = $1
	`

	invoice := &models.Invoice{}

	err := r.DB.QueryRowContext(dbCtx, query, id).Scan(
		&invoice.ID, &invoice.UserID, &invoice.OrderNumber, &invoice.Status, &invoice.Amount,
		&invoice.CouponID, &invoice.PaymentMethod, &invoice.PaymentIntentID,
		&invoice.RefundedAmount, &invoice.CreatedAt, &invoice.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}

		return nil, fmt.Errorf("querying database: %w", err)
	}

	if err := r.loadProducts(dbCtx, invoice); err != nil {
		return nil, err
	}

	if err := r.loadRefunds(dbCtx, invoice); err != nil {
		return nil, err
	}

	return invoice, nil
}

// loadProducts reads the frozen lines off invoice_products itself. The
// product name was copied at settlement time, so a renamed or deleted
// catalog product never changes an issued invoice.
func (r *invoiceRepository) loadProducts(ctx context.Context, invoice *models.Invoice) error {
	query := `
		SELECT id, invoice_id, product_id, product_name, quantity, price, refunded_quantity
		FROM invoice_products
		WHERE invoice_id = $1
	`

	rows, err := r.DB.QueryContext(ctx, query, invoice.ID)
	if err != nil {
		return fmt.Errorf("failed to load invoice products: %w", err)
	}

	defer rows.Close()

	for rows.Next() {
		var line models.InvoiceProduct

		err := rows.Scan(&line.ID, &line.InvoiceID, &line.ProductID, &line.ProductName,
			&line.Quantity, &line.Price, &line.RefundedQuantity)
		if err != nil {
			return fmt.Errorf("failed to scan invoice product: %w", err)
		}

		invoice.Products = append(invoice.Products, line)
	}

	return rows.Err()
}

func (r *invoiceRepository) loadRefunds(ctx context.Context, invoice *models.Invoice) error {
	query := `
		SELECT id, invoice_id, amount, payment_method, refund_id, COALESCE(reason, ''), created_at
		FROM refund_items
		WHERE invoice_id = $1
		ORDER BY created_at
	`

	rows, err := r.DB.QueryContext(ctx, query, invoice.ID)
	if err != nil {
		return fmt.Errorf("failed to load refund items: %w", err)
	}

	defer rows.Close()

	for rows.Next() {
		var refund models.RefundItem

		err := rows.Scan(&refund.ID, &refund.InvoiceID, &refund.Amount, &refund.PaymentMethod,
			&refund.RefundID, &refund.Reason, &refund.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to scan refund item: %w", err)
		}

		invoice.Refunds = append(invoice.Refunds, refund)
	}

	return rows.Err()
}

func (r *invoiceRepository) ListInvoices(ctx context.Context) ([]*models.Invoice, error) {
	return r.listInvoices(ctx, ``)
}

func (r *invoiceRepository) ListInvoicesByUser(ctx context.Context, userID uuid.UUID) ([]*models.Invoice, error) {
	return r.listInvoices(ctx, `WHERE user_id = $1`, userID)
}

func (r *invoiceRepository) listInvoices(ctx context.Context, where string, args ...any) ([]*models.Invoice, error) {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	query := `
		SELECT id, user_id, order_number, status, amount, coupon_id, payment_method,
		       COALESCE(payment_intent_id, ''), refunded_amount, created_at, updated_at
		FROM invoices
	` + where + `
		ORDER BY created_at DESC
	`

	rows, err := r.DB.QueryContext(dbCtx, query, args...)
	if err != nil {
		return nil, err
	}

	defer rows.Close()

	var invoices []*models.Invoice

	for rows.Next() {
		invoice := &models.Invoice{}

		err := rows.Scan(
			&invoice.ID, &invoice.UserID, &invoice.OrderNumber, &invoice.Status, &invoice.Amount,
			&invoice.CouponID, &invoice.PaymentMethod, &invoice.PaymentIntentID,
			&invoice.RefundedAmount, &invoice.CreatedAt, &invoice.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}

		invoices = append(invoices, invoice)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return invoices, nil
}

// AddRefund appends a refund record and moves the invoice status and
// accumulated refunded amount in the same unit of work.
func (r *invoiceRepository) AddRefund(ctx context.Context, q Querier, refund *models.RefundItem, status models.InvoiceStatus, refundedAmount float64) error {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	query := `
		INSERT INTO refund_items (id, invoice_id, amount, payment_method, refund_id, reason)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''))
		RETURNING created_at
	`

	err := q.QueryRowContext(dbCtx, query,
		refund.ID, refund.InvoiceID, refund.Amount, refund.PaymentMethod, refund.RefundID, refund.Reason,
	).Scan(&refund.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert refund item: %w", err)
	}

	update := `
		UPDATE invoices
		SET status = $1, refunded_amount = $2, updated_at = NOW()
		WHERE id = $3
	`

	if _, err := q.ExecContext(dbCtx, update, status, refundedAmount, refund.InvoiceID); err != nil {
		return fmt.Errorf("failed to update invoice refund state: %w", err)
	}

	return nil
}

// AddRefundedQuantity bumps the refunded counter on one invoice line. The
// guard in the WHERE clause keeps the counter within the purchased quantity,
// so a concurrent refund racing on the same line cannot over-restock.
func (r *invoiceRepository) AddRefundedQuantity(ctx context.Context, q Querier, invoiceID, productID uuid.UUID, quantity int) error {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	query := `
		UPDATE invoice_products
		SET refunded_quantity = refunded_quantity + $3
		WHERE invoice_id = $1 AND product_id = $2 AND refunded_quantity + $3 <= quantity
	`

	result, err := q.ExecContext(dbCtx, query, invoiceID, productID, quantity)
	if err != nil {
		return fmt.Errorf("failed to update refunded quantity: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}

	if affected == 0 {
		return ErrRefundQuantityExceeded
	}

	return nil
}
