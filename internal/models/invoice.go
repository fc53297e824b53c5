package models

import (
	"time"

	"github.com/google/uuid"
)

type InvoiceStatus string

const (
	InvoiceStatusPending           InvoiceStatus = "PENDING"
	InvoiceStatusPaid              InvoiceStatus = "PAID"
	InvoiceStatusCancelled         InvoiceStatus = "CANCELLED"
	InvoiceStatusRefunded          InvoiceStatus = "REFUNDED"
	InvoiceStatusPartiallyRefunded InvoiceStatus = "PARTIALLY_REFUNDED"
)

type PaymentMethod string

const (
	PaymentMethodCash   PaymentMethod = "CASH"
	PaymentMethodStripe PaymentMethod = "STRIPE"
	PaymentMethodPaypal PaymentMethod = "PAYPAL"
)

// InvoiceProduct freezes a purchased line at settlement time. Price is the
// unit price at purchase and stays untouched by later catalog changes.
type InvoiceProduct struct {
	ID               uuid.UUID `json:"id"`
	InvoiceID        uuid.UUID `json:"invoice_id"`
	ProductID        uuid.UUID `json:"product_id"`
	ProductName      string    `json:"product_name"`
	Quantity         int       `json:"quantity"`
	Price            float64   `json:"price"`
	RefundedQuantity int       `json:"refunded_quantity"`
}

// RefundItem is an append-only record of one refund action against an
// invoice.
type RefundItem struct {
	ID            uuid.UUID     `json:"id"`
	InvoiceID     uuid.UUID     `json:"invoice_id"`
	Amount        float64       `json:"amount"`
	PaymentMethod PaymentMethod `json:"payment_method"`
	RefundID      string        `json:"refund_id"`
	Reason        string        `json:"reason,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
}

type Invoice struct {
	ID              uuid.UUID        `json:"id"`
	UserID          uuid.UUID        `json:"user_id"`
	OrderNumber     string           `json:"order_number"`
	Status          InvoiceStatus    `json:"status"`
	Amount          float64          `json:"amount"`
	CouponID        *uuid.UUID       `json:"coupon_id,omitempty"`
	PaymentMethod   PaymentMethod    `json:"payment_method"`
	PaymentIntentID string           `json:"payment_intent_id,omitempty"`
	RefundedAmount  float64          `json:"refunded_amount"`
	Products        []InvoiceProduct `json:"products"`
	Refunds         []RefundItem     `json:"refunds,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

// FindProduct returns the invoice line for productID, or nil.
func (inv *Invoice) FindProduct(productID uuid.UUID) *InvoiceProduct {
	for i := range inv.Products {
		if inv.Products[i].ProductID == productID {
			return &inv.Products[i]
		}
	}

	return nil
}

type InvoiceLine struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Quantity  int       `json:"quantity" validate:"required,min=1"`
}

type CreateManualInvoiceRequest struct {
	UserID   uuid.UUID     `json:"user_id" validate:"required"`
	Products []InvoiceLine `json:"products" validate:"required,min=1,dive"`
	Status   InvoiceStatus `json:"status" validate:"required,oneof=PENDING PAID"`
}

type RefundRequest struct {
	Reason string `json:"reason,omitempty" validate:"omitempty,max=500"`
}

type PartialRefundRequest struct {
	Items  []InvoiceLine `json:"items" validate:"required,min=1,dive"`
	Reason string        `json:"reason,omitempty" validate:"omitempty,max=500"`
}
