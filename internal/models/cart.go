package models

import (
	"time"

	"github.com/google/uuid"
)

type CartStatus string

const (
	CartStatusPending  CartStatus = "PENDING"
	CartStatusPaid     CartStatus = "PAID"
	CartStatusCanceled CartStatus = "CANCELED"
)

// CartItem carries the persisted per-line price. While a coupon is applied,
// TotalPrice holds the discounted value and PriceBeforeDiscount the snapshot
// it is restored from when the coupon is removed.
type CartItem struct {
	ID                  uuid.UUID `json:"id"`
	CartID              uuid.UUID `json:"cart_id"`
	ProductID           uuid.UUID `json:"product_id"`
	Quantity            int       `json:"quantity"`
	TotalPrice          float64   `json:"total_price"`
	PriceBeforeDiscount *float64  `json:"price_before_discount,omitempty"`
	DiscountAmount      *float64  `json:"discount_amount,omitempty"`
	CouponDiscountPer   *float64  `json:"coupon_discount_per,omitempty"`
	AppliedCouponCode   *string   `json:"applied_coupon_code,omitempty"`
	Product             *Product  `json:"product,omitempty"`
}

type Cart struct {
	ID         uuid.UUID  `json:"id"`
	UserID     uuid.UUID  `json:"user_id"`
	Items      []CartItem `json:"items"`
	TotalPrice float64    `json:"total_price"`
	Status     CartStatus `json:"status"`
	CouponID   *uuid.UUID `json:"coupon_id,omitempty"`
	Coupon     *Coupon    `json:"coupon,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// FindItem returns the line for productID, or nil.
func (c *Cart) FindItem(productID uuid.UUID) *CartItem {
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			return &c.Items[i]
		}
	}

	return nil
}

type AddItemRequest struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Quantity  int       `json:"quantity" validate:"required,min=1"`
}

type UpdateQuantityRequest struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Quantity  int       `json:"quantity" validate:"required,min=1"`
}

type ApplyCouponRequest struct {
	CouponCode string `json:"coupon_code" validate:"required"`
}

type CheckoutRequest struct {
	PaymentMethod string   `json:"payment_method" validate:"required,oneof=cash stripe paypal"`
	CashPaid      *float64 `json:"cash_paid,omitempty" validate:"omitempty,gt=0"`
}

// CheckoutResponse is the union of the three checkout outcomes: a PayPal
// approval redirect, a Stripe checkout redirect, or an immediately settled
// cash invoice with change.
type CheckoutResponse struct {
	ApprovalURL string   `json:"approval_url,omitempty"`
	CheckoutURL string   `json:"checkout_url,omitempty"`
	Invoice     *Invoice `json:"invoice,omitempty"`
	Change      *float64 `json:"change,omitempty"`
	Message     string   `json:"message,omitempty"`
}

// CaptureResult is returned by the provider capture endpoints. A soft,
// non-settling provider state (for example an unapproved PayPal order) is
// reported through Message with a nil Invoice.
type CaptureResult struct {
	Invoice *Invoice `json:"invoice,omitempty"`
	Message string   `json:"message"`
}

type CapturePaypalRequest struct {
	OrderID string `json:"order_id" validate:"required"`
}

type CaptureStripeRequest struct {
	SessionID string `json:"session_id" validate:"required"`
}
