package models

import (
	"math"
	"time"

	"github.com/google/uuid"
)

type DiscountType string

const (
	DiscountTypePercentage DiscountType = "PERCENTAGE"
	DiscountTypeFixed      DiscountType = "FIXED"
)

type Coupon struct {
	ID            uuid.UUID    `json:"id"`
	Code          string       `json:"code"`
	DiscountType  DiscountType `json:"discount_type"`
	DiscountValue float64      `json:"discount_value"`
	IsGlobal      bool         `json:"is_global"`
	UsageLimit    int          `json:"usage_limit"`
	ExpiryDate    time.Time    `json:"expiry_date"`
	ProductIDs    []uuid.UUID  `json:"product_ids,omitempty"`
	UserIDs       []uuid.UUID  `json:"user_ids,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

// EligibleFor reports whether the coupon discounts the given product. A
// global coupon covers every product regardless of its eligible set.
func (c *Coupon) EligibleFor(productID uuid.UUID) bool {
	if c.IsGlobal {
		return true
	}

	for _, id := range c.ProductIDs {
		if id == productID {
			return true
		}
	}

	return false
}

// AuthorizedFor reports whether userID may apply the coupon. The authorized
// user set is ignored for global coupons.
func (c *Coupon) AuthorizedFor(userID uuid.UUID) bool {
	if c.IsGlobal {
		return true
	}

	for _, id := range c.UserIDs {
		if id == userID {
			return true
		}
	}

	return false
}

// DiscountFor computes the discount on a line total. A fixed discount never
// exceeds the line total itself.
func (c *Coupon) DiscountFor(lineTotal float64) float64 {
	switch c.DiscountType {
	case DiscountTypePercentage:
		return lineTotal * c.DiscountValue / 100
	case DiscountTypeFixed:
		return math.Min(c.DiscountValue, lineTotal)
	}

	return 0
}

type CreateCouponRequest struct {
	Code          string       `json:"code" validate:"required,min=3,max=50"`
	DiscountType  DiscountType `json:"discount_type" validate:"required,oneof=PERCENTAGE FIXED"`
	DiscountValue float64      `json:"discount_value" validate:"required,gt=0"`
	IsGlobal      bool         `json:"is_global"`
	UsageLimit    int          `json:"usage_limit" validate:"required,min=1"`
	ExpiryDate    time.Time    `json:"expiry_date" validate:"required"`
	ProductIDs    []uuid.UUID  `json:"product_ids,omitempty"`
	UserIDs       []uuid.UUID  `json:"user_ids,omitempty"`
}
