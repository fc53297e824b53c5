package handlers

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	appErrors "github.com/trinity-shop/trinity-platform/internal/errors"
	"github.com/trinity-shop/trinity-platform/internal/models"
	"github.com/trinity-shop/trinity-platform/internal/services"
	"github.com/trinity-shop/trinity-platform/internal/utils/response"
)

type CouponHandler struct {
	couponService service.CouponService
	validator     *validator.Validate
}

func NewCouponHandler(couponService service.CouponService) *CouponHandler {
	return &CouponHandler{
		couponService: couponService,
		validator:     validator.New(),
	}
}

func (h *CouponHandler) CreateCoupon() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req models.CreateCouponRequest
		if !decodeAndValidate(w, r, h.validator, &req) {
			return
		}

		coupon, err := h.couponService.CreateCoupon(r.Context(), &req)
		if err != nil {
			response.Error(w, err)

			return
		}

		response.Success(w, http.StatusCreated, coupon)
	}
}

func (h *CouponHandler) GetCouponByCode() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := r.PathValue("code")
		if code == "" {
			response.Error(w, appErrors.BadRequestError("Coupon code is required"))

			return
		}

		coupon, err := h.couponService.GetCouponByCode(r.Context(), code)
		if err != nil {
			response.Error(w, err)

			return
		}

		response.Success(w, http.StatusOK, coupon)
	}
}

func (h *CouponHandler) ListCoupons() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		coupons, err := h.couponService.ListCoupons(r.Context())
		if err != nil {
			response.Error(w, err)

			return
		}

		response.Success(w, http.StatusOK, coupons)
	}
}

func (h *CouponHandler) DeleteCoupon() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := idFromPath(w, r)
		if !ok {
			return
		}

		if err := h.couponService.DeleteCoupon(r.Context(), id); err != nil {
			response.Error(w, err)

			return
		}

		response.Success(w, http.StatusOK, map[string]string{"message": "Coupon deleted"})
	}
}
