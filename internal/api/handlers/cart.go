package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/trinity-shop/trinity-platform/internal/api/middleware"
	"github.com/trinity-shop/trinity-platform/internal/models"
	"github.com/trinity-shop/trinity-platform/internal/services"
	"github.com/trinity-shop/trinity-platform/internal/utils/response"
)

type CartHandler struct {
	cartService     service.CartService
	checkoutService service.CheckoutService
	captureService  service.CaptureService
	validator       *validator.Validate
}

func NewCartHandler(cartService service.CartService, checkoutService service.CheckoutService, captureService service.CaptureService) *CartHandler {
	return &CartHandler{
		cartService:     cartService,
		checkoutService: checkoutService,
		captureService:  captureService,
		validator:       validator.New(),
	}
}

func (h *CartHandler) GetCart() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := claimsFromRequest(w, r)
		if !ok {
			return
		}

		cart, err := h.cartService.GetCart(r.Context(), claims.UserID)
		if err != nil {
			response.Error(w, err)

			return
		}

		response.Success(w, http.StatusOK, cart)
	}
}

func (h *CartHandler) AddItem() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := claimsFromRequest(w, r)
		if !ok {
			return
		}

		var req models.AddItemRequest
		if !decodeAndValidate(w, r, h.validator, &req) {
			return
		}

		cart, err := h.cartService.AddItem(r.Context(), claims.UserID, &req)
		if err != nil {
			response.Error(w, err)

			return
		}

		middleware.LoggerFromContext(r.Context()).Info("Item added to cart",
			slog.String("productId", req.ProductID.String()),
			slog.Int("quantity", req.Quantity))

		response.Success(w, http.StatusOK, cart)
	}
}

func (h *CartHandler) UpdateQuantity() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := claimsFromRequest(w, r)
		if !ok {
			return
		}

		var req models.UpdateQuantityRequest
		if !decodeAndValidate(w, r, h.validator, &req) {
			return
		}

		cart, err := h.cartService.UpdateQuantity(r.Context(), claims.UserID, &req)
		if err != nil {
			response.Error(w, err)

			return
		}

		response.Success(w, http.StatusOK, cart)
	}
}

func (h *CartHandler) RemoveItem() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := claimsFromRequest(w, r)
		if !ok {
			return
		}

		productID, ok := idFromPath(w, r)
		if !ok {
			return
		}

		cart, err := h.cartService.RemoveItem(r.Context(), claims.UserID, productID)
		if err != nil {
			response.Error(w, err)

			return
		}

		response.Success(w, http.StatusOK, cart)
	}
}

func (h *CartHandler) ClearCart() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := claimsFromRequest(w, r)
		if !ok {
			return
		}

		if err := h.cartService.ClearCart(r.Context(), claims.UserID); err != nil {
			response.Error(w, err)

			return
		}

		response.Success(w, http.StatusOK, map[string]string{"message": "Cart cleared"})
	}
}

func (h *CartHandler) ApplyCoupon() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := claimsFromRequest(w, r)
		if !ok {
			return
		}

		var req models.ApplyCouponRequest
		if !decodeAndValidate(w, r, h.validator, &req) {
			return
		}

		cart, err := h.cartService.ApplyCoupon(r.Context(), claims.UserID, req.CouponCode)
		if err != nil {
			response.Error(w, err)

			return
		}

		middleware.LoggerFromContext(r.Context()).Info("Coupon applied", slog.String("code", req.CouponCode))

		response.Success(w, http.StatusOK, cart)
	}
}

func (h *CartHandler) RemoveCoupon() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := claimsFromRequest(w, r)
		if !ok {
			return
		}

		cart, err := h.cartService.RemoveCoupon(r.Context(), claims.UserID)
		if err != nil {
			response.Error(w, err)

			return
		}

		response.Success(w, http.StatusOK, cart)
	}
}

func (h *CartHandler) Checkout() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := claimsFromRequest(w, r)
		if !ok {
			return
		}

		var req models.CheckoutRequest
		if !decodeAndValidate(w, r, h.validator, &req) {
			return
		}

		result, err := h.checkoutService.Checkout(r.Context(), claims.UserID, &req)
		if err != nil {
			response.Error(w, err)

			return
		}

		middleware.LoggerFromContext(r.Context()).Info("Checkout initiated",
			slog.String("method", req.PaymentMethod))

		response.Success(w, http.StatusOK, result)
	}
}

// CapturePaypal is reachable without a bearer token: the provider redirect
// carries no session. The order's correlation metadata identifies the cart and
// user.
func (h *CartHandler) CapturePaypal() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req models.CapturePaypalRequest
		if !decodeAndValidate(w, r, h.validator, &req) {
			return
		}

		result, err := h.captureService.CapturePaypal(r.Context(), req.OrderID)
		if err != nil {
			response.Error(w, err)

			return
		}

		response.Success(w, http.StatusOK, result)
	}
}

func (h *CartHandler) CaptureStripe() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req models.CaptureStripeRequest
		if !decodeAndValidate(w, r, h.validator, &req) {
			return
		}

		result, err := h.captureService.CaptureStripe(r.Context(), req.SessionID)
		if err != nil {
			response.Error(w, err)

			return
		}

		response.Success(w, http.StatusOK, result)
	}
}
