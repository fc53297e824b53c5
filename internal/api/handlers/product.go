package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/trinity-shop/trinity-platform/internal/models"
	"github.com/trinity-shop/trinity-platform/internal/services"
	"github.com/trinity-shop/trinity-platform/internal/utils/response"
)

type ProductHandler struct {
	productService service.ProductService
	validator      *validator.Validate
}

func NewProductHandler(productService service.ProductService) *ProductHandler {
	return &ProductHandler{
		productService: productService,
		validator:      validator.New(),
	}
}

func (h *ProductHandler) CreateProduct() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req models.CreateProductRequest
		if !decodeAndValidate(w, r, h.validator, &req) {
			return
		}

		product, err := h.productService.CreateProduct(r.Context(), &req)
		if err != nil {
			response.Error(w, err)

			return
		}

		response.Success(w, http.StatusCreated, product)
	}
}

func (h *ProductHandler) GetProduct() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := idFromPath(w, r)
		if !ok {
			return
		}

		product, err := h.productService.GetProduct(r.Context(), id)
		if err != nil {
			response.Error(w, err)

			return
		}

		response.Success(w, http.StatusOK, product)
	}
}

func (h *ProductHandler) UpdateProduct() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := idFromPath(w, r)
		if !ok {
			return
		}

		var req models.UpdateProductRequest
		if !decodeAndValidate(w, r, h.validator, &req) {
			return
		}

		product, err := h.productService.UpdateProduct(r.Context(), id, &req)
		if err != nil {
			response.Error(w, err)

			return
		}

		response.Success(w, http.StatusOK, product)
	}
}

func (h *ProductHandler) ListProducts() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		size, _ := strconv.Atoi(r.URL.Query().Get("size"))

		products, total, err := h.productService.ListProducts(r.Context(), page, size)
		if err != nil {
			response.Error(w, err)

			return
		}

		response.Success(w, http.StatusOK, map[string]any{
			"products": products,
			"total":    total,
		})
	}
}
