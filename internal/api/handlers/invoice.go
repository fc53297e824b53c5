package handlers

import (
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	appErrors "github.com/trinity-shop/trinity-platform/internal/errors"
	"github.com/trinity-shop/trinity-platform/internal/models"
	"github.com/trinity-shop/trinity-platform/internal/services"
	"github.com/trinity-shop/trinity-platform/internal/utils/response"
)

type InvoiceHandler struct {
	invoiceService service.InvoiceService
	validator      *validator.Validate
}

func NewInvoiceHandler(invoiceService service.InvoiceService) *InvoiceHandler {
	return &InvoiceHandler{
		invoiceService: invoiceService,
		validator:      validator.New(),
	}
}

func (h *InvoiceHandler) GetInvoice() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := claimsFromRequest(w, r)
		if !ok {
			return
		}

		id, ok := idFromPath(w, r)
		if !ok {
			return
		}

		invoice, err := h.invoiceService.GetInvoice(r.Context(), id)
		if err != nil {
			response.Error(w, err)

			return
		}

		// Customers only see their own invoices.
		if claims.Role != models.RoleAdmin && invoice.UserID != claims.UserID {
			response.Error(w, appErrors.NotFoundError("Invoice not found"))

			return
		}

		response.Success(w, http.StatusOK, invoice)
	}
}

func (h *InvoiceHandler) ListInvoices() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		invoices, err := h.invoiceService.ListInvoices(r.Context())
		if err != nil {
			response.Error(w, err)

			return
		}

		response.Success(w, http.StatusOK, invoices)
	}
}

func (h *InvoiceHandler) ListMyInvoices() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := claimsFromRequest(w, r)
		if !ok {
			return
		}

		invoices, err := h.invoiceService.ListInvoicesByUser(r.Context(), claims.UserID)
		if err != nil {
			response.Error(w, err)

			return
		}

		response.Success(w, http.StatusOK, invoices)
	}
}

func (h *InvoiceHandler) CreateManualInvoice() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req models.CreateManualInvoiceRequest
		if !decodeAndValidate(w, r, h.validator, &req) {
			return
		}

		invoice, err := h.invoiceService.CreateManualInvoice(r.Context(), &req)
		if err != nil {
			response.Error(w, err)

			return
		}

		response.Success(w, http.StatusCreated, invoice)
	}
}

func (h *InvoiceHandler) GetInvoicePDF() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := claimsFromRequest(w, r)
		if !ok {
			return
		}

		id, ok := idFromPath(w, r)
		if !ok {
			return
		}

		invoice, err := h.invoiceService.GetInvoice(r.Context(), id)
		if err != nil {
			response.Error(w, err)

			return
		}

		if claims.Role != models.RoleAdmin && invoice.UserID != claims.UserID {
			response.Error(w, appErrors.NotFoundError("Invoice not found"))

			return
		}

		pdf, err := h.invoiceService.GetInvoicePDF(r.Context(), id)
		if err != nil {
			response.Error(w, err)

			return
		}

		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", invoice.OrderNumber+".pdf"))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(pdf)
	}
}

func (h *InvoiceHandler) RefundInvoice() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := idFromPath(w, r)
		if !ok {
			return
		}

		var req models.RefundRequest
		if !decodeAndValidate(w, r, h.validator, &req) {
			return
		}

		invoice, err := h.invoiceService.ProcessFullRefund(r.Context(), id, req.Reason)
		if err != nil {
			response.Error(w, err)

			return
		}

		response.Success(w, http.StatusOK, invoice)
	}
}

func (h *InvoiceHandler) PartialRefundInvoice() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := idFromPath(w, r)
		if !ok {
			return
		}

		var req models.PartialRefundRequest
		if !decodeAndValidate(w, r, h.validator, &req) {
			return
		}

		invoice, err := h.invoiceService.ProcessPartialRefund(r.Context(), id, &req)
		if err != nil {
			response.Error(w, err)

			return
		}

		response.Success(w, http.StatusOK, invoice)
	}
}
