package pdfgen

import (
	"bytes"
	"fmt"

	"github.com/go-pdf/fpdf"
	"github.com/trinity-shop/trinity-platform/internal/models"
)

// Renderer produces the printable invoice document attached to order
// confirmation emails and served on the invoice PDF endpoint.
type Renderer interface {
	RenderInvoice(invoice *models.Invoice, user *models.User) ([]byte, error)
}

type renderer struct {
	shopName string
}

func NewRenderer(shopName string) Renderer {
	return &renderer{shopName: shopName}
}

// RenderInvoice implements Renderer.
func (r *renderer) RenderInvoice(invoice *models.Invoice, user *models.User) ([]byte, error) {
	doc := fpdf.New("P", "mm", "A4", "")
	doc.SetTitle(fmt.Sprintf("Invoice %s", invoice.OrderNumber), true)
	doc.SetAuthor(r.shopName, true)
	doc.AddPage()

	doc.SetFont("Helvetica", "B", 20)
	doc.CellFormat(0, 12, "INVOICE", "", 1, "C", false, 0, "")
	doc.Ln(4)

	doc.SetFont("Helvetica", "", 12)
	doc.CellFormat(0, 7, fmt.Sprintf("Invoice number: %s", invoice.OrderNumber), "", 1, "L", false, 0, "")
	doc.CellFormat(0, 7, fmt.Sprintf("Date: %s", invoice.CreatedAt.Format("January 2, 2006")), "", 1, "L", false, 0, "")
	doc.CellFormat(0, 7, fmt.Sprintf("Payment method: %s", invoice.PaymentMethod), "", 1, "L", false, 0, "")
	doc.Ln(4)

	doc.SetFont("Helvetica", "B", 12)
	doc.CellFormat(0, 7, "Customer:", "", 1, "L", false, 0, "")
	doc.SetFont("Helvetica", "", 12)
	doc.CellFormat(0, 7, fmt.Sprintf("%s %s", user.FirstName, user.LastName), "", 1, "L", false, 0, "")
	doc.CellFormat(0, 7, fmt.Sprintf("Email: %s", user.Email), "", 1, "L", false, 0, "")
	doc.Ln(6)

	doc.SetFont("Helvetica", "B", 12)
	doc.CellFormat(90, 8, "Product", "B", 0, "L", false, 0, "")
	doc.CellFormat(25, 8, "Quantity", "B", 0, "R", false, 0, "")
	doc.CellFormat(35, 8, "Unit price", "B", 0, "R", false, 0, "")
	doc.CellFormat(35, 8, "Total", "B", 1, "R", false, 0, "")

	doc.SetFont("Helvetica", "", 12)

	for _, line := range invoice.Products {
		lineTotal := line.Price * float64(line.Quantity)

		doc.CellFormat(90, 8, line.ProductName, "", 0, "L", false, 0, "")
		doc.CellFormat(25, 8, fmt.Sprintf("%d", line.Quantity), "", 0, "R", false, 0, "")
		doc.CellFormat(35, 8, fmt.Sprintf("%.2f", line.Price), "", 0, "R", false, 0, "")
		doc.CellFormat(35, 8, fmt.Sprintf("%.2f", lineTotal), "", 1, "R", false, 0, "")
	}

	doc.Ln(4)
	doc.SetFont("Helvetica", "B", 12)
	doc.CellFormat(150, 8, "Total", "T", 0, "L", false, 0, "")
	doc.CellFormat(35, 8, fmt.Sprintf("%.2f", invoice.Amount), "T", 1, "R", false, 0, "")

	var buf bytes.Buffer

	if err := doc.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to render invoice pdf: %w", err)
	}

	return buf.Bytes(), nil
}
