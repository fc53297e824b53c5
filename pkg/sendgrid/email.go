package sendgrid

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/trinity-shop/trinity-platform/internal/models"
)

// Notifier sends transactional order mail. Settlement treats it as
// best-effort: a failure here is logged, never propagated back into the
// settled transaction.
type Notifier interface {
	SendOrderConfirmation(ctx context.Context, user *models.User, invoice *models.Invoice, pdf []byte) error
}

type emailService struct {
	client    *sendgrid.Client
	fromEmail string
	fromName  string
}

func NewEmailService(apiKey, fromEmail, fromName string) Notifier {
	return &emailService{
		client:    sendgrid.NewSendClient(apiKey),
		fromEmail: fromEmail,
		fromName:  fromName,
	}
}

// SendOrderConfirmation implements Notifier.
func (e *emailService) SendOrderConfirmation(ctx context.Context, user *models.User, invoice *models.Invoice, pdf []byte) error {
	from := mail.NewEmail(e.fromName, e.fromEmail)
	to := mail.NewEmail(strings.TrimSpace(user.FirstName+" "+user.LastName), user.Email)

	message := mail.NewV3Mail()
	message.SetFrom(from)

	personalization := mail.NewPersonalization()
	personalization.AddTos(to)
	personalization.Subject = fmt.Sprintf("Order confirmation %s", invoice.OrderNumber)
	message.AddPersonalizations(personalization)

	text := fmt.Sprintf(
		"Thank you for your purchase! Your %s payment of %.2f has been successfully processed.",
		invoice.PaymentMethod, invoice.Amount,
	)
	message.AddContent(mail.NewContent("text/plain", text))
	message.AddContent(mail.NewContent("text/html", orderConfirmationHTML(user, invoice)))

	if len(pdf) > 0 {
		attachment := mail.NewAttachment()
		attachment.SetContent(base64.StdEncoding.EncodeToString(pdf))
		attachment.SetType("application/pdf")
		attachment.SetFilename(fmt.Sprintf("invoice_%s.pdf", invoice.OrderNumber))
		attachment.SetDisposition("attachment")
		message.AddAttachment(attachment)
	}

	response, err := e.client.SendWithContext(ctx, message)
	if err != nil {
		return err
	}

	if response.StatusCode >= 400 {
		return fmt.Errorf("failed to send email, status code: %d", response.StatusCode)
	}

	return nil
}

func orderConfirmationHTML(user *models.User, invoice *models.Invoice) string {
	var sb strings.Builder

	name := user.FirstName
	if name == "" {
		name = strings.Split(user.Email, "@")[0]
	}

	sb.WriteString(fmt.Sprintf("<h2>Thank you for your order, %s!</h2>", name))
	sb.WriteString(fmt.Sprintf("<p>Order <strong>%s</strong>, placed on %s.</p>",
		invoice.OrderNumber, invoice.CreatedAt.Format("January 2, 2006")))
	sb.WriteString("<table border=\"0\" cellpadding=\"4\"><tr><th align=\"left\">Product</th><th align=\"right\">Qty</th><th align=\"right\">Price</th></tr>")

	for _, line := range invoice.Products {
		sb.WriteString(fmt.Sprintf("<tr><td>%s</td><td align=\"right\">%d</td><td align=\"right\">%.2f</td></tr>",
			line.ProductName, line.Quantity, line.Price))
	}

	sb.WriteString("</table>")
	sb.WriteString(fmt.Sprintf("<p><strong>Total: %.2f</strong> (paid via %s)</p>", invoice.Amount, invoice.PaymentMethod))

	return sb.String()
}
