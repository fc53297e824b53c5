package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	stripesdk "github.com/stripe/stripe-go/v81"
	"github.com/trinity-shop/trinity-platform/internal/config"
	"github.com/trinity-shop/trinity-platform/internal/models"
	"github.com/trinity-shop/trinity-platform/pkg/paypal"
	"github.com/trinity-shop/trinity-platform/pkg/stripe"
)

// Correlation binds a provider-side transaction back to the cart and user it
// pays for. It travels opaquely through the provider (Stripe session
// metadata, PayPal custom_id) and is decoded again at capture time.
type Correlation struct {
	UserID uuid.UUID `json:"userId"`
	CartID uuid.UUID `json:"cartId"`
}

// CheckoutTotals carries the priced breakdown handed to a provider. Total is
// the payable amount from the already-discounted cart; ItemTotal and
// Discount only feed the provider-side breakdown fields.
type CheckoutTotals struct {
	ItemTotal float64
	Discount  float64
	Total     float64
}

// CaptureOutcome is the provider's answer to a capture attempt. A
// recognized non-fatal provider state (unapproved order, unpaid session)
// comes back as Settled=false with Info set, not as an error.
type CaptureOutcome struct {
	Settled      bool
	Info         string
	ProviderTxID string
	Correlation  Correlation
}

// PaymentGateway is the capability interface the checkout, capture and
// refund flows dispatch through, one implementation per payment method.
type PaymentGateway interface {
	CreateCheckout(ctx context.Context, cart *models.Cart, correlation Correlation, totals CheckoutTotals) (string, error)
	Capture(ctx context.Context, providerRef string) (*CaptureOutcome, error)
	Refund(ctx context.Context, providerTxID string, amount float64) (string, error)
}

var errRedirectNotSupported = errors.New("payment method has no redirect flow")

type stripeGateway struct {
	client stripe.Client
	cfg    *config.Stripe
}

func NewStripeGateway(client stripe.Client, cfg *config.Stripe) PaymentGateway {
	return &stripeGateway{client: client, cfg: cfg}
}

func (g *stripeGateway) CreateCheckout(ctx context.Context, cart *models.Cart, correlation Correlation, totals CheckoutTotals) (string, error) {
	lineItems := make([]stripe.LineItem, 0, len(cart.Items))

	for _, item := range cart.Items {
		lineItems = append(lineItems, stripe.LineItem{
			Name:        item.Product.Name,
			Description: item.Product.Description,
			UnitAmount:  int64(math.Round(item.Product.Price * 100)),
			Quantity:    int64(item.Quantity),
		})
	}

	session, err := g.client.CreateCheckoutSession(&stripe.CheckoutParams{
		Currency:  g.cfg.Currency,
		LineItems: lineItems,
		Metadata: map[string]string{
			"userId": correlation.UserID.String(),
			"cartId": correlation.CartID.String(),
		},
		SuccessURL: g.cfg.SuccessURL,
		CancelURL:  g.cfg.CancelURL,
	})
	if err != nil {
		return "", fmt.Errorf("failed to create stripe checkout session: %w", err)
	}

	if session.URL == "" {
		return "", errors.New("unable to generate stripe checkout URL")
	}

	return session.URL, nil
}

func (g *stripeGateway) Capture(ctx context.Context, sessionID string) (*CaptureOutcome, error) {
	session, err := g.client.RetrieveSession(sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve stripe session: %w", err)
	}

	if session.PaymentStatus != stripesdk.CheckoutSessionPaymentStatusPaid {
		return &CaptureOutcome{
			Settled: false,
			Info:    fmt.Sprintf("Payment not completed. Status: %s", session.PaymentStatus),
		}, nil
	}

	correlation, err := correlationFromMetadata(session.Metadata)
	if err != nil {
		return nil, fmt.Errorf("missing metadata in stripe session: %w", err)
	}

	var providerTxID string
	if session.PaymentIntent != nil {
		providerTxID = session.PaymentIntent.ID
	}

	return &CaptureOutcome{
		Settled:      true,
		ProviderTxID: providerTxID,
		Correlation:  correlation,
	}, nil
}

func (g *stripeGateway) Refund(ctx context.Context, providerTxID string, amount float64) (string, error) {
	refund, err := g.client.CreateRefund(providerTxID, int64(math.Round(amount*100)))
	if err != nil {
		return "", fmt.Errorf("stripe refund failed: %w", err)
	}

	return refund.ID, nil
}

func correlationFromMetadata(metadata map[string]string) (Correlation, error) {
	userID, err := uuid.Parse(metadata["userId"])
	if err != nil {
		return Correlation{}, fmt.Errorf("invalid userId: %w", err)
	}

	cartID, err := uuid.Parse(metadata["cartId"])
	if err != nil {
		return Correlation{}, fmt.Errorf("invalid cartId: %w", err)
	}

	return Correlation{UserID: userID, CartID: cartID}, nil
}

type paypalGateway struct {
	client paypal.Client
	cfg    *config.PayPal
}

func NewPaypalGateway(client paypal.Client, cfg *config.PayPal) PaymentGateway {
	return &paypalGateway{client: client, cfg: cfg}
}

func (g *paypalGateway) CreateCheckout(ctx context.Context, cart *models.Cart, correlation Correlation, totals CheckoutTotals) (string, error) {
	customID, err := json.Marshal(correlation)
	if err != nil {
		return "", fmt.Errorf("failed to encode correlation id: %w", err)
	}

	items := make([]paypal.OrderItem, 0, len(cart.Items))

	for _, item := range cart.Items {
		items = append(items, paypal.OrderItem{
			Name:        item.Product.Name,
			Description: item.Product.Description,
			UnitAmount:  item.Product.Price,
			Quantity:    item.Quantity,
		})
	}

	approvalURL, err := g.client.CreateOrder(ctx, &paypal.OrderParams{
		Currency:    g.cfg.Currency,
		Total:       totals.Total,
		ItemTotal:   totals.ItemTotal,
		Discount:    totals.Discount,
		Items:       items,
		CustomID:    string(customID),
		Description: fmt.Sprintf("Invoice for cart %s", cart.ID),
	})
	if err != nil {
		return "", fmt.Errorf("failed to create paypal order: %w", err)
	}

	return approvalURL, nil
}

func (g *paypalGateway) Capture(ctx context.Context, orderID string) (*CaptureOutcome, error) {
	order, err := g.client.GetOrder(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch paypal order: %w", err)
	}

	if order.Status != "APPROVED" {
		return &CaptureOutcome{
			Settled: false,
			Info:    fmt.Sprintf("Order is not approved. Status: %s", order.Status),
		}, nil
	}

	capture, err := g.client.CaptureOrder(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to capture paypal order: %w", err)
	}

	if capture.Status != "COMPLETED" {
		return nil, fmt.Errorf("payment not completed, status: %s", capture.Status)
	}

	if len(capture.PurchaseUnits) == 0 || capture.PurchaseUnits[0].Payments == nil ||
		len(capture.PurchaseUnits[0].Payments.Captures) == 0 {
		return nil, errors.New("no captures found in paypal response")
	}

	captured := capture.PurchaseUnits[0].Payments.Captures[0]

	if captured.ID == "" {
		return nil, errors.New("capture id not found in paypal response")
	}

	if captured.CustomID == "" {
		return nil, errors.New("custom id not found in paypal capture response")
	}

	var correlation Correlation
	if err := json.Unmarshal([]byte(captured.CustomID), &correlation); err != nil {
		return nil, fmt.Errorf("invalid custom id in payment data: %w", err)
	}

	return &CaptureOutcome{
		Settled:      true,
		ProviderTxID: captured.ID,
		Correlation:  correlation,
	}, nil
}

func (g *paypalGateway) Refund(ctx context.Context, providerTxID string, amount float64) (string, error) {
	refundID, err := g.client.RefundCapture(ctx, providerTxID, amount, g.cfg.Currency)
	if err != nil {
		return "", fmt.Errorf("paypal refund failed: %w", err)
	}

	return refundID, nil
}

// cashGateway settles at the counter: there is no redirect and nothing to
// capture, and refunds get a synthetic provider id.
type cashGateway struct{}

func NewCashGateway() PaymentGateway {
	return &cashGateway{}
}

func (g *cashGateway) CreateCheckout(ctx context.Context, cart *models.Cart, correlation Correlation, totals CheckoutTotals) (string, error) {
	return "", errRedirectNotSupported
}

func (g *cashGateway) Capture(ctx context.Context, providerRef string) (*CaptureOutcome, error) {
	return nil, errors.New("cash payments have no provider capture")
}

func (g *cashGateway) Refund(ctx context.Context, providerTxID string, amount float64) (string, error) {
	return fmt.Sprintf("CASH-%d", time.Now().UnixMilli()), nil
}
