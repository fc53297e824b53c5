package stripe

import (
	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/checkout/session"
	"github.com/stripe/stripe-go/v81/refund"
)

// LineItem is one purchasable line of a checkout session. UnitAmount is in
// the smallest currency unit (cents).
type LineItem struct {
	Name        string
	Description string
	UnitAmount  int64
	Quantity    int64
}

// CheckoutParams describes a hosted checkout session. Metadata is carried
// opaquely by Stripe and returned on session retrieval, which is how the
// capture flow re-derives the cart and user.
type CheckoutParams struct {
	Currency   string
	LineItems  []LineItem
	Metadata   map[string]string
	SuccessURL string
	CancelURL  string
}

type Client interface {
	CreateCheckoutSession(params *CheckoutParams) (*stripe.CheckoutSession, error)
	RetrieveSession(sessionID string) (*stripe.CheckoutSession, error)
	CreateRefund(paymentIntentID string, amount int64) (*stripe.Refund, error)
}

type stripeClient struct{}

func NewStripeClient(apiKey string) Client {
	stripe.Key = apiKey

	return &stripeClient{}
}

// CreateCheckoutSession implements Client.
func (s *stripeClient) CreateCheckoutSession(params *CheckoutParams) (*stripe.CheckoutSession, error) {
	lineItems := make([]*stripe.CheckoutSessionLineItemParams, 0, len(params.LineItems))

	for _, item := range params.LineItems {
		productData := &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
			Name: stripe.String(item.Name),
		}

		if item.Description != "" {
			productData.Description = stripe.String(item.Description)
		}

		lineItems = append(lineItems, &stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:    stripe.String(params.Currency),
				ProductData: productData,
				UnitAmount:  stripe.Int64(item.UnitAmount),
			},
			Quantity: stripe.Int64(item.Quantity),
		})
	}

	sessionParams := &stripe.CheckoutSessionParams{
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems:          lineItems,
		SuccessURL:         stripe.String(params.SuccessURL + "?session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:          stripe.String(params.CancelURL),
	}

	for key, value := range params.Metadata {
		sessionParams.AddMetadata(key, value)
	}

	return session.New(sessionParams)
}

// RetrieveSession implements Client.
func (s *stripeClient) RetrieveSession(sessionID string) (*stripe.CheckoutSession, error) {
	return session.Get(sessionID, nil)
}

// CreateRefund implements Client. The amount is in cents.
func (s *stripeClient) CreateRefund(paymentIntentID string, amount int64) (*stripe.Refund, error) {
	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(paymentIntentID),
		Amount:        stripe.Int64(amount),
	}

	return refund.New(params)
}
