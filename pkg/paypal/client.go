package paypal

import (
	"context"
	"errors"
	"fmt"

	"github.com/plutov/paypal/v4"
)

// OrderItem is one purchasable line of a PayPal order.
type OrderItem struct {
	Name        string
	Description string
	UnitAmount  float64
	Quantity    int
}

// OrderParams describes a PayPal order with a breakdown of item total and
// discount. CustomID is carried opaquely by PayPal and surfaces again in the
// capture response, which is how the capture flow re-derives the cart and
// user.
type OrderParams struct {
	Currency    string
	Total       float64
	ItemTotal   float64
	Discount    float64
	Items       []OrderItem
	CustomID    string
	Description string
}

type Client interface {
	CreateOrder(ctx context.Context, params *OrderParams) (string, error)
	GetOrder(ctx context.Context, orderID string) (*paypal.Order, error)
	CaptureOrder(ctx context.Context, orderID string) (*paypal.CaptureOrderResponse, error)
	RefundCapture(ctx context.Context, captureID string, amount float64, currency string) (string, error)
}

type paypalClient struct {
	client    *paypal.Client
	returnURL string
	cancelURL string
}

func NewPaypalClient(clientID, clientSecret, apiBase, returnURL, cancelURL string) (Client, error) {
	client, err := paypal.NewClient(clientID, clientSecret, apiBase)
	if err != nil {
		return nil, fmt.Errorf("failed to create paypal client: %w", err)
	}

	if _, err := client.GetAccessToken(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to obtain paypal access token: %w", err)
	}

	return &paypalClient{client: client, returnURL: returnURL, cancelURL: cancelURL}, nil
}

func money(currency string, amount float64) *paypal.Money {
	return &paypal.Money{
		Currency: currency,
		Value:    fmt.Sprintf("%.2f", amount),
	}
}

// CreateOrder implements Client. It returns the buyer approval URL.
func (p *paypalClient) CreateOrder(ctx context.Context, params *OrderParams) (string, error) {
	items := make([]paypal.Item, 0, len(params.Items))

	for _, item := range params.Items {
		description := item.Description
		if description == "" {
			description = "No description available"
		}

		items = append(items, paypal.Item{
			Name:        item.Name,
			Description: description,
			UnitAmount:  money(params.Currency, item.UnitAmount),
			Quantity:    fmt.Sprintf("%d", item.Quantity),
		})
	}

	purchaseUnits := []paypal.PurchaseUnitRequest{
		{
			Amount: &paypal.PurchaseUnitAmount{
				Currency: params.Currency,
				Value:    fmt.Sprintf("%.2f", params.Total),
				Breakdown: &paypal.PurchaseUnitAmountBreakdown{
					ItemTotal: money(params.Currency, params.ItemTotal),
					Discount:  money(params.Currency, params.Discount),
					TaxTotal:  money(params.Currency, 0),
					Shipping:  money(params.Currency, 0),
				},
			},
			Items:       items,
			Description: params.Description,
			CustomID:    params.CustomID,
		},
	}

	order, err := p.client.CreateOrder(ctx, paypal.OrderIntentCapture, purchaseUnits, nil, &paypal.ApplicationContext{
		ReturnURL: p.returnURL,
		CancelURL: p.cancelURL,
	})
	if err != nil {
		return "", fmt.Errorf("failed to create paypal order: %w", err)
	}

	for _, link := range order.Links {
		if link.Rel == "approve" {
			return link.Href, nil
		}
	}

	return "", errors.New("no approval link in paypal order response")
}

// GetOrder implements Client.
func (p *paypalClient) GetOrder(ctx context.Context, orderID string) (*paypal.Order, error) {
	return p.client.GetOrder(ctx, orderID)
}

// CaptureOrder implements Client.
func (p *paypalClient) CaptureOrder(ctx context.Context, orderID string) (*paypal.CaptureOrderResponse, error) {
	return p.client.CaptureOrder(ctx, orderID, paypal.CaptureOrderRequest{})
}

// RefundCapture implements Client. It returns the provider refund id.
func (p *paypalClient) RefundCapture(ctx context.Context, captureID string, amount float64, currency string) (string, error) {
	response, err := p.client.RefundCapture(ctx, captureID, paypal.RefundCaptureRequest{
		Amount: money(currency, amount),
	})
	if err != nil {
		return "", fmt.Errorf("failed to refund paypal capture: %w", err)
	}

	return response.ID, nil
}
