package payment

//go:generate mockgen -source=gateway.go -destination=../mocks/mock_gateway.go -package=mocks

import (
	"context"
	"errors"
	"fmt"
	"log"

	razorpay "github.com/razorpay/razorpay-go"
)

var ErrGatewayNotConfigured = errors.New("payment gateway not configured")

// GatewayOrder is the gateway's answer to an order request. Amount is in minor units.
type GatewayOrder struct {
	ID       string
	Amount   int64
	Currency string
}

type Gateway interface {
	CreateOrder(ctx context.Context, amount int64, currency, receipt string) (GatewayOrder, error)
	KeyID() string
	KeySecret() string
}

// RazorpayGateway talks to Razorpay's Orders API.
type RazorpayGateway struct {
	client *razorpay.Client
	keyID  string
	secret string
}

func NewRazorpayGateway(keyID, secret string) *RazorpayGateway {
	g := &RazorpayGateway{keyID: keyID, secret: secret}
	if keyID != "" && secret != "" {
		g.client = razorpay.NewClient(keyID, secret)
	}
	return g
}

func (g *RazorpayGateway) KeyID() string     { return g.keyID }
func (g *RazorpayGateway) KeySecret() string { return g.secret }

func (g *RazorpayGateway) CreateOrder(ctx context.Context, amount int64, currency, receipt string) (GatewayOrder, error) {
	if g.client == nil {
		return GatewayOrder{}, ErrGatewayNotConfigured
	}
	if err := ctx.Err(); err != nil {
		return GatewayOrder{}, err
	}

	body, err := g.client.Order.Create(map[string]interface{}{
		"amount":   amount,
		"currency": currency,
		"receipt":  receipt,
	}, nil)
	if err != nil {
		log.Println("[PAYMENT] [ERROR] razorpay order create failed:", err)
		return GatewayOrder{}, fmt.Errorf("create gateway order: %w", err)
	}

	order := GatewayOrder{Amount: amount, Currency: currency}
	if id, ok := body["id"].(string); ok {
		order.ID = id
	}
	if v, ok := body["amount"].(float64); ok {
		order.Amount = int64(v)
	}
	if v, ok := body["currency"].(string); ok && v != "" {
		order.Currency = v
	}
	if order.ID == "" {
		return GatewayOrder{}, errors.New("gateway response missing order id")
	}
	return order, nil
}
