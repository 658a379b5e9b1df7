package razorpay

import (
	"context"
	"errors"
	"fmt"
	"strings"

	razorpay "github.com/razorpay/razorpay-go"

	"github.com/perennis1/studio-perennis-backend/pkg/config"
	"github.com/perennis1/studio-perennis-backend/pkg/logger"
)

// Provider is the name recorded on gateway events and payments.
const Provider = "razorpay"

var (
	errKeyRequired    = errors.New("razorpay key id and secret are required")
	errSecretRequired = errors.New("razorpay webhook secret is required")
)

// GatewayOrder is the gateway-side order opened for a checkout.
type GatewayOrder struct {
	ID          string
	AmountPaise int64
	Currency    string
	Receipt     string
}

// CreateOrderInput carries the values forwarded to the order-creation API.
type CreateOrderInput struct {
	AmountPaise int64
	Currency    string
	Receipt     string
}

// Client wraps the Razorpay SDK plus webhook metadata. When the gateway is
// disabled for the environment the client is nil and callers surface a
// dependency error instead of reserving stock.
type Client struct {
	api           *razorpay.Client
	webhookSecret string
}

// NewClient initializes Razorpay once with the configured secrets. Returns
// (nil, nil) when the gateway is disabled for this environment.
func NewClient(ctx context.Context, cfg config.RazorpayConfig, logg *logger.Logger) (*Client, error) {
	if !cfg.Enabled {
		if logg != nil {
			logg.Warn(ctx, "razorpay disabled; checkout will reject requests")
		}
		return nil, nil
	}

	keyID := strings.TrimSpace(cfg.KeyID)
	keySecret := strings.TrimSpace(cfg.KeySecret)
	if keyID == "" || keySecret == "" {
		return nil, errKeyRequired
	}
	webhookSecret := strings.TrimSpace(cfg.WebhookSecret)
	if webhookSecret == "" {
		return nil, errSecretRequired
	}

	api := razorpay.NewClient(keyID, keySecret)

	if logg != nil {
		logg.Info(ctx, "razorpay client initialized")
	}

	return &Client{
		api:           api,
		webhookSecret: webhookSecret,
	}, nil
}

// WebhookSecret returns the shared secret for webhook signature checks.
func (c *Client) WebhookSecret() string {
	if c == nil {
		return ""
	}
	return c.webhookSecret
}

// CreateOrder opens a gateway order for the provided amount. The SDK call is
// synchronous; checkout runs it inside the reservation transaction so a
// gateway failure rolls the whole reservation back.
func (c *Client) CreateOrder(ctx context.Context, input CreateOrderInput) (*GatewayOrder, error) {
	if c == nil || c.api == nil {
		return nil, errors.New("razorpay client not configured")
	}
	if input.AmountPaise <= 0 {
		return nil, fmt.Errorf("order amount must be positive, got %d", input.AmountPaise)
	}
	currency := input.Currency
	if currency == "" {
		currency = "INR"
	}

	data := map[string]interface{}{
		"amount":   input.AmountPaise,
		"currency": currency,
	}
	if input.Receipt != "" {
		data["receipt"] = input.Receipt
	}

	body, err := c.api.Order.Create(data, nil)
	if err != nil {
		return nil, fmt.Errorf("create razorpay order: %w", err)
	}

	id, _ := body["id"].(string)
	if id == "" {
		return nil, fmt.Errorf("razorpay order response missing id: %v", body)
	}

	return &GatewayOrder{
		ID:          id,
		AmountPaise: input.AmountPaise,
		Currency:    currency,
		Receipt:     input.Receipt,
	}, nil
}
