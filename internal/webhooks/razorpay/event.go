package razorpaywebhook

import (
	"encoding/json"

	pkgerrors "github.com/perennis1/studio-perennis-backend/pkg/errors"
)

// Event types this processor acts on. Anything else is acknowledged and
// skipped.
const (
	EventPaymentCaptured = "payment.captured"
	EventPaymentFailed   = "payment.failed"
)

// WebhookEvent is the delivery envelope Razorpay posts.
type WebhookEvent struct {
	ID      string         `json:"id"`
	Event   string         `json:"event"`
	Payload WebhookPayload `json:"payload"`
}

type WebhookPayload struct {
	Payment WebhookPayment `json:"payment"`
}

type WebhookPayment struct {
	Entity PaymentEntity `json:"entity"`
}

// PaymentEntity carries the gateway payment referenced by the delivery.
type PaymentEntity struct {
	ID      string `json:"id"`
	OrderID string `json:"order_id"`
	Amount  int64  `json:"amount"`
	Status  string `json:"status"`
}

// ParseEvent decodes a raw delivery body.
func ParseEvent(body []byte) (*WebhookEvent, error) {
	var event WebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "malformed webhook body")
	}
	if event.ID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "webhook event id missing")
	}
	if event.Event == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "webhook event type missing")
	}
	return &event, nil
}
