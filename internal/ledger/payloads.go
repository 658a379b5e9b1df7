package ledger

import (
	"github.com/google/uuid"

	"github.com/perennis1/studio-perennis-backend/pkg/enums"
)

// Release reasons recorded on RELEASED inventory events.
const (
	ReleaseReasonPaymentFailed   = "PAYMENT_FAILED"
	ReleaseReasonCheckoutExpired = "CHECKOUT_EXPIRED"
)

// StockPayload documents an inventory quantity movement. Qty is always the
// positive magnitude; the event type carries the direction.
type StockPayload struct {
	Qty     int        `json:"qty"`
	OrderID *uuid.UUID `json:"order_id,omitempty"`
	Reason  string     `json:"reason,omitempty"`
}

// OrderPayload documents an order lifecycle transition.
type OrderPayload struct {
	UserID           uuid.UUID `json:"user_id"`
	AmountPaise      int64     `json:"amount_paise"`
	GatewayOrderID   string    `json:"gateway_order_id,omitempty"`
	GatewayPaymentID string    `json:"gateway_payment_id,omitempty"`
	Reason           string    `json:"reason,omitempty"`
}

// LibraryPayload documents a digital access grant or revoke.
type LibraryPayload struct {
	UserID  uuid.UUID        `json:"user_id"`
	BookID  uuid.UUID        `json:"book_id"`
	Format  enums.BookFormat `json:"format"`
	OrderID *uuid.UUID       `json:"order_id,omitempty"`
}

// ShipmentPayload documents a shipment lifecycle transition.
type ShipmentPayload struct {
	OrderID uuid.UUID            `json:"order_id"`
	Status  enums.ShipmentStatus `json:"status"`
}
