package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/perennis1/studio-perennis-backend/api/middleware"
	"github.com/perennis1/studio-perennis-backend/api/responses"
	"github.com/perennis1/studio-perennis-backend/api/validators"
	checkoutsvc "github.com/perennis1/studio-perennis-backend/internal/checkout"
	pkgerrors "github.com/perennis1/studio-perennis-backend/pkg/errors"
	"github.com/perennis1/studio-perennis-backend/pkg/logger"
)

// Checkout places an order for the authenticated reader and opens a gateway
// order for it. The caller retries with the same Idempotency-Key if the
// response is lost.
func Checkout(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		userID := middleware.UserIDFromContext(r.Context())
		if userID == uuid.Nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required"))
			return
		}

		var payload checkoutRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := checkoutsvc.CheckoutInput{}
		for _, item := range payload.Items {
			input.Items = append(input.Items, checkoutsvc.CheckoutItem{
				VariantID: item.VariantID,
				Qty:       item.Qty,
			})
		}

		result, err := svc.Execute(r.Context(), userID, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, newCheckoutResponse(result))
	}
}

type checkoutRequest struct {
	Items []checkoutItemRequest `json:"items" validate:"required,min=1,dive"`
}

type checkoutItemRequest struct {
	VariantID uuid.UUID `json:"variant_id" validate:"required"`
	Qty       int       `json:"qty" validate:"required,min=1"`
}

type checkoutResponse struct {
	OrderID        uuid.UUID `json:"order_id"`
	PaymentStatus  string    `json:"payment_status"`
	GatewayOrderID string    `json:"gateway_order_id"`
	AmountPaise    int64     `json:"amount_paise"`
	Currency       string    `json:"currency"`
}

func newCheckoutResponse(result *checkoutsvc.CheckoutResult) checkoutResponse {
	return checkoutResponse{
		OrderID:        result.Order.ID,
		PaymentStatus:  result.Order.PaymentStatus.String(),
		GatewayOrderID: result.GatewayOrderID,
		AmountPaise:    result.AmountPaise,
		Currency:       result.Currency,
	}
}
