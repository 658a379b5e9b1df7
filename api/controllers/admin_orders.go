package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/perennis1/studio-perennis-backend/api/middleware"
	"github.com/perennis1/studio-perennis-backend/api/responses"
	"github.com/perennis1/studio-perennis-backend/api/validators"
	"github.com/perennis1/studio-perennis-backend/pkg/db/models"
	pkgerrors "github.com/perennis1/studio-perennis-backend/pkg/errors"
	"github.com/perennis1/studio-perennis-backend/pkg/logger"
)

type refundService interface {
	Refund(ctx context.Context, orderID uuid.UUID, actorID *uuid.UUID) (*models.Order, error)
}

type adminOrderLister interface {
	ListAll(ctx context.Context) ([]models.Order, error)
}

// AdminRefundOrder marks a paid order refunded and revokes its digital
// grants. Physical stock is not restocked automatically.
func AdminRefundOrder(svc refundService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var actorID *uuid.UUID
		if principal := middleware.PrincipalFromContext(r.Context()); principal != nil {
			actorID = &principal.UserID
		}

		order, err := svc.Refund(r.Context(), orderID, actorID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newOrderResponse(order))
	}
}

// AdminOrderList returns every order regardless of owner.
func AdminOrderList(repo adminOrderLister, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if repo == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders repository unavailable"))
			return
		}

		orders, err := repo.ListAll(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		out := make([]orderResponse, 0, len(orders))
		for i := range orders {
			out = append(out, newOrderResponse(&orders[i]))
		}
		responses.WriteSuccess(w, map[string]any{"orders": out})
	}
}
