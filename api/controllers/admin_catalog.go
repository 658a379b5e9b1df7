package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/perennis1/studio-perennis-backend/api/middleware"
	"github.com/perennis1/studio-perennis-backend/api/responses"
	"github.com/perennis1/studio-perennis-backend/api/validators"
	"github.com/perennis1/studio-perennis-backend/internal/catalog"
	"github.com/perennis1/studio-perennis-backend/pkg/db/models"
	"github.com/perennis1/studio-perennis-backend/pkg/enums"
	pkgerrors "github.com/perennis1/studio-perennis-backend/pkg/errors"
	"github.com/perennis1/studio-perennis-backend/pkg/logger"
)

type catalogService interface {
	CreateVariant(ctx context.Context, input catalog.CreateVariantInput) (*models.Variant, error)
	Restock(ctx context.Context, input catalog.RestockInput) (*models.Inventory, error)
}

// AdminCreateVariant provisions a new sellable variant for a book.
func AdminCreateVariant(svc catalogService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}

		var payload createVariantRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		format, err := enums.ParseBookFormat(payload.Format)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid book format"))
			return
		}

		variant, err := svc.CreateVariant(r.Context(), catalog.CreateVariantInput{
			BookID:     payload.BookID,
			Format:     format,
			PricePaise: payload.PricePaise,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, variantResponse{
			VariantID:  variant.ID,
			BookID:     variant.BookID,
			Format:     variant.Format.String(),
			PricePaise: variant.PricePaise,
			Active:     variant.Active,
		})
	}
}

// AdminRestock adds on-hand stock to a variant and records the intake.
func AdminRestock(svc catalogService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}

		variantID, err := validators.ParseUUIDParam(r, "variantId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload restockRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var actorID *uuid.UUID
		if principal := middleware.PrincipalFromContext(r.Context()); principal != nil {
			actorID = &principal.UserID
		}

		inventory, err := svc.Restock(r.Context(), catalog.RestockInput{
			VariantID: variantID,
			Qty:       payload.Qty,
			Reason:    payload.Reason,
			ActorID:   actorID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, inventoryResponse{
			VariantID: inventory.VariantID,
			OnHand:    inventory.OnHand,
			Reserved:  inventory.Reserved,
			Available: inventory.Available(),
		})
	}
}

type createVariantRequest struct {
	BookID     uuid.UUID `json:"book_id" validate:"required"`
	Format     string    `json:"format" validate:"required"`
	PricePaise int64     `json:"price_paise" validate:"required,min=1"`
}

type restockRequest struct {
	Qty    int    `json:"qty" validate:"required,min=1"`
	Reason string `json:"reason" validate:"omitempty,max=200"`
}

type variantResponse struct {
	VariantID  uuid.UUID `json:"variant_id"`
	BookID     uuid.UUID `json:"book_id"`
	Format     string    `json:"format"`
	PricePaise int64     `json:"price_paise"`
	Active     bool      `json:"active"`
}

type inventoryResponse struct {
	VariantID uuid.UUID `json:"variant_id"`
	OnHand    int       `json:"on_hand"`
	Reserved  int       `json:"reserved"`
	Available int       `json:"available"`
}
