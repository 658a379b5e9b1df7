package reconciliation

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/perennis1/studio-perennis-backend/api/responses"
	"github.com/perennis1/studio-perennis-backend/api/validators"
	"github.com/perennis1/studio-perennis-backend/internal/reconcile"
	"github.com/perennis1/studio-perennis-backend/pkg/enums"
	pkgerrors "github.com/perennis1/studio-perennis-backend/pkg/errors"
	"github.com/perennis1/studio-perennis-backend/pkg/logger"
)

type reconcileService interface {
	Verify(ctx context.Context, filter reconcile.Filter) (*reconcile.VerifyReport, error)
	Heal(ctx context.Context, filter reconcile.Filter, dryRun bool) (*reconcile.HealReport, error)
	ColdStartRebuild(ctx context.Context, confirmation string) (*reconcile.RebuildReport, error)
}

// Verify replays the ledger and reports drift without touching state.
func Verify(svc reconcileService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "reconcile service unavailable"))
			return
		}

		var payload verifyRequest
		if r.ContentLength > 0 {
			if err := validators.DecodeJSONBody(r, &payload); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}

		filter, err := payload.filter()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		report, err := svc.Verify(r.Context(), filter)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, report)
	}
}

// Heal verifies then repairs drifted rows. Dry run is the default; writes
// need an explicit dry_run:false.
func Heal(svc reconcileService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "reconcile service unavailable"))
			return
		}

		var payload healRequest
		if r.ContentLength > 0 {
			if err := validators.DecodeJSONBody(r, &payload); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}

		filter, err := payload.filter()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		dryRun := true
		if payload.DryRun != nil {
			dryRun = *payload.DryRun
		}

		report, err := svc.Heal(r.Context(), filter, dryRun)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, report)
	}
}

// Rebuild overwrites the materialized tables from a full ledger replay. The
// request must spell out the confirmation literal.
func Rebuild(svc reconcileService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "reconcile service unavailable"))
			return
		}

		var payload rebuildRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		report, err := svc.ColdStartRebuild(r.Context(), payload.Confirmation)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, report)
	}
}

type verifyRequest struct {
	EntityType string     `json:"entity_type" validate:"omitempty"`
	EntityID   *uuid.UUID `json:"entity_id" validate:"omitempty"`
	From       *time.Time `json:"from" validate:"omitempty"`
	To         *time.Time `json:"to" validate:"omitempty"`
}

func (p verifyRequest) filter() (reconcile.Filter, error) {
	filter := reconcile.Filter{
		EntityID: p.EntityID,
		From:     p.From,
		To:       p.To,
	}
	if p.EntityType != "" {
		entityType, err := enums.ParseLedgerEntityType(p.EntityType)
		if err != nil {
			return filter, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid entity_type")
		}
		filter.EntityType = entityType
	}
	return filter, nil
}

type healRequest struct {
	verifyRequest
	DryRun *bool `json:"dry_run"`
}

type rebuildRequest struct {
	Confirmation string `json:"confirmation" validate:"required"`
}
