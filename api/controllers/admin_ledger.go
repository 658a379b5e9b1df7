package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/perennis1/studio-perennis-backend/api/responses"
	"github.com/perennis1/studio-perennis-backend/api/validators"
	"github.com/perennis1/studio-perennis-backend/internal/ledger"
	"github.com/perennis1/studio-perennis-backend/pkg/db/models"
	"github.com/perennis1/studio-perennis-backend/pkg/enums"
	pkgerrors "github.com/perennis1/studio-perennis-backend/pkg/errors"
	"github.com/perennis1/studio-perennis-backend/pkg/logger"
	"github.com/perennis1/studio-perennis-backend/pkg/pagination"
)

type ledgerLister interface {
	ListEvents(ctx context.Context, filter ledger.Filter, params pagination.Params) ([]models.LedgerEvent, string, error)
}


// AdminLedgerEvents pages through the ledger in commit order, optionally
// scoped by entity, event type or time window.
func AdminLedgerEvents(svc ledgerLister, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ledger service unavailable"))
			return
		}

		filter, err := ledgerFilterFromQuery(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		events, nextCursor, err := svc.ListEvents(r.Context(), filter, pagination.Params{
			Limit:  limit,
			Cursor: r.URL.Query().Get("cursor"),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		out := make([]ledgerEventResponse, 0, len(events))
		for _, event := range events {
			out = append(out, newLedgerEventResponse(event))
		}
		responses.WriteSuccess(w, ledgerEventsResponse{Events: out, NextCursor: nextCursor})
	}
}

func ledgerFilterFromQuery(r *http.Request) (ledger.Filter, error) {
	var filter ledger.Filter
	query := r.URL.Query()

	if raw := query.Get("entity_type"); raw != "" {
		entityType, err := enums.ParseLedgerEntityType(raw)
		if err != nil {
			return filter, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid entity_type")
		}
		filter.EntityType = entityType
	}
	if raw := query.Get("entity_id"); raw != "" {
		entityID, err := uuid.Parse(raw)
		if err != nil {
			return filter, pkgerrors.New(pkgerrors.CodeValidation, "invalid entity_id")
		}
		filter.EntityID = &entityID
	}
	if raw := query.Get("event_type"); raw != "" {
		filter.EventType = enums.LedgerEventType(raw)
	}
	if raw := query.Get("from"); raw != "" {
		from, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filter, pkgerrors.New(pkgerrors.CodeValidation, "from must be RFC 3339")
		}
		filter.From = &from
	}
	if raw := query.Get("to"); raw != "" {
		to, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filter, pkgerrors.New(pkgerrors.CodeValidation, "to must be RFC 3339")
		}
		filter.To = &to
	}
	return filter, nil
}

type ledgerEventsResponse struct {
	Events     []ledgerEventResponse `json:"events"`
	NextCursor string                `json:"next_cursor,omitempty"`
}

type ledgerEventResponse struct {
	ID         uint64          `json:"id"`
	EntityType string          `json:"entity_type"`
	EntityID   uuid.UUID       `json:"entity_id"`
	EventType  string          `json:"event_type"`
	ActorType  string          `json:"actor_type"`
	ActorID    *uuid.UUID      `json:"actor_id,omitempty"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

func newLedgerEventResponse(event models.LedgerEvent) ledgerEventResponse {
	return ledgerEventResponse{
		ID:         event.ID,
		EntityType: event.EntityType.String(),
		EntityID:   event.EntityID,
		EventType:  event.EventType.String(),
		ActorType:  event.ActorType.String(),
		ActorID:    event.ActorID,
		Payload:    event.Payload,
		CreatedAt:  event.CreatedAt,
	}
}
