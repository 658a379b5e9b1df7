package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/perennis1/studio-perennis-backend/internal/ledger"
	"github.com/perennis1/studio-perennis-backend/pkg/db/models"
	"github.com/perennis1/studio-perennis-backend/pkg/enums"
	"github.com/perennis1/studio-perennis-backend/pkg/pagination"
)

type stubLedgerService struct {
	list func(ctx context.Context, filter ledger.Filter, params pagination.Params) ([]models.LedgerEvent, string, error)
}

func (s *stubLedgerService) ListEvents(ctx context.Context, filter ledger.Filter, params pagination.Params) ([]models.LedgerEvent, string, error) {
	return s.list(ctx, filter, params)
}

func TestAdminLedgerEventsAppliesFilters(t *testing.T) {
	t.Parallel()

	entityID := uuid.New()
	svc := &stubLedgerService{
		list: func(_ context.Context, filter ledger.Filter, params pagination.Params) ([]models.LedgerEvent, string, error) {
			if filter.EntityType != enums.LedgerEntityInventory {
				t.Fatalf("entity_type = %s", filter.EntityType)
			}
			if filter.EntityID == nil || *filter.EntityID != entityID {
				t.Fatalf("entity_id = %v", filter.EntityID)
			}
			if filter.EventType != enums.LedgerEventReserved {
				t.Fatalf("event_type = %s", filter.EventType)
			}
			if params.Limit != 10 || params.Cursor != "abc" {
				t.Fatalf("params = %+v", params)
			}
			return []models.LedgerEvent{{
				ID:         7,
				EntityType: enums.LedgerEntityInventory,
				EntityID:   entityID,
				EventType:  enums.LedgerEventReserved,
				ActorType:  enums.LedgerActorUser,
				CreatedAt:  time.Now(),
			}}, "next", nil
		},
	}

	target := "/api/admin/v1/ledger/events?entity_type=INVENTORY&entity_id=" + entityID.String() +
		"&event_type=RESERVED&limit=10&cursor=abc"
	req := authedRequest(http.MethodGet, target, "", uuid.New())
	rec := httptest.NewRecorder()
	AdminLedgerEvents(svc, nil)(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var envelope struct {
		Data ledgerEventsResponse `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(envelope.Data.Events) != 1 || envelope.Data.NextCursor != "next" {
		t.Fatalf("unexpected page %+v", envelope.Data)
	}
	if envelope.Data.Events[0].ID != 7 {
		t.Fatalf("event id = %d", envelope.Data.Events[0].ID)
	}
}

func TestAdminLedgerEventsRejectsBadEntityType(t *testing.T) {
	t.Parallel()

	svc := &stubLedgerService{
		list: func(context.Context, ledger.Filter, pagination.Params) ([]models.LedgerEvent, string, error) {
			t.Fatal("service must not run on a bad filter")
			return nil, "", nil
		},
	}

	req := authedRequest(http.MethodGet, "/api/admin/v1/ledger/events?entity_type=NOPE", "", uuid.New())
	rec := httptest.NewRecorder()
	AdminLedgerEvents(svc, nil)(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestAdminLedgerEventsRejectsBadTimeWindow(t *testing.T) {
	t.Parallel()

	svc := &stubLedgerService{
		list: func(context.Context, ledger.Filter, pagination.Params) ([]models.LedgerEvent, string, error) {
			t.Fatal("service must not run on a bad filter")
			return nil, "", nil
		},
	}

	req := authedRequest(http.MethodGet, "/api/admin/v1/ledger/events?from=yesterday", "", uuid.New())
	rec := httptest.NewRecorder()
	AdminLedgerEvents(svc, nil)(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}
