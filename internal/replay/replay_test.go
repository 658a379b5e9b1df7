package replay

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/perennis1/studio-perennis-backend/internal/ledger"
	"github.com/perennis1/studio-perennis-backend/pkg/db/models"
	"github.com/perennis1/studio-perennis-backend/pkg/enums"
)

func stockEvent(t *testing.T, id uint64, entityID uuid.UUID, eventType enums.LedgerEventType, qty int, at time.Time) models.LedgerEvent {
	t.Helper()
	payload, err := json.Marshal(ledger.StockPayload{Qty: qty})
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return models.LedgerEvent{
		ID:         id,
		EntityType: enums.LedgerEntityInventory,
		EntityID:   entityID,
		EventType:  eventType,
		ActorType:  enums.LedgerActorSystem,
		Payload:    payload,
		CreatedAt:  at,
	}
}

func orderEvent(t *testing.T, id uint64, entityID uuid.UUID, eventType enums.LedgerEventType, amount int64, at time.Time) models.LedgerEvent {
	t.Helper()
	payload, err := json.Marshal(ledger.OrderPayload{AmountPaise: amount, UserID: uuid.Nil})
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return models.LedgerEvent{
		ID:         id,
		EntityType: enums.LedgerEntityOrder,
		EntityID:   entityID,
		EventType:  eventType,
		ActorType:  enums.LedgerActorSystem,
		Payload:    payload,
		CreatedAt:  at,
	}
}

func TestReplayInventoryLifecycle(t *testing.T) {
	t.Parallel()

	variant := uuid.New()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	state := Replay([]models.LedgerEvent{
		stockEvent(t, 1, variant, enums.LedgerEventRestocked, 5, base),
		stockEvent(t, 2, variant, enums.LedgerEventReserved, 2, base.Add(time.Minute)),
		stockEvent(t, 3, variant, enums.LedgerEventCommitted, 2, base.Add(2*time.Minute)),
		stockEvent(t, 4, variant, enums.LedgerEventReserved, 1, base.Add(3*time.Minute)),
		stockEvent(t, 5, variant, enums.LedgerEventReleased, 1, base.Add(4*time.Minute)),
	})

	inv := state.Inventory[variant]
	if inv.OnHand != 3 || inv.Reserved != 0 {
		t.Fatalf("unexpected inventory state: %+v", inv)
	}
}

func TestReplayOrderLifecycle(t *testing.T) {
	t.Parallel()

	paid := uuid.New()
	failed := uuid.New()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	state := Replay([]models.LedgerEvent{
		orderEvent(t, 1, paid, enums.LedgerEventCreated, 49900, base),
		orderEvent(t, 2, failed, enums.LedgerEventCreated, 19900, base.Add(time.Second)),
		orderEvent(t, 3, paid, enums.LedgerEventPaid, 49900, base.Add(time.Minute)),
		orderEvent(t, 4, failed, enums.LedgerEventFailed, 19900, base.Add(time.Minute)),
	})

	if got := state.Orders[paid]; got.Status != enums.PaymentStatusPaid || got.AmountPaise != 49900 {
		t.Fatalf("unexpected paid order state: %+v", got)
	}
	if got := state.Orders[failed]; got.Status != enums.PaymentStatusFailed {
		t.Fatalf("unexpected failed order state: %+v", got)
	}
}

func TestReplayOrderIndependentOfInputOrder(t *testing.T) {
	t.Parallel()

	variant := uuid.New()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	events := []models.LedgerEvent{
		stockEvent(t, 3, variant, enums.LedgerEventCommitted, 2, base.Add(2*time.Minute)),
		stockEvent(t, 1, variant, enums.LedgerEventRestocked, 5, base),
		stockEvent(t, 2, variant, enums.LedgerEventReserved, 2, base.Add(time.Minute)),
	}

	state := Replay(events)
	inv := state.Inventory[variant]
	if inv.OnHand != 3 || inv.Reserved != 0 {
		t.Fatalf("unexpected inventory state: %+v", inv)
	}

	// Ties on createdAt fall back to insertion id.
	tied := []models.LedgerEvent{
		stockEvent(t, 2, variant, enums.LedgerEventReserved, 1, base),
		stockEvent(t, 1, variant, enums.LedgerEventRestocked, 1, base),
	}
	tiedState := Replay(tied)
	if got := tiedState.Inventory[variant]; got.OnHand != 1 || got.Reserved != 1 {
		t.Fatalf("unexpected tied state: %+v", got)
	}
}

func TestReplayIsPure(t *testing.T) {
	t.Parallel()

	variant := uuid.New()
	order := uuid.New()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	events := []models.LedgerEvent{
		stockEvent(t, 1, variant, enums.LedgerEventRestocked, 10, base),
		orderEvent(t, 2, order, enums.LedgerEventCreated, 10000, base.Add(time.Second)),
		stockEvent(t, 3, variant, enums.LedgerEventReserved, 4, base.Add(2*time.Second)),
	}

	first := Replay(events)
	second := Replay(events)
	if first.Inventory[variant] != second.Inventory[variant] {
		t.Fatalf("replay not deterministic: %+v vs %+v", first.Inventory[variant], second.Inventory[variant])
	}
	if first.Orders[order] != second.Orders[order] {
		t.Fatalf("replay not deterministic: %+v vs %+v", first.Orders[order], second.Orders[order])
	}
	if len(events) != 3 || events[0].ID != 1 {
		t.Fatal("replay must not mutate its input")
	}
}

func TestReplaySkipsUnknownEventTypes(t *testing.T) {
	t.Parallel()

	variant := uuid.New()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	events := []models.LedgerEvent{
		stockEvent(t, 1, variant, enums.LedgerEventRestocked, 5, base),
		stockEvent(t, 2, variant, enums.LedgerEventType("RECOUNTED"), 99, base.Add(time.Second)),
	}

	state := Replay(events)
	if got := state.Inventory[variant]; got.OnHand != 5 || got.Reserved != 0 {
		t.Fatalf("unknown event type must be skipped: %+v", got)
	}
}
