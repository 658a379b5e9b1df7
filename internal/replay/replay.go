// Package replay derives state from the event ledger alone. The materialized
// inventory and order tables are a cache of what Replay would produce; when
// the two disagree, the replayed state wins.
package replay

import (
	"encoding/json"
	"sort"

	"github.com/google/uuid"

	"github.com/perennis1/studio-perennis-backend/internal/ledger"
	"github.com/perennis1/studio-perennis-backend/pkg/db/models"
	"github.com/perennis1/studio-perennis-backend/pkg/enums"
)

// InventoryState is the replayed stock position of one variant.
type InventoryState struct {
	OnHand   int
	Reserved int
}

// OrderState is the replayed lifecycle position of one order. It carries
// enough of the CREATED payload that a vanished order row can be recreated.
type OrderState struct {
	Status         enums.PaymentStatus
	AmountPaise    int64
	UserID         uuid.UUID
	GatewayOrderID string
}

// State is the full output of a replay run.
type State struct {
	Inventory map[uuid.UUID]InventoryState
	Orders    map[uuid.UUID]OrderState
}

// Replay folds events into state. Pure: no I/O, no clock, no randomness.
// Events are applied in (createdAt, insertion id) order regardless of input
// order. Unrecognized event types are skipped so old snapshots replay under
// newer code.
func Replay(events []models.LedgerEvent) *State {
	sorted := make([]models.LedgerEvent, len(events))
	copy(sorted, events)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].CreatedAt.Equal(sorted[j].CreatedAt) {
			return sorted[i].ID < sorted[j].ID
		}
		return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
	})

	state := &State{
		Inventory: make(map[uuid.UUID]InventoryState),
		Orders:    make(map[uuid.UUID]OrderState),
	}
	for _, event := range sorted {
		switch event.EntityType {
		case enums.LedgerEntityInventory:
			applyInventory(state, event)
		case enums.LedgerEntityOrder:
			applyOrder(state, event)
		}
	}
	return state
}

func applyInventory(state *State, event models.LedgerEvent) {
	var payload ledger.StockPayload
	if len(event.Payload) > 0 {
		if err := json.Unmarshal(event.Payload, &payload); err != nil {
			return
		}
	}

	inv := state.Inventory[event.EntityID]
	switch event.EventType {
	case enums.LedgerEventRestocked:
		inv.OnHand += payload.Qty
	case enums.LedgerEventReserved:
		inv.Reserved += payload.Qty
	case enums.LedgerEventCommitted:
		inv.OnHand -= payload.Qty
		inv.Reserved -= payload.Qty
	case enums.LedgerEventReleased:
		inv.Reserved -= payload.Qty
	default:
		return
	}
	state.Inventory[event.EntityID] = inv
}

func applyOrder(state *State, event models.LedgerEvent) {
	var payload ledger.OrderPayload
	if len(event.Payload) > 0 {
		if err := json.Unmarshal(event.Payload, &payload); err != nil {
			return
		}
	}

	order := state.Orders[event.EntityID]
	switch event.EventType {
	case enums.LedgerEventCreated:
		order.Status = enums.PaymentStatusPending
		order.AmountPaise = payload.AmountPaise
		order.UserID = payload.UserID
		order.GatewayOrderID = payload.GatewayOrderID
	case enums.LedgerEventPaid:
		order.Status = enums.PaymentStatusPaid
	case enums.LedgerEventFailed:
		order.Status = enums.PaymentStatusFailed
	case enums.LedgerEventRefunded:
		order.Status = enums.PaymentStatusRefunded
	default:
		return
	}
	state.Orders[event.EntityID] = order
}
