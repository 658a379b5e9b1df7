package models

import (
	"time"

	"github.com/google/uuid"
)

// Inventory tracks on-hand/reserved counts per hardcopy variant. The row is
// materialized state: it must always be re-derivable from the ledger, with
// 0 <= reserved <= on_hand holding at every commit boundary.
type Inventory struct {
	VariantID uuid.UUID `gorm:"column:variant_id;type:uuid;primaryKey"`
	OnHand    int       `gorm:"column:on_hand;not null;default:0"`
	Reserved  int       `gorm:"column:reserved;not null;default:0"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// Available reports sellable stock not yet held by a reservation.
func (i Inventory) Available() int {
	return i.OnHand - i.Reserved
}
